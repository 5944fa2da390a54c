// Package stream publishes persisted messages to Kafka for downstream
// consumers (search indexing, notification fan-out). Publishing is
// best-effort; delivery never waits on the broker.
package stream

import (
	"context"
	"encoding/json"
	"fmt"

	"relay-service/internal/models"

	"github.com/IBM/sarama"
)

type MessagePublisher struct {
	producer sarama.SyncProducer
	topic    string
}

func NewMessagePublisher(brokers []string, topic string) (*MessagePublisher, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Partitioner = sarama.NewHashPartitioner
	config.Version = sarama.V2_0_0_0
	config.ClientID = "relay-service"

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	return &MessagePublisher{producer: producer, topic: topic}, nil
}

// Publish emits one persisted message, keyed by sender so a sender's
// messages land on one partition in order.
func (p *MessagePublisher) Publish(ctx context.Context, msg *models.Message) error {
	payload, err := json.Marshal(msg.Response())
	if err != nil {
		return err
	}

	_, _, err = p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(msg.SenderID),
		Value: sarama.ByteEncoder(payload),
	})
	return err
}

func (p *MessagePublisher) Close() error {
	return p.producer.Close()
}
