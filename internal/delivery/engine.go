// Package delivery accepts outbound message events, persists them and
// fans them out to the recipient's personal room.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"relay-service/internal/metrics"
	"relay-service/internal/models"
	"relay-service/internal/protocol"
	"relay-service/internal/room"
)

var (
	ErrRecipientNotFound = errors.New("recipient not found")
	ErrPersistence       = errors.New("message persistence failed")
	ErrValidation        = errors.New("invalid message payload")
)

// MessageStore persists outbound messages. Create assigns the id,
// timestamp and initial "sent" status.
type MessageStore interface {
	Create(ctx context.Context, msg *models.Message) error
}

// UserDirectory resolves recipient existence and display metadata.
type UserDirectory interface {
	Exists(ctx context.Context, userID string) (bool, error)
	Summary(ctx context.Context, userID string) (*models.UserSummary, error)
}

// Publisher streams persisted messages to downstream consumers.
// Publishing is best-effort and never blocks delivery.
type Publisher interface {
	Publish(ctx context.Context, msg *models.Message) error
}

// Peer is one live connection the engine can push events to.
type Peer interface {
	ID() string
	UserID() string
	Send(ev *protocol.Event) error
}

// PeerResolver maps connection ids held by the room router back to
// live peers. Absent peers are skipped; delivery is fire-and-forget.
type PeerResolver interface {
	Peer(connID string) (Peer, bool)
}

type Engine struct {
	store     MessageStore
	users     UserDirectory
	rooms     *room.Router
	peers     PeerResolver
	publisher Publisher // optional
}

func NewEngine(store MessageStore, users UserDirectory, rooms *room.Router, peers PeerResolver, publisher Publisher) *Engine {
	return &Engine{
		store:     store,
		users:     users,
		rooms:     rooms,
		peers:     peers,
		publisher: publisher,
	}
}

// SendMessage runs the full outbound flow: validate, persist, fan out
// to the recipient's personal room, echo confirmation to the origin.
// Failures are reported to the origin as a message-error event and
// returned for logging; other connections never see them.
func (e *Engine) SendMessage(ctx context.Context, origin Peer, p *protocol.SendMessagePayload) error {
	if err := validateSend(p); err != nil {
		metrics.DeliveryErrors.WithLabelValues("validation").Inc()
		origin.Send(protocol.NewMessageErrorEvent("VALIDATION_FAILURE", err.Error()))
		return err
	}

	exists, err := e.users.Exists(ctx, p.RecipientID)
	if err != nil {
		metrics.DeliveryErrors.WithLabelValues("recipient_not_found").Inc()
		origin.Send(protocol.NewMessageErrorEvent("RECIPIENT_NOT_FOUND", "recipient could not be resolved"))
		return fmt.Errorf("resolve recipient %s: %w", p.RecipientID, err)
	}
	if !exists {
		metrics.DeliveryErrors.WithLabelValues("recipient_not_found").Inc()
		origin.Send(protocol.NewMessageErrorEvent("RECIPIENT_NOT_FOUND", "recipient could not be resolved"))
		return fmt.Errorf("%w: %s", ErrRecipientNotFound, p.RecipientID)
	}

	msg := &models.Message{
		SenderID:    origin.UserID(),
		RecipientID: p.RecipientID,
		Content:     p.Content,
		Type:        p.MessageType,
	}
	if msg.Type == "" {
		msg.Type = models.MessageTypeText
	}

	// Persistence commits before any multicast. The exact cause is not
	// exposed to the client.
	if err := e.store.Create(ctx, msg); err != nil {
		metrics.DeliveryErrors.WithLabelValues("persistence").Inc()
		origin.Send(protocol.NewMessageErrorEvent("MESSAGE_FAILED", "message could not be sent"))
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	metrics.MessagesPersisted.Inc()

	if e.publisher != nil {
		if err := e.publisher.Publish(ctx, msg); err != nil {
			slog.Warn("Failed to publish message event", "messageID", msg.ID, "error", err)
		}
	}

	payload := &protocol.MessagePayload{MessageResponse: msg.Response()}
	if sender, err := e.users.Summary(ctx, origin.UserID()); err == nil {
		payload.Sender = sender
	} else {
		slog.Warn("Failed to load sender summary", "userID", origin.UserID(), "error", err)
	}

	e.multicast(room.PersonalRoom(p.RecipientID), protocol.NewEvent(protocol.EventReceiveMessage, payload))

	// The echo is distinct from the multicast: the sender is usually
	// not a member of the recipient's personal room.
	origin.Send(protocol.NewEvent(protocol.EventMessageSent, payload))
	return nil
}

// SendTyping multicasts an ephemeral typing indicator to the
// recipient's personal room. Nothing is persisted or buffered; an
// offline recipient means the event is dropped.
func (e *Engine) SendTyping(ctx context.Context, origin Peer, p *protocol.TypingPayload) error {
	if p.RecipientID == "" {
		origin.Send(protocol.NewErrorEvent("VALIDATION_FAILURE", "recipient is required"))
		return fmt.Errorf("%w: recipient is required", ErrValidation)
	}

	metrics.TypingEvents.Inc()
	e.multicast(room.PersonalRoom(p.RecipientID), protocol.NewEvent(protocol.EventUserTyping, &protocol.UserTypingPayload{
		UserID:   origin.UserID(),
		IsTyping: p.IsTyping,
	}))
	return nil
}

// multicast pushes ev to every live member of roomID. An empty or
// unknown room is a no-op. Per-peer send failures are logged and do
// not stop the fan-out.
func (e *Engine) multicast(roomID string, ev *protocol.Event) {
	for connID := range e.rooms.Members(roomID) {
		peer, ok := e.peers.Peer(connID)
		if !ok {
			continue
		}
		if err := peer.Send(ev); err != nil {
			slog.Debug("Dropped event for peer", "connID", connID, "event", ev.Type, "error", err)
			continue
		}
		if ev.Type == protocol.EventReceiveMessage {
			metrics.MessagesDelivered.Inc()
		}
	}
}

func validateSend(p *protocol.SendMessagePayload) error {
	if p.RecipientID == "" {
		return fmt.Errorf("%w: recipient is required", ErrValidation)
	}
	if p.Content == "" {
		return fmt.Errorf("%w: content is required", ErrValidation)
	}
	switch p.MessageType {
	case "", models.MessageTypeText, models.MessageTypeImage, models.MessageTypeFile:
		return nil
	default:
		return fmt.Errorf("%w: unknown message type %q", ErrValidation, p.MessageType)
	}
}
