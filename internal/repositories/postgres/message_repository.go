package postgres

import (
	"context"
	"time"

	"relay-service/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MessageRepository is the durable message store behind the delivery
// engine and the history endpoints.
type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db}
}

// Create persists msg, assigning its identifier, timestamp and initial
// "sent" status.
func (r *MessageRepository) Create(ctx context.Context, msg *models.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	msg.Status = models.MessageStatusSent
	msg.SentAt = time.Now()
	return r.db.WithContext(ctx).Create(msg).Error
}

// Conversation returns the two-way history between userID and otherID
// in send order.
func (r *MessageRepository) Conversation(ctx context.Context, userID, otherID string) ([]*models.Message, error) {
	var msgs []*models.Message
	err := r.db.WithContext(ctx).
		Where("(sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)",
			userID, otherID, otherID, userID).
		Order("sent_at").
		Find(&msgs).Error
	return msgs, err
}

func (r *MessageRepository) FindByID(ctx context.Context, id string) (*models.Message, error) {
	var msg models.Message
	err := r.db.WithContext(ctx).First(&msg, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// MarkRead flips a message to read. Only the recipient may mark it.
func (r *MessageRepository) MarkRead(ctx context.Context, id, recipientID string) error {
	return r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("id = ? AND recipient_id = ?", id, recipientID).
		Update("status", models.MessageStatusRead).Error
}
