package models

import (
	"time"

	"gorm.io/gorm"
)

// Message delivery statuses.
const (
	MessageStatusSent = "sent"
	MessageStatusRead = "read"
)

// Message content types.
const (
	MessageTypeText  = "text"
	MessageTypeImage = "image"
	MessageTypeFile  = "file"
)

/** --------------------ENTITIES-------------------- */
// Message is a persisted chat message. The store assigns ID, Status and
// SentAt on create; the core only echoes them back.
type Message struct {
	ID          string         `gorm:"primaryKey;type:uuid;default:uuid_generate_v4()" json:"id"`
	SenderID    string         `gorm:"not null;index" json:"senderId"`
	RecipientID string         `gorm:"not null;index" json:"recipientId"`
	Content     string         `gorm:"not null" json:"content"`
	Type        string         `gorm:"not null;default:text" json:"type"` // text || image || file
	Status      string         `gorm:"not null;default:sent" json:"status"`
	SentAt      time.Time      `gorm:"default:CURRENT_TIMESTAMP" json:"sentAt"`
	CreatedAt   time.Time      `json:"-"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

/** -------------------- DTOs -------------------- */
// MessageResponse is the REST shape of a persisted message.
type MessageResponse struct {
	ID          string    `json:"id"`
	SenderID    string    `json:"senderId"`
	RecipientID string    `json:"recipientId"`
	Content     string    `json:"content"`
	Type        string    `json:"type"`
	Status      string    `json:"status"`
	SentAt      time.Time `json:"sentAt"`
}

func (m *Message) Response() *MessageResponse {
	return &MessageResponse{
		ID:          m.ID,
		SenderID:    m.SenderID,
		RecipientID: m.RecipientID,
		Content:     m.Content,
		Type:        m.Type,
		Status:      m.Status,
		SentAt:      m.SentAt,
	}
}
