// Package protocol defines the socket event contract shared by the
// connection layer and the delivery engine.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"relay-service/internal/models"
)

// EventType identifies a socket event by name.
type EventType string

// Inbound events.
const (
	EventJoinRoom    EventType = "join-room"
	EventLeaveRoom   EventType = "leave-room"
	EventSendMessage EventType = "send-message"
	EventTyping      EventType = "typing"
)

// Outbound events.
const (
	EventJoinedRoom     EventType = "joined-room"
	EventLeftRoom       EventType = "left-room"
	EventReceiveMessage EventType = "receive-message"
	EventMessageSent    EventType = "message-sent"
	EventMessageError   EventType = "message-error"
	EventUserTyping     EventType = "user-typing"
	EventUserStatus     EventType = "user:status"
	EventUserOffline    EventType = "user-offline"
	EventError          EventType = "error"
)

func (t EventType) String() string { return string(t) }

// IsInbound reports whether clients may send this event type.
func (t EventType) IsInbound() bool {
	switch t {
	case EventJoinRoom, EventLeaveRoom, EventSendMessage, EventTyping:
		return true
	default:
		return false
	}
}

// Event is the envelope every socket frame carries.
type Event struct {
	Type      EventType       `json:"event"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"`
}

// Decode unmarshals the event payload into v.
func (e *Event) Decode(v interface{}) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("event %s has no payload", e.Type)
	}
	return json.Unmarshal(e.Data, v)
}

/** -------------------- inbound payloads -------------------- */

type JoinRoomPayload struct {
	RoomID string `json:"roomId"`
}

type LeaveRoomPayload struct {
	RoomID string `json:"roomId"`
}

type SendMessagePayload struct {
	RecipientID string `json:"recipient"`
	Content     string `json:"content"`
	MessageType string `json:"messageType,omitempty"`
	SentAt      int64  `json:"sentAt,omitempty"` // client clock, informational only
}

type TypingPayload struct {
	RecipientID string `json:"recipient"`
	IsTyping    bool   `json:"isTyping"`
}

/** -------------------- outbound payloads -------------------- */

type RoomAckPayload struct {
	RoomID string `json:"roomId"`
}

// MessagePayload is the enriched persisted message fanned out to the
// recipient room and echoed to the sender.
type MessagePayload struct {
	*models.MessageResponse
	Sender *models.UserSummary `json:"sender,omitempty"`
}

type UserTypingPayload struct {
	UserID   string `json:"userId"`
	IsTyping bool   `json:"isTyping"`
}

type UserStatusPayload struct {
	UserID   string     `json:"userId"`
	Status   string     `json:"status"` // online || offline
	LastSeen *time.Time `json:"lastSeen,omitempty"`
}

// UserOfflinePayload announces a user's last connection closing,
// emitted alongside the richer user:status broadcast.
type UserOfflinePayload struct {
	UserID string `json:"userId"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

/** -------------------- constructors -------------------- */

// NewEvent wraps a payload in the envelope. Marshal failures cannot
// happen for the payload types above, so they degrade to an empty
// payload rather than propagating.
func NewEvent(t EventType, payload interface{}) *Event {
	var data json.RawMessage
	if payload != nil {
		if b, err := json.Marshal(payload); err == nil {
			data = b
		}
	}
	return &Event{Type: t, Data: data, Timestamp: time.Now().Unix()}
}

func NewErrorEvent(code, message string) *Event {
	return NewEvent(EventError, &ErrorPayload{Code: code, Message: message})
}

func NewMessageErrorEvent(code, message string) *Event {
	return NewEvent(EventMessageError, &ErrorPayload{Code: code, Message: message})
}

func NewUserStatusEvent(userID, status string, lastSeen *time.Time) *Event {
	return NewEvent(EventUserStatus, &UserStatusPayload{UserID: userID, Status: status, LastSeen: lastSeen})
}
