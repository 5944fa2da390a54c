package models

import "time"

// StatusUpdate is the wire shape of a presence transition, written
// through to Redis and broadcast to connected clients.
type StatusUpdate struct {
	UserID   string     `json:"userId"`
	Status   string     `json:"status"` // online || offline
	LastSeen *time.Time `json:"lastSeen,omitempty"`
}
