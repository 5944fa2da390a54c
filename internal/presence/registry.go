// Package presence tracks which users are reachable, derived from the
// number of live connections each user holds.
package presence

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrAlreadyRegistered and ErrNotRegistered signal lifecycle-manager
	// bugs, not client misbehavior.
	ErrAlreadyRegistered = errors.New("connection already registered")
	ErrNotRegistered     = errors.New("connection not registered")

	ErrUnknownUser = errors.New("user has never connected")
)

// Status is the queryable presence of one user.
type Status struct {
	UserID   string
	Online   bool
	LastSeen time.Time
}

// Event is returned when a register/deregister crosses the zero
// boundary; nil otherwise.
type Event struct {
	UserID   string
	Online   bool
	LastSeen time.Time // zero unless Online is false
}

type record struct {
	connections int
	online      bool
	lastSeen    time.Time
}

// Registry is the in-memory presence state. All mutations are
// serialized behind one mutex so the crossed-zero check and the count
// change commit together. Records are never deleted; a user who
// disconnects stays queryable as offline.
type Registry struct {
	mu    sync.Mutex
	users map[string]*record
	conns map[string]string // connection id -> user id
	now   func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		users: make(map[string]*record),
		conns: make(map[string]string),
		now:   time.Now,
	}
}

// Register counts connID against userID. The returned event is non-nil
// only when the user transitions offline -> online. Registering the
// same connID twice without a Deregister in between is a caller error.
func (r *Registry) Register(userID, connID string) (*Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if owner, ok := r.conns[connID]; ok {
		return nil, fmt.Errorf("%w: connection %s owned by user %s", ErrAlreadyRegistered, connID, owner)
	}
	r.conns[connID] = userID

	rec, ok := r.users[userID]
	if !ok {
		rec = &record{}
		r.users[userID] = rec
	}
	rec.connections++

	if rec.connections == 1 {
		rec.online = true
		return &Event{UserID: userID, Online: true}, nil
	}
	return nil, nil
}

// Deregister releases connID. The returned event is non-nil only when
// the user's last connection closed; it carries the lastSeen stamp.
func (r *Registry) Deregister(userID, connID string) (*Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	owner, ok := r.conns[connID]
	if !ok || owner != userID {
		return nil, fmt.Errorf("%w: connection %s for user %s", ErrNotRegistered, connID, userID)
	}
	delete(r.conns, connID)

	rec := r.users[userID]
	rec.connections--

	if rec.connections == 0 {
		rec.online = false
		rec.lastSeen = r.now()
		return &Event{UserID: userID, Online: false, LastSeen: rec.lastSeen}, nil
	}
	return nil, nil
}

// Status reports the current presence of userID. A user with no record
// has never connected.
func (r *Registry) Status(userID string) (Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.users[userID]
	if !ok {
		return Status{}, fmt.Errorf("%w: %s", ErrUnknownUser, userID)
	}
	return Status{UserID: userID, Online: rec.online, LastSeen: rec.lastSeen}, nil
}

// Connections reports the active connection count for userID, zero for
// unknown users.
func (r *Registry) Connections(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec, ok := r.users[userID]; ok {
		return rec.connections
	}
	return 0
}
