// Package room maps logical addressing (per-user inboxes, ad-hoc
// rooms) to sets of live connection identifiers.
package room

import (
	"iter"
	"strings"
	"sync"
)

// personalPrefix reserves a namespace for per-user inbox rooms so an
// ad-hoc room id can never collide with a personal one.
const personalPrefix = "user:"

// PersonalRoom derives the deterministic per-user room id used for
// direct delivery.
func PersonalRoom(userID string) string {
	return personalPrefix + userID
}

// IsPersonal reports whether roomID lives in the reserved namespace.
func IsPersonal(roomID string) bool {
	return strings.HasPrefix(roomID, personalPrefix)
}

// Router owns the room membership maps. Rooms are created lazily on
// first join and evicted when their last member leaves; routing to an
// absent room is a no-op, never an error.
type Router struct {
	mu    sync.RWMutex
	rooms map[string]map[string]struct{} // room id -> member connection ids
	conns map[string]map[string]struct{} // connection id -> joined room ids
}

func NewRouter() *Router {
	return &Router{
		rooms: make(map[string]map[string]struct{}),
		conns: make(map[string]map[string]struct{}),
	}
}

// Join adds connID to roomID, creating the room if absent. Joining a
// room twice is a no-op. Returns the canonical room id.
func (r *Router) Join(connID, roomID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[roomID]
	if !ok {
		members = make(map[string]struct{})
		r.rooms[roomID] = members
	}
	members[connID] = struct{}{}

	joined, ok := r.conns[connID]
	if !ok {
		joined = make(map[string]struct{})
		r.conns[connID] = joined
	}
	joined[roomID] = struct{}{}

	return roomID
}

// Leave removes connID from roomID. No-op when not a member. Empty
// rooms are evicted; the next Join recreates them transparently.
func (r *Router) Leave(connID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(connID, roomID)
}

func (r *Router) leaveLocked(connID, roomID string) {
	members, ok := r.rooms[roomID]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(r.rooms, roomID)
	}

	if joined, ok := r.conns[connID]; ok {
		delete(joined, roomID)
		if len(joined) == 0 {
			delete(r.conns, connID)
		}
	}
}

// Members yields the connection ids currently in roomID. The sequence
// is restartable and iterates a snapshot taken when it was obtained;
// an unknown room yields nothing.
func (r *Router) Members(roomID string) iter.Seq[string] {
	r.mu.RLock()
	snapshot := make([]string, 0, len(r.rooms[roomID]))
	for connID := range r.rooms[roomID] {
		snapshot = append(snapshot, connID)
	}
	r.mu.RUnlock()

	return func(yield func(string) bool) {
		for _, connID := range snapshot {
			if !yield(connID) {
				return
			}
		}
	}
}

// MemberCount reports the current size of roomID, zero when absent.
func (r *Router) MemberCount(roomID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[roomID])
}

// RemoveConnection clears every membership held by connID. Called
// exactly once at connection teardown.
func (r *Router) RemoveConnection(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for roomID := range r.conns[connID] {
		r.leaveLocked(connID, roomID)
	}
	delete(r.conns, connID)
}

// Rooms reports the room ids connID has joined.
func (r *Router) Rooms(connID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rooms := make([]string, 0, len(r.conns[connID]))
	for roomID := range r.conns[connID] {
		rooms = append(rooms, roomID)
	}
	return rooms
}
