package delivery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"relay-service/internal/models"
	"relay-service/internal/protocol"
	"relay-service/internal/room"
)

type fakeStore struct {
	mu      sync.Mutex
	created []*models.Message
	fail    bool
}

func (s *fakeStore) Create(ctx context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("store unavailable")
	}
	msg.ID = fmt.Sprintf("msg-%d", len(s.created)+1)
	msg.Status = models.MessageStatusSent
	s.created = append(s.created, msg)
	return nil
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.created)
}

type fakeDirectory struct {
	users map[string]*models.UserSummary
}

func (d *fakeDirectory) Exists(ctx context.Context, userID string) (bool, error) {
	_, ok := d.users[userID]
	return ok, nil
}

func (d *fakeDirectory) Summary(ctx context.Context, userID string) (*models.UserSummary, error) {
	if u, ok := d.users[userID]; ok {
		return u, nil
	}
	return nil, errors.New("not found")
}

type fakePeer struct {
	id     string
	userID string
	mu     sync.Mutex
	events []*protocol.Event
}

func (p *fakePeer) ID() string     { return p.id }
func (p *fakePeer) UserID() string { return p.userID }

func (p *fakePeer) Send(ev *protocol.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *fakePeer) eventsOfType(t protocol.EventType) []*protocol.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*protocol.Event
	for _, ev := range p.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

type peerMap map[string]*fakePeer

func (m peerMap) Peer(connID string) (Peer, bool) {
	p, ok := m[connID]
	return p, ok
}

type testEnv struct {
	engine *Engine
	store  *fakeStore
	rooms  *room.Router
	peers  peerMap
}

func newTestEnv(users ...string) *testEnv {
	dir := &fakeDirectory{users: make(map[string]*models.UserSummary)}
	for _, u := range users {
		dir.users[u] = &models.UserSummary{ID: u, DisplayName: "User " + u}
	}
	store := &fakeStore{}
	rooms := room.NewRouter()
	peers := peerMap{}
	return &testEnv{
		engine: NewEngine(store, dir, rooms, peers, nil),
		store:  store,
		rooms:  rooms,
		peers:  peers,
	}
}

// connect simulates an active connection joined to its personal room.
func (e *testEnv) connect(connID, userID string) *fakePeer {
	p := &fakePeer{id: connID, userID: userID}
	e.peers[connID] = p
	e.rooms.Join(connID, room.PersonalRoom(userID))
	return p
}

func messageID(t *testing.T, ev *protocol.Event) string {
	t.Helper()
	var p protocol.MessagePayload
	if err := ev.Decode(&p); err != nil {
		t.Fatalf("Failed to decode message payload: %v", err)
	}
	return p.ID
}

func TestSendMessageFansOutToAllRecipientConnections(t *testing.T) {
	env := newTestEnv("alice", "bob")
	a1 := env.connect("a1", "alice")
	b1 := env.connect("b1", "bob")
	b2 := env.connect("b2", "bob")

	err := env.engine.SendMessage(context.Background(), a1, &protocol.SendMessagePayload{
		RecipientID: "bob",
		Content:     "hi",
		MessageType: "text",
	})
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	received1 := b1.eventsOfType(protocol.EventReceiveMessage)
	received2 := b2.eventsOfType(protocol.EventReceiveMessage)
	if len(received1) != 1 || len(received2) != 1 {
		t.Fatalf("receive-message counts: b1=%d b2=%d, want 1 each", len(received1), len(received2))
	}

	sent := a1.eventsOfType(protocol.EventMessageSent)
	if len(sent) != 1 {
		t.Fatalf("message-sent count = %d, want 1", len(sent))
	}

	id := messageID(t, sent[0])
	if id == "" {
		t.Fatal("Echo should carry the persisted identifier")
	}
	if got := messageID(t, received1[0]); got != id {
		t.Errorf("b1 received id %q, want %q", got, id)
	}
	if got := messageID(t, received2[0]); got != id {
		t.Errorf("b2 received id %q, want %q", got, id)
	}
}

func TestSendMessageToUnknownUserSkipsPersistence(t *testing.T) {
	env := newTestEnv("alice")
	a1 := env.connect("a1", "alice")

	err := env.engine.SendMessage(context.Background(), a1, &protocol.SendMessagePayload{
		RecipientID: "zzz",
		Content:     "hi",
	})
	if !errors.Is(err, ErrRecipientNotFound) {
		t.Errorf("Expected ErrRecipientNotFound, got %v", err)
	}

	if env.store.count() != 0 {
		t.Error("No persistence call should occur for an unknown recipient")
	}
	if errs := a1.eventsOfType(protocol.EventMessageError); len(errs) != 1 {
		t.Errorf("message-error count = %d, want 1", len(errs))
	}
}

func TestSendMessageToOfflineRecipientPersistsWithoutDelivery(t *testing.T) {
	env := newTestEnv("alice", "bob")
	a1 := env.connect("a1", "alice")
	// bob has no active connections

	err := env.engine.SendMessage(context.Background(), a1, &protocol.SendMessagePayload{
		RecipientID: "bob",
		Content:     "hi",
	})
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	if env.store.count() != 1 {
		t.Error("Message should persist even when the recipient is offline")
	}
	if sent := a1.eventsOfType(protocol.EventMessageSent); len(sent) != 1 {
		t.Errorf("message-sent count = %d, want 1", len(sent))
	}
	if received := a1.eventsOfType(protocol.EventReceiveMessage); len(received) != 0 {
		t.Errorf("No receive-message should be emitted anywhere, sender saw %d", len(received))
	}
}

func TestPersistenceFailureMeansNoMulticast(t *testing.T) {
	env := newTestEnv("alice", "bob")
	a1 := env.connect("a1", "alice")
	b1 := env.connect("b1", "bob")
	env.store.fail = true

	err := env.engine.SendMessage(context.Background(), a1, &protocol.SendMessagePayload{
		RecipientID: "bob",
		Content:     "hi",
	})
	if !errors.Is(err, ErrPersistence) {
		t.Errorf("Expected ErrPersistence, got %v", err)
	}

	if received := b1.eventsOfType(protocol.EventReceiveMessage); len(received) != 0 {
		t.Error("No multicast should occur when persistence fails")
	}
	if sent := a1.eventsOfType(protocol.EventMessageSent); len(sent) != 0 {
		t.Error("No confirmation should be echoed when persistence fails")
	}

	errs := a1.eventsOfType(protocol.EventMessageError)
	if len(errs) != 1 {
		t.Fatalf("message-error count = %d, want 1", len(errs))
	}
	var p protocol.ErrorPayload
	if err := errs[0].Decode(&p); err != nil {
		t.Fatalf("Failed to decode error payload: %v", err)
	}
	if p.Message == "store unavailable" {
		t.Error("The exact persistence cause must not leak to the client")
	}
}

func TestSendMessageValidation(t *testing.T) {
	env := newTestEnv("alice", "bob")
	a1 := env.connect("a1", "alice")

	cases := []struct {
		name    string
		payload *protocol.SendMessagePayload
	}{
		{"missing recipient", &protocol.SendMessagePayload{Content: "hi"}},
		{"missing content", &protocol.SendMessagePayload{RecipientID: "bob"}},
		{"unknown type", &protocol.SendMessagePayload{RecipientID: "bob", Content: "hi", MessageType: "video"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := env.engine.SendMessage(context.Background(), a1, tc.payload)
			if !errors.Is(err, ErrValidation) {
				t.Errorf("Expected ErrValidation, got %v", err)
			}
		})
	}

	if env.store.count() != 0 {
		t.Error("Invalid payloads must not persist")
	}
}

func TestTypingNeverPersists(t *testing.T) {
	env := newTestEnv("alice", "bob")
	a1 := env.connect("a1", "alice")
	b1 := env.connect("b1", "bob")

	err := env.engine.SendTyping(context.Background(), a1, &protocol.TypingPayload{
		RecipientID: "bob",
		IsTyping:    true,
	})
	if err != nil {
		t.Fatalf("SendTyping failed: %v", err)
	}

	if env.store.count() != 0 {
		t.Error("Typing events must never persist")
	}

	typing := b1.eventsOfType(protocol.EventUserTyping)
	if len(typing) != 1 {
		t.Fatalf("user-typing count = %d, want 1", len(typing))
	}
	var p protocol.UserTypingPayload
	if err := typing[0].Decode(&p); err != nil {
		t.Fatalf("Failed to decode typing payload: %v", err)
	}
	if p.UserID != "alice" || !p.IsTyping {
		t.Errorf("Unexpected typing payload: %+v", p)
	}
}

func TestTypingToOfflineRecipientIsDropped(t *testing.T) {
	env := newTestEnv("alice", "bob")
	a1 := env.connect("a1", "alice")

	if err := env.engine.SendTyping(context.Background(), a1, &protocol.TypingPayload{
		RecipientID: "bob",
		IsTyping:    true,
	}); err != nil {
		t.Fatalf("SendTyping to empty room should be a no-op, got %v", err)
	}
}

func TestSendMessageDefaultsToTextType(t *testing.T) {
	env := newTestEnv("alice", "bob")
	a1 := env.connect("a1", "alice")

	if err := env.engine.SendMessage(context.Background(), a1, &protocol.SendMessagePayload{
		RecipientID: "bob",
		Content:     "hi",
	}); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	if got := env.store.created[0].Type; got != models.MessageTypeText {
		t.Errorf("Type = %q, want %q", got, models.MessageTypeText)
	}
}
