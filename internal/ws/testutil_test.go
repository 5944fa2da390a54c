package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"relay-service/internal/models"
	"relay-service/internal/presence"
	"relay-service/internal/protocol"
	"relay-service/internal/room"

	"github.com/gorilla/websocket"
)

// mockConn implements the conn interface for testing.
type mockConn struct {
	mu      sync.Mutex
	written [][]byte
	closed  bool
	inbound chan []byte
}

func newMockConn() *mockConn {
	return &mockConn{inbound: make(chan []byte, 64)}
}

func (m *mockConn) ReadMessage() (int, []byte, error) {
	data, ok := <-m.inbound
	if !ok {
		return 0, nil, errors.New("connection closed")
	}
	return websocket.TextMessage, data, nil
}

func (m *mockConn) WriteMessage(messageType int, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errors.New("connection closed")
	}
	m.written = append(m.written, data)
	return nil
}

func (m *mockConn) SetReadLimit(int64)                {}
func (m *mockConn) SetReadDeadline(time.Time) error   { return nil }
func (m *mockConn) SetWriteDeadline(time.Time) error  { return nil }
func (m *mockConn) SetPongHandler(func(string) error) {}

func (m *mockConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.inbound)
	}
	return nil
}

// failingWriter always rejects presence write-through.
type failingWriter struct {
	mu    sync.Mutex
	calls int
}

func (w *failingWriter) Write(ctx context.Context, update *models.StatusUpdate) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	return errors.New("storage unreachable")
}

func newTestHub() *Hub {
	return NewHub(presence.NewRegistry(), room.NewRouter(), nil, 100, 200)
}

// drainEvents empties a client's send buffer into decoded events.
func drainEvents(t *testing.T, c *Client) []*protocol.Event {
	t.Helper()
	var out []*protocol.Event
	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				return out
			}
			var ev protocol.Event
			if err := json.Unmarshal(data, &ev); err != nil {
				t.Fatalf("Failed to decode event: %v", err)
			}
			out = append(out, &ev)
		default:
			return out
		}
	}
}

func eventsOfType(events []*protocol.Event, typ protocol.EventType) []*protocol.Event {
	var out []*protocol.Event
	for _, ev := range events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func inboundEvent(t *testing.T, typ protocol.EventType, payload interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(protocol.NewEvent(typ, payload))
	if err != nil {
		t.Fatalf("Failed to marshal event: %v", err)
	}
	return data
}
