package presence

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestRegisterFirstConnectionFlipsOnline(t *testing.T) {
	r := NewRegistry()

	event, err := r.Register("alice", "conn-1")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if event == nil {
		t.Fatal("First connection should produce an online event")
	}
	if event.UserID != "alice" || !event.Online {
		t.Errorf("Unexpected event: %+v", event)
	}

	status, err := r.Status("alice")
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if !status.Online {
		t.Error("User should be online after first register")
	}
}

func TestSecondConnectionProducesNoEvent(t *testing.T) {
	r := NewRegistry()

	if _, err := r.Register("alice", "conn-1"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	event, err := r.Register("alice", "conn-2")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if event != nil {
		t.Errorf("Second connection should not produce an event, got %+v", event)
	}
	if got := r.Connections("alice"); got != 2 {
		t.Errorf("Connections = %d, want 2", got)
	}
}

func TestDoubleRegisterIsCallerError(t *testing.T) {
	r := NewRegistry()

	if _, err := r.Register("alice", "conn-1"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	_, err := r.Register("alice", "conn-1")
	if !errors.Is(err, ErrAlreadyRegistered) {
		t.Errorf("Expected ErrAlreadyRegistered, got %v", err)
	}
}

func TestDeregisterUnknownConnection(t *testing.T) {
	r := NewRegistry()

	_, err := r.Deregister("alice", "conn-1")
	if !errors.Is(err, ErrNotRegistered) {
		t.Errorf("Expected ErrNotRegistered, got %v", err)
	}
}

func TestTwoConnectionsOfflineExactlyOnce(t *testing.T) {
	r := NewRegistry()

	r.Register("alice", "conn-1")
	r.Register("alice", "conn-2")

	event, err := r.Deregister("alice", "conn-1")
	if err != nil {
		t.Fatalf("Deregister failed: %v", err)
	}
	if event != nil {
		t.Errorf("Closing one of two connections should not produce an event, got %+v", event)
	}

	status, _ := r.Status("alice")
	if !status.Online {
		t.Error("User should stay online while a connection remains")
	}

	event, err = r.Deregister("alice", "conn-2")
	if err != nil {
		t.Fatalf("Deregister failed: %v", err)
	}
	if event == nil {
		t.Fatal("Closing the last connection should produce an offline event")
	}
	if event.Online {
		t.Error("Event should be offline")
	}
	if event.LastSeen.IsZero() {
		t.Error("Offline event should carry a lastSeen stamp")
	}

	status, _ = r.Status("alice")
	if status.Online {
		t.Error("User should be offline after last connection closed")
	}
}

func TestStatusUnknownUser(t *testing.T) {
	r := NewRegistry()

	_, err := r.Status("ghost")
	if !errors.Is(err, ErrUnknownUser) {
		t.Errorf("Expected ErrUnknownUser, got %v", err)
	}
}

func TestRecordSurvivesLastDisconnect(t *testing.T) {
	r := NewRegistry()
	r.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }

	r.Register("alice", "conn-1")
	r.Deregister("alice", "conn-1")

	status, err := r.Status("alice")
	if err != nil {
		t.Fatalf("Record should persist as offline: %v", err)
	}
	if status.Online {
		t.Error("Expected offline")
	}
	if !status.LastSeen.Equal(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("LastSeen = %v", status.LastSeen)
	}
}

// Online must hold iff net outstanding registers > 0 under any
// interleaving of concurrent connects and disconnects.
func TestConcurrentRegisterDeregister(t *testing.T) {
	r := NewRegistry()

	const workers = 16
	const cycles = 100

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < cycles; i++ {
				connID := fmt.Sprintf("conn-%d-%d", w, i)
				if _, err := r.Register("alice", connID); err != nil {
					t.Errorf("Register failed: %v", err)
					return
				}
				if _, err := r.Deregister("alice", connID); err != nil {
					t.Errorf("Deregister failed: %v", err)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	if got := r.Connections("alice"); got != 0 {
		t.Errorf("Connections = %d, want 0", got)
	}
	status, err := r.Status("alice")
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if status.Online {
		t.Error("User should be offline once all connections closed")
	}
}

// Exactly one offline event must be emitted when concurrent closers
// race on the same user's last connections.
func TestConcurrentDeregisterEmitsOneOfflineEvent(t *testing.T) {
	r := NewRegistry()

	const conns = 32
	for i := 0; i < conns; i++ {
		r.Register("alice", fmt.Sprintf("conn-%d", i))
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var offlineEvents int

	for i := 0; i < conns; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			event, err := r.Deregister("alice", fmt.Sprintf("conn-%d", i))
			if err != nil {
				t.Errorf("Deregister failed: %v", err)
				return
			}
			if event != nil {
				mu.Lock()
				offlineEvents++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if offlineEvents != 1 {
		t.Errorf("Offline events = %d, want exactly 1", offlineEvents)
	}
}
