// Package ws is the connection lifecycle layer: it gates connections
// through handshake authentication, keeps the presence registry and
// room router consistent, and dispatches inbound socket events.
package ws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"relay-service/internal/delivery"
	"relay-service/internal/metrics"
	"relay-service/internal/models"
	"relay-service/internal/presence"
	"relay-service/internal/protocol"
	"relay-service/internal/room"
)

var ErrClientDisconnected = errors.New("client disconnected")

// PresenceWriter persists presence transitions. Writes are best-effort
// and never block connection setup or teardown.
type PresenceWriter interface {
	Write(ctx context.Context, update *models.StatusUpdate) error
}

type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Client lookup by connection ID
	byID map[string]*Client

	// Register requests from new connections
	register chan *Client

	// Unregister requests from closing connections
	unregister chan *Client

	registry *presence.Registry
	rooms    *room.Router
	engine   *delivery.Engine
	writer   PresenceWriter // optional

	// Per-connection inbound event budget
	eventRate  float64
	eventBurst int

	ctx    context.Context
	cancel context.CancelFunc

	mu sync.RWMutex
}

func NewHub(registry *presence.Registry, rooms *room.Router, writer PresenceWriter, eventRate float64, eventBurst int) *Hub {
	ctx, cancel := context.WithCancel(context.Background())

	return &Hub{
		clients:    make(map[*Client]bool),
		byID:       make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		registry:   registry,
		rooms:      rooms,
		writer:     writer,
		eventRate:  eventRate,
		eventBurst: eventBurst,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// SetEngine wires the delivery engine after construction; the engine
// needs the hub as its peer resolver.
func (h *Hub) SetEngine(engine *delivery.Engine) {
	h.engine = engine
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case <-h.ctx.Done():
			slog.Info("WebSocket hub shutting down")
			return
		}
	}
}

func (h *Hub) Stop() {
	h.cancel()
}

// Peer implements delivery.PeerResolver.
func (h *Hub) Peer(connID string) (delivery.Peer, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	client, ok := h.byID[connID]
	if !ok || client.isClosed() {
		return nil, false
	}
	return client, true
}

// registerClient moves an authenticated connection to Active: it is
// counted in the registry, auto-joined to its personal room, and — on
// the user's first connection — announced to everyone else. The
// broadcast happens only after the registry mutation committed.
func (h *Hub) registerClient(client *Client) {
	event, err := h.registry.Register(client.userID, client.id)
	if err != nil {
		// Double registration is a lifecycle bug, not client error.
		slog.Error("Presence registration failed", "clientID", client.id, "userID", client.userID, "error", err)
		client.close()
		return
	}

	h.mu.Lock()
	h.clients[client] = true
	h.byID[client.id] = client
	h.mu.Unlock()

	h.rooms.Join(client.id, room.PersonalRoom(client.userID))
	metrics.ActiveConnections.Inc()

	slog.Info("Client registered", "clientID", client.id, "userID", client.userID)

	if event != nil {
		metrics.OnlineUsers.Inc()
		h.writeThrough(&models.StatusUpdate{UserID: event.UserID, Status: "online"})
		h.broadcast(protocol.NewUserStatusEvent(event.UserID, "online", nil), client)
	}
}

// unregisterClient tears a connection down exactly once: memberships
// are cleared, the presence count is released, and the user's last
// close is announced with its lastSeen stamp.
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	if !h.clients[client] {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client)
	delete(h.byID, client.id)
	h.mu.Unlock()

	h.rooms.RemoveConnection(client.id)

	event, err := h.registry.Deregister(client.userID, client.id)
	if err != nil {
		slog.Error("Presence deregistration failed", "clientID", client.id, "userID", client.userID, "error", err)
	}

	client.close()
	metrics.ActiveConnections.Dec()

	slog.Info("Client unregistered", "clientID", client.id, "userID", client.userID)

	if event != nil {
		metrics.OnlineUsers.Dec()
		lastSeen := event.LastSeen
		h.writeThrough(&models.StatusUpdate{UserID: event.UserID, Status: "offline", LastSeen: &lastSeen})
		h.broadcast(protocol.NewUserStatusEvent(event.UserID, "offline", &lastSeen), client)
		h.broadcast(protocol.NewEvent(protocol.EventUserOffline, &protocol.UserOfflinePayload{UserID: event.UserID}), client)
	}
}

// writeThrough persists a presence transition. Failures are logged and
// never retried; teardown must not block on storage.
func (h *Hub) writeThrough(update *models.StatusUpdate) {
	if h.writer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := h.writer.Write(ctx, update); err != nil {
		slog.Warn("Presence write-through failed", "userID", update.UserID, "status", update.Status, "error", err)
	}
}

// broadcast pushes ev to every registered client except the one the
// transition belongs to.
func (h *Hub) broadcast(ev *protocol.Event, except *Client) {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		if client != except {
			targets = append(targets, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range targets {
		client.Send(ev)
	}
}

// dispatch handles one inbound event on the owning connection's read
// goroutine. Failures are scoped to the origin; other connections are
// never affected.
func (h *Hub) dispatch(client *Client, ev *protocol.Event) {
	switch ev.Type {
	case protocol.EventJoinRoom:
		h.handleJoin(client, ev)

	case protocol.EventLeaveRoom:
		h.handleLeave(client, ev)

	case protocol.EventSendMessage:
		var p protocol.SendMessagePayload
		if err := ev.Decode(&p); err != nil {
			client.Send(protocol.NewMessageErrorEvent("VALIDATION_FAILURE", "invalid send-message payload"))
			return
		}
		if err := h.engine.SendMessage(client.ctx, client, &p); err != nil {
			slog.Debug("Send message failed", "clientID", client.id, "error", err)
		}

	case protocol.EventTyping:
		var p protocol.TypingPayload
		if err := ev.Decode(&p); err != nil {
			client.sendError("VALIDATION_FAILURE", "invalid typing payload")
			return
		}
		if err := h.engine.SendTyping(client.ctx, client, &p); err != nil {
			slog.Debug("Send typing failed", "clientID", client.id, "error", err)
		}

	default:
		client.sendError("VALIDATION_FAILURE", fmt.Sprintf("unknown event type %q", ev.Type))
	}
}

func (h *Hub) handleJoin(client *Client, ev *protocol.Event) {
	var p protocol.JoinRoomPayload
	if err := ev.Decode(&p); err != nil || p.RoomID == "" {
		client.sendError("VALIDATION_FAILURE", "invalid join-room payload")
		return
	}

	// The personal namespace is reserved: a client may only sit in its
	// own inbox, never another user's.
	if room.IsPersonal(p.RoomID) && p.RoomID != room.PersonalRoom(client.userID) {
		client.sendError("VALIDATION_FAILURE", "room id uses a reserved namespace")
		return
	}

	roomID := h.rooms.Join(client.id, p.RoomID)
	client.Send(protocol.NewEvent(protocol.EventJoinedRoom, &protocol.RoomAckPayload{RoomID: roomID}))
}

func (h *Hub) handleLeave(client *Client, ev *protocol.Event) {
	var p protocol.LeaveRoomPayload
	if err := ev.Decode(&p); err != nil || p.RoomID == "" {
		client.sendError("VALIDATION_FAILURE", "invalid leave-room payload")
		return
	}

	h.rooms.Leave(client.id, p.RoomID)
	client.Send(protocol.NewEvent(protocol.EventLeftRoom, &protocol.RoomAckPayload{RoomID: p.RoomID}))
}

func (h *Hub) noteRateLimitClose() {
	metrics.RateLimitCloses.Inc()
}

// ClientCount reports the number of registered connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
