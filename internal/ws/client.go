package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"relay-service/internal/protocol"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096
)

// conn is the transport surface the client needs. *websocket.Conn
// satisfies it; tests substitute an in-memory implementation.
type conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(string) error)
	Close() error
}

// Client is one live, authenticated connection. The user id is set at
// handshake and never changes afterward.
type Client struct {
	id        string
	userID    string
	hub       *Hub
	conn      conn
	send      chan []byte
	limiter   *rate.Limiter
	createdAt time.Time

	ctx    context.Context
	cancel context.CancelFunc
	closed int32
}

func NewClient(hub *Hub, c conn, userID string) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		id:        uuid.New().String(),
		userID:    userID,
		hub:       hub,
		conn:      c,
		send:      make(chan []byte, 256),
		limiter:   rate.NewLimiter(rate.Limit(hub.eventRate), hub.eventBurst),
		createdAt: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (c *Client) ID() string {
	return c.id
}

func (c *Client) UserID() string {
	return c.userID
}

func (c *Client) isClosed() bool {
	return atomic.LoadInt32(&c.closed) == 1
}

// close marks the client terminal and cancels its context. A closed
// client accepts no further sends; an in-flight dispatch on the read
// goroutine still runs to completion.
func (c *Client) close() {
	if atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		c.cancel()
		slog.Debug("Client marked as closed", "clientID", c.id, "userID", c.userID)
	}
}

// Send queues ev for delivery on this connection. Fire-and-forget: a
// full buffer or closed connection drops the client, never blocks.
// The send channel is never closed: other connections' goroutines may
// race a Send against teardown, and an in-flight send must complete
// without panicking. Teardown cancels ctx instead; the channel is
// reclaimed once the last sender drops its reference.
func (c *Client) Send(ev *protocol.Event) error {
	if c.isClosed() {
		return ErrClientDisconnected
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	select {
	case c.send <- data:
		return nil
	case <-c.ctx.Done():
		return ErrClientDisconnected
	default:
		slog.Warn("Send buffer full, closing client", "clientID", c.id, "userID", c.userID)
		c.close()
		return ErrClientDisconnected
	}
}

func (c *Client) sendError(code, message string) {
	c.Send(protocol.NewErrorEvent(code, message))
}

// readPump owns inbound traffic. Events are decoded and dispatched
// synchronously on this goroutine, so a connection's events are
// handled in arrival order.
func (c *Client) readPump() {
	defer func() {
		c.close()

		select {
		case c.hub.unregister <- c:
		case <-time.After(5 * time.Second):
			slog.Warn("Timeout sending unregister request", "clientID", c.id, "userID", c.userID)
		}

		if err := c.conn.Close(); err != nil {
			slog.Debug("Error closing connection", "clientID", c.id, "error", err)
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		if c.isClosed() {
			return websocket.ErrCloseSent
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("WebSocket error", "clientID", c.id, "userID", c.userID, "error", err)
			} else {
				slog.Debug("WebSocket connection closed", "clientID", c.id, "userID", c.userID, "error", err)
			}
			return
		}

		if !c.limiter.Allow() {
			c.sendError("RATE_LIMIT_EXCEEDED", "too many events, closing connection")
			slog.Warn("Event flood, closing client", "clientID", c.id, "userID", c.userID)
			c.hub.noteRateLimitClose()
			return
		}

		var ev protocol.Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			slog.Debug("Failed to unmarshal event", "clientID", c.id, "error", err)
			c.sendError("VALIDATION_FAILURE", "invalid event format")
			continue
		}

		c.hub.dispatch(c, &ev)
	}
}

// writePump owns outbound traffic and the keepalive pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				slog.Debug("Error writing message", "clientID", c.id, "error", err)
				return
			}

		case <-ticker.C:
			if c.isClosed() {
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				slog.Debug("Error sending ping", "clientID", c.id, "error", err)
				return
			}

		case <-c.ctx.Done():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
