package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/xid"
	"golang.org/x/time/rate"

	"github.com/good-yellow-bee/slate/internal/logging"
	"github.com/good-yellow-bee/slate/internal/models"
)

const (
	writeWait = 10 * time.Second

	// Shot payloads may carry a data: URI image.
	maxMessageSize = 8 << 20
)

// client is one WebSocket connection. It has a single reader, run by the
// HTTP handler goroutine, and a single writer draining send.
type client struct {
	id        string
	principal models.Principal
	conn      *websocket.Conn
	limiter   *rate.Limiter
	logger    logging.Logger

	mu     sync.Mutex
	closed bool
	send   chan []byte
}

func newClient(conn *websocket.Conn, principal models.Principal, cfg Config) *client {
	id := xid.New().String()
	return &client{
		id:        id,
		principal: principal,
		conn:      conn,
		limiter:   rate.NewLimiter(rate.Limit(cfg.EventsPerSecond), cfg.Burst),
		logger:    logging.New("realtime.client", "conn", id, "email", principal.Email),
		send:      make(chan []byte, cfg.SendBuffer),
	}
}

func (c *client) ID() string {
	return c.id
}

// Send queues a frame without blocking. A full buffer drops the frame.
func (c *client) Send(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// readLoop hands every inbound message to handle until the peer goes away
// or stops answering pings.
func (c *client) readLoop(pongWait time.Duration, handle func([]byte)) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debugw("connection closed", "error", err)
			}
			return
		}
		handle(msg)
	}
}

// writeLoop drains send and pings the peer. It exits when send is closed or
// a write fails.
func (c *client) writeLoop(ctx context.Context, pingInterval time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.logger.Debugw("write failed", "error", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
