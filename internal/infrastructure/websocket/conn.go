package websocket

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	gws "github.com/gorilla/websocket"

	"StoryStream/internal/broadcast"
	"StoryStream/internal/domain"
	"StoryStream/internal/logging"
)

const (
	defaultPingPeriod = 30 * time.Second
	controlWriteWait  = time.Second
	maxInboundBytes   = 4096
)

var upgrader = gws.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// Options tunes keepalive and logging for upgraded connections.
type Options struct {
	PingPeriod time.Duration
	Logger     *slog.Logger
}

// Conn adapts a gorilla socket to broadcast.Conn.
type Conn struct {
	id         string
	socket     *gws.Conn
	pingPeriod time.Duration
	logger     *slog.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

var _ broadcast.Conn = (*Conn)(nil)

// Upgrade switches the HTTP request to the WebSocket protocol. On failure the
// upgrader has already written an HTTP error response.
func Upgrade(w http.ResponseWriter, r *http.Request, opts Options) (*Conn, error) {
	socket, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("upgrade websocket: %w", err)
	}
	return newConn(socket, opts), nil
}

func newConn(socket *gws.Conn, opts Options) *Conn {
	if opts.PingPeriod <= 0 {
		opts.PingPeriod = defaultPingPeriod
	}
	id := uuid.NewString()
	return &Conn{
		id:         id,
		socket:     socket,
		pingPeriod: opts.PingPeriod,
		logger:     logging.OrDiscard(opts.Logger).With("conn", id),
		done:       make(chan struct{}),
	}
}

// ID returns the connection's unique identifier.
func (c *Conn) ID() string {
	return c.id
}

// WriteEvent writes one JSON frame, bounded by ctx's deadline.
func (c *Conn) WriteEvent(ctx context.Context, event domain.Event) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrDelivery, err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline, _ := ctx.Deadline()
	if err := c.socket.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("%w: set write deadline: %w", domain.ErrDelivery, err)
	}
	if err := c.socket.WriteJSON(event); err != nil {
		return fmt.Errorf("%w: write %s: %w", domain.ErrDelivery, event.Kind, err)
	}
	return nil
}

// Close sends a close frame and releases the socket. Safe to call repeatedly.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		msg := gws.FormatCloseMessage(gws.CloseNormalClosure, "")
		_ = c.socket.WriteControl(gws.CloseMessage, msg, time.Now().Add(controlWriteWait))
		err = c.socket.Close()
	})
	return err
}

// Serve keeps the connection alive with pings and reads inbound frames until
// the peer goes away or Close is called. Inbound messages are logged only.
func (c *Conn) Serve() {
	pongWait := 2 * c.pingPeriod
	c.socket.SetReadLimit(maxInboundBytes)
	_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))
	c.socket.SetPongHandler(func(string) error {
		return c.socket.SetReadDeadline(time.Now().Add(pongWait))
	})

	go c.pingLoop()

	for {
		kind, payload, err := c.socket.ReadMessage()
		if err != nil {
			if gws.IsUnexpectedCloseError(err, gws.CloseNormalClosure, gws.CloseGoingAway) {
				c.logger.Debug("websocket read ended", "error", err)
			}
			return
		}
		c.logger.Info("inbound message", "kind", kind, "payload", string(payload))
	}
}

func (c *Conn) pingLoop() {
	ticker := time.NewTicker(c.pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(controlWriteWait)
			if err := c.socket.WriteControl(gws.PingMessage, nil, deadline); err != nil {
				c.logger.Debug("failed to write ping", "error", err)
				return
			}
		}
	}
}
