// Package wsbridge carries cross-document messages over a WebSocket, so a
// checkout channel can talk to a remote endpoint running in another process.
//
// Each WebSocket text frame holds one envelope, serialised as canonical JSON:
//
//	{"message": {"type": "...", "data": {...}}, "origin": "https://a.example", "targetOrigin": "*"}
//
// A [Conn] is both a [channel.Window] (PostMessage writes an envelope) and a
// [channel.Source] (received envelopes are dispatched to subscribers), which
// mirrors a browser pair of postMessage and the message event.
package wsbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sumup/checkout/channel"
	"github.com/sumup/checkout/message"
)

// AnyOrigin as a target origin delivers to any receiver.
const AnyOrigin = "*"

// ErrClosed is returned by PostMessage after Close.
var ErrClosed = errors.New("wsbridge: connection closed")

// Envelope is the wire frame.
type Envelope struct {
	Origin       string          `json:"origin"`
	TargetOrigin string          `json:"targetOrigin"`
	Message      message.Message `json:"message"`
}

// Config holds connection settings.
type Config struct {
	// Origin is the origin this end reports as the sender of its messages
	// and the origin it accepts targeted messages for.
	Origin string

	// WriteTimeout for write operations.
	WriteTimeout time.Duration

	// MaxMessageSize limits incoming frame size.
	MaxMessageSize int64

	// PingInterval for keepalive pings (0 = disabled).
	PingInterval time.Duration
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig(origin string) Config {
	return Config{
		Origin:         origin,
		WriteTimeout:   10 * time.Second,
		MaxMessageSize: 1024 * 1024,
		PingInterval:   30 * time.Second,
	}
}

// Conn is one end of a bridge.
type Conn struct {
	conn *websocket.Conn
	cfg  Config
	hub  *channel.Hub

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

var _ channel.Window = (*Conn)(nil)
var _ channel.Source = (*Conn)(nil)

// NewConn wraps an established WebSocket connection.
func NewConn(conn *websocket.Conn, cfg Config) *Conn {
	if conn == nil {
		panic("wsbridge: connection is required")
	}
	if cfg.Origin == "" {
		panic("wsbridge: origin is required")
	}
	if cfg.MaxMessageSize > 0 {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}
	return &Conn{
		conn: conn,
		cfg:  cfg,
		hub:  channel.NewHub(),
		done: make(chan struct{}),
	}
}

// Dial connects to a bridge endpoint.
func Dial(ctx context.Context, url string, cfg Config) (*Conn, error) {
	header := http.Header{}
	header.Set("Origin", cfg.Origin)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("wsbridge: dial %s: %w", url, err)
	}
	return NewConn(conn, cfg), nil
}

// NewUpgrader creates an upgrader accepting bridge connections from the
// given browser origins. With no origins every request is accepted.
func NewUpgrader(allowedOrigins ...string) *websocket.Upgrader {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowed) == 0 {
				return true
			}
			_, ok := allowed[r.Header.Get("Origin")]
			return ok
		},
	}
}

// Accept upgrades r and wraps the resulting connection.
func Accept(w http.ResponseWriter, r *http.Request, upgrader *websocket.Upgrader, cfg Config) (*Conn, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("wsbridge: upgrade: %w", err)
	}
	return NewConn(conn, cfg), nil
}

// Origin is the local origin of this end.
func (c *Conn) Origin() string {
	return c.cfg.Origin
}

// PostMessage writes msg to the peer. The peer drops messages whose target
// origin is neither AnyOrigin nor its own origin.
func (c *Conn) PostMessage(msg message.Message, targetOrigin string) error {
	frame, err := message.Canonical(Envelope{
		Origin:       c.cfg.Origin,
		TargetOrigin: targetOrigin,
		Message:      msg,
	})
	if err != nil {
		return fmt.Errorf("wsbridge: encode %s: %w", msg.Type, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.cfg.WriteTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
			return err
		}
	}
	return c.conn.WriteMessage(websocket.TextMessage, frame)
}

// Subscribe registers fn for messages received from the peer.
func (c *Conn) Subscribe(fn func(channel.Event)) func() {
	return c.hub.Subscribe(fn)
}

// Run reads frames until the connection fails, ctx is done or Close is
// called. Received messages are dispatched on the calling goroutine.
func (c *Conn) Run(ctx context.Context) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-c.done:
		case <-stop:
		}
	}()
	go c.pingLoop(stop)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if c.isClosed() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("wsbridge: read: %w", err)
		}
		env, err := parseEnvelope(data)
		if err != nil {
			continue
		}
		if env.TargetOrigin != AnyOrigin && env.TargetOrigin != c.cfg.Origin {
			continue
		}
		c.hub.Dispatch(channel.Event{Origin: env.Origin, Source: c, Message: env.Message})
	}
}

func parseEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, err
	}
	if env.Message.Type == "" {
		return Envelope{}, message.ErrEmptyType
	}
	return env, nil
}

func (c *Conn) pingLoop(stop <-chan struct{}) {
	if c.cfg.PingInterval <= 0 {
		return
	}
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-c.done:
			return
		case <-ticker.C:
			c.mu.Lock()
			if !c.closed {
				_ = c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second))
			}
			c.mu.Unlock()
		}
	}
}

func (c *Conn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close sends a close frame and closes the connection. It is safe to call
// more than once.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	_ = c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	c.mu.Unlock()
	return c.conn.Close()
}
