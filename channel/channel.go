// Package channel implements the messaging channel between the host page and
// one remote browsing context.
//
// A Channel owns the remote window handle, the origin that window is
// expected to speak from, and an ordered list of listeners. Inbound messages
// from any other origin are dropped before a listener sees them.
package channel

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/sumup/checkout/message"
)

// Common errors.
var (
	ErrClosed        = errors.New("channel: aborted")
	ErrNoSource      = errors.New("channel: message source is required")
	ErrNoTarget      = errors.New("channel: target window is required")
	ErrInvalidOrigin = errors.New("channel: target origin is required")
)

// Window is a remote browsing context that accepts posted messages.
type Window interface {
	PostMessage(msg message.Message, targetOrigin string) error
}

// WindowFunc lifts bare functions into [Window].
type WindowFunc func(msg message.Message, targetOrigin string) error

// PostMessage delegates to the wrapped function.
func (f WindowFunc) PostMessage(msg message.Message, targetOrigin string) error {
	return f(msg, targetOrigin)
}

// Event is one inbound cross-document message.
type Event struct {
	// Origin of the sending document, e.g. https://checkout.example.com.
	Origin string
	// Source is the sending window when the platform exposes it.
	Source  Window
	Message message.Message
}

// Source is the process-wide inbound message event a channel attaches to.
type Source interface {
	Subscribe(fn func(Event)) (unsubscribe func())
}

// Listener receives inbound events. reply posts back over the same channel.
type Listener func(ev Event, reply func(message.Message) error)

// ListenerID identifies one registration made with [Channel.OnReceive].
type ListenerID uint64

type registration struct {
	id      ListenerID
	fn      Listener
	removed atomic.Bool
}

// Channel is a fire-and-forget messaging link to one remote window.
type Channel struct {
	target Window
	origin string

	mu          sync.Mutex
	listeners   []*registration
	nextID      ListenerID
	unsubscribe func()
	aborted     bool
}

// New attaches a channel to src. Only events whose origin equals
// targetOrigin reach the channel's listeners.
func New(src Source, target Window, targetOrigin string) (*Channel, error) {
	if src == nil {
		return nil, ErrNoSource
	}
	if target == nil {
		return nil, ErrNoTarget
	}
	if targetOrigin == "" {
		return nil, ErrInvalidOrigin
	}
	c := &Channel{
		target: target,
		origin: targetOrigin,
	}
	c.unsubscribe = src.Subscribe(c.handle)
	return c, nil
}

// Origin returns the configured target origin.
func (c *Channel) Origin() string {
	return c.origin
}

// Send posts msg to the target window scoped to the target origin.
func (c *Channel) Send(msg message.Message) error {
	c.mu.Lock()
	aborted := c.aborted
	c.mu.Unlock()
	if aborted {
		return ErrClosed
	}
	return c.target.PostMessage(msg, c.origin)
}

// OnReceive registers fn. The same function may be registered more than
// once; each registration is invoked separately in insertion order.
func (c *Channel) OnReceive(fn Listener) ListenerID {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	c.listeners = append(c.listeners, &registration{id: c.nextID, fn: fn})
	return c.nextID
}

// RemoveListener removes a registration. Unknown ids are ignored.
func (c *Channel) RemoveListener(id ListenerID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, reg := range c.listeners {
		if reg.id == id {
			reg.removed.Store(true)
			c.listeners = append(c.listeners[:i], c.listeners[i+1:]...)
			return
		}
	}
}

// AbortService detaches the channel from its source. It is idempotent;
// after it returns no listener is invoked again and Send fails.
func (c *Channel) AbortService() {
	c.mu.Lock()
	if c.aborted {
		c.mu.Unlock()
		return
	}
	c.aborted = true
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// Aborted reports whether AbortService has been called.
func (c *Channel) Aborted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aborted
}

func (c *Channel) handle(ev Event) {
	if ev.Origin != c.origin {
		return
	}
	c.mu.Lock()
	if c.aborted {
		c.mu.Unlock()
		return
	}
	regs := make([]*registration, len(c.listeners))
	copy(regs, c.listeners)
	c.mu.Unlock()

	for _, reg := range regs {
		if reg.removed.Load() {
			continue
		}
		reg.fn(ev, c.Send)
	}
}
