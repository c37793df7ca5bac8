package checkout

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/sumup/checkout/channel"
	"github.com/sumup/checkout/gate"
	"github.com/sumup/checkout/message"
	"github.com/sumup/checkout/rpc"
)

// State is the lifecycle position of an embed.
type State int

const (
	StateUnmounted State = iota
	StateMounting
	StateReady
	StateTornDown
)

func (s State) String() string {
	switch s {
	case StateUnmounted:
		return "unmounted"
	case StateMounting:
		return "mounting"
	case StateReady:
		return "ready"
	case StateTornDown:
		return "torn_down"
	default:
		return "unknown"
	}
}

// initReply is the host configuration sent back on the handshake.
type initReply struct {
	Headless bool  `json:"headless"`
	Style    Style `json:"style,omitempty"`
}

// renderState is everything owned by one mount of the frame.
type renderState struct {
	frameName string
	ch        *channel.Channel
	ready     *gate.Ready
}

// embed is the lifecycle shared by Checkout and Headless.
type embed struct {
	host     Host
	cfg      config
	headless bool

	mu      sync.Mutex
	state   State
	current *renderState
}

func newEmbed(host Host, cfg config, headless bool) *embed {
	if host == nil {
		panic("checkout: host is required")
	}
	return &embed{host: host, cfg: cfg, headless: headless}
}

func (e *embed) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// mount tears down the previous render and mounts a fresh frame into the
// element selector resolves to.
func (e *embed) mount(selector string) (*renderState, error) {
	if strings.TrimSpace(selector) == "" {
		return nil, newError(ErrInvalidConfig, "checkout: selector is required", withParam("selector"))
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.teardownLocked(StateUnmounted)
	e.current = nil

	src, err := e.cfg.embedURL(e.host.Origin())
	if err != nil {
		return nil, newError(ErrInvalidConfig, "checkout: build embed url", withCause(err))
	}
	origin, err := originOf(src)
	if err != nil {
		return nil, newError(ErrInvalidConfig, "checkout: resolve embed origin", withCause(err), withParam("baseUrl"))
	}

	e.state = StateMounting
	r := &renderState{
		frameName: "sumup-checkout-" + uuid.NewString(),
		ready:     gate.NewReady(),
	}
	win, err := e.host.MountFrame(selector, FrameSpec{
		Src:     src,
		Name:    r.frameName,
		Title:   "SumUp checkout",
		Sandbox: e.cfg.Sandbox,
		Allow:   "payment",
		Hidden:  e.headless,
	})
	if err != nil {
		e.state = StateUnmounted
		return nil, mountError(selector, err)
	}
	if win == nil {
		e.state = StateUnmounted
		return nil, newError(ErrContainerNotFound, "checkout: no element matches "+selector, withParam("selector"))
	}

	ch, err := channel.New(e.host, win, origin)
	if err != nil {
		e.state = StateUnmounted
		return nil, newError(ErrInvalidConfig, "checkout: open channel", withCause(err))
	}
	r.ch = ch

	rpc.ResolveOnInit(ch, r.ready, e.cfg.Namespace, func(_ channel.Event, reply func(message.Message) error) {
		msg, err := message.New(message.InitType(e.cfg.Namespace), initReply{Headless: e.headless, Style: e.cfg.style})
		if err == nil {
			err = reply(msg)
		}
		if err != nil {
			e.cfg.logger.Warn("checkout: handshake reply failed", slog.String("error", err.Error()))
		}
		e.markReady(r)
	})
	if !e.headless {
		ch.OnReceive(e.dispatch)
	}

	e.current = r
	return r, nil
}

func mountError(selector string, err error) error {
	var sdkErr *Error
	if errors.As(err, &sdkErr) {
		return err
	}
	return newError(ErrContainerNotFound, "checkout: mount frame into "+selector, withCause(err), withParam("selector"))
}

func (e *embed) markReady(r *renderState) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == r && e.state == StateMounting {
		e.state = StateReady
	}
}

// dispatch forwards steady-state events to the configured callbacks.
func (e *embed) dispatch(ev channel.Event, _ func(message.Message) error) {
	switch v := message.Decode(ev.Message, e.cfg.Namespace).(type) {
	case message.Complete:
		if e.cfg.onComplete != nil {
			e.cfg.onComplete(v.Payload)
		}
	case message.Fail:
		if e.cfg.onFail != nil {
			e.cfg.onFail(v.Payload)
		}
	case message.DimensionsChange:
		if e.cfg.onDimensionsChange != nil {
			e.cfg.onDimensionsChange(v.Dimensions)
		}
	}
}

func (e *embed) render() (*renderState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return nil, ErrNotRendered
	}
	return e.current, nil
}

// awaitReady blocks until the current render's handshake arrived.
func (e *embed) awaitReady(ctx context.Context) (*renderState, error) {
	r, err := e.render()
	if err != nil {
		return nil, err
	}
	if _, err := r.ready.Wait(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

func (e *embed) setLocale(ctx context.Context, locale string) error {
	lang := resolveLocale(locale, e.cfg.logger)

	e.mu.Lock()
	e.cfg.Locale = lang
	e.mu.Unlock()

	r, err := e.awaitReady(ctx)
	if err != nil {
		return err
	}
	msg, err := message.New(message.TypeChangeLanguage, map[string]string{"lang": lang})
	if err != nil {
		return err
	}
	return r.ch.Send(msg)
}

func (e *embed) abortService(ctx context.Context) error {
	r, err := e.awaitReady(ctx)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	r.ch.AbortService()
	if e.current == r {
		e.state = StateTornDown
	}
	return nil
}

func (e *embed) close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.teardownLocked(StateTornDown)
}

func (e *embed) teardownLocked(next State) {
	if e.current != nil {
		e.current.ch.AbortService()
		e.state = next
		return
	}
	if next == StateTornDown {
		e.state = StateTornDown
	}
}
