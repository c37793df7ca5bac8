package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/sumup/checkout/channel"
	"github.com/sumup/checkout/gate"
	"github.com/sumup/checkout/message"
)

// Outcome is how an external checkout flow ended.
type Outcome int

const (
	OutcomeComplete Outcome = iota + 1
	OutcomeFail
	// OutcomeUnknown settles a flow on a message that is neither a
	// completion nor a failure. WithStrictExternalMessages disables it.
	OutcomeUnknown
)

func (o Outcome) String() string {
	switch o {
	case OutcomeComplete:
		return "complete"
	case OutcomeFail:
		return "fail"
	case OutcomeUnknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// ExternalResult is the first recognised message of an external flow.
type ExternalResult struct {
	Outcome Outcome
	Payload json.RawMessage
	// Message is the message that settled the flow.
	Message message.Message
}

// ExternalFlow tracks a checkout shown in a popup window or after a full
// page navigation. It settles exactly once.
type ExternalFlow struct {
	cfg    config
	origin string
	result *gate.Gate[ExternalResult]

	mu          sync.Mutex
	unsubscribe func()
	window      channel.Window
}

// OpenPopup opens the checkout in a popup centred on the host viewport.
// It returns an error matching ErrPopupBlocked when the browser refuses.
func OpenPopup(host Host, intentType IntentType, intentID string, opts ...Option) (*ExternalFlow, error) {
	flow, src, err := newExternalFlow(host, intentType, intentID, opts)
	if err != nil {
		return nil, err
	}
	name := "sumup-checkout-" + uuid.NewString()
	features := centeredFeatures(name, host.Viewport(), flow.cfg.popupWidth, flow.cfg.popupHeight)
	win, err := host.OpenWindow(src, features)
	if err != nil || win == nil {
		flow.Close()
		if err == nil || !errors.Is(err, ErrPopupBlocked) {
			return nil, newError(ErrPopupBlocked, ErrPopupBlocked.Message, withCause(err))
		}
		return nil, err
	}
	flow.mu.Lock()
	flow.window = win
	flow.mu.Unlock()
	return flow, nil
}

// Redirect navigates the host page to the checkout. Messages posted back to
// the current window settle the returned flow.
func Redirect(host Host, intentType IntentType, intentID string, opts ...Option) (*ExternalFlow, error) {
	flow, src, err := newExternalFlow(host, intentType, intentID, opts)
	if err != nil {
		return nil, err
	}
	if err := host.Navigate(src); err != nil {
		flow.Close()
		return nil, newError(ErrInvalidConfig, "checkout: navigate to checkout", withCause(err))
	}
	return flow, nil
}

func newExternalFlow(host Host, intentType IntentType, intentID string, opts []Option) (*ExternalFlow, string, error) {
	if host == nil {
		panic("checkout: host is required")
	}
	cfg, err := buildConfig(intentType, intentID, opts)
	if err != nil {
		return nil, "", err
	}
	src, err := cfg.embedURL(host.Origin())
	if err != nil {
		return nil, "", newError(ErrInvalidConfig, "checkout: build embed url", withCause(err))
	}
	origin, err := originOf(src)
	if err != nil {
		return nil, "", newError(ErrInvalidConfig, "checkout: resolve embed origin", withCause(err), withParam("baseUrl"))
	}
	flow := &ExternalFlow{
		cfg:    cfg,
		origin: origin,
		result: gate.New[ExternalResult](),
	}
	flow.unsubscribe = host.Subscribe(flow.handle)
	return flow, src, nil
}

func (f *ExternalFlow) handle(ev channel.Event) {
	if ev.Origin != f.origin || f.result.Settled() {
		return
	}
	switch v := message.Decode(ev.Message, f.cfg.Namespace).(type) {
	case message.Init:
		f.replyInit(ev.Source)
	case message.Complete:
		f.settle(ExternalResult{Outcome: OutcomeComplete, Payload: v.Payload, Message: ev.Message})
	case message.Fail:
		f.settle(ExternalResult{Outcome: OutcomeFail, Payload: v.Payload, Message: ev.Message})
	case message.DimensionsChange:
		if f.cfg.onDimensionsChange != nil {
			f.cfg.onDimensionsChange(v.Dimensions)
		}
	default:
		if f.cfg.strictExternal {
			return
		}
		f.settle(ExternalResult{Outcome: OutcomeUnknown, Payload: ev.Message.Data, Message: ev.Message})
	}
}

func (f *ExternalFlow) replyInit(source channel.Window) {
	if source == nil {
		f.mu.Lock()
		source = f.window
		f.mu.Unlock()
	}
	if source == nil {
		return
	}
	msg, err := message.New(message.InitType(f.cfg.Namespace), initReply{Style: f.cfg.style})
	if err == nil {
		err = source.PostMessage(msg, f.origin)
	}
	if err != nil {
		f.cfg.logger.Warn("checkout: handshake reply failed", slog.String("error", err.Error()))
	}
}

func (f *ExternalFlow) settle(res ExternalResult) {
	if !f.result.Resolve(res) {
		return
	}
	f.detach()
	switch res.Outcome {
	case OutcomeComplete:
		if f.cfg.onComplete != nil {
			f.cfg.onComplete(res.Payload)
		}
	case OutcomeFail:
		if f.cfg.onFail != nil {
			f.cfg.onFail(res.Payload)
		}
	}
}

func (f *ExternalFlow) detach() {
	f.mu.Lock()
	unsubscribe := f.unsubscribe
	f.unsubscribe = nil
	f.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}

// Wait blocks until the flow settles or ctx is done.
func (f *ExternalFlow) Wait(ctx context.Context) (ExternalResult, error) {
	return f.result.Wait(ctx)
}

// Close stops listening. A pending Wait returns channel.ErrClosed.
func (f *ExternalFlow) Close() {
	f.detach()
	f.result.Reject(channel.ErrClosed)
}
