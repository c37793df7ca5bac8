package checkout

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/sumup/checkout/message"
	"github.com/sumup/checkout/rpc"
)

// Operation names understood by the headless bridge.
const (
	OpGetIntentDetails = "getIntentDetails"
)

// Headless mounts a hidden bridge frame and drives the intent through
// request/response calls instead of the hosted UI.
type Headless struct {
	e       *embed
	rpcOpts []rpc.Option

	mu sync.Mutex
	c  *rpc.Correlator
}

// HeadlessOption customises the RPC layer of a [Headless] handler.
type HeadlessOption func(*Headless)

// WithRPCOptions passes options to every correlator the handler creates.
func WithRPCOptions(opts ...rpc.Option) HeadlessOption {
	return func(h *Headless) {
		h.rpcOpts = append(h.rpcOpts, opts...)
	}
}

// NewHeadless prepares a headless handler. Results arrive through Request,
// so configuring WithOnComplete or WithOnFail is a programming error and
// panics.
func NewHeadless(host Host, intentType IntentType, intentID string, opts []Option, hopts ...HeadlessOption) (*Headless, error) {
	cfg, err := buildConfig(intentType, intentID, opts)
	if err != nil {
		return nil, err
	}
	if cfg.onComplete != nil || cfg.onFail != nil {
		panic("checkout: headless handlers do not accept completion callbacks")
	}
	h := &Headless{e: newEmbed(host, cfg, true)}
	for _, opt := range hopts {
		if opt == nil {
			continue
		}
		opt(h)
	}
	return h, nil
}

// Start mounts the hidden bridge frame. Requests issued before the bridge
// finished its handshake wait for it.
func (h *Headless) Start(selector string) error {
	r, err := h.e.mount(selector)
	h.mu.Lock()
	defer h.mu.Unlock()
	if err != nil {
		h.c = nil
		return err
	}
	h.c = rpc.New(r.ch, r.ready, h.rpcOpts...)
	return nil
}

func (h *Headless) correlator() (*rpc.Correlator, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.c == nil {
		return nil, ErrNotRendered
	}
	return h.c, nil
}

// Request calls operation on the bridge and returns the resolved payload.
// A rejected call returns an *rpc.RemoteError carrying the remote payload.
func (h *Headless) Request(ctx context.Context, operation string, payload any) (json.RawMessage, error) {
	c, err := h.correlator()
	if err != nil {
		return nil, err
	}
	if operation == "" {
		return nil, newError(ErrInvalidConfig, "checkout: operation is required", withParam("operation"))
	}
	return c.Request(ctx, h.api(operation), payload)
}

func (h *Headless) api(operation string) string {
	return message.OperationType(h.e.cfg.Namespace, operation)
}

// IntentDetails describes the intent the handler was created for.
type IntentDetails struct {
	ID       string          `json:"id"`
	Type     IntentType      `json:"type,omitempty"`
	Status   string          `json:"status,omitempty"`
	Amount   json.Number     `json:"amount,omitempty"`
	Currency string          `json:"currency,omitempty"`
	Extra    json.RawMessage `json:"metadata,omitempty"`
}

// GetIntentDetails fetches the intent from the bridge.
func (h *Headless) GetIntentDetails(ctx context.Context) (*IntentDetails, error) {
	c, err := h.correlator()
	if err != nil {
		return nil, err
	}
	var details IntentDetails
	req := map[string]string{"intentId": h.e.cfg.IntentID}
	if err := c.RequestInto(ctx, h.api(OpGetIntentDetails), req, &details); err != nil {
		return nil, err
	}
	return &details, nil
}

// SetLocale switches the bridge language once it is ready.
func (h *Headless) SetLocale(ctx context.Context, locale string) error {
	return h.e.setLocale(ctx, locale)
}

// AbortService stops listening to the bridge once it is ready.
func (h *Headless) AbortService(ctx context.Context) error {
	return h.e.abortService(ctx)
}

// Close detaches the bridge immediately. It is safe to call more than once.
func (h *Headless) Close() {
	h.e.close()
}

// State reports the lifecycle position of the bridge frame.
func (h *Headless) State() State {
	return h.e.State()
}
