// Package rpc correlates request messages sent over a [channel.Channel] with
// the responses the remote endpoint posts back.
//
// A call is a message whose type is the API name, e.g. "sdk:getIntentDetails".
// The remote answers with a message of the same type whose data carries a
// status tag and a payload:
//
//	{"type": "sdk:getIntentDetails", "data": {"status": "resolved", "payload": {...}}}
//
// Calls wait on a readiness gate before anything is sent, so they can be
// issued before the remote has finished loading.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/oapi-codegen/runtime"

	"github.com/sumup/checkout/channel"
	"github.com/sumup/checkout/gate"
	"github.com/sumup/checkout/message"
)

// Common errors.
var (
	ErrEmptyAPI         = errors.New("rpc: api is required")
	ErrPayloadNotObject = errors.New("rpc: payload must encode to a JSON object")
)

// RemoteError is a response whose status was not "resolved". Payload is the
// remote's payload, untouched.
type RemoteError struct {
	API     string
	Status  string
	Payload json.RawMessage
}

// Error makes *RemoteError satisfy the stdlib error interface.
func (e *RemoteError) Error() string {
	if len(e.Payload) == 0 {
		return fmt.Sprintf("rpc: %s: remote status %q", e.API, e.Status)
	}
	return fmt.Sprintf("rpc: %s: remote status %q: %s", e.API, e.Status, e.Payload)
}

// DecodePayload unmarshals the remote payload into v.
func (e *RemoteError) DecodePayload(v any) error {
	if len(e.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(e.Payload, v)
}

type config struct {
	requestIDs bool
}

// Option customises a [Correlator].
type Option func(*config)

// WithoutRequestIDs stops the correlator from stamping calls with a
// requestId, for remotes that reject unknown payload members. Concurrent
// calls sharing an API name may then settle on each other's responses.
func WithoutRequestIDs() Option {
	return func(cfg *config) {
		cfg.requestIDs = false
	}
}

// Correlator issues requests over one channel.
type Correlator struct {
	ch    *channel.Channel
	ready *gate.Ready
	cfg   config
	seq   atomic.Uint64
}

// New builds a correlator. Every request waits on ready before sending.
func New(ch *channel.Channel, ready *gate.Ready, opts ...Option) *Correlator {
	if ch == nil {
		panic("rpc: channel is required")
	}
	if ready == nil {
		panic("rpc: readiness gate is required")
	}
	cfg := config{requestIDs: true}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}
	return &Correlator{ch: ch, ready: ready, cfg: cfg}
}

// Request sends payload as api and returns the resolved payload. A response
// with any other status is returned as a *RemoteError. Cancelling ctx
// abandons the call; a late response is then ignored.
func (c *Correlator) Request(ctx context.Context, api string, payload any) (json.RawMessage, error) {
	if api == "" {
		return nil, ErrEmptyAPI
	}
	if _, err := c.ready.Wait(ctx); err != nil {
		return nil, err
	}

	id := c.seq.Add(1)
	data, err := c.encode(payload, id)
	if err != nil {
		return nil, fmt.Errorf("rpc: %s: %w", api, err)
	}

	settled := make(chan message.Result, 1)
	var (
		once       sync.Once
		listenerID atomic.Uint64
	)
	remove := func() {
		if lid := listenerID.Load(); lid != 0 {
			c.ch.RemoveListener(channel.ListenerID(lid))
		}
	}
	lid := c.ch.OnReceive(func(ev channel.Event, _ func(message.Message) error) {
		if ev.Message.Type != api {
			return
		}
		res := decodeResult(ev.Message)
		if c.cfg.requestIDs && res.RequestID != nil && *res.RequestID != id {
			return
		}
		once.Do(func() {
			remove()
			settled <- res
		})
	})
	listenerID.Store(uint64(lid))
	defer remove()

	if err := c.ch.Send(message.Message{Type: api, Data: data}); err != nil {
		return nil, fmt.Errorf("rpc: %s: send: %w", api, err)
	}

	select {
	case res := <-settled:
		if res.Resolved() {
			return res.Payload, nil
		}
		return nil, &RemoteError{API: api, Status: res.Status, Payload: res.Payload}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// RequestInto is Request followed by decoding the resolved payload into out.
func (c *Correlator) RequestInto(ctx context.Context, api string, payload, out any) error {
	raw, err := c.Request(ctx, api, payload)
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("rpc: %s: decode payload: %w", api, err)
	}
	return nil
}

func (c *Correlator) encode(payload any, id uint64) (json.RawMessage, error) {
	var data json.RawMessage
	switch p := payload.(type) {
	case nil:
		data = json.RawMessage(`{}`)
	case json.RawMessage:
		data = p
	default:
		b, err := json.Marshal(p)
		if err != nil {
			return nil, err
		}
		data = b
	}
	if !isObject(data) {
		return nil, ErrPayloadNotObject
	}
	if !c.cfg.requestIDs {
		return data, nil
	}
	patch, err := json.Marshal(struct {
		RequestID uint64 `json:"requestId"`
	}{id})
	if err != nil {
		return nil, err
	}
	return runtime.JSONMerge(data, patch)
}

func decodeResult(msg message.Message) message.Result {
	var res message.Result
	if err := msg.DecodeData(&res); err != nil {
		return message.Result{Payload: msg.Data}
	}
	return res
}

func isObject(raw json.RawMessage) bool {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		case '{':
			return true
		default:
			return false
		}
	}
	return false
}
