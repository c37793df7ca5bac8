package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sumup/checkout/channel"
	"github.com/sumup/checkout/message"
)

func TestNewValidation(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		intentType IntentType
		intentID   string
		opts       []Option
		wantParam  string
	}{
		"missing intent id": {
			intentType: IntentPayment,
			wantParam:  "intentId",
		},
		"unknown intent type": {
			intentType: "refund",
			intentID:   "intent_1",
			wantParam:  "intentType",
		},
		"unknown environment": {
			intentType: IntentPayment,
			intentID:   "intent_1",
			opts:       []Option{WithEnvironment("staging")},
			wantParam:  "environment",
		},
		"non http base url": {
			intentType: IntentPayout,
			intentID:   "intent_1",
			opts:       []Option{WithBaseURL("ftp://checkout.example.com")},
			wantParam:  "baseUrl",
		},
		"namespace with separator": {
			intentType: IntentPayment,
			intentID:   "intent_1",
			opts:       []Option{WithNamespace("sdk:v2")},
			wantParam:  "namespace",
		},
		"unknown sandbox token": {
			intentType: IntentPayment,
			intentID:   "intent_1",
			opts:       []Option{WithSandboxAttributes("allow-scripts", "allow-everything")},
			wantParam:  "sandbox[1]",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := New(newFakeHost(), tt.intentType, tt.intentID, tt.opts...)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
			var sdkErr *Error
			if !errors.As(err, &sdkErr) {
				t.Fatalf("expected *Error, got %T", err)
			}
			if sdkErr.Param == nil || *sdkErr.Param != tt.wantParam {
				t.Fatalf("param = %v, want %q", sdkErr.Param, tt.wantParam)
			}
			if sdkErr.Type != InvalidRequest {
				t.Fatalf("type = %q, want %q", sdkErr.Type, InvalidRequest)
			}
		})
	}
}

func TestNewMissingIntentMessage(t *testing.T) {
	t.Parallel()

	_, err := New(newFakeHost(), IntentPayment, "")
	if err == nil || err.Error() != "checkout: intentId is required" {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestRenderBuildsFrame(t *testing.T) {
	t.Parallel()

	host := newFakeHost()
	c, err := New(host, IntentPayment, "intent_1",
		WithLocale("de-AT"),
		WithSandboxAttributes("allow-scripts", "allow-same-origin"),
		WithOnDimensionsChange(func(message.Dimensions) {}),
	)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if got := c.State(); got != StateUnmounted {
		t.Fatalf("state = %s, want unmounted", got)
	}
	if err := c.Render("#checkout"); err != nil {
		t.Fatalf("render: %v", err)
	}
	if got := c.State(); got != StateMounting {
		t.Fatalf("state = %s, want mounting", got)
	}

	f := host.frame(t, 0)
	if f.selector != "#checkout" {
		t.Fatalf("selector = %q", f.selector)
	}
	if !strings.HasPrefix(f.spec.Src, testCheckoutOrigin+"/payment/intent_1?") {
		t.Fatalf("src = %q", f.spec.Src)
	}
	if !strings.HasPrefix(f.spec.Name, "sumup-checkout-") {
		t.Fatalf("frame name = %q", f.spec.Name)
	}
	if f.spec.Hidden {
		t.Fatal("checkout frame must be visible")
	}
	if got := f.spec.SandboxAttr(); got != "allow-scripts allow-same-origin" {
		t.Fatalf("sandbox = %q", got)
	}

	q := f.query(t)
	want := map[string]string{
		"sdk":                "true",
		"parent":             testHostOrigin,
		"version":            Version,
		"lang":               "de",
		"onDimensionsChange": "true",
	}
	for k, v := range want {
		if got := q.Get(k); got != v {
			t.Errorf("query %s = %q, want %q", k, got, v)
		}
	}
	if q.Has("sandbox") {
		t.Error("production embed must not carry the sandbox flag")
	}
}

func TestRenderSandboxEnvironment(t *testing.T) {
	t.Parallel()

	host := newFakeHost()
	c, err := New(host, IntentPayout, "po_1", WithEnvironment(Sandbox))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := c.Render("#checkout"); err != nil {
		t.Fatalf("render: %v", err)
	}
	f := host.frame(t, 0)
	if !strings.HasPrefix(f.spec.Src, "https://checkout.sandbox.sumup.com/payout/po_1?") {
		t.Fatalf("src = %q", f.spec.Src)
	}
	q := f.query(t)
	if q.Get("sandbox") != "true" {
		t.Fatalf("sandbox = %q, want true", q.Get("sandbox"))
	}
	if q.Has("onDimensionsChange") {
		t.Fatal("onDimensionsChange must be omitted without a callback")
	}
}

func TestRenderErrors(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		selector string
		want     error
	}{
		"empty selector":  {selector: " ", want: ErrInvalidConfig},
		"missing element": {selector: "#missing", want: ErrContainerNotFound},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			host := newFakeHost()
			host.missing["#missing"] = true
			c, err := New(host, IntentPayment, "intent_1")
			if err != nil {
				t.Fatalf("new: %v", err)
			}
			if err := c.Render(tt.selector); !errors.Is(err, tt.want) {
				t.Fatalf("render error = %v, want %v", err, tt.want)
			}
			if host.hub.Len() != 0 {
				t.Fatalf("failed render left %d subscriptions", host.hub.Len())
			}
		})
	}
}

func TestHandshakeRepliesWithConfig(t *testing.T) {
	t.Parallel()

	host := newFakeHost()
	c, err := New(host, IntentPayment, "intent_1", WithStyle(Style{"primaryColor": "#000"}))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := c.Render("#checkout"); err != nil {
		t.Fatalf("render: %v", err)
	}

	host.emit(testCheckoutOrigin, "sdk:init", "")

	f := host.frame(t, 0)
	reply := f.next(t)
	if reply.msg.Type != "sdk:init" {
		t.Fatalf("reply type = %q", reply.msg.Type)
	}
	if reply.target != testCheckoutOrigin {
		t.Fatalf("reply target = %q", reply.target)
	}
	var data initReply
	if err := reply.msg.DecodeData(&data); err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	if data.Headless || data.Style["primaryColor"] != "#000" {
		t.Fatalf("unexpected reply %+v", data)
	}
	if got := c.State(); got != StateReady {
		t.Fatalf("state = %s, want ready", got)
	}
}

func TestCallbacks(t *testing.T) {
	t.Parallel()

	var (
		mu        sync.Mutex
		completed []string
		failed    []string
		dims      []message.Dimensions
	)
	host := newFakeHost()
	c, err := New(host, IntentPayment, "intent_1",
		WithOnComplete(func(p json.RawMessage) {
			mu.Lock()
			completed = append(completed, string(p))
			mu.Unlock()
		}),
		WithOnFail(func(p json.RawMessage) {
			mu.Lock()
			failed = append(failed, string(p))
			mu.Unlock()
		}),
		WithOnDimensionsChange(func(d message.Dimensions) {
			mu.Lock()
			dims = append(dims, d)
			mu.Unlock()
		}),
	)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := c.Render("#checkout"); err != nil {
		t.Fatalf("render: %v", err)
	}

	host.emit(testCheckoutOrigin, message.TypeComplete, `{"id":"tx_1"}`)
	host.emit(testCheckoutOrigin, message.TypeFail, `{"reason":"declined"}`)
	host.emit(testCheckoutOrigin, message.TypeDimensionsChange, `{"width":320,"height":480}`)
	host.emit(testCheckoutOrigin, "somethingElse", `{}`)
	host.emit("https://evil.example.com", message.TypeComplete, `{"id":"forged"}`)

	mu.Lock()
	defer mu.Unlock()
	if len(completed) != 1 || completed[0] != `{"id":"tx_1"}` {
		t.Fatalf("completed = %v", completed)
	}
	if len(failed) != 1 || failed[0] != `{"reason":"declined"}` {
		t.Fatalf("failed = %v", failed)
	}
	if len(dims) != 1 || dims[0] != (message.Dimensions{Width: 320, Height: 480}) {
		t.Fatalf("dimensions = %v", dims)
	}
}

func TestSetLocaleWaitsForInit(t *testing.T) {
	t.Parallel()

	host := newFakeHost()
	c, err := New(host, IntentPayment, "intent_1")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := c.Render("#checkout"); err != nil {
		t.Fatalf("render: %v", err)
	}
	f := host.frame(t, 0)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- c.SetLocale(ctx, "fr") }()

	f.expectNothing(t)
	host.emit(testCheckoutOrigin, "sdk:init", "")

	if got := f.next(t).msg.Type; got != "sdk:init" {
		t.Fatalf("first message = %q, want handshake reply", got)
	}
	change := f.next(t)
	if change.msg.Type != message.TypeChangeLanguage {
		t.Fatalf("second message = %q", change.msg.Type)
	}
	if string(change.msg.Data) != `{"lang":"fr"}` {
		t.Fatalf("changeLanguage data = %s", change.msg.Data)
	}
	if err := <-errc; err != nil {
		t.Fatalf("set locale: %v", err)
	}
}

func TestSetLocaleUnsupportedFallsBack(t *testing.T) {
	t.Parallel()

	logger, logs := testLogger()
	host := newFakeHost()
	c, err := New(host, IntentPayment, "intent_1", WithLogger(logger))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := c.Render("#checkout"); err != nil {
		t.Fatalf("render: %v", err)
	}
	host.emit(testCheckoutOrigin, "sdk:init", "")
	f := host.frame(t, 0)
	f.next(t)

	if err := c.SetLocale(context.Background(), "tlh"); err != nil {
		t.Fatalf("set locale: %v", err)
	}
	if got := string(f.next(t).msg.Data); got != `{"lang":"en"}` {
		t.Fatalf("changeLanguage data = %s", got)
	}
	if !strings.Contains(logs.String(), "unsupported locale") {
		t.Fatalf("expected warning, got %q", logs.String())
	}
}

func TestGatedCallsBeforeRender(t *testing.T) {
	t.Parallel()

	c, err := New(newFakeHost(), IntentPayment, "intent_1")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := c.SetLocale(context.Background(), "de"); !errors.Is(err, ErrNotRendered) {
		t.Fatalf("set locale error = %v", err)
	}
	if err := c.AbortService(context.Background()); !errors.Is(err, ErrNotRendered) {
		t.Fatalf("abort error = %v", err)
	}
}

func TestAbortServiceWaitsForInit(t *testing.T) {
	t.Parallel()

	host := newFakeHost()
	c, err := New(host, IntentPayment, "intent_1")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := c.Render("#checkout"); err != nil {
		t.Fatalf("render: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := c.AbortService(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("abort before init = %v, want deadline", err)
	}
	if host.hub.Len() != 1 {
		t.Fatalf("channel detached before init")
	}

	host.emit(testCheckoutOrigin, "sdk:init", "")
	if err := c.AbortService(context.Background()); err != nil {
		t.Fatalf("abort: %v", err)
	}
	if host.hub.Len() != 0 {
		t.Fatalf("subscriptions after abort = %d", host.hub.Len())
	}
	if got := c.State(); got != StateTornDown {
		t.Fatalf("state = %s, want torn_down", got)
	}
}

func TestRerenderDetachesPreviousChannel(t *testing.T) {
	t.Parallel()

	var (
		mu    sync.Mutex
		count int
	)
	host := newFakeHost()
	c, err := New(host, IntentPayment, "intent_1", WithOnComplete(func(json.RawMessage) {
		mu.Lock()
		count++
		mu.Unlock()
	}))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := c.Render("#checkout"); err != nil {
		t.Fatalf("first render: %v", err)
	}
	host.emit(testCheckoutOrigin, "sdk:init", "")
	if err := c.Render("#checkout"); err != nil {
		t.Fatalf("second render: %v", err)
	}
	if got := c.State(); got != StateMounting {
		t.Fatalf("state after rerender = %s, want mounting", got)
	}
	if host.hub.Len() != 1 {
		t.Fatalf("subscriptions = %d, want 1", host.hub.Len())
	}

	host.emit(testCheckoutOrigin, message.TypeComplete, `{}`)
	mu.Lock()
	defer mu.Unlock()
	if count != 1 {
		t.Fatalf("onComplete invoked %d times, want 1", count)
	}
}

func TestFailedRerenderClearsRender(t *testing.T) {
	t.Parallel()

	host := newFakeHost()
	c, err := New(host, IntentPayment, "intent_1")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := c.Render("#checkout"); err != nil {
		t.Fatalf("first render: %v", err)
	}
	host.emit(testCheckoutOrigin, "sdk:init", "")

	host.missing["#gone"] = true
	if err := c.Render("#gone"); !errors.Is(err, ErrContainerNotFound) {
		t.Fatalf("render error = %v, want ErrContainerNotFound", err)
	}
	if got := c.State(); got != StateUnmounted {
		t.Fatalf("state = %s, want unmounted", got)
	}
	if host.hub.Len() != 0 {
		t.Fatalf("subscriptions = %d, want 0", host.hub.Len())
	}
	if err := c.SetLocale(context.Background(), "de"); !errors.Is(err, ErrNotRendered) {
		t.Fatalf("set locale error = %v, want ErrNotRendered", err)
	}
	if err := c.AbortService(context.Background()); !errors.Is(err, ErrNotRendered) {
		t.Fatalf("abort error = %v, want ErrNotRendered", err)
	}
}

func TestRerenderUsesFreshGate(t *testing.T) {
	t.Parallel()

	host := newFakeHost()
	c, err := New(host, IntentPayment, "intent_1")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := c.Render("#a"); err != nil {
		t.Fatalf("first render: %v", err)
	}
	host.emit(testCheckoutOrigin, "sdk:init", "")
	if err := c.Render("#b"); err != nil {
		t.Fatalf("second render: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := c.SetLocale(ctx, "de"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("set locale on unready render = %v, want deadline", err)
	}
	if n := host.frame(t, 1).sentCount(); n != 0 {
		t.Fatalf("second frame received %d messages before init", n)
	}
}

func TestCloseIdempotent(t *testing.T) {
	t.Parallel()

	host := newFakeHost()
	c, err := New(host, IntentPayment, "intent_1")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	c.Close()
	if got := c.State(); got != StateTornDown {
		t.Fatalf("state = %s, want torn_down", got)
	}
	if err := c.Render("#checkout"); err != nil {
		t.Fatalf("render: %v", err)
	}
	c.Close()
	c.Close()
	if host.hub.Len() != 0 {
		t.Fatalf("subscriptions after close = %d", host.hub.Len())
	}
	host.emit(testCheckoutOrigin, "sdk:init", "")
	if n := host.frame(t, 0).sentCount(); n != 0 {
		t.Fatalf("closed embed replied to %d messages", n)
	}
}

func TestNilHostPanics(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	_, _ = New(nil, IntentPayment, "intent_1")
}

func TestWithPopupSizePanics(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	WithPopupSize(0, 100)
}

var _ channel.Window = (*fakeFrame)(nil)
