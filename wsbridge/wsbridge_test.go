package wsbridge

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sumup/checkout/channel"
	"github.com/sumup/checkout/gate"
	"github.com/sumup/checkout/message"
	"github.com/sumup/checkout/rpc"
)

const (
	hostOrigin   = "https://shop.example.com"
	remoteOrigin = "https://checkout.example.com"
)

func startPair(t *testing.T) (client, server *Conn) {
	t.Helper()

	accepted := make(chan *Conn, 1)
	upgrader := NewUpgrader()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := Accept(w, r, upgrader, DefaultConfig(remoteOrigin))
		if err != nil {
			t.Errorf("accept: %v", err)
			return
		}
		accepted <- conn
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	client, err := Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), DefaultConfig(hostOrigin))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	select {
	case server = <-accepted:
	case <-ctx.Done():
		t.Fatal("timeout waiting for server connection")
	}

	for _, c := range []*Conn{client, server} {
		go func() { _ = c.Run(ctx) }()
		t.Cleanup(func() { _ = c.Close() })
	}
	return client, server
}

func TestPostMessageDeliversWithSenderOrigin(t *testing.T) {
	t.Parallel()

	client, server := startPair(t)

	got := make(chan channel.Event, 1)
	server.Subscribe(func(ev channel.Event) { got <- ev })

	if err := client.PostMessage(message.MustNew("sdk:init", nil), remoteOrigin); err != nil {
		t.Fatalf("post: %v", err)
	}

	select {
	case ev := <-got:
		if ev.Origin != hostOrigin {
			t.Fatalf("origin = %q, want %q", ev.Origin, hostOrigin)
		}
		if ev.Message.Type != "sdk:init" {
			t.Fatalf("type = %q, want sdk:init", ev.Message.Type)
		}
		if ev.Source == nil {
			t.Fatal("expected event source")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestTargetOriginMismatchDropped(t *testing.T) {
	t.Parallel()

	client, server := startPair(t)

	got := make(chan channel.Event, 2)
	server.Subscribe(func(ev channel.Event) { got <- ev })

	if err := client.PostMessage(message.MustNew("dropped", nil), "https://other.example.com"); err != nil {
		t.Fatalf("post: %v", err)
	}
	if err := client.PostMessage(message.MustNew("delivered", nil), AnyOrigin); err != nil {
		t.Fatalf("post: %v", err)
	}

	select {
	case ev := <-got:
		if ev.Message.Type != "delivered" {
			t.Fatalf("type = %q, want delivered", ev.Message.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestRequestOverBridge(t *testing.T) {
	t.Parallel()

	client, server := startPair(t)

	// The remote end answers every getIntentDetails call from the host.
	server.Subscribe(func(ev channel.Event) {
		if ev.Origin != hostOrigin || ev.Message.Type != "sdk:getIntentDetails" {
			return
		}
		req, err := ev.Message.DataMap()
		if err != nil {
			t.Errorf("decode request: %v", err)
			return
		}
		resp := message.MustNew("sdk:getIntentDetails", map[string]any{
			"status":    "resolved",
			"payload":   map[string]any{"id": req["intentId"]},
			"requestId": req["requestId"],
		})
		if err := ev.Source.PostMessage(resp, hostOrigin); err != nil {
			t.Errorf("respond: %v", err)
		}
	})

	ch, err := channel.New(client, client, remoteOrigin)
	if err != nil {
		t.Fatalf("channel: %v", err)
	}
	defer ch.AbortService()

	ready := gate.NewReady()
	ready.Resolve(struct{}{})
	c := rpc.New(ch, ready)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var out struct {
		ID string `json:"id"`
	}
	if err := c.RequestInto(ctx, "sdk:getIntentDetails", map[string]string{"intentId": "abc"}, &out); err != nil {
		t.Fatalf("request: %v", err)
	}
	if out.ID != "abc" {
		t.Fatalf("id = %q, want abc", out.ID)
	}
}

func TestPostMessageAfterClose(t *testing.T) {
	t.Parallel()

	client, _ := startPair(t)
	if err := client.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if err := client.PostMessage(message.MustNew("late", nil), AnyOrigin); err != ErrClosed {
		t.Fatalf("err = %v, want ErrClosed", err)
	}
}

func TestParseEnvelope(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		frame   string
		wantErr bool
	}{
		"valid":        {frame: `{"origin":"https://a","targetOrigin":"*","message":{"type":"x"}}`},
		"missing type": {frame: `{"origin":"https://a","targetOrigin":"*","message":{}}`, wantErr: true},
		"not json":     {frame: `nope`, wantErr: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := parseEnvelope([]byte(tc.frame))
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}
