//go:build js && wasm

// Package jshost implements [checkout.Host] on the browser DOM for programs
// compiled with GOOS=js GOARCH=wasm.
package jshost

import (
	"errors"
	"fmt"
	"sync"
	"syscall/js"

	"github.com/sumup/checkout"
	"github.com/sumup/checkout/channel"
	"github.com/sumup/checkout/message"
)

// Host is the current browser window.
type Host struct {
	global   js.Value
	hub      *channel.Hub
	listener js.Func

	once sync.Once
}

var _ checkout.Host = (*Host)(nil)

// New attaches a single message listener to the global window. Call
// Release when the SDK is no longer used.
func New() *Host {
	h := &Host{
		global: js.Global(),
		hub:    channel.NewHub(),
	}
	h.listener = js.FuncOf(func(_ js.Value, args []js.Value) any {
		if len(args) == 0 {
			return nil
		}
		h.onMessage(args[0])
		return nil
	})
	h.global.Call("addEventListener", "message", h.listener)
	return h
}

func (h *Host) onMessage(ev js.Value) {
	msg, err := decodeData(h.global, ev.Get("data"))
	if err != nil {
		return
	}
	var source channel.Window
	if src := ev.Get("source"); src.Truthy() {
		source = &window{global: h.global, ref: src}
	}
	h.hub.Dispatch(channel.Event{
		Origin:  ev.Get("origin").String(),
		Source:  source,
		Message: msg,
	})
}

// decodeData accepts both structured-clone objects and JSON strings.
func decodeData(global, data js.Value) (message.Message, error) {
	switch data.Type() {
	case js.TypeString:
		return message.Parse([]byte(data.String()))
	case js.TypeObject:
		raw := global.Get("JSON").Call("stringify", data).String()
		return message.Parse([]byte(raw))
	default:
		return message.Message{}, errors.New("jshost: unsupported message data")
	}
}

// Release detaches the message listener.
func (h *Host) Release() {
	h.once.Do(func() {
		h.global.Call("removeEventListener", "message", h.listener)
		h.listener.Release()
	})
}

// Subscribe registers fn for every message event delivered to the window.
func (h *Host) Subscribe(fn func(channel.Event)) func() {
	return h.hub.Subscribe(fn)
}

// Origin is location.origin.
func (h *Host) Origin() string {
	return h.global.Get("location").Get("origin").String()
}

// MountFrame replaces the children of the selected element with an iframe.
func (h *Host) MountFrame(selector string, spec checkout.FrameSpec) (channel.Window, error) {
	doc := h.global.Get("document")
	container := doc.Call("querySelector", selector)
	if !container.Truthy() {
		return nil, fmt.Errorf("%w: %s", checkout.ErrContainerNotFound, selector)
	}

	frame := doc.Call("createElement", "iframe")
	frame.Set("src", spec.Src)
	frame.Set("name", spec.Name)
	frame.Set("title", spec.Title)
	if len(spec.Sandbox) > 0 {
		frame.Call("setAttribute", "sandbox", spec.SandboxAttr())
	}
	if spec.Allow != "" {
		frame.Call("setAttribute", "allow", spec.Allow)
	}
	style := frame.Get("style")
	style.Set("border", "0")
	style.Set("width", "100%")
	if spec.Hidden {
		style.Set("display", "none")
	}

	container.Call("replaceChildren", frame)
	return &window{global: h.global, ref: frame.Get("contentWindow")}, nil
}

// OpenWindow calls window.open. A null result means the popup was blocked.
func (h *Host) OpenWindow(url string, features checkout.WindowFeatures) (channel.Window, error) {
	ref := h.global.Call("open", url, features.Name, features.String())
	if !ref.Truthy() {
		return nil, checkout.ErrPopupBlocked
	}
	return &window{global: h.global, ref: ref}, nil
}

// Navigate assigns location.
func (h *Host) Navigate(url string) error {
	h.global.Get("location").Call("assign", url)
	return nil
}

// Viewport is the outer window rectangle on screen.
func (h *Host) Viewport() checkout.Rect {
	return checkout.Rect{
		X:      h.global.Get("screenX").Int(),
		Y:      h.global.Get("screenY").Int(),
		Width:  h.global.Get("outerWidth").Int(),
		Height: h.global.Get("outerHeight").Int(),
	}
}

// window is a WindowProxy of a frame, popup or event source.
type window struct {
	global js.Value
	ref    js.Value
}

func (w *window) PostMessage(msg message.Message, targetOrigin string) error {
	if !w.ref.Truthy() {
		return channel.ErrNoTarget
	}
	raw, err := message.Encode(msg)
	if err != nil {
		return err
	}
	data := w.global.Get("JSON").Call("parse", string(raw))
	w.ref.Call("postMessage", data, targetOrigin)
	return nil
}
