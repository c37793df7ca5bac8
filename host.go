package checkout

import (
	"strconv"
	"strings"

	"github.com/sumup/checkout/channel"
)

// Host is the page the SDK runs in. Implementations bridge to the DOM (see
// the jshost package) or to fakes in tests.
type Host interface {
	// Subscribe attaches to the page's inbound message event.
	channel.Source

	// Origin is the origin of the host page, e.g. https://shop.example.com.
	Origin() string

	// MountFrame creates an iframe described by spec and replaces the
	// children of the element selector resolves to. It returns an error
	// matching ErrContainerNotFound when nothing matches.
	MountFrame(selector string, spec FrameSpec) (channel.Window, error)

	// OpenWindow opens a new browsing context. A nil window or an error
	// matching ErrPopupBlocked means the browser refused.
	OpenWindow(url string, features WindowFeatures) (channel.Window, error)

	// Navigate replaces the current document with url.
	Navigate(url string) error

	// Viewport is the position and size of the host window.
	Viewport() Rect
}

// FrameSpec describes an iframe to mount.
type FrameSpec struct {
	Src     string
	Name    string
	Title   string
	Sandbox []string
	Allow   string
	Hidden  bool
}

// SandboxAttr renders the sandbox allow-list as an attribute value.
func (s FrameSpec) SandboxAttr() string {
	return strings.Join(s.Sandbox, " ")
}

// Rect is a screen rectangle in CSS pixels.
type Rect struct {
	X, Y          int
	Width, Height int
}

// WindowFeatures positions a popup window.
type WindowFeatures struct {
	Name   string
	Width  int
	Height int
	Left   int
	Top    int
}

// String renders the features argument of window.open.
func (f WindowFeatures) String() string {
	parts := []string{
		"width=" + strconv.Itoa(f.Width),
		"height=" + strconv.Itoa(f.Height),
		"left=" + strconv.Itoa(f.Left),
		"top=" + strconv.Itoa(f.Top),
		"popup=yes",
	}
	return strings.Join(parts, ",")
}

// centeredFeatures sizes a width x height window in the middle of vp.
func centeredFeatures(name string, vp Rect, width, height int) WindowFeatures {
	return WindowFeatures{
		Name:   name,
		Width:  width,
		Height: height,
		Left:   vp.X + (vp.Width-width)/2,
		Top:    vp.Y + (vp.Height-height)/2,
	}
}
