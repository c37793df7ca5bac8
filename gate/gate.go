// Package gate provides a one-shot synchronisation primitive: a value that
// is settled at most once, by whoever resolves or rejects it first, and that
// any number of callers can wait on.
package gate

import (
	"context"
	"sync"
)

// Gate is settled exactly once. Later Resolve and Reject calls are no-ops.
// The zero value is not usable; create gates with [New].
type Gate[T any] struct {
	once  sync.Once
	done  chan struct{}
	value T
	err   error
}

// Ready gates work on a remote endpoint announcing it is initialised.
type Ready = Gate[struct{}]

// New creates an unsettled gate.
func New[T any]() *Gate[T] {
	return &Gate[T]{done: make(chan struct{})}
}

// NewReady creates an unsettled readiness gate.
func NewReady() *Ready {
	return New[struct{}]()
}

// Resolve settles the gate with v. It reports whether this call settled it.
func (g *Gate[T]) Resolve(v T) bool {
	settled := false
	g.once.Do(func() {
		g.value = v
		close(g.done)
		settled = true
	})
	return settled
}

// Reject settles the gate with err. It reports whether this call settled it.
func (g *Gate[T]) Reject(err error) bool {
	settled := false
	g.once.Do(func() {
		g.err = err
		close(g.done)
		settled = true
	})
	return settled
}

// Done is closed once the gate is settled.
func (g *Gate[T]) Done() <-chan struct{} {
	return g.done
}

// Settled reports whether the gate has been resolved or rejected.
func (g *Gate[T]) Settled() bool {
	select {
	case <-g.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the gate settles or ctx is done. A gate that is never
// settled only returns through ctx.
func (g *Gate[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-g.done:
		return g.value, g.err
	default:
	}
	select {
	case <-g.done:
		return g.value, g.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
