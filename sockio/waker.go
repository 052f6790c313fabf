// Copyright 2024 The reccaster Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package sockio

import (
	"context"
	"sync"
	"time"
)

// pastDeadline is used to force an in-flight blocking I/O call to return
// immediately, the same way the C implementation's wake descriptor becomes
// readable and is reported to the caller as a timeout.
var pastDeadline = time.Unix(0, 1)

type deadliner interface {
	SetDeadline(t time.Time) error
}

// Waker is the Go-native replacement for spec.md §4.1's wake descriptor: a
// shared cancellation signal that every blocking primitive in this package
// honors. Firing it (Wake) unblocks every outstanding and future blocking
// call registered against it, surfacing each as ErrTimeout — exactly the
// "wake-readable is surfaced as a timeout" behavior spec.md §4.1 and §9
// call for, and §I4 requires happen "within one scheduling quantum".
//
// Unlike the C implementation's socketpair, there is nothing to destroy:
// a Waker is just a context and a registry of live connections, both
// garbage collected normally. Wake is idempotent (§8 S4).
type Waker struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	fired  bool
	active map[deadliner]struct{}
}

// NewWaker returns a Waker that has not yet fired.
func NewWaker() *Waker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Waker{ctx: ctx, cancel: cancel, active: make(map[deadliner]struct{})}
}

// Wake cancels w's context (unblocking any in-progress Dial/ListenPacket)
// and forces every currently registered connection to return from its
// blocking call immediately. Safe to call more than once and from any
// goroutine.
func (w *Waker) Wake() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fired {
		return
	}
	w.fired = true
	w.cancel()
	for c := range w.active {
		c.SetDeadline(pastDeadline)
	}
}

// Fired reports whether Wake has been called.
func (w *Waker) Fired() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.fired
}

// Context returns a context.Context that is canceled when Wake is called.
// Useful for interrupting a plain timer wait (holdoff, error back-off) the
// same way Wake interrupts a blocking recv or send.
func (w *Waker) Context() context.Context {
	return w.ctx
}

// register adds c to the set of connections Wake will force a deadline on,
// applying that deadline immediately if w has already fired. The returned
// func removes c from the set and must be called when c is closed.
func (w *Waker) register(c deadliner) func() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.active[c] = struct{}{}
	if w.fired {
		c.SetDeadline(pastDeadline)
	}
	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		delete(w.active, c)
	}
}
