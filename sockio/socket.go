// Copyright 2024 The reccaster Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package sockio provides the blocking socket primitives reccaster's driver
// is built on: a fixed-size recv/send vocabulary over net.Conn, every call
// bounded by a per-Conn timeout and cancellable mid-flight through a shared
// Waker. It is the Go-native stand-in for spec.md §4.1's InterruptibleSocket,
// grounded on the deadline-juggling connections in
// tools/net/sshutil/client.go and the reuse-port listener in mdns.go.
package sockio

import (
	"context"
	"errors"
	"io"
	"net"
	"time"
)

// NoTimeout disables the per-call deadline, leaving only the Waker able to
// unblock an outstanding call. Used during the UDP discovery wait, which
// spec.md §4.3.1 says blocks until a candidate arrives or shutdown.
const NoTimeout time.Duration = 0

// Conn is a stream connection (TCP, in practice) whose blocking operations
// are all bounded by timeout and cancellable via waker.
type Conn struct {
	conn       net.Conn
	waker      *Waker
	unregister func()
	timeout    time.Duration
}

// Dial connects to addr over network ("tcp", typically), bounded by timeout
// and cancellable via waker. A zero timeout means no per-call deadline; the
// dial can still be aborted by waker.
func Dial(waker *Waker, network, addr string, timeout time.Duration) (*Conn, error) {
	ctx := waker.Context()
	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	var d net.Dialer
	raw, err := d.DialContext(ctx, network, addr)
	if err != nil {
		return nil, translate(waker, err)
	}
	c := &Conn{conn: raw, waker: waker, timeout: timeout}
	c.unregister = waker.register(raw)
	return c, nil
}

// SetTimeout changes the per-call deadline applied to subsequent
// operations on c. A zero duration disables it.
func (c *Conn) SetTimeout(d time.Duration) { c.timeout = d }

func (c *Conn) deadline() time.Time {
	if c.timeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(c.timeout)
}

// RecvExact reads exactly len(buf) bytes. A clean close of the connection
// before any byte of buf arrives is reported as ErrClosed; a close after
// some but not all bytes arrive is reported as ErrMidFrameClose and must
// never be confused with a clean disconnect (§4.1).
func (c *Conn) RecvExact(buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		c.conn.SetReadDeadline(c.deadline())
		m, err := c.conn.Read(buf[n:])
		n += m
		if err != nil {
			if errors.Is(err, io.EOF) {
				if n == 0 {
					return 0, ErrClosed
				}
				return n, ErrMidFrameClose
			}
			return n, translate(c.waker, err)
		}
	}
	return n, nil
}

// RecvDiscard reads and discards exactly n bytes, the same clean-close
// convention as RecvExact.
func (c *Conn) RecvDiscard(n int) error {
	var scratch [64]byte
	discarded := 0
	for n > 0 {
		chunk := len(scratch)
		if n < chunk {
			chunk = n
		}
		got, err := c.RecvExact(scratch[:chunk])
		n -= got
		discarded += got
		if err != nil {
			if errors.Is(err, ErrClosed) && discarded > 0 {
				return ErrMidFrameClose
			}
			return err
		}
	}
	return nil
}

// SendAll writes every byte of buf, looping over short writes. A zero-byte
// write with no error before any byte has been sent indicates the peer has
// gone away and is reported as ErrClosed.
func (c *Conn) SendAll(buf []byte) error {
	n := 0
	for n < len(buf) {
		c.conn.SetWriteDeadline(c.deadline())
		m, err := c.conn.Write(buf[n:])
		n += m
		if err != nil {
			return translate(c.waker, err)
		}
		if m == 0 {
			if n == 0 {
				return ErrClosed
			}
			return ErrMidFrameClose
		}
	}
	return nil
}

// Close releases the underlying connection and deregisters it from the
// Waker. Safe to call more than once.
func (c *Conn) Close() error {
	if c.unregister != nil {
		c.unregister()
		c.unregister = nil
	}
	return c.conn.Close()
}

// RemoteAddr returns the address of the connected peer.
func (c *Conn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

// translate normalizes a net/context error into the sockio vocabulary:
// any timeout, whether from a real deadline or from the Waker firing, is
// surfaced identically as ErrTimeout.
func translate(waker *Waker, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}
	if waker.Fired() {
		return ErrTimeout
	}
	return err
}
