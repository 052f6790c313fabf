// Copyright 2024 The reccaster Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package sockio

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// PacketConn is a datagram socket (UDP, in practice) whose operations are
// bounded by timeout and cancellable via waker, mirroring Conn.
type PacketConn struct {
	conn       net.PacketConn
	waker      *Waker
	unregister func()
	timeout    time.Duration
}

// ListenPacket opens a UDP socket bound to port on every local address,
// with SO_REUSEADDR and SO_REUSEPORT set so more than one reccaster
// instance (or a coexisting caster) can share the discovery port, the same
// way makeUdpSocketWithReusePort does in the mDNS responder this is
// grounded on.
func ListenPacket(waker *Waker, port int) (*PacketConn, error) {
	control := func(network, address string, c syscall.RawConn) error {
		var ctlErr error
		err := c.Control(func(fd uintptr) {
			if ctlErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); ctlErr != nil {
				return
			}
			ctlErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
		})
		if err != nil {
			return err
		}
		return ctlErr
	}
	lc := net.ListenConfig{Control: control}
	raw, err := lc.ListenPacket(waker.Context(), "udp4", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, translate(waker, err)
	}
	p := &PacketConn{conn: raw, waker: waker}
	p.unregister = waker.register(raw)
	return p, nil
}

// SetTimeout changes the per-call deadline applied to subsequent
// operations. NoTimeout disables it, leaving the Waker as the only way to
// unblock an outstanding call.
func (p *PacketConn) SetTimeout(d time.Duration) { p.timeout = d }

func (p *PacketConn) deadline() time.Time {
	if p.timeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(p.timeout)
}

// RecvFrom reads one datagram into buf and returns its length and the
// sender's address. The address is always a *net.UDPAddr on this package's
// udp4 sockets; callers that need the spec's "matching address family
// size" check can type-assert it.
func (p *PacketConn) RecvFrom(buf []byte) (int, *net.UDPAddr, error) {
	p.conn.SetReadDeadline(p.deadline())
	n, addr, err := p.conn.ReadFrom(buf)
	if err != nil {
		return n, nil, translate(p.waker, err)
	}
	udpAddr, ok := addr.(*net.UDPAddr)
	if !ok {
		return n, nil, fmt.Errorf("sockio: unexpected peer address type %T", addr)
	}
	return n, udpAddr, nil
}

// SendTo writes buf as a single datagram to addr.
func (p *PacketConn) SendTo(buf []byte, addr *net.UDPAddr) error {
	p.conn.SetWriteDeadline(p.deadline())
	n, err := p.conn.WriteTo(buf, addr)
	if err != nil {
		return translate(p.waker, err)
	}
	if n != len(buf) {
		return errors.New("sockio: short datagram write")
	}
	return nil
}

// LocalAddr returns the socket's bound local address, useful for reading
// back an ephemeral port chosen with ListenPacket(waker, 0).
func (p *PacketConn) LocalAddr() net.Addr { return p.conn.LocalAddr() }

// Close releases the underlying socket and deregisters it from the Waker.
func (p *PacketConn) Close() error {
	if p.unregister != nil {
		p.unregister()
		p.unregister = nil
	}
	return p.conn.Close()
}
