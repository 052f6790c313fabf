// Copyright 2024 The reccaster Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package reccaster

import (
	"context"
	"errors"
	"fmt"

	"github.com/epics-extensions/reccaster/catalog"
	"github.com/epics-extensions/reccaster/sockio"
	"github.com/epics-extensions/reccaster/wire"
)

// tcpPhase runs spec.md §4.3.2 in full: connect, handshake, upload, then
// ping-maintenance until the connection drops. The returned bool reports
// whether the connection ended cleanly (remote closed after maintenance,
// or during maintenance with a zero-length close) — only a clean ending
// resets errorStreak.
func (d *Driver) tcpPhase(ctx context.Context) (clean bool, err error) {
	addr := formatServerAddr(d.serverAddr)
	conn, err := sockio.Dial(d.waker, "tcp", addr, d.opts.Timeout)
	if err != nil {
		return false, fmt.Errorf("connect to %s: %w", addr, err)
	}
	defer conn.Close()
	conn.SetTimeout(d.opts.Timeout)

	if d.callbacks.TestHook != nil {
		d.callbacks.TestHook(d, TCPSetup)
	}

	if err := d.handshake(conn); err != nil {
		return false, err
	}

	if err := d.upload(ctx, conn); err != nil {
		return false, err
	}

	return d.maintain(ctx, conn)
}

// handshake sends the client greeting and validates the server's reply,
// per §4.3.2's "Handshake" paragraph.
func (d *Driver) handshake(conn *sockio.Conn) error {
	body := wire.EncodeClientGreet(wire.ClientGreet{ServerKey: d.serverKey})
	frame := append(wire.EncodeHeader(wire.MsgClientGreet, uint32(len(body))), body...)
	if err := conn.SendAll(frame); err != nil {
		return fmt.Errorf("send client greeting: %w", err)
	}

	hdr, respBody, clean, err := recvMessage(conn)
	if err != nil {
		return fmt.Errorf("recv server greeting: %w", err)
	}
	if clean {
		return fmt.Errorf("%w: connection closed before server greeting", errProtocol)
	}
	if hdr.MsgID != wire.MsgServerGreet {
		return fmt.Errorf("%w: expected server greeting, got message %#04x", errProtocol, hdr.MsgID)
	}
	greet, err := wire.DecodeServerGreet(respBody)
	if err != nil {
		return fmt.Errorf("%w: %v", errProtocol, err)
	}
	wire.NegotiateVersion(greet.Version) // both ends speak version 0 today
	return nil
}

// upload installs the Driver's CatalogUploader for the duration of the
// callback, invokes GetRecords, and sends the "done" message on success,
// per §4.3.2's "Upload" paragraph.
func (d *Driver) upload(ctx context.Context, conn *sockio.Conn) error {
	d.uploader = catalog.New(conn)
	d.setPhase(PhaseUpload)
	d.setMsg(ctx, "connected to %s", formatServerAddr(d.serverAddr))

	if err := d.sendEnvInfo(); err != nil {
		d.uploader = nil
		return err
	}

	var cbErr error
	if d.callbacks.GetRecords != nil {
		cbErr = d.callbacks.GetRecords(ctx, d)
	}
	d.uploader = nil
	if cbErr != nil {
		return fmt.Errorf("getRecords: %w", cbErr)
	}

	doneFrame := append(wire.EncodeHeader(wire.MsgDone, 4), make([]byte, 4)...)
	if err := conn.SendAll(doneFrame); err != nil {
		return fmt.Errorf("send done: %w", err)
	}
	d.setPhase(PhaseDone)
	d.setMsg(ctx, "synchronized with %s", formatServerAddr(d.serverAddr))
	return nil
}

// maintain answers liveness pings (§I3) until the server closes the
// connection or the maintenance timeout elapses (§4.3.2's "Maintenance"
// paragraph, scenario S3).
func (d *Driver) maintain(ctx context.Context, conn *sockio.Conn) (clean bool, err error) {
	conn.SetTimeout(4 * d.opts.Timeout)
	for {
		hdr, body, isClean, err := recvMessage(conn)
		if err != nil {
			if errors.Is(err, sockio.ErrTimeout) {
				return false, errServerTimeout
			}
			return false, fmt.Errorf("maintenance recv: %w", err)
		}
		if isClean {
			return true, nil
		}
		if hdr.MsgID != wire.MsgServerPing {
			continue
		}
		ping, err := wire.DecodePing(body)
		if err != nil {
			return false, fmt.Errorf("%w: %v", errProtocol, err)
		}
		pongBody := wire.EncodePing(wire.Ping{Nonce: ping.Nonce})
		pongFrame := append(wire.EncodeHeader(wire.MsgClientPong, uint32(len(pongBody))), pongBody...)
		if err := conn.SendAll(pongFrame); err != nil {
			return false, fmt.Errorf("send pong: %w", err)
		}
	}
}

// maxMessageBody bounds the buffer recvMessage ever allocates for a
// message body, regardless of what a peer's header claims. The bodies this
// client acts on when receiving (server greeting, ping) are a few bytes
// long; anything larger is read up to the bound and the remainder is
// discarded, per §4.2's "reads as much as fits and then discards the
// rest" receive-primitive rule. The catalog server is discovered over
// unauthenticated UDP broadcast, so its TCP header's body-length field
// must be treated as hostile input, never trusted as an allocation size.
const maxMessageBody = 4096

// recvMessage reads one length-prefixed message. clean reports a
// connection that closed before any byte of a new message arrived — the
// only circumstance §9's "blen==0 means disconnect" open question allows
// to be treated as a successful end of session. A close after the header
// (or any part of it) has arrived is always an error, never clean.
func recvMessage(conn *sockio.Conn) (hdr wire.Header, body []byte, clean bool, err error) {
	hdrBuf := make([]byte, wire.HeaderSize)
	if _, err := conn.RecvExact(hdrBuf); err != nil {
		if errors.Is(err, sockio.ErrClosed) {
			return wire.Header{}, nil, true, nil
		}
		return wire.Header{}, nil, false, err
	}
	hdr, err = wire.DecodeHeader(hdrBuf)
	if err != nil {
		return hdr, nil, false, err
	}
	if hdr.BodyLen == 0 {
		return hdr, nil, false, nil
	}

	readLen := hdr.BodyLen
	overflow := uint32(0)
	if readLen > maxMessageBody {
		overflow = readLen - maxMessageBody
		readLen = maxMessageBody
	}

	body = make([]byte, readLen)
	if _, err := conn.RecvExact(body); err != nil {
		if errors.Is(err, sockio.ErrClosed) {
			// Bytes of the header already arrived: this is a mid-frame
			// close, never a clean disconnect.
			return hdr, nil, false, sockio.ErrMidFrameClose
		}
		return hdr, nil, false, err
	}
	if overflow > 0 {
		if err := conn.RecvDiscard(int(overflow)); err != nil {
			if errors.Is(err, sockio.ErrClosed) {
				return hdr, nil, false, sockio.ErrMidFrameClose
			}
			return hdr, nil, false, err
		}
		return hdr, nil, false, fmt.Errorf("%w: body length %d exceeds %d-byte limit", errProtocol, hdr.BodyLen, maxMessageBody)
	}
	return hdr, body, false, nil
}
