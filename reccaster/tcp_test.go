// Copyright 2024 The reccaster Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package reccaster

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/epics-extensions/reccaster/sockio"
	"github.com/epics-extensions/reccaster/wire"
)

// dialLoopback returns a connected *sockio.Conn, along with the server's
// side of the same TCP connection, for testing recvMessage directly.
func dialLoopback(t *testing.T) (*sockio.Conn, net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	defer ln.Close()

	serverCh := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			serverCh <- nil
			return
		}
		serverCh <- conn
	}()

	client, err := sockio.Dial(sockio.NewWaker(), "tcp", ln.Addr().String(), 2*time.Second)
	if err != nil {
		t.Fatalf("sockio.Dial: %v", err)
	}
	server := <-serverCh
	if server == nil {
		t.Fatal("accept failed")
	}
	return client, server
}

// TestRecvMessageRejectsOversizeBody exercises §4.2's bounded-receive
// rule: a header claiming a body far larger than maxMessageBody must not
// cause an allocation anywhere near that size, and the excess must be
// drained from the connection (not left to desynchronize subsequent
// frames) before recvMessage reports the protocol violation.
func TestRecvMessageRejectsOversizeBody(t *testing.T) {
	client, server := dialLoopback(t)
	defer client.Close()
	defer server.Close()

	const claimedLen = maxMessageBody + 1000
	go func() {
		hdr := wire.EncodeHeader(wire.MsgAddInfo, claimedLen)
		server.Write(hdr)
		server.Write(make([]byte, claimedLen))
		// A well-formed frame right behind the oversized one, to prove
		// the connection is left byte-aligned after the discard.
		server.Write(wire.EncodeHeader(wire.MsgDone, 0))
	}()

	_, _, clean, err := recvMessage(client)
	if clean {
		t.Fatal("recvMessage reported clean, want a protocol violation")
	}
	if !errors.Is(err, errProtocol) {
		t.Fatalf("recvMessage err = %v, want errProtocol", err)
	}

	hdr, _, clean, err := recvMessage(client)
	if err != nil {
		t.Fatalf("recvMessage after discard: %v", err)
	}
	if clean {
		t.Fatal("recvMessage after discard reported clean, want MsgDone")
	}
	if hdr.MsgID != wire.MsgDone {
		t.Errorf("recvMessage after discard = %#04x, want MsgDone", hdr.MsgID)
	}
}
