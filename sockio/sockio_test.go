// Copyright 2024 The reccaster Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package sockio

import (
	"errors"
	"net"
	"testing"
	"time"
)

func pipe(t *testing.T) (*Conn, net.Conn) {
	t.Helper()
	client, server := net.Pipe()
	waker := NewWaker()
	c := &Conn{conn: client, waker: waker}
	c.unregister = waker.register(client)
	return c, server
}

func TestRecvExactRoundTrip(t *testing.T) {
	c, server := pipe(t)
	defer c.Close()
	defer server.Close()

	want := []byte("hello world")
	go server.Write(want)

	got := make([]byte, len(want))
	n, err := c.RecvExact(got)
	if err != nil {
		t.Fatalf("RecvExact: %v", err)
	}
	if n != len(want) || string(got) != string(want) {
		t.Errorf("RecvExact = %q, want %q", got[:n], want)
	}
}

func TestRecvExactCleanCloseAtZero(t *testing.T) {
	c, server := pipe(t)
	defer c.Close()
	server.Close()

	buf := make([]byte, 4)
	_, err := c.RecvExact(buf)
	if !errors.Is(err, ErrClosed) {
		t.Errorf("RecvExact after immediate close: err = %v, want ErrClosed", err)
	}
}

func TestRecvExactMidFrameClose(t *testing.T) {
	c, server := pipe(t)
	defer c.Close()

	go func() {
		server.Write([]byte("ab"))
		server.Close()
	}()

	buf := make([]byte, 4)
	_, err := c.RecvExact(buf)
	if !errors.Is(err, ErrMidFrameClose) {
		t.Errorf("RecvExact after mid-frame close: err = %v, want ErrMidFrameClose", err)
	}
}

func TestRecvExactTimeout(t *testing.T) {
	c, server := pipe(t)
	defer c.Close()
	defer server.Close()
	c.SetTimeout(10 * time.Millisecond)

	buf := make([]byte, 4)
	_, err := c.RecvExact(buf)
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("RecvExact with nothing sent: err = %v, want ErrTimeout", err)
	}
}

// TestWakeUnblocksOutstandingRecv exercises §I4: a blocked recv with no
// per-call deadline returns promptly once the Waker fires, and is reported
// identically to a real timeout.
func TestWakeUnblocksOutstandingRecv(t *testing.T) {
	c, server := pipe(t)
	defer c.Close()
	defer server.Close()
	// No SetTimeout call: only the wake can unblock this recv.

	done := make(chan error, 1)
	go func() {
		buf := make([]byte, 4)
		_, err := c.RecvExact(buf)
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	start := time.Now()
	c.waker.Wake()

	select {
	case err := <-done:
		if !errors.Is(err, ErrTimeout) {
			t.Errorf("RecvExact after Wake: err = %v, want ErrTimeout", err)
		}
		if elapsed := time.Since(start); elapsed > time.Second {
			t.Errorf("Wake took %v to unblock RecvExact, want well under a second", elapsed)
		}
	case <-time.After(time.Second):
		t.Fatal("Wake did not unblock outstanding RecvExact")
	}
}

func TestWakeIsIdempotent(t *testing.T) {
	waker := NewWaker()
	waker.Wake()
	waker.Wake()
	if !waker.Fired() {
		t.Error("Fired() = false after Wake, want true")
	}
}

func TestSendAllRoundTrip(t *testing.T) {
	c, server := pipe(t)
	defer c.Close()
	defer server.Close()

	want := []byte("announce")
	go c.SendAll(want)

	got := make([]byte, len(want))
	if _, err := server.Read(got); err != nil {
		t.Fatalf("server Read: %v", err)
	}
	if string(got) != string(want) {
		t.Errorf("SendAll delivered %q, want %q", got, want)
	}
}

func TestListenPacketRoundTrip(t *testing.T) {
	waker := NewWaker()
	conn, err := ListenPacket(waker, 0)
	if err != nil {
		t.Fatalf("ListenPacket: %v", err)
	}
	defer conn.Close()

	addr := conn.conn.LocalAddr().(*net.UDPAddr)
	loopback := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: addr.Port}

	conn.SetTimeout(time.Second)
	if err := conn.SendTo([]byte("ping"), loopback); err != nil {
		t.Fatalf("SendTo: %v", err)
	}

	buf := make([]byte, 16)
	n, from, err := conn.RecvFrom(buf)
	if err != nil {
		t.Fatalf("RecvFrom: %v", err)
	}
	if string(buf[:n]) != "ping" {
		t.Errorf("RecvFrom got %q, want %q", buf[:n], "ping")
	}
	if from.IP.String() != "127.0.0.1" {
		t.Errorf("RecvFrom sender = %v, want 127.0.0.1", from)
	}
}
