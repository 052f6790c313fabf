// Copyright 2024 The reccaster Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package reccaster

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"

	"github.com/epics-extensions/reccaster/sockio"
	"github.com/epics-extensions/reccaster/wire"
)

// udpPhase runs spec.md §4.3.1: bind a UDP listener and block until a
// valid announcement arrives or the Driver is asked to shut down.
func (d *Driver) udpPhase(ctx context.Context) error {
	conn, err := sockio.ListenPacket(d.waker, d.udpPort)
	if err != nil {
		return fmt.Errorf("udp listen: %w", err)
	}
	defer conn.Close()

	if udpAddr, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		d.mu.Lock()
		d.udpPort = udpAddr.Port
		d.mu.Unlock()
	}
	if d.callbacks.TestHook != nil {
		d.callbacks.TestHook(d, UDPSetup)
	}

	conn.SetTimeout(sockio.NoTimeout)
	buf := make([]byte, 64)
	for {
		n, from, err := conn.RecvFrom(buf)
		if err != nil {
			return fmt.Errorf("udp recv: %w", err)
		}
		if n < wire.AnnounceSize {
			continue
		}
		ann, err := wire.DecodeAnnounce(buf[:n])
		if err != nil {
			// Bad magic or unsupported version: silently dropped, §4.3.1.
			continue
		}
		ip := ann.ServerIP
		if ip == wire.AnyServerIP {
			ip = ipToUint32(from.IP)
		}
		d.serverAddr = serverAddr{ip: ip, port: ann.ServerPort}
		d.serverKey = ann.ServerKey
		d.haveServer = true
		return nil
	}
}

func ipToUint32(ip net.IP) uint32 {
	v4 := ip.To4()
	if v4 == nil {
		return 0
	}
	return binary.BigEndian.Uint32(v4)
}

func uint32ToIP(v uint32) net.IP {
	ip := make(net.IP, 4)
	binary.BigEndian.PutUint32(ip, v)
	return ip
}

func formatServerAddr(a serverAddr) string {
	return fmt.Sprintf("%s:%d", uint32ToIP(a.ip), a.port)
}
