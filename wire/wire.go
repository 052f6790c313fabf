// Copyright 2024 The reccaster Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package wire implements the reccaster wire protocol: the 16-byte UDP
// announcement record broadcast by a catalog server, and the length-prefixed
// TCP message framing used once a client has connected to one.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Magic identifies both the UDP announcement and every TCP frame header.
const Magic = 0x5243 // 'R', 'C'

// AnnounceSize is the fixed size, in bytes, of a UDP announcement record.
// Trailing bytes beyond this are ignored for forward compatibility.
const AnnounceSize = 16

// HeaderSize is the fixed size, in bytes, of a TCP frame header.
const HeaderSize = 8

// AnyServerIP, when present in an Announce's ServerIP field, means "use the
// sending datagram's source address" rather than the announced address.
const AnyServerIP = 0xFFFFFFFF

// Message identifiers of the TCP message catalogue (§4.2).
const (
	MsgClientGreet = 0x0001 // client -> server: greeting, carries the server's cookie
	MsgClientPong  = 0x0002 // client -> server: echoes a ping nonce
	MsgAddRecord   = 0x0003 // client -> server: add record or alias
	MsgDelRecord   = 0x0004 // client -> server: reserved, never emitted by this client
	MsgDone        = 0x0005 // client -> server: upload phase complete
	MsgAddInfo     = 0x0006 // client -> server: key/value info tag

	MsgServerGreet = 0x8001 // server -> client: greeting reply
	MsgServerPing  = 0x8002 // server -> client: liveness ping
)

// Record types carried in an AddRecord body.
const (
	RecordTypeNormal = 0 // a record: rtype name + instance name
	RecordTypeAlias  = 1 // an alias: rtlen must be 0, only the instance name is sent
)

var (
	// ErrBadMagic is returned when a frame or announcement does not start
	// with Magic.
	ErrBadMagic = errors.New("wire: bad magic")
	// ErrMalformed is returned for any other structurally invalid message:
	// a negative (high-bit-set) body length, a truncated header, a name
	// whose declared length doesn't match the data available, and so on.
	ErrMalformed = errors.New("wire: malformed message")
	// ErrNameTooLong is returned by the encoders when a name or value
	// exceeds the wire format's length limits (§4.4).
	ErrNameTooLong = errors.New("wire: name or value exceeds wire length limit")
)

// Announce is the 16-byte UDP server-advertisement record.
//
//	off size field
//	 0   2  magic (Magic, big-endian)
//	 2   1  version (must be 0)
//	 3   1  reserved
//	 4   4  serverIP (big-endian; AnyServerIP means "use the datagram's source IP")
//	 8   2  serverPort (big-endian)
//	10   2  reserved
//	12   4  serverKey (opaque cookie, echoed on TCP)
type Announce struct {
	Version    uint8
	ServerIP   uint32
	ServerPort uint16
	ServerKey  uint32
}

// EncodeAnnounce serializes a into a fresh AnnounceSize-byte buffer.
func EncodeAnnounce(a Announce) []byte {
	buf := make([]byte, AnnounceSize)
	binary.BigEndian.PutUint16(buf[0:2], Magic)
	buf[2] = a.Version
	binary.BigEndian.PutUint32(buf[4:8], a.ServerIP)
	binary.BigEndian.PutUint16(buf[8:10], a.ServerPort)
	binary.BigEndian.PutUint32(buf[12:16], a.ServerKey)
	return buf
}

// DecodeAnnounce parses the leading AnnounceSize bytes of buf. Trailing bytes
// are ignored. Returns ErrBadMagic if the magic or version field does not
// match; per spec.md §4.3.1 such datagrams are silently dropped by callers.
func DecodeAnnounce(buf []byte) (Announce, error) {
	var a Announce
	if len(buf) < AnnounceSize {
		return a, fmt.Errorf("%w: announcement too short (%d bytes)", ErrMalformed, len(buf))
	}
	if binary.BigEndian.Uint16(buf[0:2]) != Magic {
		return a, ErrBadMagic
	}
	a.Version = buf[2]
	if a.Version != 0 {
		return a, fmt.Errorf("%w: unsupported announcement version %d", ErrBadMagic, a.Version)
	}
	a.ServerIP = binary.BigEndian.Uint32(buf[4:8])
	a.ServerPort = binary.BigEndian.Uint16(buf[8:10])
	a.ServerKey = binary.BigEndian.Uint32(buf[12:16])
	return a, nil
}

// Header is the 8-byte header prefixing every TCP message.
type Header struct {
	MsgID  uint16
	BodyLen uint32
}

// EncodeHeader serializes h, ready to be followed by BodyLen body bytes.
func EncodeHeader(msgID uint16, bodyLen uint32) []byte {
	buf := make([]byte, HeaderSize)
	binary.BigEndian.PutUint16(buf[0:2], Magic)
	binary.BigEndian.PutUint16(buf[2:4], msgID)
	binary.BigEndian.PutUint32(buf[4:8], bodyLen)
	return buf
}

// DecodeHeader parses an 8-byte TCP frame header. A body length with the
// high bit set is reported as malformed (§4.2: "body-length is unsigned
// 32-bit; values with the high bit set are treated as malformed").
func DecodeHeader(buf []byte) (Header, error) {
	var h Header
	if len(buf) < HeaderSize {
		return h, fmt.Errorf("%w: header too short (%d bytes)", ErrMalformed, len(buf))
	}
	if binary.BigEndian.Uint16(buf[0:2]) != Magic {
		return h, ErrBadMagic
	}
	h.MsgID = binary.BigEndian.Uint16(buf[2:4])
	h.BodyLen = binary.BigEndian.Uint32(buf[4:8])
	if h.BodyLen&0x80000000 != 0 {
		return h, fmt.Errorf("%w: body length has high bit set (%#x)", ErrMalformed, h.BodyLen)
	}
	return h, nil
}

// ClientGreet is the body of MsgClientGreet: { version=0, type=0, reserved[2], serverKey }.
type ClientGreet struct {
	ServerKey uint32
}

// EncodeClientGreet serializes a client greeting body.
func EncodeClientGreet(g ClientGreet) []byte {
	buf := make([]byte, 8)
	// buf[0] version, buf[1] type, buf[2:4] reserved all zero.
	binary.BigEndian.PutUint32(buf[4:8], g.ServerKey)
	return buf
}

// ServerGreet is the body of MsgServerGreet: { version }.
type ServerGreet struct {
	Version uint8
}

// DecodeServerGreet parses a server greeting body. Per §4.3's handshake,
// the body must be at least 1 byte.
func DecodeServerGreet(buf []byte) (ServerGreet, error) {
	var g ServerGreet
	if len(buf) < 1 {
		return g, fmt.Errorf("%w: server greeting too short", ErrMalformed)
	}
	g.Version = buf[0]
	return g, nil
}

// NegotiateVersion returns the protocol version both ends will use, per
// §4.3: min(clientVersion, serverVersion). This client always speaks
// version 0.
func NegotiateVersion(serverVersion uint8) uint8 {
	const clientVersion = 0
	if serverVersion < clientVersion {
		return serverVersion
	}
	return clientVersion
}

// Ping is the 4-byte body shared by MsgServerPing and MsgClientPong.
type Ping struct {
	Nonce uint32
}

// EncodePing serializes a ping/pong body.
func EncodePing(p Ping) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, p.Nonce)
	return buf
}

// DecodePing parses a ping/pong body.
func DecodePing(buf []byte) (Ping, error) {
	var p Ping
	if len(buf) < 4 {
		return p, fmt.Errorf("%w: ping body too short", ErrMalformed)
	}
	p.Nonce = binary.BigEndian.Uint32(buf)
	return p, nil
}

// AddRecord is the body of MsgAddRecord: a record (RecordTypeNormal) or
// alias (RecordTypeAlias) announcement.
type AddRecord struct {
	RID      uint32
	RType    uint8
	TypeName string // empty for aliases
	Name     string
}

// EncodeAddRecord serializes an AddRecord message body. Returns
// ErrNameTooLong if TypeName exceeds 255 bytes or Name exceeds 65535 bytes
// (§4.4's rtlen/rnlen limits).
func EncodeAddRecord(r AddRecord) ([]byte, error) {
	if len(r.TypeName) > 255 {
		return nil, fmt.Errorf("%w: record type name %q (%d bytes)", ErrNameTooLong, r.TypeName, len(r.TypeName))
	}
	if len(r.Name) > 65535 {
		return nil, fmt.Errorf("%w: record name (%d bytes)", ErrNameTooLong, len(r.Name))
	}
	if r.RType == RecordTypeAlias && r.TypeName != "" {
		return nil, fmt.Errorf("%w: alias record must not carry a type name", ErrMalformed)
	}
	var buf bytes.Buffer
	var fixed [8]byte
	binary.BigEndian.PutUint32(fixed[0:4], r.RID)
	fixed[4] = r.RType
	fixed[5] = uint8(len(r.TypeName))
	binary.BigEndian.PutUint16(fixed[6:8], uint16(len(r.Name)))
	buf.Write(fixed[:])
	buf.WriteString(r.TypeName)
	buf.WriteString(r.Name)
	return buf.Bytes(), nil
}

// DecodeAddRecord parses an AddRecord message body.
func DecodeAddRecord(body []byte) (AddRecord, error) {
	var r AddRecord
	if len(body) < 8 {
		return r, fmt.Errorf("%w: add-record body too short", ErrMalformed)
	}
	r.RID = binary.BigEndian.Uint32(body[0:4])
	r.RType = body[4]
	rtlen := int(body[5])
	rnlen := int(binary.BigEndian.Uint16(body[6:8]))
	rest := body[8:]
	if len(rest) < rtlen+rnlen {
		return r, fmt.Errorf("%w: add-record names truncated", ErrMalformed)
	}
	r.TypeName = string(rest[:rtlen])
	r.Name = string(rest[rtlen : rtlen+rnlen])
	if r.RType == RecordTypeAlias && r.TypeName != "" {
		return r, fmt.Errorf("%w: alias record carries a non-empty type name", ErrMalformed)
	}
	return r, nil
}

// AddInfo is the body of MsgAddInfo: a key/value info tag, optionally
// attached to a specific record (RID != 0) or the process as a whole
// (RID == 0).
type AddInfo struct {
	RID   uint32
	Key   string
	Value string
}

// EncodeAddInfo serializes an AddInfo message body. Returns ErrNameTooLong
// if Key exceeds 255 bytes or Value exceeds 65535 bytes.
func EncodeAddInfo(info AddInfo) ([]byte, error) {
	if len(info.Key) > 255 {
		return nil, fmt.Errorf("%w: info key %q (%d bytes)", ErrNameTooLong, info.Key, len(info.Key))
	}
	if len(info.Value) > 65535 {
		return nil, fmt.Errorf("%w: info value for key %q (%d bytes)", ErrNameTooLong, info.Key, len(info.Value))
	}
	var buf bytes.Buffer
	var fixed [8]byte
	binary.BigEndian.PutUint32(fixed[0:4], info.RID)
	fixed[4] = uint8(len(info.Key))
	// fixed[5] reserved, zero.
	binary.BigEndian.PutUint16(fixed[6:8], uint16(len(info.Value)))
	buf.Write(fixed[:])
	buf.WriteString(info.Key)
	buf.WriteString(info.Value)
	return buf.Bytes(), nil
}

// DecodeAddInfo parses an AddInfo message body.
func DecodeAddInfo(body []byte) (AddInfo, error) {
	var info AddInfo
	if len(body) < 8 {
		return info, fmt.Errorf("%w: add-info body too short", ErrMalformed)
	}
	info.RID = binary.BigEndian.Uint32(body[0:4])
	klen := int(body[4])
	vlen := int(binary.BigEndian.Uint16(body[6:8]))
	rest := body[8:]
	if len(rest) < klen+vlen {
		return info, fmt.Errorf("%w: add-info key/value truncated", ErrMalformed)
	}
	info.Key = string(rest[:klen])
	info.Value = string(rest[klen : klen+vlen])
	return info, nil
}

// DelRecord is the body of MsgDelRecord. Reserved: never emitted by this
// client, decoder provided for completeness/forward compatibility.
type DelRecord struct {
	RID uint32
}

// DecodeDelRecord parses a DelRecord message body.
func DecodeDelRecord(body []byte) (DelRecord, error) {
	var d DelRecord
	if len(body) < 4 {
		return d, fmt.Errorf("%w: del-record body too short", ErrMalformed)
	}
	d.RID = binary.BigEndian.Uint32(body)
	return d, nil
}

// ReadFull reads exactly len(buf) bytes from r, the Go-native equivalent of
// shRecvExact: io.ReadFull already reports io.EOF only when zero bytes were
// read and io.ErrUnexpectedEOF for any short read after partial progress,
// which matches §4.1's "0 only at byte zero, else an error" rule.
func ReadFull(r io.Reader, buf []byte) error {
	_, err := io.ReadFull(r, buf)
	return err
}
