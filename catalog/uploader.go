// Copyright 2024 The reccaster Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package catalog implements the upload-phase half of the reccaster
// protocol: pushing record, alias and info-tag announcements over an
// already-connected TCP session, and allocating the record-ids those
// announcements use. It is the Go-native CatalogUploader of spec.md §4.4,
// grounded on the message framing in package wire and the request/response
// call shape of tools/net/sshutil/client.go.
package catalog

import (
	"errors"
	"fmt"
	"math"

	"github.com/epics-extensions/reccaster/wire"
)

// ErrRecordIDExhausted is returned by SendRecord once every positive value
// of the signed 32-bit record-id space (§4.4) has been allocated by one
// Uploader. Ids are counted per Uploader, and the Driver creates a fresh
// Uploader for every TCP cycle, so this takes more than two billion records
// within a single upload; ids are not carried over from one cycle to the
// next. Once exhausted, every further SendRecord on that Uploader fails
// rather than wrapping around to an id already in use on the server.
var ErrRecordIDExhausted = errors.New("catalog: record-id space exhausted")

// Sender is the subset of sockio.Conn the uploader needs. Tests substitute
// a fake to assert on the exact bytes written, without a real socket.
type Sender interface {
	SendAll(buf []byte) error
}

// Uploader issues AddRecord/AddInfo protocol operations over conn and
// allocates the record-ids they carry. A fresh Uploader must be created
// for every TCP cycle: spec.md §4.4 requires ids to restart at 1 each time
// a new session is negotiated, not persist across reconnects.
type Uploader struct {
	conn Sender
	next int32 // next rid to allocate; negative once exhausted
}

// New returns an Uploader that allocates record-ids starting at 1.
func New(conn Sender) *Uploader {
	return &Uploader{conn: conn, next: 1}
}

// SendRecord allocates a fresh rid, strictly greater than every rid
// returned by a prior call on u (§I1), and emits a 0x0003 add-record
// message announcing it (§I2). typeName is the record's type (e.g. "ai");
// it is never empty for a normal record.
func (u *Uploader) SendRecord(typeName, name string) (int32, error) {
	if u.next < 0 {
		return -1, ErrRecordIDExhausted
	}
	rid := u.next
	if rid == math.MaxInt32 {
		u.next = -1
	} else {
		u.next = rid + 1
	}
	rec := wire.AddRecord{RID: uint32(rid), RType: wire.RecordTypeNormal, TypeName: typeName, Name: name}
	if err := u.sendAddRecord(rec); err != nil {
		return -1, err
	}
	return rid, nil
}

// SendAlias emits a 0x0003 add-record message of type alias, reusing rid
// from a prior successful SendRecord call.
func (u *Uploader) SendAlias(rid int32, aliasName string) error {
	rec := wire.AddRecord{RID: uint32(rid), RType: wire.RecordTypeAlias, Name: aliasName}
	return u.sendAddRecord(rec)
}

// SendInfo emits a 0x0006 add-info message. rid may be 0 to attach the
// info tag to the IOC as a whole rather than to a specific record.
func (u *Uploader) SendInfo(rid int32, key, value string) error {
	body, err := wire.EncodeAddInfo(wire.AddInfo{RID: uint32(rid), Key: key, Value: value})
	if err != nil {
		return err
	}
	return u.frame(wire.MsgAddInfo, body)
}

func (u *Uploader) sendAddRecord(rec wire.AddRecord) error {
	body, err := wire.EncodeAddRecord(rec)
	if err != nil {
		return err
	}
	return u.frame(wire.MsgAddRecord, body)
}

func (u *Uploader) frame(msgID uint16, body []byte) error {
	buf := append(wire.EncodeHeader(msgID, uint32(len(body))), body...)
	if err := u.conn.SendAll(buf); err != nil {
		return fmt.Errorf("catalog: sending message %#04x: %w", msgID, err)
	}
	return nil
}
