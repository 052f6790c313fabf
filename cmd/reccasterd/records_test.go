// Copyright 2024 The reccaster Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"path"
	"testing"

	"github.com/golang/mock/gomock"
)

var errRecordSourceUnavailable = errors.New("record source unavailable")

// fakeSink is a recordSink that just records what it was told, so tests
// can assert on upload order and filtering without a live connection.
type fakeSink struct {
	exclude []string
	nextRID int32
	records []string
	aliases map[int32][]string
	info    map[int32]map[string]string
}

func newFakeSink(exclude ...string) *fakeSink {
	return &fakeSink{
		exclude: exclude,
		nextRID: 1,
		aliases: map[int32][]string{},
		info:    map[int32]map[string]string{},
	}
}

func (f *fakeSink) ExcludePV(name string) bool {
	for _, pattern := range f.exclude {
		if ok, _ := path.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

func (f *fakeSink) SendRecord(typeName, name string) (int32, error) {
	rid := f.nextRID
	f.nextRID++
	f.records = append(f.records, name)
	f.info[rid] = map[string]string{}
	return rid, nil
}

func (f *fakeSink) SendAlias(rid int32, aliasName string) error {
	f.aliases[rid] = append(f.aliases[rid], aliasName)
	return nil
}

func (f *fakeSink) SendInfo(rid int32, key, value string) error {
	if f.info[rid] == nil {
		f.info[rid] = map[string]string{}
	}
	f.info[rid][key] = value
	return nil
}

func TestPushRecordsSkipsExcludedAndForwardsAliasesAndInfo(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := newMockRecordSource(ctrl)
	src.EXPECT().Records(gomock.Any()).Return([]Record{
		{Type: "ai", Name: "DEMO:KEEP", Aliases: []string{"DEMO:KEEP_ALIAS"}, Info: map[string]string{"EGU": "V"}},
		{Type: "bo", Name: "DEMO:DROP"},
	}, nil)

	sink := newFakeSink("DEMO:DROP")
	if err := pushRecordsTo(context.Background(), src, sink); err != nil {
		t.Fatalf("pushRecordsTo: %v", err)
	}

	if len(sink.records) != 1 || sink.records[0] != "DEMO:KEEP" {
		t.Fatalf("records = %v, want only DEMO:KEEP", sink.records)
	}
	if got := sink.aliases[1]; len(got) != 1 || got[0] != "DEMO:KEEP_ALIAS" {
		t.Errorf("aliases[1] = %v, want [DEMO:KEEP_ALIAS]", got)
	}
	if got := sink.info[1]["EGU"]; got != "V" {
		t.Errorf("info[1][EGU] = %q, want V", got)
	}
}

func TestPushRecordsSendsRecordDesc(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := newMockRecordSource(ctrl)
	src.EXPECT().Records(gomock.Any()).Return([]Record{
		{Type: "ai", Name: "DEMO:KEEP", Desc: "a demo PV"},
		{Type: "bo", Name: "DEMO:NODESC"},
	}, nil)

	sink := newFakeSink()
	if err := pushRecordsTo(context.Background(), src, sink); err != nil {
		t.Fatalf("pushRecordsTo: %v", err)
	}
	if got := sink.info[1]["recordDesc"]; got != "a demo PV" {
		t.Errorf("info[1][recordDesc] = %q, want %q", got, "a demo PV")
	}
	if _, ok := sink.info[2]["recordDesc"]; ok {
		t.Errorf("info[2] has recordDesc, want none (Desc was empty)")
	}
}

func TestPushRecordsExcludesAlias(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := newMockRecordSource(ctrl)
	src.EXPECT().Records(gomock.Any()).Return([]Record{
		{Type: "ai", Name: "DEMO:KEEP", Aliases: []string{"DEMO:DROP_ALIAS"}},
	}, nil)

	sink := newFakeSink("DEMO:DROP_ALIAS")
	if err := pushRecordsTo(context.Background(), src, sink); err != nil {
		t.Fatalf("pushRecordsTo: %v", err)
	}
	if len(sink.aliases[1]) != 0 {
		t.Errorf("aliases[1] = %v, want none (excluded)", sink.aliases[1])
	}
}

func TestPushRecordsPropagatesSourceError(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := newMockRecordSource(ctrl)
	src.EXPECT().Records(gomock.Any()).Return(nil, errRecordSourceUnavailable)

	sink := newFakeSink()
	if err := pushRecordsTo(context.Background(), src, sink); err == nil {
		t.Fatal("pushRecordsTo: want error, got nil")
	}
}
