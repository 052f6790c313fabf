// Copyright 2024 The reccaster Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"context"
	"fmt"

	"github.com/epics-extensions/reccaster/reccaster"
)

// Record is one PV as supplied by a RecordSource, following the
// recordDesc convention the C original documents for host enumeration
// callbacks: a type name, a canonical name, zero or more extra names
// bound to the same record-id, an optional description, and free-form
// info tags.
type Record struct {
	Type    string
	Name    string
	Aliases []string
	// Desc, if non-empty, is sent as a "recordDesc" info tag bound to
	// the record's own rid, the same way the C host sends its .DESC
	// field (supplement 1).
	Desc string
	Info map[string]string
}

// RecordSource enumerates the PVs a host wants cataloged. Implementations
// must be safe to call once per upload cycle; reccasterd's demo
// implementation is a static in-memory list, but a real IOC host would
// walk its live database here.
type RecordSource interface {
	Records(ctx context.Context) ([]Record, error)
}

// recordSink is the subset of *reccaster.Driver that pushRecordsTo needs,
// broken out so tests can exercise the upload/exclusion logic against a
// fake instead of a live TCP connection.
type recordSink interface {
	ExcludePV(name string) bool
	SendRecord(typeName, name string) (int32, error)
	SendAlias(rid int32, aliasName string) error
	SendInfo(rid int32, key, value string) error
}

// pushRecords is the reccaster.Callbacks.GetRecords adapter: it asks src
// for the current record set and uploads every entry not excluded by the
// Driver's configured glob patterns (§4.4).
func pushRecords(src RecordSource) func(ctx context.Context, d *reccaster.Driver) error {
	return func(ctx context.Context, d *reccaster.Driver) error {
		return pushRecordsTo(ctx, src, d)
	}
}

func pushRecordsTo(ctx context.Context, src RecordSource, sink recordSink) error {
	records, err := src.Records(ctx)
	if err != nil {
		return fmt.Errorf("enumerate records: %w", err)
	}
	for _, rec := range records {
		if sink.ExcludePV(rec.Name) {
			continue
		}
		rid, err := sink.SendRecord(rec.Type, rec.Name)
		if err != nil {
			return fmt.Errorf("send record %s: %w", rec.Name, err)
		}
		for _, alias := range rec.Aliases {
			if sink.ExcludePV(alias) {
				continue
			}
			if err := sink.SendAlias(rid, alias); err != nil {
				return fmt.Errorf("send alias %s: %w", alias, err)
			}
		}
		if rec.Desc != "" {
			if err := sink.SendInfo(rid, "recordDesc", rec.Desc); err != nil {
				return fmt.Errorf("send recordDesc for %s: %w", rec.Name, err)
			}
		}
		for key, value := range rec.Info {
			if err := sink.SendInfo(rid, key, value); err != nil {
				return fmt.Errorf("send info %s=%s for %s: %w", key, value, rec.Name, err)
			}
		}
	}
	return nil
}

// demoSource is a fixed record set for `reccasterd serve -demo`, standing
// in for a real IOC's database walk.
type demoSource struct{}

func (demoSource) Records(ctx context.Context) ([]Record, error) {
	return []Record{
		{Type: "ai", Name: "DEMO:TEMPERATURE", Desc: "Demo temperature reading", Info: map[string]string{"EGU": "degC"}},
		{Type: "bo", Name: "DEMO:ENABLE", Aliases: []string{"DEMO:ENABLE_ALIAS"}, Desc: "Demo enable switch"},
		{Type: "longin", Name: "DEMO:COUNTER", Desc: "Demo monotonic counter"},
	}, nil
}
