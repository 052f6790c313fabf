// Copyright 2024 The reccaster Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package reccfg

import (
	"context"
	"reflect"
	"testing"
)

func TestAddEnvVarsDeduplicates(t *testing.T) {
	ctx := context.Background()
	c := New()
	c.AddEnvVars(ctx, []string{"SECTOR"})
	c.AddEnvVars(ctx, []string{"BUILDING", "CONTACT"})
	c.AddEnvVars(ctx, []string{"SECTOR"})
	c.AddEnvVars(ctx, []string{"CONTACT", "DEVICE"})
	c.AddEnvVars(ctx, []string{"FAMILY", "FAMILY"})

	want := []string{"SECTOR", "BUILDING", "CONTACT", "DEVICE", "FAMILY"}
	if got := c.EnvVars(); !reflect.DeepEqual(got, want) {
		t.Errorf("EnvVars() = %v, want %v", got, want)
	}
}

func TestAddEnvVarsSkipsBuiltinDefaults(t *testing.T) {
	ctx := context.Background()
	c := New()
	c.AddEnvVars(ctx, []string{"EPICS_BASE", "ENGINEER"})
	if got := c.EnvVars(); len(got) != 0 {
		t.Errorf("EnvVars() = %v, want empty", got)
	}
}

func TestAddEnvVarsSkipsEmpty(t *testing.T) {
	ctx := context.Background()
	c := New()
	c.AddEnvVars(ctx, []string{"", "SECTOR", ""})
	if got := c.EnvVars(); !reflect.DeepEqual(got, []string{"SECTOR"}) {
		t.Errorf("EnvVars() = %v, want [SECTOR]", got)
	}
}

func TestAddEnvVarsTrimsWhitespace(t *testing.T) {
	ctx := context.Background()
	c := New()
	c.AddEnvVars(ctx, []string{"  SECTOR ", "\tDEVICE\n", "   "})
	want := []string{"SECTOR", "DEVICE"}
	if got := c.EnvVars(); !reflect.DeepEqual(got, want) {
		t.Errorf("EnvVars() = %v, want %v", got, want)
	}
}

func TestAddEnvVarsNoopAfterLock(t *testing.T) {
	ctx := context.Background()
	c := New()
	c.AddEnvVars(ctx, []string{"SECTOR"})
	c.Lock()
	c.AddEnvVars(ctx, []string{"BUILDING"})
	if got := c.EnvVars(); !reflect.DeepEqual(got, []string{"SECTOR"}) {
		t.Errorf("EnvVars() after Lock = %v, want [SECTOR]", got)
	}
}

func TestAddExcludePatternsNoopAfterLock(t *testing.T) {
	ctx := context.Background()
	c := New()
	c.Lock()
	c.AddExcludePatterns(ctx, []string{"TEST:*"})
	if got := c.ExcludePatterns(); len(got) != 0 {
		t.Errorf("ExcludePatterns() after Lock = %v, want empty", got)
	}
}

func TestExcludedMatchesGlobs(t *testing.T) {
	ctx := context.Background()
	c := New()
	c.AddExcludePatterns(ctx, []string{"TEST:*", "*_"})

	tests := map[string]bool{
		"X:1":      false,
		"TEST:foo": true,
		"bar_":     true,
		"baz":      false,
	}
	for name, want := range tests {
		if got := c.Excluded(name); got != want {
			t.Errorf("Excluded(%q) = %v, want %v", name, got, want)
		}
	}
}
