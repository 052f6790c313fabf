// Copyright 2024 The reccaster Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package reccfg holds the two ordered, deduplicated string lists reccaster
// reads before uploading a catalog: extra environment-variable names to
// publish as info tags, and glob patterns excluding matching record names
// from enumeration. It is the Go-native Config of spec.md §4.4.
package reccfg

import (
	"context"
	"path"
	"strings"

	"github.com/epics-extensions/reccaster/rlog"
)

// DefaultEnvVars are the built-in environment-variable names sent during
// upload, in order, ahead of anything added with AddEnvVars. Listed in
// §6.
var DefaultEnvVars = []string{
	"HOSTNAME",
	"EPICS_BASE",
	"TOP",
	"ARCH",
	"IOC",
	"EPICS_CA_ADDR_LIST",
	"EPICS_CA_AUTO_ADDR_LIST",
	"EPICS_CA_MAX_ARRAY_BYTES",
	"RSRV_SERVER_PORT",
	"PVAS_SERVER_PORT",
	"PWD",
	"EPICS_HOST_ARCH",
	"IOCNAME",
	"ENGINEER",
	"LOCATION",
}

func isDefaultEnvVar(name string) bool {
	for _, d := range DefaultEnvVars {
		if d == name {
			return true
		}
	}
	return false
}

// Config holds the env-var and exclude-pattern lists. Per §4.4 and the
// redesign note in §"REDESIGN FLAGS" that turns the original's runtime
// phase check into a builder contract, a Config accepts mutations freely
// until Lock is called (done once by the Driver as it starts); afterward
// every mutator is a silent no-op, matching I5's "no-op after phase !=
// Init, or during shutdown" rule without needing to know about phases or
// shutdown itself.
type Config struct {
	locked  bool
	envVars []string
	exclude []string
}

// New returns an empty, unlocked Config.
func New() *Config {
	return &Config{}
}

// AddEnvVars appends names to the extra environment-variable list. Each
// entry is whitespace-trimmed first (supplement 2: castinit.c's
// addReccasterEnvVar accepts a comma-separated list and trims each piece
// at the edges, so a YAML-loaded list with stray leading/trailing spaces
// behaves the same way). Entries are then skipped (with a log line, never
// an error) if empty after trimming, already present, a duplicate of a
// built-in default name, or submitted after Lock. Survivors are appended
// in the order received.
func (c *Config) AddEnvVars(ctx context.Context, names []string) {
	if c.locked {
		rlog.Infof(ctx, "reccfg: AddEnvVars ignored, config is locked")
		return
	}
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			rlog.Infof(ctx, "reccfg: AddEnvVars skipping empty name")
			continue
		}
		if isDefaultEnvVar(name) {
			rlog.Infof(ctx, "reccfg: AddEnvVars skipping %q, already a built-in default", name)
			continue
		}
		if contains(c.envVars, name) {
			rlog.Infof(ctx, "reccfg: AddEnvVars skipping %q, already present", name)
			continue
		}
		c.envVars = append(c.envVars, name)
	}
}

// AddExcludePatterns appends patterns to the exclusion-glob list, with the
// same empty/duplicate/locked skip rules as AddEnvVars (minus the
// built-in-default check, which only applies to env vars).
func (c *Config) AddExcludePatterns(ctx context.Context, patterns []string) {
	if c.locked {
		rlog.Infof(ctx, "reccfg: AddExcludePatterns ignored, config is locked")
		return
	}
	for _, pattern := range patterns {
		if pattern == "" {
			rlog.Infof(ctx, "reccfg: AddExcludePatterns skipping empty pattern")
			continue
		}
		if contains(c.exclude, pattern) {
			rlog.Infof(ctx, "reccfg: AddExcludePatterns skipping %q, already present", pattern)
			continue
		}
		c.exclude = append(c.exclude, pattern)
	}
}

// Lock freezes c: every subsequent mutator call becomes a no-op. The
// Driver calls this once, as it transitions out of its initial phase.
func (c *Config) Lock() {
	c.locked = true
}

// EnvVars returns the extra environment-variable names added so far, in
// insertion order. The built-in defaults of DefaultEnvVars are not
// included; callers wanting the full upload list should iterate
// DefaultEnvVars first and this slice second.
func (c *Config) EnvVars() []string {
	out := make([]string, len(c.envVars))
	copy(out, c.envVars)
	return out
}

// ExcludePatterns returns the exclusion globs added so far, in insertion
// order.
func (c *Config) ExcludePatterns() []string {
	out := make([]string, len(c.exclude))
	copy(out, c.exclude)
	return out
}

// Excluded reports whether name matches any configured exclusion glob
// (§4.4: "matched records are skipped entirely during enumeration").
// A malformed pattern never matches; it is not reccaster's job to reject
// invalid globs submitted by the host.
func (c *Config) Excluded(name string) bool {
	for _, pattern := range c.exclude {
		if ok, err := path.Match(pattern, name); err == nil && ok {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
