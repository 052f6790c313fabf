// Copyright 2024 The reccaster Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"io/ioutil"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/epics-extensions/reccaster/reccfg"
)

// fileConfig is the on-disk shape of the optional YAML config file (§2,
// §4.4's "host-added extras"), grounded on the teacher's image-manifest
// JSON config files but in YAML since gopkg.in/yaml.v2 is in the example
// corpus and nothing else in this module exercises it.
type fileConfig struct {
	UDPPort         int      `yaml:"udp_port"`
	Timeout         string   `yaml:"timeout"`
	MaxHoldoff      string   `yaml:"max_holdoff"`
	EnvVars         []string `yaml:"env_vars"`
	ExcludePatterns []string `yaml:"exclude_patterns"`
}

func loadFileConfig(path string) (fileConfig, error) {
	var fc fileConfig
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return fc, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("parse config %s: %w", path, err)
	}
	return fc, nil
}

// applyTo pushes the file's env_vars and exclude_patterns into cfg. Must
// run before the Driver's Run locks cfg.
func (fc fileConfig) applyTo(cfg *reccfg.Config) {
	ctx := context.Background()
	if len(fc.EnvVars) > 0 {
		cfg.AddEnvVars(ctx, fc.EnvVars)
	}
	if len(fc.ExcludePatterns) > 0 {
		cfg.AddExcludePatterns(ctx, fc.ExcludePatterns)
	}
}

// parseDuration parses s with time.ParseDuration, returning zero (meaning
// "leave the flag default in place") for an empty or invalid string.
func parseDuration(s string) time.Duration {
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}
