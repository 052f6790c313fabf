// Copyright 2024 The reccaster Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package reccaster

import (
	"fmt"
	"os"

	"github.com/epics-extensions/reccaster/reccfg"
)

// Version identifies this client in the fixed "EPICS_VERSION" info tag
// sent first during every upload, in place of the C original's
// EPICS_VERSION_STRING build macro (there is no EPICS base build here).
const Version = "reccaster-go/1.0"

// sendEnvInfo pushes the fixed EPICS_VERSION tag, then every built-in
// default environment variable (§6) and every host-added extra (§4.4)
// that is set and non-empty, as rid=0 info tags. HOSTNAME is synthesized
// from the OS host name if unset, exactly as the C dbcb.c's pushEnv does.
func (d *Driver) sendEnvInfo() error {
	if os.Getenv("HOSTNAME") == "" {
		if host, err := os.Hostname(); err == nil && host != "" {
			os.Setenv("HOSTNAME", host)
		}
	}

	if err := d.uploader.SendInfo(0, "EPICS_VERSION", Version); err != nil {
		return fmt.Errorf("send EPICS_VERSION: %w", err)
	}

	names := make([]string, 0, len(reccfg.DefaultEnvVars)+len(d.cfg.EnvVars()))
	names = append(names, reccfg.DefaultEnvVars...)
	names = append(names, d.cfg.EnvVars()...)

	for _, name := range names {
		val, ok := os.LookupEnv(name)
		if !ok || val == "" {
			continue
		}
		if err := d.uploader.SendInfo(0, name, val); err != nil {
			return fmt.Errorf("send env %s: %w", name, err)
		}
	}
	return nil
}
