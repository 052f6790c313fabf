// Copyright 2024 The reccaster Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/google/subcommands"

	"github.com/epics-extensions/reccaster/reccaster"
	"github.com/epics-extensions/reccaster/reccfg"
	"github.com/epics-extensions/reccaster/rlog"
)

// serveCommand runs the Driver until canceled, in the shape of
// tools/botanist/cmd/run.go's RunCommand: a flag.FlagSet-backed struct
// whose Execute method drives the long-running operation and translates
// errors to subcommands.ExitStatus.
type serveCommand struct {
	configFile string
	udpPort    int
	timeout    time.Duration
	holdoff    time.Duration
	demo       bool
}

func (*serveCommand) Name() string     { return "serve" }
func (*serveCommand) Synopsis() string { return "run the reccaster driver until interrupted" }
func (*serveCommand) Usage() string {
	return `reccasterd serve [flags...]

flags:
`
}

func (s *serveCommand) SetFlags(f *flag.FlagSet) {
	f.StringVar(&s.configFile, "config", "", "path to a YAML config file (env_vars, exclude_patterns)")
	f.IntVar(&s.udpPort, "udp-port", 0, "UDP discovery port; 0 binds an ephemeral port")
	f.DurationVar(&s.timeout, "timeout", 20*time.Second, "per-operation timeout")
	f.DurationVar(&s.holdoff, "max-holdoff", 10*time.Second, "maximum randomized post-discovery connect delay")
	f.BoolVar(&s.demo, "demo", true, "upload a fixed demo PV list instead of nothing")
}

func (s *serveCommand) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := s.execute(ctx); err != nil {
		rlog.Errorf(ctx, "%v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (s *serveCommand) execute(ctx context.Context) error {
	cfg := reccfg.New()
	if s.configFile != "" {
		fc, err := loadFileConfig(s.configFile)
		if err != nil {
			return err
		}
		fc.applyTo(cfg)
		if fc.UDPPort != 0 {
			s.udpPort = fc.UDPPort
		}
		if d := parseDuration(fc.Timeout); d > 0 {
			s.timeout = d
		}
		if d := parseDuration(fc.MaxHoldoff); d > 0 {
			s.holdoff = d
		}
	}

	var src RecordSource = noRecords{}
	if s.demo {
		src = demoSource{}
	}

	driver := reccaster.New(cfg, reccaster.Callbacks{
		OnMsg: func(ctx context.Context, d *reccaster.Driver) {
			rlog.Infof(ctx, "phase=%s msg=%s", d.Phase(), d.LastMsg())
		},
		GetRecords: pushRecords(src),
	}, reccaster.Options{
		UDPPort:    s.udpPort,
		Timeout:    s.timeout,
		MaxHoldoff: s.holdoff,
	})

	go func() {
		<-ctx.Done()
		driver.Shutdown()
	}()

	driver.Run(ctx)
	fmt.Println("reccasterd: stopped")
	return nil
}

// noRecords is the RecordSource used when -demo=false: a host that has
// nothing to publish yet still completes the upload/done/maintenance
// cycle.
type noRecords struct{}

func (noRecords) Records(context.Context) ([]Record, error) { return nil, nil }
