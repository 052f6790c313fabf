// Copyright 2024 The reccaster Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Command reccasterd is an example host process for the reccaster
// driver: it resolves a catalog server over UDP, connects over TCP, and
// uploads either a fixed demo PV list or nothing at all (-demo off),
// until the process receives SIGINT or SIGTERM. It is grounded on
// tools/botanist/cmd's subcommands.Command wiring and
// tools/lib/command's signal-driven context cancellation.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/subcommands"
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(&serveCommand{}, "")
	subcommands.Register(&versionCommand{}, "")

	flag.Parse()

	ctx := cancelOnSignals(context.Background(), os.Interrupt, syscall.SIGTERM)
	os.Exit(int(subcommands.Execute(ctx)))
}

// cancelOnSignals returns a context canceled on the first delivery of any
// of sigs, in the shape of tools/lib/command's CancelOnSignals.
func cancelOnSignals(ctx context.Context, sigs ...os.Signal) context.Context {
	ctx, cancel := context.WithCancel(ctx)
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sigs...)
	go func() {
		if s := <-ch; s != nil {
			cancel()
		}
	}()
	return ctx
}
