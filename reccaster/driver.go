// Copyright 2024 The reccaster Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package reccaster implements the discovery -> connect -> upload -> sustain
// -> recover state machine of spec.md §4.3: the Driver. It is the
// Go-native DriverState, grounded on the reconnect-loop shape of
// tools/net/sshutil/client.go and the keep-alive ticker in sshutil.go.
package reccaster

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/epics-extensions/reccaster/catalog"
	"github.com/epics-extensions/reccaster/reccfg"
	"github.com/epics-extensions/reccaster/rlog"
	"github.com/epics-extensions/reccaster/sockio"
)

type cycleIDKey struct{}

// withCycleID tags ctx with a per-cycle diagnostic id, so log lines from
// overlapping cycles (one aborting while the next begins) can be told
// apart.
func withCycleID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, cycleIDKey{}, id)
}

func cycleIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(cycleIDKey{}).(string); ok {
		return id
	}
	return ""
}

// infof logs through rlog with the current cycle's id prefixed.
func (d *Driver) infof(ctx context.Context, format string, args ...interface{}) {
	rlog.Infof(ctx, "[%s] %s", cycleIDFrom(ctx), fmt.Sprintf(format, args...))
}

// Phase is the Driver's externally observable state, per spec.md §3.
type Phase int

const (
	PhaseInit Phase = iota
	PhaseListen
	PhaseConnect
	PhaseUpload
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseInit:
		return "Init"
	case PhaseListen:
		return "Listen"
	case PhaseConnect:
		return "Connect"
	case PhaseUpload:
		return "Upload"
	case PhaseDone:
		return "Done"
	default:
		return "Unknown"
	}
}

// Stage identifies where in a cycle TestHook fires.
type Stage int

const (
	UDPSetup Stage = iota
	TCPSetup
)

// Callbacks are the host's extension points (spec.md §6, §9's "capability
// set supplied at construction" redesign of the C function-pointer
// design). All three are optional.
type Callbacks struct {
	// OnMsg fires whenever LastMsg changes. ctx carries the current
	// cycle's diagnostic tag (see withCycleID).
	OnMsg func(ctx context.Context, d *Driver)

	// GetRecords is invoked once per TCP cycle at the start of the
	// upload phase. It should call Driver.SendRecord/SendAlias/SendInfo
	// synchronously and must not retain d or any reference derived from
	// it past its own return. A non-nil error aborts the upload.
	GetRecords func(ctx context.Context, d *Driver) error

	// TestHook is invoked immediately after socket setup in each phase,
	// primarily so tests can learn the ephemeral UDP port or synchronize
	// with phase transitions.
	TestHook func(d *Driver, stage Stage)
}

// Options configures tunables that spec.md §5 calls "process-wide" but
// models here per DriverState, with process-wide defaults.
type Options struct {
	// UDPPort to bind the discovery listener on. Zero means "bind an
	// ephemeral port" (read back via Driver.UDPPort after TestHook fires
	// for UDPSetup).
	UDPPort int
	// Timeout is the base per-operation timeout. Default 20s.
	Timeout time.Duration
	// MaxHoldoff bounds the randomized post-discovery connect delay.
	// Default 10s.
	MaxHoldoff time.Duration
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = 20 * time.Second
	}
	if o.MaxHoldoff <= 0 {
		o.MaxHoldoff = 10 * time.Second
	}
	return o
}

// Driver is the Go-native DriverState: the long-lived state machine owning
// a UDP listener, then a TCP connection, that discovers a catalog server,
// uploads to it, and sustains the connection until it drops.
type Driver struct {
	opts      Options
	cfg       *reccfg.Config
	callbacks Callbacks
	waker     *sockio.Waker

	mu       sync.Mutex
	phase    Phase
	shutdown bool
	lastMsg  string

	udpPort     int
	errorStreak int
	haveServer  bool
	serverAddr  serverAddr
	serverKey   uint32

	uploader *catalog.Uploader // non-nil only during the upload phase

	doneCh   chan struct{}
	doneOnce sync.Once
}

type serverAddr struct {
	ip   uint32
	port uint16
}

// New constructs a Driver. cfg may be further mutated with AddEnvVars /
// AddExcludePatterns until Run is called, at which point it is locked
// (spec.md §9's builder-contract redesign of the "no-op after phase !=
// Init" rule).
func New(cfg *reccfg.Config, callbacks Callbacks, opts Options) *Driver {
	if cfg == nil {
		cfg = reccfg.New()
	}
	return &Driver{
		opts:      opts.withDefaults(),
		cfg:       cfg,
		callbacks: callbacks,
		waker:     sockio.NewWaker(),
		phase:     PhaseInit,
		udpPort:   opts.UDPPort,
		doneCh:    make(chan struct{}),
	}
}

// Phase returns the Driver's current phase.
func (d *Driver) Phase() Phase {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.phase
}

// LastMsg returns the last human-readable status line.
func (d *Driver) LastMsg() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastMsg
}

// UDPPort returns the bound discovery-listener port, valid once TestHook
// has fired with stage UDPSetup for the first time.
func (d *Driver) UDPPort() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.udpPort
}

// Config returns the Driver's Config, for the host to populate before Run.
func (d *Driver) Config() *reccfg.Config {
	return d.cfg
}

// Done returns the channel closed once, after Shutdown and the Driver's
// loop has fully exited (spec.md §3 and §I6's shutdownEvent).
func (d *Driver) Done() <-chan struct{} {
	return d.doneCh
}

// Shutdown requests the Driver stop. It is safe to call more than once
// and from any goroutine; every outstanding blocking primitive returns
// "timed out" within one scheduling quantum (§I4), and the loop exits at
// the top of its next iteration.
func (d *Driver) Shutdown() {
	d.mu.Lock()
	d.shutdown = true
	d.mu.Unlock()
	d.waker.Wake()
}

func (d *Driver) isShutdown() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shutdown
}

func (d *Driver) setPhase(p Phase) {
	d.mu.Lock()
	d.phase = p
	d.mu.Unlock()
}

func (d *Driver) setMsg(ctx context.Context, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	d.mu.Lock()
	d.lastMsg = msg
	d.mu.Unlock()
	d.infof(ctx, "%s", msg)
	if d.callbacks.OnMsg != nil {
		d.callbacks.OnMsg(ctx, d)
	}
}

// SendRecord allocates a fresh record-id and announces it. Valid only
// from within a GetRecords callback.
func (d *Driver) SendRecord(typeName, name string) (int32, error) {
	if d.uploader == nil {
		return -1, errNoUpload
	}
	return d.uploader.SendRecord(typeName, name)
}

// SendAlias announces an additional name bound to rid. Valid only from
// within a GetRecords callback.
func (d *Driver) SendAlias(rid int32, aliasName string) error {
	if d.uploader == nil {
		return errNoUpload
	}
	return d.uploader.SendAlias(rid, aliasName)
}

// SendInfo attaches a key/value info tag to rid (0 for IOC-wide). Valid
// only from within a GetRecords callback.
func (d *Driver) SendInfo(rid int32, key, value string) error {
	if d.uploader == nil {
		return errNoUpload
	}
	return d.uploader.SendInfo(rid, key, value)
}

// ExcludePV reports whether name matches a configured exclusion glob, so a
// GetRecords callback can skip pushing it. Equivalent to
// d.Config().Excluded(name).
func (d *Driver) ExcludePV(name string) bool {
	return d.cfg.Excluded(name)
}

// Run executes the Driver's state machine loop until Shutdown is called.
// It blocks; the host typically runs it in its own goroutine. ctx carries
// logging context and is handed on to the OnMsg and GetRecords callbacks;
// canceling it does not stop the Driver — use Shutdown for that.
func (d *Driver) Run(ctx context.Context) {
	d.cfg.Lock()
	defer d.doneOnce.Do(func() { close(d.doneCh) })

	for !d.isShutdown() {
		d.runCycle(ctx)
	}
	d.infof(ctx, "stopping")
}

// runCycle executes one full iteration of the outer loop: error back-off,
// UDP discovery, holdoff, TCP upload and maintenance. Grounded on the
// five numbered steps of spec.md §4.3.
func (d *Driver) runCycle(ctx context.Context) {
	cycleID := uuid.New().String()
	ctx = withCycleID(ctx, cycleID)

	if d.errorStreak > 10 {
		d.errorStreak = 10
	}
	backoff := time.Duration(d.errorStreak) * 5 * time.Second
	if d.sleepInterruptible(backoff) {
		return
	}
	d.errorStreak++

	d.setPhase(PhaseListen)
	d.haveServer = false
	if err := d.udpPhase(ctx); err != nil {
		d.setMsg(ctx, "discovery failed: %v", err)
		return
	}

	holdoff := time.Duration(rand.Int63n(int64(d.opts.MaxHoldoff)))
	if holdoff > 2*time.Second {
		d.infof(ctx, "holding off %v before connecting", holdoff)
	}
	if d.sleepInterruptible(holdoff) {
		d.setMsg(ctx, "holdoff interrupted")
		return
	}

	d.setPhase(PhaseConnect)
	clean, err := d.tcpPhase(ctx)
	if err != nil {
		d.setMsg(ctx, "connection failed: %v", err)
		return
	}
	if clean {
		d.errorStreak = 0
	}
	d.setPhase(PhaseListen)
	d.setMsg(ctx, "lost server %s", formatServerAddr(d.serverAddr))
}

// sleepInterruptible blocks for dur, or until the Driver's Waker fires,
// whichever comes first. Reports whether it was interrupted.
func (d *Driver) sleepInterruptible(dur time.Duration) bool {
	if dur <= 0 {
		return d.waker.Fired()
	}
	timer := time.NewTimer(dur)
	defer timer.Stop()
	select {
	case <-timer.C:
		return false
	case <-d.waker.Context().Done():
		return true
	}
}

var errNoUpload = &uploadStateError{}

type uploadStateError struct{}

func (*uploadStateError) Error() string {
	return "reccaster: no upload in progress"
}
