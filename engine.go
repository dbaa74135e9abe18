// Package nvm is a metered sandbox for contract code written in JavaScript.
//
// An Engine owns one interpreter isolate. Each call to Execute opens a fresh
// context, installs the instruction counter and the host bindings, runs one
// pipeline stage and tears the context down again. Instrumented code calls
// _instruction_counter.incr; every increment compares the engine's Stats
// against its Limits and terminates the run on a breach.
package nvm

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Myriagram/nvm/internal/bindings"
	"github.com/Myriagram/nvm/internal/core"
	"github.com/Myriagram/nvm/internal/counter"
	"github.com/Myriagram/nvm/internal/logging"
)

// Engine is one sandbox handle. Calls other than Terminate, Stats and
// TerminationRequested must be serialized by the caller; Terminate may be
// called from any goroutine while a script runs.
type Engine struct {
	iso    core.Isolate
	cfg    EngineConfig
	log    core.Logger
	events core.EventSink
	setup  []bindings.SetupFunc

	mu       sync.Mutex // guards the fields below
	limits   Limits
	stats    Stats
	testing  bool
	disposed atomic.Bool

	// lifeMu is write-held while the isolate is torn down; Terminate only
	// touches the isolate under a read lock it never waits for.
	lifeMu sync.RWMutex

	active     atomic.Bool
	live       atomic.Pointer[counter.Counter]
	terminated atomic.Bool
	breach     atomic.Int32
}

// Option configures an Engine at creation.
type Option func(*Engine)

// WithLogger routes engine and contract logging to log.
func WithLogger(log core.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithEventSink receives events contracts trigger with Event.Trigger.
func WithEventSink(sink core.EventSink) Option {
	return func(e *Engine) { e.events = sink }
}

// Create allocates an engine with its own isolate. The limits start from
// cfg.MaxInstructions and cfg.MaxMemoryBytes.
func Create(cfg EngineConfig, opts ...Option) (*Engine, error) {
	iso, err := newIsolate(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAllocationFailed, err)
	}
	return newEngine(iso, cfg, opts...), nil
}

func newEngine(iso core.Isolate, cfg EngineConfig, opts ...Option) *Engine {
	e := &Engine{
		iso:     iso,
		cfg:     cfg,
		log:     logging.Nop(),
		setup:   bindings.Defaults(cfg.InstallAccounting),
		limits:  Limits{MaxInstructions: cfg.MaxInstructions, MaxMemory: cfg.MaxMemoryBytes},
		testing: cfg.Testing,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Dispose releases the isolate. It fails with ErrContextBusy while an
// execution is in progress and with ErrDisposed when called twice.
func (e *Engine) Dispose() error {
	e.mu.Lock()
	if e.disposed.Load() {
		e.mu.Unlock()
		return ErrDisposed
	}
	if e.active.Load() {
		e.mu.Unlock()
		return ErrContextBusy
	}
	e.disposed.Store(true)
	e.mu.Unlock()

	e.lifeMu.Lock()
	defer e.lifeMu.Unlock()
	e.iso.Dispose()
	return nil
}

// SetLimits replaces the limits applied to the next execution.
func (e *Engine) SetLimits(limits Limits) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed.Load() {
		return ErrDisposed
	}
	if e.active.Load() {
		return ErrContextBusy
	}
	e.limits = limits
	return nil
}

// Limits returns the configured limits.
func (e *Engine) Limits() Limits {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.limits
}

// SetTestingMode allows code generation from strings (eval, Function) in
// subsequent executions.
func (e *Engine) SetTestingMode(on bool) {
	e.mu.Lock()
	e.testing = on
	e.mu.Unlock()
}

// Stats returns the last refreshed snapshot without touching the isolate.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// ReadStats refreshes the snapshot from the isolate's telemetry and the
// instruction count of the live context.
func (e *Engine) ReadStats() (Stats, error) {
	if e.disposed.Load() {
		return Stats{}, ErrDisposed
	}
	count := e.Stats().CountOfExecutedInstructions
	if c := e.live.Load(); c != nil {
		count = c.Count()
	}
	return e.refresh(count), nil
}

func (e *Engine) refresh(count uint64) Stats {
	stats := statsFrom(e.iso.HeapStatistics(), count)
	e.mu.Lock()
	e.stats = stats
	e.mu.Unlock()
	return stats
}

// IsOverLimit refreshes the stats and compares them against the limits.
func (e *Engine) IsOverLimit() (LimitStatus, error) {
	stats, err := e.ReadStats()
	if err != nil {
		return LimitNone, err
	}
	return CheckLimits(stats, e.Limits()), nil
}

// Terminate stops the running script at its next interruption point. It
// never blocks and only the first call has an effect; a terminated engine
// refuses further executions.
func (e *Engine) Terminate() {
	if !e.terminated.CompareAndSwap(false, true) {
		return
	}
	if !e.lifeMu.TryRLock() {
		return
	}
	defer e.lifeMu.RUnlock()
	if e.disposed.Load() {
		return
	}
	e.iso.TerminateExecution()
}

// TerminationRequested reports whether Terminate has been called.
func (e *Engine) TerminationRequested() bool {
	return e.terminated.Load()
}

// Version returns the build identifier of the engine's interpreter.
func (e *Engine) Version() string {
	return e.iso.Version()
}

// Version returns the build identifier of the interpreter compiled into
// this binary.
func Version() string {
	return backendVersion()
}

// begin claims the engine for one execution.
func (e *Engine) begin() (Limits, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch {
	case e.disposed.Load():
		return Limits{}, false, ErrDisposed
	case e.terminated.Load():
		return Limits{}, false, ErrTerminated
	case !e.active.CompareAndSwap(false, true):
		return Limits{}, false, ErrContextBusy
	}
	return e.limits, e.testing, nil
}

// limitListener is invoked on every counter increment. The limits are the
// ones captured when the execution began.
func (e *Engine) limitListener(limits Limits) counter.Listener {
	return func(count uint64) {
		if e.terminated.Load() {
			return
		}
		stats := e.refresh(count)
		status := CheckLimits(stats, limits)
		if status == LimitNone {
			return
		}
		e.breach.CompareAndSwap(int32(LimitNone), int32(status))
		e.log.Debugf("%s after %d instructions, %d bytes in use", status, count, stats.TotalMemorySize)
		e.Terminate()
	}
}
