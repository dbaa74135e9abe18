// Package bindings installs the host environment a contract runs against:
// the code generation policy, console, contract storage, events and the
// accounting functions of the instruction counter.
package bindings

import (
	"errors"
	"fmt"

	"github.com/Myriagram/nvm/internal/core"
	"github.com/Myriagram/nvm/internal/counter"
)

// Env carries the per-context state bindings are built against. Storage
// handles are resolved from the host hooks once, when the Env is created.
type Env struct {
	Counter *counter.Counter
	Events  core.EventSink
	Log     core.Logger
	// Halted reports whether the execution was terminated. Bindings refuse
	// work once it returns true.
	Halted func() bool

	local  core.Storage
	global core.Storage
}

// NewEnv resolves hooks for one execution context. hooks and events may be
// nil; the corresponding bindings then throw when used.
func NewEnv(c *counter.Counter, hooks core.HostHooks, events core.EventSink, log core.Logger) *Env {
	env := &Env{Counter: c, Events: events, Log: log}
	if hooks != nil {
		env.local = hooks.LocalStorage()
		env.global = hooks.GlobalStorage()
	}
	return env
}

// ErrHalted is thrown into script code by bindings called after the
// execution was terminated.
var ErrHalted = errors.New("execution terminated")

func (env *Env) halted() bool {
	return env.Halted != nil && env.Halted()
}

// SetupFunc configures one aspect of a fresh context.
type SetupFunc func(rt core.JSRuntime, env *Env) error

// Defaults returns the setup functions every execution context receives.
// The accounting bootstrap is only installed when requested.
func Defaults(installAccounting bool) []SetupFunc {
	fns := []SetupFunc{
		SetupConsole,
		SetupStorage,
		SetupEvent,
	}
	if installAccounting {
		fns = append(fns, SetupAccounting)
	}
	return fns
}

// Run applies fns in order and stops at the first failure.
func Run(rt core.JSRuntime, env *Env, fns []SetupFunc) error {
	for i, fn := range fns {
		if err := fn(rt, env); err != nil {
			return fmt.Errorf("setup step %d: %w", i, err)
		}
	}
	return nil
}
