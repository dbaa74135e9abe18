// Package counter implements the instruction counter installed into every
// execution context. Instrumented script code reports the work it performs
// through _instruction_counter.incr(n); each accepted increment synchronously
// notifies the listener the engine registered for that context.
package counter

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/Myriagram/nvm/internal/core"
)

// GlobalName is the global property the counter object is installed under.
const GlobalName = "_instruction_counter"

// Listener is notified after every accepted increment with the new count.
type Listener func(count uint64)

// Errors surfaced to script code as thrown Error objects.
var (
	ErrMissingParams = errors.New("incr: missing params")
	ErrNotNumber     = errors.New("incr: value must be number")
)

// Counter is the accounting state of one execution context.
type Counter struct {
	count    atomic.Uint64
	listener Listener

	rt  core.JSRuntime
	log core.Logger
}

// New creates a counter whose increments are reported to listener.
func New(listener Listener) *Counter {
	return &Counter{listener: listener}
}

// Incr adds delta to the count and notifies the listener. Negative deltas
// leave the count untouched but are still reported as accepted; accounting
// code built on the counter relies on that permissiveness.
func (c *Counter) Incr(delta int64) bool {
	if delta < 0 {
		return true
	}
	n := c.count.Add(uint64(delta))
	if c.listener != nil {
		c.listener(n)
	}
	return true
}

// Count returns the current count. Safe from any goroutine.
func (c *Counter) Count() uint64 {
	return c.count.Load()
}

// incrFromScript validates the arguments of _instruction_counter.incr.
// value arrives already ToInt32-converted by the JS shim.
func (c *Counter) incrFromScript(argc int, kind string, value int) (int, error) {
	if argc < 1 {
		return 0, ErrMissingParams
	}
	if kind != "number" {
		return 0, ErrNotNumber
	}
	if c.Incr(int64(int32(value))) {
		return 1, nil
	}
	return 0, nil
}

const installJS = `
(function() {
	var incr = globalThis.__nvm_counter_incr;
	var count = globalThis.__nvm_counter_count;
	delete globalThis.__nvm_counter_incr;
	delete globalThis.__nvm_counter_count;
	var counter = {};
	Object.defineProperty(counter, 'incr', {
		value: function(v) {
			return incr(arguments.length, typeof v, typeof v === 'number' ? (v | 0) : 0) === 1;
		},
		writable: false, enumerable: false, configurable: false
	});
	Object.defineProperty(counter, 'count', {
		get: function() { return count(); },
		enumerable: true, configurable: false
	});
	Object.defineProperty(globalThis, '_instruction_counter', {
		value: counter, writable: false, enumerable: false, configurable: false
	});
})();
`

// Install defines the counter object on rt. The counter keeps rt to forward
// storage and event usage into the accounting functions installed later.
func (c *Counter) Install(rt core.JSRuntime, log core.Logger) error {
	if err := rt.RegisterFunc("__nvm_counter_incr", c.incrFromScript); err != nil {
		return fmt.Errorf("registering incr: %w", err)
	}
	if err := rt.RegisterFunc("__nvm_counter_count", func() (int, error) {
		return int(c.Count()), nil
	}); err != nil {
		return fmt.Errorf("registering count: %w", err)
	}
	if err := rt.Eval(installJS); err != nil {
		return fmt.Errorf("installing %s: %w", GlobalName, err)
	}
	c.rt = rt
	c.log = log
	return nil
}

// RecordStorageUsage charges a storage write of the given sizes through the
// counter's storIncr accounting function. Before the accounting bootstrap has
// installed storIncr the call only logs at debug level.
func (c *Counter) RecordStorageUsage(keyLength, valueLength int) error {
	return c.forward("storIncr", "RecordStorageUsage", keyLength, valueLength)
}

// RecordEventUsage charges an emitted event through eventIncr.
func (c *Counter) RecordEventUsage(messageLength int) error {
	return c.forward("eventIncr", "RecordEventUsage", messageLength)
}

func (c *Counter) forward(fn, caller string, sizes ...int) error {
	if c.rt == nil {
		c.debugf("%s: %s is not installed in a context", caller, GlobalName)
		return nil
	}
	args := ""
	for i, n := range sizes {
		if i > 0 {
			args += ", "
		}
		args += fmt.Sprintf("%d", n)
	}
	ok, err := c.rt.EvalBool(fmt.Sprintf(`(function() {
	var c = globalThis.%s;
	if (!c || typeof c.%s !== 'function') return false;
	c.%s(%s);
	return true;
})()`, GlobalName, fn, fn, args))
	if err != nil {
		return fmt.Errorf("%s: %w", caller, err)
	}
	if !ok {
		c.debugf("%s: %s.%s is not a function, the accounting bootstrap may not have run before execution",
			caller, GlobalName, fn)
	}
	return nil
}

func (c *Counter) debugf(template string, args ...any) {
	if c.log != nil {
		c.log.Debugf(template, args...)
	}
}
