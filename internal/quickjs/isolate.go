//go:build !v8

// Package quickjs is the QuickJS backend of the sandbox, built on the pure-Go
// modernc.org/quickjs port. It is the default backend; build with -tags v8 to
// use V8 instead.
package quickjs

import (
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Myriagram/nvm/internal/core"
	"modernc.org/quickjs"
)

// sampleInterval bounds how often HeapStatistics walks a live heap.
// JS_ComputeMemoryUsage visits every object, and the limit listener asks for
// statistics on every counted instruction.
const sampleInterval = 5 * time.Millisecond

// ErrTerminated is returned for contexts created after TerminateExecution.
var ErrTerminated = errors.New("quickjs: execution terminated")

// Isolate implements core.Isolate. modernc.org/quickjs pairs every context
// with its own runtime, so each NewContext creates a fresh VM; heap
// statistics describe the most recent one.
type Isolate struct {
	cfg core.EngineConfig

	mu       sync.Mutex
	active   *quickjs.VM
	open     map[*qjsContext]struct{}
	last     core.HeapStatistics
	sampled  time.Time
	disposed bool

	terminated atomic.Bool
}

var _ core.Isolate = (*Isolate)(nil)

// New creates an isolate. A throwaway VM is created and closed immediately so
// allocation failures surface here rather than on the first execution.
func New(cfg core.EngineConfig) (*Isolate, error) {
	iso := &Isolate{cfg: cfg, open: make(map[*qjsContext]struct{})}
	vm, err := iso.newVM()
	if err != nil {
		return nil, err
	}
	iso.sample(vm)
	vm.Close()
	return iso, nil
}

func (i *Isolate) newVM() (*quickjs.VM, error) {
	vm, err := quickjs.NewVM()
	if err != nil {
		return nil, fmt.Errorf("creating QuickJS VM: %w", err)
	}
	if i.cfg.MemoryLimitMB > 0 {
		vm.SetMemoryLimit(uintptr(i.cfg.MemoryLimitMB) * 1024 * 1024)
	}
	// Only an explicit request changes the runtime's own stack guard.
	if i.cfg.StackSizeKB > 0 {
		setMaxStackSize(vm, uint64(i.cfg.StackSizeKB)*1024)
	}
	return vm, nil
}

// NewContext creates a fresh VM and makes it the target of interrupts and
// heap sampling.
func (i *Isolate) NewContext() (core.Context, error) {
	if i.terminated.Load() {
		return nil, ErrTerminated
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.disposed {
		return nil, errors.New("quickjs: isolate disposed")
	}
	vm, err := i.newVM()
	if err != nil {
		return nil, err
	}
	c := &qjsContext{
		qjsRuntime: &qjsRuntime{vm: vm, halted: &i.terminated},
		iso:        i,
		pending:    make(map[*qjsScript]struct{}),
	}
	i.active = vm
	i.sampled = time.Time{}
	i.open[c] = struct{}{}
	return c, nil
}

// HeapStatistics samples the active VM, or returns the figures recorded when
// the last context was closed. Samples of a live VM are reused for up to
// sampleInterval.
func (i *Isolate) HeapStatistics() core.HeapStatistics {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.active != nil && time.Since(i.sampled) >= sampleInterval {
		i.sampleLocked(i.active)
	}
	return i.last
}

func (i *Isolate) sample(vm *quickjs.VM) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.sampleLocked(vm)
}

func (i *Isolate) sampleLocked(vm *quickjs.VM) {
	var u memoryUsage
	if !computeMemoryUsage(vm, &u) {
		return
	}
	malloc := nonNegative(u[muMallocSize])
	limit := nonNegative(u[muMallocLimit])
	binary := nonNegative(u[muBinaryObjectSize])

	s := core.HeapStatistics{
		TotalHeapSize:        malloc,
		TotalPhysicalSize:    malloc,
		UsedHeapSize:         nonNegative(u[muMemoryUsedSize]),
		MallocedMemory:       malloc,
		HeapSizeLimit:        limit,
		TotalArrayBufferSize: binary,
		PeakMallocedMemory:   max(i.last.PeakMallocedMemory, malloc),
		PeakArrayBufferSize:  max(i.last.PeakArrayBufferSize, binary),
	}
	if limit > malloc {
		s.TotalAvailableSize = limit - malloc
	}
	i.last = s
	i.sampled = time.Now()
}

func nonNegative(v int64) uint64 {
	if v < 0 {
		return 0
	}
	return uint64(v)
}

// TerminateExecution interrupts the running VM and refuses new contexts.
// Safe to call from any goroutine.
func (i *Isolate) TerminateExecution() {
	i.terminated.Store(true)
	i.mu.Lock()
	vm := i.active
	i.mu.Unlock()
	if vm != nil {
		vm.Interrupt()
	}
}

// Dispose closes every context still open.
func (i *Isolate) Dispose() {
	i.mu.Lock()
	ctxs := make([]*qjsContext, 0, len(i.open))
	for c := range i.open {
		ctxs = append(ctxs, c)
	}
	i.disposed = true
	i.mu.Unlock()
	for _, c := range ctxs {
		c.Close()
	}
}

// Version reports the quickjs module version linked into the binary.
func (i *Isolate) Version() string {
	return Version()
}

// Version reports the quickjs module version linked into the binary.
func Version() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, dep := range info.Deps {
			if dep.Path == "modernc.org/quickjs" {
				return "quickjs " + strings.TrimPrefix(dep.Version, "v")
			}
		}
	}
	return "quickjs"
}

func (i *Isolate) release(c *qjsContext) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if _, ok := i.open[c]; !ok {
		return
	}
	delete(i.open, c)
	c.discardPending()
	if i.active == c.vm {
		i.sampleLocked(c.vm)
		i.active = nil
	}
	c.vm.Close()
}

// qjsContext implements core.Context on one VM.
type qjsContext struct {
	*qjsRuntime
	iso     *Isolate
	pending map[*qjsScript]struct{} // compiled, not yet run
}

func (c *qjsContext) Close() {
	c.iso.release(c)
}
