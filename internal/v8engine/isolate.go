//go:build v8

// Package v8engine is the V8 backend of the sandbox, selected with -tags v8.
package v8engine

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Myriagram/nvm/internal/core"
	v8 "github.com/tommie/v8go"
)

var stackFlagOnce sync.Once

// Isolate implements core.Isolate on one V8 isolate.
type Isolate struct {
	iso *v8.Isolate

	mu        sync.Mutex
	open      map[*v8Context]struct{}
	peakArray uint64
	peakMall  uint64
}

var _ core.Isolate = (*Isolate)(nil)

// New creates an isolate. V8 flags are process-wide, so the stack size of
// the first isolate created applies to all of them.
func New(cfg core.EngineConfig) (*Isolate, error) {
	kb := cfg.StackSizeKB
	if kb <= 0 {
		kb = core.DefaultStackSizeKB
	}
	stackFlagOnce.Do(func() {
		v8.SetFlags(fmt.Sprintf("--stack-size=%d", kb))
	})

	var iso *v8.Isolate
	if cfg.MemoryLimitMB > 0 {
		heapSize := uint64(cfg.MemoryLimitMB) * 1024 * 1024
		iso = v8.NewIsolate(v8.WithResourceConstraints(heapSize/2, heapSize))
	} else {
		iso = v8.NewIsolate()
	}
	if iso == nil {
		return nil, errors.New("v8: isolate allocation failed")
	}
	return &Isolate{iso: iso, open: make(map[*v8Context]struct{})}, nil
}

// NewContext creates a fresh context in the isolate.
func (i *Isolate) NewContext() (core.Context, error) {
	ctx := v8.NewContext(i.iso)
	c := &v8Context{v8Runtime: &v8Runtime{iso: i.iso, ctx: ctx}, owner: i}
	i.mu.Lock()
	i.open[c] = struct{}{}
	i.mu.Unlock()
	return c, nil
}

// HeapStatistics returns the isolate's heap figures. V8 reports external
// memory, which holds array buffer backing stores, as a separate counter.
func (i *Isolate) HeapStatistics() core.HeapStatistics {
	hs := i.iso.GetHeapStatistics()
	i.mu.Lock()
	defer i.mu.Unlock()
	i.peakArray = max(i.peakArray, hs.ExternalMemory)
	i.peakMall = max(i.peakMall, hs.PeakMallocedMemory)
	return core.HeapStatistics{
		HeapSizeLimit:           hs.HeapSizeLimit,
		MallocedMemory:          hs.MallocedMemory,
		PeakMallocedMemory:      i.peakMall,
		TotalAvailableSize:      hs.TotalAvailableSize,
		TotalHeapSize:           hs.TotalHeapSize,
		TotalHeapSizeExecutable: hs.TotalHeapSizeExecutable,
		TotalPhysicalSize:       hs.TotalPhysicalSize,
		UsedHeapSize:            hs.UsedHeapSize,
		TotalArrayBufferSize:    hs.ExternalMemory,
		PeakArrayBufferSize:     i.peakArray,
	}
}

// TerminateExecution forcefully stops the script running in the isolate.
// Safe to call from any goroutine.
func (i *Isolate) TerminateExecution() {
	i.iso.TerminateExecution()
}

// Dispose closes open contexts and releases the isolate.
func (i *Isolate) Dispose() {
	i.mu.Lock()
	ctxs := make([]*v8Context, 0, len(i.open))
	for c := range i.open {
		ctxs = append(ctxs, c)
	}
	i.mu.Unlock()
	for _, c := range ctxs {
		c.Close()
	}
	i.iso.Dispose()
}

// Version reports the embedded V8 version.
func (i *Isolate) Version() string {
	return Version()
}

// Version reports the embedded V8 version.
func Version() string {
	return "v8 " + v8.Version()
}

// v8Context implements core.Context.
type v8Context struct {
	*v8Runtime
	owner *Isolate
}

func (c *v8Context) Close() {
	c.owner.mu.Lock()
	_, ok := c.owner.open[c]
	delete(c.owner.open, c)
	c.owner.mu.Unlock()
	if ok {
		c.ctx.Close()
	}
}

// Compile parses source without running it.
func (c *v8Context) Compile(source, origin string) (core.Script, error) {
	us, err := c.iso.CompileUnboundScript(source, origin, v8.CompileOptions{})
	if err != nil {
		return nil, scriptError(core.PhaseCompile, origin, err)
	}
	return &v8Script{ctx: c, script: us, origin: origin}, nil
}

type v8Script struct {
	ctx    *v8Context
	script *v8.UnboundScript
	origin string
}

func (s *v8Script) Run() error {
	if _, err := s.script.Run(s.ctx.ctx); err != nil {
		return scriptError(core.PhaseRuntime, s.origin, err)
	}
	return nil
}

// scriptError converts a v8go error into a ScriptError. The location of a
// *v8.JSError is "origin:line:column"; the stack trace is consulted when the
// location is empty.
func scriptError(phase core.Phase, origin string, err error) *core.ScriptError {
	var jsErr *v8.JSError
	if errors.As(err, &jsErr) {
		return core.NewScriptError(phase, origin, jsErr.Message, jsErr.StackTrace, err,
			jsErr.Location, jsErr.StackTrace)
	}
	return core.NewScriptError(phase, origin, err.Error(), "", err)
}
