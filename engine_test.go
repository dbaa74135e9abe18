package nvm

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/Myriagram/nvm/internal/core"
	"github.com/Myriagram/nvm/internal/counter"
)

// fakeIsolate records lifecycle calls and serves fixed telemetry.
type fakeIsolate struct {
	heap        core.HeapStatistics
	terminates  atomic.Int32
	disposes    atomic.Int32
	newContexts atomic.Int32
}

func (f *fakeIsolate) NewContext() (core.Context, error) {
	f.newContexts.Add(1)
	return nil, errors.New("fake isolate has no contexts")
}

func (f *fakeIsolate) HeapStatistics() core.HeapStatistics { return f.heap }
func (f *fakeIsolate) TerminateExecution()                 { f.terminates.Add(1) }
func (f *fakeIsolate) Dispose()                            { f.disposes.Add(1) }
func (f *fakeIsolate) Version() string                     { return "fake 1.0" }

func TestTerminateIdempotent(t *testing.T) {
	iso := &fakeIsolate{}
	e := newEngine(iso, EngineConfig{})

	if e.TerminationRequested() {
		t.Fatal("fresh engine reports termination")
	}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.Terminate()
		}()
	}
	wg.Wait()

	if !e.TerminationRequested() {
		t.Fatal("TerminationRequested = false after Terminate")
	}
	if n := iso.terminates.Load(); n != 1 {
		t.Fatalf("TerminateExecution called %d times, want 1", n)
	}
	if _, err := e.RunScriptSource("return 1;", 0, nil); !errors.Is(err, ErrTerminated) {
		t.Fatalf("run after terminate: err = %v, want ErrTerminated", err)
	}
	if iso.newContexts.Load() != 0 {
		t.Fatal("terminated engine opened a context")
	}
}

func TestLimitListenerInstructions(t *testing.T) {
	iso := &fakeIsolate{}
	e := newEngine(iso, EngineConfig{})
	c := counter.New(e.limitListener(Limits{MaxInstructions: 10}))

	for i := 0; i < 100; i++ {
		c.Incr(1)
	}
	if !e.TerminationRequested() {
		t.Fatal("limit breach did not terminate")
	}
	if n := iso.terminates.Load(); n != 1 {
		t.Fatalf("TerminateExecution called %d times, want 1", n)
	}
	if got := e.Stats().CountOfExecutedInstructions; got != 11 {
		t.Fatalf("stats count = %d, want 11 (refresh stops after termination)", got)
	}
	if err := e.terminationError(nil); !errors.Is(err, ErrInstructionLimitExceeded) {
		t.Fatalf("terminationError = %v", err)
	}
}

func TestLimitListenerMemory(t *testing.T) {
	iso := &fakeIsolate{heap: core.HeapStatistics{TotalHeapSize: 4096}}
	e := newEngine(iso, EngineConfig{})
	c := counter.New(e.limitListener(Limits{MaxInstructions: 1000, MaxMemory: 1024}))

	c.Incr(1)
	if !e.TerminationRequested() {
		t.Fatal("memory breach did not terminate")
	}
	if err := e.terminationError(nil); !errors.Is(err, ErrMemoryLimitExceeded) {
		t.Fatalf("terminationError = %v", err)
	}
}

func TestTerminateWithoutBreach(t *testing.T) {
	e := newEngine(&fakeIsolate{}, EngineConfig{})
	e.Terminate()
	if err := e.terminationError(nil); !errors.Is(err, ErrTerminated) {
		t.Fatalf("terminationError = %v, want ErrTerminated", err)
	}
}

func TestDisposeGuard(t *testing.T) {
	iso := &fakeIsolate{}
	e := newEngine(iso, EngineConfig{})

	if err := e.Dispose(); err != nil {
		t.Fatalf("Dispose: %v", err)
	}
	if err := e.Dispose(); !errors.Is(err, ErrDisposed) {
		t.Fatalf("second Dispose: err = %v, want ErrDisposed", err)
	}
	if iso.disposes.Load() != 1 {
		t.Fatalf("isolate disposed %d times", iso.disposes.Load())
	}
	if _, err := e.ReadStats(); !errors.Is(err, ErrDisposed) {
		t.Fatalf("ReadStats: err = %v", err)
	}
	if _, err := e.IsOverLimit(); !errors.Is(err, ErrDisposed) {
		t.Fatalf("IsOverLimit: err = %v", err)
	}
	if err := e.SetLimits(Limits{}); !errors.Is(err, ErrDisposed) {
		t.Fatalf("SetLimits: err = %v", err)
	}
	if _, err := e.RunScriptSource("return 1;", 0, nil); !errors.Is(err, ErrDisposed) {
		t.Fatalf("run: err = %v", err)
	}

	e.Terminate()
	if iso.terminates.Load() != 0 {
		t.Fatal("Terminate touched a disposed isolate")
	}
}

func TestBusyEngine(t *testing.T) {
	e := newEngine(&fakeIsolate{}, EngineConfig{})
	e.active.Store(true)

	if err := e.SetLimits(Limits{MaxInstructions: 1}); !errors.Is(err, ErrContextBusy) {
		t.Fatalf("SetLimits: err = %v, want ErrContextBusy", err)
	}
	if err := e.Dispose(); !errors.Is(err, ErrContextBusy) {
		t.Fatalf("Dispose: err = %v, want ErrContextBusy", err)
	}
	if _, err := e.RunScriptSource("return 1;", 0, nil); !errors.Is(err, ErrContextBusy) {
		t.Fatalf("run: err = %v, want ErrContextBusy", err)
	}
}

func TestContextAllocationFailure(t *testing.T) {
	e := newEngine(&fakeIsolate{}, EngineConfig{})
	_, err := e.RunScriptSource("return 1;", 0, nil)
	if !errors.Is(err, ErrSetup) {
		t.Fatalf("err = %v, want ErrSetup", err)
	}
	if e.active.Load() {
		t.Fatal("engine still busy after failed execution")
	}
}

func TestIsOverLimit(t *testing.T) {
	iso := &fakeIsolate{heap: core.HeapStatistics{TotalHeapSize: 2048}}
	e := newEngine(iso, EngineConfig{MaxMemoryBytes: 1024})

	status, err := e.IsOverLimit()
	if err != nil {
		t.Fatalf("IsOverLimit: %v", err)
	}
	if status != MemoryLimitExceeded {
		t.Fatalf("status = %v, want MemoryLimitExceeded", status)
	}
	if e.Stats().TotalHeapSize != 2048 {
		t.Fatal("IsOverLimit did not refresh the stats snapshot")
	}
	if err := e.SetLimits(Limits{}); err != nil {
		t.Fatalf("SetLimits: %v", err)
	}
	if status, _ := e.IsOverLimit(); status != LimitNone {
		t.Fatalf("status = %v after clearing limits", status)
	}
}

func TestVersion(t *testing.T) {
	e := newEngine(&fakeIsolate{}, EngineConfig{})
	if e.Version() != "fake 1.0" {
		t.Fatalf("Version = %q", e.Version())
	}
	if Version() == "" {
		t.Fatal("package Version is empty")
	}
}
