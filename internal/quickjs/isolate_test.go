//go:build !v8

package quickjs

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Myriagram/nvm/internal/core"
)

func newTestIsolate(t *testing.T) *Isolate {
	t.Helper()
	iso, err := New(core.EngineConfig{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(iso.Dispose)
	return iso
}

func runScript(t *testing.T, iso *Isolate, source string) (core.Context, error) {
	t.Helper()
	ctx, err := iso.NewContext()
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	script, err := ctx.Compile(source, "test.js")
	if err != nil {
		return ctx, err
	}
	return ctx, script.Run()
}

func TestRunAndEval(t *testing.T) {
	iso := newTestIsolate(t)
	ctx, err := runScript(t, iso, "globalThis.answer = 6 * 7;")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	defer ctx.Close()
	n, err := ctx.EvalInt("answer")
	if err != nil || n != 42 {
		t.Fatalf("answer = %d, %v", n, err)
	}
}

func TestCompileErrorPhase(t *testing.T) {
	iso := newTestIsolate(t)
	ctx, err := runScript(t, iso, "var = 1;")
	defer ctx.Close()

	var se *core.ScriptError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *core.ScriptError", err)
	}
	if se.Phase != core.PhaseCompile {
		t.Fatalf("phase = %v, want compile", se.Phase)
	}
	if !strings.Contains(se.Message, "SyntaxError") {
		t.Fatalf("message = %q", se.Message)
	}
	if se.Line != 1 || !strings.Contains(se.Stack, "test.js:1") {
		t.Fatalf("position = %d, stack = %q", se.Line, se.Stack)
	}
}

func TestRuntimeErrorPhase(t *testing.T) {
	iso := newTestIsolate(t)
	ctx, err := runScript(t, iso, "var a = 1;\nnull.x;")
	defer ctx.Close()

	var se *core.ScriptError
	if !errors.As(err, &se) || se.Phase != core.PhaseRuntime {
		t.Fatalf("err = %v, want runtime ScriptError", err)
	}
	if !strings.Contains(se.Message, "TypeError") {
		t.Fatalf("message = %q", se.Message)
	}
	if se.Line != 2 {
		t.Fatalf("line = %d, want 2", se.Line)
	}
	if !strings.Contains(se.Stack, "test.js:2") || !strings.HasPrefix(se.Stack, se.Message) {
		t.Fatalf("stack = %q", se.Stack)
	}
}

func TestRuntimeErrorSkipsHostFrames(t *testing.T) {
	iso := newTestIsolate(t)
	ctx, err := iso.NewContext()
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	defer ctx.Close()
	if err := ctx.RegisterFunc("fail", func(s string) (int, error) {
		return 0, errors.New("refused " + s)
	}); err != nil {
		t.Fatalf("RegisterFunc: %v", err)
	}
	script, err := ctx.Compile("var a = 1;\n\nfail('x');", "test.js")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	err = script.Run()
	var se *core.ScriptError
	if !errors.As(err, &se) || !strings.Contains(se.Message, "refused x") {
		t.Fatalf("err = %v", err)
	}
	if se.Line != 3 {
		t.Fatalf("line = %d, want 3 (the call site, not the host wrapper)", se.Line)
	}
}

func TestScriptRunsOnce(t *testing.T) {
	iso := newTestIsolate(t)
	ctx, err := iso.NewContext()
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	script, err := ctx.Compile("globalThis.n = (globalThis.n || 0) + 1;", "test.js")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if err := script.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := script.Run(); err == nil {
		t.Fatal("second Run succeeded")
	}
	// A compiled script that never runs is released with the context.
	if _, err := ctx.Compile("1;", "unused.js"); err != nil {
		t.Fatalf("Compile: %v", err)
	}
	ctx.Close()
}

func TestTerminatedRuntimeRefusesWork(t *testing.T) {
	iso := newTestIsolate(t)
	ctx, err := iso.NewContext()
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	defer ctx.Close()
	calls := 0
	if err := ctx.RegisterFunc("work", func() (int, error) {
		calls++
		return 1, nil
	}); err != nil {
		t.Fatalf("RegisterFunc: %v", err)
	}
	script, err := ctx.Compile(`
		var caught = 0;
		work();
		globalThis.__stop();
		for (;;) {
			try { work(); } catch (e) { caught++; }
		}`, "test.js")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if err := ctx.RegisterFunc("__stop", func() (int, error) {
		iso.TerminateExecution()
		// A nested evaluation after termination must not clear the interrupt.
		if _, err := ctx.EvalBool("true"); !errors.Is(err, ErrTerminated) {
			t.Errorf("nested eval after terminate: err = %v", err)
		}
		return 0, nil
	}); err != nil {
		t.Fatalf("RegisterFunc: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- script.Run() }()
	select {
	case err := <-done:
		if err == nil || !strings.Contains(err.Error(), "interrupted") {
			t.Fatalf("Run: err = %v, want interruption", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("terminated script is still running")
	}
	if calls != 1 {
		t.Fatalf("host function ran %d times, want 1", calls)
	}
}

func TestHeapStatistics(t *testing.T) {
	iso := newTestIsolate(t)
	hs := iso.HeapStatistics()
	if hs.TotalHeapSize == 0 {
		t.Skip("runtime pointers not recoverable from this quickjs build")
	}
	ctx, err := runScript(t, iso, "globalThis.keep = new Array(100000).fill(1);")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	ctx.Close()
	if after := iso.HeapStatistics(); after.PeakMallocedMemory < hs.TotalHeapSize {
		t.Fatalf("peak %d below the initial heap %d", after.PeakMallocedMemory, hs.TotalHeapSize)
	}
}

func TestTerminateRefusesContexts(t *testing.T) {
	iso := newTestIsolate(t)
	iso.TerminateExecution()
	if _, err := iso.NewContext(); !errors.Is(err, ErrTerminated) {
		t.Fatalf("NewContext after terminate: err = %v", err)
	}
}

func TestMicrotasks(t *testing.T) {
	iso := newTestIsolate(t)
	ctx, err := runScript(t, iso, "globalThis.done = false; Promise.resolve().then(function() { done = true; });")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	defer ctx.Close()
	ctx.RunMicrotasks()
	if ok, _ := ctx.EvalBool("done"); !ok {
		t.Fatal("microtask did not run")
	}
}

func TestVersion(t *testing.T) {
	if !strings.HasPrefix(Version(), "quickjs") {
		t.Fatalf("Version = %q", Version())
	}
}
