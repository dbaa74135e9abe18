//go:build v8

package v8engine

import (
	"errors"
	"strings"
	"testing"

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

func TestCompileError(t *testing.T) {
	iso := newTestIsolate(t)
	ctx, _ := iso.NewContext()
	defer ctx.Close()

	_, err := ctx.Compile("var = 1;", "test.js")
	var se *core.ScriptError
	if !errors.As(err, &se) || se.Phase != core.PhaseCompile {
		t.Fatalf("err = %v, want compile ScriptError", err)
	}
	if se.Line != 1 {
		t.Fatalf("line = %d, want 1", se.Line)
	}
}

func TestRuntimeError(t *testing.T) {
	iso := newTestIsolate(t)
	ctx, _ := iso.NewContext()
	defer ctx.Close()

	script, err := ctx.Compile("var a = 1;\nnull.x;", "test.js")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	err = script.Run()
	var se *core.ScriptError
	if !errors.As(err, &se) || se.Phase != core.PhaseRuntime {
		t.Fatalf("err = %v, want runtime ScriptError", err)
	}
	if se.Line != 2 || !strings.Contains(se.Message, "TypeError") {
		t.Fatalf("got line %d message %q", se.Line, se.Message)
	}
}

func TestRegisterFuncThrowsError(t *testing.T) {
	iso := newTestIsolate(t)
	ctx, _ := iso.NewContext()
	defer ctx.Close()

	if err := ctx.RegisterFunc("fail", func() (int, error) { return 0, errors.New("nope") }); err != nil {
		t.Fatalf("RegisterFunc: %v", err)
	}
	ok, err := ctx.EvalBool("(function() { try { fail(); } catch (e) { return e instanceof Error && e.message === 'nope'; } return false; })()")
	if err != nil || !ok {
		t.Fatalf("thrown value is not an Error: %v, %v", ok, err)
	}
}

func TestHeapStatistics(t *testing.T) {
	iso := newTestIsolate(t)
	if hs := iso.HeapStatistics(); hs.TotalHeapSize == 0 || hs.HeapSizeLimit == 0 {
		t.Fatalf("heap statistics = %+v", hs)
	}
}
