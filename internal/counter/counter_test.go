package counter

import (
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// fakeRuntime records evaluated scripts; EvalBool reports whether the
// accounting functions are installed.
type fakeRuntime struct {
	installed bool
	evals     []string
}

func (f *fakeRuntime) Eval(js string) error                   { f.evals = append(f.evals, js); return nil }
func (f *fakeRuntime) EvalString(js string) (string, error)   { return "", nil }
func (f *fakeRuntime) EvalInt(js string) (int, error)         { return 0, nil }
func (f *fakeRuntime) RegisterFunc(name string, fn any) error { return nil }
func (f *fakeRuntime) RunMicrotasks()                         {}

func (f *fakeRuntime) EvalBool(js string) (bool, error) {
	f.evals = append(f.evals, js)
	return f.installed, nil
}

func TestIncrAdditive(t *testing.T) {
	var seen []uint64
	c := New(func(n uint64) { seen = append(seen, n) })
	for _, d := range []int64{3, 0, 4} {
		if !c.Incr(d) {
			t.Fatalf("Incr(%d) = false", d)
		}
	}
	if c.Count() != 7 {
		t.Fatalf("Count = %d, want 7", c.Count())
	}
	if len(seen) != 3 || seen[2] != 7 {
		t.Fatalf("listener saw %v", seen)
	}
}

// Negative deltas are accepted without changing the count or notifying.
func TestIncrNegativeIsNoop(t *testing.T) {
	calls := 0
	c := New(func(uint64) { calls++ })
	c.Incr(5)
	if !c.Incr(-3) {
		t.Fatal("Incr(-3) = false, want true")
	}
	if c.Count() != 5 {
		t.Fatalf("Count = %d, want 5", c.Count())
	}
	if calls != 1 {
		t.Fatalf("listener called %d times, want 1", calls)
	}
}

func TestIncrFromScript(t *testing.T) {
	c := New(nil)
	tests := []struct {
		argc    int
		kind    string
		value   int
		want    int
		wantErr error
	}{
		{0, "undefined", 0, 0, ErrMissingParams},
		{1, "string", 0, 0, ErrNotNumber},
		{1, "number", 4, 1, nil},
		{1, "number", -1, 1, nil},
	}
	for _, tt := range tests {
		got, err := c.incrFromScript(tt.argc, tt.kind, tt.value)
		if !errors.Is(err, tt.wantErr) || got != tt.want {
			t.Fatalf("incrFromScript(%d, %q, %d) = %d, %v", tt.argc, tt.kind, tt.value, got, err)
		}
	}
	if c.Count() != 4 {
		t.Fatalf("Count = %d, want 4", c.Count())
	}
}

func TestRecordUsageBeforeBootstrap(t *testing.T) {
	obs, logs := observer.New(zapcore.DebugLevel)
	rt := &fakeRuntime{}
	c := New(nil)
	if err := c.Install(rt, zap.New(obs).Sugar()); err != nil {
		t.Fatalf("Install: %v", err)
	}

	if err := c.RecordStorageUsage(3, 5); err != nil {
		t.Fatalf("RecordStorageUsage: %v", err)
	}
	if err := c.RecordEventUsage(8); err != nil {
		t.Fatalf("RecordEventUsage: %v", err)
	}
	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("log entries = %+v", entries)
	}
	for _, e := range entries {
		if e.Level != zapcore.DebugLevel || !strings.Contains(e.Message, "is not a function") {
			t.Fatalf("entry = %+v", e)
		}
	}
}

func TestRecordUsageForwards(t *testing.T) {
	obs, logs := observer.New(zapcore.DebugLevel)
	rt := &fakeRuntime{installed: true}
	c := New(nil)
	if err := c.Install(rt, zap.New(obs).Sugar()); err != nil {
		t.Fatalf("Install: %v", err)
	}
	if err := c.RecordStorageUsage(3, 5); err != nil {
		t.Fatalf("RecordStorageUsage: %v", err)
	}
	last := rt.evals[len(rt.evals)-1]
	if !strings.Contains(last, "c.storIncr(3, 5)") {
		t.Fatalf("forwarded script = %s", last)
	}
	if logs.Len() != 0 {
		t.Fatalf("unexpected logs: %+v", logs.All())
	}
}

func TestRecordUsageWithoutContext(t *testing.T) {
	if err := New(nil).RecordEventUsage(1); err != nil {
		t.Fatalf("RecordEventUsage: %v", err)
	}
}
