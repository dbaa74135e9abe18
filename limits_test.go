package nvm

import (
	"testing"

	"github.com/Myriagram/nvm/internal/core"
)

func TestCheckLimits(t *testing.T) {
	tests := []struct {
		name   string
		stats  Stats
		limits Limits
		want   LimitStatus
	}{
		{"unbounded", Stats{CountOfExecutedInstructions: 1 << 40, TotalMemorySize: 1 << 40}, Limits{}, LimitNone},
		{"under both", Stats{CountOfExecutedInstructions: 10, TotalMemorySize: 10}, Limits{100, 100}, LimitNone},
		{"at instruction limit", Stats{CountOfExecutedInstructions: 100}, Limits{MaxInstructions: 100}, LimitNone},
		{"over instructions", Stats{CountOfExecutedInstructions: 101}, Limits{MaxInstructions: 100}, InstructionLimitExceeded},
		{"over memory", Stats{TotalMemorySize: 101}, Limits{MaxMemory: 100}, MemoryLimitExceeded},
		{"over both", Stats{CountOfExecutedInstructions: 101, TotalMemorySize: 101}, Limits{100, 100}, InstructionLimitExceeded},
	}
	for _, tt := range tests {
		if got := CheckLimits(tt.stats, tt.limits); got != tt.want {
			t.Errorf("%s: CheckLimits = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestStatsTotalMemory(t *testing.T) {
	s := statsFrom(core.HeapStatistics{TotalHeapSize: 1000, TotalArrayBufferSize: 10, PeakArrayBufferSize: 50}, 7)
	if s.TotalMemorySize != 1050 {
		t.Fatalf("TotalMemorySize = %d, want 1050", s.TotalMemorySize)
	}
	if s.CountOfExecutedInstructions != 7 {
		t.Fatalf("count = %d, want 7", s.CountOfExecutedInstructions)
	}
}

func TestLimitStatusErr(t *testing.T) {
	if LimitNone.Err() != nil {
		t.Fatal("LimitNone must map to nil")
	}
	if InstructionLimitExceeded.Err() != ErrInstructionLimitExceeded {
		t.Fatal("instruction breach maps to the wrong error")
	}
	if MemoryLimitExceeded.Err() != ErrMemoryLimitExceeded {
		t.Fatal("memory breach maps to the wrong error")
	}
}
