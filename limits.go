package nvm

import "github.com/Myriagram/nvm/internal/core"

// LimitStatus is the outcome of comparing Stats against Limits.
type LimitStatus int

const (
	LimitNone LimitStatus = iota
	InstructionLimitExceeded
	MemoryLimitExceeded
)

func (s LimitStatus) String() string {
	switch s {
	case LimitNone:
		return "none"
	case InstructionLimitExceeded:
		return "instruction limit exceeded"
	case MemoryLimitExceeded:
		return "memory limit exceeded"
	default:
		return "unknown"
	}
}

// Err returns the error kind for a breach, or nil for LimitNone.
func (s LimitStatus) Err() error {
	switch s {
	case InstructionLimitExceeded:
		return ErrInstructionLimitExceeded
	case MemoryLimitExceeded:
		return ErrMemoryLimitExceeded
	default:
		return nil
	}
}

// Limits bounds one execution. Zero means unbounded.
type Limits struct {
	MaxInstructions uint64
	MaxMemory       uint64
}

// Stats is the resource snapshot of an engine. TotalMemorySize is the heap
// size plus the peak array buffer size; CountOfExecutedInstructions is the
// counter value of the current or most recent context.
type Stats struct {
	HeapSizeLimit               uint64
	MallocedMemory              uint64
	PeakMallocedMemory          uint64
	TotalAvailableSize          uint64
	TotalHeapSize               uint64
	TotalHeapSizeExecutable     uint64
	TotalPhysicalSize           uint64
	UsedHeapSize                uint64
	TotalArrayBufferSize        uint64
	PeakArrayBufferSize         uint64
	TotalMemorySize             uint64
	CountOfExecutedInstructions uint64
}

func statsFrom(hs core.HeapStatistics, count uint64) Stats {
	return Stats{
		HeapSizeLimit:               hs.HeapSizeLimit,
		MallocedMemory:              hs.MallocedMemory,
		PeakMallocedMemory:          hs.PeakMallocedMemory,
		TotalAvailableSize:          hs.TotalAvailableSize,
		TotalHeapSize:               hs.TotalHeapSize,
		TotalHeapSizeExecutable:     hs.TotalHeapSizeExecutable,
		TotalPhysicalSize:           hs.TotalPhysicalSize,
		UsedHeapSize:                hs.UsedHeapSize,
		TotalArrayBufferSize:        hs.TotalArrayBufferSize,
		PeakArrayBufferSize:         hs.PeakArrayBufferSize,
		TotalMemorySize:             hs.TotalHeapSize + hs.PeakArrayBufferSize,
		CountOfExecutedInstructions: count,
	}
}

// CheckLimits compares stats against limits. The instruction limit is
// checked first, so a run over both limits reports the instruction breach.
func CheckLimits(stats Stats, limits Limits) LimitStatus {
	if limits.MaxInstructions > 0 && stats.CountOfExecutedInstructions > limits.MaxInstructions {
		return InstructionLimitExceeded
	}
	if limits.MaxMemory > 0 && stats.TotalMemorySize > limits.MaxMemory {
		return MemoryLimitExceeded
	}
	return LimitNone
}
