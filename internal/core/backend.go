package core

// Isolate is one independent interpreter instance with its own heap and
// execution state. The root nvm.Engine owns exactly one Isolate, created by
// the backend selected with build tags (QuickJS by default, V8 with -tags v8).
//
// Isolates are not safe for concurrent use. The single exception is
// TerminateExecution, which may be called from any goroutine while a script
// is running on another one.
type Isolate interface {
	// NewContext opens a fresh execution context with an empty global
	// namespace. At most one context is live per isolate at a time.
	NewContext() (Context, error)

	// HeapStatistics reads the interpreter's heap and allocator telemetry.
	HeapStatistics() HeapStatistics

	// TerminateExecution asks the interpreter to abort the running script
	// at its next safe interruption point. It never blocks.
	TerminateExecution()

	// Dispose releases the interpreter and then its allocator.
	Dispose()

	// Version returns the build identifier of the embedded interpreter.
	Version() string
}

// Context is the per-invocation global namespace a script runs against.
type Context interface {
	JSRuntime

	// Compile prepares source for execution under the given origin name.
	// Syntax errors are returned as *ScriptError with PhaseCompile; backends
	// that cannot compile ahead of time report them from Script.Run instead.
	Compile(source, origin string) (Script, error)

	// Close releases the context.
	Close()
}

// Script is compiled source bound to a Context.
type Script interface {
	// Run executes the script. Failures are *ScriptError values.
	Run() error
}

// HeapStatistics is the raw telemetry a backend reports. Fields a backend
// cannot observe are left zero.
type HeapStatistics struct {
	HeapSizeLimit           uint64
	MallocedMemory          uint64
	PeakMallocedMemory      uint64
	TotalAvailableSize      uint64
	TotalHeapSize           uint64
	TotalHeapSizeExecutable uint64
	TotalPhysicalSize       uint64
	UsedHeapSize            uint64
	TotalArrayBufferSize    uint64
	PeakArrayBufferSize     uint64
}
