package core

// EngineConfig holds runtime configuration for one engine handle.
type EngineConfig struct {
	MemoryLimitMB     int    `yaml:"memory_limit_mb"`    // hard allocator cap enforced by the backend, 0 = none
	StackSizeKB       int    `yaml:"stack_size_kb"`      // native stack limit requested from the backend, 0 = default
	MaxInstructions   uint64 `yaml:"max_instructions"`   // initial instruction limit, 0 = unbounded
	MaxMemoryBytes    uint64 `yaml:"max_memory_bytes"`   // initial total memory limit, 0 = unbounded
	Testing           bool   `yaml:"testing"`            // allows code generation from strings
	InstallAccounting bool   `yaml:"install_accounting"` // installs storIncr/eventIncr on the counter
	LogLevel          string `yaml:"log_level"`
}

// DefaultStackSizeKB is the stack limit requested when StackSizeKB is zero.
// Deeply recursive contracts must not trip the native stack guard before the
// instruction budget is spent.
const DefaultStackSizeKB = 4 * 1024
