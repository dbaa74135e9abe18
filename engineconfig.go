package nvm

import "github.com/Myriagram/nvm/internal/core"

// EngineConfig holds runtime configuration for one engine handle.
type EngineConfig = core.EngineConfig

// Types callers implement to connect an execution to the host.
type (
	Logger    = core.Logger
	Storage   = core.Storage
	HostHooks = core.HostHooks
	EventSink = core.EventSink
)

// DefaultConfig returns the configuration used by the CLI when no file or
// flags override it.
func DefaultConfig() EngineConfig {
	return EngineConfig{
		StackSizeKB:       core.DefaultStackSizeKB,
		InstallAccounting: true,
		LogLevel:          "info",
	}
}
