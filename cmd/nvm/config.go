package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/Myriagram/nvm"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Engine flags, bound on the root command.
var flagValues struct {
	logLevel        string
	maxInstructions uint64
	maxMemory       uint64
	memoryLimitMB   int
	stackSizeKB     int
	testing         bool
	accounting      bool
}

func bindEngineFlags(flags *pflag.FlagSet) {
	flags.StringVar(&flagValues.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flags.Uint64Var(&flagValues.maxInstructions, "max-instructions", 0, "Instruction limit, 0 for none")
	flags.Uint64Var(&flagValues.maxMemory, "max-memory", 0, "Total memory limit in bytes, 0 for none")
	flags.IntVar(&flagValues.memoryLimitMB, "memory-limit-mb", 0, "Hard interpreter heap cap in MB, 0 for none")
	flags.IntVar(&flagValues.stackSizeKB, "stack-size-kb", 0, "Native stack limit in KB, 0 for the default")
	flags.BoolVar(&flagValues.testing, "testing", false, "Allow eval and the Function constructor")
	flags.BoolVar(&flagValues.accounting, "accounting", true, "Charge storage writes and events as instructions")
}

// loadConfig resolves the engine configuration.
// Precedence: CLI flags > NVM_* env vars > config file > defaults.
// A missing config file is only an error when it was named explicitly.
func loadConfig(path string, explicit bool, flags *pflag.FlagSet, lookup func(string) (string, bool)) (nvm.EngineConfig, error) {
	cfg := nvm.DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := applyEnv(&cfg, lookup); err != nil {
		return cfg, err
	}
	applyFlags(&cfg, flags)
	return cfg, nil
}

func applyEnv(cfg *nvm.EngineConfig, lookup func(string) (string, bool)) error {
	if v, ok := lookup("NVM_LOG_LEVEL"); ok && v != "" {
		cfg.LogLevel = v
	}
	uints := []struct {
		name string
		dst  *uint64
	}{
		{"NVM_MAX_INSTRUCTIONS", &cfg.MaxInstructions},
		{"NVM_MAX_MEMORY_BYTES", &cfg.MaxMemoryBytes},
	}
	for _, u := range uints {
		v, ok := lookup(u.name)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", u.name, err)
		}
		*u.dst = n
	}
	ints := []struct {
		name string
		dst  *int
	}{
		{"NVM_MEMORY_LIMIT_MB", &cfg.MemoryLimitMB},
		{"NVM_STACK_SIZE_KB", &cfg.StackSizeKB},
	}
	for _, i := range ints {
		v, ok := lookup(i.name)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", i.name, err)
		}
		*i.dst = n
	}
	bools := []struct {
		name string
		dst  *bool
	}{
		{"NVM_TESTING", &cfg.Testing},
		{"NVM_INSTALL_ACCOUNTING", &cfg.InstallAccounting},
	}
	for _, b := range bools {
		v, ok := lookup(b.name)
		if !ok || v == "" {
			continue
		}
		on, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", b.name, err)
		}
		*b.dst = on
	}
	return nil
}

func applyFlags(cfg *nvm.EngineConfig, flags *pflag.FlagSet) {
	if flags == nil {
		return
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = flagValues.logLevel
	}
	if flags.Changed("max-instructions") {
		cfg.MaxInstructions = flagValues.maxInstructions
	}
	if flags.Changed("max-memory") {
		cfg.MaxMemoryBytes = flagValues.maxMemory
	}
	if flags.Changed("memory-limit-mb") {
		cfg.MemoryLimitMB = flagValues.memoryLimitMB
	}
	if flags.Changed("stack-size-kb") {
		cfg.StackSizeKB = flagValues.stackSizeKB
	}
	if flags.Changed("testing") {
		cfg.Testing = flagValues.testing
	}
	if flags.Changed("accounting") {
		cfg.InstallAccounting = flagValues.accounting
	}
}
