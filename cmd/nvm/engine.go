package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/Myriagram/nvm"
	"github.com/Myriagram/nvm/internal/logging"
	"github.com/Myriagram/nvm/internal/storage"
	"github.com/spf13/cobra"
)

// errReported is returned by commands that already printed their failure.
var errReported = errors.New("failure already reported")

const globalScope = "global"

func nvmVersion() string {
	return nvm.Version()
}

// openEngine creates an engine configured from the config file, the
// environment and the command's flags. done disposes the engine and flushes
// the logger.
func openEngine(cmd *cobra.Command, opts ...nvm.Option) (e *nvm.Engine, done func(), err error) {
	flags := cmd.Flags()
	cfg, err := loadConfig(configFile, flags.Changed("config"), flags, os.LookupEnv)
	if err != nil {
		return nil, nil, err
	}
	log, err := logging.New(cfg.LogLevel, colorEnabled(cmd.ErrOrStderr()))
	if err != nil {
		return nil, nil, err
	}
	opts = append([]nvm.Option{nvm.WithLogger(log.Sugar())}, opts...)
	e, err = nvm.Create(cfg, opts...)
	if err != nil {
		_ = log.Sync()
		return nil, nil, err
	}
	return e, func() {
		_ = e.Dispose()
		_ = log.Sync()
	}, nil
}

// openHooks returns the contract storage selected by kind. The local store
// of a sqlite database is the given scope; the global store is shared.
func openHooks(kind, dbPath, scope string) (nvm.HostHooks, func(), error) {
	switch kind {
	case "", "memory":
		return storage.Hooks{
			Local:  storage.NewMemoryStorage(),
			Global: storage.NewMemoryStorage(),
		}, func() {}, nil
	case "sqlite":
		db, err := storage.OpenSQL(dbPath)
		if err != nil {
			return nil, nil, err
		}
		return storage.Hooks{
			Local:  db.Scope(scope),
			Global: db.Scope(globalScope),
		}, func() { _ = db.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage %q (want memory or sqlite)", kind)
	}
}
