//go:build v8

package nvm

import (
	"github.com/Myriagram/nvm/internal/core"
	"github.com/Myriagram/nvm/internal/v8engine"
)

func newIsolate(cfg core.EngineConfig) (core.Isolate, error) {
	return v8engine.New(cfg)
}

func backendVersion() string {
	return v8engine.Version()
}
