//go:build !v8

package nvm

import (
	"github.com/Myriagram/nvm/internal/core"
	"github.com/Myriagram/nvm/internal/quickjs"
)

func newIsolate(cfg core.EngineConfig) (core.Isolate, error) {
	return quickjs.New(cfg)
}

func backendVersion() string {
	return quickjs.Version()
}
