package bindings

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Myriagram/nvm/internal/core"
)

// Storage kinds as passed from the JS shim.
const (
	storageLocal  = "local"
	storageGlobal = "global"
)

var errStorageUnavailable = errors.New("storage is not available in this context")

func (env *Env) storage(kind string) (core.Storage, error) {
	if env.halted() {
		return nil, ErrHalted
	}
	var s core.Storage
	switch kind {
	case storageLocal:
		s = env.local
	case storageGlobal:
		s = env.global
	default:
		return nil, fmt.Errorf("unknown storage %q", kind)
	}
	if s == nil {
		return nil, errStorageUnavailable
	}
	return s, nil
}

const storageJS = `
(function() {
	var get = globalThis.__nvm_storage_get;
	var put = globalThis.__nvm_storage_put;
	var del = globalThis.__nvm_storage_del;
	delete globalThis.__nvm_storage_get;
	delete globalThis.__nvm_storage_put;
	delete globalThis.__nvm_storage_del;

	function ContractStorage(kind) {
		Object.defineProperty(this, '_kind', { value: kind });
	}
	ContractStorage.prototype.get = function(key) {
		if (arguments.length < 1) throw new Error('get: missing params');
		return JSON.parse(get(this._kind, String(key)));
	};
	ContractStorage.prototype.set = function(key, value) {
		if (arguments.length < 2) throw new Error('set: missing params');
		put(this._kind, String(key), String(value));
	};
	ContractStorage.prototype.put = ContractStorage.prototype.set;
	ContractStorage.prototype.del = function(key) {
		if (arguments.length < 1) throw new Error('del: missing params');
		del(this._kind, String(key));
	};
	ContractStorage.prototype['delete'] = ContractStorage.prototype.del;

	var frozen = { writable: false, enumerable: false, configurable: false };
	frozen.value = new ContractStorage('local');
	Object.defineProperty(globalThis, 'LocalContractStorage', frozen);
	frozen.value = new ContractStorage('global');
	Object.defineProperty(globalThis, 'GlobalContractStorage', frozen);
})();
`

// SetupStorage installs LocalContractStorage and GlobalContractStorage over
// the stores resolved from the host hooks. Every successful write is charged
// to the instruction counter through its storage accounting hook.
func SetupStorage(rt core.JSRuntime, env *Env) error {
	// __nvm_storage_get(kind, key) -> JSON string value or "null"
	if err := rt.RegisterFunc("__nvm_storage_get", func(kind, key string) (string, error) {
		s, err := env.storage(kind)
		if err != nil {
			return "", err
		}
		value, found, err := s.Get(key)
		if err != nil {
			return "", err
		}
		if !found {
			return "null", nil
		}
		data, err := json.Marshal(value)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}); err != nil {
		return fmt.Errorf("registering __nvm_storage_get: %w", err)
	}

	if err := rt.RegisterFunc("__nvm_storage_put", func(kind, key, value string) (int, error) {
		s, err := env.storage(kind)
		if err != nil {
			return 0, err
		}
		if err := s.Put(key, value); err != nil {
			return 0, err
		}
		if env.Counter != nil {
			if err := env.Counter.RecordStorageUsage(len(key), len(value)); err != nil {
				return 0, err
			}
		}
		return 0, nil
	}); err != nil {
		return fmt.Errorf("registering __nvm_storage_put: %w", err)
	}

	if err := rt.RegisterFunc("__nvm_storage_del", func(kind, key string) (int, error) {
		s, err := env.storage(kind)
		if err != nil {
			return 0, err
		}
		return 0, s.Del(key)
	}); err != nil {
		return fmt.Errorf("registering __nvm_storage_del: %w", err)
	}

	return rt.Eval(storageJS)
}
