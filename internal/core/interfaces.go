package core

// Logger is the leveled logging sink the sandbox reports into.
// *zap.SugaredLogger satisfies it. Implementations must not block.
type Logger interface {
	Infof(template string, args ...any)
	Errorf(template string, args ...any)
	Debugf(template string, args ...any)
	Warnf(template string, args ...any)
}

// Storage is a contract key/value store reachable from script code.
type Storage interface {
	Get(key string) (value string, found bool, err error)
	Put(key, value string) error
	Del(key string) error
}

// HostHooks is the capability a caller injects into one execution. Both
// stores are resolved once when the execution context is built.
type HostHooks interface {
	// LocalStorage is the storage of the contract being executed.
	LocalStorage() Storage
	// GlobalStorage is the chain-wide storage shared by contracts.
	GlobalStorage() Storage
}

// EventSink receives events triggered by contract code.
type EventSink interface {
	Emit(topic, data string) error
}
