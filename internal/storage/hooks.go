package storage

import (
	"sync"

	"github.com/Myriagram/nvm/internal/core"
)

// Hooks hands a fixed pair of stores to an execution.
type Hooks struct {
	Local  core.Storage
	Global core.Storage
}

var _ core.HostHooks = Hooks{}

func (h Hooks) LocalStorage() core.Storage  { return h.Local }
func (h Hooks) GlobalStorage() core.Storage { return h.Global }

// Event is one event emitted by a contract.
type Event struct {
	Topic string
	Data  string
}

// EventLog is an in-memory core.EventSink.
type EventLog struct {
	mu     sync.Mutex
	events []Event
}

var _ core.EventSink = (*EventLog)(nil)

// Emit records the event.
func (l *EventLog) Emit(topic, data string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, Event{Topic: topic, Data: data})
	return nil
}

// Events returns a copy of the recorded events.
func (l *EventLog) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event(nil), l.events...)
}
