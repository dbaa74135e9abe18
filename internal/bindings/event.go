package bindings

import (
	"errors"
	"fmt"

	"github.com/Myriagram/nvm/internal/core"
)

const eventJS = `
(function() {
	var trigger = globalThis.__nvm_event_trigger;
	delete globalThis.__nvm_event_trigger;
	var Event = {};
	Object.defineProperty(Event, 'Trigger', {
		value: function(topic, data) {
			if (arguments.length < 2) throw new Error('Event.Trigger: missing params');
			if (typeof data !== 'string') data = JSON.stringify(data);
			trigger(String(topic), String(data));
		},
		writable: false, enumerable: true, configurable: false
	});
	Object.defineProperty(globalThis, 'Event', {
		value: Event, writable: false, enumerable: false, configurable: false
	});
})();
`

// SetupEvent installs Event.Trigger(topic, data). The data length is charged
// through the counter's event accounting hook before the event is emitted.
func SetupEvent(rt core.JSRuntime, env *Env) error {
	if err := rt.RegisterFunc("__nvm_event_trigger", func(topic, data string) (int, error) {
		if env.halted() {
			return 0, ErrHalted
		}
		if env.Counter != nil {
			if err := env.Counter.RecordEventUsage(len(data)); err != nil {
				return 0, err
			}
		}
		if env.Events == nil {
			return 0, errors.New("events are not available in this context")
		}
		return 0, env.Events.Emit(topic, data)
	}); err != nil {
		return fmt.Errorf("registering __nvm_event_trigger: %w", err)
	}
	return rt.Eval(eventJS)
}
