package bindings

import "github.com/Myriagram/nvm/internal/core"

// accountingJS charges indirect resource use as instructions: one per byte
// written to storage and one per byte of event payload.
const accountingJS = `
(function() {
	var c = globalThis._instruction_counter;
	Object.defineProperty(c, 'storIncr', {
		value: function(keyLength, valueLength) {
			return c.incr((keyLength | 0) + (valueLength | 0));
		},
		writable: false, enumerable: false, configurable: false
	});
	Object.defineProperty(c, 'eventIncr', {
		value: function(msgLength) {
			return c.incr(msgLength | 0);
		},
		writable: false, enumerable: false, configurable: false
	});
})();
`

// SetupAccounting installs storIncr and eventIncr on the instruction counter.
func SetupAccounting(rt core.JSRuntime, _ *Env) error {
	return rt.Eval(accountingJS)
}
