package bindings

import (
	"github.com/Myriagram/nvm/internal/core"
)

// SetupConsole replaces globalThis.console with a Go-backed version that
// writes contract output to the engine logger at the matching level.
func SetupConsole(rt core.JSRuntime, env *Env) error {
	if err := rt.RegisterFunc("__console", func(level, message string) {
		if env.Log == nil || env.halted() {
			return
		}
		switch level {
		case "error":
			env.Log.Errorf("[contract] %s", message)
		case "warn":
			env.Log.Warnf("[contract] %s", message)
		case "debug":
			env.Log.Debugf("[contract] %s", message)
		default:
			env.Log.Infof("[contract] %s", message)
		}
	}); err != nil {
		return err
	}

	consoleJS := `
(function() {
	var sink = globalThis.__console;
	delete globalThis.__console;
	var levels = ['log', 'info', 'warn', 'error', 'debug'];
	var con = {};
	for (var i = 0; i < levels.length; i++) {
		(function(lvl) {
			con[lvl] = function() {
				var parts = [];
				for (var j = 0; j < arguments.length; j++) {
					var arg = arguments[j];
					if (typeof arg === 'object' && arg !== null) {
						try { parts.push(JSON.stringify(arg)); } catch (e) { parts.push('[object Object]'); }
					} else {
						parts.push(String(arg));
					}
				}
				sink(lvl, parts.join(' '));
			};
		})(levels[i]);
	}
	globalThis.console = con;
})();
`
	return rt.Eval(consoleJS)
}
