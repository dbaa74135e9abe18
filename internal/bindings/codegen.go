package bindings

import "github.com/Myriagram/nvm/internal/core"

// codegenLockdownJS replaces every entry point that compiles code from
// strings. The constructors reachable through function prototypes are
// replaced as well, so (function(){}).constructor('...') is refused too.
const codegenLockdownJS = `
(function() {
	function deny() {
		throw new EvalError('Code generation from strings disallowed for this context');
	}
	deny.prototype = Function.prototype;
	var protos = [Function.prototype];
	try { protos.push(Object.getPrototypeOf(function*(){})); } catch (e) {}
	try { protos.push(Object.getPrototypeOf(async function(){})); } catch (e) {}
	try { protos.push(Object.getPrototypeOf(async function*(){})); } catch (e) {}
	for (var i = 0; i < protos.length; i++) {
		Object.defineProperty(protos[i], 'constructor', {
			value: deny, writable: false, enumerable: false, configurable: false
		});
	}
	Object.defineProperty(globalThis, 'Function', {
		value: deny, writable: false, enumerable: false, configurable: false
	});
	Object.defineProperty(globalThis, 'eval', {
		value: deny, writable: false, enumerable: false, configurable: false
	});
})();
`

// DisableCodeGeneration forbids eval and the Function constructors in rt.
// Contexts of engines in testing mode skip it.
func DisableCodeGeneration(rt core.JSRuntime) error {
	return rt.Eval(codegenLockdownJS)
}
