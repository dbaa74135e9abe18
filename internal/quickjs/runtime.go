//go:build !v8

package quickjs

import (
	"fmt"
	"reflect"
	"sync/atomic"

	"github.com/Myriagram/nvm/internal/core"
	"modernc.org/quickjs"
)

// qjsRuntime implements core.JSRuntime for the QuickJS engine.
//
// Every modernc eval starts by clearing the VM's pending interrupt. Once the
// isolate is terminated the runtime therefore refuses to evaluate and raises
// the interrupt again, so a nested evaluation made from a host callback
// cannot cancel the termination of the script that called it.
type qjsRuntime struct {
	vm     *quickjs.VM
	halted *atomic.Bool
}

var _ core.JSRuntime = (*qjsRuntime)(nil)

func (r *qjsRuntime) enter() error {
	if r.halted.Load() {
		r.vm.Interrupt()
		return ErrTerminated
	}
	return nil
}

func (r *qjsRuntime) leave() {
	if r.halted.Load() {
		r.vm.Interrupt()
	}
}

// Eval evaluates JavaScript and discards the result.
func (r *qjsRuntime) Eval(js string) error {
	if err := r.enter(); err != nil {
		return err
	}
	defer r.leave()
	v, err := r.vm.EvalValue(js, quickjs.EvalGlobal)
	if err != nil {
		return err
	}
	v.Free()
	return nil
}

// EvalString evaluates JavaScript and returns the result as a Go string.
func (r *qjsRuntime) EvalString(js string) (string, error) {
	if err := r.enter(); err != nil {
		return "", err
	}
	defer r.leave()
	result, err := r.vm.Eval(js, quickjs.EvalGlobal)
	if err != nil {
		return "", err
	}
	if result == nil {
		return "", nil
	}
	return fmt.Sprint(result), nil
}

// EvalBool evaluates JavaScript and returns the result as a Go bool.
func (r *qjsRuntime) EvalBool(js string) (bool, error) {
	if err := r.enter(); err != nil {
		return false, err
	}
	defer r.leave()
	result, err := r.vm.Eval(js, quickjs.EvalGlobal)
	if err != nil {
		return false, err
	}
	b, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("expected bool, got %T", result)
	}
	return b, nil
}

// EvalInt evaluates JavaScript and returns the result as a Go int.
func (r *qjsRuntime) EvalInt(js string) (int, error) {
	if err := r.enter(); err != nil {
		return 0, err
	}
	defer r.leave()
	result, err := r.vm.Eval(js, quickjs.EvalGlobal)
	if err != nil {
		return 0, err
	}
	switch v := result.(type) {
	case int:
		return v, nil
	case float64:
		return int(v), nil
	default:
		return 0, fmt.Errorf("expected int, got %T", result)
	}
}

// RegisterFunc registers a Go function as a global JavaScript function.
// The QuickJS Go wrapper returns multi-value results as [T, err] arrays;
// the installed wrapper unwraps them and throws an Error carrying the Go
// error text. After termination fn is no longer called: the call returns
// zero values and ErrTerminated, and the interrupt is raised again.
func (r *qjsRuntime) RegisterFunc(name string, fn any) error {
	guarded, err := r.guard(fn)
	if err != nil {
		return err
	}
	rawName := "__raw_" + name
	if err := r.vm.RegisterFunc(rawName, guarded, false); err != nil {
		return err
	}
	wrapJS := fmt.Sprintf(`(function() {
		var raw = globalThis[%q];
		globalThis[%q] = function() {
			var r = raw.apply(this, arguments);
			if (Array.isArray(r)) {
				var e = r[1];
				if (e !== null && e !== undefined) throw (e instanceof Error ? e : new Error(String(e)));
				return r[0];
			}
			return r;
		};
		delete globalThis[%q];
	})()`, rawName, name, rawName)
	return r.Eval(wrapJS)
}

var errorType = reflect.TypeFor[error]()

// guard wraps fn so that it refuses to run once the isolate is terminated.
func (r *qjsRuntime) guard(fn any) (any, error) {
	fv := reflect.ValueOf(fn)
	if fv.Kind() != reflect.Func {
		return nil, fmt.Errorf("RegisterFunc: expected function, got %T", fn)
	}
	ft := fv.Type()
	return reflect.MakeFunc(ft, func(args []reflect.Value) []reflect.Value {
		if !r.halted.Load() {
			return fv.Call(args)
		}
		r.vm.Interrupt()
		out := make([]reflect.Value, ft.NumOut())
		for i := range out {
			out[i] = reflect.Zero(ft.Out(i))
		}
		if n := len(out); n > 0 && ft.Out(n-1) == errorType {
			e := reflect.New(errorType).Elem()
			e.Set(reflect.ValueOf(ErrTerminated))
			out[n-1] = e
		}
		return out
	}).Interface(), nil
}

// RunMicrotasks pumps the QuickJS microtask queue.
func (r *qjsRuntime) RunMicrotasks() {
	defer r.leave()
	executePendingJobs(r.vm)
}
