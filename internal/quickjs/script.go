//go:build !v8

package quickjs

import (
	"errors"
	"strings"

	"github.com/Myriagram/nvm/internal/core"
	"modernc.org/libc"
	lib "modernc.org/libquickjs"
)

var errNoHandles = errors.New("quickjs: runtime handles not recoverable from this build")

// handles are the C-level pointers of one context.
type handles struct {
	tls *libc.TLS
	ctx uintptr
}

func (c *qjsContext) handles() (handles, bool) {
	_, tls, ok := extractRuntime(c.vm)
	if !ok {
		return handles{}, false
	}
	ctx, ok := extractContext(c.vm)
	if !ok {
		return handles{}, false
	}
	return handles{tls: tls, ctx: ctx}, true
}

// Compile parses source into a function object without running it. The
// modernc eval helpers name every script "<eval>"; compiling here keeps
// origin in the stack frames of the script.
func (c *qjsContext) Compile(source, origin string) (core.Script, error) {
	if c.iso.terminated.Load() {
		return nil, ErrTerminated
	}
	h, ok := c.handles()
	if !ok {
		return nil, errNoHandles
	}
	src, err := libc.CString(source)
	if err != nil {
		return nil, err
	}
	defer libc.Xfree(h.tls, src)
	name, err := libc.CString(origin)
	if err != nil {
		return nil, err
	}
	defer libc.Xfree(h.tls, name)

	fn := lib.XJS_Eval(h.tls, h.ctx, src, libc.Tsize_t(len(source)), name,
		int32(lib.MJS_EVAL_TYPE_GLOBAL|lib.MJS_EVAL_FLAG_COMPILE_ONLY))
	if lib.XJS_HasException(h.tls, h.ctx) != 0 {
		lib.XFreeValue(h.tls, h.ctx, fn)
		return nil, takeException(h, core.PhaseCompile, origin)
	}
	s := &qjsScript{ctx: c, fn: fn, origin: origin}
	c.pending[s] = struct{}{}
	return s, nil
}

// discardPending frees scripts compiled but never run. The runtime refuses
// to shut down while they are alive.
func (c *qjsContext) discardPending() {
	if len(c.pending) == 0 {
		return
	}
	h, ok := c.handles()
	for s := range c.pending {
		if ok {
			lib.XFreeValue(h.tls, h.ctx, s.fn)
		}
		delete(c.pending, s)
	}
}

type qjsScript struct {
	ctx    *qjsContext
	fn     lib.TJSValue
	origin string
}

// Run evaluates the compiled function. A script runs at most once.
func (s *qjsScript) Run() error {
	c := s.ctx
	if _, ok := c.pending[s]; !ok {
		return errors.New("quickjs: script already run or context closed")
	}
	delete(c.pending, s)
	h, ok := c.handles()
	if !ok {
		return errNoHandles
	}
	if c.iso.terminated.Load() {
		lib.XFreeValue(h.tls, h.ctx, s.fn)
		return ErrTerminated
	}

	// JS_EvalFunction takes ownership of fn.
	v := lib.XJS_EvalFunction(h.tls, h.ctx, s.fn)
	defer lib.XFreeValue(h.tls, h.ctx, v)
	if lib.XJS_HasException(h.tls, h.ctx) != 0 {
		return takeException(h, core.PhaseRuntime, s.origin)
	}
	return nil
}

// takeException clears the pending exception and converts it. Error objects
// contribute their stack frames; QuickJS prints those without the message
// line, so the message is prepended.
func takeException(h handles, phase core.Phase, origin string) *core.ScriptError {
	exc := lib.XJS_GetException(h.tls, h.ctx)
	defer lib.XFreeValue(h.tls, h.ctx, exc)

	message := toGoString(h, exc)
	var frames string
	if lib.XJS_IsError(h.tls, h.ctx, exc) != 0 {
		frames = strings.TrimRight(propertyString(h, exc, "stack"), "\n")
	}
	stack := message
	if frames != "" {
		stack += "\n" + frames
	}
	return core.NewScriptError(phase, origin, message, stack, errors.New(message), frames)
}

// toGoString converts v with ToString. A conversion that throws yields a
// placeholder and its exception is dropped.
func toGoString(h handles, v lib.TJSValue) string {
	p := lib.XToCString(h.tls, h.ctx, v)
	if p == 0 {
		lib.XFreeValue(h.tls, h.ctx, lib.XJS_GetException(h.tls, h.ctx))
		return "uncaught exception"
	}
	defer lib.XJS_FreeCString(h.tls, h.ctx, p)
	return libc.GoString(p)
}

func propertyString(h handles, obj lib.TJSValue, prop string) string {
	name, err := libc.CString(prop)
	if err != nil {
		return ""
	}
	defer libc.Xfree(h.tls, name)
	v := lib.XJS_GetPropertyStr(h.tls, h.ctx, obj, name)
	defer lib.XFreeValue(h.tls, h.ctx, v)
	if lib.XJS_HasException(h.tls, h.ctx) != 0 {
		lib.XFreeValue(h.tls, h.ctx, lib.XJS_GetException(h.tls, h.ctx))
		return ""
	}
	s := toGoString(h, v)
	if s == "undefined" {
		return ""
	}
	return s
}
