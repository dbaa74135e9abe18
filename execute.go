package nvm

import (
	"errors"
	"fmt"

	"github.com/Myriagram/nvm/internal/bindings"
	"github.com/Myriagram/nvm/internal/core"
	"github.com/Myriagram/nvm/internal/counter"
	"github.com/Myriagram/nvm/internal/report"
)

// ExecContext is the live context a stage runs in.
type ExecContext struct {
	engine  *Engine
	ctx     core.Context
	counter *counter.Counter
	failed  *ExecutionError
}

// Runtime returns the context's script runtime.
func (ec *ExecContext) Runtime() core.JSRuntime { return ec.ctx }

// Counter returns the context's instruction counter.
func (ec *ExecContext) Counter() *counter.Counter { return ec.counter }

// Compile prepares text for execution in the context.
func (ec *ExecContext) Compile(text, origin string) (core.Script, error) {
	return ec.ctx.Compile(text, origin)
}

// Terminated reports whether the engine was asked to stop.
func (ec *ExecContext) Terminated() bool {
	return ec.engine.terminated.Load()
}

// Fail reports err through the exception reporter, positioned with m, and
// returns it as an *ExecutionError of the given kind. Failures caused by a
// termination are not reported; the pipeline classifies them instead.
func (ec *ExecContext) Fail(kind, err error, m report.Mapping) error {
	if ec.Terminated() {
		return err
	}
	rec := report.FromError(err, m)
	report.Log(ec.engine.log, rec)
	ec.failed = &ExecutionError{Kind: kind, Record: &rec, Cause: err}
	return ec.failed
}

// Execute opens a fresh context, installs the instruction counter and the
// host bindings, and runs stage on src. hooks may be nil when the source
// does not use contract storage.
//
// A run that breaches a limit is terminated and fails with
// ErrInstructionLimitExceeded or ErrMemoryLimitExceeded; the engine refuses
// further executions afterwards.
func (e *Engine) Execute(src Source, hooks core.HostHooks, stage Stage) (out Output, err error) {
	limits, testing, err := e.begin()
	if err != nil {
		return Output{}, err
	}
	defer e.active.Store(false)

	ctx, err := e.iso.NewContext()
	if err != nil {
		if e.terminated.Load() {
			return Output{}, e.terminationError(err)
		}
		return Output{}, &ExecutionError{Kind: ErrSetup, Cause: err}
	}

	c := counter.New(e.limitListener(limits))
	ec := &ExecContext{engine: e, ctx: ctx, counter: c}
	e.live.Store(c)
	defer func() {
		ctx.Close()
		e.refresh(c.Count())
		e.live.Store(nil)
	}()
	defer func() {
		if p := recover(); p != nil {
			e.log.Errorf("panic in %s stage: %v", stage.Name(), p)
			out, err = Output{}, &ExecutionError{Kind: ErrRuntime, Cause: fmt.Errorf("panic: %v", p)}
		}
	}()

	if err := e.prepare(ec, hooks, testing); err != nil {
		if e.terminated.Load() {
			return Output{}, e.terminationError(err)
		}
		return Output{}, err
	}

	out, err = stage.Run(ec, src)
	if e.terminated.Load() {
		return Output{}, e.terminationError(err)
	}
	if err != nil {
		var ee *ExecutionError
		if errors.As(err, &ee) {
			return Output{}, err
		}
		return Output{}, ec.Fail(ErrRuntime, err, report.Mapping{Resource: stage.Name()})
	}
	return out, nil
}

// prepare installs the code generation policy, the result capture, the
// counter and the bindings.
func (e *Engine) prepare(ec *ExecContext, hooks core.HostHooks, testing bool) error {
	m := report.Mapping{Resource: "setup"}
	if !testing {
		if err := bindings.DisableCodeGeneration(ec.ctx); err != nil {
			return ec.Fail(ErrSetup, err, m)
		}
	}
	if err := installResultCapture(ec.ctx); err != nil {
		return ec.Fail(ErrSetup, err, m)
	}
	if err := ec.counter.Install(ec.ctx, e.log); err != nil {
		return ec.Fail(ErrSetup, err, m)
	}
	env := bindings.NewEnv(ec.counter, hooks, e.events, e.log)
	env.Halted = ec.Terminated
	if err := bindings.Run(ec.ctx, env, e.setup); err != nil {
		return ec.Fail(ErrSetup, err, m)
	}
	return nil
}

// terminationError classifies a run that ended after Terminate.
func (e *Engine) terminationError(cause error) error {
	kind := LimitStatus(e.breach.Load()).Err()
	if kind == nil {
		kind = ErrTerminated
	}
	e.log.Warnf("execution stopped: %v", kind)
	return &ExecutionError{Kind: kind, Cause: cause}
}

// RunScriptSource runs source as the body of a function and returns the JSON
// serialization of its return value, or "" when it returned nothing that
// JSON can represent.
func (e *Engine) RunScriptSource(source string, lineOffset int, hooks core.HostHooks) (string, error) {
	out, err := e.Execute(Source{Text: source, LineOffset: lineOffset}, hooks, DirectRun{})
	if err != nil {
		return "", err
	}
	return out.Result, nil
}

// InjectTracingInstructions returns source rewritten with instruction
// counting calls, and the line offset of the result.
func (e *Engine) InjectTracingInstructions(source string) (string, int, error) {
	out, err := e.Execute(Source{Text: source}, nil, InjectionStage{})
	if err != nil {
		return "", 0, err
	}
	return out.Text, out.LineOffset, nil
}

// TranspileTypeScriptModule lowers a TypeScript module to JavaScript and
// returns the code and its line offset.
func (e *Engine) TranspileTypeScriptModule(source string) (string, int, error) {
	out, err := e.Execute(Source{Text: source}, nil, TranspileStage{})
	if err != nil {
		return "", 0, err
	}
	return out.Text, out.LineOffset, nil
}
