package nvm

import (
	"errors"

	"github.com/Myriagram/nvm/internal/core"
	"github.com/Myriagram/nvm/internal/report"
	"github.com/Myriagram/nvm/internal/tracing"
	"github.com/Myriagram/nvm/internal/typescript"
)

// ContractOrigin is the resource name scripts run by DirectRun are compiled
// under.
const ContractOrigin = "_contract_runner.js"

// Source is the input of a stage. LineOffset is added to reported lines.
type Source struct {
	Text       string
	LineOffset int
	Name       string
}

// Output is the result of a stage. Transforming stages fill Text and
// LineOffset; DirectRun fills Result with the JSON serialization of the
// script's completion value when HasResult is set.
type Output struct {
	Result     string
	HasResult  bool
	Text       string
	LineOffset int
}

// Stage is one step run inside a fresh execution context.
type Stage interface {
	Name() string
	Run(ec *ExecContext, src Source) (Output, error)
}

var (
	_ Stage = DirectRun{}
	_ Stage = InjectionStage{}
	_ Stage = TranspileStage{}
)

// The caller's source becomes the body of a function so that a top-level
// return yields the result.
const (
	runPrefix = "globalThis.__nvm_result = (function(){"
	runSuffix = "\n})();"
)

// resultCaptureJS installs the functions DirectRun reads the result
// through. JSON.stringify is captured before contract code can replace it.
const resultCaptureJS = `(function() {
	var stringify = JSON.stringify;
	var json;
	function install(name, fn) {
		Object.defineProperty(globalThis, name, {
			value: fn, writable: false, enumerable: false, configurable: false
		});
	}
	install('__nvm_serialize', function() {
		var r = globalThis.__nvm_result;
		delete globalThis.__nvm_result;
		json = undefined;
		if (r === undefined) return false;
		var s;
		try { s = stringify(r); } catch (e) { return false; }
		if (typeof s !== 'string') return false;
		json = s;
		return true;
	});
	install('__nvm_take', function() {
		var s = json;
		json = undefined;
		return s;
	});
})();`

func installResultCapture(rt core.JSRuntime) error {
	return rt.Eval(resultCaptureJS)
}

// DirectRun compiles and runs the source in the context.
type DirectRun struct{}

func (DirectRun) Name() string { return "run" }

func (DirectRun) Run(ec *ExecContext, src Source) (Output, error) {
	text := runPrefix + src.Text + runSuffix
	m := report.Mapping{
		Resource:      ContractOrigin,
		Source:        text,
		LineOffset:    src.LineOffset,
		PrefixColumns: len(runPrefix),
		SourceMap:     typescript.InlineSourceMap(src.Text),
	}

	script, err := ec.Compile(text, ContractOrigin)
	if err != nil {
		return Output{}, ec.Fail(ErrCompile, locate(err, src.Text), m)
	}
	if err := script.Run(); err != nil {
		kind := ErrRuntime
		var se *core.ScriptError
		if errors.As(err, &se) && se.Phase == core.PhaseCompile {
			kind = ErrCompile
			err = locate(err, src.Text)
		}
		return Output{}, ec.Fail(kind, err, m)
	}
	ec.Runtime().RunMicrotasks()
	if ec.Terminated() {
		return Output{}, ErrTerminated
	}

	ok, err := ec.Runtime().EvalBool("__nvm_serialize()")
	if err != nil {
		return Output{}, ec.Fail(ErrRuntime, err, report.Mapping{Resource: ContractOrigin})
	}
	if !ok {
		return Output{}, nil
	}
	result, err := ec.Runtime().EvalString("__nvm_take()")
	if err != nil {
		return Output{}, ec.Fail(ErrRuntime, err, report.Mapping{Resource: ContractOrigin})
	}
	return Output{Result: result, HasResult: true}, nil
}

// locate fills in the position of a compile error the engine reported
// without one, by parsing the caller's source. Positions are returned in the
// coordinates of the compiled text.
func locate(err error, source string) error {
	var se *core.ScriptError
	if !errors.As(err, &se) || se.Line > 0 {
		return err
	}
	var parsed *core.ScriptError
	if !errors.As(tracing.Check(source, se.Origin), &parsed) || parsed.Line == 0 {
		return err
	}
	located := *se
	located.Line = parsed.Line
	located.Column = parsed.Column
	located.EndColumn = parsed.EndColumn
	if located.Line == 1 {
		located.Column += len(runPrefix)
		located.EndColumn += len(runPrefix)
	}
	return &located
}

// InjectionStage rewrites the source with instruction counting calls.
type InjectionStage struct{}

func (InjectionStage) Name() string { return "inject" }

func (InjectionStage) Run(ec *ExecContext, src Source) (Output, error) {
	name := src.Name
	if name == "" {
		name = "_inject_tracer.js"
	}
	code, err := tracing.Inject(src.Text, name)
	if err != nil {
		return Output{}, ec.Fail(ErrCompile, err, report.Mapping{
			Resource:   name,
			Source:     src.Text,
			LineOffset: src.LineOffset,
		})
	}
	return Output{Text: code, LineOffset: src.LineOffset}, nil
}

// TranspileStage strips TypeScript syntax from a module.
type TranspileStage struct{}

func (TranspileStage) Name() string { return "transpile" }

func (TranspileStage) Run(ec *ExecContext, src Source) (Output, error) {
	name := src.Name
	if name == "" {
		name = "_typescript_transpile.ts"
	}
	code, offset, err := typescript.Transpile(src.Text, name)
	if err != nil {
		return Output{}, ec.Fail(ErrCompile, err, report.Mapping{
			Resource:   name,
			Source:     src.Text,
			LineOffset: src.LineOffset,
		})
	}
	return Output{Text: code, LineOffset: src.LineOffset + offset}, nil
}
