package tracing

import (
	"errors"
	"strings"
	"testing"

	"github.com/Myriagram/nvm/internal/core"
)

// I abbreviates the counting call in expectations.
const I = CountCall

func TestInject(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"empty", "", ""},
		{"statements", "var a = 1;\nreturn a;", I + "var a = 1;\n" + I + "return a;"},
		{"while body wrapped", "while (x) f();", I + "while (x) {" + I + "f();}"},
		{"empty loop block", "for (;;) {}", I + "for (;;) {" + I + "}"},
		{"do while", "do f(); while (x);", I + "do {" + I + "f();} while (x);"},
		{"nested loops", "for (var i = 0; i < 3; i++) for (;;) g();",
			I + "for (var i = 0; i < 3; i++) {" + I + "for (;;) {" + I + "g();}}"},
		{"directive kept first", "'use strict';\nvar a;", "'use strict';\n" + I + "var a;"},
		{"function body", "function f() { return 1; }", I + "function f() { " + I + "return 1; }"},
		{"parenthesized statement", "(function(){ return 1; })();", I + "(function(){ " + I + "return 1; })();"},
		{"switch cases", "switch (a) { case 1: f(); break; }",
			I + "switch (a) { case 1: " + I + "f(); " + I + "break; }"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Inject(tt.src, "contract.js")
			if err != nil {
				t.Fatalf("Inject: %v", err)
			}
			if got != tt.want {
				t.Fatalf("Inject(%q) =\n%q\nwant\n%q", tt.src, got, tt.want)
			}
		})
	}
}

func TestInjectPreservesLines(t *testing.T) {
	src := "var total = 0;\nfor (var i = 0; i < 10; i++)\n\ttotal += i;\nreturn total;\n"
	got, err := Inject(src, "contract.js")
	if err != nil {
		t.Fatalf("Inject: %v", err)
	}
	if strings.Count(got, "\n") != strings.Count(src, "\n") {
		t.Fatalf("line count changed:\n%s", got)
	}
	if strings.Count(got, CountCall) != 4 {
		t.Fatalf("expected 4 counting calls, got:\n%s", got)
	}
}

func TestInjectSyntaxError(t *testing.T) {
	_, err := Inject("var a = 1;\nfunction(", "contract.js")
	if err == nil {
		t.Fatal("expected syntax error")
	}
	var se *core.ScriptError
	if !errors.As(err, &se) {
		t.Fatalf("error %T is not a *core.ScriptError", err)
	}
	if se.Phase != core.PhaseCompile {
		t.Fatalf("phase = %v, want compile", se.Phase)
	}
	if se.Line != 2 {
		t.Fatalf("line = %d, want 2", se.Line)
	}
	if se.Origin != "contract.js" {
		t.Fatalf("origin = %q", se.Origin)
	}
	if !strings.HasPrefix(se.Message, "SyntaxError: ") {
		t.Fatalf("message = %q", se.Message)
	}
}

func TestCheck(t *testing.T) {
	if err := Check("return 1 + 1;", "c.js"); err != nil {
		t.Fatalf("Check valid source: %v", err)
	}
	err := Check("function(", "c.js")
	var se *core.ScriptError
	if !errors.As(err, &se) || se.Line != 1 {
		t.Fatalf("Check(function() = %v, want positioned syntax error on line 1", err)
	}
}

func TestInjectRejectsCounterBindings(t *testing.T) {
	tests := []struct {
		name string
		src  string
		line int
	}{
		{"parameter", "function run(_instruction_counter) {}\nreturn run({incr: Boolean});", 1},
		{"var", "var a;\nvar _instruction_counter = {incr: Boolean};", 2},
		{"let in block", "{\n\tlet _instruction_counter = 1;\n}", 2},
		{"const", "const _instruction_counter = 1;", 1},
		{"function name", "function _instruction_counter() {}", 1},
		{"function expression name", "var f = function _instruction_counter() {};", 1},
		{"class", "class _instruction_counter {}", 1},
		{"catch parameter", "try {} catch (_instruction_counter) {}", 1},
		{"arrow parameter", "var f = (_instruction_counter) => 1;", 1},
		{"rest parameter", "function f(...\n_instruction_counter) {}", 2},
		{"object pattern", "var {a: _instruction_counter} = {};", 1},
		{"object shorthand", "var {_instruction_counter} = {};", 1},
		{"array pattern default", "var [x, _instruction_counter = 1] = [];", 1},
		{"for of", "for (let _instruction_counter of []) {}", 1},
		{"with", "var o = {};\nwith (o) {}", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Inject(tt.src, "contract.js")
			var se *core.ScriptError
			if !errors.As(err, &se) || se.Phase != core.PhaseCompile {
				t.Fatalf("err = %v, want compile error", err)
			}
			if se.Line != tt.line || !strings.HasPrefix(se.Message, "SyntaxError: ") {
				t.Fatalf("error = %d: %s", se.Line, se.Message)
			}
		})
	}
}

func TestInjectAllowsCounterUse(t *testing.T) {
	for _, src := range []string{
		"_instruction_counter.incr(2);",
		"var o = {_instruction_counter: 1};",
		"var n = o._instruction_counter;",
		"return _instruction_counter.count;",
	} {
		if _, err := Inject(src, "contract.js"); err != nil {
			t.Fatalf("Inject(%q): %v", src, err)
		}
	}
}
