package core

import (
	"errors"
	"testing"
)

func TestParseLocation(t *testing.T) {
	tests := []struct {
		text      string
		line, col int
		ok        bool
	}{
		{"contract.js:3:9", 3, 9, true},
		{"    at f (contract.js:4:2)", 4, 2, true},
		{"    at contract.js:7", 7, 0, true},
		{"Error: boom\n    at g (native)\n    at <anonymous> (contract.js:2:5)", 2, 5, true},
		{"Error: boom", 0, 0, false},
		{"", 0, 0, false},
	}
	for _, tt := range tests {
		line, col, ok := ParseLocation(tt.text)
		if line != tt.line || col != tt.col || ok != tt.ok {
			t.Fatalf("ParseLocation(%q) = %d, %d, %v; want %d, %d, %v",
				tt.text, line, col, ok, tt.line, tt.col, tt.ok)
		}
	}
}

func TestNewScriptErrorPrefersOrigin(t *testing.T) {
	stack := "    at <anonymous> (<eval>:5:12)\n    at run (contract.js:3:4)\n    at <eval> (contract.js:9:1)"
	se := NewScriptError(PhaseRuntime, "contract.js", "Error: nope", stack, errors.New("nope"), "throw.js:1:1", stack)
	if se.Line != 3 || se.Column != 3 || se.EndColumn != 4 {
		t.Fatalf("position = %d:%d-%d, want 3:3-4", se.Line, se.Column, se.EndColumn)
	}

	// Without a frame of the origin the first position wins.
	se = NewScriptError(PhaseRuntime, "other.js", "Error: nope", stack, nil, stack)
	if se.Line != 5 || se.Column != 11 {
		t.Fatalf("fallback position = %d:%d, want 5:11", se.Line, se.Column)
	}

	se = NewScriptError(PhaseRuntime, "contract.js", "Error: nope", "", nil)
	if se.Line != 0 || se.Error() != "Error: nope" {
		t.Fatalf("unpositioned error = %+v", se)
	}
}
