package core

import (
	"regexp"
	"strconv"
	"strings"
)

// Phase identifies where in the run a script error surfaced.
type Phase int

const (
	PhaseCompile Phase = iota + 1
	PhaseRuntime
)

func (p Phase) String() string {
	switch p {
	case PhaseCompile:
		return "compile"
	case PhaseRuntime:
		return "runtime"
	default:
		return "unknown"
	}
}

// ScriptError is a thrown or propagated script exception, normalized across
// backends. Line and Column refer to the text that was actually compiled.
type ScriptError struct {
	Phase     Phase
	Message   string // exception text, e.g. "SyntaxError: Unexpected token"
	Origin    string
	Line      int // 1-based, 0 when the backend reported no position
	Column    int // 0-based start column
	EndColumn int // 0-based, exclusive
	Stack     string
	Cause     error
}

func (e *ScriptError) Error() string {
	if e.Line > 0 {
		return e.Origin + ":" + strconv.Itoa(e.Line) + ": " + e.Message
	}
	return e.Message
}

func (e *ScriptError) Unwrap() error { return e.Cause }

// locationPattern matches the tail of "file:line:col", "(file:line:col)" and
// "file:line" as found in V8 locations and QuickJS stack frames.
var locationPattern = regexp.MustCompile(`:(\d+)(?::(\d+))?\)?$`)

// ParseLocation extracts the first source position from an engine location
// string or stack trace. The column is 1-based as engines print it, and is
// zero when the engine printed only a line.
func ParseLocation(text string) (line, column int, ok bool) {
	return parseLocation(text, "")
}

// parseLocation is ParseLocation restricted to frames of origin when origin
// is not empty.
func parseLocation(text, origin string) (line, column int, ok bool) {
	for _, l := range strings.Split(text, "\n") {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		if !strings.HasPrefix(l, "at ") && strings.ContainsAny(l, " \t") {
			continue
		}
		if origin != "" && !strings.Contains(l, origin+":") {
			continue
		}
		m := locationPattern.FindStringSubmatch(l)
		if m == nil {
			continue
		}
		line, _ = strconv.Atoi(m[1])
		if m[2] != "" {
			column, _ = strconv.Atoi(m[2])
		}
		return line, column, line > 0
	}
	return 0, 0, false
}

// NewScriptError builds a ScriptError, taking the position from the first of
// locations that carries one. Frames of origin are preferred, so host
// wrappers on top of the stack do not hide the caller's position.
func NewScriptError(phase Phase, origin, message, stack string, cause error, locations ...string) *ScriptError {
	se := &ScriptError{
		Phase:   phase,
		Message: message,
		Origin:  origin,
		Stack:   stack,
		Cause:   cause,
	}
	if line, col, ok := firstLocation(origin, locations); ok {
		se.Line = line
		if col > 0 {
			se.Column = col - 1
		}
		se.EndColumn = se.Column + 1
	}
	return se
}

func firstLocation(origin string, locations []string) (line, column int, ok bool) {
	if origin != "" {
		for _, loc := range locations {
			if line, column, ok = parseLocation(loc, origin); ok {
				return line, column, true
			}
		}
	}
	for _, loc := range locations {
		if line, column, ok = parseLocation(loc, ""); ok {
			return line, column, true
		}
	}
	return 0, 0, false
}
