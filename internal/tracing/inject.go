// Package tracing rewrites contract source so that executing it reports work
// to the instruction counter. A counting call is placed before every
// statement and at the top of every loop body; line structure is preserved so
// diagnostics from the rewritten text map onto the original lines.
package tracing

import (
	"errors"
	"reflect"
	"sort"
	"strings"

	"github.com/Myriagram/nvm/internal/core"
	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/file"
	"github.com/dop251/goja/parser"
)

// CountCall is the statement inserted at every counting point.
const CountCall = counter + ".incr(1);"

const counter = "_instruction_counter"

// Sources are parsed as a function body so top-level return is accepted.
const (
	bodyPrefix = "(function(){"
	bodySuffix = "\n})"
)

type insertKind int

const (
	kindClose insertKind = iota
	kindOpen
)

type insertion struct {
	offset int
	kind   insertKind
	text   string
}

type injector struct {
	src     string // text handed to the parser
	inserts []insertion
	visited map[visitKey]struct{}

	// shadow is the first construct that would hide the counter from the
	// inserted calls.
	shadow *shadowing
}

type shadowing struct {
	idx  file.Idx
	what string
}

type visitKey struct {
	typ reflect.Type
	ptr uintptr
}

// Inject returns source with counting calls inserted. name is used as the
// resource name of syntax errors.
func Inject(source, name string) (string, error) {
	wrapped := bodyPrefix + source + bodySuffix
	prog, err := parser.ParseFile(nil, name, wrapped, 0, parser.WithDisableSourceMaps)
	if err != nil {
		return "", syntaxError(name, err)
	}

	in := &injector{src: wrapped, visited: make(map[visitKey]struct{})}
	// The program itself holds only the wrapper expression.
	for _, stmt := range prog.Body {
		in.walk(reflect.ValueOf(stmt))
	}
	if in.shadow != nil {
		return "", shadowError(name, prog.File, in.shadow)
	}
	return in.apply(source), nil
}

// Check parses source as a function body and reports the first syntax error
// with its position.
func Check(source, name string) error {
	_, err := parser.ParseFile(nil, name, bodyPrefix+source+bodySuffix, 0, parser.WithDisableSourceMaps)
	if err != nil {
		return syntaxError(name, err)
	}
	return nil
}

var astPkg = reflect.TypeOf(ast.Program{}).PkgPath()

func (in *injector) walk(v reflect.Value) {
	switch v.Kind() {
	case reflect.Interface:
		if !v.IsNil() {
			in.walk(v.Elem())
		}
	case reflect.Pointer:
		if v.IsNil() || v.Elem().Kind() != reflect.Struct || v.Elem().Type().PkgPath() != astPkg {
			return
		}
		key := visitKey{typ: v.Type(), ptr: v.Pointer()}
		if _, ok := in.visited[key]; ok {
			return
		}
		in.visited[key] = struct{}{}
		in.node(v.Interface())
		in.walk(v.Elem())
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			if v.Type().Field(i).IsExported() {
				in.walk(v.Field(i))
			}
		}
	case reflect.Slice:
		for i := 0; i < v.Len(); i++ {
			in.walk(v.Index(i))
		}
	}
}

func (in *injector) node(n any) {
	in.bindings(n)
	switch n := n.(type) {
	case *ast.BlockStatement:
		in.list(n.List)
	case *ast.CaseStatement:
		in.list(n.Consequent)
	case *ast.ForStatement:
		in.loopBody(n.Body)
	case *ast.ForInStatement:
		in.loopBody(n.Body)
	case *ast.ForOfStatement:
		in.loopBody(n.Body)
	case *ast.WhileStatement:
		in.loopBody(n.Body)
	case *ast.DoWhileStatement:
		in.loopBody(n.Body)
	}
}

// bindings records constructs that bind the counter's name. The inserted
// calls resolve the name lexically, so any such binding or a with statement
// would let the code supply its own counter.
func (in *injector) bindings(n any) {
	if in.shadow != nil {
		return
	}
	switch n := n.(type) {
	case *ast.Binding:
		in.target(n.Target, "declaration")
	case *ast.ParameterList:
		in.target(n.Rest, "parameter")
	case *ast.CatchStatement:
		in.target(n.Parameter, "catch parameter")
	case *ast.ForDeclaration:
		in.target(n.Target, "declaration")
	case *ast.FunctionLiteral:
		if n.Name != nil {
			in.target(n.Name, "function name")
		}
	case *ast.ClassLiteral:
		if n.Name != nil {
			in.target(n.Name, "class name")
		}
	case *ast.WithStatement:
		in.shadow = &shadowing{idx: n.With, what: "with statement"}
	}
}

// target inspects a binding target, descending into destructuring patterns.
func (in *injector) target(e ast.Expression, what string) {
	if in.shadow != nil || e == nil {
		return
	}
	switch e := e.(type) {
	case *ast.Identifier:
		if e != nil && string(e.Name) == counter {
			in.shadow = &shadowing{idx: e.Idx, what: what}
		}
	case *ast.AssignExpression:
		in.target(e.Left, what)
	case *ast.ArrayPattern:
		for _, el := range e.Elements {
			in.target(el, what)
		}
		in.target(e.Rest, what)
	case *ast.ObjectPattern:
		for _, p := range e.Properties {
			switch p := p.(type) {
			case *ast.PropertyShort:
				in.target(&p.Name, what)
			case *ast.PropertyKeyed:
				in.target(p.Value, what)
			case *ast.SpreadElement:
				in.target(p.Expression, what)
			}
		}
		in.target(e.Rest, what)
	case *ast.SpreadElement:
		in.target(e.Expression, what)
	}
}

// list counts every statement of a statement list, after any leading
// directive prologue.
func (in *injector) list(stmts []ast.Statement) {
	i := 0
	for ; i < len(stmts); i++ {
		es, ok := stmts[i].(*ast.ExpressionStatement)
		if !ok {
			break
		}
		if _, ok := es.Expression.(*ast.StringLiteral); !ok {
			break
		}
	}
	for _, stmt := range stmts[i:] {
		in.add(in.start(stmt), kindOpen, CountCall)
	}
}

// loopBody makes sure every iteration passes a counting point. Block bodies
// are covered by list; an empty block gets the call after its brace, and any
// other body is wrapped in a block.
func (in *injector) loopBody(body ast.Statement) {
	if body == nil {
		return
	}
	if b, ok := body.(*ast.BlockStatement); ok {
		if len(b.List) == 0 {
			in.add(offset(b.LeftBrace)+1, kindOpen, CountCall)
		}
		return
	}
	in.add(in.start(body), kindOpen, "{"+CountCall)
	in.add(in.end(body), kindClose, "}")
}

// start returns the offset a statement's text begins at, including opening
// parentheses the parser does not record.
func (in *injector) start(stmt ast.Statement) int {
	p := offset(stmt.Idx0())
	first := p
	for q := p; q > 0; q-- {
		c := in.src[q-1]
		if c == '(' {
			first = q - 1
			continue
		}
		if c != ' ' && c != '\t' && c != '\r' && c != '\n' {
			break
		}
	}
	return first
}

// end returns the offset just past a statement, including closing
// parentheses and the terminating semicolon.
func (in *injector) end(stmt ast.Statement) int {
	last := offset(stmt.Idx1())
	for q := last; q < len(in.src); q++ {
		c := in.src[q]
		if c == ')' {
			last = q + 1
			continue
		}
		if c == ';' {
			last = q + 1
		}
		if c != ' ' && c != '\t' {
			break
		}
	}
	return last
}

func (in *injector) add(off int, kind insertKind, text string) {
	in.inserts = append(in.inserts, insertion{offset: off, kind: kind, text: text})
}

// apply writes the insertions into source. Offsets are relative to the
// wrapped text.
func (in *injector) apply(source string) string {
	sort.SliceStable(in.inserts, func(i, j int) bool {
		a, b := in.inserts[i], in.inserts[j]
		if a.offset != b.offset {
			return a.offset < b.offset
		}
		return a.kind < b.kind
	})

	var b strings.Builder
	b.Grow(len(source) + len(in.inserts)*len(CountCall))
	pos := 0
	for _, ins := range in.inserts {
		off := ins.offset - len(bodyPrefix)
		if off < 0 || off > len(source) {
			continue
		}
		b.WriteString(source[pos:off])
		b.WriteString(ins.text)
		pos = off
	}
	b.WriteString(source[pos:])
	return b.String()
}

// offset converts a 1-based file index into a byte offset.
func offset(idx file.Idx) int {
	return int(idx) - 1
}

func shadowError(name string, f *file.File, s *shadowing) error {
	msg := "SyntaxError: " + counter + " is reserved and cannot be bound by a " + s.what
	if s.what == "with statement" {
		msg = "SyntaxError: with statements are not allowed in metered code"
	}
	pos := f.Position(offset(s.idx))
	col := pos.Column - 1
	if pos.Line == 1 {
		col -= len(bodyPrefix)
	}
	col = max(col, 0)
	return &core.ScriptError{
		Phase:     core.PhaseCompile,
		Message:   msg,
		Origin:    name,
		Line:      pos.Line,
		Column:    col,
		EndColumn: col + 1,
		Cause:     errors.New(msg),
	}
}

func syntaxError(name string, err error) error {
	var list parser.ErrorList
	var one *parser.Error
	switch {
	case errors.As(err, &list) && len(list) > 0:
		one = list[0]
	case errors.As(err, &one):
	default:
		return core.NewScriptError(core.PhaseCompile, name, "SyntaxError: "+err.Error(), "", err)
	}

	se := &core.ScriptError{
		Phase:   core.PhaseCompile,
		Message: "SyntaxError: " + one.Message,
		Origin:  name,
		Line:    one.Position.Line,
		Cause:   err,
	}
	col := one.Position.Column - 1
	if se.Line == 1 {
		col -= len(bodyPrefix)
	}
	if col < 0 {
		col = 0
	}
	se.Column = col
	se.EndColumn = col + 1
	return se
}
