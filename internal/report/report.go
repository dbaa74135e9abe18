// Package report turns script exceptions into diagnostics that point back at
// the caller's source: file and line, the offending line, a caret under the
// error column and the stack trace.
package report

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Myriagram/nvm/internal/core"
	"github.com/go-sourcemap/sourcemap"
)

// Record is one captured exception, positioned in the caller's source.
type Record struct {
	Resource    string
	Line        int // 1-based, 0 when unknown
	ColumnStart int // 0-based
	ColumnEnd   int
	SourceLine  string
	Message     string
	Stack       string
}

// Mapping describes how the compiled text relates to the caller's source.
type Mapping struct {
	// Resource overrides the origin reported by the engine.
	Resource string
	// Source is the compiled text, used to fetch the offending line.
	Source string
	// LineOffset is added to engine line numbers.
	LineOffset int
	// PrefixColumns is the width of wrapper text preceding the caller's first
	// line in the compiled text.
	PrefixColumns int
	// SourceMap, when set, maps positions in the caller's source back to the
	// file it was generated from. LineOffset applies to the mapped line.
	SourceMap *sourcemap.Consumer
}

// FromError builds a record for err. Errors that carry no *core.ScriptError
// yield a record holding only the message.
func FromError(err error, m Mapping) Record {
	var se *core.ScriptError
	if errors.As(err, &se) {
		return FromScriptError(se, m)
	}
	return Record{Resource: m.Resource, Message: err.Error()}
}

// FromScriptError positions se in the caller's source.
func FromScriptError(se *core.ScriptError, m Mapping) Record {
	rec := Record{
		Resource: se.Origin,
		Message:  se.Message,
		Stack:    se.Stack,
	}
	if m.Resource != "" {
		rec.Resource = m.Resource
	}
	if se.Line <= 0 {
		return rec
	}

	start, end := se.Column, se.EndColumn
	if se.Line == 1 && start >= m.PrefixColumns {
		start -= m.PrefixColumns
		end -= m.PrefixColumns
	}
	if end < start {
		end = start
	}
	lineNo := se.Line
	line := sourceLine(m.Source, se.Line)
	if se.Line == 1 && len(line) >= m.PrefixColumns {
		line = line[m.PrefixColumns:]
	}
	if m.SourceMap != nil {
		if file, _, l, c, ok := m.SourceMap.Source(lineNo, start); ok && l > 0 {
			end = c + (end - start)
			start, lineNo = c, l
			line = sourceLine(m.SourceMap.SourceContent(file), l)
			if file != "" {
				rec.Resource = file
			}
		}
	}
	rec.Line = lineNo + m.LineOffset
	rec.ColumnStart = start
	rec.ColumnEnd = end
	rec.SourceLine = line
	return rec
}

// sourceLine returns the n-th (1-based) line of src without its terminator.
func sourceLine(src string, n int) string {
	for i := 1; ; i++ {
		line, rest, found := strings.Cut(src, "\n")
		if i == n {
			return strings.TrimSuffix(line, "\r")
		}
		if !found {
			return ""
		}
		src = rest
	}
}

// Caret returns a marker line with '^' at column. Tabs in line before the
// column are copied so the marker lines up under tab-indented source.
func Caret(line string, column int) string {
	if column < 0 {
		column = 0
	}
	var b strings.Builder
	b.Grow(column + 1)
	for i := 0; i < column; i++ {
		if i < len(line) && line[i] == '\t' {
			b.WriteByte('\t')
		} else {
			b.WriteByte(' ')
		}
	}
	b.WriteByte('^')
	return b.String()
}

// Format renders the record as
//
//	<file>:<line>
//	<source line>
//	<caret line>
//
// followed by the stack trace, or the exception text when there is none.
// Records without a position render as the trailing part only.
func (r Record) Format() string {
	var b strings.Builder
	if r.Line > 0 {
		b.WriteString(r.Resource)
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(r.Line))
		b.WriteByte('\n')
		b.WriteString(r.SourceLine)
		b.WriteByte('\n')
		b.WriteString(Caret(r.SourceLine, r.ColumnStart))
		b.WriteByte('\n')
	}
	if r.Stack != "" {
		b.WriteString(r.Stack)
	} else {
		b.WriteString(r.Message)
	}
	return b.String()
}

// Log writes the record to log at error level. Formatting problems degrade to
// the bare message; Log never panics.
func Log(log core.Logger, r Record) {
	if log == nil {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			log.Errorf("Exception:\n%s", r.Message)
		}
	}()
	log.Errorf("Exception:\n%s", r.Format())
}

func (r Record) String() string {
	if r.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s", r.Resource, r.Line, r.ColumnStart+1, r.Message)
	}
	return r.Message
}
