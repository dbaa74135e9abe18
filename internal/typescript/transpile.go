// Package typescript lowers TypeScript contract source to the JavaScript
// dialect the sandbox executes.
package typescript

import (
	"encoding/base64"
	"errors"
	"strings"

	"github.com/Myriagram/nvm/internal/core"
	esbuild "github.com/evanw/esbuild/pkg/api"
	"github.com/go-sourcemap/sourcemap"
)

// inlineMapPrefix starts the comment esbuild appends for an inline map.
const inlineMapPrefix = "//# sourceMappingURL=data:application/json;base64,"

// Transpile strips types and lowers syntax newer than ES2017. name is the
// resource name reported in diagnostics.
//
// esbuild re-prints the module, so lines of the output do not match the
// input. The output carries an inline source map instead, and its line
// offset is always zero; InlineSourceMap recovers the map.
func Transpile(source, name string) (code string, lineOffset int, err error) {
	res := esbuild.Transform(source, esbuild.TransformOptions{
		Loader:         esbuild.LoaderTS,
		Target:         esbuild.ES2017,
		Sourcefile:     name,
		Sourcemap:      esbuild.SourceMapInline,
		SourcesContent: esbuild.SourcesContentInclude,
		LogLevel:       esbuild.LogLevelSilent,
	})
	if len(res.Errors) > 0 {
		return "", 0, transformError(name, res.Errors)
	}
	return string(res.Code), 0, nil
}

// transformError converts the first esbuild message into a positioned
// ScriptError; the remaining messages are kept in the stack text.
func transformError(name string, msgs []esbuild.Message) error {
	first := msgs[0]
	var detail []string
	for _, m := range msgs {
		detail = append(detail, m.Text)
	}
	se := &core.ScriptError{
		Phase:   core.PhaseCompile,
		Message: "SyntaxError: " + first.Text,
		Origin:  name,
		Cause:   errors.New(strings.Join(detail, "; ")),
	}
	if loc := first.Location; loc != nil {
		se.Line = loc.Line
		se.Column = loc.Column
		se.EndColumn = loc.Column + max(loc.Length, 1)
	}
	return se
}

// InlineSourceMap parses the source map embedded in code, or returns nil
// when code carries none or it cannot be decoded.
func InlineSourceMap(code string) *sourcemap.Consumer {
	i := strings.LastIndex(code, inlineMapPrefix)
	if i < 0 {
		return nil
	}
	data := code[i+len(inlineMapPrefix):]
	if j := strings.IndexAny(data, "\r\n"); j >= 0 {
		data = data[:j]
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(data))
	if err != nil {
		return nil
	}
	sm, err := sourcemap.Parse("", raw)
	if err != nil {
		return nil
	}
	return sm
}
