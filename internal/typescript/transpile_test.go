package typescript

import (
	"errors"
	"strings"
	"testing"

	"github.com/Myriagram/nvm/internal/core"
)

func TestTranspileStripsTypes(t *testing.T) {
	src := `
interface Balance { owner: string; amount: number }
class Bank {
	private balances: Balance[] = [];
	deposit(owner: string, amount: number): number {
		this.balances.push({ owner, amount } as Balance);
		return this.balances.length;
	}
}
module.exports = Bank;
`
	code, offset, err := Transpile(src, "bank.ts")
	if err != nil {
		t.Fatalf("Transpile: %v", err)
	}
	if offset != 0 {
		t.Fatalf("line offset = %d, want 0", offset)
	}
	for _, typed := range []string{"interface", ": string", ": number", " as Balance", "private "} {
		if strings.Contains(code, typed) {
			t.Fatalf("output still contains %q:\n%s", typed, code)
		}
	}
	if !strings.Contains(code, "class Bank") || !strings.Contains(code, "module.exports = Bank") {
		t.Fatalf("unexpected output:\n%s", code)
	}
}

func TestTranspileError(t *testing.T) {
	_, _, err := Transpile("let x: number = ;\n", "broken.ts")
	if err == nil {
		t.Fatal("expected transpile error")
	}
	var se *core.ScriptError
	if !errors.As(err, &se) {
		t.Fatalf("error %T is not a *core.ScriptError", err)
	}
	if se.Phase != core.PhaseCompile || se.Line != 1 || se.Origin != "broken.ts" {
		t.Fatalf("unexpected error position: %+v", se)
	}
	if se.Column != 16 {
		t.Fatalf("column = %d, want 16", se.Column)
	}
}

const reorderedTS = `interface Account { owner: string }

// limits are checked before any transfer
type Amount = number;
let limit: Amount = 10; let used: Amount = 0;
throw new Error("over " + (limit - used));
`

func TestInlineSourceMap(t *testing.T) {
	code, _, err := Transpile(reorderedTS, "limits.ts")
	if err != nil {
		t.Fatalf("Transpile: %v", err)
	}
	sm := InlineSourceMap(code)
	if sm == nil {
		t.Fatalf("no inline source map in:\n%s", code)
	}

	genLine := 0
	for i, l := range strings.Split(code, "\n") {
		if strings.HasPrefix(l, "throw ") {
			genLine = i + 1
			break
		}
	}
	if genLine == 0 || genLine == 6 {
		t.Fatalf("throw at generated line %d; the input layout was kept:\n%s", genLine, code)
	}
	file, _, line, _, ok := sm.Source(genLine, 0)
	if !ok || line != 6 || file != "limits.ts" {
		t.Fatalf("Source(%d, 0) = %q, %d, %v; want limits.ts:6", genLine, file, line, ok)
	}
	if !strings.Contains(sm.SourceContent(file), "// limits are checked") {
		t.Fatal("source content not embedded")
	}
}

func TestInlineSourceMapAbsent(t *testing.T) {
	if InlineSourceMap("var a = 1;") != nil {
		t.Fatal("map found in plain source")
	}
	if InlineSourceMap("var a;\n"+inlineMapPrefix+"!!!") != nil {
		t.Fatal("undecodable map accepted")
	}
}
