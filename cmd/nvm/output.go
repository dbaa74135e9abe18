package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Myriagram/nvm"
	"github.com/Myriagram/nvm/internal/report"
	"github.com/Myriagram/nvm/internal/storage"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var (
	styleError   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	styleWarning = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	styleSuccess = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	styleInfo    = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	styleDim     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	styleLineNum = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	stylePointer = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	styleFile    = lipgloss.NewStyle().Bold(true)
)

// printer writes command output, styled when w is an interactive terminal.
type printer struct {
	w     io.Writer
	color bool
}

func newPrinter(w io.Writer) *printer {
	return &printer{w: w, color: colorEnabled(w)}
}

// colorEnabled reports whether w is a terminal that accepts colors.
// NO_COLOR and TERM=dumb turn styling off.
func colorEnabled(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	if !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd()) {
		return false
	}
	return os.Getenv("NO_COLOR") == "" && os.Getenv("TERM") != "dumb"
}

func (p *printer) paint(s lipgloss.Style, text string) string {
	if !p.color {
		return text
	}
	return s.Render(text)
}

// result prints the JSON result of a run.
func (p *printer) result(result string) {
	if result == "" {
		fmt.Fprintln(p.w, p.paint(styleDim, "(no result)"))
		return
	}
	fmt.Fprintln(p.w, p.paint(styleSuccess, result))
}

func (p *printer) events(events []storage.Event) {
	for _, ev := range events {
		fmt.Fprintf(p.w, "%s %s %s\n", p.paint(styleInfo, "event"), p.paint(styleFile, ev.Topic), ev.Data)
	}
}

func (p *printer) info(msg string) {
	fmt.Fprintln(p.w, p.paint(styleInfo, msg))
}

func (p *printer) warn(msg string) {
	fmt.Fprintf(p.w, "%s %s\n", p.paint(styleWarning, "warning:"), msg)
}

func (p *printer) stats(s nvm.Stats) {
	fmt.Fprintln(p.w, p.paint(styleDim, fmt.Sprintf("%d instructions, %d bytes total memory, %d bytes heap used",
		s.CountOfExecutedInstructions, s.TotalMemorySize, s.UsedHeapSize)))
}

// failure prints err, with the offending source line when the error carries
// an exception record.
func (p *printer) failure(err error) {
	var ee *nvm.ExecutionError
	if !errors.As(err, &ee) || ee.Record == nil {
		fmt.Fprintf(p.w, "%s %v\n", p.paint(styleError, "error:"), err)
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", p.paint(styleError, "error:"), ee.Kind)
	p.record(*ee.Record)
}

func (p *printer) record(r report.Record) {
	if r.Line > 0 {
		num := fmt.Sprintf("%d", r.Line)
		gutter := strings.Repeat(" ", len(num))
		fmt.Fprintf(p.w, "%s %s\n", p.paint(styleLineNum, gutter+"-->"), p.paint(styleFile, fmt.Sprintf("%s:%d:%d", r.Resource, r.Line, r.ColumnStart+1)))
		fmt.Fprintf(p.w, "%s %s\n", p.paint(styleLineNum, num+" |"), r.SourceLine)
		fmt.Fprintf(p.w, "%s %s\n", p.paint(styleLineNum, gutter+" |"), p.paint(stylePointer, report.Caret(r.SourceLine, r.ColumnStart)))
	}
	detail := r.Stack
	if detail == "" {
		detail = r.Message
	}
	fmt.Fprintln(p.w, detail)
}
