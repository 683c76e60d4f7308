// Package ui renders the catalog CLI's terminal output: prefixed status
// lines, per-descriptor sections, run summaries and descriptor diffs.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

// ruleWidth matches the delimiter the publish jobs have always printed.
const ruleWidth = 63

type level int

const (
	levelSuccess level = iota
	levelInfo
	levelWarning
	levelError
)

// prefixes maps each level to its marker and color. Warnings and errors go
// to the error stream.
var prefixes = map[level]struct {
	text   string
	color  string
	stderr bool
}{
	levelSuccess: {"✓", colorGreen, false},
	levelInfo:    {"info:", colorCyan, false},
	levelWarning: {"warning:", colorYellow, true},
	levelError:   {"error:", colorRed, true},
}

// Writer prints styled lines. Styling is dropped when color is disabled.
type Writer struct {
	out     io.Writer
	errOut  io.Writer
	noColor bool
}

// NewWriter writes to stdout and stderr. NO_COLOR in the environment
// disables color as well.
func NewWriter(noColor bool) *Writer {
	return NewWriterWithOutputs(os.Stdout, os.Stderr, noColor || os.Getenv("NO_COLOR") != "")
}

// NewWriterWithOutputs creates a Writer with custom destinations.
func NewWriterWithOutputs(out, errOut io.Writer, noColor bool) *Writer {
	return &Writer{out: out, errOut: errOut, noColor: noColor}
}

// NoColor reports whether styling is disabled.
func (w *Writer) NoColor() bool {
	return w.noColor
}

// Success, Info, Warning and Error print one prefixed line.
func (w *Writer) Success(msg string) { w.line(levelSuccess, msg) }
func (w *Writer) Info(msg string)    { w.line(levelInfo, msg) }
func (w *Writer) Warning(msg string) { w.line(levelWarning, msg) }
func (w *Writer) Error(msg string)   { w.line(levelError, msg) }

// Successf, Infof, Warningf and Errorf format their message first.
func (w *Writer) Successf(format string, args ...any) { w.line(levelSuccess, fmt.Sprintf(format, args...)) }
func (w *Writer) Infof(format string, args ...any)    { w.line(levelInfo, fmt.Sprintf(format, args...)) }
func (w *Writer) Warningf(format string, args ...any) { w.line(levelWarning, fmt.Sprintf(format, args...)) }
func (w *Writer) Errorf(format string, args ...any)   { w.line(levelError, fmt.Sprintf(format, args...)) }

// Bold returns text in bold.
func (w *Writer) Bold(text string) string {
	return w.styled(colorBold, text)
}

// Section opens a per-descriptor block: a bold title followed by a rule.
func (w *Writer) Section(format string, args ...any) {
	writeRaw(w.out, w.Bold(fmt.Sprintf(format, args...))+"\n")
	w.Rule()
}

// Rule prints the section delimiter.
func (w *Writer) Rule() {
	writeRaw(w.out, strings.Repeat("-", ruleWidth)+"\n")
}

func (w *Writer) line(l level, msg string) {
	p := prefixes[l]

	out := w.out
	if p.stderr {
		out = w.errOut
	}

	writeRaw(out, w.styled(p.color, p.text)+" "+msg+"\n")
}

func (w *Writer) styled(color, text string) string {
	if w.noColor {
		return text
	}

	return color + text + colorReset
}

// writeRaw is best effort; a broken terminal leaves nothing useful to do.
func writeRaw(out io.Writer, s string) {
	_, _ = io.WriteString(out, s)
}
