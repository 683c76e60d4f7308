package ui

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Diff prints a line diff between before and after under a header naming
// the file. Nothing is printed when the texts are equal.
func (w *Writer) Diff(name, before, after string) {
	if before == after {
		return
	}

	var b strings.Builder

	b.WriteString(w.styled(colorBold, "--- "+name) + "\n")
	b.WriteString(w.styled(colorBold, "+++ "+name) + "\n")

	for _, d := range LineDiff(before, after) {
		prefix, color := " ", ""

		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix, color = "+", colorGreen
		case diffmatchpatch.DiffDelete:
			prefix, color = "-", colorRed
		case diffmatchpatch.DiffEqual:
		}

		for _, line := range splitLines(d.Text) {
			if color == "" {
				b.WriteString(prefix + line + "\n")
				continue
			}

			b.WriteString(w.styled(color, prefix+line) + "\n")
		}
	}

	writeRaw(w.out, b.String())
}

// LineDiff computes a line-granular diff.
func LineDiff(before, after string) []diffmatchpatch.Diff {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffMain(a, b, false)

	return dmp.DiffCharsToLines(diffs, lines)
}

func splitLines(s string) []string {
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return []string{""}
	}

	return strings.Split(s, "\n")
}
