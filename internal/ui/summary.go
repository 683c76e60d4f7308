package ui

import (
	"fmt"
	"strings"
)

// SummaryRow is one labelled count in a run summary.
type SummaryRow struct {
	Label string
	Count int
	// Bad marks counts that should stand out when non-zero.
	Bad bool
}

// Summary prints an aligned block of counts under a title.
func (w *Writer) Summary(title string, rows []SummaryRow) {
	width := 0
	for _, r := range rows {
		width = max(width, len(r.Label))
	}

	var b strings.Builder

	b.WriteString(w.Bold(title) + "\n")

	for _, r := range rows {
		count := fmt.Sprintf("%d", r.Count)
		if r.Bad && r.Count > 0 {
			count = w.styled(colorRed, count)
		}

		fmt.Fprintf(&b, "  %-*s %s\n", width+1, r.Label+":", count)
	}

	writeRaw(w.out, b.String())
}
