// Package debug renders indented trees for registry dumps and replay reports.
package debug

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

const indent = "  "

type TreeWriter struct {
	w *strings.Builder
}

func NewTreeWriter() *TreeWriter {
	return &TreeWriter{
		w: &strings.Builder{},
	}
}

func (tw *TreeWriter) String() string {
	return tw.w.String()
}

func (tw *TreeWriter) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, tw.w.String())
	return int64(n), err
}

func (tw *TreeWriter) pad(depth int) {
	for range depth {
		tw.w.WriteString(indent)
	}
}

func (tw *TreeWriter) Line(depth int, format string, args ...any) {
	tw.pad(depth)
	fmt.Fprintf(tw.w, format, args...)
	tw.w.WriteByte('\n')
}

// TextBlock writes labeled value quoted, so control characters stay on one
// line.
func (tw *TreeWriter) TextBlock(depth int, label, value string) {
	tw.pad(depth)
	tw.w.WriteString(label)
	tw.w.WriteString(": ")
	tw.w.WriteString(encodeText(value))
	tw.w.WriteByte('\n')
}

// List writes label followed by comma separated items, "-" when there are
// none.
func (tw *TreeWriter) List(depth int, label string, items []string) {
	value := "-"
	if len(items) > 0 {
		value = strings.Join(items, ", ")
	}
	tw.Line(depth, "%s: %s", label, value)
}

// Nested embeds already rendered multi-line text shifted to depth. Empty
// lines are kept without indentation.
func (tw *TreeWriter) Nested(depth int, text string) {
	for line := range strings.SplitSeq(strings.TrimRight(text, "\n"), "\n") {
		if len(line) == 0 {
			tw.w.WriteByte('\n')
			continue
		}
		tw.pad(depth)
		tw.w.WriteString(line)
		tw.w.WriteByte('\n')
	}
}

func encodeText(raw string) string {
	if raw == "" {
		return raw
	}
	return strconv.Quote(raw)
}
