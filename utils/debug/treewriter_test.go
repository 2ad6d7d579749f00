package debug

import (
	"bytes"
	"testing"
)

func TestTreeWriterLines(t *testing.T) {
	tests := []struct {
		name  string
		write func(tw *TreeWriter)
		want  string
	}{
		{"empty", func(*TreeWriter) {}, ""},
		{"line", func(tw *TreeWriter) { tw.Line(0, "root") }, "root\n"},
		{"indented line", func(tw *TreeWriter) { tw.Line(2, "%s=%d", "li", 3) }, "    li=3\n"},
		{"text block", func(tw *TreeWriter) { tw.TextBlock(1, "source", "a\tb\n") }, "  source: \"a\\tb\\n\"\n"},
		{"empty text block", func(tw *TreeWriter) { tw.TextBlock(0, "source", "") }, "source: \n"},
		{"list", func(tw *TreeWriter) { tw.List(1, "visible", []string{"a", "b"}) }, "  visible: a, b\n"},
		{"empty list", func(tw *TreeWriter) { tw.List(0, "visible", nil) }, "visible: -\n"},
		{
			"nested",
			func(tw *TreeWriter) {
				tw.Line(0, "registry:")
				tw.Nested(1, "div#1\n  li#2\n\nli#3\n")
			},
			"registry:\n  div#1\n    li#2\n\n  li#3\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tw := NewTreeWriter()
			tt.write(tw)
			if got := tw.String(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTreeWriterWriteTo(t *testing.T) {
	tw := NewTreeWriter()
	tw.Line(0, "engine")
	tw.Line(1, "ready: %t", true)

	var buf bytes.Buffer
	n, err := tw.WriteTo(&buf)
	if err != nil {
		t.Fatalf("WriteTo() error = %v", err)
	}
	if int(n) != buf.Len() || buf.String() != tw.String() {
		t.Errorf("WriteTo() wrote %d bytes %q, want %q", n, buf.String(), tw.String())
	}
}
