package scenario

import (
	"io"

	"xpo/utils/debug"
)

// WriteText renders result in human readable form.
func (r *Result) WriteText(w io.Writer) error {
	tw := debug.NewTreeWriter()

	status := "passed"
	if !r.Passed() {
		status = "failed"
	}
	tw.Line(0, "Scenario %s: %s", r.Name, status)
	tw.TextBlock(1, "source", r.Source)
	if len(r.Session) > 0 {
		tw.Line(1, "session: %s", r.Session)
	}
	tw.Line(1, "steps: %d", r.Steps)

	tw.Line(1, "notifications: %d", len(r.Notifications))
	for _, n := range r.Notifications {
		kind := "invisible"
		if n.Visible {
			kind = "visible"
		}
		tw.Line(2, "%d %s %s ratio=%g data=%s", n.Seq, kind, n.Node, n.Ratio, n.Data)
	}
	if len(r.Events) > 0 {
		tw.Line(1, "events: %d", len(r.Events))
		for _, e := range r.Events {
			if len(e.Detail) > 0 {
				tw.Line(2, "%d %s %s %s", e.Seq, e.Name, e.Node, e.Detail)
				continue
			}
			tw.Line(2, "%d %s %s", e.Seq, e.Name, e.Node)
		}
	}

	failures := make([]string, 0, len(r.Failures))
	for _, f := range r.Failures {
		failures = append(failures, f.String())
	}
	tw.List(1, "failures", failures)

	for i, d := range r.Dumps {
		tw.Line(1, "dump %d", i+1)
		tw.Nested(2, d)
	}
	if len(r.Registry) > 0 {
		tw.Line(1, "registry")
		tw.Nested(2, r.Registry)
	}
	_, err := tw.WriteTo(w)
	return err
}
