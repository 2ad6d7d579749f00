package replay

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"xpo/config"
	"xpo/scenario"
)

func countRows(t *testing.T, h *history, table string) int64 {
	t.Helper()
	var n int64
	err := sqlitex.Execute(h.conn, "SELECT count(*) FROM "+table, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			n = stmt.ColumnInt64(0)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

func TestHistory(t *testing.T) {
	db := filepath.Join(t.TempDir(), "history.db")

	h, err := openHistory(db, "0001", time.Now())
	if err != nil {
		t.Fatalf("openHistory() error = %v", err)
	}
	if err := h.record(outcome{src: "x.xml", output: "x.yaml", passed: true}, &scenario.Result{Name: "X", Steps: 3}); err != nil {
		t.Fatalf("record() error = %v", err)
	}
	if err := h.Close(); err != nil {
		t.Fatal(err)
	}

	h, err = openHistory(db, "0002", time.Now())
	if err != nil {
		t.Fatalf("openHistory() error = %v", err)
	}
	defer h.Close()

	passed, found, err := h.previous("x.xml")
	if err != nil || !found || !passed {
		t.Errorf("previous(x.xml) = %t, %t, %v", passed, found, err)
	}
	if _, found, _ := h.previous("y.xml"); found {
		t.Error("previous(y.xml) found unknown source")
	}

	failed := &scenario.Result{Name: "X", Failures: []scenario.Failure{{Step: "#1 expect(a)", Message: "status"}, {Step: "#2 expect(b)", Message: "ratio"}}}
	if err := h.record(outcome{src: "x.xml", err: errors.New("boom")}, failed); err != nil {
		t.Fatalf("record() error = %v", err)
	}
	if err := h.record(outcome{src: "broken.xml", err: errors.New("unable to load")}, nil); err != nil {
		t.Fatalf("record() without result error = %v", err)
	}

	if n := countRows(t, h, "sessions"); n != 2 {
		t.Errorf("sessions = %d, want 2", n)
	}
	if n := countRows(t, h, "results"); n != 3 {
		t.Errorf("results = %d, want 3", n)
	}
	if n := countRows(t, h, "failures"); n != 2 {
		t.Errorf("failures = %d, want 2", n)
	}

	// results of current session are not "previous"
	passed, found, err = h.previous("x.xml")
	if err != nil || !found || !passed {
		t.Errorf("previous(x.xml) after record = %t, %t, %v", passed, found, err)
	}
}

func TestHistoryDuplicateSession(t *testing.T) {
	db := filepath.Join(t.TempDir(), "history.db")
	h, err := openHistory(db, "same", time.Now())
	if err != nil {
		t.Fatalf("openHistory() error = %v", err)
	}
	defer h.Close()

	if _, err := openHistory(db, "same", time.Now()); err == nil {
		t.Error("expected error for duplicate session")
	}
}

func TestProcessRecordsHistory(t *testing.T) {
	ctx, env := setupTestEnv(t)
	src := t.TempDir()
	writeScenario(t, filepath.Join(src, "good.xml"), "Good", true)
	writeScenario(t, filepath.Join(src, "bad.xml"), "Bad", false)

	h, err := openHistory(filepath.Join(t.TempDir(), "history.db"), env.Session.String(), time.Now())
	if err != nil {
		t.Fatalf("openHistory() error = %v", err)
	}
	defer h.Close()

	b := newBatch(env, t.TempDir(), config.OutputFormatYaml)
	b.hist = h
	if err := b.process(ctx, src); err != nil {
		t.Fatalf("process() error = %v", err)
	}
	if n := countRows(t, h, "results"); n != 2 {
		t.Errorf("results = %d, want 2", n)
	}
	if n := countRows(t, h, "failures"); n != 1 {
		t.Errorf("failures = %d, want 1", n)
	}
}
