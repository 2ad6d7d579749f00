package replay

import (
	"fmt"
	"time"

	"go.uber.org/multierr"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"xpo/misc"
	"xpo/scenario"
)

const historySchema = `
CREATE TABLE IF NOT EXISTS sessions (
	id      TEXT PRIMARY KEY,
	started TEXT NOT NULL,
	version TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS results (
	session       TEXT NOT NULL REFERENCES sessions(id),
	seq           INTEGER NOT NULL,
	source        TEXT NOT NULL,
	name          TEXT NOT NULL,
	output        TEXT NOT NULL,
	passed        INTEGER NOT NULL,
	steps         INTEGER NOT NULL,
	notifications INTEGER NOT NULL,
	error         TEXT NOT NULL,
	PRIMARY KEY (session, seq)
);
CREATE TABLE IF NOT EXISTS failures (
	session TEXT NOT NULL,
	seq     INTEGER NOT NULL,
	step    TEXT NOT NULL,
	message TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS results_source ON results(source);
`

// history keeps outcomes of replays in SQLite database, every program run is
// a separate session.
type history struct {
	conn    *sqlite.Conn
	session string
	seq     int
}

func openHistory(path, session string, started time.Time) (h *history, err error) {
	conn, err := sqlite.OpenConn(path, sqlite.OpenReadWrite, sqlite.OpenCreate, sqlite.OpenWAL)
	if err != nil {
		return nil, fmt.Errorf("unable to open history database: %w", err)
	}
	defer func() {
		if err != nil {
			err = multierr.Append(err, conn.Close())
		}
	}()

	if err := sqlitex.ExecuteScript(conn, historySchema, nil); err != nil {
		return nil, fmt.Errorf("unable to prepare history database: %w", err)
	}
	err = sqlitex.Execute(conn, `INSERT INTO sessions (id, started, version) VALUES (?, ?, ?)`,
		&sqlitex.ExecOptions{Args: []any{session, started.UTC().Format(time.RFC3339Nano), misc.GetVersion()}})
	if err != nil {
		return nil, fmt.Errorf("unable to register session: %w", err)
	}
	return &history{conn: conn, session: session}, nil
}

func (h *history) Close() error {
	return h.conn.Close()
}

// record stores outcome of a scenario. Result is nil when scenario could not
// be played.
func (h *history) record(o outcome, res *scenario.Result) (err error) {
	defer sqlitex.Save(h.conn)(&err)

	h.seq++
	var (
		name   string
		steps  int
		notifs int
		msg    string
	)
	if res != nil {
		name, steps, notifs = res.Name, res.Steps, len(res.Notifications)
	}
	if o.err != nil {
		msg = o.err.Error()
	}
	err = sqlitex.Execute(h.conn,
		`INSERT INTO results (session, seq, source, name, output, passed, steps, notifications, error) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{Args: []any{h.session, h.seq, o.src, name, o.output, boolInt(o.passed), steps, notifs, msg}})
	if err != nil {
		return fmt.Errorf("unable to record result: %w", err)
	}
	if res == nil {
		return nil
	}
	for _, f := range res.Failures {
		err = sqlitex.Execute(h.conn, `INSERT INTO failures (session, seq, step, message) VALUES (?, ?, ?, ?)`,
			&sqlitex.ExecOptions{Args: []any{h.session, h.seq, f.Step, f.Message}})
		if err != nil {
			return fmt.Errorf("unable to record failure: %w", err)
		}
	}
	return nil
}

// previous returns outcome of the latest earlier session which played the
// same source. Session identifiers are time ordered.
func (h *history) previous(src string) (passed, found bool, err error) {
	err = sqlitex.Execute(h.conn,
		`SELECT passed FROM results WHERE source = ? AND session < ? ORDER BY session DESC, seq DESC LIMIT 1`,
		&sqlitex.ExecOptions{
			Args: []any{src, h.session},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				passed, found = stmt.ColumnInt64(0) != 0, true
				return nil
			},
		})
	return
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
