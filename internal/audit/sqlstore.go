package audit

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

const schema = `
CREATE TABLE IF NOT EXISTS invocations (
	id          TEXT PRIMARY KEY,
	type        TEXT NOT NULL,
	instruction TEXT NOT NULL,
	created_at  INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS steps (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	invocation_id TEXT NOT NULL REFERENCES invocations(id),
	result        TEXT NOT NULL,
	created_at    INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS outcomes (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	invocation_id TEXT NOT NULL REFERENCES invocations(id),
	result        TEXT NOT NULL,
	created_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_invocations_created ON invocations(created_at);
CREATE INDEX IF NOT EXISTS idx_steps_invocation ON steps(invocation_id);
CREATE INDEX IF NOT EXISTS idx_outcomes_invocation ON outcomes(invocation_id);
`

// SQLStore persists the audit trail in SQLite. Timestamps are stored as Unix
// nanoseconds.
type SQLStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and applies the
// schema.
func OpenSQLite(ctx context.Context, path string) (*SQLStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create audit directory %s: %w", dir, err)
		}
	}

	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(WAL)")
	dsn := "file:" + path + "?" + q.Encode()

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// SQLite serializes writers; one connection avoids SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply audit schema: %w", err)
	}

	return &SQLStore{db: db}, nil
}

// Write implements Sink.
func (s *SQLStore) Write(ctx context.Context, e Event) error {
	var err error
	switch e.Kind {
	case KindInvocation:
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO invocations (id, type, instruction, created_at) VALUES (?, ?, ?, ?)`,
			e.InvocationID, e.CommandType, e.Instruction, e.At.UnixNano())
	case KindStep:
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO steps (invocation_id, result, created_at) VALUES (?, ?, ?)`,
			e.InvocationID, e.Result, e.At.UnixNano())
	case KindOutcome:
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO outcomes (invocation_id, result, created_at) VALUES (?, ?, ?)`,
			e.InvocationID, e.Result, e.At.UnixNano())
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEventKind, e.Kind)
	}
	if err != nil {
		return fmt.Errorf("insert %s for %s: %w", e.Kind, e.InvocationID, err)
	}
	return nil
}

// History implements History.
func (s *SQLStore) History(ctx context.Context, limit int) ([]Invocation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, type, instruction, created_at FROM invocations
		 ORDER BY created_at DESC, rowid DESC LIMIT ?`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query invocations: %w", err)
	}

	var out []Invocation
	index := make(map[string]int)
	for rows.Next() {
		var inv Invocation
		var created int64
		if err := rows.Scan(&inv.ID, &inv.Type, &inv.Instruction, &created); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan invocation: %w", err)
		}
		inv.CreatedAt = fromNanos(created)
		inv.Steps = []Record{}
		index[inv.ID] = len(out)
		out = append(out, inv)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate invocations: %w", err)
	}
	rows.Close()

	if len(out) == 0 {
		return []Invocation{}, nil
	}

	ids := make([]any, 0, len(out))
	for _, inv := range out {
		ids = append(ids, inv.ID)
	}
	in := "(" + strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",") + ")"

	err = s.eachRecord(ctx, `SELECT invocation_id, result, created_at FROM steps WHERE invocation_id IN `+in+` ORDER BY id`, ids,
		func(id string, rec Record) {
			inv := &out[index[id]]
			inv.Steps = append(inv.Steps, rec)
		})
	if err != nil {
		return nil, fmt.Errorf("query steps: %w", err)
	}

	err = s.eachRecord(ctx, `SELECT invocation_id, result, created_at FROM outcomes WHERE invocation_id IN `+in+` ORDER BY id`, ids,
		func(id string, rec Record) {
			r := rec
			out[index[id]].Outcome = &r
		})
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}

	return out, nil
}

func (s *SQLStore) eachRecord(ctx context.Context, query string, args []any, fn func(id string, rec Record)) error {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var rec Record
		var created int64
		if err := rows.Scan(&id, &rec.Result, &created); err != nil {
			return err
		}
		rec.CreatedAt = fromNanos(created)
		fn(id, rec)
	}
	return rows.Err()
}

// Ping checks the database connection.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
