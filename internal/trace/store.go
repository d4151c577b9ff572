// Package trace records binding events in a SQLite database so that
// failed and suggested bindings can be inspected after the fact.
package trace

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/funvibe/dynbind/pkg/binder"
)

//go:embed schema.sql
var schema string

// Record is a stored binding event.
type Record struct {
	ID uuid.UUID
	binder.Event
}

// Store is a binder.Observer writing events to SQLite. It is safe for
// concurrent use.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ binder.Observer = (*Store)(nil)

// Open opens or creates the trace database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating trace directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening trace database %s: %w", path, err)
	}
	// one writer at a time
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating trace schema: %w", err)
	}
	return &Store{db: db}, nil
}

// WithLogger sets the logger. If not set, slog.Default() is used.
func (s *Store) WithLogger(logger *slog.Logger) *Store {
	s.logger = logger
	return s
}

func (s *Store) log() *slog.Logger {
	if s.logger == nil {
		return slog.Default()
	}
	return s.logger
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Observe implements binder.Observer. Write errors are logged, not returned.
func (s *Store) Observe(ev binder.Event) {
	if _, err := s.Record(context.Background(), ev); err != nil {
		s.log().Warn("trace: dropping binding event", slog.Any("error", err))
	}
}

// Record stores ev and returns its id.
func (s *Store) Record(ctx context.Context, ev binder.Event) (uuid.UUID, error) {
	id := uuid.New()
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO bind_events (id, time_ns, site, operation, outcome, error_kind, candidates, interop, duration_ns)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id.String(), ev.Time.UnixNano(), ev.Site, ev.Operation, string(ev.Outcome),
		string(ev.Kind), ev.Candidates, ev.Interop, int64(ev.Duration),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("recording binding event: %w", err)
	}
	return id, nil
}

// Recent returns up to n events, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, time_ns, site, operation, outcome, error_kind, candidates, interop, duration_ns
		 FROM bind_events ORDER BY time_ns DESC, rowid DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("querying binding events: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			r                  Record
			id                 string
			timeNs, durationNs int64
			outcome, errorKind string
		)
		if err := rows.Scan(&id, &timeNs, &r.Site, &r.Operation, &outcome, &errorKind,
			&r.Candidates, &r.Interop, &durationNs); err != nil {
			return nil, fmt.Errorf("reading binding event: %w", err)
		}
		if r.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("reading binding event: bad id %q: %w", id, err)
		}
		r.Time = time.Unix(0, timeNs)
		r.Duration = time.Duration(durationNs)
		r.Outcome = binder.Outcome(outcome)
		r.Kind = binder.ErrorKind(errorKind)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Counts returns the number of stored events per outcome.
func (s *Store) Counts(ctx context.Context) (map[binder.Outcome]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT outcome, COUNT(*) FROM bind_events GROUP BY outcome`)
	if err != nil {
		return nil, fmt.Errorf("counting binding events: %w", err)
	}
	defer rows.Close()

	counts := make(map[binder.Outcome]int)
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("counting binding events: %w", err)
		}
		counts[binder.Outcome(outcome)] = n
	}
	return counts, rows.Err()
}
