// Package report persists probe run outcomes to SQLite so latency and
// similarity trends survive individual test processes. Recording is
// best-effort: a probe never fails because its report row did not land.
package report

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/streamprobe/dbopen"
	"github.com/hazyhaar/streamprobe/idgen"
)

const schema = `
CREATE TABLE IF NOT EXISTS probe_runs (
    run_id      TEXT PRIMARY KEY,
    page_url    TEXT NOT NULL,
    prompt      TEXT NOT NULL DEFAULT '',
    response    TEXT NOT NULL DEFAULT '',
    ttft_ms     INTEGER,
    total_ms    INTEGER,
    token_count INTEGER NOT NULL DEFAULT 0,
    score       REAL,
    min_score   REAL,
    passed      INTEGER NOT NULL DEFAULT 0,
    created_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_probe_runs_created ON probe_runs(created_at);
`

// Run is one recorded probe outcome. Duration and score fields are
// pointers so an unobserved stream or a skipped similarity check stores
// NULL rather than a misleading zero.
type Run struct {
	RunID      string    `json:"run_id"`
	PageURL    string    `json:"page_url"`
	Prompt     string    `json:"prompt"`
	Response   string    `json:"response"`
	TTFTMillis *int64    `json:"ttft_ms,omitempty"`
	TotalMs    *int64    `json:"total_ms,omitempty"`
	TokenCount int       `json:"token_count"`
	Score      *float64  `json:"score,omitempty"`
	MinScore   *float64  `json:"min_score,omitempty"`
	Passed     bool      `json:"passed"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store writes and reads probe runs.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	newID  idgen.Generator
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithIDGenerator overrides run id generation, for deterministic tests.
func WithIDGenerator(g idgen.Generator) Option {
	return func(s *Store) { s.newID = g }
}

// Open opens (creating if needed) the report database at path.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll(), dbopen.WithSchema(schema))
	if err != nil {
		return nil, fmt.Errorf("report: open: %w", err)
	}
	return newStore(db, opts...), nil
}

// NewWithDB wraps an already opened database, applying the schema.
// Used by tests running against in-memory SQLite.
func NewWithDB(db *sql.DB, opts ...Option) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("report: apply schema: %w", err)
	}
	return newStore(db, opts...), nil
}

func newStore(db *sql.DB, opts ...Option) *Store {
	s := &Store{
		db:     db,
		logger: slog.Default(),
		newID:  idgen.Prefixed("run_", idgen.UUIDv7()),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Record inserts a run and returns its assigned id. CreatedAt is set to
// now when zero. Failures are returned so callers can log them, but the
// probe layer treats them as non-fatal.
func (s *Store) Record(ctx context.Context, r Run) (string, error) {
	if r.RunID == "" {
		r.RunID = s.newID()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	_, err := dbopen.Exec(ctx, s.db, `
INSERT INTO probe_runs
    (run_id, page_url, prompt, response, ttft_ms, total_ms, token_count, score, min_score, passed, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.PageURL, r.Prompt, r.Response,
		r.TTFTMillis, r.TotalMs, r.TokenCount,
		r.Score, r.MinScore, boolInt(r.Passed),
		r.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return "", fmt.Errorf("report: record run: %w", err)
	}
	return r.RunID, nil
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT run_id, page_url, prompt, response, ttft_ms, total_ms, token_count, score, min_score, passed, created_at
FROM probe_runs ORDER BY created_at DESC, run_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("report: query recent: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var passed int
		var created string
		if err := rows.Scan(&r.RunID, &r.PageURL, &r.Prompt, &r.Response,
			&r.TTFTMillis, &r.TotalMs, &r.TokenCount,
			&r.Score, &r.MinScore, &passed, &created); err != nil {
			return nil, fmt.Errorf("report: scan run: %w", err)
		}
		r.Passed = passed != 0
		if t, perr := time.Parse(time.RFC3339Nano, created); perr == nil {
			r.CreatedAt = t
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("report: iterate runs: %w", err)
	}
	return out, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
