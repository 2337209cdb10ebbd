package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/harunnryd/voskstream/pkg/errorsx"
	"github.com/harunnryd/voskstream/pkg/logging"
)

type Status string

const (
	StatusDone      Status = "done"
	StatusMalformed Status = "malformed"
	StatusFailed    Status = "failed"
)

// Run is one recorded recognition attempt.
type Run struct {
	ID         int64
	RunID      string
	Endpoint   string
	Source     string
	SampleRate int
	Chunks     int
	Status     Status
	Conf       float64
	Text       string
	Final      string
	Error      string
	Duration   time.Duration
	CreatedAt  time.Time
}

type Config struct {
	Path    string
	MaxRuns int
}

// Store keeps run history in SQLite. A Store opened without a path records nothing.
type Store struct {
	db    *sql.DB
	cfg   Config
	log   *slog.Logger
	clock func() time.Time
}

func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	log := logging.NewComponentLogger(logger, "history")
	if cfg.Path == "" {
		return &Store{cfg: cfg, log: log, clock: time.Now}, nil
	}

	dir := filepath.Dir(cfg.Path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errorsx.Wrap(fmt.Errorf("create history dir: %w", err), errorsx.ReasonHistory)
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errorsx.Wrap(fmt.Errorf("open sqlite: %w", err), errorsx.ReasonHistory)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errorsx.Wrap(fmt.Errorf("ping sqlite: %w", err), errorsx.ReasonHistory)
	}

	s := &Store{db: db, cfg: cfg, log: log, clock: time.Now}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, errorsx.Wrap(fmt.Errorf("init history schema: %w", err), errorsx.ReasonHistory)
	}
	if err := s.Prune(ctx); err != nil {
		log.Warn("history_prune_failed", slog.String("error", err.Error()))
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL UNIQUE,
    endpoint TEXT NOT NULL,
    source TEXT,
    sample_rate INTEGER,
    chunks INTEGER,
    status TEXT NOT NULL,
    conf REAL,
    text TEXT,
    final_json TEXT,
    error TEXT,
    duration_ms INTEGER,
    created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// Enabled reports whether runs are persisted.
func (s *Store) Enabled() bool { return s.db != nil }

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record stores a run and trims the table to MaxRuns.
func (s *Store) Record(ctx context.Context, run Run) error {
	if s.db == nil {
		return nil
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = s.clock()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs(run_id, endpoint, source, sample_rate, chunks, status, conf, text, final_json, error, duration_ms, created_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.Endpoint, run.Source, run.SampleRate, run.Chunks, string(run.Status), run.Conf,
		run.Text, run.Final, run.Error, run.Duration.Milliseconds(), run.CreatedAt.UTC().UnixNano())
	if err != nil {
		return errorsx.Wrap(fmt.Errorf("record run %s: %w", run.RunID, err), errorsx.ReasonHistory)
	}
	s.log.Debug("history_run_recorded", slog.String("run_id", run.RunID), slog.String("status", string(run.Status)))
	return s.Prune(ctx)
}

// List returns up to limit runs, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	if s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, endpoint, source, sample_rate, chunks, status, conf, text, final_json, error, duration_ms, created_at
		 FROM runs ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonHistory)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var status string
		var durationMS, created int64
		if err := rows.Scan(&r.ID, &r.RunID, &r.Endpoint, &r.Source, &r.SampleRate, &r.Chunks, &status,
			&r.Conf, &r.Text, &r.Final, &r.Error, &durationMS, &created); err != nil {
			return nil, errorsx.Wrap(err, errorsx.ReasonHistory)
		}
		r.Status = Status(status)
		r.Duration = time.Duration(durationMS) * time.Millisecond
		r.CreatedAt = time.Unix(0, created).UTC()
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Prune keeps the newest MaxRuns rows. MaxRuns <= 0 keeps everything.
func (s *Store) Prune(ctx context.Context) error {
	if s.db == nil || s.cfg.MaxRuns <= 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id IN (
		SELECT id FROM runs ORDER BY created_at DESC, id DESC LIMIT -1 OFFSET ?
	)`, s.cfg.MaxRuns)
	if err != nil {
		return errorsx.Wrap(fmt.Errorf("prune runs: %w", err), errorsx.ReasonHistory)
	}
	return nil
}
