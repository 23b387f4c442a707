package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/faisalraja/testhttp/packages/core/runner"

	// SQLite driver
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	started_at  TIMESTAMP NOT NULL,
	duration_ms INTEGER NOT NULL,
	files       TEXT NOT NULL,
	success     INTEGER NOT NULL,
	failures    INTEGER NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	p50_us      INTEGER NOT NULL DEFAULT 0,
	p95_us      INTEGER NOT NULL DEFAULT 0,
	p99_us      INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS definitions (
	run_id      INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	position    INTEGER NOT NULL,
	name        TEXT NOT NULL,
	method      TEXT NOT NULL,
	url         TEXT NOT NULL,
	source      TEXT NOT NULL,
	result      TEXT NOT NULL,
	skipped     INTEGER NOT NULL,
	status_code INTEGER NOT NULL,
	duration_us INTEGER NOT NULL,
	failed      INTEGER NOT NULL,
	PRIMARY KEY (run_id, position)
);`

// Run is a recorded invocation.
type Run struct {
	ID          int64
	StartedAt   time.Time
	Duration    time.Duration
	Files       []string
	Success     int
	Failures    int
	Error       string
	P50         time.Duration
	P95         time.Duration
	P99         time.Duration
	Definitions []Definition
}

// Passed reports whether the run ended without failures or a fatal error.
func (r *Run) Passed() bool {
	return r.Failures == 0 && r.Error == ""
}

// Definition is one recorded definition of a run.
type Definition struct {
	Name       string
	Method     string
	URL        string
	Source     string
	Result     string
	Skipped    bool
	StatusCode int
	Duration   time.Duration
	// Failed counts failed assertions.
	Failed int
}

// Store is a run history database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the history database. path may carry a "sqlite:"
// or "sqlite://" prefix.
func Open(path string) (*Store, error) {
	dsn := strings.TrimSpace(path)
	dsn = strings.TrimPrefix(dsn, "sqlite://")
	dsn = strings.TrimPrefix(dsn, "sqlite:")
	if dsn == "" {
		return nil, fmt.Errorf("history database path is empty")
	}

	db, err := sql.Open("sqlite3", dsn+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate history database: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Record stores a finished run and returns its id. runErr is the fatal
// error that ended the run, if any.
func (s *Store) Record(ctx context.Context, report *runner.Report, runErr error) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	errText := ""
	if runErr != nil {
		errText = runErr.Error()
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO runs (started_at, duration_ms, files, success, failures, error, p50_us, p95_us, p99_us)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.StartedAt.UTC(), report.Duration.Milliseconds(), strings.Join(report.Files, "\n"),
		report.Success, report.Failures, errText,
		report.Latency.P50.Microseconds(), report.Latency.P95.Microseconds(), report.Latency.P99.Microseconds(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for i, d := range report.Definitions {
		failed := 0
		for _, a := range d.Assertions {
			if !a.Passed {
				failed++
			}
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO definitions (run_id, position, name, method, url, source, result, skipped, status_code, duration_us, failed)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, i, d.Name, d.Method, d.URL, d.Source, d.Result, d.Skipped, d.StatusCode, d.Duration.Microseconds(), failed,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert definition %q: %w", d.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit run: %w", err)
	}
	return id, nil
}

// List returns the most recent runs, newest first, without definitions.
func (s *Store) List(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, duration_ms, files, success, failures, error, p50_us, p95_us, p99_us
		 FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return runs, nil
}

// Get returns a run with its definitions. A missing id yields an error
// wrapping sql.ErrNoRows.
func (s *Store) Get(ctx context.Context, id int64) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, started_at, duration_ms, files, success, failures, error, p50_us, p95_us, p99_us
		 FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT name, method, url, source, result, skipped, status_code, duration_us, failed
		 FROM definitions WHERE run_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var d Definition
		var durationUs int64
		if err := rows.Scan(&d.Name, &d.Method, &d.URL, &d.Source, &d.Result, &d.Skipped, &d.StatusCode, &durationUs, &d.Failed); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		d.Duration = time.Duration(durationUs) * time.Microsecond
		run.Definitions = append(run.Definitions, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return run, nil
}

// Prune deletes all but the newest keep runs and returns how many were
// removed.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM runs WHERE id NOT IN (SELECT id FROM runs ORDER BY id DESC LIMIT ?)`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var run Run
	var durationMs, p50, p95, p99 int64
	var files string
	err := row.Scan(&run.ID, &run.StartedAt, &durationMs, &files, &run.Success, &run.Failures,
		&run.Error, &p50, &p95, &p99)
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}
	run.Duration = time.Duration(durationMs) * time.Millisecond
	if files != "" {
		run.Files = strings.Split(files, "\n")
	}
	run.P50 = time.Duration(p50) * time.Microsecond
	run.P95 = time.Duration(p95) * time.Microsecond
	run.P99 = time.Duration(p99) * time.Microsecond
	return &run, nil
}
