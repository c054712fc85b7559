package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Run is one orchestrated scrape as recorded in the ledger
type Run struct {
	ID          string
	Kind        string
	Label       string
	CacheKey    string
	FromCache   bool
	Success     bool
	Message     string
	RetryCount  int
	RecordCount int
	StartedAt   time.Time
	FinishedAt  time.Time
	Transitions []Transition
}

// Transition is one state change of the run's attempt
type Transition struct {
	Try   int
	From  string
	To    string
	Fault string
	At    time.Time
}

// Ledger records finished runs in SQLite
type Ledger struct {
	db *sql.DB
}

// OpenLedger opens or creates the ledger database. ":memory:" is accepted for
// tests.
func OpenLedger(dbPath string) (*Ledger, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// A single connection keeps an in-memory database alive and serializes
	// writers.
	db.SetMaxOpenConns(1)

	l := &Ledger{db: db}
	if err := l.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

// Close closes the database connection
func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		label TEXT,
		cache_key TEXT,
		from_cache BOOLEAN NOT NULL,
		success BOOLEAN NOT NULL,
		message TEXT,
		retry_count INTEGER NOT NULL,
		record_count INTEGER NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS attempt_transitions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		try INTEGER NOT NULL,
		from_state TEXT,
		to_state TEXT NOT NULL,
		fault TEXT,
		at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_transitions_run ON attempt_transitions(run_id);
	`

	_, err := l.db.Exec(schema)
	return err
}

// RecordRun stores r and its transitions. An empty ID is replaced by a new
// UUID, which is returned.
func (l *Ledger) RecordRun(ctx context.Context, r Run) (string, error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin ledger transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, kind, label, cache_key, from_cache, success, message,
			retry_count, record_count, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.Kind, r.Label, r.CacheKey, r.FromCache, r.Success, r.Message,
		r.RetryCount, r.RecordCount, r.StartedAt.UTC(), r.FinishedAt.UTC())
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	for _, t := range r.Transitions {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO attempt_transitions (run_id, try, from_state, to_state, fault, at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, r.ID, t.Try, t.From, t.To, t.Fault, t.At.UTC())
		if err != nil {
			return "", fmt.Errorf("failed to insert transition: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit run: %w", err)
	}
	return r.ID, nil
}

// RecentRuns returns up to limit runs, newest first, without transitions.
func (l *Ledger) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, kind, label, cache_key, from_cache, success, message,
			retry_count, record_count, started_at, finished_at
		FROM runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		err := rows.Scan(&r.ID, &r.Kind, &r.Label, &r.CacheKey, &r.FromCache, &r.Success,
			&r.Message, &r.RetryCount, &r.RecordCount, &r.StartedAt, &r.FinishedAt)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Transitions returns the recorded transitions of one run in order.
func (l *Ledger) Transitions(ctx context.Context, runID string) ([]Transition, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT try, from_state, to_state, fault, at
		FROM attempt_transitions
		WHERE run_id = ?
		ORDER BY id
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transition
	for rows.Next() {
		var t Transition
		if err := rows.Scan(&t.Try, &t.From, &t.To, &t.Fault, &t.At); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
