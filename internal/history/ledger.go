// Package history records scan runs and the slots each run observed in
// Postgres.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// Run is one row of scan_runs.
type Run struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
	Status     string    `json:"status"`
	Categories []string  `json:"categories"`
	Providers  int       `json:"providers"`
	Failed     int       `json:"failed"`
	SlotCount  int       `json:"slot_count"`
	MD5        string    `json:"md5,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// RunLedger persists run bookkeeping through database/sql.
type RunLedger struct {
	db *sql.DB
}

func NewRunLedger(db *sql.DB) *RunLedger {
	return &RunLedger{db: db}
}

// Start inserts the run in its initial state.
func (l *RunLedger) Start(ctx context.Context, run Run) error {
	if l == nil || l.db == nil {
		return nil
	}
	query := `
		INSERT INTO scan_runs (id, started_at, status, categories)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := l.db.ExecContext(ctx, query, run.ID, run.StartedAt, run.Status, pq.Array(run.Categories)); err != nil {
		return fmt.Errorf("history: insert scan run: %w", err)
	}
	return nil
}

// Finish stores the final counters and status.
func (l *RunLedger) Finish(ctx context.Context, run Run) error {
	if l == nil || l.db == nil {
		return nil
	}
	query := `
		UPDATE scan_runs
		SET finished_at = $2, status = $3, providers = $4, failed = $5,
		    slot_count = $6, md5 = NULLIF($7, ''), error = NULLIF($8, '')
		WHERE id = $1
	`
	res, err := l.db.ExecContext(ctx, query,
		run.ID, run.FinishedAt, run.Status, run.Providers, run.Failed,
		run.SlotCount, run.MD5, run.Error,
	)
	if err != nil {
		return fmt.Errorf("history: update scan run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("history: scan run %s not found", run.ID)
	}
	return nil
}

// Recent returns the latest runs, newest first.
func (l *RunLedger) Recent(ctx context.Context, limit int) ([]Run, error) {
	if l == nil || l.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT id, started_at, finished_at, status, categories, providers, failed,
		       slot_count, COALESCE(md5, ''), COALESCE(error, '')
		FROM scan_runs
		ORDER BY started_at DESC
		LIMIT $1
	`
	rows, err := l.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("history: query scan runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r        Run
			finished sql.NullTime
		)
		if err := rows.Scan(&r.ID, &r.StartedAt, &finished, &r.Status, pq.Array(&r.Categories),
			&r.Providers, &r.Failed, &r.SlotCount, &r.MD5, &r.Error); err != nil {
			return nil, fmt.Errorf("history: scan run row: %w", err)
		}
		if finished.Valid {
			r.FinishedAt = finished.Time
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
