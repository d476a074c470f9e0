package ingest

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/macromap/econsync/internal/db"
)

// Status classifies a completed ingestion run.
type Status string

const (
	StatusSuccess Status = "success" // completed, no record errors
	StatusPartial Status = "partial" // completed, some records failed validation
	StatusFailure Status = "failure" // aborted before producing a result
)

// RunEntry is one immutable row in econ.ingestion_runs.
type RunEntry struct {
	ID           uuid.UUID `json:"id"`
	JobName      string    `json:"job_name"`
	Status       Status    `json:"status"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	Inserted     int       `json:"inserted"`
	Updated      int       `json:"updated"`
	Skipped      int       `json:"skipped"`
	ErrorSummary string    `json:"error_summary,omitempty"`
}

// Ledger provides append and read access to the ingestion run audit log.
// Rows are never updated or deleted; retention is an external concern.
type Ledger struct {
	pool db.Pool
}

// NewLedger creates a Ledger backed by the given connection pool.
func NewLedger(pool db.Pool) *Ledger {
	return &Ledger{pool: pool}
}

// Record appends one run entry. Every engine invocation produces exactly one
// call, success or failure.
func (l *Ledger) Record(ctx context.Context, e RunEntry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	_, err := l.pool.Exec(ctx,
		`INSERT INTO econ.ingestion_runs
		 (id, job_name, status, started_at, finished_at, inserted, updated, skipped, error_summary)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.JobName, string(e.Status), e.StartedAt, e.FinishedAt,
		e.Inserted, e.Updated, e.Skipped, e.ErrorSummary,
	)
	if err != nil {
		return eris.Wrapf(err, "ledger: record run for %s", e.JobName)
	}
	return nil
}

// LastSuccess returns the start time of the most recent run of the job that
// produced a result (success or partial). Returns nil if the job has never
// completed.
func (l *Ledger) LastSuccess(ctx context.Context, jobName string) (*time.Time, error) {
	var t time.Time
	err := l.pool.QueryRow(ctx,
		`SELECT started_at FROM econ.ingestion_runs
		 WHERE job_name = $1 AND status IN ('success', 'partial')
		 ORDER BY started_at DESC LIMIT 1`,
		jobName,
	).Scan(&t)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "ledger: last success for %s", jobName)
	}
	return &t, nil
}

// List returns the most recent run entries, newest first.
func (l *Ledger) List(ctx context.Context, limit int) ([]RunEntry, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT id, job_name, status, started_at, finished_at, inserted, updated, skipped, error_summary
		 FROM econ.ingestion_runs ORDER BY started_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: list runs")
	}
	defer rows.Close()

	var entries []RunEntry
	for rows.Next() {
		var e RunEntry
		var status string
		var summary *string
		if err := rows.Scan(&e.ID, &e.JobName, &status, &e.StartedAt, &e.FinishedAt,
			&e.Inserted, &e.Updated, &e.Skipped, &summary); err != nil {
			return nil, eris.Wrap(err, "ledger: scan run entry")
		}
		e.Status = Status(status)
		if summary != nil {
			e.ErrorSummary = *summary
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// LastUpdated returns, per job name, the finish time of the most recent run
// that produced a result. This backs the "last updated" reporting surface.
func (l *Ledger) LastUpdated(ctx context.Context) (map[string]time.Time, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT job_name, MAX(finished_at) FROM econ.ingestion_runs
		 WHERE status IN ('success', 'partial') GROUP BY job_name`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: last updated")
	}
	defer rows.Close()

	out := make(map[string]time.Time)
	for rows.Next() {
		var job string
		var t time.Time
		if err := rows.Scan(&job, &t); err != nil {
			return nil, eris.Wrap(err, "ledger: scan last updated")
		}
		out[job] = t
	}
	return out, rows.Err()
}

// StatusFor derives a run status from an upsert result. A nil result means
// the run aborted before completing.
func StatusFor(res *Result) Status {
	if res == nil {
		return StatusFailure
	}
	if len(res.Errors) > 0 {
		return StatusPartial
	}
	return StatusSuccess
}

// TruncateErrors caps the stored error summary to the first maxCount
// messages and maxBytes bytes, keeping the ledger compact.
func TruncateErrors(errs []string, maxCount, maxBytes int) string {
	if len(errs) == 0 {
		return ""
	}
	kept := errs
	if maxCount > 0 && len(kept) > maxCount {
		kept = kept[:maxCount]
	}
	s := strings.Join(kept, "; ")
	if maxBytes > 0 && len(s) > maxBytes {
		s = s[:maxBytes]
	}
	return s
}
