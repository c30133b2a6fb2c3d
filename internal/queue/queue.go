// Package queue is the durable SQLite-backed job queue: at-least-once
// delivery, per-type claiming, delayed visibility and bounded attempt
// budgets. Workers never mutate jobs directly; they return a result or
// an error and the queue records the terminal state.
package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/postpilot/postpilot/internal/store"
)

// JobState is a job's lifecycle position.
type JobState string

const (
	StateQueued    JobState = "queued"
	StateRunning   JobState = "running"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
)

// Job is one durable unit of queued work.
type Job struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	State       JobState        `json:"state"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	RunAt       time.Time       `json:"run_at"`
	LastError   string          `json:"last_error,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Options control delivery of an enqueued job.
type Options struct {
	// Delay defers visibility; negative values are treated as zero.
	Delay time.Duration
	// MaxAttempts bounds deliveries; zero means one attempt.
	MaxAttempts int
	// DropCompleted removes the job row once it completes instead of
	// retaining it for getJob inspection.
	DropCompleted bool
}

// Queue is the SQLite job broker.
type Queue struct {
	db *sql.DB
}

// Open creates (or opens) the queue database under dataDir.
func Open(dataDir string) (*Queue, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	// _txlock=immediate serializes claim transactions up front instead
	// of surfacing snapshot conflicts between concurrent slots.
	db, err := sql.Open("sqlite3", filepath.Join(dataDir, "queue.db")+"?_journal=WAL&_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("open queue database: %w", err)
	}

	q := &Queue{db: db}
	if err := q.migrate(); err != nil {
		return nil, fmt.Errorf("migrate queue: %w", err)
	}
	return q, nil
}

func (q *Queue) migrate() error {
	_, err := q.db.Exec(`
	CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		payload TEXT,
		state TEXT NOT NULL DEFAULT 'queued',
		attempts INTEGER NOT NULL DEFAULT 0,
		max_attempts INTEGER NOT NULL DEFAULT 1,
		run_at DATETIME NOT NULL,
		drop_completed INTEGER NOT NULL DEFAULT 0,
		last_error TEXT NOT NULL DEFAULT '',
		result TEXT,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_jobs_claim ON jobs(type, state, run_at);`)
	return err
}

// Close releases the database handle.
func (q *Queue) Close() error {
	return q.db.Close()
}

// Enqueue records a new job and returns its handle.
func (q *Queue) Enqueue(ctx context.Context, jobType string, payload any, opts Options) (*Job, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	delay := opts.Delay
	if delay < 0 {
		delay = 0
	}
	maxAttempts := opts.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	now := time.Now().UTC()
	job := &Job{
		ID:          uuid.NewString(),
		Type:        jobType,
		Payload:     encoded,
		State:       StateQueued,
		MaxAttempts: maxAttempts,
		RunAt:       now.Add(delay),
		CreatedAt:   now,
	}

	_, err = q.db.ExecContext(ctx, `
		INSERT INTO jobs (id, type, payload, state, max_attempts, run_at, drop_completed, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.Type, string(encoded), string(job.State),
		job.MaxAttempts, job.RunAt, boolInt(opts.DropCompleted), job.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", jobType, err)
	}
	return job, nil
}

// Claim transactionally takes the oldest due job of a type, moving it
// to running and counting the delivery attempt. Returns nil when no
// job is claimable.
func (q *Queue) Claim(ctx context.Context, jobType string, now time.Time) (*Job, error) {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	job := &Job{}
	var state string
	var payload, result sql.NullString
	err = tx.QueryRowContext(ctx, `
		SELECT id, type, payload, state, attempts, max_attempts, run_at, last_error, result, created_at
		FROM jobs
		WHERE type = ? AND state = ? AND run_at <= ?
		ORDER BY run_at, created_at
		LIMIT 1`,
		jobType, string(StateQueued), now.UTC()).
		Scan(&job.ID, &job.Type, &payload, &state, &job.Attempts, &job.MaxAttempts,
			&job.RunAt, &job.LastError, &result, &job.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim %s: %w", jobType, err)
	}

	job.State = StateRunning
	job.Attempts++
	decodeNullJSON(payload, &job.Payload)
	decodeNullJSON(result, &job.Result)

	_, err = tx.ExecContext(ctx,
		`UPDATE jobs SET state = ?, attempts = ? WHERE id = ?`,
		string(StateRunning), job.Attempts, job.ID)
	if err != nil {
		return nil, fmt.Errorf("mark running: %w", err)
	}
	return job, tx.Commit()
}

// Complete records a successful result and finishes the job, removing
// the row when retention was waived at enqueue time.
func (q *Queue) Complete(ctx context.Context, jobID string, result any) error {
	encoded, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	var drop int
	err = q.db.QueryRowContext(ctx, `SELECT drop_completed FROM jobs WHERE id = ?`, jobID).Scan(&drop)
	if err == sql.ErrNoRows {
		return newJobNotFound(jobID)
	}
	if err != nil {
		return err
	}

	if drop == 1 {
		_, err = q.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, jobID)
		return err
	}

	_, err = q.db.ExecContext(ctx,
		`UPDATE jobs SET state = ?, result = ?, last_error = '' WHERE id = ?`,
		string(StateCompleted), string(encoded), jobID)
	return err
}

// retryBackoff spaces redeliveries of a failing job.
const retryBackoff = 5 * time.Second

// Fail records a delivery failure. The job is requeued with backoff
// while attempts remain, and moved to failed once the budget is spent.
func (q *Queue) Fail(ctx context.Context, jobID string, reason error) error {
	msg := "unknown failure"
	if reason != nil {
		msg = reason.Error()
	}

	var attempts, maxAttempts int
	err := q.db.QueryRowContext(ctx,
		`SELECT attempts, max_attempts FROM jobs WHERE id = ?`, jobID).
		Scan(&attempts, &maxAttempts)
	if err == sql.ErrNoRows {
		return newJobNotFound(jobID)
	}
	if err != nil {
		return err
	}

	if attempts < maxAttempts {
		_, err = q.db.ExecContext(ctx,
			`UPDATE jobs SET state = ?, last_error = ?, run_at = ? WHERE id = ?`,
			string(StateQueued), msg, time.Now().UTC().Add(retryBackoff*time.Duration(attempts)), jobID)
		return err
	}

	_, err = q.db.ExecContext(ctx,
		`UPDATE jobs SET state = ?, last_error = ? WHERE id = ?`,
		string(StateFailed), msg, jobID)
	return err
}

// Get returns a job's current state, result and failure reason.
func (q *Queue) Get(ctx context.Context, jobID string) (*Job, error) {
	job := &Job{}
	var state string
	var payload, result sql.NullString
	err := q.db.QueryRowContext(ctx, `
		SELECT id, type, payload, state, attempts, max_attempts, run_at, last_error, result, created_at
		FROM jobs WHERE id = ?`, jobID).
		Scan(&job.ID, &job.Type, &payload, &state, &job.Attempts, &job.MaxAttempts,
			&job.RunAt, &job.LastError, &result, &job.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, newJobNotFound(jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}

	job.State = JobState(state)
	decodeNullJSON(payload, &job.Payload)
	decodeNullJSON(result, &job.Result)
	return job, nil
}

// Requeue forces a job back to queued, clearing its running state.
// Operator escape hatch for jobs stuck by a crashed worker.
func (q *Queue) Requeue(ctx context.Context, jobID string) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE jobs SET state = ?, run_at = ? WHERE id = ?`,
		string(StateQueued), time.Now().UTC(), jobID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return newJobNotFound(jobID)
	}
	return nil
}

func newJobNotFound(id string) error {
	return fmt.Errorf("job %s: %w", id, store.ErrNotFound)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func decodeNullJSON(src sql.NullString, dst *json.RawMessage) {
	if src.Valid && src.String != "" {
		*dst = json.RawMessage(src.String)
	}
}
