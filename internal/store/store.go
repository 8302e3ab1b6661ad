package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Run statuses.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Run is one simulation attempt.
type Run struct {
	ID            uuid.UUID
	Task          string
	Model         string
	MeshIntervals int
	Status        string
	Objective     float64
	Iterations    int
	Solution      string
	Error         string
	StartedAt     time.Time
	FinishedAt    time.Time
}

// Recorder persists finished runs.
type Recorder interface {
	RecordRun(ctx context.Context, run Run) error
}

// Nop is the Recorder used when no database is configured.
type Nop struct{}

// RecordRun does nothing.
func (Nop) RecordRun(context.Context, Run) error { return nil }

// Store provides a PostgreSQL ledger of simulation runs.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

var _ Recorder = (*Store)(nil)

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

// Connect opens a pool for url and wraps it in a Store. The returned func closes the pool.
func Connect(ctx context.Context, url string, logger *zap.Logger) (*Store, func(), error) {
	if url == "" {
		return nil, nil, errors.New("database url is empty")
	}
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	s, err := New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return s, pool.Close, nil
}

const sqlSchema = `
        CREATE TABLE IF NOT EXISTS simulation_runs (
            id UUID PRIMARY KEY,
            task TEXT NOT NULL,
            model TEXT NOT NULL,
            mesh_intervals INTEGER NOT NULL,
            status TEXT NOT NULL,
            objective DOUBLE PRECISION NOT NULL DEFAULT 0,
            iterations INTEGER NOT NULL DEFAULT 0,
            solution TEXT NOT NULL DEFAULT '',
            error TEXT NOT NULL DEFAULT '',
            started_at TIMESTAMPTZ NOT NULL,
            finished_at TIMESTAMPTZ NOT NULL
        );
        CREATE INDEX IF NOT EXISTS simulation_runs_task_idx ON simulation_runs (task, started_at);
    `

// EnsureSchema creates the ledger table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, sqlSchema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

const sqlUpsertRun = `
        INSERT INTO simulation_runs (id, task, model, mesh_intervals, status, objective, iterations, solution, error, started_at, finished_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
        ON CONFLICT (id) DO UPDATE SET
            status = EXCLUDED.status,
            objective = EXCLUDED.objective,
            iterations = EXCLUDED.iterations,
            solution = EXCLUDED.solution,
            error = EXCLUDED.error,
            finished_at = EXCLUDED.finished_at;
    `

// RecordRun inserts run, or updates it when a run with the same ID exists. A zero ID is
// replaced with a new random one.
func (s *Store) RecordRun(ctx context.Context, run Run) error {
	if run.Task == "" {
		return errors.New("run has no task")
	}
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	// Timestamps are stored in UTC.
	_, err := s.pool.Exec(ctx, sqlUpsertRun,
		run.ID, run.Task, run.Model, run.MeshIntervals, run.Status,
		run.Objective, run.Iterations, run.Solution, run.Error,
		run.StartedAt.UTC(), run.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", run.ID, err)
	}
	s.log.Debug("Run recorded", zap.String("id", run.ID.String()), zap.String("task", run.Task), zap.String("status", run.Status))
	return nil
}

const sqlListRuns = `
        SELECT id, task, model, mesh_intervals, status, objective, iterations, solution, error, started_at, finished_at
        FROM simulation_runs
        WHERE ($1 = '' OR task = $1)
        ORDER BY started_at DESC;
    `

// ListRuns returns the recorded runs for task, newest first. An empty task lists all runs.
func (s *Store) ListRuns(ctx context.Context, task string) ([]Run, error) {
	rows, err := s.pool.Query(ctx, sqlListRuns, task)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(
			&r.ID, &r.Task, &r.Model, &r.MeshIntervals, &r.Status,
			&r.Objective, &r.Iterations, &r.Solution, &r.Error,
			&r.StartedAt, &r.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return runs, nil
}
