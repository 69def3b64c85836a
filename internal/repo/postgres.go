/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package repo

import (
    "context"
    "errors"
    "time"

    "github.com/example/issuelens/internal/domain"
    "github.com/jackc/pgx/v5"
    "github.com/jackc/pgx/v5/pgconn"
    "github.com/jackc/pgx/v5/pgxpool"
    "github.com/rs/zerolog"
)

// pool is the subset of pgxpool.Pool the store uses; tests substitute a mock.
type pool interface {
    Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
    Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
    QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
    Close()
}

// Store persists the extraction-run ledger. The ledger is bookkeeping only;
// issues and comments are never written to the database.
type Store struct {
    pool pool
    log  zerolog.Logger
}

func Open(ctx context.Context, dsn string, log zerolog.Logger) (*Store, error) {
    p, err := pgxpool.New(ctx, dsn)
    if err != nil { return nil, err }
    ctx2, cancel := context.WithTimeout(ctx, 10*time.Second)
    defer cancel()
    if err := p.Ping(ctx2); err != nil {
        p.Close()
        return nil, err
    }
    return &Store{pool: p, log: log}, nil
}

func (s *Store) Close() { s.pool.Close() }

// EnsureSchema creates the ledger table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
    const q = `
        CREATE TABLE IF NOT EXISTS extraction_runs (
            id               UUID PRIMARY KEY,
            projects         TEXT[] NOT NULL,
            since            TIMESTAMPTZ NOT NULL,
            started_at       TIMESTAMPTZ NOT NULL,
            finished_at      TIMESTAMPTZ,
            issues_exported  INT NOT NULL DEFAULT 0,
            projects_skipped INT NOT NULL DEFAULT 0,
            ok               BOOLEAN NOT NULL DEFAULT FALSE,
            error            TEXT NOT NULL DEFAULT ''
        )`
    _, err := s.pool.Exec(ctx, q)
    return err
}

func (s *Store) StartRun(ctx context.Context, run domain.ExtractionRun) error {
    const q = `
        INSERT INTO extraction_runs(id, projects, since, started_at)
        VALUES($1, $2, $3, $4)`
    _, err := s.pool.Exec(ctx, q, run.ID, run.Projects, run.Since, run.StartedAt)
    return err
}

func (s *Store) FinishRun(ctx context.Context, run domain.ExtractionRun) error {
    const q = `
        UPDATE extraction_runs
        SET finished_at=$2, issues_exported=$3, projects_skipped=$4, ok=$5, error=$6
        WHERE id=$1`
    _, err := s.pool.Exec(ctx, q, run.ID, run.FinishedAt, run.IssuesExported, run.ProjectsSkipped, run.OK, run.Error)
    return err
}

func (s *Store) LastRun(ctx context.Context) (*domain.ExtractionRun, error) {
    const q = `
        SELECT id, projects, since, started_at, finished_at,
               issues_exported, projects_skipped, ok, error
        FROM extraction_runs
        ORDER BY started_at DESC
        LIMIT 1`
    var run domain.ExtractionRun
    err := s.pool.QueryRow(ctx, q).Scan(
        &run.ID, &run.Projects, &run.Since, &run.StartedAt, &run.FinishedAt,
        &run.IssuesExported, &run.ProjectsSkipped, &run.OK, &run.Error,
    )
    if errors.Is(err, pgx.ErrNoRows) { return nil, nil }
    if err != nil { return nil, err }
    return &run, nil
}

func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (bool, error) {
    var ok bool
    err := s.pool.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&ok)
    return ok, err
}

func (s *Store) AdvisoryUnlock(ctx context.Context, key int64) error {
    var ok bool
    err := s.pool.QueryRow(ctx, "SELECT pg_advisory_unlock($1)", key).Scan(&ok)
    if !ok && err == nil { return errors.New("advisory unlock returned false") }
    return err
}
