package repo

import (
    "context"
    "testing"
    "time"

    "github.com/example/issuelens/internal/domain"
    "github.com/jackc/pgx/v5"
    "github.com/pashagolub/pgxmock/v2"
    "github.com/rs/zerolog"
)

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
    t.Helper()
    mock, err := pgxmock.NewPool()
    if err != nil {
        t.Fatalf("pgxmock.NewPool: %v", err)
    }
    t.Cleanup(mock.Close)
    return &Store{pool: mock, log: zerolog.Nop()}, mock
}

func TestEnsureSchema(t *testing.T) {
    store, mock := newMockStore(t)
    mock.ExpectExec("CREATE TABLE IF NOT EXISTS extraction_runs").
        WillReturnResult(pgxmock.NewResult("CREATE", 0))

    if err := store.EnsureSchema(context.Background()); err != nil {
        t.Fatalf("EnsureSchema: %v", err)
    }
    if err := mock.ExpectationsWereMet(); err != nil {
        t.Fatalf("unmet expectations: %v", err)
    }
}

func TestStartRun(t *testing.T) {
    store, mock := newMockStore(t)
    started := time.Date(2025, 11, 20, 6, 0, 0, 0, time.UTC)
    since := started.AddDate(0, 0, -30)
    run := domain.ExtractionRun{
        ID:        "6f1b0c1a-9a7f-4f52-9c0f-0d2f3a4b5c6d",
        Projects:  []string{"ALPHA", "BETA"},
        Since:     since,
        StartedAt: started,
    }

    mock.ExpectExec("INSERT INTO extraction_runs").
        WithArgs(run.ID, run.Projects, run.Since, run.StartedAt).
        WillReturnResult(pgxmock.NewResult("INSERT", 1))

    if err := store.StartRun(context.Background(), run); err != nil {
        t.Fatalf("StartRun: %v", err)
    }
    if err := mock.ExpectationsWereMet(); err != nil {
        t.Fatalf("unmet expectations: %v", err)
    }
}

func TestFinishRun(t *testing.T) {
    store, mock := newMockStore(t)
    finished := time.Date(2025, 11, 20, 6, 4, 0, 0, time.UTC)
    run := domain.ExtractionRun{
        ID:              "6f1b0c1a-9a7f-4f52-9c0f-0d2f3a4b5c6d",
        FinishedAt:      &finished,
        IssuesExported:  230,
        ProjectsSkipped: 1,
        OK:              true,
    }

    mock.ExpectExec("UPDATE extraction_runs").
        WithArgs(run.ID, run.FinishedAt, run.IssuesExported, run.ProjectsSkipped, run.OK, run.Error).
        WillReturnResult(pgxmock.NewResult("UPDATE", 1))

    if err := store.FinishRun(context.Background(), run); err != nil {
        t.Fatalf("FinishRun: %v", err)
    }
    if err := mock.ExpectationsWereMet(); err != nil {
        t.Fatalf("unmet expectations: %v", err)
    }
}

func TestLastRun(t *testing.T) {
    store, mock := newMockStore(t)
    started := time.Date(2025, 11, 20, 6, 0, 0, 0, time.UTC)
    finished := started.Add(4 * time.Minute)

    rows := pgxmock.NewRows([]string{
        "id", "projects", "since", "started_at", "finished_at",
        "issues_exported", "projects_skipped", "ok", "error",
    }).AddRow(
        "6f1b0c1a-9a7f-4f52-9c0f-0d2f3a4b5c6d", []string{"ALPHA"},
        started.AddDate(0, 0, -30), started, &finished, 42, 0, true, "",
    )
    mock.ExpectQuery("SELECT id, projects, since, started_at, finished_at").
        WillReturnRows(rows)

    run, err := store.LastRun(context.Background())
    if err != nil {
        t.Fatalf("LastRun: %v", err)
    }
    if run == nil {
        t.Fatal("expected a run, got nil")
    }
    if run.IssuesExported != 42 {
        t.Errorf("issues_exported = %d, want 42", run.IssuesExported)
    }
    if !run.OK {
        t.Error("expected ok run")
    }
    if run.FinishedAt == nil || !run.FinishedAt.Equal(finished) {
        t.Errorf("finished_at = %v, want %v", run.FinishedAt, finished)
    }
}

func TestLastRun_EmptyLedger(t *testing.T) {
    store, mock := newMockStore(t)
    mock.ExpectQuery("SELECT id, projects, since, started_at, finished_at").
        WillReturnError(pgx.ErrNoRows)

    run, err := store.LastRun(context.Background())
    if err != nil {
        t.Fatalf("LastRun on empty ledger: %v", err)
    }
    if run != nil {
        t.Fatalf("expected nil run, got %+v", run)
    }
}

func TestTryAdvisoryLock(t *testing.T) {
    store, mock := newMockStore(t)
    mock.ExpectQuery("SELECT pg_try_advisory_lock").
        WithArgs(int64(717571)).
        WillReturnRows(pgxmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(false))

    ok, err := store.TryAdvisoryLock(context.Background(), 717571)
    if err != nil {
        t.Fatalf("TryAdvisoryLock: %v", err)
    }
    if ok {
        t.Error("expected lock to be held elsewhere")
    }
}
