/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package service

import (
    "context"
    "errors"
    "fmt"
    "io"
    "os"
    "path/filepath"
    "sync"
    "time"

    "github.com/example/issuelens/internal/config"
    "github.com/example/issuelens/internal/domain"
    "github.com/example/issuelens/internal/export"
    "github.com/example/issuelens/internal/jira"
    "github.com/example/issuelens/internal/metrics"
    "github.com/google/uuid"
    "github.com/rs/zerolog"
)

// IssueStream is a lazy, finite sequence of issues. Next returns false when
// the stream is exhausted.
type IssueStream interface {
    Next() (domain.Issue, bool, error)
}

// Tracker is the narrow client surface the pipeline consumes.
type Tracker interface {
    TestConnection(ctx context.Context) bool
    ListProjects(ctx context.Context) ([]domain.Project, error)
    SearchIssues(ctx context.Context, projectKey string, since time.Time) IssueStream
    Comments(ctx context.Context, issueKey string) ([]domain.Comment, error)
    Changelog(ctx context.Context, issueKey string) ([]domain.ChangeEvent, error)
}

// RunStore records extraction runs. Optional: a nil store disables the
// ledger without touching the pipeline.
type RunStore interface {
    StartRun(ctx context.Context, run domain.ExtractionRun) error
    FinishRun(ctx context.Context, run domain.ExtractionRun) error
    LastRun(ctx context.Context) (*domain.ExtractionRun, error)
}

type jiraTracker struct {
    c *jira.Client
}

func (t jiraTracker) TestConnection(ctx context.Context) bool { return t.c.TestConnection(ctx) }
func (t jiraTracker) ListProjects(ctx context.Context) ([]domain.Project, error) {
    return t.c.ListProjects(ctx)
}
func (t jiraTracker) SearchIssues(ctx context.Context, projectKey string, since time.Time) IssueStream {
    return t.c.SearchIssues(ctx, projectKey, since)
}
func (t jiraTracker) Comments(ctx context.Context, issueKey string) ([]domain.Comment, error) {
    return t.c.Comments(ctx, issueKey)
}
func (t jiraTracker) Changelog(ctx context.Context, issueKey string) ([]domain.ChangeEvent, error) {
    return t.c.Changelog(ctx, issueKey)
}

// NewJiraTracker adapts the concrete client to the pipeline's Tracker.
func NewJiraTracker(c *jira.Client) Tracker { return jiraTracker{c: c} }

// RunReport summarizes one extraction run. Skipped projects make the run a
// partial success, not a failure.
type RunReport struct {
    RunID           string
    Since           time.Time
    IssuesExported  int
    ProjectsSkipped []string
    StartedAt       time.Time
    FinishedAt      time.Time
}

// ErrRunInProgress is returned when an extraction is already executing in
// this process. Runs write fixed output paths, so they never overlap.
var ErrRunInProgress = errors.New("extraction already in progress")

type Service struct {
    cfg     config.Config
    log     zerolog.Logger
    tracker Tracker
    store   RunStore
    mu      sync.Mutex
}

func New(cfg config.Config, log zerolog.Logger, tracker Tracker, store RunStore) *Service {
    return &Service{cfg: cfg, log: log, tracker: tracker, store: store}
}

func (s *Service) TestConnection(ctx context.Context) bool {
    return s.tracker.TestConnection(ctx)
}

func (s *Service) ListProjects(ctx context.Context) ([]domain.Project, error) {
    return s.tracker.ListProjects(ctx)
}

func (s *Service) LastRun(ctx context.Context) (*domain.ExtractionRun, error) {
    if s.store == nil { return nil, nil }
    return s.store.LastRun(ctx)
}

// Run executes one extraction: stream issues per project, compute metrics,
// write each extended row immediately, fold the aggregates, then write the
// three summary files. One project's permission failure is isolated; an
// authentication failure or an exhausted retry budget ends the run. At most
// one run executes at a time; a concurrent call gets ErrRunInProgress.
func (s *Service) Run(ctx context.Context) (*RunReport, error) {
    if !s.mu.TryLock() {
        return nil, ErrRunInProgress
    }
    defer s.mu.Unlock()

    since := time.Now().UTC().AddDate(0, 0, -s.cfg.SinceDays)
    report := &RunReport{
        RunID:     uuid.NewString(),
        Since:     since,
        StartedAt: time.Now().UTC(),
    }
    run := domain.ExtractionRun{
        ID:        report.RunID,
        Projects:  s.cfg.Projects,
        Since:     since,
        StartedAt: report.StartedAt,
    }
    if s.store != nil {
        if err := s.store.StartRun(ctx, run); err != nil {
            s.log.Error().Err(err).Msg("run ledger: start failed")
        }
    }

    runErr := s.extract(ctx, since, report)

    report.FinishedAt = time.Now().UTC()
    if s.store != nil {
        run.FinishedAt = &report.FinishedAt
        run.IssuesExported = report.IssuesExported
        run.ProjectsSkipped = len(report.ProjectsSkipped)
        run.OK = runErr == nil
        if runErr != nil { run.Error = runErr.Error() }
        if err := s.store.FinishRun(context.WithoutCancel(ctx), run); err != nil {
            s.log.Error().Err(err).Msg("run ledger: finish failed")
        }
    }
    if runErr != nil { return report, runErr }
    s.log.Info().
        Str("run_id", report.RunID).
        Int("issues", report.IssuesExported).
        Strs("skipped_projects", report.ProjectsSkipped).
        Msg("extraction finished")
    return report, nil
}

func (s *Service) extract(ctx context.Context, since time.Time, report *RunReport) error {
    if err := os.MkdirAll(s.cfg.OutputDir, 0o755); err != nil {
        return fmt.Errorf("create output dir: %w", err)
    }
    issuesFile, err := os.Create(filepath.Join(s.cfg.OutputDir, "issues.csv"))
    if err != nil { return fmt.Errorf("create issues file: %w", err) }
    defer issuesFile.Close()
    writer, err := export.NewIssueWriter(issuesFile)
    if err != nil { return fmt.Errorf("write issues header: %w", err) }

    calc := metrics.NewCalculator(s.cfg.DoneStatuses, s.log)
    agg := metrics.NewAggregator()

    for _, project := range s.cfg.Projects {
        if err := s.extractProject(ctx, project, since, calc, agg, writer, report); err != nil {
            if jira.IsUnavailable(err) {
                s.log.Warn().Str("project", project).Msg("project unavailable, skipping")
                report.ProjectsSkipped = append(report.ProjectsSkipped, project)
                continue
            }
            return err
        }
    }

    projects, people, types := agg.Finalize()
    if err := writeSummary(filepath.Join(s.cfg.OutputDir, "projects.csv"), projects, export.WriteProjectSummaries); err != nil {
        return err
    }
    if err := writeSummary(filepath.Join(s.cfg.OutputDir, "assignees.csv"), people, export.WritePersonSummaries); err != nil {
        return err
    }
    if err := writeSummary(filepath.Join(s.cfg.OutputDir, "issue_types.csv"), types, export.WriteTypeSummaries); err != nil {
        return err
    }
    return nil
}

func (s *Service) extractProject(ctx context.Context, project string, since time.Time, calc *metrics.Calculator, agg *metrics.Aggregator, writer *export.IssueWriter, report *RunReport) error {
    it := s.tracker.SearchIssues(ctx, project, since)
    for {
        // Interrupts take effect between issues; each exported row is
        // already durable, so nothing needs rolling back.
        if err := ctx.Err(); err != nil { return err }
        issue, ok, err := it.Next()
        if err != nil { return err }
        if !ok { return nil }

        comments, err := s.tracker.Comments(ctx, issue.Key)
        if err != nil { return err }
        var history []domain.ChangeEvent
        if s.cfg.IncludeChangelog {
            history, err = s.tracker.Changelog(ctx, issue.Key)
            if err != nil { return err }
        }

        m := calc.Compute(issue, comments, history)
        if err := writer.Write(issue, m); err != nil {
            return fmt.Errorf("write issue row: %w", err)
        }
        agg.Add(issue, m)
        report.IssuesExported++
    }
}

func writeSummary[T any](path string, rows []T, write func(w io.Writer, rows []T) error) error {
    f, err := os.Create(path)
    if err != nil { return fmt.Errorf("create summary file: %w", err) }
    defer f.Close()
    if err := write(f, rows); err != nil {
        return fmt.Errorf("write %s: %w", filepath.Base(path), err)
    }
    return nil
}
