/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package main

import (
    "context"
    "fmt"
    "os"
    "os/signal"
    "syscall"

    "github.com/example/issuelens/internal/config"
    ihttp "github.com/example/issuelens/internal/http"
    "github.com/example/issuelens/internal/jira"
    "github.com/example/issuelens/internal/jobs"
    "github.com/example/issuelens/internal/logger"
    "github.com/example/issuelens/internal/repo"
    "github.com/example/issuelens/internal/service"
    "github.com/rs/zerolog"
    "github.com/spf13/cobra"
)

func main() {
    if err := newRootCmd().Execute(); err != nil {
        os.Exit(1)
    }
}

func newRootCmd() *cobra.Command {
    root := &cobra.Command{
        Use:           "issuelens",
        Short:         "Extract issue-tracker data and derive quality/flow metrics",
        SilenceUsage:  true,
        SilenceErrors: false,
    }
    root.AddCommand(newExtractCmd(), newServeCmd(), newCheckCmd(), newProjectsCmd())
    return root
}

// setup loads and validates configuration and wires the tracker client and
// the optional run ledger.
func setup(ctx context.Context) (config.Config, zerolog.Logger, *service.Service, *repo.Store, error) {
    cfg := config.Load()
    log := logger.New(cfg)
    if err := cfg.Validate(); err != nil {
        return cfg, log, nil, nil, err
    }
    var store *repo.Store
    if cfg.DBDSN != "" {
        s, err := repo.Open(ctx, cfg.DBDSN, log)
        if err != nil {
            return cfg, log, nil, nil, fmt.Errorf("open run ledger: %w", err)
        }
        if err := s.EnsureSchema(ctx); err != nil {
            s.Close()
            return cfg, log, nil, nil, fmt.Errorf("run ledger schema: %w", err)
        }
        store = s
    }
    client := jira.NewClient(cfg, log)
    var runStore service.RunStore
    if store != nil { runStore = store }
    svc := service.New(cfg, log, service.NewJiraTracker(client), runStore)
    return cfg, log, svc, store, nil
}

// signalContext cancels on SIGINT/SIGTERM so a run stops between issues.
func signalContext() (context.Context, context.CancelFunc) {
    return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newExtractCmd() *cobra.Command {
    return &cobra.Command{
        Use:   "extract",
        Short: "Run one extraction and write the CSV outputs",
        RunE: func(cmd *cobra.Command, args []string) error {
            ctx, cancel := signalContext()
            defer cancel()
            _, log, svc, store, err := setup(ctx)
            if err != nil { return err }
            if store != nil { defer store.Close() }
            report, err := svc.Run(ctx)
            if err != nil {
                log.Error().Err(err).Msg("extraction failed")
                return err
            }
            fmt.Fprintf(cmd.OutOrStdout(), "run %s: %d issues exported, %d projects skipped\n",
                report.RunID, report.IssuesExported, len(report.ProjectsSkipped))
            return nil
        },
    }
}

func newServeCmd() *cobra.Command {
    return &cobra.Command{
        Use:   "serve",
        Short: "Run the admin HTTP server and the extraction schedule",
        RunE: func(cmd *cobra.Command, args []string) error {
            ctx, cancel := signalContext()
            defer cancel()
            cfg, log, svc, store, err := setup(ctx)
            if err != nil { return err }
            if store != nil { defer store.Close() }

            cr := jobs.NewCron(cfg, log, svc, store)
            cr.Start()
            defer cr.Stop()

            router := ihttp.NewRouter(cfg, log, svc)
            errCh := make(chan error, 1)
            go func() { errCh <- router.Run(cfg.HTTPAddr) }()
            log.Info().Str("addr", cfg.HTTPAddr).Str("cron", cfg.ExtractCron).Msg("serving")

            select {
            case <-ctx.Done():
                log.Info().Msg("shutting down...")
                return nil
            case err := <-errCh:
                return err
            }
        },
    }
}

func newCheckCmd() *cobra.Command {
    return &cobra.Command{
        Use:   "check",
        Short: "Probe tracker connectivity and credentials",
        RunE: func(cmd *cobra.Command, args []string) error {
            ctx, cancel := signalContext()
            defer cancel()
            _, _, svc, store, err := setup(ctx)
            if err != nil { return err }
            if store != nil { defer store.Close() }
            if !svc.TestConnection(ctx) {
                return fmt.Errorf("connection test failed")
            }
            fmt.Fprintln(cmd.OutOrStdout(), "connection ok")
            return nil
        },
    }
}

func newProjectsCmd() *cobra.Command {
    return &cobra.Command{
        Use:   "projects",
        Short: "List projects visible to the configured identity",
        RunE: func(cmd *cobra.Command, args []string) error {
            ctx, cancel := signalContext()
            defer cancel()
            _, _, svc, store, err := setup(ctx)
            if err != nil { return err }
            if store != nil { defer store.Close() }
            projects, err := svc.ListProjects(ctx)
            if err != nil { return err }
            for _, p := range projects {
                fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", p.Key, p.Name)
            }
            return nil
        },
    }
}
