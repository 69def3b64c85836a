/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package jobs

import (
    "context"
    "errors"
    "time"

    "github.com/example/issuelens/internal/config"
    "github.com/example/issuelens/internal/repo"
    "github.com/example/issuelens/internal/service"
    "github.com/robfig/cron/v3"
    "github.com/rs/zerolog"
)

type Cron struct {
    cfg   config.Config
    log   zerolog.Logger
    svc   *service.Service
    store *repo.Store
    c     *cron.Cron
}

func NewCron(cfg config.Config, log zerolog.Logger, svc *service.Service, store *repo.Store) *Cron {
    c := cron.New(cron.WithParser(cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)))
    cr := &Cron{cfg: cfg, log: log, svc: svc, store: store, c: c}
    if _, err := c.AddFunc(cfg.ExtractCron, cr.extract); err != nil {
        log.Error().Err(err).Str("spec", cfg.ExtractCron).Msg("cron: bad schedule, job not registered")
    }
    return cr
}

func (cr *Cron) Start() { cr.c.Start() }
func (cr *Cron) Stop()  { cr.c.Stop() }

func (cr *Cron) extract() {
    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Hour)
    defer cancel()

    // With a ledger configured, a Postgres advisory lock keeps concurrent
    // instances from double-extracting.
    const lockKey int64 = 717571
    if cr.store != nil {
        ok, err := cr.store.TryAdvisoryLock(ctx, lockKey)
        if err != nil {
            cr.log.Error().Err(err).Msg("cron: lock error")
            return
        }
        if !ok {
            cr.log.Info().Msg("cron: already running elsewhere")
            return
        }
        defer func() { _ = cr.store.AdvisoryUnlock(context.Background(), lockKey) }()
    }

    cr.log.Info().Msg("cron: scheduled extraction")
    if _, err := cr.svc.Run(ctx); err != nil {
        if errors.Is(err, service.ErrRunInProgress) {
            cr.log.Info().Msg("cron: extraction already running, skipping")
            return
        }
        cr.log.Error().Err(err).Msg("cron: extraction failed")
    }
}
