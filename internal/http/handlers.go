/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package http

import (
    "context"
    "errors"
    "net/http"
    "time"

    "github.com/example/issuelens/internal/domain"
    "github.com/example/issuelens/internal/service"
    "github.com/gin-gonic/gin"
    "github.com/rs/zerolog"
)

type Service interface {
    Run(ctx context.Context) (*service.RunReport, error)
    LastRun(ctx context.Context) (*domain.ExtractionRun, error)
}

type Handlers struct {
    log zerolog.Logger
    svc Service
}

func NewHandlers(log zerolog.Logger, svc Service) *Handlers {
    return &Handlers{log: log, svc: svc}
}

func (h *Handlers) Healthz(c *gin.Context) {
    c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handlers) LastRun(c *gin.Context) {
    lr, err := h.svc.LastRun(c.Request.Context())
    if err != nil {
        c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
        return
    }
    if lr == nil {
        c.JSON(http.StatusOK, gin.H{"last_run": nil})
        return
    }
    c.JSON(http.StatusOK, lr)
}

func (h *Handlers) RunNow(c *gin.Context) {
    // Detach from the request context so closing the connection does not
    // cancel the extraction mid-stream. The service runs single-flight, so
    // a second trigger cannot write the same files concurrently.
    started := make(chan error, 1)
    go func() {
        _, err := h.svc.Run(context.Background())
        started <- err
        if err != nil && !errors.Is(err, service.ErrRunInProgress) {
            h.log.Error().Err(err).Msg("on-demand extraction failed")
        }
    }()
    select {
    case err := <-started:
        if errors.Is(err, service.ErrRunInProgress) {
            c.JSON(http.StatusConflict, gin.H{"error": "extraction already in progress"})
            return
        }
    case <-time.After(100 * time.Millisecond):
        // Still running; that is the normal case.
    }
    c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
}
