package http

import (
    "context"
    "net/http"
    "net/http/httptest"
    "testing"

    "github.com/example/issuelens/internal/config"
    "github.com/example/issuelens/internal/domain"
    "github.com/example/issuelens/internal/service"
    "github.com/rs/zerolog"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

type stubService struct {
    runErr error
    block  chan struct{}
    last   *domain.ExtractionRun
}

func (s *stubService) Run(ctx context.Context) (*service.RunReport, error) {
    if s.block != nil {
        <-s.block
    }
    if s.runErr != nil {
        return nil, s.runErr
    }
    return &service.RunReport{}, nil
}

func (s *stubService) LastRun(ctx context.Context) (*domain.ExtractionRun, error) {
    return s.last, nil
}

func newTestRouter(svc Service) http.Handler {
    cfg := config.Config{AppEnv: "test"}
    return NewRouter(cfg, zerolog.Nop(), svc)
}

func TestHealthz(t *testing.T) {
    r := newTestRouter(&stubService{})
    w := httptest.NewRecorder()
    r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
    assert.Equal(t, http.StatusOK, w.Code)
}

func TestRunNow_Queued(t *testing.T) {
    block := make(chan struct{})
    defer close(block)
    r := newTestRouter(&stubService{block: block})

    w := httptest.NewRecorder()
    r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin/run", nil))
    assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestRunNow_ConflictWhileRunning(t *testing.T) {
    r := newTestRouter(&stubService{runErr: service.ErrRunInProgress})

    w := httptest.NewRecorder()
    r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin/run", nil))
    assert.Equal(t, http.StatusConflict, w.Code)
    assert.Contains(t, w.Body.String(), "already in progress")
}

func TestLastRun(t *testing.T) {
    r := newTestRouter(&stubService{})
    w := httptest.NewRecorder()
    r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/last-run", nil))
    require.Equal(t, http.StatusOK, w.Code)
    assert.Contains(t, w.Body.String(), "null")

    r = newTestRouter(&stubService{last: &domain.ExtractionRun{ID: "run-1", OK: true}})
    w = httptest.NewRecorder()
    r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/last-run", nil))
    require.Equal(t, http.StatusOK, w.Code)
    assert.Contains(t, w.Body.String(), "run-1")
}
