/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package jira

import (
    "bytes"
    "context"
    "encoding/base64"
    "encoding/json"
    "fmt"
    "io"
    "net/http"
    "net/url"
    "strconv"
    "strings"
    "time"

    "github.com/rs/zerolog"
)

const maxBackoff = 60 * time.Second

// transport performs authenticated requests against the tracker. It issues
// one request at a time: retry/backoff stays per-request and no cross-request
// rate-limit coordination is needed.
type transport struct {
    baseURL    string
    auth       string // full Authorization header value, computed once per run
    http       *http.Client
    log        zerolog.Logger
    maxRetries int
    sleep      func(ctx context.Context, d time.Duration) error
}

// sleepCtx waits for d or until the context ends, whichever comes first, so
// an interrupt is not stuck behind a long backoff.
func sleepCtx(ctx context.Context, d time.Duration) error {
    timer := time.NewTimer(d)
    defer timer.Stop()
    select {
    case <-ctx.Done():
        return ctx.Err()
    case <-timer.C:
        return nil
    }
}

func newTransport(baseURL, email, apiToken, pat string, timeout time.Duration, maxRetries int, log zerolog.Logger) *transport {
    auth := ""
    if pat != "" {
        auth = "Bearer " + pat
    } else if email != "" && apiToken != "" {
        auth = "Basic " + base64.StdEncoding.EncodeToString([]byte(email+":"+apiToken))
    }
    if maxRetries <= 0 { maxRetries = 5 }
    return &transport{
        baseURL:    strings.TrimRight(baseURL, "/"),
        auth:       auth,
        http:       &http.Client{Timeout: timeout},
        log:        log,
        maxRetries: maxRetries,
        sleep:      sleepCtx,
    }
}

func (t *transport) url(path string, q url.Values) string {
    if !strings.HasPrefix(path, "/") { path = "/" + path }
    u := t.baseURL + path
    if len(q) > 0 { u = u + "?" + q.Encode() }
    return u
}

// do sends one request, retrying 429/5xx/network failures with exponential
// backoff (1s,2s,4s,8s,16s capped at 60s; a Retry-After hint wins). 401 is
// fatal immediately, 403/404 are typed unavailable, other 4xx are rejected
// without retry. The Authorization value never reaches logs or error text.
func (t *transport) do(ctx context.Context, method, path string, q url.Values, body any) ([]byte, error) {
    var payload []byte
    if body != nil {
        b, err := json.Marshal(body)
        if err != nil { return nil, fmt.Errorf("jira: encode request: %w", err) }
        payload = b
    }
    u := t.url(path, q)

    var lastErr error
    lastStatus := 0
    attempts := t.maxRetries + 1
    for attempt := 0; attempt < attempts; attempt++ {
        if attempt > 0 {
            delay := backoffDelay(attempt-1, lastErr)
            t.log.Warn().Str("m", method).Str("p", path).Int("attempt", attempt).Dur("delay", delay).Msg("jira retry")
            if err := t.sleep(ctx, delay); err != nil {
                return nil, err
            }
        }
        var r io.Reader
        if payload != nil { r = bytes.NewReader(payload) }
        req, err := http.NewRequestWithContext(ctx, method, u, r)
        if err != nil { return nil, err }
        if payload != nil { req.Header.Set("Content-Type", "application/json") }
        req.Header.Set("Accept", "application/json")
        if t.auth != "" { req.Header.Set("Authorization", t.auth) }

        resp, err := t.http.Do(req)
        if err != nil {
            if ctx.Err() != nil { return nil, ctx.Err() }
            lastErr = err
            lastStatus = 0
            continue
        }
        b, readErr := io.ReadAll(resp.Body)
        resp.Body.Close()

        switch {
        case resp.StatusCode == http.StatusUnauthorized:
            return nil, fmt.Errorf("%w (path=%s)", ErrAuthentication, path)
        case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusNotFound:
            return nil, &UnavailableError{Status: resp.StatusCode, Path: path}
        case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
            lastStatus = resp.StatusCode
            lastErr = retryableStatus{status: resp.StatusCode, retryAfter: parseRetryAfter(resp.Header)}
            continue
        case resp.StatusCode >= 400:
            return nil, &RequestError{Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
        }
        if readErr != nil { return nil, fmt.Errorf("jira: read response: %w", readErr) }
        return b, nil
    }

    if lastStatus == http.StatusTooManyRequests {
        return nil, &RateLimitError{Attempts: attempts}
    }
    if lastStatus >= 500 {
        return nil, &ServerError{Status: lastStatus, Attempts: attempts}
    }
    return nil, fmt.Errorf("jira: request failed after %d attempts: %w", attempts, lastErr)
}

// retryableStatus carries the server's retry hint between attempts.
type retryableStatus struct {
    status     int
    retryAfter time.Duration
}

func (r retryableStatus) Error() string {
    return fmt.Sprintf("jira api status=%d", r.status)
}

// backoffDelay returns the wait before retry number n (0-based). A positive
// Retry-After hint from the previous response overrides the exponential
// schedule; both are capped at maxBackoff.
func backoffDelay(n int, lastErr error) time.Duration {
    if rs, ok := lastErr.(retryableStatus); ok && rs.retryAfter > 0 {
        if rs.retryAfter > maxBackoff { return maxBackoff }
        return rs.retryAfter
    }
    d := time.Second << uint(n)
    if d > maxBackoff { d = maxBackoff }
    return d
}

func parseRetryAfter(h http.Header) time.Duration {
    v := strings.TrimSpace(h.Get("Retry-After"))
    if v == "" { return 0 }
    if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
        return time.Duration(secs) * time.Second
    }
    // HTTP-date form
    if at, err := http.ParseTime(v); err == nil {
        if d := time.Until(at); d > 0 { return d }
    }
    return 0
}
