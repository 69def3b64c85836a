/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package jira

import (
    "errors"
    "fmt"
)

// ErrAuthentication means the credentials were rejected (HTTP 401). It is
// never retried and is expected to abort the run.
var ErrAuthentication = errors.New("jira: authentication failed")

// UnavailableError covers permission and not-found failures (403/404) on a
// resource. Callers skip the resource and continue.
type UnavailableError struct {
    Status int
    Path   string
}

func (e *UnavailableError) Error() string {
    return fmt.Sprintf("jira: resource unavailable (status=%d path=%s)", e.Status, e.Path)
}

// IsUnavailable reports whether err is a permission/not-found failure.
func IsUnavailable(err error) bool {
    var ue *UnavailableError
    return errors.As(err, &ue)
}

// RateLimitError is returned after the 429 retry budget is exhausted.
type RateLimitError struct {
    Attempts int
}

func (e *RateLimitError) Error() string {
    return fmt.Sprintf("jira: rate limit exceeded after %d attempts", e.Attempts)
}

// ServerError is returned after the 5xx retry budget is exhausted.
type ServerError struct {
    Status   int
    Attempts int
}

func (e *ServerError) Error() string {
    return fmt.Sprintf("jira: server unavailable (status=%d) after %d attempts", e.Status, e.Attempts)
}

// RequestError is a non-retryable rejection (remaining 4xx). Body carries
// the server-provided error text.
type RequestError struct {
    Status int
    Body   string
}

func (e *RequestError) Error() string {
    return fmt.Sprintf("jira: request rejected (status=%d): %s", e.Status, e.Body)
}
