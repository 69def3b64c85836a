/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package jira

import (
    "context"
    "encoding/json"
    "fmt"
    "net/http"
    "net/url"
    "strconv"
    "strings"
    "time"

    "github.com/example/issuelens/internal/domain"
)

// pageSize is the remote maximum for search/comment pagination. It is fixed
// on purpose: fewer round trips, and the server clamps larger values anyway.
const pageSize = 100

// issueFieldSet is the field list requested on every search call.
var issueFieldSet = []string{
    "summary", "description", "status", "issuetype", "priority",
    "assignee", "reporter", "project", "created", "updated", "resolutiondate",
}

type namedRef struct {
    Name string `json:"name"`
}

type userRef struct {
    DisplayName string `json:"displayName"`
}

type issueFields struct {
    Summary        string    `json:"summary"`
    Description    any       `json:"description"` // string on v2, ADF tree on v3
    Status         namedRef  `json:"status"`
    IssueType      namedRef  `json:"issuetype"`
    Priority       *namedRef `json:"priority"`
    Assignee       *userRef  `json:"assignee"`
    Reporter       *userRef  `json:"reporter"`
    Project        struct {
        Key string `json:"key"`
    } `json:"project"`
    Created        string `json:"created"`
    Updated        string `json:"updated"`
    ResolutionDate string `json:"resolutiondate"`
}

type issueEnvelope struct {
    Key    string      `json:"key"`
    Fields issueFields `json:"fields"`
}

type searchResponse struct {
    StartAt    int             `json:"startAt"`
    MaxResults int             `json:"maxResults"`
    Total      int             `json:"total"`
    Issues     []issueEnvelope `json:"issues"`
}

type serverInfo struct {
    DeploymentType string `json:"deploymentType"`
    Version        string `json:"version"`
}

// detectAPIVersion probes the server-info endpoint once and maps the
// deployment flavor to a protocol variant: Cloud speaks REST v3 (POST
// search, ADF documents), Server/DC speaks REST v2 (GET search, plain
// strings). The result is cached on the client for the run's lifetime.
func (c *Client) detectAPIVersion(ctx context.Context) (string, error) {
    c.verOnce.Do(func() {
        b, err := c.tr.do(ctx, http.MethodGet, "/rest/api/2/serverInfo", nil, nil)
        if err != nil {
            c.verErr = err
            return
        }
        var info serverInfo
        if err := json.Unmarshal(b, &info); err != nil {
            c.verErr = fmt.Errorf("jira: decode server info: %w", err)
            return
        }
        if strings.EqualFold(info.DeploymentType, "Cloud") {
            c.apiVer = "3"
        } else {
            c.apiVer = "2"
        }
        c.log.Debug().Str("deployment", info.DeploymentType).Str("api_version", c.apiVer).Msg("jira flavor detected")
    })
    return c.apiVer, c.verErr
}

// buildJQL filters one project by key with a lower-bound update timestamp.
// Ordering by creation keeps pagination deterministic between pages.
func buildJQL(projectKey string, since time.Time) string {
    return fmt.Sprintf("project = %q AND updated >= %q ORDER BY created ASC",
        projectKey, since.UTC().Format("2006-01-02 15:04"))
}

// searchPage fetches one page of raw issues for a JQL query.
func (c *Client) searchPage(ctx context.Context, jql string, startAt int) (*searchResponse, error) {
    ver, err := c.detectAPIVersion(ctx)
    if err != nil { return nil, err }
    var b []byte
    if ver == "3" {
        body := map[string]any{
            "jql":        jql,
            "startAt":    startAt,
            "maxResults": pageSize,
            "fields":     issueFieldSet,
        }
        b, err = c.tr.do(ctx, http.MethodPost, "/rest/api/3/search", nil, body)
    } else {
        q := url.Values{}
        q.Set("jql", jql)
        q.Set("startAt", strconv.Itoa(startAt))
        q.Set("maxResults", strconv.Itoa(pageSize))
        q.Set("fields", strings.Join(issueFieldSet, ","))
        b, err = c.tr.do(ctx, http.MethodGet, "/rest/api/2/search", q, nil)
    }
    if err != nil { return nil, err }
    var out searchResponse
    if err := json.Unmarshal(b, &out); err != nil {
        return nil, fmt.Errorf("jira: decode search response: %w", err)
    }
    return &out, nil
}

// IssueIterator yields the issues matching one query lazily, one page at a
// time. It is restartable per run (build a new one) but holds no cursor that
// survives the process.
type IssueIterator struct {
    c       *Client
    ctx     context.Context
    jql     string
    startAt int
    total   int
    started bool
    done    bool
    buf     []domain.Issue
    pos     int
}

// Next returns the next issue. The boolean is false when the sequence is
// exhausted; a non-nil error ends the sequence.
func (it *IssueIterator) Next() (domain.Issue, bool, error) {
    for it.pos >= len(it.buf) {
        if it.done {
            return domain.Issue{}, false, nil
        }
        page, err := it.c.searchPage(it.ctx, it.jql, it.startAt)
        if err != nil {
            it.done = true
            return domain.Issue{}, false, err
        }
        it.started = true
        it.total = page.Total
        it.buf = it.buf[:0]
        it.pos = 0
        for _, raw := range page.Issues {
            it.buf = append(it.buf, toIssue(raw))
        }
        it.startAt += len(page.Issues)
        if len(page.Issues) == 0 || it.startAt >= it.total {
            it.done = true
        }
    }
    issue := it.buf[it.pos]
    it.pos++
    return issue, true, nil
}

func toIssue(raw issueEnvelope) domain.Issue {
    f := raw.Fields
    issue := domain.Issue{
        Key:         raw.Key,
        Summary:     f.Summary,
        Description: NormalizeText(f.Description),
        Status:      f.Status.Name,
        Type:        f.IssueType.Name,
        Project:     f.Project.Key,
        CreatedAt:   parseTimeUTC(f.Created),
        UpdatedAt:   parseTimeUTC(f.Updated),
        ResolvedAt:  parseTimeUTC(f.ResolutionDate),
    }
    if f.Priority != nil { issue.Priority = f.Priority.Name }
    if f.Assignee != nil { issue.Assignee = f.Assignee.DisplayName }
    if f.Reporter != nil { issue.Reporter = f.Reporter.DisplayName }
    return issue
}

// parseTimeUTC parses the tracker's timestamp formats and normalizes to UTC
// so that date arithmetic never sees the server's zone.
func parseTimeUTC(s string) *time.Time {
    if s == "" { return nil }
    layouts := []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.000-0700", "2006-01-02T15:04:05-0700", "2006-01-02"}
    for _, l := range layouts {
        if t, err := time.Parse(l, s); err == nil {
            tt := t.UTC()
            return &tt
        }
    }
    return nil
}
