/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package jira

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "net/http"
    "net/url"
    "sort"
    "strconv"
    "sync"
    "time"

    "github.com/example/issuelens/internal/config"
    "github.com/example/issuelens/internal/domain"
    "github.com/rs/zerolog"
)

// Client is the typed facade over the tracker's REST API. It composes the
// transport, the protocol-variant detection and the document normalizer, and
// exposes issues, comments, change history and projects as domain entities.
//
// Authentication failures propagate unchanged and end the run. Permission
// and not-found failures on a single issue's sub-resource are absorbed here
// (warn and skip) so that one locked-down issue never aborts an extraction.
type Client struct {
    tr  *transport
    log zerolog.Logger

    verOnce sync.Once
    apiVer  string
    verErr  error
}

func NewClient(cfg config.Config, log zerolog.Logger) *Client {
    return &Client{
        tr:  newTransport(cfg.JiraBaseURL, cfg.JiraEmail, cfg.JiraAPIToken, cfg.JiraPAT, cfg.HTTPTimeout, cfg.MaxRetries, log),
        log: log,
    }
}

// TestConnection probes auth and connectivity. An expected credential
// rejection translates to false rather than an error.
func (c *Client) TestConnection(ctx context.Context) bool {
    _, err := c.detectAPIVersion(ctx)
    if err == nil { return true }
    if errors.Is(err, ErrAuthentication) {
        c.log.Warn().Msg("jira connection test: credentials rejected")
        return false
    }
    c.log.Warn().Err(err).Msg("jira connection test failed")
    return false
}

type projectEnvelope struct {
    ID   string `json:"id"`
    Key  string `json:"key"`
    Name string `json:"name"`
}

// ListProjects returns all projects visible to the authenticated identity.
// Archived or inaccessible projects are simply not in the server's answer;
// nothing richer is inferred from their absence.
func (c *Client) ListProjects(ctx context.Context) ([]domain.Project, error) {
    ver, err := c.detectAPIVersion(ctx)
    if err != nil { return nil, err }
    var raw []projectEnvelope
    if ver == "3" {
        // v3 lists projects through a paginated search endpoint.
        startAt := 0
        for {
            q := url.Values{}
            q.Set("startAt", strconv.Itoa(startAt))
            q.Set("maxResults", strconv.Itoa(pageSize))
            b, err := c.tr.do(ctx, http.MethodGet, "/rest/api/3/project/search", q, nil)
            if err != nil { return nil, err }
            var page struct {
                StartAt    int               `json:"startAt"`
                MaxResults int               `json:"maxResults"`
                Total      int               `json:"total"`
                Values     []projectEnvelope `json:"values"`
            }
            if err := json.Unmarshal(b, &page); err != nil {
                return nil, fmt.Errorf("jira: decode project page: %w", err)
            }
            raw = append(raw, page.Values...)
            startAt += len(page.Values)
            if len(page.Values) == 0 || startAt >= page.Total { break }
        }
    } else {
        b, err := c.tr.do(ctx, http.MethodGet, "/rest/api/2/project", nil, nil)
        if err != nil { return nil, err }
        if err := json.Unmarshal(b, &raw); err != nil {
            return nil, fmt.Errorf("jira: decode project list: %w", err)
        }
    }
    out := make([]domain.Project, 0, len(raw))
    for _, p := range raw {
        out = append(out, domain.Project{ID: p.ID, Key: p.Key, Name: p.Name})
    }
    c.log.Debug().Int("projects", len(out)).Msg("jira projects listed")
    return out, nil
}

// SearchIssues returns a lazy sequence of issues for one project, filtered
// by a lower-bound update timestamp. Comments are not included; fetch them
// per issue. The first page is requested on the first Next call.
func (c *Client) SearchIssues(ctx context.Context, projectKey string, since time.Time) *IssueIterator {
    return &IssueIterator{c: c, ctx: ctx, jql: buildJQL(projectKey, since)}
}

type commentEnvelope struct {
    ID      string  `json:"id"`
    Author  userRef `json:"author"`
    Created string  `json:"created"`
    Body    any     `json:"body"`
}

type commentsResponse struct {
    StartAt    int               `json:"startAt"`
    MaxResults int               `json:"maxResults"`
    Total      int               `json:"total"`
    Comments   []commentEnvelope `json:"comments"`
}

// Comments fetches the full, normalized comment list for one issue, sorted
// chronologically. A permission or not-found failure on the sub-resource is
// logged and yields an empty list.
func (c *Client) Comments(ctx context.Context, issueKey string) ([]domain.Comment, error) {
    ver, err := c.detectAPIVersion(ctx)
    if err != nil { return nil, err }
    path := "/rest/api/" + ver + "/issue/" + url.PathEscape(issueKey) + "/comment"
    var out []domain.Comment
    startAt := 0
    for {
        q := url.Values{}
        q.Set("startAt", strconv.Itoa(startAt))
        q.Set("maxResults", strconv.Itoa(pageSize))
        b, err := c.tr.do(ctx, http.MethodGet, path, q, nil)
        if err != nil {
            if IsUnavailable(err) {
                c.log.Warn().Str("issue", issueKey).Msg("comments unavailable, skipping")
                return nil, nil
            }
            return nil, err
        }
        var page commentsResponse
        if err := json.Unmarshal(b, &page); err != nil {
            return nil, fmt.Errorf("jira: decode comments: %w", err)
        }
        for _, cm := range page.Comments {
            at := parseTimeUTC(cm.Created)
            if at == nil { continue }
            out = append(out, domain.Comment{
                ID:       cm.ID,
                IssueKey: issueKey,
                Author:   cm.Author.DisplayName,
                At:       *at,
                Body:     NormalizeText(cm.Body),
            })
        }
        startAt += len(page.Comments)
        if len(page.Comments) == 0 || startAt >= page.Total { break }
    }
    sort.Slice(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
    return out, nil
}

type historyItem struct {
    Field      string `json:"field"`
    FromString string `json:"fromString"`
    ToString   string `json:"toString"`
}

type historyEnvelope struct {
    Created string        `json:"created"`
    Items   []historyItem `json:"items"`
}

type changelogResponse struct {
    StartAt    int               `json:"startAt"`
    MaxResults int               `json:"maxResults"`
    Total      int               `json:"total"`
    Values     []historyEnvelope `json:"values"`
    Histories  []historyEnvelope `json:"histories"`
}

// Changelog fetches an issue's change history as flat field transitions in
// chronological order. History that the identity may not read yields an
// empty list: callers fall back to zero reopens rather than failing the
// issue.
func (c *Client) Changelog(ctx context.Context, issueKey string) ([]domain.ChangeEvent, error) {
    ver, err := c.detectAPIVersion(ctx)
    if err != nil { return nil, err }
    path := "/rest/api/" + ver + "/issue/" + url.PathEscape(issueKey) + "/changelog"
    var out []domain.ChangeEvent
    startAt := 0
    for {
        q := url.Values{}
        q.Set("startAt", strconv.Itoa(startAt))
        q.Set("maxResults", strconv.Itoa(pageSize))
        b, err := c.tr.do(ctx, http.MethodGet, path, q, nil)
        if err != nil {
            if IsUnavailable(err) {
                c.log.Debug().Str("issue", issueKey).Msg("change history unavailable, defaulting to none")
                return nil, nil
            }
            return nil, err
        }
        var page changelogResponse
        if err := json.Unmarshal(b, &page); err != nil {
            return nil, fmt.Errorf("jira: decode changelog: %w", err)
        }
        histories := page.Values
        if len(histories) == 0 { histories = page.Histories }
        for _, h := range histories {
            at := parseTimeUTC(h.Created)
            if at == nil { continue }
            for _, it := range h.Items {
                out = append(out, domain.ChangeEvent{
                    IssueKey: issueKey,
                    Field:    it.Field,
                    FromVal:  it.FromString,
                    ToVal:    it.ToString,
                    At:       *at,
                })
            }
        }
        startAt += len(histories)
        if len(histories) == 0 || startAt >= page.Total { break }
    }
    sort.Slice(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
    return out, nil
}
