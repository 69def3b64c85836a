/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package metrics

import (
    "math"
    "regexp"
    "strings"
    "time"

    "github.com/example/issuelens/internal/domain"
    "github.com/rs/zerolog"
)

var (
    acHeadingRe   = regexp.MustCompile(`(?i)acceptance\s+criteria`)
    gherkinRe     = regexp.MustCompile(`(?is)\bgiven\b.*\bwhen\b.*\bthen\b`)
    checklistRe   = regexp.MustCompile(`(?m)^\s*[-*]\s*\[[ xX]\]`)
    headingLineRe = regexp.MustCompile(`(?m)^\s*(#{1,6}\s+\S|h[1-6]\.\s+\S)`)
    bulletLineRe  = regexp.MustCompile(`(?m)^\s*[-*]\s+\S`)
)

// Calculator derives per-issue metrics from an issue, its chronologically
// ordered comments and an optional change history. It holds no per-issue
// state; the done-status set and the clock are fixed at construction.
type Calculator struct {
    log          zerolog.Logger
    doneStatuses map[string]struct{}
    now          func() time.Time
}

// NewCalculator builds a calculator. doneStatuses classifies "done-like"
// states for reopen detection (case-insensitive); when empty, a default of
// done/closed/resolved applies.
func NewCalculator(doneStatuses []string, log zerolog.Logger) *Calculator {
    if len(doneStatuses) == 0 {
        doneStatuses = []string{"Done", "Closed", "Resolved"}
    }
    set := make(map[string]struct{}, len(doneStatuses))
    for _, s := range doneStatuses {
        set[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
    }
    return &Calculator{log: log, doneStatuses: set, now: time.Now}
}

func (c *Calculator) isDone(status string) bool {
    _, ok := c.doneStatuses[strings.ToLower(strings.TrimSpace(status))]
    return ok
}

// Compute derives the metrics for one issue. Negative durations are logged
// and left absent instead of clamped; all date arithmetic runs in UTC.
func (c *Calculator) Compute(issue domain.Issue, comments []domain.Comment, history []domain.ChangeEvent) domain.IssueMetrics {
    now := c.now().UTC()
    m := domain.IssueMetrics{
        CommentsCount: len(comments),
        SilentIssue:   len(comments) == 0,
        ReopenCount:   c.reopenCount(history),
    }

    if issue.CreatedAt != nil {
        created := issue.CreatedAt.UTC()
        if issue.ResolvedAt != nil {
            resolved := issue.ResolvedAt.UTC()
            days := round2(resolved.Sub(created).Hours() / 24)
            if days < 0 {
                c.log.Warn().Str("issue", issue.Key).Float64("days", days).Msg("negative cycle time, leaving absent")
            } else {
                m.CycleTimeDays = &days
            }
            m.SameDayResolution = sameUTCDay(created, resolved)
        } else {
            days := round2(now.Sub(created).Hours() / 24)
            if days < 0 {
                c.log.Warn().Str("issue", issue.Key).Float64("days", days).Msg("negative aging, leaving absent")
            } else {
                m.AgingDays = &days
            }
        }
        if len(comments) > 0 {
            hours := round2(comments[0].At.UTC().Sub(created).Hours())
            if hours < 0 {
                c.log.Warn().Str("issue", issue.Key).Float64("hours", hours).Msg("comment predates issue, velocity left absent")
            } else {
                m.CommentVelocityHours = &hours
            }
        }
    }

    m.AcceptanceCriteria = hasAcceptanceCriteria(issue.Description)
    m.DescriptionQuality = descriptionQuality(issue.Description, m.AcceptanceCriteria)
    m.CrossTeamScore = crossTeamScore(issue, comments)
    return m
}

// reopenCount counts status transitions that move from a done-like state
// back to an active one.
func (c *Calculator) reopenCount(history []domain.ChangeEvent) int {
    n := 0
    for _, e := range history {
        if !strings.EqualFold(e.Field, "status") { continue }
        if c.isDone(e.FromVal) && !c.isDone(e.ToVal) { n++ }
    }
    return n
}

// descriptionQuality scores a normalized description 0..100 from length,
// acceptance-criteria presence and formatting structure. A heading counts
// as full structure when acceptance criteria accompany it; a lone heading
// or lone bullet list earns the reduced tier.
func descriptionQuality(text string, acPresent bool) int {
    score := 0
    chars := len([]rune(strings.TrimSpace(text)))
    length := chars * 40 / 100
    if length > 40 { length = 40 }
    score += length
    if acPresent { score += 40 }
    hasHeading := headingLineRe.MatchString(text)
    hasBullets := bulletLineRe.MatchString(text)
    switch {
    case hasHeading && (hasBullets || acPresent):
        score += 20
    case hasHeading || hasBullets:
        score += 10
    }
    if score < 0 { score = 0 }
    if score > 100 { score = 100 }
    return score
}

func hasAcceptanceCriteria(text string) bool {
    return acHeadingRe.MatchString(text) || gherkinRe.MatchString(text) || checklistRe.MatchString(text)
}

// crossTeamScore maps the count of distinct comment authors, excluding the
// reporter and assignee, to a saturating 0..100 scale.
func crossTeamScore(issue domain.Issue, comments []domain.Comment) int {
    authors := map[string]struct{}{}
    for _, cm := range comments {
        a := strings.TrimSpace(cm.Author)
        if a == "" { continue }
        if strings.EqualFold(a, issue.Reporter) || strings.EqualFold(a, issue.Assignee) { continue }
        authors[strings.ToLower(a)] = struct{}{}
    }
    switch d := len(authors); {
    case d == 0:
        return 0
    case d == 1:
        return 25
    case d == 2:
        return 50
    case d == 3:
        return 75
    case d == 4:
        return 90
    default:
        return 100
    }
}

func sameUTCDay(a, b time.Time) bool {
    ay, am, ad := a.UTC().Date()
    by, bm, bd := b.UTC().Date()
    return ay == by && am == bm && ad == bd
}

func round2(v float64) float64 {
    return math.Round(v*100) / 100
}
