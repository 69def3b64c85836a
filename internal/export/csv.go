/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package export

import (
    "encoding/csv"
    "fmt"
    "io"
    "strconv"
    "time"

    "github.com/example/issuelens/internal/domain"
)

// issueHeader keeps the twelve base columns first; derived metric columns
// are appended after them so consumers reading only the original positions
// keep working.
var issueHeader = []string{
    "key", "summary", "description", "status", "type", "priority",
    "assignee", "reporter", "created", "updated", "resolved", "project",
    "cycle_time_days", "aging_days", "comments_count",
    "description_quality_score", "acceptance_criteria_present",
    "comment_velocity_hours", "silent_issue", "same_day_resolution",
    "cross_team_score", "reopen_count",
}

// IssueWriter streams extended issue rows: each row is written (and flushed)
// as soon as its metrics are known, so the full issue set is never buffered.
type IssueWriter struct {
    w *csv.Writer
}

func NewIssueWriter(w io.Writer) (*IssueWriter, error) {
    cw := csv.NewWriter(w)
    if err := cw.Write(issueHeader); err != nil { return nil, err }
    cw.Flush()
    return &IssueWriter{w: cw}, cw.Error()
}

func (iw *IssueWriter) Write(issue domain.Issue, m domain.IssueMetrics) error {
    row := []string{
        issue.Key,
        issue.Summary,
        issue.Description,
        issue.Status,
        issue.Type,
        issue.Priority,
        issue.Assignee,
        issue.Reporter,
        fmtTime(issue.CreatedAt),
        fmtTime(issue.UpdatedAt),
        fmtTime(issue.ResolvedAt),
        issue.Project,
        fmtFloat(m.CycleTimeDays),
        fmtFloat(m.AgingDays),
        strconv.Itoa(m.CommentsCount),
        strconv.Itoa(m.DescriptionQuality),
        fmtBool(m.AcceptanceCriteria),
        fmtFloat(m.CommentVelocityHours),
        fmtBool(m.SilentIssue),
        fmtBool(m.SameDayResolution),
        strconv.Itoa(m.CrossTeamScore),
        strconv.Itoa(m.ReopenCount),
    }
    if err := iw.w.Write(row); err != nil { return err }
    iw.w.Flush()
    return iw.w.Error()
}

func WriteProjectSummaries(w io.Writer, rows []domain.ProjectSummary) error {
    cw := csv.NewWriter(w)
    header := []string{
        "project", "total_issues", "resolved_count", "unresolved_count",
        "resolution_rate", "avg_cycle_time_days", "median_cycle_time_days",
        "avg_aging_days", "silent_rate", "acceptance_criteria_rate",
        "same_day_rate", "avg_description_quality",
        "avg_comment_velocity_hours", "reopen_total",
    }
    if err := cw.Write(header); err != nil { return err }
    for _, r := range rows {
        row := []string{
            r.Project,
            strconv.Itoa(r.TotalIssues),
            strconv.Itoa(r.ResolvedCount),
            strconv.Itoa(r.UnresolvedCount),
            fmtRate(r.ResolutionRate),
            fmtFloat(r.AvgCycleTimeDays),
            fmtFloat(r.MedianCycleTimeDays),
            fmtFloat(r.AvgAgingDays),
            fmtRate(r.SilentRate),
            fmtRate(r.AcceptanceRate),
            fmtRate(r.SameDayRate),
            fmtFloat(r.AvgDescQualityScore),
            fmtFloat(r.AvgCommentVelocityHr),
            strconv.Itoa(r.ReopenTotal),
        }
        if err := cw.Write(row); err != nil { return err }
    }
    cw.Flush()
    return cw.Error()
}

func WritePersonSummaries(w io.Writer, rows []domain.PersonSummary) error {
    cw := csv.NewWriter(w)
    header := []string{
        "assignee", "total_assigned", "resolved_count", "wip_count",
        "avg_cycle_time_days", "median_cycle_time_days", "avg_aging_days",
        "silent_rate", "same_day_count", "avg_comment_velocity_hours",
        "reopen_total",
    }
    if err := cw.Write(header); err != nil { return err }
    for _, r := range rows {
        row := []string{
            r.Assignee,
            strconv.Itoa(r.TotalAssigned),
            strconv.Itoa(r.ResolvedCount),
            strconv.Itoa(r.WipCount),
            fmtFloat(r.AvgCycleTimeDays),
            fmtFloat(r.MedianCycleTimeDays),
            fmtFloat(r.AvgAgingDays),
            fmtRate(r.SilentRate),
            strconv.Itoa(r.SameDayCount),
            fmtFloat(r.AvgCommentVelocityHr),
            strconv.Itoa(r.ReopenTotal),
        }
        if err := cw.Write(row); err != nil { return err }
    }
    cw.Flush()
    return cw.Error()
}

func WriteTypeSummaries(w io.Writer, rows []domain.TypeSummary) error {
    cw := csv.NewWriter(w)
    header := []string{
        "issue_type", "total_issues", "resolved_count", "resolution_rate",
        "avg_cycle_time_days", "median_cycle_time_days",
        "acceptance_criteria_rate", "avg_description_quality", "silent_rate",
    }
    if err := cw.Write(header); err != nil { return err }
    for _, r := range rows {
        row := []string{
            r.Type,
            strconv.Itoa(r.TotalIssues),
            strconv.Itoa(r.ResolvedCount),
            fmtRate(r.ResolutionRate),
            fmtFloat(r.AvgCycleTimeDays),
            fmtFloat(r.MedianCycleTimeDays),
            fmtRate(r.AcceptanceRate),
            fmtFloat(r.AvgDescQualityScore),
            fmtRate(r.SilentRate),
        }
        if err := cw.Write(row); err != nil { return err }
    }
    cw.Flush()
    return cw.Error()
}

// fmtFloat renders absent values as an empty cell and present ones with
// exactly two decimals.
func fmtFloat(v *float64) string {
    if v == nil { return "" }
    return fmt.Sprintf("%.2f", *v)
}

func fmtRate(v float64) string { return fmt.Sprintf("%.2f", v) }

func fmtBool(v bool) string {
    if v { return "true" }
    return "false"
}

func fmtTime(t *time.Time) string {
    if t == nil { return "" }
    return t.UTC().Format(time.RFC3339)
}
