/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package domain

import "time"

// Issue is a read-only snapshot of one tracker work item, fetched once per
// extraction run. Description is already normalized to plain text.
type Issue struct {
	Key         string
	Summary     string
	Description string
	Status      string
	Type        string
	Priority    string
	Assignee    string
	Reporter    string
	Project     string
	CreatedAt   *time.Time
	UpdatedAt   *time.Time
	ResolvedAt  *time.Time
}

// Resolved reports whether the issue carries a resolution timestamp.
func (i Issue) Resolved() bool { return i.ResolvedAt != nil }

type Comment struct {
	ID       string
	IssueKey string
	Author   string
	At       time.Time
	Body     string
}

// ChangeEvent is one field transition from an issue's change history.
type ChangeEvent struct {
	IssueKey string
	Field    string
	FromVal  string
	ToVal    string
	At       time.Time
}

type Project struct {
	ID   string
	Key  string
	Name string
}

// IssueMetrics holds the derived per-issue signals. Exactly one of
// CycleTimeDays / AgingDays is set: resolved issues get cycle time,
// unresolved ones get aging. Nil pointers mean "absent", which the exporter
// renders as an empty cell.
type IssueMetrics struct {
	CycleTimeDays        *float64
	AgingDays            *float64
	CommentsCount        int
	DescriptionQuality   int
	AcceptanceCriteria   bool
	CommentVelocityHours *float64
	SilentIssue          bool
	SameDayResolution    bool
	CrossTeamScore       int
	ReopenCount          int
}

// ProjectSummary is the finalized per-project aggregate row.
type ProjectSummary struct {
	Project              string
	TotalIssues          int
	ResolvedCount        int
	UnresolvedCount      int
	ResolutionRate       float64
	AvgCycleTimeDays     *float64
	MedianCycleTimeDays  *float64
	AvgAgingDays         *float64
	SilentRate           float64
	AcceptanceRate       float64
	SameDayRate          float64
	AvgDescQualityScore  *float64
	AvgCommentVelocityHr *float64
	ReopenTotal          int
}

// PersonSummary is the finalized per-assignee aggregate row.
// Invariant: WipCount + ResolvedCount == TotalAssigned.
type PersonSummary struct {
	Assignee             string
	TotalAssigned        int
	ResolvedCount        int
	WipCount             int
	AvgCycleTimeDays     *float64
	MedianCycleTimeDays  *float64
	AvgAgingDays         *float64
	SilentRate           float64
	SameDayCount         int
	AvgCommentVelocityHr *float64
	ReopenTotal          int
}

// TypeSummary is the finalized per-issue-type aggregate row.
type TypeSummary struct {
	Type                string
	TotalIssues         int
	ResolvedCount       int
	ResolutionRate      float64
	AvgCycleTimeDays    *float64
	MedianCycleTimeDays *float64
	AcceptanceRate      float64
	AvgDescQualityScore *float64
	SilentRate          float64
}

// ExtractionRun is one row of the optional run ledger.
type ExtractionRun struct {
	ID              string
	Projects        []string
	Since           time.Time
	StartedAt       time.Time
	FinishedAt      *time.Time
	IssuesExported  int
	ProjectsSkipped int
	OK              bool
	Error           string
}
