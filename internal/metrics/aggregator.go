/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package metrics

import (
    "sort"

    "github.com/example/issuelens/internal/domain"
)

// bucket accumulates one key's running sums. Cycle-time samples are kept per
// key so a median can be taken at finalize; that set is bounded by one
// project/person/type's issue count, never the whole dataset.
type bucket struct {
    total    int
    resolved int
    silent   int
    sameDay  int
    ac       int
    reopens  int

    cycleSamples []float64
    cycleSum     float64

    agingSum   float64
    agingCount int

    velocitySum   float64
    velocityCount int

    qualitySum int
}

func (b *bucket) add(issue domain.Issue, m domain.IssueMetrics) {
    b.total++
    if issue.Resolved() { b.resolved++ }
    if m.SilentIssue { b.silent++ }
    if m.SameDayResolution { b.sameDay++ }
    if m.AcceptanceCriteria { b.ac++ }
    b.reopens += m.ReopenCount
    b.qualitySum += m.DescriptionQuality
    if m.CycleTimeDays != nil {
        b.cycleSamples = append(b.cycleSamples, *m.CycleTimeDays)
        b.cycleSum += *m.CycleTimeDays
    }
    if m.AgingDays != nil {
        b.agingSum += *m.AgingDays
        b.agingCount++
    }
    // Silent issues stay out of both sides of the velocity average.
    if m.CommentVelocityHours != nil && !m.SilentIssue {
        b.velocitySum += *m.CommentVelocityHours
        b.velocityCount++
    }
}

// ratio yields 0.0 on a zero denominator: "no data" for a ratio is a rate of
// zero, unlike averages where absence must stay visible.
func ratio(num, den int) float64 {
    if den == 0 { return 0 }
    return round2(float64(num) / float64(den))
}

// avg returns nil when there are no samples so that "no data" stays
// distinguishable from "zero".
func avg(sum float64, n int) *float64 {
    if n == 0 { return nil }
    v := round2(sum / float64(n))
    return &v
}

func avgInt(sum, n int) *float64 {
    return avg(float64(sum), n)
}

func median(samples []float64) *float64 {
    n := len(samples)
    if n == 0 { return nil }
    s := make([]float64, n)
    copy(s, samples)
    sort.Float64s(s)
    var v float64
    if n%2 == 1 {
        v = s[n/2]
    } else {
        v = (s[n/2-1] + s[n/2]) / 2
    }
    v = round2(v)
    return &v
}

// Aggregator folds a stream of per-issue metrics into three summary views.
// It is owned by the single pipeline goroutine; no locking.
type Aggregator struct {
    byProject  map[string]*bucket
    byAssignee map[string]*bucket
    byType     map[string]*bucket
}

func NewAggregator() *Aggregator {
    return &Aggregator{
        byProject:  map[string]*bucket{},
        byAssignee: map[string]*bucket{},
        byType:     map[string]*bucket{},
    }
}

func get(m map[string]*bucket, key string) *bucket {
    b := m[key]
    if b == nil {
        b = &bucket{}
        m[key] = b
    }
    return b
}

// Add folds one issue's metrics into the running accumulators. Issues with
// no assignee contribute to the project and type views only.
func (a *Aggregator) Add(issue domain.Issue, m domain.IssueMetrics) {
    get(a.byProject, issue.Project).add(issue, m)
    get(a.byType, issue.Type).add(issue, m)
    if issue.Assignee != "" {
        get(a.byAssignee, issue.Assignee).add(issue, m)
    }
}

// Finalize produces the three summary views, sorted by key. Call it once,
// after the issue stream is exhausted.
func (a *Aggregator) Finalize() ([]domain.ProjectSummary, []domain.PersonSummary, []domain.TypeSummary) {
    projects := make([]domain.ProjectSummary, 0, len(a.byProject))
    for key, b := range a.byProject {
        projects = append(projects, domain.ProjectSummary{
            Project:              key,
            TotalIssues:          b.total,
            ResolvedCount:        b.resolved,
            UnresolvedCount:      b.total - b.resolved,
            ResolutionRate:       ratio(b.resolved, b.total),
            AvgCycleTimeDays:     avg(b.cycleSum, len(b.cycleSamples)),
            MedianCycleTimeDays:  median(b.cycleSamples),
            AvgAgingDays:         avg(b.agingSum, b.agingCount),
            SilentRate:           ratio(b.silent, b.total),
            AcceptanceRate:       ratio(b.ac, b.total),
            SameDayRate:          ratio(b.sameDay, b.resolved),
            AvgDescQualityScore:  avgInt(b.qualitySum, b.total),
            AvgCommentVelocityHr: avg(b.velocitySum, b.velocityCount),
            ReopenTotal:          b.reopens,
        })
    }
    sort.Slice(projects, func(i, j int) bool { return projects[i].Project < projects[j].Project })

    people := make([]domain.PersonSummary, 0, len(a.byAssignee))
    for key, b := range a.byAssignee {
        people = append(people, domain.PersonSummary{
            Assignee:             key,
            TotalAssigned:        b.total,
            ResolvedCount:        b.resolved,
            WipCount:             b.total - b.resolved,
            AvgCycleTimeDays:     avg(b.cycleSum, len(b.cycleSamples)),
            MedianCycleTimeDays:  median(b.cycleSamples),
            AvgAgingDays:         avg(b.agingSum, b.agingCount),
            SilentRate:           ratio(b.silent, b.total),
            SameDayCount:         b.sameDay,
            AvgCommentVelocityHr: avg(b.velocitySum, b.velocityCount),
            ReopenTotal:          b.reopens,
        })
    }
    sort.Slice(people, func(i, j int) bool { return people[i].Assignee < people[j].Assignee })

    types := make([]domain.TypeSummary, 0, len(a.byType))
    for key, b := range a.byType {
        types = append(types, domain.TypeSummary{
            Type:                key,
            TotalIssues:         b.total,
            ResolvedCount:       b.resolved,
            ResolutionRate:      ratio(b.resolved, b.total),
            AvgCycleTimeDays:    avg(b.cycleSum, len(b.cycleSamples)),
            MedianCycleTimeDays: median(b.cycleSamples),
            AcceptanceRate:      ratio(b.ac, b.total),
            AvgDescQualityScore: avgInt(b.qualitySum, b.total),
            SilentRate:          ratio(b.silent, b.total),
        })
    }
    sort.Slice(types, func(i, j int) bool { return types[i].Type < types[j].Type })

    return projects, people, types
}
