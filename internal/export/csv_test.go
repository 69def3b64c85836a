package export

import (
    "bytes"
    "encoding/csv"
    "testing"
    "time"

    "github.com/example/issuelens/internal/domain"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func fptr(v float64) *float64 { return &v }

func tptr(s string) *time.Time {
    t, err := time.Parse(time.RFC3339, s)
    if err != nil { panic(err) }
    return &t
}

func TestIssueWriter_ColumnOrderAndFormats(t *testing.T) {
    var buf bytes.Buffer
    w, err := NewIssueWriter(&buf)
    require.NoError(t, err)

    issue := domain.Issue{
        Key:         "DEMO-7",
        Summary:     "fix the flaky login",
        Description: "steps:\n- open app",
        Status:      "Done",
        Type:        "Bug",
        Priority:    "High",
        Assignee:    "alice",
        Reporter:    "bob",
        Project:     "DEMO",
        CreatedAt:   tptr("2025-11-01T10:00:00Z"),
        UpdatedAt:   tptr("2025-11-15T16:00:00Z"),
        ResolvedAt:  tptr("2025-11-15T16:00:00Z"),
    }
    m := domain.IssueMetrics{
        CycleTimeDays:        fptr(14.25),
        CommentsCount:        3,
        DescriptionQuality:   57,
        AcceptanceCriteria:   true,
        CommentVelocityHours: fptr(6.5),
        SilentIssue:          false,
        SameDayResolution:    false,
        CrossTeamScore:       50,
        ReopenCount:          1,
    }
    require.NoError(t, w.Write(issue, m))

    records, err := csv.NewReader(&buf).ReadAll()
    require.NoError(t, err)
    require.Len(t, records, 2)

    header := records[0]
    // Base columns first, derived columns appended after.
    assert.Equal(t, []string{
        "key", "summary", "description", "status", "type", "priority",
        "assignee", "reporter", "created", "updated", "resolved", "project",
    }, header[:12])
    assert.Equal(t, []string{
        "cycle_time_days", "aging_days", "comments_count",
        "description_quality_score", "acceptance_criteria_present",
        "comment_velocity_hours", "silent_issue", "same_day_resolution",
        "cross_team_score", "reopen_count",
    }, header[12:])

    row := records[1]
    assert.Equal(t, "DEMO-7", row[0])
    assert.Equal(t, "2025-11-01T10:00:00Z", row[8])
    assert.Equal(t, "14.25", row[12])
    assert.Equal(t, "", row[13], "absent aging renders empty")
    assert.Equal(t, "3", row[14])
    assert.Equal(t, "true", row[16], "booleans are lowercase tokens")
    assert.Equal(t, "6.50", row[17], "floats carry exactly two decimals")
    assert.Equal(t, "false", row[18])
    assert.Equal(t, "false", row[19])
}

func TestIssueWriter_StreamsRowByRow(t *testing.T) {
    var buf bytes.Buffer
    w, err := NewIssueWriter(&buf)
    require.NoError(t, err)
    headerLen := buf.Len()
    assert.Greater(t, headerLen, 0, "header written before any row")

    issue := domain.Issue{Key: "DEMO-1", Project: "DEMO", CreatedAt: tptr("2025-11-01T10:00:00Z")}
    require.NoError(t, w.Write(issue, domain.IssueMetrics{AgingDays: fptr(1), SilentIssue: true}))
    assert.Greater(t, buf.Len(), headerLen, "row flushed immediately after write")
}

func TestIssueWriter_UnresolvedRow(t *testing.T) {
    var buf bytes.Buffer
    w, err := NewIssueWriter(&buf)
    require.NoError(t, err)
    issue := domain.Issue{Key: "DEMO-2", Project: "DEMO", CreatedAt: tptr("2025-11-01T10:00:00Z")}
    require.NoError(t, w.Write(issue, domain.IssueMetrics{AgingDays: fptr(3.5), SilentIssue: true}))

    records, err := csv.NewReader(&buf).ReadAll()
    require.NoError(t, err)
    row := records[1]
    assert.Equal(t, "", row[12], "no cycle time on open issues")
    assert.Equal(t, "3.50", row[13])
    assert.Equal(t, "", row[10], "no resolution timestamp")
    assert.Equal(t, "true", row[18])
}

func TestWriteProjectSummaries(t *testing.T) {
    var buf bytes.Buffer
    rows := []domain.ProjectSummary{{
        Project:             "DEMO",
        TotalIssues:         4,
        ResolvedCount:       2,
        UnresolvedCount:     2,
        ResolutionRate:      0.5,
        AvgCycleTimeDays:    fptr(3.33),
        MedianCycleTimeDays: fptr(3.33),
        SilentRate:          0.25,
        AcceptanceRate:      0,
        SameDayRate:         0,
        AvgDescQualityScore: fptr(41.5),
        ReopenTotal:         1,
    }}
    require.NoError(t, WriteProjectSummaries(&buf, rows))

    records, err := csv.NewReader(&buf).ReadAll()
    require.NoError(t, err)
    require.Len(t, records, 2)
    assert.Equal(t, "project", records[0][0])
    assert.Equal(t, "DEMO", records[1][0])
    assert.Equal(t, "0.50", records[1][4])
    assert.Equal(t, "", records[1][7], "absent aging average stays empty")
    assert.Equal(t, "0.00", records[1][10], "zero-denominator rate renders as 0.00")
}

func TestWritePersonAndTypeSummaries(t *testing.T) {
    var people bytes.Buffer
    require.NoError(t, WritePersonSummaries(&people, []domain.PersonSummary{{
        Assignee: "alice", TotalAssigned: 3, ResolvedCount: 2, WipCount: 1,
        AvgCycleTimeDays: fptr(2), MedianCycleTimeDays: fptr(2), SilentRate: 0.33,
    }}))
    rec, err := csv.NewReader(&people).ReadAll()
    require.NoError(t, err)
    assert.Equal(t, []string{"alice", "3", "2", "1"}, rec[1][:4])

    var types bytes.Buffer
    require.NoError(t, WriteTypeSummaries(&types, []domain.TypeSummary{{
        Type: "Bug", TotalIssues: 2, ResolvedCount: 1, ResolutionRate: 0.5,
    }}))
    rec, err = csv.NewReader(&types).ReadAll()
    require.NoError(t, err)
    assert.Equal(t, "Bug", rec[1][0])
    assert.Equal(t, "0.50", rec[1][3])
}
