package jobs

import (
	"context"
	"testing"

	"github.com/ishebot/insight-hub/internal/domain/analysis"
	"github.com/ishebot/insight-hub/internal/domain/student"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubStudentRepo implements the slice of student.Repository the jobs use.
// The embedded interface keeps the stub small; unimplemented methods panic.
type stubStudentRepo struct {
	student.Repository
	records []*student.Record
}

func (s *stubStudentRepo) GetAll(ctx context.Context, opts student.ListOptions) ([]*student.Record, error) {
	return s.records, nil
}

func (s *stubStudentRepo) Count(ctx context.Context) (int, error) {
	return len(s.records), nil
}

func analyzedStudent(code, name string, grade int, attendance float64, trend student.PerformanceTrend) *student.Record {
	return &student.Record{
		ID:               "id-" + code,
		Code:             student.Code(code),
		Name:             name,
		Class:            "ז1",
		Grade:            grade,
		AttendanceRate:   attendance,
		NeedsAnalysis:    false,
		StrengthsCount:   2,
		PerformanceTrend: trend,
	}
}

func TestDetectAtRiskJob_FlagsByStrictPolicy(t *testing.T) {
	repo := &stubStudentRepo{records: []*student.Record{
		// Two factors: low grade plus declining trend. Strict policy says high.
		analyzedStudent("70101", "דני", 45, 95, student.TrendDeclining),
		// One factor: low attendance. Medium.
		analyzedStudent("70102", "שרה", 85, 70, student.TrendStable),
		// No factors.
		analyzedStudent("70103", "יעל", 92, 96, student.TrendImproving),
		// Awaiting analysis, must be skipped.
		{ID: "id-4", Code: "70104", Name: "רון", NeedsAnalysis: true},
	}}

	job := NewDetectAtRiskJob(repo, nil, nil, nil, DefaultDetectAtRiskConfig())
	require.NoError(t, job.Run(context.Background()))

	sweep := job.LastSweep()
	require.NotNil(t, sweep)
	assert.Equal(t, 3, sweep.Total)

	require.Len(t, sweep.HighRisk, 1)
	assert.Equal(t, student.Code("70101"), sweep.HighRisk[0].Code)
	assert.Equal(t, analysis.RiskHigh, sweep.HighRisk[0].Level)
	assert.Len(t, sweep.HighRisk[0].Factors, 2)

	require.Len(t, sweep.MediumRisk, 1)
	assert.Equal(t, student.Code("70102"), sweep.MediumRisk[0].Code)
}

func TestDetectAtRiskJob_LenientPolicyDowngrades(t *testing.T) {
	repo := &stubStudentRepo{records: []*student.Record{
		analyzedStudent("70101", "דני", 45, 95, student.TrendDeclining),
	}}

	cfg := DefaultDetectAtRiskConfig()
	cfg.Policy = analysis.LenientRiskPolicy
	job := NewDetectAtRiskJob(repo, nil, nil, nil, cfg)
	require.NoError(t, job.Run(context.Background()))

	sweep := job.LastSweep()
	require.NotNil(t, sweep)
	assert.Empty(t, sweep.HighRisk)
	assert.Len(t, sweep.MediumRisk, 1)
}

func TestDetectAtRiskJob_LastSweepNilBeforeFirstRun(t *testing.T) {
	job := NewDetectAtRiskJob(&stubStudentRepo{}, nil, nil, nil, DefaultDetectAtRiskConfig())
	assert.Nil(t, job.LastSweep())
}
