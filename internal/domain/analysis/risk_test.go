package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ishebot/insight-hub/internal/domain/student"
)

func TestRiskPolicy_Classify(t *testing.T) {
	tests := []struct {
		name    string
		policy  RiskPolicy
		factors int
		want    RiskLevel
	}{
		{"strict zero factors", StrictRiskPolicy, 0, RiskLow},
		{"strict one factor", StrictRiskPolicy, 1, RiskMedium},
		{"strict two factors", StrictRiskPolicy, 2, RiskHigh},
		{"lenient two factors", LenientRiskPolicy, 2, RiskMedium},
		{"lenient three factors", LenientRiskPolicy, 3, RiskHigh},
		{"lenient five factors", LenientRiskPolicy, 5, RiskHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.policy.Classify(tt.factors))
		})
	}
}

func TestPolicies_DisagreeOnTwoFactorStudents(t *testing.T) {
	cfg := DefaultConfig()

	r := &student.Record{
		Code:             "1",
		Name:             "a",
		Grade:            50,
		PerformanceTrend: student.TrendDeclining,
	}

	strictLevel, strictFactors := StrictRiskPolicy.Assess(r, cfg)
	lenientLevel, lenientFactors := LenientRiskPolicy.Assess(r, cfg)

	assert.Equal(t, strictFactors, lenientFactors)
	assert.Len(t, strictFactors, 2)
	assert.Equal(t, RiskHigh, strictLevel)
	assert.Equal(t, RiskMedium, lenientLevel)
}

func TestEvaluateRiskFactors_AbsentFieldsAreNotRisky(t *testing.T) {
	cfg := DefaultConfig()

	// Zero grade and zero attendance mean unknown, not failing.
	r := &student.Record{Code: "1", Name: "a"}

	assert.Empty(t, EvaluateRiskFactors(r, cfg))
}

func TestEvaluateRiskFactors_AllFactors(t *testing.T) {
	cfg := DefaultConfig()

	r := &student.Record{
		Code:               "1",
		Name:               "a",
		Grade:              40,
		AttendanceRate:     60,
		PerformanceTrend:   student.TrendDeclining,
		ParticipationLevel: "Low",
		EmotionalState:     "anxious",
	}

	factors := EvaluateRiskFactors(r, cfg)

	assert.Equal(t, []string{
		FactorLowGrades,
		FactorDecliningTrend,
		FactorLowParticipation,
		FactorLowAttendance,
		FactorEmotionalConcerns,
	}, factors)
}

func TestEvaluateRiskFactors_HebrewKeywords(t *testing.T) {
	cfg := DefaultConfig()

	r := &student.Record{
		Code:               "1",
		Name:               "a",
		ParticipationLevel: "נמוך",
		EmotionalState:     "לחוץ מאוד",
	}

	factors := EvaluateRiskFactors(r, cfg)

	assert.Equal(t, []string{FactorLowParticipation, FactorEmotionalConcerns}, factors)
}

func TestEvaluateRiskFactors_BoundaryValues(t *testing.T) {
	cfg := DefaultConfig()

	// Exactly at the cutoffs is not a risk factor.
	r := &student.Record{
		Code:           "1",
		Name:           "a",
		Grade:          60,
		AttendanceRate: 80,
	}

	assert.Empty(t, EvaluateRiskFactors(r, cfg))
}
