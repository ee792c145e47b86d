package analysis

import (
	"github.com/ishebot/insight-hub/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// RISK CLASSIFICATION
// One pure classifier shared by every call site. The two historical variants
// of the dashboard are kept as named presets so each caller states which
// trade-off it wants instead of re-implementing the count inline.
// ══════════════════════════════════════════════════════════════════════════════

// RiskLevel is the qualitative risk classification of one student.
type RiskLevel string

const (
	// RiskLow - no risk factors matched.
	RiskLow RiskLevel = "low"
	// RiskMedium - at least one risk factor matched.
	RiskMedium RiskLevel = "medium"
	// RiskHigh - the high threshold of the policy was reached.
	RiskHigh RiskLevel = "high"
)

// Risk factor keys. Display labels live in Config.RiskFactorLabels.
const (
	FactorLowGrades         = "low_grades"
	FactorDecliningTrend    = "declining_performance"
	FactorLowParticipation  = "low_participation"
	FactorLowAttendance     = "low_attendance"
	FactorEmotionalConcerns = "emotional_concerns"
)

// RiskPolicy maps a matched-factor count to a risk level.
type RiskPolicy struct {
	// Name identifies the policy in logs and reports.
	Name string

	// HighThreshold - minimum factor count for RiskHigh.
	HighThreshold int

	// MediumThreshold - minimum factor count for RiskMedium.
	MediumThreshold int
}

// StrictRiskPolicy flags a student as high risk from two matched factors.
// Used for per-student alerting and the at-risk detection sweep, where a
// false positive is cheaper than a missed student.
var StrictRiskPolicy = RiskPolicy{Name: "strict", HighThreshold: 2, MediumThreshold: 1}

// LenientRiskPolicy requires three matched factors for high risk. Used for
// the class-level risk distribution so the bulk chart is not dominated by
// borderline cases.
var LenientRiskPolicy = RiskPolicy{Name: "lenient", HighThreshold: 3, MediumThreshold: 1}

// Classify maps a factor count to a risk level.
func (p RiskPolicy) Classify(factorCount int) RiskLevel {
	switch {
	case factorCount >= p.HighThreshold:
		return RiskHigh
	case factorCount >= p.MediumThreshold:
		return RiskMedium
	default:
		return RiskLow
	}
}

// Assess evaluates every risk factor for one student and classifies the
// result. Absent fields count as non-risky: a zero grade or zero attendance
// rate means "unknown", not "failing". The returned factor keys are in
// evaluation order.
func (p RiskPolicy) Assess(r *student.Record, cfg *Config) (RiskLevel, []string) {
	factors := EvaluateRiskFactors(r, cfg)
	return p.Classify(len(factors)), factors
}

// EvaluateRiskFactors returns the keys of every matched risk factor.
func EvaluateRiskFactors(r *student.Record, cfg *Config) []string {
	var factors []string

	if r.Grade > 0 && r.Grade < cfg.GradePassing {
		factors = append(factors, FactorLowGrades)
	}
	if r.PerformanceTrend == student.TrendDeclining {
		factors = append(factors, FactorDecliningTrend)
	}
	if containsAny(r.ParticipationLevel, cfg.LowParticipationKeywords) {
		factors = append(factors, FactorLowParticipation)
	}
	if r.AttendanceRate > 0 && r.AttendanceRate < cfg.LowAttendanceCutoff {
		factors = append(factors, FactorLowAttendance)
	}
	if containsAny(r.EmotionalState, cfg.ConcerningEmotionalKeywords) {
		factors = append(factors, FactorEmotionalConcerns)
	}

	return factors
}
