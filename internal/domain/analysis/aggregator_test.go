package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ishebot/insight-hub/internal/domain/student"
)

func analyzedRecord(code string) *student.Record {
	return &student.Record{
		Code:           student.Code(code),
		Name:           "Student " + code,
		NeedsAnalysis:  false,
		StrengthsCount: 1,
	}
}

func TestAggregate_SingleExcellentStudent(t *testing.T) {
	agg := NewAggregator(nil)

	r := analyzedRecord("101")
	r.StrengthsCount = 3
	r.Grade = 95
	r.LearningStyle = "visual"

	result := agg.Aggregate([]*student.Record{r})

	assert.Equal(t, 1, result.TotalStudents)
	assert.Equal(t, 1, result.AnalyzedStudents)
	assert.Equal(t, 0, result.UnanalyzedStudents)
	assert.Equal(t, 95, result.AverageGrade)
	assert.Equal(t, 1, result.PerformanceDistribution.Excellent)
	assert.Equal(t, 1, result.LearningStyles["visual"])
	assert.Equal(t, 100, result.LearningStylePercentages["visual"])
}

func TestAggregate_UnanalyzedStudent(t *testing.T) {
	agg := NewAggregator(nil)

	r := &student.Record{Code: "102", Name: "Student 102", NeedsAnalysis: true}

	result := agg.Aggregate([]*student.Record{r})

	assert.Equal(t, 0, result.AnalyzedStudents)
	assert.Equal(t, 1, result.UnanalyzedStudents)
	assert.Equal(t, 0.0, result.AnalysisCompletionRate)
}

func TestAggregate_EmptyList(t *testing.T) {
	agg := NewAggregator(nil)

	result := agg.Aggregate(nil)

	assert.Equal(t, 0, result.TotalStudents)
	assert.Equal(t, 0, result.AnalyzedStudents)
	assert.Equal(t, 0.0, result.AnalysisCompletionRate)
	assert.Equal(t, 0, result.AverageGrade)
	assert.Equal(t, 0, result.EngagementScore)
	assert.Equal(t, 0, result.WellbeingIndex)
	assert.Equal(t, 0, result.AcademicReadiness)
	assert.Equal(t, 0, result.SocialIntegration)
	assert.Empty(t, result.TopStrengths)
	assert.Empty(t, result.StudentsAtRisk)
	assert.Empty(t, result.ClassComparisons)
}

func TestAggregate_AnalyzedPlusUnanalyzedEqualsTotal(t *testing.T) {
	agg := NewAggregator(nil)

	records := []*student.Record{
		analyzedRecord("1"),
		analyzedRecord("2"),
		{Code: "3", Name: "c", NeedsAnalysis: true},
		{Code: "4", Name: "d", NeedsAnalysis: false, StrengthsCount: 0},
	}

	result := agg.Aggregate(records)

	assert.Equal(t, result.TotalStudents, result.AnalyzedStudents+result.UnanalyzedStudents)
	assert.Equal(t, 2, result.AnalyzedStudents)
	assert.InDelta(t, 50.0, result.AnalysisCompletionRate, 0.001)
}

func TestAggregate_Idempotent(t *testing.T) {
	agg := NewAggregator(nil)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	records := []*student.Record{
		func() *student.Record {
			r := analyzedRecord("1")
			r.Grade = 72
			r.KeyStrengths = []string{"Focus", "Creativity"}
			r.EmotionalState = "happy"
			r.LastAnalysisDate = now.AddDate(0, 0, -3)
			return r
		}(),
		func() *student.Record {
			r := analyzedRecord("2")
			r.Grade = 55
			r.PerformanceTrend = student.TrendDeclining
			return r
		}(),
	}

	first := agg.AggregateAt(records, now)
	second := agg.AggregateAt(records, now)

	assert.Equal(t, first, second)
}

func TestAggregate_PercentagesWithinBounds(t *testing.T) {
	agg := NewAggregator(nil)

	records := []*student.Record{}
	for i := 0; i < 7; i++ {
		r := analyzedRecord(string(rune('a' + i)))
		r.LearningStyle = []string{"visual", "auditory", "kinesthetic"}[i%3]
		r.KeyStrengths = []string{"focus"}
		records = append(records, r)
	}

	result := agg.Aggregate(records)

	for style, pct := range result.LearningStylePercentages {
		assert.GreaterOrEqual(t, pct, 0, "style %s", style)
		assert.LessOrEqual(t, pct, 100, "style %s", style)
	}
	for _, s := range result.TopStrengths {
		assert.GreaterOrEqual(t, s.Percentage, 0)
		assert.LessOrEqual(t, s.Percentage, 100)
	}
}

func TestTopStrengths_NormalizationAndRanking(t *testing.T) {
	agg := NewAggregator(nil)

	r1 := analyzedRecord("1")
	r1.KeyStrengths = []string{"Focus"}
	r2 := analyzedRecord("2")
	r2.KeyStrengths = []string{"focus"}
	r3 := analyzedRecord("3")
	r3.KeyStrengths = []string{" Focus "}

	result := agg.Aggregate([]*student.Record{r1, r2, r3})

	require.Len(t, result.TopStrengths, 1)
	assert.Equal(t, "focus", result.TopStrengths[0].Strength)
	assert.Equal(t, 3, result.TopStrengths[0].Count)
	assert.Equal(t, 100, result.TopStrengths[0].Percentage)
}

func TestTopStrengths_CapAndTieOrder(t *testing.T) {
	agg := NewAggregator(nil)

	var records []*student.Record
	// 12 distinct strengths, all with count 1: first 10 encountered survive.
	strengths := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l"}
	for i, s := range strengths {
		r := analyzedRecord(string(rune('0' + i)))
		r.KeyStrengths = []string{s}
		records = append(records, r)
	}
	// "l" appears a second time and must outrank the tied singles.
	extra := analyzedRecord("x")
	extra.KeyStrengths = []string{"l"}
	records = append(records, extra)

	result := agg.Aggregate(records)

	require.Len(t, result.TopStrengths, 10)
	assert.Equal(t, "l", result.TopStrengths[0].Strength)
	assert.Equal(t, 2, result.TopStrengths[0].Count)
	// Remaining slots keep encounter order among the tied entries.
	assert.Equal(t, "a", result.TopStrengths[1].Strength)
	assert.Equal(t, "b", result.TopStrengths[2].Strength)
}

func TestRiskDistribution_ThreeFactorsIsHigh(t *testing.T) {
	agg := NewAggregator(nil)

	mk := func(code string) *student.Record {
		r := analyzedRecord(code)
		r.Grade = 50
		r.AttendanceRate = 70
		r.PerformanceTrend = student.TrendDeclining
		return r
	}

	result := agg.Aggregate([]*student.Record{mk("1"), mk("2")})

	assert.Equal(t, 2, result.RiskDistribution.High)
	assert.Equal(t, 0, result.RiskDistribution.Medium)
	assert.Equal(t, 0, result.RiskDistribution.Low)
}

func TestWellbeingIndex_DefaultsWithoutEmotionalData(t *testing.T) {
	agg := NewAggregator(nil)

	records := []*student.Record{analyzedRecord("1"), analyzedRecord("2")}

	result := agg.Aggregate(records)

	assert.Equal(t, EmotionalHealth{}, result.EmotionalHealth)
	assert.Equal(t, 50, result.WellbeingIndex)
}

func TestEmotionalHealth_Buckets(t *testing.T) {
	agg := NewAggregator(nil)

	happy := analyzedRecord("1")
	happy.EmotionalState = "Happy and motivated"
	stressed := analyzedRecord("2")
	stressed.EmotionalState = "לחוץ לפני מבחנים"
	calm := analyzedRecord("3")
	calm.EmotionalState = "calm"

	result := agg.Aggregate([]*student.Record{happy, stressed, calm})

	assert.Equal(t, 1, result.EmotionalHealth.Positive)
	assert.Equal(t, 1, result.EmotionalHealth.Concerning)
	assert.Equal(t, 1, result.EmotionalHealth.Neutral)
	// positive 100 + neutral 50 + concerning 0 over 3 students.
	assert.Equal(t, 50, result.WellbeingIndex)
}

func TestGradeDistribution_SkipsUnknownGrades(t *testing.T) {
	agg := NewAggregator(nil)

	graded := analyzedRecord("1")
	graded.Grade = 65
	ungraded := analyzedRecord("2")

	result := agg.Aggregate([]*student.Record{graded, ungraded})

	assert.Equal(t, 1, result.GradeDistribution["60-69"])
	assert.Equal(t, 0, result.GradeDistribution["Below 60"])
	assert.Equal(t, 65, result.AverageGrade)
}

func TestEffectiveGrade_FallsBackToLastAssessment(t *testing.T) {
	agg := NewAggregator(nil)

	r := analyzedRecord("1")
	r.LastAssessment = 88

	result := agg.Aggregate([]*student.Record{r})

	assert.Equal(t, 88, result.AverageGrade)
	assert.Equal(t, 1, result.PerformanceDistribution.Good)
}

func TestClassPerformance_AverageAndDominantTrend(t *testing.T) {
	agg := NewAggregator(nil)

	mk := func(code string, class string, grade int, trend student.PerformanceTrend) *student.Record {
		r := analyzedRecord(code)
		r.Class = student.Class(class)
		r.Grade = grade
		r.PerformanceTrend = trend
		return r
	}

	records := []*student.Record{
		mk("1", "ז1", 80, student.TrendImproving),
		mk("2", "ז1", 90, student.TrendImproving),
		mk("3", "ז1", 0, student.TrendDeclining),
		mk("4", "", 70, ""),
	}

	result := agg.Aggregate(records)

	perf := result.ClassPerformance["ז1"]
	assert.Equal(t, 85, perf.Average)
	assert.Equal(t, "improving", perf.Trend)

	unassigned := result.ClassPerformance[agg.Config().UnassignedClassLabel]
	assert.Equal(t, 70, unassigned.Average)
	assert.Equal(t, "stable", unassigned.Trend)

	assert.Equal(t, 3, result.ClassSizes["ז1"])
	assert.Equal(t, 1, result.ClassSizes[agg.Config().UnassignedClassLabel])
}

func TestStudentsAtRisk_CappedWithLabels(t *testing.T) {
	agg := NewAggregator(nil)

	var records []*student.Record
	for i := 0; i < 15; i++ {
		r := analyzedRecord(string(rune('a' + i)))
		r.Grade = 50
		records = append(records, r)
	}

	result := agg.Aggregate(records)

	require.Len(t, result.StudentsAtRisk, 10)
	assert.Equal(t, []string{"ציון נמוך"}, result.StudentsAtRisk[0].RiskFactors)
}

func TestRecentAnalyses_Windows(t *testing.T) {
	agg := NewAggregator(nil)
	now := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	recent := analyzedRecord("1")
	recent.LastAnalysisDate = now.AddDate(0, 0, -2)
	older := analyzedRecord("2")
	older.LastAnalysisDate = now.AddDate(0, 0, -20)
	ancient := analyzedRecord("3")
	ancient.LastAnalysisDate = now.AddDate(0, 0, -60)
	never := analyzedRecord("4")

	result := agg.AggregateAt([]*student.Record{recent, older, ancient, never}, now)

	assert.Equal(t, 1, result.RecentAnalyses)
	assert.Equal(t, 2, result.MonthlyAnalyses)
	assert.Equal(t, 1, result.AnalysisFrequency["2026-03"])
	assert.Equal(t, 1, result.AnalysisFrequency["2026-02"])
	assert.Equal(t, 1, result.AnalysisFrequency["2026-01"])
}

func TestEngagementScore_Adjustments(t *testing.T) {
	agg := NewAggregator(nil)

	engaged := analyzedRecord("1")
	engaged.ParticipationLevel = "High"
	engaged.AttendanceRate = 100
	engaged.CollaborationSkills = "Excellent"

	// 50 + 20 + (100-80)*0.5 + 15 = 95
	assert.Equal(t, 95, agg.engagementScore([]*student.Record{engaged}))

	disengaged := analyzedRecord("2")
	disengaged.ParticipationLevel = "low"
	disengaged.AttendanceRate = 60

	// 50 - 20 + (60-80)*0.5 = 20
	assert.Equal(t, 20, agg.engagementScore([]*student.Record{disengaged}))
}

func TestAcademicReadiness_CappedPerStudent(t *testing.T) {
	agg := NewAggregator(nil)

	r := analyzedRecord("1")
	r.Grade = 100
	r.CriticalThinking = "excellent"
	r.CreativityLevel = "high"

	// 60 + 20 + 20 = 100, already at the cap.
	assert.Equal(t, 100, agg.academicReadiness([]*student.Record{r}))
}

func TestSocialIntegration_Clamped(t *testing.T) {
	agg := NewAggregator(nil)

	r := analyzedRecord("1")
	r.CollaborationSkills = "excellent"
	r.ParticipationLevel = "high"

	// 50 + 30 + 20 = 100, clamp keeps it at 100.
	assert.Equal(t, 100, agg.socialIntegration([]*student.Record{r}))
}

func TestAggregate_DoesNotMutateInput(t *testing.T) {
	agg := NewAggregator(nil)

	r := analyzedRecord("1")
	r.KeyStrengths = []string{"Focus"}
	before := r.Clone()

	agg.Aggregate([]*student.Record{r})

	assert.Equal(t, before, r)
}
