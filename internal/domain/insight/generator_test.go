package insight

import (
	"fmt"
	"testing"

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

func findInsight(insights []Insight, id string) *Insight {
	for i := range insights {
		if insights[i].ID == id {
			return &insights[i]
		}
	}
	return nil
}

func TestClassInsights_CoverageGap(t *testing.T) {
	g := NewGenerator(nil, nil)

	records := []*student.Record{
		analyzedRecord("1"),
		{Code: "2", Name: "b", NeedsAnalysis: true},
		{Code: "3", Name: "c", NeedsAnalysis: true},
	}

	insights := g.ClassInsights(records)

	coverage := findInsight(insights, "coverage-1")
	require.NotNil(t, coverage)
	assert.Equal(t, TypeWarning, coverage.Type)
	assert.Equal(t, PriorityHigh, coverage.Priority)
	assert.ElementsMatch(t, []string{"2", "3"}, coverage.AffectedStudents)
}

func TestClassInsights_DominantLearningStyle(t *testing.T) {
	g := NewGenerator(nil, nil)

	var records []*student.Record
	for i := 0; i < 3; i++ {
		r := analyzedRecord(fmt.Sprintf("v%d", i))
		r.LearningStyle = "visual"
		records = append(records, r)
	}
	auditory := analyzedRecord("a1")
	auditory.LearningStyle = "auditory"
	records = append(records, auditory)

	insights := g.ClassInsights(records)

	learning := findInsight(insights, "learning-1")
	require.NotNil(t, learning)
	assert.Contains(t, learning.Title, "ויזואלית")
	assert.Contains(t, learning.Description, "75%")
}

func TestDominantLearningStyle_PercentageRoundsToNearest(t *testing.T) {
	var records []*student.Record
	for i := 0; i < 2; i++ {
		r := analyzedRecord(fmt.Sprintf("v%d", i))
		r.LearningStyle = "visual"
		records = append(records, r)
	}
	auditory := analyzedRecord("a1")
	auditory.LearningStyle = "auditory"
	records = append(records, auditory)

	dom := dominantLearningStyle(records)
	require.NotNil(t, dom)
	assert.Equal(t, "visual", dom.style)
	assert.Equal(t, 2, dom.count)

	// 2 of 3 is 66.67%, reported rounded to the nearest whole percent.
	assert.Equal(t, 67, dom.percentage)
}

func TestClassInsights_DecliningThreshold(t *testing.T) {
	g := NewGenerator(nil, nil)

	mk := func(n int, declining bool) []*student.Record {
		var records []*student.Record
		for i := 0; i < n; i++ {
			r := analyzedRecord(fmt.Sprintf("d%d", i))
			if declining {
				r.PerformanceTrend = student.TrendDeclining
			}
			records = append(records, r)
		}
		return records
	}

	// Exactly at the threshold: no insight.
	insights := g.ClassInsights(mk(5, true))
	assert.Nil(t, findInsight(insights, "perf-1"))

	// One above: insight fires with every affected code.
	insights = g.ClassInsights(mk(6, true))
	perf := findInsight(insights, "perf-1")
	require.NotNil(t, perf)
	assert.Len(t, perf.AffectedStudents, 6)
	assert.Equal(t, TypeDanger, perf.Type)
}

func TestClassInsights_HighRiskUsesStrictPolicy(t *testing.T) {
	g := NewGenerator(nil, nil)

	// Two matched factors: strict policy flags high, lenient would not.
	r := analyzedRecord("1")
	r.Grade = 50
	r.PerformanceTrend = student.TrendDeclining

	insights := g.ClassInsights([]*student.Record{r})

	risk := findInsight(insights, "risk-1")
	require.NotNil(t, risk)
	assert.Equal(t, []string{"1"}, risk.AffectedStudents)
}

func TestClassInsights_SortedByPriority(t *testing.T) {
	g := NewGenerator(nil, nil)

	// Mix of rule outcomes: unanalyzed (high), dominant style (medium),
	// excellent students (low).
	records := []*student.Record{
		{Code: "u", Name: "u", NeedsAnalysis: true},
	}
	for i := 0; i < 3; i++ {
		r := analyzedRecord(fmt.Sprintf("v%d", i))
		r.LearningStyle = "visual"
		r.Grade = 95
		records = append(records, r)
	}

	insights := g.ClassInsights(records)

	require.NotEmpty(t, insights)
	lastRank := -1
	for _, ins := range insights {
		rank := ins.Priority.rank()
		assert.GreaterOrEqual(t, rank, lastRank, "insight %s out of order", ins.ID)
		lastRank = rank
	}
	assert.Equal(t, PriorityHigh, insights[0].Priority)
}

func TestClassRecommendations_GroupingAlwaysPresent(t *testing.T) {
	g := NewGenerator(nil, nil)

	recs := g.ClassRecommendations([]*student.Record{analyzedRecord("1")})

	require.Len(t, recs, 1)
	assert.Equal(t, RecGrouping, recs[0].Category)
	assert.Equal(t, PriorityShortTerm, recs[0].Priority)
}

func TestClassRecommendations_VisualResources(t *testing.T) {
	g := NewGenerator(nil, nil)

	var records []*student.Record
	for i := 0; i < 4; i++ {
		r := analyzedRecord(fmt.Sprintf("v%d", i))
		r.LearningStyle = "visual"
		records = append(records, r)
	}
	for i := 0; i < 6; i++ {
		records = append(records, analyzedRecord(fmt.Sprintf("o%d", i)))
	}

	recs := g.ClassRecommendations(records)

	var resource *Recommendation
	for i := range recs {
		if recs[i].Category == RecResources {
			resource = &recs[i]
		}
	}
	require.NotNil(t, resource)
	assert.Contains(t, resource.Description, "4")
}

func TestClassRecommendations_SortedByUrgency(t *testing.T) {
	g := NewGenerator(nil, nil)

	var records []*student.Record
	styles := []string{"visual", "auditory", "kinesthetic"}
	for i := 0; i < 6; i++ {
		r := analyzedRecord(fmt.Sprintf("s%d", i))
		r.LearningStyle = styles[i%3]
		r.AreasNeedingSupport = []string{"a", "b", "c"}
		records = append(records, r)
	}

	recs := g.ClassRecommendations(records)

	require.GreaterOrEqual(t, len(recs), 3)
	assert.Equal(t, PriorityImmediate, recs[0].Priority)
	lastRank := -1
	for _, rec := range recs {
		rank := rec.Priority.rank()
		assert.GreaterOrEqual(t, rank, lastRank)
		lastRank = rank
	}
}

func TestStudentBundle_LowGrade(t *testing.T) {
	g := NewGenerator(nil, nil)

	r := analyzedRecord("101")
	r.Grade = 45

	bundle := g.StudentBundle(r)

	require.Len(t, bundle.Insights, 1)
	assert.Equal(t, "101-academic-1", bundle.Insights[0].ID)
	assert.Equal(t, TypeDanger, bundle.Insights[0].Type)
	assert.Contains(t, bundle.Insights[0].Description, "45")

	require.Len(t, bundle.Recommendations, 1)
	assert.Equal(t, RecIntervention, bundle.Recommendations[0].Category)
	assert.Equal(t, PriorityImmediate, bundle.Recommendations[0].Priority)
}

func TestStudentBundle_UnknownGradeIsNotLow(t *testing.T) {
	g := NewGenerator(nil, nil)

	bundle := g.StudentBundle(analyzedRecord("1"))

	assert.Empty(t, bundle.Insights)
	assert.Empty(t, bundle.Recommendations)
}

func TestStudentBundle_LearningStyleRecommendation(t *testing.T) {
	g := NewGenerator(nil, nil)

	r := analyzedRecord("1")
	r.LearningStyle = "auditory"

	bundle := g.StudentBundle(r)

	require.Len(t, bundle.Recommendations, 1)
	rec := bundle.Recommendations[0]
	assert.Equal(t, RecTeaching, rec.Category)
	assert.Contains(t, rec.Title, "שמיעתית")
	assert.Equal(t, g.cfg.LearningStyleActions["auditory"], rec.Implementation)
}

func TestStudentBundle_EmotionalAndBehavioral(t *testing.T) {
	g := NewGenerator(nil, nil)

	r := analyzedRecord("7")
	r.EmotionalState = "מתוסכל"
	r.ChallengesBehaviors = []string{"הפרעות בשיעור"}

	bundle := g.StudentBundle(r)

	require.Len(t, bundle.Insights, 2)
	assert.Equal(t, "7-emotional-1", bundle.Insights[0].ID)
	assert.Equal(t, PriorityHigh, bundle.Insights[0].Priority)
	assert.Equal(t, "7-behavior-1", bundle.Insights[1].ID)
	assert.Contains(t, bundle.Insights[1].Description, "הפרעות בשיעור")
}

func TestStudentBundle_IncludesSeating(t *testing.T) {
	g := NewGenerator(nil, nil)

	r := analyzedRecord("1")
	r.LearningStyle = "visual"

	bundle := g.StudentBundle(r)

	require.NotNil(t, bundle.SeatingRecommendation)
	assert.Equal(t, "front-center", bundle.SeatingRecommendation.Position)
}
