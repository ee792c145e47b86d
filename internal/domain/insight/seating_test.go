package insight

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ishebot/insight-hub/internal/domain/student"
)

func recommendFor(r *student.Record) *SeatingRecommendation {
	return RecommendSeating(r, DefaultSeatingRules(), DefaultRuleConfig())
}

func TestRecommendSeating_DefaultMiddle(t *testing.T) {
	rec := recommendFor(&student.Record{Code: "1", Name: "a"})

	assert.Equal(t, "middle", rec.Position)
	assert.Empty(t, rec.Reason)
	assert.Empty(t, rec.Reasons)
}

func TestRecommendSeating_AttentionIssues(t *testing.T) {
	r := &student.Record{
		Code:                "1",
		Name:                "a",
		ChallengesBehaviors: []string{"קשיי ריכוז בשיעורים"},
	}

	rec := recommendFor(r)

	assert.Equal(t, "front", rec.Position)
	assert.Contains(t, rec.Reason, "קשיי קשב וריכוז")
}

func TestRecommendSeating_HighAchiever(t *testing.T) {
	r := &student.Record{Code: "1", Name: "a", Grade: 92}

	rec := recommendFor(r)

	assert.Equal(t, "mixed", rec.Position)
	assert.Contains(t, rec.Reason, "מצטיין")
}

func TestRecommendSeating_BoundaryGrade(t *testing.T) {
	// 85 is not strictly above the cutoff.
	r := &student.Record{Code: "1", Name: "a", Grade: 85}

	rec := recommendFor(r)

	assert.Equal(t, "middle", rec.Position)
}

func TestRecommendSeating_VisualLearner(t *testing.T) {
	r := &student.Record{Code: "1", Name: "a", LearningStyle: "visual"}

	rec := recommendFor(r)

	assert.Equal(t, "front-center", rec.Position)
}

func TestRecommendSeating_SocialLearner(t *testing.T) {
	r := &student.Record{Code: "1", Name: "a", LearningStyle: "social"}

	rec := recommendFor(r)

	assert.Equal(t, "group", rec.Position)
}

func TestRecommendSeating_AllMatchingReasonsKept(t *testing.T) {
	// A high achiever with attention issues who also needs support:
	// attention wins the position, but every matching reason survives.
	r := &student.Record{
		Code:                "1",
		Name:                "a",
		Grade:               95,
		ChallengesBehaviors: []string{"קשב"},
		AreasNeedingSupport: []string{"a", "b", "c"},
	}

	rec := recommendFor(r)

	assert.Equal(t, "front", rec.Position)
	require.Len(t, rec.Reasons, 3)
	assert.Equal(t, rec.Reasons[0], rec.Reason)
	assert.Contains(t, rec.Reasons[1], "זקוק לתמיכה")
	assert.Contains(t, rec.Reasons[2], "מצטיין")
}

func TestRecommendSeating_PriorityOverridesTableOrder(t *testing.T) {
	// A rule table listed lowest-priority first must still pick the
	// highest-priority position.
	rules := []SeatingRule{
		{
			Name: "low", Priority: 1, Position: "back", Reason: "low",
			Matches: func(*student.Record, *RuleConfig) bool { return true },
		},
		{
			Name: "high", Priority: 9, Position: "front", Reason: "high",
			Matches: func(*student.Record, *RuleConfig) bool { return true },
		},
	}

	rec := RecommendSeating(&student.Record{Code: "1", Name: "a"}, rules, DefaultRuleConfig())

	assert.Equal(t, "front", rec.Position)
	assert.Equal(t, "high", rec.Reason)
	assert.Equal(t, []string{"low", "high"}, rec.Reasons)
}
