package analysis

import "strings"

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// Every threshold, keyword list and translation table the pipeline relies on
// lives here. Tests override individual fields instead of editing source.
// ══════════════════════════════════════════════════════════════════════════════

// Config holds the tunable parameters of the aggregation pipeline.
type Config struct {
	// ─────────────────────────────────────────────────────────────────────────
	// Grade bands
	// ─────────────────────────────────────────────────────────────────────────

	// GradeExcellent - lower bound of the "excellent" band.
	GradeExcellent int

	// GradeGood - lower bound of the "good" band.
	GradeGood int

	// GradeAverage - lower bound of the "average" band.
	GradeAverage int

	// GradePassing - lower bound of the "60-69" band. Grades below it
	// count as needing support.
	GradePassing int

	// HighAchieverCutoff - grades strictly above it mark a high achiever.
	HighAchieverCutoff int

	// ─────────────────────────────────────────────────────────────────────────
	// Risk factors
	// ─────────────────────────────────────────────────────────────────────────

	// LowAttendanceCutoff - attendance strictly below it is a risk factor.
	LowAttendanceCutoff float64

	// RiskPolicy - the policy applied by the aggregator when building the
	// class risk distribution.
	RiskPolicy RiskPolicy

	// RiskFactorLabels - display labels for risk factor keys, used in the
	// students-at-risk report. Missing keys fall back to the raw key.
	RiskFactorLabels map[string]string

	// ─────────────────────────────────────────────────────────────────────────
	// Keyword sets
	// Free-text fields are matched by lowercase substring. Hebrew variants
	// sit next to the English ones because the upstream forms are bilingual.
	// ─────────────────────────────────────────────────────────────────────────

	// PositiveEmotionalKeywords - emotional states counted as positive.
	PositiveEmotionalKeywords []string

	// ConcerningEmotionalKeywords - emotional states counted as concerning.
	ConcerningEmotionalKeywords []string

	// HighParticipationKeywords - participation levels counted as high.
	HighParticipationKeywords []string

	// LowParticipationKeywords - participation levels counted as low.
	LowParticipationKeywords []string

	// CollabExcellentKeywords / CollabGoodKeywords / CollabDevelopingKeywords -
	// collaboration skill buckets. Anything unmatched counts as needing support.
	CollabExcellentKeywords  []string
	CollabGoodKeywords       []string
	CollabDevelopingKeywords []string

	// CreativityHighKeywords / CreativityMediumKeywords - creativity buckets
	// used by the academic readiness index.
	CreativityHighKeywords   []string
	CreativityMediumKeywords []string

	// ─────────────────────────────────────────────────────────────────────────
	// Presentation
	// ─────────────────────────────────────────────────────────────────────────

	// CommonLearningStyles - styles always present in the distribution,
	// even with a zero count, so charts keep a stable axis.
	CommonLearningStyles []string

	// UnassignedClassLabel - bucket for students without a class label.
	UnassignedClassLabel string

	// TopN - length cap for the top strengths and common challenges lists
	// and for the students-at-risk report.
	TopN int

	// ─────────────────────────────────────────────────────────────────────────
	// Time windows
	// ─────────────────────────────────────────────────────────────────────────

	// RecentWindowDays - window for the "recent analyses" counter.
	RecentWindowDays int

	// MonthlyWindowDays - window for the "monthly analyses" counter.
	MonthlyWindowDays int
}

// DefaultConfig returns the production configuration. The literals mirror
// the values the dashboard has always used.
func DefaultConfig() *Config {
	return &Config{
		GradeExcellent:     90,
		GradeGood:          80,
		GradeAverage:       70,
		GradePassing:       60,
		HighAchieverCutoff: 85,

		LowAttendanceCutoff: 80,
		RiskPolicy:          LenientRiskPolicy,
		RiskFactorLabels: map[string]string{
			FactorLowGrades:         "ציון נמוך",
			FactorDecliningTrend:    "ירידה בביצועים",
			FactorLowParticipation:  "השתתפות נמוכה",
			FactorLowAttendance:     "נוכחות נמוכה",
			FactorEmotionalConcerns: "מצב רגשי מדאיג",
		},

		PositiveEmotionalKeywords:   []string{"happy", "confident", "motivated", "excited", "שמח", "בטוח", "מוטיבציה"},
		ConcerningEmotionalKeywords: []string{"anxious", "stressed", "sad", "frustrated", "angry", "חרד", "לחוץ", "עצוב", "מתוסכל", "כועס"},

		HighParticipationKeywords: []string{"high", "גבוה"},
		LowParticipationKeywords:  []string{"low", "נמוך"},

		CollabExcellentKeywords:  []string{"excellent", "מצוין"},
		CollabGoodKeywords:       []string{"good", "טוב"},
		CollabDevelopingKeywords: []string{"developing", "מתפתח"},

		CreativityHighKeywords:   []string{"high", "גבוה"},
		CreativityMediumKeywords: []string{"medium", "בינוני"},

		CommonLearningStyles: []string{"visual", "auditory", "kinesthetic", "reading/writing"},
		UnassignedClassLabel: "לא מוגדר",
		TopN:                 10,

		RecentWindowDays:  7,
		MonthlyWindowDays: 30,
	}
}

// containsAny reports whether the lowercased value contains any keyword.
func containsAny(value string, keywords []string) bool {
	if value == "" {
		return false
	}
	lower := strings.ToLower(value)
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
