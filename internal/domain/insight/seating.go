package insight

import (
	"strings"

	"github.com/ishebot/insight-hub/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// SEATING RULES
// An explicit priority-ordered rule table. Every matching rule contributes
// its reason; the highest-priority match decides the position. The table is
// ordered by descending priority so evaluation is a single pass.
// ══════════════════════════════════════════════════════════════════════════════

// SeatingRule is one row of the seating rule table.
type SeatingRule struct {
	// Name identifies the rule for tests and logs.
	Name string

	// Priority - higher wins when several rules match.
	Priority int

	// Position assigned when this rule is the highest-priority match.
	Position string

	// Reason shown to the teacher when the rule matches.
	Reason string

	// Matches reports whether the rule applies to the student.
	Matches func(r *student.Record, cfg *RuleConfig) bool
}

// DefaultSeatingRules returns the production seating rule table.
func DefaultSeatingRules() []SeatingRule {
	return []SeatingRule{
		{
			Name:     "attention_issues",
			Priority: 50,
			Position: "front",
			Reason:   "קשיי קשב וריכוז - ישיבה קדמית תסייע",
			Matches: func(r *student.Record, cfg *RuleConfig) bool {
				for _, b := range r.ChallengesBehaviors {
					if containsAnyOf(b, cfg.AttentionKeywords) {
						return true
					}
				}
				return false
			},
		},
		{
			Name:     "needs_support",
			Priority: 40,
			Position: "supported",
			Reason:   "זקוק לתמיכה - למקם ליד תלמידים תומכים",
			Matches: func(r *student.Record, cfg *RuleConfig) bool {
				return len(r.AreasNeedingSupport) > cfg.SupportAreasCutoff
			},
		},
		{
			Name:     "visual_learner",
			Priority: 30,
			Position: "front-center",
			Reason:   "לומד ויזואלי - זקוק לראות את הלוח בבירור",
			Matches: func(r *student.Record, cfg *RuleConfig) bool {
				return strings.EqualFold(r.LearningStyle, "visual")
			},
		},
		{
			Name:     "social_learner",
			Priority: 20,
			Position: "group",
			Reason:   "לומד חברתי - עדיף בקבוצה",
			Matches: func(r *student.Record, cfg *RuleConfig) bool {
				return strings.EqualFold(r.LearningStyle, "social")
			},
		},
		{
			Name:     "high_achiever",
			Priority: 10,
			Position: "mixed",
			Reason:   "תלמיד מצטיין - יכול לסייע לאחרים",
			Matches: func(r *student.Record, cfg *RuleConfig) bool {
				return r.Grade > cfg.HighAchieverCutoff
			},
		},
	}
}

// RecommendSeating evaluates the rule table for one student. With no
// matching rule the default middle placement is returned with an empty
// reason list.
func RecommendSeating(r *student.Record, rules []SeatingRule, cfg *RuleConfig) *SeatingRecommendation {
	rec := &SeatingRecommendation{
		Position:      "middle",
		NearStudents:  []string{},
		AvoidStudents: []string{},
	}

	topPriority := -1
	for _, rule := range rules {
		if !rule.Matches(r, cfg) {
			continue
		}
		rec.Reasons = append(rec.Reasons, rule.Reason)
		if rule.Priority > topPriority {
			topPriority = rule.Priority
			rec.Position = rule.Position
			rec.Reason = rule.Reason
		}
	}

	return rec
}

func containsAnyOf(value string, keywords []string) bool {
	if value == "" {
		return false
	}
	for _, kw := range keywords {
		if kw != "" && strings.Contains(value, kw) {
			return true
		}
	}
	return false
}
