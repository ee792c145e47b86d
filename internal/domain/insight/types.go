// Package insight turns student data into human-readable observations and
// suggested actions for the teacher dashboard. Generation is rule-driven:
// a fixed sequence of threshold checks over the class, each contributing at
// most one insight, followed by a stable sort on priority. Display strings
// are Hebrew because that is the language of the dashboard.
package insight

// ══════════════════════════════════════════════════════════════════════════════
// TYPES
// ══════════════════════════════════════════════════════════════════════════════

// Type classifies the tone of an insight.
type Type string

const (
	TypeSuccess        Type = "success"
	TypeWarning        Type = "warning"
	TypeDanger         Type = "danger"
	TypeInfo           Type = "info"
	TypeRecommendation Type = "recommendation"
)

// Category groups insights by subject area.
type Category string

const (
	CategoryAcademic   Category = "academic"
	CategoryBehavioral Category = "behavioral"
	CategoryEmotional  Category = "emotional"
	CategorySocial     Category = "social"
	CategoryGeneral    Category = "general"
)

// Priority orders insights for display.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// rank maps a priority to its sort position, lower first.
func (p Priority) rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	default:
		return 2
	}
}

// Insight is one generated observation about the class or a student.
type Insight struct {
	ID               string   `json:"id"`
	Type             Type     `json:"type"`
	Category         Category `json:"category"`
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	AffectedStudents []string `json:"affectedStudents,omitempty"`
	Priority         Priority `json:"priority"`
	Actionable       bool     `json:"actionable"`
	Actions          []string `json:"actions,omitempty"`
}

// RecommendationCategory groups recommendations by the kind of action.
type RecommendationCategory string

const (
	RecTeaching     RecommendationCategory = "teaching"
	RecSeating      RecommendationCategory = "seating"
	RecGrouping     RecommendationCategory = "grouping"
	RecIntervention RecommendationCategory = "intervention"
	RecResources    RecommendationCategory = "resources"
)

// RecommendationPriority orders recommendations by urgency.
type RecommendationPriority string

const (
	PriorityImmediate RecommendationPriority = "immediate"
	PriorityShortTerm RecommendationPriority = "short-term"
	PriorityLongTerm  RecommendationPriority = "long-term"
)

func (p RecommendationPriority) rank() int {
	switch p {
	case PriorityImmediate:
		return 0
	case PriorityShortTerm:
		return 1
	default:
		return 2
	}
}

// Recommendation is one suggested action with its expected outcome and
// concrete implementation steps.
type Recommendation struct {
	ID              string                 `json:"id"`
	Category        RecommendationCategory `json:"category"`
	Title           string                 `json:"title"`
	Description     string                 `json:"description"`
	TargetStudents  []string               `json:"targetStudents,omitempty"`
	ExpectedOutcome string                 `json:"expectedOutcome"`
	Implementation  []string               `json:"implementation"`
	Priority        RecommendationPriority `json:"priority"`
	Evidence        string                 `json:"evidence,omitempty"`
}

// SeatingRecommendation suggests where a student should sit.
// Position comes from the highest-priority matching rule; Reasons keeps the
// reasoning of every rule that matched, highest priority first, with Reason
// duplicating the top entry for older dashboard clients.
type SeatingRecommendation struct {
	Position      string   `json:"position"`
	NearStudents  []string `json:"nearStudents"`
	AvoidStudents []string `json:"avoidStudents"`
	Reason        string   `json:"reason"`
	Reasons       []string `json:"reasons"`
}

// StudentBundle is the per-student package of insights, recommendations and
// the seating suggestion.
type StudentBundle struct {
	StudentCode           string                 `json:"studentCode"`
	StudentName           string                 `json:"studentName"`
	Insights              []Insight              `json:"insights"`
	Recommendations       []Recommendation       `json:"recommendations"`
	SeatingRecommendation *SeatingRecommendation `json:"seatingRecommendation,omitempty"`
}
