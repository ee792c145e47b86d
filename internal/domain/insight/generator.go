package insight

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ishebot/insight-hub/internal/domain/analysis"
	"github.com/ishebot/insight-hub/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// RULE CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// RuleConfig holds the thresholds and display tables the generator runs on.
type RuleConfig struct {
	// DecliningThreshold - minimum count of declining students before the
	// class-level performance insight fires.
	DecliningThreshold int

	// NegativeEmotionalThreshold - minimum count of students in a negative
	// emotional state before the wellbeing insight fires.
	NegativeEmotionalThreshold int

	// WeakCollaborationThreshold - minimum count of weak collaborators
	// before the collaboration insight fires.
	WeakCollaborationThreshold int

	// NeedingSupportThreshold - minimum count of students with many support
	// areas before the class intervention recommendation fires.
	NeedingSupportThreshold int

	// SupportAreasCutoff - number of support areas strictly above which a
	// student counts as needing support.
	SupportAreasCutoff int

	// VisualLearnerShare - share of visual learners above which the
	// resources recommendation fires.
	VisualLearnerShare float64

	// DiverseStylesCutoff - number of distinct learning styles strictly
	// above which the diverse-teaching recommendation fires.
	DiverseStylesCutoff int

	// ExcellentGradeCutoff - grades strictly above it mark an excelling
	// student in class insights.
	ExcellentGradeCutoff int

	// LowGradeCutoff - grades strictly below it trigger the per-student
	// academic insight.
	LowGradeCutoff int

	// HighAchieverCutoff - grades strictly above it mark a high achiever
	// for seating.
	HighAchieverCutoff int

	// TopStrengthsCount - how many leading strengths the strengths insight
	// names.
	TopStrengthsCount int

	// RiskPolicy - policy for the composite risk insight.
	RiskPolicy analysis.RiskPolicy

	// NegativeEmotionalKeywords - emotional states counted as negative.
	NegativeEmotionalKeywords []string

	// WeakCollaborationKeywords - collaboration levels counted as weak.
	WeakCollaborationKeywords []string

	// AttentionKeywords - behavior descriptions indicating attention issues.
	AttentionKeywords []string

	// LearningStyleTranslations - Hebrew display names per learning style.
	LearningStyleTranslations map[string]string

	// LearningStyleActions - suggested teaching actions per learning style.
	LearningStyleActions map[string][]string

	// FallbackStyleActions - actions when a style has no dedicated entry.
	FallbackStyleActions []string
}

// DefaultRuleConfig returns the production rule configuration.
func DefaultRuleConfig() *RuleConfig {
	return &RuleConfig{
		DecliningThreshold:         5,
		NegativeEmotionalThreshold: 3,
		WeakCollaborationThreshold: 5,
		NeedingSupportThreshold:    5,
		SupportAreasCutoff:         2,
		VisualLearnerShare:         0.3,
		DiverseStylesCutoff:        2,
		ExcellentGradeCutoff:       90,
		LowGradeCutoff:             60,
		HighAchieverCutoff:         85,
		TopStrengthsCount:          3,

		RiskPolicy: analysis.StrictRiskPolicy,

		NegativeEmotionalKeywords: []string{"sad", "anxious", "stressed", "angry", "frustrated", "עצוב", "חרד", "לחוץ", "כועס", "מתוסכל"},
		WeakCollaborationKeywords: []string{"weak", "poor", "חלש"},
		AttentionKeywords:         []string{"ריכוז", "קשב"},

		LearningStyleTranslations: map[string]string{
			"visual":          "ויזואלית",
			"auditory":        "שמיעתית",
			"kinesthetic":     "תנועתית",
			"reading/writing": "קריאה וכתיבה",
			"social":          "חברתית",
		},
		LearningStyleActions: map[string][]string{
			"visual":      {"השתמש בתרשימים ודיאגרמות", "צבע מידע חשוב", "הראה סרטונים", "השתמש במפות מחשבה"},
			"auditory":    {"הסבר בעל פה", "עודד דיונים", "השתמש במוזיקה", "הקלט שיעורים"},
			"kinesthetic": {"שלב פעילויות מעשיות", "אפשר תנועה", "השתמש במודלים", "למידה דרך עשייה"},
			"social":      {"עבודה בקבוצות", "למידת עמיתים", "פרויקטים משותפים", "דיונים כיתתיים"},
		},
		FallbackStyleActions: []string{"התאם את ההוראה לסגנון הלמידה"},
	}
}

// translateStyle returns the Hebrew display name for a learning style,
// falling back to the raw value.
func (c *RuleConfig) translateStyle(style string) string {
	if t, ok := c.LearningStyleTranslations[strings.ToLower(style)]; ok {
		return t
	}
	return style
}

// styleActions returns the suggested actions for a learning style.
func (c *RuleConfig) styleActions(style string) []string {
	if actions, ok := c.LearningStyleActions[strings.ToLower(style)]; ok {
		return actions
	}
	return c.FallbackStyleActions
}

// isNegativeEmotionalState reports whether the state matches the negative
// keyword list.
func (c *RuleConfig) isNegativeEmotionalState(state string) bool {
	return containsAnyFold(state, c.NegativeEmotionalKeywords)
}

func containsAnyFold(value string, keywords []string) bool {
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

// ══════════════════════════════════════════════════════════════════════════════
// GENERATOR
// ══════════════════════════════════════════════════════════════════════════════

// Generator produces class-level and per-student insights and
// recommendations.
type Generator struct {
	cfg          *RuleConfig
	analysisCfg  *analysis.Config
	seatingRules []SeatingRule
}

// NewGenerator creates a generator. Nil configs fall back to defaults.
func NewGenerator(cfg *RuleConfig, analysisCfg *analysis.Config) *Generator {
	if cfg == nil {
		cfg = DefaultRuleConfig()
	}
	if analysisCfg == nil {
		analysisCfg = analysis.DefaultConfig()
	}
	return &Generator{
		cfg:          cfg,
		analysisCfg:  analysisCfg,
		seatingRules: DefaultSeatingRules(),
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Class insights
// ─────────────────────────────────────────────────────────────────────────────

// ClassInsights runs the class rule sequence over the full student list and
// returns the fired insights sorted by priority. Rule blocks run in a fixed
// order, so insertion order among equal priorities is deterministic.
func (g *Generator) ClassInsights(records []*student.Record) []Insight {
	analyzed := analyzedOnly(records)
	unanalyzed := len(records) - len(analyzed)

	insights := make([]Insight, 0, 8)

	if unanalyzed > 0 {
		codes := make([]string, 0, unanalyzed)
		for _, r := range records {
			if !r.IsAnalyzed() {
				codes = append(codes, string(r.Code))
			}
		}
		insights = append(insights, Insight{
			ID:               "coverage-1",
			Type:             TypeWarning,
			Category:         CategoryGeneral,
			Title:            fmt.Sprintf("%d תלמידים ממתינים לניתוח", unanalyzed),
			Description:      fmt.Sprintf("יש %d תלמידים שטרם נותחו. ניתוח מלא יספק תמונה מדויקת יותר של הכיתה.", unanalyzed),
			AffectedStudents: codes,
			Priority:         PriorityHigh,
			Actionable:       true,
			Actions:          []string{"לחץ על \"Smart AI\" לניתוח אוטומטי", "בקש מהתלמידים למלא את הטופס"},
		})
	}

	if dominant := dominantLearningStyle(analyzed); dominant != nil {
		name := g.cfg.translateStyle(dominant.style)
		insights = append(insights, Insight{
			ID:          "learning-1",
			Type:        TypeInfo,
			Category:    CategoryAcademic,
			Title:       fmt.Sprintf("רוב התלמידים לומדים בסגנון %s", name),
			Description: fmt.Sprintf("%d תלמידים (%d%%) מעדיפים למידה %s. התאם את שיטות ההוראה בהתאם.", dominant.count, dominant.percentage, name),
			Priority:    PriorityMedium,
			Actionable:  true,
			Actions:     g.cfg.styleActions(dominant.style),
		})
	}

	insights = append(insights, g.performanceInsights(analyzed)...)
	insights = append(insights, g.emotionalInsights(analyzed)...)
	insights = append(insights, g.riskInsights(analyzed)...)
	insights = append(insights, g.collaborationInsights(analyzed)...)
	insights = append(insights, g.strengthPatternInsights(analyzed)...)

	sort.SliceStable(insights, func(i, j int) bool {
		return insights[i].Priority.rank() < insights[j].Priority.rank()
	})
	return insights
}

func (g *Generator) performanceInsights(records []*student.Record) []Insight {
	var insights []Insight

	declining := filterCodes(records, func(r *student.Record) bool {
		return r.PerformanceTrend == student.TrendDeclining
	})
	if len(declining) > g.cfg.DecliningThreshold {
		insights = append(insights, Insight{
			ID:               "perf-1",
			Type:             TypeDanger,
			Category:         CategoryAcademic,
			Title:            fmt.Sprintf("%d תלמידים מראים ירידה בביצועים", len(declining)),
			Description:      "מגמת ירידה משמעותית בביצועים האקדמיים דורשת התערבות מיידית",
			AffectedStudents: declining,
			Priority:         PriorityHigh,
			Actionable:       true,
			Actions:          []string{"בדיקת גורמים לירידה", "תוכנית התערבות כיתתית", "מפגשי הורים"},
		})
	}

	excellent := filterCodes(records, func(r *student.Record) bool {
		return r.Grade > g.cfg.ExcellentGradeCutoff
	})
	if len(excellent) > 0 {
		insights = append(insights, Insight{
			ID:               "perf-2",
			Type:             TypeSuccess,
			Category:         CategoryAcademic,
			Title:            fmt.Sprintf("%d תלמידים מצטיינים בכיתה", len(excellent)),
			Description:      "תלמידים אלו יכולים לשמש כחונכים ולסייע לאחרים",
			AffectedStudents: excellent,
			Priority:         PriorityLow,
			Actionable:       true,
			Actions:          []string{"מינוי כחונכים", "העשרה נוספת", "אתגרים מתקדמים"},
		})
	}

	return insights
}

func (g *Generator) emotionalInsights(records []*student.Record) []Insight {
	negative := filterCodes(records, func(r *student.Record) bool {
		return g.cfg.isNegativeEmotionalState(r.EmotionalState)
	})
	if len(negative) <= g.cfg.NegativeEmotionalThreshold {
		return nil
	}

	return []Insight{{
		ID:               "emotion-1",
		Type:             TypeWarning,
		Category:         CategoryEmotional,
		Title:            fmt.Sprintf("%d תלמידים במצב רגשי קשה", len(negative)),
		Description:      "מספר גבוה של תלמידים חווים קושי רגשי",
		AffectedStudents: negative,
		Priority:         PriorityHigh,
		Actionable:       true,
		Actions:          []string{"סדנת חוסן נפשי", "מפגשים עם היועצת", "פעילויות לגיבוש כיתתי"},
	}}
}

func (g *Generator) riskInsights(records []*student.Record) []Insight {
	highRisk := filterCodes(records, func(r *student.Record) bool {
		level, _ := g.cfg.RiskPolicy.Assess(r, g.analysisCfg)
		return level == analysis.RiskHigh
	})
	if len(highRisk) == 0 {
		return nil
	}

	return []Insight{{
		ID:               "risk-1",
		Type:             TypeDanger,
		Category:         CategoryGeneral,
		Title:            fmt.Sprintf("%d תלמידים בסיכון גבוה", len(highRisk)),
		Description:      "תלמידים אלו דורשים התערבות מיידית ומקיפה",
		AffectedStudents: highRisk,
		Priority:         PriorityHigh,
		Actionable:       true,
		Actions:          []string{"ישיבת צוות דחופה", "תוכנית התערבות אישית", "שיתוף הורים", "מעקב יומי"},
	}}
}

func (g *Generator) collaborationInsights(records []*student.Record) []Insight {
	weak := filterCodes(records, func(r *student.Record) bool {
		return containsAnyFold(r.CollaborationSkills, g.cfg.WeakCollaborationKeywords)
	})
	if len(weak) <= g.cfg.WeakCollaborationThreshold {
		return nil
	}

	return []Insight{{
		ID:               "collab-1",
		Type:             TypeInfo,
		Category:         CategorySocial,
		Title:            "כישורי שיתוף פעולה דורשים חיזוק",
		Description:      fmt.Sprintf("%d תלמידים מתקשים בעבודה קבוצתית", len(weak)),
		AffectedStudents: weak,
		Priority:         PriorityMedium,
		Actionable:       true,
		Actions:          []string{"פרויקטים קבוצתיים מובנים", "למידת עמיתים", "משחקי תפקידים"},
	}}
}

func (g *Generator) strengthPatternInsights(records []*student.Record) []Insight {
	counts := make(map[string]int)
	var order []string
	for _, r := range records {
		for _, s := range r.KeyStrengths {
			if _, seen := counts[s]; !seen {
				order = append(order, s)
			}
			counts[s]++
		}
	}
	if len(order) == 0 {
		return nil
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > g.cfg.TopStrengthsCount {
		order = order[:g.cfg.TopStrengthsCount]
	}

	return []Insight{{
		ID:          "strength-1",
		Type:        TypeSuccess,
		Category:    CategoryGeneral,
		Title:       "חוזקות בולטות בכיתה",
		Description: fmt.Sprintf("החוזקות המובילות: %s", strings.Join(order, ", ")),
		Priority:    PriorityLow,
		Actionable:  true,
		Actions:     []string{"בנייה על חוזקות אלו בהוראה", "עידוד והדגשה", "פרויקטים מתאימים"},
	}}
}

// ─────────────────────────────────────────────────────────────────────────────
// Class recommendations
// ─────────────────────────────────────────────────────────────────────────────

// ClassRecommendations runs the recommendation rule sequence and returns the
// results sorted by urgency.
func (g *Generator) ClassRecommendations(records []*student.Record) []Recommendation {
	analyzed := analyzedOnly(records)

	recommendations := make([]Recommendation, 0, 4)
	recommendations = append(recommendations, g.teachingRecommendations(analyzed)...)
	recommendations = append(recommendations, g.groupingRecommendations(analyzed)...)
	recommendations = append(recommendations, g.interventionRecommendations(analyzed)...)
	recommendations = append(recommendations, g.resourceRecommendations(analyzed)...)

	sort.SliceStable(recommendations, func(i, j int) bool {
		return recommendations[i].Priority.rank() < recommendations[j].Priority.rank()
	})
	return recommendations
}

func (g *Generator) teachingRecommendations(records []*student.Record) []Recommendation {
	styles := make(map[string]struct{})
	for _, r := range records {
		if r.LearningStyle != "" {
			styles[strings.ToLower(r.LearningStyle)] = struct{}{}
		}
	}
	if len(styles) <= g.cfg.DiverseStylesCutoff {
		return nil
	}

	return []Recommendation{{
		ID:              "teach-1",
		Category:        RecTeaching,
		Title:           "גיוון בשיטות הוראה",
		Description:     "הכיתה כוללת סגנונות למידה מגוונים - נדרש גיוון בהוראה",
		ExpectedOutcome: "שיפור בהבנה ובמעורבות של כלל התלמידים",
		Implementation:  []string{"שילוב אמצעים ויזואליים", "הסברים מילוליים מפורטים", "פעילויות מעשיות", "עבודה בקבוצות קטנות"},
		Priority:        PriorityImmediate,
	}}
}

func (g *Generator) groupingRecommendations(records []*student.Record) []Recommendation {
	return []Recommendation{{
		ID:              "group-1",
		Category:        RecGrouping,
		Title:           "קבוצות למידה הטרוגניות",
		Description:     "יצירת קבוצות עם שילוב של רמות ויכולות שונות",
		ExpectedOutcome: "למידת עמיתים ושיפור בביצועים הכלליים",
		Implementation:  []string{"חלוקה לקבוצות של 4-5 תלמידים", "שילוב תלמיד מצטיין בכל קבוצה", "רוטציה חודשית של הקבוצות"},
		Priority:        PriorityShortTerm,
	}}
}

func (g *Generator) interventionRecommendations(records []*student.Record) []Recommendation {
	needing := filterCodes(records, func(r *student.Record) bool {
		return len(r.AreasNeedingSupport) > g.cfg.SupportAreasCutoff
	})
	if len(needing) <= g.cfg.NeedingSupportThreshold {
		return nil
	}

	return []Recommendation{{
		ID:              "intervention-1",
		Category:        RecIntervention,
		Title:           "תוכנית תמיכה כיתתית",
		Description:     fmt.Sprintf("%d תלמידים זקוקים לתמיכה נוספת", len(needing)),
		TargetStudents:  needing,
		ExpectedOutcome: "צמצום פערים וחיזוק בסיס הידע",
		Implementation:  []string{"שעת תגבור שבועית", "חומרי עזר מותאמים", "מעקב צמוד אחר התקדמות", "תקשורת עם הורים"},
		Priority:        PriorityImmediate,
		Evidence:        "מחקרים מראים ש-85% מהתלמידים המקבלים תמיכה מראים שיפור",
	}}
}

func (g *Generator) resourceRecommendations(records []*student.Record) []Recommendation {
	visual := 0
	for _, r := range records {
		if strings.EqualFold(r.LearningStyle, "visual") {
			visual++
		}
	}
	if len(records) == 0 || float64(visual) <= float64(len(records))*g.cfg.VisualLearnerShare {
		return nil
	}

	return []Recommendation{{
		ID:              "resource-1",
		Category:        RecResources,
		Title:           "הוספת אמצעי המחשה",
		Description:     fmt.Sprintf("%d תלמידים הם לומדים ויזואליים", visual),
		ExpectedOutcome: "שיפור בהבנה ובזכירה של החומר",
		Implementation:  []string{"מצגות צבעוניות", "תרשימים ודיאגרמות", "סרטוני הדגמה", "לוח אינטראקטיבי"},
		Priority:        PriorityShortTerm,
	}}
}

// ─────────────────────────────────────────────────────────────────────────────
// Per-student bundle
// ─────────────────────────────────────────────────────────────────────────────

// StudentBundle generates the personalized insight, recommendation and
// seating package for one student.
func (g *Generator) StudentBundle(r *student.Record) *StudentBundle {
	insights := make([]Insight, 0, 3)
	recommendations := make([]Recommendation, 0, 2)

	if r.Grade > 0 && r.Grade < g.cfg.LowGradeCutoff {
		insights = append(insights, Insight{
			ID:          fmt.Sprintf("%s-academic-1", r.Code),
			Type:        TypeDanger,
			Category:    CategoryAcademic,
			Title:       "ציונים נמוכים",
			Description: fmt.Sprintf("הציון הנוכחי (%d) מצביע על קשיים אקדמיים", r.Grade),
			Priority:    PriorityHigh,
			Actionable:  true,
			Actions:     []string{"תגבור אישי", "שיחה עם ההורים", "התאמת חומר הלימוד"},
		})
		recommendations = append(recommendations, Recommendation{
			ID:              fmt.Sprintf("%s-rec-1", r.Code),
			Category:        RecIntervention,
			Title:           "תוכנית תגבור אישית",
			Description:     "יש ליצור תוכנית תגבור מותאמת אישית",
			ExpectedOutcome: "שיפור של 15-20 נקודות בציון תוך חודשיים",
			Implementation:  []string{"זיהוי נושאים ספציפיים בהם יש קושי", "מפגש תגבור פעמיים בשבוע", "מעקב שבועי אחר התקדמות"},
			Priority:        PriorityImmediate,
		})
	}

	if r.LearningStyle != "" {
		name := g.cfg.translateStyle(r.LearningStyle)
		recommendations = append(recommendations, Recommendation{
			ID:              fmt.Sprintf("%s-rec-2", r.Code),
			Category:        RecTeaching,
			Title:           fmt.Sprintf("התאמת הוראה לסגנון למידה %s", name),
			Description:     fmt.Sprintf("התלמיד/ה לומד/ת בצורה הטובה ביותר דרך %s", name),
			ExpectedOutcome: "שיפור בהבנה ובמוטיבציה",
			Implementation:  g.cfg.styleActions(r.LearningStyle),
			Priority:        PriorityShortTerm,
		})
	}

	if g.cfg.isNegativeEmotionalState(r.EmotionalState) {
		insights = append(insights, Insight{
			ID:          fmt.Sprintf("%s-emotional-1", r.Code),
			Type:        TypeWarning,
			Category:    CategoryEmotional,
			Title:       "מצב רגשי דורש תשומת לב",
			Description: fmt.Sprintf("התלמיד/ה במצב רגשי של %s", r.EmotionalState),
			Priority:    PriorityHigh,
			Actionable:  true,
			Actions:     []string{"שיחה אישית", "הפניה ליועצת", "יצירת קשר עם ההורים"},
		})
	}

	if len(r.ChallengesBehaviors) > 0 {
		insights = append(insights, Insight{
			ID:          fmt.Sprintf("%s-behavior-1", r.Code),
			Type:        TypeInfo,
			Category:    CategoryBehavioral,
			Title:       "אתגרים התנהגותיים",
			Description: fmt.Sprintf("זוהו האתגרים הבאים: %s", strings.Join(r.ChallengesBehaviors, ", ")),
			Priority:    PriorityMedium,
			Actionable:  true,
			Actions:     []string{"הצבת גבולות ברורים", "חיזוק חיובי", "שיתוף פעולה עם ההורים"},
		})
	}

	return &StudentBundle{
		StudentCode:           string(r.Code),
		StudentName:           r.Name,
		Insights:              insights,
		Recommendations:       recommendations,
		SeatingRecommendation: RecommendSeating(r, g.seatingRules, g.cfg),
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

func analyzedOnly(records []*student.Record) []*student.Record {
	out := make([]*student.Record, 0, len(records))
	for _, r := range records {
		if r.IsAnalyzed() {
			out = append(out, r)
		}
	}
	return out
}

func filterCodes(records []*student.Record, match func(*student.Record) bool) []string {
	var codes []string
	for _, r := range records {
		if match(r) {
			codes = append(codes, string(r.Code))
		}
	}
	return codes
}

type dominantStyle struct {
	style      string
	count      int
	percentage int
}

// dominantLearningStyle finds the most common learning style among the
// analyzed students. Ties break on first appearance.
func dominantLearningStyle(records []*student.Record) *dominantStyle {
	counts := make(map[string]int)
	var order []string
	for _, r := range records {
		if r.LearningStyle == "" {
			continue
		}
		style := strings.ToLower(r.LearningStyle)
		if _, seen := counts[style]; !seen {
			order = append(order, style)
		}
		counts[style]++
	}
	if len(order) == 0 {
		return nil
	}

	best := order[0]
	for _, style := range order[1:] {
		if counts[style] > counts[best] {
			best = style
		}
	}

	return &dominantStyle{
		style:      best,
		count:      counts[best],
		percentage: int(math.Round(float64(counts[best]) / float64(len(records)) * 100)),
	}
}
