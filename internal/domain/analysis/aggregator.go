// Package analysis implements the student analysis pipeline: risk
// classification, class-wide aggregation into a statistics snapshot, and the
// configuration both operate on.
//
// Everything here is pure computation. The aggregator takes a full student
// list as a value and returns a full snapshot as a value, with no I/O and no
// mutation of its input. Repeated calls over the same list at the same
// instant produce identical results.
package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/ishebot/insight-hub/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// AGGREGATED ANALYSIS
// Flat value object of independently computed statistics. Field names match
// the dashboard's JSON contract.
// ══════════════════════════════════════════════════════════════════════════════

// ClassPerformance holds per-class averages.
type ClassPerformance struct {
	Average int    `json:"average"`
	Trend   string `json:"trend"`
}

// EmotionalHealth buckets emotional states into three categories.
type EmotionalHealth struct {
	Positive   int `json:"positive"`
	Neutral    int `json:"neutral"`
	Concerning int `json:"concerning"`
}

// PerformanceDistribution is the grade-band histogram.
type PerformanceDistribution struct {
	Excellent    int `json:"excellent"`
	Good         int `json:"good"`
	Average      int `json:"average"`
	NeedsSupport int `json:"needsSupport"`
}

// TrendDistribution counts students per performance trend.
type TrendDistribution struct {
	Improving int `json:"improving"`
	Stable    int `json:"stable"`
	Declining int `json:"declining"`
}

// RankedStrength is one entry of the top strengths list.
type RankedStrength struct {
	Strength   string `json:"strength"`
	Count      int    `json:"count"`
	Percentage int    `json:"percentage"`
}

// RankedChallenge is one entry of the common challenges list.
type RankedChallenge struct {
	Challenge  string `json:"challenge"`
	Count      int    `json:"count"`
	Percentage int    `json:"percentage"`
}

// ParticipationLevels counts students per participation bucket.
type ParticipationLevels struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// CollaborationDistribution counts students per collaboration bucket.
type CollaborationDistribution struct {
	Excellent    int `json:"excellent"`
	Good         int `json:"good"`
	Developing   int `json:"developing"`
	NeedsSupport int `json:"needsSupport"`
}

// RiskDistribution counts students per risk level.
type RiskDistribution struct {
	Low    int `json:"low"`
	Medium int `json:"medium"`
	High   int `json:"high"`
}

// AtRiskStudent names one student with the risk factors that matched.
type AtRiskStudent struct {
	Code        string   `json:"code"`
	Name        string   `json:"name"`
	RiskFactors []string `json:"riskFactors"`
}

// ClassComparison is one row of the class comparison table.
type ClassComparison struct {
	Class  string `json:"class"`
	Metric string `json:"metric"`
	Value  int    `json:"value"`
}

// PeriodComparison is one row of the period comparison table.
type PeriodComparison struct {
	Period string `json:"period"`
	Metric string `json:"metric"`
	Value  int    `json:"value"`
}

// AggregatedAnalysis is the full statistics snapshot for one student list.
type AggregatedAnalysis struct {
	// Core statistics.
	TotalStudents          int     `json:"totalStudents"`
	AnalyzedStudents       int     `json:"analyzedStudents"`
	UnanalyzedStudents     int     `json:"unanalyzedStudents"`
	AnalysisCompletionRate float64 `json:"analysisCompletionRate"`

	// Learning styles.
	LearningStyles           map[string]int `json:"learningStyles"`
	LearningStylePercentages map[string]int `json:"learningStylePercentages"`

	// Class distribution.
	ClassSizes       map[string]int              `json:"classSizes"`
	ClassPerformance map[string]ClassPerformance `json:"classPerformance"`

	// Emotional states.
	EmotionalStates map[string]int  `json:"emotionalStates"`
	EmotionalHealth EmotionalHealth `json:"emotionalHealth"`

	// Academic performance.
	PerformanceDistribution PerformanceDistribution `json:"performanceDistribution"`
	AverageGrade            int                     `json:"averageGrade"`
	GradeDistribution       map[string]int          `json:"gradeDistribution"`
	PerformanceTrends       TrendDistribution       `json:"performanceTrends"`

	// Strengths and challenges.
	TopStrengths          []RankedStrength  `json:"topStrengths"`
	CommonChallenges      []RankedChallenge `json:"commonChallenges"`
	StrengthsDistribution map[int]int       `json:"strengthsDistribution"`

	// Behavioral insights.
	BehavioralPatterns        map[string]int            `json:"behavioralPatterns"`
	ParticipationLevels       ParticipationLevels       `json:"participationLevels"`
	CollaborationDistribution CollaborationDistribution `json:"collaborationDistribution"`

	// Risk assessment.
	RiskDistribution RiskDistribution `json:"riskDistribution"`
	StudentsAtRisk   []AtRiskStudent  `json:"studentsAtRisk"`

	// Intervention effectiveness.
	InterventionTypes   map[string]int `json:"interventionTypes"`
	InterventionSuccess map[string]int `json:"interventionSuccess"`

	// Time-based analysis.
	RecentAnalyses    int            `json:"recentAnalyses"`
	MonthlyAnalyses   int            `json:"monthlyAnalyses"`
	AnalysisFrequency map[string]int `json:"analysisFrequency"`

	// Composite indices.
	EngagementScore   int `json:"engagementScore"`
	WellbeingIndex    int `json:"wellbeingIndex"`
	AcademicReadiness int `json:"academicReadiness"`
	SocialIntegration int `json:"socialIntegration"`

	// Comparative analysis.
	ClassComparisons  []ClassComparison  `json:"classComparisons"`
	PeriodComparisons []PeriodComparison `json:"periodComparisons"`

	// GeneratedAt is the reference time the snapshot was computed against.
	GeneratedAt time.Time `json:"generatedAt"`
}

// ══════════════════════════════════════════════════════════════════════════════
// AGGREGATOR
// ══════════════════════════════════════════════════════════════════════════════

// Aggregator computes an AggregatedAnalysis snapshot from a student list.
type Aggregator struct {
	cfg *Config
	now func() time.Time
}

// NewAggregator creates an aggregator with the given configuration.
// A nil config falls back to DefaultConfig.
func NewAggregator(cfg *Config) *Aggregator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Aggregator{cfg: cfg, now: time.Now}
}

// Config returns the configuration the aggregator runs with.
func (a *Aggregator) Config() *Config {
	return a.cfg
}

// Aggregate computes the full snapshot using the current wall clock for the
// time-window counters.
func (a *Aggregator) Aggregate(records []*student.Record) *AggregatedAnalysis {
	return a.AggregateAt(records, a.now())
}

// AggregateAt computes the full snapshot with an explicit reference time.
// Deterministic for a given (records, now) pair.
func (a *Aggregator) AggregateAt(records []*student.Record, now time.Time) *AggregatedAnalysis {
	analyzed := make([]*student.Record, 0, len(records))
	for _, r := range records {
		if r.IsAnalyzed() {
			analyzed = append(analyzed, r)
		}
	}

	completionRate := 0.0
	if len(records) > 0 {
		completionRate = float64(len(analyzed)) / float64(len(records)) * 100
	}

	styles := a.aggregateLearningStyles(analyzed)

	return &AggregatedAnalysis{
		TotalStudents:          len(records),
		AnalyzedStudents:       len(analyzed),
		UnanalyzedStudents:     len(records) - len(analyzed),
		AnalysisCompletionRate: completionRate,

		LearningStyles:           styles,
		LearningStylePercentages: percentages(styles, len(analyzed)),

		ClassSizes:       a.aggregateClassSizes(records),
		ClassPerformance: a.classPerformance(records),

		EmotionalStates: a.aggregateEmotionalStates(analyzed),
		EmotionalHealth: a.categorizeEmotionalHealth(analyzed),

		PerformanceDistribution: a.performanceDistribution(analyzed),
		AverageGrade:            a.averageGrade(analyzed),
		GradeDistribution:       a.gradeDistribution(analyzed),
		PerformanceTrends:       a.performanceTrends(analyzed),

		TopStrengths:          a.topStrengths(analyzed),
		CommonChallenges:      a.commonChallenges(analyzed),
		StrengthsDistribution: a.strengthsDistribution(analyzed),

		BehavioralPatterns:        a.behavioralPatterns(analyzed),
		ParticipationLevels:       a.participationLevels(analyzed),
		CollaborationDistribution: a.collaborationDistribution(analyzed),

		RiskDistribution: a.riskDistribution(analyzed),
		StudentsAtRisk:   a.studentsAtRisk(analyzed),

		InterventionTypes:   a.interventionTypes(analyzed),
		InterventionSuccess: a.interventionSuccess(analyzed),

		RecentAnalyses:    a.countRecentAnalyses(analyzed, now, a.cfg.RecentWindowDays),
		MonthlyAnalyses:   a.countRecentAnalyses(analyzed, now, a.cfg.MonthlyWindowDays),
		AnalysisFrequency: a.analysisFrequency(analyzed),

		EngagementScore:   a.engagementScore(analyzed),
		WellbeingIndex:    a.wellbeingIndex(analyzed),
		AcademicReadiness: a.academicReadiness(analyzed),
		SocialIntegration: a.socialIntegration(analyzed),

		ClassComparisons:  a.classComparisons(records),
		PeriodComparisons: a.periodComparisons(analyzed),

		GeneratedAt: now.UTC(),
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Learning styles
// ─────────────────────────────────────────────────────────────────────────────

func (a *Aggregator) aggregateLearningStyles(records []*student.Record) map[string]int {
	styles := make(map[string]int)
	for _, r := range records {
		if r.LearningStyle != "" {
			styles[strings.ToLower(r.LearningStyle)]++
		}
	}
	// Charts expect a stable axis even for absent styles.
	for _, s := range a.cfg.CommonLearningStyles {
		if _, ok := styles[s]; !ok {
			styles[s] = 0
		}
	}
	return styles
}

// percentages derives a rounded percentage map from a count distribution.
// A zero total yields an empty map, never a division by zero.
func percentages(distribution map[string]int, total int) map[string]int {
	result := make(map[string]int)
	if total == 0 {
		return result
	}
	for key, value := range distribution {
		result[key] = roundPercent(value, total)
	}
	return result
}

func roundPercent(value, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(value) / float64(total) * 100))
}

// ─────────────────────────────────────────────────────────────────────────────
// Class distribution
// ─────────────────────────────────────────────────────────────────────────────

func (a *Aggregator) classLabel(r *student.Record) string {
	if r.Class == "" {
		return a.cfg.UnassignedClassLabel
	}
	return string(r.Class)
}

func (a *Aggregator) aggregateClassSizes(records []*student.Record) map[string]int {
	sizes := make(map[string]int)
	for _, r := range records {
		sizes[a.classLabel(r)]++
	}
	return sizes
}

func (a *Aggregator) classPerformance(records []*student.Record) map[string]ClassPerformance {
	type classAccum struct {
		total  int
		graded int
		trends map[student.PerformanceTrend]int
		order  []student.PerformanceTrend
	}

	accum := make(map[string]*classAccum)
	for _, r := range records {
		label := a.classLabel(r)
		c := accum[label]
		if c == nil {
			c = &classAccum{trends: make(map[student.PerformanceTrend]int)}
			accum[label] = c
		}
		if r.Grade > 0 {
			c.total += r.Grade
			c.graded++
		}
		if r.PerformanceTrend != "" {
			if _, seen := c.trends[r.PerformanceTrend]; !seen {
				c.order = append(c.order, r.PerformanceTrend)
			}
			c.trends[r.PerformanceTrend]++
		}
	}

	result := make(map[string]ClassPerformance, len(accum))
	for label, c := range accum {
		average := 0
		if c.graded > 0 {
			average = int(math.Round(float64(c.total) / float64(c.graded)))
		}

		// Dominant trend, ties broken by first appearance in the class.
		dominant := string(student.TrendStable)
		best := 0
		for _, trend := range c.order {
			if c.trends[trend] > best {
				best = c.trends[trend]
				dominant = string(trend)
			}
		}

		result[label] = ClassPerformance{Average: average, Trend: dominant}
	}
	return result
}

// ─────────────────────────────────────────────────────────────────────────────
// Emotional states
// ─────────────────────────────────────────────────────────────────────────────

func (a *Aggregator) aggregateEmotionalStates(records []*student.Record) map[string]int {
	states := make(map[string]int)
	for _, r := range records {
		if r.EmotionalState != "" {
			states[strings.ToLower(r.EmotionalState)]++
		}
	}
	return states
}

func (a *Aggregator) categorizeEmotionalHealth(records []*student.Record) EmotionalHealth {
	var health EmotionalHealth
	for _, r := range records {
		if r.EmotionalState == "" {
			continue
		}
		switch {
		case containsAny(r.EmotionalState, a.cfg.PositiveEmotionalKeywords):
			health.Positive++
		case containsAny(r.EmotionalState, a.cfg.ConcerningEmotionalKeywords):
			health.Concerning++
		default:
			health.Neutral++
		}
	}
	return health
}

// ─────────────────────────────────────────────────────────────────────────────
// Academic performance
// ─────────────────────────────────────────────────────────────────────────────

func (a *Aggregator) performanceDistribution(records []*student.Record) PerformanceDistribution {
	var dist PerformanceDistribution
	for _, r := range records {
		switch grade := r.EffectiveGrade(); {
		case grade >= a.cfg.GradeExcellent:
			dist.Excellent++
		case grade >= a.cfg.GradeGood:
			dist.Good++
		case grade >= a.cfg.GradeAverage:
			dist.Average++
		default:
			dist.NeedsSupport++
		}
	}
	return dist
}

func (a *Aggregator) averageGrade(records []*student.Record) int {
	sum, count := 0, 0
	for _, r := range records {
		if grade := r.EffectiveGrade(); grade > 0 {
			sum += grade
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return int(math.Round(float64(sum) / float64(count)))
}

func (a *Aggregator) gradeDistribution(records []*student.Record) map[string]int {
	dist := map[string]int{
		"90-100":   0,
		"80-89":    0,
		"70-79":    0,
		"60-69":    0,
		"Below 60": 0,
	}
	for _, r := range records {
		switch grade := r.EffectiveGrade(); {
		case grade >= a.cfg.GradeExcellent:
			dist["90-100"]++
		case grade >= a.cfg.GradeGood:
			dist["80-89"]++
		case grade >= a.cfg.GradeAverage:
			dist["70-79"]++
		case grade >= a.cfg.GradePassing:
			dist["60-69"]++
		case grade > 0:
			dist["Below 60"]++
		}
	}
	return dist
}

func (a *Aggregator) performanceTrends(records []*student.Record) TrendDistribution {
	var trends TrendDistribution
	for _, r := range records {
		switch r.PerformanceTrend {
		case student.TrendImproving:
			trends.Improving++
		case student.TrendDeclining:
			trends.Declining++
		default:
			trends.Stable++
		}
	}
	return trends
}

// ─────────────────────────────────────────────────────────────────────────────
// Strengths and challenges
// ─────────────────────────────────────────────────────────────────────────────

// frequencyCounter counts normalized free-text keys while remembering the
// order keys were first seen, so ranking ties stay deterministic.
type frequencyCounter struct {
	counts map[string]int
	order  []string
}

func newFrequencyCounter() *frequencyCounter {
	return &frequencyCounter{counts: make(map[string]int)}
}

func (f *frequencyCounter) add(raw string) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if key == "" {
		return
	}
	if _, seen := f.counts[key]; !seen {
		f.order = append(f.order, key)
	}
	f.counts[key]++
}

// ranked returns keys sorted by descending count, ties broken by first
// appearance, truncated to limit.
func (f *frequencyCounter) ranked(limit int) []string {
	keys := make([]string, len(f.order))
	copy(keys, f.order)
	sort.SliceStable(keys, func(i, j int) bool {
		return f.counts[keys[i]] > f.counts[keys[j]]
	})
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}
	return keys
}

func (a *Aggregator) topStrengths(records []*student.Record) []RankedStrength {
	counter := newFrequencyCounter()
	for _, r := range records {
		for _, s := range r.KeyStrengths {
			counter.add(s)
		}
	}

	keys := counter.ranked(a.cfg.TopN)
	result := make([]RankedStrength, 0, len(keys))
	for _, key := range keys {
		result = append(result, RankedStrength{
			Strength:   key,
			Count:      counter.counts[key],
			Percentage: roundPercent(counter.counts[key], len(records)),
		})
	}
	return result
}

func (a *Aggregator) commonChallenges(records []*student.Record) []RankedChallenge {
	counter := newFrequencyCounter()
	for _, r := range records {
		for _, area := range r.AreasNeedingSupport {
			counter.add(area)
		}
		for _, challenge := range r.ChallengesBehaviors {
			counter.add(challenge)
		}
	}

	keys := counter.ranked(a.cfg.TopN)
	result := make([]RankedChallenge, 0, len(keys))
	for _, key := range keys {
		result = append(result, RankedChallenge{
			Challenge:  key,
			Count:      counter.counts[key],
			Percentage: roundPercent(counter.counts[key], len(records)),
		})
	}
	return result
}

func (a *Aggregator) strengthsDistribution(records []*student.Record) map[int]int {
	dist := make(map[int]int)
	for _, r := range records {
		dist[r.StrengthsCount]++
	}
	return dist
}

// ─────────────────────────────────────────────────────────────────────────────
// Behavioral insights
// ─────────────────────────────────────────────────────────────────────────────

func (a *Aggregator) behavioralPatterns(records []*student.Record) map[string]int {
	patterns := make(map[string]int)
	for _, r := range records {
		for _, behavior := range r.ChallengesBehaviors {
			key := strings.ToLower(strings.TrimSpace(behavior))
			if key != "" {
				patterns[key]++
			}
		}
	}
	return patterns
}

func (a *Aggregator) participationLevels(records []*student.Record) ParticipationLevels {
	var levels ParticipationLevels
	for _, r := range records {
		switch {
		case containsAny(r.ParticipationLevel, a.cfg.HighParticipationKeywords):
			levels.High++
		case containsAny(r.ParticipationLevel, a.cfg.LowParticipationKeywords):
			levels.Low++
		default:
			levels.Medium++
		}
	}
	return levels
}

func (a *Aggregator) collaborationDistribution(records []*student.Record) CollaborationDistribution {
	var dist CollaborationDistribution
	for _, r := range records {
		switch {
		case containsAny(r.CollaborationSkills, a.cfg.CollabExcellentKeywords):
			dist.Excellent++
		case containsAny(r.CollaborationSkills, a.cfg.CollabGoodKeywords):
			dist.Good++
		case containsAny(r.CollaborationSkills, a.cfg.CollabDevelopingKeywords):
			dist.Developing++
		default:
			dist.NeedsSupport++
		}
	}
	return dist
}

// ─────────────────────────────────────────────────────────────────────────────
// Risk assessment
// ─────────────────────────────────────────────────────────────────────────────

func (a *Aggregator) riskDistribution(records []*student.Record) RiskDistribution {
	var dist RiskDistribution
	for _, r := range records {
		level, _ := a.cfg.RiskPolicy.Assess(r, a.cfg)
		switch level {
		case RiskHigh:
			dist.High++
		case RiskMedium:
			dist.Medium++
		default:
			dist.Low++
		}
	}
	return dist
}

func (a *Aggregator) studentsAtRisk(records []*student.Record) []AtRiskStudent {
	atRisk := make([]AtRiskStudent, 0)
	for _, r := range records {
		factors := EvaluateRiskFactors(r, a.cfg)
		if len(factors) == 0 {
			continue
		}

		labels := make([]string, 0, len(factors))
		for _, key := range factors {
			if label, ok := a.cfg.RiskFactorLabels[key]; ok {
				labels = append(labels, label)
			} else {
				labels = append(labels, key)
			}
		}

		atRisk = append(atRisk, AtRiskStudent{
			Code:        string(r.Code),
			Name:        r.Name,
			RiskFactors: labels,
		})
		if len(atRisk) == a.cfg.TopN {
			break
		}
	}
	return atRisk
}

// ─────────────────────────────────────────────────────────────────────────────
// Interventions
// ─────────────────────────────────────────────────────────────────────────────

func (a *Aggregator) interventionTypes(records []*student.Record) map[string]int {
	types := make(map[string]int)
	for _, r := range records {
		for _, intervention := range r.Interventions {
			key := strings.ToLower(strings.TrimSpace(intervention))
			if key != "" {
				types[key]++
			}
		}
	}
	return types
}

// interventionSuccess tallies interventions of improving students. A proper
// success rate needs before/after measurements the roster does not carry.
func (a *Aggregator) interventionSuccess(records []*student.Record) map[string]int {
	success := make(map[string]int)
	for _, r := range records {
		if r.PerformanceTrend != student.TrendImproving {
			continue
		}
		for _, intervention := range r.Interventions {
			key := strings.ToLower(strings.TrimSpace(intervention))
			if key != "" {
				success[key]++
			}
		}
	}
	return success
}

// ─────────────────────────────────────────────────────────────────────────────
// Time-based analysis
// ─────────────────────────────────────────────────────────────────────────────

func (a *Aggregator) countRecentAnalyses(records []*student.Record, now time.Time, days int) int {
	cutoff := now.AddDate(0, 0, -days)
	count := 0
	for _, r := range records {
		if !r.LastAnalysisDate.IsZero() && !r.LastAnalysisDate.Before(cutoff) {
			count++
		}
	}
	return count
}

func (a *Aggregator) analysisFrequency(records []*student.Record) map[string]int {
	frequency := make(map[string]int)
	for _, r := range records {
		if !r.LastAnalysisDate.IsZero() {
			frequency[r.LastAnalysisDate.Format("2006-01")]++
		}
	}
	return frequency
}

// ─────────────────────────────────────────────────────────────────────────────
// Comparative analysis
// ─────────────────────────────────────────────────────────────────────────────

func (a *Aggregator) classComparisons(records []*student.Record) []ClassComparison {
	performance := a.classPerformance(records)

	labels := make([]string, 0, len(performance))
	for label := range performance {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	comparisons := make([]ClassComparison, 0, len(labels))
	for _, label := range labels {
		comparisons = append(comparisons, ClassComparison{
			Class:  label,
			Metric: "ממוצע ציונים",
			Value:  performance[label].Average,
		})
	}
	return comparisons
}

func (a *Aggregator) periodComparisons(records []*student.Record) []PeriodComparison {
	// Period-over-period comparison needs historical snapshots. Until those
	// are wired in, the current period is reported against itself.
	return []PeriodComparison{
		{Period: "תקופה נוכחית", Metric: "ממוצע כללי", Value: a.averageGrade(records)},
		{Period: "תקופה נוכחית", Metric: "רמת מעורבות", Value: a.engagementScore(records)},
	}
}

// String implements fmt.Stringer for quick logging.
func (s *AggregatedAnalysis) String() string {
	return fmt.Sprintf("AggregatedAnalysis{total=%d analyzed=%d atRisk=%d}",
		s.TotalStudents, s.AnalyzedStudents, s.RiskDistribution.High)
}
