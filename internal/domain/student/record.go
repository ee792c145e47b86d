// Package student contains the domain model for student records.
// A record is a read-only snapshot of one student's pedagogical attributes
// as produced by the upstream assessment source; the analysis pipeline
// never mutates it.
package student

import (
	"fmt"
	"strings"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Code is the external identifier of a student (e.g. "70101").
// It is assigned by the school information system, not by this service.
type Code string

// IsValid checks that the code is non-empty and contains no whitespace.
func (c Code) IsValid() bool {
	s := string(c)
	return len(s) >= 1 && len(s) <= 30 && !strings.ContainsAny(s, " \t\n\r")
}

// String returns the string representation of the code.
func (c Code) String() string {
	return string(c)
}

// Class represents a class label (e.g. "ז1").
type Class string

// IsValid checks that the class label has a sensible length.
func (c Class) IsValid() bool {
	s := string(c)
	return len(s) >= 1 && len(s) <= 30
}

// String returns the string representation of the class label.
func (c Class) String() string {
	return string(c)
}

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// PerformanceTrend describes the direction of a student's academic trajectory.
type PerformanceTrend string

const (
	// TrendImproving - grades are trending upwards.
	TrendImproving PerformanceTrend = "improving"
	// TrendStable - no significant change.
	TrendStable PerformanceTrend = "stable"
	// TrendDeclining - grades are trending downwards.
	TrendDeclining PerformanceTrend = "declining"
)

// IsValid checks that the trend is one of the known values.
// The empty string is accepted: upstream frequently omits the field,
// and absent trends are bucketed as stable by the aggregator.
func (t PerformanceTrend) IsValid() bool {
	switch t {
	case TrendImproving, TrendStable, TrendDeclining, "":
		return true
	default:
		return false
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: RECORD
// ══════════════════════════════════════════════════════════════════════════════

// Record is one student's attribute snapshot consumed by the analysis
// pipeline. All content fields are optional except Code and Name; absent
// fields carry their zero value and are treated as "not risky" / "unknown"
// by downstream consumers.
type Record struct {
	// ID - internal unique identifier (UUID in string form).
	ID string

	// Code - external student identifier from the school system.
	Code Code

	// Name - the student's display name.
	Name string

	// Class - class label the student belongs to.
	Class Class

	// Quarter - assessment period label (e.g. "Q1").
	Quarter string

	// KeyStrengths - free-text strengths identified by the AI analysis.
	KeyStrengths []string

	// AreasNeedingSupport - free-text areas where the student struggles.
	AreasNeedingSupport []string

	// ChallengesBehaviors - free-text behavioral challenges.
	ChallengesBehaviors []string

	// Interventions - interventions already applied or suggested.
	Interventions []string

	// PersonalityTraits - free-text personality descriptors.
	PersonalityTraits []string

	// EmotionalState - free-text emotional state (Hebrew or English).
	EmotionalState string

	// LearningStyle - preferred learning style (visual, auditory, ...).
	LearningStyle string

	// Grade - most recent grade on a 0-100 scale; 0 means unknown.
	Grade int

	// LastAssessment - previous assessment score, used as a fallback
	// when Grade is unset; 0 means unknown.
	LastAssessment int

	// AttendanceRate - attendance percentage 0-100; 0 means unknown.
	AttendanceRate float64

	// ParticipationLevel - free-text participation level.
	ParticipationLevel string

	// CollaborationSkills - free-text collaboration skill level.
	CollaborationSkills string

	// CriticalThinking - free-text critical thinking level.
	CriticalThinking string

	// CreativityLevel - free-text creativity level.
	CreativityLevel string

	// KeyNotes - free-text notes from the analysis.
	KeyNotes string

	// TeacherRecommendations - free-text recommendations from the teacher.
	TeacherRecommendations string

	// NeedsAnalysis - true when the student still awaits an AI analysis.
	NeedsAnalysis bool

	// StrengthsCount - number of strengths found by the last analysis.
	StrengthsCount int

	// PerformanceTrend - direction of the academic trajectory.
	PerformanceTrend PerformanceTrend

	// LastAnalysisDate - when the last analysis was produced (zero if never).
	LastAnalysisDate time.Time

	// CreatedAt - when the record was first stored.
	CreatedAt time.Time

	// UpdatedAt - when the record was last updated.
	UpdatedAt time.Time
}

// NewRecordParams contains parameters for creating a new record.
type NewRecordParams struct {
	ID      string
	Code    Code
	Name    string
	Class   Class
	Quarter string
}

// NewRecord creates a new record with validation of the identifying fields.
// Content fields are filled in afterwards by the import mapper; they carry
// no invariants of their own.
func NewRecord(params NewRecordParams) (*Record, error) {
	if params.ID == "" {
		return nil, fmt.Errorf("student: record id is required")
	}
	if !params.Code.IsValid() {
		return nil, ErrInvalidCode
	}
	name := strings.TrimSpace(params.Name)
	if len(name) == 0 || len(name) > 100 {
		return nil, ErrInvalidName
	}
	if params.Class != "" && !params.Class.IsValid() {
		return nil, ErrInvalidClass
	}

	now := time.Now().UTC()

	return &Record{
		ID:        params.ID,
		Code:      params.Code,
		Name:      name,
		Class:     params.Class,
		Quarter:   params.Quarter,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN METHODS
// ══════════════════════════════════════════════════════════════════════════════

// IsAnalyzed reports whether the student has a completed analysis:
// the needs-analysis flag is cleared and at least one strength was found.
func (r *Record) IsAnalyzed() bool {
	return !r.NeedsAnalysis && r.StrengthsCount > 0
}

// EffectiveGrade returns the grade to use for academic statistics:
// the current grade when set, otherwise the last assessment score,
// otherwise 0 (unknown).
func (r *Record) EffectiveGrade() int {
	if r.Grade > 0 {
		return r.Grade
	}
	return r.LastAssessment
}

// HasGrade reports whether any usable grade is present.
func (r *Record) HasGrade() bool {
	return r.EffectiveGrade() > 0
}

// AnalyzedWithin reports whether the last analysis happened within the
// given window ending at now.
func (r *Record) AnalyzedWithin(now time.Time, window time.Duration) bool {
	if r.LastAnalysisDate.IsZero() {
		return false
	}
	return !r.LastAnalysisDate.Before(now.Add(-window))
}

// MarkAnalyzed records a completed analysis.
func (r *Record) MarkAnalyzed(at time.Time, strengthsCount int) {
	r.NeedsAnalysis = false
	r.StrengthsCount = strengthsCount
	r.LastAnalysisDate = at
	r.UpdatedAt = time.Now().UTC()
}

// String returns a short representation for logging.
func (r *Record) String() string {
	return fmt.Sprintf("Record{Code: %s, Name: %s, Class: %s, Analyzed: %t}",
		r.Code, r.Name, r.Class, r.IsAnalyzed())
}

// Clone creates a deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}

	clone := *r
	clone.KeyStrengths = append([]string(nil), r.KeyStrengths...)
	clone.AreasNeedingSupport = append([]string(nil), r.AreasNeedingSupport...)
	clone.ChallengesBehaviors = append([]string(nil), r.ChallengesBehaviors...)
	clone.Interventions = append([]string(nil), r.Interventions...)
	clone.PersonalityTraits = append([]string(nil), r.PersonalityTraits...)
	return &clone
}

// CloneAll deep-copies a slice of records.
func CloneAll(records []*Record) []*Record {
	out := make([]*Record, len(records))
	for i, r := range records {
		out[i] = r.Clone()
	}
	return out
}
