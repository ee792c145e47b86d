package roster

import (
	"strings"

	"github.com/ishebot/insight-hub/internal/domain/student"
	"github.com/ishebot/insight-hub/pkg/timeutil"

	"github.com/google/uuid"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAPPER - DTO to Domain Entity transformations
// ══════════════════════════════════════════════════════════════════════════════

// Mapper converts roster DTOs into domain records. It is the anti-corruption
// layer between the spreadsheet-shaped upstream and the domain model: all
// normalization of Hebrew labels, loose numbers and sheet dates happens here.
type Mapper struct{}

// NewMapper creates a new Mapper instance.
func NewMapper() *Mapper {
	return &Mapper{}
}

// learningStyles maps upstream style labels (the sheet stores Hebrew) to the
// canonical style names the analysis pipeline counts on.
var learningStyles = map[string]string{
	"חזותי":       "visual",
	"ויזואלי":     "visual",
	"שמיעתי":      "auditory",
	"קינסתטי":     "kinesthetic",
	"קריאה/כתיבה": "reading/writing",
	"משולב":       "mixed",

	"visual":          "visual",
	"auditory":        "auditory",
	"kinesthetic":     "kinesthetic",
	"reading/writing": "reading/writing",
	"mixed":           "mixed",
}

// trends maps upstream trend labels to domain trend values.
var trends = map[string]student.PerformanceTrend{
	"improving": student.TrendImproving,
	"stable":    student.TrendStable,
	"declining": student.TrendDeclining,

	"משתפר": student.TrendImproving,
	"יציב":  student.TrendStable,
	"יורד":  student.TrendDeclining,
}

// RecordFromDTO converts a StudentDTO to a domain record.
func (m *Mapper) RecordFromDTO(dto *StudentDTO) (*student.Record, error) {
	if dto == nil {
		return nil, ErrNilDTO
	}

	rec, err := student.NewRecord(student.NewRecordParams{
		ID:      uuid.New().String(),
		Code:    student.Code(strings.TrimSpace(dto.StudentCode)),
		Name:    dto.Name,
		Class:   student.Class(strings.TrimSpace(dto.ClassID)),
		Quarter: strings.TrimSpace(dto.Quarter),
	})
	if err != nil {
		return nil, err
	}

	rec.KeyStrengths = dto.KeyStrengths
	rec.AreasNeedingSupport = dto.AreasNeedingSupport
	rec.ChallengesBehaviors = dto.ChallengesBehaviors
	rec.Interventions = dto.Interventions
	rec.PersonalityTraits = dto.PersonalityTraits

	rec.EmotionalState = strings.TrimSpace(dto.EmotionalState)
	rec.LearningStyle = NormalizeLearningStyle(dto.LearningStyle)

	rec.Grade = clampScore(dto.Grade.Int())
	rec.LastAssessment = clampScore(dto.LastAssessment.Int())
	rec.AttendanceRate = clampRate(dto.AttendanceRate.Float())

	rec.ParticipationLevel = strings.TrimSpace(dto.ParticipationLevel)
	rec.CollaborationSkills = strings.TrimSpace(dto.CollaborationSkills)
	rec.CriticalThinking = strings.TrimSpace(dto.CriticalThinking)
	rec.CreativityLevel = strings.TrimSpace(dto.CreativityLevel)

	rec.KeyNotes = strings.TrimSpace(dto.KeyNotes)
	rec.TeacherRecommendations = strings.TrimSpace(dto.TeacherRecommendations)

	rec.NeedsAnalysis = dto.NeedsAnalysis
	rec.StrengthsCount = dto.StrengthsCount.Int()
	if rec.StrengthsCount == 0 {
		rec.StrengthsCount = len(rec.KeyStrengths)
	}
	rec.PerformanceTrend = NormalizeTrend(dto.PerformanceTrend)

	// Malformed sheet dates degrade to "never analyzed" rather than
	// rejecting the row.
	if analyzedAt, err := timeutil.ParseRosterDate(strings.TrimSpace(dto.Date)); err == nil {
		rec.LastAnalysisDate = analyzedAt
	}

	return rec, nil
}

// RecordsFromDTOs converts a batch of DTOs. Rows that fail validation are
// reported as sync errors instead of aborting the whole import.
func (m *Mapper) RecordsFromDTOs(dtos []StudentDTO) ([]*student.Record, []student.SyncError) {
	records := make([]*student.Record, 0, len(dtos))
	var syncErrs []student.SyncError

	for i := range dtos {
		rec, err := m.RecordFromDTO(&dtos[i])
		if err != nil {
			syncErrs = append(syncErrs, student.SyncError{
				StudentCode: strings.TrimSpace(dtos[i].StudentCode),
				ErrorType:   "mapping",
				Message:     err.Error(),
			})
			continue
		}
		records = append(records, rec)
	}

	return records, syncErrs
}

// NormalizeLearningStyle maps an upstream style label to its canonical name.
// Unknown labels pass through lowercased so new styles still aggregate.
func NormalizeLearningStyle(style string) string {
	style = strings.ToLower(strings.TrimSpace(style))
	if style == "" {
		return ""
	}
	if canonical, ok := learningStyles[style]; ok {
		return canonical
	}
	return style
}

// NormalizeTrend maps an upstream trend label to a domain trend.
// Unknown labels map to the empty trend, which downstream buckets as stable.
func NormalizeTrend(trend string) student.PerformanceTrend {
	trend = strings.ToLower(strings.TrimSpace(trend))
	if t, ok := trends[trend]; ok {
		return t
	}
	return ""
}

// clampScore keeps grades inside the 0-100 scale.
func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// clampRate keeps attendance inside the 0-100 scale.
func clampRate(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
