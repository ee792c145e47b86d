// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/ishebot/insight-hub/internal/domain/shared"
	"github.com/ishebot/insight-hub/internal/domain/student"
	"github.com/ishebot/insight-hub/internal/infrastructure/external/roster"
)

// ══════════════════════════════════════════════════════════════════════════════
// IMPORT STUDENTS COMMAND
// Bulk-loads student rows into storage. Used both by the admin manual import
// endpoint and by the scheduled roster sync when it pushes through the same
// path. Rows are validated individually; bad rows are reported, good rows
// are still imported.
// ══════════════════════════════════════════════════════════════════════════════

// validate is shared across commands; validator instances cache struct
// metadata and are safe for concurrent use.
var validate = validator.New(validator.WithRequiredStructEnabled())

// ImportRow is one incoming student row.
type ImportRow struct {
	Code                   string   `json:"studentCode" validate:"required,min=2,max=20"`
	Name                   string   `json:"name" validate:"required,min=1,max=100"`
	Class                  string   `json:"classId" validate:"max=20"`
	Quarter                string   `json:"quarter" validate:"max=10"`
	KeyStrengths           []string `json:"keyStrengths"`
	AreasNeedingSupport    []string `json:"areasNeedingSupport"`
	ChallengesBehaviors    []string `json:"challengesBehaviors"`
	Interventions          []string `json:"interventions"`
	PersonalityTraits      []string `json:"personalityTraits"`
	EmotionalState         string   `json:"emotionalState"`
	LearningStyle          string   `json:"learningStyle"`
	Grade                  int      `json:"grade" validate:"gte=0,lte=100"`
	LastAssessment         int      `json:"lastAssessment" validate:"gte=0,lte=100"`
	AttendanceRate         float64  `json:"attendanceRate" validate:"gte=0,lte=100"`
	ParticipationLevel     string   `json:"participationLevel"`
	CollaborationSkills    string   `json:"collaborationSkills"`
	CriticalThinking       string   `json:"criticalThinking"`
	CreativityLevel        string   `json:"creativityLevel"`
	KeyNotes               string   `json:"keyNotes"`
	TeacherRecommendations string   `json:"teacherRecommendations"`
	NeedsAnalysis          bool     `json:"needsAnalysis"`
	StrengthsCount         int      `json:"strengthsCount" validate:"gte=0"`
	PerformanceTrend       string   `json:"performanceTrend"`
}

// ImportStudentsCommand contains the rows to import.
type ImportStudentsCommand struct {
	Rows []ImportRow
}

// Validate checks the command shape. Per-row validation happens during the
// import so one bad row does not reject the batch.
func (c ImportStudentsCommand) Validate() error {
	if len(c.Rows) == 0 {
		return shared.WrapError("command", "ImportStudents", shared.ErrValidation, "no rows to import", nil)
	}
	return nil
}

// ImportRejection describes one row that failed validation.
type ImportRejection struct {
	// Code - the student code of the rejected row, if present.
	Code string `json:"code"`

	// Reason - why the row was rejected.
	Reason string `json:"reason"`
}

// ImportStudentsResult summarizes the import.
type ImportStudentsResult struct {
	// Inserted - rows that created new records.
	Inserted int `json:"inserted"`

	// Updated - rows that overwrote existing records.
	Updated int `json:"updated"`

	// Rejected - rows that failed validation.
	Rejected []ImportRejection `json:"rejected"`

	// ImportedAt - when the import completed.
	ImportedAt time.Time `json:"importedAt"`
}

// ImportStudentsHandler handles student imports.
type ImportStudentsHandler struct {
	studentRepo  student.Repository
	syncRepo     student.SyncRepository
	studentCache student.Cache
}

// NewImportStudentsHandler creates a new handler. syncRepo and studentCache
// may be nil; bookkeeping and invalidation are then skipped.
func NewImportStudentsHandler(
	studentRepo student.Repository,
	syncRepo student.SyncRepository,
	studentCache student.Cache,
) *ImportStudentsHandler {
	return &ImportStudentsHandler{
		studentRepo:  studentRepo,
		syncRepo:     syncRepo,
		studentCache: studentCache,
	}
}

// Handle executes the command.
func (h *ImportStudentsHandler) Handle(ctx context.Context, cmd ImportStudentsCommand) (*ImportStudentsResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	records := make([]*student.Record, 0, len(cmd.Rows))
	rejected := make([]ImportRejection, 0)

	for i, row := range cmd.Rows {
		rec, err := h.buildRecord(row)
		if err != nil {
			rejected = append(rejected, ImportRejection{
				Code:   row.Code,
				Reason: fmt.Sprintf("row %d: %v", i, err),
			})
			continue
		}
		records = append(records, rec)
	}

	result := &ImportStudentsResult{
		Rejected:   rejected,
		ImportedAt: time.Now().UTC(),
	}
	if len(records) == 0 {
		return result, nil
	}

	inserted, updated, err := h.studentRepo.BulkUpsert(ctx, records)
	if err != nil {
		return nil, shared.WrapError("command", "ImportStudents", shared.ErrServiceUnavailable, "bulk upsert failed", err)
	}
	result.Inserted = inserted
	result.Updated = updated

	if h.syncRepo != nil {
		for _, rej := range rejected {
			_ = h.syncRepo.SaveSyncError(ctx, student.SyncError{
				StudentCode: rej.Code,
				ErrorType:   "validation",
				Message:     rej.Reason,
				OccurredAt:  result.ImportedAt,
			})
		}
	}
	if h.studentCache != nil {
		_ = h.studentCache.InvalidateAll(ctx)
	}
	return result, nil
}

// buildRecord validates one row and converts it into a domain record.
func (h *ImportStudentsHandler) buildRecord(row ImportRow) (*student.Record, error) {
	if err := validate.Struct(row); err != nil {
		return nil, err
	}

	rec, err := student.NewRecord(student.NewRecordParams{
		ID:      uuid.New().String(),
		Code:    student.Code(row.Code),
		Name:    row.Name,
		Class:   student.Class(row.Class),
		Quarter: row.Quarter,
	})
	if err != nil {
		return nil, err
	}

	rec.KeyStrengths = row.KeyStrengths
	rec.AreasNeedingSupport = row.AreasNeedingSupport
	rec.ChallengesBehaviors = row.ChallengesBehaviors
	rec.Interventions = row.Interventions
	rec.PersonalityTraits = row.PersonalityTraits
	rec.EmotionalState = row.EmotionalState
	rec.LearningStyle = roster.NormalizeLearningStyle(row.LearningStyle)
	rec.Grade = row.Grade
	rec.LastAssessment = row.LastAssessment
	rec.AttendanceRate = row.AttendanceRate
	rec.ParticipationLevel = row.ParticipationLevel
	rec.CollaborationSkills = row.CollaborationSkills
	rec.CriticalThinking = row.CriticalThinking
	rec.CreativityLevel = row.CreativityLevel
	rec.KeyNotes = row.KeyNotes
	rec.TeacherRecommendations = row.TeacherRecommendations
	rec.NeedsAnalysis = row.NeedsAnalysis
	rec.StrengthsCount = row.StrengthsCount
	if rec.StrengthsCount == 0 {
		rec.StrengthsCount = len(row.KeyStrengths)
	}
	rec.PerformanceTrend = roster.NormalizeTrend(row.PerformanceTrend)

	return rec, nil
}
