package command

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ishebot/insight-hub/internal/domain/shared"
	"github.com/ishebot/insight-hub/internal/domain/student"
	"github.com/ishebot/insight-hub/internal/infrastructure/persistence/redis"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESTORE STUDENTS COMMAND
// Loads a backup document back into storage. Restores are upserts keyed by
// student code, so restoring over a live roster merges rather than
// duplicates. An optional wipe first gives an exact point-in-time restore.
// ══════════════════════════════════════════════════════════════════════════════

// RestoreStudentsCommand contains the command parameters.
type RestoreStudentsCommand struct {
	// Document - the backup to load.
	Document *BackupDocument

	// WipeFirst - delete every existing record before restoring.
	WipeFirst bool

	// Confirmation - must equal "DELETE" when WipeFirst is set.
	Confirmation string
}

// Validate checks the command parameters.
func (c RestoreStudentsCommand) Validate() error {
	if c.Document == nil {
		return shared.WrapError("command", "RestoreStudents", shared.ErrValidation, "backup document is required", nil)
	}
	if c.Document.Version != backupFormatVersion {
		return shared.WrapError("command", "RestoreStudents", shared.ErrValidation,
			fmt.Sprintf("unsupported backup version %d", c.Document.Version), nil)
	}
	if len(c.Document.Students) == 0 {
		return shared.WrapError("command", "RestoreStudents", shared.ErrValidation, "backup document has no students", nil)
	}
	if c.WipeFirst && c.Confirmation != deleteAllConfirmation {
		return shared.WrapError("command", "RestoreStudents", shared.ErrValidation,
			"wipe before restore requires confirmation phrase", nil)
	}
	return nil
}

// RestoreStudentsResult summarizes the restore.
type RestoreStudentsResult struct {
	// Wiped - records removed before the restore.
	Wiped int `json:"wiped"`

	// Inserted - restored rows that created new records.
	Inserted int `json:"inserted"`

	// Updated - restored rows that overwrote existing records.
	Updated int `json:"updated"`

	// Skipped - rows in the document that were invalid.
	Skipped int `json:"skipped"`

	// RestoredAt - when the restore completed.
	RestoredAt time.Time `json:"restoredAt"`
}

// RestoreStudentsHandler handles restores.
type RestoreStudentsHandler struct {
	studentRepo   student.Repository
	studentCache  student.Cache
	analysisCache *redis.AnalysisCache
}

// NewRestoreStudentsHandler creates a new handler.
func NewRestoreStudentsHandler(
	studentRepo student.Repository,
	studentCache student.Cache,
	analysisCache *redis.AnalysisCache,
) *RestoreStudentsHandler {
	return &RestoreStudentsHandler{
		studentRepo:   studentRepo,
		studentCache:  studentCache,
		analysisCache: analysisCache,
	}
}

// Handle executes the command.
func (h *RestoreStudentsHandler) Handle(ctx context.Context, cmd RestoreStudentsCommand) (*RestoreStudentsResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	result := &RestoreStudentsResult{}

	if cmd.WipeFirst {
		wiped, err := h.studentRepo.DeleteAll(ctx)
		if err != nil {
			return nil, shared.WrapError("command", "RestoreStudents", shared.ErrServiceUnavailable, "pre-restore wipe failed", err)
		}
		result.Wiped = wiped
	}

	records := make([]*student.Record, 0, len(cmd.Document.Students))
	for _, rec := range cmd.Document.Students {
		if rec == nil || !rec.Code.IsValid() {
			result.Skipped++
			continue
		}
		restored := rec.Clone()
		if restored.ID == "" {
			restored.ID = uuid.New().String()
		}
		records = append(records, restored)
	}
	if len(records) == 0 {
		return nil, shared.WrapError("command", "RestoreStudents", shared.ErrValidation, "no restorable rows in document", nil)
	}

	inserted, updated, err := h.studentRepo.BulkUpsert(ctx, records)
	if err != nil {
		return nil, shared.WrapError("command", "RestoreStudents", shared.ErrServiceUnavailable, "restore upsert failed", err)
	}
	result.Inserted = inserted
	result.Updated = updated
	result.RestoredAt = time.Now().UTC()

	if h.studentCache != nil {
		_ = h.studentCache.InvalidateAll(ctx)
	}
	if h.analysisCache != nil {
		_ = h.analysisCache.InvalidateAll(ctx)
	}
	return result, nil
}
