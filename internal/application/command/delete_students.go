package command

import (
	"context"
	"time"

	"github.com/ishebot/insight-hub/internal/domain/shared"
	"github.com/ishebot/insight-hub/internal/domain/student"
	"github.com/ishebot/insight-hub/internal/infrastructure/persistence/redis"
)

// ══════════════════════════════════════════════════════════════════════════════
// DELETE STUDENTS COMMAND
// Removes specific records or wipes the whole roster. The full wipe requires
// an explicit confirmation phrase so a malformed admin request cannot empty
// the database.
// ══════════════════════════════════════════════════════════════════════════════

// deleteAllConfirmation must be sent verbatim to allow a full wipe.
const deleteAllConfirmation = "DELETE"

// DeleteStudentsCommand contains the command parameters.
type DeleteStudentsCommand struct {
	// Codes - student codes to delete. Ignored when All is set.
	Codes []string

	// All - delete every record.
	All bool

	// Confirmation - must equal "DELETE" when All is set.
	Confirmation string
}

// Validate checks the command parameters.
func (c DeleteStudentsCommand) Validate() error {
	if c.All {
		if c.Confirmation != deleteAllConfirmation {
			return shared.WrapError("command", "DeleteStudents", shared.ErrValidation,
				"full wipe requires confirmation phrase", nil)
		}
		return nil
	}
	if len(c.Codes) == 0 {
		return shared.WrapError("command", "DeleteStudents", shared.ErrValidation, "no student codes given", nil)
	}
	for _, code := range c.Codes {
		if !student.Code(code).IsValid() {
			return shared.ErrInvalidStudentCode
		}
	}
	return nil
}

// DeleteStudentsResult summarizes the deletion.
type DeleteStudentsResult struct {
	// Deleted - number of removed records.
	Deleted int `json:"deleted"`

	// DeletedAt - when the deletion completed.
	DeletedAt time.Time `json:"deletedAt"`
}

// DeleteStudentsHandler handles deletions.
type DeleteStudentsHandler struct {
	studentRepo   student.Repository
	studentCache  student.Cache
	analysisCache *redis.AnalysisCache
}

// NewDeleteStudentsHandler creates a new handler.
func NewDeleteStudentsHandler(
	studentRepo student.Repository,
	studentCache student.Cache,
	analysisCache *redis.AnalysisCache,
) *DeleteStudentsHandler {
	return &DeleteStudentsHandler{
		studentRepo:   studentRepo,
		studentCache:  studentCache,
		analysisCache: analysisCache,
	}
}

// Handle executes the command.
func (h *DeleteStudentsHandler) Handle(ctx context.Context, cmd DeleteStudentsCommand) (*DeleteStudentsResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	var (
		deleted int
		err     error
	)
	if cmd.All {
		deleted, err = h.studentRepo.DeleteAll(ctx)
	} else {
		codes := make([]student.Code, len(cmd.Codes))
		for i, c := range cmd.Codes {
			codes[i] = student.Code(c)
		}
		deleted, err = h.studentRepo.DeleteByCodes(ctx, codes)
	}
	if err != nil {
		return nil, shared.WrapError("command", "DeleteStudents", shared.ErrServiceUnavailable, "deletion failed", err)
	}

	// Deleted rows change every aggregate, so drop both cache layers.
	if h.studentCache != nil {
		_ = h.studentCache.InvalidateAll(ctx)
	}
	if h.analysisCache != nil {
		_ = h.analysisCache.InvalidateAll(ctx)
	}

	return &DeleteStudentsResult{
		Deleted:   deleted,
		DeletedAt: time.Now().UTC(),
	}, nil
}
