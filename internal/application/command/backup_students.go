package command

import (
	"context"
	"time"

	"github.com/ishebot/insight-hub/internal/domain/shared"
	"github.com/ishebot/insight-hub/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// BACKUP STUDENTS COMMAND
// Exports the full roster as a portable document the admin can download and
// later feed back through the restore flow.
// ══════════════════════════════════════════════════════════════════════════════

// backupFormatVersion identifies the document layout for future migrations.
const backupFormatVersion = 1

// BackupStudentsCommand contains the command parameters.
type BackupStudentsCommand struct {
	// Class - optional class filter; empty exports everything.
	Class string
}

// BackupDocument is the portable export format.
type BackupDocument struct {
	// Version - document layout version.
	Version int `json:"version"`

	// CreatedAt - when the backup was taken.
	CreatedAt time.Time `json:"createdAt"`

	// Class - class filter used, empty for a full export.
	Class string `json:"class,omitempty"`

	// Students - the exported records.
	Students []*student.Record `json:"students"`
}

// BackupStudentsHandler handles roster exports.
type BackupStudentsHandler struct {
	studentRepo student.Repository
}

// NewBackupStudentsHandler creates a new handler.
func NewBackupStudentsHandler(studentRepo student.Repository) *BackupStudentsHandler {
	return &BackupStudentsHandler{studentRepo: studentRepo}
}

// Handle executes the command.
func (h *BackupStudentsHandler) Handle(ctx context.Context, cmd BackupStudentsCommand) (*BackupDocument, error) {
	var (
		records []*student.Record
		err     error
	)
	if cmd.Class != "" {
		records, err = h.studentRepo.GetByClass(ctx, student.Class(cmd.Class))
	} else {
		records, err = h.studentRepo.GetAll(ctx, student.DefaultListOptions().WithLimit(10000))
	}
	if err != nil {
		return nil, shared.WrapError("command", "BackupStudents", shared.ErrServiceUnavailable, "failed to export records", err)
	}

	return &BackupDocument{
		Version:   backupFormatVersion,
		CreatedAt: time.Now().UTC(),
		Class:     cmd.Class,
		Students:  records,
	}, nil
}
