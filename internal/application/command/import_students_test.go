package command

import (
	"context"
	"testing"

	"github.com/ishebot/insight-hub/internal/domain/student"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubStudentRepo implements the slice of student.Repository the commands
// use. The embedded interface keeps the stub small; unimplemented methods
// panic.
type stubStudentRepo struct {
	student.Repository
	records map[student.Code]*student.Record
	deleted int
}

func newStubStudentRepo(records ...*student.Record) *stubStudentRepo {
	s := &stubStudentRepo{records: make(map[student.Code]*student.Record)}
	for _, r := range records {
		s.records[r.Code] = r
	}
	return s
}

func (s *stubStudentRepo) BulkUpsert(ctx context.Context, records []*student.Record) (int, int, error) {
	inserted, updated := 0, 0
	for _, r := range records {
		if _, ok := s.records[r.Code]; ok {
			updated++
		} else {
			inserted++
		}
		s.records[r.Code] = r
	}
	return inserted, updated, nil
}

func (s *stubStudentRepo) DeleteByCodes(ctx context.Context, codes []student.Code) (int, error) {
	n := 0
	for _, c := range codes {
		if _, ok := s.records[c]; ok {
			delete(s.records, c)
			n++
		}
	}
	s.deleted += n
	return n, nil
}

func (s *stubStudentRepo) DeleteAll(ctx context.Context) (int, error) {
	n := len(s.records)
	s.records = make(map[student.Code]*student.Record)
	s.deleted += n
	return n, nil
}

func (s *stubStudentRepo) GetAll(ctx context.Context, opts student.ListOptions) ([]*student.Record, error) {
	out := make([]*student.Record, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	return out, nil
}

// stubSyncRepo records saved sync errors.
type stubSyncRepo struct {
	student.SyncRepository
	errors []student.SyncError
}

func (s *stubSyncRepo) SaveSyncError(ctx context.Context, syncErr student.SyncError) error {
	s.errors = append(s.errors, syncErr)
	return nil
}

func validRow(code, name string) ImportRow {
	return ImportRow{
		Code:           code,
		Name:           name,
		Class:          "ז1",
		Quarter:        "Q2",
		KeyStrengths:   []string{"חשיבה יצירתית", "עבודת צוות"},
		LearningStyle:  "חזותי",
		Grade:          85,
		AttendanceRate: 92,
	}
}

func TestImportStudents_InsertsAndNormalizes(t *testing.T) {
	repo := newStubStudentRepo()
	handler := NewImportStudentsHandler(repo, nil, nil)

	result, err := handler.Handle(context.Background(), ImportStudentsCommand{
		Rows: []ImportRow{validRow("70101", "דני לוי"), validRow("70102", "שרה כהן")},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Inserted)
	assert.Equal(t, 0, result.Updated)
	assert.Empty(t, result.Rejected)

	rec := repo.records["70101"]
	require.NotNil(t, rec)
	assert.Equal(t, "visual", rec.LearningStyle)
	// StrengthsCount falls back to the strength list length.
	assert.Equal(t, 2, rec.StrengthsCount)
	assert.NotEmpty(t, rec.ID)
}

func TestImportStudents_UpdatesExisting(t *testing.T) {
	repo := newStubStudentRepo(&student.Record{ID: "1", Code: "70101", Name: "דני לוי"})
	handler := NewImportStudentsHandler(repo, nil, nil)

	result, err := handler.Handle(context.Background(), ImportStudentsCommand{
		Rows: []ImportRow{validRow("70101", "דני לוי")},
	})
	require.NoError(t, err)

	assert.Equal(t, 0, result.Inserted)
	assert.Equal(t, 1, result.Updated)
}

func TestImportStudents_RejectsBadRowsKeepsGood(t *testing.T) {
	repo := newStubStudentRepo()
	syncRepo := &stubSyncRepo{}
	handler := NewImportStudentsHandler(repo, syncRepo, nil)

	bad := validRow("70103", "יוסי")
	bad.Grade = 250

	result, err := handler.Handle(context.Background(), ImportStudentsCommand{
		Rows: []ImportRow{validRow("70101", "דני לוי"), bad, {Code: "", Name: "חסר קוד"}},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Inserted)
	require.Len(t, result.Rejected, 2)
	assert.Equal(t, "70103", result.Rejected[0].Code)

	// Rejections land in the sync error log for the admin page.
	require.Len(t, syncRepo.errors, 2)
	assert.Equal(t, "validation", syncRepo.errors[0].ErrorType)
}

func TestImportStudents_EmptyBatch(t *testing.T) {
	handler := NewImportStudentsHandler(newStubStudentRepo(), nil, nil)

	_, err := handler.Handle(context.Background(), ImportStudentsCommand{})
	require.Error(t, err)
}

func TestDeleteStudents_ByCodes(t *testing.T) {
	repo := newStubStudentRepo(
		&student.Record{ID: "1", Code: "70101", Name: "דני"},
		&student.Record{ID: "2", Code: "70102", Name: "שרה"},
	)
	handler := NewDeleteStudentsHandler(repo, nil, nil)

	result, err := handler.Handle(context.Background(), DeleteStudentsCommand{Codes: []string{"70101", "70999"}})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Deleted)
	assert.Len(t, repo.records, 1)
}

func TestDeleteStudents_AllRequiresConfirmation(t *testing.T) {
	repo := newStubStudentRepo(&student.Record{ID: "1", Code: "70101", Name: "דני"})
	handler := NewDeleteStudentsHandler(repo, nil, nil)

	_, err := handler.Handle(context.Background(), DeleteStudentsCommand{All: true})
	require.Error(t, err)
	assert.Len(t, repo.records, 1)

	result, err := handler.Handle(context.Background(), DeleteStudentsCommand{All: true, Confirmation: "DELETE"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Deleted)
	assert.Empty(t, repo.records)
}

func TestRestoreStudents_RoundTrip(t *testing.T) {
	source := newStubStudentRepo(
		&student.Record{ID: "1", Code: "70101", Name: "דני", StrengthsCount: 3},
		&student.Record{ID: "2", Code: "70102", Name: "שרה", StrengthsCount: 2},
	)
	backup, err := NewBackupStudentsHandler(source).Handle(context.Background(), BackupStudentsCommand{})
	require.NoError(t, err)
	require.Len(t, backup.Students, 2)

	target := newStubStudentRepo()
	result, err := NewRestoreStudentsHandler(target, nil, nil).Handle(context.Background(), RestoreStudentsCommand{
		Document: backup,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Inserted)
	assert.Len(t, target.records, 2)
	assert.Equal(t, 3, target.records["70101"].StrengthsCount)
}

func TestRestoreStudents_WipeFirstRequiresConfirmation(t *testing.T) {
	backup := &BackupDocument{
		Version:  backupFormatVersion,
		Students: []*student.Record{{ID: "1", Code: "70101", Name: "דני"}},
	}
	target := newStubStudentRepo(&student.Record{ID: "9", Code: "70999", Name: "ישן"})
	handler := NewRestoreStudentsHandler(target, nil, nil)

	_, err := handler.Handle(context.Background(), RestoreStudentsCommand{Document: backup, WipeFirst: true})
	require.Error(t, err)

	result, err := handler.Handle(context.Background(), RestoreStudentsCommand{
		Document: backup, WipeFirst: true, Confirmation: "DELETE",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Wiped)
	assert.Equal(t, 1, result.Inserted)
	assert.Len(t, target.records, 1)
}

func TestRestoreStudents_RejectsWrongVersion(t *testing.T) {
	handler := NewRestoreStudentsHandler(newStubStudentRepo(), nil, nil)

	_, err := handler.Handle(context.Background(), RestoreStudentsCommand{
		Document: &BackupDocument{Version: 99, Students: []*student.Record{{Code: "70101"}}},
	})
	require.Error(t, err)
}
