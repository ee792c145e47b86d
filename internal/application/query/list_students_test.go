package query

import (
	"context"
	"testing"

	"github.com/ishebot/insight-hub/internal/domain/student"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubStudentRepo implements the slice of student.Repository the queries
// use. The embedded interface keeps the stub small; unimplemented methods
// panic.
type stubStudentRepo struct {
	student.Repository
	records  []*student.Record
	lastOpts student.ListOptions
}

func (s *stubStudentRepo) GetAll(ctx context.Context, opts student.ListOptions) ([]*student.Record, error) {
	s.lastOpts = opts
	return s.records, nil
}

func (s *stubStudentRepo) Search(ctx context.Context, query string, opts student.ListOptions) ([]*student.Record, error) {
	s.lastOpts = opts
	matched := make([]*student.Record, 0)
	for _, r := range s.records {
		if string(r.Code) == query || r.Name == query {
			matched = append(matched, r)
		}
	}
	return matched, nil
}

func (s *stubStudentRepo) GetByClass(ctx context.Context, class student.Class) ([]*student.Record, error) {
	matched := make([]*student.Record, 0)
	for _, r := range s.records {
		if r.Class == class {
			matched = append(matched, r)
		}
	}
	return matched, nil
}

func (s *stubStudentRepo) GetByCode(ctx context.Context, code student.Code) (*student.Record, error) {
	for _, r := range s.records {
		if r.Code == code {
			return r, nil
		}
	}
	return nil, student.ErrRecordNotFound
}

func (s *stubStudentRepo) Count(ctx context.Context) (int, error) {
	return len(s.records), nil
}

func (s *stubStudentRepo) CountByClass(ctx context.Context, class student.Class) (int, error) {
	n := 0
	for _, r := range s.records {
		if r.Class == class {
			n++
		}
	}
	return n, nil
}

func rosterFixture() []*student.Record {
	return []*student.Record{
		{ID: "1", Code: "70101", Name: "דני לוי", Class: "ז1", NeedsAnalysis: false, StrengthsCount: 3, LearningStyle: "visual", Grade: 88},
		{ID: "2", Code: "70102", Name: "שרה כהן", Class: "ז1", NeedsAnalysis: false, StrengthsCount: 2, LearningStyle: "auditory", Grade: 77},
		{ID: "3", Code: "70201", Name: "יוסי מזרחי", Class: "ז2", NeedsAnalysis: true},
	}
}

func TestListStudents_DefaultsAndTotal(t *testing.T) {
	repo := &stubStudentRepo{records: rosterFixture()}
	handler := NewListStudentsHandler(repo)

	result, err := handler.Handle(context.Background(), ListStudentsQuery{})
	require.NoError(t, err)

	assert.Len(t, result.Students, 3)
	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 1, result.Page)
	assert.Equal(t, 50, result.PageSize)
	assert.Equal(t, 0, repo.lastOpts.Offset)
}

func TestListStudents_Pagination(t *testing.T) {
	repo := &stubStudentRepo{records: rosterFixture()}
	handler := NewListStudentsHandler(repo)

	result, err := handler.Handle(context.Background(), ListStudentsQuery{Page: 3, PageSize: 10})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Page)
	assert.Equal(t, 10, result.PageSize)
	assert.Equal(t, 20, repo.lastOpts.Offset)
	assert.Equal(t, 10, repo.lastOpts.Limit)
}

func TestListStudents_PageSizeCap(t *testing.T) {
	repo := &stubStudentRepo{records: rosterFixture()}
	handler := NewListStudentsHandler(repo)

	result, err := handler.Handle(context.Background(), ListStudentsQuery{PageSize: 5000})
	require.NoError(t, err)

	assert.Equal(t, maxPageSize, result.PageSize)
}

func TestListStudents_SearchCountsMatches(t *testing.T) {
	repo := &stubStudentRepo{records: rosterFixture()}
	handler := NewListStudentsHandler(repo)

	result, err := handler.Handle(context.Background(), ListStudentsQuery{Search: "70102"})
	require.NoError(t, err)

	require.Len(t, result.Students, 1)
	assert.Equal(t, "שרה כהן", result.Students[0].Name)
	assert.Equal(t, 1, result.Total)
}

func TestListStudents_ClassFilterTotal(t *testing.T) {
	repo := &stubStudentRepo{records: rosterFixture()}
	handler := NewListStudentsHandler(repo)

	result, err := handler.Handle(context.Background(), ListStudentsQuery{Class: "ז1"})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Total)
	assert.Equal(t, student.Class("ז1"), repo.lastOpts.Class)
}

func TestListStudents_RejectsUnknownSortField(t *testing.T) {
	handler := NewListStudentsHandler(&stubStudentRepo{})

	_, err := handler.Handle(context.Background(), ListStudentsQuery{SortBy: "password"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported sort field")
}
