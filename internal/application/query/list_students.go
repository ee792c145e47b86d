package query

import (
	"context"
	"strings"

	"github.com/ishebot/insight-hub/internal/domain/shared"
	"github.com/ishebot/insight-hub/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST STUDENTS QUERY
// Paged roster listing with class filter, substring search and sorting.
// ══════════════════════════════════════════════════════════════════════════════

const maxPageSize = 200

// sortableFields mirrors the columns the storage layer accepts.
var sortableFields = map[string]bool{
	"name":            true,
	"student_code":    true,
	"class_name":      true,
	"grade":           true,
	"attendance_rate": true,
	"strengths_count": true,
	"updated_at":      true,
}

// ListStudentsQuery contains the query parameters.
type ListStudentsQuery struct {
	// Class - optional class filter.
	Class string

	// Search - optional name or code substring.
	Search string

	// SortBy - sort column; defaults to name.
	SortBy string

	// SortDesc - sort descending.
	SortDesc bool

	// Page - 1-based page index.
	Page int

	// PageSize - rows per page; capped at maxPageSize.
	PageSize int
}

// Validate checks the query parameters.
func (q ListStudentsQuery) Validate() error {
	if q.Page < 0 || q.PageSize < 0 {
		return shared.WrapError("query", "ListStudents", shared.ErrValidation, "page and pageSize must not be negative", nil)
	}
	if q.SortBy != "" && !sortableFields[q.SortBy] {
		return shared.WrapError("query", "ListStudents", shared.ErrValidation, "unsupported sort field: "+q.SortBy, nil)
	}
	return nil
}

// options converts the query into storage list options.
func (q ListStudentsQuery) options() student.ListOptions {
	opts := student.DefaultListOptions()

	page := q.Page
	if page < 1 {
		page = 1
	}
	size := q.PageSize
	if size < 1 {
		size = opts.Limit
	}
	if size > maxPageSize {
		size = maxPageSize
	}

	opts = opts.WithLimit(size).WithOffset((page - 1) * size)
	if q.SortBy != "" {
		opts = opts.WithSort(q.SortBy, q.SortDesc)
	}
	if q.Class != "" {
		opts = opts.WithClass(student.Class(q.Class))
	}
	return opts
}

// ListStudentsResult is one page of the roster.
type ListStudentsResult struct {
	// Students - the page of records.
	Students []*student.Record `json:"students"`

	// Total - total matching records ignoring pagination.
	Total int `json:"total"`

	// Page - the 1-based page served.
	Page int `json:"page"`

	// PageSize - rows per page used.
	PageSize int `json:"pageSize"`
}

// ListStudentsHandler handles roster listing queries.
type ListStudentsHandler struct {
	studentRepo student.Repository
}

// NewListStudentsHandler creates a new handler.
func NewListStudentsHandler(studentRepo student.Repository) *ListStudentsHandler {
	return &ListStudentsHandler{studentRepo: studentRepo}
}

// Handle executes the query.
func (h *ListStudentsHandler) Handle(ctx context.Context, query ListStudentsQuery) (*ListStudentsResult, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	opts := query.options()

	var (
		records []*student.Record
		err     error
	)
	if search := strings.TrimSpace(query.Search); search != "" {
		records, err = h.studentRepo.Search(ctx, search, opts)
	} else {
		records, err = h.studentRepo.GetAll(ctx, opts)
	}
	if err != nil {
		return nil, shared.WrapError("query", "ListStudents", shared.ErrServiceUnavailable, "failed to list student records", err)
	}

	total, err := h.countTotal(ctx, query)
	if err != nil {
		return nil, err
	}

	page := query.Page
	if page < 1 {
		page = 1
	}
	return &ListStudentsResult{
		Students: records,
		Total:    total,
		Page:     page,
		PageSize: opts.Limit,
	}, nil
}

// countTotal returns the unpaginated match count. Search results are counted
// client-side because substring matches are rare enough not to need a
// dedicated count query.
func (h *ListStudentsHandler) countTotal(ctx context.Context, query ListStudentsQuery) (int, error) {
	if strings.TrimSpace(query.Search) != "" {
		all, err := h.studentRepo.Search(ctx, strings.TrimSpace(query.Search), student.DefaultListOptions().WithLimit(10000))
		if err != nil {
			return 0, shared.WrapError("query", "ListStudents", shared.ErrServiceUnavailable, "failed to count search results", err)
		}
		return len(all), nil
	}
	if query.Class != "" {
		return h.studentRepo.CountByClass(ctx, student.Class(query.Class))
	}
	return h.studentRepo.Count(ctx)
}
