package student

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// These interfaces define the storage contract for student records.
// Implementations live in infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository defines CRUD and query operations for student records.
type Repository interface {
	// ─────────────────────────────────────────────────────────────────────────
	// CRUD Operations
	// ─────────────────────────────────────────────────────────────────────────

	// Create creates a new student record.
	// Returns ErrRecordAlreadyExists if a record with the same code exists.
	Create(ctx context.Context, record *Record) error

	// GetByID returns a record by internal ID.
	// Returns ErrRecordNotFound if no record exists.
	GetByID(ctx context.Context, id string) (*Record, error)

	// GetByCode returns a record by student code.
	// Returns ErrRecordNotFound if no record exists.
	GetByCode(ctx context.Context, code Code) (*Record, error)

	// Update updates an existing record.
	// Returns ErrRecordNotFound if no record exists.
	Update(ctx context.Context, record *Record) error

	// Delete removes a record by internal ID.
	// Returns ErrRecordNotFound if no record exists.
	Delete(ctx context.Context, id string) error

	// ─────────────────────────────────────────────────────────────────────────
	// Bulk Operations
	// ─────────────────────────────────────────────────────────────────────────

	// GetAll returns records with pagination.
	GetAll(ctx context.Context, opts ListOptions) ([]*Record, error)

	// GetByClass returns all records belonging to a class.
	GetByClass(ctx context.Context, class Class) ([]*Record, error)

	// GetByCodes returns records for the given list of codes.
	// Unknown codes are skipped, not reported as errors.
	GetByCodes(ctx context.Context, codes []Code) ([]*Record, error)

	// BulkUpsert inserts or updates records keyed by student code.
	// Returns the number of inserted and updated rows.
	BulkUpsert(ctx context.Context, records []*Record) (inserted, updated int, err error)

	// DeleteByCodes removes records for the given codes.
	// Returns the number of deleted rows.
	DeleteByCodes(ctx context.Context, codes []Code) (int, error)

	// DeleteAll removes every record. Used by the admin purge flow.
	DeleteAll(ctx context.Context) (int, error)

	// Count returns the total number of records.
	Count(ctx context.Context) (int, error)

	// CountByClass returns the number of records in a class.
	CountByClass(ctx context.Context, class Class) (int, error)

	// ─────────────────────────────────────────────────────────────────────────
	// Search & Filter
	// ─────────────────────────────────────────────────────────────────────────

	// Search finds records by name or code substring.
	Search(ctx context.Context, query string, opts ListOptions) ([]*Record, error)

	// ListClasses returns the distinct class labels present in storage.
	ListClasses(ctx context.Context) ([]Class, error)

	// FindNeedingAnalysis returns records flagged for re-analysis or never
	// analyzed at all.
	FindNeedingAnalysis(ctx context.Context, limit int) ([]*Record, error)

	// FindStale returns records whose last analysis is older than the window.
	FindStale(ctx context.Context, olderThan time.Duration, limit int) ([]*Record, error)

	// ─────────────────────────────────────────────────────────────────────────
	// Existence Checks
	// ─────────────────────────────────────────────────────────────────────────

	// Exists reports whether a record with the ID exists.
	Exists(ctx context.Context, id string) (bool, error)

	// ExistsByCode reports whether a record with the code exists.
	ExistsByCode(ctx context.Context, code Code) (bool, error)
}

// ListOptions holds pagination and sorting parameters.
type ListOptions struct {
	// Offset - pagination offset.
	Offset int

	// Limit - maximum number of rows.
	Limit int

	// SortBy - column to sort by.
	SortBy string

	// SortDesc - sort in descending order.
	SortDesc bool

	// Class - optional class filter (empty means all classes).
	Class Class
}

// DefaultListOptions returns sane defaults for listing.
func DefaultListOptions() ListOptions {
	return ListOptions{
		Offset:   0,
		Limit:    50,
		SortBy:   "name",
		SortDesc: false,
	}
}

// WithOffset sets the pagination offset.
func (o ListOptions) WithOffset(offset int) ListOptions {
	o.Offset = offset
	return o
}

// WithLimit sets the row limit.
func (o ListOptions) WithLimit(limit int) ListOptions {
	o.Limit = limit
	return o
}

// WithSort sets the sort column and direction.
func (o ListOptions) WithSort(field string, desc bool) ListOptions {
	o.SortBy = field
	o.SortDesc = desc
	return o
}

// WithClass restricts listing to a single class.
func (o ListOptions) WithClass(class Class) ListOptions {
	o.Class = class
	return o
}

// ══════════════════════════════════════════════════════════════════════════════
// SYNC REPOSITORY
// Tracks synchronization state with the external roster source.
// ══════════════════════════════════════════════════════════════════════════════

// SyncRepository defines operations for roster synchronization bookkeeping.
type SyncRepository interface {
	// GetLastSyncTime returns the time of the last successful sync.
	GetLastSyncTime(ctx context.Context) (time.Time, error)

	// SetLastSyncTime records the time of a successful sync.
	SetLastSyncTime(ctx context.Context, t time.Time) error

	// SaveSyncError records a synchronization failure.
	SaveSyncError(ctx context.Context, syncErr SyncError) error

	// GetSyncErrors returns failures recorded since the given time.
	GetSyncErrors(ctx context.Context, since time.Time) ([]SyncError, error)
}

// SyncError describes a single synchronization failure.
type SyncError struct {
	// StudentCode - affected student code, if applicable.
	StudentCode string

	// ErrorType - failure category.
	ErrorType string

	// Message - human-readable description.
	Message string

	// OccurredAt - when the failure happened.
	OccurredAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// CACHE INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// Cache defines caching operations for student records.
type Cache interface {
	// Get fetches a record from the cache by code.
	Get(ctx context.Context, code Code) (*Record, error)

	// Set stores a record in the cache.
	Set(ctx context.Context, record *Record, ttl time.Duration) error

	// Delete removes a record from the cache.
	Delete(ctx context.Context, code Code) error

	// InvalidateClass drops every cached entry belonging to a class.
	InvalidateClass(ctx context.Context, class Class) error

	// InvalidateAll clears the whole student cache.
	InvalidateAll(ctx context.Context) error
}
