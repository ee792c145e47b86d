package analysis

import (
	"context"
	"errors"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// ANALYSIS SNAPSHOTS
// A snapshot is a persisted aggregation result, kept so dashboards can serve
// the last known statistics without recomputing, and so consecutive runs can
// be compared over time.
// ══════════════════════════════════════════════════════════════════════════════

// ScopeAll marks a snapshot computed over the whole roster. Class-scoped
// snapshots use the class label itself as the scope.
const ScopeAll = "all"

// ErrSnapshotNotFound is returned when no snapshot exists for a scope.
var ErrSnapshotNotFound = errors.New("analysis snapshot not found")

// Snapshot is a stored aggregation result.
type Snapshot struct {
	// ID - internal unique identifier (UUID in string form).
	ID string

	// Scope - ScopeAll or a class label.
	Scope string

	// Quarter - assessment period the snapshot covers, if known.
	Quarter string

	// Result - the full aggregation payload.
	Result *AggregatedAnalysis

	// ComputedAt - when the aggregation ran.
	ComputedAt time.Time
}

// SnapshotRepository defines storage operations for snapshots.
type SnapshotRepository interface {
	// Save stores a snapshot.
	Save(ctx context.Context, snap *Snapshot) error

	// GetLatest returns the most recent snapshot for a scope.
	// Returns ErrSnapshotNotFound if the scope has never been aggregated.
	GetLatest(ctx context.Context, scope string) (*Snapshot, error)

	// ListRecent returns the most recent snapshots for a scope, newest
	// first, for trend views over past runs.
	ListRecent(ctx context.Context, scope string, limit int) ([]*Snapshot, error)

	// Prune removes snapshots older than the retention window and returns
	// the number of rows deleted.
	Prune(ctx context.Context, olderThan time.Duration) (int, error)
}
