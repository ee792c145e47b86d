package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ishebot/insight-hub/internal/domain/analysis"
)

// ══════════════════════════════════════════════════════════════════════════════
// ANALYSIS SNAPSHOT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// SnapshotRepository implements analysis.SnapshotRepository for PostgreSQL.
// The aggregation payload is stored as JSONB so the schema does not have to
// track every statistic the aggregator produces.
type SnapshotRepository struct {
	conn *Connection
}

// NewSnapshotRepository creates a new SnapshotRepository.
func NewSnapshotRepository(conn *Connection) *SnapshotRepository {
	return &SnapshotRepository{conn: conn}
}

// Save stores a snapshot.
func (r *SnapshotRepository) Save(ctx context.Context, snap *analysis.Snapshot) error {
	payload, err := json.Marshal(snap.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot payload: %w", err)
	}

	query := `
		INSERT INTO analysis_snapshots (id, scope, quarter, total_students, analyzed_students, payload, computed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = r.conn.Exec(ctx, query,
		snap.ID,
		snap.Scope,
		snap.Quarter,
		snap.Result.TotalStudents,
		snap.Result.AnalyzedStudents,
		payload,
		snap.ComputedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	return nil
}

// GetLatest returns the most recent snapshot for a scope.
func (r *SnapshotRepository) GetLatest(ctx context.Context, scope string) (*analysis.Snapshot, error) {
	query := `
		SELECT id, scope, quarter, payload, computed_at
		FROM analysis_snapshots
		WHERE scope = $1
		ORDER BY computed_at DESC
		LIMIT 1
	`

	var snap analysis.Snapshot
	var payload []byte

	err := r.conn.QueryRow(ctx, query, scope).Scan(
		&snap.ID,
		&snap.Scope,
		&snap.Quarter,
		&payload,
		&snap.ComputedAt,
	)
	if IsNoRows(err) {
		return nil, analysis.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest snapshot: %w", err)
	}

	var result analysis.AggregatedAnalysis
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot payload: %w", err)
	}
	snap.Result = &result

	return &snap, nil
}

// ListRecent returns the most recent snapshots for a scope, newest first.
func (r *SnapshotRepository) ListRecent(ctx context.Context, scope string, limit int) ([]*analysis.Snapshot, error) {
	query := `
		SELECT id, scope, quarter, payload, computed_at
		FROM analysis_snapshots
		WHERE scope = $1
		ORDER BY computed_at DESC
		LIMIT $2
	`

	rows, err := r.conn.Query(ctx, query, scope, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []*analysis.Snapshot
	for rows.Next() {
		var snap analysis.Snapshot
		var payload []byte

		if err := rows.Scan(&snap.ID, &snap.Scope, &snap.Quarter, &payload, &snap.ComputedAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}

		var result analysis.AggregatedAnalysis
		if err := json.Unmarshal(payload, &result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal snapshot payload: %w", err)
		}
		snap.Result = &result

		snaps = append(snaps, &snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return snaps, nil
}

// Prune removes snapshots older than the retention window.
func (r *SnapshotRepository) Prune(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)

	result, err := r.conn.Exec(ctx,
		`DELETE FROM analysis_snapshots WHERE computed_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune snapshots: %w", err)
	}

	return int(result.RowsAffected()), nil
}
