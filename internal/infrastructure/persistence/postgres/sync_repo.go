package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/ishebot/insight-hub/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// SYNC REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// lastSyncKey is the sync_state row holding the last successful roster sync.
const lastSyncKey = "last_roster_sync"

// SyncRepository implements student.SyncRepository for PostgreSQL.
type SyncRepository struct {
	conn *Connection
}

// NewSyncRepository creates a new SyncRepository.
func NewSyncRepository(conn *Connection) *SyncRepository {
	return &SyncRepository{conn: conn}
}

// GetLastSyncTime returns the time of the last successful sync.
// A zero time is returned when no sync has ever completed.
func (r *SyncRepository) GetLastSyncTime(ctx context.Context) (time.Time, error) {
	var t time.Time
	err := r.conn.QueryRow(ctx,
		`SELECT value FROM sync_state WHERE key = $1`, lastSyncKey,
	).Scan(&t)

	if IsNoRows(err) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get last sync time: %w", err)
	}

	return t, nil
}

// SetLastSyncTime records the time of a successful sync.
func (r *SyncRepository) SetLastSyncTime(ctx context.Context, t time.Time) error {
	query := `
		INSERT INTO sync_state (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`

	_, err := r.conn.Exec(ctx, query, lastSyncKey, t)
	if err != nil {
		return fmt.Errorf("failed to set last sync time: %w", err)
	}

	return nil
}

// SaveSyncError records a synchronization failure.
func (r *SyncRepository) SaveSyncError(ctx context.Context, syncErr student.SyncError) error {
	query := `
		INSERT INTO sync_errors (student_code, error_type, message, occurred_at)
		VALUES ($1, $2, $3, $4)
	`

	occurredAt := syncErr.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	_, err := r.conn.Exec(ctx, query,
		syncErr.StudentCode,
		syncErr.ErrorType,
		syncErr.Message,
		occurredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save sync error: %w", err)
	}

	return nil
}

// GetSyncErrors returns failures recorded since the given time,
// newest first.
func (r *SyncRepository) GetSyncErrors(ctx context.Context, since time.Time) ([]student.SyncError, error) {
	query := `
		SELECT student_code, error_type, message, occurred_at
		FROM sync_errors
		WHERE occurred_at >= $1
		ORDER BY occurred_at DESC
	`

	rows, err := r.conn.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync errors: %w", err)
	}
	defer rows.Close()

	var errs []student.SyncError
	for rows.Next() {
		var e student.SyncError
		if err := rows.Scan(&e.StudentCode, &e.ErrorType, &e.Message, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan sync error: %w", err)
		}
		errs = append(errs, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return errs, nil
}
