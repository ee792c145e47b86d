package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE STUDENT RECORDS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create student_records table
-- Version: 001

CREATE TABLE IF NOT EXISTS student_records (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    student_code VARCHAR(30) NOT NULL UNIQUE,
    name VARCHAR(100) NOT NULL,
    class_name VARCHAR(30) NOT NULL DEFAULT '',
    quarter VARCHAR(20) NOT NULL DEFAULT '',

    key_strengths TEXT[] NOT NULL DEFAULT '{}',
    areas_needing_support TEXT[] NOT NULL DEFAULT '{}',
    challenges_behaviors TEXT[] NOT NULL DEFAULT '{}',
    interventions TEXT[] NOT NULL DEFAULT '{}',
    personality_traits TEXT[] NOT NULL DEFAULT '{}',

    emotional_state VARCHAR(100) NOT NULL DEFAULT '',
    learning_style VARCHAR(50) NOT NULL DEFAULT '',
    grade INTEGER NOT NULL DEFAULT 0,
    last_assessment INTEGER NOT NULL DEFAULT 0,
    attendance_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
    participation_level VARCHAR(50) NOT NULL DEFAULT '',
    collaboration_skills VARCHAR(50) NOT NULL DEFAULT '',
    critical_thinking VARCHAR(50) NOT NULL DEFAULT '',
    creativity_level VARCHAR(50) NOT NULL DEFAULT '',
    key_notes TEXT NOT NULL DEFAULT '',
    teacher_recommendations TEXT NOT NULL DEFAULT '',

    needs_analysis BOOLEAN NOT NULL DEFAULT TRUE,
    strengths_count INTEGER NOT NULL DEFAULT 0,
    performance_trend VARCHAR(20) NOT NULL DEFAULT '',
    last_analysis_date TIMESTAMP WITH TIME ZONE,

    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_grade CHECK (grade >= 0 AND grade <= 100),
    CONSTRAINT valid_last_assessment CHECK (last_assessment >= 0 AND last_assessment <= 100),
    CONSTRAINT valid_attendance CHECK (attendance_rate >= 0 AND attendance_rate <= 100),
    CONSTRAINT valid_trend CHECK (performance_trend IN ('', 'improving', 'stable', 'declining'))
);

-- Indexes for common queries
CREATE INDEX IF NOT EXISTS idx_student_records_code ON student_records(student_code);
CREATE INDEX IF NOT EXISTS idx_student_records_class ON student_records(class_name);
CREATE INDEX IF NOT EXISTS idx_student_records_needs_analysis ON student_records(needs_analysis) WHERE needs_analysis;
CREATE INDEX IF NOT EXISTS idx_student_records_last_analysis ON student_records(last_analysis_date);
CREATE INDEX IF NOT EXISTS idx_student_records_name ON student_records(name);
`

const migration001Down = `
DROP TABLE IF EXISTS student_records;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE ANALYSIS SNAPSHOTS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create analysis_snapshots table
-- Version: 002

CREATE TABLE IF NOT EXISTS analysis_snapshots (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    scope VARCHAR(40) NOT NULL DEFAULT 'all',
    quarter VARCHAR(20) NOT NULL DEFAULT '',
    total_students INTEGER NOT NULL DEFAULT 0,
    analyzed_students INTEGER NOT NULL DEFAULT 0,
    payload JSONB NOT NULL,
    computed_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

-- Latest-snapshot lookups per scope
CREATE INDEX IF NOT EXISTS idx_analysis_snapshots_scope_time
    ON analysis_snapshots(scope, computed_at DESC);
`

const migration002Down = `
DROP TABLE IF EXISTS analysis_snapshots;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: CREATE SYNC STATE
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- Migration: Create roster sync bookkeeping tables
-- Version: 003

CREATE TABLE IF NOT EXISTS sync_state (
    key VARCHAR(50) PRIMARY KEY,
    value TIMESTAMP WITH TIME ZONE NOT NULL
);

CREATE TABLE IF NOT EXISTS sync_errors (
    id BIGSERIAL PRIMARY KEY,
    student_code VARCHAR(30) NOT NULL DEFAULT '',
    error_type VARCHAR(50) NOT NULL,
    message TEXT NOT NULL,
    occurred_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_sync_errors_occurred_at ON sync_errors(occurred_at DESC);
`

const migration003Down = `
DROP TABLE IF EXISTS sync_errors;
DROP TABLE IF EXISTS sync_state;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATOR
// ══════════════════════════════════════════════════════════════════════════════

// Migration is one versioned schema change. Both server and worker run
// the migrator on startup, so either binary can be deployed first.
type Migration struct {
	Version int
	Name    string
	UpSQL   string
	DownSQL string
}

// GetMigrations returns the embedded migrations in order.
func GetMigrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_student_records", UpSQL: migration001Up, DownSQL: migration001Down},
		{Version: 2, Name: "create_analysis_snapshots", UpSQL: migration002Up, DownSQL: migration002Down},
		{Version: 3, Name: "create_sync_state", UpSQL: migration003Up, DownSQL: migration003Down},
	}
}

// Migrator applies pending migrations, tracking them in schema_migrations.
type Migrator struct {
	conn       *Connection
	migrations []Migration
}

// NewMigrator creates a migrator with the embedded migrations.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{conn: conn, migrations: GetMigrations()}
}

// Migrate applies every migration that has not been recorded yet. Each
// migration runs in its own transaction together with its bookkeeping
// row, so a failure leaves the schema at the last good version.
func (m *Migrator) Migrate(ctx context.Context) error {
	_, err := m.conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := m.appliedVersions(ctx)
	if err != nil {
		return err
	}

	for _, mig := range m.migrations {
		if applied[mig.Version] {
			continue
		}
		if mig.UpSQL == "" {
			return fmt.Errorf("%w: missing up SQL for migration %d", ErrMigrationFailed, mig.Version)
		}

		err := m.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, mig.UpSQL); err != nil {
				return fmt.Errorf("failed to execute migration %d: %w", mig.Version, err)
			}
			_, err := tx.Exec(ctx,
				"INSERT INTO schema_migrations (version, name) VALUES ($1, $2)",
				mig.Version, mig.Name,
			)
			return err
		})
		if err != nil {
			return fmt.Errorf("%w: version %d: %v", ErrMigrationFailed, mig.Version, err)
		}
	}

	return nil
}

func (m *Migrator) appliedVersions(ctx context.Context) (map[int]bool, error) {
	rows, err := m.conn.Query(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		applied[version] = true
	}
	return applied, rows.Err()
}
