package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ishebot/insight-hub/internal/domain/student"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT RECORD REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// recordColumns is the canonical column list for student_records, in the
// order scanRecord expects them.
const recordColumns = `id, student_code, name, class_name, quarter,
	key_strengths, areas_needing_support, challenges_behaviors, interventions, personality_traits,
	emotional_state, learning_style, grade, last_assessment, attendance_rate,
	participation_level, collaboration_skills, critical_thinking, creativity_level,
	key_notes, teacher_recommendations,
	needs_analysis, strengths_count, performance_trend, last_analysis_date,
	created_at, updated_at`

// StudentRepository implements student.Repository for PostgreSQL.
type StudentRepository struct {
	conn *Connection
}

// NewStudentRepository creates a new StudentRepository.
func NewStudentRepository(conn *Connection) *StudentRepository {
	return &StudentRepository{conn: conn}
}

// ─────────────────────────────────────────────────────────────────────────────
// CRUD Operations
// ─────────────────────────────────────────────────────────────────────────────

// Create creates a new student record.
func (r *StudentRepository) Create(ctx context.Context, rec *student.Record) error {
	query := `
		INSERT INTO student_records (
			id, student_code, name, class_name, quarter,
			key_strengths, areas_needing_support, challenges_behaviors, interventions, personality_traits,
			emotional_state, learning_style, grade, last_assessment, attendance_rate,
			participation_level, collaboration_skills, critical_thinking, creativity_level,
			key_notes, teacher_recommendations,
			needs_analysis, strengths_count, performance_trend, last_analysis_date,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15,
			$16, $17, $18, $19,
			$20, $21,
			$22, $23, $24, $25,
			$26, $27
		)
	`

	_, err := r.conn.Exec(ctx, query, r.insertArgs(rec)...)
	if err != nil {
		if IsUniqueViolation(err) {
			return student.ErrRecordAlreadyExists
		}
		return fmt.Errorf("failed to create student record: %w", err)
	}

	return nil
}

// GetByID returns a record by internal ID.
func (r *StudentRepository) GetByID(ctx context.Context, id string) (*student.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM student_records WHERE id = $1`

	row := r.conn.QueryRow(ctx, query, id)
	return r.scanRecord(row)
}

// GetByCode returns a record by student code.
func (r *StudentRepository) GetByCode(ctx context.Context, code student.Code) (*student.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM student_records WHERE student_code = $1`

	row := r.conn.QueryRow(ctx, query, code.String())
	return r.scanRecord(row)
}

// Update updates an existing record.
func (r *StudentRepository) Update(ctx context.Context, rec *student.Record) error {
	query := `
		UPDATE student_records SET
			name = $1,
			class_name = $2,
			quarter = $3,
			key_strengths = $4,
			areas_needing_support = $5,
			challenges_behaviors = $6,
			interventions = $7,
			personality_traits = $8,
			emotional_state = $9,
			learning_style = $10,
			grade = $11,
			last_assessment = $12,
			attendance_rate = $13,
			participation_level = $14,
			collaboration_skills = $15,
			critical_thinking = $16,
			creativity_level = $17,
			key_notes = $18,
			teacher_recommendations = $19,
			needs_analysis = $20,
			strengths_count = $21,
			performance_trend = $22,
			last_analysis_date = $23,
			updated_at = $24
		WHERE id = $25
	`

	result, err := r.conn.Exec(ctx, query,
		rec.Name,
		rec.Class.String(),
		rec.Quarter,
		rec.KeyStrengths,
		rec.AreasNeedingSupport,
		rec.ChallengesBehaviors,
		rec.Interventions,
		rec.PersonalityTraits,
		rec.EmotionalState,
		rec.LearningStyle,
		rec.Grade,
		rec.LastAssessment,
		rec.AttendanceRate,
		rec.ParticipationLevel,
		rec.CollaborationSkills,
		rec.CriticalThinking,
		rec.CreativityLevel,
		rec.KeyNotes,
		rec.TeacherRecommendations,
		rec.NeedsAnalysis,
		rec.StrengthsCount,
		string(rec.PerformanceTrend),
		nullableTime(rec.LastAnalysisDate),
		rec.UpdatedAt,
		rec.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update student record: %w", err)
	}
	if result.RowsAffected() == 0 {
		return student.ErrRecordNotFound
	}

	return nil
}

// Delete removes a record by internal ID.
func (r *StudentRepository) Delete(ctx context.Context, id string) error {
	result, err := r.conn.Exec(ctx, `DELETE FROM student_records WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete student record: %w", err)
	}
	if result.RowsAffected() == 0 {
		return student.ErrRecordNotFound
	}

	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Bulk Operations
// ─────────────────────────────────────────────────────────────────────────────

// GetAll returns records with pagination.
func (r *StudentRepository) GetAll(ctx context.Context, opts student.ListOptions) ([]*student.Record, error) {
	if opts.Class != "" {
		query := r.buildListQuery(opts, "class_name = $3")
		return r.queryRecords(ctx, query, opts.Limit, opts.Offset, opts.Class.String())
	}

	query := r.buildListQuery(opts, "")
	return r.queryRecords(ctx, query, opts.Limit, opts.Offset)
}

// GetByClass returns all records belonging to a class.
func (r *StudentRepository) GetByClass(ctx context.Context, class student.Class) ([]*student.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM student_records WHERE class_name = $1 ORDER BY name ASC`

	rows, err := r.conn.Query(ctx, query, class.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query records by class: %w", err)
	}
	defer rows.Close()

	return r.scanRecords(rows)
}

// GetByCodes returns records for the given list of codes.
func (r *StudentRepository) GetByCodes(ctx context.Context, codes []student.Code) ([]*student.Record, error) {
	if len(codes) == 0 {
		return nil, nil
	}

	raw := make([]string, len(codes))
	for i, code := range codes {
		raw[i] = code.String()
	}

	query := `SELECT ` + recordColumns + ` FROM student_records WHERE student_code = ANY($1) ORDER BY name ASC`

	rows, err := r.conn.Query(ctx, query, raw)
	if err != nil {
		return nil, fmt.Errorf("failed to query records by codes: %w", err)
	}
	defer rows.Close()

	return r.scanRecords(rows)
}

// BulkUpsert inserts or updates records keyed by student code.
// Runs in a single transaction so a partial import never becomes visible.
func (r *StudentRepository) BulkUpsert(ctx context.Context, records []*student.Record) (inserted, updated int, err error) {
	if len(records) == 0 {
		return 0, 0, nil
	}

	query := `
		INSERT INTO student_records (
			id, student_code, name, class_name, quarter,
			key_strengths, areas_needing_support, challenges_behaviors, interventions, personality_traits,
			emotional_state, learning_style, grade, last_assessment, attendance_rate,
			participation_level, collaboration_skills, critical_thinking, creativity_level,
			key_notes, teacher_recommendations,
			needs_analysis, strengths_count, performance_trend, last_analysis_date,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15,
			$16, $17, $18, $19,
			$20, $21,
			$22, $23, $24, $25,
			$26, $27
		)
		ON CONFLICT (student_code) DO UPDATE SET
			name = EXCLUDED.name,
			class_name = EXCLUDED.class_name,
			quarter = EXCLUDED.quarter,
			key_strengths = EXCLUDED.key_strengths,
			areas_needing_support = EXCLUDED.areas_needing_support,
			challenges_behaviors = EXCLUDED.challenges_behaviors,
			interventions = EXCLUDED.interventions,
			personality_traits = EXCLUDED.personality_traits,
			emotional_state = EXCLUDED.emotional_state,
			learning_style = EXCLUDED.learning_style,
			grade = EXCLUDED.grade,
			last_assessment = EXCLUDED.last_assessment,
			attendance_rate = EXCLUDED.attendance_rate,
			participation_level = EXCLUDED.participation_level,
			collaboration_skills = EXCLUDED.collaboration_skills,
			critical_thinking = EXCLUDED.critical_thinking,
			creativity_level = EXCLUDED.creativity_level,
			key_notes = EXCLUDED.key_notes,
			teacher_recommendations = EXCLUDED.teacher_recommendations,
			needs_analysis = EXCLUDED.needs_analysis,
			strengths_count = EXCLUDED.strengths_count,
			performance_trend = EXCLUDED.performance_trend,
			last_analysis_date = EXCLUDED.last_analysis_date,
			updated_at = EXCLUDED.updated_at
		RETURNING (xmax = 0) AS was_inserted
	`

	err = r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		for _, rec := range records {
			var wasInserted bool
			if scanErr := tx.QueryRow(ctx, query, r.insertArgs(rec)...).Scan(&wasInserted); scanErr != nil {
				return fmt.Errorf("failed to upsert record %s: %w", rec.Code, scanErr)
			}
			if wasInserted {
				inserted++
			} else {
				updated++
			}
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}

	return inserted, updated, nil
}

// DeleteByCodes removes records for the given codes.
func (r *StudentRepository) DeleteByCodes(ctx context.Context, codes []student.Code) (int, error) {
	if len(codes) == 0 {
		return 0, nil
	}

	raw := make([]string, len(codes))
	for i, code := range codes {
		raw[i] = code.String()
	}

	result, err := r.conn.Exec(ctx, `DELETE FROM student_records WHERE student_code = ANY($1)`, raw)
	if err != nil {
		return 0, fmt.Errorf("failed to delete records by codes: %w", err)
	}

	return int(result.RowsAffected()), nil
}

// DeleteAll removes every record.
func (r *StudentRepository) DeleteAll(ctx context.Context) (int, error) {
	result, err := r.conn.Exec(ctx, `DELETE FROM student_records`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete all records: %w", err)
	}

	return int(result.RowsAffected()), nil
}

// Count returns the total number of records.
func (r *StudentRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.conn.QueryRow(ctx, `SELECT COUNT(*) FROM student_records`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}

	return count, nil
}

// CountByClass returns the number of records in a class.
func (r *StudentRepository) CountByClass(ctx context.Context, class student.Class) (int, error) {
	var count int
	err := r.conn.QueryRow(ctx,
		`SELECT COUNT(*) FROM student_records WHERE class_name = $1`, class.String(),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count records by class: %w", err)
	}

	return count, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Search & Filter
// ─────────────────────────────────────────────────────────────────────────────

// Search finds records by name or code substring.
func (r *StudentRepository) Search(ctx context.Context, query string, opts student.ListOptions) ([]*student.Record, error) {
	sqlQuery := r.buildListQuery(opts, "(name ILIKE $3 OR student_code ILIKE $3)")
	pattern := "%" + query + "%"

	return r.queryRecords(ctx, sqlQuery, opts.Limit, opts.Offset, pattern)
}

// ListClasses returns the distinct class labels present in storage.
func (r *StudentRepository) ListClasses(ctx context.Context) ([]student.Class, error) {
	rows, err := r.conn.Query(ctx,
		`SELECT DISTINCT class_name FROM student_records WHERE class_name <> '' ORDER BY class_name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list classes: %w", err)
	}
	defer rows.Close()

	var classes []student.Class
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan class name: %w", err)
		}
		classes = append(classes, student.Class(name))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return classes, nil
}

// FindNeedingAnalysis returns records flagged for re-analysis or never analyzed.
func (r *StudentRepository) FindNeedingAnalysis(ctx context.Context, limit int) ([]*student.Record, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM student_records
		WHERE needs_analysis OR last_analysis_date IS NULL
		ORDER BY updated_at ASC
		LIMIT $1
	`

	rows, err := r.conn.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query records needing analysis: %w", err)
	}
	defer rows.Close()

	return r.scanRecords(rows)
}

// FindStale returns records whose last analysis is older than the window.
func (r *StudentRepository) FindStale(ctx context.Context, olderThan time.Duration, limit int) ([]*student.Record, error) {
	cutoff := time.Now().UTC().Add(-olderThan)

	query := `
		SELECT ` + recordColumns + `
		FROM student_records
		WHERE last_analysis_date IS NOT NULL AND last_analysis_date < $1
		ORDER BY last_analysis_date ASC
		LIMIT $2
	`

	rows, err := r.conn.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale records: %w", err)
	}
	defer rows.Close()

	return r.scanRecords(rows)
}

// ─────────────────────────────────────────────────────────────────────────────
// Existence Checks
// ─────────────────────────────────────────────────────────────────────────────

// Exists reports whether a record with the ID exists.
func (r *StudentRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.conn.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM student_records WHERE id = $1)`, id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check record existence: %w", err)
	}

	return exists, nil
}

// ExistsByCode reports whether a record with the code exists.
func (r *StudentRepository) ExistsByCode(ctx context.Context, code student.Code) (bool, error) {
	var exists bool
	err := r.conn.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM student_records WHERE student_code = $1)`, code.String(),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check record existence by code: %w", err)
	}

	return exists, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

// insertArgs builds the positional argument list shared by Create and
// BulkUpsert. Must stay in sync with the INSERT column order.
func (r *StudentRepository) insertArgs(rec *student.Record) []interface{} {
	return []interface{}{
		rec.ID,
		rec.Code.String(),
		rec.Name,
		rec.Class.String(),
		rec.Quarter,
		rec.KeyStrengths,
		rec.AreasNeedingSupport,
		rec.ChallengesBehaviors,
		rec.Interventions,
		rec.PersonalityTraits,
		rec.EmotionalState,
		rec.LearningStyle,
		rec.Grade,
		rec.LastAssessment,
		rec.AttendanceRate,
		rec.ParticipationLevel,
		rec.CollaborationSkills,
		rec.CriticalThinking,
		rec.CreativityLevel,
		rec.KeyNotes,
		rec.TeacherRecommendations,
		rec.NeedsAnalysis,
		rec.StrengthsCount,
		string(rec.PerformanceTrend),
		nullableTime(rec.LastAnalysisDate),
		rec.CreatedAt,
		rec.UpdatedAt,
	}
}

// scanRecord scans a single record from a row.
func (r *StudentRepository) scanRecord(row pgx.Row) (*student.Record, error) {
	var rec student.Record
	var code, class, trend string
	var lastAnalysis *time.Time

	err := row.Scan(
		&rec.ID,
		&code,
		&rec.Name,
		&class,
		&rec.Quarter,
		&rec.KeyStrengths,
		&rec.AreasNeedingSupport,
		&rec.ChallengesBehaviors,
		&rec.Interventions,
		&rec.PersonalityTraits,
		&rec.EmotionalState,
		&rec.LearningStyle,
		&rec.Grade,
		&rec.LastAssessment,
		&rec.AttendanceRate,
		&rec.ParticipationLevel,
		&rec.CollaborationSkills,
		&rec.CriticalThinking,
		&rec.CreativityLevel,
		&rec.KeyNotes,
		&rec.TeacherRecommendations,
		&rec.NeedsAnalysis,
		&rec.StrengthsCount,
		&trend,
		&lastAnalysis,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)

	if IsNoRows(err) {
		return nil, student.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan student record: %w", err)
	}

	rec.Code = student.Code(code)
	rec.Class = student.Class(class)
	rec.PerformanceTrend = student.PerformanceTrend(trend)
	if lastAnalysis != nil {
		rec.LastAnalysisDate = *lastAnalysis
	}

	return &rec, nil
}

// scanRecords scans multiple records from rows.
func (r *StudentRepository) scanRecords(rows pgx.Rows) ([]*student.Record, error) {
	var records []*student.Record

	for rows.Next() {
		var rec student.Record
		var code, class, trend string
		var lastAnalysis *time.Time

		err := rows.Scan(
			&rec.ID,
			&code,
			&rec.Name,
			&class,
			&rec.Quarter,
			&rec.KeyStrengths,
			&rec.AreasNeedingSupport,
			&rec.ChallengesBehaviors,
			&rec.Interventions,
			&rec.PersonalityTraits,
			&rec.EmotionalState,
			&rec.LearningStyle,
			&rec.Grade,
			&rec.LastAssessment,
			&rec.AttendanceRate,
			&rec.ParticipationLevel,
			&rec.CollaborationSkills,
			&rec.CriticalThinking,
			&rec.CreativityLevel,
			&rec.KeyNotes,
			&rec.TeacherRecommendations,
			&rec.NeedsAnalysis,
			&rec.StrengthsCount,
			&trend,
			&lastAnalysis,
			&rec.CreatedAt,
			&rec.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan student record: %w", err)
		}

		rec.Code = student.Code(code)
		rec.Class = student.Class(class)
		rec.PerformanceTrend = student.PerformanceTrend(trend)
		if lastAnalysis != nil {
			rec.LastAnalysisDate = *lastAnalysis
		}

		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return records, nil
}

// buildListQuery builds a SELECT query with filters and ordering.
// Positional args $1 and $2 are reserved for LIMIT/OFFSET; an optional
// whereClause may reference $3 and up.
func (r *StudentRepository) buildListQuery(opts student.ListOptions, whereClause string) string {
	query := `SELECT ` + recordColumns + ` FROM student_records`

	conditions := []string{}
	if whereClause != "" {
		conditions = append(conditions, whereClause)
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += r.buildOrderBy(opts)
	query += " LIMIT $1 OFFSET $2"

	return query
}

// buildOrderBy builds the ORDER BY clause from a whitelist of sortable columns.
func (r *StudentRepository) buildOrderBy(opts student.ListOptions) string {
	orderField := "name"
	validFields := map[string]string{
		"name":               "name",
		"code":               "student_code",
		"student_code":       "student_code",
		"class":              "class_name",
		"class_name":         "class_name",
		"grade":              "grade",
		"attendance_rate":    "attendance_rate",
		"last_analysis_date": "last_analysis_date",
		"created_at":         "created_at",
		"updated_at":         "updated_at",
	}

	if field, ok := validFields[opts.SortBy]; ok {
		orderField = field
	}

	direction := "ASC"
	if opts.SortDesc {
		direction = "DESC"
	}

	return fmt.Sprintf(" ORDER BY %s %s", orderField, direction)
}

// queryRecords executes a list query and returns records.
func (r *StudentRepository) queryRecords(ctx context.Context, query string, limit, offset int, args ...interface{}) ([]*student.Record, error) {
	allArgs := append([]interface{}{limit, offset}, args...)
	rows, err := r.conn.Query(ctx, query, allArgs...)
	if err != nil {
		return nil, fmt.Errorf("failed to query student records: %w", err)
	}
	defer rows.Close()

	return r.scanRecords(rows)
}

// nullableTime maps the zero time to SQL NULL.
func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
