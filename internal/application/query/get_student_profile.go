package query

import (
	"context"

	"github.com/ishebot/insight-hub/internal/domain/analysis"
	"github.com/ishebot/insight-hub/internal/domain/insight"
	"github.com/ishebot/insight-hub/internal/domain/shared"
	"github.com/ishebot/insight-hub/internal/domain/student"
	"github.com/ishebot/insight-hub/internal/infrastructure/persistence/redis"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET STUDENT PROFILE QUERY
// Serves one student's record together with the personalized insight bundle
// and a risk assessment. Record reads go through the Redis cache.
// ══════════════════════════════════════════════════════════════════════════════

// GetStudentProfileQuery contains the query parameters.
type GetStudentProfileQuery struct {
	// Code - the student code to look up.
	Code string

	// SkipCache forces a storage read even when the record is cached.
	SkipCache bool
}

// Validate checks the query parameters.
func (q GetStudentProfileQuery) Validate() error {
	if !student.Code(q.Code).IsValid() {
		return shared.ErrInvalidStudentCode
	}
	return nil
}

// GetStudentProfileResult contains the full per-student package.
type GetStudentProfileResult struct {
	// Record - the raw student record.
	Record *student.Record `json:"record"`

	// Bundle - personalized insights, recommendations and seating.
	Bundle *insight.StudentBundle `json:"bundle"`

	// RiskLevel - "low", "medium" or "high" under the strict policy.
	RiskLevel string `json:"riskLevel"`

	// RiskFactors - the factors that contributed to the risk level.
	RiskFactors []string `json:"riskFactors"`
}

// GetStudentProfileHandler handles student profile queries.
type GetStudentProfileHandler struct {
	studentRepo  student.Repository
	studentCache *redis.StudentCache
	generator    *insight.Generator
	policy       analysis.RiskPolicy
	analysisCfg  *analysis.Config
}

// NewGetStudentProfileHandler creates a new handler. The strict risk policy
// is used so individual profile pages never understate risk.
func NewGetStudentProfileHandler(
	studentRepo student.Repository,
	studentCache *redis.StudentCache,
	generator *insight.Generator,
) *GetStudentProfileHandler {
	if generator == nil {
		generator = insight.NewGenerator(nil, nil)
	}
	return &GetStudentProfileHandler{
		studentRepo:  studentRepo,
		studentCache: studentCache,
		generator:    generator,
		policy:       analysis.StrictRiskPolicy,
		analysisCfg:  analysis.DefaultConfig(),
	}
}

// Handle executes the query.
func (h *GetStudentProfileHandler) Handle(ctx context.Context, query GetStudentProfileQuery) (*GetStudentProfileResult, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	rec, err := h.loadRecord(ctx, student.Code(query.Code), query.SkipCache)
	if err != nil {
		return nil, err
	}

	level, factors := h.policy.Assess(rec, h.analysisCfg)

	return &GetStudentProfileResult{
		Record:      rec,
		Bundle:      h.generator.StudentBundle(rec),
		RiskLevel:   string(level),
		RiskFactors: factors,
	}, nil
}

// loadRecord reads through the cache, falling back to storage on a miss and
// warming the cache on the way out.
func (h *GetStudentProfileHandler) loadRecord(ctx context.Context, code student.Code, skipCache bool) (*student.Record, error) {
	if !skipCache && h.studentCache != nil {
		if rec, err := h.studentCache.Get(ctx, code); err == nil && rec != nil {
			return rec, nil
		}
	}

	rec, err := h.studentRepo.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if h.studentCache != nil {
		_ = h.studentCache.Set(ctx, rec, redis.TTLStudentCache)
	}
	return rec, nil
}
