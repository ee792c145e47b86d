package query

import (
	"context"
	"time"

	"github.com/ishebot/insight-hub/internal/domain/analysis"
	"github.com/ishebot/insight-hub/internal/domain/insight"
	"github.com/ishebot/insight-hub/internal/domain/shared"
	"github.com/ishebot/insight-hub/internal/domain/student"
	"github.com/ishebot/insight-hub/internal/infrastructure/persistence/redis"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET CLASS INSIGHTS QUERY
// Serves the rule-generated pedagogical insights and recommendations for a
// class or the whole roster. Results are cached per scope since generation
// walks every record.
// ══════════════════════════════════════════════════════════════════════════════

// GetClassInsightsQuery contains the query parameters.
type GetClassInsightsQuery struct {
	// Class - class label; empty means the whole roster.
	Class string

	// ForceRegenerate skips the cache and regenerates from storage.
	ForceRegenerate bool
}

// scope returns the cache scope for this query.
func (q GetClassInsightsQuery) scope() string {
	if q.Class == "" {
		return analysis.ScopeAll
	}
	return q.Class
}

// GetClassInsightsResult contains the generated guidance.
type GetClassInsightsResult struct {
	// Insights - class-level observations sorted by priority.
	Insights []insight.Insight `json:"insights"`

	// Recommendations - actionable teaching recommendations sorted by urgency.
	Recommendations []insight.Recommendation `json:"recommendations"`

	// Scope - the scope the guidance was generated for.
	Scope string `json:"scope"`

	// GeneratedAt - when the guidance was produced.
	GeneratedAt time.Time `json:"generatedAt"`

	// Source - "cache" or "live".
	Source string `json:"source"`
}

// GetClassInsightsHandler handles class insight queries.
type GetClassInsightsHandler struct {
	studentRepo student.Repository
	cache       *redis.AnalysisCache
	generator   *insight.Generator
}

// NewGetClassInsightsHandler creates a new handler.
func NewGetClassInsightsHandler(
	studentRepo student.Repository,
	cache *redis.AnalysisCache,
	generator *insight.Generator,
) *GetClassInsightsHandler {
	if generator == nil {
		generator = insight.NewGenerator(nil, nil)
	}
	return &GetClassInsightsHandler{
		studentRepo: studentRepo,
		cache:       cache,
		generator:   generator,
	}
}

// Handle executes the query.
func (h *GetClassInsightsHandler) Handle(ctx context.Context, query GetClassInsightsQuery) (*GetClassInsightsResult, error) {
	scope := query.scope()

	if !query.ForceRegenerate && h.cache != nil {
		if bundle, err := h.cache.GetInsights(ctx, scope); err == nil {
			return &GetClassInsightsResult{
				Insights:        bundle.Insights,
				Recommendations: bundle.Recommendations,
				Scope:           scope,
				GeneratedAt:     time.Now().UTC(),
				Source:          "cache",
			}, nil
		}
	}

	records, err := h.loadRecords(ctx, query.Class)
	if err != nil {
		return nil, shared.WrapError("query", "GetClassInsights", shared.ErrServiceUnavailable, "failed to load student records", err)
	}

	insights := h.generator.ClassInsights(records)
	recommendations := h.generator.ClassRecommendations(records)

	if h.cache != nil {
		_ = h.cache.SetInsights(ctx, scope, &redis.InsightBundle{
			Insights:        insights,
			Recommendations: recommendations,
		}, redis.TTLInsightCache)
	}

	return &GetClassInsightsResult{
		Insights:        insights,
		Recommendations: recommendations,
		Scope:           scope,
		GeneratedAt:     time.Now().UTC(),
		Source:          "live",
	}, nil
}

// loadRecords loads the roster or one class.
func (h *GetClassInsightsHandler) loadRecords(ctx context.Context, class string) ([]*student.Record, error) {
	if class != "" {
		return h.studentRepo.GetByClass(ctx, student.Class(class))
	}
	return h.studentRepo.GetAll(ctx, student.DefaultListOptions().WithLimit(10000))
}
