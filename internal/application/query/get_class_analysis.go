// Package query contains read operations following the CQRS pattern.
// Queries never modify state - they only read and return data.
// Each query is a self-contained use case with its own request/response types.
package query

import (
	"context"
	"time"

	"github.com/ishebot/insight-hub/internal/domain/analysis"
	"github.com/ishebot/insight-hub/internal/domain/shared"
	"github.com/ishebot/insight-hub/internal/domain/student"
	"github.com/ishebot/insight-hub/internal/infrastructure/persistence/redis"

	"github.com/google/uuid"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET CLASS ANALYSIS QUERY
// Serves the aggregated statistics for the whole roster or a single class.
// Reads go cache -> latest snapshot -> live recompute, so the dashboard stays
// fast even when Redis is cold.
// ══════════════════════════════════════════════════════════════════════════════

// GetClassAnalysisQuery contains the query parameters.
type GetClassAnalysisQuery struct {
	// Class - class label to analyze; empty means the whole roster.
	Class string

	// ForceRecompute skips cache and snapshot and aggregates live.
	ForceRecompute bool

	// MaxSnapshotAge - oldest acceptable snapshot before recomputing.
	// Zero means any stored snapshot is acceptable.
	MaxSnapshotAge time.Duration
}

// scope returns the snapshot/cache scope for this query.
func (q GetClassAnalysisQuery) scope() string {
	if q.Class == "" {
		return analysis.ScopeAll
	}
	return q.Class
}

// GetClassAnalysisResult contains the aggregation plus its provenance.
type GetClassAnalysisResult struct {
	// Analysis - the full statistics payload.
	Analysis *analysis.AggregatedAnalysis `json:"analysis"`

	// Scope - the scope that was analyzed.
	Scope string `json:"scope"`

	// ComputedAt - when the returned numbers were computed.
	ComputedAt time.Time `json:"computedAt"`

	// Source - "cache", "snapshot" or "live".
	Source string `json:"source"`
}

// GetClassAnalysisHandler handles class analysis queries.
type GetClassAnalysisHandler struct {
	studentRepo  student.Repository
	snapshotRepo analysis.SnapshotRepository
	cache        *redis.AnalysisCache
	aggregator   *analysis.Aggregator
}

// NewGetClassAnalysisHandler creates a new handler.
func NewGetClassAnalysisHandler(
	studentRepo student.Repository,
	snapshotRepo analysis.SnapshotRepository,
	cache *redis.AnalysisCache,
	aggregator *analysis.Aggregator,
) *GetClassAnalysisHandler {
	if aggregator == nil {
		aggregator = analysis.NewAggregator(nil)
	}
	return &GetClassAnalysisHandler{
		studentRepo:  studentRepo,
		snapshotRepo: snapshotRepo,
		cache:        cache,
		aggregator:   aggregator,
	}
}

// Handle executes the query.
func (h *GetClassAnalysisHandler) Handle(ctx context.Context, query GetClassAnalysisQuery) (*GetClassAnalysisResult, error) {
	scope := query.scope()

	if !query.ForceRecompute {
		if result := h.tryCache(ctx, scope); result != nil {
			return result, nil
		}
		if result := h.trySnapshot(ctx, scope, query.MaxSnapshotAge); result != nil {
			return result, nil
		}
	}

	return h.computeLive(ctx, scope, query.Class)
}

// tryCache returns a cached result or nil.
func (h *GetClassAnalysisHandler) tryCache(ctx context.Context, scope string) *GetClassAnalysisResult {
	if h.cache == nil {
		return nil
	}
	cached, err := h.cache.GetAnalysis(ctx, scope)
	if err != nil {
		return nil
	}
	return &GetClassAnalysisResult{
		Analysis:   cached,
		Scope:      scope,
		ComputedAt: cached.GeneratedAt,
		Source:     "cache",
	}
}

// trySnapshot returns the latest stored snapshot if fresh enough, or nil.
func (h *GetClassAnalysisHandler) trySnapshot(ctx context.Context, scope string, maxAge time.Duration) *GetClassAnalysisResult {
	if h.snapshotRepo == nil {
		return nil
	}
	snap, err := h.snapshotRepo.GetLatest(ctx, scope)
	if err != nil {
		return nil
	}
	if maxAge > 0 && time.Since(snap.ComputedAt) > maxAge {
		return nil
	}
	return &GetClassAnalysisResult{
		Analysis:   snap.Result,
		Scope:      scope,
		ComputedAt: snap.ComputedAt,
		Source:     "snapshot",
	}
}

// computeLive aggregates directly from storage and stores the result.
func (h *GetClassAnalysisHandler) computeLive(ctx context.Context, scope, class string) (*GetClassAnalysisResult, error) {
	records, err := h.loadRecords(ctx, class)
	if err != nil {
		return nil, shared.WrapError("query", "GetClassAnalysis", shared.ErrServiceUnavailable, "failed to load student records", err)
	}

	result := h.aggregator.Aggregate(records)
	computedAt := time.Now().UTC()

	// Best effort: persist and cache so the next read is cheap.
	if h.snapshotRepo != nil {
		_ = h.snapshotRepo.Save(ctx, &analysis.Snapshot{
			ID:         uuid.New().String(),
			Scope:      scope,
			Result:     result,
			ComputedAt: computedAt,
		})
	}
	if h.cache != nil {
		_ = h.cache.SetAnalysis(ctx, scope, result, redis.TTLAnalysisCache)
	}

	return &GetClassAnalysisResult{
		Analysis:   result,
		Scope:      scope,
		ComputedAt: computedAt,
		Source:     "live",
	}, nil
}

// loadRecords loads the roster or one class.
func (h *GetClassAnalysisHandler) loadRecords(ctx context.Context, class string) ([]*student.Record, error) {
	if class != "" {
		return h.studentRepo.GetByClass(ctx, student.Class(class))
	}
	return h.studentRepo.GetAll(ctx, student.DefaultListOptions().WithLimit(10000))
}
