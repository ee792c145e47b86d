package redis

import (
	"context"
	"time"

	"github.com/ishebot/insight-hub/internal/domain/analysis"
	"github.com/ishebot/insight-hub/internal/domain/insight"
)

// ══════════════════════════════════════════════════════════════════════════════
// ANALYSIS CACHE
// ══════════════════════════════════════════════════════════════════════════════

// AnalysisCache caches aggregation results and insight bundles per scope.
// The scope is either analysis.ScopeAll or a class label.
type AnalysisCache struct {
	cache *Cache
}

// NewAnalysisCache creates a new AnalysisCache.
func NewAnalysisCache(cache *Cache) *AnalysisCache {
	return &AnalysisCache{cache: cache}
}

// GetAnalysis fetches a cached aggregation result for a scope.
// Returns ErrCacheMiss when the scope is not cached.
func (a *AnalysisCache) GetAnalysis(ctx context.Context, scope string) (*analysis.AggregatedAnalysis, error) {
	var result analysis.AggregatedAnalysis
	if err := a.cache.Get(ctx, AnalysisKey(scope), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SetAnalysis stores an aggregation result for a scope.
func (a *AnalysisCache) SetAnalysis(ctx context.Context, scope string, result *analysis.AggregatedAnalysis, ttl time.Duration) error {
	if result == nil {
		return nil
	}
	return a.cache.Set(ctx, AnalysisKey(scope), result, ttl)
}

// InsightBundle is the cached pairing of insights and recommendations
// generated for one scope.
type InsightBundle struct {
	Insights        []insight.Insight        `json:"insights"`
	Recommendations []insight.Recommendation `json:"recommendations"`
}

// GetInsights fetches a cached insight bundle for a scope.
// Returns ErrCacheMiss when the scope is not cached.
func (a *AnalysisCache) GetInsights(ctx context.Context, scope string) (*InsightBundle, error) {
	var bundle InsightBundle
	if err := a.cache.Get(ctx, InsightKey(scope), &bundle); err != nil {
		return nil, err
	}
	return &bundle, nil
}

// SetInsights stores an insight bundle for a scope.
func (a *AnalysisCache) SetInsights(ctx context.Context, scope string, bundle *InsightBundle, ttl time.Duration) error {
	if bundle == nil {
		return nil
	}
	return a.cache.Set(ctx, InsightKey(scope), bundle, ttl)
}

// Invalidate drops the cached analysis and insights for a scope.
func (a *AnalysisCache) Invalidate(ctx context.Context, scope string) error {
	return a.cache.Delete(ctx, AnalysisKey(scope), InsightKey(scope))
}

// InvalidateAll drops every cached analysis, insight bundle and dashboard
// summary. Called after roster imports since any scope may have changed.
func (a *AnalysisCache) InvalidateAll(ctx context.Context) error {
	for _, pattern := range []string{PrefixAnalysis + "*", PrefixInsight + "*", PrefixDashboard + "*"} {
		if err := a.cache.DeleteByPattern(ctx, pattern); err != nil {
			return err
		}
	}
	return nil
}
