package query

import (
	"context"
	"time"

	"github.com/ishebot/insight-hub/internal/domain/shared"
	"github.com/ishebot/insight-hub/internal/domain/student"
	"github.com/ishebot/insight-hub/internal/infrastructure/persistence/redis"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET DASHBOARD STATS QUERY
// Lightweight headline counters for the dashboard landing page. Cheap enough
// to recompute often, but still cached briefly because the page polls.
// ══════════════════════════════════════════════════════════════════════════════

const dashboardStatsKey = "stats"

// GetDashboardStatsQuery contains the query parameters.
type GetDashboardStatsQuery struct {
	// SkipCache forces a fresh recount.
	SkipCache bool
}

// DashboardStats contains the headline counters.
type DashboardStats struct {
	// TotalStudents - records in storage.
	TotalStudents int `json:"totalStudents"`

	// AnalyzedStudents - records with a completed analysis.
	AnalyzedStudents int `json:"analyzedStudents"`

	// ByClass - record count per class label.
	ByClass map[string]int `json:"byClass"`

	// ByLearningStyle - analyzed record count per learning style.
	ByLearningStyle map[string]int `json:"byLearningStyle"`

	// AverageStrengths - mean identified strengths per analyzed student.
	AverageStrengths float64 `json:"averageStrengths"`

	// LastSync - time of the last successful roster sync, zero if never.
	LastSync time.Time `json:"lastSync"`

	// LastUpdated - when these counters were computed.
	LastUpdated time.Time `json:"lastUpdated"`
}

// GetDashboardStatsHandler handles dashboard stats queries.
type GetDashboardStatsHandler struct {
	studentRepo student.Repository
	syncRepo    student.SyncRepository
	cache       *redis.Cache
}

// NewGetDashboardStatsHandler creates a new handler.
func NewGetDashboardStatsHandler(
	studentRepo student.Repository,
	syncRepo student.SyncRepository,
	cache *redis.Cache,
) *GetDashboardStatsHandler {
	return &GetDashboardStatsHandler{
		studentRepo: studentRepo,
		syncRepo:    syncRepo,
		cache:       cache,
	}
}

// Handle executes the query.
func (h *GetDashboardStatsHandler) Handle(ctx context.Context, query GetDashboardStatsQuery) (*DashboardStats, error) {
	if !query.SkipCache && h.cache != nil {
		var cached DashboardStats
		if err := h.cache.Get(ctx, redis.DashboardKey(dashboardStatsKey), &cached); err == nil {
			return &cached, nil
		}
	}

	stats, err := h.compute(ctx)
	if err != nil {
		return nil, err
	}

	if h.cache != nil {
		_ = h.cache.Set(ctx, redis.DashboardKey(dashboardStatsKey), stats, redis.TTLDashboardCache)
	}
	return stats, nil
}

// compute walks the roster once and derives every counter.
func (h *GetDashboardStatsHandler) compute(ctx context.Context) (*DashboardStats, error) {
	records, err := h.studentRepo.GetAll(ctx, student.DefaultListOptions().WithLimit(10000))
	if err != nil {
		return nil, shared.WrapError("query", "GetDashboardStats", shared.ErrServiceUnavailable, "failed to load student records", err)
	}

	stats := &DashboardStats{
		TotalStudents:   len(records),
		ByClass:         make(map[string]int),
		ByLearningStyle: make(map[string]int),
		LastUpdated:     time.Now().UTC(),
	}

	strengthsSum := 0
	for _, rec := range records {
		if rec.Class != "" {
			stats.ByClass[rec.Class.String()]++
		}
		if !rec.IsAnalyzed() {
			continue
		}
		stats.AnalyzedStudents++
		strengthsSum += rec.StrengthsCount
		if rec.LearningStyle != "" {
			stats.ByLearningStyle[rec.LearningStyle]++
		}
	}
	if stats.AnalyzedStudents > 0 {
		stats.AverageStrengths = float64(strengthsSum) / float64(stats.AnalyzedStudents)
	}

	if h.syncRepo != nil {
		if lastSync, err := h.syncRepo.GetLastSyncTime(ctx); err == nil {
			stats.LastSync = lastSync
		}
	}
	return stats, nil
}
