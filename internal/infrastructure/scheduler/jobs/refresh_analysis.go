package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ishebot/insight-hub/internal/domain/analysis"
	"github.com/ishebot/insight-hub/internal/domain/student"
	"github.com/ishebot/insight-hub/internal/infrastructure/metrics"
	"github.com/ishebot/insight-hub/internal/infrastructure/persistence/redis"

	"github.com/google/uuid"
)

// ══════════════════════════════════════════════════════════════════════════════
// REFRESH ANALYSIS JOB
// ══════════════════════════════════════════════════════════════════════════════

// RefreshAnalysisJob recomputes the aggregated analysis for the whole roster
// and for every class, persists the results as snapshots and warms the cache.
// Dashboard reads then hit the cache or the latest snapshot instead of
// aggregating on every request.
type RefreshAnalysisJob struct {
	studentRepo  student.Repository
	snapshotRepo analysis.SnapshotRepository
	cache        *redis.AnalysisCache
	aggregator   *analysis.Aggregator
	metrics      *metrics.Metrics
	logger       *slog.Logger

	config RefreshAnalysisConfig
}

// RefreshAnalysisConfig contains configuration for the refresh job.
type RefreshAnalysisConfig struct {
	// Timeout is the maximum duration for one refresh run.
	Timeout time.Duration

	// SnapshotRetention prunes snapshots older than this after each run.
	// Zero disables pruning.
	SnapshotRetention time.Duration

	// CacheTTL is the lifetime of warmed cache entries.
	CacheTTL time.Duration
}

// DefaultRefreshAnalysisConfig returns sensible defaults.
func DefaultRefreshAnalysisConfig() RefreshAnalysisConfig {
	return RefreshAnalysisConfig{
		Timeout:           3 * time.Minute,
		SnapshotRetention: 90 * 24 * time.Hour,
		CacheTTL:          redis.TTLAnalysisCache,
	}
}

// NewRefreshAnalysisJob creates a new analysis refresh job.
func NewRefreshAnalysisJob(
	studentRepo student.Repository,
	snapshotRepo analysis.SnapshotRepository,
	cache *redis.AnalysisCache,
	aggregator *analysis.Aggregator,
	m *metrics.Metrics,
	logger *slog.Logger,
	config RefreshAnalysisConfig,
) *RefreshAnalysisJob {
	if logger == nil {
		logger = slog.Default()
	}
	if aggregator == nil {
		aggregator = analysis.NewAggregator(nil)
	}
	if config.Timeout <= 0 {
		config.Timeout = 3 * time.Minute
	}

	return &RefreshAnalysisJob{
		studentRepo:  studentRepo,
		snapshotRepo: snapshotRepo,
		cache:        cache,
		aggregator:   aggregator,
		metrics:      m,
		logger:       logger,
		config:       config,
	}
}

// Name returns the job name.
func (j *RefreshAnalysisJob) Name() string {
	return "refresh_analysis"
}

// Description returns a human-readable description.
func (j *RefreshAnalysisJob) Description() string {
	return "Recomputes aggregated statistics for the roster and each class"
}

// Run executes one refresh.
func (j *RefreshAnalysisJob) Run(ctx context.Context) error {
	startedAt := time.Now()
	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	records, err := j.studentRepo.GetAll(ctx, student.DefaultListOptions().WithLimit(10000))
	if err != nil {
		return fmt.Errorf("load records: %w", err)
	}

	// Whole-roster scope first; it also feeds the gauges.
	global := j.aggregator.Aggregate(records)
	if err := j.store(ctx, analysis.ScopeAll, global); err != nil {
		return err
	}

	if j.metrics != nil {
		j.metrics.StudentsTotal.Set(float64(global.TotalStudents))
		j.metrics.StudentsAnalyzed.Set(float64(global.AnalyzedStudents))
	}

	// Per-class scopes.
	byClass := make(map[student.Class][]*student.Record)
	for _, rec := range records {
		if rec.Class != "" {
			byClass[rec.Class] = append(byClass[rec.Class], rec)
		}
	}
	for class, classRecords := range byClass {
		result := j.aggregator.Aggregate(classRecords)
		if err := j.store(ctx, class.String(), result); err != nil {
			return err
		}
	}

	if j.config.SnapshotRetention > 0 {
		if pruned, err := j.snapshotRepo.Prune(ctx, j.config.SnapshotRetention); err != nil {
			j.logger.Warn("snapshot pruning failed", "error", err)
		} else if pruned > 0 {
			j.logger.Info("pruned old snapshots", "count", pruned)
		}
	}

	j.logger.Info("analysis refresh completed",
		"students", global.TotalStudents,
		"classes", len(byClass),
		"duration", time.Since(startedAt))

	return nil
}

// store persists one scope's result and warms its cache entry.
func (j *RefreshAnalysisJob) store(ctx context.Context, scope string, result *analysis.AggregatedAnalysis) error {
	snap := &analysis.Snapshot{
		ID:         uuid.New().String(),
		Scope:      scope,
		Result:     result,
		ComputedAt: time.Now().UTC(),
	}
	if err := j.snapshotRepo.Save(ctx, snap); err != nil {
		return fmt.Errorf("save snapshot for scope %s: %w", scope, err)
	}

	if j.cache != nil {
		if err := j.cache.SetAnalysis(ctx, scope, result, j.config.CacheTTL); err != nil {
			j.logger.Warn("failed to warm analysis cache", "scope", scope, "error", err)
		}
	}

	return nil
}
