// Package jobs contains the scheduled jobs of the insight hub: roster
// synchronization, analysis refresh and the at-risk sweep.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/ishebot/insight-hub/internal/domain/student"
	"github.com/ishebot/insight-hub/internal/infrastructure/metrics"
	"github.com/ishebot/insight-hub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// SYNC ROSTER JOB
// ══════════════════════════════════════════════════════════════════════════════

// RosterSource provides mapped student records from the upstream roster.
// The roster client together with its mapper satisfies this through a thin
// adapter; jobs never see DTOs.
type RosterSource interface {
	// FetchRecords returns the full mapped roster plus per-row mapping
	// failures that should be recorded, not fatal.
	FetchRecords(ctx context.Context) ([]*student.Record, []student.SyncError, error)
}

// CacheInvalidator drops derived caches after the roster changes.
type CacheInvalidator interface {
	InvalidateAll(ctx context.Context) error
}

// SyncRosterJob pulls the full roster from the source and upserts it into
// local storage. It is the only writer of student records besides the admin
// import flow.
type SyncRosterJob struct {
	studentRepo   student.Repository
	syncRepo      student.SyncRepository
	source        RosterSource
	studentCache  CacheInvalidator
	analysisCache CacheInvalidator
	metrics       *metrics.Metrics
	logger        *slog.Logger

	config SyncRosterConfig

	lastStats atomic.Value // *SyncRosterStats
}

// SyncRosterConfig contains configuration for the sync job.
type SyncRosterConfig struct {
	// Timeout is the maximum duration for one sync run.
	Timeout time.Duration

	// FailureThreshold aborts the upsert when more than this share of
	// fetched rows failed to map, to avoid wiping good data after an
	// upstream format change.
	FailureThreshold float64
}

// DefaultSyncRosterConfig returns sensible defaults.
func DefaultSyncRosterConfig() SyncRosterConfig {
	return SyncRosterConfig{
		Timeout:          5 * time.Minute,
		FailureThreshold: 0.5,
	}
}

// SyncRosterStats contains statistics from a sync run.
type SyncRosterStats struct {
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
	Fetched     int
	Inserted    int
	Updated     int
	Rejected    int
}

// NewSyncRosterJob creates a new roster sync job.
func NewSyncRosterJob(
	studentRepo student.Repository,
	syncRepo student.SyncRepository,
	source RosterSource,
	studentCache CacheInvalidator,
	analysisCache CacheInvalidator,
	m *metrics.Metrics,
	logger *slog.Logger,
	config SyncRosterConfig,
) *SyncRosterJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Minute
	}

	return &SyncRosterJob{
		studentRepo:   studentRepo,
		syncRepo:      syncRepo,
		source:        source,
		studentCache:  studentCache,
		analysisCache: analysisCache,
		metrics:       m,
		logger:        logger,
		config:        config,
	}
}

// Name returns the job name.
func (j *SyncRosterJob) Name() string {
	return "sync_roster"
}

// Description returns a human-readable description.
func (j *SyncRosterJob) Description() string {
	return "Pulls the full student roster from the source and upserts it locally"
}

// Run executes one sync.
func (j *SyncRosterJob) Run(ctx context.Context) error {
	startedAt := time.Now()
	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	j.logger.Info("roster sync started")

	var records []*student.Record
	var syncErrs []student.SyncError
	fetch := func(ctx context.Context) error {
		var err error
		records, syncErrs, err = j.source.FetchRecords(ctx)
		return err
	}
	if err := retry.SourceRetrier().Do(ctx, fetch); err != nil {
		return fmt.Errorf("fetch roster: %w", err)
	}

	fetched := len(records) + len(syncErrs)
	if fetched > 0 && float64(len(syncErrs)) > float64(fetched)*j.config.FailureThreshold {
		return fmt.Errorf("roster sync aborted: %d of %d rows failed to map", len(syncErrs), fetched)
	}

	for _, syncErr := range syncErrs {
		if err := j.syncRepo.SaveSyncError(ctx, syncErr); err != nil {
			j.logger.Warn("failed to record sync error", "error", err)
		}
		if j.metrics != nil {
			j.metrics.SyncErrorsTotal.Inc()
		}
	}

	inserted, updated, err := j.studentRepo.BulkUpsert(ctx, records)
	if err != nil {
		return fmt.Errorf("upsert roster: %w", err)
	}

	if err := j.syncRepo.SetLastSyncTime(ctx, time.Now().UTC()); err != nil {
		j.logger.Warn("failed to record sync time", "error", err)
	}

	// Stored records changed, so every derived view is stale.
	if j.studentCache != nil {
		if err := j.studentCache.InvalidateAll(ctx); err != nil {
			j.logger.Warn("failed to invalidate student cache", "error", err)
		}
	}
	if j.analysisCache != nil {
		if err := j.analysisCache.InvalidateAll(ctx); err != nil {
			j.logger.Warn("failed to invalidate analysis cache", "error", err)
		}
	}

	stats := &SyncRosterStats{
		StartedAt:   startedAt,
		CompletedAt: time.Now(),
		Duration:    time.Since(startedAt),
		Fetched:     fetched,
		Inserted:    inserted,
		Updated:     updated,
		Rejected:    len(syncErrs),
	}
	j.lastStats.Store(stats)

	if j.metrics != nil {
		if total, err := j.studentRepo.Count(ctx); err == nil {
			j.metrics.StudentsTotal.Set(float64(total))
		}
	}

	j.logger.Info("roster sync completed",
		"fetched", stats.Fetched,
		"inserted", stats.Inserted,
		"updated", stats.Updated,
		"rejected", stats.Rejected,
		"duration", stats.Duration)

	return nil
}

// LastStats returns statistics from the most recent run, or nil.
func (j *SyncRosterJob) LastStats() *SyncRosterStats {
	stats, ok := j.lastStats.Load().(*SyncRosterStats)
	if !ok {
		return nil
	}
	return stats
}
