package command

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ishebot/insight-hub/internal/domain/analysis"
	"github.com/ishebot/insight-hub/internal/domain/shared"
	"github.com/ishebot/insight-hub/internal/domain/student"
	"github.com/ishebot/insight-hub/internal/infrastructure/external/roster"
	"github.com/ishebot/insight-hub/internal/infrastructure/persistence/redis"
)

// ══════════════════════════════════════════════════════════════════════════════
// RUN ANALYSIS COMMAND
// Two admin flows share this command:
//   - per-student: ask the roster source to run the AI analysis for one
//     student, then pull the refreshed row back into storage;
//   - scope: recompute the aggregated snapshot for a class or the whole
//     roster and replace the cached copy.
// ══════════════════════════════════════════════════════════════════════════════

// RunAnalysisCommand contains the command parameters.
type RunAnalysisCommand struct {
	// StudentCode - when set, runs the per-student flow.
	StudentCode string

	// Class - scope for the aggregation flow; empty means the whole roster.
	// Ignored when StudentCode is set.
	Class string
}

// scope returns the snapshot scope for the aggregation flow.
func (c RunAnalysisCommand) scope() string {
	if c.Class == "" {
		return analysis.ScopeAll
	}
	return c.Class
}

// RunAnalysisResult summarizes what was recomputed.
type RunAnalysisResult struct {
	// StudentCode - set for the per-student flow.
	StudentCode string `json:"studentCode,omitempty"`

	// Scope - set for the aggregation flow.
	Scope string `json:"scope,omitempty"`

	// Message - upstream message for the per-student flow.
	Message string `json:"message,omitempty"`

	// Analysis - the recomputed aggregation for the scope flow.
	Analysis *analysis.AggregatedAnalysis `json:"analysis,omitempty"`

	// CompletedAt - when the command finished.
	CompletedAt time.Time `json:"completedAt"`
}

// RunAnalysisHandler handles analysis recomputation.
type RunAnalysisHandler struct {
	studentRepo  student.Repository
	snapshotRepo analysis.SnapshotRepository
	source       *roster.Client
	cache        *redis.AnalysisCache
	studentCache student.Cache
	aggregator   *analysis.Aggregator
}

// NewRunAnalysisHandler creates a new handler. source may be nil when the
// deployment has no roster endpoint; the per-student flow then fails fast.
func NewRunAnalysisHandler(
	studentRepo student.Repository,
	snapshotRepo analysis.SnapshotRepository,
	source *roster.Client,
	cache *redis.AnalysisCache,
	studentCache student.Cache,
	aggregator *analysis.Aggregator,
) *RunAnalysisHandler {
	if aggregator == nil {
		aggregator = analysis.NewAggregator(nil)
	}
	return &RunAnalysisHandler{
		studentRepo:  studentRepo,
		snapshotRepo: snapshotRepo,
		source:       source,
		cache:        cache,
		studentCache: studentCache,
		aggregator:   aggregator,
	}
}

// Handle executes the command.
func (h *RunAnalysisHandler) Handle(ctx context.Context, cmd RunAnalysisCommand) (*RunAnalysisResult, error) {
	if cmd.StudentCode != "" {
		return h.analyzeStudent(ctx, student.Code(cmd.StudentCode))
	}
	return h.recomputeScope(ctx, cmd)
}

// analyzeStudent asks the source to analyze one student and pulls the
// refreshed row back.
func (h *RunAnalysisHandler) analyzeStudent(ctx context.Context, code student.Code) (*RunAnalysisResult, error) {
	if !code.IsValid() {
		return nil, shared.ErrInvalidStudentCode
	}
	if h.source == nil {
		return nil, shared.ErrRosterUnavailable
	}

	res, err := h.source.RequestAnalysis(ctx, code.String())
	if err != nil {
		return nil, shared.WrapError("command", "RunAnalysis", shared.ErrExternalService, "analysis request failed", err)
	}
	if !res.Success {
		return nil, shared.WrapError("command", "RunAnalysis", shared.ErrExternalService,
			fmt.Sprintf("analysis rejected upstream: %s", res.Message), nil)
	}

	// Pull the refreshed row so the dashboard shows the new analysis without
	// waiting for the next scheduled sync. Best effort, the scheduled sync
	// will catch up if this fails.
	if dto, err := h.source.FetchStudent(ctx, code.String()); err == nil {
		if rec, err := h.source.Mapper().RecordFromDTO(dto); err == nil {
			_, _, _ = h.studentRepo.BulkUpsert(ctx, []*student.Record{rec})
			if h.studentCache != nil {
				_ = h.studentCache.Delete(ctx, code)
			}
		}
	}
	if h.cache != nil {
		_ = h.cache.InvalidateAll(ctx)
	}

	return &RunAnalysisResult{
		StudentCode: code.String(),
		Message:     res.Message,
		CompletedAt: time.Now().UTC(),
	}, nil
}

// recomputeScope aggregates the scope live, stores a snapshot and replaces
// the cached copy.
func (h *RunAnalysisHandler) recomputeScope(ctx context.Context, cmd RunAnalysisCommand) (*RunAnalysisResult, error) {
	scope := cmd.scope()

	var (
		records []*student.Record
		err     error
	)
	if cmd.Class != "" {
		records, err = h.studentRepo.GetByClass(ctx, student.Class(cmd.Class))
	} else {
		records, err = h.studentRepo.GetAll(ctx, student.DefaultListOptions().WithLimit(10000))
	}
	if err != nil {
		return nil, shared.WrapError("command", "RunAnalysis", shared.ErrServiceUnavailable, "failed to load student records", err)
	}

	result := h.aggregator.Aggregate(records)
	completedAt := time.Now().UTC()

	if h.snapshotRepo != nil {
		if err := h.snapshotRepo.Save(ctx, &analysis.Snapshot{
			ID:         uuid.New().String(),
			Scope:      scope,
			Result:     result,
			ComputedAt: completedAt,
		}); err != nil {
			return nil, shared.WrapError("command", "RunAnalysis", shared.ErrServiceUnavailable, "failed to store snapshot", err)
		}
	}
	if h.cache != nil {
		_ = h.cache.SetAnalysis(ctx, scope, result, redis.TTLAnalysisCache)
	}

	return &RunAnalysisResult{
		Scope:       scope,
		Analysis:    result,
		CompletedAt: completedAt,
	}, nil
}
