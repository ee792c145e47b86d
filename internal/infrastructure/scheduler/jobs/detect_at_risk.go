package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/ishebot/insight-hub/internal/domain/analysis"
	"github.com/ishebot/insight-hub/internal/domain/student"
	"github.com/ishebot/insight-hub/internal/infrastructure/metrics"
)

// ══════════════════════════════════════════════════════════════════════════════
// DETECT AT-RISK JOB
// ══════════════════════════════════════════════════════════════════════════════

// DetectAtRiskJob sweeps the roster, classifies every analyzed student with
// the strict risk policy and surfaces the results through logs and gauges.
// The sweep is intentionally more sensitive than the dashboard aggregation
// so that a deteriorating student is flagged before the weekly review.
type DetectAtRiskJob struct {
	studentRepo student.Repository
	cfg         *analysis.Config
	metrics     *metrics.Metrics
	logger      *slog.Logger

	config DetectAtRiskConfig

	lastSweep atomic.Value // *AtRiskSweep
}

// DetectAtRiskConfig contains configuration for the sweep.
type DetectAtRiskConfig struct {
	// Timeout is the maximum duration for one sweep.
	Timeout time.Duration

	// Policy is the risk policy used for classification.
	Policy analysis.RiskPolicy
}

// DefaultDetectAtRiskConfig returns sensible defaults.
func DefaultDetectAtRiskConfig() DetectAtRiskConfig {
	return DetectAtRiskConfig{
		Timeout: 2 * time.Minute,
		Policy:  analysis.StrictRiskPolicy,
	}
}

// AtRiskSweep is the outcome of one sweep.
type AtRiskSweep struct {
	SweptAt    time.Time
	Total      int
	HighRisk   []AtRiskFinding
	MediumRisk []AtRiskFinding
}

// AtRiskFinding is one flagged student.
type AtRiskFinding struct {
	Code    student.Code
	Name    string
	Class   student.Class
	Level   analysis.RiskLevel
	Factors []string
}

// NewDetectAtRiskJob creates a new at-risk sweep job.
func NewDetectAtRiskJob(
	studentRepo student.Repository,
	cfg *analysis.Config,
	m *metrics.Metrics,
	logger *slog.Logger,
	config DetectAtRiskConfig,
) *DetectAtRiskJob {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == nil {
		cfg = analysis.DefaultConfig()
	}
	if config.Policy.Name == "" {
		config.Policy = analysis.StrictRiskPolicy
	}
	if config.Timeout <= 0 {
		config.Timeout = 2 * time.Minute
	}

	return &DetectAtRiskJob{
		studentRepo: studentRepo,
		cfg:         cfg,
		metrics:     m,
		logger:      logger,
		config:      config,
	}
}

// Name returns the job name.
func (j *DetectAtRiskJob) Name() string {
	return "detect_at_risk"
}

// Description returns a human-readable description.
func (j *DetectAtRiskJob) Description() string {
	return "Flags students whose indicators cross the strict risk thresholds"
}

// Run executes one sweep.
func (j *DetectAtRiskJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	records, err := j.studentRepo.GetAll(ctx, student.DefaultListOptions().WithLimit(10000))
	if err != nil {
		return fmt.Errorf("load records: %w", err)
	}

	sweep := &AtRiskSweep{SweptAt: time.Now().UTC()}
	for _, rec := range records {
		if !rec.IsAnalyzed() {
			continue
		}
		sweep.Total++

		level, factors := j.config.Policy.Assess(rec, j.cfg)
		finding := AtRiskFinding{
			Code:    rec.Code,
			Name:    rec.Name,
			Class:   rec.Class,
			Level:   level,
			Factors: factors,
		}

		switch level {
		case analysis.RiskHigh:
			sweep.HighRisk = append(sweep.HighRisk, finding)
		case analysis.RiskMedium:
			sweep.MediumRisk = append(sweep.MediumRisk, finding)
		}
	}
	j.lastSweep.Store(sweep)

	if j.metrics != nil {
		j.metrics.AtRiskStudents.WithLabelValues(string(analysis.RiskHigh)).Set(float64(len(sweep.HighRisk)))
		j.metrics.AtRiskStudents.WithLabelValues(string(analysis.RiskMedium)).Set(float64(len(sweep.MediumRisk)))
	}

	for _, finding := range sweep.HighRisk {
		j.logger.Warn("student at high risk",
			"code", finding.Code.String(),
			"class", finding.Class.String(),
			"factors", finding.Factors)
	}

	j.logger.Info("at-risk sweep completed",
		"swept", sweep.Total,
		"high", len(sweep.HighRisk),
		"medium", len(sweep.MediumRisk))

	return nil
}

// LastSweep returns the most recent sweep result, or nil.
func (j *DetectAtRiskJob) LastSweep() *AtRiskSweep {
	sweep, ok := j.lastSweep.Load().(*AtRiskSweep)
	if !ok {
		return nil
	}
	return sweep
}
