// Package scheduler runs the periodic jobs that keep the dashboard fresh:
// roster synchronization, analysis snapshot refresh and the at-risk sweep.
// Jobs are registered with a Schedule (fixed interval or cron expression)
// and executed on a one-second tick; run outcomes are exported through the
// shared Prometheus registry.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ishebot/insight-hub/internal/infrastructure/metrics"
)

var (
	ErrNilJob                  = errors.New("job cannot be nil")
	ErrNilSchedule             = errors.New("schedule cannot be nil")
	ErrJobAlreadyExists        = errors.New("job already exists")
	ErrJobNotFound             = errors.New("job not found")
	ErrSchedulerAlreadyRunning = errors.New("scheduler is already running")
	ErrSchedulerNotRunning     = errors.New("scheduler is not running")
)

// ══════════════════════════════════════════════════════════════════════════════
// JOB INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// Job is one unit of periodic work. Run receives a context that is
// cancelled when the scheduler shuts down, so long jobs should check it.
type Job interface {
	Name() string
	Run(ctx context.Context) error
	Description() string
}

// Schedule decides when a job runs next. Next returns the first run time
// strictly after t; a zero time means the schedule will never fire again.
type Schedule interface {
	Next(t time.Time) time.Time
	String() string
}

// JobResult records one finished execution.
type JobResult struct {
	JobName     string
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
	Success     bool
	Error       error
}

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULER
// ══════════════════════════════════════════════════════════════════════════════

// Scheduler owns the job registry and the dispatch loop.
type Scheduler struct {
	mu sync.RWMutex

	logger   *slog.Logger
	timezone *time.Location
	metrics  *metrics.Metrics

	jobs      map[string]*entry
	lastRuns  map[string]*JobResult
	running   bool
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startedAt time.Time
}

type entry struct {
	job       Job
	schedule  Schedule
	enabled   bool
	lastRun   time.Time
	nextRun   time.Time
	runCount  int64
	failCount int64
}

// SchedulerConfig configures a Scheduler.
type SchedulerConfig struct {
	Logger *slog.Logger

	// Timezone for schedule arithmetic. Cron schedules in particular
	// should be evaluated in the school's local time, not UTC.
	Timezone *time.Location

	// Metrics receives job run counters and durations. Nil disables export.
	Metrics *metrics.Metrics
}

// DefaultSchedulerConfig returns sensible defaults.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Logger:   slog.Default(),
		Timezone: time.UTC,
	}
}

// NewScheduler builds an idle scheduler; call Start to begin dispatching.
func NewScheduler(config SchedulerConfig) *Scheduler {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Timezone == nil {
		config.Timezone = time.UTC
	}

	return &Scheduler{
		logger:   config.Logger,
		timezone: config.Timezone,
		metrics:  config.Metrics,
		jobs:     make(map[string]*entry),
		lastRuns: make(map[string]*JobResult),
	}
}

func (s *Scheduler) now() time.Time {
	return time.Now().In(s.timezone)
}

// ══════════════════════════════════════════════════════════════════════════════
// JOB REGISTRATION
// ══════════════════════════════════════════════════════════════════════════════

// Register adds job under its own name. Names are unique; registering a
// second job with the same name fails rather than silently replacing it.
func (s *Scheduler) Register(job Job, schedule Schedule) error {
	if job == nil {
		return ErrNilJob
	}
	if schedule == nil {
		return ErrNilSchedule
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, taken := s.jobs[name]; taken {
		return fmt.Errorf("%w: %s", ErrJobAlreadyExists, name)
	}

	e := &entry{
		job:      job,
		schedule: schedule,
		enabled:  true,
		nextRun:  schedule.Next(s.now()),
	}
	s.jobs[name] = e

	s.logger.Info("job registered",
		"job", name,
		"schedule", schedule.String(),
		"next_run", e.nextRun.Format(time.RFC3339))
	return nil
}

// Unregister drops a job from the registry. A run already in flight is
// not interrupted.
func (s *Scheduler) Unregister(jobName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[jobName]; !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobName)
	}
	delete(s.jobs, jobName)

	s.logger.Info("job unregistered", "job", jobName)
	return nil
}

// EnableJob resumes dispatching for a paused job, recomputing its next
// run from now so it does not fire immediately to catch up.
func (s *Scheduler) EnableJob(jobName string) error {
	return s.setEnabled(jobName, true)
}

// DisableJob pauses a job without removing it.
func (s *Scheduler) DisableJob(jobName string) error {
	return s.setEnabled(jobName, false)
}

func (s *Scheduler) setEnabled(jobName string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.jobs[jobName]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobName)
	}

	e.enabled = enabled
	if enabled {
		e.nextRun = e.schedule.Next(s.now())
		s.logger.Info("job enabled", "job", jobName, "next_run", e.nextRun)
	} else {
		s.logger.Info("job disabled", "job", jobName)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start launches the dispatch loop. The loop stops when Stop is called
// or ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrSchedulerAlreadyRunning
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running = true
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("scheduler started", "jobs", len(s.jobs))

	s.wg.Add(1)
	go s.runLoop()
	return nil
}

// Stop cancels the loop and blocks until in-flight jobs return.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("scheduler stopped", "uptime", time.Since(s.startedAt).String())
	return nil
}

// IsRunning reports whether the dispatch loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// ══════════════════════════════════════════════════════════════════════════════
// DISPATCH LOOP
// ══════════════════════════════════════════════════════════════════════════════

func (s *Scheduler) runLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.dispatchDue()
		}
	}
}

func (s *Scheduler) dispatchDue() {
	now := s.now()

	s.mu.RLock()
	var due []*entry
	for _, e := range s.jobs {
		if e.enabled && !e.nextRun.IsZero() && now.After(e.nextRun) {
			due = append(due, e)
		}
	}
	s.mu.RUnlock()

	for _, e := range due {
		s.wg.Add(1)
		go s.runScheduled(e)
	}
}

func (s *Scheduler) runScheduled(e *entry) {
	defer s.wg.Done()

	name := e.job.Name()
	startedAt := time.Now()
	s.logger.Info("job started", "job", name)

	// Advance the schedule before executing so a slow run cannot stack
	// overlapping executions of the same job.
	s.mu.Lock()
	e.lastRun = startedAt
	e.nextRun = e.schedule.Next(startedAt.In(s.timezone))
	e.runCount++
	s.mu.Unlock()

	result := s.execute(s.ctx, e.job, startedAt)

	s.mu.Lock()
	if !result.Success {
		e.failCount++
	}
	s.lastRuns[name] = result
	s.mu.Unlock()
}

// execute runs the job, exports the outcome and logs it. Shared by the
// dispatch loop and RunNow.
func (s *Scheduler) execute(ctx context.Context, job Job, startedAt time.Time) *JobResult {
	err := job.Run(ctx)
	completedAt := time.Now()

	result := &JobResult{
		JobName:     job.Name(),
		StartedAt:   startedAt,
		CompletedAt: completedAt,
		Duration:    completedAt.Sub(startedAt),
		Success:     err == nil,
		Error:       err,
	}

	if m := s.metrics; m != nil {
		outcome := "success"
		if err != nil {
			outcome = "failure"
		}
		m.JobRunsTotal.WithLabelValues(result.JobName, outcome).Inc()
		m.JobDuration.WithLabelValues(result.JobName).Observe(result.Duration.Seconds())
		if err == nil {
			m.JobLastSuccess.WithLabelValues(result.JobName).Set(float64(completedAt.Unix()))
		}
	}

	if err != nil {
		s.logger.Error("job failed",
			"job", result.JobName,
			"duration", result.Duration.String(),
			"error", err)
	} else {
		s.logger.Info("job completed",
			"job", result.JobName,
			"duration", result.Duration.String())
	}
	return result
}

// ══════════════════════════════════════════════════════════════════════════════
// MANUAL EXECUTION
// ══════════════════════════════════════════════════════════════════════════════

// RunNow executes a job immediately under the caller's context. The
// regular schedule is untouched; the result still counts in metrics and
// shows up as the job's last run.
func (s *Scheduler) RunNow(ctx context.Context, jobName string) (*JobResult, error) {
	s.mu.RLock()
	e, ok := s.jobs[jobName]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobName)
	}

	s.logger.Info("manual job run", "job", jobName)
	result := s.execute(ctx, e.job, time.Now())

	s.mu.Lock()
	s.lastRuns[jobName] = result
	s.mu.Unlock()

	return result, result.Error
}

// ══════════════════════════════════════════════════════════════════════════════
// STATUS
// ══════════════════════════════════════════════════════════════════════════════

// JobInfo is a snapshot of one registered job, for status endpoints.
type JobInfo struct {
	Name        string
	Description string
	Enabled     bool
	Schedule    string
	LastRun     time.Time
	NextRun     time.Time
	RunCount    int64
	FailCount   int64
	LastResult  *JobResult
}

// ListJobs snapshots every registered job. Order is unspecified.
func (s *Scheduler) ListJobs() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]JobInfo, 0, len(s.jobs))
	for name, e := range s.jobs {
		infos = append(infos, JobInfo{
			Name:        name,
			Description: e.job.Description(),
			Enabled:     e.enabled,
			Schedule:    e.schedule.String(),
			LastRun:     e.lastRun,
			NextRun:     e.nextRun,
			RunCount:    e.runCount,
			FailCount:   e.failCount,
			LastResult:  s.lastRuns[name],
		})
	}
	return infos
}
