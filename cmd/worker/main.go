// Package main is the entry point of the insight hub background worker.
//
// The worker runs the periodic jobs that keep the dashboard fresh:
//   - roster synchronization from the source spreadsheet
//   - recomputation of aggregated analysis snapshots
//   - the at-risk sweep that flags deteriorating students
//
// It also exposes /metrics and /healthz so the deployment can scrape and
// probe it independently of the API server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ishebot/insight-hub/config"
	"github.com/ishebot/insight-hub/internal/domain/analysis"
	"github.com/ishebot/insight-hub/internal/domain/student"
	"github.com/ishebot/insight-hub/internal/infrastructure/external/roster"
	"github.com/ishebot/insight-hub/internal/infrastructure/metrics"
	"github.com/ishebot/insight-hub/internal/infrastructure/persistence/postgres"
	"github.com/ishebot/insight-hub/internal/infrastructure/persistence/redis"
	"github.com/ishebot/insight-hub/internal/infrastructure/scheduler"
	"github.com/ishebot/insight-hub/internal/infrastructure/scheduler/jobs"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION AND LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := setupLogger(cfg)
	log.Info("starting insight hub worker",
		"env", cfg.App.Environment,
		"timezone", cfg.App.Timezone,
	)

	if !cfg.Scheduler.Enabled {
		return fmt.Errorf("scheduler is disabled, nothing to do (set SCHEDULER_ENABLED=true)")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. DATABASE
	// ─────────────────────────────────────────────────────────────────────────
	dbConn, err := postgres.Connect(ctx, buildDatabaseConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbConn.Close()

	if err := dbConn.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	// The worker migrates too, so either binary can be deployed first.
	migrator := postgres.NewMigrator(dbConn)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("database schema is up to date")

	// ─────────────────────────────────────────────────────────────────────────
	// 3. REDIS (optional)
	// ─────────────────────────────────────────────────────────────────────────
	var redisCache *redis.Cache
	if !cfg.Redis.Disabled {
		redisCfg, err := buildRedisConfig(cfg)
		if err != nil {
			return err
		}
		redisCache, err = redis.NewCache(redisCfg)
		if err != nil {
			log.Warn("redis unavailable, cache warming disabled", "error", err)
			redisCache = nil
		} else {
			defer redisCache.Close()
		}
	}

	var studentCache jobs.CacheInvalidator
	var analysisCache *redis.AnalysisCache
	var analysisInvalidator jobs.CacheInvalidator
	if redisCache != nil {
		studentCache = redis.NewStudentCache(redisCache)
		analysisCache = redis.NewAnalysisCache(redisCache)
		analysisInvalidator = analysisCache
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. REPOSITORIES AND ROSTER SOURCE
	// ─────────────────────────────────────────────────────────────────────────
	studentRepo := postgres.NewStudentRepository(dbConn)
	snapshotRepo := postgres.NewSnapshotRepository(dbConn)
	syncRepo := postgres.NewSyncRepository(dbConn)

	if cfg.Source.BaseURL == "" {
		return fmt.Errorf("SOURCE_BASE_URL is required for the worker")
	}
	rosterCfg := roster.DefaultClientConfig(cfg.Source.BaseURL)
	rosterCfg.Token = cfg.Source.Token
	rosterCfg.Timeout = cfg.Source.RequestTimeout
	rosterCfg.Logger = log
	rosterClient := roster.NewClient(rosterCfg)

	m := metrics.New()

	// ─────────────────────────────────────────────────────────────────────────
	// 5. JOBS
	// ─────────────────────────────────────────────────────────────────────────
	analysisCfg := analysis.DefaultConfig()
	aggregator := analysis.NewAggregator(analysisCfg)

	syncCfg := jobs.DefaultSyncRosterConfig()
	syncCfg.Timeout = cfg.Scheduler.JobTimeout
	syncJob := jobs.NewSyncRosterJob(
		studentRepo,
		syncRepo,
		&rosterSource{client: rosterClient},
		studentCache,
		analysisInvalidator,
		m,
		log,
		syncCfg,
	)

	refreshCfg := jobs.DefaultRefreshAnalysisConfig()
	refreshCfg.Timeout = cfg.Scheduler.JobTimeout
	refreshCfg.SnapshotRetention = cfg.Scheduler.SnapshotRetention
	refreshJob := jobs.NewRefreshAnalysisJob(
		studentRepo,
		snapshotRepo,
		analysisCache,
		aggregator,
		m,
		log,
		refreshCfg,
	)

	atRiskCfg := jobs.DefaultDetectAtRiskConfig()
	atRiskCfg.Timeout = cfg.Scheduler.JobTimeout
	atRiskJob := jobs.NewDetectAtRiskJob(studentRepo, analysisCfg, m, log, atRiskCfg)

	// ─────────────────────────────────────────────────────────────────────────
	// 6. SCHEDULER
	// ─────────────────────────────────────────────────────────────────────────
	schedCfg := scheduler.DefaultSchedulerConfig()
	schedCfg.Logger = log
	schedCfg.Timezone = cfg.App.Location
	schedCfg.Metrics = m
	sched := scheduler.NewScheduler(schedCfg)

	if err := sched.Register(syncJob, scheduler.NewIntervalSchedule(cfg.Scheduler.SyncRosterInterval)); err != nil {
		return fmt.Errorf("register sync job: %w", err)
	}

	// The refresh and at-risk jobs sit behind feature flags so a bad
	// rollout can be switched off without redeploying the worker.
	if cfg.Features.IsEnabled(config.FeatureAnalysisSnapshots, nil) {
		if err := sched.Register(refreshJob, scheduler.NewIntervalSchedule(cfg.Scheduler.RefreshAnalysisInterval)); err != nil {
			return fmt.Errorf("register refresh job: %w", err)
		}
	} else {
		log.Info("analysis refresh job disabled", "flag", config.FeatureAnalysisSnapshots)
	}

	if cfg.Features.IsEnabled(config.FeatureAnalysisAtRiskSweep, nil) {
		// The sweep can be pinned to a cron expression so it runs in
		// quiet hours; otherwise it runs on a rolling interval.
		var atRiskSchedule scheduler.Schedule = scheduler.NewIntervalSchedule(cfg.Scheduler.DetectAtRiskInterval)
		if cron := cfg.Scheduler.AtRiskCron; cron != "" {
			cronSchedule, err := scheduler.NewCronSchedule(cron)
			if err != nil {
				return fmt.Errorf("parse SCHEDULER_AT_RISK_CRON: %w", err)
			}
			atRiskSchedule = cronSchedule
		}
		if err := sched.Register(atRiskJob, atRiskSchedule); err != nil {
			return fmt.Errorf("register at-risk job: %w", err)
		}
	} else {
		log.Info("at-risk sweep disabled", "flag", config.FeatureAnalysisAtRiskSweep)
	}

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer func() {
		if err := sched.Stop(); err != nil {
			log.Warn("scheduler stop failed", "error", err)
		}
	}()

	log.Info("scheduler started",
		"sync_interval", cfg.Scheduler.SyncRosterInterval.String(),
		"analysis_interval", cfg.Scheduler.RefreshAnalysisInterval.String(),
		"at_risk_interval", cfg.Scheduler.DetectAtRiskInterval.String(),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 7. METRICS AND HEALTH ENDPOINT
	// ─────────────────────────────────────────────────────────────────────────
	probeSrv := startProbeServer(cfg, m, log)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = probeSrv.Shutdown(shutdownCtx)
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 8. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	log.Info("received shutdown signal", "signal", sig.String())
	log.Info("shutdown completed")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// rosterSource adapts the roster client to the job-level source interface,
// mapping DTOs to domain records at the boundary.
type rosterSource struct {
	client *roster.Client
}

func (s *rosterSource) FetchRecords(ctx context.Context) ([]*student.Record, []student.SyncError, error) {
	dtos, err := s.client.FetchAllStudents(ctx)
	if err != nil {
		return nil, nil, err
	}
	records, syncErrs := s.client.Mapper().RecordsFromDTOs(dtos)
	return records, syncErrs, nil
}

// startProbeServer serves /metrics and /healthz for the worker deployment.
func startProbeServer(cfg *config.Config, m *metrics.Metrics, log *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	if cfg.Observability.MetricsEnabled {
		mux.Handle("GET /metrics", m.Handler())
	}
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("probe server failed", "error", err)
		}
	}()

	return srv
}

func setupLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.Observability.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	if cfg.App.Debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "text" || cfg.App.Environment == config.EnvDevelopment {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)
	return log
}

func buildDatabaseConfig(cfg *config.Config) postgres.Config {
	pgCfg := postgres.DefaultConfig()
	pgCfg.URL = cfg.Database.URL
	if cfg.Database.MaxOpenConns > 0 {
		pgCfg.MaxConns = int32(cfg.Database.MaxOpenConns)
	}
	if cfg.Database.MaxIdleConns > 0 {
		pgCfg.MinConns = int32(cfg.Database.MaxIdleConns)
	}
	if cfg.Database.ConnMaxLifetime > 0 {
		pgCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	}
	if cfg.Database.ConnMaxIdleTime > 0 {
		pgCfg.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime
	}
	return pgCfg
}

func buildRedisConfig(cfg *config.Config) (redis.Config, error) {
	if cfg.Redis.URL != "" {
		return redis.ConfigFromURL(cfg.Redis.URL)
	}

	redisCfg := redis.DefaultConfig()
	redisCfg.Host = cfg.Redis.Host
	redisCfg.Port = cfg.Redis.Port
	redisCfg.Password = cfg.Redis.Password
	redisCfg.DB = cfg.Redis.DB
	redisCfg.PoolSize = cfg.Redis.PoolSize
	redisCfg.MinIdleConns = cfg.Redis.MinIdleConns
	redisCfg.DialTimeout = cfg.Redis.DialTimeout
	redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
	redisCfg.WriteTimeout = cfg.Redis.WriteTimeout
	return redisCfg, nil
}
