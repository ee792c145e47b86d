// Package main is the entry point of the ISHEBOT insight hub API server.
//
// The server exposes the teacher dashboard's REST API: student listings and
// profiles, aggregated class analysis, generated insights and the admin
// operations (import, analyze, delete, backup, restore).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ishebot/insight-hub/config"
	"github.com/ishebot/insight-hub/internal/application/command"
	"github.com/ishebot/insight-hub/internal/application/query"
	"github.com/ishebot/insight-hub/internal/domain/analysis"
	"github.com/ishebot/insight-hub/internal/domain/insight"
	"github.com/ishebot/insight-hub/internal/domain/student"
	"github.com/ishebot/insight-hub/internal/infrastructure/external/roster"
	"github.com/ishebot/insight-hub/internal/infrastructure/metrics"
	"github.com/ishebot/insight-hub/internal/infrastructure/persistence/postgres"
	"github.com/ishebot/insight-hub/internal/infrastructure/persistence/redis"
	httpapi "github.com/ishebot/insight-hub/internal/interface/http"
	"github.com/ishebot/insight-hub/internal/interface/http/handlers"
	"github.com/ishebot/insight-hub/pkg/logger"
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
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := setupLogger(cfg)
	log.Info("starting insight hub API server",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
		logger.Bool("debug", cfg.App.Debug),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. DATABASE
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database")
	dbConn, err := postgres.Connect(ctx, buildDatabaseConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbConn.Close()

	if err := dbConn.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

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
			log.Warn("redis unavailable, caching disabled", logger.Err(err))
			redisCache = nil
		} else {
			defer redisCache.Close()
			log.Info("redis connection established")
		}
	}

	var studentCache *redis.StudentCache
	var analysisCache *redis.AnalysisCache
	var recordCache student.Cache
	if redisCache != nil {
		studentCache = redis.NewStudentCache(redisCache)
		analysisCache = redis.NewAnalysisCache(redisCache)
		recordCache = studentCache
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. REPOSITORIES AND DOMAIN SERVICES
	// ─────────────────────────────────────────────────────────────────────────
	studentRepo := postgres.NewStudentRepository(dbConn)
	snapshotRepo := postgres.NewSnapshotRepository(dbConn)
	syncRepo := postgres.NewSyncRepository(dbConn)

	analysisCfg := analysis.DefaultConfig()
	aggregator := analysis.NewAggregator(analysisCfg)
	generator := insight.NewGenerator(nil, analysisCfg)

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ROSTER SOURCE CLIENT
	// ─────────────────────────────────────────────────────────────────────────
	var rosterClient *roster.Client
	if cfg.Source.BaseURL != "" {
		rosterClient = roster.NewClient(buildRosterConfig(cfg))
		log.Info("roster source configured", logger.String("base_url", cfg.Source.BaseURL))
	} else {
		log.Warn("SOURCE_BASE_URL is not set, on-demand analysis is disabled")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. APPLICATION HANDLERS (CQRS)
	// ─────────────────────────────────────────────────────────────────────────
	deps := httpapi.Dependencies{
		ListStudentsHandler:      query.NewListStudentsHandler(studentRepo),
		GetStudentProfileHandler: query.NewGetStudentProfileHandler(studentRepo, studentCache, generator),
		GetClassAnalysisHandler:  query.NewGetClassAnalysisHandler(studentRepo, snapshotRepo, analysisCache, aggregator),
		GetClassInsightsHandler:  query.NewGetClassInsightsHandler(studentRepo, analysisCache, generator),
		GetDashboardStatsHandler: query.NewGetDashboardStatsHandler(studentRepo, syncRepo, redisCache),

		ImportStudentsHandler:  command.NewImportStudentsHandler(studentRepo, syncRepo, recordCache),
		RunAnalysisHandler:     command.NewRunAnalysisHandler(studentRepo, snapshotRepo, rosterClient, analysisCache, recordCache, aggregator),
		DeleteStudentsHandler:  command.NewDeleteStudentsHandler(studentRepo, recordCache, analysisCache),
		BackupStudentsHandler:  command.NewBackupStudentsHandler(studentRepo),
		RestoreStudentsHandler: command.NewRestoreStudentsHandler(studentRepo, recordCache, analysisCache),

		Features:      cfg.Features,
		Logger:        log,
		HealthChecker: buildHealthChecker(cfg, dbConn, redisCache, rosterClient),
	}
	if cfg.Observability.MetricsEnabled {
		deps.Metrics = metrics.New()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	serverCfg := httpapi.DefaultConfig()
	serverCfg.Host = cfg.HTTP.Host
	serverCfg.Port = cfg.HTTP.Port
	serverCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	serverCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	serverCfg.IdleTimeout = cfg.HTTP.IdleTimeout
	serverCfg.EnableCORS = cfg.HTTP.EnableCORS
	serverCfg.AllowedOrigins = cfg.HTTP.AllowedOrigins
	serverCfg.EnableMetrics = cfg.Observability.MetricsEnabled
	serverCfg.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute
	serverCfg.APIKeyHeader = cfg.HTTP.APIKeyHeader
	serverCfg.AdminKeyHashes = cfg.HTTP.AdminKeyHashes
	serverCfg.MaxImportBytes = cfg.HTTP.MaxImportBytes

	server := httpapi.NewServer(serverCfg, deps)
	errCh := server.StartAsync()

	log.Info("insight hub API server is running",
		logger.String("address", serverCfg.Address()),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 8. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", logger.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	log.Info("shutdown completed")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// WIRING HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func setupLogger(cfg *config.Config) *logger.Logger {
	opts := logger.DefaultOptions()
	opts.Level = logger.ParseLevel(cfg.Observability.LogLevel)
	if cfg.App.Debug {
		opts.Level = logger.LevelDebug
	}
	return logger.New(opts)
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

func buildRosterConfig(cfg *config.Config) roster.ClientConfig {
	rc := roster.DefaultClientConfig(cfg.Source.BaseURL)
	rc.Token = cfg.Source.Token
	rc.Timeout = cfg.Source.RequestTimeout
	rc.Debug = cfg.App.Debug

	rc.RateLimiterConfig.RequestsPerSecond = float64(cfg.Source.RateLimit) / 60.0
	rc.RateLimiterConfig.BurstSize = cfg.Source.RateLimitBurst

	rc.CircuitBreakerConfig.FailureThreshold = cfg.Source.CircuitBreakerThreshold
	rc.CircuitBreakerConfig.Timeout = cfg.Source.CircuitBreakerTimeout
	rc.CircuitBreakerConfig.HalfOpenMaxRetries = cfg.Source.CircuitBreakerHalfOpenMax

	rc.RetryConfig.MaxRetries = cfg.Source.MaxRetries
	rc.RetryConfig.InitialBackoff = cfg.Source.RetryBaseDelay
	rc.RetryConfig.MaxBackoff = cfg.Source.RetryMaxDelay
	return rc
}

func buildHealthChecker(
	cfg *config.Config,
	db *postgres.Connection,
	cache *redis.Cache,
	rosterClient *roster.Client,
) handlers.HealthChecker {
	checker := handlers.NewCompositeHealthChecker(cfg.App.Version)
	checker.AddCheck("database", handlers.NewDatabaseCheck(db))
	if cache != nil {
		checker.AddCheck("cache", handlers.NewCacheCheck(cache))
	}
	if rosterClient != nil {
		checker.AddCheck("roster", handlers.NewRosterCheck(rosterClient))
	}
	return checker
}
