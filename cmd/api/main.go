// Package main is the entry point for the API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/messiahcarey/deer-river/internal/api"
	"github.com/messiahcarey/deer-river/internal/config"
	"github.com/messiahcarey/deer-river/internal/effects"
	"github.com/messiahcarey/deer-river/internal/health"
	"github.com/messiahcarey/deer-river/internal/involvement"
	"github.com/messiahcarey/deer-river/internal/jobs"
	"github.com/messiahcarey/deer-river/internal/loyalty"
	"github.com/messiahcarey/deer-river/internal/middleware"
	"github.com/messiahcarey/deer-river/internal/scoring"
	"github.com/messiahcarey/deer-river/internal/seeding"
	"github.com/messiahcarey/deer-river/internal/store"
	"github.com/messiahcarey/deer-river/internal/tracing"
	"github.com/messiahcarey/deer-river/internal/weights"
)

const serviceName = "deer-river-api"

// batchPaths get the stricter recompute rate limit because each request
// fans out over the entire population.
var batchPaths = map[string]bool{
	"/scores/recalculate": true,
	"/seeding/preview":    true,
	"/seeding/execute":    true,
}

func main() {
	help := flag.Bool("help", false, "display help message")
	configPath := flag.String("config", "", "path to an optional YAML config file")
	flag.Parse()

	if *help {
		fmt.Println("Deer River API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configPath)

	// Initialize logger before validating so validation errors are
	// reported in the structured format.
	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	if len(errs) > 0 {
		for _, err := range errs {
			logger.Error("invalid configuration", "error", err)
		}
		os.Exit(1)
	}
	logger.Info("configuration loaded", "config", cfg.LogSummary())

	ctx := context.Background()

	// Tracing (optional)
	if cfg.TracingEnabled {
		provider, err := tracing.NewProvider(tracing.Config{
			ServiceName:  serviceName,
			Enabled:      true,
			Environment:  cfg.Env,
			ExporterType: cfg.TracingExporterType,
			OTLPEndpoint: cfg.OTLPEndpoint,
			SamplingRate: cfg.TracingSamplingRate,
			InsecureMode: cfg.Env != "production",
		})
		if err != nil {
			logger.Error("failed to initialize tracing", "error", err)
			os.Exit(1)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := provider.Shutdown(shutdownCtx); err != nil {
				logger.Error("failed to shut down tracing", "error", err)
			}
		}()
		logger.Info("tracing enabled", "exporter", cfg.TracingExporterType, "endpoint", cfg.OTLPEndpoint)
	}

	// Store: Postgres when a database URL is configured, otherwise the
	// in-memory store for local runs.
	var (
		st store.Store
		pg *store.Postgres
	)
	if cfg.DatabaseURL != "" {
		var err error
		pg, err = store.Open(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := pg.Close(); err != nil {
				logger.Error("failed to close database", "error", err)
			}
		}()
		st = pg
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory store")
		st = store.NewMemory()
	}

	// Redis (optional): score cache plus distributed rate limiting.
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error("failed to close redis client", "error", err)
			}
		}()
	}

	// Metrics
	registry := prometheus.NewRegistry()
	httpMetrics := middleware.NewMetrics()
	if err := httpMetrics.Register(registry); err != nil {
		logger.Error("failed to register HTTP metrics", "error", err)
		os.Exit(1)
	}
	scoringMetrics := scoring.NewMetrics()
	if err := scoringMetrics.Register(registry); err != nil {
		logger.Error("failed to register scoring metrics", "error", err)
		os.Exit(1)
	}
	jobMetrics := jobs.NewMetrics()
	if err := jobMetrics.Register(registry); err != nil {
		logger.Error("failed to register job metrics", "error", err)
		os.Exit(1)
	}

	// Formula weights. LoadCalibration degrades to defaults on error,
	// so a broken calibration file never blocks startup.
	calibration, err := weights.LoadCalibration(cfg.CalibrationPath)
	if err != nil {
		logger.Warn("calibration not loaded, using default weights", "error", err)
	}

	// Scorers and orchestrator
	invScorer := involvement.NewScorer(involvement.Config{
		Weights:       calibration.Involvement,
		WindowDays:    cfg.InvolvementWindowDays,
		DecayFactor:   cfg.DecayFactor,
		EnableDecay:   cfg.EnableDecay,
		CentralityCap: cfg.CentralityCap,
		Logger:        logger,
	}, st)
	loyScorer := loyalty.NewScorer(loyalty.Config{
		Weights:     calibration.Loyalty,
		WindowDays:  cfg.LoyaltyWindowDays,
		DecayFactor: cfg.DecayFactor,
		Logger:      logger,
	}, st)

	var scores store.ScoreStore = st
	if redisClient != nil {
		scores = store.NewScoreCache(st, redisClient, store.DefaultScoreCacheTTL, logger)
		logger.Info("score cache enabled", "redis_addr", cfg.RedisAddr)
	}

	dirtyTracker := scoring.NewDirtyTracker()
	orchestrator := scoring.NewOrchestrator(scoring.Config{
		SampleCap: cfg.LoyaltySampleCap,
		Logger:    logger,
		Metrics:   scoringMetrics,
	}, st, scores, invScorer, loyScorer)

	// Engines
	seedStats := seeding.NewRunStats()
	seedEngine := seeding.NewEngine(st, logger, seedStats)
	effectsEngine := effects.NewEngine(st, logger)

	// Health checkers
	healthConfig := api.HealthHandlersConfig{}
	if pg != nil {
		healthConfig.DBChecker = health.NewDBChecker(pg.DB())
	}
	if redisClient != nil {
		healthConfig.RedisChecker = health.NewRedisChecker(redisClient)
	}

	router := api.NewRouter(api.RouterConfig{
		Scores:          api.NewScoreHandlers(scores, st, orchestrator, dirtyTracker),
		Seeding:         api.NewSeedingHandlers(seedEngine),
		Effects:         api.NewEffectsHandlers(effectsEngine),
		Policies:        api.NewPolicyHandlers(st),
		Health:          api.NewHealthHandlers(healthConfig),
		MetricsRegistry: registry,
	})

	// Rate limiting: Redis-backed when available so limits hold across
	// replicas, in-process otherwise.
	var rlStore middleware.RateLimitStore
	if redisClient != nil {
		rlStore = middleware.NewRedisRateLimitStore(redisClient).WithMetrics(httpMetrics)
	} else {
		rlStore = middleware.NewInMemoryRateLimitStore()
	}
	recomputeGuard := middleware.RateLimiter(rlStore, middleware.DefaultRecomputeLimit(), middleware.IPKeyFunc())(router)
	guarded := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if batchPaths[r.URL.Path] {
			recomputeGuard.ServeHTTP(w, r)
			return
		}
		router.ServeHTTP(w, r)
	})

	// Apply middleware: RequestID -> Tracing -> Logging -> HTTPMetrics -> RateLimiter
	var handler http.Handler = guarded
	handler = middleware.RateLimiter(rlStore, middleware.DefaultGlobalLimit(), middleware.IPKeyFunc())(handler)
	handler = middleware.HTTPMetrics(httpMetrics)(handler)
	handler = middleware.Logging(logger)(handler)
	if cfg.TracingEnabled {
		handler = middleware.Tracing(serviceName)(handler)
	}
	handler = middleware.RequestID(handler)

	// Background recompute job
	recomputeJob := scoring.NewRecomputeJob(scoring.RecomputeJobConfig{
		Interval:   cfg.RecomputeInterval,
		Logger:     logger,
		Metrics:    scoringMetrics,
		JobMetrics: jobMetrics,
	}, dirtyTracker, orchestrator)
	if err := recomputeJob.Start(ctx); err != nil {
		logger.Error("failed to start recompute job", "error", err)
		os.Exit(1)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	recomputeJob.Stop()

	// Create context with timeout for shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
