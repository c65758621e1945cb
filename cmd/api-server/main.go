package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trial-sponsor-tracker/pkg/api"
	"trial-sponsor-tracker/pkg/config"
	"trial-sponsor-tracker/pkg/database"
	"trial-sponsor-tracker/pkg/health"
	"trial-sponsor-tracker/pkg/logging"
	"trial-sponsor-tracker/pkg/monitoring"
	"trial-sponsor-tracker/pkg/pipeline"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const version = "1.0.0"

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Monitoring.Logging)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conns, err := database.Open(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to connect to storage", zap.Error(err))
	}
	defer conns.Close(context.Background())

	metricsCollector := monitoring.NewMetricsCollector()
	orchestrator, err := pipeline.NewOrchestrator(conns.Postgres, conns.Redis, conns.Neo4j, metricsCollector, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create orchestrator", zap.Error(err))
	}

	healthChecker := newHealthChecker(conns, orchestrator, cfg, logger)
	go healthChecker.StartPeriodicHealthChecks(ctx, time.Minute)

	// a nil *Store must not become a non-nil interface
	var store api.RunStore
	if s := conns.Store(); s != nil {
		store = s
	}
	handlers := api.NewHandlers(orchestrator, store, healthChecker, metricsCollector, logger)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	api.SetupRoutes(router, handlers, metricsCollector, logger)

	scheduler, err := newScheduler(ctx, cfg.Server.Schedule, orchestrator, logger)
	if err != nil {
		logger.Fatal("Invalid run schedule", zap.Error(err), zap.String("schedule", cfg.Server.Schedule))
	}
	if scheduler != nil {
		scheduler.Start()
	}

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: 0, // POST /runs waits for the whole run
	}

	go func() {
		logger.Info("Starting API server", zap.String("addr", server.Addr), zap.Strings("sinks", orchestrator.Sinks()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	stopScheduler(shutdownCtx, scheduler, cancel, logger)

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func newHealthChecker(conns *database.Connections, orchestrator *pipeline.Orchestrator, cfg *config.Config, logger *zap.Logger) *health.HealthChecker {
	hc := health.NewHealthChecker(version, logger)
	hc.RegisterHealthCheck("clinicaltrials", health.PingCheck(orchestrator.Trials()), true)
	if conns.Postgres != nil {
		hc.RegisterHealthCheck("postgres", health.PostgresCheck(conns.Postgres), false)
	}
	if conns.Redis != nil {
		hc.RegisterHealthCheck("redis", health.RedisCheck(conns.Redis, cfg.Database.Redis.Stream), false)
	}
	if conns.Neo4j != nil {
		hc.RegisterHealthCheck("neo4j", health.Neo4jCheck(conns.Neo4j), false)
	}
	return hc
}

// stopScheduler stops new scheduled runs, cancels the one in flight and waits
// for it to return or for ctx to expire. A cancelled run still writes the rows
// it already has.
func stopScheduler(ctx context.Context, scheduler *cron.Cron, cancelRuns context.CancelFunc, logger *zap.Logger) {
	if scheduler == nil {
		cancelRuns()
		return
	}

	stopped := scheduler.Stop()
	cancelRuns()

	select {
	case <-stopped.Done():
	case <-ctx.Done():
		logger.Warn("Scheduled run still in progress at shutdown deadline")
	}
}

// newScheduler returns a cron scheduler running the configured aggregation,
// or nil when no schedule is set
func newScheduler(ctx context.Context, spec string, orchestrator *pipeline.Orchestrator, logger *zap.Logger) (*cron.Cron, error) {
	if spec == "" {
		return nil, nil
	}

	c := cron.New(cron.WithSeconds())
	_, err := c.AddFunc(spec, func() {
		report, err := orchestrator.Run(ctx, nil, -1)
		if errors.Is(err, pipeline.ErrRunInProgress) {
			logger.Info("Skipping scheduled run, another run is in progress")
			return
		}
		if err != nil {
			logger.Error("Scheduled run failed", zap.Error(err))
			return
		}
		logger.Info("Scheduled run finished", zap.String("run_id", report.ID), zap.Int("rows", report.Rows))
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}
