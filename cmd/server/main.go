// Package main provides the API server entry point for the finance coach service.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/finance-coach/internal/adapter"
	"github.com/finance-coach/internal/api"
	"github.com/finance-coach/internal/config"
	"github.com/finance-coach/internal/logging"
	"github.com/finance-coach/internal/ratelimit"
	"github.com/finance-coach/internal/retry"
	"github.com/finance-coach/internal/service"
	"github.com/finance-coach/internal/storage"
	"github.com/finance-coach/internal/types"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logging.InitGlobalLogger(logging.ParseLogLevel(cfg.Logging.Level), logging.ParseLogFormat(cfg.Logging.Format))
	logger := logging.GetGlobalLogger()
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("Structured logging initialized")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Connecting to databases...")

	var postgres *storage.PostgresDB
	err = retry.Do(ctx, retry.DefaultConfig(), func(ctx context.Context, attempt int) error {
		postgres, err = storage.NewPostgresDB(ctx, &cfg.Database.Postgres)
		if errors.Is(err, storage.ErrInvalidConfig) {
			return retry.Permanent(err)
		}
		return err
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	var redisCache *storage.RedisCache
	err = retry.Do(ctx, retry.DefaultConfig(), func(ctx context.Context, attempt int) error {
		redisCache, err = storage.NewRedisCache(ctx, &cfg.Database.Redis)
		return err
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redisCache.Close()

	logger.Info("Database connections established")

	// Initialize repositories
	profileRepo := storage.NewProfileRepository(postgres)
	accountRepo := storage.NewAccountRepository(postgres)
	txRepo := storage.NewTransactionRepository(postgres)
	scenarioRepo := storage.NewScenarioRepository(postgres)
	importJobRepo := storage.NewImportJobRepository(postgres)
	cacheService := storage.NewCacheService(redisCache, cfg.Simulation.CacheTTL)

	completion := adapter.NewCompletionClient(cfg.AI)
	if cfg.AI.APIKey == "" {
		logger.Warn("AI_GATEWAY_API_KEY not set - scenario insights are disabled")
	}

	simulationService := service.NewSimulationService(
		profileRepo,
		accountRepo,
		txRepo,
		scenarioRepo,
		cacheService,
		service.SimulationConfig{
			DefaultRuns: cfg.Simulation.DefaultRuns,
			MaxRuns:     cfg.Simulation.MaxRuns,
		},
		nil,
	)
	importService := service.NewImportService(txRepo, importJobRepo, service.ImportConfig{
		BatchSize:   cfg.Import.BatchSize,
		MaxErrorLog: cfg.Import.MaxErrorLog,
		ChunkPolicy: types.ParseChunkFailurePolicy(cfg.Import.ChunkPolicy),
	})
	insightBudget, err := ratelimit.NewBudget(&ratelimit.Config{
		Redis:  redisCache.Client(),
		Limit:  cfg.AI.InsightLimit,
		Window: cfg.AI.InsightWindow,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to create insight budget")
	}
	insightService := service.NewInsightService(scenarioRepo, completion, insightBudget)

	monitor := service.NewSimulationMonitor()
	simulationService.SetMonitor(monitor)

	logger.Info("Services initialized")

	serverConfig := &api.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     2 * cfg.Server.ReadTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		JWTSecret:       cfg.Auth.JWTSecret,
		JWTIssuer:       cfg.Auth.Issuer,
		RequestsPerSec:  cfg.RateLimit.RequestsPerSecond,
		Burst:           cfg.RateLimit.Burst,
		MaxCSVBytes:     cfg.Import.MaxCSVBytes,
	}

	server := api.NewServer(serverConfig, simulationService, importService, insightService,
		map[string]api.HealthChecker{
			"postgres": postgres,
			"redis":    redisCache,
		},
		completion.Breaker(),
		monitor,
	)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	logger.WithFields(map[string]interface{}{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Server started successfully")

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		logger.WithError(err).Error("Server failed")
		os.Exit(1)
	}

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server exited")
}
