package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eenlars/lucky-sub006/internal/application/cancellation"
	"github.com/eenlars/lucky-sub006/internal/application/orchestrator"
	"github.com/eenlars/lucky-sub006/internal/application/runner"
	"github.com/eenlars/lucky-sub006/internal/application/validation"
	"github.com/eenlars/lucky-sub006/internal/config"
	redisevents "github.com/eenlars/lucky-sub006/pkg/adapters/events/redis"
	"github.com/eenlars/lucky-sub006/pkg/adapters/llm"
	"github.com/eenlars/lucky-sub006/pkg/adapters/metrics/prometheus"
	redisstorage "github.com/eenlars/lucky-sub006/pkg/adapters/storage/redis"
	"github.com/eenlars/lucky-sub006/pkg/api/grpc"
	"github.com/eenlars/lucky-sub006/pkg/api/http"
	"github.com/eenlars/lucky-sub006/pkg/api/websocket"
	"github.com/eenlars/lucky-sub006/pkg/domain"
)

var (
	// Version is set by build flags
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := initLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("starting lucky orchestrator",
		zap.String("version", Version),
		zap.String("build_time", BuildTime))

	// Initialize Redis client
	redisClient := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		MaxRetries:   cfg.Redis.MaxRetries,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})

	// Test Redis connection
	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to connect to Redis", zap.Error(err))
	}
	logger.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))

	// Initialize adapters
	eventBus := redisevents.NewPubSubEventBus(redisClient, logger)

	invocationStore := redisstorage.NewInvocationStore(redisClient, logger)
	persistence := redisstorage.NewPersistence(redisClient, 0, logger)

	modelClient, err := llm.NewClient(&llm.Config{
		Provider:         cfg.LLM.Provider,
		APIKey:           cfg.LLM.APIKey,
		RequestTimeout:   cfg.LLM.RequestTimeout,
		DefaultMaxTokens: cfg.LLM.DefaultMaxTokens,
		Logger:           logger,
	})
	if err != nil {
		logger.Fatal("failed to create model client", zap.Error(err))
	}

	metricsCollector := prometheus.NewCollector()

	// Initialize application components
	models := defaultModelCatalog()
	validator := validation.NewValidator(validation.Options{
		AllowCycles:           cfg.Validation.AllowCycles,
		Mode:                  domain.CoordinationMode(cfg.Validation.CoordinationMode),
		Tools:                 defaultToolCatalog(),
		Models:                models,
		MaxMCPToolsPerNode:    cfg.Validation.MaxMCPToolsPerNode,
		MaxCodeToolsPerNode:   cfg.Validation.MaxCodeToolsPerNode,
		DefaultTools:          cfg.Validation.DefaultTools,
		EnforceUniqueTools:    cfg.Validation.UniqueTools,
		EnforceUniqueToolSets: cfg.Validation.UniqueToolSets,
		EnforceToolLimits:     cfg.Validation.ToolLimits,
		EnforceActiveTools:    cfg.Validation.ActiveTools,
		EnforceModels:         cfg.Validation.Models,
	})

	coordinator := cancellation.NewCoordinator(
		invocationStore,
		eventBus,
		metricsCollector,
		logger,
		cfg.Timeouts.InvocationStateTTL,
	)

	runnerPool := runner.NewPool(
		cfg.Runner.PoolSize,
		modelClient,
		eventBus,
		metricsCollector,
		logger,
		cfg.Runner.HealthCheckInterval,
	)
	if err := runnerPool.Start(); err != nil {
		logger.Fatal("failed to start runner pool", zap.Error(err))
	}

	orchestratorMgr := orchestrator.NewManager(orchestrator.ManagerConfig{
		Validator:         validator,
		Runner:            runnerPool,
		Coordinator:       coordinator,
		Persistence:       persistence,
		EventBus:          eventBus,
		Metrics:           metricsCollector,
		Logger:            logger,
		EnabledModels:     enabledModels(models),
		Catalog:           models,
		InvocationTimeout: cfg.Timeouts.InvocationTimeout,
	})

	// Initialize API servers
	httpServer := http.NewServer(&http.Config{
		Port:         cfg.HTTPPort,
		Orchestrator: orchestratorMgr,
		Invocations:  invocationStore,
		Logger:       logger,
	})

	// Add WebSocket handler to HTTP server
	wsHandler := websocket.NewHandler(eventBus, logger)
	httpServer.SetupWebSocket(wsHandler)

	grpcServer, err := grpc.NewServer(&grpc.Config{
		Port:   cfg.GRPCPort,
		Logger: logger,
	})
	if err != nil {
		logger.Fatal("failed to create gRPC server", zap.Error(err))
	}

	// Start servers
	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	go func() {
		if err := grpcServer.Start(); err != nil {
			logger.Fatal("gRPC server failed", zap.Error(err))
		}
	}()

	logger.Info("lucky orchestrator started",
		zap.Int("http_port", cfg.HTTPPort),
		zap.Int("grpc_port", cfg.GRPCPort),
		zap.Int("runner_pool_size", cfg.Runner.PoolSize))

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("received shutdown signal")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	if err := grpcServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("gRPC server shutdown error", zap.Error(err))
	}

	if err := runnerPool.Shutdown(shutdownCtx); err != nil {
		logger.Error("runner pool shutdown error", zap.Error(err))
	}

	if err := orchestratorMgr.Shutdown(shutdownCtx); err != nil {
		logger.Error("orchestrator shutdown error", zap.Error(err))
	}

	if err := redisClient.Close(); err != nil {
		logger.Error("Redis close error", zap.Error(err))
	}

	logger.Info("lucky orchestrator shut down complete")
}

// initLogger initializes the logger based on log level
func initLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zapLevel)
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}

	return logger
}
