package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ctf-scoreboard/internal/config"
	"github.com/ctf-scoreboard/internal/handler"
	"github.com/ctf-scoreboard/internal/kafka"
	"github.com/ctf-scoreboard/internal/postgres"
	"github.com/ctf-scoreboard/internal/redis"
	"github.com/ctf-scoreboard/internal/service"
	"github.com/ctf-scoreboard/internal/worker"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// The flag catalog and end time have no defaults, so a config file is required.
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "path", *configPath, "error", err)
		os.Exit(1)
	}

	catalog, err := cfg.Competition.Catalog()
	if err != nil {
		logger.Error("invalid flag catalog", "error", err)
		os.Exit(1)
	}
	clock, err := cfg.Competition.Clock()
	if err != nil {
		logger.Error("invalid competition end time", "error", err)
		os.Exit(1)
	}
	logger.Info("competition loaded",
		"name", cfg.Competition.Name,
		"flags", catalog.Total(),
		"ends_at", clock.EndsAt(),
		"open", clock.IsOpen(time.Now()),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize PostgreSQL
	logger.Info("connecting to PostgreSQL", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	postgresRepo, err := postgres.NewRepository(&cfg.Postgres, logger)
	if err != nil {
		logger.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer postgresRepo.Close()
	logger.Info("connected to PostgreSQL")

	if err := postgresRepo.RunMigrations(ctx); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Initialize Redis
	logger.Info("connecting to Redis", "addr", cfg.Redis.Addr)
	redisClient, err := redis.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	logger.Info("connected to Redis")

	sessions := redis.NewSessionStore(redisClient, cfg.Session.TTL, logger)

	// Initialize services
	scoringEngine := service.NewScoringEngine(postgresRepo, catalog, clock, logger)
	leaderboardService := service.NewLeaderboardService(
		postgresRepo,
		catalog,
		clock,
		cfg.Competition.Name,
		cfg.Competition.LogoURL,
		logger,
	)
	userService := service.NewUserService(postgresRepo, logger)

	// Kafka solve publishing is best effort; the scoreboard runs without it.
	var solvePublisher *kafka.SolvePublisher
	if cfg.Kafka.Enabled && cfg.Kafka.PublishSolves {
		solvePublisher, err = kafka.NewSolvePublisher(&cfg.Kafka, logger)
		if err != nil {
			logger.Warn("failed to create solve publisher, continuing without it", "error", err)
		} else {
			scoringEngine.SetPublisher(solvePublisher)
			logger.Info("publishing solves", "topic", cfg.Kafka.SolvesTopic)
		}
	}

	// Initialize audit worker
	auditWorker := worker.NewAuditWorker(postgresRepo, &cfg.Audit, logger)
	if cfg.Audit.Enabled {
		if err := auditWorker.Start(ctx); err != nil {
			logger.Error("failed to start audit worker", "error", err)
			os.Exit(1)
		}
	}

	// Initialize Kafka consumer for bulk flag ingestion
	var kafkaConsumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		logger.Info("initializing Kafka consumer",
			"brokers", cfg.Kafka.Brokers,
			"topic", cfg.Kafka.Topic,
		)
		kafkaConsumer, err = kafka.NewConsumer(&cfg.Kafka, scoringEngine, logger)
		if err != nil {
			logger.Warn("failed to create Kafka consumer, continuing without Kafka", "error", err)
		} else if err := kafkaConsumer.Start(); err != nil {
			logger.Warn("failed to start Kafka consumer, continuing without Kafka", "error", err)
			kafkaConsumer = nil
		} else {
			logger.Info("Kafka consumer started successfully")
		}
	}

	// Initialize HTTP handler
	httpHandler := handler.NewHandler(
		scoringEngine,
		leaderboardService,
		userService,
		sessions,
		cfg.Session,
		logger,
	)
	if cfg.RateLimit.Enabled {
		httpHandler.SetRateLimiter(redis.NewRateLimiter(redisClient, cfg.RateLimit.Submissions, cfg.RateLimit.Window))
	}
	httpHandler.AddReadinessCheck("postgres", postgresRepo.Ping)
	httpHandler.AddReadinessCheck("redis", func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpHandler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("starting HTTP server", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop accepting submissions before closing their dependencies
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	}

	if kafkaConsumer != nil {
		if err := kafkaConsumer.Stop(); err != nil {
			logger.Error("failed to stop Kafka consumer", "error", err)
		}
	}

	if solvePublisher != nil {
		if err := solvePublisher.Close(); err != nil {
			logger.Error("failed to close solve publisher", "error", err)
		}
	}

	if err := auditWorker.Stop(); err != nil {
		logger.Error("failed to stop audit worker", "error", err)
	}

	logger.Info("server stopped")
}
