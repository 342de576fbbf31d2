package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/relaypoint/message-relay/internal/config"
	"github.com/relaypoint/message-relay/internal/domain"
	"github.com/relaypoint/message-relay/internal/handler"
	"github.com/relaypoint/message-relay/internal/middleware"
	"github.com/relaypoint/message-relay/internal/provider"
	"github.com/relaypoint/message-relay/internal/repository/postgres"
	"github.com/relaypoint/message-relay/internal/repository/redis"
	"github.com/relaypoint/message-relay/internal/resilience"
	"github.com/relaypoint/message-relay/internal/service"
)

// @title Message Relay API
// @version 1.0
// @description SMS relay service with resilient provider delivery

// @host localhost:8080
// @BasePath /

func main() {
	// Load configuration
	cfg := config.Load()

	// Setup logger
	logLevel := slog.LevelInfo
	if cfg.App.LogLevel == "debug" {
		logLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("starting message relay",
		"env", cfg.App.Env,
		"port", cfg.Server.Port,
	)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize PostgreSQL
	db, err := postgres.New(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.EnsureSchema(ctx); err != nil {
		logger.Error("failed to apply database schema", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to PostgreSQL")

	// Initialize Redis
	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		logger.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	logger.Info("connected to Redis")

	// Initialize repositories
	messageRepo := postgres.NewMessageRepository(db)
	rateLimiter := redis.NewRateLimiter(redisClient, cfg.RateLimit.PerDestinationPerMinute)

	// Metrics and the shared circuit breaker. One breaker instance guards
	// the provider endpoint across all concurrent sends.
	metrics := handler.NewMetrics()

	breaker := resilience.NewBreaker(resilience.Settings{
		SamplingWindow:    cfg.Breaker.SamplingWindow,
		FailureRatio:      cfg.Breaker.FailureRatio,
		MinimumThroughput: cfg.Breaker.MinimumThroughput,
		BreakDuration:     cfg.Breaker.BreakDuration,
	})
	breaker.OnStateChange(func(change resilience.StateChange) {
		logger.Warn("circuit breaker state change",
			"from", change.From.String(),
			"to", change.To.String(),
		)
		metrics.RecordBreakerTransition(change)
	})

	// Initialize provider behind the resilience pipeline
	twilioProvider, err := provider.NewTwilio(cfg.Twilio, resilience.PipelineConfig{
		AttemptTimeout: cfg.Twilio.RequestTimeout,
		MaxRetries:     cfg.Retry.MaxRetries,
		Backoff: resilience.Exponential{
			BaseDelay:     cfg.Retry.BaseDelay,
			JitterCeiling: cfg.Retry.JitterCeiling,
		},
		OnAttempt: metrics.RecordAttempt,
	}, breaker)
	if err != nil {
		logger.Error("provider configuration invalid", "error", err)
		os.Exit(1)
	}

	// Initialize service
	messageService := service.NewMessageService(messageRepo, twilioProvider, rateLimiter, logger)

	// Initialize WebSocket hub
	hub := handler.NewStreamHub(logger)
	go hub.Run()

	messageService.SetStatusBroadcast(func(m *domain.Message) {
		hub.BroadcastStatus(m)
		switch m.Status {
		case domain.StatusSent:
			metrics.RecordMessageSent()
		case domain.StatusFailed:
			kind := "unknown"
			if m.FailureKind != nil {
				kind = *m.FailureKind
			}
			metrics.RecordMessageFailed(kind)
		}
	})

	// Initialize handlers
	messageHandler := handler.NewMessageHandler(messageService)
	healthHandler := handler.NewHealthHandler()
	healthHandler.AddChecker("postgres", db)
	healthHandler.AddChecker("redis", redisClient)

	metricsHandler := handler.NewMetricsHandler(metrics, breaker)
	streamHandler := handler.NewStreamHandler(hub)

	// Setup router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.Correlation)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logging(logger, metrics))
	r.Use(chimiddleware.Compress(5))

	// Health endpoints
	r.Get("/health", healthHandler.Health)
	r.Get("/health/live", healthHandler.Liveness)
	r.Get("/health/ready", healthHandler.Readiness)

	// Metrics endpoints
	r.Handle("/metrics", metricsHandler.Handler())
	r.Get("/metrics/breaker", metricsHandler.BreakerStatus)

	// WebSocket endpoint
	r.Get("/ws", streamHandler.HandleStream)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/messages", func(r chi.Router) {
			messageHandler.RegisterRoutes(r)
		})
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server listening", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	cancel()

	logger.Info("server stopped")
}
