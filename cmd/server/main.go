package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/kotoba-voice/kotoba/internal/config"
	"github.com/kotoba-voice/kotoba/internal/conversation"
	"github.com/kotoba-voice/kotoba/internal/database"
	"github.com/kotoba-voice/kotoba/internal/events"
	"github.com/kotoba-voice/kotoba/internal/handlers"
	"github.com/kotoba-voice/kotoba/internal/logger"
	"github.com/kotoba-voice/kotoba/internal/middleware"
	"github.com/kotoba-voice/kotoba/internal/ratelimit"
	"github.com/kotoba-voice/kotoba/internal/services/assistant"
	"github.com/kotoba-voice/kotoba/internal/telemetry"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/zap"
)

func main() {
	// Parse command-line flags
	debugFlag := flag.Bool("debug", false, "Enable debug mode for LLM API logging")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Override debug mode if flag is set
	debugMode := cfg.ServerDebugMode || *debugFlag

	// Initialize logger
	zapLogger, err := logger.NewProductionLogger(debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		if syncErr := zapLogger.Sync(); syncErr != nil {
			// Ignore sync errors in production
			_ = syncErr
		}
	}()

	zapLogger.Info("starting_server",
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.String("ai_model", cfg.AIModel),
		zap.Duration("admission_window", cfg.AdmissionWindow),
		zap.Int64("admission_limit", cfg.AdmissionLimit),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	// Initialize OpenTelemetry if enabled
	if cfg.OTELEnabled {
		if cfg.OTELEndpoint == "" {
			zapLogger.Warn("otel_enabled_but_endpoint_not_configured")
		} else {
			tp, err := telemetry.InitTracer(context.Background(), "kotoba-intent-api", cfg.OTELEndpoint)
			if err != nil {
				zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
			} else {
				zapLogger.Info("otel_tracer_initialized",
					zap.String("endpoint", cfg.OTELEndpoint),
				)
				defer func() {
					shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer shutdownCancel()
					if err := tp.Shutdown(shutdownCtx); err != nil {
						zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
					}
				}()
			}
		}
	}

	// Connect to database
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("failed_to_close_database_connection", zap.Error(err))
		}
	}()

	migrateCtx, migrateCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer migrateCancel()
	if err := db.Migrate(migrateCtx); err != nil {
		zapLogger.Fatal("failed_to_run_migrations", zap.Error(err))
	}
	zapLogger.Info("connected_to_database")

	// Connect to Redis for transport-level rate limiting
	redisClient, err := middleware.NewRedisClient(cfg.RedisURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_redis", zap.Error(err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_redis")

	// Usage event publisher is optional; fall back to a no-op when
	// RabbitMQ is not configured or unreachable.
	var publisher events.Publisher
	if cfg.RabbitMQURL != "" {
		if rmq, err := events.NewRabbitMQPublisher(cfg.RabbitMQURL); err != nil {
			zapLogger.Warn("failed_to_connect_to_rabbitmq_using_noop_publisher", zap.Error(err))
			publisher = events.NewNoopPublisher()
		} else {
			zapLogger.Info("connected_to_rabbitmq")
			publisher = rmq
		}
	} else {
		publisher = events.NewNoopPublisher()
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			zapLogger.Warn("failed_to_close_publisher", zap.Error(err))
		}
	}()

	// Initialize repositories
	usageRepo := database.NewUsageRepository(db)
	questionRepo := database.NewQuestionRepository(db)

	// Admission limiter over the persistent usage counters
	limiter := ratelimit.New(usageRepo, cfg.AdmissionWindow, cfg.AdmissionLimit, zapLogger)

	// Per-user conversation buffers
	buffers := conversation.NewManager()

	// Completion provider
	if cfg.OpenAIKey == "" {
		zapLogger.Fatal("openai_api_key_not_configured")
	}
	provider := assistant.NewOpenAIProviderWithLogger(
		cfg.OpenAIKey,
		cfg.AIBaseURL,
		cfg.AIModel,
		zapLogger,
		debugMode,
	)

	service := assistant.NewService(limiter, questionRepo, buffers, provider, zapLogger,
		assistant.WithTokenBudget(cfg.TokenBudget),
		assistant.WithPublisher(publisher),
	)

	// Initialize handlers
	intentHandler := handlers.NewIntentHandler(service, zapLogger)
	healthChecker := handlers.NewHealthChecker(db, redisClient)
	openAPIHandler := handlers.NewOpenAPIHandler(cfg.OpenAPIPath)

	// Setup router
	r := mux.NewRouter()

	// OpenTelemetry instrumentation (outermost so every request is traced)
	r.Use(otelmux.Middleware("kotoba-intent-api"))

	// Middleware (order matters)
	// 1. Security headers
	r.Use(middleware.SecurityHeaders(cfg.EnableHSTS))
	// 2. Request size limits
	r.Use(middleware.MaxRequestSize(middleware.DefaultMaxRequestSize))
	// 3. Content type validation
	r.Use(middleware.ContentType)
	// 4. Request timeout
	r.Use(middleware.Timeout(60 * time.Second))
	// 5. Panic recovery with a spoken apology response
	r.Use(middleware.Recovery(zapLogger))
	// 6. Logging (innermost, executes last before handler)
	r.Use(middleware.Logging(zapLogger))

	// Public routes
	r.HandleFunc("/healthz", healthChecker.HealthCheck).Methods("GET")
	openAPIHandler.RegisterRoutes(r)

	// Webhook routes
	rateLimitMW, err := middleware.TransportRateLimit(redisClient.Client(), "")
	if err != nil {
		zapLogger.Fatal("failed_to_create_rate_limit_middleware", zap.Error(err))
	}

	apiRouter := r.PathPrefix("/v1").Subrouter()
	apiRouter.Use(rateLimitMW)
	apiRouter.Use(middleware.WebhookAuth(cfg.WebhookJWTSecret, zapLogger))
	intentHandler.RegisterRoutes(apiRouter)

	// Setup server
	srv := &http.Server{
		Addr:           ":" + cfg.ServerPort,
		Handler:        r,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1MB max header size
	}

	// Start server in a goroutine
	go func() {
		zapLogger.Info("server_starting",
			zap.String("port", cfg.ServerPort),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("server_failed_to_start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("server_shutting_down")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Fatal("server_forced_to_shutdown", zap.Error(err))
	}

	zapLogger.Info("server_exited")
}
