package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/khabaroff/webhook-inbox/src/config"
	"github.com/khabaroff/webhook-inbox/src/database"
	"github.com/khabaroff/webhook-inbox/src/handlers"
	"github.com/khabaroff/webhook-inbox/src/logging"
	"github.com/khabaroff/webhook-inbox/src/middleware"
	"github.com/khabaroff/webhook-inbox/src/repositories"
	"github.com/khabaroff/webhook-inbox/src/repositories/memory"
	"github.com/khabaroff/webhook-inbox/src/repositories/postgres"
	"github.com/khabaroff/webhook-inbox/src/services"
	"github.com/rs/zerolog/log"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "send" {
		os.Exit(runSend(os.Args[2:]))
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	// Initialize structured logging
	logging.Setup(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})

	log.Info().
		Int("port", cfg.Port).
		Str("store", cfg.StoreDriver).
		Str("run_lock", cfg.RunLock).
		Strs("providers", cfg.ProviderSecrets.Names()).
		Msg("starting server")

	if len(cfg.ProviderSecrets) == 0 {
		log.Warn().Msg("no provider secrets configured - every webhook will be rejected")
	}

	// Initialize event store
	repo, runLock, closeStore, err := openStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize event store")
	}
	defer closeStore()

	// Initialize analytics (optional - empty key disables)
	analyticsService, err := services.NewAnalyticsService(services.AnalyticsConfig{
		PostHogAPIKey: cfg.PostHogAPIKey,
		PostHogHost:   cfg.PostHogHost,
		Environment:   cfg.Environment,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize analytics service")
	}
	defer analyticsService.Close()

	if analyticsService.Enabled() {
		log.Info().Str("host", cfg.PostHogHost).Msg("PostHog analytics enabled")
	}

	// Initialize services
	eventService := services.NewEventService(repo)
	eventService.SetTracker(analyticsService)
	validator := services.NewSignatureValidator(cfg.ProviderSecrets)
	webhookService := services.NewWebhookService(validator, eventService)

	processor := services.NewEventProcessor(repo, services.NewWorkerRegistry(nil), services.ProcessorConfig{
		BatchSize: cfg.ProcessBatchSize,
		Lease:     cfg.ClaimLease,
		Timeout:   cfg.ProcessTimeout,
	})
	processor.SetTracker(analyticsService)
	scheduler := services.NewProcessorScheduler(processor, runLock, cfg.ProcessInterval)

	// Start background processing
	scheduler.Start(context.Background())

	webhookLimiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		RequestsPerMinute: cfg.RateLimitPerMinute,
		Burst:             cfg.RateLimitBurst,
	})
	defer webhookLimiter.Stop()

	// Create Gin router
	router := gin.New()

	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware())
	router.Use(gin.Recovery())

	if len(cfg.AllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Health check endpoints
	healthHandler := handlers.NewHealthHandler(eventService, scheduler, cfg.StoreDriver)
	router.GET("/health", healthHandler.HandleHealth)
	router.GET("/ready", healthHandler.HandleReady)
	router.GET("/info", healthHandler.HandleInfo)

	// Webhook endpoint
	webhookHandler := handlers.NewWebhookHandler(webhookService)
	// keyed by client IP: the provider segment is public and unauthenticated
	router.POST("/webhooks/:provider",
		webhookLimiter.ByIP(),
		middleware.RawBodyMiddleware(cfg.MaxBodyBytes),
		webhookHandler.HandleWebhook)

	// Admin API (only when a password is configured)
	if cfg.AdminEnabled() {
		loginLimiter := middleware.NewRateLimiter(middleware.RateLimitConfig{RequestsPerMinute: 5, Burst: 3})
		defer loginLimiter.Stop()

		if err := setupAdminRoutes(router, cfg, eventService, loginLimiter); err != nil {
			log.Fatal().Err(err).Msg("failed to initialize admin API")
		}
		log.Info().Str("username", cfg.AdminUsername).Msg("admin API enabled")
	} else {
		log.Info().Msg("admin API disabled (ADMIN_PASSWORD not set)")
	}

	// Create HTTP server with timeouts
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	go func() {
		log.Info().Int("port", cfg.Port).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	// the scheduler stops before the server and the store
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}

	log.Info().Msg("server shut down successfully")
}

// openStore builds the event repository and run lock for the configured driver
func openStore(cfg *config.Config) (repositories.EventRepository, services.RunLock, func(), error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		log.Warn().Msg("using in-memory event store - events are lost on restart")
		return memory.NewEventRepository(), &services.LocalRunLock{}, func() {}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, err
	}
	log.Info().Msg("database connected")

	// Initialize encryption (optional - empty key disables)
	cipher, err := database.NewPayloadCipher(cfg.EncryptionKey)
	if err != nil {
		db.Close()
		return nil, nil, nil, err
	}
	if cipher != nil {
		log.Info().Msg("payload encryption enabled (AES-256-GCM)")
	} else {
		log.Info().Msg("payload encryption disabled (ENCRYPTION_KEY not set)")
	}

	var runLock services.RunLock = &services.LocalRunLock{}
	if cfg.RunLock == config.RunLockAdvisory {
		runLock = postgres.NewAdvisoryRunLock(db.GetPool(), postgres.ProcessorLockKey)
	}

	return postgres.NewEventRepository(db.GetPool(), cipher), runLock, db.Close, nil
}

func setupAdminRoutes(router *gin.Engine, cfg *config.Config, eventService *services.EventService, loginLimiter *middleware.RateLimiter) error {
	adminService, err := services.NewAdminService(cfg.AdminUsername, cfg.AdminPassword)
	if err != nil {
		return err
	}
	tokens, err := middleware.NewTokenManager(cfg.JWTSecret, middleware.DefaultTokenTTL)
	if err != nil {
		return err
	}

	secureCookie := strings.HasPrefix(cfg.ServerURL, "https://")
	adminHandler := handlers.NewAdminHandler(adminService, eventService, tokens, secureCookie)

	router.POST("/admin/login", loginLimiter.ByIP(), adminHandler.HandleAdminLogin)

	admin := router.Group("/admin", middleware.AdminAuthMiddleware(tokens))
	{
		admin.POST("/logout", adminHandler.HandleAdminLogout)
		admin.GET("/events", adminHandler.HandleListEvents)
		admin.GET("/events/:provider/:id", adminHandler.HandleGetEvent)
		admin.GET("/stats", adminHandler.HandleStats)
	}
	return nil
}
