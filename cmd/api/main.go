package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"digi-merch/internal/catalog"
	"digi-merch/internal/config"
	"digi-merch/internal/database"
	"digi-merch/internal/handler"
	"digi-merch/internal/mail"
	"digi-merch/internal/payment"
	"digi-merch/internal/repository"
	"digi-merch/internal/router"
	"digi-merch/internal/sequence"
	"digi-merch/internal/service"
	"digi-merch/internal/token"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize logger
	logger := config.NewLogger(cfg.Logger)
	logger.Info().Msg("starting digi-merch API server")

	// Create context for application lifecycle
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool
	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer pool.Close()

	// Initialize the sequence counter. The counter is informational, so a
	// missing Redis degrades to sequence 0 instead of blocking startup.
	var seq sequence.Sequence
	seq, err = sequence.NewRedisSequence(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, order sequence numbers disabled")
		seq = nil
	}

	// Initialize catalog loader with S3 and local fallback
	var catalogLoader catalog.Loader
	if cfg.Catalog.S3Enable {
		s3Loader, err := catalog.NewS3Loader(ctx, cfg.Catalog.S3Bucket, cfg.Catalog.S3Region, logger)
		if err != nil {
			logger.Warn().
				Err(err).
				Msg("failed to initialise S3 loader, falling back to local file system only")
			catalogLoader = catalog.NewFileLoader(logger)
		} else {
			catalogLoader = s3Loader
		}
	} else {
		catalogLoader = catalog.NewFileLoader(logger)
		logger.Info().Msg("using local file system for the catalog file (S3 disabled)")
	}

	cat, err := catalogLoader.Load(ctx, cfg.Catalog.Path)
	if err != nil {
		// Approvals still work through per-product override links.
		logger.Warn().Err(err).Msg("catalog unavailable, approvals need explicit delivery links")
		cat = catalog.New(nil)
	}

	// Initialize outbound collaborators
	sender := mail.NewSMTPSender(mail.Config{
		Host:     cfg.Mail.Host,
		Port:     cfg.Mail.Port,
		Username: cfg.Mail.Username,
		Password: cfg.Mail.Password,
		FromName: cfg.Mail.FromName,
		FromAddr: cfg.Mail.FromAddr,
	}, logger)
	gateway := payment.NewClient(payment.Config{
		BaseURL:       cfg.Payment.BaseURL,
		SecretKey:     cfg.Payment.SecretKey,
		WebhookSecret: cfg.Payment.WebhookSecret,
		SuccessURL:    cfg.Payment.SuccessURL,
		CancelURL:     cfg.Payment.CancelURL,
	}, logger)
	tokens := token.NewService(cfg.Token.Secret)

	// Initialize repositories
	orderRepo := repository.NewOrderRepository(pool, logger)
	entitlementRepo := repository.NewEntitlementRepository(pool, logger)

	// Initialize services
	orderService := service.NewOrderService(orderRepo, seq, sender, gateway, cfg.Admin.AdminEmail, logger)
	entitlementService := service.NewEntitlementService(orderRepo, entitlementRepo, logger)
	reviewService := service.NewReviewService(orderRepo, cat, entitlementService, tokens, sender, cfg.Server.PublicBaseURL, logger)
	redemptionService := service.NewRedemptionService(orderRepo, entitlementRepo, entitlementService, tokens, logger)

	// Initialize HTTP handlers
	orderHandler := handler.NewOrderHandler(orderService, logger)
	adminHandler := handler.NewAdminHandler(orderService, reviewService, logger)
	downloadHandler := handler.NewDownloadHandler(redemptionService, logger)
	webhookHandler := handler.NewWebhookHandler(reviewService, cfg.Payment.WebhookSecret, logger)

	// Initialize router
	mux := router.New(
		orderHandler,
		adminHandler,
		downloadHandler,
		webhookHandler,
		cfg.Admin.JWTSecret,
		cfg.Admin.AllowList,
		logger,
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Channel to listen for errors from the server
	serverErrors := make(chan error, 1)

	// Start HTTP server in a goroutine
	go func() {
		logger.Info().
			Str("address", cfg.Server.Address()).
			Msg("HTTP server started")
		serverErrors <- server.ListenAndServe()
	}()

	// Channel to listen for interrupt signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a signal or an error
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Info().
			Str("signal", sig.String()).
			Msg("shutdown signal received, starting graceful shutdown")

		// Create a context with timeout for shutdown
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		// Attempt graceful shutdown
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown server gracefully")
			// Force close
			if closeErr := server.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close server")
			}
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		logger.Info().Msg("server shutdown completed")
	}

	return nil
}
