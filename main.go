package main

import (
	"context"
	"errors"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/tradejournal/backend/src/config"
	"github.com/username/tradejournal/backend/src/database"
	"github.com/username/tradejournal/backend/src/handlers"
	"github.com/username/tradejournal/backend/src/logger"
	"github.com/username/tradejournal/backend/src/processors"
	"github.com/username/tradejournal/backend/src/scheduler"
	"github.com/username/tradejournal/backend/src/security"
	"github.com/username/tradejournal/backend/src/services"
	"golang.org/x/time/rate"
)

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)

	logger.L.Info("Trade Journal backend server starting...")

	if config.Cfg.JWTSecret == "" || len(config.Cfg.JWTSecret) < 32 {
		logger.L.Error("JWT_SECRET configuration invalid.")
		os.Exit(1)
	}

	decimal.MarshalJSONWithoutQuotes = true

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	database.InitDB(config.Cfg.DatabasePath)
	database.RunMigrations()

	reportCache := services.NewReportCache(config.Cfg.QuoteCacheExpiration)

	handlers.InitializeGoogleOAuthConfig()

	authService := security.NewAuthService(config.Cfg.JWTSecret, config.Cfg.AccessTokenExpiry)
	emailService := services.NewEmailService()
	mfaService := services.NewMFAService()
	quoteService := services.NewQuoteService(database.DB, reportCache)

	journalService := services.NewJournalService(
		database.DB,
		processors.NewMetricsProcessor(),
		processors.NewFeeProcessor(),
		quoteService,
		reportCache,
	)
	importService := services.NewImportService(
		database.DB,
		processors.NewTransactionProcessor(),
		processors.NewPositionReconciler(),
		reportCache,
	)
	analysisService := services.NewAnalysisService(quoteService, processors.NewAnalysisProcessor())

	router := &handlers.Router{
		User:           handlers.NewUserHandler(authService, emailService, journalService, mfaService),
		CSRF:           handlers.NewCSRFHandler(config.Cfg.CSRFAuthKey),
		Import:         handlers.NewImportHandler(importService),
		Journal:        handlers.NewJournalHandler(journalService),
		Dashboard:      handlers.NewDashboardHandler(journalService),
		Analysis:       handlers.NewAnalysisHandler(analysisService),
		AllowedOrigins: config.Cfg.AllowedOrigins,
		Limiter:        rate.NewLimiter(rate.Every(100*time.Millisecond), 30),
	}

	jobs, err := scheduler.New()
	if err != nil {
		stdlog.Fatalf("Failed to create scheduler: %v", err)
	}
	if err := scheduler.RegisterMaintenanceJobs(jobs, database.DB, scheduler.JobsConfig{
		SessionCleanupInterval: config.Cfg.SessionCleanupInterval,
		PriceCleanupInterval:   config.Cfg.PriceCleanupInterval,
		PriceRetention:         config.Cfg.PriceRetention,
	}); err != nil {
		stdlog.Fatalf("Failed to register maintenance jobs: %v", err)
	}
	jobs.Start()

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.L.Info("Server starting", "address", serverAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			stdlog.Fatalf("Failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.L.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.L.Error("Server shutdown failed", "error", err)
	}
	if err := jobs.Stop(); err != nil {
		logger.L.Error("Scheduler shutdown failed", "error", err)
	}
	if err := database.DB.Close(); err != nil {
		logger.L.Error("Closing database failed", "error", err)
	}
}
