package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/andresuchdata/s3csv2sfdc/internal/api"
	"github.com/andresuchdata/s3csv2sfdc/internal/app"
	"github.com/andresuchdata/s3csv2sfdc/internal/config"
	"github.com/andresuchdata/s3csv2sfdc/pkg/logger"
	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	app.ConfigureLogging(cfg)
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	if cfg.Server.WebhookToken == "" {
		if cfg.Server.Mode != "debug" {
			logger.Log.Fatal().Msg("SERVER_WEBHOOK_TOKEN must be set outside debug mode")
		}
		logger.Log.Warn().Msg("SERVER_WEBHOOK_TOKEN is not set, the webhook accepts unauthenticated requests")
	}

	a, err := app.New(context.Background(), cfg)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to initialize sync")
	}
	defer a.Close()

	services := &api.Services{
		Processor:    a.Worker,
		WebhookToken: cfg.Server.WebhookToken,
		SyncTimeout:  time.Duration(cfg.Server.SyncTimeout) * time.Second,
	}
	if a.Ledger != nil {
		services.Ledger = a.Ledger
	}

	router := api.NewRouter(services, cfg.Server.AllowedOrigins)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Log.Info().Str("port", cfg.Server.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info().Msg("Shutting down server...")

	// A running sync gets up to a minute to finish
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error().Err(err).Msg("Server forced to shutdown")
	}

	logger.Log.Info().Msg("Server exiting")
}
