package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vibelog/backend/internal/api"
	"github.com/vibelog/backend/internal/api/middleware"
	"github.com/vibelog/backend/internal/app"
	"github.com/vibelog/backend/internal/config"
	"github.com/vibelog/backend/internal/logger"
)

func main() {
	// Initialize logger first so config errors are structured too
	envCfg := logger.LoadFromEnv()
	envCfg.ServiceName = "vibelog-api"
	appLogger := logger.New(envCfg)
	logger.SetDefault(appLogger)
	defer logger.Sync()

	// Support CONFIG_PATH environment variable for production deployments
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		appLogger.WithError(err).Fatal("Invalid config")
	}
	if cfg.Auth.JWTSecret == "" {
		appLogger.Fatal("auth.jwt_secret is required")
	}

	ctx := context.Background()
	a, err := app.Build(ctx, cfg)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize services")
	}

	router := api.SetupRouter(a.Services, api.RouterConfig{
		Mode: cfg.Server.Mode,
		CORS: middleware.CORSConfig{
			AllowedOrigins:  cfg.Server.CORS.AllowedOrigins,
			AllowAllOrigins: cfg.Server.CORS.AllowAllOrigins,
		},
		Auth:         middleware.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Audience),
		Logger:       appLogger,
		HealthChecks: a.HealthChecks(),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in goroutine
	go func() {
		appLogger.WithFields(logger.Fields{
			"port":         cfg.Server.Port,
			"mode":         cfg.Server.Mode,
			"jobs_backend": cfg.Jobs.Backend,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("Server forced to shutdown")
	}
	if err := a.Close(); err != nil {
		appLogger.WithError(err).Warn("Failed to release resources")
	}

	appLogger.Info("Server exited")
}
