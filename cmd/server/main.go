// Package main provides the entry point for the lexiboost backend server.
// It wires configuration, observability, the database and the API routes.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"lexiboost/internal/config"
	"lexiboost/internal/di"
	"lexiboost/internal/handlers"
	"lexiboost/internal/observability"
	contextutils "lexiboost/internal/utils"
)

// Application encapsulates the running server and its container.
type Application struct {
	container *di.ServiceContainer
	router    *gin.Engine
}

// NewApplication builds the router from the container's services.
func NewApplication(container *di.ServiceContainer) (*Application, error) {
	userService, err := container.GetUserService()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get user service")
	}

	wordService, err := container.GetWordService()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get word service")
	}

	sessionService, err := container.GetSessionService()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get session service")
	}

	learningService, err := container.GetLearningService()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get learning service")
	}

	explanationService, err := container.GetExplanationService()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get explanation service")
	}

	preloaderService, err := container.GetPreloaderService()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get preloader service")
	}

	router := handlers.NewRouter(
		container.GetConfig(),
		userService,
		wordService,
		sessionService,
		learningService,
		explanationService,
		preloaderService,
		container.GetLogger(),
	)

	return &Application{
		container: container,
		router:    router,
	}, nil
}

// Run starts the HTTP server and blocks until the context is cancelled or
// the server fails.
func (a *Application) Run(ctx context.Context, port string) error {
	serverErr := make(chan error, 1)
	go func() {
		if err := a.router.Run(":" + port); err != nil {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-serverErr:
		return contextutils.WrapError(err, "server failed")
	}
}

// Shutdown drains the preload workers and closes the database.
func (a *Application) Shutdown(ctx context.Context) error {
	return a.container.Shutdown(ctx)
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	tp, mp, logger, err := observability.SetupObservability(&cfg.OpenTelemetry, "lexiboost")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize observability: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()

		if tp != nil {
			if err := tp.Shutdown(shutdownCtx); err != nil {
				logger.Warn(ctx, "Error shutting down tracer provider", map[string]interface{}{"error": err.Error()})
			}
		}
		if mp != nil {
			if err := mp.Shutdown(shutdownCtx); err != nil {
				logger.Warn(ctx, "Error shutting down meter provider", map[string]interface{}{"error": err.Error()})
			}
		}
	}()

	logger.Info(ctx, "Starting lexiboost service", map[string]interface{}{
		"port":     cfg.Server.Port,
		"logLevel": cfg.Server.LogLevel,
	})

	container := di.NewServiceContainer(cfg, logger)
	if err := container.Initialize(ctx); err != nil {
		logger.Error(ctx, "Failed to initialize services", err, nil)
		os.Exit(1)
	}

	app, err := NewApplication(container)
	if err != nil {
		logger.Error(ctx, "Failed to create application", err, nil)
		os.Exit(1)
	}

	appErr := make(chan error, 1)
	go func() {
		if err := app.Run(ctx, cfg.Server.Port); err != nil {
			appErr <- err
		}
	}()

	failed := false
	select {
	case <-shutdownCh:
		logger.Info(ctx, "Received shutdown signal, shutting down gracefully", nil)
	case err := <-appErr:
		logger.Error(ctx, "Application failed", err, nil)
		failed = true
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.GracefulStopTimeout)
	defer shutdownCancel()

	if err := app.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "Error during application shutdown", err, nil)
		failed = true
	}

	if failed {
		os.Exit(1)
	}

	logger.Info(ctx, "Shutdown completed successfully", nil)
}
