// Package di provides a dependency injection container managing service
// construction and shutdown order.
package di

import (
	"context"
	"database/sql"
	"sync"

	"lexiboost/internal/config"
	"lexiboost/internal/database"
	"lexiboost/internal/observability"
	"lexiboost/internal/services"
	contextutils "lexiboost/internal/utils"
)

// ServiceContainer manages all service dependencies and lifecycle
type ServiceContainer struct {
	cfg           *config.Config
	logger        *observability.Logger
	dbManager     *database.Manager
	db            *sql.DB
	services      map[string]interface{}
	mu            sync.RWMutex
	shutdownFuncs []func(context.Context) error
}

// NewServiceContainer creates a new dependency injection container
func NewServiceContainer(cfg *config.Config, logger *observability.Logger) *ServiceContainer {
	return &ServiceContainer{
		cfg:      cfg,
		logger:   logger,
		services: make(map[string]interface{}),
	}
}

// Initialize sets up the database connection and all services. Shutdown
// functions are registered as dependencies come up, so cleanup runs in
// reverse order.
func (sc *ServiceContainer) Initialize(ctx context.Context) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	sc.dbManager = database.NewManager(sc.logger)
	db, err := sc.dbManager.InitDBWithConfig(sc.cfg.Database)
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to initialize database")
	}
	sc.db = db
	sc.shutdownFuncs = append(sc.shutdownFuncs, func(_ context.Context) error {
		return db.Close()
	})

	sc.initializeServices(ctx)
	return nil
}

// GetService retrieves a service by name with type assertion
func (sc *ServiceContainer) GetService(name string) (interface{}, error) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	service, exists := sc.services[name]
	if !exists {
		return nil, contextutils.ErrorWithContextf("service %s not found", name)
	}
	return service, nil
}

// GetServiceAs performs type-safe service retrieval
func GetServiceAs[T any](sc *ServiceContainer, name string) (T, error) {
	var zero T
	service, err := sc.GetService(name)
	if err != nil {
		return zero, err
	}

	typed, ok := service.(T)
	if !ok {
		return zero, contextutils.ErrorWithContextf("service %s is not of expected type %T", name, zero)
	}
	return typed, nil
}

// GetUserService returns the user service
func (sc *ServiceContainer) GetUserService() (services.UserServiceInterface, error) {
	return GetServiceAs[services.UserServiceInterface](sc, "user")
}

// GetWordService returns the word service
func (sc *ServiceContainer) GetWordService() (services.WordServiceInterface, error) {
	return GetServiceAs[services.WordServiceInterface](sc, "word")
}

// GetSessionService returns the session service
func (sc *ServiceContainer) GetSessionService() (services.SessionServiceInterface, error) {
	return GetServiceAs[services.SessionServiceInterface](sc, "session")
}

// GetLearningService returns the learning service
func (sc *ServiceContainer) GetLearningService() (services.LearningServiceInterface, error) {
	return GetServiceAs[services.LearningServiceInterface](sc, "learning")
}

// GetExplanationService returns the explanation service
func (sc *ServiceContainer) GetExplanationService() (services.ExplanationServiceInterface, error) {
	return GetServiceAs[services.ExplanationServiceInterface](sc, "explanation")
}

// GetPreloaderService returns the preloader service
func (sc *ServiceContainer) GetPreloaderService() (services.PreloaderServiceInterface, error) {
	return GetServiceAs[services.PreloaderServiceInterface](sc, "preloader")
}

// GetDatabase returns the database instance
func (sc *ServiceContainer) GetDatabase() *sql.DB {
	return sc.db
}

// GetConfig returns the configuration
func (sc *ServiceContainer) GetConfig() *config.Config {
	return sc.cfg
}

// GetLogger returns the logger
func (sc *ServiceContainer) GetLogger() *observability.Logger {
	return sc.logger
}

// RunMigrations applies the schema and pending migrations.
func (sc *ServiceContainer) RunMigrations(_ context.Context) error {
	return sc.dbManager.RunMigrations(sc.db, sc.cfg.Database.URL)
}

// Shutdown gracefully shuts down all services
func (sc *ServiceContainer) Shutdown(ctx context.Context) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	var errs []error
	for i := len(sc.shutdownFuncs) - 1; i >= 0; i-- {
		if err := sc.shutdownFuncs[i](ctx); err != nil {
			sc.logger.Error(ctx, "Shutdown step failed", err)
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return contextutils.ErrorWithContextf("shutdown errors: %v", errs)
	}
	return nil
}

// initializeServices sets up all service dependencies
func (sc *ServiceContainer) initializeServices(_ context.Context) {
	userService := services.NewUserService(sc.db, sc.logger)
	sc.services["user"] = userService

	wordService := services.NewWordService(sc.db, sc.logger)
	sc.services["word"] = wordService

	sessionService := services.NewSessionService(sc.db, sc.logger)
	sc.services["session"] = sessionService

	learningService := services.NewLearningService(sc.db, sc.logger)
	sc.services["learning"] = learningService

	explanationService := services.NewExplanationService(&sc.cfg.Explainer, sc.logger)
	sc.services["explanation"] = explanationService

	// The preloader owns background workers, so it shuts down before the
	// database connection does.
	preloaderService := services.NewPreloaderService(
		&sc.cfg.Preloader,
		sc.cfg.Explainer.DefaultLevel,
		wordService,
		sessionService,
		explanationService,
		sc.logger,
	)
	sc.services["preloader"] = preloaderService
	sc.shutdownFuncs = append(sc.shutdownFuncs, func(ctx context.Context) error {
		preloaderService.StopAll(ctx)
		return nil
	})
}
