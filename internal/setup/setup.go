package setup

import (
	"context"
	"fmt"
	"log"

	"github.com/robalyx/roprofile/internal/cache"
	"github.com/robalyx/roprofile/internal/profile"
	"github.com/robalyx/roprofile/internal/queue"
	"github.com/robalyx/roprofile/internal/redis"
	"github.com/robalyx/roprofile/internal/roblox/fetcher"
	"github.com/robalyx/roprofile/internal/roblox/upstream"
	"github.com/robalyx/roprofile/internal/setup/config"
	"github.com/robalyx/roprofile/internal/setup/telemetry"
	"github.com/robalyx/roprofile/internal/types"
	"go.uber.org/zap"
)

// App bundles all core dependencies and services needed by the application.
// Each field represents a major subsystem that needs initialization and cleanup.
type App struct {
	Config       *config.Config               // Application configuration
	ConfigDir    string                       // Directory the config file was loaded from
	Logger       *zap.Logger                  // Main application logger
	LogManager   *telemetry.Manager           // Log management system
	RedisManager *redis.Manager               // Redis connection manager, nil for the memory cache
	Upstream     *upstream.Client             // Roblox HTTP client
	Roblox       *fetcher.Roblox              // Roblox endpoint fetchers
	Cache        cache.Cache                  // Profile cache
	Queue        *queue.Queue[*types.Profile] // Batch request queue
	Service      *profile.Service             // Profile lookup service
	pprofServer  *pprofServer                 // Debug HTTP server for pprof
}

// InitializeApp bootstraps all application dependencies in the correct order,
// ensuring each component has its required dependencies available.
func InitializeApp(ctx context.Context, configPath, logDir, component, version string) (*App, error) {
	// Load app configuration
	cfg, configDir, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	// Logging system is initialized next to capture setup issues
	logManager := telemetry.NewManager(component, logDir, &cfg.Debug)
	logManager.EnableTracing(&cfg.Telemetry, version)

	logger, err := logManager.GetLogger()
	if err != nil {
		logManager.Stop(ctx)
		return nil, err
	}

	logger.Info("Loaded configuration", zap.String("dir", configDir), zap.String("version", version))

	// Roblox API client behind the circuit breaker
	client := upstream.New(upstream.Options{
		UserAgent:       cfg.Upstream.UserAgent,
		RequiredTimeout: config.Milliseconds(cfg.Upstream.RequiredTimeout),
		OptionalTimeout: config.Milliseconds(cfg.Upstream.OptionalTimeout),
		Breaker: upstream.BreakerSettings{
			Enabled:     cfg.CircuitBreaker.Enabled,
			MaxRequests: cfg.CircuitBreaker.MaxRequests,
			Interval:    config.Milliseconds(cfg.CircuitBreaker.Interval),
			Timeout:     config.Milliseconds(cfg.CircuitBreaker.Timeout),
		},
		BaseURLs: upstream.BaseURLs{
			Users:      cfg.Upstream.BaseURLs.Users,
			Friends:    cfg.Upstream.BaseURLs.Friends,
			Groups:     cfg.Upstream.BaseURLs.Groups,
			Thumbnails: cfg.Upstream.BaseURLs.Thumbnails,
			Presence:   cfg.Upstream.BaseURLs.Presence,
		},
	}, logger)

	roblox := fetcher.New(client, cfg.Upstream.HistoryPages, logger)

	// Cache backend
	profileCache, redisManager, err := newCache(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize cache", zap.Error(err))
		if redisManager != nil {
			redisManager.Close()
		}
		_ = logger.Sync()
		logManager.Stop(ctx)

		return nil, err
	}

	// Queue worker runs until Cleanup
	profileQueue := queue.New[*types.Profile](queue.Options{
		BatchSize:  cfg.Queue.BatchSize,
		BatchDelay: config.Milliseconds(cfg.Queue.BatchDelay),
	}, logger)

	profileQueue.Start(context.WithoutCancel(ctx))

	service := profile.NewService(roblox, profileCache, profileQueue, profile.Options{
		CacheTTL:          config.Milliseconds(cfg.Cache.TTL),
		PartialTTL:        config.Milliseconds(cfg.Cache.PartialTTL),
		AvatarPlaceholder: cfg.Upstream.AvatarPlaceholder,
	}, logger)

	// Start pprof server if enabled
	var pprofSrv *pprofServer

	if cfg.Debug.EnablePprof {
		srv, err := startPprofServer(ctx, cfg.Debug.PprofPort, logger)
		if err != nil {
			logger.Error("Failed to start pprof server", zap.Error(err))
		} else {
			pprofSrv = srv

			logger.Warn("pprof debugging endpoint enabled - this should not be used in production!")
		}
	}

	// Bundle all initialized components
	return &App{
		Config:       cfg,
		ConfigDir:    configDir,
		Logger:       logger,
		LogManager:   logManager,
		RedisManager: redisManager,
		Upstream:     client,
		Roblox:       roblox,
		Cache:        profileCache,
		Queue:        profileQueue,
		Service:      service,
		pprofServer:  pprofSrv,
	}, nil
}

// newCache creates the configured cache backend.
func newCache(cfg *config.Config, logger *zap.Logger) (cache.Cache, *redis.Manager, error) {
	switch cfg.Cache.Backend {
	case cache.BackendRedis:
		manager := redis.NewManager(&cfg.Redis, logger)

		client, err := manager.GetClient()
		if err != nil {
			return nil, manager, err
		}

		return cache.NewRedis(client, logger), manager, nil
	case cache.BackendMemory:
		return cache.NewMemory(logger, cache.WithSweepInterval(config.Milliseconds(cfg.Cache.SweepInterval))), nil, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown cache backend %q", config.ErrInvalidConfig, cfg.Cache.Backend)
	}
}

// Cleanup ensures graceful shutdown of all components in reverse initialization order.
// Logs but does not fail on cleanup errors to ensure all components get cleanup attempts.
func (s *App) Cleanup(ctx context.Context) {
	// Shutdown pprof server if running
	if s.pprofServer != nil {
		if err := s.pprofServer.srv.Shutdown(ctx); err != nil {
			s.Logger.Error("Failed to shutdown pprof server", zap.Error(err))
		}

		s.pprofServer.listener.Close()
	}

	// Fail pending lookups and stop the worker
	s.Queue.Stop()

	s.Cache.Close()

	// Close Redis connections after the cache no longer needs them
	if s.RedisManager != nil {
		s.RedisManager.Close()
	}

	// Sync buffered logs before shutdown
	if err := s.Logger.Sync(); err != nil {
		log.Printf("Failed to sync logger: %v", err)
	}

	// Flush pending spans
	s.LogManager.Stop(ctx)
}
