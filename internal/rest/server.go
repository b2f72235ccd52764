package rest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/go-chi/cors"
	"github.com/klauspost/compress/gzhttp"
	"github.com/robalyx/roprofile/internal/rest/handler"
	"github.com/robalyx/roprofile/internal/rest/middleware/auth"
	"github.com/robalyx/roprofile/internal/rest/middleware/header"
	"github.com/robalyx/roprofile/internal/rest/middleware/ip"
	"github.com/robalyx/roprofile/internal/rest/middleware/ratelimit"
	"github.com/robalyx/roprofile/internal/rest/respond"
	"github.com/robalyx/roprofile/internal/setup/config"
	"github.com/uptrace/bunrouter"
	"go.uber.org/zap"
)

// Service is everything the REST API needs from the profile service.
type Service interface {
	handler.ProfileGetter
	handler.CacheAdmin
}

// Server implements the REST API service.
type Server struct {
	handler     http.Handler
	rateLimiter *ratelimit.Middleware
	config      *config.Server
	logger      *zap.Logger
}

// NewServer creates a new REST API server.
func NewServer(service Service, cfg *config.Server, version string, logger *zap.Logger) *Server {
	logger = logger.Named("rest")

	profileHandler := handler.NewProfileHandler(service, logger)
	cacheHandler := handler.NewCacheHandler(service, logger)
	healthHandler := handler.NewHealthHandler(version)

	// Create middleware instances
	middlewares := []bunrouter.MiddlewareFunc{
		header.New(logger).AsRESTMiddleware,
		ip.New(logger, &cfg.IP).AsRESTMiddleware,
	}

	var rateLimiter *ratelimit.Middleware
	if cfg.RateLimit.Enabled {
		rateLimiter = ratelimit.New(&cfg.RateLimit, logger)
		middlewares = append(middlewares, rateLimiter.AsRESTMiddleware)
	}

	// Create base router
	router := bunrouter.New(
		bunrouter.WithNotFoundHandler(notFound),
		bunrouter.WithMethodNotAllowedHandler(methodNotAllowed),
	)

	router.GET("/health", healthHandler.GetHealth)

	// Create API routes group
	router.Use(middlewares...).WithGroup("/v1", func(g *bunrouter.Group) {
		g.GET("/users/:username", profileHandler.GetProfile)

		// Cache administration is only exposed with a token configured
		if cfg.AdminToken == "" {
			return
		}

		g.Use(auth.New(cfg.AdminToken, logger).AsRESTMiddleware).WithGroup("/cache", func(g *bunrouter.Group) {
			g.GET("/stats", cacheHandler.GetStats)
			g.GET("/keys", cacheHandler.GetKeys)
			g.DELETE("", cacheHandler.Clear)
			g.DELETE("/:username", cacheHandler.Invalidate)
		})
	})

	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders: []string{"Retry-After"},
		MaxAge:         300,
	})

	if cfg.AdminToken == "" {
		logger.Info("Cache administration endpoints disabled; no admin token configured")
	}

	// Add CORS and gzip compression
	return &Server{
		handler:     gzhttp.GzipHandler(corsHandler(router)),
		rateLimiter: rateLimiter,
		config:      cfg,
		logger:      logger,
	}
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves HTTP on the configured address until ctx is cancelled, then
// shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.Host, fmt.Sprint(s.config.Port))

	var lc net.ListenConfig

	listener, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	return s.Serve(ctx, listener)
}

// Serve serves HTTP on listener until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:      s.handler,
		ReadTimeout:  config.Milliseconds(s.config.ReadTimeout),
		WriteTimeout: config.Milliseconds(s.config.WriteTimeout),
		BaseContext:  func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("REST server started", zap.String("addr", listener.Addr().String()))
		errCh <- srv.Serve(listener)
	}()

	select {
	case err := <-errCh:
		s.close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down REST server...")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), config.Milliseconds(s.config.ShutdownTimeout))
	defer cancel()

	err := srv.Shutdown(shutdownCtx)
	s.close()
	if err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	s.logger.Info("Server gracefully stopped")
	return nil
}

func (s *Server) close() {
	if s.rateLimiter != nil {
		s.rateLimiter.Close()
	}
}

func notFound(w http.ResponseWriter, _ bunrouter.Request) error {
	return respond.Reject(w, http.StatusNotFound, respond.KindNotFound, "route not found")
}

func methodNotAllowed(w http.ResponseWriter, _ bunrouter.Request) error {
	return respond.Reject(w, http.StatusMethodNotAllowed, respond.KindNotFound, "method not allowed")
}
