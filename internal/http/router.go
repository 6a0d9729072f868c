package http

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/conneroisu/assetpipe/internal/assets"
	"github.com/conneroisu/assetpipe/internal/config"
)

// Router handles HTTP server lifecycle and route registration.
//
// Invariants:
// - config, mux and handlers are never nil after construction
// - isShutdown is write-protected by serverMutex
type Router struct {
	config     *config.Config
	httpServer *http.Server
	mux        *http.ServeMux
	handler    http.Handler

	serverMutex sync.RWMutex
	isShutdown  bool

	handlers Handlers
}

// Handlers provides every HTTP handler the router mounts.
type Handlers interface {
	HandleAsset(w http.ResponseWriter, r *http.Request)
	HandleHealth(w http.ResponseWriter, r *http.Request)
	HandleMetrics(w http.ResponseWriter, r *http.Request)
	HandleDiagnostics(w http.ResponseWriter, r *http.Request)
	HandleLiveReload(w http.ResponseWriter, r *http.Request)
}

// MiddlewareProvider wraps the route multiplexer.
type MiddlewareProvider interface {
	Apply(handler http.Handler) http.Handler
}

// Route paths.
const (
	ContentRoute     = "/" + assets.ContentPrefix + "/"
	HealthRoute      = "/health"
	DiagnosticsRoute = "/_assets/diagnostics"
	LiveReloadRoute  = "/_assets/livereload"
)

// NewRouter creates the router and its server.
//
// Panics if any dependency is nil or the port is out of range.
func NewRouter(
	config *config.Config,
	handlers Handlers,
	middlewareProvider MiddlewareProvider,
) *Router {
	if config == nil {
		panic("Router: config cannot be nil")
	}
	if handlers == nil {
		panic("Router: handlers cannot be nil")
	}
	if middlewareProvider == nil {
		panic("Router: middlewareProvider cannot be nil")
	}
	if config.Server.Port < 0 || config.Server.Port > 65535 {
		panic(fmt.Sprintf("Router: invalid port %d, must be 0-65535", config.Server.Port))
	}

	router := &Router{
		config:   config,
		mux:      http.NewServeMux(),
		handlers: handlers,
	}

	router.registerRoutes()

	router.handler = middlewareProvider.Apply(router.mux)

	router.serverMutex.Lock()
	router.httpServer = &http.Server{
		Addr:              config.Server.Addr(),
		Handler:           router.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	router.serverMutex.Unlock()

	return router
}

func (r *Router) registerRoutes() {
	r.mux.HandleFunc(ContentRoute, r.handlers.HandleAsset)
	r.mux.HandleFunc(HealthRoute, r.handlers.HandleHealth)
	r.mux.HandleFunc(r.metricsPath(), r.handlers.HandleMetrics)
	r.mux.HandleFunc(DiagnosticsRoute, r.handlers.HandleDiagnostics)

	if r.config.Development.Enabled {
		r.mux.HandleFunc(LiveReloadRoute, r.handlers.HandleLiveReload)
	}
}

func (r *Router) metricsPath() string {
	if r.config.Server.MetricsPath == "" {
		return config.DefaultMetricsPath
	}
	return r.config.Server.MetricsPath
}

// Handler returns the routes with the middleware chain applied.
func (r *Router) Handler() http.Handler {
	return r.handler
}

// Start serves until ctx is cancelled or the server fails. Cancellation
// triggers a graceful shutdown.
func (r *Router) Start(ctx context.Context) error {
	if ctx == nil {
		return fmt.Errorf("Router.Start: context cannot be nil")
	}

	r.serverMutex.RLock()
	server := r.httpServer
	isShutdown := r.isShutdown
	r.serverMutex.RUnlock()

	if server == nil {
		return fmt.Errorf("Router.Start: server not initialized (call NewRouter first)")
	}
	if isShutdown {
		return fmt.Errorf("Router.Start: router has been shut down")
	}

	errChan := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("Router: server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return r.Shutdown(shutdownCtx)

	case err := <-errChan:
		return err
	}
}

// Shutdown gracefully shuts down the server. It is idempotent.
func (r *Router) Shutdown(ctx context.Context) error {
	if ctx == nil {
		return fmt.Errorf("Router.Shutdown: context cannot be nil")
	}

	r.serverMutex.Lock()
	defer r.serverMutex.Unlock()

	if r.isShutdown {
		return nil
	}
	r.isShutdown = true

	if r.httpServer != nil {
		if err := r.httpServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("Router.Shutdown: server shutdown failed: %w", err)
		}
	}

	return nil
}

// GetAddr returns the server address
func (r *Router) GetAddr() string {
	r.serverMutex.RLock()
	defer r.serverMutex.RUnlock()

	if r.httpServer != nil {
		return r.httpServer.Addr
	}
	return r.config.Server.Addr()
}

// IsShutdown returns whether the router has been shut down
func (r *Router) IsShutdown() bool {
	r.serverMutex.RLock()
	defer r.serverMutex.RUnlock()
	return r.isShutdown
}

// RegisterCustomRoute adds a route outside the fixed set.
func (r *Router) RegisterCustomRoute(pattern string, handler http.HandlerFunc) {
	r.mux.HandleFunc(pattern, handler)
}
