// Package middleware composes the HTTP middleware stack of the asset server.
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/conneroisu/assetpipe/internal/logging"
	"github.com/conneroisu/assetpipe/internal/monitoring"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// RequestID returns the request ID stored in ctx, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// MiddlewareChain applies middlewares in onion order: the first added is the
// outermost wrapper.
type MiddlewareChain struct {
	logger      logging.Logger
	metrics     *monitoring.Metrics
	middlewares []Middleware
}

// Middleware represents a single middleware function
type Middleware func(http.Handler) http.Handler

// MiddlewareDependencies contains all dependencies needed for middleware construction
type MiddlewareDependencies struct {
	Logger  logging.Logger
	Metrics *monitoring.Metrics
}

// NewMiddlewareChain builds the default stack: recovery, request ID and
// logging, then metrics when a collector is given.
func NewMiddlewareChain(deps MiddlewareDependencies) *MiddlewareChain {
	chain := &MiddlewareChain{
		logger:      logging.OrNop(deps.Logger).WithComponent("http"),
		metrics:     deps.Metrics,
		middlewares: make([]Middleware, 0, 4),
	}
	chain.buildDefaultStack()
	return chain
}

func (mc *MiddlewareChain) buildDefaultStack() {
	mc.AddMiddleware(mc.createRecoveryMiddleware())
	mc.AddMiddleware(mc.createLoggingMiddleware())
	if mc.metrics != nil {
		mc.AddMiddleware(mc.metrics.Middleware)
	}
}

// AddMiddleware adds a middleware inside the ones already added.
func (mc *MiddlewareChain) AddMiddleware(middleware Middleware) {
	mc.middlewares = append(mc.middlewares, middleware)
}

// Apply wraps handler with the whole chain.
//
// Panics if handler or any middleware is nil.
func (mc *MiddlewareChain) Apply(handler http.Handler) http.Handler {
	if handler == nil {
		panic("MiddlewareChain.Apply: handler cannot be nil")
	}

	wrappedHandler := handler
	for i := len(mc.middlewares) - 1; i >= 0; i-- {
		middleware := mc.middlewares[i]
		if middleware == nil {
			panic(fmt.Sprintf("MiddlewareChain.Apply: middleware at index %d is nil", i))
		}
		wrappedHandler = middleware(wrappedHandler)
	}

	return wrappedHandler
}

// GetMiddlewareCount returns the number of middlewares in the chain
func (mc *MiddlewareChain) GetMiddlewareCount() int {
	return len(mc.middlewares)
}

func (mc *MiddlewareChain) createLoggingMiddleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			id := r.Header.Get(RequestIDHeader)
			if _, err := uuid.Parse(id); err != nil {
				id = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, id)
			r = r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id))

			rec := monitoring.NewStatusRecorder(w)
			next.ServeHTTP(rec, r)

			mc.logger.Debug(r.Context(), "Request served",
				"request_id", id,
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.Status(),
				"bytes", rec.Size(),
				"duration", time.Since(start))
		})
	}
}

func (mc *MiddlewareChain) createRecoveryMiddleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					mc.logger.Error(r.Context(), fmt.Errorf("panic: %v", rec), "Handler panicked",
						"path", r.URL.Path)
					http.Error(w, "internal server error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
