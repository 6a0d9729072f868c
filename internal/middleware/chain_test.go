package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/assetpipe/internal/logging"
	"github.com/conneroisu/assetpipe/internal/monitoring"
)

func TestMiddlewareChain_Order(t *testing.T) {
	chain := NewMiddlewareChain(MiddlewareDependencies{Logger: logging.NewNopLogger()})
	require.Equal(t, 2, chain.GetMiddlewareCount())

	var order []string
	tag := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	chain.AddMiddleware(tag("outer"))
	chain.AddMiddleware(tag("inner"))

	handler := chain.Apply(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"outer", "inner", "handler"}, order)
}

func TestMiddlewareChain_RequestID(t *testing.T) {
	chain := NewMiddlewareChain(MiddlewareDependencies{})

	var seen string
	handler := chain.Apply(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
	}))

	t.Run("generated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		_, err := uuid.Parse(seen)
		require.NoError(t, err)
		assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
	})

	t.Run("propagated", func(t *testing.T) {
		id := uuid.NewString()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, id)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, id, seen)
		assert.Equal(t, id, rec.Header().Get(RequestIDHeader))
	})

	t.Run("garbage replaced", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "<script>")

		handler.ServeHTTP(httptest.NewRecorder(), req)

		assert.NotEqual(t, "<script>", seen)
	})
}

func TestMiddlewareChain_Recovery(t *testing.T) {
	chain := NewMiddlewareChain(MiddlewareDependencies{Metrics: monitoring.NewMetrics()})
	assert.Equal(t, 3, chain.GetMiddlewareCount())

	handler := chain.Apply(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/_content/scripts/a.js", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestMiddlewareChain_ApplyNilPanics(t *testing.T) {
	chain := NewMiddlewareChain(MiddlewareDependencies{})
	assert.Panics(t, func() { chain.Apply(nil) })
}
