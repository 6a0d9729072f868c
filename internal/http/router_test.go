package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/assetpipe/internal/config"
)

type stubHandlers struct{}

func named(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(name))
	}
}

func (stubHandlers) HandleAsset(w http.ResponseWriter, r *http.Request)  { named("asset")(w, r) }
func (stubHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) { named("health")(w, r) }
func (stubHandlers) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	named("metrics")(w, r)
}
func (stubHandlers) HandleDiagnostics(w http.ResponseWriter, r *http.Request) {
	named("diagnostics")(w, r)
}
func (stubHandlers) HandleLiveReload(w http.ResponseWriter, r *http.Request) {
	named("livereload")(w, r)
}

type headerMiddleware struct{}

func (headerMiddleware) Apply(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Wrapped", "yes")
		next.ServeHTTP(w, r)
	})
}

func testConfig(development bool) *config.Config {
	return &config.Config{
		Server:      config.ServerConfig{Host: "localhost", Port: 0, MetricsPath: "/metrics"},
		Development: config.DevelopmentConfig{Enabled: development},
	}
}

func TestRouter_Routes(t *testing.T) {
	tests := []struct {
		name        string
		development bool
		path        string
		want        string
		status      int
	}{
		{name: "asset", path: "/_content/scripts/a.js", want: "asset", status: http.StatusOK},
		{name: "health", path: "/health", want: "health", status: http.StatusOK},
		{name: "metrics", path: "/metrics", want: "metrics", status: http.StatusOK},
		{name: "diagnostics", path: "/_assets/diagnostics", want: "diagnostics", status: http.StatusOK},
		{name: "livereload in development", development: true, path: "/_assets/livereload", want: "livereload", status: http.StatusOK},
		{name: "livereload outside development", path: "/_assets/livereload", status: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := NewRouter(testConfig(tt.development), stubHandlers{}, headerMiddleware{})

			rec := httptest.NewRecorder()
			router.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "yes", rec.Header().Get("X-Wrapped"))
			if tt.want != "" {
				assert.Equal(t, tt.want, rec.Body.String())
			}
		})
	}
}

func TestNewRouter_Panics(t *testing.T) {
	assert.Panics(t, func() { NewRouter(nil, stubHandlers{}, headerMiddleware{}) })
	assert.Panics(t, func() { NewRouter(testConfig(false), nil, headerMiddleware{}) })
	assert.Panics(t, func() { NewRouter(testConfig(false), stubHandlers{}, nil) })

	bad := testConfig(false)
	bad.Server.Port = 70000
	assert.Panics(t, func() { NewRouter(bad, stubHandlers{}, headerMiddleware{}) })
}

func TestRouter_ShutdownIsIdempotent(t *testing.T) {
	router := NewRouter(testConfig(false), stubHandlers{}, headerMiddleware{})

	require.NoError(t, router.Shutdown(context.Background()))
	require.NoError(t, router.Shutdown(context.Background()))
	assert.True(t, router.IsShutdown())
	assert.Equal(t, "localhost:0", router.GetAddr())

	err := router.Start(context.Background())
	assert.Error(t, err)
}

func TestRouter_CustomRoute(t *testing.T) {
	router := NewRouter(testConfig(false), stubHandlers{}, headerMiddleware{})
	router.RegisterCustomRoute("/custom", named("custom"))

	rec := httptest.NewRecorder()
	router.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/custom", nil))

	assert.Equal(t, "custom", rec.Body.String())
}
