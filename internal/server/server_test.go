package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/assetpipe/internal/assets"
	"github.com/conneroisu/assetpipe/internal/config"
	"github.com/conneroisu/assetpipe/internal/services"
	"github.com/conneroisu/assetpipe/internal/watcher"
)

func writeAsset(t *testing.T, root, rel, body string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func testConfig(t *testing.T, development bool) *config.Config {
	t.Helper()
	root := t.TempDir()
	writeAsset(t, root, "content/scripts/a.js", "var a = 1;")
	writeAsset(t, root, "content/scripts/b.js", "var b = 2;")
	writeAsset(t, root, "content/styles/site.css", strings.Repeat("body { color: red; }\n", 64))
	writeAsset(t, root, "content/images/logo.png", "\x89PNG fake")

	return &config.Config{
		Server: config.ServerConfig{
			Host:        "localhost",
			Port:        0,
			Gzip:        true,
			MetricsPath: config.DefaultMetricsPath,
		},
		Assets: config.AssetsConfig{
			Root:         root,
			RootedFolder: config.DefaultRootedFolder,
			ManifestName: config.DefaultManifest,
			MaxAge:       time.Hour,
			CacheSizeMB:  config.DefaultCacheSizeMB,
			Sets: []config.SetConfig{
				{Name: "main", Members: []string{"a.js", "b.js", "site.css"}},
				{Name: "<broken>", Members: []string{"gone.js"}},
			},
			Policies: []string{assets.PolicyCombineAllScripts},
		},
		Development: config.DevelopmentConfig{
			Enabled:  development,
			Debounce: 10 * time.Millisecond,
		},
	}
}

func newTestServer(t *testing.T, development bool) *AssetServer {
	t.Helper()
	s, err := New(context.Background(), testConfig(t, development), nil, Options{Version: "test"})
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})
	return s
}

func get(t *testing.T, h http.Handler, target string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServer_ServesAssets(t *testing.T) {
	s := newTestServer(t, false)
	h := s.Handler()

	rec := get(t, h, "/_content/scripts/a.js", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "var a = 1;", rec.Body.String())
	assert.Equal(t, "application/javascript", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("ETag"))
	assert.Equal(t, "public, max-age=3600", rec.Header().Get("Cache-Control"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = get(t, h, "/_content/scripts/missing.js", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Cannot find asset scripts/missing.js", rec.Body.String())
}

func TestServer_ConditionalRequests(t *testing.T) {
	s := newTestServer(t, false)
	h := s.Handler()

	first := get(t, h, "/_content/scripts/a.js", nil)
	etag := first.Header().Get("ETag")
	require.NotEmpty(t, etag)

	tests := []struct {
		name        string
		ifNoneMatch string
		wantStatus  int
	}{
		{name: "matching etag", ifNoneMatch: etag, wantStatus: http.StatusNotModified},
		{name: "weak matching etag", ifNoneMatch: "W/" + etag, wantStatus: http.StatusNotModified},
		{name: "etag in list", ifNoneMatch: `"other", ` + etag, wantStatus: http.StatusNotModified},
		{name: "wildcard", ifNoneMatch: "*", wantStatus: http.StatusNotModified},
		{name: "stale etag", ifNoneMatch: `"stale"`, wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, h, "/_content/scripts/a.js", map[string]string{"If-None-Match": tt.ifNoneMatch})
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, etag, rec.Header().Get("ETag"))
			assert.Equal(t, "public, max-age=3600", rec.Header().Get("Cache-Control"))
			if tt.wantStatus == http.StatusNotModified {
				assert.Empty(t, rec.Body.String())
				assert.Empty(t, rec.Header().Get("Content-Type"))
			} else {
				assert.Equal(t, "var a = 1;", rec.Body.String())
			}
		})
	}

	rec := get(t, h, "/_content/scripts/missing.js", map[string]string{"If-None-Match": "*"})
	assert.Equal(t, http.StatusNotFound, rec.Code, "a missing asset has no etag to match")
}

func TestServer_Gzip(t *testing.T) {
	s := newTestServer(t, false)
	h := s.Handler()

	rec := get(t, h, "/_content/styles/site.css", map[string]string{"Accept-Encoding": "gzip"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
	gzipETag := rec.Header().Get("ETag")
	assert.True(t, strings.HasSuffix(gzipETag, `-gzip"`), gzipETag)

	identity := get(t, h, "/_content/styles/site.css", nil)
	assert.Empty(t, identity.Header().Get("Content-Encoding"))
	assert.NotEqual(t, gzipETag, identity.Header().Get("ETag"), "encoded and identity responses carry distinct etags")

	for _, encoding := range []string{"gzip", ""} {
		revalidated := get(t, h, "/_content/styles/site.css", map[string]string{
			"Accept-Encoding": encoding,
			"If-None-Match":   gzipETag,
		})
		assert.Equal(t, http.StatusNotModified, revalidated.Code, encoding)
		assert.Empty(t, revalidated.Body.String())
	}

	zr, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("body { color: red; }\n", 64), string(body))

	small := get(t, h, "/_content/scripts/a.js", map[string]string{"Accept-Encoding": "gzip"})
	assert.Empty(t, small.Header().Get("Content-Encoding"), "small bodies are sent as is")
	assert.Equal(t, "var a = 1;", small.Body.String())

	png := get(t, h, "/_content/images/logo.png", map[string]string{"Accept-Encoding": "gzip"})
	assert.Empty(t, png.Header().Get("Content-Encoding"))
	assert.Equal(t, "\x89PNG fake", png.Body.String())
}

func TestServer_ServesWarmedCombination(t *testing.T) {
	s := newTestServer(t, false)

	combos := s.Pipeline().Combinations.All()
	require.Len(t, combos, 1)

	rec := get(t, s.Handler(), "/_content/scripts/"+combos[0].Name, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "var a = 1;")
	assert.Contains(t, rec.Body.String(), "var b = 2;")
}

func TestServer_Health(t *testing.T) {
	s := newTestServer(t, false)

	rec := get(t, s.Handler(), "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status, "the broken set degrades health")
}

func TestServer_Metrics(t *testing.T) {
	s := newTestServer(t, false)
	h := s.Handler()

	get(t, h, "/_content/scripts/a.js", nil)
	get(t, h, "/_content/scripts/missing.js", nil)

	rec := get(t, h, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	text := rec.Body.String()
	assert.Contains(t, text, `assetpipe_http_requests_total{method="GET",route="content",status="200"} 1`)
	assert.Contains(t, text, "assetpipe_assets_not_found_total 1")
	assert.Contains(t, text, "assetpipe_assets_failed_sets 1")
	assert.Contains(t, text, "assetpipe_content_plans_source_builds_total")
}

func TestServer_Diagnostics(t *testing.T) {
	s := newTestServer(t, false)
	h := s.Handler()
	get(t, h, "/_content/scripts/a.js", nil)

	rec := get(t, h, "/_assets/diagnostics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	page := rec.Body.String()
	assert.Contains(t, page, "<td>main</td>")
	assert.Contains(t, page, "&lt;broken&gt;")
	assert.NotContains(t, page, "<broken>")
	assert.Contains(t, page, `href="/_content/a.js"`)

	rec = get(t, h, "/_assets/diagnostics?format=json", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var report services.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	require.Len(t, report.Sets, 2)
	assert.Equal(t, "main", report.Sets[0].Name)
	assert.NotEmpty(t, report.Sets[1].Error)
	assert.NotEmpty(t, report.Resources, "served resources are linked")
}

func TestServer_Reload(t *testing.T) {
	s := newTestServer(t, false)
	h := s.Handler()
	root := s.config.Assets.Root

	assert.Equal(t, http.StatusNotFound, get(t, h, "/_content/scripts/c.js", nil).Code)

	writeAsset(t, root, "content/scripts/c.js", "var c = 3;")
	before := s.Pipeline()
	require.NoError(t, s.Reload(context.Background()))
	assert.NotSame(t, before, s.Pipeline())

	rec := get(t, h, "/_content/scripts/c.js", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "var c = 3;", rec.Body.String())

	serving := s.Pipeline()
	require.NoError(t, os.RemoveAll(root))
	assert.Error(t, s.Reload(context.Background()))
	assert.Same(t, serving, s.Pipeline(), "a failed reload keeps the current pipeline installed")
	assert.NotNil(t, s.Pipeline().Files.Find("c.js"))
}

func TestServer_HandleChanges(t *testing.T) {
	s := newTestServer(t, true)
	h := s.Handler()
	root := s.config.Assets.Root

	assert.Equal(t, "var a = 1;", get(t, h, "/_content/scripts/a.js", nil).Body.String())

	path := writeAsset(t, root, "content/scripts/a.js", "var a = 42;")
	before := s.Pipeline()
	require.NoError(t, s.handleChanges(context.Background(), []watcher.ChangeEvent{
		{Type: watcher.EventTypeModified, Path: path},
	}))
	assert.Same(t, before, s.Pipeline(), "an edit only resets caches")
	assert.Equal(t, "var a = 42;", get(t, h, "/_content/scripts/a.js", nil).Body.String())

	path = writeAsset(t, root, "content/scripts/d.js", "var d;")
	require.NoError(t, s.handleChanges(context.Background(), []watcher.ChangeEvent{
		{Type: watcher.EventTypeCreated, Path: path},
	}))
	assert.NotSame(t, before, s.Pipeline(), "a new file rebuilds the pipeline")
	assert.Equal(t, "var d;", get(t, h, "/_content/scripts/d.js", nil).Body.String())

	metrics := get(t, h, "/metrics", nil).Body.String()
	assert.Contains(t, metrics, "assetpipe_assets_reloads_total 2")
}

func TestServer_DevelopmentMode(t *testing.T) {
	s := newTestServer(t, true)
	h := s.Handler()

	rec := get(t, h, "/_content/scripts/a.js", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("ETag"))
	assert.Empty(t, rec.Header().Get("Cache-Control"))

	script := get(t, h, "/_assets/livereload", nil)
	require.Equal(t, http.StatusOK, script.Code)
	assert.Equal(t, "application/javascript", script.Header().Get("Content-Type"))

	s.DevelopmentMode().Set(false)
	rec = get(t, h, "/_content/scripts/a.js", nil)
	assert.Equal(t, "public, max-age=3600", rec.Header().Get("Cache-Control"))
}

func TestServer_LiveReloadOnlyInDevelopment(t *testing.T) {
	s := newTestServer(t, false)
	assert.Equal(t, http.StatusNotFound, get(t, s.Handler(), "/_assets/livereload", nil).Code)
}

func TestServer_StartAndShutdown(t *testing.T) {
	s := newTestServer(t, false)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}

	assert.NoError(t, s.Shutdown(context.Background()), "shutdown is idempotent")
}

func TestEtagMatches(t *testing.T) {
	tests := []struct {
		ifNoneMatch string
		etag        string
		want        bool
	}{
		{`"a"`, `"a"`, true},
		{`W/"a"`, `"a"`, true},
		{`"a"`, `W/"a"`, true},
		{`"b", "a"`, `"a"`, true},
		{`*`, `"a"`, true},
		{`"b"`, `"a"`, false},
		{`*`, ``, false},
		{`"a-gzip"`, `"a-gzip"`, true},
		{`"a-gzip"`, `"a"`, true},
		{`W/"a"`, `"a-gzip"`, true},
		{`"b-gzip"`, `"a-gzip"`, false},
	}

	for _, tt := range tests {
		t.Run(tt.ifNoneMatch+"|"+tt.etag, func(t *testing.T) {
			assert.Equal(t, tt.want, etagMatches(tt.ifNoneMatch, tt.etag))
		})
	}
}
