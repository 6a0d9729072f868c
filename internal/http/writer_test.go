package http

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/assetpipe/internal/assets"
	"github.com/conneroisu/assetpipe/internal/caching"
	"github.com/conneroisu/assetpipe/internal/content"
	"github.com/conneroisu/assetpipe/internal/logging"
)

type testServices struct {
	*AssetServices
	cache *caching.AssetContentCache
	dir   string
}

func newTestServices(t *testing.T, development bool) *testServices {
	t.Helper()
	dir := t.TempDir()

	files := map[string]string{
		"content/scripts/a.js":     "var a = 1;",
		"content/scripts/b.js":     "var b = 2;",
		"content/styles/site.css":  "body { color: red; }",
		"content/images/icon.png":  "\x89PNG fake",
		"content/fonts/plain.woff": "wOFF",
	}
	var discovered []assets.DiscoveredFile
	for rel, body := range files {
		full := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(body), 0o644))
		discovered = append(discovered, assets.DiscoveredFile{
			RelativePath: rel,
			Provenance:   assets.ApplicationProvenance,
			FullPath:     full,
		})
	}

	settings := assets.NewSettings()
	graph := assets.BuildFileGraph(settings, discovered, nil)

	combinations := assets.NewCombinationCache()
	combo := combinations.AddFilesToCandidate(settings.MimeTypes().Javascript(), "bundle",
		[]*assets.AssetFile{graph.Find("b.js"), graph.Find("a.js")})
	combinations.Store(combo)

	cache, err := caching.NewAssetContentCache(caching.DefaultContentCacheConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return &testServices{
		AssetServices: &AssetServices{
			Plans:   content.NewContentPlanCache(graph, combinations, content.NewPipeline(), cache),
			Links:   cache,
			Headers: caching.NewCacheHeaders(time.Hour).WithClock(func() time.Time { return fixed }),
			ETags:   caching.NewETagGenerator(),
			Mode:    NewDevelopmentMode(development),
			Mimes:   settings.MimeTypes(),
		},
		cache: cache,
		dir:   dir,
	}
}

func serve(t *testing.T, s *testServices, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	AssetHandler(s.AssetServices, logging.NewNopLogger())(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestAssetHandler_NotFound(t *testing.T) {
	s := newTestServices(t, false)

	tests := []struct {
		name   string
		target string
		body   string
	}{
		{name: "missing script", target: "/_content/scripts/missing.js", body: NotFoundPrefix + "scripts/missing.js"},
		{name: "missing image", target: "/_content/images/none.png", body: NotFoundPrefix + "images/none.png"},
		{name: "unknown extension", target: "/_content/scripts/x.unknown", body: NotFoundPrefix + "scripts/x.unknown"},
		{name: "escaping path", target: "/_content/scripts/../../secret.js", body: NotFoundPrefix},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, s, http.MethodGet, tt.target)

			assert.Equal(t, http.StatusNotFound, rec.Code)
			assert.NotEmpty(t, rec.Body.String())
			assert.True(t, strings.HasPrefix(rec.Body.String(), tt.body), rec.Body.String())
			assert.Empty(t, rec.Header().Get("ETag"))
			assert.Empty(t, rec.Header().Get("Cache-Control"))
		})
	}
}

func TestAssetHandler_ProductionHeaders(t *testing.T) {
	s := newTestServices(t, false)

	rec := serve(t, s, http.MethodGet, "/_content/scripts/a.js")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "var a = 1;", rec.Body.String())
	assert.Equal(t, assets.ContentTypeJavascript, rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("ETag"))
	assert.Equal(t, "public, max-age=3600", rec.Header().Get("Cache-Control"))
	assert.NotEmpty(t, rec.Header().Get("Expires"))
	assert.NotEmpty(t, rec.Header().Get("Last-Modified"))
}

func TestAssetHandler_DevelopmentModeKeepsETagOnly(t *testing.T) {
	s := newTestServices(t, true)

	rec := serve(t, s, http.MethodGet, "/_content/styles/site.css")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("ETag"))
	assert.Empty(t, rec.Header().Get("Cache-Control"))
	assert.Empty(t, rec.Header().Get("Expires"))

	s.Mode.Set(false)
	rec = serve(t, s, http.MethodGet, "/_content/styles/site.css")
	assert.NotEmpty(t, rec.Header().Get("Cache-Control"))
}

func TestAssetHandler_StableETag(t *testing.T) {
	s := newTestServices(t, false)

	first := serve(t, s, http.MethodGet, "/_content/scripts/b.js")
	second := serve(t, s, http.MethodGet, "/_content/scripts/b.js")

	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, first.Header().Get("ETag"), second.Header().Get("ETag"))

	other := serve(t, s, http.MethodGet, "/_content/scripts/a.js")
	assert.NotEqual(t, first.Header().Get("ETag"), other.Header().Get("ETag"))
}

func TestAssetHandler_EditedFileServesNewContent(t *testing.T) {
	tests := []struct {
		name        string
		development bool
		target      string
		before      string
		after       string
	}{
		{name: "production", target: "/_content/scripts/a.js", before: "var a = 1;", after: "var a = 42;"},
		{name: "development", development: true, target: "/_content/scripts/a.js", before: "var a = 1;", after: "var a = 42;"},
		{name: "combination", target: "/_content/scripts/bundle.js", before: "var b = 2;\nvar a = 1;", after: "var b = 2;\nvar a = 42;"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServices(t, tt.development)

			first := serve(t, s, http.MethodGet, tt.target)
			require.Equal(t, http.StatusOK, first.Code)
			assert.Equal(t, tt.before, first.Body.String())

			full := filepath.Join(s.dir, "content", "scripts", "a.js")
			require.NoError(t, os.WriteFile(full, []byte("var a = 42;"), 0o644))
			later := time.Now().Add(time.Minute)
			require.NoError(t, os.Chtimes(full, later, later))

			second := serve(t, s, http.MethodGet, tt.target)
			require.Equal(t, http.StatusOK, second.Code)
			assert.Equal(t, tt.after, second.Body.String())
			assert.NotEqual(t, first.Header().Get("ETag"), second.Header().Get("ETag"))
		})
	}
}

func TestAssetHandler_Combination(t *testing.T) {
	s := newTestServices(t, false)

	rec := serve(t, s, http.MethodGet, "/_content/scripts/bundle.js")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "var b = 2;\nvar a = 1;", rec.Body.String())

	resources := s.cache.Resources()
	require.Len(t, resources, 1)
	linked := s.cache.FilesForResource(resources[0])
	require.Len(t, linked, 2)
	assert.Equal(t, "b.js", linked[0].Name)
	assert.Equal(t, "a.js", linked[1].Name)
}

func TestAssetHandler_BinaryStreamsFile(t *testing.T) {
	s := newTestServices(t, false)

	rec := serve(t, s, http.MethodGet, "/_content/images/icon.png")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "\x89PNG fake", rec.Body.String())
	assert.Equal(t, assets.ContentTypePng, rec.Header().Get("Content-Type"))
	assert.Equal(t, "9", rec.Header().Get("Content-Length"))
	assert.NotEmpty(t, rec.Header().Get("ETag"))
	assert.Equal(t, int64(0), s.Plans.ContentBuilds())
}

func TestAssetHandler_LinksResourceHash(t *testing.T) {
	s := newTestServices(t, false)

	serve(t, s, http.MethodGet, "/_content/fonts/plain.woff")

	resources := s.cache.Resources()
	require.Len(t, resources, 1)
	files := s.cache.FilesForResource(resources[0])
	require.Len(t, files, 1)
	assert.Equal(t, "plain.woff", files[0].Name)
	assert.Equal(t, assets.ResourceHashFor(files), resources[0])
}

func TestAssetHandler_MethodNotAllowed(t *testing.T) {
	s := newTestServices(t, false)

	rec := serve(t, s, http.MethodPost, "/_content/scripts/a.js")

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "GET, HEAD", rec.Header().Get("Allow"))
}

func TestAssetHandler_BinaryFileGoneIsServerError(t *testing.T) {
	s := newTestServices(t, false)
	require.NoError(t, os.Remove(filepath.Join(s.dir, "content", "images", "icon.png")))

	rec := serve(t, s, http.MethodGet, "/_content/images/icon.png")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, rec.Header().Get("ETag"))
	assert.Empty(t, rec.Header().Get("Cache-Control"))
}

func TestDevelopmentMode(t *testing.T) {
	m := NewDevelopmentMode(false)
	assert.False(t, m.Enabled())
	m.Set(true)
	assert.True(t, m.Enabled())
}

func TestResponseOutput_HoldsStatusUntilWrite(t *testing.T) {
	rec := httptest.NewRecorder()
	out := NewResponseOutput(rec)

	out.WriteResponseCode(http.StatusNotFound)
	out.AppendHeader("X-Test", "1")
	assert.False(t, out.Written())

	require.NoError(t, out.WriteString("text/plain", "gone"))
	assert.True(t, out.Written())
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "text/plain", rec.Header().Get("Content-Type"))
	assert.Equal(t, "4", rec.Header().Get("Content-Length"))
	assert.Equal(t, "1", rec.Header().Get("X-Test"))
}
