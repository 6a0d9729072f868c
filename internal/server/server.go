// Package server assembles the asset pipeline into an http server: the
// asset route with conditional requests and compression, health, metrics,
// diagnostics and, in development, file watching with live reload.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/gzhttp"

	"github.com/conneroisu/assetpipe/internal/assets"
	"github.com/conneroisu/assetpipe/internal/config"
	assethttp "github.com/conneroisu/assetpipe/internal/http"
	"github.com/conneroisu/assetpipe/internal/livereload"
	"github.com/conneroisu/assetpipe/internal/logging"
	"github.com/conneroisu/assetpipe/internal/middleware"
	"github.com/conneroisu/assetpipe/internal/monitoring"
	"github.com/conneroisu/assetpipe/internal/services"
	"github.com/conneroisu/assetpipe/internal/watcher"
)

// gzipContentTypes are compressed when large enough; binary assets are
// already compressed formats.
var gzipContentTypes = []string{
	assets.ContentTypeJavascript,
	assets.ContentTypeCss,
	"text/plain",
	"text/html",
	"application/json",
}

// AssetServer serves the current pipeline. A reload builds a new pipeline
// and swaps it in; requests in flight finish against the old one.
type AssetServer struct {
	config    *config.Config
	logger    logging.Logger
	bootstrap *services.BootstrapService
	mode      *assethttp.DevelopmentMode

	state    atomic.Pointer[pipelineState]
	reloadMu sync.Mutex

	metrics *monitoring.Metrics
	health  *monitoring.HealthMonitor
	hub     *livereload.Hub
	watcher *watcher.FileWatcher
	router  *assethttp.Router
	gzip    func(http.Handler) http.HandlerFunc

	shutdownOnce sync.Once
	shutdownErr  error
}

type pipelineState struct {
	pipeline *services.Pipeline
	assets   http.Handler
}

// Options configures a server.
type Options struct {
	Version string
	// Metrics defaults to a fresh registry.
	Metrics *monitoring.Metrics
}

// New bootstraps the pipeline and assembles the server. Startup set failures
// and package conflicts are reported but do not prevent serving.
func New(ctx context.Context, cfg *config.Config, logger logging.Logger, opts Options) (*AssetServer, error) {
	if cfg == nil {
		return nil, errors.New("server: config cannot be nil")
	}
	logger = logging.OrNop(logger)

	s := &AssetServer{
		config:    cfg,
		logger:    logger.WithComponent("server"),
		bootstrap: services.NewBootstrapService(cfg, logger),
		mode:      assethttp.NewDevelopmentMode(cfg.Development.Enabled),
		metrics:   opts.Metrics,
	}
	if s.metrics == nil {
		s.metrics = monitoring.NewMetrics()
	}

	if cfg.Server.Gzip {
		wrapper, err := gzhttp.NewWrapper(
			gzhttp.MinSize(512),
			gzhttp.ContentTypes(gzipContentTypes),
			gzhttp.SuffixETag(gzipETagSuffix),
		)
		if err != nil {
			return nil, fmt.Errorf("server: gzip wrapper: %w", err)
		}
		s.gzip = wrapper
	}

	p, err := s.bootstrap.Bootstrap(ctx, services.BootstrapOptions{Mode: s.mode})
	if err != nil {
		return nil, err
	}
	s.install(p)

	s.metrics.ObserveCaches(contentStats{s}, planStats{s})

	s.health = monitoring.NewHealthMonitor(logger, opts.Version)
	rootPaths := make([]string, 0, len(p.Roots))
	for _, root := range p.Roots {
		rootPaths = append(rootPaths, root.Path)
	}
	s.health.RegisterCheck(monitoring.AssetRootsHealthChecker(rootPaths...))
	s.health.RegisterCheck(monitoring.SetCompilationHealthChecker(func() map[string]error {
		return s.Pipeline().FailedSets()
	}))
	s.health.RegisterCheck(monitoring.GoroutineHealthChecker())

	s.hub = livereload.NewHub(livereload.Options{}, logger)

	if cfg.Development.Enabled && cfg.Development.Watch {
		if err := s.setupWatcher(p); err != nil {
			_ = p.Close()
			return nil, err
		}
	}

	chain := middleware.NewMiddlewareChain(middleware.MiddlewareDependencies{
		Logger:  logger,
		Metrics: s.metrics,
	})
	s.router = assethttp.NewRouter(cfg, s, chain)

	return s, nil
}

// install makes p the pipeline serving requests and returns the previous
// one.
func (s *AssetServer) install(p *services.Pipeline) *services.Pipeline {
	var handler http.Handler = assethttp.AssetHandler(p.Services, s.logger)
	if s.gzip != nil {
		handler = s.gzip(handler)
	}
	handler = notModified(handler)

	s.metrics.SetStartupState(len(p.Failures), len(p.Conflicts))

	old := s.state.Swap(&pipelineState{pipeline: p, assets: handler})
	if old == nil {
		return nil
	}
	return old.pipeline
}

// Pipeline returns the pipeline currently serving requests.
func (s *AssetServer) Pipeline() *services.Pipeline {
	return s.state.Load().pipeline
}

// DevelopmentMode returns the runtime development switch.
func (s *AssetServer) DevelopmentMode() *assethttp.DevelopmentMode {
	return s.mode
}

// Metrics returns the server metrics.
func (s *AssetServer) Metrics() *monitoring.Metrics {
	return s.metrics
}

// Handler returns the full route set with middleware applied.
func (s *AssetServer) Handler() http.Handler {
	return s.router.Handler()
}

// Addr is the configured listen address.
func (s *AssetServer) Addr() string {
	return s.router.GetAddr()
}

// Start serves until ctx is cancelled, then releases every resource.
func (s *AssetServer) Start(ctx context.Context) error {
	if s.watcher != nil {
		s.watcher.Start(ctx)
		s.logger.Info(ctx, "Watching asset roots", "directories", len(s.watcher.WatchList()))
	}

	s.logger.Info(ctx, "Serving assets",
		"addr", s.Addr(),
		"development", s.mode.Enabled())

	err := s.router.Start(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if shutdownErr := s.Shutdown(shutdownCtx); err == nil {
		err = shutdownErr
	}
	return err
}

// Shutdown stops the http server, disconnects live reload clients, stops
// the watcher and closes the pipeline. It is idempotent.
func (s *AssetServer) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		var errs []error
		if err := s.router.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		if err := s.hub.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		if s.watcher != nil {
			if err := s.watcher.Stop(); err != nil {
				errs = append(errs, err)
			}
		}
		if err := s.Pipeline().Close(); err != nil {
			errs = append(errs, err)
		}
		s.shutdownErr = errors.Join(errs...)
	})
	return s.shutdownErr
}

// Reload bootstraps a new pipeline from disk and swaps it in. On failure
// the current pipeline keeps serving.
func (s *AssetServer) Reload(ctx context.Context) error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	p, err := s.bootstrap.Bootstrap(ctx, services.BootstrapOptions{Mode: s.mode})
	if err != nil {
		s.logger.Error(ctx, err, "Reload failed, keeping the current pipeline")
		return err
	}

	if old := s.install(p); old != nil {
		if err := old.Close(); err != nil {
			s.logger.Warn(ctx, err, "Failed to close replaced pipeline")
		}
	}
	s.metrics.Reloaded()
	return nil
}

// HandleAsset implements assethttp.Handlers.
func (s *AssetServer) HandleAsset(w http.ResponseWriter, r *http.Request) {
	s.state.Load().assets.ServeHTTP(w, r)
}

// HandleHealth implements assethttp.Handlers.
func (s *AssetServer) HandleHealth(w http.ResponseWriter, r *http.Request) {
	s.health.HTTPHandler()(w, r)
}

// HandleMetrics implements assethttp.Handlers.
func (s *AssetServer) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	s.metrics.Handler().ServeHTTP(w, r)
}

// HandleLiveReload implements assethttp.Handlers.
func (s *AssetServer) HandleLiveReload(w http.ResponseWriter, r *http.Request) {
	s.hub.ServeHTTP(w, r)
}

func (s *AssetServer) setupWatcher(p *services.Pipeline) error {
	fw, err := watcher.NewFileWatcher(s.config.Development.Debounce, s.logger)
	if err != nil {
		return fmt.Errorf("server: file watcher: %w", err)
	}

	fw.AddFilter(watcher.NoHiddenFilter)
	fw.AddFilter(watcher.ExtensionFilter(func(name string) bool {
		return s.Pipeline().Settings.MimeTypes().ByFileName(name) != nil
	}))
	fw.AddHandler(s.handleChanges)

	for _, root := range p.Roots {
		if err := fw.AddRecursive(root.Path, s.config.Assets.Exclude...); err != nil {
			_ = fw.Stop()
			return fmt.Errorf("server: watching %s root: %w", root.Provenance, err)
		}
	}

	s.watcher = fw
	return nil
}

// handleChanges refreshes the pipeline after a debounced batch of file
// changes. Edits to existing files only drop the caches; anything that can
// change the file graph rebuilds the pipeline. Browsers are told to reload,
// or only to refresh stylesheets when nothing else changed.
func (s *AssetServer) handleChanges(ctx context.Context, events []watcher.ChangeEvent) error {
	if len(events) == 0 {
		return nil
	}

	structural := false
	cssOnly := true
	mimes := s.Pipeline().Settings.MimeTypes()
	names := make([]string, 0, len(events))
	for _, event := range events {
		if event.Type != watcher.EventTypeModified {
			structural = true
		}
		if m := mimes.ByFileName(filepath.Base(event.Path)); m == nil || m.Value != assets.ContentTypeCss {
			cssOnly = false
		}
		names = append(names, filepath.ToSlash(filepath.Base(event.Path)))
	}

	if structural {
		if err := s.Reload(ctx); err != nil {
			return err
		}
	} else {
		if err := s.Pipeline().Reset(); err != nil {
			return fmt.Errorf("resetting asset caches: %w", err)
		}
		s.metrics.Reloaded()
	}

	s.logger.Info(ctx, "Assets changed",
		"files", len(events),
		"rebuilt", structural)

	message := livereload.Message{Type: livereload.MessageReload, Assets: names, Timestamp: time.Now()}
	if cssOnly {
		message.Type = livereload.MessageCSS
	}
	s.hub.Broadcast(message)
	return nil
}

type contentStats struct{ s *AssetServer }

func (c contentStats) Stats() (hits, misses int64) {
	return c.s.Pipeline().Content.Stats()
}

func (c contentStats) Len() int {
	return c.s.Pipeline().Content.Len()
}

type planStats struct{ s *AssetServer }

func (p planStats) SourceBuilds() int64 {
	return p.s.Pipeline().Plans.SourceBuilds()
}

func (p planStats) ContentBuilds() int64 {
	return p.s.Pipeline().Plans.ContentBuilds()
}

func (p planStats) Len() int {
	return p.s.Pipeline().Plans.Len()
}
