// Package services holds the use cases behind the commands: bootstrapping
// the asset pipeline, reporting on it and scaffolding a new project.
package services

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/conneroisu/assetpipe/internal/assets"
	"github.com/conneroisu/assetpipe/internal/caching"
	"github.com/conneroisu/assetpipe/internal/config"
	"github.com/conneroisu/assetpipe/internal/content"
	pipeerrors "github.com/conneroisu/assetpipe/internal/errors"
	assethttp "github.com/conneroisu/assetpipe/internal/http"
	"github.com/conneroisu/assetpipe/internal/logging"
	"github.com/conneroisu/assetpipe/internal/scanner"
)

// BootstrapService builds a ready to serve pipeline from configuration.
type BootstrapService struct {
	config *config.Config
	logger logging.Logger
}

// NewBootstrapService creates a new bootstrap service
func NewBootstrapService(cfg *config.Config, logger logging.Logger) *BootstrapService {
	return &BootstrapService{
		config: cfg,
		logger: logging.OrNop(logger).WithComponent("bootstrap"),
	}
}

// BootstrapOptions contains options for one bootstrap run
type BootstrapOptions struct {
	// Mode is shared with the running server so that a rebuilt pipeline
	// keeps the current development switch. A new one is created when nil.
	Mode *assethttp.DevelopmentMode
	// Registry supplies the combination policies; the built-in registry is
	// used when nil.
	Registry *assets.PolicyRegistry
	// SkipWarmUp leaves set plans to be built on first use.
	SkipWarmUp bool
}

// Pipeline is everything a bootstrap run produced.
type Pipeline struct {
	Settings     *assets.Settings
	Roots        []scanner.Root
	Files        *assets.AssetFileGraph
	Graph        *assets.AssetGraph
	Finder       *assets.DependencyFinder
	Policies     *assets.CombinationPolicyCache
	Combinations *assets.CombinationCache
	TagPlans     *assets.TagPlanCache
	Content      *caching.AssetContentCache
	Plans        *content.ContentPlanCache
	Services     *assethttp.AssetServices

	Failures  []pipeerrors.SetFailure
	Conflicts []*pipeerrors.ConflictError
	Duration  time.Duration
}

// Bootstrap runs discovery and activation in order: find files, build the
// file graph, apply package manifests, apply the configured declarations,
// compile every set, then activate the policies. Set failures and package
// conflicts are logged and kept on the pipeline; they never abort the run.
func (s *BootstrapService) Bootstrap(ctx context.Context, opts BootstrapOptions) (*Pipeline, error) {
	start := time.Now()
	perf := logging.StartOperation(s.logger, "bootstrap")
	cfg := &s.config.Assets

	p := &Pipeline{Settings: newSettings(cfg)}
	mimes := p.Settings.MimeTypes()

	p.Roots = Roots(cfg)
	discovered, err := scanner.NewAssetScanner(mimes, cfg.Exclude, s.logger).Scan(ctx, p.Roots)
	if err != nil {
		perf.EndWithError(ctx, err)
		return nil, err
	}

	p.Files = assets.BuildFileGraph(p.Settings, discovered, overrides(cfg))
	p.Conflicts = p.Files.Conflicts()
	for _, conflict := range p.Conflicts {
		s.logger.Warn(ctx, conflict, "Asset name left out of the file graph",
			"asset", conflict.Name, "packages", conflict.Packages)
	}
	s.logger.Info(ctx, "Discovered asset files",
		"files", len(p.Files.Files()), "roots", len(p.Roots), "conflicts", len(p.Conflicts))

	p.Graph = assets.NewAssetGraph()
	for _, pkg := range cfg.Packages {
		manifest, err := LoadManifest(filepath.Join(pkg.Path, cfg.ManifestName))
		if err != nil {
			perf.EndWithError(ctx, err)
			return nil, fmt.Errorf("package %s: %w", pkg.Name, err)
		}
		if manifest == nil {
			continue
		}
		s.logger.Debug(ctx, "Applying package manifest", "package", pkg.Name)
		manifest.Declarations().ApplyTo(p.Graph)
	}
	ConfigDeclarations(cfg).ApplyTo(p.Graph)

	p.Finder = assets.NewDependencyFinder(p.Graph, p.Files)
	p.Failures = p.Graph.CompileDependencies(ctx, s.logger, p.Finder)

	registry := opts.Registry
	if registry == nil {
		registry = assets.NewPolicyRegistry()
	}
	p.Policies = assets.NewCombinationPolicyCache()
	p.Combinations = assets.NewCombinationCache()
	p.TagPlans = assets.NewTagPlanCache(p.Files, p.Policies, p.Combinations, s.logger)

	policies := []assets.AssetPolicy{
		assets.NewCombinationBuildingActivator(registry, p.Policies, p.Combinations),
	}
	if !opts.SkipWarmUp {
		policies = append(policies, assets.NewWarmUpSetsForCombinationPolicy(p.TagPlans, p.Finder, mimes))
	}
	if err := assets.ActivatePolicies(ctx, s.logger, policies, p.Files, p.Graph); err != nil {
		perf.EndWithError(ctx, err)
		return nil, err
	}

	headers := caching.NewCacheHeaders(cfg.MaxAge)
	for _, h := range cfg.Headers {
		if err := headers.AddHeader(h.Name, h.Value); err != nil {
			perf.EndWithError(ctx, err)
			return nil, err
		}
	}

	p.Content, err = caching.NewAssetContentCache(caching.ContentCacheConfig{
		MaxSizeMB: cfg.CacheSizeMB,
		Shards:    caching.DefaultContentCacheConfig().Shards,
	})
	if err != nil {
		perf.EndWithError(ctx, err)
		return nil, err
	}

	pipeline := content.NewPipeline()
	if cfg.Minify {
		pipeline.AddTransformer(assets.ContentTypeCss, content.MinifyStylesheets{})
	}
	p.Plans = content.NewContentPlanCache(p.Files, p.Combinations, pipeline, p.Content)

	mode := opts.Mode
	if mode == nil {
		mode = assethttp.NewDevelopmentMode(s.config.Development.Enabled)
	}
	p.Services = &assethttp.AssetServices{
		Plans:   p.Plans,
		Links:   p.Content,
		Headers: headers,
		ETags:   caching.NewETagGenerator(),
		Mode:    mode,
		Mimes:   mimes,
	}

	p.Duration = time.Since(start)
	perf.End(ctx)
	s.logger.Info(ctx, "Asset pipeline ready",
		"sets", len(p.Graph.SetNames()),
		"failed_sets", len(p.Failures),
		"combinations", len(p.Combinations.All()),
		"duration", p.Duration)

	return p, nil
}

// Roots lists the application root followed by every package root in
// declaration order.
func Roots(cfg *config.AssetsConfig) []scanner.Root {
	roots := []scanner.Root{{Provenance: assets.ApplicationProvenance, Path: cfg.Root}}
	for _, pkg := range cfg.Packages {
		roots = append(roots, scanner.Root{Provenance: pkg.Name, Path: pkg.Path})
	}
	return roots
}

func overrides(cfg *config.AssetsConfig) []string {
	var out []string
	for _, pkg := range cfg.Packages {
		if pkg.Override {
			out = append(out, pkg.Name)
		}
	}
	return out
}

func newSettings(cfg *config.AssetsConfig) *assets.Settings {
	settings := assets.NewSettings()
	if cfg.RootedFolder != "" {
		settings.RootedFolder(cfg.RootedFolder)
	}
	for _, ext := range cfg.Javascript {
		settings.ExtensionIsJavascript(ext)
	}
	for _, ext := range cfg.Stylesheet {
		settings.ExtensionIsStylesheet(ext)
	}
	return settings
}

// Reset drops every memoized plan and built content so that the next
// request rebuilds from disk. The file graph is kept.
func (p *Pipeline) Reset() error {
	p.Plans.Reset()
	p.TagPlans.Reset()
	return p.Content.Reset()
}

// Close releases the content cache.
func (p *Pipeline) Close() error {
	if p.Content == nil {
		return nil
	}
	return p.Content.Close()
}

// FailedSets maps every failed set to its error.
func (p *Pipeline) FailedSets() map[string]error {
	out := make(map[string]error, len(p.Failures))
	for _, f := range p.Failures {
		out[f.Set] = f.Err
	}
	return out
}
