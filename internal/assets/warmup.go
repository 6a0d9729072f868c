package assets

import (
	"context"
	"fmt"

	"github.com/conneroisu/assetpipe/internal/logging"
)

// PlanBuilder builds the tag plan for an ordered, single mime type name list.
type PlanBuilder interface {
	PlanFor(mime *MimeType, names []string) (*TagPlan, error)
}

// WarmUpSetsForCombinationPolicy builds the plan of every declared set at
// activation so that the first page request does not pay for it.
type WarmUpSetsForCombinationPolicy struct {
	plans  PlanBuilder
	finder DependencyResolver
	mimes  *MimeTypes
}

// NewWarmUpSetsForCombinationPolicy creates the warm-up policy.
func NewWarmUpSetsForCombinationPolicy(plans PlanBuilder, finder DependencyResolver, mimes *MimeTypes) *WarmUpSetsForCombinationPolicy {
	return &WarmUpSetsForCombinationPolicy{plans: plans, finder: finder, mimes: mimes}
}

// Apply warms every set in declaration order. Sets that fail to resolve are
// logged and skipped; a plan build failure is returned.
func (p *WarmUpSetsForCombinationPolicy) Apply(ctx context.Context, log logging.Logger, _ *AssetFileGraph, graph *AssetGraph) error {
	log = logging.OrNop(log).WithComponent("warm_up")
	for _, set := range graph.SetNames() {
		if err := p.WarmUpSet(ctx, log, set); err != nil {
			return err
		}
	}
	return nil
}

// WarmUpSet resolves one set and builds a plan per mime type group.
func (p *WarmUpSetsForCombinationPolicy) WarmUpSet(ctx context.Context, log logging.Logger, set string) error {
	log = logging.OrNop(log)

	names, err := p.finder.CompileDependenciesAndOrder([]string{set})
	if err != nil {
		log.Error(ctx, err, "Unable to resolve asset set, skipping warm up", "set", set)
		return nil
	}
	if len(names) == 0 {
		return nil
	}

	for _, group := range p.groupByMimeType(ctx, log, set, names) {
		if _, err := p.plans.PlanFor(group.mime, group.names); err != nil {
			return fmt.Errorf("warming up set %q for %s: %w", set, group.mime, err)
		}
		log.Debug(ctx, "Warmed up asset plan", "set", set, "mime_type", group.mime.Value, "assets", len(group.names))
	}
	return nil
}

type mimeGroup struct {
	mime  *MimeType
	names []string
}

// groupByMimeType splits names by mime type in order of first appearance,
// keeping the relative order of names within each group.
func (p *WarmUpSetsForCombinationPolicy) groupByMimeType(ctx context.Context, log logging.Logger, set string, names []string) []*mimeGroup {
	var groups []*mimeGroup
	byValue := make(map[string]*mimeGroup)

	for _, name := range names {
		mime := p.mimes.ByFileName(name)
		if mime == nil {
			log.Warn(ctx, nil, "Asset has no known mime type, leaving it out of warm up", "set", set, "asset", name)
			continue
		}
		g, ok := byValue[mime.Value]
		if !ok {
			g = &mimeGroup{mime: mime}
			byValue[mime.Value] = g
			groups = append(groups, g)
		}
		g.names = append(g.names, name)
	}

	return groups
}
