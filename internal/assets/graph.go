package assets

import (
	"context"
	"strings"
	"sync"

	pipeerrors "github.com/conneroisu/assetpipe/internal/errors"
	"github.com/conneroisu/assetpipe/internal/logging"
)

// DependencyResolver expands names into a dependency ordered asset list.
type DependencyResolver interface {
	CompileDependenciesAndOrder(names []string) ([]string, error)
}

// AssetGraph is the registry of sets, aliases, dependencies, explicit
// combinations, order rules and policy names. It is populated during
// bootstrap and only read afterwards; the lock exists for the compiled set
// results, which are written once by CompileDependencies.
type AssetGraph struct {
	mu sync.RWMutex

	setOrder []string
	sets     map[string][]string

	aliases      map[string]string
	dependencies map[string][]string

	comboOrder   []string
	combinations map[string][]string

	rules    []OrderRule
	policies []string

	compiled map[string][]string
	failed   map[string]error
}

// NewAssetGraph creates an empty graph.
func NewAssetGraph() *AssetGraph {
	return &AssetGraph{
		sets:         make(map[string][]string),
		aliases:      make(map[string]string),
		dependencies: make(map[string][]string),
		combinations: make(map[string][]string),
		compiled:     make(map[string][]string),
		failed:       make(map[string]error),
	}
}

func memberKey(name string) string {
	return NormalizeName(name)
}

// AddToSet appends name to a set. A name already in the set is ignored.
// Members may be asset names, aliases or other set names.
func (g *AssetGraph) AddToSet(set, name string) {
	set = strings.TrimSpace(set)
	name = strings.TrimSpace(name)
	if set == "" || name == "" {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	members, ok := g.sets[set]
	if !ok {
		g.setOrder = append(g.setOrder, set)
	}
	key := memberKey(name)
	for _, m := range members {
		if memberKey(m) == key {
			return
		}
	}
	g.sets[set] = append(members, name)
}

// IsSet reports whether name is a declared set.
func (g *AssetGraph) IsSet(name string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.sets[strings.TrimSpace(name)]
	return ok
}

// SetMembers returns the declared members of a set in insertion order.
func (g *AssetGraph) SetMembers(set string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	members := g.sets[set]
	out := make([]string, len(members))
	copy(out, members)
	return out
}

// SetNames returns every set name in declaration order.
func (g *AssetGraph) SetNames() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]string, len(g.setOrder))
	copy(out, g.setOrder)
	return out
}

// ForEachSetName calls fn for every set in declaration order.
func (g *AssetGraph) ForEachSetName(fn func(name string)) {
	for _, name := range g.SetNames() {
		fn(name)
	}
}

// Alias makes alias an alternate name for name.
func (g *AssetGraph) Alias(alias, name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.aliases[memberKey(alias)] = strings.TrimSpace(name)
}

// ResolveAlias follows alias links from name. Names that are not aliases
// are returned normalized; set names are returned unchanged.
func (g *AssetGraph) ResolveAlias(name string) string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	current := strings.TrimSpace(name)
	seen := make(map[string]bool)
	for {
		if _, ok := g.sets[current]; ok {
			return current
		}
		key := memberKey(current)
		target, ok := g.aliases[key]
		if !ok || seen[key] {
			return key
		}
		seen[key] = true
		current = target
	}
}

// Aliases returns a copy of the alias table.
func (g *AssetGraph) Aliases() map[string]string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make(map[string]string, len(g.aliases))
	for k, v := range g.aliases {
		out[k] = v
	}
	return out
}

// Dependency declares that name requires each of dependsOn.
func (g *AssetGraph) Dependency(name string, dependsOn ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := memberKey(name)
	existing := g.dependencies[key]
	for _, d := range dependsOn {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		dup := false
		for _, e := range existing {
			if memberKey(e) == memberKey(d) {
				dup = true
				break
			}
		}
		if !dup {
			existing = append(existing, d)
		}
	}
	g.dependencies[key] = existing
}

// DependenciesOf returns the declared dependencies of an asset name.
func (g *AssetGraph) DependenciesOf(name string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	deps := g.dependencies[memberKey(name)]
	out := make([]string, len(deps))
	copy(out, deps)
	return out
}

// AddToCombination appends names to an explicitly declared combination.
func (g *AssetGraph) AddToCombination(combo string, names ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	members, ok := g.combinations[combo]
	if !ok {
		g.comboOrder = append(g.comboOrder, combo)
	}
	for _, n := range names {
		if n = memberKey(n); n != "" {
			members = append(members, n)
		}
	}
	g.combinations[combo] = members
}

// ForCombinations calls fn for every explicit combination in declaration
// order.
func (g *AssetGraph) ForCombinations(fn func(name string, names []string)) {
	g.mu.RLock()
	order := make([]string, len(g.comboOrder))
	copy(order, g.comboOrder)
	combos := make(map[string][]string, len(g.combinations))
	for k, v := range g.combinations {
		combos[k] = append([]string(nil), v...)
	}
	g.mu.RUnlock()

	for _, name := range order {
		fn(name, combos[name])
	}
}

// AddOrderRule registers a rule used ahead of alphabetic ordering.
func (g *AssetGraph) AddOrderRule(rule OrderRule) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rules = append(g.rules, rule)
}

// OrderRules returns the registered rules in registration order.
func (g *AssetGraph) OrderRules() []OrderRule {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]OrderRule, len(g.rules))
	copy(out, g.rules)
	return out
}

// Sorter returns a FileSorter over the registered rules.
func (g *AssetGraph) Sorter() *FileSorter {
	return NewFileSorter(g.OrderRules()...)
}

// RegisterPolicy adds a combination policy by name. Names are resolved
// against a PolicyRegistry when policies are activated.
func (g *AssetGraph) RegisterPolicy(name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, p := range g.policies {
		if p == name {
			return
		}
	}
	g.policies = append(g.policies, name)
}

// PolicyNames returns the registered policy names.
func (g *AssetGraph) PolicyNames() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]string, len(g.policies))
	copy(out, g.policies)
	return out
}

// CompileDependencies resolves every set through finder and keeps the
// result. A set that fails is logged with its name, recorded as failed and
// skipped; the other sets are unaffected. The failures are returned.
func (g *AssetGraph) CompileDependencies(ctx context.Context, log logging.Logger, finder DependencyResolver) []pipeerrors.SetFailure {
	log = logging.OrNop(log).WithComponent("asset_graph")
	if finder == nil {
		finder = NewDependencyFinder(g, nil)
	}

	failures := pipeerrors.NewErrorCollector()
	for _, set := range g.SetNames() {
		names, err := finder.CompileDependenciesAndOrder([]string{set})

		g.mu.Lock()
		if err != nil {
			delete(g.compiled, set)
			g.failed[set] = err
		} else {
			delete(g.failed, set)
			g.compiled[set] = names
		}
		g.mu.Unlock()

		if err != nil {
			log.Error(ctx, err, "Failed to compile asset set, skipping it",
				"set", set,
				"configuration", pipeerrors.IsConfigurationError(err))
			failures.AddSetFailure(set, err)
			continue
		}
		log.Debug(ctx, "Compiled asset set", "set", set, "assets", len(names))
	}

	return failures.SetFailures()
}

// CompiledSet returns the dependency ordered names of a compiled set.
func (g *AssetGraph) CompiledSet(set string) ([]string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	names, ok := g.compiled[set]
	if !ok {
		return nil, false
	}
	return append([]string(nil), names...), true
}

// SetError returns the compile error of a failed set, or nil.
func (g *AssetGraph) SetError(set string) error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.failed[set]
}

// FailedSets returns the compile error of every failed set.
func (g *AssetGraph) FailedSets() map[string]error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make(map[string]error, len(g.failed))
	for k, v := range g.failed {
		out[k] = v
	}
	return out
}
