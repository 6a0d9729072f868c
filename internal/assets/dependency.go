package assets

import (
	"sort"

	pipeerrors "github.com/conneroisu/assetpipe/internal/errors"
)

// DependencyFinder expands set names, aliases and asset names into the full
// transitive closure of declared dependencies, ordered so that every
// dependency precedes its dependents.
type DependencyFinder struct {
	graph  *AssetGraph
	files  FileLookup
	sorter *FileSorter
}

// NewDependencyFinder creates a finder over graph. When files is nil every
// name that is not a set is accepted as an asset name.
func NewDependencyFinder(graph *AssetGraph, files FileLookup) *DependencyFinder {
	return &DependencyFinder{
		graph:  graph,
		files:  files,
		sorter: graph.Sorter(),
	}
}

// CompileDependenciesAndOrder returns the duplicate-free, dependency ordered
// asset names reachable from names. Items with no ordering constraint between
// them are ordered by the graph's rules, falling back to ordinal name order.
func (f *DependencyFinder) CompileDependenciesAndOrder(names []string) ([]string, error) {
	nodes := make(map[string]bool)
	var pending []string

	add := func(n string) {
		if !nodes[n] {
			nodes[n] = true
			pending = append(pending, n)
		}
	}

	for _, name := range names {
		expanded, err := f.expand(name, "", nil)
		if err != nil {
			return nil, err
		}
		for _, n := range expanded {
			add(n)
		}
	}

	edges := make(map[string][]string)
	for len(pending) > 0 {
		n := pending[0]
		pending = pending[1:]

		for _, dep := range f.graph.DependenciesOf(n) {
			expanded, err := f.expand(dep, n, nil)
			if err != nil {
				return nil, err
			}
			for _, d := range expanded {
				if d == n {
					return nil, &pipeerrors.CycleError{Names: []string{n, n}}
				}
				edges[n] = appendUnique(edges[n], d)
				add(d)
			}
		}
	}

	return f.order(nodes, edges)
}

// expand resolves one reference into asset names. stack holds the sets
// currently being expanded.
func (f *DependencyFinder) expand(name, referrer string, stack []string) ([]string, error) {
	resolved := f.graph.ResolveAlias(name)

	if f.graph.IsSet(resolved) {
		for i, s := range stack {
			if s == resolved {
				cycle := append(append([]string(nil), stack[i:]...), resolved)
				return nil, &pipeerrors.CycleError{Names: cycle}
			}
		}
		stack = append(stack, resolved)

		var out []string
		for _, member := range f.graph.SetMembers(resolved) {
			expanded, err := f.expand(member, resolved, stack)
			if err != nil {
				return nil, err
			}
			for _, n := range expanded {
				out = appendUnique(out, n)
			}
		}
		return out, nil
	}

	if resolved == "" || (f.files != nil && f.files.Find(resolved) == nil) {
		return nil, &pipeerrors.UnresolvedError{Name: name, Referrer: referrer}
	}

	return []string{resolved}, nil
}

// order is Kahn's algorithm choosing the smallest ready node by the sorter
// at every step.
func (f *DependencyFinder) order(nodes map[string]bool, edges map[string][]string) ([]string, error) {
	remaining := make(map[string]int, len(nodes))
	dependents := make(map[string][]string)
	for n := range nodes {
		remaining[n] = len(edges[n])
		for _, d := range edges[n] {
			dependents[d] = append(dependents[d], n)
		}
	}

	fileFor := make(map[string]*AssetFile, len(nodes))
	file := func(n string) *AssetFile {
		if af, ok := fileFor[n]; ok {
			return af
		}
		var af *AssetFile
		if f.files != nil {
			af = f.files.Find(n)
		}
		if af == nil {
			af = &AssetFile{Name: n}
		}
		fileFor[n] = af
		return af
	}

	var ready []string
	for n, count := range remaining {
		if count == 0 {
			ready = append(ready, n)
		}
	}

	result := make([]string, 0, len(nodes))
	for len(ready) > 0 {
		best := 0
		for i := 1; i < len(ready); i++ {
			if f.sorter.Compare(file(ready[i]), file(ready[best])) < 0 {
				best = i
			}
		}
		n := ready[best]
		ready = append(ready[:best], ready[best+1:]...)
		result = append(result, n)

		for _, dependent := range dependents[n] {
			remaining[dependent]--
			if remaining[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
	}

	if len(result) < len(nodes) {
		return nil, &pipeerrors.CycleError{Names: findCycle(nodes, edges, remaining)}
	}

	return result, nil
}

// findCycle walks the nodes left over by the topological sort and returns
// the first cycle found, closed with its starting name.
func findCycle(nodes map[string]bool, edges map[string][]string, remaining map[string]int) []string {
	var candidates []string
	for n := range nodes {
		if remaining[n] > 0 {
			candidates = append(candidates, n)
		}
	}
	sort.Strings(candidates)

	visited := make(map[string]bool)
	recStack := make(map[string]bool)
	for _, n := range candidates {
		if visited[n] {
			continue
		}
		if cycle := detectCycleDFS(n, edges, visited, recStack, nil); cycle != nil {
			return cycle
		}
	}
	return candidates
}

func detectCycleDFS(name string, edges map[string][]string, visited, recStack map[string]bool, path []string) []string {
	visited[name] = true
	recStack[name] = true
	path = append(path, name)

	deps := append([]string(nil), edges[name]...)
	sort.Strings(deps)
	for _, dep := range deps {
		if !visited[dep] {
			if cycle := detectCycleDFS(dep, edges, visited, recStack, path); cycle != nil {
				return cycle
			}
		} else if recStack[dep] {
			for i, p := range path {
				if p == dep {
					cycle := make([]string, len(path)-i+1)
					copy(cycle, path[i:])
					cycle[len(cycle)-1] = dep
					return cycle
				}
			}
		}
	}

	recStack[name] = false
	return nil
}

func appendUnique(list []string, name string) []string {
	for _, n := range list {
		if n == name {
			return list
		}
	}
	return append(list, name)
}
