//go:build property
// +build property

package assets

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestDependencyOrderingProperties checks ordering guarantees of the finder.
func TestDependencyOrderingProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	// Property: names without dependencies come back sorted and unique
	properties.Property("alphabetic without dependencies", prop.ForAll(
		func(stems []string) bool {
			var names []string
			for _, s := range stems {
				names = append(names, s+".js")
			}

			result, err := NewDependencyFinder(NewAssetGraph(), nil).CompileDependenciesAndOrder(names)
			if err != nil {
				return false
			}

			unique := make(map[string]bool)
			for _, n := range names {
				unique[NormalizeName(n)] = true
			}
			expected := make([]string, 0, len(unique))
			for n := range unique {
				expected = append(expected, n)
			}
			sort.Strings(expected)

			return strings.Join(result, ",") == strings.Join(expected, ",")
		},
		gen.SliceOf(gen.RegexMatch(`^[a-z][a-z0-9-]{0,8}$`)),
	))

	// Property: a chain of dependencies is always emitted dependencies first
	properties.Property("dependencies precede dependents", prop.ForAll(
		func(length int) bool {
			g := NewAssetGraph()
			for i := 1; i < length; i++ {
				g.Dependency(fmt.Sprintf("n%02d.js", i-1), fmt.Sprintf("n%02d.js", i))
			}

			result, err := NewDependencyFinder(g, nil).CompileDependenciesAndOrder([]string{"n00.js"})
			if err != nil || len(result) != length {
				return false
			}
			for i, name := range result {
				if name != fmt.Sprintf("n%02d.js", length-1-i) {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 30),
	))

	// Property: closing any chain into a loop is reported as a cycle
	properties.Property("cycles are detected", prop.ForAll(
		func(length int) bool {
			g := NewAssetGraph()
			for i := 0; i < length; i++ {
				g.Dependency(fmt.Sprintf("n%02d.js", i), fmt.Sprintf("n%02d.js", (i+1)%length))
			}

			_, err := NewDependencyFinder(g, nil).CompileDependenciesAndOrder([]string{"n00.js"})
			return err != nil && strings.Contains(err.Error(), "cycle")
		},
		gen.IntRange(1, 20),
	))

	properties.TestingRun(t)
}

// TestWarmUpPartitionProperties checks that mixed sets split by mime type
// without reordering.
func TestWarmUpPartitionProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("partition keeps relative order", prop.ForAll(
		func(stems []string, kinds []bool) bool {
			var names []string
			seen := make(map[string]bool)
			for i, s := range stems {
				ext := ".css"
				if i < len(kinds) && kinds[i] {
					ext = ".js"
				}
				if seen[s] {
					continue
				}
				seen[s] = true
				names = append(names, s+ext)
			}

			graph := NewAssetGraph()
			graph.AddToSet("mixed", "x")
			finder := &stubFinder{results: map[string][]string{"mixed": names}}
			plans := &stubPlans{}

			policy := NewWarmUpSetsForCombinationPolicy(plans, finder, DefaultMimeTypes())
			if err := policy.Apply(context.Background(), nil, nil, graph); err != nil {
				return false
			}

			var js, css []string
			for _, n := range names {
				if strings.HasSuffix(n, ".js") {
					js = append(js, n)
				} else {
					css = append(css, n)
				}
			}

			for _, call := range plans.calls {
				expected := css
				if call.mime == ContentTypeJavascript {
					expected = js
				}
				if strings.Join(call.names, ",") != strings.Join(expected, ",") {
					return false
				}
			}
			groups := 0
			if len(js) > 0 {
				groups++
			}
			if len(css) > 0 {
				groups++
			}
			return len(plans.calls) == groups
		},
		gen.SliceOf(gen.RegexMatch(`^[a-z]{1,6}$`)),
		gen.SliceOf(gen.Bool()),
	))

	properties.TestingRun(t)
}
