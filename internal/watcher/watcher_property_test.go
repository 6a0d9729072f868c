//go:build property
// +build property

package watcher

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestCoalesceProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("one event per path, last one wins", prop.ForAll(
		func(paths []int, types []int) bool {
			events := make([]ChangeEvent, len(paths))
			last := make(map[string]EventType)
			for i, p := range paths {
				typ := EventTypeModified
				if i < len(types) {
					typ = EventType(types[i] % 4)
				}
				path := fmt.Sprintf("file%d.js", p)
				events[i] = ChangeEvent{Type: typ, Path: path}
				last[path] = typ
			}

			out := Coalesce(events)
			if len(out) != len(last) {
				return false
			}
			for i, e := range out {
				if last[e.Path] != e.Type {
					return false
				}
				if i > 0 && out[i-1].Path >= e.Path {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 10)),
		gen.SliceOf(gen.IntRange(0, 3)),
	))

	properties.TestingRun(t)
}
