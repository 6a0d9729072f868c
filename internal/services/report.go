package services

import (
	"sort"
)

// AssetEntry describes one logical asset.
type AssetEntry struct {
	Name       string   `json:"name" yaml:"name"`
	MimeType   string   `json:"mime_type" yaml:"mime_type"`
	Provenance string   `json:"provenance" yaml:"provenance"`
	Path       string   `json:"path" yaml:"path"`
	Packages   []string `json:"packages,omitempty" yaml:"packages,omitempty"`
}

// SetEntry describes one declared set and how it compiled.
type SetEntry struct {
	Name     string   `json:"name" yaml:"name"`
	Members  []string `json:"members" yaml:"members"`
	Compiled []string `json:"compiled,omitempty" yaml:"compiled,omitempty"`
	Error    string   `json:"error,omitempty" yaml:"error,omitempty"`
}

// ConflictEntry is an asset name two packages contributed at equal rank.
type ConflictEntry struct {
	Name     string   `json:"name" yaml:"name"`
	Packages []string `json:"packages" yaml:"packages"`
}

// CombinationEntry is a combination some plan uses.
type CombinationEntry struct {
	Name  string   `json:"name" yaml:"name"`
	Files []string `json:"files" yaml:"files"`
}

// ResourceEntry links a resource hash to the files that produced it.
type ResourceEntry struct {
	Hash  string   `json:"hash" yaml:"hash"`
	Files []string `json:"files" yaml:"files"`
}

// Report is a snapshot of a bootstrapped pipeline.
type Report struct {
	Assets       []AssetEntry       `json:"assets" yaml:"assets"`
	Sets         []SetEntry         `json:"sets" yaml:"sets"`
	Conflicts    []ConflictEntry    `json:"conflicts,omitempty" yaml:"conflicts,omitempty"`
	Combinations []CombinationEntry `json:"combinations,omitempty" yaml:"combinations,omitempty"`
	Resources    []ResourceEntry    `json:"resources,omitempty" yaml:"resources,omitempty"`
}

// Healthy reports whether every set compiled and no name was contested.
func (r *Report) Healthy() bool {
	if len(r.Conflicts) > 0 {
		return false
	}
	for _, set := range r.Sets {
		if set.Error != "" {
			return false
		}
	}
	return true
}

// FailedSets returns the sets that did not compile.
func (r *Report) FailedSets() []SetEntry {
	var out []SetEntry
	for _, set := range r.Sets {
		if set.Error != "" {
			out = append(out, set)
		}
	}
	return out
}

// Report snapshots the pipeline. Assets are sorted by name, sets keep their
// declaration order.
func (p *Pipeline) Report() *Report {
	r := &Report{}

	for _, a := range p.Files.Assets() {
		entry := AssetEntry{Name: a.Name, Packages: a.Packages()}
		if a.MimeType != nil {
			entry.MimeType = a.MimeType.String()
		}
		if f := a.File(); f != nil {
			entry.Path = f.FullPath
		}
		if len(entry.Packages) > 0 {
			entry.Provenance = entry.Packages[0]
		}
		r.Assets = append(r.Assets, entry)
	}
	sort.Slice(r.Assets, func(i, j int) bool { return r.Assets[i].Name < r.Assets[j].Name })

	for _, name := range p.Graph.SetNames() {
		entry := SetEntry{Name: name, Members: p.Graph.SetMembers(name)}
		if compiled, ok := p.Graph.CompiledSet(name); ok {
			entry.Compiled = compiled
		}
		if err := p.Graph.SetError(name); err != nil {
			entry.Error = err.Error()
		}
		r.Sets = append(r.Sets, entry)
	}

	for _, c := range p.Conflicts {
		r.Conflicts = append(r.Conflicts, ConflictEntry{Name: c.Name, Packages: c.Packages})
	}

	for _, c := range p.Combinations.All() {
		r.Combinations = append(r.Combinations, CombinationEntry{Name: c.Name, Files: c.Names()})
	}

	if p.Content != nil {
		for _, hash := range p.Content.Resources() {
			entry := ResourceEntry{Hash: hash}
			for _, f := range p.Content.FilesForResource(hash) {
				entry.Files = append(entry.Files, f.Name)
			}
			r.Resources = append(r.Resources, entry)
		}
	}

	return r
}
