package assets

import (
	"sort"

	pipeerrors "github.com/conneroisu/assetpipe/internal/errors"
)

// DiscoveredFile is one candidate file reported by discovery.
type DiscoveredFile struct {
	// RelativePath is relative to the application or package root.
	RelativePath string
	// Provenance is ApplicationProvenance or a package name.
	Provenance string
	FullPath   string
}

// FileLookup finds a file by logical name.
type FileLookup interface {
	Find(name string) *AssetFile
}

// Precedence ranks of a contribution; the highest rank wins a name.
const (
	rankPackage = iota
	rankOverride
	rankApplication
)

// AssetFileGraph indexes every discovered file by logical name. It is built
// once and read-only afterwards.
type AssetFileGraph struct {
	settings  *Settings
	files     map[string]*AssetFile
	assets    map[string]*Asset
	conflicts []*pipeerrors.ConflictError
}

type contribution struct {
	file *AssetFile
	rank int
}

// BuildFileGraph indexes discovered files. The application always wins a
// name over any package, and a package listed in overrides wins over one
// that is not. Two contributions of equal rank are a conflict: the name is
// left out of the graph and reported by Conflicts.
func BuildFileGraph(settings *Settings, discovered []DiscoveredFile, overrides []string) *AssetFileGraph {
	if settings == nil {
		settings = NewSettings()
	}
	overriding := make(map[string]bool, len(overrides))
	for _, o := range overrides {
		overriding[o] = true
	}

	g := &AssetFileGraph{
		settings: settings,
		files:    make(map[string]*AssetFile),
		assets:   make(map[string]*Asset),
	}

	byName := make(map[string][]contribution)
	var order []string
	for _, d := range discovered {
		mime := settings.MimeTypes().ByFileName(d.RelativePath)
		if mime == nil {
			continue
		}
		name := settings.AssetName(d.RelativePath)
		if name == "" {
			continue
		}

		file := &AssetFile{Name: name, FullPath: d.FullPath, MimeType: mime}
		rank := rankApplication
		if d.Provenance != "" && d.Provenance != ApplicationProvenance {
			file.Package = d.Provenance
			rank = rankPackage
			if overriding[d.Provenance] {
				rank = rankOverride
			}
		}

		if _, seen := byName[name]; !seen {
			order = append(order, name)
		}
		byName[name] = append(byName[name], contribution{file: file, rank: rank})
	}

	for _, name := range order {
		g.resolve(name, byName[name])
	}
	sort.Slice(g.conflicts, func(i, j int) bool {
		return g.conflicts[i].Name < g.conflicts[j].Name
	})

	return g
}

func (g *AssetFileGraph) resolve(name string, contributions []contribution) {
	sort.SliceStable(contributions, func(i, j int) bool {
		return contributions[i].rank > contributions[j].rank
	})

	winner := contributions[0]
	asset := &Asset{Name: name, MimeType: winner.file.MimeType}
	for _, c := range contributions {
		asset.Sources = append(asset.Sources, AssetSource{Package: provenanceOf(c.file), File: c.file})
	}

	if len(contributions) > 1 && contributions[1].rank == winner.rank {
		var packages []string
		for _, c := range contributions {
			if c.rank == winner.rank {
				packages = append(packages, provenanceOf(c.file))
			}
		}
		sort.Strings(packages)
		g.conflicts = append(g.conflicts, &pipeerrors.ConflictError{Name: name, Packages: packages})
		return
	}

	g.files[name] = winner.file
	g.assets[name] = asset
}

func provenanceOf(f *AssetFile) string {
	if f.Package == "" {
		return ApplicationProvenance
	}
	return f.Package
}

// Settings returns the settings the graph was built with.
func (g *AssetFileGraph) Settings() *Settings {
	return g.settings
}

// Find resolves a logical name, case-insensitively.
func (g *AssetFileGraph) Find(name string) *AssetFile {
	return g.files[NormalizeName(name)]
}

// FindPath resolves a requested path. A name that is not found on its own is
// retried qualified by the path's folder, for applications that keep assets
// in scripts/ or styles/ directly under the root.
func (g *AssetFileGraph) FindPath(p *AssetPath) *AssetFile {
	if f := g.Find(p.Name); f != nil {
		return f
	}
	if p.Folder != "" {
		return g.Find(p.FullName())
	}
	return nil
}

// FindAsset returns the logical asset for a name.
func (g *AssetFileGraph) FindAsset(name string) *Asset {
	return g.assets[NormalizeName(name)]
}

// Files returns every resolved file sorted by name.
func (g *AssetFileGraph) Files() []*AssetFile {
	out := make([]*AssetFile, 0, len(g.files))
	for _, f := range g.files {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Assets returns every resolved asset sorted by name.
func (g *AssetFileGraph) Assets() []*Asset {
	out := make([]*Asset, 0, len(g.assets))
	for _, a := range g.assets {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Conflicts returns the names that were left out because of equal-rank
// contributions.
func (g *AssetFileGraph) Conflicts() []*pipeerrors.ConflictError {
	out := make([]*pipeerrors.ConflictError, len(g.conflicts))
	copy(out, g.conflicts)
	return out
}
