package assets

import (
	"path"
	"strings"
)

// ApplicationProvenance marks files discovered under the application root.
const ApplicationProvenance = "application"

// AssetSource is one contribution to a logical asset: a physical file or an
// external url, owned by a package.
type AssetSource struct {
	Package string
	File    *AssetFile
	Url     string
}

// ForUrl creates a source served from an external location.
func ForUrl(pkg, url string) AssetSource {
	return AssetSource{Package: pkg, Url: url}
}

// IsExternal reports whether the source is served from a url.
func (s AssetSource) IsExternal() bool {
	return s.File == nil && s.Url != ""
}

// Asset is a named, mime typed resource aggregating every contribution made
// to that name. Sources[0] is the contribution that won precedence.
type Asset struct {
	Name     string
	MimeType *MimeType
	Sources  []AssetSource
}

// File returns the winning physical file, if any.
func (a *Asset) File() *AssetFile {
	for _, s := range a.Sources {
		if s.File != nil {
			return s.File
		}
	}
	return nil
}

// Extension is the last extension of the name, ".js" for "jquery.min.js".
func (a *Asset) Extension() string {
	return path.Ext(a.Name)
}

// AllExtensions is everything after the first dot of the base name,
// ".min.js" for "jquery.min.js".
func (a *Asset) AllExtensions() string {
	base := path.Base(a.Name)
	if i := strings.Index(base, "."); i > 0 {
		return base[i:]
	}
	return ""
}

// LibraryName is the base name with every extension removed.
func (a *Asset) LibraryName() string {
	base := path.Base(a.Name)
	if i := strings.Index(base, "."); i > 0 {
		return base[:i]
	}
	return base
}

// Packages lists the providers of this asset in precedence order.
func (a *Asset) Packages() []string {
	out := make([]string, 0, len(a.Sources))
	for _, s := range a.Sources {
		out = append(out, s.Package)
	}
	return out
}
