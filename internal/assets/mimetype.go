package assets

import (
	"sort"
	"strings"
	"sync"
)

// Content type values of the built-in mime types.
const (
	ContentTypeJavascript = "application/javascript"
	ContentTypeCss        = "text/css"
	ContentTypeGif        = "image/gif"
	ContentTypeJpg        = "image/jpeg"
	ContentTypeBmp        = "image/bmp"
	ContentTypePng        = "image/png"
	ContentTypeTrueType   = "font/ttf"
	ContentTypeWoff       = "font/woff"
	ContentTypeWoff2      = "font/woff2"
)

// AssetFolder is the category segment of an asset url, as in
// _content/<folder>/<name>.
type AssetFolder string

const (
	FolderScripts AssetFolder = "scripts"
	FolderStyles  AssetFolder = "styles"
	FolderImages  AssetFolder = "images"
	FolderFonts   AssetFolder = "fonts"
)

// AllFolders lists every asset folder.
func AllFolders() []AssetFolder {
	return []AssetFolder{FolderScripts, FolderStyles, FolderImages, FolderFonts}
}

// ParseFolder returns the folder named by s.
func ParseFolder(s string) (AssetFolder, bool) {
	for _, f := range AllFolders() {
		if strings.EqualFold(string(f), s) {
			return f, true
		}
	}
	return "", false
}

// MimeType is a content type together with the file extensions that map to
// it. Binary mime types bypass the textual content pipeline.
type MimeType struct {
	Value  string
	Folder AssetFolder
	Binary bool

	mu         sync.RWMutex
	extensions []string
}

// NewMimeType creates a mime type with its initial extensions.
func NewMimeType(value string, folder AssetFolder, binary bool, extensions ...string) *MimeType {
	m := &MimeType{Value: value, Folder: folder, Binary: binary}
	for _, ext := range extensions {
		m.addExtension(ext)
	}
	return m
}

func (m *MimeType) String() string {
	if m == nil {
		return ""
	}
	return m.Value
}

// Extensions returns the extensions registered for this mime type.
func (m *MimeType) Extensions() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.extensions))
	copy(out, m.extensions)
	return out
}

// DefaultExtension is the first registered extension, used to name
// combinations.
func (m *MimeType) DefaultExtension() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.extensions) == 0 {
		return ""
	}
	return m.extensions[0]
}

// HasExtension reports whether ext is registered for this mime type.
func (m *MimeType) HasExtension(ext string) bool {
	ext = normalizeExtension(ext)
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.extensions {
		if e == ext {
			return true
		}
	}
	return false
}

func (m *MimeType) addExtension(ext string) {
	ext = normalizeExtension(ext)
	if ext == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.extensions {
		if e == ext {
			return
		}
	}
	m.extensions = append(m.extensions, ext)
}

func normalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// MimeTypes is the registry of mime types recognized as assets. Each
// settings object owns its own registry, so extension changes made while
// configuring one application never leak into another.
type MimeTypes struct {
	mu    sync.RWMutex
	types []*MimeType
	byExt map[string]*MimeType
}

// NewMimeTypes creates an empty registry.
func NewMimeTypes() *MimeTypes {
	return &MimeTypes{byExt: make(map[string]*MimeType)}
}

// DefaultMimeTypes creates a registry holding the built-in asset types.
func DefaultMimeTypes() *MimeTypes {
	r := NewMimeTypes()
	r.Register(NewMimeType(ContentTypeTrueType, FolderFonts, true, ".ttf"))
	r.Register(NewMimeType(ContentTypeWoff, FolderFonts, true, ".woff"))
	r.Register(NewMimeType(ContentTypeWoff2, FolderFonts, true, ".woff2"))
	r.Register(NewMimeType(ContentTypeGif, FolderImages, true, ".gif"))
	r.Register(NewMimeType(ContentTypeJpg, FolderImages, true, ".jpg", ".jpeg"))
	r.Register(NewMimeType(ContentTypeBmp, FolderImages, true, ".bmp"))
	r.Register(NewMimeType(ContentTypePng, FolderImages, true, ".png"))
	r.Register(NewMimeType(ContentTypeJavascript, FolderScripts, false, ".js"))
	r.Register(NewMimeType(ContentTypeCss, FolderStyles, false, ".css"))
	return r
}

// Register adds a mime type. Registering the same content type twice merges
// the extensions into the existing entry.
func (r *MimeTypes) Register(m *MimeType) *MimeType {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.types {
		if existing.Value == m.Value {
			for _, ext := range m.Extensions() {
				existing.addExtension(ext)
				r.byExt[ext] = existing
			}
			return existing
		}
	}

	r.types = append(r.types, m)
	for _, ext := range m.Extensions() {
		r.byExt[ext] = m
	}
	return m
}

// AddExtension maps ext onto the mime type with the given content type.
func (r *MimeTypes) AddExtension(value, ext string) bool {
	m := r.Lookup(value)
	if m == nil {
		return false
	}
	ext = normalizeExtension(ext)
	m.addExtension(ext)

	r.mu.Lock()
	r.byExt[ext] = m
	r.mu.Unlock()
	return true
}

// Lookup finds a mime type by content type value.
func (r *MimeTypes) Lookup(value string) *MimeType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.types {
		if m.Value == value {
			return m
		}
	}
	return nil
}

// Javascript returns the registered script mime type.
func (r *MimeTypes) Javascript() *MimeType { return r.Lookup(ContentTypeJavascript) }

// Css returns the registered stylesheet mime type.
func (r *MimeTypes) Css() *MimeType { return r.Lookup(ContentTypeCss) }

// All returns every registered mime type in registration order.
func (r *MimeTypes) All() []*MimeType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*MimeType, len(r.types))
	copy(out, r.types)
	return out
}

// ByFileName resolves the mime type of a file name from its extensions,
// preferring the longest registered compound extension ("a.min.js" tries
// ".min.js" before ".js").
func (r *MimeTypes) ByFileName(name string) *MimeType {
	base := name
	if i := strings.LastIndex(base, "/"); i >= 0 {
		base = base[i+1:]
	}
	base = strings.ToLower(base)

	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := 0; i < len(base); i++ {
		if base[i] != '.' || i == 0 {
			continue
		}
		if m, ok := r.byExt[base[i:]]; ok {
			return m
		}
	}
	return nil
}

// ExtensionsFor returns the sorted extension list of every registered type.
func (r *MimeTypes) ExtensionsFor() map[string][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string][]string, len(r.types))
	for _, m := range r.types {
		exts := m.Extensions()
		sort.Strings(exts)
		out[m.Value] = exts
	}
	return out
}
