package assets

import (
	"strings"
	"sync"
)

// DefaultRootedFolder is stripped from asset names, so that
// content/scripts/jquery.js is named jquery.js.
const DefaultRootedFolder = "content"

// Settings is the configuration surface of the pipeline: recognized mime
// types and their extensions, and the rooted folder names stripped during
// name normalization. It is mutated only while bootstrapping.
type Settings struct {
	mimeTypes *MimeTypes

	mu            sync.RWMutex
	rootedFolders []string
}

// NewSettings returns settings with the default asset mime types and the
// default rooted folder.
func NewSettings() *Settings {
	return &Settings{
		mimeTypes:     DefaultMimeTypes(),
		rootedFolders: []string{DefaultRootedFolder},
	}
}

// MimeTypes returns the registry owned by these settings.
func (s *Settings) MimeTypes() *MimeTypes {
	return s.mimeTypes
}

// ExtensionIsJavascript maps ext to the javascript mime type.
func (s *Settings) ExtensionIsJavascript(ext string) {
	s.mimeTypes.AddExtension(ContentTypeJavascript, ext)
}

// ExtensionIsStylesheet maps ext to the stylesheet mime type.
func (s *Settings) ExtensionIsStylesheet(ext string) {
	s.mimeTypes.AddExtension(ContentTypeCss, ext)
}

// MimetypeIsAsset registers an additional asset mime type.
func (s *Settings) MimetypeIsAsset(m *MimeType) *MimeType {
	return s.mimeTypes.Register(m)
}

// RootedFolder adds a folder name whose prefix is stripped from asset names.
func (s *Settings) RootedFolder(folder string) {
	folder = strings.Trim(strings.ReplaceAll(folder, "\\", "/"), "/")
	if folder == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.rootedFolders {
		if strings.EqualFold(f, folder) {
			return
		}
	}
	s.rootedFolders = append(s.rootedFolders, folder)
}

// RootedFolders returns the configured rooted folders.
func (s *Settings) RootedFolders() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.rootedFolders))
	copy(out, s.rootedFolders)
	return out
}

// AssetName converts a path relative to an application or package root into
// the logical asset name. A leading "<rooted>/<folder>/" prefix is removed,
// as is a bare "<rooted>/" prefix.
func (s *Settings) AssetName(relativePath string) string {
	name := NormalizeName(relativePath)

	for _, rooted := range s.RootedFolders() {
		prefix := NormalizeName(rooted) + "/"
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		rest := strings.TrimPrefix(name, prefix)
		if i := strings.Index(rest, "/"); i > 0 {
			if _, ok := ParseFolder(rest[:i]); ok {
				return rest[i+1:]
			}
		}
		return rest
	}

	return name
}
