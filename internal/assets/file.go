// Package assets holds the asset model and the configuration-time graph of
// the pipeline: discovered files, sets, aliases, dependencies, ordering
// rules, combination policies and the warm-up pass.
package assets

import (
	"encoding/hex"
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/zeebo/blake3"
	"golang.org/x/text/cases"

	pipeerrors "github.com/conneroisu/assetpipe/internal/errors"
)

// ContentPrefix is the url segment every asset request starts with.
const ContentPrefix = "_content"

// NormalizeName turns a name into its logical form: forward slashes, no
// leading slash, cleaned, case folded.
func NormalizeName(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	name = strings.TrimLeft(name, "/")
	if name == "" {
		return ""
	}
	name = path.Clean(name)
	if name == "." {
		return ""
	}
	// A Caser keeps state, so one is created per call.
	return cases.Fold().String(name)
}

// AssetFile is one physical asset file. Two files are equal when their
// names are equal.
type AssetFile struct {
	Name     string
	FullPath string
	MimeType *MimeType
	// Package is the contributing package, empty for the application.
	Package string
}

// NewAssetFile creates a file with a normalized name.
func NewAssetFile(name string) *AssetFile {
	return &AssetFile{Name: NormalizeName(name)}
}

// Equal compares files by name.
func (f *AssetFile) Equal(other *AssetFile) bool {
	if f == nil || other == nil {
		return f == other
	}
	return f.Name == other.Name
}

// Stat returns size and modification time of the file on disk. Files that
// cannot be read report zero values.
func (f *AssetFile) Stat() (int64, time.Time) {
	if f.FullPath == "" {
		return 0, time.Time{}
	}
	info, err := os.Stat(f.FullPath)
	if err != nil {
		return 0, time.Time{}
	}
	return info.Size(), info.ModTime()
}

func (f *AssetFile) String() string {
	if f.Package != "" {
		return fmt.Sprintf("%s (%s)", f.Name, f.Package)
	}
	return f.Name
}

// ResourceHashFor derives the identity of a response from the names of the
// files that produced it.
func ResourceHashFor(files []*AssetFile) string {
	h := blake3.New()
	for _, f := range files {
		_, _ = h.Write([]byte(f.Name))
		_, _ = h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// FingerprintFor hashes name, size and modification time of every file. It
// changes whenever a contributing file is edited on disk.
func FingerprintFor(files []*AssetFile) string {
	h := blake3.New()
	for _, f := range files {
		size, modTime := f.Stat()
		_, _ = h.Write([]byte(f.Name))
		_, _ = h.Write([]byte{'|'})
		_, _ = h.Write([]byte(strconv.FormatInt(size, 10)))
		_, _ = h.Write([]byte{'|'})
		_, _ = h.Write([]byte(strconv.FormatInt(modTime.UnixNano(), 10)))
		_, _ = h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))[:32]
}

// AssetPath is a requested logical path, created per request.
type AssetPath struct {
	Folder AssetFolder
	Name   string
	// ResourceHash is assigned once the content has been resolved and keys
	// the content cache link for this response.
	ResourceHash string
	MimeType     *MimeType
}

// ParseAssetPath parses "_content/<folder>/<name>" (the prefix and the
// folder are optional) into an AssetPath.
func ParseAssetPath(raw string, mimes *MimeTypes) (*AssetPath, error) {
	p := strings.ReplaceAll(raw, "\\", "/")
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	p = strings.Trim(p, "/")

	for _, segment := range strings.Split(p, "/") {
		if segment == ".." {
			return nil, pipeerrors.NewValidationError(pipeerrors.ErrCodeInvalidPath,
				fmt.Sprintf("asset path %q escapes the content root", raw))
		}
	}

	if strings.EqualFold(p, ContentPrefix) {
		p = ""
	} else if len(p) > len(ContentPrefix) && strings.EqualFold(p[:len(ContentPrefix)+1], ContentPrefix+"/") {
		p = p[len(ContentPrefix)+1:]
	}

	ap := &AssetPath{}
	if i := strings.Index(p, "/"); i > 0 {
		if folder, ok := ParseFolder(p[:i]); ok {
			ap.Folder = folder
			p = p[i+1:]
		}
	}

	ap.Name = NormalizeName(p)
	if ap.Name == "" {
		return nil, pipeerrors.NewValidationError(pipeerrors.ErrCodeInvalidPath,
			fmt.Sprintf("asset path %q does not name an asset", raw))
	}
	if mimes != nil {
		ap.MimeType = mimes.ByFileName(ap.Name)
	}

	return ap, nil
}

// NewAssetPath builds a path for a folder and name directly.
func NewAssetPath(folder AssetFolder, name string, mime *MimeType) *AssetPath {
	return &AssetPath{Folder: folder, Name: NormalizeName(name), MimeType: mime}
}

// IsBinary reports whether the path addresses an image or font.
func (p *AssetPath) IsBinary() bool {
	return p.MimeType != nil && p.MimeType.Binary
}

// FullName is the name qualified by its folder.
func (p *AssetPath) FullName() string {
	if p.Folder == "" {
		return p.Name
	}
	return string(p.Folder) + "/" + p.Name
}

// Url renders the request path of this asset.
func (p *AssetPath) Url() string {
	return ContentPrefix + "/" + p.FullName()
}

func (p *AssetPath) String() string {
	return p.FullName()
}
