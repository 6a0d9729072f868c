package assets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{input: "jquery.js", expected: "jquery.js"},
		{input: "/scripts/JQuery.JS", expected: "scripts/jquery.js"},
		{input: `lib\\ext\\Grid.js`, expected: "lib/ext/grid.js"},
		{input: "a//b/./c.css", expected: "a/b/c.css"},
		{input: "  ", expected: ""},
		{input: "/", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeName(tt.input))
		})
	}
}

func TestParseAssetPath(t *testing.T) {
	mimes := DefaultMimeTypes()

	tests := []struct {
		name    string
		raw     string
		folder  AssetFolder
		asset   string
		mime    string
		binary  bool
		wantErr bool
	}{
		{name: "script", raw: "_content/scripts/jquery.js", folder: FolderScripts, asset: "jquery.js", mime: ContentTypeJavascript},
		{name: "leading slash", raw: "/_content/styles/Site.css", folder: FolderStyles, asset: "site.css", mime: ContentTypeCss},
		{name: "image is binary", raw: "_content/images/icon.png", folder: FolderImages, asset: "icon.png", mime: ContentTypePng, binary: true},
		{name: "nested name", raw: "_content/scripts/lib/grid.js", folder: FolderScripts, asset: "lib/grid.js", mime: ContentTypeJavascript},
		{name: "no folder", raw: "_content/readme.js", asset: "readme.js", mime: ContentTypeJavascript},
		{name: "query string dropped", raw: "_content/fonts/a.woff2?v=2", folder: FolderFonts, asset: "a.woff2", mime: ContentTypeWoff2, binary: true},
		{name: "unknown extension", raw: "_content/scripts/something", folder: FolderScripts, asset: "something"},
		{name: "traversal", raw: "_content/scripts/../../etc/passwd", wantErr: true},
		{name: "empty", raw: "_content/", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ParseAssetPath(tt.raw, mimes)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.folder, p.Folder)
			assert.Equal(t, tt.asset, p.Name)
			assert.Equal(t, tt.mime, p.MimeType.String())
			assert.Equal(t, tt.binary, p.IsBinary())
			assert.Empty(t, p.ResourceHash)
		})
	}
}

func TestAssetPath_FullNameAndUrl(t *testing.T) {
	p := NewAssetPath(FolderScripts, "Jquery.js", nil)
	assert.Equal(t, "scripts/jquery.js", p.FullName())
	assert.Equal(t, "_content/scripts/jquery.js", p.Url())
	assert.False(t, p.IsBinary())
}

func TestAssetFile_Equal(t *testing.T) {
	a := &AssetFile{Name: "a.js", FullPath: "/one/a.js"}
	b := &AssetFile{Name: "a.js", FullPath: "/two/a.js"}
	c := NewAssetFile("B.js")

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.Equal(t, "b.js", c.Name)
}

func TestResourceHashFor(t *testing.T) {
	files := []*AssetFile{NewAssetFile("a.js"), NewAssetFile("b.js")}

	first := ResourceHashFor(files)
	assert.Len(t, first, 16)
	assert.Equal(t, first, ResourceHashFor(files))
	assert.NotEqual(t, first, ResourceHashFor(files[:1]))
	assert.NotEqual(t, first, ResourceHashFor([]*AssetFile{files[1], files[0]}))
}

func TestMimeTypes_ByFileName(t *testing.T) {
	mimes := DefaultMimeTypes()

	tests := []struct {
		name     string
		expected string
	}{
		{name: "a.js", expected: ContentTypeJavascript},
		{name: "lib/jquery.min.js", expected: ContentTypeJavascript},
		{name: "SITE.CSS", expected: ContentTypeCss},
		{name: "photo.jpeg", expected: ContentTypeJpg},
		{name: "photo.jpg", expected: ContentTypeJpg},
		{name: "font.woff", expected: ContentTypeWoff},
		{name: "readme.txt", expected: ""},
		{name: ".js", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, mimes.ByFileName(tt.name).String())
		})
	}
}

func TestSettings_ExtensionsAreScopedToSettings(t *testing.T) {
	one := NewSettings()
	two := NewSettings()

	one.ExtensionIsJavascript("coffee")
	one.ExtensionIsStylesheet(".less")

	assert.Equal(t, ContentTypeJavascript, one.MimeTypes().ByFileName("app.coffee").String())
	assert.Equal(t, ContentTypeCss, one.MimeTypes().ByFileName("site.less").String())
	assert.True(t, one.MimeTypes().Javascript().HasExtension(".coffee"))

	assert.Nil(t, two.MimeTypes().ByFileName("app.coffee"))
	assert.False(t, two.MimeTypes().Javascript().HasExtension(".coffee"))
}

func TestSettings_MimetypeIsAsset(t *testing.T) {
	s := NewSettings()
	svg := s.MimetypeIsAsset(NewMimeType("image/svg+xml", FolderImages, false, "svg"))

	assert.Same(t, svg, s.MimeTypes().ByFileName("logo.svg"))
	assert.Equal(t, ".svg", svg.DefaultExtension())
}

func TestSettings_AssetName(t *testing.T) {
	s := NewSettings()
	s.RootedFolder("wwwroot/")

	tests := []struct {
		path     string
		expected string
	}{
		{path: "content/scripts/jquery.js", expected: "jquery.js"},
		{path: "Content/Styles/Site.css", expected: "site.css"},
		{path: "content/scripts/lib/grid.js", expected: "lib/grid.js"},
		{path: "content/misc.js", expected: "misc.js"},
		{path: "wwwroot/images/icon.png", expected: "icon.png"},
		{path: "scripts/app.js", expected: "scripts/app.js"},
		{path: `content\scripts\win.js`, expected: "win.js"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.expected, s.AssetName(tt.path))
		})
	}

	assert.Equal(t, []string{"content", "wwwroot"}, s.RootedFolders())
}

func TestAsset_NameParts(t *testing.T) {
	a := &Asset{Name: "lib/jquery.min.js"}
	assert.Equal(t, ".js", a.Extension())
	assert.Equal(t, ".min.js", a.AllExtensions())
	assert.Equal(t, "jquery", a.LibraryName())

	src := ForUrl("cdn", "https://code.jquery.com/jquery.js")
	assert.True(t, src.IsExternal())
	assert.Equal(t, "cdn", src.Package)
}
