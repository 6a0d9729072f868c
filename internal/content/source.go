package content

import (
	"fmt"
	"strings"

	"github.com/conneroisu/assetpipe/internal/assets"
	pipeerrors "github.com/conneroisu/assetpipe/internal/errors"
)

// ContentSource produces the text of one served asset path.
type ContentSource interface {
	// Files are the contributing files in output order.
	Files() []*assets.AssetFile
	MimeType() *assets.MimeType
	GetContent(pipeline Pipeline) (string, error)
}

// FileRead is the content of a single file.
type FileRead struct {
	file *assets.AssetFile
}

// NewFileRead creates a single file source.
func NewFileRead(file *assets.AssetFile) *FileRead {
	return &FileRead{file: file}
}

func (s *FileRead) Files() []*assets.AssetFile { return []*assets.AssetFile{s.file} }
func (s *FileRead) MimeType() *assets.MimeType { return s.file.MimeType }

func (s *FileRead) GetContent(pipeline Pipeline) (string, error) {
	return pipeline.ReadContents(s.file)
}

func (s *FileRead) String() string {
	return "FileRead:" + s.file.Name
}

// Combination concatenates its inner sources, separated by a newline.
type Combination struct {
	mime    *assets.MimeType
	sources []ContentSource
}

// NewCombination creates a combination of one source per file.
func NewCombination(mime *assets.MimeType, files []*assets.AssetFile) *Combination {
	c := &Combination{mime: mime}
	for _, f := range files {
		c.sources = append(c.sources, NewFileRead(f))
	}
	return c
}

func (c *Combination) Files() []*assets.AssetFile {
	var out []*assets.AssetFile
	for _, s := range c.sources {
		out = append(out, s.Files()...)
	}
	return out
}

func (c *Combination) MimeType() *assets.MimeType { return c.mime }

func (c *Combination) GetContent(pipeline Pipeline) (string, error) {
	parts := make([]string, 0, len(c.sources))
	for _, s := range c.sources {
		text, err := s.GetContent(pipeline)
		if err != nil {
			return "", err
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, "\n"), nil
}

func (c *Combination) String() string {
	names := make([]string, 0, len(c.sources))
	for _, f := range c.Files() {
		names = append(names, f.Name)
	}
	return "Combination:" + strings.Join(names, ",")
}

// Transform runs the pipeline's transformers for its mime type over the
// inner source.
type Transform struct {
	inner ContentSource
}

// NewTransform wraps inner.
func NewTransform(inner ContentSource) *Transform {
	return &Transform{inner: inner}
}

func (t *Transform) Files() []*assets.AssetFile { return t.inner.Files() }
func (t *Transform) MimeType() *assets.MimeType { return t.inner.MimeType() }

func (t *Transform) GetContent(pipeline Pipeline) (string, error) {
	text, err := t.inner.GetContent(pipeline)
	if err != nil {
		return "", err
	}
	for _, transformer := range pipeline.TransformersFor(t.MimeType()) {
		text, err = transformer.Transform(text)
		if err != nil {
			return "", pipeerrors.NewBuildError(pipeerrors.ErrCodeContentBuild,
				fmt.Sprintf("transformer %s failed", transformer.Name()), err)
		}
	}
	return text, nil
}

func (t *Transform) String() string {
	return fmt.Sprintf("Transform(%v)", t.inner)
}

// emptySource resolves no files.
type emptySource struct {
	mime *assets.MimeType
}

func (e emptySource) Files() []*assets.AssetFile          { return nil }
func (e emptySource) MimeType() *assets.MimeType          { return e.mime }
func (e emptySource) GetContent(Pipeline) (string, error) { return "", nil }
