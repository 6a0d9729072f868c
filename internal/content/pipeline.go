// Package content builds the payload served for an asset path: it resolves
// the contributing files, reads and transforms them, and memoizes the result.
package content

import (
	"os"
	"strings"
	"sync"

	"github.com/conneroisu/assetpipe/internal/assets"
	pipeerrors "github.com/conneroisu/assetpipe/internal/errors"
)

// Transformer rewrites textual content of one mime type.
type Transformer interface {
	Name() string
	Transform(content string) (string, error)
}

// Pipeline reads files and supplies the transformers for a mime type.
type Pipeline interface {
	ReadContents(file *assets.AssetFile) (string, error)
	TransformersFor(mime *assets.MimeType) []Transformer
}

// FilePipeline reads assets from disk and applies registered transformers.
type FilePipeline struct {
	mu           sync.RWMutex
	transformers map[string][]Transformer
}

// NewPipeline creates a pipeline without transformers.
func NewPipeline() *FilePipeline {
	return &FilePipeline{transformers: make(map[string][]Transformer)}
}

// AddTransformer registers t for a content type.
func (p *FilePipeline) AddTransformer(mimeType string, t Transformer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.transformers[mimeType] = append(p.transformers[mimeType], t)
}

// ReadContents reads a file from disk.
func (p *FilePipeline) ReadContents(file *assets.AssetFile) (string, error) {
	data, err := os.ReadFile(file.FullPath)
	if err != nil {
		return "", pipeerrors.NewIOError(pipeerrors.ErrCodeFileRead, "cannot read asset "+file.Name, err)
	}
	return string(data), nil
}

// TransformersFor returns the transformers of a mime type in registration
// order.
func (p *FilePipeline) TransformersFor(mime *assets.MimeType) []Transformer {
	if mime == nil {
		return nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	list := p.transformers[mime.Value]
	out := make([]Transformer, len(list))
	copy(out, list)
	return out
}

// TransformerNames joins the names of the transformers for a mime type.
func TransformerNames(p Pipeline, mime *assets.MimeType) string {
	var names []string
	for _, t := range p.TransformersFor(mime) {
		names = append(names, t.Name())
	}
	return strings.Join(names, "+")
}
