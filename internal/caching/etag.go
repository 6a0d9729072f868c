// Package caching holds the http caching collaborators of the asset writer:
// ETag generation, cache headers and the resource content cache.
package caching

import (
	"github.com/conneroisu/assetpipe/internal/assets"
)

// ETagGenerator derives an ETag from the files that produced a response.
type ETagGenerator interface {
	Create(files []*assets.AssetFile) string
}

// BlakeETagGenerator hashes name, size and modification time of every file.
// The result only changes when a contributing file changes.
type BlakeETagGenerator struct{}

// NewETagGenerator returns the default generator.
func NewETagGenerator() *BlakeETagGenerator {
	return &BlakeETagGenerator{}
}

// Create returns a quoted, strong ETag.
func (BlakeETagGenerator) Create(files []*assets.AssetFile) string {
	return `"` + assets.FingerprintFor(files) + `"`
}
