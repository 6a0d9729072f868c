package caching

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/allegro/bigcache/v3"

	"github.com/conneroisu/assetpipe/internal/assets"
	pipeerrors "github.com/conneroisu/assetpipe/internal/errors"
)

// ContentCacheConfig sizes the content byte store.
type ContentCacheConfig struct {
	// MaxSizeMB caps the store; 0 means unbounded.
	MaxSizeMB int
	// Shards must be a power of two.
	Shards int
}

// DefaultContentCacheConfig returns the default sizing.
func DefaultContentCacheConfig() ContentCacheConfig {
	return ContentCacheConfig{MaxSizeMB: 64, Shards: 64}
}

// AssetContentCache links resource hashes to the files that produced them
// and keeps built content bytes.
type AssetContentCache struct {
	mu    sync.RWMutex
	links map[string][]*assets.AssetFile

	content *bigcache.BigCache
}

// NewAssetContentCache creates the cache. Entries never expire by age; they
// are dropped by Reset or when the size cap evicts them.
func NewAssetContentCache(cfg ContentCacheConfig) (*AssetContentCache, error) {
	if cfg.Shards <= 0 {
		cfg.Shards = DefaultContentCacheConfig().Shards
	}

	bc := bigcache.DefaultConfig(24 * time.Hour)
	bc.Shards = cfg.Shards
	bc.CleanWindow = 0
	bc.HardMaxCacheSize = cfg.MaxSizeMB
	bc.MaxEntriesInWindow = 256
	bc.MaxEntrySize = 8 * 1024
	bc.StatsEnabled = true
	bc.Verbose = false

	store, err := bigcache.New(context.Background(), bc)
	if err != nil {
		return nil, pipeerrors.NewInternalError(pipeerrors.ErrCodeContentCacheInit, "cannot create content cache", err)
	}

	return &AssetContentCache{
		links:   make(map[string][]*assets.AssetFile),
		content: store,
	}, nil
}

// LinkFilesToResource records which files produced a resource.
func (c *AssetContentCache) LinkFilesToResource(hash string, files []*assets.AssetFile) {
	if hash == "" {
		return
	}
	linked := make([]*assets.AssetFile, len(files))
	copy(linked, files)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.links[hash] = linked
}

// FilesForResource returns the files linked to a resource hash.
func (c *AssetContentCache) FilesForResource(hash string) []*assets.AssetFile {
	c.mu.RLock()
	defer c.mu.RUnlock()
	files := c.links[hash]
	out := make([]*assets.AssetFile, len(files))
	copy(out, files)
	return out
}

// Resources returns every linked resource hash, sorted.
func (c *AssetContentCache) Resources() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.links))
	for hash := range c.links {
		out = append(out, hash)
	}
	sort.Strings(out)
	return out
}

// Content returns cached bytes for key.
func (c *AssetContentCache) Content(key string) ([]byte, bool) {
	data, err := c.content.Get(key)
	if err != nil {
		return nil, false
	}
	return data, true
}

// StoreContent caches bytes under key.
func (c *AssetContentCache) StoreContent(key string, data []byte) error {
	return c.content.Set(key, data)
}

// Stats reports content hits and misses.
func (c *AssetContentCache) Stats() (hits, misses int64) {
	s := c.content.Stats()
	return s.Hits, s.Misses
}

// Len returns the number of cached content entries.
func (c *AssetContentCache) Len() int {
	return c.content.Len()
}

// Reset drops all links and content.
func (c *AssetContentCache) Reset() error {
	c.mu.Lock()
	c.links = make(map[string][]*assets.AssetFile)
	c.mu.Unlock()
	return c.content.Reset()
}

// Close releases the byte store.
func (c *AssetContentCache) Close() error {
	return c.content.Close()
}
