package content

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/conneroisu/assetpipe/internal/assets"
)

// PathLookup resolves a requested path to a discovered file.
type PathLookup interface {
	FindPath(path *assets.AssetPath) *assets.AssetFile
}

// CombinationLookup resolves a combination by name.
type CombinationLookup interface {
	Find(name string) *assets.Combination
}

// ContentStore keeps built content bytes.
type ContentStore interface {
	Content(key string) ([]byte, bool)
	StoreContent(key string, data []byte) error
}

// ContentPlanCache memoizes the ContentSource of every requested path and
// the text built from it. Concurrent first requests for the same key wait
// for a single build; builds for different keys run independently. A failed
// build is not cached, so the next request retries it.
type ContentPlanCache struct {
	files        PathLookup
	combinations CombinationLookup
	pipeline     Pipeline
	store        ContentStore

	mu      sync.RWMutex
	sources map[string]ContentSource
	group   singleflight.Group

	sourceBuilds  atomic.Int64
	contentBuilds atomic.Int64
}

// NewContentPlanCache creates the cache. store may be nil, in which case
// content is rebuilt on every request.
func NewContentPlanCache(files PathLookup, combinations CombinationLookup, pipeline Pipeline, store ContentStore) *ContentPlanCache {
	return &ContentPlanCache{
		files:        files,
		combinations: combinations,
		pipeline:     pipeline,
		store:        store,
		sources:      make(map[string]ContentSource),
	}
}

func sourceKey(path *assets.AssetPath) string {
	return string(path.Folder) + "/" + path.Name
}

// SourceFor returns the source for a path: the named combination if there is
// one, otherwise the single matching file, otherwise an empty source.
func (c *ContentPlanCache) SourceFor(path *assets.AssetPath) (ContentSource, error) {
	key := sourceKey(path)

	c.mu.RLock()
	source, ok := c.sources[key]
	c.mu.RUnlock()
	if ok {
		return source, nil
	}

	v, err, _ := c.group.Do("source:"+key, func() (interface{}, error) {
		c.mu.RLock()
		existing, ok := c.sources[key]
		c.mu.RUnlock()
		if ok {
			return existing, nil
		}

		built := c.buildSource(path)
		c.sourceBuilds.Add(1)

		// Unknown paths are not kept, so arbitrary requests cannot grow the
		// cache.
		if len(built.Files()) > 0 {
			c.mu.Lock()
			c.sources[key] = built
			c.mu.Unlock()
		}
		return built, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(ContentSource), nil
}

func (c *ContentPlanCache) buildSource(path *assets.AssetPath) ContentSource {
	if c.combinations != nil {
		if combo := c.combinations.Find(path.Name); combo != nil {
			return NewTransform(NewCombination(combo.MimeType, combo.Files))
		}
	}
	if file := c.files.FindPath(path); file != nil {
		return NewTransform(NewFileRead(file))
	}
	return emptySource{mime: path.MimeType}
}

// FileFor resolves the single file behind a path.
func (c *ContentPlanCache) FileFor(path *assets.AssetPath) *assets.AssetFile {
	return c.files.FindPath(path)
}

// ContentKey identifies the built text of a source. It carries the size and
// modification time of every file, so an edit on disk misses the store.
func (c *ContentPlanCache) ContentKey(source ContentSource) string {
	return source.MimeType().String() + "|" + assets.FingerprintFor(source.Files()) + "|" +
		TransformerNames(c.pipeline, source.MimeType())
}

// ContentFor returns the text of source, building it at most once per key.
func (c *ContentPlanCache) ContentFor(source ContentSource) (string, error) {
	if len(source.Files()) == 0 {
		return "", nil
	}
	key := c.ContentKey(source)

	if c.store != nil {
		if data, ok := c.store.Content(key); ok {
			return string(data), nil
		}
	}

	v, err, _ := c.group.Do("content:"+key, func() (interface{}, error) {
		if c.store != nil {
			if data, ok := c.store.Content(key); ok {
				return string(data), nil
			}
		}

		text, err := source.GetContent(c.pipeline)
		c.contentBuilds.Add(1)
		if err != nil {
			return nil, err
		}

		if c.store != nil {
			// Content too large for the store is still served, just not kept.
			_ = c.store.StoreContent(key, []byte(text))
		}
		return text, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// SourceBuilds reports how many sources were built.
func (c *ContentPlanCache) SourceBuilds() int64 {
	return c.sourceBuilds.Load()
}

// ContentBuilds reports how many content builds ran, failed ones included.
func (c *ContentPlanCache) ContentBuilds() int64 {
	return c.contentBuilds.Load()
}

// Len returns the number of memoized sources.
func (c *ContentPlanCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sources)
}

// Reset forgets every memoized source. Content bytes live in the store and
// are reset there.
func (c *ContentPlanCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sources = make(map[string]ContentSource)
}
