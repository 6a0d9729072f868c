package caching

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/net/http/httpguts"

	"github.com/conneroisu/assetpipe/internal/assets"
	pipeerrors "github.com/conneroisu/assetpipe/internal/errors"
)

// DefaultMaxAge is how long clients may cache an asset outside development.
const DefaultMaxAge = 24 * time.Hour

// HeaderWriter receives response headers.
type HeaderWriter interface {
	AppendHeader(name, value string)
}

// Header is one response header.
type Header struct {
	Name  string
	Value string
}

// Write appends the header to out.
func (h Header) Write(out HeaderWriter) {
	out.AppendHeader(h.Name, h.Value)
}

// Valid reports whether name and value are legal http header text.
func (h Header) Valid() bool {
	return httpguts.ValidHeaderFieldName(h.Name) && httpguts.ValidHeaderFieldValue(h.Value)
}

// AssetCacheHeaders computes the cache headers of a response.
type AssetCacheHeaders interface {
	HeadersFor(files []*assets.AssetFile) []Header
}

// CacheHeaders emits Cache-Control, Expires and Last-Modified, plus any
// configured extra headers.
type CacheHeaders struct {
	maxAge time.Duration
	now    func() time.Time

	mu    sync.RWMutex
	extra []Header
}

// NewCacheHeaders creates the header source. A non-positive max age uses
// DefaultMaxAge.
func NewCacheHeaders(maxAge time.Duration) *CacheHeaders {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &CacheHeaders{maxAge: maxAge, now: time.Now}
}

// WithClock replaces the time source.
func (c *CacheHeaders) WithClock(now func() time.Time) *CacheHeaders {
	c.now = now
	return c
}

// AddHeader adds a header emitted with every cacheable response.
func (c *CacheHeaders) AddHeader(name, value string) error {
	h := Header{Name: http.CanonicalHeaderKey(name), Value: value}
	if !h.Valid() {
		return pipeerrors.NewValidationError(pipeerrors.ErrCodeInvalidHeader,
			fmt.Sprintf("invalid cache header %q", name))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.extra = append(c.extra, h)
	return nil
}

// MaxAge returns the configured max age.
func (c *CacheHeaders) MaxAge() time.Duration {
	return c.maxAge
}

// HeadersFor returns the cache headers for a response built from files.
// Last-Modified is the newest modification time among them and is left out
// when none is known.
func (c *CacheHeaders) HeadersFor(files []*assets.AssetFile) []Header {
	now := c.now().UTC()

	headers := []Header{
		{Name: "Cache-Control", Value: "public, max-age=" + strconv.Itoa(int(c.maxAge.Seconds()))},
		{Name: "Expires", Value: now.Add(c.maxAge).Format(http.TimeFormat)},
	}

	var newest time.Time
	for _, f := range files {
		if _, modTime := f.Stat(); modTime.After(newest) {
			newest = modTime
		}
	}
	if !newest.IsZero() {
		headers = append(headers, Header{Name: "Last-Modified", Value: newest.UTC().Format(http.TimeFormat)})
	}

	c.mu.RLock()
	headers = append(headers, c.extra...)
	c.mu.RUnlock()

	return headers
}
