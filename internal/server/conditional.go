package server

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// notModified answers 304 when If-None-Match names the ETag the wrapped
// handler is about to send. The decision is taken at WriteHeader time, after
// the asset writer set ETag and cache headers but before any body.
func notModified(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inm := r.Header.Get("If-None-Match")
		if inm == "" || (r.Method != http.MethodGet && r.Method != http.MethodHead) {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(&conditionalWriter{ResponseWriter: w, ifNoneMatch: inm}, r)
	})
}

type conditionalWriter struct {
	http.ResponseWriter
	ifNoneMatch string
	decided     bool
	suppressed  bool
}

func (c *conditionalWriter) WriteHeader(status int) {
	if c.decided {
		return
	}
	c.decided = true

	h := c.Header()
	if status == http.StatusOK && etagMatches(c.ifNoneMatch, h.Get("ETag")) {
		c.suppressed = true
		h.Del("Content-Type")
		h.Del("Content-Length")
		h.Del("Content-Encoding")
		c.ResponseWriter.WriteHeader(http.StatusNotModified)
		return
	}
	c.ResponseWriter.WriteHeader(status)
}

func (c *conditionalWriter) Write(p []byte) (int, error) {
	if !c.decided {
		c.WriteHeader(http.StatusOK)
	}
	if c.suppressed {
		return len(p), nil
	}
	return c.ResponseWriter.Write(p)
}

func (c *conditionalWriter) Flush() {
	if f, ok := c.ResponseWriter.(http.Flusher); ok && !c.suppressed {
		f.Flush()
	}
}

func (c *conditionalWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := c.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, fmt.Errorf("response writer does not support hijacking")
}

func (c *conditionalWriter) Unwrap() http.ResponseWriter {
	return c.ResponseWriter
}

// gzipETagSuffix marks the ETag of a gzip encoded response.
const gzipETagSuffix = "-gzip"

// etagMatches applies the weak comparison of If-None-Match against etag. The
// gzip suffix is ignored on both sides, so a validator from an encoded
// response still matches the identity one.
func etagMatches(ifNoneMatch, etag string) bool {
	if etag == "" {
		return false
	}
	etag = opaqueTag(etag)
	for _, candidate := range strings.Split(ifNoneMatch, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" {
			return true
		}
		if opaqueTag(candidate) == etag {
			return true
		}
	}
	return false
}

func opaqueTag(etag string) string {
	etag = strings.TrimPrefix(etag, "W/")
	return strings.Replace(etag, gzipETagSuffix+`"`, `"`, 1)
}
