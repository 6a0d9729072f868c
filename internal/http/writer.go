// Package http is the http boundary of the pipeline: the asset writer, the
// response adapter and the router.
package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/conneroisu/assetpipe/internal/assets"
	"github.com/conneroisu/assetpipe/internal/caching"
	"github.com/conneroisu/assetpipe/internal/content"
	pipeerrors "github.com/conneroisu/assetpipe/internal/errors"
	"github.com/conneroisu/assetpipe/internal/logging"
)

// NotFoundPrefix starts the body of every 404 response. The body is never
// empty.
const NotFoundPrefix = "Cannot find asset "

// DevelopmentMode is the runtime switch between development and production
// header behavior. Changes are visible to the next response decision.
type DevelopmentMode struct {
	enabled atomic.Bool
}

// NewDevelopmentMode creates the switch.
func NewDevelopmentMode(enabled bool) *DevelopmentMode {
	m := &DevelopmentMode{}
	m.enabled.Store(enabled)
	return m
}

// Enabled reports whether development mode is on.
func (m *DevelopmentMode) Enabled() bool {
	return m.enabled.Load()
}

// Set switches development mode.
func (m *DevelopmentMode) Set(enabled bool) {
	m.enabled.Store(enabled)
}

// ResourceLinker records which files produced a resource.
type ResourceLinker interface {
	LinkFilesToResource(hash string, files []*assets.AssetFile)
}

// AssetServices are the shared collaborators of every AssetWriter.
type AssetServices struct {
	Plans   *content.ContentPlanCache
	Links   ResourceLinker
	Headers caching.AssetCacheHeaders
	ETags   caching.ETagGenerator
	Mode    *DevelopmentMode
	Mimes   *assets.MimeTypes
}

// Writer creates the writer for one response.
func (s *AssetServices) Writer(output content.OutputWriter) *AssetWriter {
	return &AssetWriter{services: s, output: output}
}

// AssetWriter serves one asset path.
type AssetWriter struct {
	services *AssetServices
	output   content.OutputWriter
}

// Write resolves path and writes it. A found asset always carries an ETag;
// cache headers are added only outside development mode. A missing asset
// gets a 404 with a non-empty body. Content build errors are returned.
func (w *AssetWriter) Write(path *assets.AssetPath) error {
	s := w.services

	found, err := content.NewContentWriter(s.Plans, w.output).Write(path, func(files []*assets.AssetFile) {
		w.output.AppendHeader("ETag", s.ETags.Create(files))
		s.Links.LinkFilesToResource(path.ResourceHash, files)

		if s.Mode != nil && s.Mode.Enabled() {
			return
		}
		for _, h := range s.Headers.HeadersFor(files) {
			h.Write(w.output)
		}
	})
	if err != nil {
		return err
	}
	if !found {
		return w.writeNotFound(path.FullName())
	}
	return nil
}

func (w *AssetWriter) writeNotFound(name string) error {
	w.output.WriteResponseCode(http.StatusNotFound)
	return w.output.WriteString("text/plain; charset=utf-8", NotFoundPrefix+name)
}

// AssetHandler serves GET and HEAD requests under /_content/.
func AssetHandler(services *AssetServices, log logging.Logger) http.HandlerFunc {
	log = logging.OrNop(log).WithComponent("asset_writer")

	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			rw.Header().Set("Allow", "GET, HEAD")
			http.Error(rw, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		output := NewResponseOutput(rw)
		writer := services.Writer(output)

		path, err := assets.ParseAssetPath(r.URL.Path, services.Mimes)
		if err != nil {
			name := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, "/"), assets.ContentPrefix+"/")
			if werr := writer.writeNotFound(name); werr != nil {
				log.Warn(r.Context(), werr, "Failed to write not found response")
			}
			return
		}

		if err := writer.Write(path); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			if pipeerrors.IsRecoverable(err) {
				log.Warn(r.Context(), err, "Failed to build asset content", "asset", path.FullName())
			} else {
				log.Error(r.Context(), err, "Failed to serve asset", "asset", path.FullName())
			}
			if !output.Written() {
				for _, h := range []string{"ETag", "Cache-Control", "Expires", "Last-Modified"} {
					rw.Header().Del(h)
				}
				http.Error(rw, "asset build failed", http.StatusInternalServerError)
			}
		}
	}
}
