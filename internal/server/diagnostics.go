package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/a-h/templ"

	"github.com/conneroisu/assetpipe/internal/assets"
	"github.com/conneroisu/assetpipe/internal/services"
)

const diagnosticsStyle = `body{font-family:system-ui,sans-serif;margin:2rem;color:#222}
h1{border-bottom:2px solid #007acc;padding-bottom:.5rem}
table{border-collapse:collapse;width:100%;margin-bottom:2rem}
th,td{border:1px solid #ddd;padding:.35rem .6rem;text-align:left;font-size:.9rem}
th{background:#f5f5f5}
.failed{color:#b00020}
.ok{color:#2e7d32}
code{font-size:.85rem}`

// DiagnosticsPage renders a pipeline report as HTML.
func DiagnosticsPage(report *services.Report, development bool) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &htmlWriter{w: w}

		p.raw(`<!DOCTYPE html><html><head><meta charset="utf-8"><title>Asset diagnostics</title><style>`)
		p.raw(diagnosticsStyle)
		p.raw(`</style></head><body><h1>Asset diagnostics</h1>`)

		mode := "production"
		if development {
			mode = "development"
		}
		status := `<span class="ok">healthy</span>`
		if !report.Healthy() {
			status = `<span class="failed">degraded</span>`
		}
		p.raw(`<p>Mode: `)
		p.text(mode)
		p.raw(`. Status: ` + status + `.</p>`)

		p.raw(`<h2>Sets</h2><table><tr><th>Set</th><th>Members</th><th>Compiled</th><th>Error</th></tr>`)
		for _, set := range report.Sets {
			p.raw(`<tr><td>`)
			p.text(set.Name)
			p.raw(`</td><td>`)
			p.text(strings.Join(set.Members, ", "))
			p.raw(`</td><td>`)
			p.text(strings.Join(set.Compiled, ", "))
			p.raw(`</td><td class="failed">`)
			p.text(set.Error)
			p.raw(`</td></tr>`)
		}
		p.raw(`</table>`)

		if len(report.Conflicts) > 0 {
			p.raw(`<h2>Conflicts</h2><table><tr><th>Asset</th><th>Packages</th></tr>`)
			for _, c := range report.Conflicts {
				p.raw(`<tr><td>`)
				p.text(c.Name)
				p.raw(`</td><td class="failed">`)
				p.text(strings.Join(c.Packages, ", "))
				p.raw(`</td></tr>`)
			}
			p.raw(`</table>`)
		}

		if len(report.Combinations) > 0 {
			p.raw(`<h2>Combinations</h2><table><tr><th>Combination</th><th>Files</th></tr>`)
			for _, c := range report.Combinations {
				p.raw(`<tr><td>`)
				p.link(c.Name)
				p.raw(`</td><td>`)
				p.text(strings.Join(c.Files, ", "))
				p.raw(`</td></tr>`)
			}
			p.raw(`</table>`)
		}

		p.raw(`<h2>Assets</h2><table><tr><th>Asset</th><th>Type</th><th>Provider</th><th>Path</th></tr>`)
		for _, a := range report.Assets {
			p.raw(`<tr><td>`)
			p.link(a.Name)
			p.raw(`</td><td>`)
			p.text(a.MimeType)
			p.raw(`</td><td>`)
			p.text(strings.Join(a.Packages, " > "))
			p.raw(`</td><td><code>`)
			p.text(a.Path)
			p.raw(`</code></td></tr>`)
		}
		p.raw(`</table>`)

		if len(report.Resources) > 0 {
			p.raw(`<h2>Resources served</h2><table><tr><th>Hash</th><th>Files</th></tr>`)
			for _, res := range report.Resources {
				p.raw(`<tr><td><code>`)
				p.text(res.Hash)
				p.raw(`</code></td><td>`)
				p.text(strings.Join(res.Files, ", "))
				p.raw(`</td></tr>`)
			}
			p.raw(`</table>`)
		}

		p.raw(`</body></html>`)
		return p.err
	})
}

// htmlWriter keeps the first write error so the page body reads linearly.
type htmlWriter struct {
	w   io.Writer
	err error
}

func (p *htmlWriter) raw(s string) {
	if p.err != nil {
		return
	}
	_, p.err = io.WriteString(p.w, s)
}

func (p *htmlWriter) text(s string) {
	p.raw(templ.EscapeString(s))
}

// link points at the content route of an asset. The folder is left out; the
// asset writer resolves the name on its own.
func (p *htmlWriter) link(name string) {
	href := templ.URL("/" + assets.ContentPrefix + "/" + name)
	p.raw(fmt.Sprintf(`<a href="%s">`, templ.EscapeString(string(href))))
	p.text(name)
	p.raw(`</a>`)
}

// HandleDiagnostics serves the report of the current pipeline as HTML, or as
// JSON when asked with ?format=json.
func (s *AssetServer) HandleDiagnostics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	report := s.Pipeline().Report()
	w.Header().Set("Cache-Control", "no-store")

	if r.URL.Query().Get("format") == "json" {
		w.Header().Set("Content-Type", "application/json")
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(report); err != nil {
			s.logger.Error(r.Context(), err, "Failed to encode diagnostics")
		}
		return
	}

	templ.Handler(DiagnosticsPage(report, s.mode.Enabled())).ServeHTTP(w, r)
}
