package content

import (
	"github.com/conneroisu/assetpipe/internal/assets"
)

// OutputWriter is the response sink of the asset writers.
type OutputWriter interface {
	WriteResponseCode(status int)
	AppendHeader(name, value string)
	Write(mimeType string, content []byte) error
	WriteString(mimeType, content string) error
	WriteFile(mimeType, fullPath string) error
}

// ContentWriter writes the content of one asset path to an output.
type ContentWriter struct {
	plans  *ContentPlanCache
	output OutputWriter
}

// NewContentWriter creates a writer for one response.
func NewContentWriter(plans *ContentPlanCache, output OutputWriter) *ContentWriter {
	return &ContentWriter{plans: plans, output: output}
}

// Write resolves path and writes its content. writeHeaders receives the
// contributing files before any content is written. Write reports false,
// without calling writeHeaders, when no file resolves. Binary assets are
// streamed from disk and never read by the content pipeline.
func (w *ContentWriter) Write(path *assets.AssetPath, writeHeaders func(files []*assets.AssetFile)) (bool, error) {
	if path.IsBinary() {
		return w.writeBinary(path, writeHeaders)
	}
	return w.writeTextual(path, writeHeaders)
}

func (w *ContentWriter) writeBinary(path *assets.AssetPath, writeHeaders func([]*assets.AssetFile)) (bool, error) {
	file := w.plans.FileFor(path)
	if file == nil {
		return false, nil
	}

	files := []*assets.AssetFile{file}
	assignResourceHash(path, files)
	writeHeaders(files)

	mime := file.MimeType
	if mime == nil {
		mime = path.MimeType
	}
	if err := w.output.WriteFile(mime.String(), file.FullPath); err != nil {
		return true, err
	}
	return true, nil
}

func (w *ContentWriter) writeTextual(path *assets.AssetPath, writeHeaders func([]*assets.AssetFile)) (bool, error) {
	source, err := w.plans.SourceFor(path)
	if err != nil {
		return false, err
	}
	files := source.Files()
	if len(files) == 0 {
		return false, nil
	}

	// Built before any header goes out, so a failed build leaves the
	// response untouched.
	text, err := w.plans.ContentFor(source)
	if err != nil {
		return false, err
	}

	assignResourceHash(path, files)
	writeHeaders(files)

	if err := w.output.Write(source.MimeType().String(), []byte(text)); err != nil {
		return true, err
	}
	return true, nil
}

func assignResourceHash(path *assets.AssetPath, files []*assets.AssetFile) {
	if path.ResourceHash == "" {
		path.ResourceHash = assets.ResourceHashFor(files)
	}
}
