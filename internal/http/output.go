package http

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
)

// ResponseOutput adapts an http.ResponseWriter to content.OutputWriter. The
// status code is held until the first body write so that the Content-Type
// header can still be set.
type ResponseOutput struct {
	w      http.ResponseWriter
	status int
	wrote  bool
}

// NewResponseOutput wraps w.
func NewResponseOutput(w http.ResponseWriter) *ResponseOutput {
	return &ResponseOutput{w: w, status: http.StatusOK}
}

// WriteResponseCode sets the status sent with the body.
func (o *ResponseOutput) WriteResponseCode(status int) {
	o.status = status
}

// AppendHeader adds a response header.
func (o *ResponseOutput) AppendHeader(name, value string) {
	o.w.Header().Add(name, value)
}

// Write sends content with its mime type.
func (o *ResponseOutput) Write(mimeType string, content []byte) error {
	o.start(mimeType, int64(len(content)))
	_, err := o.w.Write(content)
	return err
}

// WriteString sends text with its mime type.
func (o *ResponseOutput) WriteString(mimeType, content string) error {
	o.start(mimeType, int64(len(content)))
	_, err := io.WriteString(o.w, content)
	return err
}

// WriteFile streams a file from disk.
func (o *ResponseOutput) WriteFile(mimeType, fullPath string) error {
	f, err := os.Open(fullPath)
	if err != nil {
		return fmt.Errorf("open asset file: %w", err)
	}
	defer f.Close()

	size := int64(-1)
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}
	o.start(mimeType, size)

	_, err = io.Copy(o.w, f)
	return err
}

// Written reports whether a status line has been sent.
func (o *ResponseOutput) Written() bool {
	return o.wrote
}

func (o *ResponseOutput) start(mimeType string, size int64) {
	if o.wrote {
		return
	}
	o.wrote = true
	h := o.w.Header()
	if mimeType != "" {
		h.Set("Content-Type", mimeType)
	}
	if size >= 0 && h.Get("Content-Encoding") == "" {
		h.Set("Content-Length", strconv.FormatInt(size, 10))
	}
	o.w.WriteHeader(o.status)
}
