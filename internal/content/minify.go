package content

import (
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
)

const cssMediaType = "text/css"

var stylesheetMinifier = func() *minify.M {
	m := minify.New()
	m.AddFunc(cssMediaType, css.Minify)
	return m
}()

// MinifyStylesheets minifies css.
type MinifyStylesheets struct{}

func (MinifyStylesheets) Name() string { return "minify-css" }

func (MinifyStylesheets) Transform(content string) (string, error) {
	return stylesheetMinifier.String(cssMediaType, content)
}
