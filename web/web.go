// Package web holds the embedded templates, static assets and the sidebar
// catalog.
package web

import (
	"bytes"
	"embed"
	"io/fs"

	"github.com/ssc-dashboards/portal/internal/nav"
)

//go:embed templates/*.html
var templates embed.FS

//go:embed static
var static embed.FS

//go:embed nav.yaml
var catalog []byte

// Templates returns the page templates rooted at their directory.
func Templates() fs.FS {
	sub, _ := fs.Sub(templates, "templates")
	return sub
}

func Static() fs.FS {
	sub, _ := fs.Sub(static, "static")
	return sub
}

// Catalog parses the embedded sidebar catalog.
func Catalog() (*nav.Catalog, error) {
	return nav.Load(bytes.NewReader(catalog))
}
