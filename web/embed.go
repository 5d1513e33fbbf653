// Package web carries the server-rendered pages and their static assets.
package web

import (
	"embed"
	"io/fs"
)

// Templates holds the layouts and pages parsed by the view engine.
//
//go:embed templates/layouts/*.html templates/pages/*.html
var Templates embed.FS

//go:embed static
var static embed.FS

// Static returns the asset tree rooted at static/, ready to serve under /static/.
func Static() fs.FS {
	sub, err := fs.Sub(static, "static")
	if err != nil {
		panic(err)
	}
	return sub
}
