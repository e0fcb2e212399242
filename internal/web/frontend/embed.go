// Package frontend embeds the single page client.
package frontend

import (
	"embed"
	"io/fs"
)

//go:embed static
var assets embed.FS

// Assets returns the client files rooted at index.html.
func Assets() fs.FS {
	sub, err := fs.Sub(assets, "static")
	if err != nil {
		// static is compiled in, Sub only fails on an invalid path
		panic(err)
	}
	return sub
}
