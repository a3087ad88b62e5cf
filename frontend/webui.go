// Package webui embeds the single-page browser UI.
package webui

import (
	"embed"
	"io/fs"
)

//go:embed dist/*
var content embed.FS

// Dist returns the UI assets rooted at dist/.
func Dist() fs.FS {
	sub, err := fs.Sub(content, "dist")
	if err != nil {
		panic(err)
	}
	return sub
}
