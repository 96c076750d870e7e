// Package web embeds the templates, static assets and markdown content the
// site is built from.
package web

import (
	"embed"
	"io/fs"
)

//go:embed templates static content
var files embed.FS

// Templates holds the html/template files, with paths such as
// "layout.html" and "pages/doc.html".
func Templates() fs.FS { return sub("templates") }

// Static holds assets copied verbatim below the base URL.
func Static() fs.FS { return sub("static") }

// Docs holds the markdown of the docs section.
func Docs() fs.FS { return sub("content/docs") }

// Blog holds the dated markdown posts of the blog.
func Blog() fs.FS { return sub("content/blog") }

func sub(dir string) fs.FS {
	fsys, err := fs.Sub(files, dir)
	if err != nil {
		panic(err)
	}
	return fsys
}
