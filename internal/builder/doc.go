// Package builder assembles the documentation site: it loads the markdown
// content, resolves every page to a route below the base URL, checks that
// internal links land on a route, and either writes the pages out as
// static files or serves them over HTTP.
package builder
