// Package docs loads the markdown content of the documentation site: the
// docs section with its front matter, and the dated posts of the blog. It
// renders markdown to HTML, collecting headings for the table of contents
// and the internal links each page makes so they can be checked once every
// route is known.
package docs
