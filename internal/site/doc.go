// Package site holds the documentation site's configuration: metadata,
// navbar, footer, theme, and the sidebar trees that order the docs.
package site
