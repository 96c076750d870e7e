// Package render turns pages built from components into HTML.
//
// A Component names the html/template files it needs and may use other
// Components, extend the template FuncMap and link stylesheets. A Page is a
// Component that can be rendered on its own: it adds a cache key and the
// name of the template to execute. Render collects the templates of a Page
// and everything it uses, parses them from the Site's template filesystem
// and executes them with a RenderData value.
package render
