package render

import (
	"context"
	"html/template"
	"io/fs"
	"sync"
)

// Site holds everything shared by the pages it renders. Templates named by
// components are looked up in the filesystem it returns.
type Site interface {
	TemplateDir(ctx context.Context) fs.FS
}

// TemplateCacher is an optional interface for Sites that keep parsed
// templates between renders, keyed by Page.Key.
type TemplateCacher interface {
	// GetCachedTemplate returns nil when nothing is cached for key.
	GetCachedTemplate(ctx context.Context, key string) *template.Template
	SetCachedTemplate(ctx context.Context, key string, tmpl *template.Template)
}

// ServerErrorPager is an optional interface for Sites. When rendering a
// page fails, the page it returns is rendered instead.
type ServerErrorPager interface {
	ServerErrorPage(ctx context.Context) Page
}

var (
	_ Site           = &CachedSite{}
	_ TemplateCacher = &CachedSite{}
)

// CachedSite is a Site keeping parsed templates in memory. Embed it in
// application Sites. Use NewCachedSite; the zero value is not usable.
type CachedSite struct {
	mu          sync.RWMutex
	cache       map[string]*template.Template
	templateDir fs.FS
}

// NewCachedSite returns a CachedSite reading templates from templates.
func NewCachedSite(templates fs.FS) *CachedSite {
	return &CachedSite{
		cache:       map[string]*template.Template{},
		templateDir: templates,
	}
}

// GetCachedTemplate is safe for concurrent use.
func (s *CachedSite) GetCachedTemplate(_ context.Context, key string) *template.Template {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cache[key]
}

// SetCachedTemplate is safe for concurrent use.
func (s *CachedSite) SetCachedTemplate(_ context.Context, key string, tmpl *template.Template) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[key] = tmpl
}

// TemplateDir returns the filesystem passed to NewCachedSite.
func (s *CachedSite) TemplateDir(_ context.Context) fs.FS {
	return s.templateDir
}
