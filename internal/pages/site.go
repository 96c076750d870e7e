package pages

import (
	"context"
	"html/template"
	"io/fs"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/aj-en/mcp-sim/internal/render"
	"github.com/aj-en/mcp-sim/internal/site"
)

var (
	_ render.Site             = &Site{}
	_ render.FuncMapExtender  = &Site{}
	_ render.ServerErrorPager = &Site{}
)

// Site renders the pages of one configured documentation site.
type Site struct {
	*render.CachedSite

	Config site.Config

	clock     clockwork.Clock
	docRoutes map[string]string
}

// Option customises a Site.
type Option func(*Site)

// WithClock sets the clock used for the footer copyright year.
func WithClock(clock clockwork.Clock) Option {
	return func(s *Site) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithDocRoutes sets the route of every doc by ID. Docs without an entry
// use the default route below the docs section.
func WithDocRoutes(routes map[string]string) Option {
	return func(s *Site) {
		s.docRoutes = routes
	}
}

// NewSite returns a Site reading templates from templates.
func NewSite(cfg site.Config, templates fs.FS, opts ...Option) *Site {
	s := &Site{
		CachedSite: render.NewCachedSite(templates),
		Config:     cfg,
		clock:      clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DocRoute returns the route of a doc, without base URL.
func (s *Site) DocRoute(id string) string {
	if route, ok := s.docRoutes[id]; ok {
		return route
	}
	return s.Config.DocRoute(id)
}

// NavLink is a resolved navbar entry.
type NavLink struct {
	Label    string
	Href     string
	Position string

	// Route is the internal route linked to, empty for external links.
	Route string
}

// External reports whether the link leaves the site.
func (l NavLink) External() bool {
	return l.Route == ""
}

// NavLinks resolves the configured navbar items. docSidebar items link to
// the first doc of their sidebar.
func (s *Site) NavLinks() []NavLink {
	links := make([]NavLink, 0, len(s.Config.Navbar.Items))
	for _, item := range s.Config.Navbar.Items {
		link := NavLink{Label: item.Label, Position: item.Position}
		switch {
		case item.Type == site.NavItemDocSidebar:
			ids := s.Config.Sidebars[item.SidebarID].DocIDs()
			if len(ids) == 0 {
				continue
			}
			link.Route = s.DocRoute(ids[0])
		case item.To != "":
			link.Route = item.To
		default:
			link.Href = item.Href
		}
		if link.Route != "" {
			link.Href = s.Config.Path(link.Route)
		}
		if link.Position == "" {
			link.Position = "left"
		}
		links = append(links, link)
	}
	return links
}

// CopyrightLine returns the footer copyright for the current year.
func (s *Site) CopyrightLine() string {
	return s.Config.Copyright(s.clock.Now().Year())
}

// FuncMap adds URL helpers available to every template.
func (s *Site) FuncMap(context.Context) template.FuncMap {
	return template.FuncMap{
		"url": func(p string) string {
			if strings.Contains(p, "://") {
				return p
			}
			return s.Config.Path(p)
		},
		"absURL": s.Config.AbsoluteURL,
		"date": func(t time.Time) string {
			return t.Format("January 2, 2006")
		},
		"isoDate": func(t time.Time) string {
			return t.Format(time.DateOnly)
		},
	}
}

// ServerErrorPage is rendered when another page fails to render.
func (s *Site) ServerErrorPage(context.Context) render.Page {
	return NewServerErrorPage()
}
