package pages

import (
	"context"
	"html/template"

	"github.com/aj-en/mcp-sim/internal/docs"
	"github.com/aj-en/mcp-sim/internal/render"
	"github.com/aj-en/mcp-sim/internal/site"
)

// CodeStylesheet is the generated stylesheet for highlighted code, relative
// to the base URL. Custom stylesheets are linked after it.
const CodeStylesheet = "css/code.css"

// Layout is the page shell: head, navbar, content and footer. It executes
// the "layout" template, which calls the page's "content" block.
type Layout struct {
	Title       string
	HeadTitle   string
	Description string
	stylesheets []string
}

// NewLayout returns the layout for a page titled title. An empty title
// gives the site title alone.
func NewLayout(cfg site.Config, title, description string) Layout {
	l := Layout{Title: title, HeadTitle: cfg.Title, Description: description}
	if title != "" {
		l.HeadTitle = title + " | " + cfg.Title
	}
	if l.Description == "" {
		l.Description = cfg.Tagline
	}
	l.stylesheets = append(l.stylesheets, cfg.Path(CodeStylesheet))
	for _, css := range cfg.Theme.CustomCSS {
		l.stylesheets = append(l.stylesheets, cfg.Path(css))
	}
	return l
}

func (Layout) Templates(context.Context) []string {
	return []string{"layout.html"}
}

func (Layout) UseComponents(context.Context) []render.Component {
	return []render.Component{Navbar{}, Footer{}}
}

func (l Layout) LinkCSS(context.Context) []string {
	return l.stylesheets
}

// Navbar renders Site.NavLinks.
type Navbar struct{}

func (Navbar) Templates(context.Context) []string {
	return []string{"navbar.html"}
}

// Footer renders the footer columns and copyright line.
type Footer struct{}

func (Footer) Templates(context.Context) []string {
	return []string{"footer.html"}
}

// HeroLink is a call-to-action button inside a Hero.
type HeroLink struct {
	Label string
	To    string
	Class string
}

// Hero is the banner at the top of the landing page: a title, a subtitle
// and the links given as its children.
type Hero struct {
	Title    template.HTML
	Subtitle string
	Children []HeroLink
}

func (Hero) Templates(context.Context) []string {
	return []string{"hero.html"}
}

// SidebarNode is a sidebar entry resolved for one page.
type SidebarNode struct {
	Label       string
	Href        string
	External    bool
	Category    bool
	Collapsible bool
	Collapsed   bool
	Active      bool
	Children    []SidebarNode
}

// DocSidebar renders a sidebar tree.
type DocSidebar struct {
	Items []SidebarNode
}

func (DocSidebar) Templates(context.Context) []string {
	return []string{"sidebar.html"}
}

// NewDocSidebar resolves sb for the page showing the doc active. Doc
// labels fall back to label(id). Categories holding the active doc are
// expanded.
func NewDocSidebar(s *Site, sb site.Sidebar, active string, label func(id string) string) DocSidebar {
	var build func(items []site.SidebarItem) []SidebarNode
	build = func(items []site.SidebarItem) []SidebarNode {
		nodes := make([]SidebarNode, 0, len(items))
		for _, item := range items {
			switch item.Type {
			case site.ItemDoc:
				text := item.Label
				if text == "" {
					text = label(item.ID)
				}
				nodes = append(nodes, SidebarNode{
					Label:  text,
					Href:   s.Config.Path(s.DocRoute(item.ID)),
					Active: item.ID == active,
				})
			case site.ItemCategory:
				holdsActive := item.Contains(active)
				nodes = append(nodes, SidebarNode{
					Label:       item.Label,
					Category:    true,
					Collapsible: item.IsCollapsible(),
					Collapsed:   item.StartsCollapsed() && !holdsActive,
					Active:      holdsActive,
					Children:    build(item.Items),
				})
			case site.ItemLink:
				if item.Internal() {
					nodes = append(nodes, SidebarNode{Label: item.Label, Href: s.Config.Path(item.Href)})
					continue
				}
				nodes = append(nodes, SidebarNode{Label: item.Label, Href: item.Href, External: true})
			}
		}
		return nodes
	}
	return DocSidebar{Items: build(sb)}
}

// TOC renders the table of contents of a page.
type TOC struct {
	Headings []docs.Heading
}

func (TOC) Templates(context.Context) []string {
	return []string{"toc.html"}
}
