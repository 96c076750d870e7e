package builder

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/aj-en/mcp-sim/internal/docs"
	"github.com/aj-en/mcp-sim/internal/pages"
	"github.com/aj-en/mcp-sim/internal/render"
	"github.com/aj-en/mcp-sim/internal/site"
	"github.com/aj-en/mcp-sim/web"
)

var (
	// ErrBrokenLinks is returned when internal links don't resolve and
	// onBrokenLinks is "throw".
	ErrBrokenLinks = errors.New("broken links")

	// ErrBrokenMarkdownLinks is returned when .md links don't resolve and
	// onBrokenMarkdownLinks is "throw".
	ErrBrokenMarkdownLinks = errors.New("broken markdown links")

	// ErrDuplicateRoute is returned when two pages resolve to one route.
	ErrDuplicateRoute = errors.New("duplicate route")

	// ErrInvalidSlug is returned when a slug resolves outside its section.
	ErrInvalidSlug = errors.New("invalid slug")
)

// Link is an internal link found while assembling the site.
type Link struct {
	// Source describes where the link was found, e.g. "navbar" or
	// "docs/intro.md".
	Source string
	Target string
}

// Builder holds the assembled site. It is immutable after New and safe for
// concurrent use.
type Builder struct {
	cfg    site.Config
	logger *zap.Logger
	clock  clockwork.Clock

	templates fs.FS
	static    fs.FS
	docsFS    fs.FS
	blogFS    fs.FS

	site     *pages.Site
	store    *docs.Store
	posts    []*docs.Post
	pages    map[string]render.Page
	notFound pages.NotFoundPage
	links    []Link

	// generated holds assets produced at build time, keyed by path
	// relative to the base URL.
	generated map[string][]byte
}

// Option customises a Builder.
type Option func(*Builder)

// WithLogger sets the logger for link reports and serving errors.
func WithLogger(logger *zap.Logger) Option {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithClock sets the clock used for the copyright year.
func WithClock(clock clockwork.Clock) Option {
	return func(b *Builder) {
		if clock != nil {
			b.clock = clock
		}
	}
}

// WithTemplates replaces the embedded templates.
func WithTemplates(fsys fs.FS) Option {
	return func(b *Builder) { b.templates = fsys }
}

// WithStatic replaces the embedded static assets.
func WithStatic(fsys fs.FS) Option {
	return func(b *Builder) { b.static = fsys }
}

// WithDocs replaces the embedded docs.
func WithDocs(fsys fs.FS) Option {
	return func(b *Builder) { b.docsFS = fsys }
}

// WithBlog replaces the embedded blog posts.
func WithBlog(fsys fs.FS) Option {
	return func(b *Builder) { b.blogFS = fsys }
}

// New loads and renders the content of the site described by cfg. Broken
// markdown links are reported under cfg.OnBrokenMarkdownLinks; broken
// internal links are only reported by CheckLinks.
func New(cfg site.Config, opts ...Option) (*Builder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	b := &Builder{
		cfg:       cfg,
		logger:    zap.NewNop(),
		clock:     clockwork.NewRealClock(),
		templates: web.Templates(),
		static:    web.Static(),
		docsFS:    web.Docs(),
		blogFS:    web.Blog(),
		pages:     map[string]render.Page{},
	}
	for _, opt := range opts {
		opt(b)
	}

	renderer := docs.NewRenderer(cfg.Theme.CodeTheme, docs.WithDarkCodeTheme(cfg.Theme.CodeDarkTheme))
	b.generated = map[string][]byte{pages.CodeStylesheet: renderer.CodeCSS()}
	store, err := docs.Load(b.docsFS, renderer)
	if err != nil {
		return nil, err
	}
	posts, err := docs.LoadPosts(b.blogFS, renderer)
	if err != nil {
		return nil, err
	}
	for _, post := range posts {
		route, err := sectionRoute(cfg.BlogRoute(), post.Slug, false)
		if err != nil {
			return nil, fmt.Errorf("blog/%s: %w", post.Source, err)
		}
		post.Slug = strings.TrimPrefix(route, strings.TrimSuffix(cfg.BlogRoute(), "/")+"/")
	}
	b.store = store
	b.posts = posts

	docRoutes, err := b.docRoutes()
	if err != nil {
		return nil, err
	}
	b.site = pages.NewSite(cfg, b.templates, pages.WithClock(b.clock), pages.WithDocRoutes(docRoutes))
	b.notFound = pages.NewNotFoundPage(cfg)

	var broken []Link
	if err := b.addHome(); err != nil {
		return nil, err
	}
	docBroken, err := b.addDocs(renderer, docRoutes)
	if err != nil {
		return nil, err
	}
	broken = append(broken, docBroken...)
	blogBroken, err := b.addBlog(renderer)
	if err != nil {
		return nil, err
	}
	broken = append(broken, blogBroken...)
	b.collectConfigLinks()

	if err := b.report(cfg.OnBrokenMarkdownLinks, ErrBrokenMarkdownLinks, "broken markdown link", broken); err != nil {
		return nil, err
	}
	b.logger.Info("site assembled",
		zap.Int("docs", store.Len()),
		zap.Int("posts", len(posts)),
		zap.Int("routes", len(b.pages)),
	)
	return b, nil
}

// docRoutes maps every doc to its route. A doc with slug "/" takes the
// docs root; otherwise the root shows the first doc of the first navbar
// sidebar.
func (b *Builder) docRoutes() (map[string]string, error) {
	routes := make(map[string]string, b.store.Len())
	owner := map[string]string{}
	for _, id := range b.store.IDs() {
		doc, _ := b.store.Get(id)
		route, err := sectionRoute(b.cfg.DocsRoute(), doc.Slug(), true)
		if err != nil {
			return nil, fmt.Errorf("doc %q: %w", id, err)
		}
		if other, dup := owner[route]; dup {
			return nil, fmt.Errorf("%w: %s is claimed by docs %q and %q", ErrDuplicateRoute, route, other, id)
		}
		owner[route] = id
		routes[id] = route
	}
	return routes, nil
}

// sectionRoute resolves slug below the section route. The cleaned route
// must stay inside the section; allowRoot admits the section route itself.
func sectionRoute(section, slug string, allowRoot bool) (string, error) {
	route := path.Clean(section + "/" + slug)
	if route == section && allowRoot {
		return route, nil
	}
	if route == section || !strings.HasPrefix(route, strings.TrimSuffix(section, "/")+"/") {
		return "", fmt.Errorf("%w: %q resolves to %s, outside %s", ErrInvalidSlug, slug, route, section)
	}
	return route, nil
}

func (b *Builder) add(route string, page render.Page) error {
	if _, dup := b.pages[route]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateRoute, route)
	}
	b.pages[route] = page
	return nil
}

func (b *Builder) addHome() error {
	home := pages.NewHomePage(b.cfg)
	for _, child := range home.Hero.Children {
		b.links = append(b.links, Link{Source: "hero", Target: child.To})
	}
	return b.add("/", home)
}

func (b *Builder) addDocs(renderer *docs.Renderer, docRoutes map[string]string) ([]Link, error) {
	resolver := linkResolver{b: b}
	var broken []Link
	for _, id := range b.store.IDs() {
		doc, _ := b.store.Get(id)
		source := "docs/" + doc.Source
		route := docRoutes[id]
		rendered, err := renderer.Render(doc.Body, source, route, resolver)
		if err != nil {
			return nil, err
		}
		for _, target := range rendered.Links {
			b.links = append(b.links, Link{Source: source, Target: target})
		}
		for _, target := range rendered.BrokenMarkdownLinks {
			broken = append(broken, Link{Source: source, Target: target})
		}

		page := pages.DocPage{
			Layout:          pages.NewLayout(b.cfg, doc.Title, doc.Meta.Description),
			Title:           doc.Title,
			HasTitleHeading: doc.HasTitleHeading,
			Content:         rendered.HTML,
			TOC:             pages.TOC{Headings: rendered.TOC},
			EditURL:         site.EditURL(b.cfg.Docs.EditURL, source),
		}
		if _, sb, ok := b.cfg.SidebarFor(id); ok {
			page.Sidebar = pages.NewDocSidebar(b.site, sb, id, b.docLabel)
			prev, next := pages.Neighbours(sb.DocIDs(), id)
			page.Prev = b.docLink(sb, prev)
			page.Next = b.docLink(sb, next)
		}
		if err := b.add(route, page); err != nil {
			return nil, err
		}
	}

	root := b.cfg.DocsRoute()
	if _, ok := b.pages[root]; !ok {
		if first := b.firstNavbarDoc(); first != "" {
			if page, ok := b.pages[docRoutes[first]]; ok {
				b.pages[root] = page
			}
		}
	}
	return broken, nil
}

// firstNavbarDoc returns the first doc of the first sidebar linked from
// the navbar, falling back to the first sidebar by name.
func (b *Builder) firstNavbarDoc() string {
	names := []string{}
	for _, item := range b.cfg.Navbar.Items {
		if item.Type == site.NavItemDocSidebar {
			names = append(names, item.SidebarID)
		}
	}
	names = append(names, b.cfg.SidebarNames()...)
	for _, name := range names {
		for _, id := range b.cfg.Sidebars[name].DocIDs() {
			if _, ok := b.store.Get(id); ok {
				return id
			}
		}
	}
	return ""
}

func (b *Builder) docLabel(id string) string {
	if doc, ok := b.store.Get(id); ok {
		return doc.Label()
	}
	return id
}

// docLink links to a sidebar neighbour, preferring the label the sidebar
// gives it.
func (b *Builder) docLink(sb site.Sidebar, id string) *pages.PageLink {
	if id == "" {
		return nil
	}
	label := ""
	sb.Walk(func(item site.SidebarItem, _ int) {
		if item.Type == site.ItemDoc && item.ID == id && item.Label != "" {
			label = item.Label
		}
	})
	if label == "" {
		label = b.docLabel(id)
	}
	return &pages.PageLink{Label: label, Href: b.cfg.Path(b.site.DocRoute(id))}
}

func (b *Builder) postRoute(post *docs.Post) string {
	return b.cfg.BlogRoute() + "/" + post.Slug
}

func (b *Builder) addBlog(renderer *docs.Renderer) ([]Link, error) {
	resolver := linkResolver{b: b}
	var broken []Link
	summaries := make([]pages.PostSummary, 0, len(b.posts))
	for i, post := range b.posts {
		source := "blog/" + post.Source
		route := b.postRoute(post)
		rendered, err := renderer.Render(post.Body, source, route, resolver)
		if err != nil {
			return nil, err
		}
		for _, target := range rendered.Links {
			b.links = append(b.links, Link{Source: source, Target: target})
		}
		for _, target := range rendered.BrokenMarkdownLinks {
			broken = append(broken, Link{Source: source, Target: target})
		}

		summary := pages.Summarize(post, b.cfg.Path(route))
		summaries = append(summaries, summary)
		page := pages.BlogPostPage{
			Layout:          pages.NewLayout(b.cfg, post.Title, post.Meta.Description),
			Post:            summary,
			HasTitleHeading: post.HasTitleHeading,
			Content:         rendered.HTML,
			TOC:             pages.TOC{Headings: rendered.TOC},
			ShowReadingTime: b.cfg.Blog.ShowReadingTime,
			EditURL:         site.EditURL(b.cfg.Blog.EditURL, source),
		}
		if i > 0 {
			page.Newer = &pages.PageLink{Label: b.posts[i-1].Title, Href: b.cfg.Path(b.postRoute(b.posts[i-1]))}
		}
		if i < len(b.posts)-1 {
			page.Older = &pages.PageLink{Label: b.posts[i+1].Title, Href: b.cfg.Path(b.postRoute(b.posts[i+1]))}
		}
		if err := b.add(route, page); err != nil {
			return nil, err
		}
	}

	title := b.cfg.Blog.Title
	if title == "" {
		title = "Blog"
	}
	index := pages.BlogIndexPage{
		Layout:          pages.NewLayout(b.cfg, title, ""),
		Title:           title,
		Posts:           summaries,
		ShowReadingTime: b.cfg.Blog.ShowReadingTime,
	}
	return broken, b.add(b.cfg.BlogRoute(), index)
}

func (b *Builder) collectConfigLinks() {
	for _, link := range b.site.NavLinks() {
		if !link.External() {
			b.links = append(b.links, Link{Source: "navbar", Target: link.Route})
		}
	}
	for _, col := range b.cfg.Footer.Links {
		for _, item := range col.Items {
			if item.To != "" {
				b.links = append(b.links, Link{Source: "footer", Target: item.To})
			}
		}
	}
	for _, name := range b.cfg.SidebarNames() {
		b.cfg.Sidebars[name].Walk(func(item site.SidebarItem, _ int) {
			switch {
			case item.Type == site.ItemDoc:
				b.links = append(b.links, Link{Source: "sidebar " + name, Target: b.site.DocRoute(item.ID)})
			case item.Internal():
				b.links = append(b.links, Link{Source: "sidebar " + name, Target: item.Href})
			}
		})
	}
}

// Site returns the rendering site.
func (b *Builder) Site() *pages.Site {
	return b.site
}

// Docs returns the loaded docs.
func (b *Builder) Docs() *docs.Store {
	return b.store
}

// Posts returns the blog posts, newest first.
func (b *Builder) Posts() []*docs.Post {
	return b.posts
}

// Config returns the site configuration.
func (b *Builder) Config() site.Config {
	return b.cfg
}

// Routes returns every page route, without base URL, sorted.
func (b *Builder) Routes() []string {
	routes := make([]string, 0, len(b.pages))
	for route := range b.pages {
		routes = append(routes, route)
	}
	sort.Strings(routes)
	return routes
}

// Links returns every internal link found in configuration and content.
func (b *Builder) Links() []Link {
	return append([]Link(nil), b.links...)
}

// BrokenLinks returns the internal links that resolve to neither a page
// nor a static asset.
func (b *Builder) BrokenLinks() []Link {
	var broken []Link
	for _, link := range b.links {
		if !b.exists(link.Target) {
			broken = append(broken, link)
		}
	}
	return broken
}

// CheckLinks reports broken internal links under the onBrokenLinks policy.
// Only "throw" turns them into an error.
func (b *Builder) CheckLinks() error {
	return b.report(b.cfg.OnBrokenLinks, ErrBrokenLinks, "broken link", b.BrokenLinks())
}

func (b *Builder) report(policy site.Policy, sentinel error, msg string, broken []Link) error {
	if len(broken) == 0 {
		return nil
	}
	switch policy {
	case site.PolicyThrow:
		parts := make([]string, 0, len(broken))
		for _, link := range broken {
			parts = append(parts, fmt.Sprintf("%s -> %s", link.Source, link.Target))
		}
		return fmt.Errorf("%w: %s", sentinel, strings.Join(parts, ", "))
	case site.PolicyWarn, site.PolicyLog:
		log := b.logger.Warn
		if policy == site.PolicyLog {
			log = b.logger.Info
		}
		for _, link := range broken {
			log(msg, zap.String("source", link.Source), zap.String("target", link.Target))
		}
	}
	return nil
}

// normalizeRoute strips query and fragment, cleans the path and removes a
// trailing slash.
func normalizeRoute(target string) string {
	if i := strings.IndexAny(target, "?#"); i >= 0 {
		target = target[:i]
	}
	if target == "" {
		return "/"
	}
	cleaned := path.Clean("/" + strings.TrimPrefix(target, "/"))
	return strings.TrimSuffix(cleaned, "/index.html")
}

func (b *Builder) exists(target string) bool {
	route := normalizeRoute(target)
	if route == "" {
		route = "/"
	}
	if _, ok := b.pages[route]; ok {
		return true
	}
	if _, ok := b.generated[strings.TrimPrefix(route, "/")]; ok {
		return true
	}
	info, err := fs.Stat(b.static, strings.TrimPrefix(route, "/"))
	return err == nil && !info.IsDir()
}

type linkResolver struct {
	b *Builder
}

func (r linkResolver) ResolveMarkdown(from, target string) (string, bool) {
	var p string
	if strings.HasPrefix(target, "/") {
		p = strings.TrimPrefix(path.Clean(target), "/")
	} else {
		p = path.Join(path.Dir(from), target)
	}
	switch {
	case strings.HasPrefix(p, "docs/"):
		doc, ok := r.b.store.ByPath(strings.TrimPrefix(p, "docs/"))
		if !ok {
			return "", false
		}
		return r.b.site.DocRoute(doc.ID), true
	case strings.HasPrefix(p, "blog/"):
		name := strings.TrimPrefix(p, "blog/")
		for _, post := range r.b.posts {
			if post.Source == name {
				return r.b.postRoute(post), true
			}
		}
	}
	return "", false
}

func (r linkResolver) URL(route string) string {
	return r.b.cfg.Path(route)
}
