package pages

import (
	"context"
	"html/template"
	"time"

	"github.com/aj-en/mcp-sim/internal/docs"
	"github.com/aj-en/mcp-sim/internal/render"
	"github.com/aj-en/mcp-sim/internal/site"
)

const layoutTemplate = "layout"

var (
	_ render.Page = HomePage{}
	_ render.Page = DocPage{}
	_ render.Page = BlogIndexPage{}
	_ render.Page = BlogPostPage{}
	_ render.Page = NotFoundPage{}
	_ render.Page = ServerErrorPage{}
)

// HomePage is the landing page.
type HomePage struct {
	Layout Layout
	Hero   Hero
}

// NewHomePage returns the landing page: a hero with a single "Get Started"
// link to the docs.
func NewHomePage(cfg site.Config) HomePage {
	return HomePage{
		Layout: NewLayout(cfg, "Composable scientific micro-models",
			"Turn any scientific formula into a live API in minutes."),
		Hero: Hero{
			Title:    template.HTML("Turn any scientific formula<br/>into a live API in minutes."),
			Subtitle: "MCP-Sim is a toolkit for scientists and engineers to deploy, compose, and scale complex models with zero friction.",
			Children: []HeroLink{{
				Label: "Get Started",
				To:    cfg.DocsRoute(),
				Class: "button button--primary button--lg",
			}},
		},
	}
}

func (HomePage) Templates(context.Context) []string {
	return []string{"pages/home.html"}
}

func (p HomePage) UseComponents(context.Context) []render.Component {
	return []render.Component{p.Layout, p.Hero}
}

func (HomePage) Key(context.Context) string              { return "home" }
func (HomePage) ExecutedTemplate(context.Context) string { return layoutTemplate }

// PageLink points at a neighbouring page.
type PageLink struct {
	Label string
	Href  string
}

// DocPage shows one doc with its sidebar and table of contents.
type DocPage struct {
	Layout          Layout
	Title           string
	HasTitleHeading bool
	Content         template.HTML
	Sidebar         DocSidebar
	TOC             TOC
	Prev            *PageLink
	Next            *PageLink
	EditURL         string
}

func (DocPage) Templates(context.Context) []string {
	return []string{"pages/doc.html"}
}

func (p DocPage) UseComponents(context.Context) []render.Component {
	return []render.Component{p.Layout, p.Sidebar, p.TOC}
}

func (DocPage) Key(context.Context) string              { return "doc" }
func (DocPage) ExecutedTemplate(context.Context) string { return layoutTemplate }

// PostSummary is a blog post as listed on the blog index.
type PostSummary struct {
	Title       string
	Href        string
	Date        time.Time
	Description string
	Authors     []string
	ReadingTime int
}

// BlogIndexPage lists every post, newest first.
type BlogIndexPage struct {
	Layout          Layout
	Title           string
	Posts           []PostSummary
	ShowReadingTime bool
}

func (BlogIndexPage) Templates(context.Context) []string {
	return []string{"pages/blog_index.html"}
}

func (p BlogIndexPage) UseComponents(context.Context) []render.Component {
	return []render.Component{p.Layout}
}

func (BlogIndexPage) Key(context.Context) string              { return "blog-index" }
func (BlogIndexPage) ExecutedTemplate(context.Context) string { return layoutTemplate }

// BlogPostPage shows one post. Newer and Older link to its neighbours.
type BlogPostPage struct {
	Layout          Layout
	Post            PostSummary
	HasTitleHeading bool
	Content         template.HTML
	TOC             TOC
	ShowReadingTime bool
	EditURL         string
	Newer           *PageLink
	Older           *PageLink
}

func (BlogPostPage) Templates(context.Context) []string {
	return []string{"pages/blog_post.html"}
}

func (p BlogPostPage) UseComponents(context.Context) []render.Component {
	return []render.Component{p.Layout, p.TOC}
}

func (BlogPostPage) Key(context.Context) string              { return "blog-post" }
func (BlogPostPage) ExecutedTemplate(context.Context) string { return layoutTemplate }

// NotFoundPage is served for unknown routes and written as 404.html.
type NotFoundPage struct {
	Layout Layout
}

// NewNotFoundPage returns the not-found page.
func NewNotFoundPage(cfg site.Config) NotFoundPage {
	return NotFoundPage{Layout: NewLayout(cfg, "Page Not Found", "")}
}

func (NotFoundPage) Templates(context.Context) []string {
	return []string{"pages/not_found.html"}
}

func (p NotFoundPage) UseComponents(context.Context) []render.Component {
	return []render.Component{p.Layout}
}

func (NotFoundPage) Key(context.Context) string              { return "not-found" }
func (NotFoundPage) ExecutedTemplate(context.Context) string { return layoutTemplate }

// ServerErrorPage is shown when a page fails to render. It uses nothing
// but its own template so it can't fail the same way.
type ServerErrorPage struct{}

// NewServerErrorPage returns the server error page.
func NewServerErrorPage() ServerErrorPage {
	return ServerErrorPage{}
}

func (ServerErrorPage) Templates(context.Context) []string {
	return []string{"pages/server_error.html"}
}

func (ServerErrorPage) Key(context.Context) string              { return "server-error" }
func (ServerErrorPage) ExecutedTemplate(context.Context) string { return "server_error" }

// Neighbours returns the IDs before and after id in order, or "" at either
// end or when id is absent.
func Neighbours(order []string, id string) (prev, next string) {
	for i, candidate := range order {
		if candidate != id {
			continue
		}
		if i > 0 {
			prev = order[i-1]
		}
		if i < len(order)-1 {
			next = order[i+1]
		}
		return prev, next
	}
	return "", ""
}

// Summarize converts a post for listing under href.
func Summarize(post *docs.Post, href string) PostSummary {
	return PostSummary{
		Title:       post.Title,
		Href:        href,
		Date:        post.Date,
		Description: post.Meta.Description,
		Authors:     post.Meta.Authors,
		ReadingTime: post.ReadingTime,
	}
}
