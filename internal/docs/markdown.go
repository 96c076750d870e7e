package docs

import (
	"bytes"
	"fmt"
	"html/template"
	"path"
	"strings"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
)

// Heading is a table-of-contents entry.
type Heading struct {
	Level int
	ID    string
	Text  string
}

// LinkResolver maps links found in markdown to site routes. Routes never
// include the base URL.
type LinkResolver interface {
	// ResolveMarkdown maps a link to a markdown file, relative to the
	// source file it appears in, to the route of the page built from it.
	ResolveMarkdown(from, target string) (route string, ok bool)

	// URL turns a route into the href written to the page.
	URL(route string) string
}

// Rendered is a markdown document converted to HTML.
type Rendered struct {
	HTML template.HTML
	TOC  []Heading

	// Links lists the internal routes the document links to, for link
	// checking after every page is known.
	Links []string

	// BrokenMarkdownLinks lists .md targets that matched no source file.
	BrokenMarkdownLinks []string
}

// Renderer converts markdown to HTML with GitHub flavoured extensions,
// heading anchors and syntax highlighted code blocks. Code is marked up
// with chroma classes; CodeCSS returns the matching stylesheet.
type Renderer struct {
	md        goldmark.Markdown
	codeTheme string
	darkTheme string
}

// DefaultCodeTheme is used when the configured theme is empty or unknown.
const DefaultCodeTheme = "github"

// RendererOption configures a Renderer.
type RendererOption func(*Renderer)

// WithDarkCodeTheme sets the chroma style used when the reader prefers a
// dark colour scheme. Unknown names are ignored.
func WithDarkCodeTheme(name string) RendererOption {
	return func(r *Renderer) {
		if KnownCodeTheme(name) {
			r.darkTheme = name
		}
	}
}

// NewRenderer returns a renderer highlighting code with the named chroma
// style.
func NewRenderer(codeTheme string, opts ...RendererOption) *Renderer {
	if !KnownCodeTheme(codeTheme) {
		codeTheme = DefaultCodeTheme
	}
	r := &Renderer{codeTheme: codeTheme}
	for _, opt := range opts {
		opt(r)
	}
	r.md = goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			highlighting.NewHighlighting(
				highlighting.WithStyle(codeTheme),
				highlighting.WithFormatOptions(chromahtml.WithClasses(true)),
			),
		),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		goldmark.WithRendererOptions(html.WithUnsafe()),
	)
	return r
}

// CodeCSS returns the stylesheet for highlighted code. The dark theme, if
// any, applies under prefers-color-scheme: dark.
func (r *Renderer) CodeCSS() []byte {
	var buf bytes.Buffer
	formatter := chromahtml.New(chromahtml.WithClasses(true))
	_ = formatter.WriteCSS(&buf, styles.Get(r.codeTheme))
	if r.darkTheme != "" && r.darkTheme != r.codeTheme {
		buf.WriteString("@media (prefers-color-scheme: dark) {\n")
		_ = formatter.WriteCSS(&buf, styles.Get(r.darkTheme))
		buf.WriteString("}\n")
	}
	return buf.Bytes()
}

// KnownCodeTheme reports whether chroma has a style with the given name.
func KnownCodeTheme(name string) bool {
	_, ok := styles.Registry[name]
	return ok
}

// Render converts source, the body of the file at sourcePath, into HTML.
// Links are rewritten through resolver; currentRoute anchors relative
// links that don't point at markdown files.
func (r *Renderer) Render(source []byte, sourcePath, currentRoute string, resolver LinkResolver) (Rendered, error) {
	var out Rendered
	root := r.md.Parser().Parse(text.NewReader(source))

	err := ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			if node.Level == 2 || node.Level == 3 {
				out.TOC = append(out.TOC, Heading{
					Level: node.Level,
					ID:    headingID(node),
					Text:  plainText(node, source),
				})
			}
		case *ast.Link:
			dest := string(node.Destination)
			rewritten, route, broken := rewriteLink(dest, sourcePath, currentRoute, resolver)
			switch {
			case broken:
				out.BrokenMarkdownLinks = append(out.BrokenMarkdownLinks, dest)
			case route != "":
				out.Links = append(out.Links, route)
			}
			node.Destination = []byte(rewritten)
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return Rendered{}, fmt.Errorf("walk %s: %w", sourcePath, err)
	}

	var buf bytes.Buffer
	if err := r.md.Renderer().Render(&buf, source, root); err != nil {
		return Rendered{}, fmt.Errorf("render %s: %w", sourcePath, err)
	}
	out.HTML = template.HTML(buf.String())
	return out, nil
}

// rewriteLink returns the href to emit, the internal route the link points
// at (empty for external and fragment links) and whether it is a markdown
// link to a missing file.
func rewriteLink(dest, sourcePath, currentRoute string, resolver LinkResolver) (string, string, bool) {
	if dest == "" || strings.HasPrefix(dest, "#") || isExternal(dest) {
		return dest, "", false
	}
	target, fragment, _ := strings.Cut(dest, "#")
	if fragment != "" {
		fragment = "#" + fragment
	}

	if strings.HasSuffix(target, ".md") || strings.HasSuffix(target, ".mdx") {
		route, ok := resolver.ResolveMarkdown(sourcePath, target)
		if !ok {
			return dest, "", true
		}
		return resolver.URL(route) + fragment, route, false
	}

	route := target
	if !strings.HasPrefix(target, "/") {
		route = path.Join(path.Dir(currentRoute), target)
	}
	return resolver.URL(route) + fragment, route, false
}

func isExternal(dest string) bool {
	if strings.HasPrefix(dest, "//") {
		return true
	}
	scheme, _, ok := strings.Cut(dest, ":")
	if !ok || scheme == "" {
		return false
	}
	for _, r := range scheme {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '+' || r == '-' || r == '.') {
			return false
		}
	}
	return true
}

func headingID(h *ast.Heading) string {
	v, ok := h.AttributeString("id")
	if !ok {
		return ""
	}
	switch id := v.(type) {
	case []byte:
		return string(id)
	case string:
		return id
	}
	return ""
}

// plainText concatenates the text segments below n, dropping markup.
func plainText(n ast.Node, source []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}

// firstHeading returns the text of a leading level-one heading, if the
// document starts with one.
func (r *Renderer) firstHeading(source []byte) (string, bool) {
	root := r.md.Parser().Parse(text.NewReader(source))
	first := root.FirstChild()
	h, ok := first.(*ast.Heading)
	if !ok || h.Level != 1 {
		return "", false
	}
	return plainText(h, source), true
}

// countWords counts whitespace separated words in the text of source,
// ignoring code blocks.
func (r *Renderer) countWords(source []byte) int {
	root := r.md.Parser().Parse(text.NewReader(source))
	words := 0
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := n.(type) {
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			return ast.WalkSkipChildren, nil
		case *ast.Text:
			words += len(strings.Fields(string(t.Segment.Value(source))))
		}
		return ast.WalkContinue, nil
	})
	return words
}
