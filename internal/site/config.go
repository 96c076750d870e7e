package site

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"slices"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned when a site configuration fails validation.
var ErrInvalidConfig = errors.New("invalid site configuration")

// Policy controls how a class of problem found at build time is reported.
type Policy string

const (
	PolicyIgnore Policy = "ignore"
	PolicyLog    Policy = "log"
	PolicyWarn   Policy = "warn"
	PolicyThrow  Policy = "throw"
)

func (p Policy) valid() bool {
	switch p {
	case PolicyIgnore, PolicyLog, PolicyWarn, PolicyThrow:
		return true
	}
	return false
}

// Config describes the documentation site. It is read once when the site is
// built and shared read-only afterwards.
type Config struct {
	Title                 string             `yaml:"title"`
	Tagline               string             `yaml:"tagline"`
	Favicon               string             `yaml:"favicon"`
	URL                   string             `yaml:"url"`
	BaseURL               string             `yaml:"baseUrl"`
	OrganizationName      string             `yaml:"organizationName"`
	ProjectName           string             `yaml:"projectName"`
	OnBrokenLinks         Policy             `yaml:"onBrokenLinks"`
	OnBrokenMarkdownLinks Policy             `yaml:"onBrokenMarkdownLinks"`
	I18n                  I18n               `yaml:"i18n"`
	Docs                  DocsOptions        `yaml:"docs"`
	Blog                  BlogOptions        `yaml:"blog"`
	Theme                 ThemeOptions       `yaml:"theme"`
	Navbar                Navbar             `yaml:"navbar"`
	Footer                Footer             `yaml:"footer"`
	Sidebars              map[string]Sidebar `yaml:"sidebars"`
}

// I18n lists the locales the site is published in.
type I18n struct {
	DefaultLocale string   `yaml:"defaultLocale"`
	Locales       []string `yaml:"locales"`
}

// DocsOptions configures the docs section.
type DocsOptions struct {
	RouteBasePath string `yaml:"routeBasePath"`
	EditURL       string `yaml:"editUrl"`
}

// BlogOptions configures the blog section.
type BlogOptions struct {
	Title           string `yaml:"title"`
	RouteBasePath   string `yaml:"routeBasePath"`
	ShowReadingTime bool   `yaml:"showReadingTime"`
	EditURL         string `yaml:"editUrl"`
}

// ThemeOptions configures styling.
type ThemeOptions struct {
	CustomCSS []string `yaml:"customCss"`

	// CodeTheme names the chroma style used to highlight code blocks.
	CodeTheme string `yaml:"codeTheme"`
	// CodeDarkTheme is the chroma style used when the reader prefers a
	// dark colour scheme. Empty keeps CodeTheme.
	CodeDarkTheme string `yaml:"codeDarkTheme"`
}

// Navbar is the bar at the top of every page.
type Navbar struct {
	Title string    `yaml:"title"`
	Logo  Logo      `yaml:"logo"`
	Items []NavItem `yaml:"items"`
}

// Logo is an image shown next to the navbar title.
type Logo struct {
	Alt string `yaml:"alt"`
	Src string `yaml:"src"`
}

// NavItemDocSidebar is the NavItem type that links to the first document of
// a sidebar.
const NavItemDocSidebar = "docSidebar"

// NavItem is a navbar entry. Internal links set To, external ones set Href,
// and docSidebar items set SidebarID.
type NavItem struct {
	Type      string `yaml:"type"`
	SidebarID string `yaml:"sidebarId"`
	To        string `yaml:"to"`
	Href      string `yaml:"href"`
	Label     string `yaml:"label"`
	Position  string `yaml:"position"`
}

// Footer is rendered at the bottom of every page. "{year}" in Copyright is
// replaced with the current year.
type Footer struct {
	Style     string         `yaml:"style"`
	Links     []FooterColumn `yaml:"links"`
	Copyright string         `yaml:"copyright"`
}

// FooterColumn is a titled group of footer links.
type FooterColumn struct {
	Title string       `yaml:"title"`
	Items []FooterLink `yaml:"items"`
}

// FooterLink is a single footer link; To is internal, Href external.
type FooterLink struct {
	Label string `yaml:"label"`
	To    string `yaml:"to"`
	Href  string `yaml:"href"`
}

// LoadFile reads a YAML file and overlays it on Default. Fields the file
// doesn't mention keep their default values.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read site config: %w", err)
	}
	return Parse(data)
}

// Parse overlays a YAML document on Default and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse site config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the site can't be built
// with.
func (c Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.Title) == "" {
		problems = append(problems, "title is required")
	}
	if u, err := url.Parse(c.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		problems = append(problems, fmt.Sprintf("url %q must be an absolute http(s) URL", c.URL))
	}
	if !strings.HasPrefix(c.BaseURL, "/") || !strings.HasSuffix(c.BaseURL, "/") {
		problems = append(problems, fmt.Sprintf("baseUrl %q must start and end with /", c.BaseURL))
	}
	if !c.OnBrokenLinks.valid() {
		problems = append(problems, fmt.Sprintf("onBrokenLinks %q is not one of ignore, log, warn, throw", c.OnBrokenLinks))
	}
	if !c.OnBrokenMarkdownLinks.valid() {
		problems = append(problems, fmt.Sprintf("onBrokenMarkdownLinks %q is not one of ignore, log, warn, throw", c.OnBrokenMarkdownLinks))
	}
	if c.I18n.DefaultLocale != "" && !slices.Contains(c.I18n.Locales, c.I18n.DefaultLocale) {
		problems = append(problems, fmt.Sprintf("i18n.defaultLocale %q is not listed in i18n.locales", c.I18n.DefaultLocale))
	}
	for i, item := range c.Navbar.Items {
		switch {
		case item.Type == NavItemDocSidebar:
			if _, ok := c.Sidebars[item.SidebarID]; !ok {
				problems = append(problems, fmt.Sprintf("navbar.items[%d] references unknown sidebar %q", i, item.SidebarID))
			}
		case item.Type != "":
			problems = append(problems, fmt.Sprintf("navbar.items[%d] has unknown type %q", i, item.Type))
		case item.To == "" && item.Href == "":
			problems = append(problems, fmt.Sprintf("navbar.items[%d] needs either to or href", i))
		}
	}
	for _, name := range c.SidebarNames() {
		if err := c.Sidebars[name].Validate(); err != nil {
			problems = append(problems, fmt.Sprintf("sidebar %s: %v", name, err))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// SidebarNames returns the sidebar names in a stable order.
func (c Config) SidebarNames() []string {
	names := make([]string, 0, len(c.Sidebars))
	for name := range c.Sidebars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SidebarFor returns the name and sidebar that contains the doc, if any.
func (c Config) SidebarFor(docID string) (string, Sidebar, bool) {
	for _, name := range c.SidebarNames() {
		sb := c.Sidebars[name]
		if slices.Contains(sb.DocIDs(), docID) {
			return name, sb, true
		}
	}
	return "", nil, false
}

// Path prefixes an internal path with the base URL.
func (c Config) Path(p string) string {
	return c.BaseURL + strings.TrimPrefix(p, "/")
}

// AbsoluteURL returns the public URL of an internal path.
func (c Config) AbsoluteURL(p string) string {
	return strings.TrimSuffix(c.URL, "/") + c.Path(p)
}

// DocsRoute returns the docs section root, without base URL.
func (c Config) DocsRoute() string {
	return "/" + strings.Trim(c.Docs.RouteBasePath, "/")
}

// DocRoute returns the route of a single doc, without base URL.
func (c Config) DocRoute(id string) string {
	return c.DocsRoute() + "/" + id
}

// BlogRoute returns the blog section root, without base URL.
func (c Config) BlogRoute() string {
	return "/" + strings.Trim(c.Blog.RouteBasePath, "/")
}

// Copyright returns the footer copyright line for the given year.
func (c Config) Copyright(year int) string {
	return strings.ReplaceAll(c.Footer.Copyright, "{year}", fmt.Sprint(year))
}

// EditURL returns the link for editing a source file, or "" when editing is
// not configured. rel is relative to the repository root.
func EditURL(base, rel string) string {
	if base == "" {
		return ""
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(rel, "/")
}
