package site

const repoURL = "https://github.com/AJ-EN/mcp-sim-starter-kit"

// Default returns the MCP-Sim site configuration. Each call returns a fresh
// value that callers may modify.
func Default() Config {
	return Config{
		Title:                 "MCP-Sim",
		Tagline:               "Composable scientific micro-models",
		Favicon:               "img/favicon.svg",
		URL:                   "https://AJ-EN.github.io",
		BaseURL:               "/mcp-sim-starter-kit/",
		OrganizationName:      "AJ-EN",
		ProjectName:           "mcp-sim-starter-kit",
		OnBrokenLinks:         PolicyThrow,
		OnBrokenMarkdownLinks: PolicyWarn,
		I18n: I18n{
			DefaultLocale: "en",
			Locales:       []string{"en"},
		},
		Docs: DocsOptions{
			RouteBasePath: "docs",
			EditURL:       repoURL + "/tree/main/",
		},
		Blog: BlogOptions{
			Title:           "Changelog",
			RouteBasePath:   "blog",
			ShowReadingTime: true,
			EditURL:         repoURL + "/tree/main/",
		},
		Theme: ThemeOptions{
			CustomCSS:     []string{"css/custom.css"},
			CodeTheme:     "github",
			CodeDarkTheme: "onedark",
		},
		Navbar: Navbar{
			Title: "MCP-Sim",
			Logo: Logo{
				Alt: "MCP-Sim Logo",
				Src: "img/logo.svg",
			},
			Items: []NavItem{
				{Type: NavItemDocSidebar, SidebarID: "tutorialSidebar", Position: "left", Label: "Documentation"},
				{To: "/blog", Label: "Changelog", Position: "left"},
				{Href: repoURL, Label: "GitHub", Position: "right"},
			},
		},
		Footer: Footer{
			Style:     "dark",
			Copyright: "Copyright © {year} MCP-Sim",
		},
		Sidebars: map[string]Sidebar{
			"tutorialSidebar": {
				Doc("intro", "Introduction"),
				Doc("quick-start", "Quick Start"),
				Category("Core Concepts", false,
					Doc("sdk-overview", ""),
					Doc("schema-spec", ""),
				),
				Category("Guides", true,
					Doc("local-testing", ""),
					Doc("docker-deploy", ""),
				),
				Category("Reference", true,
					Doc("cli-reference", ""),
					Doc("router-api", ""),
				),
				Doc("contributing", ""),
				Doc("faq", ""),
			},
		},
	}
}
