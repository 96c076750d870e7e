package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"maps"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var (
	// ErrNoTemplatePath is returned when a page and its components name no
	// templates.
	ErrNoTemplatePath = errors.New("need at least one template path")

	// ErrTemplatePatternMatchesNoFiles is returned when a template pattern
	// matches nothing in the site's template filesystem.
	ErrTemplatePatternMatchesNoFiles = errors.New("pattern matches no files")
)

// ServerErrorMessage is written when rendering fails and the site has no
// error page.
const ServerErrorMessage = "Server error."

// Component is a piece of UI rendered from html/template files.
type Component interface {
	// Templates returns glob patterns, relative to the site's template
	// filesystem, of the files the component needs parsed.
	Templates(ctx context.Context) []string
}

// ComponentUser is implemented by Components built from other Components.
// Templates, FuncMaps and CSS links of the used Components are collected
// automatically.
type ComponentUser interface {
	UseComponents(ctx context.Context) []Component
}

// FuncMapExtender is implemented by Components and Sites that add
// functions to the template FuncMap.
type FuncMapExtender interface {
	FuncMap(ctx context.Context) template.FuncMap
}

// CSSLinker is implemented by Components that need stylesheets. The URLs
// are available to templates as .LinkedCSS, without duplicates.
type CSSLinker interface {
	LinkCSS(ctx context.Context) []string
}

// Page is a Component that can be rendered on its own.
type Page interface {
	Component

	// Key identifies the set of templates the page parses, for caching.
	// Pages with the same key must name the same templates.
	Key(ctx context.Context) string

	// ExecutedTemplate names the template to execute, usually the base
	// layout the page fills blocks in.
	ExecutedTemplate(ctx context.Context) string
}

// RenderData is passed to the executed template.
type RenderData[SiteType Site, PageType Page] struct {
	Site      SiteType
	Page      PageType
	LinkedCSS []string
}

// Render writes page to out. If rendering fails and the site implements
// ServerErrorPager, the error page is written instead; otherwise
// ServerErrorMessage is. The rendering error is returned either way so
// callers can pick a status code. Nothing from a failed attempt reaches
// out.
func Render[SiteType Site, PageType Page](ctx context.Context, out io.Writer, site SiteType, page PageType) error {
	var buf bytes.Buffer
	err := Execute(ctx, &buf, site, page)
	if err == nil {
		_, err = buf.WriteTo(out)
		return err
	}

	logger := loggerFrom(ctx)
	logger.Error("error rendering page", zap.String("page", fmt.Sprintf("%T", page)), zap.Error(err))

	if pager, ok := Site(site).(ServerErrorPager); ok {
		buf.Reset()
		pageErr := Execute(ctx, &buf, site, pager.ServerErrorPage(ctx))
		if pageErr == nil {
			if _, werr := buf.WriteTo(out); werr != nil {
				logger.Error("error writing server error page", zap.Error(werr))
			}
			return err
		}
		logger.Error("error rendering server error page", zap.Error(pageErr))
	}

	if _, werr := io.WriteString(out, ServerErrorMessage); werr != nil {
		logger.Error("error writing server error message", zap.Error(werr))
	}
	return err
}

// Execute renders page to out without any fallback.
func Execute[SiteType Site, PageType Page](ctx context.Context, out io.Writer, site SiteType, page PageType) (err error) {
	ctx, span := tracerFrom(ctx).Start(ctx, "render.Execute")
	span.SetAttributes(attribute.String("render.page", fmt.Sprintf("%T", page)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	tmpl, err := getTemplate(ctx, site, page)
	if err != nil {
		return err
	}

	data := RenderData[SiteType, PageType]{
		Site:      site,
		Page:      page,
		LinkedCSS: componentCSSLinks(ctx, page),
	}

	executed := page.ExecutedTemplate(ctx)
	if err := tmpl.ExecuteTemplate(out, executed, data); err != nil {
		return fmt.Errorf("execute template %q for %T: %w", executed, page, err)
	}
	return nil
}

func getTemplate(ctx context.Context, site Site, page Page) (*template.Template, error) {
	key := page.Key(ctx)
	cache, caches := site.(TemplateCacher)
	if caches {
		if cached := cache.GetCachedTemplate(ctx, key); cached != nil {
			return cached, nil
		}
	}
	paths := componentTemplatePaths(ctx, page)
	if len(paths) == 0 {
		return nil, fmt.Errorf("render %T: %w", page, ErrNoTemplatePath)
	}
	parsed, err := parseTemplates(site.TemplateDir(ctx), componentFuncMap(ctx, site, page), paths...)
	if err != nil {
		return nil, fmt.Errorf("parse templates %v for %T: %w", paths, page, err)
	}
	if caches {
		cache.SetCachedTemplate(ctx, key, parsed)
	}
	return parsed, nil
}

// recursiveComponents returns component followed by everything it uses,
// depth-first.
func recursiveComponents(ctx context.Context, component Component) []Component {
	results := []Component{component}
	if user, ok := component.(ComponentUser); ok {
		for _, child := range user.UseComponents(ctx) {
			results = append(results, recursiveComponents(ctx, child)...)
		}
	}
	return results
}

func componentTemplatePaths(ctx context.Context, component Component) []string {
	var results []string
	seen := map[string]struct{}{}
	for _, comp := range recursiveComponents(ctx, component) {
		for _, p := range comp.Templates(ctx) {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			results = append(results, p)
		}
	}
	return results
}

func componentFuncMap(ctx context.Context, site Site, component Component) template.FuncMap {
	results := template.FuncMap{}
	if ext, ok := site.(FuncMapExtender); ok {
		results = mergeFuncMaps(results, ext.FuncMap(ctx))
	}
	for _, comp := range recursiveComponents(ctx, component) {
		if ext, ok := comp.(FuncMapExtender); ok {
			results = mergeFuncMaps(results, ext.FuncMap(ctx))
		}
	}
	return results
}

func componentCSSLinks(ctx context.Context, component Component) []string {
	var results []string
	seen := map[string]struct{}{}
	for _, comp := range recursiveComponents(ctx, component) {
		linker, ok := comp.(CSSLinker)
		if !ok {
			continue
		}
		for _, href := range linker.LinkCSS(ctx) {
			if _, ok := seen[href]; ok {
				continue
			}
			seen[href] = struct{}{}
			results = append(results, href)
		}
	}
	return results
}

func parseTemplates(fsys fs.FS, funcs template.FuncMap, patterns ...string) (*template.Template, error) {
	var files []string
	for _, pattern := range patterns {
		list, err := fs.Glob(fsys, pattern)
		if err != nil {
			return nil, fmt.Errorf("list files for %q: %w", pattern, err)
		}
		if len(list) == 0 {
			return nil, fmt.Errorf("parse %q: %w", pattern, ErrTemplatePatternMatchesNoFiles)
		}
		files = append(files, list...)
	}
	tmpl := template.New("").Funcs(funcs)
	for _, file := range files {
		contents, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("read %q: %w", file, err)
		}
		if _, err := tmpl.New(file).Parse(string(contents)); err != nil {
			return nil, fmt.Errorf("parse %q: %w", file, err)
		}
	}
	return tmpl, nil
}

// mergeFuncMaps returns a new FuncMap with the entries of both, override
// winning on conflicts.
func mergeFuncMaps(base, override template.FuncMap) template.FuncMap {
	res := make(template.FuncMap, len(base)+len(override))
	maps.Copy(res, base)
	maps.Copy(res, override)
	return res
}
