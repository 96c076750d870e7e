package builder

import (
	"context"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/aj-en/mcp-sim/internal/render"
)

// Result summarises a static build.
type Result struct {
	Pages  int
	Assets int
}

// Build checks links, then writes every route as <route>/index.html below
// outDir, the not-found page as 404.html and the static assets. outDir
// becomes the base URL of the published site.
func (b *Builder) Build(ctx context.Context, outDir string) (Result, error) {
	var res Result
	if err := b.CheckLinks(); err != nil {
		return res, err
	}
	ctx = render.WithLogger(ctx, b.logger)

	for _, route := range b.Routes() {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		rel := filepath.FromSlash(strings.TrimPrefix(route, "/"))
		if rel != "" && !filepath.IsLocal(rel) {
			return res, fmt.Errorf("build %s: %w", route, ErrInvalidSlug)
		}
		target := filepath.Join(outDir, rel, "index.html")
		if err := b.writePage(ctx, target, b.pages[route]); err != nil {
			return res, fmt.Errorf("build %s: %w", route, err)
		}
		res.Pages++
	}
	if err := b.writePage(ctx, filepath.Join(outDir, "404.html"), b.notFound); err != nil {
		return res, fmt.Errorf("build 404 page: %w", err)
	}

	err := fs.WalkDir(b.static, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		data, err := fs.ReadFile(b.static, p)
		if err != nil {
			return err
		}
		if err := writeFile(filepath.Join(outDir, filepath.FromSlash(p)), data); err != nil {
			return err
		}
		res.Assets++
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("copy static assets: %w", err)
	}
	for _, name := range slices.Sorted(maps.Keys(b.generated)) {
		if err := writeFile(filepath.Join(outDir, filepath.FromSlash(name)), b.generated[name]); err != nil {
			return res, fmt.Errorf("write %s: %w", name, err)
		}
		res.Assets++
	}

	b.logger.Info("site built",
		zap.String("out", outDir),
		zap.Int("pages", res.Pages),
		zap.Int("assets", res.Assets),
	)
	return res, nil
}

func (b *Builder) writePage(ctx context.Context, target string, page render.Page) error {
	f, err := createFile(target)
	if err != nil {
		return err
	}
	if err := render.Execute(ctx, f, b.site, page); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func createFile(target string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}
	f, err := os.Create(target)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", target, err)
	}
	return f, nil
}

func writeFile(target string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	return os.WriteFile(target, data, 0o644)
}
