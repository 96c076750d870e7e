package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/tree"
	"go.uber.org/zap"

	"github.com/aj-en/mcp-sim/internal/application"
	"github.com/aj-en/mcp-sim/internal/builder"
	"github.com/aj-en/mcp-sim/internal/config"
	"github.com/aj-en/mcp-sim/internal/node"
	"github.com/aj-en/mcp-sim/internal/site"
)

var (
	treeRootStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	treeBranchStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	categoryStyle   = lipgloss.NewStyle().Bold(true)
	routeStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	linkStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
)

func serve(cfg config.Config, logger *zap.Logger) error {
	logger.Info("starting mcp-sim", logFields(cfg)...)

	app, err := application.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	if err := app.Start(context.Background()); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	shutdown(app, cfg.ShutdownGracePeriod, logger)
	return nil
}

type shutdowner interface {
	Shutdown(ctx context.Context) error
	Close() error
}

func shutdown(server shutdowner, timeout time.Duration, logger *zap.Logger) {
	quit := make(chan os.Signal, 1)
	signalNotify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
		if closeErr := server.Close(); closeErr != nil {
			logger.Error("forced close failed", zap.Error(closeErr))
		}
	}
}

func buildSite(cfg config.Config, logger *zap.Logger, stdout io.Writer) error {
	b, err := application.NewSiteBuilder(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := b.Build(ctx, cfg.OutputDir)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Wrote %d pages and %d assets to %s\n", res.Pages, res.Assets, cfg.OutputDir)
	return nil
}

func docsTree(cfg config.Config, logger *zap.Logger, stdout io.Writer) error {
	b, err := application.NewSiteBuilder(cfg, logger)
	if err != nil {
		return err
	}
	siteCfg := b.Config()
	for _, name := range siteCfg.SidebarNames() {
		t := sidebarTree(b, name, siteCfg.Sidebars[name])
		fmt.Fprintln(stdout, t.String())
	}
	return nil
}

func sidebarTree(b *builder.Builder, name string, sb site.Sidebar) *tree.Tree {
	t := tree.Root(name).
		RootStyle(treeRootStyle).
		Enumerator(tree.RoundedEnumerator).
		EnumeratorStyle(treeBranchStyle)
	addSidebarItems(b, t, sb)
	return t
}

func addSidebarItems(b *builder.Builder, t *tree.Tree, items []site.SidebarItem) {
	for _, item := range items {
		switch item.Type {
		case site.ItemCategory:
			sub := tree.Root(categoryStyle.Render(item.Label)).
				Enumerator(tree.RoundedEnumerator).
				EnumeratorStyle(treeBranchStyle)
			addSidebarItems(b, sub, item.Items)
			t.Child(sub)
		case site.ItemLink:
			t.Child(item.Label + " " + linkStyle.Render(item.Href))
		default:
			label := item.Label
			if doc, ok := b.Docs().Get(item.ID); ok && label == "" {
				label = doc.Label()
			}
			if label == "" {
				label = item.ID
			}
			t.Child(label + " " + routeStyle.Render(b.Site().DocRoute(item.ID)))
		}
	}
}

func docsShow(cfg config.Config, logger *zap.Logger, stdout io.Writer, id, style string, width int) error {
	b, err := application.NewSiteBuilder(cfg, logger)
	if err != nil {
		return err
	}
	doc, ok := b.Docs().Get(id)
	if !ok {
		return fmt.Errorf("unknown doc %q; available: %v", id, b.Docs().IDs())
	}

	styleOpt := glamour.WithAutoStyle()
	if style != "auto" {
		styleOpt = glamour.WithStandardStyle(style)
	}
	renderer, err := glamour.NewTermRenderer(styleOpt, glamour.WithWordWrap(width))
	if err != nil {
		return fmt.Errorf("create terminal renderer: %w", err)
	}

	source := string(doc.Body)
	if !doc.HasTitleHeading {
		source = "# " + doc.Title + "\n\n" + source
	}
	out, err := renderer.Render(source)
	if err != nil {
		return fmt.Errorf("render %s: %w", id, err)
	}
	_, err = io.WriteString(stdout, out)
	return err
}

func validateMetadata(stdout io.Writer, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := node.ValidateMetadataJSON(data); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	fmt.Fprintf(stdout, "%s: valid\n", path)
	return nil
}

func printSchema(stdout io.Writer) error {
	_, err := stdout.Write(node.MetadataSchema())
	return err
}
