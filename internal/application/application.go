package application

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/aj-en/mcp-sim/internal/api"
	"github.com/aj-en/mcp-sim/internal/builder"
	"github.com/aj-en/mcp-sim/internal/config"
	"github.com/aj-en/mcp-sim/internal/metrics"
	"github.com/aj-en/mcp-sim/internal/node"
	"github.com/aj-en/mcp-sim/internal/simnode"
	"github.com/aj-en/mcp-sim/internal/site"
	"github.com/aj-en/mcp-sim/internal/storage"
)

// App encapsulates the application dependencies and HTTP server.
type App struct {
	storage  storage.Storage
	runtime  *node.Runtime
	site     *builder.Builder
	handler  *api.Handler
	router   http.Handler
	registry *prometheus.Registry
	logger   *zap.Logger
	server   *http.Server
}

// New initializes the application with all dependencies from the provided configuration.
func New(cfg config.Config, logger *zap.Logger) (*App, error) {
	meta, err := simnode.LoadMetadata(cfg.MetadataFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load node metadata: %w", err)
	}
	store, err := storage.NewMemoryStorage(meta)
	if err != nil {
		return nil, fmt.Errorf("failed to apply node metadata: %w", err)
	}

	registry := metrics.NewRegistry()
	rt, err := node.NewRuntime(simnode.New(store, logger.Named("node")),
		node.WithLogger(logger.Named("runtime")),
		node.WithObserver(metrics.NewExecutionMetrics(registry)),
		node.WithExecutionTimeout(cfg.ExecutionTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create node runtime: %w", err)
	}

	siteBuilder, err := NewSiteBuilder(cfg, logger.Named("site"))
	if err != nil {
		return nil, fmt.Errorf("failed to build site: %w", err)
	}
	if err := siteBuilder.CheckLinks(); err != nil {
		return nil, err
	}

	handler := api.NewHandler(rt, store)
	apiRouter := api.NewRouter(handler, logger,
		api.WithLogging(cfg.EnableRequestLogging),
		api.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
		api.WithMetrics(metrics.NewHTTPMetrics(registry)),
	)

	rootHandler := BuildRootHandler(apiRouter, metrics.Handler(registry), siteBuilder.Handler())

	return &App{
		storage:  store,
		runtime:  rt,
		site:     siteBuilder,
		handler:  handler,
		router:   apiRouter,
		registry: registry,
		logger:   logger,
		server:   NewServer(cfg, rootHandler),
	}, nil
}

// NewSiteBuilder assembles the documentation site from the configured site
// file and content directories, falling back to the embedded defaults.
func NewSiteBuilder(cfg config.Config, logger *zap.Logger) (*builder.Builder, error) {
	siteCfg := site.Default()
	if cfg.SiteFile != "" {
		loaded, err := site.LoadFile(cfg.SiteFile)
		if err != nil {
			return nil, err
		}
		siteCfg = loaded
	}

	opts := []builder.Option{builder.WithLogger(logger)}
	if cfg.DocsDir != "" {
		if err := requireDir(cfg.DocsDir); err != nil {
			return nil, err
		}
		opts = append(opts, builder.WithDocs(os.DirFS(cfg.DocsDir)))
	}
	if cfg.BlogDir != "" {
		if err := requireDir(cfg.BlogDir); err != nil {
			return nil, err
		}
		opts = append(opts, builder.WithBlog(os.DirFS(cfg.BlogDir)))
	}
	return builder.New(siteCfg, opts...)
}

// BuildRootHandler constructs the root HTTP handler. The node API and the
// metrics endpoint own their paths; everything else goes to the site.
func BuildRootHandler(apiHandler, metricsHandler, siteHandler http.Handler) http.Handler {
	mux := http.NewServeMux()
	for _, route := range api.Routes {
		mux.Handle(route, apiHandler)
	}
	mux.Handle("GET /metrics", metricsHandler)
	mux.Handle("/", siteHandler)
	return mux
}

// NewServer creates and configures an HTTP server from the provided configuration.
func NewServer(cfg config.Config, handler http.Handler) *http.Server {
	addr := cfg.Port
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// Start initializes the node and starts the HTTP server in a goroutine.
func (a *App) Start(ctx context.Context) error {
	if err := a.runtime.Start(ctx); err != nil {
		return err
	}
	go func() {
		a.logger.Info("server listening",
			zap.String("addr", a.server.Addr),
			zap.String("site", a.site.Config().BaseURL),
			zap.Strings("capabilities", a.runtime.ListCapabilities()),
		)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("server error", zap.Error(err))
		}
	}()
	return nil
}

// Shutdown gracefully stops the HTTP server, then cleans up the node.
func (a *App) Shutdown(ctx context.Context) error {
	serverErr := a.server.Shutdown(ctx)
	return errors.Join(serverErr, a.runtime.Stop(ctx))
}

// Close stops the HTTP server immediately, then cleans up the node.
func (a *App) Close() error {
	serverErr := a.server.Close()
	return errors.Join(serverErr, a.runtime.Stop(context.Background()))
}

// Server returns the HTTP server instance.
func (a *App) Server() *http.Server {
	return a.server
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler {
	return a.server.Handler
}

func requireDir(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("content directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("content directory %s is not a directory", path)
	}
	return nil
}
