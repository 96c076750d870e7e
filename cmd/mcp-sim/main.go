package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"

	"github.com/aj-en/mcp-sim/internal/config"
	"github.com/aj-en/mcp-sim/internal/logging"
	"github.com/aj-en/mcp-sim/internal/tracing"
)

const traceFlushTimeout = 5 * time.Second

var signalNotify = signal.Notify

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "mcp-sim: %v\n", err)
		os.Exit(1)
	}
}

// cli holds the parsed command line.
type cli struct {
	app *kingpin.Application

	configFile       *string
	envFile          *string
	logLevel         *string
	port             *string
	rateLimitRPS     *float64
	rateLimitBurst   *int
	siteFile         *string
	docsDir          *string
	blogDir          *string
	metadataFile     *string
	executionTimeout *time.Duration
	timeoutSet       bool
	traceExporter    *string

	serve            *kingpin.CmdClause
	build            *kingpin.CmdClause
	buildOut         *string
	docsTree         *kingpin.CmdClause
	docsShow         *kingpin.CmdClause
	docsShowID       *string
	docsShowStyle    *string
	docsShowWidth    *int
	metadataValidate *kingpin.CmdClause
	metadataFileArg  *string
	metadataSchema   *kingpin.CmdClause
}

func newCLI() *cli {
	app := kingpin.New("mcp-sim", "MCP-Sim - serve scientific micro-model nodes and their documentation site")
	c := &cli{app: app}

	c.configFile = app.Flag("config", "Path to YAML configuration file").String()
	c.envFile = app.Flag("env-file", "Path to a .env file (defaults to ./.env when present)").String()
	c.logLevel = app.Flag("log-level", "Minimum log level (debug, info, warn, error)").Default("info").String()
	c.port = app.Flag("port", "HTTP port exposed by the service").String()
	c.rateLimitRPS = app.Flag("rate-limit-rps", "Requests per second allowed (set 0 to disable)").Default("-1").Float64()
	c.rateLimitBurst = app.Flag("rate-limit-burst", "Burst capacity for rate limiter").Default("-1").Int()
	c.siteFile = app.Flag("site-file", "YAML file overlaid on the built-in site configuration").String()
	c.docsDir = app.Flag("docs-dir", "Directory of markdown docs replacing the embedded ones").String()
	c.blogDir = app.Flag("blog-dir", "Directory of blog posts replacing the embedded ones").String()
	c.metadataFile = app.Flag("metadata-file", "Node metadata JSON file").String()
	c.executionTimeout = app.Flag("execution-timeout", "Upper bound for a single capability execution (0 disables)").
		IsSetByUser(&c.timeoutSet).Duration()
	c.traceExporter = app.Flag("trace-exporter", "Where to send OpenTelemetry spans: none, stdout").String()

	c.serve = app.Command("serve", "Serve the node API and the documentation site").Default()

	c.build = app.Command("build", "Write the documentation site as static files")
	c.buildOut = c.build.Flag("out", "Output directory").String()

	docs := app.Command("docs", "Inspect the documentation")
	c.docsTree = docs.Command("tree", "Print the sidebar tree")
	c.docsShow = docs.Command("show", "Render a doc in the terminal")
	c.docsShowID = c.docsShow.Arg("id", "Doc ID, e.g. quick-start").Required().String()
	c.docsShowStyle = c.docsShow.Flag("style", "glamour style: auto, dark, light, notty").Default("auto").String()
	c.docsShowWidth = c.docsShow.Flag("width", "Word wrap width").Default("80").Int()

	metadata := app.Command("metadata", "Work with node metadata documents")
	c.metadataValidate = metadata.Command("validate", "Validate a metadata file against the schema")
	c.metadataFileArg = c.metadataValidate.Arg("file", "Metadata JSON file").Required().ExistingFile()
	c.metadataSchema = metadata.Command("schema", "Print the metadata JSON schema")

	return c
}

func (c *cli) overrides() *config.CLIOverrides {
	overrides := &config.CLIOverrides{
		ConfigFile: *c.configFile,
		EnvFile:    *c.envFile,
	}
	setString := func(dst **string, v *string) {
		if *v != "" {
			*dst = v
		}
	}
	setString(&overrides.Port, c.port)
	setString(&overrides.SiteFile, c.siteFile)
	setString(&overrides.DocsDir, c.docsDir)
	setString(&overrides.BlogDir, c.blogDir)
	setString(&overrides.MetadataFile, c.metadataFile)
	setString(&overrides.OutputDir, c.buildOut)
	setString(&overrides.TraceExporter, c.traceExporter)

	if *c.rateLimitRPS >= 0 {
		overrides.RateLimitRPS = c.rateLimitRPS
	}
	if *c.rateLimitBurst >= 0 {
		overrides.RateLimitBurst = c.rateLimitBurst
	}
	if c.timeoutSet {
		overrides.ExecutionTimeout = c.executionTimeout
	}
	return overrides
}

func run(args []string, stdout io.Writer) error {
	c := newCLI()
	command, err := c.app.Parse(args)
	if err != nil {
		return err
	}

	// The schema doesn't depend on configuration.
	if command == c.metadataSchema.FullCommand() {
		return printSchema(stdout)
	}
	if command == c.metadataValidate.FullCommand() {
		return validateMetadata(stdout, *c.metadataFileArg)
	}

	cfg, err := config.Load(c.overrides())
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logOpts := []logging.Option{logging.WithLevel(*c.logLevel)}
	if command != c.serve.FullCommand() {
		logOpts = append(logOpts, logging.WithConsole())
	}
	logger, err := logging.New(logOpts...)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	shutdownTracing, err := tracing.Setup(cfg.TraceExporter, c.app.Name, stdout)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), traceFlushTimeout)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.Warn("failed to flush traces", zap.Error(err))
		}
	}()

	switch command {
	case c.build.FullCommand():
		return buildSite(cfg, logger, stdout)
	case c.docsTree.FullCommand():
		return docsTree(cfg, logger, stdout)
	case c.docsShow.FullCommand():
		return docsShow(cfg, logger, stdout, *c.docsShowID, *c.docsShowStyle, *c.docsShowWidth)
	default:
		return serve(cfg, logger)
	}
}

func logFields(cfg config.Config) []zap.Field {
	return []zap.Field{
		zap.String("port", cfg.Port),
		zap.Float64("rate_limit_rps", cfg.RateLimitRPS),
		zap.Int("rate_limit_burst", cfg.RateLimitBurst),
		zap.Duration("execution_timeout", cfg.ExecutionTimeout),
		zap.String("trace_exporter", cfg.TraceExporter),
	}
}
