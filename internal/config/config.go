package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/aj-en/mcp-sim/internal/tracing"
)

const (
	defaultPort           = "5000"
	defaultRateLimitRPS   = 25.0
	defaultRateLimitBurst = 50
	defaultOutputDir      = "build"
)

// ErrInvalidConfig is returned when the resolved configuration can't be
// used.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config aggregates runtime configuration resolved from multiple sources.
// Precedence: CLI flags > YAML config > Environment variables > .env file > Defaults
type Config struct {
	Port                 string
	ShutdownGracePeriod  time.Duration
	ReadHeaderTimeout    time.Duration
	WriteTimeout         time.Duration
	IdleTimeout          time.Duration
	EnableRequestLogging bool
	RateLimitRPS         float64
	RateLimitBurst       int

	// SiteFile is a YAML file overlaid on the built-in site configuration.
	SiteFile string
	// DocsDir and BlogDir replace the embedded markdown content.
	DocsDir string
	BlogDir string
	// MetadataFile holds the node metadata; the built-in metadata is used
	// when it is empty or missing.
	MetadataFile string
	// ExecutionTimeout bounds each capability call. Zero means no limit.
	ExecutionTimeout time.Duration
	// OutputDir is where the build command writes the static site.
	OutputDir string
	// TraceExporter selects where spans go: none or stdout.
	TraceExporter string
}

// yamlConfig represents the YAML configuration file structure.
type yamlConfig struct {
	Port                 string        `yaml:"port"`
	ShutdownGracePeriod  string        `yaml:"shutdown_grace_period"`
	ReadHeaderTimeout    string        `yaml:"read_header_timeout"`
	WriteTimeout         string        `yaml:"write_timeout"`
	IdleTimeout          string        `yaml:"idle_timeout"`
	EnableRequestLogging *bool         `yaml:"enable_request_logging"`
	RateLimit            yamlRateLimit `yaml:"rate_limit"`
	SiteFile             string        `yaml:"site_file"`
	DocsDir              string        `yaml:"docs_dir"`
	BlogDir              string        `yaml:"blog_dir"`
	MetadataFile         string        `yaml:"metadata_file"`
	ExecutionTimeout     string        `yaml:"execution_timeout"`
	OutputDir            string        `yaml:"output_dir"`
	TraceExporter        string        `yaml:"trace_exporter"`
}

// yamlRateLimit represents the rate limit section in YAML.
type yamlRateLimit struct {
	RPS   *float64 `yaml:"rps"`
	Burst *int     `yaml:"burst"`
}

// CLIOverrides holds command-line flag overrides. Nil and empty values
// leave the setting alone.
type CLIOverrides struct {
	ConfigFile       string
	EnvFile          string
	Port             *string
	RateLimitRPS     *float64
	RateLimitBurst   *int
	SiteFile         *string
	DocsDir          *string
	BlogDir          *string
	MetadataFile     *string
	ExecutionTimeout *time.Duration
	OutputDir        *string
	TraceExporter    *string
}

// Load extracts configuration from multiple sources with precedence:
// CLI flags > YAML config > Environment variables > .env file > Defaults
func Load(overrides *CLIOverrides) (Config, error) {
	cfg := defaultConfig()

	// .env only fills variables the environment doesn't already set
	if overrides != nil && overrides.EnvFile != "" {
		if err := godotenv.Load(overrides.EnvFile); err != nil {
			return Config{}, fmt.Errorf("load env file: %w", err)
		}
	} else {
		_ = godotenv.Load()
	}

	if err := applyEnvConfig(&cfg); err != nil {
		return Config{}, err
	}

	if overrides != nil && overrides.ConfigFile != "" {
		yamlCfg, err := loadFromFile(overrides.ConfigFile)
		if err != nil {
			return Config{}, fmt.Errorf("load YAML config: %w", err)
		}
		if err := applyYAMLConfig(&cfg, yamlCfg); err != nil {
			return Config{}, err
		}
	}

	if overrides != nil {
		applyCLIOverrides(&cfg, overrides)
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// defaultConfig returns a Config with default values.
func defaultConfig() Config {
	return Config{
		Port:                 defaultPort,
		ShutdownGracePeriod:  10 * time.Second,
		ReadHeaderTimeout:    5 * time.Second,
		WriteTimeout:         15 * time.Second,
		IdleTimeout:          60 * time.Second,
		EnableRequestLogging: true,
		RateLimitRPS:         defaultRateLimitRPS,
		RateLimitBurst:       defaultRateLimitBurst,
		OutputDir:            defaultOutputDir,
		TraceExporter:        tracing.ExporterNone,
	}
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(path string) (*yamlConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	return &yamlCfg, nil
}

// applyYAMLConfig applies YAML configuration to the Config struct.
func applyYAMLConfig(cfg *Config, yamlCfg *yamlConfig) error {
	setString(&cfg.Port, yamlCfg.Port)
	setString(&cfg.SiteFile, yamlCfg.SiteFile)
	setString(&cfg.DocsDir, yamlCfg.DocsDir)
	setString(&cfg.BlogDir, yamlCfg.BlogDir)
	setString(&cfg.MetadataFile, yamlCfg.MetadataFile)
	setString(&cfg.OutputDir, yamlCfg.OutputDir)
	setString(&cfg.TraceExporter, yamlCfg.TraceExporter)

	durations := []struct {
		key   string
		raw   string
		value *time.Duration
	}{
		{"shutdown_grace_period", yamlCfg.ShutdownGracePeriod, &cfg.ShutdownGracePeriod},
		{"read_header_timeout", yamlCfg.ReadHeaderTimeout, &cfg.ReadHeaderTimeout},
		{"write_timeout", yamlCfg.WriteTimeout, &cfg.WriteTimeout},
		{"idle_timeout", yamlCfg.IdleTimeout, &cfg.IdleTimeout},
		{"execution_timeout", yamlCfg.ExecutionTimeout, &cfg.ExecutionTimeout},
	}
	for _, d := range durations {
		if err := setDuration(d.value, d.raw); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, d.key, err)
		}
	}

	if yamlCfg.EnableRequestLogging != nil {
		cfg.EnableRequestLogging = *yamlCfg.EnableRequestLogging
	}
	if yamlCfg.RateLimit.RPS != nil {
		cfg.RateLimitRPS = *yamlCfg.RateLimit.RPS
	}
	if yamlCfg.RateLimit.Burst != nil {
		cfg.RateLimitBurst = *yamlCfg.RateLimit.Burst
	}
	return nil
}

// applyEnvConfig applies environment variable configuration.
func applyEnvConfig(cfg *Config) error {
	setString(&cfg.Port, env("PORT"))
	setString(&cfg.SiteFile, env("MCP_SIM_SITE_FILE"))
	setString(&cfg.DocsDir, env("MCP_SIM_DOCS_DIR"))
	setString(&cfg.BlogDir, env("MCP_SIM_BLOG_DIR"))
	setString(&cfg.MetadataFile, env("MCP_SIM_METADATA_FILE"))
	setString(&cfg.OutputDir, env("MCP_SIM_OUTPUT_DIR"))
	setString(&cfg.TraceExporter, env("OTEL_TRACES_EXPORTER"))

	if rps := env("RATE_LIMIT_RPS"); rps != "" {
		if value, err := strconv.ParseFloat(rps, 64); err == nil && value >= 0 {
			cfg.RateLimitRPS = value
		}
	}

	if burst := env("RATE_LIMIT_BURST"); burst != "" {
		if value, err := strconv.Atoi(burst); err == nil && value >= 0 {
			cfg.RateLimitBurst = value
		}
	}

	if logging := env("MCP_SIM_ENABLE_REQUEST_LOGGING"); logging != "" {
		value, err := strconv.ParseBool(logging)
		if err != nil {
			return fmt.Errorf("%w: MCP_SIM_ENABLE_REQUEST_LOGGING: %w", ErrInvalidConfig, err)
		}
		cfg.EnableRequestLogging = value
	}

	if err := setDuration(&cfg.ShutdownGracePeriod, env("MCP_SIM_SHUTDOWN_GRACE_PERIOD")); err != nil {
		return fmt.Errorf("%w: MCP_SIM_SHUTDOWN_GRACE_PERIOD: %w", ErrInvalidConfig, err)
	}
	if err := setDuration(&cfg.ExecutionTimeout, env("MCP_SIM_EXECUTION_TIMEOUT")); err != nil {
		return fmt.Errorf("%w: MCP_SIM_EXECUTION_TIMEOUT: %w", ErrInvalidConfig, err)
	}
	return nil
}

// applyCLIOverrides applies command-line flag overrides.
func applyCLIOverrides(cfg *Config, overrides *CLIOverrides) {
	setStringPtr(&cfg.Port, overrides.Port)
	setStringPtr(&cfg.SiteFile, overrides.SiteFile)
	setStringPtr(&cfg.DocsDir, overrides.DocsDir)
	setStringPtr(&cfg.BlogDir, overrides.BlogDir)
	setStringPtr(&cfg.MetadataFile, overrides.MetadataFile)
	setStringPtr(&cfg.OutputDir, overrides.OutputDir)
	setStringPtr(&cfg.TraceExporter, overrides.TraceExporter)

	if overrides.RateLimitRPS != nil && *overrides.RateLimitRPS >= 0 {
		cfg.RateLimitRPS = *overrides.RateLimitRPS
	}

	if overrides.RateLimitBurst != nil && *overrides.RateLimitBurst >= 0 {
		cfg.RateLimitBurst = *overrides.RateLimitBurst
	}

	if overrides.ExecutionTimeout != nil {
		cfg.ExecutionTimeout = *overrides.ExecutionTimeout
	}
}

// validateConfig validates the final configuration.
func validateConfig(cfg Config) error {
	if cfg.RateLimitRPS < 0 {
		return fmt.Errorf("%w: RATE_LIMIT_RPS must be >= 0", ErrInvalidConfig)
	}
	if cfg.RateLimitBurst < 0 {
		return fmt.Errorf("%w: RATE_LIMIT_BURST must be >= 0", ErrInvalidConfig)
	}
	if cfg.ExecutionTimeout < 0 {
		return fmt.Errorf("%w: execution timeout must be >= 0", ErrInvalidConfig)
	}
	if cfg.ShutdownGracePeriod < 0 {
		return fmt.Errorf("%w: shutdown grace period must be >= 0", ErrInvalidConfig)
	}
	if !tracing.ValidExporter(cfg.TraceExporter) {
		return fmt.Errorf("%w: trace exporter %q is not one of none, stdout, console", ErrInvalidConfig, cfg.TraceExporter)
	}
	if !validPort(cfg.Port) {
		return fmt.Errorf("%w: port %q is not a valid TCP port", ErrInvalidConfig, cfg.Port)
	}
	return nil
}

// validPort accepts a bare port or a host:port listen address.
func validPort(value string) bool {
	if strings.Contains(value, ":") {
		_, p, err := net.SplitHostPort(value)
		if err != nil {
			return false
		}
		value = p
	}
	port, err := strconv.Atoi(value)
	return err == nil && port >= 0 && port <= 65535
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func setString(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

func setStringPtr(dst *string, value *string) {
	if value != nil && *value != "" {
		*dst = *value
	}
}

func setDuration(dst *time.Duration, raw string) error {
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}
