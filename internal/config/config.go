// Package config loads engine and server settings from YAML files with
// environment-variable overrides.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"sift/internal/analysis"
	"sift/internal/datetools"
	"sift/internal/index"
)

// Config is the top-level application configuration.
type Config struct {
	Index   IndexConfig   `yaml:"index"`
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// IndexConfig holds the engine settings an index is opened with. Settings
// persisted inside an existing index directory win over these values.
type IndexConfig struct {
	Dir            string            `yaml:"dir"`
	FlushThreshold int               `yaml:"flushThreshold"`
	Analyzer       string            `yaml:"analyzer"`
	Scoring        string            `yaml:"scoring"`
	TieBreaker     float64           `yaml:"tieBreaker"`
	DateFields     map[string]string `yaml:"dateFields"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load reads a YAML config file (if provided) and applies environment
// variable overrides. Missing values keep their defaults.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Index: IndexConfig{
			Dir:            "data",
			FlushThreshold: 1000,
			Analyzer:       "simple",
			Scoring:        "bm25",
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// applyEnvOverrides reads SIFT_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SIFT_INDEX_DIR"); v != "" {
		cfg.Index.Dir = v
	}
	if v := os.Getenv("SIFT_INDEX_SCORING"); v != "" {
		cfg.Index.Scoring = v
	}
	if v := os.Getenv("SIFT_INDEX_FLUSH_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Index.FlushThreshold = n
		}
	}
	if v := os.Getenv("SIFT_SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("SIFT_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SIFT_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}

// Build turns the YAML-level index settings into an engine config,
// resolving the analyzer, scoring mode and date field resolutions.
func (c IndexConfig) Build() (index.Config, error) {
	out := index.DefaultConfig(c.Dir)

	if c.FlushThreshold > 0 {
		out.FlushThreshold = c.FlushThreshold
	}

	switch c.Analyzer {
	case "", "simple":
		out.Analyzer = analysis.NewSimple()
	case "keyword":
		out.Analyzer = analysis.NewKeyword()
	default:
		return index.Config{}, fmt.Errorf("unknown analyzer %q", c.Analyzer)
	}

	if c.Scoring != "" {
		mode, err := index.ParseScoringMode(c.Scoring)
		if err != nil {
			return index.Config{}, err
		}
		out.ScoringMode = mode
	}

	out.TieBreaker = c.TieBreaker

	if len(c.DateFields) > 0 {
		out.DateFields = make(map[string]datetools.Resolution, len(c.DateFields))
		for field, name := range c.DateFields {
			res, err := datetools.ParseResolution(name)
			if err != nil {
				return index.Config{}, fmt.Errorf("date field %q: %w", field, err)
			}
			out.DateFields[field] = res
		}
	}

	return out, nil
}

// Setup installs the configured handler as the default slog logger.
func (c LoggingConfig) Setup() {
	opts := &slog.HandlerOptions{Level: parseLevel(c.Level)}
	var handler slog.Handler
	switch c.Format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
