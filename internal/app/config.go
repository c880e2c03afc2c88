package app

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/elbkind/feature-hub/internal/config"
	"github.com/elbkind/feature-hub/internal/hcl"
	"github.com/elbkind/feature-hub/internal/yamlconfig"
)

// Configuration formats accepted by Config.Format.
const (
	FormatHCL  = "hcl"
	FormatYAML = "yaml"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	// ConfigPaths are .hcl or .yaml files, or directories containing them.
	ConfigPaths []string
	// Format selects the configuration loader. Empty infers it from the
	// extension of the first path.
	Format string

	LogFormat string
	LogLevel  string
	// LogOutput receives log lines. Nil logs to the App's output writer.
	LogOutput io.Writer

	// Port serves HTTP when positive; otherwise the App renders once.
	Port int
	// WorkerCount overrides the integrator's preload workers when positive.
	WorkerCount int
	// FetchTimeout bounds module fetches and feature app HTTP requests.
	FetchTimeout time.Duration
	// Preload fetches every module before the first render attempt.
	Preload bool
	// InsecureSkipVerify disables TLS verification for wss:// module fetches.
	InsecureSkipVerify bool
}

// NewConfig validates cfg and returns a copy of it.
func NewConfig(cfg Config) (*Config, error) {
	if len(cfg.ConfigPaths) == 0 {
		return nil, errors.New("at least one configuration path is required")
	}
	switch cfg.Format {
	case "", FormatHCL, FormatYAML:
	default:
		return nil, fmt.Errorf("unknown config format %q: must be %q or %q", cfg.Format, FormatHCL, FormatYAML)
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d", cfg.Port)
	}
	if cfg.FetchTimeout < 0 {
		return nil, errors.New("fetch timeout must not be negative")
	}
	return &cfg, nil
}

// ConfigLoader returns the loader for the configured format.
func (c *Config) ConfigLoader() config.Loader {
	format := c.Format
	if format == "" {
		switch strings.ToLower(filepath.Ext(c.ConfigPaths[0])) {
		case ".yaml", ".yml":
			format = FormatYAML
		default:
			format = FormatHCL
		}
	}
	if format == FormatYAML {
		return yamlconfig.NewLoader()
	}
	return hcl.NewLoader()
}

// baseDir is the directory relative module paths are resolved against.
func (c *Config) baseDir() string {
	first := c.ConfigPaths[0]
	if info, err := os.Stat(first); err == nil && info.IsDir() {
		return first
	}
	return filepath.Dir(first)
}
