package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	cacheerrors "github.com/bibin-skaria/layercache/internal/errors"
	"github.com/bibin-skaria/layercache/internal/logging"
	"github.com/bibin-skaria/layercache/layers"
)

// Blob store layouts
const (
	LayoutTwoLevel = "two-level"
	LayoutFlat     = "flat"
)

// Config is the layercache configuration file
type Config struct {
	BlobsDir            string     `yaml:"blobs_dir"`
	CacheDir            string     `yaml:"cache_dir"`
	Layout              string     `yaml:"layout"`
	Include             []string   `yaml:"include"`
	ContinueOnOpenError bool       `yaml:"continue_on_open_error"`
	Log                 LogConfig  `yaml:"log"`
	Operators           []Operator `yaml:"operators,omitempty"`
}

// LogConfig selects log level and format
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Operator is a catalog image to mirror
type Operator struct {
	Catalog  string   `yaml:"catalog"`
	Packages []string `yaml:"packages,omitempty"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		BlobsDir: "working-dir/blobs-store",
		CacheDir: "working-dir/cache",
		Layout:   LayoutTwoLevel,
		Include:  layers.DefaultPatterns(),
		Log: LogConfig{
			Format: string(logging.FormatText),
		},
	}
}

// Load reads a YAML configuration file on top of the defaults
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, cacheerrors.NewConfigurationError("failed to read config file", err)
	}

	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return nil, cacheerrors.NewConfigurationError("failed to parse config file", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for missing or unknown values
func (c *Config) Validate() error {
	if c.BlobsDir == "" {
		return cacheerrors.NewConfigurationError("blobs_dir is empty", nil)
	}
	if c.CacheDir == "" {
		return cacheerrors.NewConfigurationError("cache_dir is empty", nil)
	}
	switch c.Layout {
	case LayoutTwoLevel, LayoutFlat:
	default:
		return cacheerrors.NewConfigurationError(fmt.Sprintf("unknown layout %q", c.Layout), nil)
	}
	if len(c.Include) == 0 {
		return cacheerrors.NewConfigurationError("include needs at least one pattern", nil)
	}
	for _, p := range c.Include {
		if p == "" {
			return cacheerrors.NewConfigurationError("include contains an empty pattern", nil)
		}
	}
	if !logging.ValidFormat(logging.Format(c.Log.Format)) {
		return cacheerrors.NewConfigurationError(fmt.Sprintf("unknown log format %q", c.Log.Format), nil)
	}
	for i, op := range c.Operators {
		if op.Catalog == "" {
			return cacheerrors.NewConfigurationError(fmt.Sprintf("operators[%d] has no catalog", i), nil)
		}
	}
	return nil
}

// Locator returns the blob locator for the configured layout
func (c *Config) Locator() layers.BlobLocator {
	if c.Layout == LayoutFlat {
		return layers.FlatLocator{}
	}
	return layers.TwoLevelLocator{}
}

// ExtractorConfig returns the extractor settings of the configuration
func (c *Config) ExtractorConfig() layers.ExtractorConfig {
	return layers.ExtractorConfig{
		Locator:             c.Locator(),
		Patterns:            append([]string(nil), c.Include...),
		ContinueOnOpenError: c.ContinueOnOpenError,
	}
}

// Catalogs returns the catalog references of all operators
func (c *Config) Catalogs() []string {
	catalogs := make([]string, 0, len(c.Operators))
	for _, op := range c.Operators {
		catalogs = append(catalogs, op.Catalog)
	}
	return catalogs
}

// LoggingOptions returns options for logging.New
func (c *Config) LoggingOptions() logging.Options {
	return logging.Options{
		Level:  c.Log.Level,
		Format: logging.Format(c.Log.Format),
	}
}
