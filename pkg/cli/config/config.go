package config

import (
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/secmon-lab/tedbrain/pkg/domain/model"
	"github.com/secmon-lab/tedbrain/pkg/service/embedding"
	"github.com/secmon-lab/tedbrain/pkg/usecase"
	"github.com/urfave/cli/v3"
)

// Duration reads "10s" style values from TOML
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return goerr.Wrap(ErrInvalidConfig, "invalid duration", goerr.V("value", string(text)))
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// AppConfig represents the application configuration file
type AppConfig struct {
	Query     QueryConfig     `toml:"query"`
	Embedding EmbeddingConfig `toml:"embedding"`
	Media     MediaConfig     `toml:"media"`
	URL       URLConfig       `toml:"url"`
}

type QueryConfig struct {
	DefaultLimit int `toml:"default_limit"`
	MaxLimit     int `toml:"max_limit"`
}

type EmbeddingConfig struct {
	Dimension int      `toml:"dimension"`
	Timeout   Duration `toml:"timeout"`
	CacheSize int64    `toml:"cache_size"`
}

type MediaConfig struct {
	MaxBytes int64 `toml:"max_bytes"`
}

type URLConfig struct {
	FetchTimeout Duration `toml:"fetch_timeout"`
	MaxText      int      `toml:"max_text"`
}

// DefaultAppConfig returns the values used when no file is given or a key
// is left out
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		Query: QueryConfig{
			DefaultLimit: usecase.DefaultQueryLimit,
			MaxLimit:     usecase.DefaultMaxQueryLimit,
		},
		Embedding: EmbeddingConfig{
			Dimension: model.EmbeddingDimension,
			Timeout:   Duration(embedding.DefaultTimeout),
			CacheSize: 1024,
		},
		Media: MediaConfig{
			MaxBytes: usecase.DefaultMaxMediaBytes,
		},
		URL: URLConfig{
			FetchTimeout: Duration(10 * time.Second),
			MaxText:      5000,
		},
	}
}

// Validate checks if the AppConfig is valid
func (a *AppConfig) Validate() error {
	if a.Query.DefaultLimit <= 0 {
		return goerr.Wrap(ErrInvalidConfig, "query.default_limit must be positive", goerr.V("value", a.Query.DefaultLimit))
	}
	if a.Query.MaxLimit < a.Query.DefaultLimit {
		return goerr.Wrap(ErrInvalidConfig, "query.max_limit must not be less than query.default_limit",
			goerr.V("default_limit", a.Query.DefaultLimit), goerr.V("max_limit", a.Query.MaxLimit))
	}
	if a.Embedding.Dimension <= 0 {
		return goerr.Wrap(ErrInvalidConfig, "embedding.dimension must be positive", goerr.V("value", a.Embedding.Dimension))
	}
	if a.Embedding.Timeout <= 0 {
		return goerr.Wrap(ErrInvalidConfig, "embedding.timeout must be positive")
	}
	if a.Media.MaxBytes <= 0 {
		return goerr.Wrap(ErrInvalidConfig, "media.max_bytes must be positive", goerr.V("value", a.Media.MaxBytes))
	}
	if a.URL.FetchTimeout <= 0 {
		return goerr.Wrap(ErrInvalidConfig, "url.fetch_timeout must be positive")
	}
	if a.URL.MaxText <= 0 {
		return goerr.Wrap(ErrInvalidConfig, "url.max_text must be positive", goerr.V("value", a.URL.MaxText))
	}
	return nil
}

// LoadAppConfiguration loads the application configuration from a TOML file.
// Keys missing from the file keep their default values.
func LoadAppConfiguration(path string) (*AppConfig, error) {
	// #nosec G304 - path is expected to be provided by CLI argument
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read config file", goerr.V(ConfigPathKey, path))
	}

	config := DefaultAppConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, goerr.Wrap(err, "failed to parse TOML config", goerr.V(ConfigPathKey, path))
	}

	if err := config.Validate(); err != nil {
		return nil, goerr.Wrap(err, "config validation failed", goerr.V(ConfigPathKey, path))
	}

	return config, nil
}

// App holds the CLI flag pointing at the configuration file
type App struct {
	path string
}

func (a *App) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Path to the TOML configuration file",
			Sources:     cli.EnvVars("TEDBRAIN_CONFIG"),
			Destination: &a.path,
		},
	}
}

// Configure loads the configuration file, or returns defaults when no path
// is set
func (a *App) Configure() (*AppConfig, error) {
	if a.path == "" {
		return DefaultAppConfig(), nil
	}
	return LoadAppConfiguration(a.path)
}
