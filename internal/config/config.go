package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is read once at startup. The collaborator base addresses are
// resolved here and never looked up again.
type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL" envDefault:"host=db user=postgres password=1234 dbname=testdb port=5432 sslmode=disable"`

	DirectoryBaseURL string        `env:"DIRECTORY_BASE_URL" envDefault:"http://user-service"`
	CatalogBaseURL   string        `env:"CATALOG_BASE_URL" envDefault:"http://catalog-service"`
	UpstreamTimeout  time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"5s"`

	// Optional OAuth2 client credentials for calls to the collaborators.
	UpstreamClientID     string   `env:"UPSTREAM_CLIENT_ID"`
	UpstreamClientSecret string   `env:"UPSTREAM_CLIENT_SECRET"`
	UpstreamTokenURL     string   `env:"UPSTREAM_TOKEN_URL"`
	UpstreamScopes       []string `env:"UPSTREAM_SCOPES" envSeparator:","`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	cfg.DirectoryBaseURL = strings.TrimRight(cfg.DirectoryBaseURL, "/")
	cfg.CatalogBaseURL = strings.TrimRight(cfg.CatalogBaseURL, "/")
	return cfg, nil
}

func (c Config) validate() error {
	for name, raw := range map[string]string{
		"DIRECTORY_BASE_URL": c.DirectoryBaseURL,
		"CATALOG_BASE_URL":   c.CatalogBaseURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s must be an absolute URL, got %q", name, raw)
		}
	}
	if c.UpstreamTimeout <= 0 {
		return fmt.Errorf("UPSTREAM_TIMEOUT must be positive, got %s", c.UpstreamTimeout)
	}
	if (c.UpstreamClientID == "") != (c.UpstreamTokenURL == "") {
		return errors.New("UPSTREAM_CLIENT_ID and UPSTREAM_TOKEN_URL must be set together")
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	if _, err := c.level(); err != nil {
		return err
	}
	return nil
}

func (c Config) level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return level, nil
}

// NewLogger builds the process logger described by LOG_LEVEL and LOG_FORMAT.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := c.level()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
