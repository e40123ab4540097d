// Package config resolves the client settings from a .env file, the
// environment and command line flags, in that order of precedence (flags win).
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvAPIURL    = "TRADESIM_API_URL"
	EnvConfigDir = "TRADESIM_CONFIG_DIR"
	EnvTimeout   = "TRADESIM_TIMEOUT"

	DefaultAPIURL  = "http://localhost:8000/api"
	DefaultTimeout = 30 * time.Second
)

// Intervals holds the polling cadences used by the views.
type Intervals struct {
	Quote     time.Duration // symbol level quotes
	Markets   time.Duration // venue open/closed status
	Favorites time.Duration // favorites and category lists
	Indices   time.Duration
	Rates     time.Duration // exchange rate table
}

// DefaultIntervals returns the standard cadences.
func DefaultIntervals() Intervals {
	return Intervals{
		Quote:     3 * time.Second,
		Markets:   30 * time.Second,
		Favorites: 60 * time.Second,
		Indices:   60 * time.Second,
		Rates:     300 * time.Second,
	}
}

// Config is the resolved client configuration.
type Config struct {
	APIURL    string
	ConfigDir string
	Timeout   time.Duration
	Intervals Intervals
}

// Flags are the command line overrides. Empty values mean "not set".
type Flags struct {
	APIURL    string
	ConfigDir string
	Timeout   time.Duration
}

// Register binds the override flags on fs.
func (f *Flags) Register(fs *flag.FlagSet) {
	fs.StringVar(&f.APIURL, "api-url", "", "Base URL of the trading simulator API.\n If missing it will read the environment variable \""+EnvAPIURL+"\".")
	fs.StringVar(&f.ConfigDir, "config-dir", "", "Directory holding the session and preferences.\n If missing it will read the environment variable \""+EnvConfigDir+"\".")
	fs.DurationVar(&f.Timeout, "timeout", 0, "HTTP timeout for API calls.")
}

// Load resolves the configuration. A missing .env file is not an error.
func Load(f Flags) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &Config{
		APIURL:    DefaultAPIURL,
		Timeout:   DefaultTimeout,
		Intervals: DefaultIntervals(),
	}

	if v := os.Getenv(EnvAPIURL); v != "" {
		cfg.APIURL = v
	}
	if v := os.Getenv(EnvTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", EnvTimeout, v, err)
		}
		cfg.Timeout = d
	}
	cfg.ConfigDir = os.Getenv(EnvConfigDir)

	if f.APIURL != "" {
		cfg.APIURL = f.APIURL
	}
	if f.ConfigDir != "" {
		cfg.ConfigDir = f.ConfigDir
	}
	if f.Timeout > 0 {
		cfg.Timeout = f.Timeout
	}

	if cfg.ConfigDir == "" {
		dir, err := defaultConfigDir()
		if err != nil {
			return nil, err
		}
		cfg.ConfigDir = dir
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")

	return cfg, nil
}

func defaultConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get config directory: %w", err)
	}
	return filepath.Join(base, "tradesim"), nil
}
