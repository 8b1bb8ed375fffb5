package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ICSConfig describes a single ICS subscription source.
type ICSConfig struct {
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url"`
	// ID is an internal identifier used for de-dup and logging.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label shown in the UI.
	Name string `yaml:"name" json:"name"`
}

// SheetConfig describes the spreadsheet CSV export feed (e.g. vehicle
// maintenance history published as a CSV download link).
type SheetConfig struct {
	URL string `yaml:"url" json:"url"`
}

// WeatherConfig holds the display location and the provider order for the
// weather fallback chain.
type WeatherConfig struct {
	Latitude  float64 `yaml:"latitude" json:"latitude"`
	Longitude float64 `yaml:"longitude" json:"longitude"`

	// Providers is the ordered list of provider names tried in sequence.
	// Supported: "open-meteo", "bigdatacloud".
	Providers []string `yaml:"providers" json:"providers"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the UI/API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the dashboard UI and API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone used as the display zone (e.g. "America/Denver").
	Timezone string `yaml:"timezone" json:"timezone"`

	// LogLevel is the minimum log level: "debug", "info", or "error".
	LogLevel string `yaml:"log_level" json:"log_level"`

	// RefreshCron is a cron-style schedule string (e.g. "*/15 * * * *")
	// used to re-fetch feeds and warm the API caches.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// HorizonDays is the number of future days of events to display.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days"`

	// BackfillDays is the number of past days of events to include.
	BackfillDays int `yaml:"backfill_days" json:"backfill_days"`

	// StorePath is the SQLite database path for notes, projects, shopping
	// items, and imported energy usage.
	StorePath string `yaml:"store_path" json:"store_path"`

	// CacheDir is the base directory for the feed fetcher's disk cache.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// ICS is the list of subscribed calendar sources.
	ICS []ICSConfig `yaml:"ics" json:"ics"`

	// Sheet is the spreadsheet export feed, if any.
	Sheet SheetConfig `yaml:"sheet" json:"sheet"`

	// Weather configures the weather provider chain.
	Weather WeatherConfig `yaml:"weather" json:"weather"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:       "127.0.0.1:8080",
		Timezone:     "UTC",
		LogLevel:     "info",
		RefreshCron:  "*/15 * * * *",
		HorizonDays:  7,
		BackfillDays: 1,
		StorePath:    "/var/lib/wallboard/wallboard.db",
		CacheDir:     "/var/lib/wallboard/feed-cache",
		ICS:          []ICSConfig{},
		Weather: WeatherConfig{
			Providers: []string{"open-meteo", "bigdatacloud"},
		},
		BasicAuth: nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs (e.g., older versions) still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.RefreshCron == "" {
		c.RefreshCron = "*/15 * * * *"
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = 7
	}
	if c.BackfillDays < 0 {
		c.BackfillDays = 0
	}
	if c.StorePath == "" {
		c.StorePath = "/var/lib/wallboard/wallboard.db"
	}
	if c.CacheDir == "" {
		c.CacheDir = "/var/lib/wallboard/feed-cache"
	}
	if c.ICS == nil {
		c.ICS = []ICSConfig{}
	}
	if len(c.Weather.Providers) == 0 {
		c.Weather.Providers = []string{"open-meteo", "bigdatacloud"}
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// Atomic write: write to temp file in same directory then rename.
	tmp, err := os.CreateTemp(dir, ".wallboard-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
