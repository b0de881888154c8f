// Package config loads devbar configuration from TOML with
// environment-variable overrides. A missing config file means
// defaults; a malformed one is an error the CLI reports, since a
// half-read config silently changing cache behavior is worse than
// failing loudly.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the top-level devbar configuration.
type Config struct {
	Cache     CacheConfig     `toml:"cache"`
	Tracker   TrackerConfig   `toml:"tracker"`
	Milestone MilestoneConfig `toml:"milestone"`
	Render    RenderConfig    `toml:"render"`
	Timer     TimerConfig     `toml:"timer"`
	LogFile   string          `toml:"log_file"` // "" = diagnostics discarded
}

// CacheConfig controls the TTL cache and its disk snapshot.
type CacheConfig struct {
	TTLMillis int    `toml:"ttl_ms"`
	Path      string `toml:"path"`
}

// TrackerConfig controls the remote issue-tracker CLI invocation.
type TrackerConfig struct {
	Enabled       bool     `toml:"enabled"`
	Command       string   `toml:"command"`
	Args          []string `toml:"args"`
	TimeoutMillis int      `toml:"timeout_ms"`
}

// MilestoneConfig controls milestone resolution.
type MilestoneConfig struct {
	// Key is the milestone identifier passed to the tracker CLI.
	Key string `toml:"key"`

	// Candidates overrides the local fallback file list (paths relative
	// to the project directory, priority order).
	Candidates []string `toml:"candidates"`
}

// RenderConfig controls the status line output.
type RenderConfig struct {
	MaxWidth int  `toml:"max_width"` // 0 = detect terminal width
	Color    bool `toml:"color"`     // force color even when piped
}

// TimerConfig controls the session timer.
type TimerConfig struct {
	IdleThresholdMinutes int `toml:"idle_threshold_minutes"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Cache: CacheConfig{
			TTLMillis: 30_000,
			Path:      defaultCachePath(),
		},
		Tracker: TrackerConfig{
			Enabled:       true,
			Command:       "mile",
			Args:          []string{"milestone", "--json"},
			TimeoutMillis: 4_000,
		},
		Milestone: MilestoneConfig{
			Key: "current",
		},
		Timer: TimerConfig{
			IdleThresholdMinutes: 5,
		},
	}
}

// ConfigDir returns the devbar config directory.
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config/devbar/.
func ConfigDir() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil || home == "" {
			return filepath.Join(os.TempDir(), "devbar")
		}
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "devbar")
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// Load reads the config at path (DefaultPath when empty), overlays
// environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err) && !explicit:
		// No config file is the common case.
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays DEVBAR_* environment variables. Env wins over file
// so one-off overrides don't require editing TOML.
func (c *Config) applyEnv() {
	if v := os.Getenv("DEVBAR_CACHE_TTL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Cache.TTLMillis = n
		}
	}
	if v := os.Getenv("DEVBAR_CACHE_PATH"); v != "" {
		c.Cache.Path = v
	}
	if v := os.Getenv("DEVBAR_TRACKER_CMD"); v != "" {
		c.Tracker.Command = v
	}
	if v := os.Getenv("DEVBAR_TRACKER_DISABLED"); v == "1" || v == "true" {
		c.Tracker.Enabled = false
	}
	if v := os.Getenv("DEVBAR_MILESTONE_KEY"); v != "" {
		c.Milestone.Key = v
	}
	if v := os.Getenv("DEVBAR_LOG_FILE"); v != "" {
		c.LogFile = v
	}
	if v := os.Getenv("DEVBAR_NO_COLOR"); v == "1" || v == "true" {
		c.Render.Color = false
	}
}

// Validate rejects values that indicate a caller bug rather than an
// environmental condition (the one error class this pipeline surfaces).
func (c *Config) Validate() error {
	if c.Cache.TTLMillis <= 0 {
		return fmt.Errorf("cache.ttl_ms must be positive, got %d", c.Cache.TTLMillis)
	}
	if c.Tracker.TimeoutMillis <= 0 {
		return fmt.Errorf("tracker.timeout_ms must be positive, got %d", c.Tracker.TimeoutMillis)
	}
	if c.Render.MaxWidth < 0 {
		return fmt.Errorf("render.max_width must be >= 0, got %d", c.Render.MaxWidth)
	}
	if c.Timer.IdleThresholdMinutes < 0 {
		return fmt.Errorf("timer.idle_threshold_minutes must be >= 0, got %d", c.Timer.IdleThresholdMinutes)
	}
	return nil
}

// CacheTTL returns the cache TTL as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLMillis) * time.Millisecond
}

// TrackerTimeout returns the tracker deadline as a duration.
func (c *Config) TrackerTimeout() time.Duration {
	return time.Duration(c.Tracker.TimeoutMillis) * time.Millisecond
}

// IdleThreshold returns the timer idle threshold as a duration.
func (c *Config) IdleThreshold() time.Duration {
	return time.Duration(c.Timer.IdleThresholdMinutes) * time.Minute
}

func defaultCachePath() string {
	cacheDir := os.Getenv("XDG_CACHE_HOME")
	if cacheDir == "" {
		home, err := os.UserHomeDir()
		if err != nil || home == "" {
			return filepath.Join(os.TempDir(), "devbar", "cache.json")
		}
		cacheDir = filepath.Join(home, ".cache")
	}
	return filepath.Join(cacheDir, "devbar", "cache.json")
}
