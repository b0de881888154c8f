package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope", "config.toml"))
	if err == nil {
		t.Fatal("explicit missing path should error")
	}
	_ = cfg

	// The implicit default path may legitimately not exist.
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	cfg, err = Load("")
	if err != nil {
		t.Fatalf("Load with absent default config: %v", err)
	}
	if cfg.Cache.TTLMillis != 30_000 {
		t.Errorf("TTLMillis = %d, want default 30000", cfg.Cache.TTLMillis)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
log_file = "/tmp/devbar.log"

[cache]
ttl_ms = 5000

[tracker]
command = "issues"
args = ["status", "--format=json"]
timeout_ms = 2000

[milestone]
key = "sprint-9"

[render]
max_width = 80
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CacheTTL() != 5*time.Second {
		t.Errorf("CacheTTL = %v, want 5s", cfg.CacheTTL())
	}
	if cfg.Tracker.Command != "issues" || len(cfg.Tracker.Args) != 2 {
		t.Errorf("Tracker = %+v", cfg.Tracker)
	}
	if cfg.Milestone.Key != "sprint-9" {
		t.Errorf("Milestone.Key = %q", cfg.Milestone.Key)
	}
	if cfg.Render.MaxWidth != 80 {
		t.Errorf("MaxWidth = %d", cfg.Render.MaxWidth)
	}
	// Unset sections keep defaults.
	if !cfg.Tracker.Enabled {
		t.Error("Tracker.Enabled default lost")
	}
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[cache\nttl_ms = "), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("malformed TOML did not error")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("DEVBAR_CACHE_TTL_MS", "1500")
	t.Setenv("DEVBAR_TRACKER_CMD", "jira-cli")
	t.Setenv("DEVBAR_TRACKER_DISABLED", "1")
	t.Setenv("DEVBAR_MILESTONE_KEY", "q3")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Cache.TTLMillis != 1500 {
		t.Errorf("TTLMillis = %d, want env override 1500", cfg.Cache.TTLMillis)
	}
	if cfg.Tracker.Command != "jira-cli" || cfg.Tracker.Enabled {
		t.Errorf("Tracker = %+v", cfg.Tracker)
	}
	if cfg.Milestone.Key != "q3" {
		t.Errorf("Milestone.Key = %q", cfg.Milestone.Key)
	}
}

func TestValidateRejectsContractViolations(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero ttl", func(c *Config) { c.Cache.TTLMillis = 0 }, "ttl_ms"},
		{"negative timeout", func(c *Config) { c.Tracker.TimeoutMillis = -1 }, "timeout_ms"},
		{"negative width", func(c *Config) { c.Render.MaxWidth = -5 }, "max_width"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate err = %v, want mention of %s", err, tt.want)
			}
		})
	}
}
