// Package timer persists per-session work timer state: when the
// session started, when it last saw activity, and whether the timer
// is running. Elapsed time is derived on read, never stored.
package timer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultIdleThreshold is how long without activity before a running
// timer stops counting as "active".
const DefaultIdleThreshold = 5 * time.Minute

// State is the on-disk timer record for one session.
type State struct {
	StartedAt    time.Time `json:"started_at"`
	LastActivity time.Time `json:"last_activity"`
	Running      bool      `json:"running"`
}

// Elapsed returns how long the timer has been running as of now.
// Zero for a never-started timer.
func (s State) Elapsed(now time.Time) time.Duration {
	if s.StartedAt.IsZero() {
		return 0
	}
	d := now.Sub(s.StartedAt)
	if d < 0 {
		return 0
	}
	return d
}

// Active reports whether the timer is running and saw activity within
// the idle threshold.
func (s State) Active(now time.Time, idleThreshold time.Duration) bool {
	if !s.Running {
		return false
	}
	if idleThreshold <= 0 {
		idleThreshold = DefaultIdleThreshold
	}
	if s.LastActivity.IsZero() {
		return false
	}
	return now.Sub(s.LastActivity) <= idleThreshold
}

// StateDir returns the timer state directory.
// Uses XDG_STATE_HOME if set, otherwise ~/.local/state/devbar/.
// Falls back to the temp directory when home is unavailable.
func StateDir() string {
	stateDir := os.Getenv("XDG_STATE_HOME")
	if stateDir == "" {
		home, err := os.UserHomeDir()
		if err != nil || home == "" {
			return filepath.Join(os.TempDir(), "devbar")
		}
		stateDir = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(stateDir, "devbar")
}

// PathFor returns the state file path for a session id.
// An empty session maps to a shared default timer.
func PathFor(dir, session string) string {
	name := "timer"
	if session != "" {
		name = "timer-" + sanitize(session)
	}
	return filepath.Join(dir, name+".json")
}

// Load reads timer state from path. A missing file is a zero state,
// not an error; a corrupt file likewise (the timer restarts rather
// than wedging the status line).
func Load(path string) State {
	var s State
	data, err := os.ReadFile(path)
	if err != nil {
		return s
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return State{}
	}
	return s
}

// Save atomically writes timer state to path.
func Save(path string, s State) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create timer dir: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal timer state: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".timer-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp timer file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write timer state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp timer file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace timer state: %w", err)
	}
	return nil
}

// Start begins (or restarts activity on) the timer at path.
// A stopped or fresh timer gets a new StartedAt; a running one keeps
// its start and only bumps activity.
func Start(path string) (State, error) {
	s := Load(path)
	now := time.Now()
	if !s.Running || s.StartedAt.IsZero() {
		s.StartedAt = now
	}
	s.Running = true
	s.LastActivity = now
	return s, Save(path, s)
}

// Stop halts the timer at path, keeping StartedAt for elapsed display.
func Stop(path string) (State, error) {
	s := Load(path)
	s.Running = false
	return s, Save(path, s)
}

// Touch records activity on a running timer. A no-op for stopped
// timers so host integrations can call it unconditionally.
func Touch(path string) (State, error) {
	s := Load(path)
	if !s.Running {
		return s, nil
	}
	s.LastActivity = time.Now()
	return s, Save(path, s)
}

// sanitize makes a session id safe for use in a filename.
func sanitize(name string) string {
	replacer := strings.NewReplacer(
		"/", "-",
		"\\", "-",
		":", "-",
		" ", "_",
		".", "_",
	)
	safe := replacer.Replace(strings.TrimSpace(name))
	if len(safe) > 64 {
		safe = safe[:64]
	}
	return safe
}
