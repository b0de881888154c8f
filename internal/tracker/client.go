// Package tracker integrates with an external issue-tracker CLI to
// retrieve milestone progress. The CLI contract is deliberately thin:
// well-formed JSON on stdout on success, non-zero exit on failure.
package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// ErrNotInstalled indicates the tracker CLI is not in PATH.
var ErrNotInstalled = errors.New("tracker CLI not installed")

// ErrTimeout indicates the tracker CLI exceeded its deadline.
var ErrTimeout = errors.New("tracker CLI timed out")

// ErrInvalidJSON indicates the tracker CLI returned unparsable output.
var ErrInvalidJSON = errors.New("tracker CLI returned invalid JSON")

// DefaultCommand is the tracker CLI invoked when none is configured.
const DefaultCommand = "mile"

// DefaultTimeout is the hard deadline for tracker CLI invocations.
// A hung external process must never hang the status-line refresh.
const DefaultTimeout = 4 * time.Second

// pipeWaitDelay bounds how long Run keeps waiting on stdout/stderr
// after the CLI itself has exited or been killed. Killing the CLI is
// not enough: a spawned child inherits the pipe fds and would keep
// Fetch blocked for as long as it lives.
const pipeWaitDelay = time.Second

// Milestone is the normalized shape of one tracker response.
// Counts are clamped to >= 0 during parsing; TimeRemaining is free
// text ("2d", "due Friday") passed through for display.
type Milestone struct {
	Name          string `json:"name"`
	Completed     int    `json:"completed"`
	Total         int    `json:"total"`
	TimeRemaining string `json:"time_remaining"`
}

// Client invokes the tracker CLI with a timeout and normalizes its
// output. The zero value is not usable; construct with NewClient.
type Client struct {
	// Command is the CLI binary name or path.
	Command string

	// Args are base arguments prepended before the milestone key.
	Args []string

	// WorkDir is the project directory ("" = current directory).
	WorkDir string

	// Timeout is the max time for one invocation.
	Timeout time.Duration
}

// NewClient creates a Client with defaults filled in.
func NewClient(command string, args []string, timeout time.Duration) *Client {
	if command == "" {
		command = DefaultCommand
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{Command: command, Args: args, Timeout: timeout}
}

// IsInstalled checks whether the tracker CLI is available in PATH.
func (c *Client) IsInstalled() bool {
	_, err := exec.LookPath(c.Command)
	return err == nil
}

// Fetch queries the tracker for the given milestone key. On timeout,
// non-zero exit, or unparsable output it returns an error; it never
// panics and never blocks past the configured timeout.
func (c *Client) Fetch(key string) (*Milestone, error) {
	if !c.IsInstalled() {
		return nil, fmt.Errorf("%w: %s", ErrNotInstalled, c.Command)
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()

	args := append(append([]string{}, c.Args...), key)
	cmd := exec.CommandContext(ctx, c.Command, args...)
	cmd.WaitDelay = pipeWaitDelay
	if c.WorkDir != "" {
		cmd.Dir = c.WorkDir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w after %v", ErrTimeout, c.Timeout)
		}
		// The CLI exited cleanly but an orphaned child still held the
		// pipes; the output captured before the cutoff is usable.
		if errors.Is(err, exec.ErrWaitDelay) {
			return parseMilestone(stdout.Bytes())
		}
		return nil, fmt.Errorf("%s %s failed: %w: %s", c.Command, key, err, stderr.String())
	}

	return parseMilestone(stdout.Bytes())
}

// milestonePayload tolerates the two stdout shapes seen in the wild:
// fields at the top level, or nested under "milestone".
type milestonePayload struct {
	Milestone
	Nested *Milestone `json:"milestone"`
}

// parseMilestone normalizes tracker stdout. Missing fields default to
// zero/empty rather than rejecting the record; negative counts are a
// tracker bug we clamp rather than surface.
func parseMilestone(output []byte) (*Milestone, error) {
	if !json.Valid(output) {
		return nil, fmt.Errorf("%w: non-JSON output", ErrInvalidJSON)
	}

	var payload milestonePayload
	if err := json.Unmarshal(output, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}

	m := payload.Milestone
	if payload.Nested != nil && payload.Nested.Name != "" {
		m = *payload.Nested
	}
	if m.Completed < 0 {
		m.Completed = 0
	}
	if m.Total < 0 {
		m.Total = 0
	}
	return &m, nil
}
