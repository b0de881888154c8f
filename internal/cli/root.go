// Package cli wires the devbar command tree. Commands stay thin: all
// real behavior lives in the internal pipeline packages.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Dicklesworthstone/devbar/internal/cache"
	"github.com/Dicklesworthstone/devbar/internal/config"
	"github.com/Dicklesworthstone/devbar/internal/progress"
	"github.com/Dicklesworthstone/devbar/internal/status"
	"github.com/Dicklesworthstone/devbar/internal/tracker"
)

var (
	cfgFile string
	cfg     *config.Config

	// Build information - set via ldflags.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "devbar",
	Short: "devbar - one-line development session status for your status bar",
	Long: `devbar renders a single status line summarizing a development
session: milestone progress, elapsed timer, git branch, and AI
context-window utilization.

Quick Start:
  devbar line                  # Print the status line once
  devbar line < payload.json   # With host metadata on stdin
  devbar watch                 # Re-render on transcript/file changes
  devbar timer start           # Start the session timer`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}
		setupLogging(cfg)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// Bare "devbar" behaves like "devbar line".
		return runLine(cmd, args)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.config/devbar/config.toml)")
	addLineFlags(rootCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// setupLogging routes slog diagnostics to the configured log file.
// The status line owns stdout, so without a log file everything is
// discarded rather than risking a polluted bar.
func setupLogging(cfg *config.Config) {
	var w io.Writer = io.Discard
	if cfg.LogFile != "" {
		if f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644); err == nil {
			w = f
		}
	}
	level := slog.LevelInfo
	if os.Getenv("DEVBAR_DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

// buildAggregator assembles the pipeline from config: cache, tracker
// client, resolver, aggregator.
func buildAggregator(cfg *config.Config, projectDir string) *status.Aggregator {
	c := cache.New(cfg.Cache.Path, cfg.CacheTTL())

	var fetcher progress.Fetcher
	if cfg.Tracker.Enabled {
		fetcher = tracker.NewClient(cfg.Tracker.Command, cfg.Tracker.Args, cfg.TrackerTimeout())
	}

	resolver := progress.NewResolver(c, fetcher, progress.Options{
		ProjectDir: projectDir,
		Candidates: cfg.Milestone.Candidates,
	})

	a := status.NewAggregator(resolver)
	a.IdleThreshold = cfg.IdleThreshold()
	return a
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "devbar %s (commit %s, built %s)\n", Version, Commit, Date)
}
