package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/Dicklesworthstone/devbar/internal/render"
)

var watchInterval time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-render the status line when session files change",
	Long: `Watches the transcript, the project directory, and the cache
snapshot, re-rendering the status line on change. Events are debounced;
a periodic tick keeps TTL-driven staleness visible even without file
activity. Intended for terminals without a host status-bar integration.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 5*time.Second, "periodic re-render interval")
	addLineFlags(watchCmd)
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess := sessionFromInputs(cmd.InOrStdin())
	if sess.WorkDir == "" {
		sess.WorkDir, _ = os.Getwd()
	}
	if sess.MilestoneKey == "" {
		sess.MilestoneKey = cfg.Milestone.Key
	}

	agg := buildAggregator(cfg, sess.WorkDir)
	r := render.New(render.Options{Width: cfg.Render.MaxWidth, Color: cfg.Render.Color})

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch directories, not files: transcripts and cache snapshots are
	// replaced by rename, which drops file-level watches.
	for _, dir := range watchDirs(sess.WorkDir, sess.TranscriptPath, cfg.Cache.Path) {
		if err := watcher.Add(dir); err != nil {
			slog.Debug("watch add failed", "dir", dir, "error", err)
		}
	}

	redraw := func() {
		fmt.Fprintln(cmd.OutOrStdout(), r.Render(agg.Snapshot(sess)))
	}
	redraw()

	// Debounce bursts: editors and transcript writers emit event storms.
	var pending <-chan time.Time
	ticker := time.NewTicker(watchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			pending = time.After(200 * time.Millisecond)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Debug("watch error", "error", err)
		case <-pending:
			pending = nil
			redraw()
		case <-ticker.C:
			redraw()
		}
	}
}

// watchDirs deduplicates the parent directories worth watching.
func watchDirs(projectDir, transcriptPath, cachePath string) []string {
	seen := make(map[string]bool)
	var dirs []string
	add := func(dir string) {
		if dir == "" || seen[dir] {
			return
		}
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			return
		}
		seen[dir] = true
		dirs = append(dirs, dir)
	}

	add(projectDir)
	add(filepath.Join(projectDir, ".devbar"))
	if transcriptPath != "" {
		add(filepath.Dir(transcriptPath))
	}
	if cachePath != "" {
		add(filepath.Dir(cachePath))
	}
	return dirs
}
