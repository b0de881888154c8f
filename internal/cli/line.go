package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/Dicklesworthstone/devbar/internal/render"
	"github.com/Dicklesworthstone/devbar/internal/status"
)

var (
	lineModel      string
	lineTranscript string
	lineSession    string
	lineDir        string
	lineKey        string
	lineWidth      int
)

var lineCmd = &cobra.Command{
	Use:   "line",
	Short: "Print the status line once",
	Long: `Reads optional host metadata as JSON on stdin (session id, model,
transcript path, working directory), builds a status snapshot, and
prints a single terminal-width-bounded line to stdout.`,
	RunE: runLine,
}

func init() {
	addLineFlags(lineCmd)
	rootCmd.AddCommand(lineCmd)
}

func addLineFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&lineModel, "model", "", "model name for context-window lookup")
	cmd.Flags().StringVar(&lineTranscript, "transcript", "", "session transcript file (NDJSON)")
	cmd.Flags().StringVar(&lineSession, "session", "", "session id")
	cmd.Flags().StringVar(&lineDir, "dir", "", "project directory (default cwd)")
	cmd.Flags().StringVar(&lineKey, "key", "", "milestone key (default from config)")
	cmd.Flags().IntVar(&lineWidth, "width", 0, "max line width in cells (0 = detect)")
}

// hostPayload is the JSON shape editors/agent hosts pipe on stdin.
// Every field is optional; unknown fields are ignored.
type hostPayload struct {
	SessionID      string          `json:"session_id"`
	Model          json.RawMessage `json:"model"` // string or {id, display_name}
	TranscriptPath string          `json:"transcript_path"`
	Cwd            string          `json:"cwd"`
	Workspace      *struct {
		CurrentDir string `json:"current_dir"`
	} `json:"workspace"`
}

// modelName accepts both "model": "claude-..." and the structured
// {"id": "...", "display_name": "..."} form.
func (p *hostPayload) modelName() string {
	if len(p.Model) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(p.Model, &s); err == nil {
		return s
	}
	var obj struct {
		ID          string `json:"id"`
		DisplayName string `json:"display_name"`
	}
	if err := json.Unmarshal(p.Model, &obj); err == nil {
		if obj.ID != "" {
			return obj.ID
		}
		return obj.DisplayName
	}
	return ""
}

func runLine(cmd *cobra.Command, args []string) error {
	sess := sessionFromInputs(cmd.InOrStdin())

	dir := sess.WorkDir
	if dir == "" {
		dir, _ = os.Getwd()
		sess.WorkDir = dir
	}
	if sess.MilestoneKey == "" {
		sess.MilestoneKey = cfg.Milestone.Key
	}

	agg := buildAggregator(cfg, dir)
	snap := agg.Snapshot(sess)

	width := lineWidth
	if width == 0 {
		width = cfg.Render.MaxWidth
	}
	r := render.New(render.Options{Width: width, Color: cfg.Render.Color})
	fmt.Fprintln(cmd.OutOrStdout(), r.Render(snap))
	return nil
}

// sessionFromInputs merges the stdin payload (when piped) with flags;
// flags win. A malformed payload is ignored, not fatal: a status bar
// that errors on odd host input is a broken status bar.
func sessionFromInputs(stdin io.Reader) status.Session {
	sess := status.Session{}

	if f, ok := stdin.(*os.File); !ok || !isatty.IsTerminal(f.Fd()) {
		raw, err := io.ReadAll(io.LimitReader(stdin, 1<<20))
		if err == nil && len(raw) > 0 {
			var payload hostPayload
			if json.Unmarshal(raw, &payload) == nil {
				sess.ID = payload.SessionID
				sess.Model = payload.modelName()
				sess.TranscriptPath = payload.TranscriptPath
				if payload.Workspace != nil && payload.Workspace.CurrentDir != "" {
					sess.WorkDir = payload.Workspace.CurrentDir
				} else {
					sess.WorkDir = payload.Cwd
				}
			}
		}
	}

	if lineSession != "" {
		sess.ID = lineSession
	}
	if lineModel != "" {
		sess.Model = lineModel
	}
	if lineTranscript != "" {
		sess.TranscriptPath = lineTranscript
	}
	if lineDir != "" {
		sess.WorkDir = lineDir
	}
	if lineKey != "" {
		sess.MilestoneKey = lineKey
	}
	return sess
}
