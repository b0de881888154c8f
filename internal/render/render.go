// Package render turns a status snapshot into a single status-bar
// line. One renderer, one Render function; the pipeline behind the
// snapshot is where the engineering lives, this stays thin.
package render

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/truncate"
	"golang.org/x/term"

	"github.com/Dicklesworthstone/devbar/internal/progress"
	"github.com/Dicklesworthstone/devbar/internal/status"
)

// DefaultMaxWidth caps the line when the terminal width is unknown.
const DefaultMaxWidth = 120

// Renderer turns one snapshot into one line.
type Renderer interface {
	Render(status.Snapshot) string
}

// Options configures a LineRenderer.
type Options struct {
	// Width bounds the rendered line in terminal cells. 0 = detect from
	// the terminal, falling back to DefaultMaxWidth.
	Width int

	// Color forces styling on. When false, styling is enabled only if
	// stdout is a terminal.
	Color bool
}

// LineRenderer is the single Renderer implementation.
type LineRenderer struct {
	width  int
	styled bool

	branchStyle lipgloss.Style
	warnStyle   lipgloss.Style
	dimStyle    lipgloss.Style
}

// New creates a LineRenderer.
func New(opts Options) *LineRenderer {
	width := opts.Width
	if width <= 0 {
		width = terminalWidth()
	}
	return &LineRenderer{
		width:       width,
		styled:      opts.Color || isatty.IsTerminal(os.Stdout.Fd()),
		branchStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("6")),
		warnStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		dimStyle:    lipgloss.NewStyle().Faint(true),
	}
}

// Render produces the status line. Segments are dropped from the right
// when the terminal is too narrow, then the result is truncated on a
// cell boundary as a last resort.
func (r *LineRenderer) Render(snap status.Snapshot) string {
	segments := []string{}

	if s := r.progressSegment(snap.Progress); s != "" {
		segments = append(segments, s)
	}
	if snap.Elapsed > 0 {
		s := formatElapsed(snap.Elapsed)
		if snap.TimerActive {
			s = "▶ " + s
		} else {
			s = "⏸ " + s
		}
		segments = append(segments, r.dim(s))
	}
	if snap.Branch != "" {
		segments = append(segments, r.style(r.branchStyle, "⎇ "+snap.Branch))
	}
	if snap.Context.Percentage > 0 {
		s := fmt.Sprintf("ctx %.0f%%", snap.Context.Percentage)
		if snap.Context.Percentage >= 80 {
			s = r.style(r.warnStyle, "⚠ "+s)
		}
		segments = append(segments, s)
	}

	for len(segments) > 1 {
		line := strings.Join(segments, " · ")
		if lineWidth(line) <= r.width {
			return line
		}
		segments = segments[:len(segments)-1]
	}

	line := ""
	if len(segments) > 0 {
		line = segments[0]
	}
	if lineWidth(line) > r.width {
		line = truncate.StringWithTail(line, uint(r.width), "…")
	}
	return line
}

// progressSegment renders the milestone portion. Total == 0 means no
// known scope, so no ratio and no percent (and no division).
func (r *LineRenderer) progressSegment(rec progress.Record) string {
	if rec.Name == "" {
		return ""
	}
	s := rec.Name
	if rec.Total > 0 {
		pct := float64(rec.Completed) / float64(rec.Total) * 100
		s = fmt.Sprintf("%s %d/%d (%.0f%%)", rec.Name, rec.Completed, rec.Total, pct)
	} else if rec.Completed > 0 {
		s = fmt.Sprintf("%s %d done", rec.Name, rec.Completed)
	}
	if rec.TimeRemaining != "" {
		s += " " + r.dim(rec.TimeRemaining+" left")
	}
	return s
}

func (r *LineRenderer) style(st lipgloss.Style, s string) string {
	if !r.styled {
		return s
	}
	return st.Render(s)
}

func (r *LineRenderer) dim(s string) string {
	return r.style(r.dimStyle, s)
}

// lineWidth measures terminal cells, ignoring ANSI sequences.
func lineWidth(s string) int {
	return runewidth.StringWidth(stripANSI(s))
}

func stripANSI(s string) string {
	var b strings.Builder
	inEscape := false
	for _, r := range s {
		switch {
		case inEscape:
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
				inEscape = false
			}
		case r == '\x1b':
			inEscape = true
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func formatElapsed(d time.Duration) string {
	d = d.Round(time.Second)
	if d >= time.Hour {
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	}
	if d >= time.Minute {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	return fmt.Sprintf("%ds", int(d.Seconds()))
}

func terminalWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return DefaultMaxWidth
}
