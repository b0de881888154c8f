// Package status composes the data pipeline's outputs into one
// immutable snapshot per refresh tick. It performs no synchronous
// network I/O; everything slow happens behind the progress resolver's
// background fetches, which is what keeps a warm snapshot under 50ms.
package status

import (
	"time"

	"github.com/Dicklesworthstone/devbar/internal/progress"
	"github.com/Dicklesworthstone/devbar/internal/timer"
	"github.com/Dicklesworthstone/devbar/internal/transcript"
)

// Session is the per-invocation metadata handed in by the host
// (editor status bar, shell hook, or stdin payload).
type Session struct {
	ID             string
	Model          string
	TranscriptPath string
	WorkDir        string
	MilestoneKey   string
}

// Snapshot is the aggregate consumed by presentation code. It is
// created fresh on every call and never mutated afterwards.
type Snapshot struct {
	Progress    progress.Record
	Context     transcript.ContextUsage
	Branch      string
	TimerActive bool
	Elapsed     time.Duration
	GeneratedAt time.Time
}

// Aggregator builds snapshots from the resolver, the transcript
// estimator, and local session-metadata readers.
type Aggregator struct {
	Resolver      *progress.Resolver
	TimerDir      string
	IdleThreshold time.Duration

	// now is swappable in tests.
	now func() time.Time
}

// NewAggregator creates an Aggregator with the default timer location.
func NewAggregator(r *progress.Resolver) *Aggregator {
	return &Aggregator{
		Resolver:      r,
		TimerDir:      timer.StateDir(),
		IdleThreshold: timer.DefaultIdleThreshold,
		now:           time.Now,
	}
}

// Snapshot assembles one status snapshot for the session. Every
// component degrades independently: worst case is a default-sourced
// all-zero progress record and a zero context usage, never an error.
func (a *Aggregator) Snapshot(sess Session) Snapshot {
	now := a.clock()()

	key := sess.MilestoneKey
	if key == "" {
		key = "current"
	}

	var ctxUsage transcript.ContextUsage
	if sess.TranscriptPath != "" {
		ctxUsage = transcript.Estimate(sess.TranscriptPath, sess.Model)
	} else {
		ctxUsage = transcript.ContextUsage{
			MaxTokens: transcript.ContextWindow(sess.Model),
			Method:    transcript.MethodCharEstimate,
		}
	}

	ts := timer.Load(timer.PathFor(a.TimerDir, sess.ID))

	return Snapshot{
		Progress:    a.Resolver.Resolve(key),
		Context:     ctxUsage,
		Branch:      Branch(sess.WorkDir),
		TimerActive: ts.Active(now, a.IdleThreshold),
		Elapsed:     ts.Elapsed(now),
		GeneratedAt: now,
	}
}

func (a *Aggregator) clock() func() time.Time {
	if a.now != nil {
		return a.now
	}
	return time.Now
}
