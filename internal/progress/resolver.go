package progress

import (
	"log/slog"
	"sync"

	"github.com/Dicklesworthstone/devbar/internal/cache"
	"github.com/Dicklesworthstone/devbar/internal/tracker"
)

// Fetcher is the remote tier of the fallback chain. *tracker.Client
// satisfies it; tests substitute fakes.
type Fetcher interface {
	Fetch(key string) (*tracker.Milestone, error)
}

// Options configures a Resolver.
type Options struct {
	// ProjectDir anchors relative local candidate paths ("" = cwd).
	ProjectDir string

	// Candidates overrides DefaultCandidates when non-nil.
	Candidates []string
}

// Resolver produces one Record per milestone key without ever blocking
// its caller on the tracker CLI.
//
// Per-key lifecycle: Cold (nothing cached, no fetch running) →
// Fetching (background fetch started, callers get a fallback) →
// Cached (fresh value served sub-millisecond) → Stale (TTL lapsed,
// eligible to re-enter Fetching). A failed background fetch simply
// leaves the key Cold/Stale; the next Resolve retries, so there is no
// manual reset and no terminal failure state.
type Resolver struct {
	cache      *cache.Cache
	fetcher    Fetcher
	dir        string
	candidates []string

	mu       sync.Mutex
	inflight map[string]bool

	// fetchDone is a test hook invoked after a background fetch fully
	// settles (cache written, in-flight flag cleared). Nil in production.
	fetchDone func(key string, err error)
}

// NewResolver creates a Resolver over the given cache and fetcher.
// A nil fetcher disables the remote tier entirely (local-only mode).
func NewResolver(c *cache.Cache, f Fetcher, opts Options) *Resolver {
	candidates := opts.Candidates
	if candidates == nil {
		candidates = DefaultCandidates
	}
	return &Resolver{
		cache:      c,
		fetcher:    f,
		dir:        opts.ProjectDir,
		candidates: candidates,
		inflight:   make(map[string]bool),
	}
}

// Resolve returns the best available Record for key, immediately.
//
// Fresh cache hit: returned as-is, no I/O. Otherwise at most one
// background fetch per key is started (duplicate concurrent callers
// share the one in-flight fetch) and the caller gets, in order of
// preference: the expired cached value (stale-while-revalidate), a
// local file read, or the default record. The call that triggers a
// fetch never waits for it; the result lands in the cache for the
// next caller.
func (r *Resolver) Resolve(key string) Record {
	ck := cacheKey(key)

	if rec, ok := cache.GetJSON[Record](r.cache, ck); ok {
		return rec
	}

	r.maybeFetch(key)

	if rec, ok := cache.GetStaleJSON[Record](r.cache, ck); ok {
		return rec
	}
	if rec, ok := readLocal(r.dir, r.candidates); ok {
		return rec
	}
	return DefaultRecord()
}

// ReadLocal exposes the local tier alone, bypassing cache and remote.
// Used by consumers that want project-file data with no side effects.
func (r *Resolver) ReadLocal() (Record, bool) {
	return readLocal(r.dir, r.candidates)
}

// maybeFetch starts a background fetch for key unless one is already
// in flight. The check-and-set is atomic under r.mu so concurrent
// Resolve calls never spawn duplicate tracker processes.
func (r *Resolver) maybeFetch(key string) {
	if r.fetcher == nil {
		return
	}

	r.mu.Lock()
	if r.inflight[key] {
		r.mu.Unlock()
		return
	}
	r.inflight[key] = true
	r.mu.Unlock()

	go r.backgroundFetch(key)
}

// backgroundFetch runs the remote tier off the hot path. Errors and
// panics are contained here: a failed fetch logs and leaves the cache
// untouched, making the result visible (or not) to the next Resolve.
func (r *Resolver) backgroundFetch(key string) {
	var fetchErr error
	defer func() {
		if p := recover(); p != nil {
			slog.Error("progress fetch panicked", "key", key, "panic", p)
		}
		r.mu.Lock()
		delete(r.inflight, key)
		r.mu.Unlock()
		if r.fetchDone != nil {
			r.fetchDone(key, fetchErr)
		}
	}()

	m, err := r.fetcher.Fetch(key)
	if err != nil {
		fetchErr = err
		slog.Debug("progress fetch failed", "key", key, "error", err)
		return
	}

	rec := Record{
		Name:          m.Name,
		Completed:     m.Completed,
		Total:         m.Total,
		TimeRemaining: m.TimeRemaining,
		Source:        SourceRemote,
	}
	if rec.Completed < 0 {
		rec.Completed = 0
	}
	if rec.Total < 0 {
		rec.Total = 0
	}

	// Persist immediately: other devbar processes sharing the snapshot
	// file should see the fresh record without waiting for a batch flush.
	cache.SetJSON(r.cache, cacheKey(key), rec, true)
}

func cacheKey(key string) string {
	return "milestone:" + key
}
