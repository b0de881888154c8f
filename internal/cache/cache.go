// Package cache provides a TTL cache with best-effort disk persistence.
//
// The cache is a pure accelerator: losing it (permission errors, corrupt
// snapshot, missing directory) costs speed, never correctness. Disk failures
// are swallowed and the cache continues memory-only.
package cache

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// DefaultTTL is the cache TTL used when none is configured.
const DefaultTTL = 30 * time.Second

// DefaultFlushEvery is how many staged sets accumulate before an
// automatic flush. Batching bounds disk I/O on the refresh hot path.
const DefaultFlushEvery = 8

// entry is the on-disk and in-memory shape of a cached value.
// Timestamp is milliseconds since epoch so the snapshot file is
// readable by other tooling without Go time semantics.
type entry struct {
	Timestamp int64           `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// expired reports whether the entry is past its TTL at time now.
func (e entry) expired(ttl time.Duration, now time.Time) bool {
	age := now.UnixMilli() - e.Timestamp
	return age > ttl.Milliseconds()
}

// Cache is a mutex-guarded key/value cache with millisecond TTL,
// lazy disk load, and batched atomic disk writes.
//
// Values are opaque JSON. Both the synchronous request path and the
// background fetch-completion path write through the same mutex, so
// concurrent writers to one key are linearized; the winner is the
// call with the latest write timestamp.
type Cache struct {
	path       string
	ttl        time.Duration
	flushEvery int

	mu      sync.Mutex
	entries map[string]entry
	loaded  bool
	staged  int // sets since last flush

	// flushMu serializes in-process flushes: held from snapshot
	// capture through the rename, so flushes hit disk in capture
	// order and an older snapshot never lands after a newer one.
	flushMu sync.Mutex

	// now is swappable in tests to pin TTL boundaries.
	now func() time.Time
}

// New creates a cache persisted at path with the given TTL.
// An empty path disables persistence. A non-positive TTL falls back
// to DefaultTTL; TTL misuse is a caller bug, not an environment fault.
func New(path string, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		path:       path,
		ttl:        ttl,
		flushEvery: DefaultFlushEvery,
		entries:    make(map[string]entry),
		now:        time.Now,
	}
}

// TTL returns the cache's time-to-live.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Path returns the snapshot file path ("" when persistence is off).
func (c *Cache) Path() string { return c.path }

// staleRetentionFactor scales the TTL into the horizon past which an
// expired entry is truly evicted. Between TTL and the horizon the
// entry is a miss for Get but still available to GetStale, so
// serve-stale-while-revalidate has something to serve.
const staleRetentionFactor = 10

// Get returns the cached value for key if present and unexpired.
// Entries expired past the stale-retention horizon are evicted as a
// side effect of the read, so no sweep goroutine is needed.
func (c *Cache) Get(key string) (json.RawMessage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loadLocked()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if e.expired(c.ttl, c.now()) {
		if e.expired(c.ttl*staleRetentionFactor, c.now()) {
			delete(c.entries, key)
		}
		return nil, false
	}
	return e.Data, true
}

// GetStale returns the value for key even when its TTL has lapsed,
// along with its age. Used by stale-while-revalidate callers that
// prefer an old answer over no answer. Returns false only when the
// key has never been cached (or was cleared).
func (c *Cache) GetStale(key string) (json.RawMessage, time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loadLocked()

	e, ok := c.entries[key]
	if !ok {
		return nil, 0, false
	}
	age := time.Duration(c.now().UnixMilli()-e.Timestamp) * time.Millisecond
	return e.Data, age, true
}

// Set stores value under key with the current timestamp. When persist
// is false the write is staged in memory and flushed later, either by
// an explicit Flush or once DefaultFlushEvery sets accumulate.
func (c *Cache) Set(key string, value json.RawMessage, persist bool) {
	c.mu.Lock()
	c.loadLocked()
	c.entries[key] = entry{Timestamp: c.now().UnixMilli(), Data: value}
	c.staged++
	doFlush := persist || c.staged >= c.flushEvery
	if doFlush {
		c.staged = 0
	}
	c.mu.Unlock()

	if doFlush {
		if err := c.Flush(); err != nil {
			slog.Debug("cache flush failed", "path", c.path, "error", err)
		}
	}
}

// Delete removes key from the cache. Memory only; the next flush
// drops it from the snapshot too.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loadLocked()
	delete(c.entries, key)
}

// Clear removes all entries and best-effort deletes the snapshot file.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.loaded = true
	c.staged = 0
	c.mu.Unlock()

	if c.path != "" {
		_ = os.Remove(c.path)
	}
}

// Len returns the number of unexpired entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loadLocked()

	now := c.now()
	n := 0
	for _, e := range c.entries {
		if !e.expired(c.ttl, now) {
			n++
		}
	}
	return n
}

// Flush atomically serializes all unexpired entries to the snapshot
// file (write-to-temp-then-rename, so concurrent readers in other
// processes never observe a torn file). The returned error is
// informational; callers on the hot path ignore it.
func (c *Cache) Flush() error {
	if c.path == "" {
		return nil
	}

	c.flushMu.Lock()
	defer c.flushMu.Unlock()

	c.mu.Lock()
	c.loadLocked()
	now := c.now()
	snapshot := make(map[string]entry, len(c.entries))
	for k, e := range c.entries {
		if !e.expired(c.ttl, now) {
			snapshot[k] = e
		}
	}
	c.mu.Unlock()

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal cache snapshot: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	unlock := c.lockFile()
	defer unlock()

	tmp, err := os.CreateTemp(filepath.Dir(c.path), ".cache-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write cache snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp cache file: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace cache snapshot: %w", err)
	}
	return nil
}

// loadLocked performs the one-time lazy load of the disk snapshot.
// Malformed files, individually malformed entries, and read errors
// all degrade to whatever loaded cleanly (possibly nothing).
// Caller must hold c.mu.
func (c *Cache) loadLocked() {
	if c.loaded {
		return
	}
	c.loaded = true
	if c.path == "" {
		return
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Debug("cache snapshot unreadable", "path", c.path, "error", err)
		}
		return
	}

	// Decode into raw messages first so one bad entry doesn't reject
	// the whole snapshot.
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		slog.Debug("cache snapshot corrupt", "path", c.path, "error", err)
		return
	}

	now := c.now()
	for k, rv := range raw {
		var e entry
		if err := json.Unmarshal(rv, &e); err != nil || e.Timestamp <= 0 {
			continue
		}
		if e.expired(c.ttl, now) {
			continue
		}
		c.entries[k] = e
	}
}

// lockFile takes a best-effort advisory lock on the snapshot so two
// concurrent devbar invocations don't interleave flushes. Lock
// acquisition failure is not fatal: the rename is atomic either way,
// the lock only serializes writers.
func (c *Cache) lockFile() func() {
	fl := flock.New(c.path + ".lock")
	for i := 0; i < 3; i++ {
		ok, err := fl.TryLock()
		if err != nil {
			return func() {}
		}
		if ok {
			return func() { _ = fl.Unlock() }
		}
		time.Sleep(10 * time.Millisecond)
	}
	return func() {}
}
