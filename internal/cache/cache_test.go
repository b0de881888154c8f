package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"
)

// fixedClock lets tests move time explicitly.
type fixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fixedClock) now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fixedClock) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.t = f.t.Add(d)
}

func newTestCache(t *testing.T, ttl time.Duration) (*Cache, *fixedClock) {
	t.Helper()
	clk := &fixedClock{t: time.Now()}
	c := New(filepath.Join(t.TempDir(), "cache.json"), ttl)
	c.now = clk.now
	return c, clk
}

func TestGetSetRoundTrip(t *testing.T) {
	c, _ := newTestCache(t, time.Minute)

	c.Set("k", json.RawMessage(`{"a":1}`), false)
	got, ok := c.Get("k")
	if !ok {
		t.Fatal("Get(k) missing after Set")
	}
	if string(got) != `{"a":1}` {
		t.Errorf("Get(k) = %s, want {\"a\":1}", got)
	}
}

func TestTTLBoundary(t *testing.T) {
	// An entry written at T is served for reads at <= T+ttl and
	// absent for reads at > T+ttl.
	ttl := 500 * time.Millisecond
	c, clk := newTestCache(t, ttl)
	c.Set("k", json.RawMessage(`1`), false)

	clk.advance(ttl) // exactly T+ttl: still valid
	if _, ok := c.Get("k"); !ok {
		t.Error("entry absent at exactly T+ttl, want present")
	}

	clk.advance(time.Millisecond) // past the boundary
	if _, ok := c.Get("k"); ok {
		t.Error("entry present past T+ttl, want absent")
	}
}

func TestExpiredEntryEvictedPastRetention(t *testing.T) {
	c, clk := newTestCache(t, 100*time.Millisecond)
	c.Set("k", json.RawMessage(`1`), false)
	clk.advance(2 * time.Second) // far past TTL * staleRetentionFactor

	if _, ok := c.Get("k"); ok {
		t.Fatal("expired entry served")
	}
	// GetStale sees nothing either: the read evicted it.
	if _, _, ok := c.GetStale("k"); ok {
		t.Error("long-expired entry survived eviction")
	}
}

func TestGetStaleServesRecentlyExpired(t *testing.T) {
	c, clk := newTestCache(t, 100*time.Millisecond)
	c.Set("k", json.RawMessage(`"old"`), false)
	clk.advance(300 * time.Millisecond) // past TTL, within retention

	// Get misses but keeps the entry for stale consumers.
	if _, ok := c.Get("k"); ok {
		t.Fatal("expired entry served by Get")
	}
	got, age, ok := c.GetStale("k")
	if !ok {
		t.Fatal("GetStale missed a recently expired key")
	}
	if string(got) != `"old"` {
		t.Errorf("GetStale = %s, want \"old\"", got)
	}
	if age < 300*time.Millisecond {
		t.Errorf("age = %v, want >= 300ms", age)
	}
}

func TestConcurrentSetLastWriterWins(t *testing.T) {
	c, clk := newTestCache(t, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Set("k", json.RawMessage(`"racer"`), false)
		}()
	}
	wg.Wait()

	// A later write with a fresher timestamp always wins.
	clk.advance(time.Millisecond)
	c.Set("k", json.RawMessage(`"final"`), false)
	got, ok := c.Get("k")
	if !ok || string(got) != `"final"` {
		t.Errorf("Get(k) = %s, %v; want \"final\", true", got, ok)
	}
}

func TestFlushAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.json")

	c := New(path, time.Minute)
	c.Set("alpha", json.RawMessage(`{"n":1}`), false)
	c.Set("beta", json.RawMessage(`{"n":2}`), false)
	if err := c.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	// A fresh cache instance lazily loads the snapshot on first read.
	c2 := New(path, time.Minute)
	got, ok := c2.Get("alpha")
	if !ok || string(got) != `{"n":1}` {
		t.Errorf("reloaded Get(alpha) = %s, %v; want {\"n\":1}, true", got, ok)
	}
	if c2.Len() != 2 {
		t.Errorf("reloaded Len = %d, want 2", c2.Len())
	}
}

func TestFlushSkipsExpired(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	clk := &fixedClock{t: time.Now()}
	c := New(path, 100*time.Millisecond)
	c.now = clk.now

	c.Set("dead", json.RawMessage(`1`), false)
	clk.advance(time.Second)
	c.Set("live", json.RawMessage(`2`), false)
	if err := c.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("snapshot not valid JSON: %v", err)
	}
	if _, ok := raw["dead"]; ok {
		t.Error("expired entry persisted to snapshot")
	}
	if _, ok := raw["live"]; !ok {
		t.Error("live entry missing from snapshot")
	}
}

func TestConcurrentFlushesNeverRegressSnapshot(t *testing.T) {
	// Flushes hit disk in capture order, so a reader polling the
	// snapshot must never see the counter go backwards.
	path := filepath.Join(t.TempDir(), "cache.json")
	c := New(path, time.Minute)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 1; i <= 30; i++ {
			c.Set("n", json.RawMessage(fmt.Sprintf("%d", i)), true)
		}
	}()
	go func() {
		for {
			select {
			case <-done:
				return
			default:
				_ = c.Flush()
			}
		}
	}()

	last := 0
	for {
		select {
		case <-done:
			if err := c.Flush(); err != nil {
				t.Fatalf("final Flush: %v", err)
			}
			var snapshot map[string]entry
			data, err := os.ReadFile(path)
			if err != nil {
				t.Fatalf("read snapshot: %v", err)
			}
			if err := json.Unmarshal(data, &snapshot); err != nil {
				t.Fatalf("snapshot not valid JSON: %v", err)
			}
			if string(snapshot["n"].Data) != "30" {
				t.Errorf("final snapshot n = %s, want 30", snapshot["n"].Data)
			}
			return
		default:
		}
		data, err := os.ReadFile(path)
		if err != nil {
			continue // not flushed yet
		}
		var snapshot map[string]entry
		if err := json.Unmarshal(data, &snapshot); err != nil {
			t.Fatalf("observed a torn snapshot: %v", err)
		}
		n, err := strconv.Atoi(string(snapshot["n"].Data))
		if err != nil {
			continue
		}
		if n < last {
			t.Fatalf("snapshot regressed from %d to %d", last, n)
		}
		last = n
	}
}

func TestCorruptSnapshotDegradesToEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	if err := os.WriteFile(path, []byte(`{not json!!`), 0o644); err != nil {
		t.Fatal(err)
	}

	c := New(path, time.Minute)
	if _, ok := c.Get("anything"); ok {
		t.Error("corrupt snapshot produced a hit")
	}
	if c.Len() != 0 {
		t.Errorf("Len = %d after corrupt load, want 0", c.Len())
	}
	// The cache must still be writable afterwards.
	c.Set("k", json.RawMessage(`1`), true)
	if _, ok := c.Get("k"); !ok {
		t.Error("cache unusable after corrupt load")
	}
}

func TestSnapshotSkipsMalformedEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	ts := time.Now().UnixMilli()
	snapshot := map[string]any{
		"good":    map[string]any{"timestamp": ts, "data": 42},
		"badtype": "not an object",
		"nostamp": map[string]any{"data": 1},
		"extra":   map[string]any{"timestamp": ts, "data": 7, "future_field": true},
	}
	data, _ := json.Marshal(snapshot)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	c := New(path, time.Minute)
	if _, ok := c.Get("good"); !ok {
		t.Error("well-formed entry rejected")
	}
	if _, ok := c.Get("badtype"); ok {
		t.Error("malformed entry served")
	}
	if _, ok := c.Get("nostamp"); ok {
		t.Error("entry without timestamp served")
	}
	if _, ok := c.Get("extra"); !ok {
		t.Error("entry with unknown extra fields rejected")
	}
}

func TestUnwritableDirIsSilent(t *testing.T) {
	// Persistence pointed at an impossible path: sets and gets keep
	// working memory-only, nothing panics.
	c := New(filepath.Join(string(os.PathSeparator), "dev", "null", "nope", "cache.json"), time.Minute)
	c.Set("k", json.RawMessage(`1`), true)
	if _, ok := c.Get("k"); !ok {
		t.Error("memory-only fallback lost the value")
	}
}

func TestClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	c := New(path, time.Minute)
	c.Set("k", json.RawMessage(`1`), true)
	c.Clear()

	if _, ok := c.Get("k"); ok {
		t.Error("value survived Clear")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("snapshot file survived Clear")
	}
}

func TestGetJSONTyped(t *testing.T) {
	type rec struct {
		Name string `json:"name"`
		N    int    `json:"n"`
	}
	c, _ := newTestCache(t, time.Minute)

	SetJSON(c, "r", rec{Name: "sprint", N: 3}, false)
	got, ok := GetJSON[rec](c, "r")
	if !ok {
		t.Fatal("GetJSON miss")
	}
	if got.Name != "sprint" || got.N != 3 {
		t.Errorf("GetJSON = %+v, want {sprint 3}", got)
	}

	// Undecodable payload reads as a miss, not an error.
	c.Set("bad", json.RawMessage(`"just a string"`), false)
	if _, ok := GetJSON[rec](c, "bad"); ok {
		t.Error("undecodable value reported as hit")
	}
}
