package cache

import "encoding/json"

// GetJSON returns the cached value for key decoded into T.
// A present-but-undecodable value is treated as a miss; a stale
// snapshot written by an older devbar must not break newer readers.
func GetJSON[T any](c *Cache, key string) (T, bool) {
	var v T
	raw, ok := c.Get(key)
	if !ok {
		return v, false
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, false
	}
	return v, true
}

// GetStaleJSON is GetJSON without the TTL check. See Cache.GetStale.
func GetStaleJSON[T any](c *Cache, key string) (T, bool) {
	var v T
	raw, _, ok := c.GetStale(key)
	if !ok {
		return v, false
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, false
	}
	return v, true
}

// SetJSON marshals v and stores it under key. Marshal failures are
// dropped silently; the cache is an accelerator, not a sink callers
// depend on.
func SetJSON(c *Cache, key string, v any, persist bool) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.Set(key, raw, persist)
}
