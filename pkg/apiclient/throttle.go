package apiclient

import (
	"sync"
	"time"
)

// DefaultThrottleWindow is the minimum time between two dispatches of the
// same fingerprint.
const DefaultThrottleWindow = 5 * time.Second

// RequestKeyCache remembers when each fingerprint was last dispatched.
// Entries are overwritten on every dispatch and never removed; the key space
// is bounded by the endpoints and parameters a session actually uses.
type RequestKeyCache struct {
	mu      sync.Mutex
	window  time.Duration
	now     func() time.Time
	entries map[string]time.Time
}

// NewRequestKeyCache returns an empty cache. A window <= 0 disables
// throttling.
func NewRequestKeyCache(window time.Duration, now func() time.Time) *RequestKeyCache {
	if now == nil {
		now = time.Now
	}
	return &RequestKeyCache{
		window:  window,
		now:     now,
		entries: make(map[string]time.Time),
	}
}

// TryDispatch records a dispatch of key and returns true, or returns false
// without recording anything when key was dispatched inside the window.
func (c *RequestKeyCache) TryDispatch(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if last, ok := c.entries[key]; ok && c.window > 0 && now.Sub(last) < c.window {
		return false
	}
	c.entries[key] = now
	return true
}

// lastDispatch returns the last dispatch time recorded for key.
func (c *RequestKeyCache) lastDispatch(key string) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.entries[key]
	return t, ok
}
