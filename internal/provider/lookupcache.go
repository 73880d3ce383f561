package provider

import (
	"fmt"
	"sync"
	"time"

	"mapsync-desktop/internal/bridge"
	"mapsync-desktop/internal/geo"
)

// lookupCache memoizes panorama resolution results for a short TTL, keyed by
// the position rounded to the street-view tolerance
type lookupCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]lookupEntry
}

type lookupEntry struct {
	res     bridge.Result
	expires time.Time
}

func newLookupCache(ttl time.Duration) *lookupCache {
	return &lookupCache{ttl: ttl, entries: make(map[string]lookupEntry)}
}

// lookupKey rounds to 4 decimal places, matching the tolerance at which two
// positions count as the same panorama location
func lookupKey(pos geo.LatLng) string {
	return fmt.Sprintf("%.4f,%.4f", pos.Lat, pos.Lng)
}

func (c *lookupCache) get(pos geo.LatLng) (bridge.Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[lookupKey(pos)]
	if !ok || time.Now().After(e.expires) {
		delete(c.entries, lookupKey(pos))
		return bridge.Result{}, false
	}
	return e.res, true
}

func (c *lookupCache) put(pos geo.LatLng, res bridge.Result) {
	c.mu.Lock()
	c.entries[lookupKey(pos)] = lookupEntry{res: res, expires: time.Now().Add(c.ttl)}
	c.mu.Unlock()
}
