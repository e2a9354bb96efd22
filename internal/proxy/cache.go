package proxy

import (
	"net/http"
	"sync"
	"time"
)

// cachedResponse is a snapshot of a successful upstream GET answer.
type cachedResponse struct {
	status      int
	contentType string
	body        []byte
	storedAt    time.Time
}

// responseCache remembers the last good answer per request path so
// reads keep working while the collector is down. Unbounded growth is
// acceptable: the API surface is a handful of routes.
type responseCache struct {
	mu      sync.RWMutex
	entries map[string]cachedResponse
}

func newResponseCache() *responseCache {
	return &responseCache{entries: make(map[string]cachedResponse)}
}

func (c *responseCache) put(key string, status int, contentType string, body []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cachedResponse{
		status:      status,
		contentType: contentType,
		body:        body,
		storedAt:    time.Now(),
	}
}

func (c *responseCache) get(key string) (cachedResponse, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[key]
	return entry, ok
}

// serve writes a cached entry with a header marking it as stale.
func (entry cachedResponse) serve(w http.ResponseWriter) {
	if entry.contentType != "" {
		w.Header().Set("Content-Type", entry.contentType)
	}
	w.Header().Set("X-Fieldsync-Cache", "stale")
	w.Header().Set("X-Fieldsync-Cached-At", entry.storedAt.UTC().Format(time.RFC3339))
	w.WriteHeader(entry.status)
	w.Write(entry.body)
}
