package client

import (
	"strings"
	"sync"
	"time"
)

// DefaultCacheTTL is how long a cached response stays fresh
const DefaultCacheTTL = 5 * time.Minute

type cacheEntry struct {
	body    []byte
	taskIDs []string
	expires time.Time
}

// responseCache keeps decoded-ready response bodies for a short time. List
// entries remember which task ids they contain so a single task update only
// drops the entries that mention it.
type responseCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry
	now     func() time.Time
}

func newResponseCache(ttl time.Duration) *responseCache {
	return &responseCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

func (c *responseCache) get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !c.now().Before(entry.expires) {
		delete(c.entries, key)
		return nil, false
	}
	return entry.body, true
}

func (c *responseCache) set(key string, body []byte, taskIDs ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{
		body:    body,
		taskIDs: taskIDs,
		expires: c.now().Add(c.ttl),
	}
}

// clear drops every entry
func (c *responseCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

// invalidateTask drops the task's own entry and every list containing it.
// Stats and analytics depend on every task and are dropped too.
func (c *responseCache) invalidateTask(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, taskKey(id))
	for key, entry := range c.entries {
		if strings.HasPrefix(key, statsKey) || strings.HasPrefix(key, analyticsKeyPrefix) {
			delete(c.entries, key)
			continue
		}
		for _, taskID := range entry.taskIDs {
			if taskID == id {
				delete(c.entries, key)
				break
			}
		}
	}
}

func (c *responseCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

const (
	statsKey           = "stats"
	analyticsKeyPrefix = "analytics"
)

func taskKey(id string) string { return "task:" + id }
