package compiler

import (
	"sync"
	"time"

	"github.com/deicod/jinjac/loader"
	"github.com/deicod/jinjac/nodes"
)

// unitEntry is a parsed template unit with the source it was parsed from.
type unitEntry struct {
	Template *nodes.Template
	Source   string
	LoadedAt time.Time
	// ModTime is the loader's modification time at parse time, zero when
	// the loader cannot report one.
	ModTime time.Time
}

// isValid reports whether the entry still matches what the loader would
// return.
func (e *unitEntry) isValid(l loader.Loader, name string) bool {
	if e.ModTime.IsZero() {
		return true
	}
	mt, ok := l.(loader.ModTimeLoader)
	if !ok {
		return true
	}
	current, err := mt.TemplateModTime(name)
	if err != nil || current.IsZero() {
		return false
	}
	return current.Equal(e.ModTime)
}

// unitCache holds parsed units shared by every compile of a Compiler.
// Parsed units are never mutated by the later stages, so entries are handed
// out without copying.
type unitCache struct {
	entries map[string]*unitEntry
	mutex   sync.RWMutex
	maxSize int
}

func newUnitCache(maxSize int) *unitCache {
	return &unitCache{
		entries: make(map[string]*unitEntry),
		maxSize: maxSize,
	}
}

// Get returns the entry for name if it is still valid for l.
func (c *unitCache) Get(name string, l loader.Loader) (*unitEntry, bool) {
	c.mutex.RLock()
	entry, ok := c.entries[name]
	c.mutex.RUnlock()

	if !ok {
		return nil, false
	}
	if !entry.isValid(l, name) {
		c.Delete(name)
		return nil, false
	}
	return entry, true
}

// Set stores an entry, evicting the oldest one when the cache is full.
func (c *unitCache) Set(name string, entry *unitEntry) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if _, exists := c.entries[name]; !exists && c.maxSize > 0 && len(c.entries) >= c.maxSize {
		c.evictOldest()
	}
	c.entries[name] = entry
}

// Delete removes name from the cache.
func (c *unitCache) Delete(name string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.entries, name)
}

// Clear removes all entries.
func (c *unitCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries = make(map[string]*unitEntry)
}

// Size returns the number of cached units.
func (c *unitCache) Size() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return len(c.entries)
}

func (c *unitCache) evictOldest() {
	var oldestName string
	var oldestTime time.Time

	for name, entry := range c.entries {
		if oldestName == "" || entry.LoadedAt.Before(oldestTime) {
			oldestName = name
			oldestTime = entry.LoadedAt
		}
	}
	if oldestName != "" {
		delete(c.entries, oldestName)
	}
}
