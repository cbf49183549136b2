package guard

import (
	"sync"
	"time"
)

type fallbackEntry struct {
	url     string
	touched time.Time
}

// FallbackTable maps a tab to the last URL classified safe in it, the "go
// back" target when a later navigation on that tab is judged phishing.
// Bounded: entries are evicted when their tab closes and the oldest entry is
// dropped once the cap is reached.
type FallbackTable struct {
	mu      sync.Mutex
	max     int
	entries map[int64]*fallbackEntry
}

// NewFallbackTable with a cap of max entries
func NewFallbackTable(max int) *FallbackTable {
	if max <= 0 {
		max = 512
	}
	return &FallbackTable{max: max, entries: make(map[int64]*fallbackEntry)}
}

// Set the last safe URL for a tab, overwriting any previous one
func (t *FallbackTable) Set(tabID int64, url string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.entries[tabID]; !ok && len(t.entries) >= t.max {
		t.evictOldest()
	}
	t.entries[tabID] = &fallbackEntry{url: url, touched: time.Now()}
}

// Get the last safe URL for a tab
func (t *FallbackTable) Get(tabID int64) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[tabID]
	if !ok {
		return "", false
	}
	return e.url, true
}

// Remove a closed tab's entry
func (t *FallbackTable) Remove(tabID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, tabID)
}

// Len of the table
func (t *FallbackTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// caller holds the lock
func (t *FallbackTable) evictOldest() {
	var oldest int64
	var oldestAt time.Time
	first := true
	for id, e := range t.entries {
		if first || e.touched.Before(oldestAt) {
			oldest, oldestAt = id, e.touched
			first = false
		}
	}
	if !first {
		delete(t.entries, oldest)
	}
}
