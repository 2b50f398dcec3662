package cache

import (
	"sync"
	"time"

	"github.com/valentingnt/investr-sub000/internal/models"
)

// Memory is the short-lived in-process cache tier. It is fully cleared on a
// low-memory signal and its freshness can be invalidated wholesale when the
// app returns to the foreground, without dropping the stored values.
type Memory struct {
	ttl time.Duration

	mu            sync.RWMutex
	entries       map[string]models.CacheEntry
	invalidatedAt time.Time
}

func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		ttl:     ttl,
		entries: make(map[string]models.CacheEntry),
	}
}

// GetFresh returns the cached quote when its entry is within the memory TTL
// and was written after the last wholesale invalidation.
func (m *Memory) GetFresh(symbol string) (*models.PriceQuote, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.entries[symbol]
	if !ok {
		return nil, false
	}
	if time.Since(entry.WrittenAt) >= m.ttl || !entry.WrittenAt.After(m.invalidatedAt) {
		return nil, false
	}
	quote := entry.Quote
	return &quote, true
}

// Put stores a quote with the current time as its write timestamp.
func (m *Memory) Put(symbol string, quote models.PriceQuote) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[symbol] = models.CacheEntry{Symbol: symbol, Quote: quote, WrittenAt: time.Now()}
}

// PutEntry stores an entry preserving its original write timestamp, used
// when prewarming from the persisted tier.
func (m *Memory) PutEntry(entry models.CacheEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[entry.Symbol] = entry
}

// Invalidate marks every current entry as stale without dropping it.
func (m *Memory) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidatedAt = time.Now()
}

// Clear drops every entry. Called on memory pressure and on administrative
// cache clears.
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]models.CacheEntry)
}

// Len reports the number of resident entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
