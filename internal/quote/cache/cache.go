package cache

import (
	"context"

	"go.uber.org/zap"

	"github.com/valentingnt/investr-sub000/internal/models"
)

// Cache composes the memory and persisted tiers. Reads check memory first;
// persisted hits are backfilled into memory. Writes go through to both.
type Cache struct {
	mem    *Memory
	store  *Store
	logger *zap.Logger
}

func New(mem *Memory, store *Store, logger *zap.Logger) *Cache {
	return &Cache{mem: mem, store: store, logger: logger}
}

// GetFresh returns a quote that is fresh for its tier, along with the tier
// that served it. A fresh persisted hit repopulates the memory tier.
func (c *Cache) GetFresh(ctx context.Context, symbol string) (*models.PriceQuote, models.QuoteTier, bool) {
	if quote, ok := c.mem.GetFresh(symbol); ok {
		return quote, models.TierMemory, true
	}

	entry, err := c.store.Get(ctx, symbol)
	if err != nil {
		c.logger.Warn("persisted cache read failed", zap.String("symbol", symbol), zap.Error(err))
		return nil, "", false
	}
	if entry == nil || !c.store.IsFresh(entry) {
		return nil, "", false
	}

	c.mem.Put(symbol, entry.Quote)
	quote := entry.Quote
	return &quote, models.TierPersisted, true
}

// GetStale returns whatever the persisted tier holds for the symbol, fresh
// or not. Used as the fallback of last resort when every provider fails.
func (c *Cache) GetStale(ctx context.Context, symbol string) (*models.CacheEntry, bool) {
	entry, err := c.store.Get(ctx, symbol)
	if err != nil {
		c.logger.Warn("persisted cache read failed", zap.String("symbol", symbol), zap.Error(err))
		return nil, false
	}
	if entry == nil {
		return nil, false
	}
	return entry, true
}

// Put writes a freshly fetched quote through to both tiers. A persisted-tier
// write failure is logged but does not fail the fetch.
func (c *Cache) Put(ctx context.Context, quote models.PriceQuote) {
	c.mem.Put(quote.Symbol, quote)
	if err := c.store.Put(ctx, quote); err != nil {
		c.logger.Warn("persisted cache write failed", zap.String("symbol", quote.Symbol), zap.Error(err))
	}
}

// Prewarm loads the n most recently written persisted entries into the
// memory tier, preserving their original timestamps.
func (c *Cache) Prewarm(ctx context.Context, n int) {
	if n <= 0 {
		return
	}
	entries, err := c.store.Recent(ctx, n)
	if err != nil {
		c.logger.Warn("cache prewarm failed", zap.Error(err))
		return
	}
	for _, entry := range entries {
		c.mem.PutEntry(entry)
	}
	c.logger.Info("memory cache prewarmed", zap.Int("entries", len(entries)))
}

// InvalidateMemory marks all memory-tier entries stale, forcing the next
// lookup to re-check the persisted tier. Issued when the app returns to the
// foreground.
func (c *Cache) InvalidateMemory() {
	c.mem.Invalidate()
}

// HandleMemoryPressure drops the memory tier entirely; the persisted tier
// survives.
func (c *Cache) HandleMemoryPressure() {
	c.mem.Clear()
	c.logger.Info("memory cache cleared on memory pressure")
}

// Expire clears freshness across both tiers while keeping persisted values
// for stale fallback. Used by force-refresh-all.
func (c *Cache) Expire(ctx context.Context) error {
	c.mem.Invalidate()
	return c.store.Expire(ctx)
}

// Purge removes everything from both tiers. Used by the administrative
// clear-cache action.
func (c *Cache) Purge(ctx context.Context) error {
	c.mem.Clear()
	return c.store.Purge(ctx)
}
