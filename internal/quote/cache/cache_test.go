package cache

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/valentingnt/investr-sub000/internal/db"
	"github.com/valentingnt/investr-sub000/internal/models"
)

func newTestStore(t *testing.T, ttl time.Duration) *Store {
	t.Helper()
	database, err := db.Connect(db.Config{Driver: "sqlite", Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	store, err := NewStore(database, ttl)
	require.NoError(t, err)
	return store
}

func testQuote(symbol string, price float64) models.PriceQuote {
	change := decimal.NewFromFloat(1.5)
	return models.PriceQuote{
		Symbol:           symbol,
		Price:            decimal.NewFromFloat(price),
		Currency:         "EUR",
		ChangePercent24h: &change,
		Source:           "coingecko",
		FetchedAt:        time.Now(),
	}
}

func TestStore_RoundTrip(t *testing.T) {
	store := newTestStore(t, 3*time.Hour)
	ctx := context.Background()

	quote := testQuote("BTC", 56123.45)
	require.NoError(t, store.Put(ctx, quote))

	entry, err := store.Get(ctx, "BTC")
	require.NoError(t, err)
	require.NotNil(t, entry)

	assert.Equal(t, "BTC", entry.Quote.Symbol)
	assert.True(t, entry.Quote.Price.Equal(quote.Price))
	assert.Equal(t, "EUR", entry.Quote.Currency)
	require.NotNil(t, entry.Quote.ChangePercent24h)
	assert.True(t, entry.Quote.ChangePercent24h.Equal(*quote.ChangePercent24h))
	assert.Nil(t, entry.Quote.Volume)
	assert.True(t, store.IsFresh(entry))
}

func TestStore_PutOverwrites(t *testing.T) {
	store := newTestStore(t, 3*time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, testQuote("ETH", 2800)))
	require.NoError(t, store.Put(ctx, testQuote("ETH", 2950)))

	entry, err := store.Get(ctx, "ETH")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.True(t, entry.Quote.Price.Equal(decimal.NewFromInt(2950)))
}

func TestStore_MissIsNotAnError(t *testing.T) {
	store := newTestStore(t, 3*time.Hour)

	entry, err := store.Get(context.Background(), "NOPE")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestStore_ExpireKeepsValues(t *testing.T) {
	store := newTestStore(t, 3*time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, testQuote("BTC", 56000)))
	require.NoError(t, store.Expire(ctx))

	entry, err := store.Get(ctx, "BTC")
	require.NoError(t, err)
	require.NotNil(t, entry, "expired entries remain available as stale fallback")
	assert.False(t, store.IsFresh(entry))
	assert.True(t, entry.Quote.Price.Equal(decimal.NewFromInt(56000)))
}

func TestStore_PurgeDeletesValues(t *testing.T) {
	store := newTestStore(t, 3*time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, testQuote("BTC", 56000)))
	require.NoError(t, store.Purge(ctx))

	entry, err := store.Get(ctx, "BTC")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestStore_Recent(t *testing.T) {
	store := newTestStore(t, 3*time.Hour)
	ctx := context.Background()

	for _, sym := range []string{"BTC", "ETH", "SOL"} {
		require.NoError(t, store.Put(ctx, testQuote(sym, 100)))
		time.Sleep(5 * time.Millisecond)
	}

	entries, err := store.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "SOL", entries[0].Symbol, "newest first")
	assert.Equal(t, "ETH", entries[1].Symbol)
}

func TestMemory_TTLExpiry(t *testing.T) {
	mem := NewMemory(30 * time.Millisecond)
	mem.Put("BTC", testQuote("BTC", 56000))

	_, ok := mem.GetFresh("BTC")
	assert.True(t, ok)

	time.Sleep(50 * time.Millisecond)
	_, ok = mem.GetFresh("BTC")
	assert.False(t, ok)
}

func TestMemory_InvalidateMarksStaleWithoutDropping(t *testing.T) {
	mem := NewMemory(time.Hour)
	mem.Put("BTC", testQuote("BTC", 56000))

	mem.Invalidate()
	_, ok := mem.GetFresh("BTC")
	assert.False(t, ok)
	assert.Equal(t, 1, mem.Len(), "entries survive invalidation")

	// A fresh write after invalidation is served again.
	mem.Put("BTC", testQuote("BTC", 57000))
	quote, ok := mem.GetFresh("BTC")
	require.True(t, ok)
	assert.True(t, quote.Price.Equal(decimal.NewFromInt(57000)))
}

func TestMemory_Clear(t *testing.T) {
	mem := NewMemory(time.Hour)
	mem.Put("BTC", testQuote("BTC", 56000))
	mem.Clear()

	assert.Equal(t, 0, mem.Len())
	_, ok := mem.GetFresh("BTC")
	assert.False(t, ok)
}

func TestCache_PersistedHitBackfillsMemory(t *testing.T) {
	store := newTestStore(t, 3*time.Hour)
	mem := NewMemory(time.Hour)
	c := New(mem, store, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, testQuote("BTC", 56000)))

	quote, tier, ok := c.GetFresh(ctx, "BTC")
	require.True(t, ok)
	assert.Equal(t, models.TierPersisted, tier)
	assert.True(t, quote.Price.Equal(decimal.NewFromInt(56000)))

	// Second read is served from memory.
	_, tier, ok = c.GetFresh(ctx, "BTC")
	require.True(t, ok)
	assert.Equal(t, models.TierMemory, tier)
}

func TestCache_StaleFallbackAfterExpire(t *testing.T) {
	store := newTestStore(t, 3*time.Hour)
	c := New(NewMemory(time.Hour), store, zap.NewNop())
	ctx := context.Background()

	c.Put(ctx, testQuote("BTC", 56000))
	require.NoError(t, c.Expire(ctx))

	_, _, ok := c.GetFresh(ctx, "BTC")
	assert.False(t, ok, "expired entries are never fresh")

	entry, ok := c.GetStale(ctx, "BTC")
	require.True(t, ok)
	assert.True(t, entry.Quote.Price.Equal(decimal.NewFromInt(56000)))
}

func TestCache_PrewarmLoadsRecentEntries(t *testing.T) {
	store := newTestStore(t, 3*time.Hour)
	mem := NewMemory(time.Hour)
	c := New(mem, store, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, testQuote("BTC", 56000)))
	require.NoError(t, store.Put(ctx, testQuote("ETH", 2900)))

	c.Prewarm(ctx, 10)
	assert.Equal(t, 2, mem.Len())

	_, tier, ok := c.GetFresh(ctx, "ETH")
	require.True(t, ok)
	assert.Equal(t, models.TierMemory, tier)
}

func TestCache_PurgeDropsBothTiers(t *testing.T) {
	store := newTestStore(t, 3*time.Hour)
	mem := NewMemory(time.Hour)
	c := New(mem, store, zap.NewNop())
	ctx := context.Background()

	c.Put(ctx, testQuote("BTC", 56000))
	require.NoError(t, c.Purge(ctx))

	assert.Equal(t, 0, mem.Len())
	_, ok := c.GetStale(ctx, "BTC")
	assert.False(t, ok)
}
