package quote

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	apperrors "github.com/valentingnt/investr-sub000/internal/errors"
	"github.com/valentingnt/investr-sub000/internal/models"
	"github.com/valentingnt/investr-sub000/internal/quote/cache"
	"github.com/valentingnt/investr-sub000/internal/quote/ratelimit"
)

// Fetcher is the provider-side dependency of the service; Registry
// implements it.
type Fetcher interface {
	Fetch(ctx context.Context, symbol string, class models.AssetClass) (*models.PriceQuote, error)
}

// flight tracks the joiners of one deduplicated fetch so its context can be
// cancelled as soon as the last of them stops waiting.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	joiners int
}

// Service is the single entry point for quote retrieval. It composes cache
// lookup, rate-limited failover fetch and cache write-through, and collapses
// concurrent requests for the same symbol into one in-flight fetch.
type Service struct {
	cache    *cache.Cache
	fetcher  Fetcher
	limiter  *ratelimit.Limiter
	currency string
	logger   *zap.Logger

	group singleflight.Group

	// liveCtx parents every provider fetch; replacing it cancels all
	// in-flight work when the app is backgrounded. flights refcounts the
	// waiters of each deduplicated fetch.
	mu         sync.Mutex
	liveCtx    context.Context
	cancelLive context.CancelFunc
	flights    map[string]*flight
}

func NewService(c *cache.Cache, fetcher Fetcher, limiter *ratelimit.Limiter, currency string, logger *zap.Logger) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		cache:      c,
		fetcher:    fetcher,
		limiter:    limiter,
		currency:   strings.ToUpper(currency),
		logger:     logger,
		liveCtx:    ctx,
		cancelLive: cancel,
		flights:    make(map[string]*flight),
	}
}

// GetQuote returns a quote for the symbol, preferring fresh cache tiers,
// then the providers, then stale persisted data. Concurrent callers for the
// same symbol and class join a single underlying fetch; when the last of
// them stops waiting, the fetch is cancelled.
func (s *Service) GetQuote(ctx context.Context, symbol string, class models.AssetClass, forceRefresh bool) (*models.QuoteResult, error) {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	if sym == "" {
		return nil, apperrors.NewValidation("symbol", "is required")
	}

	// Savings are cash-like: price is identically 1 and never fetched.
	if class == models.AssetClassSavings {
		return &models.QuoteResult{
			Quote: models.PriceQuote{
				Symbol:    sym,
				Price:     decimal.NewFromInt(1),
				Currency:  s.currency,
				Source:    "savings",
				FetchedAt: time.Now(),
			},
			Tier: models.TierLocal,
		}, nil
	}

	if !forceRefresh {
		if quote, tier, ok := s.cache.GetFresh(ctx, sym); ok {
			return &models.QuoteResult{Quote: *quote, Tier: tier}, nil
		}
	}

	key := sym + "|" + string(class)
	fctx := s.joinFlight(key)
	defer s.leaveFlight(key)

	ch := s.group.DoChan(key, func() (interface{}, error) {
		return s.fetchAndStore(fctx, sym, class)
	})

	select {
	case <-ctx.Done():
		// Remaining joiners keep the shared fetch alive; the deferred leave
		// cancels it only when this caller was the last one.
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*models.QuoteResult), nil
	}
}

// fetchAndStore runs the provider failover and write-through, falling back
// to stale persisted data when every provider fails.
func (s *Service) fetchAndStore(ctx context.Context, symbol string, class models.AssetClass) (*models.QuoteResult, error) {
	quote, err := s.fetcher.Fetch(ctx, symbol, class)
	if err == nil {
		s.cache.Put(ctx, *quote)
		return &models.QuoteResult{Quote: *quote, Tier: models.TierProvider}, nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil, err
	}

	// Stale reads use a background-scoped context: the fallback must work
	// even when the fetch context was cancelled.
	readCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if entry, ok := s.cache.GetStale(readCtx, symbol); ok {
		s.logger.Warn("serving stale quote after provider failure",
			zap.String("symbol", symbol),
			zap.Time("written_at", entry.WrittenAt),
			zap.Error(err))
		return &models.QuoteResult{Quote: entry.Quote, Stale: true, Tier: models.TierPersisted}, nil
	}

	s.logger.Error("quote unavailable", zap.String("symbol", symbol), zap.Error(err))
	return nil, fmt.Errorf("%s: %w", symbol, ErrQuoteUnavailable)
}

// joinFlight registers a waiter for the key's fetch, creating the fetch
// context under the current live generation on first join.
func (s *Service) joinFlight(key string) context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.flights[key]
	if !ok {
		ctx, cancel := context.WithCancel(s.liveCtx)
		f = &flight{ctx: ctx, cancel: cancel}
		s.flights[key] = f
	}
	f.joiners++
	return f.ctx
}

// leaveFlight releases one waiter; the last one out cancels the fetch.
func (s *Service) leaveFlight(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.flights[key]
	if !ok {
		return
	}
	f.joiners--
	if f.joiners <= 0 {
		f.cancel()
		delete(s.flights, key)
	}
}

// CancelAll aborts every in-flight fetch. Issued when the app enters the
// background. Subsequent fetches run under a fresh generation.
func (s *Service) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLive()
	s.liveCtx, s.cancelLive = context.WithCancel(context.Background())
	s.logger.Info("cancelled all in-flight quote fetches")
}

// ResumeForeground invalidates memory-tier freshness so returning to the
// foreground re-checks the persisted tier, without dropping any data.
func (s *Service) ResumeForeground() {
	s.cache.InvalidateMemory()
}

// HandleMemoryPressure clears the memory tier only.
func (s *Service) HandleMemoryPressure() {
	s.cache.HandleMemoryPressure()
}

// ClearCache removes all cached quotes from both tiers.
func (s *Service) ClearCache(ctx context.Context) error {
	return s.cache.Purge(ctx)
}

// ExpireCache clears freshness across both tiers while keeping persisted
// values available for stale fallback.
func (s *Service) ExpireCache(ctx context.Context) error {
	return s.cache.Expire(ctx)
}

// ProviderUsage reports every provider's current rate-budget consumption.
func (s *Service) ProviderUsage() []models.ProviderUsage {
	return s.limiter.Usage()
}
