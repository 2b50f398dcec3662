package quote

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/valentingnt/investr-sub000/internal/models"
	"github.com/valentingnt/investr-sub000/internal/quote/providers"
	"github.com/valentingnt/investr-sub000/internal/quote/ratelimit"
)

// Registry holds the priority-ordered adapter lists per asset class and
// runs the failover algorithm: providers are tried sequentially, never
// raced, so rate-limited quota is spent only when the preferred provider
// actually failed.
type Registry struct {
	adapters map[models.AssetClass][]providers.Adapter
	limiter  *ratelimit.Limiter
	logger   *zap.Logger
}

func NewRegistry(limiter *ratelimit.Limiter, logger *zap.Logger, adapters map[models.AssetClass][]providers.Adapter) *Registry {
	return &Registry{adapters: adapters, limiter: limiter, logger: logger}
}

// Fetch tries each eligible adapter in priority order and returns the first
// successful quote. Adapters without valid credentials are skipped without
// spending a call. When every adapter fails the per-provider reasons are
// aggregated into a NoProviderAvailableError.
func (r *Registry) Fetch(ctx context.Context, symbol string, class models.AssetClass) (*models.PriceQuote, error) {
	var attempts []*providers.ProviderError

	for _, adapter := range r.adapters[class] {
		if !adapter.SupportsAssetClass(class) {
			continue
		}
		if !adapter.HasValidCredentials() {
			r.logger.Debug("skipping provider without credentials",
				zap.String("provider", adapter.Name()), zap.String("symbol", symbol))
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if err := r.limiter.AcquireSlot(ctx, adapter.Name()); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			perr := &providers.ProviderError{
				Provider: adapter.Name(),
				Kind:     providers.FailureRateLimited,
				Err:      err,
			}
			attempts = append(attempts, perr)
			r.logger.Info("provider budget exhausted, trying next",
				zap.String("provider", adapter.Name()), zap.String("symbol", symbol))
			continue
		}

		quote, err := adapter.FetchQuote(ctx, symbol, class)
		if err == nil {
			r.logger.Debug("quote fetched",
				zap.String("provider", adapter.Name()), zap.String("symbol", symbol))
			return quote, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}

		perr := asProviderError(adapter.Name(), err)
		attempts = append(attempts, perr)
		if perr.Kind == providers.FailureUnexpectedSchema {
			// Loudly: a schema change means the adapter needs maintenance.
			r.logger.Error("provider returned unexpected schema",
				zap.String("provider", adapter.Name()), zap.String("symbol", symbol), zap.Error(err))
		} else {
			r.logger.Warn("provider fetch failed, trying next",
				zap.String("provider", adapter.Name()), zap.String("symbol", symbol), zap.Error(err))
		}
	}

	return nil, &NoProviderAvailableError{Symbol: symbol, Attempts: attempts}
}

func asProviderError(provider string, err error) *providers.ProviderError {
	var perr *providers.ProviderError
	if errors.As(err, &perr) {
		return perr
	}
	return &providers.ProviderError{Provider: provider, Kind: providers.FailureUnreachable, Err: err}
}
