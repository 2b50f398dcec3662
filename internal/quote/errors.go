package quote

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"github.com/valentingnt/investr-sub000/internal/quote/providers"
)

// ErrQuoteUnavailable is returned when no provider succeeded and no cached
// value, fresh or stale, exists for the symbol.
var ErrQuoteUnavailable = errors.New("quote unavailable")

// NoProviderAvailableError reports that every eligible provider failed for
// one fetch attempt, carrying the per-provider reasons for diagnostics.
type NoProviderAvailableError struct {
	Symbol   string
	Attempts []*providers.ProviderError
}

func (e *NoProviderAvailableError) Error() string {
	return fmt.Sprintf("no provider available for %s (%d attempts)", e.Symbol, len(e.Attempts))
}

func (e *NoProviderAvailableError) Unwrap() error {
	errs := make([]error, 0, len(e.Attempts))
	for _, attempt := range e.Attempts {
		errs = append(errs, attempt)
	}
	return multierr.Combine(errs...)
}
