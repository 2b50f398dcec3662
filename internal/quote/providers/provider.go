package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/valentingnt/investr-sub000/internal/models"
)

// Adapter is the uniform contract every market-data provider implements.
// FetchQuote converts the provider's bespoke schema into the normalized
// PriceQuote; all failures are classified into a ProviderError at this
// boundary and never escape as raw transport errors.
type Adapter interface {
	Name() string
	SupportsAssetClass(class models.AssetClass) bool
	HasValidCredentials() bool
	FetchQuote(ctx context.Context, symbol string, class models.AssetClass) (*models.PriceQuote, error)
}

// CredentialSource resolves API keys at call time so settings changes take
// effect without restarting the process.
type CredentialSource interface {
	Get(provider string) (string, bool)
}

// SlotGate is the rate-limiter view adapters use for secondary enrichment
// calls, which consume provider budget independently of the primary call.
type SlotGate interface {
	AcquireSlot(ctx context.Context, providerKey string) error
}

// FailureKind classifies why a provider call failed.
type FailureKind string

const (
	// FailureInvalidSymbol means the provider does not recognize the ticker.
	// Other providers may still know it; symbol mappings differ.
	FailureInvalidSymbol FailureKind = "invalid_symbol"
	// FailureUnauthorized means the credential is missing or rejected.
	FailureUnauthorized FailureKind = "unauthorized"
	// FailureRateLimited means the local budget was exhausted or the
	// provider answered 429.
	FailureRateLimited FailureKind = "rate_limited"
	// FailureUnreachable is a transient network or timeout failure.
	FailureUnreachable FailureKind = "unreachable"
	// FailureUnexpectedSchema means the response shape changed or required
	// fields were malformed; the adapter needs maintenance.
	FailureUnexpectedSchema FailureKind = "unexpected_schema"
)

// ProviderError is the classified failure returned by every adapter.
type ProviderError struct {
	Provider string
	Kind     FailureKind
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Kind)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func newError(provider string, kind FailureKind, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: kind, Err: err}
}

// classifyStatus maps an HTTP response status to a failure kind.
func classifyStatus(status int) FailureKind {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return FailureUnauthorized
	case http.StatusTooManyRequests:
		return FailureRateLimited
	case http.StatusNotFound:
		return FailureInvalidSymbol
	default:
		return FailureUnreachable
	}
}

// classifyTransport wraps a transport-level error, keeping context
// cancellation visible to the orchestrator.
func classifyTransport(provider string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return newError(provider, FailureUnreachable, err)
}

// requiredDecimal parses a string-encoded number; a parse failure on a
// required field is a hard schema error for the caller to wrap.
func requiredDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Decimal{}, fmt.Errorf("empty numeric field")
	}
	return decimal.NewFromString(s)
}

// optionalDecimal parses a string-encoded number, treating failures as
// absent rather than as errors.
func optionalDecimal(s string) *decimal.Decimal {
	if s == "" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	return &d
}

// readAll drains a response body with a sanity cap; provider payloads are
// small.
func readAll(resp *http.Response) ([]byte, error) {
	return io.ReadAll(io.LimitReader(resp.Body, 1<<20))
}

func floatPtr(v float64) *decimal.Decimal {
	d := decimal.NewFromFloat(v)
	return &d
}
