package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AssetClass categorizes a held instrument for provider routing.
type AssetClass string

const (
	// AssetClassEquity covers stocks and ETFs, identified by ticker plus an
	// optional exchange suffix (e.g. "ASML.AS").
	AssetClassEquity AssetClass = "equity"
	// AssetClassCrypto covers cryptocurrencies, identified by a short ticker
	// that adapters map to their own canonical coin identifiers.
	AssetClassCrypto AssetClass = "crypto"
	// AssetClassSavings covers cash-like holdings. Their price is always 1
	// and they never hit the network.
	AssetClassSavings AssetClass = "savings"
)

// ParseAssetClass converts a user-facing string into an AssetClass.
func ParseAssetClass(s string) (AssetClass, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "equity", "etf", "stock":
		return AssetClassEquity, nil
	case "crypto", "cryptocurrency":
		return AssetClassCrypto, nil
	case "savings", "cash":
		return AssetClassSavings, nil
	default:
		return "", fmt.Errorf("unknown asset class: %q", s)
	}
}

// PriceQuote is the normalized quote shape returned by every provider.
// Price is always set on a successful fetch; the remaining market fields are
// best-effort and stay nil when a provider does not report them.
type PriceQuote struct {
	Symbol           string           `json:"symbol"`
	Price            decimal.Decimal  `json:"price"`
	Currency         string           `json:"currency"`
	ChangePercent24h *decimal.Decimal `json:"change_percent_24h,omitempty"`
	DayHigh          *decimal.Decimal `json:"day_high,omitempty"`
	DayLow           *decimal.Decimal `json:"day_low,omitempty"`
	PreviousClose    *decimal.Decimal `json:"previous_close,omitempty"`
	Volume           *decimal.Decimal `json:"volume,omitempty"`
	Source           string           `json:"source"`
	FetchedAt        time.Time        `json:"fetched_at"`
}

// CacheEntry wraps a stored quote with its write timestamp. A zero WrittenAt
// marks an entry whose freshness has been administratively cleared; its value
// is still usable as a last-resort fallback.
type CacheEntry struct {
	Symbol    string
	Quote     PriceQuote
	WrittenAt time.Time
}

// QuoteTier identifies where a served quote came from.
type QuoteTier string

const (
	TierMemory    QuoteTier = "memory"
	TierPersisted QuoteTier = "persisted"
	TierProvider  QuoteTier = "provider"
	TierLocal     QuoteTier = "local"
)

// QuoteResult is what callers of the quote service receive. Stale is true
// when the quote was served from an expired persisted entry because every
// provider failed.
type QuoteResult struct {
	Quote PriceQuote `json:"quote"`
	Stale bool       `json:"stale"`
	Tier  QuoteTier  `json:"tier"`
}

// ProviderUsage is a snapshot of one provider's rate budget, exposed for the
// usage-monitoring surface.
type ProviderUsage struct {
	Provider      string     `json:"provider"`
	WindowCalls   int        `json:"window_calls"`
	WindowLimit   int        `json:"window_limit"`
	WindowResetAt time.Time  `json:"window_reset_at"`
	DailyCalls    int        `json:"daily_calls,omitempty"`
	DailyLimit    int        `json:"daily_limit,omitempty"`
	DailyResetAt  *time.Time `json:"daily_reset_at,omitempty"`
}
