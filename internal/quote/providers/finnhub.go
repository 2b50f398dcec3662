package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/valentingnt/investr-sub000/internal/models"
)

// Finnhub is the primary equity provider. Its /quote endpoint returns the
// full day range in one call.
type Finnhub struct {
	creds      CredentialSource
	currency   string
	baseURL    string
	httpClient *http.Client
}

func NewFinnhub(creds CredentialSource, currency string) *Finnhub {
	return &Finnhub{
		creds:      creds,
		currency:   strings.ToUpper(currency),
		baseURL:    "https://finnhub.io/api/v1",
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *Finnhub) Name() string { return "finnhub" }

func (p *Finnhub) SupportsAssetClass(class models.AssetClass) bool {
	return class == models.AssetClassEquity
}

func (p *Finnhub) HasValidCredentials() bool {
	_, ok := p.creds.Get(p.Name())
	return ok
}

// finnhubQuote mirrors the /quote response: current, high, low, previous
// close and day change percent. Finnhub answers all-zero for unknown
// symbols instead of an error status.
type finnhubQuote struct {
	Current          float64  `json:"c"`
	High             float64  `json:"h"`
	Low              float64  `json:"l"`
	PreviousClose    float64  `json:"pc"`
	ChangePercent    *float64 `json:"dp"`
	UpdatedTimestamp int64    `json:"t"`
}

func (p *Finnhub) FetchQuote(ctx context.Context, symbol string, class models.AssetClass) (*models.PriceQuote, error) {
	key, ok := p.creds.Get(p.Name())
	if !ok {
		return nil, newError(p.Name(), FailureUnauthorized, fmt.Errorf("no API key configured"))
	}

	sym := strings.ToUpper(symbol)
	q := url.Values{}
	q.Set("symbol", sym)
	q.Set("token", key)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/quote?"+q.Encode(), nil)
	if err != nil {
		return nil, newError(p.Name(), FailureUnreachable, err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransport(p.Name(), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, newError(p.Name(), classifyStatus(resp.StatusCode), fmt.Errorf("status %d", resp.StatusCode))
	}

	var payload finnhubQuote
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, newError(p.Name(), FailureUnexpectedSchema, err)
	}
	if payload.Current == 0 && payload.PreviousClose == 0 && payload.UpdatedTimestamp == 0 {
		return nil, newError(p.Name(), FailureInvalidSymbol, fmt.Errorf("symbol %q unknown", sym))
	}
	if payload.Current < 0 {
		return nil, newError(p.Name(), FailureUnexpectedSchema, fmt.Errorf("negative price for %q", sym))
	}

	quote := &models.PriceQuote{
		Symbol:    sym,
		Price:     decimal.NewFromFloat(payload.Current),
		Currency:  p.currency,
		Source:    p.Name(),
		FetchedAt: time.Now(),
	}
	if payload.ChangePercent != nil {
		quote.ChangePercent24h = floatPtr(*payload.ChangePercent)
	}
	if payload.High > 0 {
		quote.DayHigh = floatPtr(payload.High)
	}
	if payload.Low > 0 {
		quote.DayLow = floatPtr(payload.Low)
	}
	if payload.PreviousClose > 0 {
		quote.PreviousClose = floatPtr(payload.PreviousClose)
	}
	return quote, nil
}
