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

// CoinMarketCap is the crypto fallback provider. It requires an API key for
// every call.
type CoinMarketCap struct {
	creds      CredentialSource
	currency   string
	baseURL    string
	httpClient *http.Client
}

func NewCoinMarketCap(creds CredentialSource, currency string) *CoinMarketCap {
	return &CoinMarketCap{
		creds:      creds,
		currency:   strings.ToUpper(currency),
		baseURL:    "https://pro-api.coinmarketcap.com",
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (p *CoinMarketCap) Name() string { return "coinmarketcap" }

func (p *CoinMarketCap) SupportsAssetClass(class models.AssetClass) bool {
	return class == models.AssetClassCrypto
}

func (p *CoinMarketCap) HasValidCredentials() bool {
	_, ok := p.creds.Get(p.Name())
	return ok
}

type cmcQuote struct {
	Price            *float64 `json:"price"`
	Volume24h        *float64 `json:"volume_24h"`
	PercentChange24h *float64 `json:"percent_change_24h"`
}

type cmcResponse struct {
	Status struct {
		ErrorCode    int    `json:"error_code"`
		ErrorMessage string `json:"error_message"`
	} `json:"status"`
	Data map[string][]struct {
		Quote map[string]cmcQuote `json:"quote"`
	} `json:"data"`
}

func (p *CoinMarketCap) FetchQuote(ctx context.Context, symbol string, class models.AssetClass) (*models.PriceQuote, error) {
	key, ok := p.creds.Get(p.Name())
	if !ok {
		return nil, newError(p.Name(), FailureUnauthorized, fmt.Errorf("no API key configured"))
	}

	sym := strings.ToUpper(symbol)
	q := url.Values{}
	q.Set("symbol", sym)
	q.Set("convert", p.currency)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/v2/cryptocurrency/quotes/latest?"+q.Encode(), nil)
	if err != nil {
		return nil, newError(p.Name(), FailureUnreachable, err)
	}
	req.Header.Set("X-CMC_PRO_API_KEY", key)
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransport(p.Name(), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, newError(p.Name(), classifyStatus(resp.StatusCode), fmt.Errorf("status %d", resp.StatusCode))
	}

	var payload cmcResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, newError(p.Name(), FailureUnexpectedSchema, err)
	}
	if payload.Status.ErrorCode != 0 {
		return nil, newError(p.Name(), FailureUnreachable, fmt.Errorf("error %d: %s", payload.Status.ErrorCode, payload.Status.ErrorMessage))
	}
	listings, ok := payload.Data[sym]
	if !ok || len(listings) == 0 {
		return nil, newError(p.Name(), FailureInvalidSymbol, fmt.Errorf("symbol %q absent from response", sym))
	}
	converted, ok := listings[0].Quote[p.currency]
	if !ok || converted.Price == nil || *converted.Price < 0 {
		return nil, newError(p.Name(), FailureUnexpectedSchema, fmt.Errorf("no usable %s price for %q", p.currency, sym))
	}

	quote := &models.PriceQuote{
		Symbol:    sym,
		Price:     decimal.NewFromFloat(*converted.Price),
		Currency:  p.currency,
		Source:    p.Name(),
		FetchedAt: time.Now(),
	}
	if converted.PercentChange24h != nil {
		quote.ChangePercent24h = floatPtr(*converted.PercentChange24h)
	}
	if converted.Volume24h != nil {
		quote.Volume = floatPtr(*converted.Volume24h)
	}
	return quote, nil
}
