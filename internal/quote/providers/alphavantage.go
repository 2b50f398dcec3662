package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/valentingnt/investr-sub000/internal/models"
)

// AlphaVantage is the equity provider of last resort; its free tier allows
// only 25 calls per day. Every numeric field in its payload is a string.
type AlphaVantage struct {
	creds      CredentialSource
	currency   string
	baseURL    string
	httpClient *http.Client
}

func NewAlphaVantage(creds CredentialSource, currency string) *AlphaVantage {
	return &AlphaVantage{
		creds:      creds,
		currency:   strings.ToUpper(currency),
		baseURL:    "https://www.alphavantage.co",
		httpClient: &http.Client{Timeout: 20 * time.Second},
	}
}

func (p *AlphaVantage) Name() string { return "alphavantage" }

func (p *AlphaVantage) SupportsAssetClass(class models.AssetClass) bool {
	return class == models.AssetClassEquity
}

func (p *AlphaVantage) HasValidCredentials() bool {
	_, ok := p.creds.Get(p.Name())
	return ok
}

type alphaVantageResponse struct {
	GlobalQuote map[string]string `json:"Global Quote"`
	// Note and Information carry throttling messages on an otherwise
	// successful status.
	Note         string `json:"Note"`
	Information  string `json:"Information"`
	ErrorMessage string `json:"Error Message"`
}

func (p *AlphaVantage) FetchQuote(ctx context.Context, symbol string, class models.AssetClass) (*models.PriceQuote, error) {
	key, ok := p.creds.Get(p.Name())
	if !ok {
		return nil, newError(p.Name(), FailureUnauthorized, fmt.Errorf("no API key configured"))
	}

	sym := strings.ToUpper(symbol)
	q := url.Values{}
	q.Set("function", "GLOBAL_QUOTE")
	q.Set("symbol", sym)
	q.Set("apikey", key)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/query?"+q.Encode(), nil)
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

	var payload alphaVantageResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, newError(p.Name(), FailureUnexpectedSchema, err)
	}
	if payload.Note != "" || payload.Information != "" {
		return nil, newError(p.Name(), FailureRateLimited, fmt.Errorf("throttled: %s%s", payload.Note, payload.Information))
	}
	if payload.ErrorMessage != "" {
		return nil, newError(p.Name(), FailureInvalidSymbol, fmt.Errorf("%s", payload.ErrorMessage))
	}
	if len(payload.GlobalQuote) == 0 {
		return nil, newError(p.Name(), FailureInvalidSymbol, fmt.Errorf("empty quote for %q", sym))
	}

	price, err := requiredDecimal(payload.GlobalQuote["05. price"])
	if err != nil || price.IsNegative() {
		return nil, newError(p.Name(), FailureUnexpectedSchema, fmt.Errorf("unparseable price %q", payload.GlobalQuote["05. price"]))
	}

	quote := &models.PriceQuote{
		Symbol:        sym,
		Price:         price,
		Currency:      p.currency,
		DayHigh:       optionalDecimal(payload.GlobalQuote["03. high"]),
		DayLow:        optionalDecimal(payload.GlobalQuote["04. low"]),
		PreviousClose: optionalDecimal(payload.GlobalQuote["08. previous close"]),
		Volume:        optionalDecimal(payload.GlobalQuote["06. volume"]),
		Source:        p.Name(),
		FetchedAt:     time.Now(),
	}
	// "10. change percent" arrives as "1.2345%".
	quote.ChangePercent24h = optionalDecimal(strings.TrimSuffix(payload.GlobalQuote["10. change percent"], "%"))
	return quote, nil
}
