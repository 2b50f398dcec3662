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

// TwelveData serves both equities and crypto. Its /price endpoint returns
// only a string-encoded price; the day range and change come from a second
// /quote call whose failure never fails the primary fetch.
type TwelveData struct {
	creds      CredentialSource
	gate       SlotGate
	currency   string
	baseURL    string
	httpClient *http.Client
}

func NewTwelveData(creds CredentialSource, gate SlotGate, currency string) *TwelveData {
	return &TwelveData{
		creds:      creds,
		gate:       gate,
		currency:   strings.ToUpper(currency),
		baseURL:    "https://api.twelvedata.com",
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (p *TwelveData) Name() string { return "twelvedata" }

func (p *TwelveData) SupportsAssetClass(class models.AssetClass) bool {
	return class == models.AssetClassEquity || class == models.AssetClassCrypto
}

func (p *TwelveData) HasValidCredentials() bool {
	_, ok := p.creds.Get(p.Name())
	return ok
}

// twelveDataError is embedded in every error payload; a 200 response can
// still carry an API-level error.
type twelveDataError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

func (e twelveDataError) kind() FailureKind {
	switch e.Code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return FailureUnauthorized
	case http.StatusTooManyRequests:
		return FailureRateLimited
	case http.StatusBadRequest, http.StatusNotFound:
		return FailureInvalidSymbol
	default:
		return FailureUnreachable
	}
}

// requestSymbol maps the app's symbol convention onto Twelve Data's. Crypto
// tickers become pairs against the quote currency; equities pass through
// with their exchange suffix intact.
func (p *TwelveData) requestSymbol(symbol string, class models.AssetClass) string {
	sym := strings.ToUpper(symbol)
	if class == models.AssetClassCrypto {
		return sym + "/" + p.currency
	}
	return sym
}

func (p *TwelveData) FetchQuote(ctx context.Context, symbol string, class models.AssetClass) (*models.PriceQuote, error) {
	key, ok := p.creds.Get(p.Name())
	if !ok {
		return nil, newError(p.Name(), FailureUnauthorized, fmt.Errorf("no API key configured"))
	}

	reqSym := p.requestSymbol(symbol, class)
	body, err := p.get(ctx, "/price", reqSym, key)
	if err != nil {
		return nil, err
	}

	var primary struct {
		twelveDataError
		Price string `json:"price"`
	}
	if err := json.Unmarshal(body, &primary); err != nil {
		return nil, newError(p.Name(), FailureUnexpectedSchema, err)
	}
	if primary.Status == "error" {
		return nil, newError(p.Name(), primary.kind(), fmt.Errorf("code %d: %s", primary.Code, primary.Message))
	}
	price, err := requiredDecimal(primary.Price)
	if err != nil || price.IsNegative() {
		return nil, newError(p.Name(), FailureUnexpectedSchema, fmt.Errorf("unparseable price %q", primary.Price))
	}

	quote := &models.PriceQuote{
		Symbol:    strings.ToUpper(symbol),
		Price:     price,
		Currency:  p.currency,
		Source:    p.Name(),
		FetchedAt: time.Now(),
	}
	p.enrich(ctx, quote, reqSym, key)
	return quote, nil
}

// enrich issues the secondary /quote call for change, range and volume.
// Any failure here degrades to absent fields.
func (p *TwelveData) enrich(ctx context.Context, quote *models.PriceQuote, reqSym, key string) {
	if p.gate != nil {
		if err := p.gate.AcquireSlot(ctx, p.Name()); err != nil {
			return
		}
	}
	body, err := p.get(ctx, "/quote", reqSym, key)
	if err != nil {
		return
	}

	var secondary struct {
		twelveDataError
		PercentChange string `json:"percent_change"`
		High          string `json:"high"`
		Low           string `json:"low"`
		PreviousClose string `json:"previous_close"`
		Volume        string `json:"volume"`
	}
	if err := json.Unmarshal(body, &secondary); err != nil || secondary.Status == "error" {
		return
	}
	quote.ChangePercent24h = optionalDecimal(secondary.PercentChange)
	quote.DayHigh = optionalDecimal(secondary.High)
	quote.DayLow = optionalDecimal(secondary.Low)
	quote.PreviousClose = optionalDecimal(secondary.PreviousClose)
	quote.Volume = optionalDecimal(secondary.Volume)
}

func (p *TwelveData) get(ctx context.Context, path, symbol, key string) ([]byte, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("apikey", key)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path+"?"+q.Encode(), nil)
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

	var buf []byte
	buf, err = readAll(resp)
	if err != nil {
		return nil, newError(p.Name(), FailureUnreachable, err)
	}
	return buf, nil
}
