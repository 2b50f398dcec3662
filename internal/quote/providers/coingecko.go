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

// CoinGecko is the primary crypto provider. Its basic endpoints work without
// an API key; a demo key from the credential store raises the free-tier
// ceiling when present.
type CoinGecko struct {
	creds      CredentialSource
	currency   string
	baseURL    string
	httpClient *http.Client
}

func NewCoinGecko(creds CredentialSource, currency string) *CoinGecko {
	return &CoinGecko{
		creds:      creds,
		currency:   strings.ToLower(currency),
		baseURL:    "https://api.coingecko.com/api/v3",
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *CoinGecko) Name() string { return "coingecko" }

func (p *CoinGecko) SupportsAssetClass(class models.AssetClass) bool {
	return class == models.AssetClassCrypto
}

// HasValidCredentials is always true: CoinGecko serves simple price lookups
// keyless.
func (p *CoinGecko) HasValidCredentials() bool { return true }

func (p *CoinGecko) FetchQuote(ctx context.Context, symbol string, class models.AssetClass) (*models.PriceQuote, error) {
	id := coinGeckoID(symbol)
	if id == "" {
		return nil, newError(p.Name(), FailureInvalidSymbol, fmt.Errorf("no coin id mapping for %q", symbol))
	}

	q := url.Values{}
	q.Set("ids", id)
	q.Set("vs_currencies", p.currency)
	q.Set("include_24hr_change", "true")
	if key, ok := p.creds.Get(p.Name()); ok {
		q.Set("x_cg_demo_api_key", key)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/simple/price?"+q.Encode(), nil)
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

	var payload map[string]map[string]float64
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, newError(p.Name(), FailureUnexpectedSchema, err)
	}
	coin, ok := payload[id]
	if !ok {
		return nil, newError(p.Name(), FailureInvalidSymbol, fmt.Errorf("coin %q absent from response", id))
	}
	price, ok := coin[p.currency]
	if !ok || price < 0 {
		return nil, newError(p.Name(), FailureUnexpectedSchema, fmt.Errorf("no usable %s price for %q", p.currency, id))
	}

	quote := &models.PriceQuote{
		Symbol:    strings.ToUpper(symbol),
		Price:     decimal.NewFromFloat(price),
		Currency:  strings.ToUpper(p.currency),
		Source:    p.Name(),
		FetchedAt: time.Now(),
	}
	if change, ok := coin[p.currency+"_24h_change"]; ok {
		quote.ChangePercent24h = floatPtr(change)
	}
	return quote, nil
}

// coinGeckoID maps a short crypto ticker to CoinGecko's canonical coin id.
func coinGeckoID(symbol string) string {
	switch strings.ToUpper(symbol) {
	case "BTC":
		return "bitcoin"
	case "ETH":
		return "ethereum"
	case "USDT":
		return "tether"
	case "USDC":
		return "usd-coin"
	case "DAI":
		return "dai"
	case "SOL":
		return "solana"
	case "ADA":
		return "cardano"
	case "AVAX":
		return "avalanche-2"
	case "DOT":
		return "polkadot"
	case "MATIC":
		return "matic-network"
	case "ATOM":
		return "cosmos"
	case "NEAR":
		return "near"
	case "ALGO":
		return "algorand"
	case "BNB":
		return "binancecoin"
	case "UNI":
		return "uniswap"
	case "LINK":
		return "chainlink"
	case "AAVE":
		return "aave"
	case "XRP":
		return "ripple"
	case "LTC":
		return "litecoin"
	case "DOGE":
		return "dogecoin"
	case "SHIB":
		return "shiba-inu"
	case "ARB":
		return "arbitrum"
	case "OP":
		return "optimism"
	case "PAXG", "XAU":
		return "pax-gold"
	default:
		return ""
	}
}
