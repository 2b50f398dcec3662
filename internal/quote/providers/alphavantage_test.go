package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valentingnt/investr-sub000/internal/models"
)

func newTestAlphaVantage(baseURL string) *AlphaVantage {
	p := NewAlphaVantage(staticCreds{"alphavantage": "demo"}, "EUR")
	p.baseURL = baseURL
	return p
}

func TestAlphaVantage_FetchQuote(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GLOBAL_QUOTE", r.URL.Query().Get("function"))
		w.Write([]byte(`{"Global Quote":{
			"01. symbol":"IWDA.AS",
			"03. high":"92.10",
			"04. low":"91.02",
			"05. price":"91.88",
			"06. volume":"120034",
			"08. previous close":"91.50",
			"10. change percent":"0.4153%"
		}}`))
	}))
	defer ts.Close()

	quote, err := newTestAlphaVantage(ts.URL).FetchQuote(context.Background(), "IWDA.AS", models.AssetClassEquity)
	require.NoError(t, err)

	assert.True(t, quote.Price.Equal(decimal.RequireFromString("91.88")))
	require.NotNil(t, quote.ChangePercent24h)
	assert.True(t, quote.ChangePercent24h.Equal(decimal.RequireFromString("0.4153")), "percent suffix must be stripped")
	require.NotNil(t, quote.Volume)
	assert.True(t, quote.Volume.Equal(decimal.RequireFromString("120034")))
}

func TestAlphaVantage_PriceOnlyPayload(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Global Quote":{"05. price":"123.45"}}`))
	}))
	defer ts.Close()

	quote, err := newTestAlphaVantage(ts.URL).FetchQuote(context.Background(), "AAPL", models.AssetClassEquity)
	require.NoError(t, err)

	assert.True(t, quote.Price.Equal(decimal.RequireFromString("123.45")))
	assert.Nil(t, quote.ChangePercent24h)
	assert.Nil(t, quote.DayHigh)
	assert.Nil(t, quote.DayLow)
	assert.Nil(t, quote.PreviousClose)
	assert.Nil(t, quote.Volume)
}

func TestAlphaVantage_ThrottleNote(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Note":"Thank you for using Alpha Vantage! Our standard API rate limit is 25 requests per day."}`))
	}))
	defer ts.Close()

	_, err := newTestAlphaVantage(ts.URL).FetchQuote(context.Background(), "AAPL", models.AssetClassEquity)

	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, FailureRateLimited, perr.Kind)
}

func TestAlphaVantage_UnparseablePriceIsSchemaError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Global Quote":{"05. price":"n/a"}}`))
	}))
	defer ts.Close()

	_, err := newTestAlphaVantage(ts.URL).FetchQuote(context.Background(), "AAPL", models.AssetClassEquity)

	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, FailureUnexpectedSchema, perr.Kind)
}

func TestAlphaVantage_EmptyQuoteIsInvalidSymbol(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Global Quote":{}}`))
	}))
	defer ts.Close()

	_, err := newTestAlphaVantage(ts.URL).FetchQuote(context.Background(), "NOPE", models.AssetClassEquity)

	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, FailureInvalidSymbol, perr.Kind)
}
