package brapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psouza/carteira/internal/marketdata"
)

const quotePayloadJSON = `{
	"results": [{
		"symbol": "PETR4",
		"shortName": "PETROBRAS PN",
		"currency": "BRL",
		"regularMarketPrice": 38.5,
		"regularMarketPreviousClose": 38.0,
		"regularMarketChange": 0.5,
		"regularMarketChangePercent": 1.32,
		"regularMarketVolume": 45000000
	}]
}`

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	return NewClient(server.URL, "", zerolog.Nop()), server
}

func TestQuotes_ParsesResponse(t *testing.T) {
	var gotPath string
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(quotePayloadJSON))
	})
	defer server.Close()

	quotes, err := client.Quotes(context.Background(), []string{"PETR4", "VALE3"}, marketdata.Options{})

	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.Equal(t, "/quote/PETR4,VALE3", gotPath)
	assert.Equal(t, "PETR4", quotes[0].Ticker)
	assert.Equal(t, 38.5, quotes[0].Price)
	assert.Equal(t, "BRL", quotes[0].Currency)
	assert.Equal(t, marketdata.SourceBrapi, quotes[0].Source)
}

func TestQuotes_NotFound(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	defer server.Close()

	_, err := client.Quotes(context.Background(), []string{"ZZZZ9"}, marketdata.Options{})
	assert.ErrorIs(t, err, marketdata.ErrNotFound)
}

func TestQuotes_RateLimitIsTransient(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	defer server.Close()

	_, err := client.Quotes(context.Background(), []string{"PETR4"}, marketdata.Options{})
	require.Error(t, err)
	assert.True(t, marketdata.IsTransient(err))
}

func TestQuotes_ServerErrorIsTransient(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	defer server.Close()

	_, err := client.Quotes(context.Background(), []string{"PETR4"}, marketdata.Options{})
	require.Error(t, err)
	assert.True(t, marketdata.IsTransient(err))
}

func TestQuotes_OptionsBecomeQueryParameters(t *testing.T) {
	var gotQuery string
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(quotePayloadJSON))
	})
	defer server.Close()

	_, err := client.Quotes(context.Background(), []string{"PETR4"}, marketdata.Options{Fundamental: true, Dividends: true})

	require.NoError(t, err)
	assert.Contains(t, gotQuery, "fundamental=true")
	assert.Contains(t, gotQuery, "dividends=true")
}

func TestQuote_RetriesTransientFailures(t *testing.T) {
	calls := 0
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(quotePayloadJSON))
	})
	defer server.Close()

	quote, err := client.Quote(context.Background(), "PETR4", marketdata.Options{})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 38.5, quote.Price)
}

func TestQuote_NotFoundFailsWithoutRetry(t *testing.T) {
	calls := 0
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	})
	defer server.Close()

	_, err := client.Quote(context.Background(), "ZZZZ9", marketdata.Options{})

	assert.ErrorIs(t, err, marketdata.ErrNotFound)
	assert.Equal(t, 1, calls)
}

func TestHistorical_RateLimitYieldsEmptySeries(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	defer server.Close()

	candles, err := client.Historical(context.Background(), "PETR4", "1mo", "1d")

	// A throttled series request degrades to empty rather than failing.
	require.NoError(t, err)
	assert.Empty(t, candles)
}

func TestHistorical_ParsesCandles(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"results": [{
				"symbol": "PETR4",
				"historicalDataPrice": [
					{"date": 1709510400, "open": 38.0, "high": 39.0, "low": 37.5, "close": 38.5, "volume": 1000}
				]
			}]
		}`))
	})
	defer server.Close()

	candles, err := client.Historical(context.Background(), "PETR4", "1mo", "1d")

	require.NoError(t, err)
	require.Len(t, candles, 1)
	assert.Equal(t, 38.5, candles[0].Close)
	assert.Equal(t, "2024-03-04", candles[0].Date.Format("2006-01-02"))
}

func TestDividends_PrefersPaymentDate(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"results": [{
				"symbol": "BBAS3",
				"dividendsData": {
					"cashDividends": [
						{"paymentDate": "2024-02-28", "rate": 1.15, "typeLabel": "Dividendo"},
						{"approvedOn": "2024-05-30", "rate": 0.95, "relatedTo": "JCP"}
					]
				}
			}]
		}`))
	})
	defer server.Close()

	divs, err := client.Dividends(context.Background(), "BBAS3", 5)

	require.NoError(t, err)
	require.Len(t, divs, 2)
	assert.Equal(t, "2024-02-28", divs[0].Date)
	assert.Equal(t, "Dividendo", divs[0].Type)
	assert.Equal(t, "2024-05-30", divs[1].Date)
	assert.Equal(t, "JCP", divs[1].Type)
}

func TestSearch_ParsesStocks(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "petro", r.URL.Query().Get("search"))
		w.Write([]byte(`{"stocks": [{"stock": "PETR4", "name": "PETROBRAS PN", "close": 38.5}]}`))
	})
	defer server.Close()

	results, err := client.Search(context.Background(), "petro")

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "PETR4", results[0].Ticker)
}
