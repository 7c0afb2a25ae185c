package yahoo

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

func TestYahooSymbol(t *testing.T) {
	tests := []struct {
		in, out string
	}{
		{"PETR4", "PETR4.SA"},
		{"petr4", "PETR4.SA"},
		{" vale3 ", "VALE3.SA"},
		{"PETR4.SA", "PETR4.SA"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.out, YahooSymbol(tt.in))
	}
}

func TestQuotes_MapsSymbolsBackToRequestedTickers(t *testing.T) {
	var gotSymbols string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSymbols = r.URL.Query().Get("symbols")
		w.Write([]byte(`{
			"quoteResponse": {
				"result": [
					{"symbol": "PETR4.SA", "shortName": "PETROBRAS PN", "currency": "BRL", "regularMarketPrice": 38.5},
					{"symbol": "VALE3.SA", "shortName": "VALE ON", "currency": "BRL", "regularMarketPrice": 61.2}
				],
				"error": null
			}
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, zerolog.Nop())
	quotes, err := client.Quotes(context.Background(), []string{"petr4", "VALE3"})

	require.NoError(t, err)
	assert.Equal(t, "PETR4.SA,VALE3.SA", gotSymbols)
	require.Len(t, quotes, 2)
	// Results come back under the requested B3 tickers, not Yahoo symbols.
	assert.Equal(t, "PETR4", quotes[0].Ticker)
	assert.Equal(t, "VALE3", quotes[1].Ticker)
	assert.Equal(t, marketdata.SourceYahoo, quotes[0].Source)
}

func TestQuotes_NonOKStatusIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client := NewClient(server.URL, zerolog.Nop())
	_, err := client.Quotes(context.Background(), []string{"PETR4"})

	require.Error(t, err)
	assert.True(t, marketdata.IsTransient(err))
}

func TestQuotes_EmptyInputMakesNoRequest(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	client := NewClient(server.URL, zerolog.Nop())
	quotes, err := client.Quotes(context.Background(), nil)

	require.NoError(t, err)
	assert.Empty(t, quotes)
	assert.False(t, called)
}
