package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psouza/carteira/internal/marketdata"
)

type stubPrimary struct {
	quotes []marketdata.Quote
	err    error
}

func (p *stubPrimary) Quotes(ctx context.Context, tickers []string) ([]marketdata.Quote, error) {
	return p.quotes, p.err
}

type stubSecondary struct {
	err error
}

func (p *stubSecondary) Quotes(ctx context.Context, tickers []string, opts marketdata.Options) ([]marketdata.Quote, error) {
	return nil, p.err
}

func setupTestRouter(t *testing.T, primary *stubPrimary) *chi.Mux {
	t.Helper()

	log := zerolog.Nop()
	resolver := marketdata.NewResolver(marketdata.ResolverConfig{
		Cache:     marketdata.NewCache(log),
		Primary:   primary,
		Secondary: marketdata.NewBatchFetcher(&stubSecondary{err: fmt.Errorf("down")}, 3, 0, log),
		QuoteTTL:  time.Minute,
		Log:       log,
	})

	h := NewHandler(resolver, nil, nil, marketdata.NewCache(log), time.Hour, time.Hour, log)
	r := chi.NewRouter()
	r.Get("/api/market/quotes", h.HandleGetQuotes)
	r.Get("/api/market/highlights", h.HandleGetHighlights)
	return r
}

func get(t *testing.T, router *chi.Mux, target string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandleGetQuotes_ResolvesTheRequestedBatch(t *testing.T) {
	router := setupTestRouter(t, &stubPrimary{quotes: []marketdata.Quote{
		{Ticker: "PETR4", Price: 38.5, Source: marketdata.SourceYahoo},
		{Ticker: "VALE3", Price: 61.2, Source: marketdata.SourceYahoo},
	}})

	rec := get(t, router, "/api/market/quotes?tickers=petr4,vale3")

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			Quotes map[string]struct {
				Price float64 `json:"price"`
			} `json:"quotes"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data.Quotes, 2)
	assert.InDelta(t, 38.5, resp.Data.Quotes["PETR4"].Price, 1e-9)
}

func TestHandleGetQuotes_MissingTickersParam(t *testing.T) {
	router := setupTestRouter(t, &stubPrimary{})

	rec := get(t, router, "/api/market/quotes")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGetQuotes_UnavailableWhenEveryTierFails(t *testing.T) {
	router := setupTestRouter(t, &stubPrimary{err: fmt.Errorf("down")})

	// Unknown ticker, failing providers, nothing cached or static.
	rec := get(t, router, "/api/market/quotes?tickers=ZZZZ9")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleGetHighlights_LimitIsApplied(t *testing.T) {
	router := setupTestRouter(t, &stubPrimary{quotes: []marketdata.Quote{
		{Ticker: "PETR4", Price: 38.5, ChangePercent: 1.2, Source: marketdata.SourceYahoo},
		{Ticker: "VALE3", Price: 61.2, ChangePercent: 3.4, Source: marketdata.SourceYahoo},
		{Ticker: "ITUB4", Price: 33.1, ChangePercent: 0.8, Source: marketdata.SourceYahoo},
	}})

	rec := get(t, router, "/api/market/highlights?limit=2")

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			Highlights []struct {
				Ticker string `json:"ticker"`
			} `json:"highlights"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data.Highlights, 2)
	assert.Equal(t, "VALE3", resp.Data.Highlights[0].Ticker)
}
