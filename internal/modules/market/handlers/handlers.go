// Package handlers provides HTTP handlers for market data lookups:
// resolved quotes, highlights, historical series, search and macro
// indicators.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/psouza/carteira/internal/clients/bcb"
	"github.com/psouza/carteira/internal/clients/brapi"
	"github.com/psouza/carteira/internal/marketdata"
)

const macroCacheKey = "macro_indicators"

// Handler handles market data HTTP requests
type Handler struct {
	resolver *marketdata.Resolver
	search   *brapi.Client
	macro    *bcb.Client
	cache    *marketdata.Cache
	listTTL  time.Duration
	macroTTL time.Duration
	log      zerolog.Logger
}

// NewHandler creates a new market data handler
func NewHandler(
	resolver *marketdata.Resolver,
	search *brapi.Client,
	macro *bcb.Client,
	cache *marketdata.Cache,
	listTTL, macroTTL time.Duration,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		resolver: resolver,
		search:   search,
		macro:    macro,
		cache:    cache,
		listTTL:  listTTL,
		macroTTL: macroTTL,
		log:      log.With().Str("handler", "market").Logger(),
	}
}

// HandleGetQuotes handles GET /api/market/quotes?tickers=PETR4,VALE3
// Optional flags: fundamental=true, dividends=true
func (h *Handler) HandleGetQuotes(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("tickers")
	if raw == "" {
		http.Error(w, "tickers is required", http.StatusBadRequest)
		return
	}
	tickers := strings.Split(raw, ",")

	opts := marketdata.Options{
		Fundamental: r.URL.Query().Get("fundamental") == "true",
		Dividends:   r.URL.Query().Get("dividends") == "true",
	}

	result, err := h.resolver.Resolve(r.Context(), tickers, opts)
	if err != nil {
		if errors.Is(err, marketdata.ErrUnavailable) {
			http.Error(w, "Market data providers unavailable", http.StatusServiceUnavailable)
			return
		}
		h.log.Error().Err(err).Msg("Failed to resolve quotes")
		http.Error(w, "Failed to resolve quotes", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": result,
	})
}

// HandleGetQuote handles GET /api/market/quotes/{ticker}
func (h *Handler) HandleGetQuote(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")

	opts := marketdata.Options{
		Fundamental: r.URL.Query().Get("fundamental") == "true",
		Dividends:   r.URL.Query().Get("dividends") == "true",
	}

	quote, err := h.resolver.ResolveOne(r.Context(), ticker, opts)
	if err != nil {
		switch {
		case errors.Is(err, marketdata.ErrNotFound):
			http.Error(w, "Ticker not found", http.StatusNotFound)
		case errors.Is(err, marketdata.ErrUnavailable):
			http.Error(w, "Market data providers unavailable", http.StatusServiceUnavailable)
		default:
			h.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to resolve quote")
			http.Error(w, "Failed to resolve quote", http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"data": quote})
}

// HandleGetHighlights handles GET /api/market/highlights?limit=10
func (h *Handler) HandleGetHighlights(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 50 {
			limit = parsed
		}
	}

	highlights, err := h.resolver.Highlights(r.Context(), limit, h.listTTL)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to build highlights")
		http.Error(w, "Failed to build highlights", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"highlights": highlights,
			"count":      len(highlights),
		},
	})
}

// HandleGetHistorical handles GET /api/market/historical/{ticker}
// Optional query parameters: range (default 3mo), interval (default 1d)
func (h *Handler) HandleGetHistorical(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")

	rng := r.URL.Query().Get("range")
	if rng == "" {
		rng = "3mo"
	}
	interval := r.URL.Query().Get("interval")
	if interval == "" {
		interval = "1d"
	}

	candles, err := h.resolver.ResolveHistorical(r.Context(), ticker, rng, interval)
	if err != nil {
		h.log.Warn().Err(err).Str("ticker", ticker).Msg("Historical series unavailable")
		http.Error(w, "Historical series unavailable", http.StatusBadGateway)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"ticker":   marketdata.NormalizeTicker(ticker),
			"range":    rng,
			"interval": interval,
			"candles":  candles,
		},
	})
}

// HandleGetDividends handles GET /api/market/dividends/{ticker}
func (h *Handler) HandleGetDividends(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")

	years := 5
	if raw := r.URL.Query().Get("years"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 10 {
			years = parsed
		}
	}

	dividends, err := h.resolver.ResolveDividends(r.Context(), ticker, years)
	if err != nil {
		h.log.Warn().Err(err).Str("ticker", ticker).Msg("Dividend history unavailable")
		http.Error(w, "Dividend history unavailable", http.StatusBadGateway)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"ticker":    marketdata.NormalizeTicker(ticker),
			"dividends": dividends,
		},
	})
}

// HandleSearch handles GET /api/market/search?q=petro
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		http.Error(w, "q is required", http.StatusBadRequest)
		return
	}

	results, err := h.search.Search(r.Context(), query)
	if err != nil {
		h.log.Warn().Err(err).Str("query", query).Msg("Search unavailable")
		http.Error(w, "Search unavailable", http.StatusBadGateway)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"results": results,
			"count":   len(results),
		},
	})
}

// HandleGetMacro handles GET /api/market/macro
// Central bank indicators, served from cache between refreshes
func (h *Handler) HandleGetMacro(w http.ResponseWriter, r *http.Request) {
	if cached, ok := h.cache.Get(macroCacheKey); ok {
		if indicators, ok := cached.(bcb.MacroIndicators); ok {
			h.writeJSON(w, http.StatusOK, map[string]interface{}{"data": indicators})
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 20*time.Second)
	defer cancel()

	indicators := h.macro.MacroIndicators(ctx)
	h.cache.Put(macroCacheKey, indicators, h.macroTTL)

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"data": indicators})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
