// Package handlers provides HTTP handlers for analysis operations.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/psouza/carteira/internal/modules/analysis"
)

// Handler handles analysis HTTP requests
type Handler struct {
	service *analysis.Service
	log     zerolog.Logger
}

// NewHandler creates a new analysis handler
func NewHandler(service *analysis.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "analysis").Logger(),
	}
}

// HandleCeilingPrice handles GET /api/analysis/ceiling-price/{ticker}
// Optional query parameter: yield (fraction, default 0.06)
func (h *Handler) HandleCeilingPrice(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")
	if ticker == "" {
		http.Error(w, "ticker is required", http.StatusBadRequest)
		return
	}

	desiredYield := 0.0
	if raw := r.URL.Query().Get("yield"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed <= 0 || parsed >= 1 {
			http.Error(w, "yield must be a fraction between 0 and 1", http.StatusBadRequest)
			return
		}
		desiredYield = parsed
	}

	result, err := h.service.CeilingPrice(r.Context(), ticker, desiredYield)
	if err != nil {
		h.log.Warn().Err(err).Str("ticker", ticker).Msg("Ceiling price unavailable")
		http.Error(w, "Ceiling price unavailable", http.StatusBadGateway)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"data": result})
}

// HandleRiskProfile handles GET /api/analysis/risk/{ticker}
// Optional query parameter: range (1mo, 3mo, 6mo, 1y, 2y, 5y)
func (h *Handler) HandleRiskProfile(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")
	if ticker == "" {
		http.Error(w, "ticker is required", http.StatusBadRequest)
		return
	}

	profile, err := h.service.RiskProfile(r.Context(), ticker, r.URL.Query().Get("range"))
	if err != nil {
		h.log.Warn().Err(err).Str("ticker", ticker).Msg("Risk profile unavailable")
		http.Error(w, "Risk profile unavailable", http.StatusBadGateway)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"data": profile})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
