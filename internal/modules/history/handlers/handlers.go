// Package handlers provides HTTP handlers for portfolio history.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/psouza/carteira/internal/modules/history"
)

const defaultOwnerID = 1

// Handler handles portfolio history HTTP requests
type Handler struct {
	service *history.Service
	log     zerolog.Logger
}

// NewHandler creates a new history handler
func NewHandler(service *history.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "history").Logger(),
	}
}

// HandleGetHistory handles GET /api/portfolio/history
// Accepts either explicit start/end dates (YYYY-MM-DD) or a named
// period (1m, 3m, 6m, 1y, 2y, 5y). Defaults to the last year.
func (h *Handler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	end := time.Now()
	start := end.AddDate(-1, 0, 0)

	if raw := r.URL.Query().Get("period"); raw != "" {
		from, ok := periodStart(end, raw)
		if !ok {
			http.Error(w, "Invalid period", http.StatusBadRequest)
			return
		}
		start = from
	}
	if raw := r.URL.Query().Get("start"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			http.Error(w, "start must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		start = parsed
	}
	if raw := r.URL.Query().Get("end"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			http.Error(w, "end must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		end = parsed
	}

	ownerID := int64(defaultOwnerID)
	if raw := r.URL.Query().Get("owner_id"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil && id > 0 {
			ownerID = id
		}
	}

	points, err := h.service.PortfolioHistory(r.Context(), ownerID, start, end)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to build portfolio history")
		http.Error(w, "Failed to build portfolio history", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"start":  start.Format("2006-01-02"),
			"end":    end.Format("2006-01-02"),
			"points": points,
		},
	})
}

func periodStart(end time.Time, period string) (time.Time, bool) {
	switch period {
	case "1m":
		return end.AddDate(0, -1, 0), true
	case "3m":
		return end.AddDate(0, -3, 0), true
	case "6m":
		return end.AddDate(0, -6, 0), true
	case "1y":
		return end.AddDate(-1, 0, 0), true
	case "2y":
		return end.AddDate(-2, 0, 0), true
	case "5y":
		return end.AddDate(-5, 0, 0), true
	default:
		return time.Time{}, false
	}
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
