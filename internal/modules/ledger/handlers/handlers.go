// Package handlers provides HTTP handlers for ledger operations.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/psouza/carteira/internal/domain"
	"github.com/psouza/carteira/internal/modules/ledger"
)

// defaultOwnerID is used when a request carries no owner. The API is
// single-tenant by default but keeps the owner dimension in the schema.
const defaultOwnerID = 1

// Handler handles ledger HTTP requests
type Handler struct {
	service *ledger.Service
	log     zerolog.Logger
}

// NewHandler creates a new ledger handler
func NewHandler(service *ledger.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "ledger").Logger(),
	}
}

type transactionRequest struct {
	Ticker    string  `json:"ticker"`
	Name      string  `json:"name"`
	OwnerID   int64   `json:"owner_id"`
	Type      string  `json:"type"`
	Date      string  `json:"date"`
	Quantity  float64 `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	Fees      float64 `json:"fees"`
}

// HandleCreateTransaction handles POST /api/transactions
// Appends a ledger entry and returns the recomputed position
func (h *Handler) HandleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Ticker == "" {
		http.Error(w, "ticker is required", http.StatusBadRequest)
		return
	}
	if req.OwnerID == 0 {
		req.OwnerID = defaultOwnerID
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	tx := domain.Transaction{
		OwnerID:   req.OwnerID,
		Type:      domain.TransactionType(req.Type),
		Date:      date,
		Quantity:  req.Quantity,
		UnitPrice: req.UnitPrice,
		Fees:      req.Fees,
	}

	created, position, err := h.service.AddTransaction(req.Ticker, req.Name, tx)
	if err != nil {
		if errors.Is(err, ledger.ErrOversell) {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		h.log.Error().Err(err).Str("ticker", req.Ticker).Msg("Failed to create transaction")
		http.Error(w, "Failed to create transaction", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"data": map[string]interface{}{
			"transaction": created,
			"position":    position,
		},
	})
}

// HandleListTransactions handles GET /api/transactions
func (h *Handler) HandleListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.service.ListTransactions(ownerFromQuery(r))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list transactions")
		http.Error(w, "Failed to list transactions", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"transactions": txs,
			"count":        len(txs),
		},
	})
}

// HandleDeleteTransaction handles DELETE /api/transactions/{id}
// Removes the entry and recomputes the affected position
func (h *Handler) HandleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid transaction ID", http.StatusBadRequest)
		return
	}

	if err := h.service.DeleteTransaction(id, ownerFromQuery(r)); err != nil {
		h.log.Error().Err(err).Int64("id", id).Msg("Failed to delete transaction")
		http.Error(w, "Failed to delete transaction", http.StatusNotFound)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{"deleted": id},
	})
}

// HandleListPositions handles GET /api/positions
func (h *Handler) HandleListPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := h.service.ListPositions(ownerFromQuery(r))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list positions")
		http.Error(w, "Failed to list positions", http.StatusInternalServerError)
		return
	}

	totalValue := 0.0
	for _, pos := range positions {
		totalValue += pos.MarketValue()
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"positions":   positions,
			"count":       len(positions),
			"total_value": totalValue,
		},
	})
}

// HandleGetOverview handles GET /api/portfolio/overview
func (h *Handler) HandleGetOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.service.GetOverview(ownerFromQuery(r))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to build overview")
		http.Error(w, "Failed to build overview", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": overview,
	})
}

func ownerFromQuery(r *http.Request) int64 {
	if raw := r.URL.Query().Get("owner_id"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil && id > 0 {
			return id
		}
	}
	return defaultOwnerID
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
