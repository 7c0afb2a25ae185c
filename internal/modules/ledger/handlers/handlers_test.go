package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psouza/carteira/internal/database"
	"github.com/psouza/carteira/internal/events"
	"github.com/psouza/carteira/internal/locking"
	"github.com/psouza/carteira/internal/marketdata"
	"github.com/psouza/carteira/internal/modules/ledger"
)

// silentQuotes keeps the async price refresh inert during tests
type silentQuotes struct{}

func (silentQuotes) Resolve(ctx context.Context, tickers []string, opts marketdata.Options) (marketdata.Result, error) {
	return marketdata.Result{Quotes: map[string]marketdata.Quote{}}, nil
}

func setupTestRouter(t *testing.T) *chi.Mux {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())

	log := zerolog.Nop()
	service := ledger.NewService(
		ledger.NewAssetRepository(db.Conn(), log),
		ledger.NewTransactionRepository(db.Conn(), log),
		ledger.NewPositionRepository(db.Conn(), log),
		silentQuotes{},
		locking.NewManager(),
		events.NewManager(log),
		log,
	)

	h := NewHandler(service, log)
	r := chi.NewRouter()
	r.Post("/api/transactions", h.HandleCreateTransaction)
	r.Get("/api/transactions", h.HandleListTransactions)
	r.Delete("/api/transactions/{id}", h.HandleDeleteTransaction)
	r.Get("/api/positions", h.HandleListPositions)
	return r
}

func postTransaction(t *testing.T, router *chi.Mux, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/transactions", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandleCreateTransaction_ReturnsTheRecomputedPosition(t *testing.T) {
	router := setupTestRouter(t)

	rec := postTransaction(t, router,
		`{"ticker":"PETR4","name":"PETROBRAS PN","type":"BUY","date":"2024-01-10","quantity":100,"unit_price":10}`)

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Data struct {
			Position struct {
				Quantity    float64 `json:"quantity"`
				AverageCost float64 `json:"average_cost"`
			} `json:"position"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.InDelta(t, 100, resp.Data.Position.Quantity, 1e-9)
	assert.InDelta(t, 10, resp.Data.Position.AverageCost, 1e-9)
}

func TestHandleCreateTransaction_OversellIsUnprocessable(t *testing.T) {
	router := setupTestRouter(t)

	rec := postTransaction(t, router,
		`{"ticker":"PETR4","type":"BUY","date":"2024-01-10","quantity":10,"unit_price":10}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = postTransaction(t, router,
		`{"ticker":"PETR4","type":"SELL","date":"2024-02-10","quantity":15,"unit_price":20}`)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "exceeds held quantity")
}

func TestHandleCreateTransaction_RejectsBadInput(t *testing.T) {
	router := setupTestRouter(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"ticker":`},
		{"missing ticker", `{"type":"BUY","date":"2024-01-10","quantity":1,"unit_price":1}`},
		{"bad date", `{"ticker":"PETR4","type":"BUY","date":"10/01/2024","quantity":1,"unit_price":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postTransaction(t, router, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestHandleListTransactions_NewestFirst(t *testing.T) {
	router := setupTestRouter(t)

	for _, body := range []string{
		`{"ticker":"PETR4","type":"BUY","date":"2024-01-10","quantity":100,"unit_price":10}`,
		`{"ticker":"PETR4","type":"SELL","date":"2024-02-10","quantity":40,"unit_price":15}`,
	} {
		require.Equal(t, http.StatusCreated, postTransaction(t, router, body).Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/transactions", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			Count        int `json:"count"`
			Transactions []struct {
				Type string `json:"type"`
			} `json:"transactions"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.Data.Count)
	assert.Equal(t, "SELL", resp.Data.Transactions[0].Type)
}

func TestHandleDeleteTransaction_RecomputesThePosition(t *testing.T) {
	router := setupTestRouter(t)

	require.Equal(t, http.StatusCreated, postTransaction(t, router,
		`{"ticker":"PETR4","type":"BUY","date":"2024-01-10","quantity":100,"unit_price":10}`).Code)
	rec := postTransaction(t, router,
		`{"ticker":"PETR4","type":"SELL","date":"2024-02-10","quantity":40,"unit_price":15}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		Data struct {
			Transaction struct {
				ID int64 `json:"id"`
			} `json:"transaction"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	req := httptest.NewRequest(http.MethodDelete,
		"/api/transactions/"+strconv.FormatInt(created.Data.Transaction.ID, 10), nil)
	del := httptest.NewRecorder()
	router.ServeHTTP(del, req)
	require.Equal(t, http.StatusOK, del.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/positions", nil)
	list := httptest.NewRecorder()
	router.ServeHTTP(list, req)
	require.Equal(t, http.StatusOK, list.Code)

	var positions struct {
		Data struct {
			Positions []struct {
				Quantity float64 `json:"quantity"`
			} `json:"positions"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(list.Body.Bytes(), &positions))
	require.Len(t, positions.Data.Positions, 1)
	assert.InDelta(t, 100, positions.Data.Positions[0].Quantity, 1e-9)
}

func TestHandleDeleteTransaction_UnknownIDIsNotFound(t *testing.T) {
	router := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodDelete, "/api/transactions/9999", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
