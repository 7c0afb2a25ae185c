package history

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psouza/carteira/internal/domain"
	"github.com/psouza/carteira/internal/marketdata"
)

type fakeTxSource struct {
	txs []domain.Transaction
}

func (f *fakeTxSource) ListByOwner(ownerID int64) ([]domain.Transaction, error) {
	return f.txs, nil
}

type fakeTickerSource struct {
	tickers map[int64]string
}

func (f *fakeTickerSource) TickersByIDs(ids []int64) (map[int64]string, error) {
	return f.tickers, nil
}

type fakeSeriesSource struct {
	series map[string][]marketdata.Candle
	err    error
}

func (f *fakeSeriesSource) ResolveHistorical(ctx context.Context, ticker, rng, interval string) ([]marketdata.Candle, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.series[ticker], nil
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func candles(closes map[string]float64) []marketdata.Candle {
	out := make([]marketdata.Candle, 0, len(closes))
	for date, close := range closes {
		out = append(out, marketdata.Candle{Date: day(date), Close: close})
	}
	return out
}

func buy(assetID int64, date string, qty float64) domain.Transaction {
	return domain.Transaction{AssetID: assetID, OwnerID: 1, Type: domain.TransactionBuy, Date: day(date), Quantity: qty}
}

func sell(assetID int64, date string, qty float64) domain.Transaction {
	return domain.Transaction{AssetID: assetID, OwnerID: 1, Type: domain.TransactionSell, Date: day(date), Quantity: qty}
}

func newTestService(txs []domain.Transaction, tickers map[int64]string, series map[string][]marketdata.Candle) *Service {
	return NewService(
		&fakeTxSource{txs: txs},
		&fakeTickerSource{tickers: tickers},
		&fakeSeriesSource{series: series},
		zerolog.Nop(),
	)
}

func TestPortfolioHistory_ValuesEachDay(t *testing.T) {
	service := newTestService(
		[]domain.Transaction{buy(1, "2024-03-04", 10)},
		map[int64]string{1: "PETR4"},
		map[string][]marketdata.Candle{"PETR4": candles(map[string]float64{
			"2024-03-04": 10,
			"2024-03-05": 11,
			"2024-03-06": 12,
		})},
	)

	points, err := service.PortfolioHistory(context.Background(), 1, day("2024-03-04"), day("2024-03-06"))

	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.Equal(t, Point{Date: "2024-03-04", Value: 100}, points[0])
	assert.Equal(t, Point{Date: "2024-03-05", Value: 110}, points[1])
	assert.Equal(t, Point{Date: "2024-03-06", Value: 120}, points[2])
}

func TestPortfolioHistory_DaysBeforeFirstBuyAreOmitted(t *testing.T) {
	service := newTestService(
		[]domain.Transaction{buy(1, "2024-03-06", 10)},
		map[int64]string{1: "PETR4"},
		map[string][]marketdata.Candle{"PETR4": candles(map[string]float64{
			"2024-03-04": 10,
			"2024-03-05": 10,
			"2024-03-06": 10,
		})},
	)

	points, err := service.PortfolioHistory(context.Background(), 1, day("2024-03-04"), day("2024-03-06"))

	require.NoError(t, err)
	// Nothing was held on the 4th and 5th; those days emit no point.
	require.Len(t, points, 1)
	assert.Equal(t, "2024-03-06", points[0].Date)
}

func TestPortfolioHistory_OpeningHoldingsFromEarlierTransactions(t *testing.T) {
	service := newTestService(
		[]domain.Transaction{
			buy(1, "2024-01-15", 20),
			sell(1, "2024-02-01", 5),
		},
		map[int64]string{1: "PETR4"},
		map[string][]marketdata.Candle{"PETR4": candles(map[string]float64{
			"2024-03-04": 10,
		})},
	)

	points, err := service.PortfolioHistory(context.Background(), 1, day("2024-03-04"), day("2024-03-04"))

	require.NoError(t, err)
	require.Len(t, points, 1)
	// 20 bought minus 5 sold before the window.
	assert.Equal(t, 150.0, points[0].Value)
}

func TestPortfolioHistory_WeekendUsesLastTradingClose(t *testing.T) {
	// 2024-03-08 is a Friday; the 9th and 10th have no candles.
	service := newTestService(
		[]domain.Transaction{buy(1, "2024-03-08", 10)},
		map[int64]string{1: "PETR4"},
		map[string][]marketdata.Candle{"PETR4": candles(map[string]float64{
			"2024-03-08": 10,
			"2024-03-11": 12,
		})},
	)

	points, err := service.PortfolioHistory(context.Background(), 1, day("2024-03-08"), day("2024-03-11"))

	require.NoError(t, err)
	require.Len(t, points, 4)
	assert.Equal(t, 100.0, points[0].Value) // Friday
	assert.Equal(t, 100.0, points[1].Value) // Saturday, Friday close
	assert.Equal(t, 100.0, points[2].Value) // Sunday, Friday close
	assert.Equal(t, 120.0, points[3].Value) // Monday
}

func TestPortfolioHistory_GapBeyondLookbackOmitsTheDay(t *testing.T) {
	service := newTestService(
		[]domain.Transaction{buy(1, "2024-03-01", 10)},
		map[int64]string{1: "PETR4"},
		map[string][]marketdata.Candle{"PETR4": candles(map[string]float64{
			"2024-03-01": 10,
		})},
	)

	points, err := service.PortfolioHistory(context.Background(), 1, day("2024-03-01"), day("2024-03-10"))

	require.NoError(t, err)
	// The close from the 1st covers through the 6th (5 days back); the
	// 7th onward has no price within the lookback window.
	require.Len(t, points, 6)
	assert.Equal(t, "2024-03-06", points[len(points)-1].Date)
}

func TestPortfolioHistory_FailedSeriesSkipsTicker(t *testing.T) {
	service := NewService(
		&fakeTxSource{txs: []domain.Transaction{buy(1, "2024-03-04", 10), buy(2, "2024-03-04", 5)}},
		&fakeTickerSource{tickers: map[int64]string{1: "PETR4", 2: "VALE3"}},
		&fakeSeriesSource{series: map[string][]marketdata.Candle{
			// VALE3 has no series at all.
			"PETR4": candles(map[string]float64{"2024-03-04": 10}),
		}},
		zerolog.Nop(),
	)

	points, err := service.PortfolioHistory(context.Background(), 1, day("2024-03-04"), day("2024-03-04"))

	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, 100.0, points[0].Value)
}

func TestPortfolioHistory_Deterministic(t *testing.T) {
	txs := []domain.Transaction{
		buy(1, "2024-03-04", 10),
		buy(2, "2024-03-05", 3),
		sell(1, "2024-03-06", 4),
	}
	tickers := map[int64]string{1: "PETR4", 2: "VALE3"}
	series := map[string][]marketdata.Candle{
		"PETR4": candles(map[string]float64{"2024-03-04": 10, "2024-03-05": 11, "2024-03-06": 12}),
		"VALE3": candles(map[string]float64{"2024-03-04": 60, "2024-03-05": 61, "2024-03-06": 62}),
	}

	first, err := newTestService(txs, tickers, series).
		PortfolioHistory(context.Background(), 1, day("2024-03-04"), day("2024-03-06"))
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := newTestService(txs, tickers, series).
			PortfolioHistory(context.Background(), 1, day("2024-03-04"), day("2024-03-06"))
		require.NoError(t, err)
		assert.Equal(t, first, again, fmt.Sprintf("run %d diverged", i))
	}
}

func TestPortfolioHistory_EmptyLog(t *testing.T) {
	service := newTestService(nil, map[int64]string{}, map[string][]marketdata.Candle{})

	points, err := service.PortfolioHistory(context.Background(), 1, day("2024-03-04"), day("2024-03-06"))

	require.NoError(t, err)
	assert.Empty(t, points)
}

func TestPortfolioHistory_InvertedRangeFails(t *testing.T) {
	service := newTestService(
		[]domain.Transaction{buy(1, "2024-03-04", 10)},
		map[int64]string{1: "PETR4"},
		nil,
	)

	_, err := service.PortfolioHistory(context.Background(), 1, day("2024-03-06"), day("2024-03-04"))
	assert.Error(t, err)
}
