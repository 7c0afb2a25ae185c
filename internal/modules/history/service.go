// Package history reconstructs portfolio value over time by replaying
// the transaction log against historical price series.
package history

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/psouza/carteira/internal/domain"
	"github.com/psouza/carteira/internal/marketdata"
)

// maxLookbackDays bounds the backward search for a price on non-trading
// days (weekends, holidays). Beyond this the ticker is skipped for the day.
const maxLookbackDays = 5

const dateLayout = "2006-01-02"

// TransactionSource provides the replayable log for an owner
type TransactionSource interface {
	ListByOwner(ownerID int64) ([]domain.Transaction, error)
}

// TickerSource maps asset IDs to their tickers
type TickerSource interface {
	TickersByIDs(ids []int64) (map[int64]string, error)
}

// SeriesSource provides daily candles for one ticker
type SeriesSource interface {
	ResolveHistorical(ctx context.Context, ticker, rng, interval string) ([]marketdata.Candle, error)
}

// Point is one day of reconstructed portfolio value
type Point struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// Service replays transaction logs into daily valuation series
type Service struct {
	txs     TransactionSource
	tickers TickerSource
	series  SeriesSource
	log     zerolog.Logger
}

// NewService creates a new history service
func NewService(txs TransactionSource, tickers TickerSource, series SeriesSource, log zerolog.Logger) *Service {
	return &Service{
		txs:     txs,
		tickers: tickers,
		series:  series,
		log:     log.With().Str("service", "history").Logger(),
	}
}

// PortfolioHistory reconstructs daily portfolio value between start and
// end inclusive. Transactions dated before start are replayed first so
// the opening holdings are correct. Days where nothing was held, or
// where no price exists within the lookback window, are omitted.
func (s *Service) PortfolioHistory(ctx context.Context, ownerID int64, start, end time.Time) ([]Point, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("end date %s before start date %s",
			end.Format(dateLayout), start.Format(dateLayout))
	}

	txs, err := s.txs.ListByOwner(ownerID)
	if err != nil {
		return nil, err
	}
	if len(txs) == 0 {
		return []Point{}, nil
	}

	assetIDs := distinctAssetIDs(txs)
	tickers, err := s.tickers.TickersByIDs(assetIDs)
	if err != nil {
		return nil, err
	}

	prices := s.fetchSeries(ctx, tickers, start, end)

	start = truncateDay(start)
	end = truncateDay(end)

	// Opening holdings: everything dated strictly before the window.
	holdings := map[int64]float64{}
	next := 0
	for next < len(txs) && truncateDay(txs[next].Date).Before(start) {
		applyTransaction(holdings, txs[next])
		next++
	}

	points := []Point{}
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		for next < len(txs) && truncateDay(txs[next].Date).Equal(day) {
			applyTransaction(holdings, txs[next])
			next++
		}

		// Fixed iteration order keeps the float sum reproducible.
		value := 0.0
		for _, assetID := range assetIDs {
			quantity := holdings[assetID]
			if quantity <= 0 {
				continue
			}
			ticker, ok := tickers[assetID]
			if !ok {
				continue
			}
			price, ok := priceOn(prices[ticker], day)
			if !ok {
				continue
			}
			value += quantity * price
		}

		if value > 0 {
			points = append(points, Point{Date: day.Format(dateLayout), Value: value})
		}
	}

	return points, nil
}

// fetchSeries loads one daily series per ticker concurrently. A failed
// ticker yields no series and is skipped during valuation.
func (s *Service) fetchSeries(ctx context.Context, tickers map[int64]string, start, end time.Time) map[string]map[string]float64 {
	prices := make(map[string]map[string]float64, len(tickers))
	rng := rangeFor(start)

	var wg sync.WaitGroup
	var mu sync.Mutex
	for _, ticker := range tickers {
		wg.Add(1)
		go func(ticker string) {
			defer wg.Done()

			candles, err := s.series.ResolveHistorical(ctx, ticker, rng, "1d")
			if err != nil {
				s.log.Warn().Err(err).Str("ticker", ticker).Msg("Historical series unavailable")
				return
			}

			series := make(map[string]float64, len(candles))
			for _, c := range candles {
				if c.Close > 0 {
					series[c.Date.Format(dateLayout)] = c.Close
				}
			}

			mu.Lock()
			prices[ticker] = series
			mu.Unlock()
		}(ticker)
	}
	wg.Wait()

	return prices
}

// priceOn finds a close for the day, walking backwards over non-trading
// days up to the lookback limit
func priceOn(series map[string]float64, day time.Time) (float64, bool) {
	if series == nil {
		return 0, false
	}
	for back := 0; back <= maxLookbackDays; back++ {
		if price, ok := series[day.AddDate(0, 0, -back).Format(dateLayout)]; ok {
			return price, true
		}
	}
	return 0, false
}

func applyTransaction(holdings map[int64]float64, tx domain.Transaction) {
	switch tx.Type {
	case domain.TransactionBuy:
		holdings[tx.AssetID] += tx.Quantity
	case domain.TransactionSell:
		holdings[tx.AssetID] -= tx.Quantity
	}
}

func distinctAssetIDs(txs []domain.Transaction) []int64 {
	seen := map[int64]bool{}
	ids := []int64{}
	for _, tx := range txs {
		if !seen[tx.AssetID] {
			seen[tx.AssetID] = true
			ids = append(ids, tx.AssetID)
		}
	}
	return ids
}

// rangeFor picks the smallest provider range that covers the window,
// with slack for the pre-window lookback
func rangeFor(start time.Time) string {
	days := int(time.Since(start).Hours()/24) + maxLookbackDays
	switch {
	case days <= 28:
		return "1mo"
	case days <= 85:
		return "3mo"
	case days <= 175:
		return "6mo"
	case days <= 360:
		return "1y"
	case days <= 725:
		return "2y"
	case days <= 1820:
		return "5y"
	default:
		return "max"
	}
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
