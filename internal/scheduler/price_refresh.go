package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/psouza/carteira/internal/events"
	"github.com/psouza/carteira/internal/marketdata"
)

// PositionStore is the slice of the ledger the refresh job needs
type PositionStore interface {
	DistinctTickers() ([]string, error)
	UpdatePriceByTicker(ticker string, price float64) error
}

// QuoteSource resolves current prices in bulk
type QuoteSource interface {
	Resolve(ctx context.Context, tickers []string, opts marketdata.Options) (marketdata.Result, error)
}

// PriceRefreshJob updates the stored price of every held asset. It only
// runs while B3 is open; outside trading hours the stored prices are
// already final.
type PriceRefreshJob struct {
	positions PositionStore
	quotes    QuoteSource
	events    *events.Manager
	location  *time.Location
	log       zerolog.Logger
}

// NewPriceRefreshJob creates a new price refresh job
func NewPriceRefreshJob(positions PositionStore, quotes QuoteSource, eventManager *events.Manager, log zerolog.Logger) *PriceRefreshJob {
	location, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		location = time.UTC
	}
	return &PriceRefreshJob{
		positions: positions,
		quotes:    quotes,
		events:    eventManager,
		location:  location,
		log:       log.With().Str("job", "price_refresh").Logger(),
	}
}

// Name returns the job name
func (j *PriceRefreshJob) Name() string {
	return "price_refresh"
}

// Run refreshes prices for all held tickers in one resolver pass
func (j *PriceRefreshJob) Run() error {
	if !j.marketOpen(time.Now().In(j.location)) {
		j.log.Debug().Msg("Market closed, skipping refresh")
		return nil
	}

	tickers, err := j.positions.DistinctTickers()
	if err != nil {
		return err
	}
	if len(tickers) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	result, err := j.quotes.Resolve(ctx, tickers, marketdata.Options{})
	if err != nil {
		return err
	}

	updated := 0
	for ticker, quote := range result.Quotes {
		if quote.Price <= 0 {
			continue
		}
		if err := j.positions.UpdatePriceByTicker(ticker, quote.Price); err != nil {
			j.log.Warn().Err(err).Str("ticker", ticker).Msg("Price update failed")
			continue
		}
		updated++
	}

	j.log.Info().
		Int("updated", updated).
		Int("missing", len(result.Missing)).
		Msg("Position prices refreshed")
	j.events.Emit(events.PriceRefreshDone, "scheduler", map[string]interface{}{
		"updated": updated,
		"missing": len(result.Missing),
	})

	return nil
}

// marketOpen reports whether B3 trades at the given local time.
// Sessions run 10:00 to 18:00, Monday to Friday.
func (j *PriceRefreshJob) marketOpen(now time.Time) bool {
	if now.Weekday() == time.Saturday || now.Weekday() == time.Sunday {
		return false
	}
	return now.Hour() >= 10 && now.Hour() < 18
}
