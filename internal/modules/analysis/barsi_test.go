package analysis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psouza/carteira/internal/marketdata"
)

type fakeQuotes struct {
	quote     marketdata.Quote
	quoteErr  error
	dividends []marketdata.Dividend
	divErr    error
	candles   []marketdata.Candle
	seriesErr error
}

func (f *fakeQuotes) ResolveOne(ctx context.Context, ticker string, opts marketdata.Options) (marketdata.Quote, error) {
	return f.quote, f.quoteErr
}

func (f *fakeQuotes) ResolveHistorical(ctx context.Context, ticker, rng, interval string) ([]marketdata.Candle, error) {
	return f.candles, f.seriesErr
}

func (f *fakeQuotes) ResolveDividends(ctx context.Context, ticker string, years int) ([]marketdata.Dividend, error) {
	return f.dividends, f.divErr
}

func pastYear(offset int) string {
	return fmt.Sprintf("%d-06-15", time.Now().Year()-offset)
}

func TestCeilingPrice_AveragesFullYears(t *testing.T) {
	service := NewService(&fakeQuotes{
		quote: marketdata.Quote{Ticker: "BBAS3", Price: 40},
		dividends: []marketdata.Dividend{
			{Date: pastYear(1), Value: 2.0},
			{Date: pastYear(1), Value: 1.0},
			{Date: pastYear(2), Value: 3.6},
		},
	}, zerolog.Nop())

	result, err := service.CeilingPrice(context.Background(), "bbas3", 0)

	require.NoError(t, err)
	// Annual totals 3.0 and 3.6 average to 3.3; at 6% that is 55.
	assert.InDelta(t, 3.3, result.AverageDividend, 1e-9)
	assert.InDelta(t, 55, result.CeilingPrice, 1e-9)
	assert.Equal(t, 2, result.YearsConsidered)
	assert.True(t, result.BelowCeiling)
	assert.InDelta(t, 37.5, result.UpsidePercent, 1e-9)
	assert.False(t, result.EstimatedDividend)
}

func TestCeilingPrice_CurrentYearExcluded(t *testing.T) {
	service := NewService(&fakeQuotes{
		quote: marketdata.Quote{Ticker: "BBAS3", Price: 40},
		dividends: []marketdata.Dividend{
			{Date: fmt.Sprintf("%d-02-01", time.Now().Year()), Value: 9.9},
			{Date: pastYear(1), Value: 3.0},
		},
	}, zerolog.Nop())

	result, err := service.CeilingPrice(context.Background(), "BBAS3", 0)

	require.NoError(t, err)
	// The year in progress is incomplete and must not enter the average.
	assert.Equal(t, 1, result.YearsConsidered)
	assert.InDelta(t, 3.0, result.AverageDividend, 1e-9)
}

func TestCeilingPrice_YieldEstimateWhenNoHistory(t *testing.T) {
	yield := 6.0
	service := NewService(&fakeQuotes{
		quote: marketdata.Quote{Ticker: "XPTO3", Price: 40, DividendYield: &yield},
	}, zerolog.Nop())

	result, err := service.CeilingPrice(context.Background(), "XPTO3", 0)

	require.NoError(t, err)
	assert.True(t, result.EstimatedDividend)
	// 40 * 6% = 2.40 a year; at the default 6% the ceiling is the price.
	assert.InDelta(t, 2.4, result.AverageDividend, 1e-9)
	assert.InDelta(t, 40, result.CeilingPrice, 1e-9)
}

func TestCeilingPrice_NoDividendDataFails(t *testing.T) {
	service := NewService(&fakeQuotes{
		quote: marketdata.Quote{Ticker: "XPTO3", Price: 40},
	}, zerolog.Nop())

	_, err := service.CeilingPrice(context.Background(), "XPTO3", 0)
	assert.Error(t, err)
}

func TestCeilingPrice_CustomYield(t *testing.T) {
	service := NewService(&fakeQuotes{
		quote: marketdata.Quote{Ticker: "BBAS3", Price: 40},
		dividends: []marketdata.Dividend{
			{Date: pastYear(1), Value: 4.0},
		},
	}, zerolog.Nop())

	result, err := service.CeilingPrice(context.Background(), "BBAS3", 0.08)

	require.NoError(t, err)
	assert.InDelta(t, 50, result.CeilingPrice, 1e-9)
	assert.InDelta(t, 0.08, result.DesiredYield, 1e-9)
}
