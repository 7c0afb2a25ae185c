// Package analysis derives valuation and risk figures from market data:
// the Barsi ceiling price from dividend history and a volatility profile
// from historical closes.
package analysis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/psouza/carteira/internal/marketdata"
	"github.com/psouza/carteira/pkg/formulas"
)

// defaultDesiredYield is the minimum dividend yield the ceiling price
// targets: 6% a year, the threshold popularized by Luiz Barsi.
const defaultDesiredYield = 0.06

// dividendYears is how many full years of payments feed the average
const dividendYears = 5

// CeilingPrice is the Barsi-method valuation for one ticker
type CeilingPrice struct {
	Ticker            string  `json:"ticker"`
	CurrentPrice      float64 `json:"current_price"`
	CeilingPrice      float64 `json:"ceiling_price"`
	AverageDividend   float64 `json:"average_annual_dividend"`
	DesiredYield      float64 `json:"desired_yield"`
	YearsConsidered   int     `json:"years_considered"`
	UpsidePercent     float64 `json:"upside_percent"`
	BelowCeiling      bool    `json:"below_ceiling"`
	EstimatedDividend bool    `json:"estimated_dividend"`
}

// CeilingPrice computes the maximum price at which the ticker still
// yields the desired rate, from the average of its annual payments.
// When only yield-derived estimates are available the result is marked
// so the caller can present it with the appropriate caveat.
func (s *Service) CeilingPrice(ctx context.Context, ticker string, desiredYield float64) (*CeilingPrice, error) {
	if desiredYield <= 0 {
		desiredYield = defaultDesiredYield
	}
	ticker = marketdata.NormalizeTicker(ticker)

	quote, err := s.quotes.ResolveOne(ctx, ticker, marketdata.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve quote for %s: %w", ticker, err)
	}

	dividends, err := s.quotes.ResolveDividends(ctx, ticker, dividendYears)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve dividends for %s: %w", ticker, err)
	}

	annual, estimated := annualDividends(dividends, quote)
	if len(annual) == 0 {
		return nil, fmt.Errorf("no dividend data for %s", ticker)
	}

	averageDividend := formulas.Mean(annual)
	ceiling := averageDividend / desiredYield

	result := &CeilingPrice{
		Ticker:            ticker,
		CurrentPrice:      quote.Price,
		CeilingPrice:      ceiling,
		AverageDividend:   averageDividend,
		DesiredYield:      desiredYield,
		YearsConsidered:   len(annual),
		BelowCeiling:      quote.Price > 0 && quote.Price <= ceiling,
		EstimatedDividend: estimated,
	}
	if quote.Price > 0 {
		result.UpsidePercent = (ceiling - quote.Price) / quote.Price * 100
	}
	return result, nil
}

// annualDividends groups payments into per-year totals. Partial current
// years are excluded so a year in progress does not drag the average
// down. When the history is empty but the quote carries a trailing
// yield, a single estimated year is synthesized from it.
func annualDividends(dividends []marketdata.Dividend, quote marketdata.Quote) ([]float64, bool) {
	currentYear := time.Now().Year()
	byYear := map[int]float64{}
	estimated := false

	for _, d := range dividends {
		if len(d.Date) < 4 || d.Value <= 0 {
			continue
		}
		year, err := strconv.Atoi(d.Date[:4])
		if err != nil || year >= currentYear {
			continue
		}
		byYear[year] += d.Value
		if d.Estimated {
			estimated = true
		}
	}

	annual := []float64{}
	for year := currentYear - dividendYears; year < currentYear; year++ {
		if total, ok := byYear[year]; ok {
			annual = append(annual, total)
		}
	}

	if len(annual) == 0 && quote.DividendYield != nil && *quote.DividendYield > 0 && quote.Price > 0 {
		annual = append(annual, quote.Price**quote.DividendYield/100)
		estimated = true
	}

	return annual, estimated
}
