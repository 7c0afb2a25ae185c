package analysis

import (
	"context"
	"fmt"

	"github.com/psouza/carteira/internal/marketdata"
	"github.com/psouza/carteira/pkg/formulas"
)

// RiskProfile summarizes the volatility and trend of one ticker over
// the analysed range
type RiskProfile struct {
	Ticker               string   `json:"ticker"`
	Range                string   `json:"range"`
	AnnualizedVolatility float64  `json:"annualized_volatility"`
	MaxDrawdown          float64  `json:"max_drawdown"`
	TotalReturn          float64  `json:"total_return"`
	Trend                string   `json:"trend"`
	RSI                  *float64 `json:"rsi,omitempty"`
	RiskScore            int      `json:"risk_score"`
	DataPoints           int      `json:"data_points"`
}

// smaTrendPeriod is the moving-average window used for trend detection
const smaTrendPeriod = 50

// RiskProfile analyses a ticker's daily closes over the given range
func (s *Service) RiskProfile(ctx context.Context, ticker, rng string) (*RiskProfile, error) {
	ticker = marketdata.NormalizeTicker(ticker)
	if rng == "" {
		rng = "1y"
	}

	candles, err := s.quotes.ResolveHistorical(ctx, ticker, rng, "1d")
	if err != nil {
		return nil, fmt.Errorf("failed to resolve history for %s: %w", ticker, err)
	}

	closes := make([]float64, 0, len(candles))
	for _, c := range candles {
		if c.Close > 0 {
			closes = append(closes, c.Close)
		}
	}
	if len(closes) < 2 {
		return nil, fmt.Errorf("not enough price history for %s", ticker)
	}

	returns := formulas.DailyReturns(closes)
	volatility := formulas.AnnualizedVolatility(returns)
	drawdown := formulas.MaxDrawdown(closes)

	profile := &RiskProfile{
		Ticker:               ticker,
		Range:                rng,
		AnnualizedVolatility: volatility,
		MaxDrawdown:          drawdown,
		TotalReturn:          formulas.TotalReturn(closes),
		Trend:                trendFor(closes),
		RSI:                  formulas.LatestRSI(closes, 14),
		RiskScore:            riskScore(volatility, drawdown),
		DataPoints:           len(closes),
	}
	return profile, nil
}

// trendFor compares the last close with its moving average. A short
// series is reported as sideways rather than guessed at.
func trendFor(closes []float64) string {
	sma := formulas.LatestSMA(closes, smaTrendPeriod)
	if sma == nil || *sma == 0 {
		return "sideways"
	}
	last := closes[len(closes)-1]
	switch {
	case last > *sma*1.02:
		return "up"
	case last < *sma*0.98:
		return "down"
	default:
		return "sideways"
	}
}

// riskScore maps volatility and drawdown to a 1-10 scale. The bands
// follow B3 conventions: below 15% a year is defensive, above 40% is
// speculative.
func riskScore(volatility, drawdown float64) int {
	score := 1
	switch {
	case volatility > 0.40:
		score += 5
	case volatility > 0.30:
		score += 4
	case volatility > 0.22:
		score += 3
	case volatility > 0.15:
		score += 2
	case volatility > 0.10:
		score++
	}
	switch {
	case drawdown > 0.40:
		score += 4
	case drawdown > 0.25:
		score += 3
	case drawdown > 0.15:
		score += 2
	case drawdown > 0.08:
		score++
	}
	if score > 10 {
		score = 10
	}
	return score
}
