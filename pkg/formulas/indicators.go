package formulas

import (
	"github.com/markcheno/go-talib"
)

// LatestSMA returns the most recent simple moving average over the
// given period, or nil when the series is too short
func LatestSMA(closes []float64, period int) *float64 {
	if len(closes) < period || period < 1 {
		return nil
	}
	sma := talib.Sma(closes, period)
	return lastValid(sma)
}

// LatestRSI returns the most recent Relative Strength Index (0-100)
// over the given period, or nil when the series is too short
func LatestRSI(closes []float64, period int) *float64 {
	if len(closes) < period+1 {
		return nil
	}
	rsi := talib.Rsi(closes, period)
	return lastValid(rsi)
}

func lastValid(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	v := values[len(values)-1]
	if v != v { // NaN
		return nil
	}
	return &v
}
