package formulas

// MaxDrawdown calculates the deepest peak-to-trough loss in a close
// series, as a positive fraction (0.25 means a 25% fall from the peak).
func MaxDrawdown(closes []float64) float64 {
	if len(closes) < 2 {
		return 0
	}

	maxDrawdown := 0.0
	peak := closes[0]
	for _, price := range closes {
		if price > peak {
			peak = price
		}
		if peak > 0 {
			if drawdown := (peak - price) / peak; drawdown > maxDrawdown {
				maxDrawdown = drawdown
			}
		}
	}
	return maxDrawdown
}
