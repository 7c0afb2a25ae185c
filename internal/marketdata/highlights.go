package marketdata

import (
	"context"
	"sort"
	"strings"
	"time"
)

const highlightsKey = "market_highlights"

// Curated list of the most liquid B3 assets. A generic listing endpoint
// surfaces odd fractional tickers, so the selection is fixed by hand and
// kept small enough to resolve in few sub-batches.
var majorAssets = []string{
	// Ibovespa giants and high volume
	"PETR4", "VALE3", "ITUB4", "BBDC4", "BBAS3", "WEGE3",
	"ABEV3", "BPAC11", "ELET3", "RENT3", "SUZB3", "JBSS3",
	"PRIO3", "MGLU3", "LREN3", "RAIL3", "CMIG4", "GGBR4",
	"HAPV3", "RDOR3", "CSAN3", "PETR3", "B3SA3", "VIBRA3",
	// Top real-estate funds
	"HGLG11", "MXRF11", "XPLG11", "KNRI11", "XPML11", "VISC11",
	"BTLG11", "IRDM11", "KNCR11", "CPTS11",
}

// unit-suffix tickers that are stocks despite the "11" ending
var unitStocks = map[string]struct{}{
	"TIET11": {}, "KLBN11": {}, "SANB11": {}, "ALUP11": {}, "TAEE11": {}, "SAPR11": {},
}

// Highlight is one entry of the curated market highlights list
type Highlight struct {
	Ticker        string  `json:"ticker"`
	Name          string  `json:"name"`
	Close         float64 `json:"close"`
	ChangePercent float64 `json:"change_percent"`
	Volume        int64   `json:"volume"`
	MarketCap     float64 `json:"market_cap"`
	LogoURL       string  `json:"logo_url,omitempty"`
	Type          string  `json:"type"`
}

// AssetTypeFor classifies a B3 ticker as stock or fund by its suffix
func AssetTypeFor(ticker string) string {
	ticker = NormalizeTicker(ticker)
	if strings.HasSuffix(ticker, "11") {
		if strings.HasPrefix(ticker, "BPAC") {
			return "stock"
		}
		if _, ok := unitStocks[ticker]; ok {
			return "stock"
		}
		return "fund"
	}
	return "stock"
}

// Highlights returns the curated list sorted by day change descending,
// truncated to limit. Results are cached on the long TTL class; on total
// failure the full static table is served so the list never goes dark.
func (r *Resolver) Highlights(ctx context.Context, limit int, listTTL time.Duration) ([]Highlight, error) {
	if limit <= 0 {
		limit = 10
	}

	if cached, ok := r.cache.Get(highlightsKey); ok {
		return clip(cached.([]Highlight), limit), nil
	}

	result, err := r.Resolve(ctx, majorAssets, Options{})
	if err != nil {
		if cached, ok := r.cache.GetStale(highlightsKey); ok {
			return clip(cached.([]Highlight), limit), nil
		}
		return staticHighlights(limit), nil
	}

	highlights := make([]Highlight, 0, len(result.Quotes))
	for _, q := range result.Quotes {
		highlights = append(highlights, Highlight{
			Ticker:        q.Ticker,
			Name:          q.Name,
			Close:         q.Price,
			ChangePercent: q.ChangePercent,
			Volume:        q.Volume,
			MarketCap:     q.MarketCap,
			LogoURL:       q.LogoURL,
			Type:          AssetTypeFor(q.Ticker),
		})
	}

	// Top gainers first; ties broken by ticker to keep output stable.
	sort.Slice(highlights, func(i, j int) bool {
		if highlights[i].ChangePercent != highlights[j].ChangePercent {
			return highlights[i].ChangePercent > highlights[j].ChangePercent
		}
		return highlights[i].Ticker < highlights[j].Ticker
	})

	r.cache.Put(highlightsKey, highlights, listTTL)
	return clip(highlights, limit), nil
}

func clip(highlights []Highlight, limit int) []Highlight {
	if len(highlights) > limit {
		return highlights[:limit]
	}
	return highlights
}

func staticHighlights(limit int) []Highlight {
	out := make([]Highlight, 0, len(staticQuotes))
	for ticker, sq := range staticQuotes {
		out = append(out, Highlight{
			Ticker:        ticker,
			Name:          sq.Name,
			Close:         sq.Price,
			ChangePercent: sq.ChangePercent,
			Volume:        sq.Volume,
			Type:          AssetTypeFor(ticker),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ChangePercent != out[j].ChangePercent {
			return out[i].ChangePercent > out[j].ChangePercent
		}
		return out[i].Ticker < out[j].Ticker
	})
	return clip(out, limit)
}
