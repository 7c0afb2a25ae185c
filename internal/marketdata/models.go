package marketdata

import (
	"sort"
	"strings"
	"time"
)

// Source identifies which fallback tier produced a quote
type Source string

const (
	SourceYahoo  Source = "yahoo"
	SourceBrapi  Source = "brapi"
	SourceCache  Source = "cache"
	SourceStatic Source = "static"
)

// Quote is an immutable point-in-time snapshot for one ticker
type Quote struct {
	Ticker        string    `json:"ticker"`
	Name          string    `json:"name,omitempty"`
	Currency      string    `json:"currency,omitempty"`
	Price         float64   `json:"price"`
	PreviousClose float64   `json:"previous_close,omitempty"`
	Open          float64   `json:"open,omitempty"`
	High          float64   `json:"high,omitempty"`
	Low           float64   `json:"low,omitempty"`
	Change        float64   `json:"change,omitempty"`
	ChangePercent float64   `json:"change_percent"`
	Volume        int64     `json:"volume,omitempty"`
	MarketCap     float64   `json:"market_cap,omitempty"`
	LogoURL       string    `json:"logo_url,omitempty"`
	PERatio       *float64  `json:"pe_ratio,omitempty"`
	EPS           *float64  `json:"eps,omitempty"`
	DividendYield *float64  `json:"dividend_yield,omitempty"`
	RetrievedAt   time.Time `json:"retrieved_at"`
	Source        Source    `json:"source"`
}

// Candle is one OHLCV bar of a historical price series
type Candle struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// Dividend is one cash payment in a dividend history. Estimated marks
// values derived from a yield rather than observed payment records.
type Dividend struct {
	Date      string  `json:"date"` // YYYY-MM-DD
	Value     float64 `json:"value"`
	Type      string  `json:"type"`
	Estimated bool    `json:"estimated,omitempty"`
}

// Options selects extended provider data. Requesting either field routes
// the lookup past the primary provider, which serves prices only.
type Options struct {
	Fundamental bool
	Dividends   bool
}

// Extended reports whether the options require provider-specific data
func (o Options) Extended() bool {
	return o.Fundamental || o.Dividends
}

// Result maps resolved tickers to quotes. Missing lists tickers no tier
// could answer for; they are never assigned a synthesized price.
type Result struct {
	Quotes  map[string]Quote `json:"quotes"`
	Missing []string         `json:"missing,omitempty"`
}

// NormalizeTicker canonicalizes a symbol for identity and cache keys
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// NormalizeTickers returns the sorted, deduplicated, normalized set
func NormalizeTickers(tickers []string) []string {
	seen := make(map[string]struct{}, len(tickers))
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		n := NormalizeTicker(t)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// QuoteKey derives the cache key for a normalized ticker set and options.
// Normalization happens before key computation, so permutations, casing and
// stray whitespace all map to the same entry.
func QuoteKey(tickers []string, opts Options) string {
	key := "quotes:" + strings.Join(NormalizeTickers(tickers), ",")
	if opts.Fundamental {
		key += ":fundamental"
	}
	if opts.Dividends {
		key += ":dividends"
	}
	return key
}
