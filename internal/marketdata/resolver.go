package marketdata

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/psouza/carteira/internal/events"
)

// PrimaryProvider fetches a whole batch of quotes in a single call. It
// serves prices only, so it is skipped when extended options are set.
type PrimaryProvider interface {
	Quotes(ctx context.Context, tickers []string) ([]Quote, error)
}

// SingleQuoteProvider fetches one ticker with provider-side retry. Only
// single lookups retry; batch lookups fail fast to bound total latency.
type SingleQuoteProvider interface {
	Quote(ctx context.Context, ticker string, opts Options) (Quote, error)
}

// HistoricalProvider fetches OHLCV series for one ticker
type HistoricalProvider interface {
	Historical(ctx context.Context, ticker, rng, interval string) ([]Candle, error)
}

// DividendProvider fetches cash dividend history for one ticker
type DividendProvider interface {
	Dividends(ctx context.Context, ticker string, years int) ([]Dividend, error)
}

// Resolver orchestrates the quote fallback chain:
//
//	fresh cache -> primary -> secondary (sub-batches) -> cached (stale as
//	last resort) -> static table -> explicit missing
//
// It never fails because of a single ticker; it returns ErrUnavailable
// only when every tier is exhausted for the entire batch.
type Resolver struct {
	cache     *Cache
	primary   PrimaryProvider
	secondary *BatchFetcher
	single    SingleQuoteProvider
	series    HistoricalProvider
	dividends DividendProvider
	events    *events.Manager
	quoteTTL  time.Duration
	log       zerolog.Logger
}

// ResolverConfig holds resolver dependencies
type ResolverConfig struct {
	Cache     *Cache
	Primary   PrimaryProvider
	Secondary *BatchFetcher
	Single    SingleQuoteProvider
	Series    HistoricalProvider
	Dividends DividendProvider
	Events    *events.Manager
	QuoteTTL  time.Duration
	Log       zerolog.Logger
}

// NewResolver creates a new quote resolver
func NewResolver(cfg ResolverConfig) *Resolver {
	ttl := cfg.QuoteTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	ev := cfg.Events
	if ev == nil {
		ev = events.NewManager(cfg.Log)
	}
	return &Resolver{
		cache:     cfg.Cache,
		primary:   cfg.Primary,
		secondary: cfg.Secondary,
		single:    cfg.Single,
		series:    cfg.Series,
		dividends: cfg.Dividends,
		events:    ev,
		quoteTTL:  ttl,
		log:       cfg.Log.With().Str("component", "resolver").Logger(),
	}
}

// Resolve returns a quote per requested ticker, or lists it as missing.
// Tickers are normalized before anything else, including key computation.
func (r *Resolver) Resolve(ctx context.Context, tickers []string, opts Options) (Result, error) {
	requested := NormalizeTickers(tickers)
	if len(requested) == 0 {
		// Empty request short-circuits with no network call.
		return Result{Quotes: map[string]Quote{}}, nil
	}

	key := QuoteKey(requested, opts)

	// Fresh cache hit avoids the providers entirely.
	if cached, ok := r.cache.Get(key); ok {
		return asCached(cached.(Result)), nil
	}

	// Tier 1: primary provider, whole batch. Skipped when fundamentals or
	// dividends were requested; the primary serves prices only.
	if !opts.Extended() {
		quotes, err := r.primary.Quotes(ctx, requested)
		if err != nil {
			r.log.Warn().Err(err).Msg("Primary provider failed, falling back")
			r.events.Emit(events.FallbackEngaged, "marketdata", map[string]interface{}{
				"tier":    "secondary",
				"tickers": requested,
			})
		} else if len(quotes) > 0 {
			result := r.buildResult(requested, quotes)
			r.cache.Put(key, result, r.quoteTTL)
			return result, nil
		}
	}

	// Tier 2: secondary provider in bounded sequential sub-batches.
	quotes, err := r.secondary.Fetch(ctx, requested, opts)
	if err != nil {
		return Result{}, err // context cancelled
	}
	if len(quotes) > 0 {
		result := r.buildResult(requested, quotes)
		r.cache.Put(key, result, r.quoteTTL)
		return result, nil
	}

	r.log.Error().Strs("tickers", requested).Msg("All provider batches failed, trying fallback tiers")

	// Tier 3: cached entry, expired allowed as last resort.
	if cached, ok := r.cache.GetStale(key); ok {
		r.events.Emit(events.FallbackEngaged, "marketdata", map[string]interface{}{
			"tier":    "stale_cache",
			"tickers": requested,
		})
		return asCached(cached.(Result)), nil
	}

	// Tier 4: static table, known tickers only. Unknown tickers stay
	// missing rather than receiving a synthesized price.
	result := Result{Quotes: map[string]Quote{}}
	for _, t := range requested {
		if q, ok := StaticQuote(t); ok {
			q.RetrievedAt = time.Now()
			result.Quotes[t] = q
		} else {
			result.Missing = append(result.Missing, t)
		}
	}
	if len(result.Quotes) > 0 {
		r.log.Warn().
			Int("static", len(result.Quotes)).
			Int("missing", len(result.Missing)).
			Msg("Serving static fallback quotes")
		r.events.Emit(events.FallbackEngaged, "marketdata", map[string]interface{}{
			"tier":    "static",
			"tickers": requested,
		})
		return result, nil
	}

	r.events.EmitError("marketdata", ErrUnavailable, map[string]interface{}{
		"tickers": requested,
	})
	return Result{}, ErrUnavailable
}

// ResolveOne resolves a single ticker. The secondary provider retries
// with backoff internally; on failure the full batch chain is consulted.
func (r *Resolver) ResolveOne(ctx context.Context, ticker string, opts Options) (Quote, error) {
	ticker = NormalizeTicker(ticker)
	if ticker == "" {
		return Quote{}, ErrNotFound
	}

	quote, err := r.single.Quote(ctx, ticker, opts)
	if err == nil {
		return quote, nil
	}
	r.log.Warn().Err(err).Str("ticker", ticker).Msg("Single quote failed, using batch chain")

	result, err := r.Resolve(ctx, []string{ticker}, opts)
	if err != nil {
		return Quote{}, err
	}
	q, ok := result.Quotes[ticker]
	if !ok {
		return Quote{}, ErrNotFound
	}
	return q, nil
}

// ResolveHistorical returns the OHLCV series for one ticker
func (r *Resolver) ResolveHistorical(ctx context.Context, ticker, rng, interval string) ([]Candle, error) {
	return r.series.Historical(ctx, NormalizeTicker(ticker), rng, interval)
}

// ResolveDividends returns dividend history, falling back to the static
// table for known tickers. Unknown tickers yield an empty history.
func (r *Resolver) ResolveDividends(ctx context.Context, ticker string, years int) ([]Dividend, error) {
	ticker = NormalizeTicker(ticker)

	divs, err := r.dividends.Dividends(ctx, ticker, years)
	if err == nil && len(divs) > 0 {
		return divs, nil
	}
	if err != nil {
		r.log.Warn().Err(err).Str("ticker", ticker).Msg("Dividend fetch failed")
	}

	if static, ok := StaticDividends(ticker); ok {
		r.log.Warn().Str("ticker", ticker).Msg("Using static fallback dividends")
		return static, nil
	}

	return []Dividend{}, nil
}

// buildResult indexes provider quotes by normalized ticker and records
// which requested tickers came back empty
func (r *Resolver) buildResult(requested []string, quotes []Quote) Result {
	result := Result{Quotes: make(map[string]Quote, len(quotes))}
	for _, q := range quotes {
		q.Ticker = NormalizeTicker(q.Ticker)
		if q.RetrievedAt.IsZero() {
			q.RetrievedAt = time.Now()
		}
		result.Quotes[q.Ticker] = q
	}
	for _, t := range requested {
		if _, ok := result.Quotes[t]; !ok {
			result.Missing = append(result.Missing, t)
		}
	}
	return result
}

// asCached re-marks every quote of a cached result as cache-sourced
func asCached(cached Result) Result {
	out := Result{
		Quotes:  make(map[string]Quote, len(cached.Quotes)),
		Missing: cached.Missing,
	}
	for t, q := range cached.Quotes {
		q.Source = SourceCache
		out.Quotes[t] = q
	}
	return out
}
