package marketdata

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// QuoteProvider fetches quotes for a set of tickers in a single call
type QuoteProvider interface {
	Quotes(ctx context.Context, tickers []string, opts Options) ([]Quote, error)
}

// BatchFetcher splits ticker sets into bounded sub-batches and fetches
// them sequentially with a mandatory inter-batch delay. Sequential with
// delay, not parallel: simultaneous bursts get every sub-batch rejected
// with 429 at once and exhaust the provider quota in one shot.
type BatchFetcher struct {
	provider  QuoteProvider
	batchSize int
	limiter   *rate.Limiter
	log       zerolog.Logger
}

// NewBatchFetcher creates a new batch fetcher
func NewBatchFetcher(provider QuoteProvider, batchSize int, delay time.Duration, log zerolog.Logger) *BatchFetcher {
	if batchSize < 1 {
		batchSize = 1
	}
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	return &BatchFetcher{
		provider:  provider,
		batchSize: batchSize,
		limiter:   rate.NewLimiter(limit, 1),
		log:       log.With().Str("component", "batch_fetcher").Logger(),
	}
}

// Fetch performs ceil(len(tickers)/batchSize) sequential provider calls
// and concatenates partial results. A failed sub-batch simply omits its
// tickers; upstream fallback tiers resolve them. The only returned error
// is context cancellation.
func (f *BatchFetcher) Fetch(ctx context.Context, tickers []string, opts Options) ([]Quote, error) {
	var results []Quote

	for start := 0; start < len(tickers); start += f.batchSize {
		end := start + f.batchSize
		if end > len(tickers) {
			end = len(tickers)
		}
		batch := tickers[start:end]

		// Paces every sub-batch; the first token is available immediately.
		if err := f.limiter.Wait(ctx); err != nil {
			return results, err
		}

		quotes, err := f.provider.Quotes(ctx, batch, opts)
		if err != nil {
			// Network errors and rate limits are handled identically:
			// abandon this batch and keep going. Batch lookups never
			// retry, to bound total latency.
			f.log.Warn().
				Err(err).
				Strs("tickers", batch).
				Msg("Sub-batch failed, skipping")
			continue
		}

		results = append(results, quotes...)
	}

	return results, nil
}
