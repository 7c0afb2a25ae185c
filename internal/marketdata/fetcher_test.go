package marketdata

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingProvider records every sub-batch it receives and can fail
// selected calls
type recordingProvider struct {
	batches  [][]string
	failCall map[int]bool
}

func (p *recordingProvider) Quotes(ctx context.Context, tickers []string, opts Options) ([]Quote, error) {
	call := len(p.batches)
	p.batches = append(p.batches, append([]string{}, tickers...))

	if p.failCall[call] {
		return nil, fmt.Errorf("provider rejected batch %d", call)
	}

	quotes := make([]Quote, len(tickers))
	for i, ticker := range tickers {
		quotes[i] = Quote{Ticker: ticker, Price: 10, Source: SourceBrapi}
	}
	return quotes, nil
}

func TestBatchFetcher_SplitsIntoSubBatches(t *testing.T) {
	provider := &recordingProvider{}
	fetcher := NewBatchFetcher(provider, 3, 0, zerolog.Nop())

	tickers := []string{"A", "B", "C", "D", "E", "F", "G"}
	quotes, err := fetcher.Fetch(context.Background(), tickers, Options{})

	require.NoError(t, err)
	assert.Len(t, quotes, 7)
	require.Len(t, provider.batches, 3)
	assert.Equal(t, []string{"A", "B", "C"}, provider.batches[0])
	assert.Equal(t, []string{"D", "E", "F"}, provider.batches[1])
	assert.Equal(t, []string{"G"}, provider.batches[2])
}

func TestBatchFetcher_FailedSubBatchIsSkipped(t *testing.T) {
	provider := &recordingProvider{failCall: map[int]bool{1: true}}
	fetcher := NewBatchFetcher(provider, 2, 0, zerolog.Nop())

	quotes, err := fetcher.Fetch(context.Background(), []string{"A", "B", "C", "D", "E"}, Options{})

	// A failed sub-batch omits its tickers but never fails the fetch.
	require.NoError(t, err)
	assert.Len(t, quotes, 3)
	assert.Len(t, provider.batches, 3)
}

func TestBatchFetcher_CancelledContextStopsFetch(t *testing.T) {
	provider := &recordingProvider{}
	fetcher := NewBatchFetcher(provider, 1, 0, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fetcher.Fetch(ctx, []string{"A", "B"}, Options{})
	assert.Error(t, err)
}

func TestBatchFetcher_MinimumBatchSize(t *testing.T) {
	provider := &recordingProvider{}
	fetcher := NewBatchFetcher(provider, 0, 0, zerolog.Nop())

	_, err := fetcher.Fetch(context.Background(), []string{"A", "B"}, Options{})

	require.NoError(t, err)
	assert.Len(t, provider.batches, 2)
}
