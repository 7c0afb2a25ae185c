package analysis

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/psouza/carteira/internal/marketdata"
)

// QuoteSource is the slice of the market data resolver the analysis
// module needs
type QuoteSource interface {
	ResolveOne(ctx context.Context, ticker string, opts marketdata.Options) (marketdata.Quote, error)
	ResolveHistorical(ctx context.Context, ticker, rng, interval string) ([]marketdata.Candle, error)
	ResolveDividends(ctx context.Context, ticker string, years int) ([]marketdata.Dividend, error)
}

// Service computes valuation and risk analyses on demand
type Service struct {
	quotes QuoteSource
	log    zerolog.Logger
}

// NewService creates a new analysis service
func NewService(quotes QuoteSource, log zerolog.Logger) *Service {
	return &Service{
		quotes: quotes,
		log:    log.With().Str("service", "analysis").Logger(),
	}
}
