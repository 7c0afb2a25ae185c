package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/psouza/carteira/internal/clients/bcb"
	"github.com/psouza/carteira/internal/marketdata"
)

// MacroRefreshJob keeps central bank indicators warm in the cache so
// the macro endpoint rarely waits on the SGS API
type MacroRefreshJob struct {
	client *bcb.Client
	cache  *marketdata.Cache
	ttl    time.Duration
	log    zerolog.Logger
}

// NewMacroRefreshJob creates a new macro refresh job
func NewMacroRefreshJob(client *bcb.Client, cache *marketdata.Cache, ttl time.Duration, log zerolog.Logger) *MacroRefreshJob {
	return &MacroRefreshJob{
		client: client,
		cache:  cache,
		ttl:    ttl,
		log:    log.With().Str("job", "macro_refresh").Logger(),
	}
}

// Name returns the job name
func (j *MacroRefreshJob) Name() string {
	return "macro_refresh"
}

// Run fetches the indicator set and caches it
func (j *MacroRefreshJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	indicators := j.client.MacroIndicators(ctx)
	j.cache.Put("macro_indicators", indicators, j.ttl)

	j.log.Info().
		Float64("selic", indicators.SelicTarget).
		Float64("cdi", indicators.CDI).
		Msg("Macro indicators refreshed")
	return nil
}
