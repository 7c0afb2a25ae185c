package bcb

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// SGS series codes for the indicators this service consumes
const (
	SeriesSelicTarget = 432
	SeriesSelicOver   = 1178
	SeriesCDIMonthly  = 4390
	SeriesIPCAMonthly = 433
	SeriesIPCA12m     = 13522
	SeriesDollarPTAX  = 1
)

// Client consumes the Banco Central do Brasil SGS time-series API.
// Low-volume single-point lookups; callers cache at coarse granularity.
type Client struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewClient creates a new BCB SGS client
func NewClient(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: log.With().Str("client", "bcb").Logger(),
	}
}

// MacroIndicators aggregates the headline Brazilian macro series
type MacroIndicators struct {
	SelicTarget float64   `json:"selic_target"` // % p.a.
	SelicOver   float64   `json:"selic_over"`   // % p.a.
	CDI         float64   `json:"cdi"`          // % p.a., approximated from monthly
	IPCAMonthly float64   `json:"ipca_monthly"` // %
	IPCA12m     float64   `json:"ipca_12m"`     // % accumulated 12 months
	Dollar      float64   `json:"dollar"`       // PTAX sell rate, BRL
	UpdatedAt   time.Time `json:"updated_at"`
}

// LatestValue fetches the most recent point of one SGS series
func (c *Client) LatestValue(ctx context.Context, series int) (float64, error) {
	reqURL := fmt.Sprintf("%s.%d/dados/ultimos/1?formato=json", c.baseURL, series)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch series %d: %w", series, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("BCB API returned status %d for series %d", resp.StatusCode, series)
	}

	var points []struct {
		Valor string `json:"valor"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&points); err != nil {
		return 0, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(points) == 0 {
		return 0, fmt.Errorf("series %d returned no data", series)
	}

	// The API formats decimals with a comma
	value, err := strconv.ParseFloat(strings.ReplaceAll(points[0].Valor, ",", "."), 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse series %d value %q: %w", series, points[0].Valor, err)
	}
	return value, nil
}

// MacroIndicators fetches all headline series concurrently. A failed
// series zero-defaults instead of failing the aggregate.
func (c *Client) MacroIndicators(ctx context.Context) MacroIndicators {
	series := []int{
		SeriesSelicTarget,
		SeriesSelicOver,
		SeriesCDIMonthly,
		SeriesIPCAMonthly,
		SeriesIPCA12m,
		SeriesDollarPTAX,
	}

	values := make([]float64, len(series))
	var wg sync.WaitGroup
	for i, code := range series {
		wg.Add(1)
		go func(i, code int) {
			defer wg.Done()
			value, err := c.LatestValue(ctx, code)
			if err != nil {
				c.log.Warn().Err(err).Int("series", code).Msg("Macro series fetch failed")
				return
			}
			values[i] = value
		}(i, code)
	}
	wg.Wait()

	// Annualize CDI from the monthly series; fall back to the SELIC
	// target when the CDI series is unavailable.
	cdi := values[2] * 12
	if values[2] == 0 {
		cdi = values[0]
	}

	return MacroIndicators{
		SelicTarget: values[0],
		SelicOver:   values[1],
		CDI:         round2(cdi),
		IPCAMonthly: values[3],
		IPCA12m:     values[4],
		Dollar:      values[5],
		UpdatedAt:   time.Now(),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
