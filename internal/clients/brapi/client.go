package brapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/psouza/carteira/internal/marketdata"
)

// maxAttempts bounds the retry loop for single-ticker lookups. Batch
// lookups never retry; the resolver's fallback tiers absorb their
// failures instead.
const maxAttempts = 3

// Client is a brapi.dev API client, the secondary quote tier. It is the
// only tier that serves fundamentals, dividends and historical series.
// The free tier works without a token for a handful of test tickers.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
	log     zerolog.Logger
}

// NewClient creates a new brapi.dev client
func NewClient(baseURL, token string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log.With().Str("client", "brapi").Logger(),
	}
}

func (c *Client) params(opts marketdata.Options) url.Values {
	params := url.Values{}
	if opts.Fundamental {
		params.Set("fundamental", "true")
	}
	if opts.Dividends {
		params.Set("dividends", "true")
	}
	if c.token != "" {
		params.Set("token", c.token)
	}
	return params
}

type quotePayload struct {
	Symbol                     string   `json:"symbol"`
	ShortName                  string   `json:"shortName"`
	LongName                   string   `json:"longName"`
	Currency                   string   `json:"currency"`
	RegularMarketPrice         float64  `json:"regularMarketPrice"`
	RegularMarketPreviousClose float64  `json:"regularMarketPreviousClose"`
	RegularMarketOpen          float64  `json:"regularMarketOpen"`
	RegularMarketDayHigh       float64  `json:"regularMarketDayHigh"`
	RegularMarketDayLow        float64  `json:"regularMarketDayLow"`
	RegularMarketChange        float64  `json:"regularMarketChange"`
	RegularMarketChangePercent float64  `json:"regularMarketChangePercent"`
	RegularMarketVolume        int64    `json:"regularMarketVolume"`
	MarketCap                  float64  `json:"marketCap"`
	LogoURL                    string   `json:"logourl"`
	PriceEarnings              *float64 `json:"priceEarnings"`
	EarningsPerShare           *float64 `json:"earningsPerShare"`
	DividendYield              *float64 `json:"dividendYield"`
	DividendsData              struct {
		CashDividends []struct {
			PaymentDate string  `json:"paymentDate"`
			ApprovedOn  string  `json:"approvedOn"`
			Rate        float64 `json:"rate"`
			TypeLabel   string  `json:"typeLabel"`
			RelatedTo   string  `json:"relatedTo"`
		} `json:"cashDividends"`
	} `json:"dividendsData"`
	HistoricalDataPrice []struct {
		Date   int64   `json:"date"`
		Open   float64 `json:"open"`
		High   float64 `json:"high"`
		Low    float64 `json:"low"`
		Close  float64 `json:"close"`
		Volume int64   `json:"volume"`
	} `json:"historicalDataPrice"`
}

type quoteResponse struct {
	Results []quotePayload `json:"results"`
}

// get performs one request against /quote/{tickers} and decodes it
func (c *Client) get(ctx context.Context, tickers string, params url.Values) (*quoteResponse, error) {
	reqURL := fmt.Sprintf("%s/quote/%s", c.baseURL, url.PathEscape(tickers))
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, marketdata.Transient("brapi", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decoding
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", tickers, marketdata.ErrNotFound)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, marketdata.Transient("brapi", fmt.Errorf("status %d", resp.StatusCode))
	default:
		return nil, fmt.Errorf("brapi API returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var parsed quoteResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return &parsed, nil
}

// Quotes fetches one sub-batch in a single call with no retry
func (c *Client) Quotes(ctx context.Context, tickers []string, opts marketdata.Options) ([]marketdata.Quote, error) {
	if len(tickers) == 0 {
		return []marketdata.Quote{}, nil
	}

	parsed, err := c.get(ctx, strings.Join(tickers, ","), c.params(opts))
	if err != nil {
		return nil, err
	}

	quotes := make([]marketdata.Quote, 0, len(parsed.Results))
	for _, raw := range parsed.Results {
		quotes = append(quotes, normalize(raw))
	}
	return quotes, nil
}

// Quote fetches one ticker with bounded retry and linear backoff.
// Transient failures (timeouts, 5xx, rate limits) are retried; anything
// else, including not-found, fails immediately.
func (c *Client) Quote(ctx context.Context, ticker string, opts marketdata.Options) (marketdata.Quote, error) {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			wait := time.Duration(attempt) * time.Second
			c.log.Warn().
				Err(lastErr).
				Str("ticker", ticker).
				Int("attempt", attempt+1).
				Dur("wait", wait).
				Msg("Retrying single quote")
			select {
			case <-ctx.Done():
				return marketdata.Quote{}, ctx.Err()
			case <-time.After(wait):
			}
		}

		parsed, err := c.get(ctx, ticker, c.params(opts))
		if err != nil {
			lastErr = err
			if marketdata.IsTransient(err) {
				continue
			}
			return marketdata.Quote{}, err
		}
		if len(parsed.Results) == 0 {
			return marketdata.Quote{}, fmt.Errorf("%s: %w", ticker, marketdata.ErrNotFound)
		}
		return normalize(parsed.Results[0]), nil
	}

	return marketdata.Quote{}, fmt.Errorf("failed after %d attempts: %w", maxAttempts, lastErr)
}

// Historical fetches the OHLCV series for one ticker. A rate-limit
// rejection yields an empty series rather than an error so a single
// throttled asset cannot sink a whole valuation request.
func (c *Client) Historical(ctx context.Context, ticker, rng, interval string) ([]marketdata.Candle, error) {
	params := c.params(marketdata.Options{})
	if rng == "" {
		rng = "1mo"
	}
	if interval == "" {
		interval = "1d"
	}
	params.Set("range", rng)
	params.Set("interval", interval)

	parsed, err := c.get(ctx, ticker, params)
	if err != nil {
		if marketdata.IsTransient(err) {
			c.log.Warn().Err(err).Str("ticker", ticker).Msg("Historical fetch throttled, returning empty series")
			return []marketdata.Candle{}, nil
		}
		return nil, err
	}
	if len(parsed.Results) == 0 {
		return nil, fmt.Errorf("no historical data for %s: %w", ticker, marketdata.ErrNotFound)
	}

	raw := parsed.Results[0].HistoricalDataPrice
	candles := make([]marketdata.Candle, 0, len(raw))
	for _, bar := range raw {
		candles = append(candles, marketdata.Candle{
			Date:   time.Unix(bar.Date, 0).UTC(),
			Open:   bar.Open,
			High:   bar.High,
			Low:    bar.Low,
			Close:  bar.Close,
			Volume: bar.Volume,
		})
	}
	return candles, nil
}

// Dividends fetches cash dividend history for the last N years
func (c *Client) Dividends(ctx context.Context, ticker string, years int) ([]marketdata.Dividend, error) {
	if years <= 0 {
		years = 5
	}
	params := c.params(marketdata.Options{Dividends: true})
	params.Set("range", fmt.Sprintf("%dy", years))
	params.Set("interval", "1mo")

	parsed, err := c.get(ctx, ticker, params)
	if err != nil {
		return nil, err
	}
	if len(parsed.Results) == 0 {
		return []marketdata.Dividend{}, nil
	}

	raw := parsed.Results[0].DividendsData.CashDividends
	divs := make([]marketdata.Dividend, 0, len(raw))
	for _, d := range raw {
		date := d.PaymentDate
		if date == "" {
			date = d.ApprovedOn
		}
		kind := d.TypeLabel
		if kind == "" {
			kind = d.RelatedTo
		}
		divs = append(divs, marketdata.Dividend{
			Date:  date,
			Value: d.Rate,
			Type:  kind,
		})
	}
	return divs, nil
}

// SearchResult is one match from the ticker search endpoint
type SearchResult struct {
	Ticker string  `json:"stock"`
	Name   string  `json:"name"`
	Close  float64 `json:"close"`
	Change float64 `json:"change"`
	Logo   string  `json:"logo"`
}

// Search looks up tickers by name or symbol fragment
func (c *Client) Search(ctx context.Context, query string) ([]SearchResult, error) {
	params := url.Values{}
	params.Set("search", query)
	if c.token != "" {
		params.Set("token", c.token)
	}

	reqURL := fmt.Sprintf("%s/quote/list?%s", c.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, marketdata.Transient("brapi", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("brapi API returned status %d", resp.StatusCode)
	}

	var parsed struct {
		Stocks []SearchResult `json:"stocks"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return parsed.Stocks, nil
}

// normalize maps the provider's field names onto the shared Quote shape
func normalize(raw quotePayload) marketdata.Quote {
	return marketdata.Quote{
		Ticker:        raw.Symbol,
		Name:          raw.ShortName,
		Currency:      orDefault(raw.Currency, "BRL"),
		Price:         raw.RegularMarketPrice,
		PreviousClose: raw.RegularMarketPreviousClose,
		Open:          raw.RegularMarketOpen,
		High:          raw.RegularMarketDayHigh,
		Low:           raw.RegularMarketDayLow,
		Change:        raw.RegularMarketChange,
		ChangePercent: raw.RegularMarketChangePercent,
		Volume:        raw.RegularMarketVolume,
		MarketCap:     raw.MarketCap,
		LogoURL:       raw.LogoURL,
		PERatio:       raw.PriceEarnings,
		EPS:           raw.EarningsPerShare,
		DividendYield: raw.DividendYield,
		RetrievedAt:   time.Now(),
		Source:        marketdata.SourceBrapi,
	}
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
