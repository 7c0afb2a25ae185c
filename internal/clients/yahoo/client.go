package yahoo

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

// Client is a Yahoo Finance quote client. It is the primary quote tier:
// free and with generous limits, but prices only, no fundamentals.
type Client struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewClient creates a new Yahoo Finance client
func NewClient(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		log: log.With().Str("client", "yahoo").Logger(),
	}
}

// YahooSymbol converts a B3 ticker to its Yahoo Finance symbol. B3
// listings carry the .SA suffix on Yahoo; anything already suffixed is
// used as-is.
func YahooSymbol(ticker string) string {
	ticker = marketdata.NormalizeTicker(ticker)
	if strings.Contains(ticker, ".SA") {
		return ticker
	}
	return ticker + ".SA"
}

type quoteResponse struct {
	QuoteResponse struct {
		Result []struct {
			Symbol                     string  `json:"symbol"`
			ShortName                  string  `json:"shortName"`
			LongName                   string  `json:"longName"`
			Currency                   string  `json:"currency"`
			RegularMarketPrice         float64 `json:"regularMarketPrice"`
			RegularMarketPreviousClose float64 `json:"regularMarketPreviousClose"`
			RegularMarketOpen          float64 `json:"regularMarketOpen"`
			RegularMarketDayHigh       float64 `json:"regularMarketDayHigh"`
			RegularMarketDayLow        float64 `json:"regularMarketDayLow"`
			RegularMarketChange        float64 `json:"regularMarketChange"`
			RegularMarketChangePercent float64 `json:"regularMarketChangePercent"`
			RegularMarketVolume        int64   `json:"regularMarketVolume"`
			MarketCap                  float64 `json:"marketCap"`
		} `json:"result"`
		Error interface{} `json:"error"`
	} `json:"quoteResponse"`
}

// Quotes fetches the whole ticker set in a single call
func (c *Client) Quotes(ctx context.Context, tickers []string) ([]marketdata.Quote, error) {
	if len(tickers) == 0 {
		return []marketdata.Quote{}, nil
	}

	// Yahoo symbol -> requested ticker, to map results back
	symbols := make([]string, 0, len(tickers))
	originals := map[string]string{}
	for _, t := range tickers {
		sym := YahooSymbol(t)
		symbols = append(symbols, sym)
		originals[sym] = marketdata.NormalizeTicker(t)
	}

	params := url.Values{}
	params.Set("symbols", strings.Join(symbols, ","))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// A browser-like User-Agent avoids 403 rejections
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, marketdata.Transient("yahoo", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, marketdata.Transient("yahoo", fmt.Errorf("status %d: %s", resp.StatusCode, string(body)))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var parsed quoteResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if parsed.QuoteResponse.Error != nil {
		return nil, fmt.Errorf("yahoo API error: %v", parsed.QuoteResponse.Error)
	}

	now := time.Now()
	quotes := make([]marketdata.Quote, 0, len(parsed.QuoteResponse.Result))
	for _, q := range parsed.QuoteResponse.Result {
		ticker, ok := originals[q.Symbol]
		if !ok {
			ticker = strings.TrimSuffix(q.Symbol, ".SA")
		}
		name := q.ShortName
		if name == "" {
			name = q.LongName
		}
		quotes = append(quotes, marketdata.Quote{
			Ticker:        ticker,
			Name:          name,
			Currency:      q.Currency,
			Price:         q.RegularMarketPrice,
			PreviousClose: q.RegularMarketPreviousClose,
			Open:          q.RegularMarketOpen,
			High:          q.RegularMarketDayHigh,
			Low:           q.RegularMarketDayLow,
			Change:        q.RegularMarketChange,
			ChangePercent: q.RegularMarketChangePercent,
			Volume:        q.RegularMarketVolume,
			MarketCap:     q.MarketCap,
			RetrievedAt:   now,
			Source:        marketdata.SourceYahoo,
		})
	}

	c.log.Debug().Int("requested", len(tickers)).Int("resolved", len(quotes)).Msg("Fetched batch quotes")
	return quotes, nil
}
