// Package market provides the stock-quote collaborator. Every failure mode
// (missing credentials, rate limiting, unknown symbols, transport errors)
// is represented as a structured soft error on the Quote value so the
// answer-formatting stage can always render a human-readable message.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Quote is the structured result of a GLOBAL_QUOTE lookup. Err is set
// instead of returning a Go error for anything the upstream reports.
type Quote struct {
	Symbol           string `json:"symbol"`
	Price            string `json:"price,omitempty"`
	Change           string `json:"change,omitempty"`
	ChangePercent    string `json:"change_percent,omitempty"`
	PreviousClose    string `json:"previous_close,omitempty"`
	Volume           string `json:"volume,omitempty"`
	LatestTradingDay string `json:"latest_trading_day,omitempty"`
	Err              string `json:"error,omitempty"`
}

// Failed reports whether the lookup produced a soft error.
func (q Quote) Failed() bool { return q.Err != "" }

// QuoteProvider is the surface the finance pipeline depends on.
type QuoteProvider interface {
	GlobalQuote(ctx context.Context, symbol string) Quote
}

// Config holds Alpha Vantage client settings.
type Config struct {
	BaseURL       string        `yaml:"base_url"`
	APIKey        string        `yaml:"api_key"`
	Timeout       time.Duration `yaml:"timeout"`
	RatePerMinute int           `yaml:"rate_per_minute"`
}

// Client fetches quotes from the Alpha Vantage GLOBAL_QUOTE endpoint.
type Client struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewClient creates an Alpha Vantage client. The free tier allows five
// requests per minute, which is the default ceiling.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://www.alphavantage.co"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	perMinute := cfg.RatePerMinute
	if perMinute <= 0 {
		perMinute = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:     cfg,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
		logger:  logger.With(zap.String("provider", "alpha_vantage")),
	}
}

// alpha vantage nests the payload under "Global Quote" with numbered keys.
type globalQuoteResponse struct {
	GlobalQuote  map[string]string `json:"Global Quote"`
	Note         string            `json:"Note"`
	ErrorMessage string            `json:"Error Message"`
}

// GlobalQuote fetches the latest quote for symbol. It never returns a Go
// error; inspect Quote.Err.
func (c *Client) GlobalQuote(ctx context.Context, symbol string) Quote {
	q := Quote{Symbol: symbol}

	if c.cfg.APIKey == "" {
		q.Err = "missing Alpha Vantage API key"
		return q
	}

	if err := c.limiter.Wait(ctx); err != nil {
		q.Err = fmt.Sprintf("rate limiter interrupted: %v", err)
		return q
	}

	params := url.Values{}
	params.Set("function", "GLOBAL_QUOTE")
	params.Set("symbol", symbol)
	params.Set("apikey", c.cfg.APIKey)
	endpoint := fmt.Sprintf("%s/query?%s", strings.TrimRight(c.cfg.BaseURL, "/"), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		q.Err = fmt.Sprintf("failed to build quote request: %v", err)
		return q
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("quote request failed", zap.String("symbol", symbol), zap.Error(err))
		q.Err = fmt.Sprintf("quote request failed: %v", err)
		return q
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		q.Err = fmt.Sprintf("failed to read quote response: %v", err)
		return q
	}
	if resp.StatusCode != http.StatusOK {
		q.Err = fmt.Sprintf("quote request failed: status=%d", resp.StatusCode)
		return q
	}

	var parsed globalQuoteResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		q.Err = fmt.Sprintf("unexpected quote response: %v", err)
		return q
	}

	switch {
	case parsed.Note != "":
		q.Err = fmt.Sprintf("rate limited by Alpha Vantage: %s", parsed.Note)
	case parsed.ErrorMessage != "":
		q.Err = parsed.ErrorMessage
	case len(parsed.GlobalQuote) == 0:
		q.Err = fmt.Sprintf("no quote data available for %s", symbol)
	default:
		q.Price = parsed.GlobalQuote["05. price"]
		q.Volume = parsed.GlobalQuote["06. volume"]
		q.LatestTradingDay = parsed.GlobalQuote["07. latest trading day"]
		q.PreviousClose = parsed.GlobalQuote["08. previous close"]
		q.Change = parsed.GlobalQuote["09. change"]
		q.ChangePercent = parsed.GlobalQuote["10. change percent"]
	}
	return q
}
