// Package marketdata talks to an EODHD-style market data provider: price
// history, real-time quotes, fundamentals and FX pairs.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/phuslu/log"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the provider's REST root.
	DefaultBaseURL = "https://eodhd.com/api"

	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultRateLimit is requests per second.
	DefaultRateLimit = 10

	dateLayout = "2006-01-02"
)

// Client is a market data API client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithRateLimit sets a custom rate limit. Non-positive values keep the default.
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		if requestsPerSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
		}
	}
}

// NewClient creates a new client.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// QueryOption sets an optional /eod parameter.
type QueryOption func(*queryParams)

type queryParams struct {
	From   time.Time
	To     time.Time
	Period string // d, w, m
	Order  string // a, d
}

// WithDateRange bounds the query. Zero times are omitted.
func WithDateRange(from, to time.Time) QueryOption {
	return func(p *queryParams) {
		p.From = from
		p.To = to
	}
}

// WithPeriod sets the bar size (d, w or m).
func WithPeriod(period string) QueryOption {
	return func(p *queryParams) {
		p.Period = period
	}
}

// WithOrder sets the order (a ascending, d descending).
func WithOrder(order string) QueryOption {
	return func(p *queryParams) {
		p.Order = order
	}
}

// Enabled reports whether the client has an API key.
func (c *Client) Enabled() bool { return c.apiKey != "" }

func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	if !c.Enabled() {
		return ErrNoAPIKey
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return &RateLimitError{RetryAfter: time.Second}
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("api_token", c.apiKey)
	params.Set("fmt", "json")

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	log.Debug().Str("url", c.baseURL+path).Msg("[MARKETDATA] request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Endpoint:   path,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// GetEOD retrieves end-of-day bars. Symbol format is TICKER.EXCHANGE.
func (c *Client) GetEOD(ctx context.Context, symbol string, opts ...QueryOption) (EODResponse, error) {
	params := &queryParams{
		Period: "d",
		Order:  "a",
	}
	for _, opt := range opts {
		opt(params)
	}

	q := url.Values{}
	if !params.From.IsZero() {
		q.Set("from", params.From.Format(dateLayout))
	}
	if !params.To.IsZero() {
		q.Set("to", params.To.Format(dateLayout))
	}
	if params.Period != "" {
		q.Set("period", params.Period)
	}
	if params.Order != "" {
		q.Set("order", params.Order)
	}

	var result EODResponse
	if err := c.get(ctx, "/eod/"+url.PathEscape(symbol), q, &result); err != nil {
		return nil, err
	}
	for i := range result {
		if t, err := time.Parse(dateLayout, result[i].DateStr); err == nil {
			result[i].Date = t
		}
	}
	return result, nil
}

// GetFundamentals retrieves the company profile and annual statements.
func (c *Client) GetFundamentals(ctx context.Context, symbol string) (*FundamentalsResponse, error) {
	var result FundamentalsResponse
	if err := c.get(ctx, "/fundamentals/"+url.PathEscape(symbol), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetRealTimeQuote retrieves the latest quote.
func (c *Client) GetRealTimeQuote(ctx context.Context, symbol string) (*Quote, error) {
	var result Quote
	if err := c.get(ctx, "/real-time/"+url.PathEscape(symbol), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
