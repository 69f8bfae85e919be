package marketdata

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNoData is returned when the provider answers but has nothing for the symbol.
	ErrNoData = errors.New("no market data")
	// ErrFXUnavailable is returned when no resolution path yields a rate.
	ErrFXUnavailable = errors.New("fx rate not available")
	// ErrUnsupportedRange is returned for a price-series range outside 1W..MAX.
	ErrUnsupportedRange = errors.New("unsupported range")
	// ErrNoAPIKey is returned by a client built without a key. It wraps
	// ErrNoData so callers treat it as a missing price.
	ErrNoAPIKey = fmt.Errorf("%w: provider api key not configured", ErrNoData)
)

// APIError represents a non-200 answer from the provider.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("market data API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// RateLimitError is returned when the client-side limiter gives up waiting.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("market data rate limit exceeded, retry after %v", e.RetryAfter)
}
