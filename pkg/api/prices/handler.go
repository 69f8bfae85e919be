// Package prices serves closing-price histories and last quotes.
package prices

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"equity_valuation/pkg/api/respond"
	"equity_valuation/pkg/core/marketdata"
)

// SeriesSource returns closing prices over a named range.
type SeriesSource interface {
	PriceSeries(ctx context.Context, symbol, rng string) (*marketdata.Series, error)
}

// QuoteSource returns the last traded price.
type QuoteSource interface {
	LastPrice(ctx context.Context, symbol string) (marketdata.Price, error)
}

type Handler struct {
	Series SeriesSource
	Quotes QuoteSource
}

func NewHandler(series SeriesSource, quotes QuoteSource) *Handler {
	return &Handler{Series: series, Quotes: quotes}
}

// BenchmarkSeries is a Series tagged with the benchmark alias.
type BenchmarkSeries struct {
	Code     string                   `json:"code"`
	Ticker   string                   `json:"ticker"`
	Range    string                   `json:"range"`
	Interval string                   `json:"interval"`
	Points   []marketdata.SeriesPoint `json:"points"`
}

// HandleSeries serves GET /price-series/{ticker}?range=1Y.
func (h *Handler) HandleSeries(w http.ResponseWriter, r *http.Request) {
	ticker := strings.TrimSpace(chi.URLParam(r, "ticker"))
	if ticker == "" {
		respond.Error(w, http.StatusBadRequest, "Ticker is required")
		return
	}
	s, err := h.Series.PriceSeries(r.Context(), ticker, r.URL.Query().Get("range"))
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, s)
}

// HandleBenchmark serves GET /price-series/benchmark/{code} for the known
// index aliases.
func (h *Handler) HandleBenchmark(w http.ResponseWriter, r *http.Request) {
	code := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "code")))
	symbol, ok := marketdata.Benchmarks[code]
	if !ok {
		respond.Error(w, http.StatusBadRequest, "Unknown benchmark: "+chi.URLParam(r, "code"))
		return
	}
	s, err := h.Series.PriceSeries(r.Context(), code, r.URL.Query().Get("range"))
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, BenchmarkSeries{
		Code:     code,
		Ticker:   symbol,
		Range:    s.Range,
		Interval: s.Interval,
		Points:   s.Points,
	})
}

// HandleQuote serves GET /quote/{ticker}. Stale prices are flagged.
func (h *Handler) HandleQuote(w http.ResponseWriter, r *http.Request) {
	p, err := h.Quotes.LastPrice(r.Context(), chi.URLParam(r, "ticker"))
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, p)
}
