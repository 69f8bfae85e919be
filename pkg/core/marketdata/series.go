package marketdata

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// DefaultRange is used when the caller leaves the range empty.
const DefaultRange = "1Y"

type rangeSpec struct {
	years, months, days int
	interval            string // label reported back to the caller
	period              string // provider bar size
}

var ranges = map[string]rangeSpec{
	"1W":  {days: 7, interval: "1d", period: "d"},
	"1M":  {months: 1, interval: "1d", period: "d"},
	"3M":  {months: 3, interval: "1d", period: "d"},
	"6M":  {months: 6, interval: "1d", period: "d"},
	"1Y":  {years: 1, interval: "1d", period: "d"},
	"2Y":  {years: 2, interval: "1wk", period: "w"},
	"3Y":  {years: 3, interval: "1wk", period: "w"},
	"5Y":  {years: 5, interval: "1wk", period: "w"},
	"10Y": {years: 10, interval: "1mo", period: "m"},
	"MAX": {interval: "1mo", period: "m"},
}

// Benchmarks maps index aliases to provider symbols.
var Benchmarks = map[string]string{
	"nifty50":  "NSEI.INDX",
	"sensex":   "BSESN.INDX",
	"nifty500": "CRSLDX.INDX",
}

// SeriesPoint is one close.
type SeriesPoint struct {
	Date  string  `json:"date"`
	Close float64 `json:"close"`
}

// Series is a closing-price history for charting.
type Series struct {
	Ticker   string        `json:"ticker"`
	Range    string        `json:"range"`
	Interval string        `json:"interval"`
	Points   []SeriesPoint `json:"points"`
}

// ResolveSymbol expands benchmark aliases and upper-cases everything else.
func ResolveSymbol(symbol string) string {
	symbol = strings.TrimSpace(symbol)
	if s, ok := Benchmarks[strings.ToLower(symbol)]; ok {
		return s
	}
	return strings.ToUpper(symbol)
}

// PriceSeries returns closes over the named range ("1W".."MAX"), daily up to
// a year, weekly up to five years and monthly beyond.
func (c *Client) PriceSeries(ctx context.Context, symbol, rng string) (*Series, error) {
	rng = strings.ToUpper(strings.TrimSpace(rng))
	if rng == "" {
		rng = DefaultRange
	}
	window, ok := ranges[rng]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedRange, rng)
	}

	opts := []QueryOption{WithPeriod(window.period), WithOrder("a")}
	if rng != "MAX" {
		to := time.Now().UTC()
		from := to.AddDate(-window.years, -window.months, -window.days)
		opts = append(opts, WithDateRange(from, to))
	}

	bars, err := c.GetEOD(ctx, ResolveSymbol(symbol), opts...)
	if err != nil {
		return nil, err
	}

	points := make([]SeriesPoint, 0, len(bars))
	for _, b := range bars {
		px := b.AdjustedClose
		if px == 0 {
			px = b.Close
		}
		if px == 0 || b.DateStr == "" {
			continue
		}
		points = append(points, SeriesPoint{Date: b.DateStr, Close: px})
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: no price points for %s", ErrNoData, symbol)
	}

	return &Series{
		Ticker:   strings.ToUpper(strings.TrimSpace(symbol)),
		Range:    rng,
		Interval: window.interval,
		Points:   points,
	}, nil
}
