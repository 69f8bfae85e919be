package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equity_valuation/pkg/core/calc"
)

// fakeProvider serves /eod closes per symbol and /real-time quotes.
type fakeProvider struct {
	closes  map[string]float64
	quote   float64
	failRT  atomic.Bool
	hits    atomic.Int32
	lastURL atomic.Value
}

func (f *fakeProvider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.hits.Add(1)
	f.lastURL.Store(r.URL.String())
	switch {
	case strings.HasPrefix(r.URL.Path, "/eod/"):
		sym := strings.TrimPrefix(r.URL.Path, "/eod/")
		px, ok := f.closes[sym]
		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"date": "2024-03-27", "close": px - 1},
			{"date": "2024-03-28", "close": px, "adjusted_close": px},
		})
	case strings.HasPrefix(r.URL.Path, "/real-time/"):
		if f.failRT.Load() {
			http.Error(w, "upstream down", http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code": strings.TrimPrefix(r.URL.Path, "/real-time/"), "close": f.quote, "timestamp": 1711584000,
		})
	default:
		http.NotFound(w, r)
	}
}

func newFake(t *testing.T, f *fakeProvider) *Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return NewClient("test-key", WithBaseURL(srv.URL), WithRateLimit(1000))
}

func TestGetEODSendsQueryAndParsesDates(t *testing.T) {
	f := &fakeProvider{closes: map[string]float64{"TCS.NSE": 3900}}
	c := newFake(t, f)

	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 28, 0, 0, 0, 0, time.UTC)
	bars, err := c.GetEOD(context.Background(), "TCS.NSE", WithDateRange(from, to), WithPeriod("w"))
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, to, bars[1].Date)
	assert.Equal(t, 3900.0, bars[1].Close)

	u := f.lastURL.Load().(string)
	for _, want := range []string{"api_token=test-key", "fmt=json", "period=w", "order=a", "from=2024-03-01", "to=2024-03-28"} {
		assert.Contains(t, u, want)
	}
}

func TestAPIErrorCarriesStatus(t *testing.T) {
	c := newFake(t, &fakeProvider{})

	_, err := c.GetEOD(context.Background(), "NOPE.NSE")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "/eod/NOPE.NSE", apiErr.Endpoint)
}

func TestCancelledContextIsRateLimitError(t *testing.T) {
	c := NewClient("k", WithBaseURL("http://127.0.0.1:0"), WithRateLimit(1))
	// drain the single token so Wait has to block
	require.True(t, c.limiter.Allow())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.GetRealTimeQuote(ctx, "TCS.NSE")
	var rlErr *RateLimitError
	assert.True(t, errors.As(err, &rlErr))
}

func TestKeylessClientMakesNoRequests(t *testing.T) {
	fp := &fakeProvider{quote: 10}
	srv := httptest.NewServer(fp)
	defer srv.Close()

	c := NewClient("", WithBaseURL(srv.URL))
	assert.False(t, c.Enabled())
	_, err := NewQuoteService(c).LastPrice(context.Background(), "TCS.NSE")
	assert.ErrorIs(t, err, ErrNoData)
	assert.Zero(t, fp.hits.Load())
}

func fundamentalsFixture() *FundamentalsResponse {
	year := func(revenue, netIncome any) map[string]interface{} {
		return map[string]interface{}{
			"totalRevenue": revenue, "ebitda": "3000000000", "ebit": "2500000000",
			"netIncome": netIncome, "incomeTaxExpense": "500000000", "interestExpense": nil,
		}
	}
	return &FundamentalsResponse{
		General:    &GeneralInfo{Name: "Acme Ltd", Sector: "Industrials", Industry: "Machinery"},
		Highlights: &Highlights{MarketCapitalization: 620e7},
		Financials: &Financials{
			IncomeStatement: &FinancialStatement{Yearly: map[string]map[string]interface{}{
				"2019-03-31": year("8000000000", "900000000"),
				"2020-03-31": year("10000000000", "1000000000"),
				"2021-03-31": year("11000000000", "1100000000"),
				"2022-03-31": year("12345678900", "1200000000"),
				"2023-03-31": year("13000000000", "1300000000"),
				"2024-03-31": {"totalRevenue": nil, "ebitda": "0"},
			}},
			BalanceSheet: &FinancialStatement{Yearly: map[string]map[string]interface{}{
				"2023-03-31": {"totalStockholderEquity": "5000000000", "commonStockSharesOutstanding": "100000000", "cash": "1000000000"},
			}},
			CashFlow: &FinancialStatement{Yearly: map[string]map[string]interface{}{}},
		},
	}
}

func TestFundamentalsStatements(t *testing.T) {
	w, info, err := fundamentalsFixture().Statements("ACME.NSE")
	require.NoError(t, err)

	assert.Equal(t, "Acme Ltd", info.Name)
	assert.Equal(t, "ACME.NSE", info.Ticker)
	assert.Equal(t, calc.SourceProvider, w.Source)
	assert.Equal(t, 620.0, w.Meta[calc.MetaMarketCap])

	assert.Equal(t, []string{"Mar-2020", "Mar-2021", "Mar-2022", "Mar-2023"}, w.Years, "empty year dropped, last four kept")
	assert.Equal(t, []float64{1000, 1100, 1234.57, 1300}, w.PnL.Raw(calc.LabelSales))
	assert.Equal(t, []float64{300, 300, 300, 300}, w.PnL.Raw(calc.LabelEBITDA))
	assert.False(t, w.PnL.Has(calc.LabelInterest), "all-null rows are left out")

	assert.Equal(t, []float64{0, 0, 0, 500}, w.BalanceSheet.Raw(calc.LabelEquityCapital), "read at the income statement years")
	assert.Equal(t, []float64{0, 0, 0, 1e8}, w.BalanceSheet.Raw(calc.LabelShares), "share counts stay raw")
	assert.Equal(t, []float64{0, 0, 0, 100}, w.BalanceSheet.Raw(calc.LabelCash))
	assert.Len(t, w.BalanceSheet.Gaps(), 9, "three missing years on three rows")
	assert.Equal(t, 0, w.CashFlow.Len())

	in := w.CalcInput()
	assert.IsType(t, calc.ProviderDerived{}, in.Derivation)
}

func TestFundamentalsAlignsStatementsByYear(t *testing.T) {
	f := fundamentalsFixture()
	f.Financials.BalanceSheet = &FinancialStatement{Yearly: map[string]map[string]interface{}{
		"2021-03-31": {"totalStockholderEquity": "2100000000"},
		"2022-03-31": {"totalStockholderEquity": "2200000000"},
		"2023-03-31": {"totalStockholderEquity": "2300000000"},
		"2024-03-31": {"totalStockholderEquity": "2400000000"},
	}}
	f.Financials.CashFlow = &FinancialStatement{Yearly: map[string]map[string]interface{}{
		"2020-03-31": {"changeInCash": "10000000"},
		"2022-03-31": {"changeInCash": "30000000"},
	}}

	w, _, err := f.Statements("ACME.NSE")
	require.NoError(t, err)

	assert.Equal(t, []string{"Mar-2020", "Mar-2021", "Mar-2022", "Mar-2023"}, w.Years)
	assert.Equal(t, []float64{0, 210, 220, 230}, w.BalanceSheet.Raw(calc.LabelEquityCapital), "2024 has no income statement column")
	assert.Equal(t, []float64{1, 0, 3, 0}, w.CashFlow.Raw(calc.LabelCFNet))
	assert.Len(t, w.CashFlow.Gaps(), 2)
}

func TestFundamentalsWithoutFinancials(t *testing.T) {
	_, _, err := (&FundamentalsResponse{}).Statements("X")
	assert.True(t, errors.Is(err, ErrNoData))
}

func TestPriceSeries(t *testing.T) {
	f := &fakeProvider{closes: map[string]float64{"NSEI.INDX": 22000, "TCS.NSE": 3900}}
	c := newFake(t, f)

	s, err := c.PriceSeries(context.Background(), "nifty50", "2y")
	require.NoError(t, err)
	assert.Equal(t, "NIFTY50", s.Ticker)
	assert.Equal(t, "2Y", s.Range)
	assert.Equal(t, "1wk", s.Interval)
	assert.Contains(t, f.lastURL.Load().(string), "period=w")
	require.Len(t, s.Points, 2)
	assert.Equal(t, SeriesPoint{Date: "2024-03-28", Close: 22000}, s.Points[1])
	assert.Equal(t, 21999.0, s.Points[0].Close, "close used when adjusted close is absent")

	s, err = c.PriceSeries(context.Background(), "tcs.nse", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultRange, s.Range)
	assert.Equal(t, "1d", s.Interval)

	s, err = c.PriceSeries(context.Background(), "TCS.NSE", "MAX")
	require.NoError(t, err)
	assert.Equal(t, "1mo", s.Interval)
	assert.NotContains(t, f.lastURL.Load().(string), "from=")

	_, err = c.PriceSeries(context.Background(), "TCS.NSE", "7Y")
	assert.True(t, errors.Is(err, ErrUnsupportedRange))
}

func TestPriceSeriesEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()
	c := NewClient("k", WithBaseURL(srv.URL))

	_, err := c.PriceSeries(context.Background(), "TCS.NSE", "1M")
	assert.True(t, errors.Is(err, ErrNoData))
}

func TestQuoteServiceCachesAndServesStale(t *testing.T) {
	f := &fakeProvider{quote: 3900}
	svc := NewQuoteService(newFake(t, f))
	ctx := context.Background()

	p, err := svc.LastPrice(ctx, "tcs.nse")
	require.NoError(t, err)
	assert.Equal(t, 3900.0, p.Value)
	assert.Equal(t, "INR", p.Currency)
	assert.False(t, p.Stale)

	_, err = svc.LastPrice(ctx, "TCS.NSE")
	require.NoError(t, err)
	assert.Equal(t, int32(1), f.hits.Load(), "second call served from cache")

	svc.fresh.Flush()
	f.failRT.Store(true)
	p, err = svc.LastPrice(ctx, "TCS.NSE")
	require.NoError(t, err)
	assert.True(t, p.Stale)
	assert.Equal(t, 3900.0, p.Value)

	_, err = svc.LastPrice(ctx, "INFY.NSE")
	assert.Error(t, err)
}

func TestCurrencyFor(t *testing.T) {
	assert.Equal(t, "USD", CurrencyFor("AAPL.US"))
	assert.Equal(t, "INR", CurrencyFor("TCS.NSE"))
	assert.Equal(t, "GBP", CurrencyFor("VOD.LSE"))
	assert.Equal(t, "INR", CurrencyFor("RELIANCE"))
}

func TestFXRateResolution(t *testing.T) {
	f := &fakeProvider{closes: map[string]float64{
		"USDINR.FOREX": 80,
		"GBPINR.FOREX": 100,
		"EURUSD.FOREX": 1.1,
		"USDGBP.FOREX": 0.8,
	}}
	fx := NewFXService(newFake(t, f), nil)
	ctx := context.Background()
	day := time.Date(2024, 3, 28, 15, 0, 0, 0, time.UTC)

	r, err := fx.Rate(ctx, "inr", "INR", day)
	require.NoError(t, err)
	assert.True(t, r.Equal(decimal.NewFromInt(1)), "identity")
	assert.Equal(t, int32(0), f.hits.Load())

	r, err = fx.Rate(ctx, "USD", "INR", day)
	require.NoError(t, err)
	assert.True(t, r.Equal(decimal.NewFromInt(80)), "direct: %s", r)

	r, err = fx.Rate(ctx, "INR", "GBP", day)
	require.NoError(t, err)
	assert.Equal(t, "0.01", r.String(), "inverse")

	r, err = fx.Rate(ctx, "EUR", "GBP", day)
	require.NoError(t, err)
	assert.Equal(t, "0.88", r.String(), "triangulated through USD")

	before := f.hits.Load()
	_, err = fx.Rate(ctx, "USD", "INR", day)
	require.NoError(t, err)
	assert.Equal(t, before, f.hits.Load(), "served from store")

	_, err = fx.Rate(ctx, "JPY", "CHF", day)
	assert.True(t, errors.Is(err, ErrFXUnavailable))
}
