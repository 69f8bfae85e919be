package marketdata

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/phuslu/log"

	"equity_valuation/pkg/core/calc"
)

const (
	// QuoteTTL is how long a fetched price is served without asking again.
	QuoteTTL = 5 * time.Minute

	staleTTL = 24 * time.Hour
)

// exchangeCurrency maps an exchange suffix to its trading currency.
var exchangeCurrency = map[string]string{
	"NSE":   "INR",
	"BSE":   "INR",
	"NS":    "INR",
	"BO":    "INR",
	"US":    "USD",
	"LSE":   "GBP",
	"XETRA": "EUR",
	"PA":    "EUR",
	"INDX":  "INR",
}

// Price is the last traded price of a symbol.
type Price struct {
	Symbol   string    `json:"symbol"`
	Value    float64   `json:"value"`
	Currency string    `json:"currency"`
	AsOf     time.Time `json:"as_of"`
	Stale    bool      `json:"stale"`
}

// QuoteService serves last prices from a short-lived cache. When the
// provider fails, the last known price is returned marked stale.
type QuoteService struct {
	client *Client
	fresh  *cache.Cache
	stale  *cache.Cache
}

// NewQuoteService wraps client with the quote caches.
func NewQuoteService(client *Client) *QuoteService {
	return &QuoteService{
		client: client,
		fresh:  cache.New(QuoteTTL, 2*QuoteTTL),
		stale:  cache.New(staleTTL, time.Hour),
	}
}

// LastPrice returns the latest price for symbol.
func (s *QuoteService) LastPrice(ctx context.Context, symbol string) (Price, error) {
	key := strings.ToUpper(strings.TrimSpace(symbol))
	if p, found := s.fresh.Get(key); found {
		return p.(Price), nil
	}

	q, err := s.client.GetRealTimeQuote(ctx, key)
	if err == nil && q.Close <= 0 {
		err = fmt.Errorf("%w: no last price for %s", ErrNoData, key)
	}
	if err != nil {
		if p, found := s.stale.Get(key); found {
			log.Warn().Str("symbol", key).Err(err).Msg("[MARKETDATA] quote failed, serving stale price")
			price := p.(Price)
			price.Stale = true
			return price, nil
		}
		return Price{}, err
	}

	asOf := time.Now().UTC()
	if q.Timestamp > 0 {
		asOf = time.Unix(q.Timestamp, 0).UTC()
	}
	price := Price{Symbol: key, Value: q.Close, Currency: CurrencyFor(key), AsOf: asOf}
	s.fresh.Set(key, price, cache.DefaultExpiration)
	s.stale.Set(key, price, cache.DefaultExpiration)
	return price, nil
}

// LastPrices fetches several symbols. Symbols that fail are left out and
// logged; the caller values them at cost.
func (s *QuoteService) LastPrices(ctx context.Context, symbols []string) map[string]Price {
	out := make(map[string]Price, len(symbols))
	for _, sym := range symbols {
		p, err := s.LastPrice(ctx, sym)
		if err != nil {
			log.Warn().Str("symbol", sym).Err(err).Msg("[MARKETDATA] no price")
			continue
		}
		out[sym] = p
	}
	return out
}

// Profile fetches fundamentals and the last price for a valuation run.
func (s *QuoteService) Profile(ctx context.Context, symbol string) (*ProviderProfile, error) {
	f, err := s.client.GetFundamentals(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("fundamentals %s: %w", symbol, err)
	}
	w, info, err := f.Statements(symbol)
	if err != nil {
		return nil, err
	}
	if p, err := s.LastPrice(ctx, symbol); err == nil {
		info.CurrentPrice = p.Value
		w.Meta[calc.MetaCurrentPrice] = p.Value
	} else {
		log.Warn().Str("symbol", symbol).Err(err).Msg("[MARKETDATA] profile without price")
	}
	return &ProviderProfile{CompanyInfo: info, Workbook: w}, nil
}

// CurrencyFor guesses the trading currency from the exchange suffix,
// defaulting to INR.
func CurrencyFor(symbol string) string {
	if i := strings.LastIndex(symbol, "."); i >= 0 {
		if ccy, ok := exchangeCurrency[strings.ToUpper(symbol[i+1:])]; ok {
			return ccy
		}
	}
	return "INR"
}
