package marketdata

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/phuslu/log"
	"github.com/shopspring/decimal"
)

// USD is the triangulation currency.
const USD = "USD"

// fxLookback covers weekends and holidays when the exact day has no bar.
const fxLookback = 7 * 24 * time.Hour

// fxPrecision is the number of decimals kept on derived rates.
const fxPrecision = 8

// directPairs lists the forex symbols quoted by the provider.
var directPairs = map[[2]string]string{
	{"USD", "INR"}: "USDINR.FOREX",
	{"EUR", "INR"}: "EURINR.FOREX",
	{"GBP", "INR"}: "GBPINR.FOREX",
	{"INR", "USD"}: "INRUSD.FOREX",
}

// FXStore persists resolved rates per (base, quote, day).
type FXStore interface {
	GetRate(ctx context.Context, base, quote string, asOf time.Time) (decimal.Decimal, bool, error)
	PutRate(ctx context.Context, base, quote string, asOf time.Time, rate decimal.Decimal) error
}

// FXService resolves "1 base = ? quote" on a given day.
type FXService struct {
	client *Client
	store  FXStore
}

// NewFXService creates an FX resolver. A nil store falls back to an
// in-process cache.
func NewFXService(client *Client, store FXStore) *FXService {
	if store == nil {
		store = NewCacheFXStore()
	}
	return &FXService{client: client, store: store}
}

// Rate tries, in order: identity, the store, the direct pair, the inverse
// pair, triangulation through USD and finally the generic BASEQUOTE pair.
func (s *FXService) Rate(ctx context.Context, base, quote string, asOf time.Time) (decimal.Decimal, error) {
	base, quote = strings.ToUpper(base), strings.ToUpper(quote)
	day := asOf.UTC().Truncate(24 * time.Hour)
	if base == quote {
		return decimal.NewFromInt(1), nil
	}

	if r, ok, err := s.store.GetRate(ctx, base, quote, day); err != nil {
		log.Warn().Str("pair", base+quote).Err(err).Msg("[FX] store read failed")
	} else if ok {
		return r, nil
	}

	if sym, ok := directPairs[[2]string{base, quote}]; ok {
		if r, ok := s.close(ctx, sym, day); ok {
			return s.put(ctx, base, quote, day, r), nil
		}
	}

	if sym, ok := directPairs[[2]string{quote, base}]; ok {
		if r, ok := s.close(ctx, sym, day); ok && !r.IsZero() {
			inv := decimal.NewFromInt(1).DivRound(r, fxPrecision)
			return s.put(ctx, base, quote, day, inv), nil
		}
	}

	if base != USD && quote != USD {
		r1, err1 := s.Rate(ctx, base, USD, day)
		r2, err2 := s.Rate(ctx, USD, quote, day)
		if err1 == nil && err2 == nil {
			return s.put(ctx, base, quote, day, r1.Mul(r2).Round(fxPrecision)), nil
		}
	}

	if r, ok := s.close(ctx, base+quote+".FOREX", day); ok {
		return s.put(ctx, base, quote, day, r), nil
	}

	return decimal.Zero, fmt.Errorf("%w: %s/%s on %s", ErrFXUnavailable, base, quote, day.Format(dateLayout))
}

// close returns the last close on or before day within the lookback window.
func (s *FXService) close(ctx context.Context, symbol string, day time.Time) (decimal.Decimal, bool) {
	bars, err := s.client.GetEOD(ctx, symbol, WithDateRange(day.Add(-fxLookback), day))
	if err != nil {
		log.Debug().Str("symbol", symbol).Err(err).Msg("[FX] pair lookup failed")
		return decimal.Zero, false
	}
	for i := len(bars) - 1; i >= 0; i-- {
		if bars[i].Close > 0 {
			return decimal.NewFromFloat(bars[i].Close), true
		}
	}
	return decimal.Zero, false
}

func (s *FXService) put(ctx context.Context, base, quote string, day time.Time, rate decimal.Decimal) decimal.Decimal {
	if err := s.store.PutRate(ctx, base, quote, day, rate); err != nil {
		log.Warn().Str("pair", base+quote).Err(err).Msg("[FX] store write failed")
	}
	return rate
}

// CacheFXStore keeps rates in memory for the life of the process.
type CacheFXStore struct {
	c *cache.Cache
}

// NewCacheFXStore creates an empty in-memory store.
func NewCacheFXStore() *CacheFXStore {
	return &CacheFXStore{c: cache.New(cache.NoExpiration, 0)}
}

func fxKey(base, quote string, asOf time.Time) string {
	return fmt.Sprintf("%s-%s-%s", base, quote, asOf.Format(dateLayout))
}

// GetRate implements FXStore.
func (m *CacheFXStore) GetRate(_ context.Context, base, quote string, asOf time.Time) (decimal.Decimal, bool, error) {
	v, found := m.c.Get(fxKey(base, quote, asOf))
	if !found {
		return decimal.Zero, false, nil
	}
	return v.(decimal.Decimal), true, nil
}

// PutRate implements FXStore.
func (m *CacheFXStore) PutRate(_ context.Context, base, quote string, asOf time.Time, rate decimal.Decimal) error {
	m.c.Set(fxKey(base, quote, asOf), rate, cache.NoExpiration)
	return nil
}
