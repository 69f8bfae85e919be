package portfolio

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/phuslu/log"
	"github.com/shopspring/decimal"

	"equity_valuation/pkg/core/marketdata"
)

const valuationNote = "FIFO realized P&L uses trade-date FX for proceeds and cost; unrealized uses today's FX for market value."

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// PriceSource supplies last traded prices.
type PriceSource interface {
	LastPrice(ctx context.Context, symbol string) (marketdata.Price, error)
}

// FXSource converts one unit of base into quote on a day.
type FXSource interface {
	Rate(ctx context.Context, base, quote string, asOf time.Time) (decimal.Decimal, error)
}

// Holding is an open position valued in the base currency. Value-derived
// fields are null when no price is available.
type Holding struct {
	Symbol        string              `json:"symbol"`
	Qty           decimal.Decimal     `json:"qty"`
	AvgCost       decimal.Decimal     `json:"avg_cost"`
	LTP           decimal.NullDecimal `json:"ltp"`
	LTPCcy        string              `json:"ltp_ccy"`
	Value         decimal.NullDecimal `json:"value"`
	Cost          decimal.Decimal     `json:"cost"`
	UnrealizedPnL decimal.NullDecimal `json:"unrealized_pnl"`
	RealizedPnL   decimal.Decimal     `json:"realized_pnl"`
	Dividends     decimal.Decimal     `json:"dividends"`
	WeightPct     decimal.NullDecimal `json:"weight_pct"`
	Stale         bool                `json:"stale_price,omitempty"`
}

// Totals aggregates every holding.
type Totals struct {
	Cost          decimal.Decimal     `json:"total_cost"`
	Value         decimal.NullDecimal `json:"total_value"`
	UnrealizedPnL decimal.NullDecimal `json:"unrealized_pnl"`
	RealizedPnL   decimal.Decimal     `json:"realized_pnl"`
	Dividends     decimal.Decimal     `json:"dividends"`
	Fees          decimal.Decimal     `json:"fees"`
	Note          string              `json:"note"`
}

// Summary is the positions view of a portfolio.
type Summary struct {
	BaseCurrency string    `json:"base_currency"`
	Holdings     []Holding `json:"holdings"`
	Totals       Totals    `json:"totals"`
}

type lot struct {
	qty      decimal.Decimal
	unitCost decimal.Decimal // base currency
}

// book is the running state of one symbol.
type book struct {
	lots      []lot
	realized  decimal.Decimal
	dividends decimal.Decimal
	fees      decimal.Decimal
}

// Calculator replays transactions into positions.
type Calculator struct {
	Prices PriceSource
	FX     FXSource
	Base   string
	Now    func() time.Time
}

// NewCalculator creates a calculator normalising to base (INR when empty).
func NewCalculator(prices PriceSource, fx FXSource, base string) *Calculator {
	if base == "" {
		base = DefaultCurrency
	}
	return &Calculator{Prices: prices, FX: fx, Base: base, Now: time.Now}
}

// ComputePositions replays txs in trade-date order with FIFO lots. Costs and
// proceeds are converted at trade-date FX (the stored fx_rate when present);
// market value uses today's price and FX. Money outputs are rounded
// half-even to 0.01.
func (c *Calculator) ComputePositions(ctx context.Context, txs []Transaction) (*Summary, error) {
	ordered := make([]Transaction, len(txs))
	copy(ordered, txs)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].TradeDate.Equal(ordered[j].TradeDate) {
			return ordered[i].TradeDate.Before(ordered[j].TradeDate)
		}
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	books := make(map[string]*book)
	for _, tx := range ordered {
		b := books[tx.Symbol]
		if b == nil {
			b = &book{}
			books[tx.Symbol] = b
		}
		fx, err := c.tradeFX(ctx, tx)
		if err != nil {
			return nil, err
		}
		b.apply(tx, fx)
	}

	return c.summarize(ctx, books)
}

func (c *Calculator) tradeFX(ctx context.Context, tx Transaction) (decimal.Decimal, error) {
	ccy := tx.TradeCcy
	if ccy == "" || ccy == c.Base {
		return one, nil
	}
	if tx.FXRate.Valid {
		return tx.FXRate.Decimal, nil
	}
	r, err := c.FX.Rate(ctx, ccy, c.Base, tx.TradeDate)
	if err != nil {
		return decimal.Zero, fmt.Errorf("fx %s/%s for %s on %s: %w", ccy, c.Base, tx.Symbol, tx.TradeDate.Format("2006-01-02"), err)
	}
	return r, nil
}

func (b *book) apply(tx Transaction, fx decimal.Decimal) {
	qty := tx.Quantity
	price := tx.Price.Decimal
	switch tx.Side {
	case SideBuy:
		cashOut := qty.Mul(price).Add(tx.Fees).Mul(fx)
		unit := decimal.Zero
		if qty.IsPositive() {
			unit = cashOut.Div(qty)
		}
		b.lots = append(b.lots, lot{qty: qty, unitCost: unit})

	case SideSell:
		if !qty.IsPositive() {
			return
		}
		proceeds := qty.Mul(price).Sub(tx.Fees).Mul(fx)
		sellPx := proceeds.Div(qty)
		b.fees = b.fees.Add(tx.Fees.Mul(fx))

		remaining := qty
		for remaining.IsPositive() && len(b.lots) > 0 {
			head := &b.lots[0]
			take := decimal.Min(remaining, head.qty)
			b.realized = b.realized.Add(take.Mul(sellPx.Sub(head.unitCost)))
			head.qty = head.qty.Sub(take)
			if !head.qty.IsPositive() {
				b.lots = b.lots[1:]
			}
			remaining = remaining.Sub(take)
		}

	case SideSplit:
		if !qty.IsPositive() {
			return
		}
		for i := range b.lots {
			b.lots[i].qty = b.lots[i].qty.Mul(qty)
			b.lots[i].unitCost = b.lots[i].unitCost.Div(qty)
		}

	case SideBonus:
		if qty.IsPositive() {
			b.lots = append(b.lots, lot{qty: qty, unitCost: decimal.Zero})
		}

	case SideDiv:
		amount := qty
		if tx.Price.Valid {
			amount = qty.Mul(price)
		}
		b.dividends = b.dividends.Add(amount.Sub(tx.Fees).Mul(fx))

	case SideFee:
		amount := tx.Fees
		if amount.IsZero() {
			amount = qty
		}
		b.fees = b.fees.Add(amount.Mul(fx))
	}
}

func (c *Calculator) summarize(ctx context.Context, books map[string]*book) (*Summary, error) {
	symbols := make([]string, 0, len(books))
	for s := range books {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	today := c.Now()
	out := &Summary{BaseCurrency: c.Base, Holdings: []Holding{}}
	var totalCost, totalValue, totalRealized, totalDiv, totalFees decimal.Decimal

	for _, sym := range symbols {
		b := books[sym]
		totalRealized = totalRealized.Add(b.realized)
		totalDiv = totalDiv.Add(b.dividends)
		totalFees = totalFees.Add(b.fees)

		var qty, cost decimal.Decimal
		for _, l := range b.lots {
			qty = qty.Add(l.qty)
			cost = cost.Add(l.qty.Mul(l.unitCost))
		}
		if !qty.IsPositive() {
			continue
		}

		h := Holding{
			Symbol:      sym,
			Qty:         qty,
			AvgCost:     cost.Div(qty).RoundBank(2),
			Cost:        cost.RoundBank(2),
			RealizedPnL: b.realized.RoundBank(2),
			Dividends:   b.dividends.RoundBank(2),
			LTPCcy:      c.Base,
		}
		totalCost = totalCost.Add(cost)

		if p, err := c.Prices.LastPrice(ctx, sym); err != nil {
			log.Warn().Str("symbol", sym).Err(err).Msg("[PORTFOLIO] no price, holding left unvalued")
		} else {
			if p.Currency != "" {
				h.LTPCcy = p.Currency
			}
			fx := one
			if h.LTPCcy != c.Base {
				if fx, err = c.FX.Rate(ctx, h.LTPCcy, c.Base, today); err != nil {
					return nil, fmt.Errorf("fx %s/%s today: %w", h.LTPCcy, c.Base, err)
				}
			}
			ltp := decimal.NewFromFloat(p.Value)
			value := qty.Mul(ltp).Mul(fx).RoundBank(2)
			h.LTP = decimal.NewNullDecimal(ltp)
			h.Value = decimal.NewNullDecimal(value)
			h.UnrealizedPnL = decimal.NewNullDecimal(value.Sub(cost).RoundBank(2))
			h.Stale = p.Stale
			totalValue = totalValue.Add(value)
		}
		out.Holdings = append(out.Holdings, h)
	}

	if totalValue.IsPositive() {
		for i := range out.Holdings {
			v := out.Holdings[i].Value
			if v.Valid {
				out.Holdings[i].WeightPct = decimal.NewNullDecimal(v.Decimal.Div(totalValue).Mul(hundred).RoundBank(2))
			}
		}
		out.Totals.Value = decimal.NewNullDecimal(totalValue.RoundBank(2))
		out.Totals.UnrealizedPnL = decimal.NewNullDecimal(totalValue.Sub(totalCost).RoundBank(2))
	}
	out.Totals.Cost = totalCost.RoundBank(2)
	out.Totals.RealizedPnL = totalRealized.RoundBank(2)
	out.Totals.Dividends = totalDiv.RoundBank(2)
	out.Totals.Fees = totalFees.RoundBank(2)
	out.Totals.Note = valuationNote
	return out, nil
}
