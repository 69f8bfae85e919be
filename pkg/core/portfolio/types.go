// Package portfolio holds portfolio and transaction types and the FIFO
// position calculator.
package portfolio

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"equity_valuation/pkg/core/utils"
)

// Side is the kind of a transaction.
type Side string

const (
	SideBuy   Side = "BUY"
	SideSell  Side = "SELL"
	SideDiv   Side = "DIV"
	SideSplit Side = "SPLIT"
	SideBonus Side = "BONUS"
	SideFee   Side = "FEE"
)

// DefaultCurrency is the base and default trade currency.
const DefaultCurrency = "INR"

// ErrInvalidTransaction wraps every transaction rule violation.
var ErrInvalidTransaction = errors.New("invalid transaction")

// Valid reports whether s is a known side.
func (s Side) Valid() bool {
	switch s {
	case SideBuy, SideSell, SideDiv, SideSplit, SideBonus, SideFee:
		return true
	}
	return false
}

// Portfolio is a named set of transactions owned by one user.
type Portfolio struct {
	ID           uuid.UUID `json:"id"`
	OwnerID      uuid.UUID `json:"owner_id"`
	Name         string    `json:"name" validate:"required,max=120"`
	BaseCurrency string    `json:"base_currency" validate:"omitempty,len=3"`
	CreatedAt    time.Time `json:"created_at"`
}

// Transaction is one ledger entry. For SPLIT the quantity is the ratio
// (2 for a 2:1 split); for DIV the cash amount is quantity x price, or the
// quantity alone when no price is given; FEE uses Fees, or the quantity when
// Fees is zero.
type Transaction struct {
	ID          uuid.UUID           `json:"id"`
	PortfolioID uuid.UUID           `json:"portfolio_id"`
	TradeDate   time.Time           `json:"trade_date"`
	Symbol      string              `json:"symbol" validate:"required,max=32"`
	Exchange    string              `json:"exchange,omitempty" validate:"max=16"`
	Side        Side                `json:"side" validate:"required"`
	Quantity    decimal.Decimal     `json:"quantity"`
	Price       decimal.NullDecimal `json:"price"`
	Fees        decimal.Decimal     `json:"fees"`
	TradeCcy    string              `json:"trade_ccy" validate:"omitempty,len=3"`
	FXRate      decimal.NullDecimal `json:"fx_rate"`
	Notes       string              `json:"notes,omitempty" validate:"max=500"`
	CreatedAt   time.Time           `json:"created_at"`
}

// Normalize upper-cases codes and fills the default currency.
func (t *Transaction) Normalize() {
	t.Symbol = strings.ToUpper(strings.TrimSpace(t.Symbol))
	t.Side = Side(strings.ToUpper(strings.TrimSpace(string(t.Side))))
	t.TradeCcy = strings.ToUpper(strings.TrimSpace(t.TradeCcy))
	if t.TradeCcy == "" {
		t.TradeCcy = DefaultCurrency
	}
}

// Check validates struct tags and the per-side rules.
func (t *Transaction) Check() error {
	if err := utils.ValidateStruct(t); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTransaction, err)
	}
	if !t.Side.Valid() {
		return fmt.Errorf("%w: unknown side %q", ErrInvalidTransaction, t.Side)
	}
	if t.TradeDate.IsZero() {
		return fmt.Errorf("%w: trade_date is required", ErrInvalidTransaction)
	}
	if t.Fees.IsNegative() {
		return fmt.Errorf("%w: fees must not be negative", ErrInvalidTransaction)
	}
	switch t.Side {
	case SideBuy, SideSell:
		if !t.Quantity.IsPositive() {
			return fmt.Errorf("%w: %s quantity must be positive", ErrInvalidTransaction, t.Side)
		}
		if !t.Price.Valid || t.Price.Decimal.IsNegative() {
			return fmt.Errorf("%w: %s needs a price", ErrInvalidTransaction, t.Side)
		}
	case SideSplit, SideBonus:
		if !t.Quantity.IsPositive() {
			return fmt.Errorf("%w: %s quantity must be positive", ErrInvalidTransaction, t.Side)
		}
	}
	if t.FXRate.Valid && !t.FXRate.Decimal.IsPositive() {
		return fmt.Errorf("%w: fx_rate must be positive", ErrInvalidTransaction)
	}
	return nil
}
