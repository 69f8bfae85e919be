// Package portfolio serves portfolios, their transaction ledgers and the
// positions summary.
package portfolio

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phuslu/log"
	"github.com/shopspring/decimal"

	"equity_valuation/pkg/api/middleware"
	"equity_valuation/pkg/api/respond"
	"equity_valuation/pkg/core/portfolio"
	"equity_valuation/pkg/core/store"
)

const dateLayout = "2006-01-02"

// Portfolios is the slice of store.PortfolioRepo the handlers need.
type Portfolios interface {
	Create(ctx context.Context, owner uuid.UUID, name, baseCcy string) (*portfolio.Portfolio, error)
	List(ctx context.Context, owner uuid.UUID) ([]portfolio.Portfolio, error)
	Get(ctx context.Context, owner, id uuid.UUID) (*portfolio.Portfolio, error)
	Delete(ctx context.Context, owner, id uuid.UUID) error
}

// Transactions is the slice of store.TransactionRepo the handlers need.
type Transactions interface {
	Create(ctx context.Context, pid uuid.UUID, t portfolio.Transaction) (*portfolio.Transaction, error)
	List(ctx context.Context, pid uuid.UUID) ([]portfolio.Transaction, error)
	Get(ctx context.Context, pid, id uuid.UUID) (*portfolio.Transaction, error)
	Update(ctx context.Context, pid uuid.UUID, t portfolio.Transaction) (*portfolio.Transaction, error)
	Delete(ctx context.Context, pid, id uuid.UUID) error
}

// Handler holds dependencies for the portfolio endpoints.
type Handler struct {
	Portfolios   Portfolios
	Transactions Transactions
	Prices       portfolio.PriceSource
	FX           portfolio.FXSource
}

// NewHandler creates a portfolio handler.
func NewHandler(portfolios Portfolios, txs Transactions, prices portfolio.PriceSource, fx portfolio.FXSource) *Handler {
	return &Handler{Portfolios: portfolios, Transactions: txs, Prices: prices, FX: fx}
}

// CreateRequest is the body of a new portfolio.
type CreateRequest struct {
	Name         string `json:"name" validate:"required,max=120"`
	BaseCurrency string `json:"base_currency" validate:"omitempty,len=3"`
}

// PortfolioOut is the list view of a portfolio.
type PortfolioOut struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	BaseCurrency string    `json:"base_currency"`
}

// SummaryOut is a portfolio with its positions and ledger.
type SummaryOut struct {
	ID           uuid.UUID           `json:"id"`
	Name         string              `json:"name"`
	BaseCurrency string              `json:"base_currency"`
	Holdings     []portfolio.Holding `json:"holdings"`
	Totals       portfolio.Totals    `json:"totals"`
	Transactions []TxOut             `json:"transactions"`
}

func portfolioOut(p *portfolio.Portfolio) PortfolioOut {
	return PortfolioOut{ID: p.ID, Name: p.Name, BaseCurrency: p.BaseCurrency}
}

// HandleList returns the caller's portfolios, newest first.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Portfolios.List(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	out := make([]PortfolioOut, 0, len(rows))
	for i := range rows {
		out = append(out, portfolioOut(&rows[i]))
	}
	respond.JSON(w, http.StatusOK, out)
}

// HandleCreate adds a portfolio owned by the caller.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Err(w, r, err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		respond.Err(w, r, respond.Invalid(errors.New("name must not be blank")))
		return
	}
	p, err := h.Portfolios.Create(r.Context(), middleware.UserID(r.Context()), req.Name, req.BaseCurrency)
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	log.Info().Str("portfolio_id", p.ID.String()).Msg("[PORTFOLIO] created")
	respond.JSON(w, http.StatusCreated, portfolioOut(p))
}

// HandleGet returns the positions summary and the ledger of one portfolio.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	p, ok := h.owned(w, r)
	if !ok {
		return
	}
	txs, err := h.Transactions.List(r.Context(), p.ID)
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	calc := portfolio.NewCalculator(h.Prices, h.FX, p.BaseCurrency)
	summary, err := calc.ComputePositions(r.Context(), txs)
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, SummaryOut{
		ID:           p.ID,
		Name:         p.Name,
		BaseCurrency: summary.BaseCurrency,
		Holdings:     summary.Holdings,
		Totals:       summary.Totals,
		Transactions: txOutList(txs),
	})
}

// HandleDelete removes a portfolio with its transactions.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	pid, ok := pathID(w, r, "pid")
	if !ok {
		return
	}
	if err := h.Portfolios.Delete(r.Context(), middleware.UserID(r.Context()), pid); err != nil {
		failed(w, r, err, "Not found")
		return
	}
	log.Info().Str("portfolio_id", pid.String()).Msg("[PORTFOLIO] deleted")
	respond.JSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// TxIn is the body of a new transaction. Dates are YYYY-MM-DD.
type TxIn struct {
	TradeDate string              `json:"trade_date" validate:"required"`
	Symbol    string              `json:"symbol" validate:"required,max=32"`
	Exchange  string              `json:"exchange"`
	Side      string              `json:"side" validate:"required"`
	Quantity  decimal.Decimal     `json:"quantity"`
	Price     decimal.NullDecimal `json:"price"`
	Fees      decimal.Decimal     `json:"fees"`
	TradeCcy  string              `json:"trade_ccy"`
	FXRate    decimal.NullDecimal `json:"fx_rate"`
	Notes     string              `json:"notes"`
}

// TxPatch holds the fields to change; absent fields are kept.
type TxPatch struct {
	TradeDate *string              `json:"trade_date"`
	Symbol    *string              `json:"symbol"`
	Exchange  *string              `json:"exchange"`
	Side      *string              `json:"side"`
	Quantity  *decimal.Decimal     `json:"quantity"`
	Price     *decimal.NullDecimal `json:"price"`
	Fees      *decimal.Decimal     `json:"fees"`
	TradeCcy  *string              `json:"trade_ccy"`
	FXRate    *decimal.NullDecimal `json:"fx_rate"`
	Notes     *string              `json:"notes"`
}

// TxOut is the public view of a transaction.
type TxOut struct {
	ID        uuid.UUID           `json:"id"`
	TradeDate string              `json:"trade_date"`
	Symbol    string              `json:"symbol"`
	Exchange  string              `json:"exchange,omitempty"`
	Side      portfolio.Side      `json:"side"`
	Quantity  decimal.Decimal     `json:"quantity"`
	Price     decimal.NullDecimal `json:"price"`
	Fees      decimal.Decimal     `json:"fees"`
	TradeCcy  string              `json:"trade_ccy"`
	FXRate    decimal.NullDecimal `json:"fx_rate"`
	Notes     string              `json:"notes,omitempty"`
}

func txOut(t *portfolio.Transaction) TxOut {
	return TxOut{
		ID:        t.ID,
		TradeDate: t.TradeDate.Format(dateLayout),
		Symbol:    t.Symbol,
		Exchange:  t.Exchange,
		Side:      t.Side,
		Quantity:  t.Quantity,
		Price:     t.Price,
		Fees:      t.Fees,
		TradeCcy:  t.TradeCcy,
		FXRate:    t.FXRate,
		Notes:     t.Notes,
	}
}

// txOutList lists newest trades first.
func txOutList(txs []portfolio.Transaction) []TxOut {
	out := make([]TxOut, 0, len(txs))
	for i := len(txs) - 1; i >= 0; i-- {
		out = append(out, txOut(&txs[i]))
	}
	return out
}

// HandleListTx returns the ledger of a portfolio, newest first.
func (h *Handler) HandleListTx(w http.ResponseWriter, r *http.Request) {
	p, ok := h.owned(w, r)
	if !ok {
		return
	}
	txs, err := h.Transactions.List(r.Context(), p.ID)
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, txOutList(txs))
}

// HandleCreateTx records a transaction.
func (h *Handler) HandleCreateTx(w http.ResponseWriter, r *http.Request) {
	p, ok := h.owned(w, r)
	if !ok {
		return
	}
	var in TxIn
	if err := respond.Decode(r, &in); err != nil {
		respond.Err(w, r, err)
		return
	}
	date, err := parseDate(in.TradeDate)
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	t := portfolio.Transaction{
		TradeDate: date,
		Symbol:    in.Symbol,
		Exchange:  strings.ToUpper(strings.TrimSpace(in.Exchange)),
		Side:      portfolio.Side(in.Side),
		Quantity:  in.Quantity,
		Price:     in.Price,
		Fees:      in.Fees,
		TradeCcy:  in.TradeCcy,
		FXRate:    in.FXRate,
		Notes:     in.Notes,
	}
	t.Normalize()
	if err := t.Check(); err != nil {
		respond.Err(w, r, err)
		return
	}
	saved, err := h.Transactions.Create(r.Context(), p.ID, t)
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	log.Info().Str("portfolio_id", p.ID.String()).Str("symbol", saved.Symbol).Str("side", string(saved.Side)).Msg("[PORTFOLIO] transaction recorded")
	respond.JSON(w, http.StatusCreated, txOut(saved))
}

// HandleUpdateTx merges a partial update into a transaction and re-checks
// the result.
func (h *Handler) HandleUpdateTx(w http.ResponseWriter, r *http.Request) {
	p, ok := h.owned(w, r)
	if !ok {
		return
	}
	txid, ok := pathID(w, r, "txid")
	if !ok {
		return
	}
	var patch TxPatch
	if err := respond.Decode(r, &patch); err != nil {
		respond.Err(w, r, err)
		return
	}
	if patch.Symbol != nil && strings.TrimSpace(*patch.Symbol) == "" {
		respond.Error(w, http.StatusBadRequest, "Symbol cannot be empty")
		return
	}
	cur, err := h.Transactions.Get(r.Context(), p.ID, txid)
	if err != nil {
		failed(w, r, err, "Not found")
		return
	}
	t := *cur
	if err := patch.apply(&t); err != nil {
		respond.Err(w, r, err)
		return
	}
	t.Normalize()
	if err := t.Check(); err != nil {
		respond.Err(w, r, err)
		return
	}
	saved, err := h.Transactions.Update(r.Context(), p.ID, t)
	if err != nil {
		failed(w, r, err, "Not found")
		return
	}
	respond.JSON(w, http.StatusOK, txOut(saved))
}

// HandleDeleteTx removes a transaction.
func (h *Handler) HandleDeleteTx(w http.ResponseWriter, r *http.Request) {
	p, ok := h.owned(w, r)
	if !ok {
		return
	}
	txid, ok := pathID(w, r, "txid")
	if !ok {
		return
	}
	if err := h.Transactions.Delete(r.Context(), p.ID, txid); err != nil {
		failed(w, r, err, "Not found")
		return
	}
	respond.JSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (p TxPatch) apply(t *portfolio.Transaction) error {
	if p.TradeDate != nil {
		d, err := parseDate(*p.TradeDate)
		if err != nil {
			return err
		}
		t.TradeDate = d
	}
	if p.Symbol != nil {
		t.Symbol = *p.Symbol
	}
	if p.Exchange != nil {
		t.Exchange = strings.ToUpper(strings.TrimSpace(*p.Exchange))
	}
	if p.Side != nil {
		t.Side = portfolio.Side(*p.Side)
	}
	if p.Quantity != nil {
		t.Quantity = *p.Quantity
	}
	if p.Price != nil {
		t.Price = *p.Price
	}
	if p.Fees != nil {
		t.Fees = *p.Fees
	}
	if p.TradeCcy != nil {
		t.TradeCcy = *p.TradeCcy
	}
	if p.FXRate != nil {
		t.FXRate = *p.FXRate
	}
	if p.Notes != nil {
		t.Notes = *p.Notes
	}
	return nil
}

// owned loads the {pid} portfolio if the caller owns it and writes the error
// response otherwise.
func (h *Handler) owned(w http.ResponseWriter, r *http.Request) (*portfolio.Portfolio, bool) {
	pid, ok := pathID(w, r, "pid")
	if !ok {
		return nil, false
	}
	p, err := h.Portfolios.Get(r.Context(), middleware.UserID(r.Context()), pid)
	if err != nil {
		failed(w, r, err, "Portfolio not found")
		return nil, false
	}
	return p, true
}

func pathID(w http.ResponseWriter, r *http.Request, key string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, key))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid id")
		return uuid.Nil, false
	}
	return id, true
}

// failed answers a missing row with msg and anything else through the usual
// mapping.
func failed(w http.ResponseWriter, r *http.Request, err error, msg string) {
	if errors.Is(err, store.ErrNotFound) {
		respond.Error(w, http.StatusNotFound, msg)
		return
	}
	respond.Err(w, r, err)
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if d, err := time.Parse(dateLayout, s); err == nil {
		return d, nil
	}
	if d, err := time.Parse(time.RFC3339, s); err == nil {
		return d.UTC().Truncate(24 * time.Hour), nil
	}
	return time.Time{}, respond.Invalid(fmt.Errorf("trade_date %q is not YYYY-MM-DD", s))
}
