package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"equity_valuation/pkg/core/portfolio"
)

const txColumns = `id, portfolio_id, trade_date, symbol, COALESCE(exchange, ''), side, quantity, price, fees, trade_ccy, fx_rate, COALESCE(notes, ''), created_at`

// TransactionRepo stores ledger entries. Callers check portfolio ownership
// through PortfolioRepo.Get first.
type TransactionRepo struct {
	pool *pgxpool.Pool
}

// NewTransactionRepo creates a repository over pool.
func NewTransactionRepo(pool *pgxpool.Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

func scanTransaction(row rowScanner) (*portfolio.Transaction, error) {
	var t portfolio.Transaction
	var side string
	err := row.Scan(&t.ID, &t.PortfolioID, &t.TradeDate, &t.Symbol, &t.Exchange, &side,
		&t.Quantity, &t.Price, &t.Fees, &t.TradeCcy, &t.FXRate, &t.Notes, &t.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	t.Side = portfolio.Side(side)
	return &t, nil
}

// Create inserts t into portfolio pid.
func (r *TransactionRepo) Create(ctx context.Context, pid uuid.UUID, t portfolio.Transaction) (*portfolio.Transaction, error) {
	if r.pool == nil {
		return nil, ErrNoPool
	}
	query := `
		INSERT INTO transactions (portfolio_id, trade_date, symbol, exchange, side, quantity, price, fees, trade_ccy, fx_rate, notes)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, $10, NULLIF($11, ''))
		RETURNING ` + txColumns
	out, err := scanTransaction(r.pool.QueryRow(ctx, query,
		pid, t.TradeDate, t.Symbol, t.Exchange, string(t.Side), t.Quantity, t.Price, t.Fees, t.TradeCcy, t.FXRate, t.Notes))
	if err != nil {
		return nil, fmt.Errorf("create transaction: %w", err)
	}
	return out, nil
}

// List returns the transactions of pid in trade order.
func (r *TransactionRepo) List(ctx context.Context, pid uuid.UUID) ([]portfolio.Transaction, error) {
	if r.pool == nil {
		return nil, ErrNoPool
	}
	rows, err := r.pool.Query(ctx, `SELECT `+txColumns+` FROM transactions
		WHERE portfolio_id = $1 ORDER BY trade_date, created_at`, pid)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	out := []portfolio.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// Get loads one transaction of pid.
func (r *TransactionRepo) Get(ctx context.Context, pid, id uuid.UUID) (*portfolio.Transaction, error) {
	if r.pool == nil {
		return nil, ErrNoPool
	}
	return scanTransaction(r.pool.QueryRow(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE id = $1 AND portfolio_id = $2`, id, pid))
}

// Update replaces every editable field of the transaction t.ID in pid.
func (r *TransactionRepo) Update(ctx context.Context, pid uuid.UUID, t portfolio.Transaction) (*portfolio.Transaction, error) {
	if r.pool == nil {
		return nil, ErrNoPool
	}
	query := `
		UPDATE transactions SET
			trade_date = $3, symbol = $4, exchange = NULLIF($5, ''), side = $6, quantity = $7,
			price = $8, fees = $9, trade_ccy = $10, fx_rate = $11, notes = NULLIF($12, '')
		WHERE id = $1 AND portfolio_id = $2
		RETURNING ` + txColumns
	return scanTransaction(r.pool.QueryRow(ctx, query,
		t.ID, pid, t.TradeDate, t.Symbol, t.Exchange, string(t.Side), t.Quantity, t.Price, t.Fees, t.TradeCcy, t.FXRate, t.Notes))
}

// Delete removes one transaction of pid.
func (r *TransactionRepo) Delete(ctx context.Context, pid, id uuid.UUID) error {
	if r.pool == nil {
		return ErrNoPool
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM transactions WHERE id = $1 AND portfolio_id = $2`, id, pid)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
