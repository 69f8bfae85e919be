package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// FXRepo persists daily FX rates; it satisfies marketdata.FXStore.
type FXRepo struct {
	pool *pgxpool.Pool
}

// NewFXRepo creates a repository over pool.
func NewFXRepo(pool *pgxpool.Pool) *FXRepo {
	return &FXRepo{pool: pool}
}

// GetRate returns the stored rate for the pair on asOf's date.
func (r *FXRepo) GetRate(ctx context.Context, base, quote string, asOf time.Time) (decimal.Decimal, bool, error) {
	if r.pool == nil {
		return decimal.Zero, false, ErrNoPool
	}
	var rate decimal.Decimal
	err := r.pool.QueryRow(ctx,
		`SELECT rate FROM fx_rates WHERE base = $1 AND quote = $2 AND as_of = $3`,
		base, quote, asOf).Scan(&rate)
	if err != nil {
		if err = mapErr(err); errors.Is(err, ErrNotFound) {
			return decimal.Zero, false, nil
		}
		return decimal.Zero, false, err
	}
	return rate, true, nil
}

// PutRate upserts the rate for the pair on asOf's date.
func (r *FXRepo) PutRate(ctx context.Context, base, quote string, asOf time.Time, rate decimal.Decimal) error {
	if r.pool == nil {
		return ErrNoPool
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO fx_rates (base, quote, as_of, rate)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT ON CONSTRAINT fx_rates_pk
		DO UPDATE SET rate = EXCLUDED.rate`,
		base, quote, asOf, rate)
	return err
}
