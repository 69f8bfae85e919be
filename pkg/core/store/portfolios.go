package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"equity_valuation/pkg/core/portfolio"
)

// PortfolioRepo stores portfolios. Every read and write is scoped to an
// owner; a portfolio owned by someone else is reported as ErrNotFound.
type PortfolioRepo struct {
	pool *pgxpool.Pool
}

// NewPortfolioRepo creates a repository over pool.
func NewPortfolioRepo(pool *pgxpool.Pool) *PortfolioRepo {
	return &PortfolioRepo{pool: pool}
}

func scanPortfolio(row rowScanner) (*portfolio.Portfolio, error) {
	var p portfolio.Portfolio
	if err := row.Scan(&p.ID, &p.OwnerID, &p.Name, &p.BaseCurrency, &p.CreatedAt); err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}

// Create inserts a portfolio for owner.
func (r *PortfolioRepo) Create(ctx context.Context, owner uuid.UUID, name, baseCcy string) (*portfolio.Portfolio, error) {
	if r.pool == nil {
		return nil, ErrNoPool
	}
	baseCcy = strings.ToUpper(strings.TrimSpace(baseCcy))
	if baseCcy == "" {
		baseCcy = portfolio.DefaultCurrency
	}
	query := `
		INSERT INTO portfolios (owner_id, name, base_currency)
		VALUES ($1, $2, $3)
		RETURNING id, owner_id, name, base_currency, created_at`
	p, err := scanPortfolio(r.pool.QueryRow(ctx, query, owner, strings.TrimSpace(name), baseCcy))
	if err != nil {
		return nil, fmt.Errorf("create portfolio: %w", err)
	}
	return p, nil
}

// List returns owner's portfolios, newest first.
func (r *PortfolioRepo) List(ctx context.Context, owner uuid.UUID) ([]portfolio.Portfolio, error) {
	if r.pool == nil {
		return nil, ErrNoPool
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, owner_id, name, base_currency, created_at
		FROM portfolios WHERE owner_id = $1
		ORDER BY created_at DESC`, owner)
	if err != nil {
		return nil, fmt.Errorf("list portfolios: %w", err)
	}
	defer rows.Close()

	out := []portfolio.Portfolio{}
	for rows.Next() {
		p, err := scanPortfolio(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// Get loads one portfolio owned by owner.
func (r *PortfolioRepo) Get(ctx context.Context, owner, id uuid.UUID) (*portfolio.Portfolio, error) {
	if r.pool == nil {
		return nil, ErrNoPool
	}
	return scanPortfolio(r.pool.QueryRow(ctx, `
		SELECT id, owner_id, name, base_currency, created_at
		FROM portfolios WHERE id = $1 AND owner_id = $2`, id, owner))
}

// Delete removes a portfolio and its transactions.
func (r *PortfolioRepo) Delete(ctx context.Context, owner, id uuid.UUID) error {
	if r.pool == nil {
		return ErrNoPool
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM portfolios WHERE id = $1 AND owner_id = $2`, id, owner)
	if err != nil {
		return fmt.Errorf("delete portfolio: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
