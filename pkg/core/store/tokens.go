package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RefreshTokenRepo stores hashed refresh tokens.
type RefreshTokenRepo struct {
	pool *pgxpool.Pool
}

// NewRefreshTokenRepo creates a repository over pool.
func NewRefreshTokenRepo(pool *pgxpool.Pool) *RefreshTokenRepo {
	return &RefreshTokenRepo{pool: pool}
}

// Save records a token hash for userID.
func (r *RefreshTokenRepo) Save(ctx context.Context, userID uuid.UUID, hash string, expiresAt time.Time) error {
	if r.pool == nil {
		return ErrNoPool
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO refresh_tokens (user_id, token_hash, expires_at) VALUES ($1, $2, $3)`,
		userID, hash, expiresAt)
	if err != nil {
		return fmt.Errorf("save refresh token: %w", mapErr(err))
	}
	return nil
}

// Consume deletes an unexpired token and returns its owner, so each token
// can be exchanged once.
func (r *RefreshTokenRepo) Consume(ctx context.Context, hash string) (uuid.UUID, error) {
	if r.pool == nil {
		return uuid.Nil, ErrNoPool
	}
	var userID uuid.UUID
	err := r.pool.QueryRow(ctx,
		`DELETE FROM refresh_tokens WHERE token_hash = $1 AND expires_at > NOW() RETURNING user_id`,
		hash).Scan(&userID)
	if err != nil {
		return uuid.Nil, mapErr(err)
	}
	return userID, nil
}

// Revoke deletes a token; unknown hashes are ignored.
func (r *RefreshTokenRepo) Revoke(ctx context.Context, hash string) error {
	if r.pool == nil {
		return ErrNoPool
	}
	_, err := r.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE token_hash = $1`, hash)
	return err
}

// PurgeExpired removes expired tokens and reports how many went.
func (r *RefreshTokenRepo) PurgeExpired(ctx context.Context) (int64, error) {
	if r.pool == nil {
		return 0, ErrNoPool
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
