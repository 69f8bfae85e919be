package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// User is an account row.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	IsVerified   bool      `json:"is_verified"`
	Name         string    `json:"name,omitempty"`
	Timezone     string    `json:"timezone,omitempty"`
	AvatarURL    string    `json:"avatar_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// ProfileUpdate holds the user-editable fields; nil leaves a field unchanged.
type ProfileUpdate struct {
	Name      *string `json:"name" validate:"omitempty,max=120"`
	Timezone  *string `json:"timezone" validate:"omitempty,max=64"`
	AvatarURL *string `json:"avatar_url" validate:"omitempty,url,max=512"`
}

const userColumns = `id, email, password_hash, is_verified, COALESCE(name, ''), COALESCE(timezone, ''), COALESCE(avatar_url, ''), created_at`

// UserRepo stores accounts.
type UserRepo struct {
	pool *pgxpool.Pool
}

// NewUserRepo creates a repository over pool.
func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.IsVerified, &u.Name, &u.Timezone, &u.AvatarURL, &u.CreatedAt); err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

// Create inserts a user. Emails are stored lower-case and must be unique.
func (r *UserRepo) Create(ctx context.Context, email, passwordHash, name string) (*User, error) {
	if r.pool == nil {
		return nil, ErrNoPool
	}
	query := `
		INSERT INTO users (email, password_hash, name)
		VALUES ($1, $2, NULLIF($3, ''))
		RETURNING ` + userColumns
	u, err := scanUser(r.pool.QueryRow(ctx, query, strings.ToLower(strings.TrimSpace(email)), passwordHash, name))
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// ByEmail loads a user by email, case-insensitively.
func (r *UserRepo) ByEmail(ctx context.Context, email string) (*User, error) {
	if r.pool == nil {
		return nil, ErrNoPool
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.pool.QueryRow(ctx, query, strings.ToLower(strings.TrimSpace(email))))
}

// ByID loads a user by id.
func (r *UserRepo) ByID(ctx context.Context, id uuid.UUID) (*User, error) {
	if r.pool == nil {
		return nil, ErrNoPool
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

// UpdateProfile applies the non-nil fields of p and returns the updated user.
func (r *UserRepo) UpdateProfile(ctx context.Context, id uuid.UUID, p ProfileUpdate) (*User, error) {
	if r.pool == nil {
		return nil, ErrNoPool
	}
	query := `
		UPDATE users SET
			name = COALESCE($2, name),
			timezone = COALESCE($3, timezone),
			avatar_url = COALESCE($4, avatar_url)
		WHERE id = $1
		RETURNING ` + userColumns
	return scanUser(r.pool.QueryRow(ctx, query, id, p.Name, p.Timezone, p.AvatarURL))
}
