// Package store persists users, portfolios, FX rates and saved reports in
// Postgres through a shared pgx pool.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/phuslu/log"
)

var (
	pool *pgxpool.Pool
	once sync.Once
)

var (
	// ErrNotFound is returned when a row does not exist or is not owned by the caller.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned on a unique constraint violation.
	ErrConflict = errors.New("already exists")
	// ErrNoPool is returned when a repository is used without a database.
	ErrNoPool = errors.New("database pool not initialized")
)

// InitDB initializes the shared pool. An empty dbURL falls back to the
// DATABASE_URL environment variable.
func InitDB(ctx context.Context, dbURL string) error {
	var err error
	once.Do(func() {
		if dbURL == "" {
			dbURL = os.Getenv("DATABASE_URL")
		}
		if dbURL == "" {
			err = fmt.Errorf("DATABASE_URL environment variable not set")
			return
		}

		config, parseErr := pgxpool.ParseConfig(dbURL)
		if parseErr != nil {
			err = fmt.Errorf("failed to parse database config: %w", parseErr)
			return
		}

		pool, err = pgxpool.NewWithConfig(ctx, config)
		if err == nil {
			log.Info().Str("host", config.ConnConfig.Host).Str("db", config.ConnConfig.Database).Msg("[STORE] pool ready")
		}
	})
	return err
}

// GetPool returns the shared pool, nil before InitDB succeeds.
func GetPool() *pgxpool.Pool {
	return pool
}

// Close closes the shared pool.
func Close() {
	if pool != nil {
		pool.Close()
	}
}

// mapErr converts driver errors into the package sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", ErrConflict, pgErr.ConstraintName)
	}
	return err
}
