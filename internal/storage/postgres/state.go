package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/rig-checkout/internal/checkout"
)

const (
	getStateSQL = `SELECT value FROM storefront_state WHERE owner = $1 AND key = $2`

	setStateSQL = `INSERT INTO storefront_state (owner, key, value, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (owner, key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`

	deleteStateSQL = `DELETE FROM storefront_state WHERE owner = $1 AND key = $2`
)

var _ checkout.StateStore = (*StateStore)(nil)

// StateStore keeps per-owner storefront state in PostgreSQL.
type StateStore struct {
	pool *pgxpool.Pool
}

// NewStateStore returns a StateStore that uses the given pool.
func NewStateStore(pool *pgxpool.Pool) *StateStore {
	return &StateStore{pool: pool}
}

// Get returns the value of key for owner, or checkout.ErrStateNotFound.
func (s *StateStore) Get(ctx context.Context, owner, key string) ([]byte, error) {
	var value []byte
	if err := s.pool.QueryRow(ctx, getStateSQL, owner, key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, checkout.ErrStateNotFound
		}
		return nil, fmt.Errorf("getting %s state for %q: %w", key, owner, err)
	}
	return value, nil
}

// Set stores value under key for owner.
func (s *StateStore) Set(ctx context.Context, owner, key string, value []byte) error {
	if _, err := s.pool.Exec(ctx, setStateSQL, owner, key, value); err != nil {
		return fmt.Errorf("setting %s state for %q: %w", key, owner, err)
	}
	return nil
}

// Delete removes key for owner. Deleting a missing key is not an error.
func (s *StateStore) Delete(ctx context.Context, owner, key string) error {
	if _, err := s.pool.Exec(ctx, deleteStateSQL, owner, key); err != nil {
		return fmt.Errorf("deleting %s state for %q: %w", key, owner, err)
	}
	return nil
}
