package shared

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Executor is the subset of pgx.Tx used by the key registry.
type Executor interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// IdempotencyStore records which transaction a posting key was first used for.
type IdempotencyStore struct {
	db Executor
}

// NewIdempotencyStore binds the store to a transaction or pool.
func NewIdempotencyStore(db Executor) *IdempotencyStore {
	return &IdempotencyStore{db: db}
}

// Claim binds key to transactionID for the tenant. Claiming a key already bound to
// another transaction returns ErrIdempotencyConflict. Must run inside the posting
// transaction so a rolled back posting releases the key.
func (s *IdempotencyStore) Claim(ctx context.Context, tenantID uuid.UUID, key string, transactionID uuid.UUID) error {
	if s == nil || s.db == nil {
		return errors.New("idempotency store not initialised")
	}
	if key == "" {
		return Validation("idempotency key required")
	}
	var owner uuid.UUID
	err := s.db.QueryRow(ctx, `INSERT INTO idempotency_keys (tenant_id, key, transaction_id, created_at)
VALUES ($1, $2, $3, NOW())
ON CONFLICT (tenant_id, key) DO UPDATE SET key = EXCLUDED.key
RETURNING transaction_id`, tenantID, key, transactionID).Scan(&owner)
	if err != nil {
		return fmt.Errorf("shared: claim idempotency key: %w", err)
	}
	if owner != transactionID {
		return IdempotencyConflict("key %q already used by transaction %s", key, owner)
	}
	return nil
}

// Owner returns the transaction bound to key, or ErrNotFound.
func (s *IdempotencyStore) Owner(ctx context.Context, tenantID uuid.UUID, key string) (uuid.UUID, error) {
	var owner uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT transaction_id FROM idempotency_keys WHERE tenant_id=$1 AND key=$2`, tenantID, key).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, ErrNotFound
	}
	return owner, err
}
