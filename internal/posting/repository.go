package posting

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/bookkeeping/internal/allocation"
	"github.com/odyssey-erp/bookkeeping/internal/documents"
	"github.com/odyssey-erp/bookkeeping/internal/inventory"
	"github.com/odyssey-erp/bookkeeping/internal/ledger"
	"github.com/odyssey-erp/bookkeeping/internal/payments"
	"github.com/odyssey-erp/bookkeeping/internal/platform/db"
	"github.com/odyssey-erp/bookkeeping/internal/returns"
	"github.com/odyssey-erp/bookkeeping/internal/sequence"
	"github.com/odyssey-erp/bookkeeping/internal/shared"
)

// PGRepository opens PostgreSQL units of work.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs PGRepository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// WithTx runs fn under SERIALIZABLE isolation.
func (r *PGRepository) WithTx(ctx context.Context, fn func(context.Context, Repos) error) error {
	return db.WithSerializableTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, bind(tx))
	})
}

// Read runs fn in a REPEATABLE READ snapshot.
func (r *PGRepository) Read(ctx context.Context, fn func(context.Context, Repos) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, bind(tx))
	})
}

func bind(tx pgx.Tx) Repos {
	return Repos{
		Documents:   documents.NewStore(tx),
		Sequences:   sequence.NewStore(tx),
		Ledger:      ledger.NewStore(tx),
		Inventory:   inventory.NewStore(tx),
		Payments:    payments.NewStore(tx),
		Allocations: allocation.NewStore(tx),
		Returns:     returns.NewStore(tx),
		Keys:        shared.NewIdempotencyStore(tx),
	}
}
