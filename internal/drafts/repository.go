package drafts

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/bookkeeping/internal/documents"
	"github.com/odyssey-erp/bookkeeping/internal/inventory"
	"github.com/odyssey-erp/bookkeeping/internal/platform/db"
	"github.com/odyssey-erp/bookkeeping/internal/returns"
)

// PGRepository stores drafts in PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs PGRepository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// WithTx runs fn in a REPEATABLE READ transaction.
func (r *PGRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, pgTx{
			docs:    documents.NewStore(tx),
			stock:   inventory.NewStore(tx),
			lineage: returns.NewStore(tx),
		})
	})
}

type pgTx struct {
	docs    *documents.Store
	stock   *inventory.Store
	lineage *returns.Store
}

func (t pgTx) InsertDraft(ctx context.Context, txn *documents.Transaction) error {
	return t.docs.InsertDraft(ctx, txn)
}

func (t pgTx) GetCounterparty(ctx context.Context, tenantID, id uuid.UUID) (documents.Counterparty, error) {
	return t.docs.GetCounterparty(ctx, tenantID, id)
}

func (t pgTx) LockVariants(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]inventory.Variant, error) {
	return t.stock.LockVariants(ctx, tenantID, ids)
}

func (t pgTx) SourceLine(ctx context.Context, lineID uuid.UUID) (returns.SourceLine, error) {
	return t.lineage.SourceLine(ctx, lineID)
}

func (t pgTx) ReturnedQuantity(ctx context.Context, sourceLineID uuid.UUID) (int64, error) {
	return t.lineage.ReturnedQuantity(ctx, sourceLineID)
}
