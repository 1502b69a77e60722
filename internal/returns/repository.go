package returns

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/bookkeeping/internal/documents"
	"github.com/odyssey-erp/bookkeeping/internal/platform/db"
	"github.com/odyssey-erp/bookkeeping/internal/shared"
)

// Store reads return lineage from PostgreSQL.
type Store struct {
	db db.DBTX
}

// NewStore constructs Store over a pool or transaction.
func NewStore(conn db.DBTX) *Store {
	return &Store{db: conn}
}

// SourceLine loads a line with its document header.
func (s *Store) SourceLine(ctx context.Context, lineID uuid.UUID) (SourceLine, error) {
	var src SourceLine
	var typ, status string
	var counterparty *uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT l.id, l.transaction_id, l.position, l.product_id, l.variant_id, l.quantity, l.unit_price, l.discount_amount, l.line_total,
t.tenant_id, t.type, t.status, t.counterparty_id
FROM transaction_lines l JOIN transactions t ON t.id = l.transaction_id
WHERE l.id=$1`, lineID).Scan(&src.ID, &src.TransactionID, &src.Position, &src.ProductID, &src.VariantID, &src.Quantity, &src.UnitPrice,
		&src.DiscountAmount, &src.LineTotal, &src.TenantID, &typ, &status, &counterparty)
	if errors.Is(err, pgx.ErrNoRows) {
		return SourceLine{}, shared.NotFound("source line %s", lineID)
	}
	if err != nil {
		return SourceLine{}, err
	}
	src.TransactionType = documents.Type(typ)
	src.Status = documents.Status(status)
	if counterparty != nil {
		src.CounterpartyID = *counterparty
	}
	return src, nil
}

// ReturnedQuantity sums posted return quantities for a source line.
func (s *Store) ReturnedQuantity(ctx context.Context, sourceLineID uuid.UUID) (int64, error) {
	var qty int64
	err := s.db.QueryRow(ctx, `SELECT COALESCE(SUM(l.quantity), 0)
FROM transaction_lines l JOIN transactions t ON t.id = l.transaction_id
WHERE l.source_line_id=$1 AND t.status='POSTED'`, sourceLineID).Scan(&qty)
	return qty, err
}
