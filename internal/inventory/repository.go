package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/bookkeeping/internal/platform/db"
	"github.com/odyssey-erp/bookkeeping/internal/shared"
)

// Store persists inventory data in PostgreSQL.
type Store struct {
	db db.DBTX
}

// NewStore constructs Store over a pool or transaction.
func NewStore(conn db.DBTX) *Store {
	return &Store{db: conn}
}

const movementColumns = `id, tenant_id, transaction_id, line_id, variant_id, product_id, movement_type, quantity, unit_cost, created_at`

// LockVariants selects variants FOR UPDATE ordered by id.
func (s *Store) LockVariants(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]Variant, error) {
	rows, err := s.db.Query(ctx, `SELECT id, tenant_id, product_id, sku, avg_cost FROM product_variants
WHERE tenant_id=$1 AND id = ANY($2) ORDER BY id FOR UPDATE`, tenantID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Variant
	for rows.Next() {
		var v Variant
		if err := rows.Scan(&v.ID, &v.TenantID, &v.ProductID, &v.SKU, &v.AvgCost); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// VariantStock derives on-hand quantity from movements.
func (s *Store) VariantStock(ctx context.Context, tenantID, variantID uuid.UUID) (int64, error) {
	var qty int64
	err := s.db.QueryRow(ctx, `SELECT COALESCE(SUM(quantity), 0) FROM inventory_movements WHERE tenant_id=$1 AND variant_id=$2`, tenantID, variantID).Scan(&qty)
	return qty, err
}

// UpdateVariantAvgCost stores the revalued average.
func (s *Store) UpdateVariantAvgCost(ctx context.Context, tenantID, variantID uuid.UUID, avgCost int64) error {
	tag, err := s.db.Exec(ctx, `UPDATE product_variants SET avg_cost=$3, updated_at=NOW() WHERE tenant_id=$1 AND id=$2`, tenantID, variantID, avgCost)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("variant %s", variantID)
	}
	return nil
}

// InsertMovement appends one movement.
func (s *Store) InsertMovement(ctx context.Context, m Movement) error {
	_, err := s.db.Exec(ctx, `INSERT INTO inventory_movements (`+movementColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		m.ID, m.TenantID, m.TransactionID, m.LineID, m.VariantID, m.ProductID, string(m.Type), m.Quantity, m.UnitCost, m.CreatedAt)
	return err
}

// MovementForLine returns the movement written for a document line.
func (s *Store) MovementForLine(ctx context.Context, tenantID, lineID uuid.UUID) (Movement, error) {
	row := s.db.QueryRow(ctx, `SELECT `+movementColumns+` FROM inventory_movements WHERE tenant_id=$1 AND line_id=$2 LIMIT 1`, tenantID, lineID)
	m, err := scanMovement(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Movement{}, shared.ErrNotFound
	}
	return m, err
}

// ListMovements returns the movements of one transaction.
func (s *Store) ListMovements(ctx context.Context, tenantID, transactionID uuid.UUID) ([]Movement, error) {
	rows, err := s.db.Query(ctx, `SELECT `+movementColumns+` FROM inventory_movements
WHERE tenant_id=$1 AND transaction_id=$2 ORDER BY created_at, id`, tenantID, transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Movement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// StockCard lists movements of a variant with a running balance.
func (s *Store) StockCard(ctx context.Context, tenantID, variantID uuid.UUID, limit int) ([]StockCardEntry, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.db.Query(ctx, `SELECT m.transaction_id, COALESCE(t.document_number, ''), m.movement_type, COALESCE(t.posted_at, m.created_at), m.quantity, m.unit_cost,
SUM(m.quantity) OVER (ORDER BY m.created_at, m.id)
FROM inventory_movements m JOIN transactions t ON t.id = m.transaction_id
WHERE m.tenant_id=$1 AND m.variant_id=$2
ORDER BY m.created_at, m.id
LIMIT $3`, tenantID, variantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StockCardEntry
	for rows.Next() {
		var e StockCardEntry
		var typ string
		var qty int64
		if err := rows.Scan(&e.TransactionID, &e.DocumentNumber, &typ, &e.PostedAt, &qty, &e.UnitCost, &e.BalanceQty); err != nil {
			return nil, err
		}
		e.Type = MovementType(typ)
		e.PostedAt = e.PostedAt.UTC()
		if qty > 0 {
			e.QtyIn = qty
		} else {
			e.QtyOut = -qty
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanMovement(row pgx.Row) (Movement, error) {
	var m Movement
	var typ string
	var created time.Time
	if err := row.Scan(&m.ID, &m.TenantID, &m.TransactionID, &m.LineID, &m.VariantID, &m.ProductID, &typ, &m.Quantity, &m.UnitCost, &created); err != nil {
		return Movement{}, err
	}
	m.Type = MovementType(typ)
	m.CreatedAt = created.UTC()
	return m, nil
}
