package documents

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/bookkeeping/internal/platform/db"
	"github.com/odyssey-erp/bookkeeping/internal/shared"
)

// Store persists documents in PostgreSQL.
type Store struct {
	db db.DBTX
}

// NewStore constructs Store over a pool or transaction.
func NewStore(conn db.DBTX) *Store {
	return &Store{db: conn}
}

const transactionColumns = `id, tenant_id, type, status, document_number, COALESCE(series, ''), txn_date, counterparty_id, payment_account_id, counter_account_id,
subtotal, discount_total, delivery_fee, total_amount, paid_now, COALESCE(return_mode, ''), idempotency_key, COALESCE(notes, ''), posted_at, created_at, seq`

// GetTransaction loads a document with its lines.
func (s *Store) GetTransaction(ctx context.Context, tenantID, id uuid.UUID) (Transaction, error) {
	return s.get(ctx, tenantID, id, "")
}

// GetTransactionForUpdate loads and locks a document with its lines.
func (s *Store) GetTransactionForUpdate(ctx context.Context, tenantID, id uuid.UUID) (Transaction, error) {
	return s.get(ctx, tenantID, id, " FOR UPDATE")
}

func (s *Store) get(ctx context.Context, tenantID, id uuid.UUID, lock string) (Transaction, error) {
	row := s.db.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE tenant_id=$1 AND id=$2`+lock, tenantID, id)
	txn, err := scanTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, shared.NotFound("transaction %s", id)
	}
	if err != nil {
		return Transaction{}, err
	}
	lines, err := s.lines(ctx, id)
	if err != nil {
		return Transaction{}, err
	}
	txn.Lines = lines
	return txn, nil
}

func (s *Store) lines(ctx context.Context, transactionID uuid.UUID) ([]Line, error) {
	rows, err := s.db.Query(ctx, `SELECT id, transaction_id, position, product_id, variant_id, quantity, unit_price, discount_amount, line_total, source_line_id
FROM transaction_lines WHERE transaction_id=$1 ORDER BY position`, transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.TransactionID, &l.Position, &l.ProductID, &l.VariantID, &l.Quantity, &l.UnitPrice, &l.DiscountAmount, &l.LineTotal, &l.SourceLineID); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// InsertDraft stores a new DRAFT document and its lines. Seq is assigned by the database.
func (s *Store) InsertDraft(ctx context.Context, txn *Transaction) error {
	if txn.Status != StatusDraft || txn.DocumentNumber != nil {
		return fmt.Errorf("documents: only drafts without a number can be inserted")
	}
	err := s.db.QueryRow(ctx, `INSERT INTO transactions (id, tenant_id, type, status, txn_date, counterparty_id, payment_account_id, counter_account_id,
subtotal, discount_total, delivery_fee, total_amount, paid_now, return_mode, notes, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NULLIF($14, ''), NULLIF($15, ''), $16)
RETURNING seq`,
		txn.ID, txn.TenantID, string(txn.Type), string(txn.Status), txn.Date, txn.CounterpartyID, txn.PaymentAccountID, txn.CounterAccountID,
		txn.Subtotal, txn.DiscountTotal, txn.DeliveryFee, txn.TotalAmount, txn.PaidNow, string(txn.ReturnMode), txn.Notes, txn.CreatedAt).Scan(&txn.Seq)
	if err != nil {
		return fmt.Errorf("documents: insert transaction: %w", err)
	}
	for _, l := range txn.Lines {
		if _, err := s.db.Exec(ctx, `INSERT INTO transaction_lines (id, transaction_id, position, product_id, variant_id, quantity, unit_price, discount_amount, line_total, source_line_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			l.ID, txn.ID, l.Position, l.ProductID, l.VariantID, l.Quantity, l.UnitPrice, l.DiscountAmount, l.LineTotal, l.SourceLineID); err != nil {
			return fmt.Errorf("documents: insert line %d: %w", l.Position, err)
		}
	}
	return nil
}

// MarkPosted performs the one-way DRAFT to POSTED transition.
func (s *Store) MarkPosted(ctx context.Context, txn *Transaction) error {
	tag, err := s.db.Exec(ctx, `UPDATE transactions SET status='POSTED', document_number=$3, series=$4, idempotency_key=$5, posted_at=$6,
paid_now=$7, payment_account_id=$8, return_mode=NULLIF($9, ''), total_amount=$10
WHERE tenant_id=$1 AND id=$2 AND status='DRAFT'`,
		txn.TenantID, txn.ID, txn.DocumentNumber, txn.Series, txn.IdempotencyKey, txn.PostedAt,
		txn.PaidNow, txn.PaymentAccountID, string(txn.ReturnMode), txn.TotalAmount)
	if err != nil {
		return fmt.Errorf("documents: mark posted: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return shared.Conflict("transaction %s is no longer a draft", txn.ID)
	}
	return nil
}

// GetCounterparty loads a supplier or customer.
func (s *Store) GetCounterparty(ctx context.Context, tenantID, id uuid.UUID) (Counterparty, error) {
	var c Counterparty
	var kind string
	err := s.db.QueryRow(ctx, `SELECT id, tenant_id, kind, name, active FROM counterparties WHERE tenant_id=$1 AND id=$2`, tenantID, id).
		Scan(&c.ID, &c.TenantID, &kind, &c.Name, &c.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return Counterparty{}, shared.NotFound("counterparty %s", id)
	}
	c.Kind = Side(kind)
	return c, err
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var t Transaction
	var typ, status, mode string
	err := row.Scan(&t.ID, &t.TenantID, &typ, &status, &t.DocumentNumber, &t.Series, &t.Date, &t.CounterpartyID, &t.PaymentAccountID, &t.CounterAccountID,
		&t.Subtotal, &t.DiscountTotal, &t.DeliveryFee, &t.TotalAmount, &t.PaidNow, &mode, &t.IdempotencyKey, &t.Notes, &t.PostedAt, &t.CreatedAt, &t.Seq)
	if err != nil {
		return Transaction{}, err
	}
	t.Type = Type(typ)
	t.Status = Status(status)
	t.ReturnMode = ReturnMode(mode)
	t.Date = Date(t.Date)
	t.CreatedAt = t.CreatedAt.UTC()
	if t.PostedAt != nil {
		posted := t.PostedAt.UTC()
		t.PostedAt = &posted
	}
	return t, nil
}
