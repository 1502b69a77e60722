package allocation

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/bookkeeping/internal/documents"
	"github.com/odyssey-erp/bookkeeping/internal/platform/db"
	"github.com/odyssey-erp/bookkeeping/internal/shared"
)

// Store persists allocations in PostgreSQL and serves the statement reads.
type Store struct {
	db db.DBTX
}

// NewStore constructs Store over a pool or transaction.
func NewStore(conn db.DBTX) *Store {
	return &Store{db: conn}
}

const openDocumentSelect = `SELECT t.id, t.tenant_id, COALESCE(t.document_number, ''), t.type, t.status, t.txn_date, t.seq, t.counterparty_id, t.total_amount,
(SELECT COALESCE(SUM(a.amount_applied), 0) FROM allocations a WHERE a.applies_to_transaction_id = t.id) AS applied
FROM transactions t`

// LockAllocationTarget locks one document row of the tenant.
func (s *Store) LockAllocationTarget(ctx context.Context, tenantID, transactionID uuid.UUID) (OpenDocument, error) {
	row := s.db.QueryRow(ctx, openDocumentSelect+` WHERE t.id=$1 AND t.tenant_id=$2 FOR UPDATE OF t`, transactionID, tenantID)
	doc, err := scanOpenDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return OpenDocument{}, shared.NotFound("allocation target %s", transactionID)
	}
	return doc, err
}

// LockOpenDocuments locks the counterparty's open invoices, oldest first.
func (s *Store) LockOpenDocuments(ctx context.Context, tenantID, counterpartyID uuid.UUID, typ documents.Type) ([]OpenDocument, error) {
	return s.queryOpen(ctx, openDocumentSelect+`
WHERE t.tenant_id=$1 AND t.counterparty_id=$2 AND t.type=$3 AND t.status='POSTED'
AND t.total_amount > (SELECT COALESCE(SUM(a.amount_applied), 0) FROM allocations a WHERE a.applies_to_transaction_id = t.id)
ORDER BY t.txn_date, t.seq
FOR UPDATE OF t`, tenantID, counterpartyID, string(typ))
}

// OpenDocuments lists open purchases and sales of a counterparty without locking.
func (s *Store) OpenDocuments(ctx context.Context, tenantID, counterpartyID uuid.UUID) ([]OpenDocument, error) {
	return s.queryOpen(ctx, openDocumentSelect+`
WHERE t.tenant_id=$1 AND t.counterparty_id=$2 AND t.type IN ('PURCHASE','SALE') AND t.status='POSTED'
AND t.total_amount > (SELECT COALESCE(SUM(a.amount_applied), 0) FROM allocations a WHERE a.applies_to_transaction_id = t.id)
ORDER BY t.txn_date, t.seq`, tenantID, counterpartyID)
}

// Credits lists the counterparty's payment-bearing documents with their unapplied part.
func (s *Store) Credits(ctx context.Context, tenantID, counterpartyID uuid.UUID) ([]Credit, error) {
	rows, err := s.db.Query(ctx, `SELECT t.id, COALESCE(t.document_number, ''), t.type, t.txn_date, t.total_amount,
(SELECT COALESCE(SUM(a.amount_applied), 0) FROM allocations a WHERE a.payment_transaction_id = t.id)
FROM transactions t
WHERE t.tenant_id=$1 AND t.counterparty_id=$2 AND t.status='POSTED'
AND (t.type IN ('SUPPLIER_PAYMENT','CUSTOMER_PAYMENT')
  OR (t.type IN ('SUPPLIER_RETURN','CUSTOMER_RETURN') AND t.return_mode='STORE_CREDIT'))
ORDER BY t.txn_date, t.seq`, tenantID, counterpartyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Credit
	for rows.Next() {
		var c Credit
		var typ string
		if err := rows.Scan(&c.TransactionID, &c.DocumentNumber, &typ, &c.Date, &c.TotalAmount, &c.Applied); err != nil {
			return nil, err
		}
		c.Type = documents.Type(typ)
		c.Date = documents.Date(c.Date)
		c.Unapplied = c.TotalAmount - c.Applied
		out = append(out, c)
	}
	return out, rows.Err()
}

// InsertAllocation appends one allocation.
func (s *Store) InsertAllocation(ctx context.Context, a Allocation) error {
	_, err := s.db.Exec(ctx, `INSERT INTO allocations (id, tenant_id, payment_transaction_id, applies_to_transaction_id, amount_applied, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`, a.ID, a.TenantID, a.PaymentTransactionID, a.AppliesToTransactionID, a.AmountApplied, a.CreatedAt)
	return err
}

// ListAllocationsByPayment returns allocations made by one payment-bearing document.
func (s *Store) ListAllocationsByPayment(ctx context.Context, tenantID, paymentTransactionID uuid.UUID) ([]Allocation, error) {
	return s.queryAllocations(ctx, allocationSelect+` WHERE tenant_id=$1 AND payment_transaction_id=$2 ORDER BY created_at, id`, tenantID, paymentTransactionID)
}

// AllocationsByInvoice returns allocations settling one invoice.
func (s *Store) AllocationsByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]Allocation, error) {
	return s.queryAllocations(ctx, allocationSelect+` WHERE tenant_id=$1 AND applies_to_transaction_id=$2 ORDER BY created_at, id`, tenantID, invoiceID)
}

// AllocationsByCounterparty pages through every allocation touching the counterparty's invoices.
func (s *Store) AllocationsByCounterparty(ctx context.Context, tenantID, counterpartyID uuid.UUID, limit, offset int) ([]Allocation, int, error) {
	var total int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM allocations a JOIN transactions t ON t.id = a.applies_to_transaction_id
WHERE a.tenant_id=$1 AND t.counterparty_id=$2`, tenantID, counterpartyID).Scan(&total); err != nil {
		return nil, 0, err
	}
	items, err := s.queryAllocations(ctx, `SELECT a.id, a.tenant_id, a.payment_transaction_id, a.applies_to_transaction_id, a.amount_applied, a.created_at
FROM allocations a JOIN transactions t ON t.id = a.applies_to_transaction_id
WHERE a.tenant_id=$1 AND t.counterparty_id=$2 ORDER BY a.created_at, a.id LIMIT $3 OFFSET $4`, tenantID, counterpartyID, limit, offset)
	return items, total, err
}

// ActiveCounterparties lists (tenant, counterparty) pairs with posted activity.
func (s *Store) ActiveCounterparties(ctx context.Context) ([]CounterpartyRef, error) {
	rows, err := s.db.Query(ctx, `SELECT DISTINCT tenant_id, counterparty_id FROM transactions
WHERE status='POSTED' AND counterparty_id IS NOT NULL ORDER BY tenant_id, counterparty_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CounterpartyRef
	for rows.Next() {
		var ref CounterpartyRef
		if err := rows.Scan(&ref.TenantID, &ref.CounterpartyID); err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, rows.Err()
}

const allocationSelect = `SELECT id, tenant_id, payment_transaction_id, applies_to_transaction_id, amount_applied, created_at FROM allocations`

func (s *Store) queryAllocations(ctx context.Context, query string, args ...any) ([]Allocation, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Allocation
	for rows.Next() {
		var a Allocation
		if err := rows.Scan(&a.ID, &a.TenantID, &a.PaymentTransactionID, &a.AppliesToTransactionID, &a.AmountApplied, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.CreatedAt = a.CreatedAt.UTC()
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) queryOpen(ctx context.Context, query string, args ...any) ([]OpenDocument, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []OpenDocument
	for rows.Next() {
		doc, err := scanOpenDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func scanOpenDocument(row pgx.Row) (OpenDocument, error) {
	var doc OpenDocument
	var typ, status string
	var counterparty *uuid.UUID
	if err := row.Scan(&doc.TransactionID, &doc.TenantID, &doc.DocumentNumber, &typ, &status, &doc.Date, &doc.Seq, &counterparty, &doc.TotalAmount, &doc.PaidAmount); err != nil {
		return OpenDocument{}, err
	}
	doc.Type = documents.Type(typ)
	doc.Status = documents.Status(status)
	doc.Date = documents.Date(doc.Date)
	if counterparty != nil {
		doc.CounterpartyID = *counterparty
	}
	doc.Outstanding = doc.TotalAmount - doc.PaidAmount
	return doc, nil
}
