package ledger

import (
	"context"

	"github.com/google/uuid"

	"github.com/odyssey-erp/bookkeeping/internal/platform/db"
)

// Store implements TxRepository and balance reads on PostgreSQL.
type Store struct {
	db db.DBTX
}

// NewStore binds the store to a pool or transaction.
func NewStore(conn db.DBTX) *Store {
	return &Store{db: conn}
}

// InsertLedgerEntry appends one row.
func (s *Store) InsertLedgerEntry(ctx context.Context, e Entry) error {
	_, err := s.db.Exec(ctx, `INSERT INTO ledger_entries (id, tenant_id, transaction_id, counterparty_id, entry_type, amount, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`, e.ID, e.TenantID, e.TransactionID, e.CounterpartyID, string(e.Type), e.Amount, e.CreatedAt)
	return err
}

// ListLedgerEntries returns the entries written by one transaction.
func (s *Store) ListLedgerEntries(ctx context.Context, tenantID, transactionID uuid.UUID) ([]Entry, error) {
	rows, err := s.db.Query(ctx, `SELECT id, tenant_id, transaction_id, counterparty_id, entry_type, amount, created_at
FROM ledger_entries WHERE tenant_id=$1 AND transaction_id=$2 ORDER BY created_at, id`, tenantID, transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var e Entry
		var typ string
		if err := rows.Scan(&e.ID, &e.TenantID, &e.TransactionID, &e.CounterpartyID, &typ, &e.Amount, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Type = EntryType(typ)
		e.CreatedAt = e.CreatedAt.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// CounterpartyBalance returns the net AP/AR balance derived from ledger entries.
func (s *Store) CounterpartyBalance(ctx context.Context, tenantID, counterpartyID uuid.UUID) (int64, error) {
	var balance int64
	err := s.db.QueryRow(ctx, `SELECT COALESCE(SUM(CASE WHEN entry_type IN ('AP_INCREASE','AR_INCREASE') THEN amount ELSE -amount END), 0)
FROM ledger_entries WHERE tenant_id=$1 AND counterparty_id=$2`, tenantID, counterpartyID).Scan(&balance)
	return balance, err
}
