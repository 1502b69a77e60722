package payments

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/bookkeeping/internal/platform/db"
	"github.com/odyssey-erp/bookkeeping/internal/shared"
)

// Store persists payment data in PostgreSQL.
type Store struct {
	db db.DBTX
}

// NewStore constructs Store over a pool or transaction.
func NewStore(conn db.DBTX) *Store {
	return &Store{db: conn}
}

// GetPaymentAccount reads an account, locking it against concurrent deactivation.
func (s *Store) GetPaymentAccount(ctx context.Context, tenantID, accountID uuid.UUID) (Account, error) {
	var acc Account
	var status string
	err := s.db.QueryRow(ctx, `SELECT id, tenant_id, name, status FROM payment_accounts WHERE tenant_id=$1 AND id=$2 FOR SHARE`, tenantID, accountID).
		Scan(&acc.ID, &acc.TenantID, &acc.Name, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, shared.NotFound("payment account %s", accountID)
	}
	acc.Status = AccountStatus(status)
	return acc, err
}

// InsertPaymentEntry appends one cash movement.
func (s *Store) InsertPaymentEntry(ctx context.Context, e Entry) error {
	_, err := s.db.Exec(ctx, `INSERT INTO payment_entries (id, tenant_id, transaction_id, account_id, entry_type, direction, amount, transfer_group_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.TenantID, e.TransactionID, e.AccountID, string(e.Type), e.Direction, e.Amount, e.TransferGroupID, e.CreatedAt)
	return err
}

// ListPaymentEntries returns the cash movements of one transaction.
func (s *Store) ListPaymentEntries(ctx context.Context, tenantID, transactionID uuid.UUID) ([]Entry, error) {
	rows, err := s.db.Query(ctx, `SELECT id, tenant_id, transaction_id, account_id, entry_type, direction, amount, transfer_group_id, created_at
FROM payment_entries WHERE tenant_id=$1 AND transaction_id=$2 ORDER BY created_at, direction, id`, tenantID, transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var e Entry
		var typ string
		if err := rows.Scan(&e.ID, &e.TenantID, &e.TransactionID, &e.AccountID, &typ, &e.Direction, &e.Amount, &e.TransferGroupID, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Type = EntryType(typ)
		e.CreatedAt = e.CreatedAt.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// AccountBalance sums signed movements of an account.
func (s *Store) AccountBalance(ctx context.Context, tenantID, accountID uuid.UUID) (int64, error) {
	var balance int64
	err := s.db.QueryRow(ctx, `SELECT COALESCE(SUM(direction * amount), 0) FROM payment_entries WHERE tenant_id=$1 AND account_id=$2`, tenantID, accountID).Scan(&balance)
	return balance, err
}
