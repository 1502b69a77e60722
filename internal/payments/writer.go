package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/bookkeeping/internal/shared"
)

// TxRepository persists cash movements inside the posting transaction.
type TxRepository interface {
	GetPaymentAccount(ctx context.Context, tenantID, accountID uuid.UUID) (Account, error)
	InsertPaymentEntry(ctx context.Context, entry Entry) error
	ListPaymentEntries(ctx context.Context, tenantID, transactionID uuid.UUID) ([]Entry, error)
}

// Writer appends cash movements for one tenant.
type Writer struct {
	repo     TxRepository
	tenantID uuid.UUID
	now      time.Time
}

// NewWriter builds a Writer.
func NewWriter(repo TxRepository, tenantID uuid.UUID, now time.Time) *Writer {
	return &Writer{repo: repo, tenantID: tenantID, now: now}
}

// RequireActive loads an account and rejects inactive ones.
func (w *Writer) RequireActive(ctx context.Context, accountID uuid.UUID) (Account, error) {
	if accountID == uuid.Nil {
		return Account{}, shared.Validation("payment account required")
	}
	acc, err := w.repo.GetPaymentAccount(ctx, w.tenantID, accountID)
	if err != nil {
		return Account{}, err
	}
	if acc.Status != AccountActive {
		return Account{}, shared.Conflict("payment account %s is %s", acc.ID, acc.Status)
	}
	return acc, nil
}

// Record writes a single movement.
func (w *Writer) Record(ctx context.Context, transactionID, accountID uuid.UUID, typ EntryType, amount int64) (Entry, error) {
	return w.record(ctx, transactionID, accountID, typ, amount, nil)
}

// Transfer writes the two legs of an internal transfer sharing one group id.
func (w *Writer) Transfer(ctx context.Context, transactionID, from, to uuid.UUID, amount int64) ([]Entry, error) {
	if from == to {
		return nil, shared.Validation("transfer source and destination must differ")
	}
	group := uuid.New()
	out, err := w.record(ctx, transactionID, from, MoneyOut, amount, &group)
	if err != nil {
		return nil, err
	}
	in, err := w.record(ctx, transactionID, to, MoneyIn, amount, &group)
	if err != nil {
		return nil, err
	}
	return []Entry{out, in}, nil
}

func (w *Writer) record(ctx context.Context, transactionID, accountID uuid.UUID, typ EntryType, amount int64, group *uuid.UUID) (Entry, error) {
	if amount <= 0 {
		return Entry{}, shared.Validation("payment amount must be positive, got %d", amount)
	}
	entry := Entry{
		ID:              uuid.New(),
		TenantID:        w.tenantID,
		TransactionID:   transactionID,
		AccountID:       accountID,
		Type:            typ,
		Direction:       typ.Direction(),
		Amount:          amount,
		TransferGroupID: group,
		CreatedAt:       w.now,
	}
	if err := w.repo.InsertPaymentEntry(ctx, entry); err != nil {
		return Entry{}, fmt.Errorf("payments: insert %s: %w", typ, err)
	}
	return entry, nil
}
