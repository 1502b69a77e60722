package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/bookkeeping/internal/shared"
)

// TxRepository persists entries inside the posting transaction.
type TxRepository interface {
	InsertLedgerEntry(ctx context.Context, entry Entry) error
	ListLedgerEntries(ctx context.Context, tenantID, transactionID uuid.UUID) ([]Entry, error)
}

// Writer appends entries for one tenant.
type Writer struct {
	repo     TxRepository
	tenantID uuid.UUID
	now      time.Time
}

// NewWriter builds a Writer stamping entries with now.
func NewWriter(repo TxRepository, tenantID uuid.UUID, now time.Time) *Writer {
	return &Writer{repo: repo, tenantID: tenantID, now: now}
}

// Append writes a single movement. Non-positive amounts are rejected.
func (w *Writer) Append(ctx context.Context, transactionID, counterpartyID uuid.UUID, typ EntryType, amount int64) (Entry, error) {
	if amount <= 0 {
		return Entry{}, shared.Validation("ledger amount must be positive, got %d", amount)
	}
	if counterpartyID == uuid.Nil {
		return Entry{}, shared.Validation("ledger entry requires a counterparty")
	}
	entry := Entry{
		ID:             uuid.New(),
		TenantID:       w.tenantID,
		TransactionID:  transactionID,
		CounterpartyID: counterpartyID,
		Type:           typ,
		Amount:         amount,
		CreatedAt:      w.now,
	}
	if err := w.repo.InsertLedgerEntry(ctx, entry); err != nil {
		return Entry{}, fmt.Errorf("ledger: insert %s: %w", typ, err)
	}
	return entry, nil
}

// AppendIfPositive skips zero amounts, used for optional immediate payments.
func (w *Writer) AppendIfPositive(ctx context.Context, transactionID, counterpartyID uuid.UUID, typ EntryType, amount int64) error {
	if amount == 0 {
		return nil
	}
	_, err := w.Append(ctx, transactionID, counterpartyID, typ, amount)
	return err
}
