package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/bookkeeping/internal/shared"
)

type memoryRepo struct {
	entries []Entry
	fail    error
}

func (m *memoryRepo) InsertLedgerEntry(_ context.Context, e Entry) error {
	if m.fail != nil {
		return m.fail
	}
	m.entries = append(m.entries, e)
	return nil
}

func (m *memoryRepo) ListLedgerEntries(_ context.Context, _, transactionID uuid.UUID) ([]Entry, error) {
	var out []Entry
	for _, e := range m.entries {
		if e.TransactionID == transactionID {
			out = append(out, e)
		}
	}
	return out, nil
}

func TestAppendAndNetBalance(t *testing.T) {
	repo := &memoryRepo{}
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	w := NewWriter(repo, uuid.New(), now)
	ctx := context.Background()
	txn, supplier := uuid.New(), uuid.New()

	_, err := w.Append(ctx, txn, supplier, EntryAPIncrease, 5000)
	require.NoError(t, err)
	require.NoError(t, w.AppendIfPositive(ctx, txn, supplier, EntryAPDecrease, 3000))
	require.NoError(t, w.AppendIfPositive(ctx, txn, supplier, EntryAPDecrease, 0))

	require.Len(t, repo.entries, 2)
	require.Equal(t, now, repo.entries[0].CreatedAt)
	require.Equal(t, int64(2000), NetBalance(repo.entries))
}

func TestAppendRejectsBadInput(t *testing.T) {
	w := NewWriter(&memoryRepo{}, uuid.New(), time.Now())
	_, err := w.Append(context.Background(), uuid.New(), uuid.New(), EntryARIncrease, -1)
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = w.Append(context.Background(), uuid.New(), uuid.Nil, EntryARIncrease, 10)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestAppendWrapsStoreError(t *testing.T) {
	boom := errors.New("boom")
	w := NewWriter(&memoryRepo{fail: boom}, uuid.New(), time.Now())
	_, err := w.Append(context.Background(), uuid.New(), uuid.New(), EntryARDecrease, 10)
	require.ErrorIs(t, err, boom)
}
