package payments

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/bookkeeping/internal/shared"
)

type memoryRepo struct {
	accounts map[uuid.UUID]Account
	entries  []Entry
}

func (r *memoryRepo) GetPaymentAccount(_ context.Context, tenantID, accountID uuid.UUID) (Account, error) {
	acc, ok := r.accounts[accountID]
	if !ok || acc.TenantID != tenantID {
		return Account{}, shared.NotFound("payment account %s", accountID)
	}
	return acc, nil
}

func (r *memoryRepo) InsertPaymentEntry(_ context.Context, e Entry) error {
	r.entries = append(r.entries, e)
	return nil
}

func (r *memoryRepo) ListPaymentEntries(_ context.Context, _, transactionID uuid.UUID) ([]Entry, error) {
	var out []Entry
	for _, e := range r.entries {
		if e.TransactionID == transactionID {
			out = append(out, e)
		}
	}
	return out, nil
}

func TestTransferWritesTwoLinkedLegs(t *testing.T) {
	tenant := uuid.New()
	repo := &memoryRepo{}
	w := NewWriter(repo, tenant, time.Now())
	txn, cash, bank := uuid.New(), uuid.New(), uuid.New()

	legs, err := w.Transfer(context.Background(), txn, cash, bank, 700)
	require.NoError(t, err)
	require.Len(t, legs, 2)
	require.Equal(t, MoneyOut, legs[0].Type)
	require.Equal(t, -1, legs[0].Direction)
	require.Equal(t, cash, legs[0].AccountID)
	require.Equal(t, MoneyIn, legs[1].Type)
	require.Equal(t, 1, legs[1].Direction)
	require.Equal(t, bank, legs[1].AccountID)
	require.NotNil(t, legs[0].TransferGroupID)
	require.Equal(t, *legs[0].TransferGroupID, *legs[1].TransferGroupID)

	_, err = w.Transfer(context.Background(), txn, cash, cash, 700)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestRequireActive(t *testing.T) {
	tenant := uuid.New()
	active := Account{ID: uuid.New(), TenantID: tenant, Status: AccountActive}
	closed := Account{ID: uuid.New(), TenantID: tenant, Status: AccountInactive}
	w := NewWriter(&memoryRepo{accounts: map[uuid.UUID]Account{active.ID: active, closed.ID: closed}}, tenant, time.Now())
	ctx := context.Background()

	_, err := w.RequireActive(ctx, active.ID)
	require.NoError(t, err)
	_, err = w.RequireActive(ctx, closed.ID)
	require.ErrorIs(t, err, shared.ErrDomainConflict)
	_, err = w.RequireActive(ctx, uuid.New())
	require.ErrorIs(t, err, shared.ErrNotFound)
	_, err = w.RequireActive(ctx, uuid.Nil)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestRecordRejectsNonPositiveAmount(t *testing.T) {
	w := NewWriter(&memoryRepo{}, uuid.New(), time.Now())
	_, err := w.Record(context.Background(), uuid.New(), uuid.New(), MoneyIn, 0)
	require.ErrorIs(t, err, shared.ErrValidation)
}
