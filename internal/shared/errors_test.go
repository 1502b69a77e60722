package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestErrorConstructorsWrapSentinels(t *testing.T) {
	cases := []struct {
		err      error
		sentinel error
	}{
		{NotFound("variant %s", "x"), ErrNotFound},
		{Validation("quantity must not be zero"), ErrValidation},
		{Conflict("already posted"), ErrDomainConflict},
		{IdempotencyConflict("key %q", "k1"), ErrIdempotencyConflict},
	}
	for _, tc := range cases {
		require.ErrorIs(t, tc.err, tc.sentinel)
		require.False(t, IsRetryable(tc.err))
	}
}

func TestInsufficientStockError(t *testing.T) {
	variant := uuid.New()
	single := &InsufficientStockError{Lines: []StockShortfall{{VariantID: variant, Available: 2, Required: 5}}}
	require.ErrorIs(t, single, ErrInsufficientStock)
	require.Contains(t, single.Error(), variant.String())

	wrapped := fmt.Errorf("post: %w", &InsufficientStockError{Lines: make([]StockShortfall, 3)})
	var target *InsufficientStockError
	require.True(t, errors.As(wrapped, &target))
	require.Len(t, target.Lines, 3)
	require.Equal(t, "insufficient stock on 3 lines", target.Error())
}

func TestIsRetryable(t *testing.T) {
	require.True(t, IsRetryable(fmt.Errorf("%w: 40001", ErrSerializationConflict)))
	require.False(t, IsRetryable(errors.New("boom")))
	require.False(t, IsRetryable(nil))
}

func TestKeys(t *testing.T) {
	tenant := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	txn := uuid.MustParse("22222222-2222-2222-2222-222222222222")
	require.Equal(t, "posting:"+tenant.String()+":"+txn.String()+":k1", PostingKey(tenant, txn, "k1"))
	require.Equal(t, "bookkeeping:posted:"+tenant.String()+":"+txn.String(), PostedResultKey(tenant, txn))
}

func TestNewPagination(t *testing.T) {
	p := NewPagination(0, 0, 101)
	require.Equal(t, 1, p.Page)
	require.Equal(t, 50, p.PerPage)
	require.Equal(t, 3, p.TotalPages)
	require.Zero(t, p.Offset())

	p = NewPagination(3, 10, 25)
	require.Equal(t, 20, p.Offset())
	require.Equal(t, 3, p.TotalPages)
}
