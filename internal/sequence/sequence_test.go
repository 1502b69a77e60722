package sequence

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/bookkeeping/internal/documents"
)

type counterKey struct {
	tenant uuid.UUID
	typ    documents.Type
	year   int
}

type memoryCounter struct {
	seq  map[counterKey]int64
	fail bool
}

func (m *memoryCounter) NextSequence(_ context.Context, tenantID uuid.UUID, docType documents.Type, year int) (int64, error) {
	if m.fail {
		return 0, errors.New("boom")
	}
	k := counterKey{tenantID, docType, year}
	m.seq[k]++
	return m.seq[k], nil
}

func TestFormatPrefixes(t *testing.T) {
	want := map[documents.Type]string{
		documents.TypePurchase:         "PUR-2024-0001",
		documents.TypeSale:             "SAL-2024-0001",
		documents.TypeSupplierPayment:  "SPY-2024-0001",
		documents.TypeCustomerPayment:  "CPY-2024-0001",
		documents.TypeSupplierReturn:   "SRN-2024-0001",
		documents.TypeCustomerReturn:   "CRN-2024-0001",
		documents.TypeInternalTransfer: "TRF-2024-0001",
		documents.TypeAdjustment:       "ADJ-2024-0001",
	}
	for typ, number := range want {
		require.Equal(t, number, Format(typ, 2024, 1))
	}
	require.Equal(t, "SAL-2025-12345", Format(documents.TypeSale, 2025, 12345))
}

func TestNextIsScopedPerTenantTypeAndYear(t *testing.T) {
	repo := &memoryCounter{seq: map[counterKey]int64{}}
	ctx := context.Background()
	tenantA, tenantB := uuid.New(), uuid.New()

	n, err := Next(ctx, repo, tenantA, documents.TypeSale, 2024)
	require.NoError(t, err)
	require.Equal(t, "SAL-2024-0001", n)
	n, err = Next(ctx, repo, tenantA, documents.TypeSale, 2024)
	require.NoError(t, err)
	require.Equal(t, "SAL-2024-0002", n)

	n, err = Next(ctx, repo, tenantB, documents.TypeSale, 2024)
	require.NoError(t, err)
	require.Equal(t, "SAL-2024-0001", n)
	n, err = Next(ctx, repo, tenantA, documents.TypePurchase, 2024)
	require.NoError(t, err)
	require.Equal(t, "PUR-2024-0001", n)
	n, err = Next(ctx, repo, tenantA, documents.TypeSale, 2025)
	require.NoError(t, err)
	require.Equal(t, "SAL-2025-0001", n)
}

func TestNextRejectsUnknownType(t *testing.T) {
	_, err := Next(context.Background(), &memoryCounter{seq: map[counterKey]int64{}}, uuid.New(), documents.Type("INVOICE"), 2024)
	require.Error(t, err)
}

func TestNextWrapsRepositoryError(t *testing.T) {
	_, err := Next(context.Background(), &memoryCounter{fail: true}, uuid.New(), documents.TypeSale, 2024)
	require.ErrorContains(t, err, "boom")
}
