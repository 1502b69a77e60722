// Package sequence mints per tenant document numbers.
package sequence

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/odyssey-erp/bookkeeping/internal/documents"
)

// TxRepository increments the (tenant, type, year) counter inside the caller's transaction.
type TxRepository interface {
	NextSequence(ctx context.Context, tenantID uuid.UUID, docType documents.Type, year int) (int64, error)
}

// Format renders "{PREFIX}-{year}-{seq:04d}".
func Format(docType documents.Type, year int, seq int64) string {
	return fmt.Sprintf("%s-%d-%04d", docType.Prefix(), year, seq)
}

// Next reserves the next number. The reservation is undone if the enclosing
// transaction rolls back, keeping posted numbers contiguous.
func Next(ctx context.Context, repo TxRepository, tenantID uuid.UUID, docType documents.Type, year int) (string, error) {
	if !docType.Valid() {
		return "", fmt.Errorf("sequence: unknown document type %q", docType)
	}
	seq, err := repo.NextSequence(ctx, tenantID, docType, year)
	if err != nil {
		return "", fmt.Errorf("sequence: next %s/%d: %w", docType, year, err)
	}
	return Format(docType, year, seq), nil
}
