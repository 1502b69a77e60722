package sequence

import (
	"context"

	"github.com/google/uuid"

	"github.com/odyssey-erp/bookkeeping/internal/documents"
	"github.com/odyssey-erp/bookkeeping/internal/platform/db"
)

// Store implements TxRepository on PostgreSQL.
type Store struct {
	db db.DBTX
}

// NewStore binds the store to a pgx transaction.
func NewStore(conn db.DBTX) *Store {
	return &Store{db: conn}
}

// NextSequence increments and returns the counter. The upsert holds the row lock
// until the surrounding transaction ends.
func (s *Store) NextSequence(ctx context.Context, tenantID uuid.UUID, docType documents.Type, year int) (int64, error) {
	const query = `INSERT INTO document_sequences (tenant_id, doc_type, year, seq)
VALUES ($1, $2, $3, 1)
ON CONFLICT (tenant_id, doc_type, year) DO UPDATE SET seq = document_sequences.seq + 1
RETURNING seq`
	var seq int64
	err := s.db.QueryRow(ctx, query, tenantID, string(docType), year).Scan(&seq)
	return seq, err
}
