package shared

import (
	"fmt"

	"github.com/google/uuid"
)

// PostingKey identifies one posting request across processes. It doubles as the
// in-flight dedupe key and the async task id.
func PostingKey(tenantID, transactionID uuid.UUID, idempotencyKey string) string {
	return fmt.Sprintf("posting:%s:%s:%s", tenantID, transactionID, idempotencyKey)
}

// PostedResultKey builds the redis key holding a posted transaction's composed result.
func PostedResultKey(tenantID, transactionID uuid.UUID) string {
	return fmt.Sprintf("bookkeeping:posted:%s:%s", tenantID, transactionID)
}

// ReconcileLockKey is the redis lock guarding the nightly statement reconciliation.
func ReconcileLockKey() string {
	return "bookkeeping:reconcile:lock"
}
