// Package ledger appends accounts payable and receivable movements.
package ledger

import (
	"time"

	"github.com/google/uuid"
)

// EntryType enumerates AP/AR movements.
type EntryType string

const (
	EntryAPIncrease EntryType = "AP_INCREASE"
	EntryAPDecrease EntryType = "AP_DECREASE"
	EntryARIncrease EntryType = "AR_INCREASE"
	EntryARDecrease EntryType = "AR_DECREASE"
)

// Sign is +1 for increases and -1 for decreases of the counterparty balance.
func (t EntryType) Sign() int64 {
	switch t {
	case EntryAPIncrease, EntryARIncrease:
		return 1
	case EntryAPDecrease, EntryARDecrease:
		return -1
	}
	return 0
}

// Entry is one append-only accounting movement.
type Entry struct {
	ID             uuid.UUID `json:"id"`
	TenantID       uuid.UUID `json:"tenantId"`
	TransactionID  uuid.UUID `json:"transactionId"`
	CounterpartyID uuid.UUID `json:"counterpartyId"`
	Type           EntryType `json:"entryType"`
	Amount         int64     `json:"amount"`
	CreatedAt      time.Time `json:"createdAt"`
}

// NetBalance sums signed entries: positive means the tenant owes (AP) or is owed (AR).
func NetBalance(entries []Entry) int64 {
	var total int64
	for _, e := range entries {
		total += e.Type.Sign() * e.Amount
	}
	return total
}
