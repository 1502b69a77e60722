// Package payments records cash movements per payment account.
package payments

import (
	"time"

	"github.com/google/uuid"
)

// AccountStatus of a payment account.
type AccountStatus string

const (
	AccountActive   AccountStatus = "ACTIVE"
	AccountInactive AccountStatus = "INACTIVE"
)

// Account is a cash or bank account maintained outside the core.
type Account struct {
	ID       uuid.UUID     `json:"id"`
	TenantID uuid.UUID     `json:"tenantId"`
	Name     string        `json:"name"`
	Status   AccountStatus `json:"status"`
}

// EntryType enumerates cash movements.
type EntryType string

const (
	MoneyIn  EntryType = "MONEY_IN"
	MoneyOut EntryType = "MONEY_OUT"
)

// Direction is +1 for money in and -1 for money out.
func (t EntryType) Direction() int {
	if t == MoneyIn {
		return 1
	}
	return -1
}

// Entry is one append-only cash movement.
type Entry struct {
	ID              uuid.UUID  `json:"id"`
	TenantID        uuid.UUID  `json:"tenantId"`
	TransactionID   uuid.UUID  `json:"transactionId"`
	AccountID       uuid.UUID  `json:"paymentAccountId"`
	Type            EntryType  `json:"entryType"`
	Direction       int        `json:"direction"`
	Amount          int64      `json:"amount"`
	TransferGroupID *uuid.UUID `json:"transferGroupId,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}
