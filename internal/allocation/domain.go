// Package allocation settles invoice-like documents with payment-bearing documents.
package allocation

import (
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/bookkeeping/internal/documents"
)

// Allocation applies part of a payment-bearing document to an invoice.
// PaymentTransactionID equals AppliesToTransactionID for self-allocations.
type Allocation struct {
	ID                     uuid.UUID `json:"id"`
	TenantID               uuid.UUID `json:"tenantId"`
	PaymentTransactionID   uuid.UUID `json:"paymentTransactionId"`
	AppliesToTransactionID uuid.UUID `json:"appliesToTransactionId"`
	AmountApplied          int64     `json:"amountApplied"`
	CreatedAt              time.Time `json:"createdAt"`
}

// Instruction is one explicit allocation request.
type Instruction struct {
	TransactionID uuid.UUID `json:"transactionId" validate:"required"`
	Amount        int64     `json:"amount"`
}

// OpenDocument is a posted invoice-like document with its settlement state.
type OpenDocument struct {
	TransactionID  uuid.UUID        `json:"transactionId"`
	TenantID       uuid.UUID        `json:"tenantId"`
	DocumentNumber string           `json:"documentNumber"`
	Type           documents.Type   `json:"type"`
	Status         documents.Status `json:"status"`
	Date           time.Time        `json:"date"`
	Seq            int64            `json:"-"`
	CounterpartyID uuid.UUID        `json:"counterpartyId"`
	TotalAmount    int64            `json:"totalAmount"`
	PaidAmount     int64            `json:"paidAmount"`
	Outstanding    int64            `json:"outstanding"`
}

// Credit is a payment-bearing document and how much of it is still unapplied.
type Credit struct {
	TransactionID  uuid.UUID      `json:"transactionId"`
	DocumentNumber string         `json:"documentNumber"`
	Type           documents.Type `json:"type"`
	Date           time.Time      `json:"date"`
	TotalAmount    int64          `json:"totalAmount"`
	Applied        int64          `json:"applied"`
	Unapplied      int64          `json:"unapplied"`
}

// Planned is an allocation decided but not yet written.
type Planned struct {
	TransactionID uuid.UUID
	Amount        int64
}
