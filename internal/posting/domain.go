// Package posting turns DRAFT documents into immutable POSTED records.
package posting

import (
	"context"

	"github.com/google/uuid"

	"github.com/odyssey-erp/bookkeeping/internal/allocation"
	"github.com/odyssey-erp/bookkeeping/internal/documents"
	"github.com/odyssey-erp/bookkeeping/internal/inventory"
	"github.com/odyssey-erp/bookkeeping/internal/ledger"
	"github.com/odyssey-erp/bookkeeping/internal/payments"
	"github.com/odyssey-erp/bookkeeping/internal/returns"
	"github.com/odyssey-erp/bookkeeping/internal/sequence"
)

// Instructions accompany a posting request.
type Instructions struct {
	IdempotencyKey   string                   `json:"idempotencyKey" validate:"required,max=128"`
	PaidNow          *int64                   `json:"paidNow,omitempty" validate:"omitempty,min=0"`
	PaymentAccountID *uuid.UUID               `json:"paymentAccountId,omitempty"`
	Allocations      []allocation.Instruction `json:"allocations,omitempty" validate:"omitempty,dive"`
	ReturnMode       documents.ReturnMode     `json:"returnMode,omitempty" validate:"omitempty,oneof=STORE_CREDIT REFUND_NOW"`
	ActorID          string                   `json:"-"`
}

// Result is the composed view of a posted document.
type Result struct {
	Transaction documents.Transaction   `json:"transaction"`
	Ledger      []ledger.Entry          `json:"ledgerEntries"`
	Inventory   []inventory.Movement    `json:"inventoryMovements"`
	Payments    []payments.Entry        `json:"paymentEntries"`
	Allocations []allocation.Allocation `json:"allocations"`
}

// DocumentRepository loads and transitions documents.
type DocumentRepository interface {
	GetTransaction(ctx context.Context, tenantID, id uuid.UUID) (documents.Transaction, error)
	GetTransactionForUpdate(ctx context.Context, tenantID, id uuid.UUID) (documents.Transaction, error)
	GetCounterparty(ctx context.Context, tenantID, id uuid.UUID) (documents.Counterparty, error)
	MarkPosted(ctx context.Context, txn *documents.Transaction) error
}

// KeyRegistry binds idempotency keys to transactions.
type KeyRegistry interface {
	Claim(ctx context.Context, tenantID uuid.UUID, key string, transactionID uuid.UUID) error
}

// Repos groups the component repositories bound to one database transaction.
type Repos struct {
	Documents   DocumentRepository
	Sequences   sequence.TxRepository
	Ledger      ledger.TxRepository
	Inventory   inventory.TxRepository
	Payments    payments.TxRepository
	Allocations allocation.TxRepository
	Returns     returns.Reader
	Keys        KeyRegistry
}

// Repository opens units of work.
type Repository interface {
	// WithTx runs fn in one serializable transaction.
	WithTx(ctx context.Context, fn func(context.Context, Repos) error) error
	// Read runs fn against a consistent snapshot without taking write locks.
	Read(ctx context.Context, fn func(context.Context, Repos) error) error
}
