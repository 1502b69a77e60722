// Package drafts creates editable DRAFT documents for the posting engine.
package drafts

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/bookkeeping/internal/documents"
	"github.com/odyssey-erp/bookkeeping/internal/inventory"
	"github.com/odyssey-erp/bookkeeping/internal/returns"
)

// LineInput is one requested product line.
type LineInput struct {
	VariantID      uuid.UUID  `json:"variantId" validate:"required"`
	Quantity       int64      `json:"quantity" validate:"ne=0"`
	UnitPrice      int64      `json:"unitPrice" validate:"min=0"`
	DiscountAmount int64      `json:"discountAmount" validate:"min=0"`
	SourceLineID   *uuid.UUID `json:"sourceLineId,omitempty"`
}

// CreateInput describes a new draft. TotalAmount is only read for documents
// without lines; line documents derive their totals.
type CreateInput struct {
	Type             documents.Type       `json:"type" validate:"required"`
	Date             time.Time            `json:"date" validate:"required"`
	CounterpartyID   *uuid.UUID           `json:"counterpartyId,omitempty"`
	PaymentAccountID *uuid.UUID           `json:"paymentAccountId,omitempty"`
	CounterAccountID *uuid.UUID           `json:"counterAccountId,omitempty"`
	DiscountTotal    int64                `json:"discountTotal" validate:"min=0"`
	DeliveryFee      int64                `json:"deliveryFee" validate:"min=0"`
	TotalAmount      int64                `json:"totalAmount" validate:"min=0"`
	PaidNow          int64                `json:"paidNow" validate:"min=0"`
	ReturnMode       documents.ReturnMode `json:"returnMode,omitempty" validate:"omitempty,oneof=STORE_CREDIT REFUND_NOW"`
	Notes            string               `json:"notes,omitempty" validate:"max=500"`
	Lines            []LineInput          `json:"lines,omitempty" validate:"omitempty,dive"`
}

// TxRepository is the transactional surface used while drafting.
type TxRepository interface {
	InsertDraft(ctx context.Context, txn *documents.Transaction) error
	GetCounterparty(ctx context.Context, tenantID, id uuid.UUID) (documents.Counterparty, error)
	LockVariants(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]inventory.Variant, error)
	SourceLine(ctx context.Context, lineID uuid.UUID) (returns.SourceLine, error)
	ReturnedQuantity(ctx context.Context, sourceLineID uuid.UUID) (int64, error)
}

// Repository opens draft units of work.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}
