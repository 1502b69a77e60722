// Package documents holds the business document model shared by drafting and posting.
package documents

import (
	"time"

	"github.com/google/uuid"
)

// Type enumerates supported business documents.
type Type string

const (
	TypePurchase         Type = "PURCHASE"
	TypeSale             Type = "SALE"
	TypeSupplierPayment  Type = "SUPPLIER_PAYMENT"
	TypeCustomerPayment  Type = "CUSTOMER_PAYMENT"
	TypeSupplierReturn   Type = "SUPPLIER_RETURN"
	TypeCustomerReturn   Type = "CUSTOMER_RETURN"
	TypeInternalTransfer Type = "INTERNAL_TRANSFER"
	TypeAdjustment       Type = "ADJUSTMENT"
)

// Types lists every document type in a stable order.
var Types = []Type{
	TypePurchase, TypeSale, TypeSupplierPayment, TypeCustomerPayment,
	TypeSupplierReturn, TypeCustomerReturn, TypeInternalTransfer, TypeAdjustment,
}

var prefixes = map[Type]string{
	TypePurchase:         "PUR",
	TypeSale:             "SAL",
	TypeSupplierPayment:  "SPY",
	TypeCustomerPayment:  "CPY",
	TypeSupplierReturn:   "SRN",
	TypeCustomerReturn:   "CRN",
	TypeInternalTransfer: "TRF",
	TypeAdjustment:       "ADJ",
}

// Valid reports whether t is a known type.
func (t Type) Valid() bool {
	_, ok := prefixes[t]
	return ok
}

// Prefix returns the document number prefix.
func (t Type) Prefix() string {
	return prefixes[t]
}

// Side tells whether the document touches payables or receivables.
type Side string

const (
	SideNone       Side = ""
	SidePayable    Side = "AP"
	SideReceivable Side = "AR"
)

// Side returns the counterparty side of the document.
func (t Type) Side() Side {
	switch t {
	case TypePurchase, TypeSupplierPayment, TypeSupplierReturn:
		return SidePayable
	case TypeSale, TypeCustomerPayment, TypeCustomerReturn:
		return SideReceivable
	default:
		return SideNone
	}
}

// InvoiceType returns the invoice-like type settled on the given side.
func (s Side) InvoiceType() Type {
	if s == SidePayable {
		return TypePurchase
	}
	return TypeSale
}

// IsInvoice reports whether the document can be settled by allocations.
func (t Type) IsInvoice() bool {
	return t == TypePurchase || t == TypeSale
}

// IsReturn reports whether lines reference a source line.
func (t Type) IsReturn() bool {
	return t == TypeSupplierReturn || t == TypeCustomerReturn
}

// HasLines reports whether the document carries product lines.
func (t Type) HasLines() bool {
	switch t {
	case TypePurchase, TypeSale, TypeSupplierReturn, TypeCustomerReturn, TypeAdjustment:
		return true
	}
	return false
}

// ReturnSourceType returns the document type a return line must reference.
func (t Type) ReturnSourceType() Type {
	if t == TypeSupplierReturn {
		return TypePurchase
	}
	return TypeSale
}

// Status of a transaction.
type Status string

const (
	StatusDraft  Status = "DRAFT"
	StatusPosted Status = "POSTED"
)

// ReturnMode selects how a return is settled.
type ReturnMode string

const (
	ReturnModeStoreCredit ReturnMode = "STORE_CREDIT"
	ReturnModeRefundNow   ReturnMode = "REFUND_NOW"
)

// Transaction is the header of a business document.
type Transaction struct {
	ID               uuid.UUID  `json:"id"`
	TenantID         uuid.UUID  `json:"tenantId"`
	Type             Type       `json:"type"`
	Status           Status     `json:"status"`
	DocumentNumber   *string    `json:"documentNumber,omitempty"`
	Series           string     `json:"series,omitempty"`
	Date             time.Time  `json:"date"`
	CounterpartyID   *uuid.UUID `json:"counterpartyId,omitempty"`
	PaymentAccountID *uuid.UUID `json:"paymentAccountId,omitempty"`
	CounterAccountID *uuid.UUID `json:"counterAccountId,omitempty"`
	Subtotal         int64      `json:"subtotal"`
	DiscountTotal    int64      `json:"discountTotal"`
	DeliveryFee      int64      `json:"deliveryFee"`
	TotalAmount      int64      `json:"totalAmount"`
	PaidNow          int64      `json:"paidNow"`
	ReturnMode       ReturnMode `json:"returnMode,omitempty"`
	IdempotencyKey   *string    `json:"idempotencyKey,omitempty"`
	Notes            string     `json:"notes,omitempty"`
	PostedAt         *time.Time `json:"postedAt,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	Seq              int64      `json:"seq"`
	Lines            []Line     `json:"lines,omitempty"`
}

// Line is one product line of a document.
type Line struct {
	ID             uuid.UUID  `json:"id"`
	TransactionID  uuid.UUID  `json:"transactionId"`
	Position       int        `json:"position"`
	ProductID      uuid.UUID  `json:"productId"`
	VariantID      uuid.UUID  `json:"variantId"`
	Quantity       int64      `json:"quantity"`
	UnitPrice      int64      `json:"unitPrice"`
	DiscountAmount int64      `json:"discountAmount"`
	LineTotal      int64      `json:"lineTotal"`
	SourceLineID   *uuid.UUID `json:"sourceLineId,omitempty"`
}

// IsPosted reports the terminal state.
func (t *Transaction) IsPosted() bool {
	return t.Status == StatusPosted
}

// Counterparty returns the counterparty id or uuid.Nil.
func (t *Transaction) Counterparty() uuid.UUID {
	if t.CounterpartyID == nil {
		return uuid.Nil
	}
	return *t.CounterpartyID
}

// Counterparty is the minimal supplier/customer view the core depends on.
type Counterparty struct {
	ID       uuid.UUID `json:"id"`
	TenantID uuid.UUID `json:"tenantId"`
	Kind     Side      `json:"kind"`
	Name     string    `json:"name"`
	Active   bool      `json:"active"`
}

// Date truncates t to a UTC calendar date.
func Date(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
