// Package inventory records stock movements per product variant.
package inventory

import (
	"time"

	"github.com/google/uuid"
)

// MovementType enumerates supported stock movements.
type MovementType string

const (
	MovementPurchaseIn        MovementType = "PURCHASE_IN"
	MovementSaleOut           MovementType = "SALE_OUT"
	MovementSupplierReturnOut MovementType = "SUPPLIER_RETURN_OUT"
	MovementCustomerReturnIn  MovementType = "CUSTOMER_RETURN_IN"
	MovementAdjustmentIn      MovementType = "ADJUSTMENT_IN"
	MovementAdjustmentOut     MovementType = "ADJUSTMENT_OUT"
)

// IsReturn reports whether the movement comes from a supplier or customer return.
func (m MovementType) IsReturn() bool {
	return m == MovementSupplierReturnOut || m == MovementCustomerReturnIn
}

// Inbound reports whether the movement adds stock.
func (m MovementType) Inbound() bool {
	switch m {
	case MovementPurchaseIn, MovementCustomerReturnIn, MovementAdjustmentIn:
		return true
	}
	return false
}

// Variant carries the running average cost. Stock is derived from movements.
type Variant struct {
	ID        uuid.UUID `json:"id"`
	TenantID  uuid.UUID `json:"tenantId"`
	ProductID uuid.UUID `json:"productId"`
	SKU       string    `json:"sku"`
	AvgCost   int64     `json:"avgCost"`
}

// Movement is one append-only stock movement. Quantity is signed.
type Movement struct {
	ID            uuid.UUID    `json:"id"`
	TenantID      uuid.UUID    `json:"tenantId"`
	TransactionID uuid.UUID    `json:"transactionId"`
	LineID        uuid.UUID    `json:"lineId"`
	VariantID     uuid.UUID    `json:"variantId"`
	ProductID     uuid.UUID    `json:"productId"`
	Type          MovementType `json:"movementType"`
	Quantity      int64        `json:"quantity"`
	UnitCost      int64        `json:"unitCost"`
	CreatedAt     time.Time    `json:"createdAt"`
}

// Demand is the outbound quantity requested for one line.
type Demand struct {
	ProductID uuid.UUID
	VariantID uuid.UUID
	Quantity  int64
}

// StockCardEntry describes one row of a variant's stock card.
type StockCardEntry struct {
	TransactionID  uuid.UUID    `json:"transactionId"`
	DocumentNumber string       `json:"documentNumber"`
	Type           MovementType `json:"movementType"`
	PostedAt       time.Time    `json:"postedAt"`
	QtyIn          int64        `json:"qtyIn"`
	QtyOut         int64        `json:"qtyOut"`
	BalanceQty     int64        `json:"balanceQty"`
	UnitCost       int64        `json:"unitCost"`
}
