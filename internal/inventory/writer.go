package inventory

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/bookkeeping/internal/shared"
	"github.com/odyssey-erp/bookkeeping/internal/valuation"
)

// TxRepository exposes transactional operations used by the writer.
type TxRepository interface {
	// LockVariants reads and locks variants in the given order.
	LockVariants(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]Variant, error)
	VariantStock(ctx context.Context, tenantID, variantID uuid.UUID) (int64, error)
	UpdateVariantAvgCost(ctx context.Context, tenantID, variantID uuid.UUID, avgCost int64) error
	InsertMovement(ctx context.Context, m Movement) error
	MovementForLine(ctx context.Context, tenantID, lineID uuid.UUID) (Movement, error)
	ListMovements(ctx context.Context, tenantID, transactionID uuid.UUID) ([]Movement, error)
}

// Writer appends movements for one tenant inside a posting transaction.
type Writer struct {
	repo     TxRepository
	tenantID uuid.UUID
	now      time.Time
	variants map[uuid.UUID]Variant
}

// NewWriter builds a Writer.
func NewWriter(repo TxRepository, tenantID uuid.UUID, now time.Time) *Writer {
	return &Writer{repo: repo, tenantID: tenantID, now: now, variants: map[uuid.UUID]Variant{}}
}

// Lock acquires row locks on every distinct variant in ascending id order so
// concurrent postings touching overlapping variants cannot deadlock.
func (w *Writer) Lock(ctx context.Context, ids []uuid.UUID) error {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	var pending []uuid.UUID
	for _, id := range ids {
		if _, ok := w.variants[id]; ok {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		pending = append(pending, id)
	}
	if len(pending) == 0 {
		return nil
	}
	sort.Slice(pending, func(i, j int) bool { return bytes.Compare(pending[i][:], pending[j][:]) < 0 })
	variants, err := w.repo.LockVariants(ctx, w.tenantID, pending)
	if err != nil {
		return fmt.Errorf("inventory: lock variants: %w", err)
	}
	for _, v := range variants {
		w.variants[v.ID] = v
	}
	for _, id := range pending {
		if _, ok := w.variants[id]; !ok {
			return shared.NotFound("variant %s", id)
		}
	}
	return nil
}

// Variant returns a locked variant.
func (w *Writer) Variant(id uuid.UUID) (Variant, bool) {
	v, ok := w.variants[id]
	return v, ok
}

// Stock returns the derived on-hand quantity.
func (w *Writer) Stock(ctx context.Context, variantID uuid.UUID) (int64, error) {
	return w.repo.VariantStock(ctx, w.tenantID, variantID)
}

// CheckAvailability verifies every demand before any movement is written.
// Demands on the same variant are summed. All short variants are reported together.
func (w *Writer) CheckAvailability(ctx context.Context, demands []Demand) error {
	required := map[uuid.UUID]int64{}
	product := map[uuid.UUID]uuid.UUID{}
	var order []uuid.UUID
	for _, d := range demands {
		if _, ok := required[d.VariantID]; !ok {
			order = append(order, d.VariantID)
			product[d.VariantID] = d.ProductID
		}
		required[d.VariantID] += d.Quantity
	}
	var short []shared.StockShortfall
	for _, id := range order {
		available, err := w.Stock(ctx, id)
		if err != nil {
			return err
		}
		if available < required[id] {
			short = append(short, shared.StockShortfall{
				ProductID: product[id],
				VariantID: id,
				Available: available,
				Required:  required[id],
			})
		}
	}
	if len(short) > 0 {
		return &shared.InsufficientStockError{Lines: short}
	}
	return nil
}

// Receive books a purchase: the variant is revalued with the weighted average and
// the movement is written at the new blended cost.
func (w *Writer) Receive(ctx context.Context, m Movement) (Movement, error) {
	if m.Quantity <= 0 {
		return Movement{}, shared.Validation("purchase quantity must be positive")
	}
	v, ok := w.variants[m.VariantID]
	if !ok {
		return Movement{}, fmt.Errorf("inventory: variant %s not locked", m.VariantID)
	}
	stock, err := w.Stock(ctx, m.VariantID)
	if err != nil {
		return Movement{}, err
	}
	avg := valuation.WeightedAvgCost(stock, v.AvgCost, m.Quantity, m.UnitCost)
	if err := w.repo.UpdateVariantAvgCost(ctx, w.tenantID, v.ID, avg); err != nil {
		return Movement{}, fmt.Errorf("inventory: update avg cost: %w", err)
	}
	v.AvgCost = avg
	w.variants[v.ID] = v
	m.Type = MovementPurchaseIn
	m.UnitCost = avg
	return w.insert(ctx, m)
}

// Record writes a movement at the given cost without touching the average.
// Outbound movements may not drive stock below zero. Return movements are checked
// against valuation.ReturnAvgCost and fail if they would revalue the variant.
func (w *Writer) Record(ctx context.Context, m Movement) (Movement, error) {
	if m.Quantity <= 0 {
		return Movement{}, shared.Validation("movement quantity must be positive")
	}
	v, ok := w.variants[m.VariantID]
	if !ok {
		return Movement{}, fmt.Errorf("inventory: variant %s not locked", m.VariantID)
	}
	signed := m.Quantity
	if !m.Type.Inbound() {
		signed = -m.Quantity
	}
	if !m.Type.Inbound() || m.Type.IsReturn() {
		stock, err := w.Stock(ctx, m.VariantID)
		if err != nil {
			return Movement{}, err
		}
		if !m.Type.Inbound() && stock < m.Quantity {
			return Movement{}, &shared.InsufficientStockError{Lines: []shared.StockShortfall{{
				ProductID: m.ProductID, VariantID: m.VariantID, Available: stock, Required: m.Quantity,
			}}}
		}
		if m.Type.IsReturn() {
			if avg := valuation.ReturnAvgCost(stock, v.AvgCost, signed); avg != v.AvgCost {
				return Movement{}, fmt.Errorf("inventory: %s would move average cost of %s from %d to %d", m.Type, v.ID, v.AvgCost, avg)
			}
		}
	}
	m.Quantity = signed
	return w.insert(ctx, m)
}

func (w *Writer) insert(ctx context.Context, m Movement) (Movement, error) {
	m.ID = uuid.New()
	m.TenantID = w.tenantID
	if m.ProductID == uuid.Nil {
		m.ProductID = w.variants[m.VariantID].ProductID
	}
	m.CreatedAt = w.now
	if err := w.repo.InsertMovement(ctx, m); err != nil {
		return Movement{}, fmt.Errorf("inventory: insert %s: %w", m.Type, err)
	}
	return m, nil
}
