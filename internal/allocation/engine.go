package allocation

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/bookkeeping/internal/documents"
	"github.com/odyssey-erp/bookkeeping/internal/shared"
)

// TxRepository exposes the reads and writes the engine performs inside the posting transaction.
type TxRepository interface {
	// LockAllocationTarget locks the tenant's document row and returns its settlement
	// state. Documents of other tenants are reported as not found.
	LockAllocationTarget(ctx context.Context, tenantID, transactionID uuid.UUID) (OpenDocument, error)
	// LockOpenDocuments returns open documents oldest first (date, then creation order).
	LockOpenDocuments(ctx context.Context, tenantID, counterpartyID uuid.UUID, typ documents.Type) ([]OpenDocument, error)
	InsertAllocation(ctx context.Context, a Allocation) error
	ListAllocationsByPayment(ctx context.Context, tenantID, paymentTransactionID uuid.UUID) ([]Allocation, error)
}

// Request describes a payment-bearing document to settle.
type Request struct {
	TenantID             uuid.UUID
	PaymentTransactionID uuid.UUID
	CounterpartyID       uuid.UUID
	InvoiceType          documents.Type
	Amount               int64
	Instructions         []Instruction
}

// Engine writes allocations for one posting.
type Engine struct {
	repo TxRepository
	now  time.Time
}

// NewEngine builds an Engine.
func NewEngine(repo TxRepository, now time.Time) *Engine {
	return &Engine{repo: repo, now: now}
}

// Apply settles req.Amount against the counterparty's invoices, following explicit
// instructions when present and oldest-first otherwise. Any remainder stays unapplied.
func (e *Engine) Apply(ctx context.Context, req Request) ([]Allocation, error) {
	if req.Amount <= 0 {
		return nil, nil
	}
	var plan []Planned
	var err error
	if len(req.Instructions) > 0 {
		plan, err = e.planExplicit(ctx, req)
	} else {
		var open []OpenDocument
		open, err = e.repo.LockOpenDocuments(ctx, req.TenantID, req.CounterpartyID, req.InvoiceType)
		if err != nil {
			return nil, fmt.Errorf("allocation: open documents: %w", err)
		}
		plan = PlanFIFO(open, req.Amount)
	}
	if err != nil {
		return nil, err
	}
	out := make([]Allocation, 0, len(plan))
	for _, p := range plan {
		a, err := e.insert(ctx, req.TenantID, req.PaymentTransactionID, p.TransactionID, p.Amount)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// SelfAllocate records the immediate payment of a purchase or sale against itself.
func (e *Engine) SelfAllocate(ctx context.Context, tenantID, transactionID uuid.UUID, amount int64) (Allocation, error) {
	if amount <= 0 {
		return Allocation{}, shared.Validation("self allocation amount must be positive")
	}
	return e.insert(ctx, tenantID, transactionID, transactionID, amount)
}

func (e *Engine) planExplicit(ctx context.Context, req Request) ([]Planned, error) {
	requested := map[uuid.UUID]int64{}
	var order []uuid.UUID
	var total int64
	for _, in := range req.Instructions {
		if in.TransactionID == uuid.Nil {
			return nil, shared.Validation("allocation target required")
		}
		if in.Amount <= 0 {
			return nil, shared.Validation("allocation amount must be positive, got %d", in.Amount)
		}
		if in.Amount > req.Amount-total {
			return nil, shared.Conflict("allocations exceed payment amount %d", req.Amount)
		}
		if _, ok := requested[in.TransactionID]; !ok {
			order = append(order, in.TransactionID)
		}
		requested[in.TransactionID] += in.Amount
		total += in.Amount
	}

	locking := append([]uuid.UUID(nil), order...)
	sort.Slice(locking, func(i, j int) bool { return bytes.Compare(locking[i][:], locking[j][:]) < 0 })
	for _, id := range locking {
		doc, err := e.repo.LockAllocationTarget(ctx, req.TenantID, id)
		if err != nil {
			return nil, err
		}
		if err := checkTarget(req, doc, requested[id]); err != nil {
			return nil, err
		}
	}

	plan := make([]Planned, 0, len(order))
	for _, id := range order {
		plan = append(plan, Planned{TransactionID: id, Amount: requested[id]})
	}
	return plan, nil
}

func checkTarget(req Request, doc OpenDocument, amount int64) error {
	switch {
	case doc.CounterpartyID != req.CounterpartyID:
		return shared.Conflict("allocation target %s belongs to another counterparty", doc.TransactionID)
	case doc.Status != documents.StatusPosted:
		return shared.Conflict("allocation target %s is not posted", doc.TransactionID)
	case doc.Type != req.InvoiceType:
		return shared.Conflict("allocation target %s is %s, expected %s", doc.TransactionID, doc.Type, req.InvoiceType)
	case doc.Outstanding < amount:
		return shared.Conflict("allocation of %d exceeds outstanding %d on %s", amount, doc.Outstanding, doc.DocumentNumber)
	}
	return nil
}

// PlanFIFO greedily applies amount to documents ordered by date then creation order.
func PlanFIFO(docs []OpenDocument, amount int64) []Planned {
	sorted := append([]OpenDocument(nil), docs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Date.Equal(sorted[j].Date) {
			return sorted[i].Date.Before(sorted[j].Date)
		}
		return sorted[i].Seq < sorted[j].Seq
	})
	var plan []Planned
	remaining := amount
	for _, doc := range sorted {
		if remaining <= 0 {
			break
		}
		if doc.Outstanding <= 0 {
			continue
		}
		apply := min(doc.Outstanding, remaining)
		plan = append(plan, Planned{TransactionID: doc.TransactionID, Amount: apply})
		remaining -= apply
	}
	return plan
}

func (e *Engine) insert(ctx context.Context, tenantID, paymentID, invoiceID uuid.UUID, amount int64) (Allocation, error) {
	a := Allocation{
		ID:                     uuid.New(),
		TenantID:               tenantID,
		PaymentTransactionID:   paymentID,
		AppliesToTransactionID: invoiceID,
		AmountApplied:          amount,
		CreatedAt:              e.now,
	}
	if err := e.repo.InsertAllocation(ctx, a); err != nil {
		return Allocation{}, fmt.Errorf("allocation: insert: %w", err)
	}
	return a, nil
}
