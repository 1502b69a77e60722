package posting

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/bookkeeping/internal/allocation"
	"github.com/odyssey-erp/bookkeeping/internal/documents"
	"github.com/odyssey-erp/bookkeeping/internal/inventory"
	"github.com/odyssey-erp/bookkeeping/internal/ledger"
	"github.com/odyssey-erp/bookkeeping/internal/payments"
	"github.com/odyssey-erp/bookkeeping/internal/returns"
	"github.com/odyssey-erp/bookkeeping/internal/shared"
)

// strategy produces the effects of one document type.
type strategy interface {
	// prepare validates the document and resolves everything the writes depend on.
	// It must not write.
	prepare(ctx context.Context, p *unit) error
	// apply writes ledger, inventory, payment and allocation effects.
	apply(ctx context.Context, p *unit) error
}

// side maps a counterparty side to its ledger and cash effects.
type side struct {
	increase    ledger.EntryType
	decrease    ledger.EntryType
	invoiceType documents.Type
	kind        documents.Side
	// settle is the cash direction when the tenant settles with the counterparty.
	settle payments.EntryType
	// refund is the cash direction of a refunded return.
	refund payments.EntryType
}

var (
	payable = side{
		increase:    ledger.EntryAPIncrease,
		decrease:    ledger.EntryAPDecrease,
		invoiceType: documents.TypePurchase,
		kind:        documents.SidePayable,
		settle:      payments.MoneyOut,
		refund:      payments.MoneyIn,
	}
	receivable = side{
		increase:    ledger.EntryARIncrease,
		decrease:    ledger.EntryARDecrease,
		invoiceType: documents.TypeSale,
		kind:        documents.SideReceivable,
		settle:      payments.MoneyIn,
		refund:      payments.MoneyOut,
	}
)

var strategies = map[documents.Type]strategy{
	documents.TypePurchase:         invoiceStrategy{side: payable},
	documents.TypeSale:             invoiceStrategy{side: receivable},
	documents.TypeSupplierPayment:  paymentStrategy{side: payable},
	documents.TypeCustomerPayment:  paymentStrategy{side: receivable},
	documents.TypeSupplierReturn:   returnStrategy{side: payable},
	documents.TypeCustomerReturn:   returnStrategy{side: receivable},
	documents.TypeInternalTransfer: transferStrategy{},
	documents.TypeAdjustment:       adjustmentStrategy{},
}

// unit carries one posting through prepare and apply.
type unit struct {
	repos   Repos
	txn     *documents.Transaction
	in      Instructions
	now     time.Time
	ledger  *ledger.Writer
	stock   *inventory.Writer
	cash    *payments.Writer
	alloc   *allocation.Engine
	account uuid.UUID
	paid    int64
	priced  []returns.Priced
	costs   map[uuid.UUID]int64
}

func newUnit(repos Repos, txn *documents.Transaction, in Instructions, now time.Time) *unit {
	return &unit{
		repos:  repos,
		txn:    txn,
		in:     in,
		now:    now,
		ledger: ledger.NewWriter(repos.Ledger, txn.TenantID, now),
		stock:  inventory.NewWriter(repos.Inventory, txn.TenantID, now),
		cash:   payments.NewWriter(repos.Payments, txn.TenantID, now),
		alloc:  allocation.NewEngine(repos.Allocations, now),
		costs:  map[uuid.UUID]int64{},
	}
}

func (p *unit) requireCounterparty(ctx context.Context, s side) error {
	if p.txn.CounterpartyID == nil {
		return shared.Validation("%s requires a counterparty", p.txn.Type)
	}
	cp, err := p.repos.Documents.GetCounterparty(ctx, p.txn.TenantID, *p.txn.CounterpartyID)
	if err != nil {
		return err
	}
	if cp.Kind != s.kind {
		return shared.Validation("counterparty %s cannot be used on %s", cp.ID, p.txn.Type)
	}
	if !cp.Active {
		return shared.Conflict("counterparty %s is inactive", cp.ID)
	}
	return nil
}

// resolveAccount picks the instruction's account over the draft's and requires it ACTIVE.
func (p *unit) resolveAccount(ctx context.Context) error {
	id := p.txn.PaymentAccountID
	if p.in.PaymentAccountID != nil {
		id = p.in.PaymentAccountID
	}
	if id == nil {
		return shared.Validation("%s requires a payment account", p.txn.Type)
	}
	if _, err := p.cash.RequireActive(ctx, *id); err != nil {
		return err
	}
	p.account = *id
	p.txn.PaymentAccountID = id
	return nil
}

func (p *unit) lockLines(ctx context.Context) error {
	if len(p.txn.Lines) == 0 {
		return shared.Validation("%s requires at least one line", p.txn.Type)
	}
	ids := make([]uuid.UUID, 0, len(p.txn.Lines))
	for _, l := range p.txn.Lines {
		ids = append(ids, l.VariantID)
	}
	return p.stock.Lock(ctx, ids)
}

func requirePositiveTotal(txn *documents.Transaction) error {
	if txn.TotalAmount <= 0 {
		return shared.Validation("%s total must be positive", txn.Type)
	}
	return nil
}

func rejectAllocations(p *unit) error {
	if len(p.in.Allocations) > 0 {
		return shared.Validation("%s does not accept allocation instructions", p.txn.Type)
	}
	return nil
}

type invoiceStrategy struct{ side side }

func (s invoiceStrategy) prepare(ctx context.Context, p *unit) error {
	if err := p.requireCounterparty(ctx, s.side); err != nil {
		return err
	}
	if err := requirePositiveTotal(p.txn); err != nil {
		return err
	}
	if err := rejectAllocations(p); err != nil {
		return err
	}
	p.paid = p.txn.PaidNow
	if p.in.PaidNow != nil {
		p.paid = *p.in.PaidNow
	}
	if p.paid < 0 {
		return shared.Validation("immediate payment must not be negative")
	}
	if p.paid > p.txn.TotalAmount {
		return shared.Validation("immediate payment %d exceeds invoice total %d", p.paid, p.txn.TotalAmount)
	}
	if p.paid > 0 {
		if err := p.resolveAccount(ctx); err != nil {
			return err
		}
	}
	for _, l := range p.txn.Lines {
		if l.Quantity <= 0 {
			return shared.Validation("line %d quantity must be positive", l.Position)
		}
	}
	if err := p.lockLines(ctx); err != nil {
		return err
	}
	if s.side.kind == documents.SideReceivable {
		demands := make([]inventory.Demand, 0, len(p.txn.Lines))
		for _, l := range p.txn.Lines {
			demands = append(demands, inventory.Demand{ProductID: l.ProductID, VariantID: l.VariantID, Quantity: l.Quantity})
		}
		return p.stock.CheckAvailability(ctx, demands)
	}
	return nil
}

func (s invoiceStrategy) apply(ctx context.Context, p *unit) error {
	cp := p.txn.Counterparty()
	if _, err := p.ledger.Append(ctx, p.txn.ID, cp, s.side.increase, p.txn.TotalAmount); err != nil {
		return err
	}
	if err := p.ledger.AppendIfPositive(ctx, p.txn.ID, cp, s.side.decrease, p.paid); err != nil {
		return err
	}
	for _, l := range p.txn.Lines {
		m := inventory.Movement{TransactionID: p.txn.ID, LineID: l.ID, VariantID: l.VariantID, ProductID: l.ProductID, Quantity: l.Quantity}
		var err error
		if s.side.kind == documents.SidePayable {
			m.UnitCost = l.UnitPrice
			_, err = p.stock.Receive(ctx, m)
		} else {
			v, _ := p.stock.Variant(l.VariantID)
			m.Type = inventory.MovementSaleOut
			m.UnitCost = v.AvgCost
			_, err = p.stock.Record(ctx, m)
		}
		if err != nil {
			return err
		}
	}
	if p.paid == 0 {
		return nil
	}
	if _, err := p.cash.Record(ctx, p.txn.ID, p.account, s.side.settle, p.paid); err != nil {
		return err
	}
	_, err := p.alloc.SelfAllocate(ctx, p.txn.TenantID, p.txn.ID, p.paid)
	return err
}

type paymentStrategy struct{ side side }

func (s paymentStrategy) prepare(ctx context.Context, p *unit) error {
	if err := p.requireCounterparty(ctx, s.side); err != nil {
		return err
	}
	if err := requirePositiveTotal(p.txn); err != nil {
		return err
	}
	if len(p.txn.Lines) > 0 {
		return shared.Validation("%s cannot carry product lines", p.txn.Type)
	}
	return p.resolveAccount(ctx)
}

func (s paymentStrategy) apply(ctx context.Context, p *unit) error {
	cp := p.txn.Counterparty()
	if _, err := p.ledger.Append(ctx, p.txn.ID, cp, s.side.decrease, p.txn.TotalAmount); err != nil {
		return err
	}
	if _, err := p.cash.Record(ctx, p.txn.ID, p.account, s.side.settle, p.txn.TotalAmount); err != nil {
		return err
	}
	_, err := p.alloc.Apply(ctx, allocation.Request{
		TenantID:             p.txn.TenantID,
		PaymentTransactionID: p.txn.ID,
		CounterpartyID:       cp,
		InvoiceType:          s.side.invoiceType,
		Amount:               p.txn.TotalAmount,
		Instructions:         p.in.Allocations,
	})
	return err
}

type returnStrategy struct{ side side }

func (s returnStrategy) prepare(ctx context.Context, p *unit) error {
	if err := p.requireCounterparty(ctx, s.side); err != nil {
		return err
	}
	mode := p.txn.ReturnMode
	if p.in.ReturnMode != "" {
		mode = p.in.ReturnMode
	}
	if mode == "" {
		mode = documents.ReturnModeStoreCredit
	}
	p.txn.ReturnMode = mode
	if mode == documents.ReturnModeRefundNow {
		if err := rejectAllocations(p); err != nil {
			return err
		}
		if err := p.resolveAccount(ctx); err != nil {
			return err
		}
	}

	priced, err := returns.Check(ctx, p.repos.Returns, p.txn)
	if err != nil {
		return err
	}
	total := returns.Total(priced)
	if p.txn.TotalAmount == 0 {
		p.txn.TotalAmount = total
	}
	if p.txn.TotalAmount != total {
		return shared.Validation("return total %d does not match priced lines %d", p.txn.TotalAmount, total)
	}
	if err := requirePositiveTotal(p.txn); err != nil {
		return err
	}
	p.priced = priced
	if err := p.lockLines(ctx); err != nil {
		return err
	}

	if s.side.kind == documents.SidePayable {
		demands := make([]inventory.Demand, 0, len(priced))
		for _, pl := range priced {
			p.costs[pl.Line.ID] = pl.UnitCost
			demands = append(demands, inventory.Demand{ProductID: pl.Line.ProductID, VariantID: pl.Line.VariantID, Quantity: pl.Line.Quantity})
		}
		return p.stock.CheckAvailability(ctx, demands)
	}
	// Customer returns re-enter stock at the cost the sale removed it at.
	for _, pl := range priced {
		m, err := p.repos.Inventory.MovementForLine(ctx, p.txn.TenantID, pl.Source.ID)
		switch {
		case err == nil:
			p.costs[pl.Line.ID] = m.UnitCost
		case errors.Is(err, shared.ErrNotFound):
			v, _ := p.stock.Variant(pl.Line.VariantID)
			p.costs[pl.Line.ID] = v.AvgCost
		default:
			return err
		}
	}
	return nil
}

func (s returnStrategy) apply(ctx context.Context, p *unit) error {
	cp := p.txn.Counterparty()
	amount := p.txn.TotalAmount
	if _, err := p.ledger.Append(ctx, p.txn.ID, cp, s.side.decrease, amount); err != nil {
		return err
	}
	movement := inventory.MovementSupplierReturnOut
	if s.side.kind == documents.SideReceivable {
		movement = inventory.MovementCustomerReturnIn
	}
	for _, pl := range p.priced {
		if _, err := p.stock.Record(ctx, inventory.Movement{
			TransactionID: p.txn.ID,
			LineID:        pl.Line.ID,
			VariantID:     pl.Line.VariantID,
			ProductID:     pl.Line.ProductID,
			Type:          movement,
			Quantity:      pl.Line.Quantity,
			UnitCost:      p.costs[pl.Line.ID],
		}); err != nil {
			return err
		}
	}
	if p.txn.ReturnMode == documents.ReturnModeRefundNow {
		if _, err := p.ledger.Append(ctx, p.txn.ID, cp, s.side.increase, amount); err != nil {
			return err
		}
		_, err := p.cash.Record(ctx, p.txn.ID, p.account, s.side.refund, amount)
		return err
	}
	_, err := p.alloc.Apply(ctx, allocation.Request{
		TenantID:             p.txn.TenantID,
		PaymentTransactionID: p.txn.ID,
		CounterpartyID:       cp,
		InvoiceType:          s.side.invoiceType,
		Amount:               amount,
		Instructions:         p.in.Allocations,
	})
	return err
}

type transferStrategy struct{}

func (transferStrategy) prepare(ctx context.Context, p *unit) error {
	if err := requirePositiveTotal(p.txn); err != nil {
		return err
	}
	if err := rejectAllocations(p); err != nil {
		return err
	}
	if len(p.txn.Lines) > 0 {
		return shared.Validation("transfer cannot carry product lines")
	}
	if err := p.resolveAccount(ctx); err != nil {
		return err
	}
	if p.txn.CounterAccountID == nil {
		return shared.Validation("transfer requires a destination account")
	}
	if *p.txn.CounterAccountID == p.account {
		return shared.Validation("transfer source and destination must differ")
	}
	_, err := p.cash.RequireActive(ctx, *p.txn.CounterAccountID)
	return err
}

func (transferStrategy) apply(ctx context.Context, p *unit) error {
	_, err := p.cash.Transfer(ctx, p.txn.ID, p.account, *p.txn.CounterAccountID, p.txn.TotalAmount)
	return err
}

type adjustmentStrategy struct{}

func (adjustmentStrategy) prepare(ctx context.Context, p *unit) error {
	if err := rejectAllocations(p); err != nil {
		return err
	}
	for _, l := range p.txn.Lines {
		if l.Quantity == 0 {
			return shared.Validation("adjustment line %d quantity must not be zero", l.Position)
		}
	}
	if err := p.lockLines(ctx); err != nil {
		return err
	}
	var demands []inventory.Demand
	for _, l := range p.txn.Lines {
		if l.Quantity < 0 {
			demands = append(demands, inventory.Demand{ProductID: l.ProductID, VariantID: l.VariantID, Quantity: -l.Quantity})
		}
	}
	return p.stock.CheckAvailability(ctx, demands)
}

func (adjustmentStrategy) apply(ctx context.Context, p *unit) error {
	for _, l := range p.txn.Lines {
		v, _ := p.stock.Variant(l.VariantID)
		m := inventory.Movement{TransactionID: p.txn.ID, LineID: l.ID, VariantID: l.VariantID, ProductID: l.ProductID, UnitCost: v.AvgCost}
		if l.Quantity > 0 {
			m.Type, m.Quantity = inventory.MovementAdjustmentIn, l.Quantity
		} else {
			m.Type, m.Quantity = inventory.MovementAdjustmentOut, -l.Quantity
		}
		if _, err := p.stock.Record(ctx, m); err != nil {
			return err
		}
	}
	return nil
}
