package posting_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/bookkeeping/internal/allocation"
	"github.com/odyssey-erp/bookkeeping/internal/documents"
	"github.com/odyssey-erp/bookkeeping/internal/inventory"
	"github.com/odyssey-erp/bookkeeping/internal/ledger"
	"github.com/odyssey-erp/bookkeeping/internal/payments"
	"github.com/odyssey-erp/bookkeeping/internal/posting"
	"github.com/odyssey-erp/bookkeeping/internal/shared"
	"github.com/odyssey-erp/bookkeeping/internal/testing/memstore"
)

type fixture struct {
	store    *memstore.Store
	engine   *posting.Engine
	now      time.Time
	tenant   uuid.UUID
	supplier documents.Counterparty
	customer documents.Counterparty
	cash     payments.Account
	bank     payments.Account
	widget   inventory.Variant
	gadget   inventory.Variant
}

func newFixture(t *testing.T, opts ...func(*posting.Options)) *fixture {
	t.Helper()
	f := &fixture{
		store:  memstore.New(),
		now:    time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
		tenant: uuid.New(),
	}
	f.supplier = f.store.AddCounterparty(documents.Counterparty{TenantID: f.tenant, Kind: documents.SidePayable, Name: "Karachi Textiles", Active: true})
	f.customer = f.store.AddCounterparty(documents.Counterparty{TenantID: f.tenant, Kind: documents.SideReceivable, Name: "Lahore Retail", Active: true})
	f.cash = f.store.AddAccount(payments.Account{TenantID: f.tenant, Name: "Cash"})
	f.bank = f.store.AddAccount(payments.Account{TenantID: f.tenant, Name: "Bank"})
	f.widget = f.store.AddVariant(inventory.Variant{TenantID: f.tenant, SKU: "WID-1"})
	f.gadget = f.store.AddVariant(inventory.Variant{TenantID: f.tenant, SKU: "GAD-1"})

	o := posting.Options{Now: func() time.Time { return f.now }}
	for _, fn := range opts {
		fn(&o)
	}
	f.engine = posting.NewEngine(f.store, slog.New(slog.NewTextHandler(io.Discard, nil)), o)
	return f
}

func line(v inventory.Variant, qty, price int64) documents.Line {
	return documents.Line{VariantID: v.ID, ProductID: v.ProductID, Quantity: qty, UnitPrice: price, LineTotal: qty * price}
}

func (f *fixture) draft(typ documents.Type, cp *documents.Counterparty, lines ...documents.Line) documents.Transaction {
	txn := documents.Transaction{TenantID: f.tenant, Type: typ, Date: f.now.AddDate(0, 0, -1), Lines: lines}
	if cp != nil {
		id := cp.ID
		txn.CounterpartyID = &id
	}
	for _, l := range lines {
		txn.Subtotal += l.Quantity * l.UnitPrice
		txn.DiscountTotal += l.DiscountAmount
		txn.TotalAmount += l.LineTotal
	}
	return txn
}

func (f *fixture) add(txn documents.Transaction) documents.Transaction {
	return f.store.AddDraft(txn)
}

func (f *fixture) post(t *testing.T, id uuid.UUID, in posting.Instructions) *posting.Result {
	t.Helper()
	if in.IdempotencyKey == "" {
		in.IdempotencyKey = "key-" + id.String()
	}
	res, err := f.engine.Post(context.Background(), f.tenant, id, in)
	require.NoError(t, err)
	return res
}

func (f *fixture) purchase(t *testing.T, lines ...documents.Line) *posting.Result {
	t.Helper()
	return f.post(t, f.add(f.draft(documents.TypePurchase, &f.supplier, lines...)).ID, posting.Instructions{})
}

func (f *fixture) payment(typ documents.Type, cp *documents.Counterparty, account payments.Account, amount int64) documents.Transaction {
	txn := f.draft(typ, cp)
	txn.TotalAmount = amount
	id := account.ID
	txn.PaymentAccountID = &id
	return f.add(txn)
}

func ptr[T any](v T) *T { return &v }

func entryTypes(entries []ledger.Entry) map[ledger.EntryType]int64 {
	out := map[ledger.EntryType]int64{}
	for _, e := range entries {
		out[e.Type] += e.Amount
	}
	return out
}

func TestPostPurchaseThenSaleUsesBlendedCost(t *testing.T) {
	f := newFixture(t)
	first := f.purchase(t, line(f.widget, 10, 1000))
	require.Equal(t, "PUR-2026-0001", *first.Transaction.DocumentNumber)
	require.Equal(t, int64(1000), f.store.Variant(f.widget.ID).AvgCost)

	second := f.purchase(t, line(f.widget, 10, 2000))
	require.Equal(t, "PUR-2026-0002", *second.Transaction.DocumentNumber)
	require.Equal(t, int64(1500), f.store.Variant(f.widget.ID).AvgCost)
	require.Len(t, second.Inventory, 1)
	require.Equal(t, inventory.MovementPurchaseIn, second.Inventory[0].Type)
	require.Equal(t, int64(1500), second.Inventory[0].UnitCost)

	sale := f.add(f.draft(documents.TypeSale, &f.customer, line(f.widget, 5, 4000)))
	res := f.post(t, sale.ID, posting.Instructions{})

	require.Equal(t, documents.StatusPosted, res.Transaction.Status)
	require.Equal(t, "SAL-2026-0001", *res.Transaction.DocumentNumber)
	require.Equal(t, "2026", res.Transaction.Series)
	require.Len(t, res.Inventory, 1)
	require.Equal(t, inventory.MovementSaleOut, res.Inventory[0].Type)
	require.Equal(t, int64(-5), res.Inventory[0].Quantity)
	require.Equal(t, int64(1500), res.Inventory[0].UnitCost)
	require.Equal(t, int64(1500), f.store.Variant(f.widget.ID).AvgCost)
	require.Equal(t, int64(15), f.store.Stock(f.widget.ID))
	require.Equal(t, map[ledger.EntryType]int64{ledger.EntryARIncrease: 20000}, entryTypes(res.Ledger))
	require.Empty(t, res.Payments)
	require.Empty(t, res.Allocations)
}

func TestPostPurchaseWithImmediatePaymentSelfAllocates(t *testing.T) {
	f := newFixture(t)
	draft := f.add(f.draft(documents.TypePurchase, &f.supplier, line(f.widget, 5, 1000)))

	res := f.post(t, draft.ID, posting.Instructions{PaidNow: ptr(int64(3000)), PaymentAccountID: &f.cash.ID})

	require.Equal(t, map[ledger.EntryType]int64{ledger.EntryAPIncrease: 5000, ledger.EntryAPDecrease: 3000}, entryTypes(res.Ledger))
	require.Len(t, res.Payments, 1)
	require.Equal(t, payments.MoneyOut, res.Payments[0].Type)
	require.Equal(t, int64(3000), res.Payments[0].Amount)
	require.Equal(t, int64(-3000), f.store.AccountBalance(f.cash.ID))
	require.Len(t, res.Allocations, 1)
	require.Equal(t, draft.ID, res.Allocations[0].PaymentTransactionID)
	require.Equal(t, draft.ID, res.Allocations[0].AppliesToTransactionID)
	require.Equal(t, int64(3000), res.Allocations[0].AmountApplied)
	require.Equal(t, int64(3000), res.Transaction.PaidNow)

	svc := allocation.NewService(f.store, f.store)
	open, err := svc.OpenDocuments(context.Background(), f.tenant, f.supplier.ID)
	require.NoError(t, err)
	require.Len(t, open, 1)
	require.Equal(t, int64(3000), open[0].PaidAmount)
	require.Equal(t, int64(2000), open[0].Outstanding)

	st, err := svc.Statement(context.Background(), f.tenant, f.supplier.ID)
	require.NoError(t, err)
	require.True(t, st.Reconciled())
	require.Equal(t, int64(2000), st.LedgerBalance)
}

func TestPostRejectsImmediatePaymentAboveTotal(t *testing.T) {
	f := newFixture(t)
	draft := f.add(f.draft(documents.TypeSale, &f.customer, line(f.widget, 1, 1000)))
	f.purchase(t, line(f.widget, 1, 500))

	_, err := f.engine.Post(context.Background(), f.tenant, draft.ID, posting.Instructions{
		IdempotencyKey: "k1", PaidNow: ptr(int64(1001)), PaymentAccountID: &f.cash.ID,
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestConcurrentSalesForLastUnitsHaveOneWinner(t *testing.T) {
	f := newFixture(t)
	f.purchase(t, line(f.widget, 5, 1000))
	first := f.add(f.draft(documents.TypeSale, &f.customer, line(f.widget, 5, 1500)))
	second := f.add(f.draft(documents.TypeSale, &f.customer, line(f.widget, 5, 1500)))

	errs := make([]error, 2)
	var g errgroup.Group
	for i, id := range []uuid.UUID{first.ID, second.ID} {
		g.Go(func() error {
			_, errs[i] = f.engine.Post(context.Background(), f.tenant, id, posting.Instructions{IdempotencyKey: "sale-" + id.String()})
			return nil
		})
	}
	require.NoError(t, g.Wait())

	var wins int
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		require.True(t, errors.Is(err, shared.ErrInsufficientStock) || errors.Is(err, shared.ErrSerializationConflict), err)
	}
	require.Equal(t, 1, wins)

	var saleOut []inventory.Movement
	for _, m := range f.store.Movements() {
		if m.Type == inventory.MovementSaleOut {
			saleOut = append(saleOut, m)
		}
	}
	require.Len(t, saleOut, 1)
	require.Equal(t, int64(-5), saleOut[0].Quantity)
	require.Equal(t, int64(0), f.store.Stock(f.widget.ID))
}

func TestSupplierReturnOfDiscountedLineUsesEffectiveCost(t *testing.T) {
	f := newFixture(t)
	src := line(f.widget, 10, 1000)
	src.DiscountAmount = 1000
	src.LineTotal = 9000
	purchase := f.purchase(t, src)
	require.Equal(t, int64(9000), purchase.Transaction.TotalAmount)

	ret := line(f.widget, 5, 0)
	ret.SourceLineID = &purchase.Transaction.Lines[0].ID
	draft := f.draft(documents.TypeSupplierReturn, &f.supplier, ret)
	draft.TotalAmount = 0
	res := f.post(t, f.add(draft).ID, posting.Instructions{})

	require.Equal(t, int64(4500), res.Transaction.TotalAmount)
	require.Equal(t, documents.ReturnModeStoreCredit, res.Transaction.ReturnMode)
	require.Len(t, res.Inventory, 1)
	require.Equal(t, inventory.MovementSupplierReturnOut, res.Inventory[0].Type)
	require.Equal(t, int64(-5), res.Inventory[0].Quantity)
	require.Equal(t, int64(900), res.Inventory[0].UnitCost)
	require.Equal(t, int64(1000), f.store.Variant(f.widget.ID).AvgCost)
	require.Equal(t, map[ledger.EntryType]int64{ledger.EntryAPDecrease: 4500}, entryTypes(res.Ledger))
	require.Empty(t, res.Payments)
	require.Len(t, res.Allocations, 1)
	require.Equal(t, purchase.Transaction.ID, res.Allocations[0].AppliesToTransactionID)
	require.Equal(t, int64(4500), res.Allocations[0].AmountApplied)
}

func TestReturnsAccumulateAndCannotExceedOriginal(t *testing.T) {
	f := newFixture(t)
	purchase := f.purchase(t, line(f.widget, 10, 1000))
	srcID := purchase.Transaction.Lines[0].ID

	ret := func(qty int64) documents.Transaction {
		l := line(f.widget, qty, 0)
		l.SourceLineID = &srcID
		d := f.draft(documents.TypeSupplierReturn, &f.supplier, l)
		d.TotalAmount = 0
		return f.add(d)
	}
	f.post(t, ret(4).ID, posting.Instructions{})
	f.post(t, ret(3).ID, posting.Instructions{})

	over := ret(4)
	_, err := f.engine.Post(context.Background(), f.tenant, over.ID, posting.Instructions{IdempotencyKey: "over"})
	require.ErrorIs(t, err, shared.ErrDomainConflict)
	stored, _ := f.store.Transaction(over.ID)
	require.Equal(t, documents.StatusDraft, stored.Status)

	f.post(t, ret(3).ID, posting.Instructions{})
	require.Equal(t, int64(0), f.store.Stock(f.widget.ID))
}

func TestCustomerReturnRefundNowRestocksAtSaleCost(t *testing.T) {
	f := newFixture(t)
	f.purchase(t, line(f.widget, 10, 1000))
	f.purchase(t, line(f.widget, 10, 2000))
	sale := f.post(t, f.add(f.draft(documents.TypeSale, &f.customer, line(f.widget, 2, 3000))).ID, posting.Instructions{})
	f.purchase(t, line(f.widget, 2, 4000))
	avgBefore := f.store.Variant(f.widget.ID).AvgCost

	l := line(f.widget, 1, 0)
	l.SourceLineID = &sale.Transaction.Lines[0].ID
	draft := f.draft(documents.TypeCustomerReturn, &f.customer, l)
	draft.TotalAmount = 0
	res := f.post(t, f.add(draft).ID, posting.Instructions{ReturnMode: documents.ReturnModeRefundNow, PaymentAccountID: &f.cash.ID})

	require.Equal(t, int64(3000), res.Transaction.TotalAmount)
	require.Equal(t, inventory.MovementCustomerReturnIn, res.Inventory[0].Type)
	require.Equal(t, int64(1), res.Inventory[0].Quantity)
	require.Equal(t, int64(1500), res.Inventory[0].UnitCost)
	require.Equal(t, avgBefore, f.store.Variant(f.widget.ID).AvgCost)
	require.Equal(t, map[ledger.EntryType]int64{ledger.EntryARDecrease: 3000, ledger.EntryARIncrease: 3000}, entryTypes(res.Ledger))
	require.Equal(t, int64(0), ledger.NetBalance(res.Ledger))
	require.Len(t, res.Payments, 1)
	require.Equal(t, payments.MoneyOut, res.Payments[0].Type)
	require.Empty(t, res.Allocations)

	st, err := allocation.NewService(f.store, f.store).Statement(context.Background(), f.tenant, f.customer.ID)
	require.NoError(t, err)
	require.True(t, st.Reconciled())
}

func TestRefundNowRequiresAccount(t *testing.T) {
	f := newFixture(t)
	purchase := f.purchase(t, line(f.widget, 1, 1000))
	l := line(f.widget, 1, 0)
	l.SourceLineID = &purchase.Transaction.Lines[0].ID
	draft := f.draft(documents.TypeSupplierReturn, &f.supplier, l)
	draft.TotalAmount = 0

	_, err := f.engine.Post(context.Background(), f.tenant, f.add(draft).ID, posting.Instructions{IdempotencyKey: "r", ReturnMode: documents.ReturnModeRefundNow})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestRepostWithSameKeyReplaysOriginalResult(t *testing.T) {
	f := newFixture(t)
	draft := f.add(f.draft(documents.TypePurchase, &f.supplier, line(f.widget, 5, 1000)))
	in := posting.Instructions{IdempotencyKey: "abc", PaidNow: ptr(int64(1000)), PaymentAccountID: &f.cash.ID}

	first, err := f.engine.Post(context.Background(), f.tenant, draft.ID, in)
	require.NoError(t, err)
	f.now = f.now.Add(time.Hour)
	second, err := f.engine.Post(context.Background(), f.tenant, draft.ID, in)
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Len(t, f.store.LedgerEntries(), 2)
	require.Len(t, f.store.Movements(), 1)
	require.Len(t, f.store.PaymentEntries(), 1)
	require.Len(t, f.store.Allocations(), 1)
}

func TestRepostWithDifferentKeyConflicts(t *testing.T) {
	f := newFixture(t)
	draft := f.add(f.draft(documents.TypePurchase, &f.supplier, line(f.widget, 5, 1000)))
	f.post(t, draft.ID, posting.Instructions{IdempotencyKey: "abc"})

	_, err := f.engine.Post(context.Background(), f.tenant, draft.ID, posting.Instructions{IdempotencyKey: "xyz"})
	require.ErrorIs(t, err, shared.ErrIdempotencyConflict)

	_, err = f.engine.Post(context.Background(), f.tenant, draft.ID, posting.Instructions{})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestKeyCannotBeReusedAcrossTransactions(t *testing.T) {
	f := newFixture(t)
	a := f.add(f.draft(documents.TypePurchase, &f.supplier, line(f.widget, 1, 1000)))
	b := f.add(f.draft(documents.TypePurchase, &f.supplier, line(f.widget, 1, 1000)))
	f.post(t, a.ID, posting.Instructions{IdempotencyKey: "shared"})

	_, err := f.engine.Post(context.Background(), f.tenant, b.ID, posting.Instructions{IdempotencyKey: "shared"})
	require.ErrorIs(t, err, shared.ErrIdempotencyConflict)
	stored, _ := f.store.Transaction(b.ID)
	require.Equal(t, documents.StatusDraft, stored.Status)
}

func TestSaleReportsEveryShortLine(t *testing.T) {
	f := newFixture(t)
	f.purchase(t, line(f.widget, 2, 1000), line(f.gadget, 1, 1000))
	draft := f.add(f.draft(documents.TypeSale, &f.customer,
		line(f.widget, 2, 2000),
		line(f.gadget, 3, 2000),
		line(f.widget, 1, 2000),
	))

	_, err := f.engine.Post(context.Background(), f.tenant, draft.ID, posting.Instructions{IdempotencyKey: "short"})
	var short *shared.InsufficientStockError
	require.ErrorAs(t, err, &short)
	require.Len(t, short.Lines, 2)
	require.Equal(t, shared.StockShortfall{ProductID: f.widget.ProductID, VariantID: f.widget.ID, Available: 2, Required: 3}, short.Lines[0])
	require.Equal(t, shared.StockShortfall{ProductID: f.gadget.ProductID, VariantID: f.gadget.ID, Available: 1, Required: 3}, short.Lines[1])
	require.Len(t, f.store.Movements(), 2)
}

func TestCustomerPaymentAllocatesOldestFirst(t *testing.T) {
	f := newFixture(t)
	f.purchase(t, line(f.widget, 10, 100))
	older := f.add(f.draft(documents.TypeSale, &f.customer, line(f.widget, 1, 1000)))
	newer := f.add(f.draft(documents.TypeSale, &f.customer, line(f.widget, 1, 1000)))
	f.post(t, newer.ID, posting.Instructions{})
	f.post(t, older.ID, posting.Instructions{})

	pay := f.payment(documents.TypeCustomerPayment, &f.customer, f.bank, 1500)
	res := f.post(t, pay.ID, posting.Instructions{})

	require.Equal(t, "CPY-2026-0001", *res.Transaction.DocumentNumber)
	require.Equal(t, map[ledger.EntryType]int64{ledger.EntryARDecrease: 1500}, entryTypes(res.Ledger))
	require.Len(t, res.Payments, 1)
	require.Equal(t, payments.MoneyIn, res.Payments[0].Type)
	require.Len(t, res.Allocations, 2)
	require.Equal(t, older.ID, res.Allocations[0].AppliesToTransactionID)
	require.Equal(t, int64(1000), res.Allocations[0].AmountApplied)
	require.Equal(t, newer.ID, res.Allocations[1].AppliesToTransactionID)
	require.Equal(t, int64(500), res.Allocations[1].AmountApplied)
}

func TestOverpaymentLeavesUnappliedCredit(t *testing.T) {
	f := newFixture(t)
	f.purchase(t, line(f.widget, 1, 800))

	pay := f.payment(documents.TypeSupplierPayment, &f.supplier, f.bank, 1000)
	res := f.post(t, pay.ID, posting.Instructions{})
	require.Len(t, res.Allocations, 1)
	require.Equal(t, int64(800), res.Allocations[0].AmountApplied)

	st, err := allocation.NewService(f.store, f.store).Statement(context.Background(), f.tenant, f.supplier.ID)
	require.NoError(t, err)
	require.Empty(t, st.OpenDocuments)
	require.Equal(t, int64(-200), st.UnappliedCredits)
	require.Equal(t, int64(-200), st.LedgerBalance)
	require.True(t, st.Reconciled())
}

func TestOverAllocationIsRejectedAtomically(t *testing.T) {
	f := newFixture(t)
	f.purchase(t, line(f.widget, 10, 100))
	sale := f.post(t, f.add(f.draft(documents.TypeSale, &f.customer, line(f.widget, 1, 1000))).ID, posting.Instructions{})
	before := len(f.store.LedgerEntries())

	pay := f.payment(documents.TypeCustomerPayment, &f.customer, f.bank, 1500)
	_, err := f.engine.Post(context.Background(), f.tenant, pay.ID, posting.Instructions{
		IdempotencyKey: "over",
		Allocations:    []allocation.Instruction{{TransactionID: sale.Transaction.ID, Amount: 1200}},
	})
	require.ErrorIs(t, err, shared.ErrDomainConflict)
	require.Len(t, f.store.LedgerEntries(), before)
	require.Empty(t, f.store.PaymentEntries())
	require.Empty(t, f.store.Allocations())

	res := f.post(t, pay.ID, posting.Instructions{
		IdempotencyKey: "exact",
		Allocations:    []allocation.Instruction{{TransactionID: sale.Transaction.ID, Amount: 600}, {TransactionID: sale.Transaction.ID, Amount: 400}},
	})
	require.Len(t, res.Allocations, 1)
	require.Equal(t, int64(1000), res.Allocations[0].AmountApplied)
}

func TestOverflowingAllocationsAreRejected(t *testing.T) {
	f := newFixture(t)
	f.purchase(t, line(f.widget, 10, 100))
	sale := f.post(t, f.add(f.draft(documents.TypeSale, &f.customer, line(f.widget, 1, 1000))).ID, posting.Instructions{})

	pay := f.payment(documents.TypeCustomerPayment, &f.customer, f.bank, 500)
	_, err := f.engine.Post(context.Background(), f.tenant, pay.ID, posting.Instructions{
		IdempotencyKey: "wrap",
		Allocations: []allocation.Instruction{
			{TransactionID: sale.Transaction.ID, Amount: math.MaxInt64},
			{TransactionID: sale.Transaction.ID, Amount: 2},
		},
	})
	require.ErrorIs(t, err, shared.ErrDomainConflict)
	require.Empty(t, f.store.Allocations())
}

func TestAllocationToAnotherCounterpartyIsRejected(t *testing.T) {
	f := newFixture(t)
	other := f.store.AddCounterparty(documents.Counterparty{TenantID: f.tenant, Kind: documents.SideReceivable, Name: "Other", Active: true})
	f.purchase(t, line(f.widget, 10, 100))
	sale := f.post(t, f.add(f.draft(documents.TypeSale, &other, line(f.widget, 1, 1000))).ID, posting.Instructions{})

	pay := f.payment(documents.TypeCustomerPayment, &f.customer, f.bank, 500)
	_, err := f.engine.Post(context.Background(), f.tenant, pay.ID, posting.Instructions{
		IdempotencyKey: "wrong",
		Allocations:    []allocation.Instruction{{TransactionID: sale.Transaction.ID, Amount: 500}},
	})
	require.ErrorIs(t, err, shared.ErrDomainConflict)
}

func TestInternalTransferWritesTwoLegs(t *testing.T) {
	f := newFixture(t)
	txn := f.draft(documents.TypeInternalTransfer, nil)
	txn.TotalAmount = 2500
	txn.PaymentAccountID = &f.cash.ID
	txn.CounterAccountID = &f.bank.ID

	res := f.post(t, f.add(txn).ID, posting.Instructions{})

	require.Equal(t, "TRF-2026-0001", *res.Transaction.DocumentNumber)
	require.Empty(t, res.Ledger)
	require.Empty(t, res.Inventory)
	require.Len(t, res.Payments, 2)
	require.NotNil(t, res.Payments[0].TransferGroupID)
	require.Equal(t, res.Payments[0].TransferGroupID, res.Payments[1].TransferGroupID)
	require.Equal(t, int64(-2500), f.store.AccountBalance(f.cash.ID))
	require.Equal(t, int64(2500), f.store.AccountBalance(f.bank.ID))
}

func TestTransferToSameAccountIsRejected(t *testing.T) {
	f := newFixture(t)
	txn := f.draft(documents.TypeInternalTransfer, nil)
	txn.TotalAmount = 100
	txn.PaymentAccountID = &f.cash.ID
	txn.CounterAccountID = &f.cash.ID

	_, err := f.engine.Post(context.Background(), f.tenant, f.add(txn).ID, posting.Instructions{IdempotencyKey: "t"})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestAdjustmentMovesStockWithoutLedger(t *testing.T) {
	f := newFixture(t)
	f.purchase(t, line(f.widget, 4, 1000))

	res := f.post(t, f.add(f.draft(documents.TypeAdjustment, nil, line(f.widget, -1, 0), line(f.gadget, 3, 0))).ID, posting.Instructions{})
	require.Empty(t, res.Ledger)
	require.Empty(t, res.Payments)
	require.Len(t, res.Inventory, 2)
	require.Equal(t, inventory.MovementAdjustmentOut, res.Inventory[0].Type)
	require.Equal(t, int64(1000), res.Inventory[0].UnitCost)
	require.Equal(t, inventory.MovementAdjustmentIn, res.Inventory[1].Type)
	require.Equal(t, int64(3), f.store.Stock(f.widget.ID))
	require.Equal(t, int64(3), f.store.Stock(f.gadget.ID))

	_, err := f.engine.Post(context.Background(), f.tenant, f.add(f.draft(documents.TypeAdjustment, nil, line(f.widget, -4, 0))).ID, posting.Instructions{IdempotencyKey: "neg"})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
}

func TestPostRejectsInvalidPreconditions(t *testing.T) {
	f := newFixture(t)
	inactive := f.store.AddAccount(payments.Account{TenantID: f.tenant, Name: "Closed", Status: payments.AccountInactive})
	dormant := f.store.AddCounterparty(documents.Counterparty{TenantID: f.tenant, Kind: documents.SidePayable, Name: "Dormant"})

	future := f.draft(documents.TypePurchase, &f.supplier, line(f.widget, 1, 100))
	future.Date = f.now.AddDate(0, 0, 2)

	cases := []struct {
		name string
		txn  documents.Transaction
		in   posting.Instructions
		want error
	}{
		{"future date", future, posting.Instructions{}, shared.ErrValidation},
		{"inactive account", f.payment(documents.TypeSupplierPayment, &f.supplier, inactive, 100), posting.Instructions{}, shared.ErrDomainConflict},
		{"inactive counterparty", f.draft(documents.TypePurchase, &dormant, line(f.widget, 1, 100)), posting.Instructions{}, shared.ErrDomainConflict},
		{"customer on purchase", f.draft(documents.TypePurchase, &f.customer, line(f.widget, 1, 100)), posting.Instructions{}, shared.ErrValidation},
		{"missing counterparty", f.draft(documents.TypeSale, nil, line(f.widget, 1, 100)), posting.Instructions{}, shared.ErrValidation},
		{"unknown account", f.draft(documents.TypePurchase, &f.supplier, line(f.widget, 1, 100)), posting.Instructions{PaidNow: ptr(int64(50)), PaymentAccountID: ptr(uuid.New())}, shared.ErrNotFound},
		{"bad return mode", f.draft(documents.TypePurchase, &f.supplier, line(f.widget, 1, 100)), posting.Instructions{ReturnMode: "LATER"}, shared.ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			txn := tc.txn
			if txn.ID == uuid.Nil {
				txn = f.add(txn)
			}
			tc.in.IdempotencyKey = "k-" + txn.ID.String()
			_, err := f.engine.Post(context.Background(), f.tenant, txn.ID, tc.in)
			require.ErrorIs(t, err, tc.want)
		})
	}

	_, err := f.engine.Post(context.Background(), f.tenant, uuid.New(), posting.Instructions{IdempotencyKey: "missing"})
	require.ErrorIs(t, err, shared.ErrNotFound)
	_, err = f.engine.Post(context.Background(), uuid.New(), f.payment(documents.TypeSupplierPayment, &f.supplier, f.cash, 10).ID, posting.Instructions{IdempotencyKey: "tenant"})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestFailedPostingLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	f.purchase(t, line(f.widget, 5, 1000))
	before := len(f.store.LedgerEntries())
	draft := f.add(f.draft(documents.TypeSale, &f.customer, line(f.widget, 2, 1500)))

	boom := errors.New("disk full")
	f.store.FailOn("InsertAllocation", boom)
	_, err := f.engine.Post(context.Background(), f.tenant, draft.ID, posting.Instructions{IdempotencyKey: "s", PaidNow: ptr(int64(1000)), PaymentAccountID: &f.cash.ID})
	require.ErrorIs(t, err, boom)
	require.Len(t, f.store.LedgerEntries(), before)
	require.Len(t, f.store.Movements(), 1)
	require.Empty(t, f.store.PaymentEntries())
	require.Equal(t, int64(5), f.store.Stock(f.widget.ID))

	f.store.FailOn("InsertAllocation", nil)
	res := f.post(t, draft.ID, posting.Instructions{IdempotencyKey: "s", PaidNow: ptr(int64(1000)), PaymentAccountID: &f.cash.ID})
	require.Equal(t, "SAL-2026-0001", *res.Transaction.DocumentNumber)
}

func TestStatementReconcilesAcrossDocumentMix(t *testing.T) {
	f := newFixture(t)
	svc := allocation.NewService(f.store, f.store)

	p1 := f.purchase(t, line(f.widget, 10, 1000))
	f.post(t, f.add(f.draft(documents.TypePurchase, &f.supplier, line(f.gadget, 4, 500))).ID,
		posting.Instructions{PaidNow: ptr(int64(1500)), PaymentAccountID: &f.cash.ID})
	f.post(t, f.payment(documents.TypeSupplierPayment, &f.supplier, f.bank, 4000).ID, posting.Instructions{})

	l := line(f.widget, 2, 0)
	l.SourceLineID = &p1.Transaction.Lines[0].ID
	ret := f.draft(documents.TypeSupplierReturn, &f.supplier, l)
	ret.TotalAmount = 0
	f.post(t, f.add(ret).ID, posting.Instructions{})
	f.post(t, f.payment(documents.TypeSupplierPayment, &f.supplier, f.bank, 9000).ID, posting.Instructions{})

	st, err := svc.Statement(context.Background(), f.tenant, f.supplier.ID)
	require.NoError(t, err)
	require.True(t, st.Reconciled(), "open %d credits %d ledger %d", st.OpenTotal, st.UnappliedCredits, st.LedgerBalance)
	require.Equal(t, int64(-4500), st.LedgerBalance)
	require.Equal(t, int64(-4500), st.UnappliedCredits)

	items, err := svc.ByInvoice(context.Background(), f.tenant, p1.Transaction.ID)
	require.NoError(t, err)
	var applied int64
	for _, a := range items {
		applied += a.AmountApplied
	}
	require.Equal(t, p1.Transaction.TotalAmount, applied)
}

func TestGetReturnsDraftWithoutEffects(t *testing.T) {
	f := newFixture(t)
	draft := f.add(f.draft(documents.TypePurchase, &f.supplier, line(f.widget, 1, 100)))
	res, err := f.engine.Get(context.Background(), f.tenant, draft.ID)
	require.NoError(t, err)
	require.Equal(t, documents.StatusDraft, res.Transaction.Status)
	require.Nil(t, res.Transaction.DocumentNumber)
	require.Empty(t, res.Ledger)
}
