// Package memstore is an in-memory implementation of the posting repositories.
// Units of work are serialized by one mutex and rolled back by restoring a
// snapshot, which gives tests the observable behaviour of SERIALIZABLE isolation.
package memstore

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/bookkeeping/internal/allocation"
	"github.com/odyssey-erp/bookkeeping/internal/documents"
	"github.com/odyssey-erp/bookkeeping/internal/drafts"
	"github.com/odyssey-erp/bookkeeping/internal/inventory"
	"github.com/odyssey-erp/bookkeeping/internal/ledger"
	"github.com/odyssey-erp/bookkeeping/internal/payments"
	"github.com/odyssey-erp/bookkeeping/internal/posting"
	"github.com/odyssey-erp/bookkeeping/internal/returns"
	"github.com/odyssey-erp/bookkeeping/internal/shared"
)

type seqKey struct {
	tenant  uuid.UUID
	docType documents.Type
	year    int
}

type idemKey struct {
	tenant uuid.UUID
	key    string
}

type state struct {
	txns           map[uuid.UUID]documents.Transaction
	counterparties map[uuid.UUID]documents.Counterparty
	accounts       map[uuid.UUID]payments.Account
	variants       map[uuid.UUID]inventory.Variant
	movements      []inventory.Movement
	ledger         []ledger.Entry
	payments       []payments.Entry
	allocations    []allocation.Allocation
	sequences      map[seqKey]int64
	keys           map[idemKey]uuid.UUID
	lastSeq        int64
}

func newState() *state {
	return &state{
		txns:           map[uuid.UUID]documents.Transaction{},
		counterparties: map[uuid.UUID]documents.Counterparty{},
		accounts:       map[uuid.UUID]payments.Account{},
		variants:       map[uuid.UUID]inventory.Variant{},
		sequences:      map[seqKey]int64{},
		keys:           map[idemKey]uuid.UUID{},
	}
}

func (s *state) clone() *state {
	c := &state{
		txns:           make(map[uuid.UUID]documents.Transaction, len(s.txns)),
		counterparties: make(map[uuid.UUID]documents.Counterparty, len(s.counterparties)),
		accounts:       make(map[uuid.UUID]payments.Account, len(s.accounts)),
		variants:       make(map[uuid.UUID]inventory.Variant, len(s.variants)),
		movements:      append([]inventory.Movement(nil), s.movements...),
		ledger:         append([]ledger.Entry(nil), s.ledger...),
		payments:       append([]payments.Entry(nil), s.payments...),
		allocations:    append([]allocation.Allocation(nil), s.allocations...),
		sequences:      make(map[seqKey]int64, len(s.sequences)),
		keys:           make(map[idemKey]uuid.UUID, len(s.keys)),
		lastSeq:        s.lastSeq,
	}
	for k, v := range s.txns {
		c.txns[k] = copyTxn(v)
	}
	for k, v := range s.counterparties {
		c.counterparties[k] = v
	}
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.variants {
		c.variants[k] = v
	}
	for k, v := range s.sequences {
		c.sequences[k] = v
	}
	for k, v := range s.keys {
		c.keys[k] = v
	}
	return c
}

// Store holds every table of the bookkeeping core in memory.
type Store struct {
	mu     sync.Mutex
	st     *state
	faults map[string]error
}

// New returns an empty store.
func New() *Store {
	return &Store{st: newState(), faults: map[string]error{}}
}

// FailOn makes the named repository method return err until cleared with a nil err.
func (s *Store) FailOn(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.faults, method)
		return
	}
	s.faults[method] = err
}

// WithTx runs fn exclusively and discards its writes when it fails.
func (s *Store) WithTx(ctx context.Context, fn func(context.Context, posting.Repos) error) error {
	return s.exclusive(func() error { return fn(ctx, s.repos()) })
}

// Drafts exposes the store to the drafts service.
func (s *Store) Drafts() drafts.Repository {
	return draftUnits{s: s}
}

type draftUnits struct {
	s *Store
}

func (d draftUnits) WithTx(ctx context.Context, fn func(context.Context, drafts.TxRepository) error) error {
	return d.s.exclusive(func() error { return fn(ctx, &view{s: d.s}) })
}

func (s *Store) exclusive(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.st.clone()
	if err := fn(); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

// Read runs fn exclusively. Writes made by fn are discarded.
func (s *Store) Read(ctx context.Context, fn func(context.Context, posting.Repos) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.st.clone()
	defer func() { s.st = snapshot }()
	return fn(ctx, s.repos())
}

func (s *Store) repos() posting.Repos {
	v := &view{s: s}
	return posting.Repos{
		Documents:   v,
		Sequences:   v,
		Ledger:      v,
		Inventory:   v,
		Payments:    v,
		Allocations: v,
		Returns:     v,
		Keys:        v,
	}
}

// AddCounterparty seeds a supplier or customer.
func (s *Store) AddCounterparty(cp documents.Counterparty) documents.Counterparty {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
	}
	s.st.counterparties[cp.ID] = cp
	return cp
}

// AddAccount seeds a payment account.
func (s *Store) AddAccount(acc payments.Account) payments.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	if acc.ID == uuid.Nil {
		acc.ID = uuid.New()
	}
	if acc.Status == "" {
		acc.Status = payments.AccountActive
	}
	s.st.accounts[acc.ID] = acc
	return acc
}

// AddVariant seeds a product variant.
func (s *Store) AddVariant(v inventory.Variant) inventory.Variant {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	if v.ProductID == uuid.Nil {
		v.ProductID = uuid.New()
	}
	s.st.variants[v.ID] = v
	return v
}

// AddDraft stores a DRAFT document, filling ids, sequence and line links.
func (s *Store) AddDraft(txn documents.Transaction) documents.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertDraft(&txn)
	return copyTxn(txn)
}

func (s *Store) insertDraft(txn *documents.Transaction) {
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	txn.Status = documents.StatusDraft
	txn.Date = documents.Date(txn.Date)
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now().UTC()
	}
	s.st.lastSeq++
	txn.Seq = s.st.lastSeq
	for i := range txn.Lines {
		l := &txn.Lines[i]
		if l.ID == uuid.Nil {
			l.ID = uuid.New()
		}
		l.TransactionID = txn.ID
		if l.Position == 0 {
			l.Position = i + 1
		}
		if l.ProductID == uuid.Nil {
			l.ProductID = s.st.variants[l.VariantID].ProductID
		}
	}
	s.st.txns[txn.ID] = copyTxn(*txn)
}

// Transaction returns a stored document.
func (s *Store) Transaction(id uuid.UUID) (documents.Transaction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.st.txns[id]
	return copyTxn(t), ok
}

// Variant returns a stored variant.
func (s *Store) Variant(id uuid.UUID) inventory.Variant {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.variants[id]
}

// Stock returns the on-hand quantity of a variant.
func (s *Store) Stock(id uuid.UUID) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.stock(id)
}

// LedgerEntries returns every ledger entry in write order.
func (s *Store) LedgerEntries() []ledger.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ledger.Entry(nil), s.st.ledger...)
}

// Movements returns every inventory movement in write order.
func (s *Store) Movements() []inventory.Movement {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]inventory.Movement(nil), s.st.movements...)
}

// PaymentEntries returns every cash entry in write order.
func (s *Store) PaymentEntries() []payments.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]payments.Entry(nil), s.st.payments...)
}

// Allocations returns every allocation in write order.
func (s *Store) Allocations() []allocation.Allocation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]allocation.Allocation(nil), s.st.allocations...)
}

// AccountBalance returns the cash balance of an account.
func (s *Store) AccountBalance(id uuid.UUID) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total int64
	for _, e := range s.st.payments {
		if e.AccountID == id {
			total += int64(e.Type.Direction()) * e.Amount
		}
	}
	return total
}

func (s *state) stock(variantID uuid.UUID) int64 {
	var qty int64
	for _, m := range s.movements {
		if m.VariantID == variantID {
			qty += m.Quantity
		}
	}
	return qty
}

func (s *state) applied(invoiceID uuid.UUID) int64 {
	var sum int64
	for _, a := range s.allocations {
		if a.AppliesToTransactionID == invoiceID {
			sum += a.AmountApplied
		}
	}
	return sum
}

func (s *state) openDocument(t documents.Transaction) allocation.OpenDocument {
	paid := s.applied(t.ID)
	return allocation.OpenDocument{
		TransactionID:  t.ID,
		TenantID:       t.TenantID,
		DocumentNumber: deref(t.DocumentNumber),
		Type:           t.Type,
		Status:         t.Status,
		Date:           t.Date,
		Seq:            t.Seq,
		CounterpartyID: t.Counterparty(),
		TotalAmount:    t.TotalAmount,
		PaidAmount:     paid,
		Outstanding:    t.TotalAmount - paid,
	}
}

// sortedTxns returns documents in (date, seq) order.
func (s *state) sortedTxns() []documents.Transaction {
	out := make([]documents.Transaction, 0, len(s.txns))
	for _, t := range s.txns {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Seq < out[j].Seq
	})
	return out
}

func copyTxn(t documents.Transaction) documents.Transaction {
	t.Lines = append([]documents.Line(nil), t.Lines...)
	return t
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func lessUUID(a, b uuid.UUID) bool {
	return bytes.Compare(a[:], b[:]) < 0
}

// view is the repository surface handed to one unit of work.
type view struct {
	s *Store
}

func (v *view) fault(method string) error {
	return v.s.faults[method]
}

func (v *view) GetTransaction(_ context.Context, tenantID, id uuid.UUID) (documents.Transaction, error) {
	t, ok := v.s.st.txns[id]
	if !ok || t.TenantID != tenantID {
		return documents.Transaction{}, shared.NotFound("transaction %s", id)
	}
	return copyTxn(t), nil
}

func (v *view) GetTransactionForUpdate(ctx context.Context, tenantID, id uuid.UUID) (documents.Transaction, error) {
	return v.GetTransaction(ctx, tenantID, id)
}

func (v *view) GetCounterparty(_ context.Context, tenantID, id uuid.UUID) (documents.Counterparty, error) {
	cp, ok := v.s.st.counterparties[id]
	if !ok || cp.TenantID != tenantID {
		return documents.Counterparty{}, shared.NotFound("counterparty %s", id)
	}
	return cp, nil
}

func (v *view) InsertDraft(_ context.Context, txn *documents.Transaction) error {
	if err := v.fault("InsertDraft"); err != nil {
		return err
	}
	v.s.insertDraft(txn)
	return nil
}

func (v *view) MarkPosted(_ context.Context, txn *documents.Transaction) error {
	if err := v.fault("MarkPosted"); err != nil {
		return err
	}
	cur, ok := v.s.st.txns[txn.ID]
	if !ok || cur.Status != documents.StatusDraft {
		return shared.Conflict("transaction %s is no longer a draft", txn.ID)
	}
	cur.Status = txn.Status
	cur.DocumentNumber = txn.DocumentNumber
	cur.Series = txn.Series
	cur.IdempotencyKey = txn.IdempotencyKey
	cur.PostedAt = txn.PostedAt
	cur.PaidNow = txn.PaidNow
	cur.PaymentAccountID = txn.PaymentAccountID
	cur.ReturnMode = txn.ReturnMode
	cur.TotalAmount = txn.TotalAmount
	v.s.st.txns[txn.ID] = cur
	return nil
}

func (v *view) NextSequence(_ context.Context, tenantID uuid.UUID, docType documents.Type, year int) (int64, error) {
	k := seqKey{tenant: tenantID, docType: docType, year: year}
	v.s.st.sequences[k]++
	return v.s.st.sequences[k], nil
}

func (v *view) InsertLedgerEntry(_ context.Context, e ledger.Entry) error {
	if err := v.fault("InsertLedgerEntry"); err != nil {
		return err
	}
	v.s.st.ledger = append(v.s.st.ledger, e)
	return nil
}

func (v *view) ListLedgerEntries(_ context.Context, tenantID, transactionID uuid.UUID) ([]ledger.Entry, error) {
	var out []ledger.Entry
	for _, e := range v.s.st.ledger {
		if e.TenantID == tenantID && e.TransactionID == transactionID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (v *view) LockVariants(_ context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]inventory.Variant, error) {
	var out []inventory.Variant
	for _, id := range ids {
		if variant, ok := v.s.st.variants[id]; ok && variant.TenantID == tenantID {
			out = append(out, variant)
		}
	}
	return out, nil
}

func (v *view) VariantStock(_ context.Context, _ uuid.UUID, variantID uuid.UUID) (int64, error) {
	return v.s.st.stock(variantID), nil
}

func (v *view) UpdateVariantAvgCost(_ context.Context, tenantID, variantID uuid.UUID, avgCost int64) error {
	variant, ok := v.s.st.variants[variantID]
	if !ok || variant.TenantID != tenantID {
		return shared.NotFound("variant %s", variantID)
	}
	variant.AvgCost = avgCost
	v.s.st.variants[variantID] = variant
	return nil
}

func (v *view) InsertMovement(_ context.Context, m inventory.Movement) error {
	if err := v.fault("InsertMovement"); err != nil {
		return err
	}
	v.s.st.movements = append(v.s.st.movements, m)
	return nil
}

func (v *view) MovementForLine(_ context.Context, tenantID, lineID uuid.UUID) (inventory.Movement, error) {
	for _, m := range v.s.st.movements {
		if m.TenantID == tenantID && m.LineID == lineID {
			return m, nil
		}
	}
	return inventory.Movement{}, shared.NotFound("movement for line %s", lineID)
}

func (v *view) ListMovements(_ context.Context, tenantID, transactionID uuid.UUID) ([]inventory.Movement, error) {
	var out []inventory.Movement
	for _, m := range v.s.st.movements {
		if m.TenantID == tenantID && m.TransactionID == transactionID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (v *view) GetPaymentAccount(_ context.Context, tenantID, accountID uuid.UUID) (payments.Account, error) {
	acc, ok := v.s.st.accounts[accountID]
	if !ok || acc.TenantID != tenantID {
		return payments.Account{}, shared.NotFound("payment account %s", accountID)
	}
	return acc, nil
}

func (v *view) InsertPaymentEntry(_ context.Context, e payments.Entry) error {
	if err := v.fault("InsertPaymentEntry"); err != nil {
		return err
	}
	v.s.st.payments = append(v.s.st.payments, e)
	return nil
}

func (v *view) ListPaymentEntries(_ context.Context, tenantID, transactionID uuid.UUID) ([]payments.Entry, error) {
	var out []payments.Entry
	for _, e := range v.s.st.payments {
		if e.TenantID == tenantID && e.TransactionID == transactionID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (v *view) LockAllocationTarget(_ context.Context, tenantID, transactionID uuid.UUID) (allocation.OpenDocument, error) {
	t, ok := v.s.st.txns[transactionID]
	if !ok || t.TenantID != tenantID {
		return allocation.OpenDocument{}, shared.NotFound("allocation target %s", transactionID)
	}
	return v.s.st.openDocument(t), nil
}

func (v *view) LockOpenDocuments(_ context.Context, tenantID, counterpartyID uuid.UUID, typ documents.Type) ([]allocation.OpenDocument, error) {
	var out []allocation.OpenDocument
	for _, t := range v.s.st.sortedTxns() {
		if t.TenantID != tenantID || t.Counterparty() != counterpartyID || t.Type != typ || !t.IsPosted() {
			continue
		}
		if doc := v.s.st.openDocument(t); doc.Outstanding > 0 {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (v *view) InsertAllocation(_ context.Context, a allocation.Allocation) error {
	if err := v.fault("InsertAllocation"); err != nil {
		return err
	}
	v.s.st.allocations = append(v.s.st.allocations, a)
	return nil
}

func (v *view) ListAllocationsByPayment(_ context.Context, tenantID, paymentTransactionID uuid.UUID) ([]allocation.Allocation, error) {
	var out []allocation.Allocation
	for _, a := range v.s.st.allocations {
		if a.TenantID == tenantID && a.PaymentTransactionID == paymentTransactionID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (v *view) SourceLine(_ context.Context, lineID uuid.UUID) (returns.SourceLine, error) {
	for _, t := range v.s.st.txns {
		for _, l := range t.Lines {
			if l.ID == lineID {
				return returns.SourceLine{
					Line:            l,
					TenantID:        t.TenantID,
					TransactionType: t.Type,
					Status:          t.Status,
					CounterpartyID:  t.Counterparty(),
				}, nil
			}
		}
	}
	return returns.SourceLine{}, shared.NotFound("source line %s", lineID)
}

func (v *view) ReturnedQuantity(_ context.Context, sourceLineID uuid.UUID) (int64, error) {
	var qty int64
	for _, t := range v.s.st.txns {
		if !t.IsPosted() {
			continue
		}
		for _, l := range t.Lines {
			if l.SourceLineID != nil && *l.SourceLineID == sourceLineID {
				qty += l.Quantity
			}
		}
	}
	return qty, nil
}

func (v *view) Claim(_ context.Context, tenantID uuid.UUID, key string, transactionID uuid.UUID) error {
	if key == "" {
		return shared.Validation("idempotency key required")
	}
	k := idemKey{tenant: tenantID, key: key}
	owner, ok := v.s.st.keys[k]
	if !ok {
		v.s.st.keys[k] = transactionID
		return nil
	}
	if owner != transactionID {
		return shared.IdempotencyConflict("key %q already used by transaction %s", key, owner)
	}
	return nil
}
