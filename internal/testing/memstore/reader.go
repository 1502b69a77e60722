package memstore

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/odyssey-erp/bookkeeping/internal/allocation"
	"github.com/odyssey-erp/bookkeeping/internal/documents"
	"github.com/odyssey-erp/bookkeeping/internal/ledger"
)

// OpenDocuments lists open purchases and sales of a counterparty, oldest first.
func (s *Store) OpenDocuments(_ context.Context, tenantID, counterpartyID uuid.UUID) ([]allocation.OpenDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []allocation.OpenDocument
	for _, t := range s.st.sortedTxns() {
		if t.TenantID != tenantID || t.Counterparty() != counterpartyID || !t.Type.IsInvoice() || !t.IsPosted() {
			continue
		}
		if doc := s.st.openDocument(t); doc.Outstanding > 0 {
			out = append(out, doc)
		}
	}
	return out, nil
}

// Credits lists payments and store-credit returns of a counterparty.
func (s *Store) Credits(_ context.Context, tenantID, counterpartyID uuid.UUID) ([]allocation.Credit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []allocation.Credit
	for _, t := range s.st.sortedTxns() {
		if t.TenantID != tenantID || t.Counterparty() != counterpartyID || !t.IsPosted() {
			continue
		}
		switch {
		case t.Type == documents.TypeSupplierPayment || t.Type == documents.TypeCustomerPayment:
		case t.Type.IsReturn() && t.ReturnMode == documents.ReturnModeStoreCredit:
		default:
			continue
		}
		var applied int64
		for _, a := range s.st.allocations {
			if a.PaymentTransactionID == t.ID {
				applied += a.AmountApplied
			}
		}
		out = append(out, allocation.Credit{
			TransactionID:  t.ID,
			DocumentNumber: deref(t.DocumentNumber),
			Type:           t.Type,
			Date:           t.Date,
			TotalAmount:    t.TotalAmount,
			Applied:        applied,
			Unapplied:      t.TotalAmount - applied,
		})
	}
	return out, nil
}

// AllocationsByInvoice lists allocations settling one invoice.
func (s *Store) AllocationsByInvoice(_ context.Context, tenantID, invoiceID uuid.UUID) ([]allocation.Allocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []allocation.Allocation
	for _, a := range s.st.allocations {
		if a.TenantID == tenantID && a.AppliesToTransactionID == invoiceID {
			out = append(out, a)
		}
	}
	return out, nil
}

// AllocationsByCounterparty pages allocations touching the counterparty's invoices.
func (s *Store) AllocationsByCounterparty(_ context.Context, tenantID, counterpartyID uuid.UUID, limit, offset int) ([]allocation.Allocation, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []allocation.Allocation
	for _, a := range s.st.allocations {
		if a.TenantID != tenantID {
			continue
		}
		if t, ok := s.st.txns[a.AppliesToTransactionID]; ok && t.Counterparty() == counterpartyID {
			all = append(all, a)
		}
	}
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

// ActiveCounterparties lists (tenant, counterparty) pairs with posted documents.
func (s *Store) ActiveCounterparties(_ context.Context) ([]allocation.CounterpartyRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[allocation.CounterpartyRef]struct{}{}
	var out []allocation.CounterpartyRef
	for _, t := range s.st.txns {
		if !t.IsPosted() || t.CounterpartyID == nil {
			continue
		}
		ref := allocation.CounterpartyRef{TenantID: t.TenantID, CounterpartyID: *t.CounterpartyID}
		if _, ok := seen[ref]; ok {
			continue
		}
		seen[ref] = struct{}{}
		out = append(out, ref)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TenantID != out[j].TenantID {
			return lessUUID(out[i].TenantID, out[j].TenantID)
		}
		return lessUUID(out[i].CounterpartyID, out[j].CounterpartyID)
	})
	return out, nil
}

// CounterpartyBalance returns the net AP/AR balance from the ledger.
func (s *Store) CounterpartyBalance(_ context.Context, tenantID, counterpartyID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var entries []ledger.Entry
	for _, e := range s.st.ledger {
		if e.TenantID == tenantID && e.CounterpartyID == counterpartyID {
			entries = append(entries, e)
		}
	}
	return ledger.NetBalance(entries), nil
}
