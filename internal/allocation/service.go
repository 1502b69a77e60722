package allocation

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/odyssey-erp/bookkeeping/internal/shared"
)

// Reader serves the open-documents and statement views.
type Reader interface {
	OpenDocuments(ctx context.Context, tenantID, counterpartyID uuid.UUID) ([]OpenDocument, error)
	Credits(ctx context.Context, tenantID, counterpartyID uuid.UUID) ([]Credit, error)
	AllocationsByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]Allocation, error)
	AllocationsByCounterparty(ctx context.Context, tenantID, counterpartyID uuid.UUID, limit, offset int) ([]Allocation, int, error)
	ActiveCounterparties(ctx context.Context) ([]CounterpartyRef, error)
}

// BalanceReader returns the ledger derived balance of a counterparty.
type BalanceReader interface {
	CounterpartyBalance(ctx context.Context, tenantID, counterpartyID uuid.UUID) (int64, error)
}

// CounterpartyRef names one counterparty of one tenant.
type CounterpartyRef struct {
	TenantID       uuid.UUID `json:"tenantId"`
	CounterpartyID uuid.UUID `json:"counterpartyId"`
}

// Statement reconciles open documents and credits against the ledger.
// UnappliedCredits is zero or negative so that OpenTotal + UnappliedCredits
// equals LedgerBalance when the books agree.
type Statement struct {
	CounterpartyID   uuid.UUID      `json:"counterpartyId"`
	OpenDocuments    []OpenDocument `json:"openDocuments"`
	Credits          []Credit       `json:"credits"`
	OpenTotal        int64          `json:"openTotal"`
	UnappliedCredits int64          `json:"unappliedCredits"`
	LedgerBalance    int64          `json:"ledgerBalance"`
	Difference       int64          `json:"difference"`
}

// Reconciled reports whether documents and ledger agree.
func (s Statement) Reconciled() bool {
	return s.Difference == 0
}

// AllocationPage is one page of allocations.
type AllocationPage struct {
	Items      []Allocation      `json:"items"`
	Pagination shared.Pagination `json:"pagination"`
}

// Service exposes allocation reads.
type Service struct {
	reader   Reader
	balances BalanceReader
}

// NewService builds Service.
func NewService(reader Reader, balances BalanceReader) *Service {
	return &Service{reader: reader, balances: balances}
}

// OpenDocuments lists open invoices of a counterparty.
func (s *Service) OpenDocuments(ctx context.Context, tenantID, counterpartyID uuid.UUID) ([]OpenDocument, error) {
	return s.reader.OpenDocuments(ctx, tenantID, counterpartyID)
}

// ByInvoice lists allocations settling an invoice.
func (s *Service) ByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]Allocation, error) {
	return s.reader.AllocationsByInvoice(ctx, tenantID, invoiceID)
}

// ByCounterparty pages allocations touching the counterparty's invoices.
func (s *Service) ByCounterparty(ctx context.Context, tenantID, counterpartyID uuid.UUID, page, perPage int) (AllocationPage, error) {
	p := shared.NewPagination(page, perPage, 0)
	items, total, err := s.reader.AllocationsByCounterparty(ctx, tenantID, counterpartyID, p.PerPage, p.Offset())
	if err != nil {
		return AllocationPage{}, err
	}
	return AllocationPage{Items: items, Pagination: shared.NewPagination(p.Page, p.PerPage, total)}, nil
}

// Statement builds the reconciliation view of a counterparty.
func (s *Service) Statement(ctx context.Context, tenantID, counterpartyID uuid.UUID) (Statement, error) {
	open, err := s.reader.OpenDocuments(ctx, tenantID, counterpartyID)
	if err != nil {
		return Statement{}, fmt.Errorf("allocation: open documents: %w", err)
	}
	credits, err := s.reader.Credits(ctx, tenantID, counterpartyID)
	if err != nil {
		return Statement{}, fmt.Errorf("allocation: credits: %w", err)
	}
	balance, err := s.balances.CounterpartyBalance(ctx, tenantID, counterpartyID)
	if err != nil {
		return Statement{}, fmt.Errorf("allocation: ledger balance: %w", err)
	}
	st := Statement{CounterpartyID: counterpartyID, OpenDocuments: open, Credits: credits, LedgerBalance: balance}
	for _, d := range open {
		st.OpenTotal += d.Outstanding
	}
	for _, c := range credits {
		st.UnappliedCredits -= c.Unapplied
	}
	st.Difference = st.LedgerBalance - (st.OpenTotal + st.UnappliedCredits)
	return st, nil
}

// ActiveCounterparties lists every counterparty with posted documents.
func (s *Service) ActiveCounterparties(ctx context.Context) ([]CounterpartyRef, error) {
	return s.reader.ActiveCounterparties(ctx)
}
