package drafts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/bookkeeping/internal/documents"
	"github.com/odyssey-erp/bookkeeping/internal/returns"
	"github.com/odyssey-erp/bookkeeping/internal/shared"
)

// Auditor records draft creation. *shared.AuditLogger satisfies it.
type Auditor interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service validates and stores drafts.
type Service struct {
	repo     Repository
	logger   *slog.Logger
	validate *validator.Validate
	audit    Auditor
	now      func() time.Time
}

// Option customises the service.
type Option func(*Service)

// WithAudit records every created draft.
func WithAudit(a Auditor) Option {
	return func(s *Service) { s.audit = a }
}

// WithClock overrides the time source used for the future-date check.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService constructs the drafts service.
func NewService(repo Repository, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{repo: repo, logger: logger, validate: validator.New(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var maxAmount = decimal.NewFromInt(math.MaxInt64)

// Create stores a new DRAFT. Line totals, subtotal and total are derived from
// the lines; return lines are priced at their source cost.
func (s *Service) Create(ctx context.Context, tenantID uuid.UUID, actorID string, in CreateInput) (documents.Transaction, error) {
	if tenantID == uuid.Nil {
		return documents.Transaction{}, shared.Validation("tenant required")
	}
	if err := s.validate.Struct(in); err != nil {
		return documents.Transaction{}, shared.Validation("%s", describe(err))
	}
	if !in.Type.Valid() {
		return documents.Transaction{}, shared.Validation("unknown document type %q", in.Type)
	}
	now := s.now().UTC().Truncate(time.Microsecond)
	date := documents.Date(in.Date)
	if date.After(documents.Date(now)) {
		return documents.Transaction{}, shared.Validation("date %s is in the future", date.Format(time.DateOnly))
	}
	if err := checkShape(in); err != nil {
		return documents.Transaction{}, err
	}

	txn := documents.Transaction{
		ID:               uuid.New(),
		TenantID:         tenantID,
		Type:             in.Type,
		Status:           documents.StatusDraft,
		Date:             date,
		CounterpartyID:   in.CounterpartyID,
		PaymentAccountID: in.PaymentAccountID,
		CounterAccountID: in.CounterAccountID,
		DiscountTotal:    in.DiscountTotal,
		DeliveryFee:      in.DeliveryFee,
		TotalAmount:      in.TotalAmount,
		PaidNow:          in.PaidNow,
		ReturnMode:       in.ReturnMode,
		Notes:            strings.TrimSpace(in.Notes),
		CreatedAt:        now,
	}
	if in.Type.IsReturn() && txn.ReturnMode == "" {
		txn.ReturnMode = documents.ReturnModeStoreCredit
	}
	for i, l := range in.Lines {
		txn.Lines = append(txn.Lines, documents.Line{
			ID:             uuid.New(),
			TransactionID:  txn.ID,
			Position:       i + 1,
			VariantID:      l.VariantID,
			Quantity:       l.Quantity,
			UnitPrice:      l.UnitPrice,
			DiscountAmount: l.DiscountAmount,
			SourceLineID:   l.SourceLineID,
		})
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := checkCounterparty(ctx, tx, &txn); err != nil {
			return err
		}
		if err := resolveVariants(ctx, tx, &txn); err != nil {
			return err
		}
		if err := price(ctx, tx, &txn); err != nil {
			return err
		}
		return tx.InsertDraft(ctx, &txn)
	})
	if err != nil {
		return documents.Transaction{}, err
	}
	s.logger.Info("draft created",
		slog.String("tenant_id", tenantID.String()),
		slog.String("transaction_id", txn.ID.String()),
		slog.String("type", string(txn.Type)),
		slog.Int64("total", txn.TotalAmount),
	)
	s.recordAudit(ctx, actorID, txn)
	return txn, nil
}

// checkShape enforces which header fields and lines each type accepts.
func checkShape(in CreateInput) error {
	t := in.Type
	if t.HasLines() && len(in.Lines) == 0 {
		return shared.Validation("%s requires at least one line", t)
	}
	if !t.HasLines() && len(in.Lines) > 0 {
		return shared.Validation("%s does not accept lines", t)
	}
	if t.Side() != documents.SideNone && in.CounterpartyID == nil {
		return shared.Validation("%s requires a counterparty", t)
	}
	if t.Side() == documents.SideNone && in.CounterpartyID != nil {
		return shared.Validation("%s does not take a counterparty", t)
	}
	if !t.IsInvoice() && (in.DiscountTotal != 0 || in.DeliveryFee != 0 || in.PaidNow != 0) {
		return shared.Validation("%s takes no header discount, delivery fee or paid amount", t)
	}
	if !t.IsReturn() && in.ReturnMode != "" {
		return shared.Validation("return mode only applies to returns")
	}
	for i, l := range in.Lines {
		pos := i + 1
		switch {
		case t.IsReturn() && l.SourceLineID == nil:
			return shared.Validation("return line %d has no source line", pos)
		case !t.IsReturn() && l.SourceLineID != nil:
			return shared.Validation("line %d: only returns reference a source line", pos)
		case t != documents.TypeAdjustment && l.Quantity <= 0:
			return shared.Validation("line %d quantity must be positive", pos)
		}
	}
	switch t {
	case documents.TypeSupplierPayment, documents.TypeCustomerPayment:
		if in.TotalAmount <= 0 {
			return shared.Validation("payment amount must be positive")
		}
	case documents.TypeInternalTransfer:
		if in.TotalAmount <= 0 {
			return shared.Validation("transfer amount must be positive")
		}
		if in.PaymentAccountID == nil || in.CounterAccountID == nil {
			return shared.Validation("transfer requires source and destination accounts")
		}
		if *in.PaymentAccountID == *in.CounterAccountID {
			return shared.Validation("transfer accounts must differ")
		}
	default:
		if in.TotalAmount != 0 {
			return shared.Validation("total of %s is derived from its lines", t)
		}
	}
	return nil
}

func checkCounterparty(ctx context.Context, tx TxRepository, txn *documents.Transaction) error {
	if txn.CounterpartyID == nil {
		return nil
	}
	cp, err := tx.GetCounterparty(ctx, txn.TenantID, *txn.CounterpartyID)
	if err != nil {
		return err
	}
	if cp.Kind != txn.Type.Side() {
		return shared.Validation("%s requires a %s counterparty", txn.Type, txn.Type.Side())
	}
	if !cp.Active {
		return shared.Conflict("counterparty %s is inactive", cp.ID)
	}
	return nil
}

func resolveVariants(ctx context.Context, tx TxRepository, txn *documents.Transaction) error {
	if len(txn.Lines) == 0 {
		return nil
	}
	seen := map[uuid.UUID]struct{}{}
	ids := make([]uuid.UUID, 0, len(txn.Lines))
	for _, l := range txn.Lines {
		if _, ok := seen[l.VariantID]; !ok {
			seen[l.VariantID] = struct{}{}
			ids = append(ids, l.VariantID)
		}
	}
	variants, err := tx.LockVariants(ctx, txn.TenantID, ids)
	if err != nil {
		return fmt.Errorf("drafts: load variants: %w", err)
	}
	products := make(map[uuid.UUID]uuid.UUID, len(variants))
	for _, v := range variants {
		products[v.ID] = v.ProductID
	}
	for i := range txn.Lines {
		product, ok := products[txn.Lines[i].VariantID]
		if !ok {
			return shared.NotFound("variant %s", txn.Lines[i].VariantID)
		}
		txn.Lines[i].ProductID = product
	}
	return nil
}

// price fills line totals and header amounts.
func price(ctx context.Context, tx TxRepository, txn *documents.Transaction) error {
	switch {
	case txn.Type.IsReturn():
		priced, err := returns.Check(ctx, tx, txn)
		if err != nil {
			return err
		}
		for i, p := range priced {
			txn.Lines[i].UnitPrice = p.UnitCost
			txn.Lines[i].DiscountAmount = 0
			txn.Lines[i].LineTotal = p.Amount
		}
		txn.Subtotal = returns.Total(priced)
		txn.TotalAmount = txn.Subtotal
	case txn.Type.IsInvoice():
		subtotal := decimal.Zero
		for i := range txn.Lines {
			l := &txn.Lines[i]
			gross := decimal.NewFromInt(l.Quantity).Mul(decimal.NewFromInt(l.UnitPrice))
			if gross.GreaterThan(maxAmount) {
				return shared.Validation("line %d amount out of range", l.Position)
			}
			if decimal.NewFromInt(l.DiscountAmount).GreaterThan(gross) {
				return shared.Validation("line %d discount %d exceeds gross amount %s", l.Position, l.DiscountAmount, gross)
			}
			l.LineTotal = gross.IntPart() - l.DiscountAmount
			subtotal = subtotal.Add(decimal.NewFromInt(l.LineTotal))
		}
		if subtotal.GreaterThan(maxAmount) {
			return shared.Validation("subtotal out of range")
		}
		txn.Subtotal = subtotal.IntPart()
		if txn.DiscountTotal > txn.Subtotal {
			return shared.Validation("header discount %d exceeds subtotal %d", txn.DiscountTotal, txn.Subtotal)
		}
		txn.TotalAmount = txn.Subtotal - txn.DiscountTotal + txn.DeliveryFee
		if txn.PaidNow > txn.TotalAmount {
			return shared.Validation("paid amount %d exceeds total %d", txn.PaidNow, txn.TotalAmount)
		}
	}
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actorID string, txn documents.Transaction) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		TenantID: txn.TenantID,
		ActorID:  actorID,
		Action:   "transaction.drafted",
		Entity:   "transaction",
		EntityID: txn.ID.String(),
		Meta:     map[string]any{"type": string(txn.Type), "total": txn.TotalAmount},
		At:       txn.CreatedAt,
	})
	if err != nil {
		s.logger.Warn("audit draft", slog.String("transaction_id", txn.ID.String()), slog.Any("error", err))
	}
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fe.Namespace()+" failed "+fe.Tag())
	}
	return strings.Join(parts, "; ")
}
