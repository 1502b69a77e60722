package posting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/bookkeeping/internal/documents"
	"github.com/odyssey-erp/bookkeeping/internal/sequence"
	"github.com/odyssey-erp/bookkeeping/internal/shared"
)

// Auditor records posted documents in the audit trail.
type Auditor interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Observer receives posting outcomes. *observability.Metrics satisfies it.
type Observer interface {
	ObservePosting(docType, outcome string, elapsed time.Duration)
}

// Options configures optional collaborators of the engine.
type Options struct {
	Cache   ResultCache
	Audit   Auditor
	Metrics Observer
	Now     func() time.Time
}

// Engine posts DRAFT documents atomically and idempotently.
type Engine struct {
	repo     Repository
	logger   *slog.Logger
	validate *validator.Validate
	cache    ResultCache
	audit    Auditor
	metrics  Observer
	now      func() time.Time
	flights  singleflight.Group
}

// NewEngine wires the posting engine.
func NewEngine(repo Repository, logger *slog.Logger, opts Options) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{
		repo:     repo,
		logger:   logger,
		validate: validator.New(),
		cache:    opts.Cache,
		audit:    opts.Audit,
		metrics:  opts.Metrics,
		now:      opts.Now,
	}
}

type outcome struct {
	result   *Result
	replayed bool
}

// Post transitions a DRAFT to POSTED and writes all of its effects in one unit of
// work. Re-posting with the same key returns the original result unchanged.
func (e *Engine) Post(ctx context.Context, tenantID, transactionID uuid.UUID, in Instructions) (*Result, error) {
	if err := e.validate.Struct(in); err != nil {
		return nil, shared.Validation("%s", describe(err))
	}
	if cached := e.cached(ctx, tenantID, transactionID); cached != nil {
		return replay(cached, in.IdempotencyKey)
	}

	ch := e.flights.DoChan(shared.PostingKey(tenantID, transactionID, in.IdempotencyKey), func() (any, error) {
		return e.post(context.WithoutCancel(ctx), tenantID, transactionID, in)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(outcome).result, nil
	}
}

// Get returns the composed view of a transaction. Drafts carry no effects.
func (e *Engine) Get(ctx context.Context, tenantID, transactionID uuid.UUID) (*Result, error) {
	if cached := e.cached(ctx, tenantID, transactionID); cached != nil {
		return cached, nil
	}
	var res *Result
	err := e.repo.Read(ctx, func(ctx context.Context, repos Repos) error {
		var err error
		res, err = loadResult(ctx, repos, tenantID, transactionID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (e *Engine) post(ctx context.Context, tenantID, transactionID uuid.UUID, in Instructions) (outcome, error) {
	start := time.Now()
	out, docType, err := e.execute(ctx, tenantID, transactionID, in)
	elapsed := time.Since(start)
	if err != nil {
		e.observe(docType, classify(err), elapsed)
		e.logger.Info("posting rejected",
			slog.String("transaction_id", transactionID.String()),
			slog.String("type", docType),
			slog.Any("error", err))
		return outcome{}, err
	}
	if out.replayed {
		e.observe(docType, "replayed", elapsed)
		return out, nil
	}

	txn := out.result.Transaction
	e.observe(docType, "posted", elapsed)
	e.logger.Info("transaction posted",
		slog.String("transaction_id", txn.ID.String()),
		slog.String("document_number", deref(txn.DocumentNumber)),
		slog.String("type", docType),
		slog.Int64("total", txn.TotalAmount),
		slog.Duration("elapsed", elapsed))
	if e.audit != nil {
		if err := e.audit.Record(ctx, shared.AuditLog{
			TenantID: tenantID,
			ActorID:  in.ActorID,
			Action:   "transaction.posted",
			Entity:   "transaction",
			EntityID: txn.ID.String(),
			Meta: map[string]any{
				"type":           txn.Type,
				"documentNumber": deref(txn.DocumentNumber),
				"totalAmount":    txn.TotalAmount,
			},
			At: *txn.PostedAt,
		}); err != nil {
			e.logger.Warn("audit record failed", slog.String("transaction_id", txn.ID.String()), slog.Any("error", err))
		}
	}
	if e.cache != nil {
		if err := e.cache.Set(ctx, out.result); err != nil {
			e.logger.Warn("result cache write failed", slog.String("transaction_id", txn.ID.String()), slog.Any("error", err))
		}
	}
	return out, nil
}

func (e *Engine) execute(ctx context.Context, tenantID, transactionID uuid.UUID, in Instructions) (outcome, string, error) {
	var (
		out     outcome
		docType = "unknown"
	)
	err := e.repo.WithTx(ctx, func(ctx context.Context, repos Repos) error {
		txn, err := repos.Documents.GetTransactionForUpdate(ctx, tenantID, transactionID)
		if err != nil {
			return err
		}
		docType = string(txn.Type)
		if txn.IsPosted() {
			if deref(txn.IdempotencyKey) != in.IdempotencyKey {
				return shared.IdempotencyConflict("transaction %s was posted with a different key", txn.ID)
			}
			res, err := loadResult(ctx, repos, tenantID, transactionID)
			if err != nil {
				return err
			}
			out = outcome{result: res, replayed: true}
			return nil
		}

		strat, ok := strategies[txn.Type]
		if !ok {
			return shared.Validation("unsupported document type %q", txn.Type)
		}
		now := e.now().UTC().Truncate(time.Microsecond)
		if documents.Date(txn.Date).After(documents.Date(now)) {
			return shared.Validation("document date %s is in the future", txn.Date.Format("2006-01-02"))
		}
		if err := repos.Keys.Claim(ctx, tenantID, in.IdempotencyKey, txn.ID); err != nil {
			return err
		}

		u := newUnit(repos, &txn, in, now)
		if err := strat.prepare(ctx, u); err != nil {
			return err
		}
		year := now.Year()
		number, err := sequence.Next(ctx, repos.Sequences, tenantID, txn.Type, year)
		if err != nil {
			return err
		}
		if err := strat.apply(ctx, u); err != nil {
			return err
		}

		key := in.IdempotencyKey
		txn.Status = documents.StatusPosted
		txn.DocumentNumber = &number
		txn.Series = strconv.Itoa(year)
		txn.IdempotencyKey = &key
		txn.PostedAt = &now
		txn.PaidNow = u.paid
		if err := repos.Documents.MarkPosted(ctx, &txn); err != nil {
			return err
		}
		res, err := loadResult(ctx, repos, tenantID, transactionID)
		if err != nil {
			return err
		}
		out = outcome{result: res}
		return nil
	})
	return out, docType, err
}

func loadResult(ctx context.Context, repos Repos, tenantID, transactionID uuid.UUID) (*Result, error) {
	txn, err := repos.Documents.GetTransaction(ctx, tenantID, transactionID)
	if err != nil {
		return nil, err
	}
	res := &Result{Transaction: txn}
	if !txn.IsPosted() {
		return res, nil
	}
	if res.Ledger, err = repos.Ledger.ListLedgerEntries(ctx, tenantID, transactionID); err != nil {
		return nil, fmt.Errorf("posting: ledger entries: %w", err)
	}
	if res.Inventory, err = repos.Inventory.ListMovements(ctx, tenantID, transactionID); err != nil {
		return nil, fmt.Errorf("posting: movements: %w", err)
	}
	if res.Payments, err = repos.Payments.ListPaymentEntries(ctx, tenantID, transactionID); err != nil {
		return nil, fmt.Errorf("posting: payment entries: %w", err)
	}
	if res.Allocations, err = repos.Allocations.ListAllocationsByPayment(ctx, tenantID, transactionID); err != nil {
		return nil, fmt.Errorf("posting: allocations: %w", err)
	}
	return res, nil
}

func (e *Engine) cached(ctx context.Context, tenantID, transactionID uuid.UUID) *Result {
	if e.cache == nil {
		return nil
	}
	res, err := e.cache.Get(ctx, tenantID, transactionID)
	if err != nil {
		e.logger.Warn("result cache read failed", slog.String("transaction_id", transactionID.String()), slog.Any("error", err))
		return nil
	}
	return res
}

func (e *Engine) observe(docType, result string, elapsed time.Duration) {
	if e.metrics != nil {
		e.metrics.ObservePosting(docType, result, elapsed)
	}
}

func replay(res *Result, key string) (*Result, error) {
	if deref(res.Transaction.IdempotencyKey) != key {
		return nil, shared.IdempotencyConflict("transaction %s was posted with a different key", res.Transaction.ID)
	}
	return res, nil
}

func classify(err error) string {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		return "not_found"
	case errors.Is(err, shared.ErrValidation):
		return "validation"
	case errors.Is(err, shared.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, shared.ErrIdempotencyConflict):
		return "idempotency_conflict"
	case errors.Is(err, shared.ErrSerializationConflict):
		return "serialization_conflict"
	case errors.Is(err, shared.ErrDomainConflict):
		return "conflict"
	default:
		return "error"
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

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
