package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bsm/redislock"
	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/bookkeeping/internal/jobs"
	"github.com/odyssey-erp/bookkeeping/internal/shared"
)

const reconcileLockTTL = 10 * time.Minute

// ReconcileJob checks that every counterparty's open documents and unapplied
// credits add up to its ledger balance.
type ReconcileJob struct {
	Reconciler Reconciler
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
	// Locker keeps a single replica reconciling at a time. Nil disables locking.
	Locker *redislock.Client
	clock  func() time.Time
}

// NewReconcileJob initialises the reconciliation handler.
func NewReconcileJob(reconciler Reconciler, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReconcileJob {
	return &ReconcileJob{
		Reconciler: reconciler,
		Logger:     logger,
		Metrics:    metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes TaskStatementsReconcile tasks.
func (j *ReconcileJob) Handle(ctx context.Context, _ *asynq.Task) (err error) {
	if j == nil || j.Reconciler == nil {
		return errors.New("reconcile: handler not configured")
	}
	start := j.clock()
	tracker := j.Metrics.Track(TaskStatementsReconcile)
	defer func() { err = tracker.End(err) }()

	logger := j.logger()
	if j.Locker != nil {
		lock, err := j.Locker.Obtain(ctx, shared.ReconcileLockKey(), reconcileLockTTL, nil)
		if errors.Is(err, redislock.ErrNotObtained) {
			logger.Info("statement reconciliation already running elsewhere")
			return nil
		}
		if err != nil {
			return fmt.Errorf("reconcile: obtain lock: %w", err)
		}
		defer func() {
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
				logger.Warn("release reconcile lock", slog.Any("error", err))
			}
		}()
	}
	logger.Info("starting statement reconciliation")
	mismatches, checked, err := j.Run(ctx)
	if err != nil {
		logger.Error("reconciliation failed", slog.Any("error", err))
		return err
	}
	j.Metrics.SetStatementMismatches(mismatches)
	logger.Info("completed statement reconciliation",
		slog.Int("counterparties", checked),
		slog.Int("mismatches", mismatches),
		slog.Duration("duration", j.clock().Sub(start)),
	)
	return nil
}

// Run reconciles every active counterparty and returns the mismatch count.
func (j *ReconcileJob) Run(ctx context.Context) (mismatches, checked int, err error) {
	refs, err := j.Reconciler.ActiveCounterparties(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("reconcile: counterparties: %w", err)
	}
	for _, ref := range refs {
		st, err := j.Reconciler.Statement(ctx, ref.TenantID, ref.CounterpartyID)
		if err != nil {
			return mismatches, checked, fmt.Errorf("reconcile: statement %s: %w", ref.CounterpartyID, err)
		}
		checked++
		if st.Reconciled() {
			continue
		}
		mismatches++
		j.logger().Warn("statement does not reconcile",
			slog.String("tenant_id", ref.TenantID.String()),
			slog.String("counterparty_id", ref.CounterpartyID.String()),
			slog.Int64("open_total", st.OpenTotal),
			slog.Int64("unapplied_credits", st.UnappliedCredits),
			slog.Int64("ledger_balance", st.LedgerBalance),
			slog.Int64("difference", st.Difference),
		)
	}
	return mismatches, checked, nil
}

func (j *ReconcileJob) logger() *slog.Logger {
	if j.Logger == nil {
		return slog.Default()
	}
	return j.Logger
}
