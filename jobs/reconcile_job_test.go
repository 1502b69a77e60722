package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bsm/redislock"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/odyssey-erp/bookkeeping/internal/allocation"
	jobmetrics "github.com/odyssey-erp/bookkeeping/internal/jobs"
	"github.com/odyssey-erp/bookkeeping/internal/shared"
)

func TestReconcileJobCountsMismatches(t *testing.T) {
	ctrl := gomock.NewController(t)
	reconciler := NewMockReconciler(ctrl)
	tenant := uuid.New()
	balanced, drifted := uuid.New(), uuid.New()

	reconciler.EXPECT().ActiveCounterparties(gomock.Any()).Return([]allocation.CounterpartyRef{
		{TenantID: tenant, CounterpartyID: balanced},
		{TenantID: tenant, CounterpartyID: drifted},
	}, nil)
	reconciler.EXPECT().Statement(gomock.Any(), tenant, balanced).Return(allocation.Statement{
		CounterpartyID: balanced,
		OpenTotal:      1000,
		LedgerBalance:  1000,
	}, nil)
	reconciler.EXPECT().Statement(gomock.Any(), tenant, drifted).Return(allocation.Statement{
		CounterpartyID: drifted,
		OpenTotal:      1000,
		LedgerBalance:  900,
		Difference:     -100,
	}, nil)

	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)
	job := NewReconcileJob(reconciler, discardLogger(), metrics)

	task, err := NewReconcileTask(job.clock())
	require.NoError(t, err)
	require.Equal(t, TaskStatementsReconcile, task.Type())
	require.NoError(t, job.Handle(context.Background(), task))

	gauge := gatherGauge(t, reg, "bookkeeping_statement_mismatches")
	require.Equal(t, float64(1), gauge)
}

func TestReconcileJobPropagatesReaderErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	reconciler := NewMockReconciler(ctrl)
	tenant, cp := uuid.New(), uuid.New()
	boom := errors.New("connection reset")

	reconciler.EXPECT().ActiveCounterparties(gomock.Any()).Return([]allocation.CounterpartyRef{{TenantID: tenant, CounterpartyID: cp}}, nil)
	reconciler.EXPECT().Statement(gomock.Any(), tenant, cp).Return(allocation.Statement{}, boom)

	job := NewReconcileJob(reconciler, discardLogger(), nil)
	mismatches, checked, err := job.Run(context.Background())
	require.ErrorIs(t, err, boom)
	require.Zero(t, mismatches)
	require.Zero(t, checked)
	require.ErrorIs(t, job.Handle(context.Background(), asynq.NewTask(TaskStatementsReconcile, nil)), boom)
}

func TestReconcileJobWithoutCounterparties(t *testing.T) {
	ctrl := gomock.NewController(t)
	reconciler := NewMockReconciler(ctrl)
	reconciler.EXPECT().ActiveCounterparties(gomock.Any()).Return(nil, nil)

	job := NewReconcileJob(reconciler, discardLogger(), nil)
	mismatches, checked, err := job.Run(context.Background())
	require.NoError(t, err)
	require.Zero(t, mismatches)
	require.Zero(t, checked)
}

func newLocker(t *testing.T) (*redislock.Client, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return redislock.New(client), srv
}

func TestReconcileJobSkipsWhenLockIsHeld(t *testing.T) {
	ctrl := gomock.NewController(t)
	reconciler := NewMockReconciler(ctrl)
	locker, srv := newLocker(t)
	require.NoError(t, srv.Set(shared.ReconcileLockKey(), "other-replica"))

	job := NewReconcileJob(reconciler, discardLogger(), nil)
	job.Locker = locker
	require.NoError(t, job.Handle(context.Background(), asynq.NewTask(TaskStatementsReconcile, nil)))
}

func TestReconcileJobReleasesLock(t *testing.T) {
	ctrl := gomock.NewController(t)
	reconciler := NewMockReconciler(ctrl)
	reconciler.EXPECT().ActiveCounterparties(gomock.Any()).Return(nil, nil)
	locker, srv := newLocker(t)

	job := NewReconcileJob(reconciler, discardLogger(), nil)
	job.Locker = locker
	require.NoError(t, job.Handle(context.Background(), asynq.NewTask(TaskStatementsReconcile, nil)))
	require.False(t, srv.Exists(shared.ReconcileLockKey()))
}

func gatherGauge(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == name && len(f.GetMetric()) == 1 {
			return f.GetMetric()[0].GetGauge().GetValue()
		}
	}
	t.Fatalf("metric %s not gathered", name)
	return 0
}

func testClock() time.Time {
	return time.Date(2026, 3, 10, 2, 0, 0, 0, time.UTC)
}
