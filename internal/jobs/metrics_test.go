package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestTrackerCountsOutcomes(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	require.NoError(t, m.Track("posting:post").End(nil))
	boom := errors.New("boom")
	require.ErrorIs(t, m.Track("posting:post").End(boom), boom)

	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("posting:post", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("posting:post", "failure")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("posting:post")))
}

func TestStatementMismatchGauge(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.SetStatementMismatches(3)
	require.Equal(t, 3.0, testutil.ToFloat64(m.mismatches))
	m.SetStatementMismatches(0)
	require.Equal(t, 0.0, testutil.ToFloat64(m.mismatches))

	var nilMetrics *Metrics
	nilMetrics.SetStatementMismatches(1)
	require.NoError(t, nilMetrics.Track("x").End(nil))
}
