package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveOperation("create", "ok", 3*time.Millisecond)
	m.ObserveOperation("create", "ok", time.Millisecond)
	m.ObserveOperation("create", "unprocessable", time.Millisecond)
	m.IncrementTransition("donated")

	require.Equal(t, 2.0, testutil.ToFloat64(m.Operations.WithLabelValues("create", "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues("create", "unprocessable")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Transitions.WithLabelValues("donated")))

	count, err := testutil.GatherAndCount(reg, "podari_product_operation_duration_seconds")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveOperation("create", "ok", time.Millisecond)
	m.IncrementTransition("listed")
}
