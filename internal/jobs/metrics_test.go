package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRunRecordsOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	run := m.Track("gl_integrity")
	run.TenantChecked()
	run.TenantChecked()
	require.NoError(t, run.End(nil))
	boom := errors.New("boom")
	require.ErrorIs(t, m.Track("gl_integrity").End(boom), boom)
	m.AddViolations("trial_balance", 2)
	m.AddViolations("trial_balance", 0)

	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("gl_integrity", outcomeOK)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("gl_integrity", outcomeFailed)))
	require.Equal(t, 2.0, testutil.ToFloat64(m.tenants.WithLabelValues("gl_integrity")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.violations.WithLabelValues("trial_balance")))
	require.Positive(t, testutil.ToFloat64(m.lastSuccess.WithLabelValues("gl_integrity")))

	again := NewMetrics(reg)
	again.AddViolations("trial_balance", 1)
	require.Equal(t, 3.0, testutil.ToFloat64(m.violations.WithLabelValues("trial_balance")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	run := m.Track("x")
	run.TenantChecked()
	require.NoError(t, run.End(nil))
	m.AddViolations("x", 3)
}
