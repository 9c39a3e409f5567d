// Package jobmetrics instruments background ledger jobs.
package jobmetrics

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeOK     = "ok"
	outcomeFailed = "failed"
)

// Metrics holds the job collectors. A nil *Metrics records nothing.
type Metrics struct {
	runs        *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	lastSuccess *prometheus.GaugeVec
	tenants     *prometheus.CounterVec
	violations  *prometheus.CounterVec
}

var defaultMetrics = sync.OnceValue(func() *Metrics {
	return newMetrics(prometheus.DefaultRegisterer)
})

// NewMetrics registers the job collectors with registerer, falling back to the
// default registerer when it is nil. Registering twice against the same
// registry returns collectors bound to the first registration.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		return defaultMetrics()
	}
	return newMetrics(registerer)
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		runs: mustRegister(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledger", Subsystem: "job", Name: "runs_total",
			Help: "Background job runs by job and outcome.",
		}, []string{"job", "outcome"})),
		duration: mustRegister(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ledger", Subsystem: "job", Name: "duration_seconds",
			Help:    "Wall time of background job runs.",
			Buckets: prometheus.ExponentialBuckets(0.05, 4, 8),
		}, []string{"job"})),
		lastSuccess: mustRegister(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "ledger", Subsystem: "job", Name: "last_success_timestamp_seconds",
			Help: "Unix time the job last finished without error.",
		}, []string{"job"})),
		tenants: mustRegister(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledger", Subsystem: "job", Name: "tenants_checked_total",
			Help: "Tenants visited by background jobs.",
		}, []string{"job"})),
		violations: mustRegister(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledger", Name: "integrity_violations_total",
			Help: "Ledger integrity violations by check.",
		}, []string{"check"})),
	}
}

func mustRegister[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	err := reg.Register(c)
	if err == nil {
		return c
	}
	var dup prometheus.AlreadyRegisteredError
	if errors.As(err, &dup) {
		if existing, ok := dup.ExistingCollector.(C); ok {
			return existing
		}
	}
	panic(err)
}

// Run is one in-flight job execution.
type Run struct {
	m     *Metrics
	job   string
	start time.Time
}

// Track marks the start of a run of job.
func (m *Metrics) Track(job string) *Run {
	return &Run{m: m, job: job, start: time.Now()}
}

// TenantChecked counts one tenant visited by the run.
func (r *Run) TenantChecked() {
	if r == nil || r.m == nil {
		return
	}
	r.m.tenants.WithLabelValues(r.job).Inc()
}

// End records the outcome and duration of the run and passes err through.
func (r *Run) End(err error) error {
	if r == nil || r.m == nil {
		return err
	}
	r.m.duration.WithLabelValues(r.job).Observe(time.Since(r.start).Seconds())
	if err != nil {
		r.m.runs.WithLabelValues(r.job, outcomeFailed).Inc()
		return err
	}
	r.m.runs.WithLabelValues(r.job, outcomeOK).Inc()
	r.m.lastSuccess.WithLabelValues(r.job).SetToCurrentTime()
	return nil
}

// AddViolations counts integrity violations found by check.
func (m *Metrics) AddViolations(check string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.violations.WithLabelValues(check).Add(float64(n))
}
