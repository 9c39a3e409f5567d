package reports

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics observes report requests and the builds the cache could not serve.
type Metrics struct {
	requests *prometheus.CounterVec
	builds   *prometheus.HistogramVec
}

// NewMetrics registers the report collectors on reg. Collectors that already
// exist are reused, so tests may call it repeatedly.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "odyssey_ledger_report_requests_total",
			Help: "Report requests by report name.",
		}, []string{"report"}),
		builds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "odyssey_ledger_report_build_duration_seconds",
			Help:    "Time spent replaying the ledger for reports missing from the cache.",
			Buckets: prometheus.DefBuckets,
		}, []string{"report"}),
	}
	if err := reg.Register(m.requests); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return nil, err
		}
		m.requests = already.ExistingCollector.(*prometheus.CounterVec)
	}
	if err := reg.Register(m.builds); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return nil, err
		}
		m.builds = already.ExistingCollector.(*prometheus.HistogramVec)
	}
	return m, nil
}

func (m *Metrics) request(report string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(report).Inc()
}

func (m *Metrics) build(report string, started time.Time) {
	if m == nil {
		return
	}
	m.builds.WithLabelValues(report).Observe(time.Since(started).Seconds())
}
