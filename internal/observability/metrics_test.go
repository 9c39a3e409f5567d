package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	r := chi.NewRouter()
	r.Use(metrics.Middleware)
	r.Get("/journals/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/journals/12", nil))
	require.Equal(t, http.StatusTeapot, rr.Code)

	body := scrape(t, metrics)
	require.Contains(t, body, `ledger_http_requests_total{code="418",method="GET",route="/journals/{id}"} 1`)
	require.Contains(t, body, `ledger_http_request_duration_seconds_bucket{route="/journals/{id}"`)
	require.Contains(t, body, "ledger_http_requests_in_flight 0")
	require.Contains(t, body, "go_goroutines")
	require.Contains(t, scrape(t, metrics), "promhttp_metric_handler_requests_total")
}

func TestLedgerChangedCountsActions(t *testing.T) {
	metrics := NewMetrics()
	ctx := context.Background()
	metrics.LedgerChanged(ctx, 1, accounting.AuditEntryPosted)
	metrics.LedgerChanged(ctx, 2, accounting.AuditEntryPosted)
	metrics.LedgerChanged(ctx, 1, accounting.AuditPeriodClosed)

	body := scrape(t, metrics)
	require.Contains(t, body, `ledger_actions_total{action="POSTED"} 2`)
	require.Contains(t, body, `ledger_actions_total{action="PERIOD_CLOSED"} 1`)
	require.Contains(t, body, `ledger_last_action_timestamp_seconds{action="POSTED"}`)

	var nilMetrics *Metrics
	nilMetrics.LedgerChanged(ctx, 1, accounting.AuditEntryPosted)
	rr := httptest.NewRecorder()
	nilMetrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
