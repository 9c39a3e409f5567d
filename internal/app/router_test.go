package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	_ "github.com/odyssey-erp/odyssey-ledger/testing"
)

func testRuntime(t *testing.T, env map[string]string) *Runtime {
	t.Helper()
	t.Setenv("STORE_DRIVER", StoreMemory)
	t.Setenv("REPORT_CACHE", ReportCacheLocal)
	for k, v := range env {
		t.Setenv(k, v)
	}
	cfg, err := LoadConfig()
	require.NoError(t, err)
	rt, err := Bootstrap(context.Background(), cfg, newLogger(io.Discard, cfg))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })
	return rt
}

func call(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(httpx.HeaderTenantID, "5")
	req.Header.Set(httpx.HeaderActorID, "1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouterServesLedgerAPI(t *testing.T) {
	rt := testRuntime(t, nil)
	h := NewRouter(rt)

	rec := call(t, h, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = call(t, h, http.MethodPost, "/api/v1/accounts/seed", `{"template":"puc"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = call(t, h, http.MethodGet, "/api/v1/reports/trial-balance", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	for _, path := range []string{"/api/v1/periods", "/api/v1/journals", "/api/v1/audit", "/api/v1/ledger", "/jobs/health"} {
		rec = call(t, h, http.MethodGet, path, "")
		require.Equal(t, http.StatusOK, rec.Code, path)
	}

	rec = call(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, `ledger_actions_total{action="CHART_SEEDED"} 1`)
	require.Contains(t, body, `route="/api/v1/accounts/seed"`)
}

func TestRouterRateLimit(t *testing.T) {
	rt := testRuntime(t, map[string]string{"RATE_LIMIT_PER_MINUTE": "2"})
	h := NewRouter(rt)
	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, call(t, h, http.MethodGet, "/healthz", "").Code)
	}
	rec := call(t, h, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestHealthReportsFailingCheck(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, &Config{LogFormat: "json"})
	h := healthHandler(logger, map[string]HealthCheck{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("connection refused") },
	})
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), `"redis":"down"`)
	require.Contains(t, rec.Body.String(), `"postgres":"ok"`)
	require.Contains(t, buf.String(), `"check":"redis"`)
}

func TestBootstrapRedisCache(t *testing.T) {
	srv := miniredis.RunT(t)
	rt := testRuntime(t, map[string]string{"REPORT_CACHE": ReportCacheRedis, "REDIS_ADDR": srv.Addr()})
	require.NotNil(t, rt.Redis)
	require.Contains(t, rt.Checks, "redis")

	h := NewRouter(rt)
	require.Equal(t, http.StatusCreated, call(t, h, http.MethodPost, "/api/v1/accounts/seed", `{}`).Code)
	require.Equal(t, http.StatusOK, call(t, h, http.MethodGet, "/api/v1/reports/trial-balance", "").Code)
	require.NotEmpty(t, srv.Keys())
}

func TestBootstrapFallsBackWithoutRedis(t *testing.T) {
	srv := miniredis.RunT(t)
	addr := srv.Addr()
	srv.Close()
	rt := testRuntime(t, map[string]string{"REPORT_CACHE": ReportCacheRedis, "REDIS_ADDR": addr})
	require.Nil(t, rt.Redis)
	require.NotContains(t, rt.Checks, "redis")
}
