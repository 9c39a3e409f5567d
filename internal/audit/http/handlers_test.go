package audithttp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/memory"
	"github.com/odyssey-erp/odyssey-ledger/internal/audit"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	_ "github.com/odyssey-erp/odyssey-ledger/testing"
)

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	clock := time.Date(2024, 3, 20, 9, 0, 0, 0, time.UTC)
	ledger := accounting.NewService(memory.New(), decimal.Zero)
	ledger.WithNow(func() time.Time { return clock })
	ctx := context.Background()
	_, err := ledger.SeedFromTemplate(ctx, 1, 2, []accounting.AccountTemplate{
		{Code: "1", Name: "Assets", Type: accounting.AccountTypeAsset},
		{Code: "3", Name: "Equity", Type: accounting.AccountTypeEquity},
	})
	require.NoError(t, err)
	_, err = ledger.ClosePeriod(ctx, 1, 2024, 1, 2)
	require.NoError(t, err)

	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), audit.NewService(ledger))
	h.now = func() time.Time { return clock }
	r := chi.NewRouter()
	h.MountRoutes(r)
	return r
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set(httpx.HeaderTenantID, "1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestTimelineEndpoint(t *testing.T) {
	h := newRouter(t)

	rec := get(h, "/audit")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result audit.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Len(t, result.Rows, 2)
	require.Equal(t, "PERIOD_CLOSED", result.Rows[0].Action)
	require.Equal(t, "2024-01", result.Rows[0].Period)
	require.Equal(t, 20, result.Paging.PageSize)

	rec = get(h, "/audit?entity=period&page_size=1")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Len(t, result.Rows, 1)
	require.False(t, result.Paging.HasNext)

	rec = get(h, "/audit?from=2024-03-21")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = get(h, "/audit?page=0")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = get(h, "/audit?from=2024-03-01&to=2024-03-10")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Empty(t, result.Rows)
}

func TestTimelineExport(t *testing.T) {
	h := newRouter(t)
	rec := get(h, "/audit.csv")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Body.String(), "CHART_SEEDED")

	req := httptest.NewRequest(http.MethodGet, "/audit.csv", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTimelineExportIsThrottledPerTenant(t *testing.T) {
	h := newRouter(t)
	for i := 0; i < exportsPerWindow; i++ {
		require.Equal(t, http.StatusOK, get(h, "/audit.csv").Code, "export %d", i)
	}
	rec := get(h, "/audit.csv")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Contains(t, rec.Body.String(), "audit export limit")

	// the timeline is not throttled
	require.Equal(t, http.StatusOK, get(h, "/audit").Code)
}
