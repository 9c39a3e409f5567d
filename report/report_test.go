package report

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

func fakeGotenberg(t *testing.T, status int) (*httptest.Server, *string) {
	t.Helper()
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			w.WriteHeader(status)
		case "/forms/chromium/convert/html":
			file, header, err := r.FormFile("files")
			require.NoError(t, err)
			require.Equal(t, "index.html", header.Filename)
			require.Equal(t, "8.27", r.FormValue("paperWidth"))
			data, _ := io.ReadAll(file)
			got = string(data)
			w.WriteHeader(status)
			_, _ = w.Write([]byte("%PDF-1.7 fake"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

type staticSource struct {
	tb reports.GroupedTrialBalance
}

func (s staticSource) GroupedTrialBalance(context.Context, int64, *time.Time, int) (reports.GroupedTrialBalance, error) {
	return s.tb, nil
}

func sampleTB() reports.GroupedTrialBalance {
	amt := decimal.RequireFromString
	return reports.GroupedTrialBalance{
		TenantID: 3,
		AsOf:     time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		Level:    1,
		Groups: []reports.TrialBalanceGroup{
			{Code: "1", Name: "Activo & caja", Debit: amt("150"), Credit: amt("0"), DebitBalance: amt("150"), CreditBalance: amt("0")},
			{Code: "3", Name: "Patrimonio", Debit: amt("0"), Credit: amt("150"), DebitBalance: amt("0"), CreditBalance: amt("150")},
		},
		Totals: accounting.TrialBalanceTotals{
			TotalDebits: amt("150"), TotalCredits: amt("150"),
			TotalDebitBalance: amt("150"), TotalCreditBalance: amt("150"),
		},
	}
}

func TestClientPingAndRender(t *testing.T) {
	srv, got := fakeGotenberg(t, http.StatusOK)
	client := NewClient(srv.URL+"/", time.Second)
	require.NoError(t, client.Ping(context.Background()))

	pdf, err := client.RenderHTML(context.Background(), []byte("<p>hi</p>"))
	require.NoError(t, err)
	require.Equal(t, "%PDF-1.7 fake", string(pdf))
	require.Equal(t, "<p>hi</p>", *got)

	down, _ := fakeGotenberg(t, http.StatusServiceUnavailable)
	require.Error(t, NewClient(down.URL, 0).Ping(context.Background()))
}

func TestTrialBalanceHTMLEscapesNames(t *testing.T) {
	html, err := TrialBalanceHTML(sampleTB())
	require.NoError(t, err)
	out := string(html)
	require.Contains(t, out, "Activo &amp; caja")
	require.Contains(t, out, "150.00")
	require.Contains(t, out, "as of 2024-03-31")
}

func TestTrialBalancePDFHandler(t *testing.T) {
	srv, got := fakeGotenberg(t, http.StatusOK)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := chi.NewRouter()
	NewHandler(logger, staticSource{tb: sampleTB()}, NewClient(srv.URL, time.Second)).MountRoutes(r)

	req := httptest.NewRequest(http.MethodGet, "/reports/trial-balance.pdf?as_of=2024-03-31", nil)
	req.Header.Set(httpx.HeaderTenantID, "3")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Header().Get("Content-Disposition"), "trial-balance-2024-03-31.pdf")
	require.True(t, strings.HasPrefix(rec.Body.String(), "%PDF"))
	require.Contains(t, *got, "Patrimonio")

	broken, _ := fakeGotenberg(t, http.StatusInternalServerError)
	r = chi.NewRouter()
	NewHandler(logger, staticSource{tb: sampleTB()}, NewClient(broken.URL, time.Second)).MountRoutes(r)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadGateway, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reports/trial-balance.pdf", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
