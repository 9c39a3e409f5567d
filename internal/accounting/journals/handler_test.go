package journals

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/memory"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	_ "github.com/odyssey-erp/odyssey-ledger/testing"
)

func newTestRouter(t *testing.T) (http.Handler, *accounting.Service) {
	t.Helper()
	svc := accounting.NewService(memory.New(), decimal.Zero)
	_, err := svc.SeedFromTemplate(context.Background(), 1, 1, []accounting.AccountTemplate{
		{Code: "1", Name: "Asset", Type: accounting.AccountTypeAsset},
		{Code: "11", Name: "Cash", Type: accounting.AccountTypeAsset},
		{Code: "2", Name: "Liability", Type: accounting.AccountTypeLiability},
		{Code: "21", Name: "Payable", Type: accounting.AccountTypeLiability},
	})
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := chi.NewRouter()
	r.Route("/journals", NewHandler(logger, svc).MountRoutes)
	return r, svc
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(httpx.HeaderTenantID, "1")
	req.Header.Set(httpx.HeaderActorID, "9")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func accountID(t *testing.T, svc *accounting.Service, code string) string {
	t.Helper()
	a, err := svc.GetAccountByCode(context.Background(), 1, code)
	require.NoError(t, err)
	return strconv.FormatInt(a.ID, 10)
}

func entryBody(t *testing.T, svc *accounting.Service, date, debit, credit string) string {
	return `{"date":"` + date + `","description":"purchase","lines":[` +
		`{"account_id":` + accountID(t, svc, "11") + `,"debit":"` + debit + `"},` +
		`{"account_id":` + accountID(t, svc, "21") + `,"credit":"` + credit + `"}]}`
}

func TestCreateAndApproveJournal(t *testing.T) {
	h, svc := newTestRouter(t)
	rec := do(t, h, http.MethodPost, "/journals?approve=true", entryBody(t, svc, "2024-03-15", "100000", "100000"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp EntryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "APPROVED", resp.Status)
	require.Equal(t, "2024-03", resp.Period)
	require.Equal(t, "100000.00", resp.TotalDebit)
	require.Len(t, resp.Lines, 2)

	rec = do(t, h, http.MethodGet, "/journals/"+strconv.FormatInt(resp.ID, 10), "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/journals?status=APPROVED", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"number":1`)
}

func TestJournalErrorMapping(t *testing.T) {
	h, svc := newTestRouter(t)

	rec := do(t, h, http.MethodPost, "/journals", entryBody(t, svc, "2024-03-15", "100", "90"))
	require.Equal(t, http.StatusCreated, rec.Code)
	var draft EntryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &draft))
	require.Equal(t, "DRAFT", draft.Status)

	id := strconv.FormatInt(draft.ID, 10)
	rec = do(t, h, http.MethodPost, "/journals/"+id+"/approve", "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	rec = do(t, h, http.MethodPost, "/journals/"+id+"/void", `{"reason":"wrong amount"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	_, err := svc.ClosePeriod(context.Background(), 1, 2024, 3, 9)
	require.NoError(t, err)
	rec = do(t, h, http.MethodPost, "/journals", entryBody(t, svc, "2024-03-20", "5", "5"))
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "2024-03")

	rec = do(t, h, http.MethodGet, "/journals/999", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPost, "/journals", `{"date":"15/03/2024","lines":[]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/journals", `{"date":"2024-04-01","lines":[{"account_id":1,"debit":"-4"}]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/journals", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestReverseJournal(t *testing.T) {
	h, svc := newTestRouter(t)
	rec := do(t, h, http.MethodPost, "/journals?approve=true", entryBody(t, svc, "2024-03-15", "40", "40"))
	require.Equal(t, http.StatusCreated, rec.Code)
	var entry EntryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entry))

	path := "/journals/" + strconv.FormatInt(entry.ID, 10) + "/reverse"
	rec = do(t, h, http.MethodPost, path, `{"reason":"duplicate","reversal_date":"2024-04-01"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var reversal EntryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reversal))
	require.Equal(t, "REVERSAL", reversal.Type)
	require.Equal(t, "2024-04-01", reversal.Date)
	require.NotNil(t, reversal.ReversalOf)

	rec = do(t, h, http.MethodPost, path, "")
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreateAndApproveIsAtomic(t *testing.T) {
	h, svc := newTestRouter(t)
	ctx := context.Background()

	rec := do(t, h, http.MethodPost, "/journals?approve=true", entryBody(t, svc, "2024-03-15", "100", "90"))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	drafts, err := svc.ListEntries(ctx, 1, accounting.EntryFilter{Status: accounting.EntryStatusDraft})
	require.NoError(t, err)
	require.Empty(t, drafts)
	_, err = svc.ClosePeriod(ctx, 1, 2024, 3, 9)
	require.NoError(t, err)

	// the failed attempt did not use up an entry number
	rec = do(t, h, http.MethodPost, "/journals?approve=true", entryBody(t, svc, "2024-04-02", "90", "90"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp EntryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, int64(1), resp.Number)
	require.Equal(t, "APPROVED", resp.Status)
}
