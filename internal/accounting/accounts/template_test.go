package accounts

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
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

func TestBuiltinPUCFormsATree(t *testing.T) {
	tpl, err := Builtin(BuiltinPUC)
	require.NoError(t, err)
	require.Equal(t, "puc", tpl.Name)

	rows := tpl.Rows()
	accounts, err := accounting.TemplateAccounts(1, rows)
	require.NoError(t, err)
	tree, err := accounting.BuildTree(accounts)
	require.NoError(t, err)
	require.Equal(t, len(rows), tree.Len())

	cash, ok := tree.Get("110505")
	require.True(t, ok)
	require.Equal(t, 4, cash.Level)
	require.True(t, cash.HasTag(accounting.TagCash))
	require.Equal(t, accounting.NatureDebit, cash.Nature)

	for _, root := range tree.Roots() {
		require.Len(t, root.Code, 1)
	}
}

func TestTemplateNamesAreNFC(t *testing.T) {
	// "Única" spelled with a combining acute accent
	decomposed := "U\u0301nica"
	tpl, err := Parse([]byte(`
name = "nfc"
[[accounts]]
code = "1"
name = "` + decomposed + `"
type = "asset"
nature = "debit"
`))
	require.NoError(t, err)
	rows := tpl.Rows()
	require.Len(t, rows, 1)
	require.Equal(t, "\u00danica", rows[0].Name)
	require.Equal(t, accounting.AccountTypeAsset, rows[0].Type)
	require.Equal(t, accounting.NatureDebit, rows[0].Nature)
}

func TestLoadTemplate(t *testing.T) {
	_, err := Builtin("nope")
	require.ErrorIs(t, err, accounting.ErrInvalidTemplate)

	_, err = Parse([]byte(`name = "empty"`))
	require.ErrorIs(t, err, accounting.ErrInvalidTemplate)

	_, err = Parse([]byte(`[[accounts]`))
	require.ErrorIs(t, err, accounting.ErrInvalidTemplate)

	path := filepath.Join(t.TempDir(), "mini.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
name = "mini"
[[accounts]]
code = "1"
name = "Assets"
type = "ASSET"
[[accounts]]
code = "11"
name = "Cash"
type = "ASSET"
tags = ["cash"]
`), 0o600))
	tpl, err := Load(path)
	require.NoError(t, err)
	require.Len(t, tpl.Accounts, 2)
	require.Equal(t, []accounting.Tag{accounting.TagCash}, tpl.Rows()[1].Tags)

	def, err := Load("")
	require.NoError(t, err)
	require.Equal(t, BuiltinPUC, def.Name)
}

func newAccountsRouter(t *testing.T) (http.Handler, *accounting.Service) {
	t.Helper()
	svc := accounting.NewService(memory.New(), decimal.Zero)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := chi.NewRouter()
	r.Route("/accounts", NewHandler(logger, svc).MountRoutes)
	return r, svc
}

func call(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(httpx.HeaderTenantID, "7")
	req.Header.Set(httpx.HeaderActorID, "3")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestSeedAndBrowseChart(t *testing.T) {
	h, svc := newAccountsRouter(t)

	rec := call(h, http.MethodPost, "/accounts/seed", "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Contains(t, rec.Body.String(), `"already_initialized":false`)

	rec = call(h, http.MethodPost, "/accounts/seed", `{"template":"puc"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"inserted":0`)

	rec = call(h, http.MethodGet, "/accounts/tree", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"code":"110505"`)

	cash, err := svc.GetAccountByCode(context.Background(), 7, "110505")
	require.NoError(t, err)
	path := "/accounts/" + strconv.FormatInt(cash.ID, 10)

	rec = call(h, http.MethodPost, path+"/deactivate", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"is_active":false`)

	rec = call(h, http.MethodGet, "/accounts?active=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotContains(t, rec.Body.String(), `"code":"110505"`)

	rec = call(h, http.MethodPost, path+"/reactivate", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"is_active":true`)

	rec = call(h, http.MethodGet, "/accounts/99999", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSeedInlineOrphanRejected(t *testing.T) {
	h, _ := newAccountsRouter(t)
	rec := call(h, http.MethodPost, "/accounts/seed",
		`{"accounts":[{"code":"1","name":"Assets","type":"ASSET"},{"code":"1105","name":"Cash","type":"ASSET"}]}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = call(h, http.MethodPost, "/accounts/seed", `{"template":"missing"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
