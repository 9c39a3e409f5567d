package reports

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers the ledger and report endpoints on r.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/ledger", h.Ledger)
	r.Get("/ledger.csv", h.LedgerCSV)
	r.Get("/reports/trial-balance", h.TrialBalance)
	r.Get("/reports/trial-balance.csv", h.TrialBalanceCSV)
	r.Get("/reports/equation", h.Equation)
	r.Get("/reports/balance-sheet", h.BalanceSheet)
	r.Get("/reports/income-statement", h.IncomeStatement)
}

func ledgerFilter(r *http.Request) (accounting.GeneralLedgerFilter, error) {
	var filter accounting.GeneralLedgerFilter
	if raw := r.URL.Query().Get("account_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return filter, fmt.Errorf("%w: invalid account_id", httpx.ErrValidation)
		}
		filter.AccountID = id
	}
	var err error
	if filter.Start, err = httpx.QueryDate(r, "from"); err != nil {
		return filter, err
	}
	if filter.End, err = httpx.QueryDate(r, "to"); err != nil {
		return filter, err
	}
	return filter, nil
}

func (h *Handler) generalLedger(w http.ResponseWriter, r *http.Request) ([]accounting.AccountLedger, bool) {
	tenantID, err := httpx.TenantID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return nil, false
	}
	filter, err := ledgerFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return nil, false
	}
	ledgers, err := h.service.GeneralLedger(r.Context(), tenantID, filter)
	if err != nil {
		httpx.Fail(w, h.logger, "general ledger", err)
		return nil, false
	}
	return ledgers, true
}

func (h *Handler) Ledger(w http.ResponseWriter, r *http.Request) {
	ledgers, ok := h.generalLedger(w, r)
	if !ok {
		return
	}
	if ledgers == nil {
		ledgers = []accounting.AccountLedger{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"accounts": ledgers})
}

func (h *Handler) LedgerCSV(w http.ResponseWriter, r *http.Request) {
	ledgers, ok := h.generalLedger(w, r)
	if !ok {
		return
	}
	writeCSVHeaders(w, "general-ledger.csv")
	if err := WriteGeneralLedgerCSV(w, ledgers); err != nil {
		h.logger.Error("write ledger csv", slog.Any("error", err))
	}
}

func (h *Handler) trialBalance(w http.ResponseWriter, r *http.Request) (accounting.TrialBalance, bool) {
	tenantID, err := httpx.TenantID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return accounting.TrialBalance{}, false
	}
	asOf, err := httpx.QueryDate(r, "as_of")
	if err != nil {
		httpx.RespondError(w, err)
		return accounting.TrialBalance{}, false
	}
	tb, err := h.service.TrialBalance(r.Context(), tenantID, asOf)
	if err != nil {
		httpx.Fail(w, h.logger, "trial balance", err)
		return accounting.TrialBalance{}, false
	}
	return tb, true
}

// TrialBalance returns the flat trial balance, or the grouped one when
// ?level= is given.
func (h *Handler) TrialBalance(w http.ResponseWriter, r *http.Request) {
	level, err := httpx.QueryInt(r, "level", 0)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if level <= 0 {
		tb, ok := h.trialBalance(w, r)
		if ok {
			httpx.JSON(w, http.StatusOK, tb)
		}
		return
	}
	tenantID, err := httpx.TenantID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	asOf, err := httpx.QueryDate(r, "as_of")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	grouped, err := h.service.GroupedTrialBalance(r.Context(), tenantID, asOf, level)
	if err != nil {
		httpx.Fail(w, h.logger, "grouped trial balance", err)
		return
	}
	httpx.JSON(w, http.StatusOK, grouped)
}

func (h *Handler) TrialBalanceCSV(w http.ResponseWriter, r *http.Request) {
	tb, ok := h.trialBalance(w, r)
	if !ok {
		return
	}
	writeCSVHeaders(w, "trial-balance-"+tb.AsOf.Format(time.DateOnly)+".csv")
	if err := WriteTrialBalanceCSV(w, tb); err != nil {
		h.logger.Error("write trial balance csv", slog.Any("error", err))
	}
}

func (h *Handler) Equation(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.TenantID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	asOf, err := httpx.QueryDate(r, "as_of")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	check, err := h.service.Equation(r.Context(), tenantID, asOf)
	if err != nil {
		httpx.Fail(w, h.logger, "equation check", err)
		return
	}
	httpx.JSON(w, http.StatusOK, check)
}

func (h *Handler) BalanceSheet(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.TenantID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	asOf, err := httpx.QueryDate(r, "as_of")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	bs, err := h.service.BalanceSheet(r.Context(), tenantID, asOf)
	if err != nil {
		httpx.Fail(w, h.logger, "balance sheet", err)
		return
	}
	httpx.JSON(w, http.StatusOK, bs)
}

func (h *Handler) IncomeStatement(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.TenantID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	from, err := httpx.QueryDate(r, "from")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	to, err := httpx.QueryDate(r, "to")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	pl, err := h.service.IncomeStatement(r.Context(), tenantID, from, to)
	if err != nil {
		httpx.Fail(w, h.logger, "income statement", err)
		return
	}
	httpx.JSON(w, http.StatusOK, pl)
}

func writeCSVHeaders(w http.ResponseWriter, filename string) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
}
