package report

import (
	"bytes"
	"context"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

// Renderer turns HTML into PDF bytes.
type Renderer interface {
	RenderHTML(ctx context.Context, html []byte) ([]byte, error)
}

// TrialBalanceSource supplies grouped trial balances.
type TrialBalanceSource interface {
	GroupedTrialBalance(ctx context.Context, tenantID int64, asOf *time.Time, level int) (reports.GroupedTrialBalance, error)
}

var trialBalanceTmpl = template.Must(template.New("tb").Funcs(template.FuncMap{
	"amount": func(d decimal.Decimal) string { return d.StringFixed(2) },
	"date":   func(t time.Time) string { return t.Format(time.DateOnly) },
}).Parse(`<!doctype html>
<html><head><meta charset="utf-8"><title>Trial balance {{date .AsOf}}</title>
<style>
body{font-family:sans-serif;font-size:11px}
table{border-collapse:collapse;width:100%}
th,td{border-bottom:1px solid #ccc;padding:3px 6px}
td.n{text-align:right;font-variant-numeric:tabular-nums}
tfoot td{font-weight:bold;border-top:2px solid #000}
</style></head><body>
<h1>Trial balance</h1>
<p>Tenant {{.TenantID}} &middot; as of {{date .AsOf}} &middot; level {{.Level}}</p>
<table>
<thead><tr><th>Code</th><th>Account</th><th>Debit</th><th>Credit</th><th>Debit balance</th><th>Credit balance</th></tr></thead>
<tbody>
{{- range .Groups}}
<tr><td>{{.Code}}</td><td>{{.Name}}</td><td class="n">{{amount .Debit}}</td><td class="n">{{amount .Credit}}</td><td class="n">{{amount .DebitBalance}}</td><td class="n">{{amount .CreditBalance}}</td></tr>
{{- end}}
</tbody>
<tfoot><tr><td></td><td>Total</td><td class="n">{{amount .Totals.TotalDebits}}</td><td class="n">{{amount .Totals.TotalCredits}}</td><td class="n">{{amount .Totals.TotalDebitBalance}}</td><td class="n">{{amount .Totals.TotalCreditBalance}}</td></tr></tfoot>
</table>
</body></html>
`))

// TrialBalanceHTML renders tb as a printable HTML page.
func TrialBalanceHTML(tb reports.GroupedTrialBalance) ([]byte, error) {
	var buf bytes.Buffer
	if err := trialBalanceTmpl.Execute(&buf, tb); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Handler serves PDF renditions of ledger reports.
type Handler struct {
	source   TrialBalanceSource
	renderer Renderer
	logger   *slog.Logger
}

// NewHandler creates a report handler.
func NewHandler(logger *slog.Logger, source TrialBalanceSource, renderer Renderer) *Handler {
	return &Handler{source: source, renderer: renderer, logger: logger}
}

// MountRoutes registers the PDF routes on r.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/reports/trial-balance.pdf", h.TrialBalancePDF)
}

// TrialBalancePDF accepts the same as_of and level parameters as the JSON
// trial balance; level defaults to 1.
func (h *Handler) TrialBalancePDF(w http.ResponseWriter, r *http.Request) {
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
	level, err := httpx.QueryInt(r, "level", 1)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	tb, err := h.source.GroupedTrialBalance(r.Context(), tenantID, asOf, level)
	if err != nil {
		httpx.Fail(w, h.logger, "trial balance pdf", err)
		return
	}
	html, err := TrialBalanceHTML(tb)
	if err != nil {
		httpx.Fail(w, h.logger, "trial balance template", err)
		return
	}
	pdf, err := h.renderer.RenderHTML(r.Context(), html)
	if err != nil {
		h.logger.Error("render trial balance pdf", slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, http.StatusText(http.StatusBadGateway), "PDF rendering unavailable")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `inline; filename="trial-balance-`+tb.AsOf.Format(time.DateOnly)+`.pdf"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}
