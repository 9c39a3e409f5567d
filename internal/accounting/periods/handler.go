// Package periods exposes the monthly period locks over HTTP.
package periods

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

type Handler struct {
	service *accounting.Service
	logger  *slog.Logger
}

func NewHandler(logger *slog.Logger, service *accounting.Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers the period endpoints; {period} is YYYY-MM.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{period}", h.Status)
	r.Post("/{period}/close", h.Close)
	r.Post("/{period}/reopen", h.Reopen)
}

// PeriodResponse is the JSON view of a period lock.
type PeriodResponse struct {
	Period     string     `json:"period"`
	Year       int        `json:"year"`
	Month      int        `json:"month"`
	IsClosed   bool       `json:"is_closed"`
	ClosedAt   *time.Time `json:"closed_at,omitempty"`
	ClosedBy   *int64     `json:"closed_by,omitempty"`
	ReopenedAt *time.Time `json:"reopened_at,omitempty"`
	ReopenedBy *int64     `json:"reopened_by,omitempty"`
	DraftCount *int       `json:"draft_count,omitempty"`
}

func newPeriodResponse(p accounting.Period) PeriodResponse {
	return PeriodResponse{
		Period:     p.Code(),
		Year:       p.Year,
		Month:      p.Month,
		IsClosed:   p.IsClosed,
		ClosedAt:   p.ClosedAt,
		ClosedBy:   p.ClosedBy,
		ReopenedAt: p.ReopenedAt,
		ReopenedBy: p.ReopenedBy,
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.TenantID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	periods, err := h.service.ListPeriods(r.Context(), tenantID)
	if err != nil {
		httpx.Fail(w, h.logger, "list periods", err)
		return
	}
	out := make([]PeriodResponse, 0, len(periods))
	for _, p := range periods {
		out = append(out, newPeriodResponse(p))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"periods": out})
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.TenantID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	year, month, err := accounting.ParsePeriodCode(chi.URLParam(r, "period"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	view, err := h.service.PeriodStatus(r.Context(), tenantID, year, month)
	if err != nil {
		httpx.Fail(w, h.logger, "period status", err)
		return
	}
	drafts := view.DraftCount
	httpx.JSON(w, http.StatusOK, PeriodResponse{
		Period:     view.Period,
		Year:       view.Year,
		Month:      view.Month,
		IsClosed:   view.IsClosed,
		ClosedAt:   view.ClosedAt,
		ClosedBy:   view.ClosedBy,
		DraftCount: &drafts,
	})
}

func (h *Handler) Close(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, true)
}

func (h *Handler) Reopen(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, false)
}

func (h *Handler) toggle(w http.ResponseWriter, r *http.Request, closing bool) {
	tenantID, err := httpx.TenantID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actorID, err := httpx.ActorID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	year, month, err := accounting.ParsePeriodCode(chi.URLParam(r, "period"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var period accounting.Period
	if closing {
		period, err = h.service.ClosePeriod(r.Context(), tenantID, year, month, actorID)
	} else {
		period, err = h.service.ReopenPeriod(r.Context(), tenantID, year, month, actorID)
	}
	if err != nil {
		httpx.Fail(w, h.logger, "toggle period", err)
		return
	}
	h.logger.Info("period lock changed",
		slog.Int64("tenant_id", tenantID),
		slog.String("period", period.Code()),
		slog.Bool("closed", period.IsClosed),
		slog.Int64("actor_id", actorID))
	httpx.JSON(w, http.StatusOK, newPeriodResponse(period))
}
