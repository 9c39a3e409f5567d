package journals

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

type Handler struct {
	service   *accounting.Service
	logger    *slog.Logger
	validator *validator.Validate
}

func NewHandler(logger *slog.Logger, service *accounting.Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

func (h *Handler) entryID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid entry id", httpx.ErrValidation)
	}
	return id, nil
}

func (h *Handler) decode(r *http.Request, target any) error {
	if err := httpx.DecodeJSON(r, target); err != nil {
		return err
	}
	if err := h.validator.Struct(target); err != nil {
		return fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}
	return nil
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.TenantID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	filter := accounting.EntryFilter{
		Status: accounting.EntryStatus(r.URL.Query().Get("status")),
		Period: r.URL.Query().Get("period"),
	}
	if filter.From, err = httpx.QueryDate(r, "from"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if filter.To, err = httpx.QueryDate(r, "to"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if filter.Limit, err = httpx.QueryInt(r, "limit", 100); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if filter.Offset, err = httpx.QueryInt(r, "offset", 0); err != nil {
		httpx.RespondError(w, err)
		return
	}
	entries, err := h.service.ListEntries(r.Context(), tenantID, filter)
	if err != nil {
		httpx.Fail(w, h.logger, "list journals", err)
		return
	}
	out := make([]EntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, NewEntryResponse(e))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": out})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.TenantID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := h.entryID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	entry, err := h.service.GetEntry(r.Context(), tenantID, id)
	if err != nil {
		httpx.Fail(w, h.logger, "get journal", err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewEntryResponse(entry))
}

// Create stores a draft. With ?approve=true the entry is created and approved
// atomically; a failed approval stores nothing.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
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
	var req EntryRequest
	if err := h.decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	draft, err := req.Draft()
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	store, msg := h.service.CreateEntry, "create journal"
	if r.URL.Query().Get("approve") == "true" {
		store, msg = h.service.PostEntry, "post journal"
	}
	entry, err := store(r.Context(), tenantID, actorID, draft)
	if err != nil {
		httpx.Fail(w, h.logger, msg, err)
		return
	}
	h.logger.Info("journal created",
		slog.Int64("tenant_id", tenantID),
		slog.Int64("number", entry.Number),
		slog.String("status", string(entry.Status)))
	httpx.JSON(w, http.StatusCreated, NewEntryResponse(entry))
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
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
	id, err := h.entryID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req EntryRequest
	if err := h.decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	draft, err := req.Draft()
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	entry, err := h.service.UpdateEntry(r.Context(), tenantID, actorID, id, draft)
	if err != nil {
		httpx.Fail(w, h.logger, "update journal", err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewEntryResponse(entry))
}

func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
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
	id, err := h.entryID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	entry, err := h.service.ApproveEntry(r.Context(), tenantID, actorID, id)
	if err != nil {
		httpx.Fail(w, h.logger, "approve journal", err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewEntryResponse(entry))
}

func (h *Handler) Void(w http.ResponseWriter, r *http.Request) {
	h.voidOrReverse(w, r, h.service.VoidEntry, "void journal")
}

func (h *Handler) Reverse(w http.ResponseWriter, r *http.Request) {
	h.voidOrReverse(w, r, h.service.ReverseEntry, "reverse journal")
}

type voidFunc func(ctx context.Context, tenantID, actorID, entryID int64, opts accounting.VoidOptions) (accounting.JournalEntry, error)

func (h *Handler) voidOrReverse(w http.ResponseWriter, r *http.Request, fn voidFunc, msg string) {
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
	id, err := h.entryID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req VoidRequest
	if r.ContentLength != 0 {
		if err := h.decode(r, &req); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	entry, err := fn(r.Context(), tenantID, actorID, id, req.Options())
	if err != nil {
		httpx.Fail(w, h.logger, msg, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewEntryResponse(entry))
}
