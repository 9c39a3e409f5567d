package accounts

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

// Handler serves the chart of accounts.
type Handler struct {
	service   *accounting.Service
	logger    *slog.Logger
	validator *validator.Validate
}

func NewHandler(logger *slog.Logger, service *accounting.Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers the chart endpoints on r.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/tree", h.Tree)
	r.Post("/seed", h.Seed)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/deactivate", h.Deactivate)
	r.Post("/{id}/reactivate", h.Reactivate)
}

// AccountResponse is the JSON view of an account.
type AccountResponse struct {
	ID         int64    `json:"id"`
	Code       string   `json:"code"`
	Name       string   `json:"name"`
	Type       string   `json:"type"`
	Nature     string   `json:"nature"`
	Level      int      `json:"level"`
	ParentID   *int64   `json:"parent_id,omitempty"`
	ParentCode string   `json:"parent_code,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	IsActive   bool     `json:"is_active"`
}

// TreeNode nests children under their parent account.
type TreeNode struct {
	AccountResponse
	Children []TreeNode `json:"children,omitempty"`
}

// SeedRequest selects a template by builtin name or, when Accounts is set,
// provides the rows inline.
type SeedRequest struct {
	Template string            `json:"template"`
	Accounts []TemplateAccount `json:"accounts" validate:"omitempty,dive"`
}

func newAccountResponse(a accounting.Account) AccountResponse {
	tags := make([]string, 0, len(a.Tags))
	for _, t := range a.Tags {
		tags = append(tags, string(t))
	}
	return AccountResponse{
		ID:         a.ID,
		Code:       a.Code,
		Name:       a.Name,
		Type:       string(a.Type),
		Nature:     string(a.Nature),
		Level:      a.Level,
		ParentID:   a.ParentID,
		ParentCode: a.ParentCode,
		Tags:       tags,
		IsActive:   a.IsActive,
	}
}

func buildNodes(tree *accounting.ChartTree, accounts []accounting.Account) []TreeNode {
	nodes := make([]TreeNode, 0, len(accounts))
	for _, a := range accounts {
		nodes = append(nodes, TreeNode{
			AccountResponse: newAccountResponse(a),
			Children:        buildNodes(tree, tree.Children(a.Code)),
		})
	}
	return nodes
}

func accountID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid account id", httpx.ErrValidation)
	}
	return id, nil
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.TenantID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	activeOnly := r.URL.Query().Get("active") == "true"
	accounts, err := h.service.ListAccounts(r.Context(), tenantID, activeOnly)
	if err != nil {
		httpx.Fail(w, h.logger, "list accounts", err)
		return
	}
	out := make([]AccountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, newAccountResponse(a))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"accounts": out})
}

func (h *Handler) Tree(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.TenantID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	tree, err := h.service.AccountTree(r.Context(), tenantID)
	if err != nil {
		httpx.Fail(w, h.logger, "account tree", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roots": buildNodes(tree, tree.Roots())})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.TenantID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := accountID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	account, err := h.service.GetAccount(r.Context(), tenantID, id)
	if err != nil {
		httpx.Fail(w, h.logger, "get account", err)
		return
	}
	httpx.JSON(w, http.StatusOK, newAccountResponse(account))
}

// Seed installs a chart template for the tenant. Seeding a tenant that
// already has accounts succeeds with already_initialized set.
func (h *Handler) Seed(w http.ResponseWriter, r *http.Request) {
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
	var req SeedRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.RespondError(w, err)
			return
		}
		if err := h.validator.Struct(req); err != nil {
			httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
			return
		}
	}
	var tpl Template
	if len(req.Accounts) > 0 {
		tpl = Template{Name: req.Template, Accounts: req.Accounts}
	} else {
		if tpl, err = Builtin(defaultName(req.Template)); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	result, err := h.service.SeedFromTemplate(r.Context(), tenantID, actorID, tpl.Rows())
	if err != nil {
		httpx.Fail(w, h.logger, "seed chart", err)
		return
	}
	status := http.StatusCreated
	if result.AlreadyInitialized {
		status = http.StatusOK
	}
	h.logger.Info("chart seeded",
		slog.Int64("tenant_id", tenantID),
		slog.String("template", tpl.Name),
		slog.Int("inserted", result.Inserted),
		slog.Bool("already_initialized", result.AlreadyInitialized))
	httpx.JSON(w, status, map[string]any{
		"already_initialized": result.AlreadyInitialized,
		"inserted":            result.Inserted,
	})
}

func defaultName(name string) string {
	if name == "" {
		return BuiltinPUC
	}
	return name
}

func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

func (h *Handler) Reactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
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
	id, err := accountID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var account accounting.Account
	if active {
		account, err = h.service.ReactivateAccount(r.Context(), tenantID, actorID, id)
	} else {
		account, err = h.service.DeactivateAccount(r.Context(), tenantID, actorID, id)
	}
	if err != nil {
		httpx.Fail(w, h.logger, "toggle account", err)
		return
	}
	httpx.JSON(w, http.StatusOK, newAccountResponse(account))
}
