package audithttp

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

// Each tenant and actor pair may pull ten exports a minute.
const (
	exportsPerWindow = 10
	exportWindow     = time.Minute
)

// MountRoutes registers GET /audit and the throttled GET /audit.csv.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	r.Get("/audit", h.handleTimeline)
	r.With(exportLimiter()).Get("/audit.csv", h.handleExport)
}

func exportLimiter() func(http.Handler) http.Handler {
	return httprate.Limit(exportsPerWindow, exportWindow,
		httprate.WithKeyFuncs(exportKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, "Too Many Requests",
				"audit export limit reached, retry in a minute")
		}),
	)
}

// exportKey throttles per tenant and actor. Requests without a tenant fall
// back to the client IP; the handler rejects them anyway.
func exportKey(r *http.Request) (string, error) {
	tenantID, err := httpx.TenantID(r)
	if err != nil {
		ip, err := httprate.KeyByIP(r)
		return "ip:" + ip, err
	}
	actorID, _ := httpx.ActorID(r)
	return "export:" + strconv.FormatInt(tenantID, 10) + ":" + strconv.FormatInt(actorID, 10), nil
}
