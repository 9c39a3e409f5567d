package app

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	audithttp "github.com/odyssey-erp/odyssey-ledger/internal/audit/http"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/jobs"
	"github.com/odyssey-erp/odyssey-ledger/report"
)

// NewRouter constructs the chi.Router serving the ledger API.
func NewRouter(rt *Runtime) http.Handler {
	r := chi.NewRouter()

	r.Use(apiMiddleware(rt)...)
	if rt.Config == nil || !rt.Config.IsProduction() {
		r.Use(chimw.Logger)
	}

	r.Get("/healthz", healthHandler(rt.Logger, rt.Checks))
	r.Method(http.MethodGet, "/metrics", rt.Metrics.Handler())
	r.Route("/jobs", jobs.NewHandler(rt.Inspector, rt.Logger).MountRoutes)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/accounts", accounts.NewHandler(rt.Logger, rt.Ledger).MountRoutes)
		r.Route("/journals", journals.NewHandler(rt.Logger, rt.Ledger).MountRoutes)
		r.Route("/periods", periods.NewHandler(rt.Logger, rt.Ledger).MountRoutes)
		reports.NewHandler(rt.Logger, rt.Reports).MountRoutes(r)
		audithttp.NewHandler(rt.Logger, rt.Audit).MountRoutes(r)
		if rt.PDF != nil {
			report.NewHandler(rt.Logger, rt.Reports, rt.PDF).MountRoutes(r)
		}
	})

	return r
}

type healthStatus struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(logger *slog.Logger, checks map[string]HealthCheck) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		out := healthStatus{Status: "ok", Checks: make(map[string]string, len(names))}
		code := http.StatusOK
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				logger.Warn("health check failed", slog.String("check", name), slog.Any("error", err))
				out.Checks[name] = "down"
				out.Status = "degraded"
				code = http.StatusServiceUnavailable
				continue
			}
			out.Checks[name] = "ok"
		}
		httpx.JSON(w, code, out)
	}
}
