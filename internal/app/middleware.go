package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

const (
	defaultRequestTimeout = 30 * time.Second
	defaultPerMinute      = 120
)

// apiMiddleware returns the chain every ledger request passes through, outermost
// first.
func apiMiddleware(rt *Runtime) []func(http.Handler) http.Handler {
	cfg := rt.Config
	if cfg == nil {
		cfg = &Config{}
	}
	timeout := cfg.AppRequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	chain := []func(http.Handler) http.Handler{
		middleware.RealIP,
		middleware.RequestID,
		middleware.Recoverer,
		middleware.Timeout(timeout),
		securityHeaders(rt.Logger, cfg.IsProduction()),
	}
	if len(cfg.CORSAllowedOrigins) > 0 {
		chain = append(chain, allowOrigins(cfg.CORSAllowedOrigins))
	}
	chain = append(chain, middleware.Compress(5), tenantRateLimit(cfg.RateLimitPerMinute))
	if rt.Metrics != nil {
		chain = append(chain, rt.Metrics.Middleware)
	}
	return chain
}

// securityHeaders sets the API's response headers. The API never serves HTML,
// so the content policy forbids everything.
func securityHeaders(logger *slog.Logger, production bool) func(http.Handler) http.Handler {
	headers := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "no-referrer",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		SSLRedirect:           production,
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
		IsDevelopment:         !production,
	})
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := headers.Process(w, r); err != nil {
				logger.Warn("request rejected by security headers",
					slog.String("host", r.Host), slog.Any("error", err))
				httpx.Problem(w, http.StatusBadRequest, "Bad Request", "request rejected")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func allowOrigins(origins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", httpx.HeaderTenantID, httpx.HeaderActorID},
		ExposedHeaders: []string{middleware.RequestIDHeader},
		MaxAge:         300,
	})
}

// tenantRateLimit shares one budget per tenant across its callers; requests
// without a tenant header are limited per client IP.
func tenantRateLimit(perMinute int) func(http.Handler) http.Handler {
	if perMinute <= 0 {
		perMinute = defaultPerMinute
	}
	return httprate.Limit(perMinute, time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if tenant := r.Header.Get(httpx.HeaderTenantID); tenant != "" {
				return "tenant:" + tenant, nil
			}
			return httprate.KeyByIP(r)
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, "Too Many Requests", "rate limit exceeded")
		}),
	)
}
