package app

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/audit"
	"github.com/odyssey-erp/odyssey-ledger/internal/observability"
	"github.com/odyssey-erp/odyssey-ledger/report"
)

// testModeEnv is set by the testing package in every test binary.
const testModeEnv = "ODYSSEY_TEST_MODE"

var testMode = sync.OnceValue(func() bool { return os.Getenv(testModeEnv) == "1" })

// InTestMode reports whether the mains should return before opening stores or
// listening on ports.
func InTestMode() bool { return testMode() }

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// Runtime holds the wired services shared by the HTTP server, the worker and
// the CLI. Optional collaborators (Redis, Inspector, PDF) are nil when not
// configured.
type Runtime struct {
	Config    *Config
	Logger    *slog.Logger
	Ledger    *accounting.Service
	Reports   *reports.Service
	Audit     *audit.Service
	Metrics   *observability.Metrics
	Redis     *redis.Client
	Inspector *asynq.Inspector
	PDF       *report.Client
	Checks    map[string]HealthCheck

	closers []func() error
}

func (rt *Runtime) onClose(fn func() error) {
	rt.closers = append(rt.closers, fn)
}

// Close releases resources in reverse order of acquisition. It is safe to call
// more than once.
func (rt *Runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}
