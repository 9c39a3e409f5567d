package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/memory"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/sqlite"
	"github.com/odyssey-erp/odyssey-ledger/internal/audit"
	"github.com/odyssey-erp/odyssey-ledger/internal/observability"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	"github.com/odyssey-erp/odyssey-ledger/report"
)

// Bootstrap opens the configured store and wires the ledger services.
func Bootstrap(ctx context.Context, cfg *Config, logger *slog.Logger) (*Runtime, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	rt := &Runtime{Config: cfg, Logger: logger, Checks: make(map[string]HealthCheck)}

	store, err := rt.openStore(ctx)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}

	rt.Ledger = accounting.NewService(store, cfg.Epsilon())
	rt.Metrics = observability.NewMetrics()
	rt.Ledger.AddObserver(rt.Metrics)
	rt.Ledger.AddObserver(accounting.ChangeObserverFunc(func(_ context.Context, tenantID int64, action accounting.AuditAction) {
		logger.Debug("ledger changed", slog.Int64("tenant_id", tenantID), slog.String("action", string(action)))
	}))

	reportMetrics, err := reports.NewMetrics(rt.Metrics.Registerer())
	if err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("app: report metrics: %w", err)
	}
	rt.Reports = reports.NewService(rt.Ledger, rt.reportCache(ctx), reportMetrics, logger)
	rt.Audit = audit.NewService(rt.Ledger)

	if cfg.GotenbergURL != "" {
		rt.PDF = report.NewClient(cfg.GotenbergURL, cfg.AppRequestTimeout)
		rt.Checks["gotenberg"] = rt.PDF.Ping
	}
	if cfg.StoreDriver != StoreMemory {
		rt.Inspector = asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		rt.onClose(rt.Inspector.Close)
	}
	return rt, nil
}

func (rt *Runtime) openStore(ctx context.Context) (accounting.RepositoryPort, error) {
	cfg := rt.Config
	switch cfg.StoreDriver {
	case StorePostgres:
		pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns, MaxConnLifetime: cfg.PGMaxConnLifetime})
		if err != nil {
			return nil, err
		}
		rt.onClose(func() error { pool.Close(); return nil })
		rt.Checks["postgres"] = pool.Ping
		repo := accounting.NewRepository(pool)
		if err := repo.Migrate(ctx); err != nil {
			return nil, err
		}
		return repo, nil
	case StoreSQLite:
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		rt.onClose(store.Close)
		rt.Checks["sqlite"] = store.Ping
		return store, nil
	case StoreMemory:
		rt.Logger.Warn("using the in-memory store; data is lost on exit")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("app: unknown store driver %q", cfg.StoreDriver)
	}
}

// reportCache picks the configured cache, degrading to the in-process cache
// when Redis is unreachable at startup.
func (rt *Runtime) reportCache(ctx context.Context) reports.Cache {
	cfg := rt.Config
	switch cfg.ReportCache {
	case ReportCacheOff:
		return reports.NoCache{}
	case ReportCacheRedis:
		client, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr})
		if err != nil {
			rt.Logger.Warn("redis unavailable, using local report cache", slog.Any("error", err))
			return reports.NewLocalCache(cfg.ReportCacheTTL)
		}
		rt.Redis = client
		rt.onClose(client.Close)
		rt.Checks["redis"] = func(ctx context.Context) error { return cache.Ping(ctx, client) }
		return reports.NewRedisCache(client, cfg.ReportCacheTTL)
	default:
		return reports.NewLocalCache(cfg.ReportCacheTTL)
	}
}
