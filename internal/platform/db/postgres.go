// Package db opens PostgreSQL pools and runs transactions on them.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolOptions tunes the pool beyond what the DSN carries.
type PoolOptions struct {
	MaxConns        int32
	MaxConnLifetime time.Duration
	// ApplicationName shows up in pg_stat_activity; defaults to odyssey-ledger.
	ApplicationName string
}

// New creates a new PostgreSQL connection pool.
func New(ctx context.Context, dsn string, opts PoolOptions) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("platform/db: parse config: %w", err)
	}
	if opts.MaxConns > 0 {
		config.MaxConns = opts.MaxConns
	}
	if opts.MaxConnLifetime > 0 {
		config.MaxConnLifetime = opts.MaxConnLifetime
	}
	if _, set := config.ConnConfig.RuntimeParams["application_name"]; !set {
		name := opts.ApplicationName
		if name == "" {
			name = "odyssey-ledger"
		}
		config.ConnConfig.RuntimeParams["application_name"] = name
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("platform/db: new pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("platform/db: ping: %w", err)
	}

	return pool, nil
}
