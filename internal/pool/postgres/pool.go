package postgres

import (
	"context"
	"fmt"
	"net/url"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/koustreak/ConnRi/internal/errs"
	"github.com/koustreak/ConnRi/internal/pool"
)

const defaultPort = 5432

// buildPool creates a pgxpool from the given config.
func buildPool(ctx context.Context, cfg *pool.Config) (*pgxpool.Pool, error) {
	dsn := buildDSN(cfg)

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConfig, "invalid postgres config", err)
	}

	poolCfg.MaxConns = cfg.PoolSize
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnIdleTime = cfg.IdleTimeout

	db, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, mapError(err, "failed to create connection pool")
	}
	return db, nil
}

// buildDSN constructs the postgres connection URL.
// The password is URL-escaped to handle special characters.
func buildDSN(cfg *pool.Config) string {
	port := cfg.Port
	if port == 0 {
		port = defaultPort
	}
	sslMode := "disable"
	if cfg.SSL {
		sslMode = "require"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(cfg.User),
		url.QueryEscape(cfg.Password),
		cfg.Host,
		port,
		cfg.Database,
		sslMode,
	)
}
