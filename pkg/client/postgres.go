package client

import (
	"context"
	"time"

	"agendly/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresOptions struct {
	DSN         string
	ConnTimeout time.Duration
	MaxConns    int32
}

func (c *Client) SetPostgres(log *logger.Logger, opts PostgresOptions) {
	poolCfg, err := pgxpool.ParseConfig(opts.DSN)
	if err != nil {
		log.Fatal("Failed to parse Postgres DSN", "error", err)
	}

	poolCfg.MaxConns = opts.MaxConns
	poolCfg.MinConns = 1
	poolCfg.HealthCheckPeriod = 30 * time.Second
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 15 * time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		log.Fatal("Failed to create Postgres pool", "error", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		log.Fatal("Failed to ping Postgres", "error", err)
	}

	log.Info("Successfully connected to Postgres", "max_conns", opts.MaxConns)
	c.Postgres = pool
}
