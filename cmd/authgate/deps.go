package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/obsvault/authgate"
	"github.com/obsvault/authgate/api"
	"github.com/obsvault/authgate/session"
	"github.com/obsvault/authgate/store/memory"
	"github.com/obsvault/authgate/store/postgres"
	"github.com/obsvault/authgate/usage"
)

// connectBackoff bounds how long startup waits for Redis and Postgres.
func connectBackoff() retry.Backoff {
	return retry.WithMaxRetries(5, retry.NewExponential(500*time.Millisecond))
}

func connectRedis(ctx context.Context, cfg redisConfig, logger *slog.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	err := retry.Do(ctx, connectBackoff(), func(ctx context.Context) error {
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.WarnContext(ctx, "redis not ready", "addr", cfg.Addr, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		_ = rdb.Close()
		return nil, oops.Code("REDIS_CONNECT_FAILED").With("addr", cfg.Addr).Wrap(err)
	}
	return rdb, nil
}

func connectPostgres(ctx context.Context, dsn string, logger *slog.Logger) (*pgxpool.Pool, error) {
	var pool *pgxpool.Pool
	err := retry.Do(ctx, connectBackoff(), func(ctx context.Context) error {
		p, err := postgres.Open(ctx, dsn)
		if err != nil {
			logger.WarnContext(ctx, "postgres not ready", "error", err)
			return retry.RetryableError(err)
		}
		pool = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pool, nil
}

// redisKeyPrefix namespaces one Redis keyspace under the configured prefix.
// Versions and usage counters share a database and must never share keys.
func redisKeyPrefix(base, keyspace string) string {
	if base == "" {
		return keyspace
	}
	return base + ":" + keyspace
}

// deps holds every long-lived resource serve opens. Close releases them in
// reverse order of acquisition.
type deps struct {
	svc     *authgate.Service
	checks  map[string]api.HealthCheck
	closers []func()
}

func (d *deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

func buildDeps(ctx context.Context, cfg serverConfig, logger *slog.Logger) (*deps, error) {
	d := &deps{checks: map[string]api.HealthCheck{}}

	rdb, err := connectRedis(ctx, cfg.Redis, logger)
	if err != nil {
		return nil, err
	}
	d.closers = append(d.closers, func() { _ = rdb.Close() })
	d.checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }

	b := authgate.New().
		WithConfig(cfg.library()).
		WithLogger(logger).
		WithUsageCounter(usage.NewCounter(rdb, redisKeyPrefix(cfg.Redis.KeyPrefix, "apiu")))

	if cfg.Postgres.DSN != "" {
		pool, err := connectPostgres(ctx, cfg.Postgres.DSN, logger)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.closers = append(d.closers, pool.Close)
		d.checks["postgres"] = pool.Ping
		b.WithUserStore(postgres.NewUsers(pool))
		if cfg.Postgres.VersionStore == "postgres" {
			b.WithVersionStore(postgres.NewVersions(pool))
		}
	} else {
		logger.WarnContext(ctx, "postgres.dsn not set; users are kept in memory and lost on restart")
		b.WithUserStore(memory.NewUsers())
	}
	if cfg.Postgres.VersionStore == "redis" {
		b.WithVersionStore(session.NewRedisStore(rdb, redisKeyPrefix(cfg.Redis.KeyPrefix, "rtv")))
	}

	if cfg.Throttle.Enabled {
		b.WithLoginThrottle(rdb)
	}
	if sink := auditSink(cfg.Audit.Sink, logger, os.Stdout); sink != nil {
		b.WithAuditSink(sink)
	}

	svc, err := b.Build()
	if err != nil {
		d.Close()
		return nil, oops.Code("SERVICE_BUILD_FAILED").Wrap(err)
	}
	d.svc = svc
	d.closers = append(d.closers, svc.Close)
	return d, nil
}

func auditSink(kind string, logger *slog.Logger, stdout io.Writer) authgate.AuditSink {
	switch kind {
	case "log":
		return authgate.NewLogSink(logger)
	case "stdout":
		return authgate.NewJSONWriterSink(stdout)
	default:
		return nil
	}
}
