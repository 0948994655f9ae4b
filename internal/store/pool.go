package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool is the subset of *pgxpool.Pool the gateway depends on. Declaring
// it as an interface keeps the gateway testable against an in-memory
// fake instead of a live Postgres instance.
type Pool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
	Close()
}

// ConnectionPool wraps a pgxpool.Pool with connection-age/overflow
// discipline and an on-demand health check (HealthCheck).
type ConnectionPool struct {
	pool   *pgxpool.Pool
	cfg    *Config
	logger *slog.Logger

	healthy atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	closed  atomic.Bool
}

// NewConnectionPool connects to Postgres and pings it once. It starts no
// background health check; see HealthCheck. Callers must call Close when
// the run is done.
func NewConnectionPool(ctx context.Context, cfg *Config) (*ConnectionPool, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("store: invalid database url: %w", err)
	}
	poolConfig.MaxConns = cfg.MaxConns()
	poolConfig.MaxConnLifetime = cfg.ConnMaxAge
	poolConfig.ConnConfig.ConnectTimeout = cfg.ConnTimeout

	runCtx, cancel := context.WithCancel(ctx)

	connectCtx, connectCancel := context.WithTimeout(runCtx, cfg.ConnTimeout)
	defer connectCancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("store: failed to connect: %w", err)
	}

	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		cancel()
		return nil, fmt.Errorf("store: ping failed: %w", err)
	}

	cp := &ConnectionPool{
		pool:   pool,
		cfg:    cfg,
		logger: cfg.Logger,
		ctx:    runCtx,
		cancel: cancel,
	}
	cp.healthy.Store(true)

	cp.logger.Info("store connection pool initialized",
		"pool_size", cfg.PoolSize,
		"overflow", cfg.Overflow,
		"max_conns", cfg.MaxConns(),
	)

	return cp, nil
}

// Pool returns the underlying *pgxpool.Pool as a Pool interface.
func (cp *ConnectionPool) Pool() Pool {
	return cp.pool
}

// IsHealthy reports the last observed connectivity state.
func (cp *ConnectionPool) IsHealthy() bool {
	return cp.healthy.Load()
}

// HealthCheck runs a single connectivity probe and updates IsHealthy.
// Callers (e.g. a periodic caller in the orchestrator) decide the cadence;
// the gateway itself never blocks on this in the hot path.
func (cp *ConnectionPool) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := cp.pool.Ping(ctx)
	cp.healthy.Store(err == nil)
	if err != nil {
		cp.logger.Warn("store health check failed", "error", err)
	}
	return err
}

// Close shuts the pool down. Idempotent.
func (cp *ConnectionPool) Close() {
	if !cp.closed.CompareAndSwap(false, true) {
		return
	}
	cp.cancel()
	if cp.pool != nil {
		cp.pool.Close()
	}
	cp.logger.Info("store connection pool closed")
}
