package store

import (
	"fmt"
	"log/slog"
	"time"
)

// Config configures the Store Gateway's connection pool and batching
// behavior: zero-value fields take ApplyDefaults.
type Config struct {
	DatabaseURL string

	PoolSize     int32         // P, default 10
	Overflow     int32         // O, default 20 (added to PoolSize for MaxConns)
	ConnMaxAge   time.Duration // default 3600s
	ConnTimeout  time.Duration // default 5s

	InsertBatchSize int // B, default 100

	Logger *slog.Logger
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() *Config {
	return &Config{
		PoolSize:        10,
		Overflow:        20,
		ConnMaxAge:      3600 * time.Second,
		ConnTimeout:     5 * time.Second,
		InsertBatchSize: 100,
	}
}

// ApplyDefaults fills zero fields with DefaultConfig values.
func (c *Config) ApplyDefaults() {
	d := DefaultConfig()
	if c.PoolSize == 0 {
		c.PoolSize = d.PoolSize
	}
	if c.Overflow == 0 {
		c.Overflow = d.Overflow
	}
	if c.ConnMaxAge == 0 {
		c.ConnMaxAge = d.ConnMaxAge
	}
	if c.ConnTimeout == 0 {
		c.ConnTimeout = d.ConnTimeout
	}
	if c.InsertBatchSize == 0 {
		c.InsertBatchSize = d.InsertBatchSize
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Validate reports a fatal configuration error.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("store: database_url is required")
	}
	if c.PoolSize <= 0 {
		return fmt.Errorf("store: pool_size must be positive")
	}
	if c.InsertBatchSize <= 0 {
		return fmt.Errorf("store: insert_batch_size must be positive")
	}
	return nil
}

// MaxConns returns the pool's maximum connection count (pool size plus
// overflow), the value handed to pgxpool.Config.MaxConns.
func (c *Config) MaxConns() int32 {
	return c.PoolSize + c.Overflow
}
