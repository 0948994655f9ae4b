// Package config loads and validates the YAML configuration for a batch
// run: database connectivity, the Classification Oracle endpoint, the
// category taxonomy, and the pipeline's concurrency/chunking knobs.
// The store, oracle and monitoring sections decode through a
// string-typed temp struct first so "os.environ/VAR" indirection
// resolves secrets before parsing; the other sections decode directly.
// ApplyDefaults/Validate run once after the whole tree is decoded.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/seongyeon1/chat-keyword-batch/internal/query"
)

// Config is the root of the batch job's configuration tree.
type Config struct {
	Store      StoreConfig      `yaml:"store"`
	Tables     query.Tables     `yaml:"tables"`
	Oracle     OracleConfig     `yaml:"oracle"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Catalog    CatalogConfig    `yaml:"catalog"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	LoggingLevel string         `yaml:"logging_level"`
}

// StoreConfig configures the Postgres connection pool.
type StoreConfig struct {
	DatabaseURL     string        `yaml:"database_url"` // os.environ/DATABASE_URL
	PoolSize        int32         `yaml:"pool_size"`
	Overflow        int32         `yaml:"overflow"`
	ConnMaxAge      time.Duration `yaml:"conn_max_age"`
	ConnTimeout     time.Duration `yaml:"conn_timeout"`
	InsertBatchSize int           `yaml:"insert_batch_size"`
}

// UnmarshalYAML resolves "os.environ/VAR" indirection on string/duration
// fields before decoding into StoreConfig.
func (s *StoreConfig) UnmarshalYAML(value *yaml.Node) error {
	type tempConfig struct {
		DatabaseURL     string `yaml:"database_url"`
		PoolSize        string `yaml:"pool_size"`
		Overflow        string `yaml:"overflow"`
		ConnMaxAge      string `yaml:"conn_max_age"`
		ConnTimeout     string `yaml:"conn_timeout"`
		InsertBatchSize string `yaml:"insert_batch_size"`
	}

	var temp tempConfig
	if err := value.Decode(&temp); err != nil {
		return err
	}

	s.DatabaseURL = resolveEnvString(temp.DatabaseURL)

	var err error
	if s.PoolSize, err = parseInt32Field(temp.PoolSize, 10, "store.pool_size"); err != nil {
		return err
	}
	if s.Overflow, err = parseInt32Field(temp.Overflow, 20, "store.overflow"); err != nil {
		return err
	}
	if s.ConnMaxAge, err = parseField(temp.ConnMaxAge, time.Hour, time.ParseDuration, "store.conn_max_age"); err != nil {
		return err
	}
	if s.ConnTimeout, err = parseField(temp.ConnTimeout, 5*time.Second, time.ParseDuration, "store.conn_timeout"); err != nil {
		return err
	}
	if s.InsertBatchSize, err = parseField(temp.InsertBatchSize, 100, parseIntBase10, "store.insert_batch_size"); err != nil {
		return err
	}

	return nil
}

// OracleConfig configures the Classification Oracle Client.
type OracleConfig struct {
	Endpoint          string        `yaml:"endpoint"` // os.environ/ORACLE_ENDPOINT
	APIKey            string        `yaml:"api_key"`  // os.environ/ORACLE_API_KEY
	ModelID           string        `yaml:"model_id,omitempty"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	MinInterval       time.Duration `yaml:"min_interval"`
	MaxAttempts       int           `yaml:"max_attempts"`
	BaseBackoff       time.Duration `yaml:"base_backoff"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	CacheSize         int           `yaml:"cache_size"`
}

// UnmarshalYAML resolves "os.environ/VAR" indirection before decoding.
func (o *OracleConfig) UnmarshalYAML(value *yaml.Node) error {
	type tempConfig struct {
		Endpoint          string `yaml:"endpoint"`
		APIKey            string `yaml:"api_key"`
		ModelID           string `yaml:"model_id,omitempty"`
		RequestsPerMinute string `yaml:"requests_per_minute"`
		MinInterval       string `yaml:"min_interval"`
		MaxAttempts       string `yaml:"max_attempts"`
		BaseBackoff       string `yaml:"base_backoff"`
		RequestTimeout    string `yaml:"request_timeout"`
		CacheSize         string `yaml:"cache_size"`
	}

	var temp tempConfig
	if err := value.Decode(&temp); err != nil {
		return err
	}

	o.Endpoint = resolveEnvString(temp.Endpoint)
	o.APIKey = resolveEnvString(temp.APIKey)
	o.ModelID = resolveEnvString(temp.ModelID)

	var err error
	if o.RequestsPerMinute, err = parseField(temp.RequestsPerMinute, 30, parseIntBase10, "oracle.requests_per_minute"); err != nil {
		return err
	}
	if o.MinInterval, err = parseField(temp.MinInterval, time.Second, time.ParseDuration, "oracle.min_interval"); err != nil {
		return err
	}
	if o.MaxAttempts, err = parseField(temp.MaxAttempts, 3, parseIntBase10, "oracle.max_attempts"); err != nil {
		return err
	}
	if o.BaseBackoff, err = parseField(temp.BaseBackoff, 2*time.Second, time.ParseDuration, "oracle.base_backoff"); err != nil {
		return err
	}
	if o.RequestTimeout, err = parseField(temp.RequestTimeout, 30*time.Second, time.ParseDuration, "oracle.request_timeout"); err != nil {
		return err
	}
	if o.CacheSize, err = parseField(temp.CacheSize, 2048, parseIntBase10, "oracle.cache_size"); err != nil {
		return err
	}

	return nil
}

// PipelineConfig bounds the Date/Range pipelines' concurrency.
type PipelineConfig struct {
	ChunkSize          int `yaml:"chunk_size"`
	ChunkWorkers       int `yaml:"chunk_workers"`
	MaxConcurrentDates int `yaml:"max_concurrent_dates"`
}

// ApplyDefaults fills unset PipelineConfig fields with documented defaults.
func (p *PipelineConfig) ApplyDefaults() {
	if p.ChunkSize <= 0 {
		p.ChunkSize = 100
	}
	if p.ChunkWorkers <= 0 {
		p.ChunkWorkers = 4
	}
	if p.MaxConcurrentDates <= 0 {
		p.MaxConcurrentDates = 3
	}
}

// CategoryConfig is one entry of the configured taxonomy.
type CategoryConfig struct {
	ID   int    `yaml:"id"`
	Name string `yaml:"name"`
}

// CatalogConfig is the static category taxonomy and its fallback id.
type CatalogConfig struct {
	Categories []CategoryConfig `yaml:"categories"`
	FallbackID int              `yaml:"fallback_id"`
}

// MonitoringConfig configures Prometheus exposition for the run.
type MonitoringConfig struct {
	PrometheusEnabled bool   `yaml:"prometheus_enabled"`
	PushgatewayURL    string `yaml:"pushgateway_url,omitempty"` // os.environ/PUSHGATEWAY_URL
	JobName           string `yaml:"job_name,omitempty"`
}

// UnmarshalYAML resolves "os.environ/VAR" indirection before decoding.
func (m *MonitoringConfig) UnmarshalYAML(value *yaml.Node) error {
	type tempConfig struct {
		PrometheusEnabled string `yaml:"prometheus_enabled"`
		PushgatewayURL    string `yaml:"pushgateway_url,omitempty"`
		JobName           string `yaml:"job_name,omitempty"`
	}

	var temp tempConfig
	if err := value.Decode(&temp); err != nil {
		return err
	}

	var err error
	if m.PrometheusEnabled, err = parseField(temp.PrometheusEnabled, false, parseBoolField, "monitoring.prometheus_enabled"); err != nil {
		return err
	}
	m.PushgatewayURL = resolveEnvString(temp.PushgatewayURL)
	m.JobName = resolveEnvString(temp.JobName)
	if m.JobName == "" {
		m.JobName = "chat_keyword_batch"
	}

	return nil
}

// Load reads, decodes, and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse file: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return &cfg, nil
}

// ApplyDefaults fills zero-valued fields across the whole tree.
func (c *Config) ApplyDefaults() {
	c.Pipeline.ApplyDefaults()
	if c.LoggingLevel == "" {
		c.LoggingLevel = "info"
	}
	if c.Monitoring.JobName == "" {
		c.Monitoring.JobName = "chat_keyword_batch"
	}
}

// Validate checks the whole configuration tree for consistency.
func (c *Config) Validate() error {
	if c.Store.DatabaseURL == "" {
		return fmt.Errorf("store.database_url is required")
	}
	if c.Store.PoolSize <= 0 {
		return fmt.Errorf("invalid store.pool_size: %d", c.Store.PoolSize)
	}
	if c.Store.InsertBatchSize <= 0 {
		return fmt.Errorf("invalid store.insert_batch_size: %d", c.Store.InsertBatchSize)
	}
	if _, err := query.NewBuilder(c.Tables); err != nil {
		return fmt.Errorf("tables: %w", err)
	}

	if c.Oracle.Endpoint == "" {
		return fmt.Errorf("oracle.endpoint is required")
	}
	if c.Oracle.MaxAttempts <= 0 {
		return fmt.Errorf("invalid oracle.max_attempts: %d", c.Oracle.MaxAttempts)
	}

	validLevels := map[string]bool{"info": true, "debug": true, "warn": true, "error": true}
	if !validLevels[c.LoggingLevel] {
		return fmt.Errorf("invalid logging_level: %s", c.LoggingLevel)
	}

	if len(c.Catalog.Categories) == 0 {
		return fmt.Errorf("catalog.categories must not be empty")
	}
	seen := make(map[int]bool, len(c.Catalog.Categories))
	foundFallback := false
	for _, cat := range c.Catalog.Categories {
		if seen[cat.ID] {
			return fmt.Errorf("catalog: duplicate category id %d", cat.ID)
		}
		seen[cat.ID] = true
		if cat.ID == c.Catalog.FallbackID {
			foundFallback = true
		}
	}
	if !foundFallback {
		return fmt.Errorf("catalog.fallback_id %d is not a configured category", c.Catalog.FallbackID)
	}

	return nil
}
