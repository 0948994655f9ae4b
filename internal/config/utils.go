package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// resolveEnvString resolves "os.environ/VAR_NAME" indirection, the
// convention used throughout this config for anything that might be a
// secret (database URLs, API keys).
func resolveEnvString(value string) string {
	const prefix = "os.environ/"
	if strings.HasPrefix(value, prefix) {
		envVar := strings.TrimPrefix(value, prefix)
		if envValue := os.Getenv(envVar); envValue != "" {
			return envValue
		}
		slog.Warn("environment variable not set, returning empty string",
			"env_var", envVar,
			"pattern", value,
		)
		return ""
	}
	return value
}

type parseFunc[T any] func(string) (T, error)

// parseField resolves env indirection on tempValue and parses it with
// parser, returning defaultValue when tempValue is empty.
func parseField[T any](tempValue string, defaultValue T, parser parseFunc[T], fieldPath string) (T, error) {
	if tempValue == "" {
		return defaultValue, nil
	}
	resolved := resolveEnvString(tempValue)
	parsed, err := parser(resolved)
	if err != nil {
		return defaultValue, fmt.Errorf("invalid %s: %w", fieldPath, err)
	}
	return parsed, nil
}

// parseInt32Field is parseField specialized to int32, for pgxpool's
// MaxConns-shaped settings.
func parseInt32Field(tempValue string, defaultValue int32, fieldPath string) (int32, error) {
	return parseField(tempValue, defaultValue, func(s string) (int32, error) {
		v, err := strconv.ParseInt(s, 10, 32)
		return int32(v), err
	}, fieldPath)
}

func parseIntBase10(s string) (int, error) {
	return strconv.Atoi(s)
}

func parseBoolField(s string) (bool, error) {
	return strconv.ParseBool(s)
}

// PrintConfig logs the loaded configuration in a structured, readable
// form, redacting secrets.
func PrintConfig(logger *slog.Logger, cfg *Config) {
	logger.Info("=== Configuration Loaded ===")

	logger.Info("store",
		"pool_size", cfg.Store.PoolSize,
		"overflow", cfg.Store.Overflow,
		"conn_max_age", cfg.Store.ConnMaxAge.String(),
		"conn_timeout", cfg.Store.ConnTimeout.String(),
		"insert_batch_size", cfg.Store.InsertBatchSize,
		"chattings_table", cfg.Tables.Chattings,
		"keywords_table", cfg.Tables.Keywords,
	)

	logger.Info("oracle",
		"endpoint", cfg.Oracle.Endpoint,
		"api_key", redact(cfg.Oracle.APIKey),
		"model_id", cfg.Oracle.ModelID,
		"requests_per_minute", cfg.Oracle.RequestsPerMinute,
		"min_interval", cfg.Oracle.MinInterval.String(),
		"max_attempts", cfg.Oracle.MaxAttempts,
		"base_backoff", cfg.Oracle.BaseBackoff.String(),
		"cache_size", cfg.Oracle.CacheSize,
	)

	logger.Info("pipeline",
		"chunk_size", cfg.Pipeline.ChunkSize,
		"chunk_workers", cfg.Pipeline.ChunkWorkers,
		"max_concurrent_dates", cfg.Pipeline.MaxConcurrentDates,
	)

	logger.Info("catalog",
		"category_count", len(cfg.Catalog.Categories),
		"fallback_id", cfg.Catalog.FallbackID,
	)

	logger.Info("monitoring",
		"prometheus_enabled", cfg.Monitoring.PrometheusEnabled,
		"job_name", cfg.Monitoring.JobName,
	)

	logger.Info("=== Configuration Ready ===")
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "***REDACTED***"
}
