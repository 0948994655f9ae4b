// Package oracle wraps the single-utterance HTTPS call to the external
// classification LLM: process-wide rate limiting, bounded retry with
// exponential backoff and full jitter, response post-processing, and an
// always-succeeds fallback path so callers never see an error from
// Classify.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/seongyeon1/chat-keyword-batch/internal/catalog"
	"github.com/seongyeon1/chat-keyword-batch/internal/domain"
	"github.com/seongyeon1/chat-keyword-batch/internal/logger"
	"github.com/seongyeon1/chat-keyword-batch/internal/ratelimit"
)

const maxResponseBytes = 64 * 1024

// Config configures the Classification Oracle Client.
type Config struct {
	Endpoint   string
	APIKey     string
	ModelID    string

	RequestsPerMinute int           // R, default 30
	MinInterval       time.Duration // G, default 1s
	MaxAttempts       int           // N, default 3
	BaseBackoff       time.Duration // D, default 2s
	RequestTimeout    time.Duration // default 30s

	CacheSize int // bounded LRU of text -> Classification, 0 disables caching

	Logger *slog.Logger
}

// ApplyDefaults fills zero fields with documented defaults.
func (c *Config) ApplyDefaults() {
	if c.RequestsPerMinute == 0 {
		c.RequestsPerMinute = 30
	}
	if c.MinInterval == 0 {
		c.MinInterval = time.Second
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 3
	}
	if c.BaseBackoff == 0 {
		c.BaseBackoff = 2 * time.Second
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Client is the Classification Oracle Client.
type Client struct {
	cfg    Config
	http   *http.Client
	bucket *ratelimit.Bucket
	cat    *catalog.Catalog
	cache  *lru.Cache[string, domain.Classification]
	logger *slog.Logger

	metrics Metrics
}

// Metrics is the subset of oracle observability counters the client
// increments; the monitoring package supplies a Prometheus-backed
// implementation and tests can supply a no-op or recording fake.
type Metrics interface {
	ObserveCall(outcome string)
	ObserveRetry()
	ObserveFallback()
}

type noopMetrics struct{}

func (noopMetrics) ObserveCall(string) {}
func (noopMetrics) ObserveRetry()      {}
func (noopMetrics) ObserveFallback()   {}

// New builds a Client. cat supplies the category catalog for
// category-domain enforcement; metrics may be nil to use a no-op
// recorder.
func New(cfg Config, cat *catalog.Catalog, metrics Metrics) *Client {
	cfg.ApplyDefaults()
	if metrics == nil {
		metrics = noopMetrics{}
	}

	var cache *lru.Cache[string, domain.Classification]
	if cfg.CacheSize > 0 {
		c, err := lru.New[string, domain.Classification](cfg.CacheSize)
		if err == nil {
			cache = c
		}
	}

	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.RequestTimeout},
		bucket:  ratelimit.New(cfg.RequestsPerMinute, cfg.MinInterval),
		cat:     cat,
		cache:   cache,
		logger:  cfg.Logger,
		metrics: metrics,
	}
}

type oracleRequest struct {
	Text string `json:"text"`
}

type oracleResponse struct {
	Keyword    string `json:"keyword"`
	CategoryID int    `json:"category_id"`
}

// retryableStatus reports whether an HTTP status code should be
// retried: timeout, 5xx, 429, and transport errors are retried, other
// 4xx responses are not.
func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || (code >= 500 && code < 600)
}

// CurrentRPM reports the shared rate-limit bucket's trailing-60s request
// count, for a caller to periodically feed into a rate limiter gauge.
func (c *Client) CurrentRPM() int {
	return c.bucket.CurrentRPM()
}

// Classify returns a Classification for utterance. It never returns an
// error: on exhausted retries or a permanently malformed response it
// falls back to a locally-derived keyword and the catalog's fallback
// category id.
func (c *Client) Classify(ctx context.Context, utterance string) domain.Classification {
	if c.cache != nil {
		if cached, ok := c.cache.Get(utterance); ok {
			return cached
		}
	}

	result := c.classifyWithRetry(ctx, utterance)

	if c.cache != nil {
		c.cache.Add(utterance, result)
	}
	return result
}

func (c *Client) classifyWithRetry(ctx context.Context, utterance string) domain.Classification {
	var lastErr error
	attempts := 0

	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		attempts = attempt
		if attempt > 1 {
			c.metrics.ObserveRetry()
			if err := c.sleepWithJitter(ctx, attempt-1); err != nil {
				c.metrics.ObserveCall("cancelled")
				return c.fallback(utterance)
			}
		}

		if err := c.bucket.Wait(ctx); err != nil {
			c.metrics.ObserveCall("cancelled")
			return c.fallback(utterance)
		}

		resp, retry, err := c.call(ctx, utterance)
		if err == nil {
			c.metrics.ObserveCall("success")
			return normalizeClassification(utterance, resp.Keyword, resp.CategoryID, c.cat.Contains, c.cat.FallbackID())
		}

		lastErr = err
		if !retry {
			break
		}
	}

	c.logger.Warn("oracle classification failed, using fallback",
		"attempts", attempts,
		"error", lastErr,
	)
	c.metrics.ObserveCall("fallback")
	c.metrics.ObserveFallback()
	return c.fallback(utterance)
}

// fallback derives a Classification entirely locally: local keyword
// extraction, catalog fallback id.
func (c *Client) fallback(utterance string) domain.Classification {
	return domain.Classification{
		Keyword:    LocalKeyword(utterance),
		CategoryID: c.cat.FallbackID(),
		Fallback:   true,
	}
}

// call performs one HTTPS attempt. The bool return reports whether the
// error (if any) is retryable.
func (c *Client) call(ctx context.Context, utterance string) (oracleResponse, bool, error) {
	body, err := json.Marshal(oracleRequest{Text: utterance})
	if err != nil {
		return oracleResponse{}, false, fmt.Errorf("oracle: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return oracleResponse{}, false, fmt.Errorf("oracle: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	if c.cfg.ModelID != "" {
		req.Header.Set("X-Model-ID", c.cfg.ModelID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return oracleResponse{}, true, fmt.Errorf("oracle: transport error: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return oracleResponse{}, true, fmt.Errorf("oracle: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return oracleResponse{}, retryableStatus(resp.StatusCode), fmt.Errorf("oracle: status %d: %s", resp.StatusCode, previewBody(raw))
	}

	var parsed oracleResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		// malformed response schema: retryable only insofar as the caller
		// still has attempts left; classifyWithRetry decides via loop bound.
		return oracleResponse{}, true, fmt.Errorf("oracle: malformed response: %w", err)
	}

	if debugBody, err := json.Marshal(map[string]string{"raw_response": string(raw)}); err == nil {
		c.logger.Debug("oracle call succeeded", "response", logger.TruncateLongFields(string(debugBody), 80))
	}

	return parsed, false, nil
}

// sleepWithJitter waits base*2^(attempt-1) seconds with full jitter, or
// returns ctx.Err() if cancelled first.
func (c *Client) sleepWithJitter(ctx context.Context, attempt int) error {
	maxDelay := c.cfg.BaseBackoff * time.Duration(1<<uint(attempt-1))
	delay := time.Duration(rand.Int63n(int64(maxDelay) + 1))

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func previewBody(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
