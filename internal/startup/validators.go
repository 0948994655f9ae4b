// Package startup performs the fatal-or-continue checks a batch
// invocation runs before it touches the pipeline: a connectivity probe
// against the classification oracle that only warns, and category
// catalog construction, which is fatal on error since a malformed
// catalog means the pipeline cannot classify anything once it starts.
// A flaky oracle is already covered by the per-utterance retry/fallback
// path in internal/oracle, so refusing to start over it would be overly
// strict.
package startup

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/seongyeon1/chat-keyword-batch/internal/catalog"
	"github.com/seongyeon1/chat-keyword-batch/internal/config"
)

// BuildCatalog constructs the CategoryCatalog from configuration. A
// malformed catalog (duplicate id, missing fallback) is a fatal
// configuration error.
func BuildCatalog(cfg *config.Config) (*catalog.Catalog, error) {
	categories := make([]catalog.Category, 0, len(cfg.Catalog.Categories))
	for _, c := range cfg.Catalog.Categories {
		categories = append(categories, catalog.Category{ID: c.ID, Name: c.Name})
	}

	cat, err := catalog.New(categories, cfg.Catalog.FallbackID)
	if err != nil {
		return nil, fmt.Errorf("startup: category catalog: %w", err)
	}
	return cat, nil
}

// CheckOracleReachability performs a best-effort, non-blocking HTTP
// reachability probe against the classification oracle endpoint. It
// does not exercise the oracle's classification request/response
// contract, only that something answers. An unreachable oracle is
// logged as a WARN and startup continues.
func CheckOracleReachability(ctx context.Context, cfg config.OracleConfig, log *slog.Logger) {
	if cfg.Endpoint == "" {
		return
	}

	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodHead, cfg.Endpoint, nil)
	if err != nil {
		log.Warn("oracle reachability probe: failed to build request", "error", err)
		return
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Warn("classification oracle unreachable at startup",
			"endpoint", cfg.Endpoint,
			"error", err.Error(),
			"recommendation", "per-utterance retry/fallback will cover transient outages during the run",
		)
		return
	}
	defer resp.Body.Close()

	log.Debug("classification oracle reachable at startup",
		"endpoint", cfg.Endpoint,
		"status", resp.StatusCode,
	)
}
