package startup

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/seongyeon1/chat-keyword-batch/internal/config"
	"github.com/seongyeon1/chat-keyword-batch/internal/logger"
)

func TestBuildCatalog_Valid(t *testing.T) {
	cfg := &config.Config{
		Catalog: config.CatalogConfig{
			Categories: []config.CategoryConfig{
				{ID: 1, Name: "Enrollment"},
				{ID: 99, Name: "Other"},
			},
			FallbackID: 99,
		},
	}

	cat, err := BuildCatalog(cfg)
	require.NoError(t, err)
	require.True(t, cat.Contains(1))
	require.Equal(t, 99, cat.FallbackID())
}

func TestBuildCatalog_RejectsMissingFallback(t *testing.T) {
	cfg := &config.Config{
		Catalog: config.CatalogConfig{
			Categories: []config.CategoryConfig{{ID: 1, Name: "Enrollment"}},
			FallbackID: 99,
		},
	}

	_, err := BuildCatalog(cfg)
	require.Error(t, err)
}

func TestCheckOracleReachability_DoesNotPanicOnUnreachable(t *testing.T) {
	log := logger.NewJSON("error")
	CheckOracleReachability(context.Background(), config.OracleConfig{Endpoint: "http://127.0.0.1:1"}, log)
}

func TestCheckOracleReachability_ReachableEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	log := logger.NewJSON("error")
	CheckOracleReachability(context.Background(), config.OracleConfig{Endpoint: server.URL}, log)
}
