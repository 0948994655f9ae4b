// Command batchctl is the thin entrypoint into the batch classification
// pipeline. It owns only flag parsing, wiring, and exit-status
// derivation; scheduling (cron) and report/email delivery are left to a
// collaborator that calls into this binary or the packages it wires.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/seongyeon1/chat-keyword-batch/internal/config"
	"github.com/seongyeon1/chat-keyword-batch/internal/datepipeline"
	"github.com/seongyeon1/chat-keyword-batch/internal/logger"
	"github.com/seongyeon1/chat-keyword-batch/internal/monitoring"
	"github.com/seongyeon1/chat-keyword-batch/internal/oracle"
	"github.com/seongyeon1/chat-keyword-batch/internal/query"
	"github.com/seongyeon1/chat-keyword-batch/internal/rangepipeline"
	"github.com/seongyeon1/chat-keyword-batch/internal/reconcile"
	"github.com/seongyeon1/chat-keyword-batch/internal/runsummary"
	"github.com/seongyeon1/chat-keyword-batch/internal/startup"
	"github.com/seongyeon1/chat-keyword-batch/internal/store"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	op := flag.String("op", "batch", "Operation: batch | missing-check | missing-process | missing-auto")
	start := flag.String("start", "", "Range start date, YYYY-MM-DD (inclusive)")
	end := flag.String("end", "", "Range end date, YYYY-MM-DD (inclusive); defaults to -start")
	limit := flag.Int("limit", 0, "Caps missing utterances processed by missing-process/missing-auto; 0 means unbounded")
	parallel := flag.Int("parallel", 0, "Override pipeline.max_concurrent_dates (D); 0 keeps the config value")
	workers := flag.Int("workers", 0, "Override pipeline.chunk_workers (W); 0 keeps the config value")
	jsonLogs := flag.Bool("json-logs", false, "Emit structured JSON logs instead of the pretty console format")
	flag.Parse()

	if *start == "" {
		fmt.Fprintln(os.Stderr, "batchctl: -start is required")
		os.Exit(2)
	}
	if *end == "" {
		*end = *start
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "batchctl: failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LoggingLevel)
	if *jsonLogs {
		log = logger.NewJSON(cfg.LoggingLevel)
	}

	log.Info("starting chat-keyword-batch",
		"version", Version,
		"commit", Commit,
		"op", *op,
		"start", *start,
		"end", *end,
	)

	// A malformed category catalog must stop the run before it
	// touches the database.
	cat, err := startup.BuildCatalog(cfg)
	if err != nil {
		log.Error("fatal configuration error", "error", err)
		os.Exit(1)
	}

	builder, err := query.NewBuilder(cfg.Tables)
	if err != nil {
		log.Error("fatal configuration error", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startup.CheckOracleReachability(ctx, cfg.Oracle, log)

	storeCfg := &store.Config{
		DatabaseURL:     cfg.Store.DatabaseURL,
		PoolSize:        cfg.Store.PoolSize,
		Overflow:        cfg.Store.Overflow,
		ConnMaxAge:      cfg.Store.ConnMaxAge,
		ConnTimeout:     cfg.Store.ConnTimeout,
		InsertBatchSize: cfg.Store.InsertBatchSize,
		Logger:          log,
	}

	pool, err := store.NewConnectionPool(ctx, storeCfg)
	if err != nil {
		log.Error("failed to connect to store", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	gateway := store.NewGateway(pool.Pool(), builder, cat, log, cfg.Store.InsertBatchSize)

	metrics := monitoring.New(cfg.Monitoring.PrometheusEnabled)

	oracleClient := oracle.New(oracle.Config{
		Endpoint:          cfg.Oracle.Endpoint,
		APIKey:            cfg.Oracle.APIKey,
		ModelID:           cfg.Oracle.ModelID,
		RequestsPerMinute: cfg.Oracle.RequestsPerMinute,
		MinInterval:       cfg.Oracle.MinInterval,
		MaxAttempts:       cfg.Oracle.MaxAttempts,
		BaseBackoff:       cfg.Oracle.BaseBackoff,
		RequestTimeout:    cfg.Oracle.RequestTimeout,
		CacheSize:         cfg.Oracle.CacheSize,
		Logger:            log,
	}, cat, metrics)

	if cfg.Monitoring.PrometheusEnabled {
		stopRPMGauge := reportRateLimiterRPM(ctx, oracleClient, metrics)
		defer stopRPMGauge()
	}

	chunkWorkers := cfg.Pipeline.ChunkWorkers
	if *workers > 0 {
		chunkWorkers = *workers
	}
	maxConcurrentDates := cfg.Pipeline.MaxConcurrentDates
	if *parallel > 0 {
		maxConcurrentDates = *parallel
	}

	dpCfg := datepipeline.Config{
		ChunkSize:  cfg.Pipeline.ChunkSize,
		NumWorkers: chunkWorkers,
		Classifier: oracleClient,
		Store:      gateway,
		Metrics:    metrics,
		Logger:     log,
	}

	exitCode := 0

	switch *op {
	case "batch":
		summary, err := rangepipeline.Run(ctx, *start, *end, gateway, rangepipeline.Config{
			MaxConcurrentDates: maxConcurrentDates,
			DatePipeline:       dpCfg,
			Logger:             log,
		})
		if err != nil {
			log.Error("batch run failed to start", "error", err)
			os.Exit(1)
		}
		printJSON(summary)
		if summary.TotalFailed() > 0 || len(summary.FailedDates()) > 0 {
			exitCode = 1
		}

	case "missing-check":
		report := reconcile.Check(ctx, *start, *end, gateway)
		printJSON(report)
		if report.Err != "" {
			exitCode = 1
		}

	case "missing-process":
		report := reconcile.Process(ctx, *start, *end, gateway, reconcile.Config{
			ChunkSize:  dpCfg.ChunkSize,
			NumWorkers: dpCfg.NumWorkers,
			Classifier: oracleClient,
			Store:      gateway,
			Metrics:    metrics,
			Logger:     log,
			Limit:      *limit,
		})
		printJSON(report)
		if report.Err != "" || report.Failed > 0 {
			exitCode = 1
		}

	case "missing-auto":
		report := reconcile.Auto(ctx, *start, *end, gateway, reconcile.Config{
			ChunkSize:  dpCfg.ChunkSize,
			NumWorkers: dpCfg.NumWorkers,
			Classifier: oracleClient,
			Store:      gateway,
			Metrics:    metrics,
			Logger:     log,
			Limit:      *limit,
		})
		printJSON(report)
		if report.Err != "" || report.Failed > 0 {
			exitCode = 1
		}

	default:
		fmt.Fprintf(os.Stderr, "batchctl: unknown -op %q\n", *op)
		os.Exit(2)
	}

	log.Info("run finished", "op", *op, "exit_code", exitCode)
	os.Exit(exitCode)
}

// reportRateLimiterRPM periodically feeds the oracle's shared rate
// bucket occupancy into the Prometheus gauge on a background ticker.
func reportRateLimiterRPM(ctx context.Context, client *oracle.Client, metrics *monitoring.Metrics) func() {
	tickerCtx, cancel := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-tickerCtx.Done():
				return
			case <-ticker.C:
				metrics.UpdateRateLimiterRPM(client.CurrentRPM())
			}
		}
	}()
	return cancel
}

func printJSON(v any) {
	switch s := v.(type) {
	case *runsummary.RunSummary:
		out, err := s.JSON()
		if err != nil {
			fmt.Fprintf(os.Stderr, "batchctl: failed to render summary: %v\n", err)
			return
		}
		fmt.Println(string(out))
	default:
		out, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "batchctl: failed to render output: %v\n", err)
			return
		}
		fmt.Println(string(out))
	}
}
