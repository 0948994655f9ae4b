// Package reconcile implements the Reconciler: detect, classify,
// and backfill distinct utterances that a prior run failed to insert,
// by re-running the missing-utterance query and pushing what it finds
// through the same Chunk Worker / Store Gateway machinery as the
// primary pipelines.
package reconcile

import (
	"context"
	"log/slog"
	"sync"

	"github.com/seongyeon1/chat-keyword-batch/internal/datepipeline"
	"github.com/seongyeon1/chat-keyword-batch/internal/domain"
	"github.com/seongyeon1/chat-keyword-batch/internal/store"
	"github.com/seongyeon1/chat-keyword-batch/internal/worker"
)

// MissingExtractor is the subset of store.Gateway a Reconciler needs to
// pull rows present in the source but absent from the derived table.
type MissingExtractor interface {
	StreamMissing(ctx context.Context, start, end string) (*store.UtteranceStream, error)
}

// Config bounds a Reconciler run; the chunk size and worker count reuse
// the same defaulting as the Date Pipeline since the workload shape is
// identical.
type Config struct {
	ChunkSize  int
	NumWorkers int
	Classifier worker.Classifier
	Store      worker.Inserter
	Metrics    worker.InsertMetrics
	Logger     *slog.Logger

	// Limit caps the number of missing utterances Process will classify
	// and insert. Zero or negative means unbounded.
	Limit int
}

func (c *Config) applyDefaults() {
	if c.ChunkSize <= 0 {
		c.ChunkSize = 100
	}
	if c.NumWorkers <= 0 {
		c.NumWorkers = 4
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Report summarizes a reconciliation pass: Check/Process/Auto all report
// how many rows were found missing and, for Process/Auto, how many were
// subsequently inserted.
type Report struct {
	Start         string
	End           string
	MissingBefore int
	Classified    int
	Inserted      int
	Skipped       int
	Failed        int
	// MissingAfter is populated by Auto's post-Process re-check; it
	// stays zero-valued for Check/Process on their own.
	MissingAfter int
	Err          string
}

// Check counts missing utterances in [start, end] without classifying or
// inserting anything — a read-only dry run.
func Check(ctx context.Context, start, end string, extractor MissingExtractor) Report {
	report := Report{Start: start, End: end}

	stream, err := extractor.StreamMissing(ctx, start, end)
	if err != nil {
		report.Err = err.Error()
		return report
	}
	defer stream.Close()

	for stream.Next() {
		report.MissingBefore++
	}
	if err := stream.Err(); err != nil {
		report.Err = err.Error()
	}
	return report
}

// Process streams missing utterances in [start, end], classifies them in
// bounded chunks, and inserts the result, exactly like a Date Pipeline
// but driven by the missing-utterance query instead of the distinct-
// utterance query.
func Process(ctx context.Context, start, end string, extractor MissingExtractor, cfg Config) Report {
	cfg.applyDefaults()
	report := Report{Start: start, End: end}

	stream, err := extractor.StreamMissing(ctx, start, end)
	if err != nil {
		report.Err = err.Error()
		return report
	}
	defer stream.Close()

	jobQueue := make(chan worker.Job, cfg.NumWorkers)
	results := make(chan worker.ChunkResult, cfg.NumWorkers)
	wg := worker.SpawnWorkerPool(ctx, cfg.NumWorkers, jobQueue, cfg.Logger)

	var collectWg sync.WaitGroup
	collectWg.Add(1)
	go func() {
		defer collectWg.Done()
		for r := range results {
			report.MissingBefore += r.Classified
			report.Classified += r.Classified
			report.Inserted += r.Inserted
			report.Skipped += r.Skipped
			report.Failed += r.Failed
		}
	}()

	chunk := make([]domain.Utterance, 0, cfg.ChunkSize)
	flush := func() {
		if len(chunk) == 0 {
			return
		}
		job := reconcileJob{
			inner: worker.ChunkJob{
				Date:       start,
				Utterances: append([]domain.Utterance(nil), chunk...),
				Classifier: cfg.Classifier,
				Store:      cfg.Store,
				Metrics:    cfg.Metrics,
				Logger:     cfg.Logger,
			},
			out: results,
		}
		select {
		case jobQueue <- job:
		case <-ctx.Done():
		}
		chunk = chunk[:0]
	}

	seen := 0
	limitReached := false
streamLoop:
	for stream.Next() {
		if cfg.Limit > 0 && seen >= cfg.Limit {
			limitReached = true
			break streamLoop
		}
		seen++
		chunk = append(chunk, stream.Utterance())
		if len(chunk) >= cfg.ChunkSize {
			flush()
		}
		select {
		case <-ctx.Done():
			break streamLoop
		default:
		}
	}
	flush()

	if !limitReached {
		if err := stream.Err(); err != nil {
			report.Err = err.Error()
		}
	}

	close(jobQueue)
	wg.Wait()
	close(results)
	collectWg.Wait()

	finalizeDeadLetters(ctx, cfg.Store, &report)

	return report
}

// finalizeDeadLetters mirrors datepipeline's one-sweep dead-letter
// retry: records recovered by the sweep move from report.Failed into
// report.Inserted/Skipped.
func finalizeDeadLetters(ctx context.Context, inserter worker.Inserter, report *Report) {
	sweeper, ok := inserter.(datepipeline.DeadLetterSweeper)
	if !ok {
		return
	}
	dlq := sweeper.DeadLetters()
	if dlq == nil || dlq.Len() == 0 {
		return
	}

	result := dlq.Sweep(ctx, inserter.InsertBatch)
	recovered := result.Inserted + result.Skipped
	report.Inserted += result.Inserted
	report.Skipped += result.Skipped
	report.Failed -= recovered
}

// reconcileJob adapts a worker.ChunkJob to report its ChunkResult onto a
// collector channel, mirroring datepipeline.dispatchJob.
type reconcileJob struct {
	inner worker.ChunkJob
	out   chan<- worker.ChunkResult
}

func (j reconcileJob) Execute(ctx context.Context) worker.Result {
	result := j.inner.Execute(ctx).(worker.ChunkResult)
	j.out <- result
	return result
}

// Auto runs Check, and if any utterances are missing, immediately runs
// Process over the same window, then re-runs Check to report how many
// remain. A non-zero MissingAfter is reported but not retried
// automatically.
func Auto(ctx context.Context, start, end string, extractor MissingExtractor, cfg Config) Report {
	preCheck := Check(ctx, start, end, extractor)
	if preCheck.Err != "" || preCheck.MissingBefore == 0 {
		return preCheck
	}

	report := Process(ctx, start, end, extractor, cfg)
	report.MissingBefore = preCheck.MissingBefore
	if report.Err != "" {
		return report
	}

	postCheck := Check(ctx, start, end, extractor)
	if postCheck.Err != "" {
		report.Err = postCheck.Err
	} else {
		report.MissingAfter = postCheck.MissingBefore
	}
	return report
}
