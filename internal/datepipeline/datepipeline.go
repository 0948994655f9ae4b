// Package datepipeline implements the Date Pipeline: stream the distinct-utterances query for
// a single date, partition the stream into bounded chunks, and dispatch
// them to a pool of Chunk Workers with backpressure so memory stays
// bounded regardless of how many distinct utterances a date contains.
package datepipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/seongyeon1/chat-keyword-batch/internal/domain"
	"github.com/seongyeon1/chat-keyword-batch/internal/runsummary"
	"github.com/seongyeon1/chat-keyword-batch/internal/store"
	"github.com/seongyeon1/chat-keyword-batch/internal/worker"
)

// Extractor is the subset of store.Gateway a Date Pipeline needs to pull
// utterances for one date.
type Extractor interface {
	StreamDistinct(ctx context.Context, start, end string) (*store.UtteranceStream, error)
}

// DeadLetterSweeper is implemented by a Store that holds a bounded
// dead-letter queue of batches that failed even row-by-row insertion.
// When cfg.Store implements it, Run drains the queue with one retry
// sweep as its last step, after every chunk has already been
// classified and inserted.
type DeadLetterSweeper interface {
	DeadLetters() *store.DeadLetterQueue
}

// Config bounds a Date Pipeline run.
type Config struct {
	ChunkSize   int // K, chunk size, default 100
	NumWorkers  int // W, concurrent chunk workers, default 4
	Classifier  worker.Classifier
	Store       worker.Inserter
	Metrics     worker.InsertMetrics
	Logger      *slog.Logger
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

// dispatchJob adapts a worker.ChunkJob to report its ChunkResult onto a
// collector channel once Execute completes, so the pipeline can
// aggregate across chunks without the generic worker.Job/Result pair
// needing to know about ChunkResult.
type dispatchJob struct {
	inner worker.ChunkJob
	out   chan<- worker.ChunkResult
}

func (j dispatchJob) Execute(ctx context.Context) worker.Result {
	result := j.inner.Execute(ctx).(worker.ChunkResult)
	j.out <- result
	return result
}

// Run streams every distinct utterance for date through the Store
// Gateway, partitions it into Config.ChunkSize chunks, and classifies
// the chunks across Config.NumWorkers concurrent Chunk Workers. It
// returns a DateSummary fragment even on a partial failure; an
// extraction error (store.ErrExtractionFailed) marks the whole date
// Failed without touching already-inserted chunks.
func Run(ctx context.Context, date string, extractor Extractor, cfg Config) runsummary.DateSummary {
	cfg.applyDefaults()
	summary := runsummary.DateSummary{Date: date}

	stream, err := extractor.StreamDistinct(ctx, date, date)
	if err != nil {
		summary.Err = fmt.Errorf("%w: %v", store.ErrExtractionFailed, err).Error()
		return summary
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
			summary.Extracted += r.Classified
			summary.Classified += r.Classified
			summary.Fallback += r.FallbackUse
			summary.Inserted += r.Inserted
			summary.Skipped += r.Skipped
			summary.Failed += r.Failed
		}
	}()

	chunk := make([]domain.Utterance, 0, cfg.ChunkSize)
	dispatch := func() {
		if len(chunk) == 0 {
			return
		}
		job := dispatchJob{
			inner: worker.ChunkJob{
				Date:       date,
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

streamLoop:
	for stream.Next() {
		chunk = append(chunk, stream.Utterance())
		if len(chunk) >= cfg.ChunkSize {
			dispatch()
		}
		select {
		case <-ctx.Done():
			break streamLoop
		default:
		}
	}
	dispatch()

	if err := stream.Err(); err != nil {
		summary.Err = fmt.Errorf("%w: %v", store.ErrExtractionFailed, err).Error()
	}

	close(jobQueue)
	wg.Wait()
	close(results)
	collectWg.Wait()

	finalizeDeadLetters(ctx, cfg.Store, &summary)

	return summary
}

// finalizeDeadLetters runs the Date Pipeline's one dead-letter retry
// sweep, if inserter exposes a DeadLetterSweeper. Records recovered by
// the sweep move from summary.Failed into summary.Inserted/Skipped;
// records that fail again were already counted as Failed and are left
// alone.
func finalizeDeadLetters(ctx context.Context, inserter worker.Inserter, summary *runsummary.DateSummary) {
	sweeper, ok := inserter.(DeadLetterSweeper)
	if !ok {
		return
	}
	dlq := sweeper.DeadLetters()
	if dlq == nil || dlq.Len() == 0 {
		return
	}

	result := dlq.Sweep(ctx, inserter.InsertBatch)
	recovered := result.Inserted + result.Skipped
	summary.Inserted += result.Inserted
	summary.Skipped += result.Skipped
	summary.Failed -= recovered
}
