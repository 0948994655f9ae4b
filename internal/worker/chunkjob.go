package worker

import (
	"context"
	"log/slog"

	"github.com/seongyeon1/chat-keyword-batch/internal/domain"
	"github.com/seongyeon1/chat-keyword-batch/internal/store"
)

// Classifier is the subset of the oracle client a ChunkJob needs: map an
// utterance to a Classification without ever returning an error.
type Classifier interface {
	Classify(ctx context.Context, utterance string) domain.Classification
}

// Inserter is the subset of store.Gateway a ChunkJob needs to flush its
// classified records.
type Inserter interface {
	InsertBatch(ctx context.Context, records []domain.KeywordRecord) store.InsertResult
}

// InsertMetrics is the subset of monitoring.Metrics a ChunkJob reports
// batch-insert outcomes to. Nil is a valid no-op (tests and callers that
// don't care about Prometheus exposition).
type InsertMetrics interface {
	RecordInsert(result string, count int)
}

// ChunkResult is the outcome of processing one ChunkJob.
type ChunkResult struct {
	Date        string
	Classified  int
	Inserted    int
	Skipped     int
	Failed      int
	FallbackUse int
	err         error
}

// Error satisfies worker.Result.
func (r ChunkResult) Error() error { return r.err }

// ChunkJob classifies one bounded chunk of Utterances sequentially
// within the worker — concurrency comes from running many chunks in
// parallel, not from parallelizing inside one — and flushes the
// classified records through the Store Gateway before returning.
type ChunkJob struct {
	Date       string
	Utterances []domain.Utterance

	Classifier Classifier
	Store      Inserter
	Metrics    InsertMetrics
	Logger     *slog.Logger
}

// Execute implements worker.Job.
func (j ChunkJob) Execute(ctx context.Context) Result {
	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}

	records := make([]domain.KeywordRecord, 0, len(j.Utterances))
	fallbackUse := 0

	for _, u := range j.Utterances {
		select {
		case <-ctx.Done():
			return ChunkResult{Date: j.Date, Classified: len(records), err: ctx.Err()}
		default:
		}

		classification := j.Classifier.Classify(ctx, u.Text)
		if classification.Fallback {
			fallbackUse++
		}
		records = append(records, domain.FromUtterance(u, classification))
	}

	insertResult := j.Store.InsertBatch(ctx, records)

	if j.Metrics != nil {
		j.Metrics.RecordInsert("inserted", insertResult.Inserted)
		j.Metrics.RecordInsert("skipped", insertResult.Skipped)
		j.Metrics.RecordInsert("failed", insertResult.Failed)
	}

	logger.Debug("chunk processed",
		"date", j.Date,
		"classified", len(records),
		"inserted", insertResult.Inserted,
		"skipped", insertResult.Skipped,
		"failed", insertResult.Failed,
		"fallback_used", fallbackUse,
	)

	return ChunkResult{
		Date:        j.Date,
		Classified:  len(records),
		Inserted:    insertResult.Inserted,
		Skipped:     insertResult.Skipped,
		Failed:      insertResult.Failed,
		FallbackUse: fallbackUse,
	}
}
