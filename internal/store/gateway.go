// Package store is the Store Gateway: connection pooling, query
// execution, streaming iteration over the distinct/missing-utterance
// queries, and batch insert with per-row fallback.
package store

import (
	"context"
	"errors"
	"log/slog"

	"github.com/seongyeon1/chat-keyword-batch/internal/catalog"
	"github.com/seongyeon1/chat-keyword-batch/internal/domain"
	"github.com/seongyeon1/chat-keyword-batch/internal/query"
)

// InsertResult is the outcome of a batch insert attempt: inserted,
// skipped-duplicate, and failed row counts.
type InsertResult struct {
	Inserted int
	Skipped  int
	Failed   int
}

// Gateway executes the pipeline's queries against a Pool and applies
// the pre-insert guard before any write.
type Gateway struct {
	pool    Pool
	builder *query.Builder
	catalog *catalog.Catalog
	logger  *slog.Logger
	dlq     *DeadLetterQueue

	batchSize int
}

// NewGateway constructs a Gateway. batchSize bounds one insert round
// trip, defaulting to 100 when <= 0. Every Gateway carries its own
// bounded dead-letter queue for batches that fail even the per-row
// fallback; call DeadLetters().Sweep at the end of a run to retry them.
func NewGateway(pool Pool, builder *query.Builder, cat *catalog.Catalog, logger *slog.Logger, batchSize int) *Gateway {
	if batchSize <= 0 {
		batchSize = 100
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		pool:      pool,
		builder:   builder,
		catalog:   cat,
		logger:    logger,
		batchSize: batchSize,
		dlq:       NewDeadLetterQueue(logger),
	}
}

// DeadLetters returns the Gateway's dead-letter queue.
func (g *Gateway) DeadLetters() *DeadLetterQueue {
	return g.dlq
}

// StreamDistinct opens a streaming cursor over the distinct-utterances
// query for one date range.
func (g *Gateway) StreamDistinct(ctx context.Context, start, end string) (*UtteranceStream, error) {
	sql, args := g.builder.DistinctUtterances(start, end)
	return g.Stream(ctx, sql, args)
}

// StreamMissing opens a streaming cursor over the missing-utterances
// query for one date range.
func (g *Gateway) StreamMissing(ctx context.Context, start, end string) (*UtteranceStream, error) {
	sql, args := g.builder.MissingUtterances(start, end)
	return g.Stream(ctx, sql, args)
}

// InsertBatch executes the batch-insert query for up to batchSize
// records in one round trip. On database error it falls back to
// per-record execution so a single bad row cannot sink the whole
// batch. Records are guarded (truncated/remapped) before any SQL is
// built.
func (g *Gateway) InsertBatch(ctx context.Context, records []domain.KeywordRecord) InsertResult {
	if len(records) == 0 {
		return InsertResult{}
	}
	if len(records) > g.batchSize {
		var total InsertResult
		for i := 0; i < len(records); i += g.batchSize {
			part := g.InsertBatch(ctx, records[i:min(i+g.batchSize, len(records))])
			total.Inserted += part.Inserted
			total.Skipped += part.Skipped
			total.Failed += part.Failed
		}
		return total
	}

	guarded := make([]domain.KeywordRecord, len(records))
	for i, r := range records {
		guarded[i] = guardRecord(r, g.catalog)
	}

	sql := g.builder.InsertBatch(len(guarded))
	args := query.FlattenParams(toInsertParams(guarded))

	tag, err := g.pool.Exec(ctx, sql, args...)
	if err == nil {
		inserted := int(tag.RowsAffected())
		result := InsertResult{
			Inserted: inserted,
			Skipped:  len(guarded) - inserted,
		}
		return result
	}

	g.logger.Warn("batch insert failed, falling back to per-record insert",
		"batch_size", len(guarded),
		"error", err,
	)

	return g.insertRowByRow(ctx, guarded)
}

// insertRowByRow is the batch-insert fallback path: each record is
// inserted with its own insert statement; a single row's failure is
// logged and counted as failed but does not abort remaining rows.
// Records that fail here are held in the dead-letter queue for one
// later retry sweep rather than discarded.
func (g *Gateway) insertRowByRow(ctx context.Context, records []domain.KeywordRecord) InsertResult {
	sql := g.builder.InsertOne()
	var result InsertResult
	var failed []domain.KeywordRecord
	var lastErr error

	for _, r := range records {
		args := query.FlattenParams([]query.InsertRecordParams{toInsertParam(r)})
		tag, err := g.pool.Exec(ctx, sql, args...)
		if err != nil {
			result.Failed++
			lastErr = err
			failed = append(failed, r)
			g.logger.Error("per-record insert failed",
				"query_text_len", len(r.QueryText),
				"observed_on", r.ObservedOn,
				"error", err,
			)
			continue
		}
		if tag.RowsAffected() > 0 {
			result.Inserted++
		} else {
			result.Skipped++
		}
	}

	if len(failed) > 0 {
		g.dlq.Add(failed, lastErr)
	}

	return result
}

func toInsertParams(records []domain.KeywordRecord) []query.InsertRecordParams {
	out := make([]query.InsertRecordParams, len(records))
	for i, r := range records {
		out[i] = toInsertParam(r)
	}
	return out
}

func toInsertParam(r domain.KeywordRecord) query.InsertRecordParams {
	return query.InsertRecordParams{
		QueryText:  r.QueryText,
		Keyword:    r.Keyword,
		CategoryID: r.CategoryID,
		QueryCount: r.QueryCount,
		ObservedOn: r.ObservedOn,
	}
}

// ErrExtractionFailed marks a Date Pipeline's extraction step as fatal
// for that date only.
var ErrExtractionFailed = errors.New("store: extraction failed")
