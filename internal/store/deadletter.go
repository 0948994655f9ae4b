package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/seongyeon1/chat-keyword-batch/internal/domain"
)

// maxDeadLetterBatches bounds the dead-letter queue's memory: a fixed
// number of batches, not a fixed number of records, since a batch's
// size is already bounded by Gateway.batchSize.
const maxDeadLetterBatches = 10

type deadLetterBatch struct {
	records  []domain.KeywordRecord
	failedAt time.Time
	lastErr  error
}

// DeadLetterQueue holds batches that failed insertion even after the
// per-row fallback, for one later retry sweep. It is not a recovery
// ticker: a batch run has a natural end, so Sweep is meant to run once,
// at the end of a Date Pipeline's run, rather than on a schedule.
type DeadLetterQueue struct {
	mu     sync.Mutex
	items  []deadLetterBatch
	logger *slog.Logger
}

// NewDeadLetterQueue builds an empty queue.
func NewDeadLetterQueue(logger *slog.Logger) *DeadLetterQueue {
	if logger == nil {
		logger = slog.Default()
	}
	return &DeadLetterQueue{logger: logger}
}

// Add holds records that failed to insert even with the row-by-row
// fallback. When the queue is already at maxDeadLetterBatches, the
// oldest batch is dropped with a logged warning to keep memory bounded.
func (q *DeadLetterQueue) Add(records []domain.KeywordRecord, lastErr error) {
	if len(records) == 0 {
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) >= maxDeadLetterBatches {
		dropped := q.items[0]
		q.items = q.items[1:]
		q.logger.Warn("dead-letter queue overflow, dropping oldest batch",
			"dropped_batch_size", len(dropped.records),
			"dropped_at", dropped.failedAt,
		)
	}

	q.items = append(q.items, deadLetterBatch{
		records:  records,
		failedAt: time.Now(),
		lastErr:  lastErr,
	})

	q.logger.Warn("batch sent to dead-letter queue",
		"batch_size", len(records),
		"dlq_size", len(q.items),
		"error", lastErr,
	)
}

// Len reports how many batches are currently held.
func (q *DeadLetterQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Sweep retries every held batch once through insert, draining the
// queue up front so a concurrent Add during the sweep starts a fresh
// round rather than racing with this one. Sweep itself does not put a
// batch that still fails back into the queue; an insert func that queues
// its own failures, as Gateway.InsertBatch does, adds those records
// again through Add.
func (q *DeadLetterQueue) Sweep(ctx context.Context, insert func(ctx context.Context, records []domain.KeywordRecord) InsertResult) InsertResult {
	q.mu.Lock()
	items := q.items
	q.items = nil
	q.mu.Unlock()

	if len(items) == 0 {
		return InsertResult{}
	}

	var total InsertResult
	for _, item := range items {
		result := insert(ctx, item.records)
		total.Inserted += result.Inserted
		total.Skipped += result.Skipped
		total.Failed += result.Failed

		if result.Failed == 0 {
			q.logger.Info("dead-letter batch recovered",
				"batch_size", len(item.records),
				"time_in_dlq", time.Since(item.failedAt).String(),
			)
		} else {
			q.logger.Error("dead-letter batch retry failed again, dropping",
				"batch_size", len(item.records),
				"failed", result.Failed,
				"time_in_dlq", time.Since(item.failedAt).String(),
			)
		}
	}

	return total
}
