package datepipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/seongyeon1/chat-keyword-batch/internal/domain"
	"github.com/seongyeon1/chat-keyword-batch/internal/store"
)

type fakeExtractor struct {
	utterances []domain.Utterance
}

func (f fakeExtractor) StreamDistinct(ctx context.Context, start, end string) (*store.UtteranceStream, error) {
	return store.NewFakeStream(f.utterances), nil
}

type fakeClassifier struct{}

func (fakeClassifier) Classify(ctx context.Context, utterance string) domain.Classification {
	return domain.Classification{Keyword: utterance, CategoryID: 1}
}

type countingInserter struct {
	inserted int
}

func (c *countingInserter) InsertBatch(ctx context.Context, records []domain.KeywordRecord) store.InsertResult {
	c.inserted += len(records)
	return store.InsertResult{Inserted: len(records)}
}

func TestRun_ProcessesAllChunks(t *testing.T) {
	utterances := make([]domain.Utterance, 0, 120)
	for i := 0; i < 120; i++ {
		utterances = append(utterances, domain.Utterance{Text: "u", ObservedOn: "2025-06-11", Occurrences: 1})
	}

	inserter := &countingInserter{}
	cfg := Config{ChunkSize: 25, NumWorkers: 3, Classifier: fakeClassifier{}, Store: inserter}

	summary := Run(context.Background(), "2025-06-11", fakeExtractor{utterances: utterances}, cfg)

	require.Empty(t, summary.Err)
	require.Equal(t, 120, summary.Classified)
	require.Equal(t, 120, summary.Inserted)
	require.Equal(t, 120, inserter.inserted)
}

func TestRun_ExtractionErrorMarksDateFailed(t *testing.T) {
	cfg := Config{Classifier: fakeClassifier{}, Store: &countingInserter{}}
	summary := Run(context.Background(), "2025-06-11", erroringExtractor{}, cfg)
	require.NotEmpty(t, summary.Err)
}

type erroringExtractor struct{}

func (erroringExtractor) StreamDistinct(ctx context.Context, start, end string) (*store.UtteranceStream, error) {
	return nil, assertErr{}
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }

func TestRun_EmptyStreamProducesZeroSummary(t *testing.T) {
	cfg := Config{Classifier: fakeClassifier{}, Store: &countingInserter{}}
	summary := Run(context.Background(), "2025-06-11", fakeExtractor{}, cfg)

	require.Empty(t, summary.Err)
	require.Zero(t, summary.Classified)
}

// sweepingInserter fails its first InsertBatch call (mimicking a Gateway
// whose row-by-row fallback still failed and queued the batch) and
// succeeds on any later call, so Run's end-of-pipeline sweep recovers it.
type sweepingInserter struct {
	dlq   *store.DeadLetterQueue
	calls int
}

func newSweepingInserter() *sweepingInserter {
	return &sweepingInserter{dlq: store.NewDeadLetterQueue(nil)}
}

func (s *sweepingInserter) InsertBatch(ctx context.Context, records []domain.KeywordRecord) store.InsertResult {
	s.calls++
	if s.calls == 1 {
		s.dlq.Add(records, errors.New("boom"))
		return store.InsertResult{Failed: len(records)}
	}
	return store.InsertResult{Inserted: len(records)}
}

func (s *sweepingInserter) DeadLetters() *store.DeadLetterQueue {
	return s.dlq
}

func TestRun_SweepsDeadLettersAtEndOfRun(t *testing.T) {
	utterances := []domain.Utterance{
		{Text: "a", ObservedOn: "2025-06-11", Occurrences: 1},
		{Text: "b", ObservedOn: "2025-06-11", Occurrences: 1},
	}
	inserter := newSweepingInserter()
	cfg := Config{ChunkSize: 10, NumWorkers: 1, Classifier: fakeClassifier{}, Store: inserter}

	summary := Run(context.Background(), "2025-06-11", fakeExtractor{utterances: utterances}, cfg)

	require.Empty(t, summary.Err)
	require.Equal(t, 0, summary.Failed)
	require.Equal(t, 2, summary.Inserted)
	require.Equal(t, 0, inserter.dlq.Len())
}
