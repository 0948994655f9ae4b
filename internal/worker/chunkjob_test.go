package worker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/seongyeon1/chat-keyword-batch/internal/domain"
	"github.com/seongyeon1/chat-keyword-batch/internal/store"
)

type fakeClassifier struct {
	classify func(ctx context.Context, utterance string) domain.Classification
}

func (f fakeClassifier) Classify(ctx context.Context, utterance string) domain.Classification {
	return f.classify(ctx, utterance)
}

type fakeInserter struct {
	captured []domain.KeywordRecord
	result   store.InsertResult
}

func (f *fakeInserter) InsertBatch(ctx context.Context, records []domain.KeywordRecord) store.InsertResult {
	f.captured = records
	return f.result
}

func TestChunkJob_ClassifiesAllAndFlushesBatch(t *testing.T) {
	utterances := []domain.Utterance{
		{Text: "수강신청 언제?", ObservedOn: "2025-06-11", Occurrences: 3},
		{Text: "장학금 신청 방법", ObservedOn: "2025-06-11", Occurrences: 1},
	}

	classifier := fakeClassifier{classify: func(ctx context.Context, utterance string) domain.Classification {
		return domain.Classification{Keyword: utterance, CategoryID: 1}
	}}
	inserter := &fakeInserter{result: store.InsertResult{Inserted: 2, Skipped: 0}}

	job := ChunkJob{Date: "2025-06-11", Utterances: utterances, Classifier: classifier, Store: inserter}
	result := job.Execute(context.Background()).(ChunkResult)

	require.NoError(t, result.Error())
	require.Equal(t, 2, result.Classified)
	require.Equal(t, 2, result.Inserted)
	require.Len(t, inserter.captured, 2)
	require.Equal(t, "수강신청 언제?", inserter.captured[0].QueryText)
	require.Equal(t, 3, inserter.captured[0].QueryCount)
}

func TestChunkJob_CountsFallbackUsage(t *testing.T) {
	utterances := []domain.Utterance{
		{Text: "a", ObservedOn: "2025-06-11", Occurrences: 1},
		{Text: "b", ObservedOn: "2025-06-11", Occurrences: 1},
	}

	calls := 0
	classifier := fakeClassifier{classify: func(ctx context.Context, utterance string) domain.Classification {
		calls++
		return domain.Classification{Keyword: utterance, CategoryID: 1, Fallback: calls == 1}
	}}
	inserter := &fakeInserter{result: store.InsertResult{Inserted: 2}}

	job := ChunkJob{Date: "2025-06-11", Utterances: utterances, Classifier: classifier, Store: inserter}
	result := job.Execute(context.Background()).(ChunkResult)

	require.Equal(t, 1, result.FallbackUse)
}

func TestChunkJob_StopsOnContextCancellation(t *testing.T) {
	utterances := []domain.Utterance{
		{Text: "a", ObservedOn: "2025-06-11", Occurrences: 1},
		{Text: "b", ObservedOn: "2025-06-11", Occurrences: 1},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	classifier := fakeClassifier{classify: func(ctx context.Context, utterance string) domain.Classification {
		return domain.Classification{Keyword: utterance, CategoryID: 1}
	}}
	inserter := &fakeInserter{}

	job := ChunkJob{Date: "2025-06-11", Utterances: utterances, Classifier: classifier, Store: inserter}
	result := job.Execute(ctx).(ChunkResult)

	require.Error(t, result.Error())
	require.Nil(t, inserter.captured)
}

type recordingMetrics struct {
	byResult map[string]int
}

func (m *recordingMetrics) RecordInsert(result string, count int) {
	if m.byResult == nil {
		m.byResult = make(map[string]int)
	}
	m.byResult[result] += count
}

func TestChunkJob_ReportsInsertMetrics(t *testing.T) {
	utterances := []domain.Utterance{
		{Text: "a", ObservedOn: "2025-06-11", Occurrences: 1},
		{Text: "b", ObservedOn: "2025-06-11", Occurrences: 1},
	}
	classifier := fakeClassifier{classify: func(ctx context.Context, utterance string) domain.Classification {
		return domain.Classification{Keyword: utterance, CategoryID: 1}
	}}
	inserter := &fakeInserter{result: store.InsertResult{Inserted: 1, Skipped: 1, Failed: 0}}
	metrics := &recordingMetrics{}

	job := ChunkJob{Date: "2025-06-11", Utterances: utterances, Classifier: classifier, Store: inserter, Metrics: metrics}
	job.Execute(context.Background())

	require.Equal(t, 1, metrics.byResult["inserted"])
	require.Equal(t, 1, metrics.byResult["skipped"])
}
