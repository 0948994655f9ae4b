package runsummary

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNew_StampsUniqueRunID(t *testing.T) {
	a := New("2025-06-01", "2025-06-02", time.Now())
	b := New("2025-06-01", "2025-06-02", time.Now())
	require.NotEmpty(t, a.RunID)
	require.NotEqual(t, a.RunID, b.RunID)
}

func TestAdd_AccumulatesTotals(t *testing.T) {
	s := New("2025-06-01", "2025-06-03", time.Now())
	s.Add(DateSummary{Date: "2025-06-01", Extracted: 10, Classified: 10, Inserted: 8, Skipped: 2})
	s.Add(DateSummary{Date: "2025-06-02", Extracted: 5, Classified: 4, Inserted: 4, Failed: 1, Fallback: 1})

	require.Equal(t, 15, s.TotalExtracted())
	require.Equal(t, 14, s.TotalClassified())
	require.Equal(t, 12, s.TotalInserted())
	require.Equal(t, 2, s.TotalSkipped())
	require.Equal(t, 1, s.TotalFailed())
	require.Equal(t, 1, s.TotalFallback())
}

func TestFailedDates_ListsOnlyErroredDates(t *testing.T) {
	s := New("2025-06-01", "2025-06-03", time.Now())
	s.Add(DateSummary{Date: "2025-06-01"})
	s.Add(DateSummary{Date: "2025-06-02", Err: "extraction failed"})

	require.Equal(t, []string{"2025-06-02"}, s.FailedDates())
}

func TestJSON_RoundTripsShape(t *testing.T) {
	s := New("2025-06-01", "2025-06-01", time.Now())
	s.Add(DateSummary{Date: "2025-06-01", Extracted: 3})
	s.Finish(time.Now())

	raw, err := s.JSON()
	require.NoError(t, err)
	require.Contains(t, string(raw), `"run_id"`)
	require.Contains(t, string(raw), `"2025-06-01"`)
}
