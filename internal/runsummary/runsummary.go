// Package runsummary aggregates the per-date counters a batch run
// produces into a structured report: extracted, classified, inserted,
// skipped-duplicate, failed-classification and failed-insert counts,
// missing-before/after reconciliation figures, and a per-date
// breakdown, all JSON-renderable for the CLI's final report.
package runsummary

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// DateSummary is one date's contribution to a RunSummary.
type DateSummary struct {
	Date       string `json:"date"`
	Extracted  int    `json:"extracted"`
	Classified int    `json:"classified"`
	Fallback   int    `json:"fallback_used"`
	Inserted   int    `json:"inserted"`
	Skipped    int    `json:"skipped_duplicate"`
	Failed     int    `json:"failed_insert"`
	Err        string `json:"error,omitempty"`
}

// RunSummary is the structured report for one Date or Date-Range Pipeline
// invocation, correlated by a run id so its fragments can be traced
// across logs.
type RunSummary struct {
	RunID     string        `json:"run_id"`
	Start     string        `json:"start_date"`
	End       string        `json:"end_date"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   time.Time     `json:"ended_at,omitempty"`
	Dates     []DateSummary `json:"dates"`

	MissingBefore int `json:"missing_before,omitempty"`
	MissingAfter  int `json:"missing_after,omitempty"`
}

// New builds an empty RunSummary for a date range, stamped with a fresh
// correlation id.
func New(start, end string, startedAt time.Time) *RunSummary {
	return &RunSummary{
		RunID:     uuid.NewString(),
		Start:     start,
		End:       end,
		StartedAt: startedAt,
	}
}

// Add merges one date's fragment into the run: each Date Pipeline
// produces exactly one DateSummary, and the Range Pipeline appends them
// as they complete regardless of order.
func (s *RunSummary) Add(d DateSummary) {
	s.Dates = append(s.Dates, d)
}

// Finish stamps the end time. Totals are not stored; the Total* methods
// compute them from Dates on each call.
func (s *RunSummary) Finish(endedAt time.Time) {
	s.EndedAt = endedAt
}

// TotalExtracted sums Extracted across every date.
func (s *RunSummary) TotalExtracted() int { return s.sum(func(d DateSummary) int { return d.Extracted }) }

// TotalClassified sums Classified across every date.
func (s *RunSummary) TotalClassified() int {
	return s.sum(func(d DateSummary) int { return d.Classified })
}

// TotalInserted sums Inserted across every date.
func (s *RunSummary) TotalInserted() int { return s.sum(func(d DateSummary) int { return d.Inserted }) }

// TotalSkipped sums Skipped across every date.
func (s *RunSummary) TotalSkipped() int { return s.sum(func(d DateSummary) int { return d.Skipped }) }

// TotalFailed sums Failed across every date.
func (s *RunSummary) TotalFailed() int { return s.sum(func(d DateSummary) int { return d.Failed }) }

// TotalFallback sums Fallback across every date.
func (s *RunSummary) TotalFallback() int { return s.sum(func(d DateSummary) int { return d.Fallback }) }

// FailedDates lists the dates whose DateSummary carries an error.
func (s *RunSummary) FailedDates() []string {
	var out []string
	for _, d := range s.Dates {
		if d.Err != "" {
			out = append(out, d.Date)
		}
	}
	return out
}

func (s *RunSummary) sum(f func(DateSummary) int) int {
	total := 0
	for _, d := range s.Dates {
		total += f(d)
	}
	return total
}

// JSON renders the summary as indented JSON for the CLI's final report.
func (s *RunSummary) JSON() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}
