// Package rangepipeline implements the Date-Range Pipeline: expand
// a [start,end] window into individual dates and run a Date Pipeline per
// date, bounding how many dates run concurrently so the process never
// opens more simultaneous streaming cursors than the connection pool can
// serve. One date's failure never aborts the others.
package rangepipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/seongyeon1/chat-keyword-batch/internal/datepipeline"
	"github.com/seongyeon1/chat-keyword-batch/internal/runsummary"
)

const dateLayout = "2006-01-02"

// Config bounds a Date-Range Pipeline run.
type Config struct {
	MaxConcurrentDates int // D, default 3
	DatePipeline       datepipeline.Config
	Logger             *slog.Logger
}

func (c *Config) applyDefaults() {
	if c.MaxConcurrentDates <= 0 {
		c.MaxConcurrentDates = 3
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// ExpandDates returns every calendar date in [start, end] inclusive, in
// ascending order. Returns an error if either bound fails to parse or
// start is after end.
func ExpandDates(start, end string) ([]string, error) {
	startTime, err := time.Parse(dateLayout, start)
	if err != nil {
		return nil, err
	}
	endTime, err := time.Parse(dateLayout, end)
	if err != nil {
		return nil, err
	}
	if startTime.After(endTime) {
		return nil, fmt.Errorf("rangepipeline: start %s is after end %s", start, end)
	}

	var dates []string
	for d := startTime; !d.After(endTime); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format(dateLayout))
	}
	return dates, nil
}

// Run expands [start,end], runs a Date Pipeline per date bounded by
// Config.MaxConcurrentDates concurrent dates, and merges every date's
// fragment into one RunSummary. A single date's extraction/classification
// failure is recorded on its DateSummary and never cancels the others;
// the returned error is non-nil only when the range itself could not be
// expanded.
func Run(ctx context.Context, start, end string, extractor datepipeline.Extractor, cfg Config) (*runsummary.RunSummary, error) {
	cfg.applyDefaults()

	dates, err := ExpandDates(start, end)
	if err != nil {
		return nil, err
	}

	summary := runsummary.New(start, end, time.Now())
	sem := semaphore.NewWeighted(int64(cfg.MaxConcurrentDates))

	fragments := make(chan runsummary.DateSummary, len(dates))
	group, gctx := errgroup.WithContext(ctx)

	for _, date := range dates {
		date := date
		group.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return nil
			}
			defer sem.Release(1)

			fragment := datepipeline.Run(gctx, date, extractor, cfg.DatePipeline)
			fragments <- fragment

			if fragment.Err != "" {
				cfg.Logger.Error("date pipeline failed",
					"date", date,
					"error", fragment.Err,
				)
			}
			return nil
		})
	}

	_ = group.Wait()
	close(fragments)

	for fragment := range fragments {
		summary.Add(fragment)
	}
	summary.Finish(time.Now())

	return summary, nil
}
