package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/seongyeon1/chat-keyword-batch/internal/domain"
)

// dateLayout is how DATE() columns are rendered into Utterance.ObservedOn.
const dateLayout = "2006-01-02"

// UtteranceStream is a lazy, finite, forward-only sequence of
// Utterances backed by a live pgx.Rows cursor. It is not restartable:
// once exhausted or closed, a new Stream call is required.
type UtteranceStream struct {
	rows pgx.Rows
	cur  domain.Utterance
	err  error
}

// Next advances the stream. It returns false when the stream is
// exhausted or an error occurred; callers must check Err() afterward.
func (s *UtteranceStream) Next() bool {
	if s.err != nil {
		return false
	}
	if !s.rows.Next() {
		return false
	}

	var (
		text        string
		occurrences int
		observedOn  time.Time
	)
	if err := s.rows.Scan(&text, &occurrences, &observedOn); err != nil {
		s.err = fmt.Errorf("store: scan utterance row: %w", err)
		return false
	}

	s.cur = domain.Utterance{
		Text:        text,
		Occurrences: occurrences,
		ObservedOn:  observedOn.Format(dateLayout),
	}
	return true
}

// Utterance returns the row most recently advanced to by Next.
func (s *UtteranceStream) Utterance() domain.Utterance {
	return s.cur
}

// Err returns the first error encountered, if any, including the
// underlying rows' terminal error.
func (s *UtteranceStream) Err() error {
	if s.err != nil {
		return s.err
	}
	return s.rows.Err()
}

// Close releases the underlying cursor. Safe to call multiple times.
func (s *UtteranceStream) Close() {
	s.rows.Close()
}

// Stream executes sql/args and returns a lazy UtteranceStream over the
// result. The caller MUST call Close when done (defer immediately after
// a successful call) to release the connection back to the pool.
func (g *Gateway) Stream(ctx context.Context, sql string, args []any) (*UtteranceStream, error) {
	rows, err := g.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query failed: %w", err)
	}
	return &UtteranceStream{rows: rows}, nil
}
