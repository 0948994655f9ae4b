package store

import (
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/seongyeon1/chat-keyword-batch/internal/domain"
)

// memRowsAdapter is an in-memory pgx.Rows substitute over a fixed slice
// of Utterances, used by NewFakeStream so other packages' tests can
// exercise streaming consumers without a live database or a duplicated
// hand-rolled fake per package.
type memRowsAdapter struct {
	data []domain.Utterance
	idx  int
}

func (r *memRowsAdapter) Close()                                       {}
func (r *memRowsAdapter) Err() error                                   { return nil }
func (r *memRowsAdapter) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *memRowsAdapter) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *memRowsAdapter) Values() ([]any, error)                       { return nil, nil }
func (r *memRowsAdapter) RawValues() [][]byte                          { return nil }
func (r *memRowsAdapter) Conn() *pgx.Conn                              { return nil }

func (r *memRowsAdapter) Next() bool {
	if r.idx >= len(r.data) {
		return false
	}
	r.idx++
	return true
}

func (r *memRowsAdapter) Scan(dest ...any) error {
	u := r.data[r.idx-1]
	observedOn, err := time.Parse(dateLayout, u.ObservedOn)
	if err != nil {
		observedOn = time.Time{}
	}
	*(dest[0].(*string)) = u.Text
	*(dest[1].(*int)) = u.Occurrences
	*(dest[2].(*time.Time)) = observedOn
	return nil
}

// NewFakeStream builds an UtteranceStream over an in-memory slice rather
// than a live pgx.Rows cursor, for tests in other packages (datepipeline,
// rangepipeline, reconcile) that exercise streaming consumers without a
// database.
func NewFakeStream(utterances []domain.Utterance) *UtteranceStream {
	return &UtteranceStream{rows: &memRowsAdapter{data: utterances}}
}
