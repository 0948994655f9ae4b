// Package query builds the parameterized SQL statements the pipeline
// needs against the configurable chattings (source) and keywords (derived)
// tables. Table and column names are injected from config and are
// never derived from request input at runtime.
package query

import (
	"fmt"
	"strings"
)

// Tables names the physical tables/columns the pipeline reads and
// writes. Zero-value fields are rejected by NewBuilder.
type Tables struct {
	Chattings string `yaml:"chattings_table"` // source table
	Keywords  string `yaml:"keywords_table"`  // derived table

	PK        string `yaml:"pk_col"`         // chattings primary key column
	InputText string `yaml:"input_text_col"` // chattings text column
	CreatedAt string `yaml:"created_at_col"` // chattings timestamp column

	QueryText      string `yaml:"query_text_col"`      // keywords.query_text
	Keyword        string `yaml:"keyword_col"`         // keywords.keyword
	CategoryID     string `yaml:"category_id_col"`     // keywords.category_id
	QueryCount     string `yaml:"query_count_col"`     // keywords.query_count
	BatchCreatedAt string `yaml:"batch_created_at_col"` // keywords.batch_created_at
	KeywordCreated string `yaml:"keyword_created_col"`  // keywords.created_at
}

// Builder produces the distinct-utterances, missing-utterances, and
// batch-insert queries against a fixed Tables configuration.
type Builder struct {
	t Tables
}

// NewBuilder validates tables and returns a Builder.
func NewBuilder(t Tables) (*Builder, error) {
	if err := validate(t); err != nil {
		return nil, err
	}
	return &Builder{t: t}, nil
}

func validate(t Tables) error {
	fields := map[string]string{
		"chattings":        t.Chattings,
		"keywords":         t.Keywords,
		"pk":               t.PK,
		"input_text":       t.InputText,
		"created_at":       t.CreatedAt,
		"query_text":       t.QueryText,
		"keyword":          t.Keyword,
		"category_id":      t.CategoryID,
		"query_count":      t.QueryCount,
		"batch_created_at": t.BatchCreatedAt,
		"keyword_created":  t.KeywordCreated,
	}
	for name, v := range fields {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("query: table/column %q is not configured", name)
		}
	}
	return nil
}

// DistinctUtterances builds a query returning one row per distinct text in
// [start, end] with its total occurrence count and a representative
// observed_on date. start/end are "YYYY-MM-DD" strings; the builder does
// not check their format.
func (b *Builder) DistinctUtterances(start, end string) (string, []any) {
	q := fmt.Sprintf(`
WITH counted AS (
  SELECT %[1]s, %[2]s, %[3]s,
         ROW_NUMBER() OVER (PARTITION BY %[2]s ORDER BY %[3]s DESC) AS rn,
         COUNT(*)    OVER (PARTITION BY %[2]s)                      AS total
  FROM %[4]s
  WHERE %[3]s BETWEEN $1 AND $2
)
SELECT %[2]s AS text, total AS occurrences, DATE(%[3]s) AS observed_on
FROM counted WHERE rn = 1
ORDER BY total DESC, observed_on ASC`,
		b.t.PK, b.t.InputText, b.t.CreatedAt, b.t.Chattings)

	return q, []any{start + " 00:00:00", end + " 23:59:59"}
}

// MissingUtterances builds a query returning distinct (text, date) in [start, end]
// present in chattings but absent from keywords for that same (text,
// date), grouped with their occurrence count in the window.
func (b *Builder) MissingUtterances(start, end string) (string, []any) {
	q := fmt.Sprintf(`
SELECT DATE(c.%[1]s) AS observed_on, c.%[2]s AS text, COUNT(*) AS occurrences
FROM %[3]s c
LEFT JOIN (SELECT DISTINCT %[4]s, DATE(%[5]s) AS d
           FROM %[6]s
           WHERE DATE(%[5]s) BETWEEN $1 AND $2) k
  ON c.%[2]s = k.%[4]s AND DATE(c.%[1]s) = k.d
WHERE k.%[4]s IS NULL
  AND c.%[1]s BETWEEN $3 AND $4
GROUP BY observed_on, text
ORDER BY occurrences DESC`,
		b.t.CreatedAt, b.t.InputText, b.t.Chattings,
		b.t.QueryText, b.t.KeywordCreated, b.t.Keywords)

	return q, []any{start, end, start + " 00:00:00", end + " 23:59:59"}
}

// recordParamCount is the number of bind parameters per KeywordRecord
// in the batch-insert VALUES list.
const recordParamCount = 5

// InsertRecordParams is the positional argument tuple for one row of
// the batch insert, matching recordParamCount and the column order
// used by InsertBatch/InsertOne.
type InsertRecordParams struct {
	QueryText      string
	Keyword        string
	CategoryID     int
	QueryCount     int
	ObservedOn     string // "YYYY-MM-DD", becomes keywords.created_at
}

// InsertOne builds an insert statement for a single record: an idempotent insert keyed
// on (query_text, DATE(created_at)) via NOT EXISTS, since created_at holds
// the utterance's observed_on date while batch_created_at holds the
// run's wall-clock date. batch_created_at is populated by the database
// as now(); the caller does not supply it.
func (b *Builder) InsertOne() string {
	return b.batchInsertSQL(1)
}

// InsertBatch builds an insert statement for up to n records in a single round trip.
// Returns the SQL text; the caller supplies 5*n positional arguments in
// InsertRecordParams order, flattened.
func (b *Builder) InsertBatch(n int) string {
	return b.batchInsertSQL(n)
}

func (b *Builder) batchInsertSQL(n int) string {
	var sb strings.Builder
	sb.Grow(400 + n*160)

	fmt.Fprintf(&sb, `INSERT INTO %s (%s, %s, %s, %s, %s, %s)
SELECT v.query_text, v.keyword, v.category_id, v.query_count, now(), v.observed_on::date
FROM (VALUES `,
		b.t.Keywords, b.t.QueryText, b.t.Keyword, b.t.CategoryID,
		b.t.QueryCount, b.t.BatchCreatedAt, b.t.KeywordCreated)

	paramIdx := 1
	for i := 0; i < n; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		for j := 0; j < recordParamCount; j++ {
			if j > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", paramIdx)
			paramIdx++
		}
		sb.WriteString(")")
	}

	fmt.Fprintf(&sb, `) AS v(query_text, keyword, category_id, query_count, observed_on)
WHERE NOT EXISTS (
  SELECT 1 FROM %s k
  WHERE k.%s = v.query_text AND DATE(k.%s) = v.observed_on::date
)`, b.t.Keywords, b.t.QueryText, b.t.KeywordCreated)

	return sb.String()
}

// FlattenParams flattens a slice of InsertRecordParams into the
// positional argument list InsertBatch's SQL expects.
func FlattenParams(records []InsertRecordParams) []any {
	args := make([]any, 0, len(records)*recordParamCount)
	for _, r := range records {
		args = append(args, r.QueryText, r.Keyword, r.CategoryID, r.QueryCount, r.ObservedOn)
	}
	return args
}
