package store

import (
	"github.com/seongyeon1/chat-keyword-batch/internal/catalog"
	"github.com/seongyeon1/chat-keyword-batch/internal/domain"
)

// guardRecord is the pre-insert last line of defense: it should not
// normally fire, because the oracle client and chunk worker already
// enforce keyword-length and category-domain constraints upstream. It
// exists so a bug anywhere upstream cannot corrupt the derived table.
func guardRecord(r domain.KeywordRecord, cat *catalog.Catalog) domain.KeywordRecord {
	if domain.KeywordLen(r.Keyword) > domain.MaxKeywordLen {
		r.Keyword = domain.TruncateKeyword(r.Keyword)
	}
	if cat != nil && !cat.Contains(r.CategoryID) {
		r.CategoryID = cat.FallbackID()
	}
	return r
}
