package oracle

import (
	"strings"
	"unicode/utf8"

	"github.com/seongyeon1/chat-keyword-batch/internal/domain"
)

// maxExtractedLen bounds the local extractor's output to a short
// prefix, leaving room for the insert guard's ellipsis.
const maxExtractedLen = 95

// domainLexicon is the small education-related term list the local
// extractor checks first. Order matters only in that the first match
// wins when an utterance contains more than one.
var domainLexicon = []string{
	"수강신청", "수강정정", "휴학", "복학", "졸업", "성적", "장학금", "등록금",
	"시간표", "강의계획서", "수강철회", "학점", "재수강", "전공", "복수전공",
	"교양", "출석", "시험", "과제", "도서관",
}

// LocalKeyword deterministically derives a short keyword from an
// utterance without calling the oracle: first lexicon match, else the
// first token of length >= 2, else the utterance itself; a token or
// utterance longer than 95 chars is cut to a 95-char prefix.
// Used both as the fallback path when the oracle is unreachable/wrong
// and as the substitution the oracle client applies to overlong or
// echoed responses.
func LocalKeyword(utterance string) string {
	for _, term := range domainLexicon {
		if strings.Contains(utterance, term) {
			return term
		}
	}

	for _, tok := range strings.Fields(utterance) {
		if utf8.RuneCountInString(tok) >= 2 {
			if runes := []rune(tok); len(runes) > maxExtractedLen {
				return string(runes[:maxExtractedLen])
			}
			return tok
		}
	}

	runes := []rune(utterance)
	if len(runes) > maxExtractedLen {
		return string(runes[:maxExtractedLen])
	}
	return utterance
}

// normalizeClassification applies the oracle post-processing rules:
// strip/reject empty keyword, substitute an echoed or overlong keyword
// with the local extractor, and remap an unknown category_id to the
// fallback. isKnownCategory may be nil in tests that don't need category
// validation; callers in production always supply one.
func normalizeClassification(utterance string, keyword string, categoryID int, isKnownCategory func(int) bool, fallbackID int) domain.Classification {
	keyword = strings.TrimSpace(keyword)

	if keyword == "" || keyword == utterance || domain.KeywordLen(keyword) > domain.MaxKeywordLen {
		keyword = LocalKeyword(utterance)
	}

	if isKnownCategory != nil && !isKnownCategory(categoryID) {
		categoryID = fallbackID
	}

	return domain.Classification{Keyword: keyword, CategoryID: categoryID}
}
