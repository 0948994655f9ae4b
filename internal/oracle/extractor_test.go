package oracle

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalKeyword_LexiconMatch(t *testing.T) {
	got := LocalKeyword("이번 학기 수강신청 언제 시작하나요?")
	require.Equal(t, "수강신청", got)
}

func TestLocalKeyword_FallsBackToFirstLongToken(t *testing.T) {
	got := LocalKeyword("a 식당은 몇시에 닫아요")
	require.Equal(t, "식당은", got)
}

func TestLocalKeyword_TruncatesToMaxExtractedLen(t *testing.T) {
	long := strings.Repeat("가", 200)
	got := LocalKeyword(long)
	require.Equal(t, 95, len([]rune(got)))
}

func TestLocalKeyword_ShortUtteranceReturnedAsIs(t *testing.T) {
	got := LocalKeyword("hi")
	require.Equal(t, "hi", got)
}

func TestNormalizeClassification_TrimsWhitespace(t *testing.T) {
	c := normalizeClassification("수강신청 언제?", "  수강신청  ", 1, func(int) bool { return true }, 99)
	require.Equal(t, "수강신청", c.Keyword)
	require.Equal(t, 1, c.CategoryID)
}

func TestNormalizeClassification_RejectsEchoedKeyword(t *testing.T) {
	c := normalizeClassification("수강신청 언제?", "수강신청 언제?", 1, func(int) bool { return true }, 99)
	require.Equal(t, "수강신청", c.Keyword)
}

func TestNormalizeClassification_RejectsOverlongKeyword(t *testing.T) {
	long := strings.Repeat("가", 150)
	c := normalizeClassification("수강신청 관련 문의", long, 1, func(int) bool { return true }, 99)
	require.Equal(t, "수강신청", c.Keyword)
}

func TestNormalizeClassification_RemapsUnknownCategory(t *testing.T) {
	isKnown := func(id int) bool { return id == 1 || id == 2 }
	c := normalizeClassification("수강신청 언제?", "수강신청", 555, isKnown, 99)
	require.Equal(t, 99, c.CategoryID)
}

func TestNormalizeClassification_EmptyKeywordFallsBackToLocal(t *testing.T) {
	c := normalizeClassification("수강신청 언제 하나요", "", 1, func(int) bool { return true }, 99)
	require.Equal(t, "수강신청", c.Keyword)
}
