package synthesis

import (
	"strings"
	"unicode"
)

// Similarity scores how alike two strings are in [0, 1].
type Similarity interface {
	Score(a, b string) float64
}

// SimilarityFunc adapts a function into a Similarity.
type SimilarityFunc func(a, b string) float64

func (f SimilarityFunc) Score(a, b string) float64 { return f(a, b) }

// TokenOverlap compares the sets of words longer than MinWordLen.
// The score is shared / min(|A|, |B|), 0 when either set is empty.
type TokenOverlap struct {
	MinWordLen int
}

// Score implements Similarity.
func (t TokenOverlap) Score(a, b string) float64 {
	minLen := t.MinWordLen
	if minLen == 0 {
		minLen = 3
	}
	ta, tb := tokenSet(a, minLen), tokenSet(b, minLen)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	small, large := ta, tb
	if len(small) > len(large) {
		small, large = large, small
	}
	shared := 0
	for w := range small {
		if large[w] {
			shared++
		}
	}
	return float64(shared) / float64(len(small))
}

// tokenSet returns lower-cased words with more than minLen runes.
func tokenSet(s string, minLen int) map[string]bool {
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\'' && r != '-'
	})
	out := make(map[string]bool, len(words))
	for _, w := range words {
		w = strings.Trim(w, "'-")
		if len([]rune(w)) > minLen {
			out[w] = true
		}
	}
	return out
}

// words splits s into lower-cased alphabetic words.
func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
}

func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
