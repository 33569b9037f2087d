// Package similarity scores how alike two article titles are, used to catch
// the same story syndicated under slightly different headlines.
package similarity

import (
	"strings"
	"unicode"
)

// DuplicateThreshold is the Jaccard score above which two titles are
// treated as the same story.
const DuplicateThreshold = 0.7

// tokenize lowercases text, strips punctuation and splits on whitespace,
// keeping only tokens longer than 2 characters so stopwords like "a" and
// "the" never contribute to a match.
func tokenize(text string) map[string]struct{} {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || unicode.IsSpace(r) {
			return unicode.ToLower(r)
		}
		return -1
	}, text)

	tokens := make(map[string]struct{})
	for _, w := range strings.Fields(cleaned) {
		if len(w) > 2 {
			tokens[w] = struct{}{}
		}
	}
	return tokens
}

// TitleSimilarity returns the Jaccard similarity of the token sets of a and
// b, in [0, 1]. It is symmetric. Two empty token sets score 1; one empty
// set scores 0.
func TitleSimilarity(a, b string) float64 {
	tokensA := tokenize(a)
	tokensB := tokenize(b)

	if len(tokensA) == 0 && len(tokensB) == 0 {
		return 1
	}
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}

	intersection := 0
	for token := range tokensA {
		if _, ok := tokensB[token]; ok {
			intersection++
		}
	}

	union := len(tokensA) + len(tokensB) - intersection
	return float64(intersection) / float64(union)
}
