package similarity

import (
	"math"
	"testing"
)

func TestIdenticalTitles(t *testing.T) {
	title := "Google Releases New Gemini Model for Developers"
	if got := TitleSimilarity(title, title); got != 1.0 {
		t.Errorf("Identical titles should score 1.0, got %f", got)
	}
}

func TestDisjointTitles(t *testing.T) {
	a := "Quantum Computing Breakthrough Announced"
	b := "Federal Reserve Raises Interest Rates"
	if got := TitleSimilarity(a, b); got != 0.0 {
		t.Errorf("Disjoint titles should score 0.0, got %f", got)
	}
}

func TestSymmetry(t *testing.T) {
	a := "OpenAI Launches GPT Store for Custom Assistants"
	b := "GPT Store Launched by OpenAI This Week"
	ab := TitleSimilarity(a, b)
	ba := TitleSimilarity(b, a)
	if math.Abs(ab-ba) > 1e-12 {
		t.Errorf("Similarity should be symmetric: %f != %f", ab, ba)
	}
	if ab <= 0 || ab >= 1 {
		t.Errorf("Partially overlapping titles should score strictly between 0 and 1, got %f", ab)
	}
}

func TestShortTokensIgnored(t *testing.T) {
	// Every token here is <= 2 chars, so both token sets are empty.
	if got := TitleSimilarity("a of to", "it is so"); got != 1.0 {
		t.Errorf("Two empty token sets should score 1.0, got %f", got)
	}
	if got := TitleSimilarity("a of to", "meaningful headline words"); got != 0.0 {
		t.Errorf("One empty token set should score 0.0, got %f", got)
	}
}

func TestPunctuationAndCaseInsensitive(t *testing.T) {
	a := "AI Factory: The Future of Newsletters!"
	b := "ai factory the future of newsletters"
	if got := TitleSimilarity(a, b); got != 1.0 {
		t.Errorf("Punctuation and case should not affect similarity, got %f", got)
	}
}

func TestNearDuplicateAboveThreshold(t *testing.T) {
	a := "Anthropic Announces New Model With Improved Reasoning"
	b := "Anthropic Announces New Model With Improved Reasoning Skills"
	if got := TitleSimilarity(a, b); got <= DuplicateThreshold {
		t.Errorf("Near-duplicate titles should exceed the threshold, got %f", got)
	}
}
