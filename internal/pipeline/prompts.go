package pipeline

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"google.golang.org/genai"

	"newsroom/internal/core"
)

// Content limits keep prompts inside the model's useful context. Callers
// truncate before building the prompt; the client does no windowing.
const (
	relevancyContentLimit = 2000
	rankingContentLimit   = 6000
	summaryContentLimit   = 4000
)

const keywordsSystemPrompt = `You are a research assistant building a search vocabulary for a newsletter editor.
Given a newsletter topic, produce 5 to 10 short search keywords or phrases that would surface
relevant recent articles. Prefer specific technical terms over generic ones.`

func keywordsUserPrompt(topic string) string {
	return fmt.Sprintf("Newsletter topic: %s\n\nReturn the keywords as JSON.", topic)
}

func keywordsSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"keywords": {
				Type:  genai.TypeArray,
				Items: &genai.Schema{Type: genai.TypeString},
			},
		},
		Required: []string{"keywords"},
	}
}

const relevancySystemPrompt = `You are screening articles for a topical newsletter.
Decide whether the article is relevant to the newsletter's topic and keywords.
Judge the substance of the article, not surface keyword matches.`

func relevancyUserPrompt(run *core.Run, article *core.Article) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Newsletter topic: %s\n", run.Topic)
	if len(run.Keywords) > 0 {
		fmt.Fprintf(&b, "Keywords: %s\n", strings.Join(run.Keywords, ", "))
	}
	fmt.Fprintf(&b, "\nArticle title: %s\n", article.Title)
	fmt.Fprintf(&b, "Article content:\n%s\n", truncate(article.ContentText, relevancyContentLimit))
	return b.String()
}

func relevancySchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"is_relevant": {Type: genai.TypeBoolean},
			"reason":      {Type: genai.TypeString},
		},
		Required: []string{"is_relevant"},
	}
}

const rankingSystemPrompt = `You are an editor ranking articles for a newsletter.
Assess each article for fit, importance and novelty relative to the newsletter's topic.
Assign a score from 0 to 10 and a tier: "Essential" for must-read items,
"Important" for strong items, "Optional" for nice-to-have items.
Extract the key findings and the key entities (companies, products, people) mentioned.`

func rankingUserPrompt(run *core.Run, article *core.Article) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Newsletter topic: %s\n", run.Topic)
	if len(run.Keywords) > 0 {
		fmt.Fprintf(&b, "Keywords: %s\n", strings.Join(run.Keywords, ", "))
	}
	fmt.Fprintf(&b, "\nArticle title: %s\n", article.Title)
	fmt.Fprintf(&b, "Article URL: %s\n", article.URL)
	fmt.Fprintf(&b, "Article content:\n%s\n", truncate(article.ContentText, rankingContentLimit))
	return b.String()
}

func rankingSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"category": {Type: genai.TypeString},
			"score":    {Type: genai.TypeNumber},
			"tier": {
				Type: genai.TypeString,
				Enum: []string{string(core.TierEssential), string(core.TierImportant), string(core.TierOptional)},
			},
			"key_findings": {
				Type:  genai.TypeArray,
				Items: &genai.Schema{Type: genai.TypeString},
			},
			"key_entities": {
				Type:  genai.TypeArray,
				Items: &genai.Schema{Type: genai.TypeString},
			},
			"rationale":        {Type: genai.TypeString},
			"suggested_header": {Type: genai.TypeString},
		},
		Required: []string{"score", "tier"},
	}
}

const summarySystemPrompt = `You are writing newsletter blurbs.
Summarise the article in 2 to 4 sentences for a busy technical reader.
List 1 to 3 reasons why it matters to someone following the newsletter's topic.
If the article has forward-looking implications worth calling out, add them.`

func summaryUserPrompt(run *core.Run, article *core.Article, ranking *core.Ranking) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Newsletter topic: %s\n", run.Topic)
	fmt.Fprintf(&b, "\nArticle title: %s\n", article.Title)
	if ranking != nil {
		fmt.Fprintf(&b, "Editorial tier: %s (score %.1f)\n", ranking.Tier, ranking.Score)
	}
	fmt.Fprintf(&b, "Article content:\n%s\n", truncate(article.ContentText, summaryContentLimit))
	return b.String()
}

func summarySchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"summary_text": {Type: genai.TypeString},
			"why_it_matters": {
				Type:  genai.TypeArray,
				Items: &genai.Schema{Type: genai.TypeString},
			},
			"implications": {Type: genai.TypeString},
		},
		Required: []string{"summary_text", "why_it_matters"},
	}
}

const introSystemPrompt = `You write short newsletter introductions.
Given the issue's headlines, write a 2 to 3 sentence introduction that frames the issue.
Plain text only, no markdown.`

func introUserPrompt(topic string, headlines []string) string {
	return fmt.Sprintf("Newsletter topic: %s\n\nHeadlines:\n- %s\n",
		topic, strings.Join(headlines, "\n- "))
}

// truncate cuts s to at most limit bytes without splitting a rune.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
