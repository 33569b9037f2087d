package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"newsroom/internal/core"
	"newsroom/internal/llm"
	"newsroom/internal/render"
	"newsroom/internal/store"
)

// generateNewsletter assembles and persists a newsletter from the run's
// summarised articles. Ordering: a manual sort index always wins when both
// articles have one, then ranking tier, then score. Re-running the phase
// after a retry appends a new newsletter rather than rewriting an old one.
// A run with nothing to publish still completes.
func (p *Pipeline) generateNewsletter(ctx context.Context, run *core.Run, log *logBuffer) error {
	kept := true
	articles, err := p.Store.ListArticles(run.ID, store.ArticleFilter{IsKept: &kept})
	if err != nil {
		return err
	}
	summaries, err := p.Store.ListSummaries(run.ID)
	if err != nil {
		return err
	}
	rankings, err := p.Store.ListRankings(run.ID)
	if err != nil {
		return err
	}

	var included []*core.Article
	for _, a := range articles {
		if summaries[a.ID] != nil {
			included = append(included, a)
		}
	}
	if len(included) == 0 {
		log.Add("no summarised articles; nothing to publish")
		return nil
	}

	tier := func(a *core.Article) core.Tier {
		if r := rankings[a.ID]; r != nil {
			return r.Tier
		}
		return ""
	}
	score := func(a *core.Article) float64 {
		if r := rankings[a.ID]; r != nil {
			return r.Score
		}
		return 0
	}

	sort.SliceStable(included, func(i, j int) bool {
		a, b := included[i], included[j]
		if a.SortIndex != nil && b.SortIndex != nil {
			return *a.SortIndex < *b.SortIndex
		}
		if c := core.CompareTiers(tier(a), tier(b)); c != 0 {
			return c < 0
		}
		return score(a) > score(b)
	})

	entries := make([]render.Entry, 0, len(included))
	headlines := make([]string, 0, len(included))
	for _, a := range included {
		sum := summaries[a.ID]
		entry := render.Entry{
			Title:        a.Title,
			URL:          a.URL,
			Domain:       a.Domain,
			Summary:      sum.SummaryText,
			WhyItMatters: sum.WhyItMatters,
			Implications: sum.Implications,
		}
		if r := rankings[a.ID]; r != nil {
			entry.Tier = string(r.Tier)
			entry.Header = r.SuggestedHeader
		}
		entries = append(entries, entry)
		headlines = append(headlines, a.Title)
	}

	intro, err := p.LLM.GenerateText(ctx, introSystemPrompt, introUserPrompt(run.Topic, headlines), llm.Options{})
	if err != nil {
		log.Add("intro generation failed, publishing without one: %v", err)
		intro = ""
	}

	title := run.Name
	if title == "" {
		title = "Newsletter"
	}
	title = fmt.Sprintf("%s (%s)", title, time.Now().UTC().Format("Jan 2, 2006"))

	html, err := render.Newsletter(render.Data{
		Title:   title,
		Intro:   intro,
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("failed to render newsletter: %w", err)
	}

	err = p.Store.CreateNewsletter(&core.Newsletter{
		RunID: run.ID,
		Title: title,
		HTML:  html,
	})
	if err != nil {
		return err
	}

	log.Add("published newsletter %q with %d articles", title, len(entries))
	return nil
}
