package pipeline

import (
	"context"
	"sync"

	"newsroom/internal/core"
	"newsroom/internal/fetch"
	"newsroom/internal/llm"
	"newsroom/internal/similarity"
	"newsroom/internal/store"
	"newsroom/internal/urlutil"
)

// grabArticles runs three sequential stages over the run's candidates:
// fetch and extract content, screen for relevancy, and flag duplicates.
// Each stage finishes completely before the next starts.
func (p *Pipeline) grabArticles(ctx context.Context, run *core.Run, log *logBuffer) error {
	if err := p.fetchStage(ctx, run, log); err != nil {
		return err
	}
	if err := p.relevancyStage(ctx, run, log); err != nil {
		return err
	}
	return p.dedupStage(run, log)
}

// fetchStage downloads every unfetched article under the fetch pool. A
// failed fetch is terminal for the article: it stays in the run with
// is_fetched set and is_kept cleared.
func (p *Pipeline) fetchStage(ctx context.Context, run *core.Run, log *logBuffer) error {
	notFetched := false
	pending, err := p.Store.ListArticles(run.ID, store.ArticleFilter{IsFetched: &notFetched})
	if err != nil {
		return err
	}

	sem := make(chan struct{}, p.FetchWorkers)
	var wg sync.WaitGroup

	for _, article := range pending {
		wg.Add(1)
		go func(a *core.Article) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			body, err := p.Fetcher.FetchHTML(ctx, a.URL)
			if err != nil {
				log.Add("fetch failed for %s: %v", a.URL, err)
				if serr := p.Store.MarkArticleFetchFailed(a.ID); serr != nil {
					log.Add("failed to record fetch failure for %s: %v", a.URL, serr)
				}
				return
			}

			content := fetch.ExtractContent(body, a.URL)
			canonical := ""
			if content.CanonicalURL != "" {
				canonical = urlutil.Normalize(content.CanonicalURL)
			}
			title := content.Title
			if title == "" {
				title = a.Title
			}

			err = p.Store.UpdateArticleContent(a.ID, title, content.TextContent, canonical,
				fetch.WordCount(content.TextContent), content.PublishDate)
			if err != nil {
				log.Add("failed to store content for %s: %v", a.URL, err)
			}
		}(article)
	}
	wg.Wait()

	log.Add("fetch stage processed %d articles", len(pending))
	return nil
}

// relevancyStage asks the model whether each fetched article fits the
// run's topic. A failed call falls open to relevant so a flaky model never
// silently discards content. Runs with no topic and no keywords have
// nothing to screen against and keep everything.
func (p *Pipeline) relevancyStage(ctx context.Context, run *core.Run, log *logBuffer) error {
	kept := true
	unjudged, err := p.Store.ListArticles(run.ID, store.ArticleFilter{
		IsKept:        &kept,
		RelevantUnset: true,
	})
	if err != nil {
		return err
	}

	if run.Topic == "" && len(run.Keywords) == 0 {
		for _, a := range unjudged {
			if err := p.Store.SetArticleRelevant(a.ID, true); err != nil {
				return err
			}
		}
		log.Add("no topic or keywords; kept all %d articles without screening", len(unjudged))
		return nil
	}

	sem := make(chan struct{}, p.LLMWorkers)
	var wg sync.WaitGroup

	for _, article := range unjudged {
		wg.Add(1)
		go func(a *core.Article) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			relevant := p.assessRelevancy(ctx, run, a, log)
			if err := p.Store.SetArticleRelevant(a.ID, relevant); err != nil {
				log.Add("failed to store relevancy for %s: %v", a.URL, err)
			}
		}(article)
	}
	wg.Wait()

	log.Add("relevancy stage screened %d articles", len(unjudged))
	return nil
}

func (p *Pipeline) assessRelevancy(ctx context.Context, run *core.Run, a *core.Article, log *logBuffer) bool {
	var out struct {
		IsRelevant bool   `json:"is_relevant"`
		Reason     string `json:"reason"`
	}
	err := p.LLM.GenerateStructured(ctx, relevancySystemPrompt, relevancyUserPrompt(run, a),
		relevancySchema(), &out, llm.Options{})
	if err != nil {
		log.Add("relevancy check failed for %s, assuming relevant: %v", a.URL, err)
		return true
	}
	if !out.IsRelevant {
		log.Add("not relevant: %s (%s)", a.URL, out.Reason)
	}
	return out.IsRelevant
}

// dedupStage flags duplicates among the kept, relevant articles in two
// passes: exact match on canonical-or-normalized URL, then pairwise title
// similarity above the threshold. The earlier-discovered article always
// wins; losers are flagged with a back-reference, never deleted.
func (p *Pipeline) dedupStage(run *core.Run, log *logBuffer) error {
	relevant, notDuplicate, kept := true, false, true
	articles, err := p.Store.ListArticles(run.ID, store.ArticleFilter{
		IsRelevant:  &relevant,
		IsDuplicate: &notDuplicate,
		IsKept:      &kept,
	})
	if err != nil {
		return err
	}

	flagged := 0

	firstByKey := make(map[string]*core.Article)
	var survivors []*core.Article
	for _, a := range articles {
		key := a.CanonicalURL
		if key == "" {
			key = a.URL
		}
		if first, ok := firstByKey[key]; ok {
			if err := p.Store.MarkArticleDuplicate(a.ID, first.ID); err != nil {
				return err
			}
			log.Add("duplicate url: %s duplicates %s", a.URL, first.URL)
			flagged++
			continue
		}
		firstByKey[key] = a
		survivors = append(survivors, a)
	}

	lost := make([]bool, len(survivors))
	for i := 0; i < len(survivors); i++ {
		if lost[i] || survivors[i].Title == "" {
			continue
		}
		for j := i + 1; j < len(survivors); j++ {
			if lost[j] || survivors[j].Title == "" {
				continue
			}
			score := similarity.TitleSimilarity(survivors[i].Title, survivors[j].Title)
			if score > similarity.DuplicateThreshold {
				if err := p.Store.MarkArticleDuplicate(survivors[j].ID, survivors[i].ID); err != nil {
					return err
				}
				log.Add("duplicate title (%.2f): %q duplicates %q", score, survivors[j].Title, survivors[i].Title)
				lost[j] = true
				flagged++
			}
		}
	}

	log.Add("dedup flagged %d of %d articles", flagged, len(articles))
	return nil
}
