package pipeline

import (
	"context"
	"sync"

	"newsroom/internal/core"
	"newsroom/internal/llm"
	"newsroom/internal/store"
)

// rankArticles asks the model for an editorial verdict on every kept,
// relevant, non-duplicate article with content. Articles scoring at or
// above the run's minimum fit score are shortlisted. A failed verdict
// leaves the article unranked; it can still reach the newsletter through
// the fallback eligibility path.
func (p *Pipeline) rankArticles(ctx context.Context, run *core.Run, log *logBuffer) error {
	if !run.RankingEnabled {
		return skipPhase("ranking disabled for this run")
	}

	relevant, notDuplicate, kept := true, false, true
	articles, err := p.Store.ListArticles(run.ID, store.ArticleFilter{
		IsRelevant:  &relevant,
		IsDuplicate: &notDuplicate,
		IsKept:      &kept,
		HasContent:  true,
	})
	if err != nil {
		return err
	}

	existing, err := p.Store.ListRankings(run.ID)
	if err != nil {
		return err
	}

	sem := make(chan struct{}, p.LLMWorkers)
	var wg sync.WaitGroup
	var mu sync.Mutex
	ranked, shortlisted := 0, 0

	for _, article := range articles {
		if existing[article.ID] != nil {
			continue
		}
		wg.Add(1)
		go func(a *core.Article) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			var out struct {
				Category        string   `json:"category"`
				Score           float64  `json:"score"`
				Tier            string   `json:"tier"`
				KeyFindings     []string `json:"key_findings"`
				KeyEntities     []string `json:"key_entities"`
				Rationale       string   `json:"rationale"`
				SuggestedHeader string   `json:"suggested_header"`
			}
			err := p.LLM.GenerateStructured(ctx, rankingSystemPrompt, rankingUserPrompt(run, a),
				rankingSchema(), &out, llm.Options{})
			if err != nil {
				log.Add("ranking failed for %s, leaving unranked: %v", a.URL, err)
				return
			}

			err = p.Store.CreateRanking(&core.Ranking{
				ArticleID:       a.ID,
				Category:        out.Category,
				Score:           out.Score,
				Tier:            core.Tier(out.Tier),
				KeyFindings:     out.KeyFindings,
				KeyEntities:     out.KeyEntities,
				Rationale:       out.Rationale,
				SuggestedHeader: out.SuggestedHeader,
			})
			if err != nil {
				log.Add("failed to store ranking for %s: %v", a.URL, err)
				return
			}

			mu.Lock()
			ranked++
			mu.Unlock()

			if out.Score >= run.MinFitScore {
				if err := p.Store.SetArticleShortlisted(a.ID, true); err != nil {
					log.Add("failed to shortlist %s: %v", a.URL, err)
					return
				}
				mu.Lock()
				shortlisted++
				mu.Unlock()
			}
		}(article)
	}
	wg.Wait()

	log.Add("ranked %d of %d articles, shortlisted %d (min fit score %.1f)",
		ranked, len(articles), shortlisted, run.MinFitScore)
	return nil
}
