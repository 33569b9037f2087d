package pipeline

import (
	"context"
	"sort"
	"sync"

	"newsroom/internal/core"
	"newsroom/internal/llm"
	"newsroom/internal/store"
)

// summariseArticles caps the candidate set to the run's limits and writes a
// structured summary for each survivor. Capping never deletes; dropped
// articles just lose their shortlist flag and receive no summary.
func (p *Pipeline) summariseArticles(ctx context.Context, run *core.Run, log *logBuffer) error {
	eligible, err := p.eligibleArticles(run)
	if err != nil {
		return err
	}
	log.Add("%d articles eligible for summarising", len(eligible))

	rankings, err := p.Store.ListRankings(run.ID)
	if err != nil {
		return err
	}

	survivors, err := p.applyCaps(run, eligible, rankings, log)
	if err != nil {
		return err
	}

	existing, err := p.Store.ListSummaries(run.ID)
	if err != nil {
		return err
	}

	sem := make(chan struct{}, p.LLMWorkers)
	var wg sync.WaitGroup
	var mu sync.Mutex
	summarised := 0

	for _, article := range survivors {
		if existing[article.ID] != nil || article.ContentText == "" {
			continue
		}
		wg.Add(1)
		go func(a *core.Article) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			var out struct {
				SummaryText  string   `json:"summary_text"`
				WhyItMatters []string `json:"why_it_matters"`
				Implications string   `json:"implications"`
			}
			err := p.LLM.GenerateStructured(ctx, summarySystemPrompt,
				summaryUserPrompt(run, a, rankings[a.ID]), summarySchema(), &out, llm.Options{})
			if err != nil {
				log.Add("summary failed for %s, skipping: %v", a.URL, err)
				return
			}

			err = p.Store.CreateSummary(&core.Summary{
				ArticleID:    a.ID,
				SummaryText:  out.SummaryText,
				WhyItMatters: out.WhyItMatters,
				Implications: out.Implications,
			})
			if err != nil {
				log.Add("failed to store summary for %s: %v", a.URL, err)
				return
			}

			mu.Lock()
			summarised++
			mu.Unlock()
		}(article)
	}
	wg.Wait()

	log.Add("summarised %d of %d surviving articles", summarised, len(survivors))
	return nil
}

// eligibleArticles picks the summarisation candidates. When ranking ran to
// completion the shortlist decides; otherwise (disabled or not yet run)
// every kept, relevant, non-duplicate article is eligible.
func (p *Pipeline) eligibleArticles(run *core.Run) ([]*core.Article, error) {
	kept := true

	if run.RankingEnabled {
		rankPhase, err := p.Store.GetPhase(run.ID, core.PhaseRankArticles)
		if err != nil {
			return nil, err
		}
		if rankPhase.Status == core.PhaseCompleted {
			shortlisted := true
			return p.Store.ListArticles(run.ID, store.ArticleFilter{
				IsShortlisted: &shortlisted,
				IsKept:        &kept,
			})
		}
	}

	relevant, notDuplicate := true, false
	return p.Store.ListArticles(run.ID, store.ArticleFilter{
		IsRelevant:  &relevant,
		IsDuplicate: &notDuplicate,
		IsKept:      &kept,
	})
}

// applyCaps enforces the per-domain limit and then the total limit.
// Within a domain, two ranked articles order by score; any pair involving
// an unranked article keeps discovery order. The total cap stable-sorts by
// score with unranked articles comparing equal, so discovery order breaks
// ties.
func (p *Pipeline) applyCaps(run *core.Run, articles []*core.Article, rankings map[string]*core.Ranking, log *logBuffer) ([]*core.Article, error) {
	score := func(a *core.Article) (float64, bool) {
		if r := rankings[a.ID]; r != nil {
			return r.Score, true
		}
		return 0, false
	}

	survivors := articles

	if run.MaxPerDomain > 0 {
		byDomain := make(map[string][]*core.Article)
		var domains []string
		for _, a := range survivors {
			if _, ok := byDomain[a.Domain]; !ok {
				domains = append(domains, a.Domain)
			}
			byDomain[a.Domain] = append(byDomain[a.Domain], a)
		}

		var capped []*core.Article
		for _, domain := range domains {
			group := byDomain[domain]
			sort.SliceStable(group, func(i, j int) bool {
				si, iRanked := score(group[i])
				sj, jRanked := score(group[j])
				if iRanked && jRanked {
					return si > sj
				}
				return false
			})
			if len(group) > run.MaxPerDomain {
				for _, dropped := range group[run.MaxPerDomain:] {
					if err := p.Store.SetArticleShortlisted(dropped.ID, false); err != nil {
						return nil, err
					}
					log.Add("per-domain cap dropped %s (%s over %d)", dropped.URL, domain, run.MaxPerDomain)
				}
				group = group[:run.MaxPerDomain]
			}
			capped = append(capped, group...)
		}
		survivors = capped
	}

	if run.MaxTotalArticles > 0 && len(survivors) > run.MaxTotalArticles {
		sort.SliceStable(survivors, func(i, j int) bool {
			si, _ := score(survivors[i])
			sj, _ := score(survivors[j])
			return si > sj
		})
		for _, dropped := range survivors[run.MaxTotalArticles:] {
			if err := p.Store.SetArticleShortlisted(dropped.ID, false); err != nil {
				return nil, err
			}
			log.Add("total cap dropped %s", dropped.URL)
		}
		survivors = survivors[:run.MaxTotalArticles]
	}

	return survivors, nil
}
