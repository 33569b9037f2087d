package pipeline

import (
	"context"

	"newsroom/internal/core"
	"newsroom/internal/store"
)

// saveArticles finalizes the run: records the final counts in the phase log
// and moves the run to completed. The article and newsletter rows are
// already persisted by earlier phases; this is the bookkeeping barrier that
// marks the run as a whole done.
func (p *Pipeline) saveArticles(ctx context.Context, run *core.Run, log *logBuffer) error {
	kept := true
	keptArticles, err := p.Store.ListArticles(run.ID, store.ArticleFilter{IsKept: &kept})
	if err != nil {
		return err
	}
	summaryCount, err := p.Store.CountSummaries(run.ID)
	if err != nil {
		return err
	}
	newsletterCount, err := p.Store.CountNewsletters(run.ID)
	if err != nil {
		return err
	}

	log.Add("run finished: %d kept articles, %d summaries, %d newsletters",
		len(keptArticles), summaryCount, newsletterCount)
	log.Add("export available at /api/runs/%s/export/json", run.ID)

	return p.Store.UpdateRunStatus(run.ID, core.RunCompleted)
}
