package pipeline

import (
	"context"
	"sync"
	"time"

	"newsroom/internal/core"
	"newsroom/internal/feeds"
	"newsroom/internal/fetch"
	"newsroom/internal/urlutil"
)

// sourceArticles discovers candidate articles. A run with specific URLs
// uses them verbatim; otherwise every source URL is fetched under the fetch
// pool and treated as a feed or an HTML index page. Per-source failures are
// logged and the phase continues.
func (p *Pipeline) sourceArticles(ctx context.Context, run *core.Run, log *logBuffer) error {
	var candidates []*core.Article

	if len(run.SpecificURLs) > 0 {
		for _, raw := range run.SpecificURLs {
			norm := urlutil.Normalize(raw)
			candidates = append(candidates, &core.Article{
				URL:    norm,
				Domain: urlutil.Domain(norm),
			})
		}
		log.Add("using %d specific urls verbatim", len(candidates))
	} else {
		var cutoff time.Time
		if run.LookbackDays > 0 {
			cutoff = time.Now().UTC().AddDate(0, 0, -run.LookbackDays)
		}

		sem := make(chan struct{}, p.FetchWorkers)
		var wg sync.WaitGroup
		var mu sync.Mutex

		for _, src := range run.SourceURLs {
			wg.Add(1)
			go func(src string) {
				defer wg.Done()
				sem <- struct{}{}
				defer func() { <-sem }()

				found, err := p.collectFromSource(ctx, src, cutoff)
				if err != nil {
					log.Add("source %s failed: %v", src, err)
					return
				}
				log.Add("source %s yielded %d candidates", src, len(found))

				mu.Lock()
				candidates = append(candidates, found...)
				mu.Unlock()
			}(src)
		}
		wg.Wait()
	}

	// Dedupe the batch by normalized URL before hitting the store; the
	// unique index catches overlaps with earlier batches.
	seen := make(map[string]struct{}, len(candidates))
	unique := make([]*core.Article, 0, len(candidates))
	for _, c := range candidates {
		if c.URL == "" {
			continue
		}
		if _, dup := seen[c.URL]; dup {
			continue
		}
		seen[c.URL] = struct{}{}
		unique = append(unique, c)
	}

	inserted, err := p.Store.InsertArticles(run.ID, unique)
	if err != nil {
		return err
	}
	log.Add("inserted %d new articles from %d unique candidates", inserted, len(unique))
	return nil
}

// collectFromSource fetches one source URL and extracts candidates from it.
// Feed items older than the lookback cutoff are dropped; items without a
// publish date are kept.
func (p *Pipeline) collectFromSource(ctx context.Context, src string, cutoff time.Time) ([]*core.Article, error) {
	body, err := p.Fetcher.FetchHTML(ctx, src)
	if err != nil {
		return nil, err
	}

	var out []*core.Article

	if feeds.IsFeed(body) {
		items, err := feeds.Parse(body)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			if item.URL == "" {
				continue
			}
			if !cutoff.IsZero() && item.Published != nil && item.Published.Before(cutoff) {
				continue
			}
			norm := urlutil.Normalize(item.URL)
			out = append(out, &core.Article{
				URL:         norm,
				Title:       item.Title,
				Domain:      urlutil.Domain(norm),
				SourceURL:   src,
				PublishDate: item.Published,
			})
		}
		return out, nil
	}

	for _, link := range fetch.ExtractLinks(body, src) {
		norm := urlutil.Normalize(link)
		out = append(out, &core.Article{
			URL:       norm,
			Domain:    urlutil.Domain(norm),
			SourceURL: src,
		})
	}
	return out, nil
}
