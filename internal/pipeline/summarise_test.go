package pipeline

import (
	"fmt"
	"testing"

	"newsroom/internal/core"
	"newsroom/internal/store"
)

func insertShortlisted(t *testing.T, s *store.Store, runID, url, title string) *core.Article {
	t.Helper()
	a := insertKeptArticle(t, s, runID, url, title, "")
	if err := s.SetArticleShortlisted(a.ID, true); err != nil {
		t.Fatalf("Failed to shortlist: %v", err)
	}
	return a
}

func TestApplyCapsPerDomain(t *testing.T) {
	p, s, _, _ := newTestPipeline(t)
	run := createRun(t, s, &core.Run{Topic: "caps", MaxPerDomain: 2, MaxTotalArticles: 100})

	// 10 articles across 3 domains: 4 + 4 + 2.
	domains := []string{"a.example", "a.example", "a.example", "a.example",
		"b.example", "b.example", "b.example", "b.example",
		"c.example", "c.example"}
	scores := []float64{9, 5, 7, 8, 4, 6, 3, 2, 5, 5}

	rankings := make(map[string]*core.Ranking)
	var articles []*core.Article
	for i, domain := range domains {
		a := insertShortlisted(t, s, run.ID,
			fmt.Sprintf("https://%s/post-%d", domain, i),
			fmt.Sprintf("Distinct Story Number %d", i))
		a.Domain = domain
		articles = append(articles, a)
		rankings[a.ID] = &core.Ranking{ArticleID: a.ID, Score: scores[i], Tier: core.TierImportant}
	}

	survivors, err := p.applyCaps(run, articles, rankings, &logBuffer{})
	if err != nil {
		t.Fatalf("applyCaps failed: %v", err)
	}
	if len(survivors) != 6 {
		t.Fatalf("Expected 6 survivors (2 per domain), got %d", len(survivors))
	}

	perDomain := make(map[string]int)
	for _, a := range survivors {
		perDomain[a.Domain]++
	}
	for domain, n := range perDomain {
		if n > 2 {
			t.Errorf("Domain %s kept %d articles, cap is 2", domain, n)
		}
	}

	// Highest-scored articles of the crowded domain survive.
	wantSurvive := map[string]bool{articles[0].ID: true, articles[3].ID: true}
	for _, a := range survivors {
		if a.Domain == "a.example" && !wantSurvive[a.ID] {
			t.Errorf("Unexpected a.example survivor with score %.0f", rankings[a.ID].Score)
		}
	}

	// Dropped articles lose the shortlist flag but stay in the run.
	dropped, _ := s.GetArticle(articles[1].ID)
	if dropped.IsShortlisted {
		t.Error("Dropped article should lose its shortlist flag")
	}
	all, _ := s.ListArticles(run.ID, store.ArticleFilter{})
	if len(all) != 10 {
		t.Errorf("Capping must not delete; expected 10 rows, got %d", len(all))
	}
}

func TestApplyCapsTotal(t *testing.T) {
	p, s, _, _ := newTestPipeline(t)
	run := createRun(t, s, &core.Run{Topic: "caps", MaxPerDomain: 100, MaxTotalArticles: 3})

	scores := []float64{5, 9, 7, 8, 6}
	rankings := make(map[string]*core.Ranking)
	var articles []*core.Article
	for i, score := range scores {
		a := insertShortlisted(t, s, run.ID,
			fmt.Sprintf("https://site-%d.example/story", i),
			fmt.Sprintf("Totally Different Headline %d", i))
		articles = append(articles, a)
		rankings[a.ID] = &core.Ranking{ArticleID: a.ID, Score: score, Tier: core.TierImportant}
	}

	survivors, err := p.applyCaps(run, articles, rankings, &logBuffer{})
	if err != nil {
		t.Fatalf("applyCaps failed: %v", err)
	}
	if len(survivors) != 3 {
		t.Fatalf("Expected 3 survivors, got %d", len(survivors))
	}

	got := map[string]bool{}
	for _, a := range survivors {
		got[a.ID] = true
	}
	for _, want := range []int{1, 3, 2} { // scores 9, 8, 7
		if !got[articles[want].ID] {
			t.Errorf("Expected article with score %.0f to survive", scores[want])
		}
	}

	for _, idx := range []int{0, 4} { // scores 5 and 6
		a, _ := s.GetArticle(articles[idx].ID)
		if a.IsShortlisted {
			t.Errorf("Dropped article (score %.0f) should lose its shortlist flag", scores[idx])
		}
	}
}

func TestApplyCapsUnrankedKeepDiscoveryOrder(t *testing.T) {
	p, s, _, _ := newTestPipeline(t)
	run := createRun(t, s, &core.Run{Topic: "caps", MaxPerDomain: 100, MaxTotalArticles: 2})

	var articles []*core.Article
	for i := 0; i < 4; i++ {
		a := insertKeptArticle(t, s, run.ID,
			fmt.Sprintf("https://site-%d.example/story", i),
			fmt.Sprintf("Unranked Headline Variant %d", i), "")
		articles = append(articles, a)
	}

	survivors, err := p.applyCaps(run, articles, map[string]*core.Ranking{}, &logBuffer{})
	if err != nil {
		t.Fatalf("applyCaps failed: %v", err)
	}
	if len(survivors) != 2 {
		t.Fatalf("Expected 2 survivors, got %d", len(survivors))
	}
	if survivors[0].ID != articles[0].ID || survivors[1].ID != articles[1].ID {
		t.Error("Unranked articles should be capped in discovery order")
	}
}

func TestEligibleArticlesFallback(t *testing.T) {
	p, s, _, _ := newTestPipeline(t)
	run := createRun(t, s, &core.Run{Topic: "fallback", RankingEnabled: false})

	kept := insertKeptArticle(t, s, run.ID, "https://example.com/kept", "Kept Story Headline", "")
	dup := insertKeptArticle(t, s, run.ID, "https://example.com/dup", "Another Different Headline", "")
	if err := s.MarkArticleDuplicate(dup.ID, kept.ID); err != nil {
		t.Fatalf("Failed to mark duplicate: %v", err)
	}

	eligible, err := p.eligibleArticles(run)
	if err != nil {
		t.Fatalf("eligibleArticles failed: %v", err)
	}
	if len(eligible) != 1 || eligible[0].ID != kept.ID {
		t.Errorf("Fallback eligibility should keep only the non-duplicate article: %+v", eligible)
	}
}

func TestEligibleArticlesShortlist(t *testing.T) {
	p, s, _, _ := newTestPipeline(t)
	run := createRun(t, s, &core.Run{Topic: "shortlist", RankingEnabled: true})

	listed := insertShortlisted(t, s, run.ID, "https://example.com/listed", "Shortlisted Story Headline")
	insertKeptArticle(t, s, run.ID, "https://example.com/unlisted", "Unlisted Different Headline", "")

	if err := s.CompletePhase(run.ID, core.PhaseRankArticles, "done"); err != nil {
		t.Fatalf("Failed to complete rank phase: %v", err)
	}

	eligible, err := p.eligibleArticles(run)
	if err != nil {
		t.Fatalf("eligibleArticles failed: %v", err)
	}
	if len(eligible) != 1 || eligible[0].ID != listed.ID {
		t.Errorf("Completed ranking should restrict eligibility to the shortlist: %+v", eligible)
	}
}
