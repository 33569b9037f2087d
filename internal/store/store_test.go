package store

import (
	"errors"
	"testing"
	"time"

	"newsroom/internal/core"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestRun(t *testing.T, s *Store) *core.Run {
	t.Helper()
	run := &core.Run{
		Name:             "weekly ai",
		Topic:            "AI infrastructure",
		Keywords:         []string{"inference", "gpu"},
		LookbackDays:     7,
		Mode:             core.ModeAuto,
		MinFitScore:      6.0,
		MaxTotalArticles: 12,
		MaxPerDomain:     4,
		RankingEnabled:   true,
	}
	if err := s.CreateRun(run); err != nil {
		t.Fatalf("Failed to create run: %v", err)
	}
	return run
}

func TestCreateRunSeedsPhases(t *testing.T) {
	s := newTestStore(t)
	run := newTestRun(t, s)

	got, err := s.GetRun(run.ID)
	if err != nil {
		t.Fatalf("Failed to get run: %v", err)
	}
	if got.Topic != "AI infrastructure" || got.Status != core.RunCreated {
		t.Errorf("Unexpected run: %+v", got)
	}
	if len(got.Keywords) != 2 || got.Keywords[0] != "inference" {
		t.Errorf("Keywords did not round-trip: %v", got.Keywords)
	}

	phases, err := s.ListPhases(run.ID)
	if err != nil {
		t.Fatalf("Failed to list phases: %v", err)
	}
	if len(phases) != len(core.PhaseOrder) {
		t.Fatalf("Expected %d phases, got %d", len(core.PhaseOrder), len(phases))
	}
	for i, phase := range phases {
		if phase.Name != core.PhaseOrder[i] {
			t.Errorf("Phase %d = %s, want %s", i, phase.Name, core.PhaseOrder[i])
		}
		if phase.Status != core.PhasePending {
			t.Errorf("Phase %s should start pending, got %s", phase.Name, phase.Status)
		}
	}
}

func TestGetRunNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetRun("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestBeginPhaseTransitions(t *testing.T) {
	s := newTestStore(t)
	run := newTestRun(t, s)
	name := core.PhaseSourceArticles

	if err := s.BeginPhase(run.ID, name); err != nil {
		t.Fatalf("Begin from pending should succeed: %v", err)
	}
	if err := s.BeginPhase(run.ID, name); !errors.Is(err, ErrPhaseConflict) {
		t.Errorf("Begin while in_progress should conflict, got %v", err)
	}

	if err := s.FailPhase(run.ID, name, "log line", "boom"); err != nil {
		t.Fatalf("Failed to fail phase: %v", err)
	}
	if err := s.BeginPhase(run.ID, name); err != nil {
		t.Errorf("Begin from failed should succeed (retry), got %v", err)
	}
	phase, err := s.GetPhase(run.ID, name)
	if err != nil {
		t.Fatalf("Failed to get phase: %v", err)
	}
	if phase.Error != "" {
		t.Errorf("Retry should clear the stored error, got %q", phase.Error)
	}

	if err := s.CompletePhase(run.ID, name, "done"); err != nil {
		t.Fatalf("Failed to complete phase: %v", err)
	}
	if err := s.BeginPhase(run.ID, name); !errors.Is(err, ErrPhaseConflict) {
		t.Errorf("Begin after completed should conflict, got %v", err)
	}
	phase, _ = s.GetPhase(run.ID, name)
	if phase.Status != core.PhaseCompleted || phase.CompletedAt == nil {
		t.Errorf("Unexpected completed phase: %+v", phase)
	}
}

func TestBeginPhaseUnknownRun(t *testing.T) {
	s := newTestStore(t)
	if err := s.BeginPhase("missing", core.PhaseGrabArticles); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestSkipPhase(t *testing.T) {
	s := newTestStore(t)
	run := newTestRun(t, s)

	if err := s.SkipPhase(run.ID, core.PhaseRankArticles, "ranking disabled"); err != nil {
		t.Fatalf("Failed to skip phase: %v", err)
	}
	phase, err := s.GetPhase(run.ID, core.PhaseRankArticles)
	if err != nil {
		t.Fatalf("Failed to get phase: %v", err)
	}
	if phase.Status != core.PhaseSkipped || phase.Logs != "ranking disabled" {
		t.Errorf("Unexpected skipped phase: %+v", phase)
	}
}

func TestInsertArticlesSkipsDuplicateURLs(t *testing.T) {
	s := newTestStore(t)
	run := newTestRun(t, s)

	first := []*core.Article{
		{URL: "https://example.com/a", Title: "A", Domain: "example.com"},
		{URL: "https://example.com/b", Title: "B", Domain: "example.com"},
	}
	n, err := s.InsertArticles(run.ID, first)
	if err != nil {
		t.Fatalf("Failed to insert articles: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 inserted, got %d", n)
	}

	second := []*core.Article{
		{URL: "https://example.com/a", Title: "A again", Domain: "example.com"},
		{URL: "https://example.com/c", Title: "C", Domain: "example.com"},
	}
	n, err = s.InsertArticles(run.ID, second)
	if err != nil {
		t.Fatalf("Failed to insert second batch: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 inserted (one duplicate URL), got %d", n)
	}

	articles, err := s.ListArticles(run.ID, ArticleFilter{})
	if err != nil {
		t.Fatalf("Failed to list articles: %v", err)
	}
	if len(articles) != 3 {
		t.Errorf("Expected 3 articles total, got %d", len(articles))
	}
}

func TestListArticlesFilterAndOrder(t *testing.T) {
	s := newTestStore(t)
	run := newTestRun(t, s)

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	articles := []*core.Article{
		{URL: "https://a.example/one", DiscoveredAt: base},
		{URL: "https://a.example/two", DiscoveredAt: base.Add(time.Minute)},
		{URL: "https://a.example/three", DiscoveredAt: base.Add(2 * time.Minute)},
	}
	if _, err := s.InsertArticles(run.ID, articles); err != nil {
		t.Fatalf("Failed to insert articles: %v", err)
	}

	// A manual sort index moves the newest article to the front.
	idx := 0
	if err := s.SetArticleSortIndex(articles[2].ID, &idx); err != nil {
		t.Fatalf("Failed to set sort index: %v", err)
	}

	got, err := s.ListArticles(run.ID, ArticleFilter{})
	if err != nil {
		t.Fatalf("Failed to list articles: %v", err)
	}
	if got[0].URL != "https://a.example/three" {
		t.Errorf("Sort index override should come first, got %s", got[0].URL)
	}
	if got[1].URL != "https://a.example/one" || got[2].URL != "https://a.example/two" {
		t.Errorf("Remaining articles should keep discovery order: %s, %s", got[1].URL, got[2].URL)
	}

	if err := s.SetArticleRelevant(articles[0].ID, true); err != nil {
		t.Fatalf("Failed to set relevancy: %v", err)
	}
	unset, err := s.ListArticles(run.ID, ArticleFilter{RelevantUnset: true})
	if err != nil {
		t.Fatalf("Failed to list unset articles: %v", err)
	}
	if len(unset) != 2 {
		t.Errorf("Expected 2 articles without a verdict, got %d", len(unset))
	}

	relevant := true
	withVerdict, err := s.ListArticles(run.ID, ArticleFilter{IsRelevant: &relevant})
	if err != nil {
		t.Fatalf("Failed to list relevant articles: %v", err)
	}
	if len(withVerdict) != 1 || withVerdict[0].ID != articles[0].ID {
		t.Errorf("Unexpected relevant set: %+v", withVerdict)
	}
}

func TestArticleContentLifecycle(t *testing.T) {
	s := newTestStore(t)
	run := newTestRun(t, s)

	articles := []*core.Article{
		{URL: "https://example.com/good"},
		{URL: "https://example.com/bad"},
	}
	if _, err := s.InsertArticles(run.ID, articles); err != nil {
		t.Fatalf("Failed to insert articles: %v", err)
	}

	published := time.Date(2025, 5, 30, 12, 0, 0, 0, time.UTC)
	err := s.UpdateArticleContent(articles[0].ID, "Good Story", "body text", "https://example.com/good-canonical", 2, &published)
	if err != nil {
		t.Fatalf("Failed to update content: %v", err)
	}
	if err := s.MarkArticleFetchFailed(articles[1].ID); err != nil {
		t.Fatalf("Failed to mark fetch failure: %v", err)
	}

	good, err := s.GetArticle(articles[0].ID)
	if err != nil {
		t.Fatalf("Failed to get article: %v", err)
	}
	if !good.IsFetched || !good.IsKept || good.CanonicalURL != "https://example.com/good-canonical" {
		t.Errorf("Unexpected fetched article: %+v", good)
	}
	if good.PublishDate == nil || !good.PublishDate.Equal(published) {
		t.Errorf("Publish date did not round-trip: %v", good.PublishDate)
	}

	bad, _ := s.GetArticle(articles[1].ID)
	if !bad.IsFetched || bad.IsKept {
		t.Errorf("Failed fetch should be fetched but not kept: %+v", bad)
	}

	if err := s.MarkArticleDuplicate(articles[1].ID, articles[0].ID); err != nil {
		t.Fatalf("Failed to mark duplicate: %v", err)
	}
	bad, _ = s.GetArticle(articles[1].ID)
	if !bad.IsDuplicate || bad.DuplicateOfID != articles[0].ID {
		t.Errorf("Unexpected duplicate flags: %+v", bad)
	}
}

func TestRankingsAndSummaries(t *testing.T) {
	s := newTestStore(t)
	run := newTestRun(t, s)

	articles := []*core.Article{{URL: "https://example.com/x"}}
	if _, err := s.InsertArticles(run.ID, articles); err != nil {
		t.Fatalf("Failed to insert article: %v", err)
	}
	articleID := articles[0].ID

	err := s.CreateRanking(&core.Ranking{
		ArticleID:   articleID,
		Score:       8.5,
		Tier:        core.TierEssential,
		KeyFindings: []string{"finding"},
	})
	if err != nil {
		t.Fatalf("Failed to create ranking: %v", err)
	}
	if err := s.CreateRanking(&core.Ranking{ArticleID: articleID, Score: 1, Tier: core.TierOptional}); err == nil {
		t.Error("Second ranking for the same article should fail")
	}

	rankings, err := s.ListRankings(run.ID)
	if err != nil {
		t.Fatalf("Failed to list rankings: %v", err)
	}
	if r := rankings[articleID]; r == nil || r.Score != 8.5 || r.Tier != core.TierEssential {
		t.Errorf("Unexpected ranking: %+v", rankings[articleID])
	}

	err = s.CreateSummary(&core.Summary{
		ArticleID:    articleID,
		SummaryText:  "short summary",
		WhyItMatters: []string{"because"},
	})
	if err != nil {
		t.Fatalf("Failed to create summary: %v", err)
	}

	summaries, err := s.ListSummaries(run.ID)
	if err != nil {
		t.Fatalf("Failed to list summaries: %v", err)
	}
	if sum := summaries[articleID]; sum == nil || sum.SummaryText != "short summary" {
		t.Errorf("Unexpected summary: %+v", summaries[articleID])
	}

	n, err := s.CountSummaries(run.ID)
	if err != nil {
		t.Fatalf("Failed to count summaries: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 summary, got %d", n)
	}
}

func TestNewslettersAppend(t *testing.T) {
	s := newTestStore(t)
	run := newTestRun(t, s)

	for i, title := range []string{"first issue", "second issue"} {
		err := s.CreateNewsletter(&core.Newsletter{
			RunID:     run.ID,
			Title:     title,
			HTML:      "<html></html>",
			CreatedAt: time.Date(2025, 6, 1, i, 0, 0, 0, time.UTC),
		})
		if err != nil {
			t.Fatalf("Failed to create newsletter: %v", err)
		}
	}

	newsletters, err := s.ListNewsletters(run.ID)
	if err != nil {
		t.Fatalf("Failed to list newsletters: %v", err)
	}
	if len(newsletters) != 2 {
		t.Fatalf("Expected 2 newsletters, got %d", len(newsletters))
	}
	if newsletters[0].Title != "second issue" {
		t.Errorf("Expected newest first, got %s", newsletters[0].Title)
	}

	n, err := s.CountNewsletters(run.ID)
	if err != nil {
		t.Fatalf("Failed to count newsletters: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected count 2, got %d", n)
	}
}

func TestProfileRoundTrip(t *testing.T) {
	s := newTestStore(t)

	p := &core.Profile{
		Name:              "ai-weekly",
		DefaultSourceURLs: []string{"https://example.com/feed.xml"},
		DefaultKeywords:   []string{"llm"},
	}
	if err := s.CreateProfile(p); err != nil {
		t.Fatalf("Failed to create profile: %v", err)
	}

	got, err := s.GetProfile(p.ID)
	if err != nil {
		t.Fatalf("Failed to get profile: %v", err)
	}
	if got.Name != "ai-weekly" || len(got.DefaultSourceURLs) != 1 {
		t.Errorf("Profile did not round-trip: %+v", got)
	}

	profiles, err := s.ListProfiles()
	if err != nil {
		t.Fatalf("Failed to list profiles: %v", err)
	}
	if len(profiles) != 1 {
		t.Errorf("Expected 1 profile, got %d", len(profiles))
	}

	if err := s.DeleteProfile(p.ID); err != nil {
		t.Fatalf("Failed to delete profile: %v", err)
	}
	if _, err := s.GetProfile(p.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
}

func TestUpdateRunLists(t *testing.T) {
	s := newTestStore(t)
	run := newTestRun(t, s)

	if err := s.UpdateRunKeywords(run.ID, []string{"new", "terms"}); err != nil {
		t.Fatalf("Failed to update keywords: %v", err)
	}
	if err := s.UpdateRunSourceURLs(run.ID, []string{"https://example.org/feed"}); err != nil {
		t.Fatalf("Failed to update source urls: %v", err)
	}
	if err := s.UpdateRunStatus(run.ID, core.RunRunning); err != nil {
		t.Fatalf("Failed to update status: %v", err)
	}

	got, _ := s.GetRun(run.ID)
	if len(got.Keywords) != 2 || got.Keywords[1] != "terms" {
		t.Errorf("Keywords not updated: %v", got.Keywords)
	}
	if len(got.SourceURLs) != 1 || got.Status != core.RunRunning {
		t.Errorf("Run not updated: %+v", got)
	}
}
