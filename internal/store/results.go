package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"newsroom/internal/core"
)

// CreateRanking inserts the ranking verdict for an article. One verdict per
// article; a second insert for the same article fails on the unique index.
func (s *Store) CreateRanking(r *core.Ranking) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(`INSERT INTO rankings (
		id, article_id, category, score, tier, key_findings, key_entities,
		rationale, suggested_header, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.ArticleID, r.Category, r.Score, string(r.Tier),
		marshalList(r.KeyFindings), marshalList(r.KeyEntities),
		r.Rationale, r.SuggestedHeader, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert ranking: %w", err)
	}
	return nil
}

// ListRankings returns the run's rankings keyed by article ID.
func (s *Store) ListRankings(runID string) (map[string]*core.Ranking, error) {
	rows, err := s.db.Query(`SELECT r.id, r.article_id, r.category, r.score, r.tier,
			r.key_findings, r.key_entities, r.rationale, r.suggested_header, r.created_at
		FROM rankings r
		JOIN articles a ON a.id = r.article_id
		WHERE a.run_id = ?`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rankings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	rankings := make(map[string]*core.Ranking)
	for rows.Next() {
		var r core.Ranking
		var tier, findings, entities string
		err := rows.Scan(&r.ID, &r.ArticleID, &r.Category, &r.Score, &tier,
			&findings, &entities, &r.Rationale, &r.SuggestedHeader, &r.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ranking: %w", err)
		}
		r.Tier = core.Tier(tier)
		r.KeyFindings = unmarshalList(findings)
		r.KeyEntities = unmarshalList(entities)
		rankings[r.ArticleID] = &r
	}
	return rankings, rows.Err()
}

// CreateSummary inserts the structured summary for an article. One summary
// per article; a second insert for the same article fails on the unique
// index.
func (s *Store) CreateSummary(sum *core.Summary) error {
	if sum.ID == "" {
		sum.ID = uuid.New().String()
	}
	if sum.CreatedAt.IsZero() {
		sum.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(`INSERT INTO summaries (
		id, article_id, summary_text, why_it_matters, implications, created_at
	) VALUES (?, ?, ?, ?, ?, ?)`,
		sum.ID, sum.ArticleID, sum.SummaryText,
		marshalList(sum.WhyItMatters), sum.Implications, sum.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert summary: %w", err)
	}
	return nil
}

// ListSummaries returns the run's summaries keyed by article ID.
func (s *Store) ListSummaries(runID string) (map[string]*core.Summary, error) {
	rows, err := s.db.Query(`SELECT s.id, s.article_id, s.summary_text, s.why_it_matters,
			s.implications, s.created_at
		FROM summaries s
		JOIN articles a ON a.id = s.article_id
		WHERE a.run_id = ?`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list summaries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	summaries := make(map[string]*core.Summary)
	for rows.Next() {
		var sum core.Summary
		var whyItMatters string
		err := rows.Scan(&sum.ID, &sum.ArticleID, &sum.SummaryText, &whyItMatters,
			&sum.Implications, &sum.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan summary: %w", err)
		}
		sum.WhyItMatters = unmarshalList(whyItMatters)
		summaries[sum.ArticleID] = &sum
	}
	return summaries, rows.Err()
}

// CountSummaries returns how many articles of the run have a summary.
func (s *Store) CountSummaries(runID string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM summaries s
		JOIN articles a ON a.id = s.article_id
		WHERE a.run_id = ?`, runID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count summaries: %w", err)
	}
	return n, nil
}

// CreateNewsletter appends a rendered newsletter for the run.
func (s *Store) CreateNewsletter(n *core.Newsletter) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(`INSERT INTO newsletters (id, run_id, title, html_content, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		n.ID, n.RunID, n.Title, n.HTML, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert newsletter: %w", err)
	}
	return nil
}

// ListNewsletters returns the run's newsletters, newest first.
func (s *Store) ListNewsletters(runID string) ([]*core.Newsletter, error) {
	rows, err := s.db.Query(`SELECT id, run_id, title, html_content, created_at
		FROM newsletters WHERE run_id = ? ORDER BY created_at DESC, id DESC`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list newsletters: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var newsletters []*core.Newsletter
	for rows.Next() {
		var n core.Newsletter
		if err := rows.Scan(&n.ID, &n.RunID, &n.Title, &n.HTML, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan newsletter: %w", err)
		}
		newsletters = append(newsletters, &n)
	}
	return newsletters, rows.Err()
}

// CountNewsletters returns how many newsletters exist for the run.
func (s *Store) CountNewsletters(runID string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM newsletters WHERE run_id = ?`, runID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count newsletters: %w", err)
	}
	return n, nil
}
