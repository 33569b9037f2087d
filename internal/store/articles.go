package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"newsroom/internal/core"
)

const articleColumns = `id, run_id, url, canonical_url, source_url, title, domain,
	word_count, content_text, publish_date, is_fetched, is_relevant,
	is_duplicate, is_kept, is_shortlisted, duplicate_of_id, sort_index, discovered_at`

func scanArticle(row interface{ Scan(...any) error }) (*core.Article, error) {
	var a core.Article
	var publishDate sql.NullTime
	var isRelevant sql.NullBool
	var sortIndex sql.NullInt64
	err := row.Scan(&a.ID, &a.RunID, &a.URL, &a.CanonicalURL, &a.SourceURL, &a.Title, &a.Domain,
		&a.WordCount, &a.ContentText, &publishDate, &a.IsFetched, &isRelevant,
		&a.IsDuplicate, &a.IsKept, &a.IsShortlisted, &a.DuplicateOfID, &sortIndex, &a.DiscoveredAt)
	if err != nil {
		return nil, err
	}
	a.PublishDate = timePtr(publishDate)
	if isRelevant.Valid {
		v := isRelevant.Bool
		a.IsRelevant = &v
	}
	if sortIndex.Valid {
		v := int(sortIndex.Int64)
		a.SortIndex = &v
	}
	return &a, nil
}

// InsertArticles inserts candidates, silently skipping any whose normalized
// URL already exists for the run. It returns how many rows were actually
// inserted. IDs and discovery timestamps are filled in on the inserted
// entries.
func (s *Store) InsertArticles(runID string, articles []*core.Article) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	inserted := 0
	for _, a := range articles {
		if a.ID == "" {
			a.ID = uuid.New().String()
		}
		if a.DiscoveredAt.IsZero() {
			a.DiscoveredAt = time.Now().UTC()
		}
		a.RunID = runID

		res, err := tx.Exec(`INSERT OR IGNORE INTO articles (
			id, run_id, url, canonical_url, source_url, title, domain,
			word_count, content_text, publish_date, is_fetched, is_relevant,
			is_duplicate, is_kept, is_shortlisted, duplicate_of_id, sort_index, discovered_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			a.ID, a.RunID, a.URL, a.CanonicalURL, a.SourceURL, a.Title, a.Domain,
			a.WordCount, a.ContentText, nullTime(a.PublishDate), a.IsFetched, nullBool(a.IsRelevant),
			a.IsDuplicate, a.IsKept, a.IsShortlisted, a.DuplicateOfID, nullInt(a.SortIndex), a.DiscoveredAt)
		if err != nil {
			return 0, fmt.Errorf("failed to insert article %s: %w", a.URL, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

func nullBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}

func nullInt(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}

// ArticleFilter narrows ListArticles. Nil pointer fields are not applied.
type ArticleFilter struct {
	IsFetched     *bool
	IsRelevant    *bool
	RelevantUnset bool // only articles with no relevancy verdict yet
	IsDuplicate   *bool
	IsKept        *bool
	IsShortlisted *bool
	HasContent    bool // only articles with non-empty extracted text
}

// ListArticles returns the run's articles matching the filter, ordered by
// manual sort index first (set beats unset) and discovery time second.
func (s *Store) ListArticles(runID string, filter ArticleFilter) ([]*core.Article, error) {
	q := sq.Select(articleColumns).
		From("articles").
		Where(sq.Eq{"run_id": runID}).
		OrderBy("sort_index IS NULL", "sort_index ASC", "discovered_at ASC", "id ASC")

	if filter.IsFetched != nil {
		q = q.Where(sq.Eq{"is_fetched": *filter.IsFetched})
	}
	if filter.IsRelevant != nil {
		q = q.Where(sq.Eq{"is_relevant": *filter.IsRelevant})
	}
	if filter.RelevantUnset {
		q = q.Where("is_relevant IS NULL")
	}
	if filter.IsDuplicate != nil {
		q = q.Where(sq.Eq{"is_duplicate": *filter.IsDuplicate})
	}
	if filter.IsKept != nil {
		q = q.Where(sq.Eq{"is_kept": *filter.IsKept})
	}
	if filter.IsShortlisted != nil {
		q = q.Where(sq.Eq{"is_shortlisted": *filter.IsShortlisted})
	}
	if filter.HasContent {
		q = q.Where("content_text != ''")
	}

	rows, err := q.RunWith(s.db).Query()
	if err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var articles []*core.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan article: %w", err)
		}
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

// GetArticle fetches one article by ID.
func (s *Store) GetArticle(id string) (*core.Article, error) {
	row := s.db.QueryRow(`SELECT `+articleColumns+` FROM articles WHERE id = ?`, id)
	a, err := scanArticle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get article: %w", err)
	}
	return a, nil
}

// UpdateArticleContent records a successful fetch: extracted text, metadata,
// and the fetched/kept flags.
func (s *Store) UpdateArticleContent(id, title, contentText, canonicalURL string, wordCount int, publishDate *time.Time) error {
	res, err := sq.Update("articles").
		Set("title", title).
		Set("content_text", contentText).
		Set("canonical_url", canonicalURL).
		Set("word_count", wordCount).
		Set("publish_date", nullTime(publishDate)).
		Set("is_fetched", true).
		Set("is_kept", true).
		Where(sq.Eq{"id": id}).
		RunWith(s.db).Exec()
	if err != nil {
		return fmt.Errorf("failed to update article content: %w", err)
	}
	return requireAffected(res)
}

// MarkArticleFetchFailed records a terminal fetch failure. The article stays
// in the run but is excluded from all later phases.
func (s *Store) MarkArticleFetchFailed(id string) error {
	res, err := s.db.Exec(`UPDATE articles SET is_fetched = 1, is_kept = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to mark article fetch failed: %w", err)
	}
	return requireAffected(res)
}

// SetArticleRelevant records the relevancy verdict.
func (s *Store) SetArticleRelevant(id string, relevant bool) error {
	res, err := s.db.Exec(`UPDATE articles SET is_relevant = ? WHERE id = ?`, relevant, id)
	if err != nil {
		return fmt.Errorf("failed to set article relevancy: %w", err)
	}
	return requireAffected(res)
}

// MarkArticleDuplicate flags an article as a duplicate of another. The
// article is kept in the run; only the flag excludes it downstream.
func (s *Store) MarkArticleDuplicate(id, duplicateOfID string) error {
	res, err := s.db.Exec(`UPDATE articles SET is_duplicate = 1, duplicate_of_id = ? WHERE id = ?`,
		duplicateOfID, id)
	if err != nil {
		return fmt.Errorf("failed to mark article duplicate: %w", err)
	}
	return requireAffected(res)
}

// SetArticleShortlisted sets or clears the shortlist flag.
func (s *Store) SetArticleShortlisted(id string, shortlisted bool) error {
	res, err := s.db.Exec(`UPDATE articles SET is_shortlisted = ? WHERE id = ?`, shortlisted, id)
	if err != nil {
		return fmt.Errorf("failed to set article shortlist flag: %w", err)
	}
	return requireAffected(res)
}

// SetArticleSortIndex sets the manual curation position. A nil index clears
// the override.
func (s *Store) SetArticleSortIndex(id string, index *int) error {
	res, err := s.db.Exec(`UPDATE articles SET sort_index = ? WHERE id = ?`, nullInt(index), id)
	if err != nil {
		return fmt.Errorf("failed to set article sort index: %w", err)
	}
	return requireAffected(res)
}
