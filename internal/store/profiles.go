package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"newsroom/internal/core"
)

// CreateProfile inserts a reusable defaults profile.
func (s *Store) CreateProfile(p *core.Profile) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(`INSERT INTO profiles (
		id, name, default_source_urls, default_keywords,
		default_trends, default_competitors, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name,
		marshalList(p.DefaultSourceURLs), marshalList(p.DefaultKeywords),
		marshalList(p.DefaultTrends), marshalList(p.DefaultCompetitors), p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert profile: %w", err)
	}
	return nil
}

const profileColumns = `id, name, default_source_urls, default_keywords,
	default_trends, default_competitors, created_at`

func scanProfile(row interface{ Scan(...any) error }) (*core.Profile, error) {
	var p core.Profile
	var sourceURLs, keywords, trends, competitors string
	err := row.Scan(&p.ID, &p.Name, &sourceURLs, &keywords, &trends, &competitors, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	p.DefaultSourceURLs = unmarshalList(sourceURLs)
	p.DefaultKeywords = unmarshalList(keywords)
	p.DefaultTrends = unmarshalList(trends)
	p.DefaultCompetitors = unmarshalList(competitors)
	return &p, nil
}

// GetProfile fetches a profile by ID.
func (s *Store) GetProfile(id string) (*core.Profile, error) {
	row := s.db.QueryRow(`SELECT `+profileColumns+` FROM profiles WHERE id = ?`, id)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return p, nil
}

// ListProfiles returns all profiles ordered by name.
func (s *Store) ListProfiles() ([]*core.Profile, error) {
	rows, err := s.db.Query(`SELECT ` + profileColumns + ` FROM profiles ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var profiles []*core.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// DeleteProfile removes a profile. Existing runs keep the values they copied.
func (s *Store) DeleteProfile(id string) error {
	res, err := s.db.Exec(`DELETE FROM profiles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	return requireAffected(res)
}
