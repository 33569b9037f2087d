// Package store persists runs, phases, articles, rankings, summaries,
// newsletters and profiles in a local SQLite database.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"newsroom/internal/core"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrPhaseConflict is returned when a phase cannot start because it is
// already in progress or is not in a startable state.
var ErrPhaseConflict = errors.New("phase is not in a startable state")

// Store wraps the SQLite database. Safe for concurrent use; SQLite
// serializes writers underneath.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	topic TEXT NOT NULL,
	keywords TEXT NOT NULL DEFAULT '[]',
	specific_urls TEXT NOT NULL DEFAULT '[]',
	source_urls TEXT NOT NULL DEFAULT '[]',
	lookback_days INTEGER NOT NULL,
	mode TEXT NOT NULL,
	min_fit_score REAL NOT NULL,
	max_total_articles INTEGER NOT NULL,
	max_per_domain INTEGER NOT NULL,
	ranking_enabled INTEGER NOT NULL,
	profile_id TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS phases (
	id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL REFERENCES runs(id),
	phase_name TEXT NOT NULL,
	status TEXT NOT NULL,
	started_at TIMESTAMP,
	completed_at TIMESTAMP,
	logs TEXT NOT NULL DEFAULT '',
	error TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL,
	UNIQUE(run_id, phase_name)
);

CREATE TABLE IF NOT EXISTS articles (
	id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL REFERENCES runs(id),
	url TEXT NOT NULL,
	canonical_url TEXT NOT NULL DEFAULT '',
	source_url TEXT NOT NULL DEFAULT '',
	title TEXT NOT NULL DEFAULT '',
	domain TEXT NOT NULL DEFAULT '',
	word_count INTEGER NOT NULL DEFAULT 0,
	content_text TEXT NOT NULL DEFAULT '',
	publish_date TIMESTAMP,
	is_fetched INTEGER NOT NULL DEFAULT 0,
	is_relevant INTEGER,
	is_duplicate INTEGER NOT NULL DEFAULT 0,
	is_kept INTEGER NOT NULL DEFAULT 0,
	is_shortlisted INTEGER NOT NULL DEFAULT 0,
	duplicate_of_id TEXT NOT NULL DEFAULT '',
	sort_index INTEGER,
	discovered_at TIMESTAMP NOT NULL,
	UNIQUE(run_id, url)
);

CREATE TABLE IF NOT EXISTS rankings (
	id TEXT PRIMARY KEY,
	article_id TEXT NOT NULL UNIQUE REFERENCES articles(id),
	category TEXT NOT NULL DEFAULT '',
	score REAL NOT NULL,
	tier TEXT NOT NULL,
	key_findings TEXT NOT NULL DEFAULT '[]',
	key_entities TEXT NOT NULL DEFAULT '[]',
	rationale TEXT NOT NULL DEFAULT '',
	suggested_header TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS summaries (
	id TEXT PRIMARY KEY,
	article_id TEXT NOT NULL UNIQUE REFERENCES articles(id),
	summary_text TEXT NOT NULL,
	why_it_matters TEXT NOT NULL DEFAULT '[]',
	implications TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS newsletters (
	id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL REFERENCES runs(id),
	title TEXT NOT NULL,
	html_content TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS profiles (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	default_source_urls TEXT NOT NULL DEFAULT '[]',
	default_keywords TEXT NOT NULL DEFAULT '[]',
	default_trends TEXT NOT NULL DEFAULT '[]',
	default_competitors TEXT NOT NULL DEFAULT '[]',
	created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_articles_run ON articles(run_id);
CREATE INDEX IF NOT EXISTS idx_phases_run ON phases(run_id);
CREATE INDEX IF NOT EXISTS idx_newsletters_run ON newsletters(run_id);
`

// NewStore opens (creating if needed) the database under dataDir and ensures
// the schema exists.
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "newsroom.db")
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func marshalList(list []string) string {
	if list == nil {
		list = []string{}
	}
	b, _ := json.Marshal(list)
	return string(b)
}

func unmarshalList(raw string) []string {
	var list []string
	if raw != "" {
		_ = json.Unmarshal([]byte(raw), &list)
	}
	if list == nil {
		list = []string{}
	}
	return list
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

// CreateRun inserts the run and its seven pending phase rows atomically.
func (s *Store) CreateRun(run *core.Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	if run.Status == "" {
		run.Status = core.RunCreated
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(`INSERT INTO runs (
		id, name, topic, keywords, specific_urls, source_urls,
		lookback_days, mode, min_fit_score, max_total_articles,
		max_per_domain, ranking_enabled, profile_id, status, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Name, run.Topic,
		marshalList(run.Keywords), marshalList(run.SpecificURLs), marshalList(run.SourceURLs),
		run.LookbackDays, string(run.Mode), run.MinFitScore, run.MaxTotalArticles,
		run.MaxPerDomain, run.RankingEnabled, run.ProfileID, string(run.Status), run.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for _, name := range core.PhaseOrder {
		_, err = tx.Exec(`INSERT INTO phases (id, run_id, phase_name, status, created_at)
			VALUES (?, ?, ?, ?, ?)`,
			uuid.New().String(), run.ID, string(name), string(core.PhasePending), run.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert phase %s: %w", name, err)
		}
	}

	return tx.Commit()
}

const runColumns = `id, name, topic, keywords, specific_urls, source_urls,
	lookback_days, mode, min_fit_score, max_total_articles,
	max_per_domain, ranking_enabled, profile_id, status, created_at`

func scanRun(row interface{ Scan(...any) error }) (*core.Run, error) {
	var run core.Run
	var keywords, specificURLs, sourceURLs, mode, status string
	err := row.Scan(&run.ID, &run.Name, &run.Topic, &keywords, &specificURLs, &sourceURLs,
		&run.LookbackDays, &mode, &run.MinFitScore, &run.MaxTotalArticles,
		&run.MaxPerDomain, &run.RankingEnabled, &run.ProfileID, &status, &run.CreatedAt)
	if err != nil {
		return nil, err
	}
	run.Keywords = unmarshalList(keywords)
	run.SpecificURLs = unmarshalList(specificURLs)
	run.SourceURLs = unmarshalList(sourceURLs)
	run.Mode = core.RunMode(mode)
	run.Status = core.RunStatus(status)
	return &run, nil
}

// GetRun fetches a run by ID.
func (s *Store) GetRun(id string) (*core.Run, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns all runs, newest first.
func (s *Store) ListRuns() ([]*core.Run, error) {
	rows, err := s.db.Query(`SELECT ` + runColumns + ` FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*core.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// UpdateRunStatus sets the overall run status.
func (s *Store) UpdateRunStatus(id string, status core.RunStatus) error {
	res, err := s.db.Exec(`UPDATE runs SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update run status: %w", err)
	}
	return requireAffected(res)
}

// UpdateRunKeywords replaces the run's keyword list.
func (s *Store) UpdateRunKeywords(id string, keywords []string) error {
	res, err := s.db.Exec(`UPDATE runs SET keywords = ? WHERE id = ?`, marshalList(keywords), id)
	if err != nil {
		return fmt.Errorf("failed to update run keywords: %w", err)
	}
	return requireAffected(res)
}

// UpdateRunSourceURLs replaces the run's source URL list.
func (s *Store) UpdateRunSourceURLs(id string, sourceURLs []string) error {
	res, err := s.db.Exec(`UPDATE runs SET source_urls = ? WHERE id = ?`, marshalList(sourceURLs), id)
	if err != nil {
		return fmt.Errorf("failed to update run source urls: %w", err)
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

const phaseColumns = `id, run_id, phase_name, status, started_at, completed_at, logs, error, created_at`

func scanPhase(row interface{ Scan(...any) error }) (*core.Phase, error) {
	var phase core.Phase
	var name, status string
	var startedAt, completedAt sql.NullTime
	err := row.Scan(&phase.ID, &phase.RunID, &name, &status,
		&startedAt, &completedAt, &phase.Logs, &phase.Error, &phase.CreatedAt)
	if err != nil {
		return nil, err
	}
	phase.Name = core.PhaseName(name)
	phase.Status = core.PhaseStatus(status)
	phase.StartedAt = timePtr(startedAt)
	phase.CompletedAt = timePtr(completedAt)
	return &phase, nil
}

// GetPhase fetches one phase row of a run.
func (s *Store) GetPhase(runID string, name core.PhaseName) (*core.Phase, error) {
	row := s.db.QueryRow(`SELECT `+phaseColumns+` FROM phases WHERE run_id = ? AND phase_name = ?`,
		runID, string(name))
	phase, err := scanPhase(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get phase: %w", err)
	}
	return phase, nil
}

// ListPhases returns all phase rows of a run in pipeline order.
func (s *Store) ListPhases(runID string) ([]*core.Phase, error) {
	rows, err := s.db.Query(`SELECT `+phaseColumns+` FROM phases WHERE run_id = ?`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list phases: %w", err)
	}
	defer func() { _ = rows.Close() }()

	byName := make(map[core.PhaseName]*core.Phase, len(core.PhaseOrder))
	for rows.Next() {
		phase, err := scanPhase(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan phase: %w", err)
		}
		byName[phase.Name] = phase
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ordered := make([]*core.Phase, 0, len(byName))
	for _, name := range core.PhaseOrder {
		if phase, ok := byName[name]; ok {
			ordered = append(ordered, phase)
		}
	}
	return ordered, nil
}

// BeginPhase atomically moves a phase from pending or failed to in_progress.
// The transition is a single conditional UPDATE so two concurrent starters
// cannot both win. Returns ErrPhaseConflict when the phase is in any other
// state and ErrNotFound when the row does not exist.
func (s *Store) BeginPhase(runID string, name core.PhaseName) error {
	now := time.Now().UTC()
	res, err := s.db.Exec(`UPDATE phases
		SET status = ?, started_at = ?, error = ''
		WHERE run_id = ? AND phase_name = ? AND status IN (?, ?)`,
		string(core.PhaseInProgress), now, runID, string(name),
		string(core.PhasePending), string(core.PhaseFailed))
	if err != nil {
		return fmt.Errorf("failed to begin phase: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := s.GetPhase(runID, name); errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return ErrPhaseConflict
	}
	return nil
}

// finishPhase records a terminal status for an in_progress phase.
func (s *Store) finishPhase(runID string, name core.PhaseName, status core.PhaseStatus, logs, errMsg string) error {
	now := time.Now().UTC()
	res, err := sq.Update("phases").
		Set("status", string(status)).
		Set("completed_at", now).
		Set("logs", logs).
		Set("error", errMsg).
		Where(sq.Eq{"run_id": runID, "phase_name": string(name)}).
		RunWith(s.db).Exec()
	if err != nil {
		return fmt.Errorf("failed to finish phase: %w", err)
	}
	return requireAffected(res)
}

// CompletePhase marks a phase completed and stores its logs.
func (s *Store) CompletePhase(runID string, name core.PhaseName, logs string) error {
	return s.finishPhase(runID, name, core.PhaseCompleted, logs, "")
}

// FailPhase marks a phase failed with its logs and error message.
func (s *Store) FailPhase(runID string, name core.PhaseName, logs, errMsg string) error {
	return s.finishPhase(runID, name, core.PhaseFailed, logs, errMsg)
}

// SkipPhase marks a phase skipped and stores the reason in its logs.
func (s *Store) SkipPhase(runID string, name core.PhaseName, logs string) error {
	return s.finishPhase(runID, name, core.PhaseSkipped, logs, "")
}
