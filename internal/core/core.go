// Package core defines the shared data model for newsroom: runs, their
// phases, and the article/ranking/summary/newsletter records that the
// pipeline produces.
package core

import "time"

// RunStatus is the overall lifecycle state of a run.
type RunStatus string

const (
	RunCreated   RunStatus = "created"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// RunMode controls how much of the pipeline acts without human review.
type RunMode string

const (
	ModeAuto   RunMode = "auto"
	ModeGuided RunMode = "guided"
)

// Run represents one end-to-end newsletter-generation job.
type Run struct {
	ID               string    `json:"id"`
	Name             string    `json:"run_name"`
	Topic            string    `json:"prompt_topic"`
	Keywords         []string  `json:"keywords"`
	SpecificURLs     []string  `json:"specific_urls"`
	SourceURLs       []string  `json:"source_urls"`
	LookbackDays     int       `json:"lookback_days"`
	Mode             RunMode   `json:"mode"`
	MinFitScore      float64   `json:"min_fit_score"`
	MaxTotalArticles int       `json:"max_total_articles"`
	MaxPerDomain     int       `json:"max_per_domain"`
	RankingEnabled   bool      `json:"ranking_enabled"`
	ProfileID        string    `json:"profile_id,omitempty"`
	Status           RunStatus `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
}

// PhaseName identifies one stage of the fixed pipeline.
type PhaseName string

const (
	PhaseExtractInformation PhaseName = "extract_information"
	PhaseSourceArticles     PhaseName = "source_articles"
	PhaseGrabArticles       PhaseName = "grab_articles"
	PhaseRankArticles       PhaseName = "rank_articles"
	PhaseSummariseArticles  PhaseName = "summarise_articles"
	PhaseGenerateNewsletter PhaseName = "generate_final_newsletter"
	PhaseSaveArticles       PhaseName = "save_articles"
)

// PhaseOrder is the fixed, total execution order of the pipeline.
var PhaseOrder = []PhaseName{
	PhaseExtractInformation,
	PhaseSourceArticles,
	PhaseGrabArticles,
	PhaseRankArticles,
	PhaseSummariseArticles,
	PhaseGenerateNewsletter,
	PhaseSaveArticles,
}

// PhaseIndex returns the position of name in PhaseOrder, or -1 if name is
// not a known phase.
func PhaseIndex(name PhaseName) int {
	for i, n := range PhaseOrder {
		if n == name {
			return i
		}
	}
	return -1
}

// ValidPhase reports whether name is one of the declared pipeline phases.
func ValidPhase(name PhaseName) bool {
	return PhaseIndex(name) >= 0
}

// PhasesFrom returns the tail of PhaseOrder starting at name. It returns nil
// when name is unknown.
func PhasesFrom(name PhaseName) []PhaseName {
	idx := PhaseIndex(name)
	if idx < 0 {
		return nil
	}
	return PhaseOrder[idx:]
}

// PhaseStatus is the persisted state of one phase of one run.
type PhaseStatus string

const (
	PhasePending    PhaseStatus = "pending"
	PhaseInProgress PhaseStatus = "in_progress"
	PhaseCompleted  PhaseStatus = "completed"
	PhaseFailed     PhaseStatus = "failed"
	PhaseSkipped    PhaseStatus = "skipped"
)

// Phase is one row per (run, phase name). Status transitions are monotonic
// except failed -> in_progress (retry) and pending -> skipped.
type Phase struct {
	ID          string      `json:"id"`
	RunID       string      `json:"run_id"`
	Name        PhaseName   `json:"phase_name"`
	Status      PhaseStatus `json:"status"`
	StartedAt   *time.Time  `json:"started_at,omitempty"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
	Logs        string      `json:"logs"`
	Error       string      `json:"error,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Article is a candidate piece of content discovered for a run. Articles are
// never deleted by the pipeline; rejection is always expressed as a flag.
type Article struct {
	ID            string     `json:"id"`
	RunID         string     `json:"run_id"`
	URL           string     `json:"url"` // normalized, unique within the run
	CanonicalURL  string     `json:"canonical_url,omitempty"`
	SourceURL     string     `json:"source_url,omitempty"` // the feed/index page it came from
	Title         string     `json:"title"`
	Domain        string     `json:"domain"`
	WordCount     int        `json:"word_count"`
	ContentText   string     `json:"content_text,omitempty"`
	PublishDate   *time.Time `json:"publish_date,omitempty"`
	IsFetched     bool       `json:"is_fetched"`
	IsRelevant    *bool      `json:"is_relevant"` // nil until the relevancy check has run
	IsDuplicate   bool       `json:"is_duplicate"`
	IsKept        bool       `json:"is_kept"`
	IsShortlisted bool       `json:"is_shortlisted"`
	DuplicateOfID string     `json:"duplicate_of_id,omitempty"`
	SortIndex     *int       `json:"sort_index,omitempty"` // manual curation override
	DiscoveredAt  time.Time  `json:"discovered_at"`
}

// Relevant reports the relevancy verdict, treating an unset verdict as false.
func (a *Article) Relevant() bool {
	return a.IsRelevant != nil && *a.IsRelevant
}

// Tier is the ranking bucket assigned by the LLM ranking step.
type Tier string

const (
	TierEssential Tier = "Essential"
	TierImportant Tier = "Important"
	TierOptional  Tier = "Optional"
)

// tierPriority orders tiers for newsletter assembly. Unknown (unranked)
// tiers sort last.
func tierPriority(t Tier) int {
	switch t {
	case TierEssential:
		return 0
	case TierImportant:
		return 1
	case TierOptional:
		return 2
	default:
		return 3
	}
}

// CompareTiers returns a negative value when a outranks b, zero when equal.
func CompareTiers(a, b Tier) int {
	return tierPriority(a) - tierPriority(b)
}

// Ranking is the LLM verdict for one article. Created once by the ranking
// phase and immutable afterward.
type Ranking struct {
	ID              string    `json:"id"`
	ArticleID       string    `json:"article_id"`
	Category        string    `json:"category"`
	Score           float64   `json:"score"`
	Tier            Tier      `json:"tier"`
	KeyFindings     []string  `json:"key_findings"`
	KeyEntities     []string  `json:"key_entities"`
	Rationale       string    `json:"rationale"`
	SuggestedHeader string    `json:"suggested_header"`
	CreatedAt       time.Time `json:"created_at"`
}

// Summary is the structured summary for one article. Created once by the
// summarise phase and immutable afterward.
type Summary struct {
	ID           string    `json:"id"`
	ArticleID    string    `json:"article_id"`
	SummaryText  string    `json:"summary_text"`
	WhyItMatters []string  `json:"why_it_matters"`
	Implications string    `json:"implications,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Newsletter is one rendered newsletter for a run. Regenerating the phase
// appends a new record rather than mutating an old one.
type Newsletter struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id"`
	Title     string    `json:"title"`
	HTML      string    `json:"html_content"`
	CreatedAt time.Time `json:"created_at"`
}

// Profile holds reusable defaults that a run may copy at creation time.
// There is no live link afterward.
type Profile struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	DefaultSourceURLs  []string  `json:"default_source_urls"`
	DefaultKeywords    []string  `json:"default_keywords"`
	DefaultTrends      []string  `json:"default_trends"`
	DefaultCompetitors []string  `json:"default_competitors"`
	CreatedAt          time.Time `json:"created_at"`
}
