// Package export serializes a full run, with everything the pipeline
// produced for it, into a single JSON document.
package export

import (
	"encoding/json"
	"fmt"

	"newsroom/internal/core"
	"newsroom/internal/store"
)

// RunExport is the complete exported state of one run.
type RunExport struct {
	Run         *core.Run                `json:"run"`
	Phases      []*core.Phase            `json:"phases"`
	Articles    []*core.Article          `json:"articles"`
	Rankings    map[string]*core.Ranking `json:"rankings"`
	Summaries   map[string]*core.Summary `json:"summaries"`
	Newsletters []*core.Newsletter       `json:"newsletters"`
}

// BuildRunExport gathers every record belonging to the run.
func BuildRunExport(s *store.Store, runID string) (*RunExport, error) {
	run, err := s.GetRun(runID)
	if err != nil {
		return nil, err
	}
	phases, err := s.ListPhases(runID)
	if err != nil {
		return nil, err
	}
	articles, err := s.ListArticles(runID, store.ArticleFilter{})
	if err != nil {
		return nil, err
	}
	rankings, err := s.ListRankings(runID)
	if err != nil {
		return nil, err
	}
	summaries, err := s.ListSummaries(runID)
	if err != nil {
		return nil, err
	}
	newsletters, err := s.ListNewsletters(runID)
	if err != nil {
		return nil, err
	}

	return &RunExport{
		Run:         run,
		Phases:      phases,
		Articles:    articles,
		Rankings:    rankings,
		Summaries:   summaries,
		Newsletters: newsletters,
	}, nil
}

// RunJSON exports the run as indented JSON.
func RunJSON(s *store.Store, runID string) ([]byte, error) {
	exp, err := BuildRunExport(s, runID)
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(exp, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal run export: %w", err)
	}
	return data, nil
}
