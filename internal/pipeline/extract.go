package pipeline

import (
	"context"
	"fmt"
	"strings"

	"newsroom/internal/core"
	"newsroom/internal/llm"
)

// extractInformation prepares the run for sourcing: derives search keywords
// from the topic when none were given, inherits source URLs from the
// profile when both URL lists are empty, and moves the run to running.
func (p *Pipeline) extractInformation(ctx context.Context, run *core.Run, log *logBuffer) error {
	log.Add("topic: %s", run.Topic)

	if err := p.Store.UpdateRunStatus(run.ID, core.RunRunning); err != nil {
		return err
	}

	switch {
	case len(run.Keywords) > 0:
		log.Add("keywords already provided: %s", strings.Join(run.Keywords, ", "))
	case run.Topic != "":
		var out struct {
			Keywords []string `json:"keywords"`
		}
		err := p.LLM.GenerateStructured(ctx, keywordsSystemPrompt, keywordsUserPrompt(run.Topic),
			keywordsSchema(), &out, llm.Options{})
		if err != nil {
			return fmt.Errorf("failed to derive keywords from topic: %w", err)
		}
		if err := p.Store.UpdateRunKeywords(run.ID, out.Keywords); err != nil {
			return err
		}
		run.Keywords = out.Keywords
		log.Add("derived keywords: %s", strings.Join(out.Keywords, ", "))
	default:
		log.Add("no topic and no keywords; relevancy screening will be skipped")
	}

	if len(run.SourceURLs) == 0 && len(run.SpecificURLs) == 0 {
		if run.ProfileID != "" {
			profile, err := p.Store.GetProfile(run.ProfileID)
			if err == nil && len(profile.DefaultSourceURLs) > 0 {
				if err := p.Store.UpdateRunSourceURLs(run.ID, profile.DefaultSourceURLs); err != nil {
					return err
				}
				run.SourceURLs = profile.DefaultSourceURLs
				log.Add("inherited %d source urls from profile %s", len(run.SourceURLs), profile.Name)
			}
		}
		if len(run.SourceURLs) == 0 {
			log.Add("warning: run has no source urls and no specific urls")
		}
	}

	return nil
}
