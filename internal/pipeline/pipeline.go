// Package pipeline runs the fixed phase sequence that turns a run's topic
// and sources into a finished newsletter. Each phase executes under a guard
// that persists its status, logs and errors, so any phase can be retried or
// resumed without redoing completed work.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"

	"newsroom/internal/core"
	"newsroom/internal/llm"
	"newsroom/internal/logger"
	"newsroom/internal/store"
)

// ErrPhaseConflict is returned when a phase is already in progress.
var ErrPhaseConflict = store.ErrPhaseConflict

const (
	defaultFetchWorkers = 5
	defaultLLMWorkers   = 3
)

// LLMClient is the slice of the llm package the pipeline depends on. Tests
// substitute fakes.
type LLMClient interface {
	GenerateStructured(ctx context.Context, systemPrompt, userPrompt string, schema *genai.Schema, out any, opts llm.Options) error
	GenerateText(ctx context.Context, systemPrompt, userPrompt string, opts llm.Options) (string, error)
}

// Fetcher retrieves the raw HTML (or feed XML) of a URL.
type Fetcher interface {
	FetchHTML(ctx context.Context, url string) (string, error)
}

// Pipeline wires the store, LLM and fetcher into the seven phase handlers.
type Pipeline struct {
	Store   *store.Store
	LLM     LLMClient
	Fetcher Fetcher

	// FetchWorkers bounds concurrent page fetches; LLMWorkers bounds
	// concurrent model calls. The pools are separate so a slow model
	// cannot starve fetching and vice versa.
	FetchWorkers int
	LLMWorkers   int
}

// New creates a pipeline with the default pool sizes.
func New(s *store.Store, client LLMClient, fetcher Fetcher) *Pipeline {
	return &Pipeline{
		Store:        s,
		LLM:          client,
		Fetcher:      fetcher,
		FetchWorkers: defaultFetchWorkers,
		LLMWorkers:   defaultLLMWorkers,
	}
}

// Result describes one attempted phase.
type Result struct {
	Phase       core.PhaseName   `json:"phase"`
	Status      core.PhaseStatus `json:"status"`
	AlreadyDone bool             `json:"already_done,omitempty"`
	Logs        string           `json:"logs"`
}

type phaseFunc func(ctx context.Context, run *core.Run, log *logBuffer) error

func (p *Pipeline) handler(name core.PhaseName) phaseFunc {
	switch name {
	case core.PhaseExtractInformation:
		return p.extractInformation
	case core.PhaseSourceArticles:
		return p.sourceArticles
	case core.PhaseGrabArticles:
		return p.grabArticles
	case core.PhaseRankArticles:
		return p.rankArticles
	case core.PhaseSummariseArticles:
		return p.summariseArticles
	case core.PhaseGenerateNewsletter:
		return p.generateNewsletter
	case core.PhaseSaveArticles:
		return p.saveArticles
	default:
		return nil
	}
}

// skipError tells the guard to record the phase as skipped instead of
// completed. Skipped is terminal like completed.
type skipError struct {
	reason string
}

func (e *skipError) Error() string {
	return e.reason
}

func skipPhase(reason string) error {
	return &skipError{reason: reason}
}

// RunPhase executes one phase of a run under the guard. A phase that already
// finished (completed or skipped) returns its stored result without
// re-running. A phase currently in progress returns ErrPhaseConflict. The
// pending -> in_progress transition is a single conditional update, so two
// concurrent callers cannot both run the work.
func (p *Pipeline) RunPhase(ctx context.Context, runID string, name core.PhaseName) (*Result, error) {
	work := p.handler(name)
	if work == nil {
		return nil, fmt.Errorf("unknown phase %q", name)
	}

	run, err := p.Store.GetRun(runID)
	if err != nil {
		return nil, err
	}

	if err := p.Store.BeginPhase(runID, name); err != nil {
		if errors.Is(err, store.ErrPhaseConflict) {
			phase, gerr := p.Store.GetPhase(runID, name)
			if gerr != nil {
				return nil, gerr
			}
			if phase.Status == core.PhaseCompleted || phase.Status == core.PhaseSkipped {
				return &Result{Phase: name, Status: phase.Status, AlreadyDone: true, Logs: phase.Logs}, nil
			}
			return nil, fmt.Errorf("phase %s is already in progress: %w", name, ErrPhaseConflict)
		}
		return nil, err
	}

	logger.Info("phase started", "run_id", runID, "phase", string(name))
	log := &logBuffer{}

	err = work(ctx, run, log)

	var skip *skipError
	if errors.As(err, &skip) {
		log.Add("skipped: %s", skip.reason)
		if serr := p.Store.SkipPhase(runID, name, log.String()); serr != nil {
			return nil, serr
		}
		logger.Info("phase skipped", "run_id", runID, "phase", string(name), "reason", skip.reason)
		return &Result{Phase: name, Status: core.PhaseSkipped, Logs: log.String()}, nil
	}
	if err != nil {
		log.Add("ERROR: %v", err)
		if serr := p.Store.FailPhase(runID, name, log.String(), err.Error()); serr != nil {
			return nil, serr
		}
		logger.Error("phase failed", err, "run_id", runID, "phase", string(name))
		return &Result{Phase: name, Status: core.PhaseFailed, Logs: log.String()},
			fmt.Errorf("phase %s failed: %w", name, err)
	}

	if serr := p.Store.CompletePhase(runID, name, log.String()); serr != nil {
		return nil, serr
	}
	logger.Info("phase completed", "run_id", runID, "phase", string(name))
	return &Result{Phase: name, Status: core.PhaseCompleted, Logs: log.String()}, nil
}

// RunFrom executes the pipeline from name to the end, stopping at the first
// failure. The run is marked failed when a phase fails; the failing phase's
// error propagates.
func (p *Pipeline) RunFrom(ctx context.Context, runID string, name core.PhaseName) ([]*Result, error) {
	phases := core.PhasesFrom(name)
	if phases == nil {
		return nil, fmt.Errorf("unknown phase %q", name)
	}

	var results []*Result
	for _, phase := range phases {
		res, err := p.RunPhase(ctx, runID, phase)
		if res != nil {
			results = append(results, res)
		}
		if err != nil {
			_ = p.Store.UpdateRunStatus(runID, core.RunFailed)
			return results, err
		}
	}
	return results, nil
}

// RunAll executes the full pipeline from the first phase.
func (p *Pipeline) RunAll(ctx context.Context, runID string) ([]*Result, error) {
	return p.RunFrom(ctx, runID, core.PhaseOrder[0])
}

// logBuffer accumulates the human-readable log of one phase execution.
// Fan-out workers append concurrently.
type logBuffer struct {
	mu    sync.Mutex
	lines []string
}

func (b *logBuffer) Add(format string, args ...any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = append(b.lines, fmt.Sprintf(format, args...))
}

func (b *logBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Join(b.lines, "\n")
}
