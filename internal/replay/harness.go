package replay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/caiga/companion/internal/classifier"
	"github.com/caiga/companion/internal/engine"
	"github.com/caiga/companion/internal/formatter"
	"github.com/caiga/companion/internal/logging"
	"github.com/caiga/companion/internal/signals"
	"github.com/caiga/companion/internal/state"
	"github.com/caiga/companion/internal/tips"
)

// #region types
// Step is one recorded poll: the snapshot seen at an offset from the replay start, and
// whether the overlay accepted the dispatch that cycle.
type Step struct {
	ID            string
	At            time.Duration
	Snapshot      signals.Snapshot
	DispatchFails bool
}

// StepResult captures what the engine did with one step.
type StepResult struct {
	ID         string
	At         time.Duration
	Phase      engine.Phase
	Label      string
	Confidence float64
	Text       string // dispatched text, empty unless Phase is dispatched
	Reason     string
}

// Summary provides aggregate stats from a replay run.
type Summary struct {
	TotalSteps  int
	Dispatched  int
	Rejected    int
	Suppressed  int
	Failed      int
	Decisions   []logging.DecisionEntry
	FinalLedger state.Ledger
}

// #endregion types

// #region collaborators
// replayClock is advanced by the harness before each step.
type replayClock struct{ now time.Time }

func (c *replayClock) Now() time.Time { return c.now }

// scriptedDispatcher fails when the current step says so.
type scriptedDispatcher struct{ fail bool }

var errScriptedFailure = errors.New("scripted dispatch failure")

func (d *scriptedDispatcher) Send(context.Context, string) error {
	if d.fail {
		return errScriptedFailure
	}
	return nil
}

// journal keeps engine state and decisions in memory for the length of one run.
type journal struct {
	st        state.EngineState
	decisions []logging.DecisionEntry
}

func (j *journal) Load() state.EngineState          { return state.NewEngineState() }
func (j *journal) Save(st state.EngineState) error { j.st = st; return nil }

func (j *journal) CommitDecision(st state.EngineState, e logging.DecisionEntry) error {
	j.st = st
	j.decisions = append(j.decisions, e)
	return nil
}

func (j *journal) CommitFeedback(st state.EngineState, _ logging.FeedbackEntry) error {
	j.st = st
	return nil
}

// #endregion collaborators

// #region replay
// Replay runs steps in order through a fresh engine with the rule classifier, a clock pinned
// to start+At, and no retrieval. Steps must be in non-decreasing At order.
func Replay(ctx context.Context, steps []Step, table tips.Table, cfg engine.Config, start time.Time) ([]StepResult, Summary, error) {
	clock := &replayClock{now: start}
	disp := &scriptedDispatcher{}
	j := &journal{}

	eng, err := engine.New(cfg, engine.Deps{
		Clock:      clock,
		Classifier: classifier.NewRuleClassifier(),
		Tips:       tips.NewStore(table),
		Enricher:   formatter.NewEnricher(formatter.Fallback{}, nil, tips.RecipePlaceholder),
		Dispatcher: disp,
		Store:      j,
	})
	if err != nil {
		return nil, Summary{}, err
	}

	results := make([]StepResult, 0, len(steps))
	var last time.Duration
	for _, s := range steps {
		if s.At < last {
			return results, Summary{}, fmt.Errorf("step %s at %s precedes previous step at %s", s.ID, s.At, last)
		}
		last = s.At
		clock.now = start.Add(s.At)
		disp.fail = s.DispatchFails

		eng.Observe(s.Snapshot)
		out, err := eng.Evaluate(ctx)
		if err != nil && !errors.Is(err, engine.ErrTransientIO) {
			return results, Summary{}, fmt.Errorf("step %s: %w", s.ID, err)
		}
		r := StepResult{
			ID:         s.ID,
			At:         s.At,
			Phase:      out.Phase,
			Label:      out.Classification.Label,
			Confidence: out.Classification.Confidence,
			Reason:     out.Reason,
		}
		if out.Record != nil {
			r.Text = out.Record.ChosenText
		}
		results = append(results, r)
	}

	return results, summarize(results, j.decisions, eng.Ledger()), nil
}

func summarize(results []StepResult, decisions []logging.DecisionEntry, ledger state.Ledger) Summary {
	s := Summary{TotalSteps: len(results), Decisions: decisions, FinalLedger: ledger}
	for _, r := range results {
		switch r.Phase {
		case engine.PhaseDispatched:
			s.Dispatched++
		case engine.PhaseRejected:
			s.Rejected++
		case engine.PhaseSuppressed:
			s.Suppressed++
		case engine.PhaseFailed:
			s.Failed++
		}
	}
	return s
}

// #endregion replay
