package engine

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/caiga/companion/internal/classifier"
	"github.com/caiga/companion/internal/gate"
	"github.com/caiga/companion/internal/logging"
	"github.com/caiga/companion/internal/score"
	"github.com/caiga/companion/internal/signals"
	"github.com/caiga/companion/internal/state"
	"github.com/caiga/companion/internal/tips"
)

const (
	// ForcedLabel is the label recorded for a forced message without one.
	ForcedLabel = "manual"
	// ForcedSourceRef is the source reference of every forced dispatch.
	ForcedSourceRef = "forced"
)

// #region engine-struct

// Engine owns the decision state. Every operation holds mu for its full duration, including
// the bounded dispatch call, so an admission and its commit are never interleaved.
type Engine struct {
	mu sync.Mutex

	cfg        Config
	clock      Clock
	classifier classifier.Classifier
	tips       CandidateSource
	scorer     *score.Scorer
	gate       *gate.Gate
	enricher   Enricher
	dispatcher Dispatcher
	store      Persister
	tracer     trace.Tracer

	counters  state.Counters
	snapshot  *signals.Snapshot
	window    signals.Window
	lastTip   string
	observers []func(DecisionRecord)
}

// Deps are the engine's collaborators. Clock defaults to the system clock.
type Deps struct {
	Clock      Clock
	Classifier classifier.Classifier
	Tips       CandidateSource
	Enricher   Enricher
	Dispatcher Dispatcher
	Store      Persister
}

// #endregion engine-struct

// #region constructor

// New creates an engine and restores its ledgers and counters from the store. The first
// event window opens at construction, so events buffered before startup are ignored.
func New(cfg Config, deps Deps) (*Engine, error) {
	if deps.Classifier == nil || deps.Tips == nil || deps.Enricher == nil || deps.Dispatcher == nil || deps.Store == nil {
		return nil, fmt.Errorf("engine: missing dependencies: classifier=%v tips=%v enricher=%v dispatcher=%v store=%v",
			deps.Classifier != nil, deps.Tips != nil, deps.Enricher != nil, deps.Dispatcher != nil, deps.Store != nil)
	}
	clock := deps.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	st := deps.Store.Load()
	log.Printf("[ENGINE] restored %d label cooldowns, %d candidate cooldowns",
		len(st.Ledger.Labels), len(st.Ledger.Candidates))

	return &Engine{
		cfg:        cfg,
		clock:      clock,
		classifier: deps.Classifier,
		tips:       deps.Tips,
		scorer:     score.NewScorer(score.Config{MaxSpoilerLevel: cfg.MaxSpoilerLevel, TipCooldown: cfg.TipCooldown}),
		gate:       gate.NewGate(gate.GateConfig{GlobalCooldown: cfg.GlobalCooldown, LabelCooldown: cfg.LabelCooldown}, st.Ledger),
		enricher:   deps.Enricher,
		dispatcher: deps.Dispatcher,
		store:      deps.Store,
		tracer:     otel.Tracer("github.com/caiga/companion/internal/engine"),
		counters:   st.Counters.Clone(),
		window:     signals.Window{Cutoff: clock.Now()},
	}, nil
}

// Subscribe registers fn to receive every committed decision. fn runs under the engine lock
// and must not block or call back into the engine.
func (e *Engine) Subscribe(fn func(DecisionRecord)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers = append(e.observers, fn)
}

// #endregion constructor

// #region observe

// Observe installs a freshly polled snapshot and opens the event window since the last one.
func (e *Engine) Observe(snap signals.Snapshot) signals.Window {
	e.mu.Lock()
	defer e.mu.Unlock()

	w := signals.Extract(snap, e.window.Cutoff, e.clock.Now())
	e.snapshot = &snap
	e.window = w
	return w
}

// #endregion observe

// #region evaluate

// Evaluate runs one decision cycle over the last observed snapshot. A cycle either commits
// fully (dispatch, ledgers, counters, decision record) or changes nothing.
func (e *Engine) Evaluate(ctx context.Context) (Outcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ctx, span := e.tracer.Start(ctx, "engine.Evaluate")
	defer span.End()

	if e.snapshot == nil {
		return Outcome{}, ErrNoSnapshot
	}
	now := e.clock.Now()

	res := e.classifier.Classify(ctx, *e.snapshot, e.window)
	out := Outcome{Classification: res}
	span.SetAttributes(
		attribute.String("companion.label", res.Label),
		attribute.Float64("companion.confidence", res.Confidence),
		attribute.String("companion.source", res.Source),
	)

	if res.Confidence < e.cfg.ConfThreshold {
		out.Phase = PhaseSuppressed
		out.Reason = fmt.Sprintf("confidence %.2f below threshold %.2f", res.Confidence, e.cfg.ConfThreshold)
		return e.finish(span, out), nil
	}

	out.Ranked = e.rank(res, now)
	best, ok := score.Best(out.Ranked)
	if !ok {
		out.Phase = PhaseSuppressed
		out.Reason = "no eligible candidate for " + res.Label
		return e.finish(span, out), nil
	}

	decision := e.gate.Evaluate(res.Label, now)
	out.Gate = &decision
	if !decision.Admitted() {
		out.Phase = PhaseRejected
		out.Reason = decision.Reason
		return e.finish(span, out), nil
	}

	text := best.Candidate.Text
	usedFormatter := false
	if best.Candidate.Kind == tips.KindNeedsEnrichment {
		text = e.enricher.Enrich(ctx, text, best.Candidate.Query)
		usedFormatter = true
	}

	if err := e.send(ctx, text); err != nil {
		out.Phase = PhaseFailed
		out.Reason = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, "dispatch failed")
		log.Printf("[ENGINE] dispatch failed for %s: %v", res.Label, err)
		return out, err
	}

	rec := e.commit(now, res.Label, res.Confidence, best.Candidate.Text, text, usedFormatter, e.sourceRef())
	out.Phase = PhaseDispatched
	out.Reason = "dispatched"
	out.Record = &rec
	return e.finish(span, out), nil
}

func (e *Engine) finish(span trace.Span, out Outcome) Outcome {
	span.SetAttributes(attribute.String("companion.phase", string(out.Phase)))
	if out.Phase != PhaseDispatched {
		log.Printf("[ENGINE] %s (%s %.2f): %s", out.Phase, out.Classification.Label, out.Classification.Confidence, out.Reason)
	}
	return out
}

func (e *Engine) rank(res classifier.Result, now time.Time) []score.Ranked {
	ledger := e.gate.Ledger()
	return e.scorer.Score(score.Input{
		Label:         res.Label,
		Confidence:    res.Confidence,
		Candidates:    e.tips.CandidatesFor(res.Label),
		Events:        e.window.Events,
		Now:           now,
		LastLabel:     ledger.Labels[res.Label],
		LastCandidate: ledger.Candidates,
	})
}

func (e *Engine) send(ctx context.Context, text string) error {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.DispatchTimeout)
	defer cancel()
	if err := e.dispatcher.Send(ctx, text); err != nil {
		return fmt.Errorf("%w: dispatch: %w", ErrTransientIO, err)
	}
	return nil
}

func (e *Engine) sourceRef() string {
	if e.snapshot == nil || e.snapshot.Timestamp == 0 {
		return "unknown"
	}
	return strconv.FormatFloat(e.snapshot.Timestamp, 'f', -1, 64)
}

// #endregion evaluate

// #region commit

// commit records a confirmed dispatch. The message is already on screen, so a persistence
// failure is logged and the in-memory state still advances.
func (e *Engine) commit(now time.Time, label string, conf float64, bankText, text string, usedFormatter bool, ref string) DecisionRecord {
	e.gate.Commit(label, bankText, now)
	e.counters.Posted[label]++
	e.lastTip = text

	rec := DecisionRecord{
		ID:                    uuid.NewString(),
		Timestamp:             now,
		Label:                 label,
		Confidence:            conf,
		ChosenText:            text,
		BankText:              bankText,
		UsedExternalFormatter: usedFormatter,
		SourceRef:             ref,
	}
	entry := logging.DecisionEntry{
		ID:                    rec.ID,
		CreatedAt:             rec.Timestamp,
		Label:                 rec.Label,
		Confidence:            rec.Confidence,
		ChosenText:            rec.ChosenText,
		BankText:              rec.BankText,
		UsedExternalFormatter: rec.UsedExternalFormatter,
		SourceRef:             rec.SourceRef,
	}
	if err := e.store.CommitDecision(e.stateLocked(), entry); err != nil {
		log.Printf("[ENGINE] persist decision %s failed: %v", rec.ID, err)
	}
	log.Printf("[ENGINE] dispatched %s (%.2f): %q", label, conf, text)

	for _, fn := range e.observers {
		fn(rec)
	}
	return rec
}

func (e *Engine) stateLocked() state.EngineState {
	return state.EngineState{Ledger: e.gate.Ledger(), Counters: e.counters.Clone()}
}

// #endregion commit

// #region preview

// Preview classifies and scores the current snapshot without dispatching or mutating anything.
func (e *Engine) Preview(ctx context.Context) (Preview, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.snapshot == nil {
		return Preview{}, ErrNoSnapshot
	}
	now := e.clock.Now()
	res := e.classifier.Classify(ctx, *e.snapshot, e.window)

	p := Preview{
		Label:         res.Label,
		Confidence:    res.Confidence,
		Probabilities: res.Distribution,
		RecentEvents:  e.window.Types(),
		Timestamp:     signals.EpochSeconds(now),
	}
	if best, ok := score.Best(e.rank(res, now)); ok {
		p.Tip = best.Candidate.Text
	}
	p.WouldPost = p.Tip != "" && res.Confidence >= e.cfg.ConfThreshold && e.gate.Evaluate(res.Label, now).Admitted()
	return p, nil
}

// #endregion preview

// #region force

// Force dispatches caller-supplied text. Unless req.Force is set, the spoiler limit and the
// global and label cooldowns apply. A successful dispatch advances the ledgers either way.
func (e *Engine) Force(ctx context.Context, req ForceRequest) (DecisionRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ctx, span := e.tracer.Start(ctx, "engine.Force")
	defer span.End()

	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		return DecisionRecord{}, fmt.Errorf("%w: message required", ErrValidation)
	}
	label := strings.TrimSpace(req.Label)
	if label == "" {
		label = ForcedLabel
	}
	if req.SpoilerLevel > e.cfg.MaxSpoilerLevel && !req.Force {
		return DecisionRecord{}, fmt.Errorf("%w: spoiler too high", ErrValidation)
	}

	now := e.clock.Now()
	if !req.Force {
		if d := e.gate.Evaluate(label, now); !d.Admitted() {
			return DecisionRecord{}, fmt.Errorf("%w: %s", ErrCooldownActive, d.Reason)
		}
	}

	if err := e.send(ctx, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dispatch failed")
		return DecisionRecord{}, err
	}
	return e.commit(now, label, 1.0, msg, msg, false, ForcedSourceRef), nil
}

// #endregion force

// #region feedback

// Feedback records whether the user accepted a tip and bumps the label's accepted counter.
func (e *Engine) Feedback(req FeedbackRequest) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if req.Timestamp == nil || strings.TrimSpace(req.Label) == "" {
		return fmt.Errorf("%w: timestamp and label required", ErrValidation)
	}

	counters := e.counters.Clone()
	if req.Accepted {
		counters.Accepted[req.Label]++
	}
	entry := logging.FeedbackEntry{
		DecisionTimestamp: *req.Timestamp,
		Label:             req.Label,
		Accepted:          req.Accepted,
		ReceivedAt:        e.clock.Now(),
	}
	st := state.EngineState{Ledger: e.gate.Ledger(), Counters: counters}
	if err := e.store.CommitFeedback(st, entry); err != nil {
		return fmt.Errorf("%w: feedback: %w", ErrTransientIO, err)
	}
	e.counters = counters
	return nil
}

// #endregion feedback

// #region status

// Status reports the classifier strategy, the last poll, the last dispatch, and the config.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := Status{
		ModelLoaded: e.classifier.Learned(),
		LastTip:     e.lastTip,
		Config: StatusConfig{
			PollInterval:    e.cfg.PollInterval.Seconds(),
			GlobalCooldown:  e.cfg.GlobalCooldown.Seconds(),
			LabelCooldown:   e.cfg.LabelCooldown.Seconds(),
			ConfThreshold:   e.cfg.ConfThreshold,
			MaxSpoilerLevel: e.cfg.MaxSpoilerLevel,
			RAGEnabled:      e.cfg.RetrievalEnabled,
		},
		Tips:     e.tips.Info(),
		Counters: e.counters.Clone(),
	}
	if e.snapshot != nil {
		ts := e.snapshot.Timestamp
		s.LastPolled = &ts
	}
	return s
}

// Ledger returns a copy of the cooldown ledger.
func (e *Engine) Ledger() state.Ledger {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gate.Ledger()
}

// #endregion status

// #region flush

// Flush persists the ledgers and counters.
func (e *Engine) Flush() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.store.Save(e.stateLocked()); err != nil {
		return fmt.Errorf("%w: flush: %w", ErrTransientIO, err)
	}
	return nil
}

// #endregion flush
