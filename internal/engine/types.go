package engine

//go:generate go tool mockgen -destination=./mocks/dispatcher_mock.go -package=mocks . Dispatcher

import (
	"context"
	"errors"
	"time"

	"github.com/caiga/companion/internal/classifier"
	"github.com/caiga/companion/internal/gate"
	"github.com/caiga/companion/internal/logging"
	"github.com/caiga/companion/internal/score"
	"github.com/caiga/companion/internal/state"
	"github.com/caiga/companion/internal/tips"
)

// #region errors
var (
	// ErrTransientIO marks fetch, dispatch, and persistence failures. The next cycle retries.
	ErrTransientIO = errors.New("engine: transient io failure")
	// ErrValidation marks a rejected synchronous request.
	ErrValidation = errors.New("engine: invalid request")
	// ErrCooldownActive is returned by Force when a cooldown blocks a non-forced request.
	ErrCooldownActive = errors.New("engine: cooldown active")
	// ErrNoSnapshot is returned before the first snapshot has been observed.
	ErrNoSnapshot = errors.New("engine: no snapshot observed yet")
)

// #endregion errors

// #region collaborators

// Clock abstracts wall time so tests can drive cooldowns deterministically.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Dispatcher delivers a message to the user. A nil error means the message was shown.
type Dispatcher interface {
	Send(ctx context.Context, text string) error
}

// Enricher resolves a NeedsEnrichment candidate into dispatchable text.
type Enricher interface {
	Enrich(ctx context.Context, text, query string) string
}

// CandidateSource serves the current tip bank.
type CandidateSource interface {
	CandidatesFor(label string) []tips.Candidate
	Info() tips.Info
}

// Persister stores engine state and journals. *state.Store satisfies it.
type Persister interface {
	Load() state.EngineState
	Save(st state.EngineState) error
	CommitDecision(st state.EngineState, entry logging.DecisionEntry) error
	CommitFeedback(st state.EngineState, entry logging.FeedbackEntry) error
}

// #endregion collaborators

// #region config

// Config holds the decision thresholds and timeouts.
type Config struct {
	ConfThreshold   float64
	MaxSpoilerLevel int
	GlobalCooldown  time.Duration
	LabelCooldown   time.Duration
	TipCooldown     time.Duration
	DispatchTimeout time.Duration

	// Reported by Status only.
	PollInterval     time.Duration
	RetrievalEnabled bool
}

// DefaultConfig returns the default engine thresholds.
func DefaultConfig() Config {
	g := gate.DefaultGateConfig()
	s := score.DefaultConfig()
	return Config{
		ConfThreshold:   0.6,
		MaxSpoilerLevel: s.MaxSpoilerLevel,
		GlobalCooldown:  g.GlobalCooldown,
		LabelCooldown:   g.LabelCooldown,
		TipCooldown:     s.TipCooldown,
		DispatchTimeout: 5 * time.Second,
		PollInterval:    15 * time.Second,
	}
}

// #endregion config

// #region outcome

// Phase is the terminal state of one evaluation cycle.
type Phase string

const (
	PhaseSuppressed Phase = "suppressed"
	PhaseRejected   Phase = "rejected"
	PhaseDispatched Phase = "dispatched"
	PhaseFailed     Phase = "failed"
)

// Outcome describes what one Evaluate call did.
type Outcome struct {
	Phase          Phase              `json:"phase"`
	Reason         string             `json:"reason"`
	Classification classifier.Result  `json:"classification"`
	Ranked         []score.Ranked     `json:"ranked,omitempty"`
	Gate           *gate.GateDecision `json:"gate,omitempty"`
	Record         *DecisionRecord    `json:"record,omitempty"` // set when dispatched
}

// DecisionRecord is one confirmed dispatch. Append-only.
type DecisionRecord struct {
	ID                    string    `json:"id"`
	Timestamp             time.Time `json:"timestamp"`
	Label                 string    `json:"label"`
	Confidence            float64   `json:"confidence"`
	ChosenText            string    `json:"chosen_text"`
	BankText              string    `json:"bank_text"`
	UsedExternalFormatter bool      `json:"used_external_formatter"`
	SourceRef             string    `json:"source_ref"`
}

// #endregion outcome

// #region requests

// ForceRequest dispatches caller-supplied text outside the poll cycle.
type ForceRequest struct {
	Message      string `json:"message"`
	Label        string `json:"label"`
	SpoilerLevel int    `json:"spoiler_level"`
	Force        bool   `json:"force"`
}

// FeedbackRequest reports whether the user accepted a dispatched tip.
type FeedbackRequest struct {
	Timestamp *float64 `json:"timestamp"` // nil when the client omitted it; 0 is a valid value
	Label     string   `json:"label"`
	Accepted  bool     `json:"accepted"`
}

// #endregion requests

// #region views

// Preview is a side-effect-free evaluation of the current snapshot.
type Preview struct {
	Label         string             `json:"label"`
	Confidence    float64            `json:"confidence"`
	Probabilities map[string]float64 `json:"probabilities"`
	Tip           string             `json:"tip"`
	RecentEvents  []string           `json:"recent_events"`
	WouldPost     bool               `json:"would_post"`
	Timestamp     float64            `json:"timestamp"`
}

// Status summarizes the engine for operators.
type Status struct {
	ModelLoaded bool           `json:"model_loaded"`
	LastPolled  *float64       `json:"last_polled"`
	LastTip     string         `json:"last_tip"`
	Config      StatusConfig   `json:"config"`
	Tips        tips.Info      `json:"tips"`
	Counters    state.Counters `json:"counters"`
}

// StatusConfig is the operator-visible part of Config, in seconds.
type StatusConfig struct {
	PollInterval    float64 `json:"poll_interval"`
	GlobalCooldown  float64 `json:"global_cooldown"`
	LabelCooldown   float64 `json:"label_cooldown"`
	ConfThreshold   float64 `json:"conf_threshold"`
	MaxSpoilerLevel int     `json:"max_spoiler_level"`
	RAGEnabled      bool    `json:"rag_enabled"`
}

// #endregion views
