package score

import (
	"time"

	"github.com/caiga/companion/internal/signals"
	"github.com/caiga/companion/internal/tips"
)

// Scoring constants.
const (
	// MaxBoost caps the event relevance multiplier.
	MaxBoost = 3.0
	// BoostSpan is the boost added when every event in the window is relevant.
	BoostSpan = 2.0
	// FreshnessHorizon is how far back a label dispatch still dampens the score.
	FreshnessHorizon = 60 * time.Second
	// DampeningSpan scales the freshness factor into [0.5, 1].
	DampeningSpan = 120 * time.Second
)

// Config holds the candidate filter limits.
type Config struct {
	MaxSpoilerLevel int
	TipCooldown     time.Duration
}

// DefaultConfig returns the default filter limits.
func DefaultConfig() Config {
	return Config{
		MaxSpoilerLevel: 1,
		TipCooldown:     180 * time.Second,
	}
}

// Input is everything one scoring pass reads. Ledger maps are read-only here.
type Input struct {
	Label         string
	Confidence    float64
	Candidates    []tips.Candidate
	Events        []signals.Event
	Now           time.Time
	LastLabel     time.Time            // zero when the label was never dispatched
	LastCandidate map[string]time.Time // keyed by candidate bank text
}

// Ranked is a scored candidate.
type Ranked struct {
	Candidate  tips.Candidate `json:"candidate"`
	Score      float64        `json:"score"`
	Boost      float64        `json:"boost"`
	TimeFactor float64        `json:"time_factor"`
}
