package gate

import (
	"fmt"
	"time"

	"github.com/caiga/companion/internal/state"
)

// #region gate
// Gate answers admission queries against the cooldown ledger and advances it on commit.
// Not safe for concurrent use; the engine serializes access.
type Gate struct {
	config GateConfig
	ledger state.Ledger
}

// NewGate creates a gate over a copy of the given ledger.
func NewGate(config GateConfig, ledger state.Ledger) *Gate {
	return &Gate{config: config, ledger: ledger.Clone()}
}

// Evaluate admits only if both the global and the label cooldown have elapsed.
// The per-candidate cooldown is enforced by the scorer's filter, not here.
func (g *Gate) Evaluate(label string, now time.Time) GateDecision {
	if rem := remaining(g.ledger.Global, g.config.GlobalCooldown, now); rem > 0 {
		return GateDecision{
			Action:    "reject",
			Reason:    fmt.Sprintf("global cooldown: %s remaining", rem.Round(time.Millisecond)),
			Scope:     ScopeGlobal,
			Remaining: rem,
		}
	}
	if rem := remaining(g.ledger.Labels[label], g.config.LabelCooldown, now); rem > 0 {
		return GateDecision{
			Action:    "reject",
			Reason:    fmt.Sprintf("label %s cooldown: %s remaining", label, rem.Round(time.Millisecond)),
			Scope:     ScopeLabel,
			Remaining: rem,
		}
	}
	return GateDecision{Action: "admit", Reason: "cooldowns elapsed"}
}

// Commit records a confirmed dispatch in all three ledgers. Entries never move backwards.
func (g *Gate) Commit(label, text string, now time.Time) {
	g.ledger.Global = later(g.ledger.Global, now)
	g.ledger.Labels[label] = later(g.ledger.Labels[label], now)
	g.ledger.Candidates[text] = later(g.ledger.Candidates[text], now)
}

// Ledger returns a copy of the current ledger.
func (g *Gate) Ledger() state.Ledger {
	return g.ledger.Clone()
}

// Config returns the active cooldowns.
func (g *Gate) Config() GateConfig {
	return g.config
}

// #endregion gate

// #region helpers
// remaining is how long until last+window; zero when last is unset or already past.
func remaining(last time.Time, window time.Duration, now time.Time) time.Duration {
	if last.IsZero() {
		return 0
	}
	if rem := window - now.Sub(last); rem > 0 {
		return rem
	}
	return 0
}

func later(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}

// #endregion helpers
