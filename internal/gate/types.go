package gate

import "time"

// #region scope
// Scope names the cooldown layer that blocked an admission.
type Scope string

const (
	ScopeNone   Scope = ""
	ScopeGlobal Scope = "global"
	ScopeLabel  Scope = "label"
)

// #endregion scope

// #region gate-config
// GateConfig holds the cooldown windows checked at admission.
type GateConfig struct {
	GlobalCooldown time.Duration // between any two dispatches
	LabelCooldown  time.Duration // between two dispatches for the same label
}

// DefaultGateConfig returns the default cooldowns.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		GlobalCooldown: 15 * time.Second,
		LabelCooldown:  30 * time.Second,
	}
}

// #endregion gate-config

// #region gate-decision
// GateDecision is the output of an admission check.
type GateDecision struct {
	Action    string        `json:"action"` // "admit" | "reject"
	Reason    string        `json:"reason"`
	Scope     Scope         `json:"scope,omitempty"`     // set on reject
	Remaining time.Duration `json:"remaining,omitempty"` // time until the blocking cooldown ends
}

// Admitted reports whether the decision lets a dispatch proceed.
func (d GateDecision) Admitted() bool { return d.Action == "admit" }

// #endregion gate-decision
