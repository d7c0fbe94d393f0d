package state

import (
	"maps"
	"time"
)

// #region ledger
// Ledger holds the three cooldown clocks. Values only move forward.
type Ledger struct {
	Global     time.Time            `json:"global"`
	Labels     map[string]time.Time `json:"labels"`
	Candidates map[string]time.Time `json:"candidates"` // keyed by candidate bank text
}

// NewLedger returns an empty ledger.
func NewLedger() Ledger {
	return Ledger{
		Labels:     make(map[string]time.Time),
		Candidates: make(map[string]time.Time),
	}
}

// Clone returns a deep copy.
func (l Ledger) Clone() Ledger {
	c := Ledger{Global: l.Global, Labels: maps.Clone(l.Labels), Candidates: maps.Clone(l.Candidates)}
	if c.Labels == nil {
		c.Labels = make(map[string]time.Time)
	}
	if c.Candidates == nil {
		c.Candidates = make(map[string]time.Time)
	}
	return c
}

// #endregion ledger

// #region counters
// Counters tracks per-label dispatch and acceptance totals.
type Counters struct {
	Posted   map[string]int `json:"posted"`
	Accepted map[string]int `json:"accepted"`
}

// NewCounters returns empty counters.
func NewCounters() Counters {
	return Counters{Posted: make(map[string]int), Accepted: make(map[string]int)}
}

// Clone returns a deep copy.
func (c Counters) Clone() Counters {
	out := Counters{Posted: maps.Clone(c.Posted), Accepted: maps.Clone(c.Accepted)}
	if out.Posted == nil {
		out.Posted = make(map[string]int)
	}
	if out.Accepted == nil {
		out.Accepted = make(map[string]int)
	}
	return out
}

// #endregion counters

// #region engine-state
// EngineState is the persisted part of the decision engine.
type EngineState struct {
	Ledger   Ledger   `json:"ledger"`
	Counters Counters `json:"counters"`
}

// NewEngineState returns an empty state.
func NewEngineState() EngineState {
	return EngineState{Ledger: NewLedger(), Counters: NewCounters()}
}

// Clone returns a deep copy.
func (s EngineState) Clone() EngineState {
	return EngineState{Ledger: s.Ledger.Clone(), Counters: s.Counters.Clone()}
}

// #endregion engine-state
