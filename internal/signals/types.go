package signals

import "time"

// #region snapshot

// Snapshot is one polled sample of the game session. Values are immutable once decoded.
type Snapshot struct {
	Timestamp          float64   `json:"timestamp"`
	Position           Position  `json:"position"`
	Vitals             Vitals    `json:"vitals"`
	Time               TimeOfDay `json:"time"`
	Motion             Motion    `json:"motion"`
	Inventory          Inventory `json:"inventory"`
	Focus              Focus     `json:"focus"`
	SelectedItemExists bool      `json:"selectedItemExists"`
	RecentEvents       []Event   `json:"recentEvents"`
}

// Position is the player's block coordinates.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Vitals holds health (0-20) and hunger (0-20).
type Vitals struct {
	Health float64 `json:"health"`
	Hunger int     `json:"hunger"`
}

// TimeOfDay is the world clock (0..23999) and the night flag.
type TimeOfDay struct {
	TimeOfDay int64 `json:"timeOfDay"`
	IsNight   bool  `json:"isNight"`
}

// Motion is the per-tick movement vector.
type Motion struct {
	DX float64 `json:"dx"`
	DY float64 `json:"dy"`
	DZ float64 `json:"dz"`
}

// Inventory holds the aggregate counts the mod reports.
type Inventory struct {
	Logs   int `json:"logs"`
	Planks int `json:"planks"`
	Foods  int `json:"foods"`
}

// Focus describes what the crosshair is on.
type Focus struct {
	BlockUnderCrosshair string `json:"blockUnderCrosshair"`
}

// #endregion snapshot

// #region event

// Event is a discrete game event. Timestamp is epoch seconds; 0 means "unknown, treat as current".
type Event struct {
	Type       string         `json:"type"`
	Timestamp  float64        `json:"timestamp"`
	Attributes map[string]any `json:"details,omitempty"`
}

// Event types the engine reacts to.
const (
	EventPlayerDeath = "player_death"
	EventDamageTaken = "damage_taken"
	EventCombatStart = "combat_start"
	EventMobKilled   = "mob_killed"
	EventMineAttempt = "mine_attempt"
	EventBlockBroken = "block_broken"
)

// #endregion event

// #region window

// Window is the set of events attributed to one poll cycle.
type Window struct {
	Events []Event
	Cutoff time.Time // wall-clock start of the next window
}

// Types returns the event types in window order.
func (w Window) Types() []string {
	out := make([]string, len(w.Events))
	for i, e := range w.Events {
		out[i] = e.Type
	}
	return out
}

// Has reports whether any event in the window has one of the given types.
func (w Window) Has(types ...string) bool {
	for _, e := range w.Events {
		for _, t := range types {
			if e.Type == t {
				return true
			}
		}
	}
	return false
}

// #endregion window
