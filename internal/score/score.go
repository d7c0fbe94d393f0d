package score

import (
	"math"
	"sort"
	"time"

	"github.com/caiga/companion/internal/signals"
	"github.com/caiga/companion/internal/tips"
)

// #region relevance

// relevantEvents lists, per label, the event types that make a tip for that label more timely.
var relevantEvents = map[string][]string{
	"low_health":    {"damage_taken", "player_death", "combat_start"},
	"low_food":      {"hunger_depleted", "sprint_fail"},
	"combat":        {"damage_taken", "combat_start", "mob_killed", "player_death"},
	"mining_mode":   {"mine_attempt", "block_broken", "ore_found"},
	"night_risk":    {"time_sunset", "mob_spawn_nearby"},
	"near_resource": {"block_targeted", "ore_spotted"},
	"exploring":     {"biome_changed", "structure_found", "coordinates_far"},
	"building":      {"block_placed", "crafting_table_used"},
	"enchanting":    {"enchant_attempt", "exp_gained"},
	"farming":       {"crop_harvested", "animal_bred"},
	"nether":        {"dimension_nether", "fire_damage", "piglin_aggro"},
}

// Boost is the event relevance multiplier for label, always in [1, MaxBoost].
func Boost(label string, events []signals.Event) float64 {
	relevant := relevantEvents[label]
	if len(events) == 0 || len(relevant) == 0 {
		return 1
	}
	matches := 0
	for _, e := range events {
		for _, r := range relevant {
			if e.Type == r {
				matches++
				break
			}
		}
	}
	if matches == 0 {
		return 1
	}
	return math.Min(MaxBoost, 1+float64(matches)/float64(len(events))*BoostSpan)
}

// TimeFactor is 1 right after the label was dispatched and decays to 0.5 over FreshnessHorizon.
// A zero last means the label was never dispatched.
func TimeFactor(now, last time.Time) float64 {
	since := FreshnessHorizon
	if !last.IsZero() {
		since = max(0, min(now.Sub(last), FreshnessHorizon))
	}
	return 1 - since.Seconds()/DampeningSpan.Seconds()
}

// #endregion relevance

// #region scorer

// Scorer ranks candidates for one label.
type Scorer struct {
	cfg Config
}

// NewScorer creates a scorer with the given filter limits.
func NewScorer(cfg Config) *Scorer {
	return &Scorer{cfg: cfg}
}

// Filter drops candidates above the spoiler limit and those still inside their own cooldown.
func (s *Scorer) Filter(cands []tips.Candidate, lastCandidate map[string]time.Time, now time.Time) []tips.Candidate {
	out := make([]tips.Candidate, 0, len(cands))
	for _, c := range cands {
		if c.SpoilerLevel > s.cfg.MaxSpoilerLevel {
			continue
		}
		if last, ok := lastCandidate[c.Text]; ok && !last.IsZero() && now.Sub(last) < s.cfg.TipCooldown {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Score filters and ranks the candidates, best first. Equal scores keep bank order.
// An empty result means nothing is eligible this cycle.
func (s *Scorer) Score(in Input) []Ranked {
	eligible := s.Filter(in.Candidates, in.LastCandidate, in.Now)
	if len(eligible) == 0 {
		return nil
	}

	boost := Boost(in.Label, in.Events)
	tf := TimeFactor(in.Now, in.LastLabel)
	ranked := make([]Ranked, len(eligible))
	for i, c := range eligible {
		ranked[i] = Ranked{
			Candidate:  c,
			Score:      in.Confidence * c.Priority * boost * (1 - 0.5*tf),
			Boost:      boost,
			TimeFactor: tf,
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

// Best returns the winner of a ranking, if any.
func Best(ranked []Ranked) (Ranked, bool) {
	if len(ranked) == 0 {
		return Ranked{}, false
	}
	return ranked[0], true
}

// #endregion scorer
