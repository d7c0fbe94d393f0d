package classifier

import (
	"context"
	"strings"

	"github.com/caiga/companion/internal/signals"
)

// #region keywords

var resourceKeywords = []string{"ore", "log", "crop"}

var miningEvents = []string{signals.EventMineAttempt, signals.EventBlockBroken}

// #endregion keywords

// #region rules

// RuleClassifier evaluates a fixed priority ladder. Earlier rules pre-empt later ones.
type RuleClassifier struct{}

// NewRuleClassifier returns the deterministic rule strategy.
func NewRuleClassifier() *RuleClassifier { return &RuleClassifier{} }

func (RuleClassifier) Learned() bool { return false }

// Classify never fails. No model call.
func (RuleClassifier) Classify(_ context.Context, snap signals.Snapshot, w signals.Window) Result {
	label, conf := ladder(snap, w)
	return Result{
		Label:        label,
		Confidence:   conf,
		Distribution: spread(label, conf),
		Source:       "rules",
	}
}

func ladder(snap signals.Snapshot, w signals.Window) (string, float64) {
	health := snap.Vitals.Health

	// Death outranks everything else.
	if w.Has(signals.EventPlayerDeath) {
		return LabelLowHealth, 0.98
	}
	if w.Has(signals.EventDamageTaken) && health < 10 {
		return LabelLowHealth, 0.95
	}
	if w.Has(signals.EventCombatStart, signals.EventMobKilled) {
		return LabelCombat, 0.90
	}
	if health < 8 {
		return LabelLowHealth, 0.95
	}
	if snap.Vitals.Hunger < 6 {
		return LabelLowFood, 0.90
	}
	if snap.Time.IsNight && snap.Inventory.Logs < 2 {
		return LabelNightRisk, 0.85
	}
	if w.Has(miningEvents...) || snap.Position.Y <= 32 {
		return LabelMiningMode, 0.75
	}
	block := strings.ToLower(snap.Focus.BlockUnderCrosshair)
	for _, kw := range resourceKeywords {
		if strings.Contains(block, kw) {
			return LabelNearResource, 0.70
		}
	}
	return LabelExploring, 0.60
}

// spread assigns conf to label and divides the rest evenly over the other known labels.
func spread(label string, conf float64) map[string]float64 {
	dist := make(map[string]float64, len(Labels))
	rest := (1 - conf) / float64(len(Labels)-1)
	for _, l := range Labels {
		dist[l] = rest
	}
	dist[label] = conf
	return dist
}

// #endregion rules
