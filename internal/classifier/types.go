package classifier

import (
	"context"

	"github.com/caiga/companion/internal/signals"
)

// #region labels

// Context labels produced by the rule ladder.
const (
	LabelLowHealth    = "low_health"
	LabelLowFood      = "low_food"
	LabelNightRisk    = "night_risk"
	LabelMiningMode   = "mining_mode"
	LabelNearResource = "near_resource"
	LabelExploring    = "exploring"
	LabelCombat       = "combat"
	LabelBuilding     = "building"
)

// Labels is the known label set. Every distribution carries all of them.
var Labels = []string{
	LabelLowHealth,
	LabelLowFood,
	LabelNightRisk,
	LabelMiningMode,
	LabelNearResource,
	LabelExploring,
	LabelCombat,
	LabelBuilding,
}

// #endregion labels

// #region result

// Result is one classification. Distribution sums to 1 and Distribution[Label] == Confidence.
type Result struct {
	Label        string             `json:"label"`
	Confidence   float64            `json:"confidence"`
	Distribution map[string]float64 `json:"distribution"`
	Source       string             `json:"source"` // "rules" or "model"
}

// #endregion result

// #region interfaces

// Classifier maps a snapshot and its event window to a context label.
type Classifier interface {
	Classify(ctx context.Context, snap signals.Snapshot, window signals.Window) Result
	// Learned reports whether a trained model backs this classifier.
	Learned() bool
}

// Model is an opaque probability scorer over a feature vector.
type Model interface {
	PredictProba(ctx context.Context, features []float64, columns []string) (labels []string, probs []float64, err error)
}

// #endregion interfaces
