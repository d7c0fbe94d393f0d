package signals

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"
)

// #region columns

// FeatureColumns is the canonical feature order. A trained model's column file must match it
// or name a subset/reordering of it.
var FeatureColumns = []string{
	"x", "y", "z", "y_level",
	"health", "hunger",
	"timeOfDay", "isNight",
	"dx", "dy", "dz", "speed",
	"logs", "planks", "foods",
	"block_is_ore", "block_is_log", "block_is_crop",
	"recent_pickup", "recent_mine_attempt", "recent_damage",
	"selectedItemExists",
}

var cropKeywords = []string{"crop", "wheat", "carrot", "potato"}

// #endregion columns

// #region featurize

// Featurize converts a snapshot into named numeric features. Every column in FeatureColumns
// is present.
func Featurize(s Snapshot) map[string]float64 {
	f := make(map[string]float64, len(FeatureColumns))

	f["x"] = s.Position.X
	f["y"] = s.Position.Y
	f["z"] = s.Position.Z
	f["y_level"] = s.Position.Y

	f["health"] = s.Vitals.Health
	f["hunger"] = float64(s.Vitals.Hunger)

	f["timeOfDay"] = float64(s.Time.TimeOfDay)
	f["isNight"] = boolFeature(s.Time.IsNight)

	f["dx"] = s.Motion.DX
	f["dy"] = s.Motion.DY
	f["dz"] = s.Motion.DZ
	f["speed"] = math.Sqrt(s.Motion.DX*s.Motion.DX + s.Motion.DY*s.Motion.DY + s.Motion.DZ*s.Motion.DZ)

	f["logs"] = float64(s.Inventory.Logs)
	f["planks"] = float64(s.Inventory.Planks)
	f["foods"] = float64(s.Inventory.Foods)

	block := strings.ToLower(s.Focus.BlockUnderCrosshair)
	f["block_is_ore"] = boolFeature(strings.Contains(block, "ore"))
	f["block_is_log"] = boolFeature(strings.Contains(block, "log"))
	f["block_is_crop"] = boolFeature(containsAny(block, cropKeywords))

	types := make(map[string]bool, len(s.RecentEvents))
	for _, e := range s.RecentEvents {
		types[e.Type] = true
	}
	f["recent_pickup"] = boolFeature(types["pickup"])
	f["recent_mine_attempt"] = boolFeature(types["mine_attempt"])
	f["recent_damage"] = boolFeature(types["damage"])

	f["selectedItemExists"] = boolFeature(s.SelectedItemExists)
	return f
}

// Vector lays the features out in the given column order. Unknown columns read as 0.
func Vector(features map[string]float64, columns []string) []float64 {
	vec := make([]float64, len(columns))
	for i, c := range columns {
		vec[i] = features[c]
	}
	return vec
}

// #endregion featurize

// #region column-file

// LoadColumns reads a JSON array of column names written alongside a trained model.
func LoadColumns(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read feature columns %s: %w", path, err)
	}
	var cols []string
	if err := json.Unmarshal(data, &cols); err != nil {
		return nil, fmt.Errorf("parse feature columns %s: %w", path, err)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("feature columns %s: empty", path)
	}
	return cols, nil
}

// #endregion column-file

// #region helpers
func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// #endregion helpers
