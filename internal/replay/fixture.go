package replay

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/caiga/companion/internal/engine"
	"github.com/caiga/companion/internal/signals"
	"github.com/caiga/companion/internal/tips"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description string          `json:"description"`
	Start       time.Time       `json:"start"`
	Config      FixtureConfig   `json:"config"`
	Tips        json.RawMessage `json:"tips,omitempty"` // tip bank document; the bundled bank when absent
	Steps       []FixtureStep   `json:"steps"`
}

// FixtureConfig overrides engine defaults. Zero fields keep the default.
type FixtureConfig struct {
	ConfThreshold         float64 `json:"conf_threshold"`
	MaxSpoilerLevel       int     `json:"max_spoiler_level"`
	GlobalCooldownSeconds float64 `json:"global_cooldown_seconds"`
	LabelCooldownSeconds  float64 `json:"label_cooldown_seconds"`
	TipCooldownSeconds    float64 `json:"tip_cooldown_seconds"`
}

// FixtureStep is one timed snapshot plus the expected engine outcome.
type FixtureStep struct {
	ID            string          `json:"id"`
	AtSeconds     float64         `json:"at_seconds"`
	Snapshot      json.RawMessage `json:"snapshot"`
	DispatchFails bool            `json:"dispatch_fails"`
	Expect        string          `json:"expect,omitempty"`       // expected phase
	ExpectLabel   string          `json:"expect_label,omitempty"` // expected classification label
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// ToSteps decodes each step's snapshot with the same defaults as a live poll.
func (f *Fixture) ToSteps() ([]Step, error) {
	steps := make([]Step, len(f.Steps))
	for i, fs := range f.Steps {
		snap, err := signals.DecodeSnapshot(fs.Snapshot)
		if err != nil {
			return nil, fmt.Errorf("step %s: %w", fs.ID, err)
		}
		steps[i] = Step{
			ID:            fs.ID,
			At:            time.Duration(fs.AtSeconds * float64(time.Second)),
			Snapshot:      snap,
			DispatchFails: fs.DispatchFails,
		}
	}
	return steps, nil
}

// ToTable parses the fixture's tip bank, or falls back to the bundled one.
func (f *Fixture) ToTable() (tips.Table, error) {
	if len(f.Tips) > 0 {
		t, _, err := tips.Parse(f.Tips)
		return t, err
	}
	t, _, _ := tips.NewProvider(tips.ProviderConfig{}).Load(context.Background())
	return t, nil
}

// ToEngineConfig applies the fixture overrides to the engine defaults.
func (fc FixtureConfig) ToEngineConfig() engine.Config {
	cfg := engine.DefaultConfig()
	if fc.ConfThreshold != 0 {
		cfg.ConfThreshold = fc.ConfThreshold
	}
	if fc.MaxSpoilerLevel != 0 {
		cfg.MaxSpoilerLevel = fc.MaxSpoilerLevel
	}
	if fc.GlobalCooldownSeconds != 0 {
		cfg.GlobalCooldown = time.Duration(fc.GlobalCooldownSeconds * float64(time.Second))
	}
	if fc.LabelCooldownSeconds != 0 {
		cfg.LabelCooldown = time.Duration(fc.LabelCooldownSeconds * float64(time.Second))
	}
	if fc.TipCooldownSeconds != 0 {
		cfg.TipCooldown = time.Duration(fc.TipCooldownSeconds * float64(time.Second))
	}
	return cfg
}

// #endregion fixture-loader
