package classifier

import (
	"log"
	"time"

	"github.com/caiga/companion/internal/signals"
)

// Config selects the classification strategy.
type Config struct {
	Model        Model  // nil when no model service is configured
	ColumnsPath  string // feature column artifact written at training time
	ModelTimeout time.Duration
}

// New returns the learned strategy when both a model and its column artifact are available,
// and the rule strategy otherwise. Callers see only the Classifier interface.
func New(cfg Config) Classifier {
	if cfg.Model == nil {
		log.Printf("[CLASSIFY] no model service configured, using rules")
		return NewRuleClassifier()
	}
	cols, err := signals.LoadColumns(cfg.ColumnsPath)
	if err != nil {
		log.Printf("[CLASSIFY] model artifact unavailable, using rules: %v", err)
		return NewRuleClassifier()
	}
	log.Printf("[CLASSIFY] learned strategy active (%d feature columns)", len(cols))
	return NewLearnedClassifier(cfg.Model, cols, cfg.ModelTimeout)
}
