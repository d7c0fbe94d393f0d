package classifier

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/caiga/companion/internal/eval"
	"github.com/caiga/companion/internal/signals"
)

// DefaultModelTimeout bounds one model call.
const DefaultModelTimeout = 2 * time.Second

// #region learned

// LearnedClassifier asks a model for a label distribution and answers with the rule ladder
// whenever the model call or its output is unusable.
type LearnedClassifier struct {
	model    Model
	columns  []string
	timeout  time.Duration
	harness  *eval.EvalHarness
	fallback *RuleClassifier
}

// NewLearnedClassifier wires a model behind the given feature column order.
func NewLearnedClassifier(model Model, columns []string, timeout time.Duration) *LearnedClassifier {
	if timeout <= 0 {
		timeout = DefaultModelTimeout
	}
	return &LearnedClassifier{
		model:    model,
		columns:  columns,
		timeout:  timeout,
		harness:  eval.NewEvalHarness(eval.DefaultEvalConfig(Labels)),
		fallback: NewRuleClassifier(),
	}
}

func (c *LearnedClassifier) Learned() bool { return true }

// Classify never surfaces a model error; failures are logged and degrade to rules for this call.
func (c *LearnedClassifier) Classify(ctx context.Context, snap signals.Snapshot, w signals.Window) Result {
	res, err := c.predict(ctx, snap)
	if err != nil {
		log.Printf("[CLASSIFY] model unavailable, using rules: %v", err)
		return c.fallback.Classify(ctx, snap, w)
	}
	return res
}

func (c *LearnedClassifier) predict(ctx context.Context, snap signals.Snapshot) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	vec := signals.Vector(signals.Featurize(snap), c.columns)
	labels, probs, err := c.model.PredictProba(ctx, vec, c.columns)
	if err != nil {
		return Result{}, fmt.Errorf("predict: %w", err)
	}

	label, dist, err := normalize(labels, probs)
	if err != nil {
		return Result{}, err
	}
	res := Result{
		Label:        label,
		Confidence:   dist[label],
		Distribution: dist,
		Source:       "model",
	}

	ev := c.harness.Run(res.Distribution, res.Label, res.Confidence)
	if !ev.Passed {
		return Result{}, errors.New(ev.Reason)
	}
	return res, nil
}

// #endregion learned

// #region normalize

// normalize merges model labels with the known set, renormalizes, and picks the argmax.
// Ties go to the first label in known order, then model order.
func normalize(labels []string, probs []float64) (string, map[string]float64, error) {
	if len(labels) == 0 || len(labels) != len(probs) {
		return "", nil, fmt.Errorf("shape mismatch: %d labels, %d probabilities", len(labels), len(probs))
	}

	order := append([]string(nil), Labels...)
	dist := make(map[string]float64, len(Labels)+len(labels))
	for _, l := range Labels {
		dist[l] = 0
	}
	for i, l := range labels {
		if _, ok := dist[l]; !ok {
			order = append(order, l)
		}
		if probs[i] < 0 {
			return "", nil, fmt.Errorf("negative probability for %s", l)
		}
		dist[l] += probs[i]
	}

	var sum float64
	for _, p := range dist {
		sum += p
	}
	if sum <= 0 {
		return "", nil, errors.New("empty distribution")
	}

	best := ""
	for _, l := range order {
		dist[l] /= sum
		if best == "" || dist[l] > dist[best] {
			best = l
		}
	}
	return best, dist, nil
}

// #endregion normalize
