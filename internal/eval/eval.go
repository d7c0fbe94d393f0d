package eval

import (
	"fmt"
	"math"
)

// #region eval-harness
// EvalHarness validates classifier output before the engine trusts it.
type EvalHarness struct {
	config EvalConfig
}

// NewEvalHarness creates an eval harness with the given configuration.
func NewEvalHarness(config EvalConfig) *EvalHarness {
	return &EvalHarness{config: config}
}

// Run checks a (label, confidence, distribution) triple. A failing result means the
// caller should discard the output.
func (h *EvalHarness) Run(dist map[string]float64, label string, confidence float64) EvalResult {
	var metrics []EvalMetric
	var failReasons []string

	// 1. Every probability is a finite value in [0, 1]
	bad := 0
	var sum float64
	for l, p := range dist {
		if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 || p > 1 {
			bad++
			failReasons = append(failReasons, fmt.Sprintf("probability for %s out of range: %v", l, p))
			continue
		}
		sum += p
	}
	metrics = append(metrics, EvalMetric{Name: "out_of_range", Value: float64(bad), Pass: bad == 0})

	// 2. Distribution sums to 1
	sumPass := math.Abs(sum-1) <= h.config.SumTolerance
	metrics = append(metrics, EvalMetric{Name: "distribution_sum", Value: sum, Pass: sumPass})
	if !sumPass {
		failReasons = append(failReasons, fmt.Sprintf("distribution sums to %.6f", sum))
	}

	// 3. Known labels present
	missing := 0
	for _, l := range h.config.RequiredLabels {
		if _, ok := dist[l]; !ok {
			missing++
		}
	}
	metrics = append(metrics, EvalMetric{Name: "missing_labels", Value: float64(missing), Pass: missing == 0})
	if missing > 0 {
		failReasons = append(failReasons, fmt.Sprintf("%d known labels missing", missing))
	}

	// 4. Confidence matches the chosen label's mass
	p, ok := dist[label]
	confPass := ok && math.Abs(p-confidence) <= h.config.ConfTolerance
	metrics = append(metrics, EvalMetric{Name: "label_confidence", Value: confidence, Pass: confPass})
	if !confPass {
		failReasons = append(failReasons, fmt.Sprintf("confidence %.4f does not match dist[%s]", confidence, label))
	}

	passed := len(failReasons) == 0
	reason := "all checks passed"
	if !passed {
		reason = fmt.Sprintf("eval failed: %s", failReasons[0])
		if len(failReasons) > 1 {
			reason = fmt.Sprintf("eval failed: %d checks: %s", len(failReasons), failReasons[0])
		}
	}

	return EvalResult{
		Passed:  passed,
		Metrics: metrics,
		Reason:  reason,
	}
}

// #endregion eval-harness
