package eval

// #region eval-config
// EvalConfig holds tolerances for validating a model's label distribution.
type EvalConfig struct {
	SumTolerance   float64  // |sum - 1| must stay within this
	ConfTolerance  float64  // |dist[label] - confidence| must stay within this
	RequiredLabels []string // every one must appear in the distribution
}

// DefaultEvalConfig returns the tolerances used by the learned classifier.
func DefaultEvalConfig(labels []string) EvalConfig {
	return EvalConfig{
		SumTolerance:   1e-6,
		ConfTolerance:  1e-9,
		RequiredLabels: labels,
	}
}

// #endregion eval-config

// #region eval-metric
// EvalMetric captures a single validation check result.
type EvalMetric struct {
	Name  string
	Value float64
	Pass  bool
}

// #endregion eval-metric

// #region eval-result
// EvalResult is the output of distribution validation.
type EvalResult struct {
	Passed  bool
	Metrics []EvalMetric
	Reason  string
}

// #endregion eval-result
