package eval

import (
	"math"
	"testing"
)

var testLabels = []string{"a", "b", "c", "d"}

func uniform(label string, conf float64) map[string]float64 {
	dist := make(map[string]float64)
	for _, l := range testLabels {
		dist[l] = (1 - conf) / 3
	}
	dist[label] = conf
	return dist
}

func TestEvalPassesOnValidDistribution(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig(testLabels))

	result := h.Run(uniform("b", 0.7), "b", 0.7)

	if !result.Passed {
		t.Fatalf("expected pass, got fail: %s", result.Reason)
	}
	if len(result.Metrics) == 0 {
		t.Fatal("expected metrics")
	}
}

func TestEvalFailsOnBadSum(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig(testLabels))
	dist := map[string]float64{"a": 0.5, "b": 0.2, "c": 0.1, "d": 0.1}

	result := h.Run(dist, "a", 0.5)

	if result.Passed {
		t.Fatal("expected fail on distribution summing to 0.9")
	}
	foundFail := false
	for _, m := range result.Metrics {
		if m.Name == "distribution_sum" && !m.Pass {
			foundFail = true
		}
	}
	if !foundFail {
		t.Fatal("expected distribution_sum metric to fail")
	}
}

func TestEvalFailsOnMissingLabel(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig(testLabels))
	dist := map[string]float64{"a": 0.5, "b": 0.25, "c": 0.25}

	result := h.Run(dist, "a", 0.5)

	if result.Passed {
		t.Fatal("expected fail when a known label is missing")
	}
}

func TestEvalFailsOnConfidenceMismatch(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig(testLabels))

	result := h.Run(uniform("a", 0.6), "a", 0.65)

	if result.Passed {
		t.Fatal("expected fail when confidence differs from dist[label]")
	}
}

func TestEvalFailsOnNaN(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig(testLabels))
	dist := uniform("a", 0.4)
	dist["d"] = math.NaN()

	result := h.Run(dist, "a", 0.4)

	if result.Passed {
		t.Fatal("expected fail on NaN probability")
	}
}

func TestEvalMetricCount(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig(testLabels))

	result := h.Run(uniform("c", 0.9), "c", 0.9)

	// out_of_range + distribution_sum + missing_labels + label_confidence
	if len(result.Metrics) != 4 {
		t.Fatalf("expected 4 metrics, got %d", len(result.Metrics))
	}
}
