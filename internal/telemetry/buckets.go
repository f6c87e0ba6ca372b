package telemetry

import (
	"math"
	"strings"
)

// domainFor infers a histogram's (min, max) value domain from substrings of
// its metric name, matching original_source/openfilter/observability/registry.py.
func domainFor(name string) (min, max float64) {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "confidence"):
		return 0, 1
	case strings.Contains(lower, "detection"):
		return 0, 50
	case strings.Contains(lower, "time"), strings.Contains(lower, "latency"):
		return 0, 10
	case strings.Contains(lower, "size"), strings.Contains(lower, "ratio"):
		return 0, 2
	default:
		return 0, 100
	}
}

// generateBuckets produces numBuckets-1 log-spaced boundaries spanning
// [minVal, maxVal), matching the original's exclusive-upper-bound convention.
func generateBuckets(numBuckets int, minVal, maxVal float64) []float64 {
	if numBuckets < 2 {
		numBuckets = 2
	}
	if minVal <= 0 {
		minVal = 0.1
	}

	numBoundaries := numBuckets - 1
	logMin := math.Log(minVal)
	logMax := math.Log(maxVal)
	step := (logMax - logMin) / float64(numBoundaries)

	boundaries := make([]float64, numBoundaries)
	for i := 0; i < numBoundaries; i++ {
		boundaries[i] = math.Exp(logMin + float64(i)*step)
	}
	return boundaries
}

// resolveBoundaries returns the spec's explicit boundaries if set, otherwise
// an auto-generated log-spaced set inferred from the metric's name.
func resolveBoundaries(spec MetricSpec) []float64 {
	if spec.Boundaries != nil {
		return spec.Boundaries
	}
	min, max := domainFor(spec.Name)
	return generateBuckets(spec.NumBuckets, min, max)
}
