package analytics

import (
	"fmt"
	"math"

	"flowtrack/internal/domain"
)

const (
	// BaselineWindow is the number of most recent completed instances of the
	// same template used as the historical sample.
	BaselineWindow = 30

	// MinBaselineSamples below which detection is skipped entirely:
	// too little signal to separate anomalies from noise.
	MinBaselineSamples = 5
)

// Baseline holds the mean and population standard deviation of historical
// total durations.
type Baseline struct {
	Mean        float64
	Stddev      float64
	SampleCount int
}

// ComputeBaseline derives mean and population standard deviation from the
// given durations (seconds).
func ComputeBaseline(durations []int) Baseline {
	n := len(durations)
	if n == 0 {
		return Baseline{}
	}

	sum := 0.0
	for _, d := range durations {
		sum += float64(d)
	}
	mean := sum / float64(n)

	variance := 0.0
	for _, d := range durations {
		diff := float64(d) - mean
		variance += diff * diff
	}
	variance /= float64(n)

	return Baseline{
		Mean:        mean,
		Stddev:      math.Sqrt(variance),
		SampleCount: n,
	}
}

// ZScore returns how many standard deviations a value lies from the mean.
func (b Baseline) ZScore(value float64) float64 {
	if b.Stddev == 0 {
		return 0
	}
	return (value - b.Mean) / b.Stddev
}

// Finding is one detected anomaly, ready to be persisted and dispatched.
type Finding struct {
	Kind        domain.AnomalyKind
	Severity    domain.AnomalySeverity
	ZScore      float64
	Baseline    Baseline
	Description string
}

// severityForZ maps an absolute z-score to a severity band.
func severityForZ(absZ float64) domain.AnomalySeverity {
	switch {
	case absZ >= 3.0:
		return domain.SeverityCritical
	case absZ >= 2.5:
		return domain.SeverityWarning
	default:
		return domain.SeverityInfo
	}
}

// DetectAnomalies checks a completed instance's total duration against the
// baseline. Detection is skipped when the sample is too small or degenerate
// (zero stddev): a flat distribution would flag everything.
//
// UnusualExecutionTime fires for |z| >= 2 in either direction.
// PerformanceDegradation is an independent, directional trigger for the slow
// side only (duration > mean + 2*stddev); the two may coexist.
func DetectAnomalies(totalSeconds int, b Baseline) []Finding {
	if b.SampleCount < MinBaselineSamples || b.Stddev == 0 {
		return nil
	}

	current := float64(totalSeconds)
	z := b.ZScore(current)

	var findings []Finding

	if math.Abs(z) >= 2.0 {
		findings = append(findings, Finding{
			Kind:     domain.AnomalyUnusualExecutionTime,
			Severity: severityForZ(math.Abs(z)),
			ZScore:   z,
			Baseline: b,
			Description: fmt.Sprintf(
				"Unusual execution time: %.1fs (z-score %.2f against baseline %.1fs ± %.1fs)",
				current, z, b.Mean, b.Stddev),
		})
	}

	if current > b.Mean+2*b.Stddev {
		findings = append(findings, Finding{
			Kind:     domain.AnomalyPerformanceDegradation,
			Severity: severityForZ(z),
			ZScore:   z,
			Baseline: b,
			Description: fmt.Sprintf(
				"Workflow duration %.1fs is significantly above baseline (%.1fs ± %.1fs)",
				current, b.Mean, b.Stddev),
		})
	}

	return findings
}
