package analytics

import (
	"fmt"
	"math"
)

type GapLevel string

const (
	// GapNone means no classification was possible (no estimate).
	GapNone     GapLevel = "none"
	GapOnTarget GapLevel = "on_target"
	GapWarning  GapLevel = "warning"
	GapCritical GapLevel = "critical"
)

// TimeGap is the efficiency classification of one completed step.
type TimeGap struct {
	ActualSeconds    int      `json:"actual_seconds"`
	EstimatedSeconds int      `json:"estimated_seconds"`
	GapSeconds       int      `json:"gap_seconds"`
	GapPercentage    int      `json:"gap_percentage"`
	Ratio            float64  `json:"ratio"`
	Level            GapLevel `json:"level"`
	AlertMessage     string   `json:"alert_message,omitempty"`
}

// alertThresholdPercent is deliberately tighter than the Warning band: a
// ratio of 1.0–1.2 classifies as Warning, but only overruns above 20%
// produce an alert message.
const alertThresholdPercent = 20

// AnalyzeGap classifies an actual step duration against its estimate.
// A zero estimate yields GapNone: classification is skipped entirely rather
// than dividing by zero.
func AnalyzeGap(actualSeconds, estimatedSeconds int) TimeGap {
	if estimatedSeconds == 0 {
		return TimeGap{
			ActualSeconds: actualSeconds,
			Level:         GapNone,
		}
	}

	ratio := float64(actualSeconds) / float64(estimatedSeconds)
	gapPct := int(math.Round((ratio - 1) * 100))

	gap := TimeGap{
		ActualSeconds:    actualSeconds,
		EstimatedSeconds: estimatedSeconds,
		GapSeconds:       actualSeconds - estimatedSeconds,
		GapPercentage:    gapPct,
		Ratio:            ratio,
	}

	switch {
	case ratio <= 1.0:
		gap.Level = GapOnTarget
	case ratio <= 1.2:
		gap.Level = GapWarning
	default:
		gap.Level = GapCritical
	}

	if gapPct > alertThresholdPercent {
		gap.AlertMessage = fmt.Sprintf("This step took %d%% longer than estimated", gapPct)
	}

	return gap
}
