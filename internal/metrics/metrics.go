package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StepsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flowtrack_steps_completed_total",
		Help: "Workflow steps completed.",
	})

	StepsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flowtrack_steps_skipped_total",
		Help: "Workflow steps skipped.",
	})

	StepDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "flowtrack_step_duration_seconds",
		Help:    "Net tracked duration of completed steps.",
		Buckets: prometheus.ExponentialBuckets(30, 2, 10),
	})

	WorkflowsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flowtrack_workflows_completed_total",
		Help: "Workflow instances completed.",
	})

	GapAlerts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flowtrack_gap_alerts_total",
		Help: "Gap alerts raised on step completion.",
	}, []string{"level"})

	AnomaliesDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flowtrack_anomalies_detected_total",
		Help: "Anomalies raised by the detection worker.",
	}, []string{"kind", "severity"})
)
