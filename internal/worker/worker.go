package worker

import (
	"context"
	"log"

	"flowtrack/internal/analytics"
	"flowtrack/internal/core/ports"
	"flowtrack/internal/domain"
	"flowtrack/internal/metrics"

	"github.com/google/uuid"
)

// AnomalyWorker consumes instance-completion events and runs z-score
// anomaly detection off the synchronous completion path. Detection is
// advisory: every failure here is logged and swallowed, and an unfinished
// run is simply dropped at shutdown.
type AnomalyWorker struct {
	queue     ports.CompletionQueue
	workflows ports.WorkflowRepository
	anomalies ports.AnomalyRepository
	alerts    ports.AlertDispatcher
	clock     ports.Clock
}

func NewAnomalyWorker(
	queue ports.CompletionQueue,
	workflows ports.WorkflowRepository,
	anomalies ports.AnomalyRepository,
	alerts ports.AlertDispatcher,
	clock ports.Clock,
) *AnomalyWorker {
	return &AnomalyWorker{
		queue:     queue,
		workflows: workflows,
		anomalies: anomalies,
		alerts:    alerts,
		clock:     clock,
	}
}

// Start begins the blocking consume loop. Call as a goroutine from main.
func (w *AnomalyWorker) Start(ctx context.Context) {
	log.Println("Anomaly worker started, waiting for completion events...")
	for {
		select {
		case <-ctx.Done():
			log.Println("Anomaly worker shutting down...")
			return
		default:
			w.ProcessNext(ctx)
		}
	}
}

// ProcessNext handles exactly one completion event.
func (w *AnomalyWorker) ProcessNext(ctx context.Context) {
	event, err := w.queue.Pop(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("Anomaly worker error popping from queue: %v", err)
		}
		return
	}
	w.ProcessEvent(ctx, event)
}

// ProcessEvent runs detection for one completed instance against the
// rolling same-template baseline.
func (w *AnomalyWorker) ProcessEvent(ctx context.Context, event domain.InstanceCompletedEvent) {
	durations, err := w.workflows.ListCompletedDurations(ctx, event.TemplateID, event.InstanceID, analytics.BaselineWindow)
	if err != nil {
		log.Printf("Anomaly baseline load for instance %s failed: %v", event.InstanceID, err)
		return
	}

	baseline := analytics.ComputeBaseline(durations)
	findings := analytics.DetectAnomalies(event.TotalSeconds, baseline)
	if len(findings) == 0 {
		return
	}

	for _, f := range findings {
		record := &domain.AnomalyRecord{
			ID:             uuid.New(),
			InstanceID:     event.InstanceID,
			Kind:           f.Kind,
			Severity:       f.Severity,
			ZScore:         f.ZScore,
			BaselineMean:   f.Baseline.Mean,
			BaselineStddev: f.Baseline.Stddev,
			CurrentSeconds: event.TotalSeconds,
			Description:    f.Description,
			DetectedAt:     w.clock.Now(),
		}
		if err := w.anomalies.Create(ctx, record); err != nil {
			log.Printf("Persisting anomaly for instance %s failed: %v", event.InstanceID, err)
			continue
		}
		metrics.AnomaliesDetected.WithLabelValues(string(f.Kind), string(f.Severity)).Inc()

		if err := w.alerts.Notify(ctx, domain.Alert{
			InstanceID: event.InstanceID,
			Kind:       string(f.Kind),
			Severity:   string(f.Severity),
			Message:    f.Description,
		}); err != nil {
			log.Printf("Anomaly alert dispatch for instance %s failed: %v", event.InstanceID, err)
		}
	}
}
