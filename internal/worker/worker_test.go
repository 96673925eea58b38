package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"flowtrack/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chanQueue struct {
	ch chan domain.InstanceCompletedEvent
}

func newChanQueue() *chanQueue {
	return &chanQueue{ch: make(chan domain.InstanceCompletedEvent, 16)}
}

func (q *chanQueue) Push(_ context.Context, event domain.InstanceCompletedEvent) error {
	q.ch <- event
	return nil
}

func (q *chanQueue) Pop(ctx context.Context) (domain.InstanceCompletedEvent, error) {
	select {
	case event := <-q.ch:
		return event, nil
	case <-ctx.Done():
		return domain.InstanceCompletedEvent{}, ctx.Err()
	}
}

// durationRepo serves canned baseline durations and implements just enough
// of the workflow repository for the worker.
type durationRepo struct {
	durations []int
}

func (r *durationRepo) CreateWithSteps(context.Context, *domain.WorkflowInstance, []domain.WorkflowStepResult) error {
	panic("not used")
}
func (r *durationRepo) GetByID(context.Context, uuid.UUID) (*domain.WorkflowInstance, error) {
	panic("not used")
}
func (r *durationRepo) GetActiveByTicket(context.Context, string) (*domain.WorkflowInstance, error) {
	panic("not used")
}
func (r *durationRepo) ListByUser(context.Context, string) ([]domain.WorkflowInstance, error) {
	panic("not used")
}
func (r *durationRepo) AdvanceStep(context.Context, uuid.UUID, int, int) error { panic("not used") }
func (r *durationRepo) MarkCompleted(context.Context, uuid.UUID, int, int, time.Time) error {
	panic("not used")
}
func (r *durationRepo) Pause(context.Context, uuid.UUID, time.Time) error  { panic("not used") }
func (r *durationRepo) Resume(context.Context, uuid.UUID, time.Time) error { panic("not used") }
func (r *durationRepo) Cancel(context.Context, uuid.UUID, time.Time) error { panic("not used") }

func (r *durationRepo) ListCompletedDurations(_ context.Context, _, _ uuid.UUID, limit int) ([]int, error) {
	if len(r.durations) > limit {
		return r.durations[:limit], nil
	}
	return r.durations, nil
}

type memAnomalyRepo struct {
	mu      sync.Mutex
	records []domain.AnomalyRecord
}

func (r *memAnomalyRepo) Create(_ context.Context, record *domain.AnomalyRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, *record)
	return nil
}

func (r *memAnomalyRepo) ListByInstance(_ context.Context, instanceID uuid.UUID) ([]domain.AnomalyRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.AnomalyRecord
	for _, rec := range r.records {
		if rec.InstanceID == instanceID {
			out = append(out, rec)
		}
	}
	return out, nil
}

type memAlerts struct {
	mu     sync.Mutex
	alerts []domain.Alert
}

func (a *memAlerts) Notify(_ context.Context, alert domain.Alert) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.alerts = append(a.alerts, alert)
	return nil
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func newTestWorker(durations []int) (*AnomalyWorker, *chanQueue, *memAnomalyRepo, *memAlerts) {
	queue := newChanQueue()
	anomalies := &memAnomalyRepo{}
	alerts := &memAlerts{}
	w := NewAnomalyWorker(queue, &durationRepo{durations: durations}, anomalies, alerts, fixedClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)})
	return w, queue, anomalies, alerts
}

func TestProcessEventPersistsAnomalies(t *testing.T) {
	// Baseline mean 300, population stddev 20.
	w, _, anomalies, alerts := newTestWorker([]int{280, 320, 280, 320, 280, 320, 280, 320, 280, 320})

	instanceID := uuid.New()
	w.ProcessEvent(context.Background(), domain.InstanceCompletedEvent{
		InstanceID:   instanceID,
		TemplateID:   uuid.New(),
		TotalSeconds: 360,
	})

	records, err := anomalies.ListByInstance(context.Background(), instanceID)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, domain.AnomalyUnusualExecutionTime, records[0].Kind)
	assert.Equal(t, domain.SeverityCritical, records[0].Severity)
	assert.InDelta(t, 3.0, records[0].ZScore, 1e-9)
	assert.InDelta(t, 300.0, records[0].BaselineMean, 1e-9)
	assert.Equal(t, 360, records[0].CurrentSeconds)

	assert.Equal(t, domain.AnomalyPerformanceDegradation, records[1].Kind)

	assert.Len(t, alerts.alerts, 2)
	assert.Equal(t, string(domain.AnomalyUnusualExecutionTime), alerts.alerts[0].Kind)
}

func TestProcessEventInsufficientBaseline(t *testing.T) {
	w, _, anomalies, alerts := newTestWorker([]int{300, 300, 280, 320})

	instanceID := uuid.New()
	w.ProcessEvent(context.Background(), domain.InstanceCompletedEvent{
		InstanceID:   instanceID,
		TemplateID:   uuid.New(),
		TotalSeconds: 10000,
	})

	records, err := anomalies.ListByInstance(context.Background(), instanceID)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Empty(t, alerts.alerts)
}

func TestProcessEventNormalDuration(t *testing.T) {
	w, _, anomalies, _ := newTestWorker([]int{280, 320, 280, 320, 280, 320})

	instanceID := uuid.New()
	w.ProcessEvent(context.Background(), domain.InstanceCompletedEvent{
		InstanceID:   instanceID,
		TemplateID:   uuid.New(),
		TotalSeconds: 310,
	})

	records, err := anomalies.ListByInstance(context.Background(), instanceID)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestProcessNextConsumesQueue(t *testing.T) {
	w, queue, anomalies, _ := newTestWorker([]int{280, 320, 280, 320, 280, 320})

	instanceID := uuid.New()
	require.NoError(t, queue.Push(context.Background(), domain.InstanceCompletedEvent{
		InstanceID:   instanceID,
		TemplateID:   uuid.New(),
		TotalSeconds: 360,
	}))

	w.ProcessNext(context.Background())

	records, err := anomalies.ListByInstance(context.Background(), instanceID)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestProcessNextStopsOnCancel(t *testing.T) {
	w, _, anomalies, _ := newTestWorker(nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.ProcessNext(ctx)

	assert.Empty(t, anomalies.records)
}
