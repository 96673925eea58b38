package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"flowtrack/internal/domain"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// fakeSessionRepo mirrors the storage invariants: one active session per
// (instance, step), conditional writes on is_active.
type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*domain.TimeSession
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[uuid.UUID]*domain.TimeSession)}
}

func (r *fakeSessionRepo) Create(_ context.Context, session *domain.TimeSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.IsActive && s.InstanceID == session.InstanceID && s.StepIndex == session.StepIndex {
			return domain.ErrConflict
		}
	}
	copied := *session
	r.sessions[session.ID] = &copied
	return nil
}

func (r *fakeSessionRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.TimeSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *s
	return &copied, nil
}

func (r *fakeSessionRepo) GetActiveForStep(_ context.Context, instanceID uuid.UUID, stepIndex int) (*domain.TimeSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.IsActive && s.InstanceID == instanceID && s.StepIndex == stepIndex {
			copied := *s
			return &copied, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *fakeSessionRepo) GetActiveForInstance(_ context.Context, instanceID uuid.UUID) (*domain.TimeSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.IsActive && s.InstanceID == instanceID {
			copied := *s
			return &copied, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *fakeSessionRepo) ListByInstance(_ context.Context, instanceID uuid.UUID) ([]domain.TimeSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.TimeSession
	for _, s := range r.sessions {
		if s.InstanceID == instanceID {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

func (r *fakeSessionRepo) End(_ context.Context, id uuid.UUID, at time.Time, totalSeconds, pausedSeconds int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || !s.IsActive {
		return domain.ErrConflict
	}
	ended := at
	s.EndedAt = &ended
	s.TotalSeconds = totalSeconds
	s.TotalPausedSeconds = pausedSeconds
	s.PausedAt = nil
	s.IsActive = false
	return nil
}

func (r *fakeSessionRepo) MarkPaused(_ context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || !s.IsActive || s.PausedAt != nil {
		return domain.ErrConflict
	}
	paused := at
	s.PausedAt = &paused
	s.PauseCount++
	return nil
}

func (r *fakeSessionRepo) MarkResumed(_ context.Context, id uuid.UUID, at time.Time, pausedSeconds int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || !s.IsActive || s.PausedAt == nil {
		return domain.ErrConflict
	}
	resumed := at
	s.PausedAt = nil
	s.ResumedAt = &resumed
	s.TotalPausedSeconds += pausedSeconds
	return nil
}

// memStore backs templates, workflow instances and step results with maps,
// reproducing the conditional-write semantics of the real repositories.
type memStore struct {
	mu        sync.Mutex
	templates map[uuid.UUID]*domain.WorkflowTemplate
	workflows map[uuid.UUID]*domain.WorkflowInstance
	steps     map[uuid.UUID][]*domain.WorkflowStepResult
}

func newMemStore() *memStore {
	return &memStore{
		templates: make(map[uuid.UUID]*domain.WorkflowTemplate),
		workflows: make(map[uuid.UUID]*domain.WorkflowInstance),
		steps:     make(map[uuid.UUID][]*domain.WorkflowStepResult),
	}
}

func (m *memStore) Create(_ context.Context, template *domain.WorkflowTemplate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *template
	m.templates[template.ID] = &copied
	return nil
}

func (m *memStore) GetByID(_ context.Context, id uuid.UUID) (*domain.WorkflowTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.templates[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *t
	return &copied, nil
}

func (m *memStore) GetByName(_ context.Context, name string) (*domain.WorkflowTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.templates {
		if t.Name == name {
			copied := *t
			return &copied, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memStore) List(_ context.Context) ([]domain.WorkflowTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.WorkflowTemplate
	for _, t := range m.templates {
		out = append(out, *t)
	}
	return out, nil
}

func (m *memStore) ListByTicketType(_ context.Context, ticketType string) ([]domain.WorkflowTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.WorkflowTemplate
	for _, t := range m.templates {
		if t.TicketType == ticketType {
			out = append(out, *t)
		}
	}
	return out, nil
}

// workflowStore adapts memStore to ports.WorkflowRepository.
type workflowStore struct{ *memStore }

func (m workflowStore) CreateWithSteps(_ context.Context, instance *domain.WorkflowInstance, steps []domain.WorkflowStepResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.workflows {
		if w.TicketID == instance.TicketID && w.Status == domain.WorkflowActive {
			return fmt.Errorf("active workflow exists for ticket %s: %w", instance.TicketID, domain.ErrConflict)
		}
	}
	copied := *instance
	m.workflows[instance.ID] = &copied
	for i := range steps {
		s := steps[i]
		m.steps[instance.ID] = append(m.steps[instance.ID], &s)
	}
	return nil
}

func (m workflowStore) GetByID(_ context.Context, id uuid.UUID) (*domain.WorkflowInstance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.workflows[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *w
	return &copied, nil
}

func (m workflowStore) GetActiveByTicket(_ context.Context, ticketID string) (*domain.WorkflowInstance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.workflows {
		if w.TicketID == ticketID && w.Status == domain.WorkflowActive {
			copied := *w
			return &copied, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m workflowStore) ListByUser(_ context.Context, userID string) ([]domain.WorkflowInstance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.WorkflowInstance
	for _, w := range m.workflows {
		if w.UserID == userID {
			out = append(out, *w)
		}
	}
	return out, nil
}

func (m workflowStore) AdvanceStep(_ context.Context, id uuid.UUID, fromStep, toStep int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.workflows[id]
	if !ok || w.Status != domain.WorkflowActive || w.CurrentStep != fromStep {
		return domain.ErrConflict
	}
	w.CurrentStep = toStep
	return nil
}

func (m workflowStore) MarkCompleted(_ context.Context, id uuid.UUID, fromStep, totalSeconds int, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.workflows[id]
	if !ok || w.Status != domain.WorkflowActive || w.CurrentStep != fromStep {
		return domain.ErrConflict
	}
	w.Status = domain.WorkflowCompleted
	w.CurrentStep = fromStep + 1
	w.TotalSeconds = totalSeconds
	completed := at
	w.CompletedAt = &completed
	return nil
}

func (m workflowStore) Pause(_ context.Context, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.workflows[id]
	if !ok || w.Status != domain.WorkflowActive {
		return domain.ErrConflict
	}
	w.Status = domain.WorkflowPaused
	paused := at
	w.PausedAt = &paused
	return nil
}

func (m workflowStore) Resume(_ context.Context, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.workflows[id]
	if !ok || w.Status != domain.WorkflowPaused {
		return domain.ErrConflict
	}
	w.Status = domain.WorkflowActive
	resumed := at
	w.ResumedAt = &resumed
	return nil
}

func (m workflowStore) Cancel(_ context.Context, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.workflows[id]
	if !ok || (w.Status != domain.WorkflowActive && w.Status != domain.WorkflowPaused) {
		return domain.ErrConflict
	}
	w.Status = domain.WorkflowCancelled
	completed := at
	w.CompletedAt = &completed
	return nil
}

func (m workflowStore) ListCompletedDurations(_ context.Context, templateID, exclude uuid.UUID, limit int) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []int
	for _, w := range m.workflows {
		if w.TemplateID == templateID && w.Status == domain.WorkflowCompleted && w.ID != exclude {
			out = append(out, w.TotalSeconds)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// stepStore adapts memStore to ports.StepRepository.
type stepStore struct{ *memStore }

func (m stepStore) ListByInstance(_ context.Context, instanceID uuid.UUID) ([]domain.WorkflowStepResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.WorkflowStepResult
	for _, s := range m.steps[instanceID] {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StepIndex < out[j].StepIndex })
	return out, nil
}

func (m stepStore) Get(_ context.Context, instanceID uuid.UUID, stepIndex int) (*domain.WorkflowStepResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.steps[instanceID] {
		if s.StepIndex == stepIndex {
			copied := *s
			return &copied, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m stepStore) MarkInProgress(_ context.Context, instanceID uuid.UUID, stepIndex int, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.steps[instanceID] {
		if s.StepIndex == stepIndex {
			if s.Status != domain.StepPending {
				return domain.ErrConflict
			}
			started := at
			s.Status = domain.StepInProgress
			s.StartedAt = &started
			return nil
		}
	}
	return domain.ErrConflict
}

func (m stepStore) Complete(_ context.Context, instanceID uuid.UUID, stepIndex int, notes string, links datatypes.JSON, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.steps[instanceID] {
		if s.StepIndex == stepIndex {
			if s.Status.IsTerminal() {
				return domain.ErrConflict
			}
			completed := at
			s.Status = domain.StepCompleted
			s.Notes = notes
			s.LinksJSON = links
			s.CompletedAt = &completed
			return nil
		}
	}
	return domain.ErrConflict
}

func (m stepStore) Skip(_ context.Context, instanceID uuid.UUID, stepIndex int, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.steps[instanceID] {
		if s.StepIndex == stepIndex {
			if s.Status.IsTerminal() {
				return domain.ErrConflict
			}
			completed := at
			s.Status = domain.StepSkipped
			s.CompletedAt = &completed
			return nil
		}
	}
	return domain.ErrConflict
}

// fakeQueue is a channel-backed CompletionQueue.
type fakeQueue struct {
	ch chan domain.InstanceCompletedEvent
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{ch: make(chan domain.InstanceCompletedEvent, 16)}
}

func (q *fakeQueue) Push(_ context.Context, event domain.InstanceCompletedEvent) error {
	q.ch <- event
	return nil
}

func (q *fakeQueue) Pop(ctx context.Context) (domain.InstanceCompletedEvent, error) {
	select {
	case event := <-q.ch:
		return event, nil
	case <-ctx.Done():
		return domain.InstanceCompletedEvent{}, ctx.Err()
	}
}

// fakeAlerts records dispatched alerts.
type fakeAlerts struct {
	mu     sync.Mutex
	alerts []domain.Alert
}

func (a *fakeAlerts) Notify(_ context.Context, alert domain.Alert) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.alerts = append(a.alerts, alert)
	return nil
}

func (a *fakeAlerts) All() []domain.Alert {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]domain.Alert(nil), a.alerts...)
}

// fakeTickets returns a fixed snapshot.
type fakeTickets struct {
	ticket domain.Ticket
	err    error
}

func (t *fakeTickets) GetTicket(_ context.Context, _ string) (*domain.Ticket, error) {
	if t.err != nil {
		return nil, t.err
	}
	copied := t.ticket
	return &copied, nil
}

// fakeEstimates signals on every upsert so tests can wait for the async
// estimate update.
type fakeEstimates struct {
	mu        sync.Mutex
	estimates map[string]*domain.PersonalEstimate
	upserted  chan struct{}
}

func newFakeEstimates() *fakeEstimates {
	return &fakeEstimates{
		estimates: make(map[string]*domain.PersonalEstimate),
		upserted:  make(chan struct{}, 16),
	}
}

func (r *fakeEstimates) key(userID string, templateID uuid.UUID, stepIndex int) string {
	return fmt.Sprintf("%s/%s/%d", userID, templateID, stepIndex)
}

func (r *fakeEstimates) Get(_ context.Context, userID string, templateID uuid.UUID, stepIndex int) (*domain.PersonalEstimate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.estimates[r.key(userID, templateID, stepIndex)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *e
	return &copied, nil
}

func (r *fakeEstimates) Upsert(_ context.Context, estimate *domain.PersonalEstimate) error {
	r.mu.Lock()
	copied := *estimate
	r.estimates[r.key(estimate.UserID, estimate.TemplateID, estimate.StepIndex)] = &copied
	r.mu.Unlock()
	r.upserted <- struct{}{}
	return nil
}
