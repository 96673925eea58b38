package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"flowtrack/internal/analytics"
	"flowtrack/internal/core/ports"
	"flowtrack/internal/domain"
	"flowtrack/internal/metrics"

	"github.com/google/uuid"
)

// StepCompletion is what CompleteStep hands back to the caller: the gap
// analysis for the finished step plus where the workflow stands now.
type StepCompletion struct {
	Instance          *domain.WorkflowInstance
	Gap               analytics.TimeGap
	ActualSeconds     int
	WorkflowCompleted bool
	NextStep          *domain.StepDefinition
}

// InstanceDetail aggregates everything about one instance.
type InstanceDetail struct {
	Instance *domain.WorkflowInstance
	Template *domain.WorkflowTemplate
	Steps    []domain.WorkflowStepResult
	Sessions []domain.TimeSession
}

// StepTimeSummary is the actual-vs-estimate view of one step.
type StepTimeSummary struct {
	StepIndex     int
	ActualSeconds int
	Gap           analytics.TimeGap
}

// WorkflowSummary aggregates actual vs estimated across all steps.
type WorkflowSummary struct {
	InstanceID            uuid.UUID
	TotalActualSeconds    int
	TotalEstimatedSeconds int
	Steps                 []StepTimeSummary
}

// WorkflowService drives the instance state machine. Step transitions are
// strictly sequential per instance; positional guards and conditional
// repository writes reject out-of-order or duplicate calls with
// domain.ErrConflict.
type WorkflowService struct {
	templates ports.TemplateRepository
	workflows ports.WorkflowRepository
	steps     ports.StepRepository
	tracker   *TrackingService
	adjuster  *analytics.EstimateAdjuster
	queue     ports.CompletionQueue
	tickets   ports.TicketProvider
	alerts    ports.AlertDispatcher
	clock     ports.Clock
}

func NewWorkflowService(
	templates ports.TemplateRepository,
	workflows ports.WorkflowRepository,
	steps ports.StepRepository,
	tracker *TrackingService,
	adjuster *analytics.EstimateAdjuster,
	queue ports.CompletionQueue,
	tickets ports.TicketProvider,
	alerts ports.AlertDispatcher,
	clock ports.Clock,
) *WorkflowService {
	return &WorkflowService{
		templates: templates,
		workflows: workflows,
		steps:     steps,
		tracker:   tracker,
		adjuster:  adjuster,
		queue:     queue,
		tickets:   tickets,
		alerts:    alerts,
		clock:     clock,
	}
}

// CreateInstance starts a workflow for a ticket. The per-ticket
// single-active invariant is enforced by the storage layer's unique index;
// a violation surfaces as domain.ErrConflict.
func (s *WorkflowService) CreateInstance(ctx context.Context, templateID uuid.UUID, ticketID, ticketTitle, userID string) (*domain.WorkflowInstance, *domain.StepDefinition, error) {
	template, err := s.templates.GetByID(ctx, templateID)
	if err != nil {
		return nil, nil, err
	}
	defs, err := template.Steps()
	if err != nil {
		return nil, nil, fmt.Errorf("template %s has unreadable steps: %w", templateID, err)
	}
	if len(defs) == 0 {
		return nil, nil, fmt.Errorf("template %s has no steps: %w", templateID, domain.ErrValidation)
	}

	title := ticketTitle
	ticketType := template.TicketType
	if ticket, err := s.tickets.GetTicket(ctx, ticketID); err == nil {
		if ticket.Title != "" {
			title = ticket.Title
		}
		if ticket.Type != "" {
			ticketType = ticket.Type
		}
	} else {
		log.Printf("ticket lookup for %s failed, using request metadata: %v", ticketID, err)
	}

	instance := domain.NewWorkflowInstance(templateID, ticketID, title, ticketType, userID, s.clock.Now())

	results := make([]domain.WorkflowStepResult, 0, len(defs))
	for _, def := range defs {
		results = append(results, *domain.NewStepResult(instance.ID, def.Index))
	}

	if err := s.workflows.CreateWithSteps(ctx, instance, results); err != nil {
		return nil, nil, err
	}

	if _, err := s.tracker.StartSession(ctx, instance.ID, 0); err != nil {
		return nil, nil, fmt.Errorf("opening first session: %w", err)
	}
	if err := s.steps.MarkInProgress(ctx, instance.ID, 0, s.clock.Now()); err != nil {
		log.Printf("marking step 0 in progress for instance %s failed: %v", instance.ID, err)
	}

	first := defs[0]
	return instance, &first, nil
}

// CompleteStep finishes the current step: closes its session, records the
// result, returns the gap analysis, and either opens the next step or
// completes the instance. The estimate update is fire-and-forget; anomaly
// detection is enqueued for the background worker.
func (s *WorkflowService) CompleteStep(ctx context.Context, instanceID uuid.UUID, stepIndex int, notes string, links []domain.StepLink) (*StepCompletion, error) {
	instance, _, defs, err := s.loadForTransition(ctx, instanceID, stepIndex)
	if err != nil {
		return nil, err
	}

	// Closing the session is the serialization point: its conditional write
	// rejects the second of two racing completions.
	actualSeconds := 0
	session, err := s.tracker.EndStepSession(ctx, instanceID, stepIndex)
	switch {
	case err == nil:
		actualSeconds = session.TotalSeconds
	case errors.Is(err, domain.ErrNotFound):
		log.Printf("no active session for instance %s step %d, recording zero duration", instanceID, stepIndex)
	default:
		return nil, err
	}

	now := s.clock.Now()
	linksJSON, err := domain.MarshalLinks(links)
	if err != nil {
		return nil, fmt.Errorf("encoding links: %w", domain.ErrValidation)
	}
	if err := s.steps.Complete(ctx, instanceID, stepIndex, notes, linksJSON, now); err != nil {
		return nil, err
	}

	def := defs[stepIndex]
	gap := analytics.AnalyzeGap(actualSeconds, def.EstimatedSeconds)
	metrics.StepsCompleted.Inc()
	metrics.StepDurationSeconds.Observe(float64(actualSeconds))
	if gap.AlertMessage != "" {
		metrics.GapAlerts.WithLabelValues(string(gap.Level)).Inc()
		if err := s.alerts.Notify(ctx, domain.Alert{
			InstanceID: instanceID,
			Kind:       "time_gap",
			Severity:   string(gap.Level),
			Message:    gap.AlertMessage,
		}); err != nil {
			log.Printf("gap alert dispatch for instance %s failed: %v", instanceID, err)
		}
	}

	// Zero actuals come from the no-session path above; they carry no signal
	// and would drag the estimate toward zero.
	if actualSeconds > 0 {
		s.adjuster.UpdateEstimateAsync(ctx, instance.UserID, instance.TemplateID, stepIndex, actualSeconds)
	}

	completion := &StepCompletion{
		Instance:      instance,
		Gap:           gap,
		ActualSeconds: actualSeconds,
	}
	if err := s.advanceOrComplete(ctx, instance, defs, stepIndex, completion); err != nil {
		return nil, err
	}
	return completion, nil
}

// SkipStep marks the current step skipped. No gap analysis and no estimate
// update: there is no meaningful actual duration.
func (s *WorkflowService) SkipStep(ctx context.Context, instanceID uuid.UUID, stepIndex int) (*StepCompletion, error) {
	instance, _, defs, err := s.loadForTransition(ctx, instanceID, stepIndex)
	if err != nil {
		return nil, err
	}

	// Discard the step's open session so the instance never carries two
	// active sessions; its duration feeds nothing.
	if _, err := s.tracker.EndStepSession(ctx, instanceID, stepIndex); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	if err := s.steps.Skip(ctx, instanceID, stepIndex, s.clock.Now()); err != nil {
		return nil, err
	}
	metrics.StepsSkipped.Inc()

	completion := &StepCompletion{Instance: instance, Gap: analytics.TimeGap{Level: analytics.GapNone}}
	if err := s.advanceOrComplete(ctx, instance, defs, stepIndex, completion); err != nil {
		return nil, err
	}
	return completion, nil
}

// loadForTransition fetches the instance and validates the positional guard
// shared by CompleteStep and SkipStep.
func (s *WorkflowService) loadForTransition(ctx context.Context, instanceID uuid.UUID, stepIndex int) (*domain.WorkflowInstance, *domain.WorkflowTemplate, []domain.StepDefinition, error) {
	instance, err := s.workflows.GetByID(ctx, instanceID)
	if err != nil {
		return nil, nil, nil, err
	}
	template, err := s.templates.GetByID(ctx, instance.TemplateID)
	if err != nil {
		return nil, nil, nil, err
	}
	defs, err := template.Steps()
	if err != nil {
		return nil, nil, nil, err
	}

	if stepIndex < 0 || stepIndex >= len(defs) {
		return nil, nil, nil, fmt.Errorf("step index %d out of range: %w", stepIndex, domain.ErrValidation)
	}
	if instance.Status != domain.WorkflowActive {
		return nil, nil, nil, fmt.Errorf("instance %s is %s, not active: %w", instanceID, instance.Status, domain.ErrConflict)
	}
	if stepIndex != instance.CurrentStep {
		return nil, nil, nil, fmt.Errorf("step %d is not the current step (%d): %w", stepIndex, instance.CurrentStep, domain.ErrConflict)
	}
	return instance, template, defs, nil
}

// advanceOrComplete moves the cached current step forward, or finishes the
// instance when every step is terminal.
func (s *WorkflowService) advanceOrComplete(ctx context.Context, instance *domain.WorkflowInstance, defs []domain.StepDefinition, stepIndex int, completion *StepCompletion) error {
	next, err := s.nextPendingStep(ctx, instance.ID, len(defs))
	if err != nil {
		return err
	}

	if next >= len(defs) {
		total, err := s.totalTrackedSeconds(ctx, instance.ID)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		if err := s.workflows.MarkCompleted(ctx, instance.ID, stepIndex, total, now); err != nil {
			return err
		}
		instance.Status = domain.WorkflowCompleted
		instance.CurrentStep = len(defs)
		instance.TotalSeconds = total
		instance.CompletedAt = &now
		completion.WorkflowCompleted = true
		metrics.WorkflowsCompleted.Inc()

		event := domain.InstanceCompletedEvent{
			InstanceID:   instance.ID,
			TemplateID:   instance.TemplateID,
			TicketID:     instance.TicketID,
			UserID:       instance.UserID,
			TotalSeconds: total,
		}
		if err := s.queue.Push(context.WithoutCancel(ctx), event); err != nil {
			// Anomaly output is advisory telemetry; losing the event must
			// not fail the completion.
			log.Printf("enqueue of completion event for instance %s failed: %v", instance.ID, err)
		}
		return nil
	}

	if err := s.workflows.AdvanceStep(ctx, instance.ID, stepIndex, next); err != nil {
		return err
	}
	instance.CurrentStep = next

	if _, err := s.tracker.StartSession(ctx, instance.ID, next); err != nil {
		return fmt.Errorf("opening session for step %d: %w", next, err)
	}
	if err := s.steps.MarkInProgress(ctx, instance.ID, next, s.clock.Now()); err != nil {
		log.Printf("marking step %d in progress for instance %s failed: %v", next, instance.ID, err)
	}

	nextDef := defs[next]
	completion.NextStep = &nextDef
	return nil
}

// nextPendingStep derives the lowest step index not yet terminal, or the
// step count if none remain. This is the source of truth the cached
// current_step must agree with.
func (s *WorkflowService) nextPendingStep(ctx context.Context, instanceID uuid.UUID, totalSteps int) (int, error) {
	results, err := s.steps.ListByInstance(ctx, instanceID)
	if err != nil {
		return 0, err
	}
	terminal := make(map[int]bool, len(results))
	for _, r := range results {
		if r.Status.IsTerminal() {
			terminal[r.StepIndex] = true
		}
	}
	for i := 0; i < totalSteps; i++ {
		if !terminal[i] {
			return i, nil
		}
	}
	return totalSteps, nil
}

func (s *WorkflowService) totalTrackedSeconds(ctx context.Context, instanceID uuid.UUID) (int, error) {
	sessions, err := s.tracker.ListInstanceSessions(ctx, instanceID)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, sess := range sessions {
		total += sess.TotalSeconds
	}
	return total, nil
}

// PauseWorkflow suspends an active instance. The active time session is not
// paused implicitly; callers use PauseTracking for that.
func (s *WorkflowService) PauseWorkflow(ctx context.Context, instanceID uuid.UUID) error {
	return s.workflows.Pause(ctx, instanceID, s.clock.Now())
}

// ResumeWorkflow reactivates a paused instance.
func (s *WorkflowService) ResumeWorkflow(ctx context.Context, instanceID uuid.UUID) error {
	return s.workflows.Resume(ctx, instanceID, s.clock.Now())
}

// CancelWorkflow abandons an instance from Active or Paused. Any open
// session is closed best-effort; no anomaly detection is triggered.
func (s *WorkflowService) CancelWorkflow(ctx context.Context, instanceID uuid.UUID) error {
	instance, err := s.workflows.GetByID(ctx, instanceID)
	if err != nil {
		return err
	}
	if instance.IsTerminal() {
		return fmt.Errorf("instance %s is already %s: %w", instanceID, instance.Status, domain.ErrConflict)
	}
	s.tracker.EndActiveForInstance(ctx, instanceID)
	return s.workflows.Cancel(ctx, instanceID, s.clock.Now())
}

// PauseTracking pauses the instance's active time session.
func (s *WorkflowService) PauseTracking(ctx context.Context, instanceID uuid.UUID) error {
	return s.tracker.PauseActive(ctx, instanceID)
}

// ResumeTracking resumes the instance's active time session.
func (s *WorkflowService) ResumeTracking(ctx context.Context, instanceID uuid.UUID) error {
	return s.tracker.ResumeActive(ctx, instanceID)
}

// GetInstanceDetail returns the instance with its steps and full session
// history.
func (s *WorkflowService) GetInstanceDetail(ctx context.Context, instanceID uuid.UUID) (*InstanceDetail, error) {
	instance, err := s.workflows.GetByID(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	template, err := s.templates.GetByID(ctx, instance.TemplateID)
	if err != nil {
		return nil, err
	}
	results, err := s.steps.ListByInstance(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	sessions, err := s.tracker.ListInstanceSessions(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	return &InstanceDetail{Instance: instance, Template: template, Steps: results, Sessions: sessions}, nil
}

// GetStepTimeSummary reports the tracked time and gap for one step.
func (s *WorkflowService) GetStepTimeSummary(ctx context.Context, instanceID uuid.UUID, stepIndex int) (*StepTimeSummary, error) {
	instance, err := s.workflows.GetByID(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	template, err := s.templates.GetByID(ctx, instance.TemplateID)
	if err != nil {
		return nil, err
	}
	defs, err := template.Steps()
	if err != nil {
		return nil, err
	}
	if stepIndex < 0 || stepIndex >= len(defs) {
		return nil, fmt.Errorf("step index %d out of range: %w", stepIndex, domain.ErrValidation)
	}

	sessions, err := s.tracker.ListInstanceSessions(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	actual := 0
	for _, sess := range sessions {
		if sess.StepIndex == stepIndex {
			actual += sess.TotalSeconds
		}
	}
	return &StepTimeSummary{
		StepIndex:     stepIndex,
		ActualSeconds: actual,
		Gap:           analytics.AnalyzeGap(actual, defs[stepIndex].EstimatedSeconds),
	}, nil
}

// GetWorkflowSummary aggregates actual vs estimated time across all steps.
func (s *WorkflowService) GetWorkflowSummary(ctx context.Context, instanceID uuid.UUID) (*WorkflowSummary, error) {
	instance, err := s.workflows.GetByID(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	template, err := s.templates.GetByID(ctx, instance.TemplateID)
	if err != nil {
		return nil, err
	}
	defs, err := template.Steps()
	if err != nil {
		return nil, err
	}
	sessions, err := s.tracker.ListInstanceSessions(ctx, instanceID)
	if err != nil {
		return nil, err
	}

	actualByStep := make(map[int]int, len(defs))
	for _, sess := range sessions {
		actualByStep[sess.StepIndex] += sess.TotalSeconds
	}

	summary := &WorkflowSummary{InstanceID: instanceID}
	for _, def := range defs {
		actual := actualByStep[def.Index]
		summary.TotalActualSeconds += actual
		summary.TotalEstimatedSeconds += def.EstimatedSeconds
		summary.Steps = append(summary.Steps, StepTimeSummary{
			StepIndex:     def.Index,
			ActualSeconds: actual,
			Gap:           analytics.AnalyzeGap(actual, def.EstimatedSeconds),
		})
	}
	return summary, nil
}

// ListUserWorkflows returns all instances owned by a user.
func (s *WorkflowService) ListUserWorkflows(ctx context.Context, userID string) ([]domain.WorkflowInstance, error) {
	return s.workflows.ListByUser(ctx, userID)
}

// GetActiveWorkflowForTicket returns the ticket's single active instance.
func (s *WorkflowService) GetActiveWorkflowForTicket(ctx context.Context, ticketID string) (*domain.WorkflowInstance, error) {
	return s.workflows.GetActiveByTicket(ctx, ticketID)
}
