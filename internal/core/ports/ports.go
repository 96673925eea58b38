package ports

import (
	"context"
	"time"

	"flowtrack/internal/domain"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// TemplateRepository is the read-mostly store of workflow step definitions.
type TemplateRepository interface {
	Create(ctx context.Context, template *domain.WorkflowTemplate) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.WorkflowTemplate, error)
	GetByName(ctx context.Context, name string) (*domain.WorkflowTemplate, error)
	List(ctx context.Context) ([]domain.WorkflowTemplate, error)
	ListByTicketType(ctx context.Context, ticketType string) ([]domain.WorkflowTemplate, error)
}

// WorkflowRepository owns workflow instances. All state transitions are
// conditional writes: a guard mismatch reports domain.ErrConflict rather
// than silently applying.
type WorkflowRepository interface {
	// CreateWithSteps inserts the instance and its pending step results in
	// one transaction. A second ACTIVE instance for the same ticket violates
	// the partial unique index and reports domain.ErrConflict.
	CreateWithSteps(ctx context.Context, instance *domain.WorkflowInstance, steps []domain.WorkflowStepResult) error

	GetByID(ctx context.Context, id uuid.UUID) (*domain.WorkflowInstance, error)
	GetActiveByTicket(ctx context.Context, ticketID string) (*domain.WorkflowInstance, error)
	ListByUser(ctx context.Context, userID string) ([]domain.WorkflowInstance, error)

	// AdvanceStep moves current_step from fromStep to toStep, guarded on
	// status ACTIVE and the expected current step.
	AdvanceStep(ctx context.Context, id uuid.UUID, fromStep, toStep int) error

	// MarkCompleted finishes the instance from its final step, recording the
	// total duration. Guarded like AdvanceStep so completed_at is set once.
	MarkCompleted(ctx context.Context, id uuid.UUID, fromStep, totalSeconds int, at time.Time) error

	Pause(ctx context.Context, id uuid.UUID, at time.Time) error
	Resume(ctx context.Context, id uuid.UUID, at time.Time) error
	Cancel(ctx context.Context, id uuid.UUID, at time.Time) error

	// ListCompletedDurations returns total durations of the most recent
	// completed instances of a template, newest first, excluding one
	// instance (the one under detection).
	ListCompletedDurations(ctx context.Context, templateID, exclude uuid.UUID, limit int) ([]int, error)
}

// StepRepository owns per-step results of an instance.
type StepRepository interface {
	ListByInstance(ctx context.Context, instanceID uuid.UUID) ([]domain.WorkflowStepResult, error)
	Get(ctx context.Context, instanceID uuid.UUID, stepIndex int) (*domain.WorkflowStepResult, error)

	// MarkInProgress stamps started_at when a step's session opens.
	MarkInProgress(ctx context.Context, instanceID uuid.UUID, stepIndex int, at time.Time) error

	// Complete and Skip are guarded on the step not already being terminal.
	Complete(ctx context.Context, instanceID uuid.UUID, stepIndex int, notes string, links datatypes.JSON, at time.Time) error
	Skip(ctx context.Context, instanceID uuid.UUID, stepIndex int, at time.Time) error
}

// SessionRepository owns time sessions; rows are append-only and all
// mutation goes through conditional writes on is_active.
type SessionRepository interface {
	// Create inserts a new active session. A concurrent active session for
	// the same (instance, step) violates the partial unique index and
	// reports domain.ErrConflict.
	Create(ctx context.Context, session *domain.TimeSession) error

	GetByID(ctx context.Context, id uuid.UUID) (*domain.TimeSession, error)
	GetActiveForStep(ctx context.Context, instanceID uuid.UUID, stepIndex int) (*domain.TimeSession, error)
	GetActiveForInstance(ctx context.Context, instanceID uuid.UUID) (*domain.TimeSession, error)
	ListByInstance(ctx context.Context, instanceID uuid.UUID) ([]domain.TimeSession, error)

	// End closes the session, guarded on is_active. pausedSeconds is the
	// final paused total, including a pause interval still open at end time.
	End(ctx context.Context, id uuid.UUID, at time.Time, totalSeconds, pausedSeconds int) error

	// MarkPaused opens a pause interval, guarded on is_active and no pause
	// already open; increments pause_count.
	MarkPaused(ctx context.Context, id uuid.UUID, at time.Time) error

	// MarkResumed closes the open pause interval, adding its length to
	// total_paused_seconds.
	MarkResumed(ctx context.Context, id uuid.UUID, at time.Time, pausedSeconds int) error
}

// EstimateRepository owns personal per-step estimates.
type EstimateRepository interface {
	Get(ctx context.Context, userID string, templateID uuid.UUID, stepIndex int) (*domain.PersonalEstimate, error)
	Upsert(ctx context.Context, estimate *domain.PersonalEstimate) error
}

// AnomalyRepository owns anomaly telemetry records.
type AnomalyRepository interface {
	Create(ctx context.Context, record *domain.AnomalyRecord) error
	ListByInstance(ctx context.Context, instanceID uuid.UUID) ([]domain.AnomalyRecord, error)
}

// CompletionQueue carries instance-completion events to the anomaly worker.
type CompletionQueue interface {
	Push(ctx context.Context, event domain.InstanceCompletedEvent) error

	// Pop blocks until an event is available or the context is cancelled.
	Pop(ctx context.Context) (domain.InstanceCompletedEvent, error)
}

// AlertDispatcher delivers gap and anomaly alerts. Best-effort: the core
// never retries failed dispatch.
type AlertDispatcher interface {
	Notify(ctx context.Context, alert domain.Alert) error
}

// TicketProvider snapshots ticket metadata at instance creation.
type TicketProvider interface {
	GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error)
}

// Clock is an injectable time source so session durations and z-scores are
// deterministic under test.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
