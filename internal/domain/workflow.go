package domain

import (
	"time"

	"github.com/google/uuid"
)

type WorkflowStatus string

const (
	WorkflowActive    WorkflowStatus = "ACTIVE"
	WorkflowPaused    WorkflowStatus = "PAUSED"
	WorkflowCompleted WorkflowStatus = "COMPLETED"
	WorkflowCancelled WorkflowStatus = "CANCELLED"
)

// WorkflowInstance is one run of a template against a ticket. At most one
// instance per ticket may be ACTIVE at a time (enforced by a partial unique
// index, not by application checks).
type WorkflowInstance struct {
	ID          uuid.UUID      `gorm:"type:uuid;primary_key"`
	TemplateID  uuid.UUID      `gorm:"type:uuid;index;not null"`
	TicketID    string         `gorm:"type:varchar(100);index;not null"`
	TicketTitle string         `gorm:"type:varchar(500)"`
	TicketType  string         `gorm:"type:varchar(50)"`
	UserID      string         `gorm:"type:varchar(100);index;not null"`
	Status      WorkflowStatus `gorm:"type:varchar(20);index;default:'ACTIVE'"`

	// CurrentStep caches the lowest step index not yet Completed or Skipped,
	// or the step count once every step is terminal.
	CurrentStep int `gorm:"default:0"`

	// TotalSeconds is the sum of step session durations, set at completion.
	TotalSeconds int `gorm:"default:0"`

	StartedAt   time.Time
	PausedAt    *time.Time
	ResumedAt   *time.Time
	CompletedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (WorkflowInstance) TableName() string { return "workflow_instances" }

func NewWorkflowInstance(templateID uuid.UUID, ticketID, ticketTitle, ticketType, userID string, startedAt time.Time) *WorkflowInstance {
	return &WorkflowInstance{
		ID:          uuid.New(),
		TemplateID:  templateID,
		TicketID:    ticketID,
		TicketTitle: ticketTitle,
		TicketType:  ticketType,
		UserID:      userID,
		Status:      WorkflowActive,
		StartedAt:   startedAt,
	}
}

// IsTerminal reports whether no further transitions are allowed.
func (w *WorkflowInstance) IsTerminal() bool {
	return w.Status == WorkflowCompleted || w.Status == WorkflowCancelled
}
