package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type StepStatus string

const (
	StepPending    StepStatus = "PENDING"
	StepInProgress StepStatus = "IN_PROGRESS"
	StepCompleted  StepStatus = "COMPLETED"
	StepSkipped    StepStatus = "SKIPPED"
)

// IsTerminal reports whether the step no longer counts toward CurrentStep.
func (s StepStatus) IsTerminal() bool {
	return s == StepCompleted || s == StepSkipped
}

// StepLink is a reference attached to a step result (test run, bug report).
type StepLink struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// WorkflowStepResult records the outcome of one step of an instance.
// (InstanceID, StepIndex) is unique.
type WorkflowStepResult struct {
	ID         uuid.UUID      `gorm:"type:uuid;primary_key"`
	InstanceID uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_step_result_instance_step,priority:1"`
	StepIndex  int            `gorm:"not null;uniqueIndex:idx_step_result_instance_step,priority:2"`
	Status     StepStatus     `gorm:"type:varchar(20);default:'PENDING'"`
	Notes      string         `gorm:"type:text"`
	LinksJSON  datatypes.JSON `gorm:"type:jsonb"`

	StartedAt   *time.Time
	CompletedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (WorkflowStepResult) TableName() string { return "workflow_step_results" }

func NewStepResult(instanceID uuid.UUID, stepIndex int) *WorkflowStepResult {
	return &WorkflowStepResult{
		ID:         uuid.New(),
		InstanceID: instanceID,
		StepIndex:  stepIndex,
		Status:     StepPending,
	}
}

// Links decodes the attached links, returning nil for an empty column.
func (r *WorkflowStepResult) Links() []StepLink {
	if len(r.LinksJSON) == 0 {
		return nil
	}
	var links []StepLink
	if err := json.Unmarshal(r.LinksJSON, &links); err != nil {
		return nil
	}
	return links
}

// MarshalLinks encodes links for storage; nil input yields a nil column.
func MarshalLinks(links []StepLink) (datatypes.JSON, error) {
	if len(links) == 0 {
		return nil, nil
	}
	return json.Marshal(links)
}
