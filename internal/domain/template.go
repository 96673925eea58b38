package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// StepDefinition is a single step within a workflow template.
type StepDefinition struct {
	Index            int    `json:"index"`
	Name             string `json:"name"`
	Description      string `json:"description"`
	EstimatedSeconds int    `json:"estimated_seconds"`
}

// WorkflowTemplate defines the ordered steps for a ticket-type workflow.
// Templates are immutable once an instance references them.
type WorkflowTemplate struct {
	ID          uuid.UUID      `gorm:"type:uuid;primary_key"`
	Name        string         `gorm:"type:varchar(200);not null;uniqueIndex"`
	Description string         `gorm:"type:text"`
	TicketType  string         `gorm:"type:varchar(50);index;not null"`
	StepsJSON   datatypes.JSON `gorm:"type:jsonb;not null"`
	IsDefault   bool           `gorm:"default:false"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (WorkflowTemplate) TableName() string { return "workflow_templates" }

// NewTemplate builds a template, assigning step indexes in order.
func NewTemplate(name, description, ticketType string, steps []StepDefinition, isDefault bool) (*WorkflowTemplate, error) {
	for i := range steps {
		steps[i].Index = i
	}
	raw, err := json.Marshal(steps)
	if err != nil {
		return nil, err
	}
	return &WorkflowTemplate{
		ID:          uuid.New(),
		Name:        name,
		Description: description,
		TicketType:  ticketType,
		StepsJSON:   raw,
		IsDefault:   isDefault,
	}, nil
}

// Steps decodes the step definitions from the JSONB column.
func (t *WorkflowTemplate) Steps() ([]StepDefinition, error) {
	var steps []StepDefinition
	if err := json.Unmarshal(t.StepsJSON, &steps); err != nil {
		return nil, err
	}
	return steps, nil
}

// TotalEstimatedSeconds sums the estimates across all steps.
func (t *WorkflowTemplate) TotalEstimatedSeconds() int {
	steps, err := t.Steps()
	if err != nil {
		return 0
	}
	total := 0
	for _, s := range steps {
		total += s.EstimatedSeconds
	}
	return total
}
