package dto

import (
	"time"

	"flowtrack/internal/analytics"
	"flowtrack/internal/domain"
	"flowtrack/internal/service"

	"github.com/google/uuid"
)

type CreateWorkflowRequest struct {
	TemplateID  uuid.UUID `json:"template_id" binding:"required"`
	TicketID    string    `json:"ticket_id" binding:"required"`
	TicketTitle string    `json:"ticket_title"`
	UserID      string    `json:"user_id" binding:"required"`
}

type StepLinkDTO struct {
	Title string `json:"title" binding:"required"`
	URL   string `json:"url" binding:"required"`
}

type CompleteStepRequest struct {
	Notes string        `json:"notes"`
	Links []StepLinkDTO `json:"links"`
}

type StepDefinitionResponse struct {
	Index            int    `json:"index"`
	Name             string `json:"name"`
	Description      string `json:"description"`
	EstimatedSeconds int    `json:"estimated_seconds"`
}

type TemplateResponse struct {
	ID                    uuid.UUID                `json:"id"`
	Name                  string                   `json:"name"`
	Description           string                   `json:"description"`
	TicketType            string                   `json:"ticket_type"`
	IsDefault             bool                     `json:"is_default"`
	Steps                 []StepDefinitionResponse `json:"steps"`
	TotalEstimatedSeconds int                      `json:"total_estimated_seconds"`
}

type WorkflowResponse struct {
	ID           uuid.UUID  `json:"id"`
	TemplateID   uuid.UUID  `json:"template_id"`
	TicketID     string     `json:"ticket_id"`
	TicketTitle  string     `json:"ticket_title"`
	TicketType   string     `json:"ticket_type"`
	UserID       string     `json:"user_id"`
	Status       string     `json:"status"`
	CurrentStep  int        `json:"current_step"`
	TotalSeconds int        `json:"total_seconds"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

type CreateWorkflowResponse struct {
	Workflow  WorkflowResponse        `json:"workflow"`
	FirstStep *StepDefinitionResponse `json:"first_step,omitempty"`
}

type StepResultResponse struct {
	StepIndex   int               `json:"step_index"`
	Status      string            `json:"status"`
	Notes       string            `json:"notes,omitempty"`
	Links       []domain.StepLink `json:"links,omitempty"`
	StartedAt   *time.Time        `json:"started_at,omitempty"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
}

type SessionResponse struct {
	ID                 uuid.UUID  `json:"id"`
	StepIndex          int        `json:"step_index"`
	StartedAt          time.Time  `json:"started_at"`
	EndedAt            *time.Time `json:"ended_at,omitempty"`
	TotalSeconds       int        `json:"total_seconds"`
	PauseCount         int        `json:"pause_count"`
	TotalPausedSeconds int        `json:"total_paused_seconds"`
	IsActive           bool       `json:"is_active"`
}

type WorkflowDetailResponse struct {
	Workflow WorkflowResponse     `json:"workflow"`
	Template TemplateResponse     `json:"template"`
	Steps    []StepResultResponse `json:"steps"`
	Sessions []SessionResponse    `json:"sessions"`
}

type StepCompletionResponse struct {
	Workflow          WorkflowResponse        `json:"workflow"`
	Gap               analytics.TimeGap       `json:"gap"`
	ActualSeconds     int                     `json:"actual_seconds"`
	WorkflowCompleted bool                    `json:"workflow_completed"`
	NextStep          *StepDefinitionResponse `json:"next_step,omitempty"`
}

type StepTimeResponse struct {
	StepIndex     int               `json:"step_index"`
	ActualSeconds int               `json:"actual_seconds"`
	Gap           analytics.TimeGap `json:"gap"`
}

type WorkflowSummaryResponse struct {
	InstanceID            uuid.UUID          `json:"instance_id"`
	TotalActualSeconds    int                `json:"total_actual_seconds"`
	TotalEstimatedSeconds int                `json:"total_estimated_seconds"`
	Steps                 []StepTimeResponse `json:"steps"`
}

type AnomalyResponse struct {
	ID             uuid.UUID `json:"id"`
	Kind           string    `json:"kind"`
	Severity       string    `json:"severity"`
	ZScore         float64   `json:"z_score"`
	BaselineMean   float64   `json:"baseline_mean"`
	BaselineStddev float64   `json:"baseline_stddev"`
	CurrentSeconds int       `json:"current_seconds"`
	Description    string    `json:"description"`
	DetectedAt     time.Time `json:"detected_at"`
}

func FromWorkflow(w *domain.WorkflowInstance) WorkflowResponse {
	return WorkflowResponse{
		ID:           w.ID,
		TemplateID:   w.TemplateID,
		TicketID:     w.TicketID,
		TicketTitle:  w.TicketTitle,
		TicketType:   w.TicketType,
		UserID:       w.UserID,
		Status:       string(w.Status),
		CurrentStep:  w.CurrentStep,
		TotalSeconds: w.TotalSeconds,
		StartedAt:    w.StartedAt,
		CompletedAt:  w.CompletedAt,
	}
}

func FromStepDefinition(d *domain.StepDefinition) *StepDefinitionResponse {
	if d == nil {
		return nil
	}
	return &StepDefinitionResponse{
		Index:            d.Index,
		Name:             d.Name,
		Description:      d.Description,
		EstimatedSeconds: d.EstimatedSeconds,
	}
}

func FromTemplate(t *domain.WorkflowTemplate) TemplateResponse {
	resp := TemplateResponse{
		ID:                    t.ID,
		Name:                  t.Name,
		Description:           t.Description,
		TicketType:            t.TicketType,
		IsDefault:             t.IsDefault,
		TotalEstimatedSeconds: t.TotalEstimatedSeconds(),
	}
	if steps, err := t.Steps(); err == nil {
		for i := range steps {
			resp.Steps = append(resp.Steps, *FromStepDefinition(&steps[i]))
		}
	}
	return resp
}

func FromStepResult(r *domain.WorkflowStepResult) StepResultResponse {
	return StepResultResponse{
		StepIndex:   r.StepIndex,
		Status:      string(r.Status),
		Notes:       r.Notes,
		Links:       r.Links(),
		StartedAt:   r.StartedAt,
		CompletedAt: r.CompletedAt,
	}
}

func FromSession(s *domain.TimeSession) SessionResponse {
	return SessionResponse{
		ID:                 s.ID,
		StepIndex:          s.StepIndex,
		StartedAt:          s.StartedAt,
		EndedAt:            s.EndedAt,
		TotalSeconds:       s.TotalSeconds,
		PauseCount:         s.PauseCount,
		TotalPausedSeconds: s.TotalPausedSeconds,
		IsActive:           s.IsActive,
	}
}

func FromStepCompletion(c *service.StepCompletion) StepCompletionResponse {
	return StepCompletionResponse{
		Workflow:          FromWorkflow(c.Instance),
		Gap:               c.Gap,
		ActualSeconds:     c.ActualSeconds,
		WorkflowCompleted: c.WorkflowCompleted,
		NextStep:          FromStepDefinition(c.NextStep),
	}
}

func FromAnomaly(a *domain.AnomalyRecord) AnomalyResponse {
	return AnomalyResponse{
		ID:             a.ID,
		Kind:           string(a.Kind),
		Severity:       string(a.Severity),
		ZScore:         a.ZScore,
		BaselineMean:   a.BaselineMean,
		BaselineStddev: a.BaselineStddev,
		CurrentSeconds: a.CurrentSeconds,
		Description:    a.Description,
		DetectedAt:     a.DetectedAt,
	}
}
