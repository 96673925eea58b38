package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"flowtrack/internal/api/dto"
	"flowtrack/internal/core/ports"
	"flowtrack/internal/domain"
	"flowtrack/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type WorkflowHandler struct {
	service   *service.WorkflowService
	templates ports.TemplateRepository
	anomalies ports.AnomalyRepository
}

func NewWorkflowHandler(svc *service.WorkflowService, templates ports.TemplateRepository, anomalies ports.AnomalyRepository) *WorkflowHandler {
	return &WorkflowHandler{service: svc, templates: templates, anomalies: anomalies}
}

// RegisterRoutes mounts every workflow endpoint under the given group.
func (h *WorkflowHandler) RegisterRoutes(api *gin.RouterGroup) {
	api.GET("/templates", h.ListTemplates)
	api.GET("/templates/:id", h.GetTemplate)

	api.POST("/workflows", h.CreateWorkflow)
	api.GET("/workflows/:id", h.GetWorkflow)
	api.GET("/workflows/:id/summary", h.GetWorkflowSummary)
	api.GET("/workflows/:id/anomalies", h.ListWorkflowAnomalies)
	api.GET("/workflows/:id/steps/:step_index/time", h.GetStepTime)

	api.POST("/workflows/:id/steps/:step_index/complete", h.CompleteStep)
	api.POST("/workflows/:id/steps/:step_index/skip", h.SkipStep)

	api.POST("/workflows/:id/pause", h.PauseWorkflow)
	api.POST("/workflows/:id/resume", h.ResumeWorkflow)
	api.POST("/workflows/:id/cancel", h.CancelWorkflow)

	api.POST("/workflows/:id/tracking/pause", h.PauseTracking)
	api.POST("/workflows/:id/tracking/resume", h.ResumeTracking)

	api.GET("/users/:user_id/workflows", h.ListUserWorkflows)
	api.GET("/tickets/:ticket_id/workflow", h.GetTicketWorkflow)
}

func (h *WorkflowHandler) CreateWorkflow(c *gin.Context) {
	var req dto.CreateWorkflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	instance, first, err := h.service.CreateInstance(c.Request.Context(), req.TemplateID, req.TicketID, req.TicketTitle, req.UserID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.CreateWorkflowResponse{
		Workflow:  dto.FromWorkflow(instance),
		FirstStep: dto.FromStepDefinition(first),
	})
}

func (h *WorkflowHandler) GetWorkflow(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	detail, err := h.service.GetInstanceDetail(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := dto.WorkflowDetailResponse{
		Workflow: dto.FromWorkflow(detail.Instance),
		Template: dto.FromTemplate(detail.Template),
	}
	for i := range detail.Steps {
		resp.Steps = append(resp.Steps, dto.FromStepResult(&detail.Steps[i]))
	}
	for i := range detail.Sessions {
		resp.Sessions = append(resp.Sessions, dto.FromSession(&detail.Sessions[i]))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *WorkflowHandler) CompleteStep(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	stepIndex, ok := pathInt(c, "step_index")
	if !ok {
		return
	}

	var req dto.CompleteStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	links := make([]domain.StepLink, 0, len(req.Links))
	for _, l := range req.Links {
		links = append(links, domain.StepLink{Title: l.Title, URL: l.URL})
	}

	completion, err := h.service.CompleteStep(c.Request.Context(), id, stepIndex, req.Notes, links)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromStepCompletion(completion))
}

func (h *WorkflowHandler) SkipStep(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	stepIndex, ok := pathInt(c, "step_index")
	if !ok {
		return
	}

	completion, err := h.service.SkipStep(c.Request.Context(), id, stepIndex)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromStepCompletion(completion))
}

func (h *WorkflowHandler) PauseWorkflow(c *gin.Context) {
	h.transition(c, h.service.PauseWorkflow)
}

func (h *WorkflowHandler) ResumeWorkflow(c *gin.Context) {
	h.transition(c, h.service.ResumeWorkflow)
}

func (h *WorkflowHandler) CancelWorkflow(c *gin.Context) {
	h.transition(c, h.service.CancelWorkflow)
}

func (h *WorkflowHandler) PauseTracking(c *gin.Context) {
	h.transition(c, h.service.PauseTracking)
}

func (h *WorkflowHandler) ResumeTracking(c *gin.Context) {
	h.transition(c, h.service.ResumeTracking)
}

func (h *WorkflowHandler) GetWorkflowSummary(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	summary, err := h.service.GetWorkflowSummary(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := dto.WorkflowSummaryResponse{
		InstanceID:            summary.InstanceID,
		TotalActualSeconds:    summary.TotalActualSeconds,
		TotalEstimatedSeconds: summary.TotalEstimatedSeconds,
	}
	for _, s := range summary.Steps {
		resp.Steps = append(resp.Steps, dto.StepTimeResponse{
			StepIndex:     s.StepIndex,
			ActualSeconds: s.ActualSeconds,
			Gap:           s.Gap,
		})
	}
	c.JSON(http.StatusOK, resp)
}

func (h *WorkflowHandler) GetStepTime(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	stepIndex, ok := pathInt(c, "step_index")
	if !ok {
		return
	}

	summary, err := h.service.GetStepTimeSummary(c.Request.Context(), id, stepIndex)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.StepTimeResponse{
		StepIndex:     summary.StepIndex,
		ActualSeconds: summary.ActualSeconds,
		Gap:           summary.Gap,
	})
}

func (h *WorkflowHandler) ListWorkflowAnomalies(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	records, err := h.anomalies.ListByInstance(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := make([]dto.AnomalyResponse, 0, len(records))
	for i := range records {
		resp = append(resp, dto.FromAnomaly(&records[i]))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *WorkflowHandler) ListTemplates(c *gin.Context) {
	var (
		templates []domain.WorkflowTemplate
		err       error
	)
	if ticketType := c.Query("ticket_type"); ticketType != "" {
		templates, err = h.templates.ListByTicketType(c.Request.Context(), ticketType)
	} else {
		templates, err = h.templates.List(c.Request.Context())
	}
	if err != nil {
		respondError(c, err)
		return
	}

	resp := make([]dto.TemplateResponse, 0, len(templates))
	for i := range templates {
		resp = append(resp, dto.FromTemplate(&templates[i]))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *WorkflowHandler) GetTemplate(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	template, err := h.templates.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromTemplate(template))
}

func (h *WorkflowHandler) ListUserWorkflows(c *gin.Context) {
	instances, err := h.service.ListUserWorkflows(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	resp := make([]dto.WorkflowResponse, 0, len(instances))
	for i := range instances {
		resp = append(resp, dto.FromWorkflow(&instances[i]))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *WorkflowHandler) GetTicketWorkflow(c *gin.Context) {
	instance, err := h.service.GetActiveWorkflowForTicket(c.Request.Context(), c.Param("ticket_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromWorkflow(instance))
}

// transition is the shared shape of the body-less state transition endpoints.
func (h *WorkflowHandler) transition(c *gin.Context, fn func(ctx context.Context, id uuid.UUID) error) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if err := fn(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}

func pathInt(c *gin.Context, name string) (int, bool) {
	v, err := strconv.Atoi(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return v, true
}

func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
