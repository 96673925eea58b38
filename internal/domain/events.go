package domain

import (
	"github.com/google/uuid"
)

// InstanceCompletedEvent is enqueued when a workflow instance completes and
// consumed by the anomaly detection worker. Delivery is best-effort: the
// event is advisory telemetry, not transactional state.
type InstanceCompletedEvent struct {
	InstanceID   uuid.UUID `json:"instance_id"`
	TemplateID   uuid.UUID `json:"template_id"`
	TicketID     string    `json:"ticket_id"`
	UserID       string    `json:"user_id"`
	TotalSeconds int       `json:"total_seconds"`
}
