package domain

import "github.com/google/uuid"

// Ticket is the metadata snapshot taken from the ticket system when an
// instance is created.
type Ticket struct {
	Title string `json:"title"`
	Type  string `json:"type"`
}

// Alert is handed to the external dispatcher for gap and anomaly signals.
// Delivery is best-effort; rate limiting is owned by the dispatcher side.
type Alert struct {
	InstanceID uuid.UUID `json:"instance_id"`
	Kind       string    `json:"kind"`
	Severity   string    `json:"severity"`
	Message    string    `json:"message"`
}
