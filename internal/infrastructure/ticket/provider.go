package ticket

import (
	"context"

	"flowtrack/internal/domain"
)

// NoopProvider is the stand-in used when no ticket system is wired up.
// It returns an empty snapshot, so instance creation falls back to the
// metadata supplied in the request.
type NoopProvider struct{}

func NewNoopProvider() *NoopProvider { return &NoopProvider{} }

func (*NoopProvider) GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	return &domain.Ticket{}, nil
}
