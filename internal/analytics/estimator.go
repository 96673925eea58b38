package analytics

import (
	"context"
	"errors"
	"log"
	"math"

	"flowtrack/internal/core/ports"
	"flowtrack/internal/domain"

	"github.com/google/uuid"
)

// smoothingFactor is the EMA weight given to the newest observation.
const smoothingFactor = 0.3

// SmoothedEstimate blends a new actual duration into the previous estimate:
// round(alpha*actual + (1-alpha)*previous).
func SmoothedEstimate(previousSeconds, actualSeconds int) int {
	return int(math.Round(smoothingFactor*float64(actualSeconds) + (1-smoothingFactor)*float64(previousSeconds)))
}

// EstimateAdjuster maintains personal per-step estimates. It runs off the
// step-completion path; failures are logged, never propagated.
type EstimateAdjuster struct {
	estimates ports.EstimateRepository
}

func NewEstimateAdjuster(estimates ports.EstimateRepository) *EstimateAdjuster {
	return &EstimateAdjuster{estimates: estimates}
}

// UpdateEstimate folds an actual duration into the user's estimate for the
// (template, step) pair. First completion seeds the estimate with the actual
// value; later completions apply the EMA.
func (a *EstimateAdjuster) UpdateEstimate(ctx context.Context, userID string, templateID uuid.UUID, stepIndex, actualSeconds int) error {
	existing, err := a.estimates.Get(ctx, userID, templateID, stepIndex)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		existing = &domain.PersonalEstimate{
			ID:               uuid.New(),
			UserID:           userID,
			TemplateID:       templateID,
			StepIndex:        stepIndex,
			EstimatedSeconds: actualSeconds,
			SampleCount:      1,
		}
	case err != nil:
		return err
	default:
		existing.EstimatedSeconds = SmoothedEstimate(existing.EstimatedSeconds, actualSeconds)
		existing.SampleCount++
	}

	return a.estimates.Upsert(ctx, existing)
}

// UpdateEstimateAsync is the fire-and-forget form used by step completion.
func (a *EstimateAdjuster) UpdateEstimateAsync(ctx context.Context, userID string, templateID uuid.UUID, stepIndex, actualSeconds int) {
	go func() {
		if err := a.UpdateEstimate(context.WithoutCancel(ctx), userID, templateID, stepIndex, actualSeconds); err != nil {
			log.Printf("estimate update failed for user %s template %s step %d: %v", userID, templateID, stepIndex, err)
		}
	}()
}
