package repository

import (
	"context"
	"fmt"
	"time"

	"flowtrack/internal/domain"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type stepRepository struct {
	db *gorm.DB
}

// NewStepRepository creates a new instance of StepRepository
func NewStepRepository(db *gorm.DB) *stepRepository {
	return &stepRepository{db: db}
}

func (r *stepRepository) ListByInstance(ctx context.Context, instanceID uuid.UUID) ([]domain.WorkflowStepResult, error) {
	var steps []domain.WorkflowStepResult
	err := r.db.WithContext(ctx).
		Where("instance_id = ?", instanceID).
		Order("step_index").
		Find(&steps).Error
	return steps, translate(err)
}

func (r *stepRepository) Get(ctx context.Context, instanceID uuid.UUID, stepIndex int) (*domain.WorkflowStepResult, error) {
	var step domain.WorkflowStepResult
	err := r.db.WithContext(ctx).
		Where("instance_id = ? AND step_index = ?", instanceID, stepIndex).
		First(&step).Error
	if err != nil {
		return nil, translate(err)
	}
	return &step, nil
}

func (r *stepRepository) MarkInProgress(ctx context.Context, instanceID uuid.UUID, stepIndex int, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&domain.WorkflowStepResult{}).
		Where("instance_id = ? AND step_index = ? AND status = ?", instanceID, stepIndex, domain.StepPending).
		Updates(map[string]interface{}{
			"status":     domain.StepInProgress,
			"started_at": at,
		})

	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("step %d of instance %s is not pending: %w", stepIndex, instanceID, domain.ErrConflict)
	}
	return nil
}

func (r *stepRepository) Complete(ctx context.Context, instanceID uuid.UUID, stepIndex int, notes string, links datatypes.JSON, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&domain.WorkflowStepResult{}).
		Where("instance_id = ? AND step_index = ? AND status IN ?",
			instanceID, stepIndex, []domain.StepStatus{domain.StepPending, domain.StepInProgress}).
		Updates(map[string]interface{}{
			"status":       domain.StepCompleted,
			"notes":        notes,
			"links_json":   links,
			"completed_at": at,
		})

	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("step %d of instance %s already finished: %w", stepIndex, instanceID, domain.ErrConflict)
	}
	return nil
}

func (r *stepRepository) Skip(ctx context.Context, instanceID uuid.UUID, stepIndex int, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&domain.WorkflowStepResult{}).
		Where("instance_id = ? AND step_index = ? AND status IN ?",
			instanceID, stepIndex, []domain.StepStatus{domain.StepPending, domain.StepInProgress}).
		Updates(map[string]interface{}{
			"status":       domain.StepSkipped,
			"completed_at": at,
		})

	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("step %d of instance %s already finished: %w", stepIndex, instanceID, domain.ErrConflict)
	}
	return nil
}
