package repository

import (
	"context"
	"fmt"
	"time"

	"flowtrack/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type workflowRepository struct {
	db *gorm.DB
}

// NewWorkflowRepository creates a new instance of WorkflowRepository
func NewWorkflowRepository(db *gorm.DB) *workflowRepository {
	return &workflowRepository{db: db}
}

func (r *workflowRepository) CreateWithSteps(ctx context.Context, instance *domain.WorkflowInstance, steps []domain.WorkflowStepResult) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(instance).Error; err != nil {
			return err
		}
		if len(steps) > 0 {
			if err := tx.Create(&steps).Error; err != nil {
				return err
			}
		}
		return nil
	})
	return translate(err)
}

func (r *workflowRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.WorkflowInstance, error) {
	var instance domain.WorkflowInstance
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&instance).Error
	if err != nil {
		return nil, translate(err)
	}
	return &instance, nil
}

func (r *workflowRepository) GetActiveByTicket(ctx context.Context, ticketID string) (*domain.WorkflowInstance, error) {
	var instance domain.WorkflowInstance
	err := r.db.WithContext(ctx).
		Where("ticket_id = ? AND status = ?", ticketID, domain.WorkflowActive).
		First(&instance).Error
	if err != nil {
		return nil, translate(err)
	}
	return &instance, nil
}

func (r *workflowRepository) ListByUser(ctx context.Context, userID string) ([]domain.WorkflowInstance, error) {
	var instances []domain.WorkflowInstance
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("started_at DESC").
		Find(&instances).Error
	return instances, translate(err)
}

func (r *workflowRepository) AdvanceStep(ctx context.Context, id uuid.UUID, fromStep, toStep int) error {
	result := r.db.WithContext(ctx).
		Model(&domain.WorkflowInstance{}).
		Where("id = ? AND status = ? AND current_step = ?", id, domain.WorkflowActive, fromStep).
		Update("current_step", toStep)

	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("instance %s not at step %d or not active: %w", id, fromStep, domain.ErrConflict)
	}
	return nil
}

func (r *workflowRepository) MarkCompleted(ctx context.Context, id uuid.UUID, fromStep, totalSeconds int, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&domain.WorkflowInstance{}).
		Where("id = ? AND status = ? AND current_step = ?", id, domain.WorkflowActive, fromStep).
		Updates(map[string]interface{}{
			"status":        domain.WorkflowCompleted,
			"current_step":  fromStep + 1,
			"total_seconds": totalSeconds,
			"completed_at":  at,
		})

	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("instance %s not completable from step %d: %w", id, fromStep, domain.ErrConflict)
	}
	return nil
}

func (r *workflowRepository) Pause(ctx context.Context, id uuid.UUID, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&domain.WorkflowInstance{}).
		Where("id = ? AND status = ?", id, domain.WorkflowActive).
		Updates(map[string]interface{}{
			"status":    domain.WorkflowPaused,
			"paused_at": at,
		})

	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("instance %s is not active: %w", id, domain.ErrConflict)
	}
	return nil
}

func (r *workflowRepository) Resume(ctx context.Context, id uuid.UUID, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&domain.WorkflowInstance{}).
		Where("id = ? AND status = ?", id, domain.WorkflowPaused).
		Updates(map[string]interface{}{
			"status":     domain.WorkflowActive,
			"resumed_at": at,
		})

	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("instance %s is not paused: %w", id, domain.ErrConflict)
	}
	return nil
}

func (r *workflowRepository) Cancel(ctx context.Context, id uuid.UUID, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&domain.WorkflowInstance{}).
		Where("id = ? AND status IN ?", id, []domain.WorkflowStatus{domain.WorkflowActive, domain.WorkflowPaused}).
		Updates(map[string]interface{}{
			"status":       domain.WorkflowCancelled,
			"completed_at": at,
		})

	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("instance %s already finished: %w", id, domain.ErrConflict)
	}
	return nil
}

func (r *workflowRepository) ListCompletedDurations(ctx context.Context, templateID, exclude uuid.UUID, limit int) ([]int, error) {
	var durations []int
	err := r.db.WithContext(ctx).
		Model(&domain.WorkflowInstance{}).
		Where("template_id = ? AND status = ? AND id != ?", templateID, domain.WorkflowCompleted, exclude).
		Order("completed_at DESC").
		Limit(limit).
		Pluck("total_seconds", &durations).Error
	return durations, translate(err)
}
