package repository

import (
	"context"
	"fmt"
	"time"

	"flowtrack/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type sessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository creates a new instance of SessionRepository
func NewSessionRepository(db *gorm.DB) *sessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) Create(ctx context.Context, session *domain.TimeSession) error {
	return translate(r.db.WithContext(ctx).Create(session).Error)
}

func (r *sessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.TimeSession, error) {
	var session domain.TimeSession
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&session).Error
	if err != nil {
		return nil, translate(err)
	}
	return &session, nil
}

func (r *sessionRepository) GetActiveForStep(ctx context.Context, instanceID uuid.UUID, stepIndex int) (*domain.TimeSession, error) {
	var session domain.TimeSession
	err := r.db.WithContext(ctx).
		Where("instance_id = ? AND step_index = ? AND is_active", instanceID, stepIndex).
		First(&session).Error
	if err != nil {
		return nil, translate(err)
	}
	return &session, nil
}

func (r *sessionRepository) GetActiveForInstance(ctx context.Context, instanceID uuid.UUID) (*domain.TimeSession, error) {
	var session domain.TimeSession
	err := r.db.WithContext(ctx).
		Where("instance_id = ? AND is_active", instanceID).
		First(&session).Error
	if err != nil {
		return nil, translate(err)
	}
	return &session, nil
}

func (r *sessionRepository) ListByInstance(ctx context.Context, instanceID uuid.UUID) ([]domain.TimeSession, error) {
	var sessions []domain.TimeSession
	err := r.db.WithContext(ctx).
		Where("instance_id = ?", instanceID).
		Order("started_at").
		Find(&sessions).Error
	return sessions, translate(err)
}

func (r *sessionRepository) End(ctx context.Context, id uuid.UUID, at time.Time, totalSeconds, pausedSeconds int) error {
	result := r.db.WithContext(ctx).
		Model(&domain.TimeSession{}).
		Where("id = ? AND is_active", id).
		Updates(map[string]interface{}{
			"is_active":            false,
			"ended_at":             at,
			"total_seconds":        totalSeconds,
			"total_paused_seconds": pausedSeconds,
			"paused_at":            nil,
		})

	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("session %s already ended: %w", id, domain.ErrConflict)
	}
	return nil
}

func (r *sessionRepository) MarkPaused(ctx context.Context, id uuid.UUID, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&domain.TimeSession{}).
		Where("id = ? AND is_active AND paused_at IS NULL", id).
		Updates(map[string]interface{}{
			"paused_at":   at,
			"pause_count": gorm.Expr("pause_count + 1"),
		})

	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("session %s not pausable: %w", id, domain.ErrConflict)
	}
	return nil
}

func (r *sessionRepository) MarkResumed(ctx context.Context, id uuid.UUID, at time.Time, pausedSeconds int) error {
	result := r.db.WithContext(ctx).
		Model(&domain.TimeSession{}).
		Where("id = ? AND is_active AND paused_at IS NOT NULL", id).
		Updates(map[string]interface{}{
			"paused_at":            nil,
			"resumed_at":           at,
			"total_paused_seconds": gorm.Expr("total_paused_seconds + ?", pausedSeconds),
		})

	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("session %s not paused: %w", id, domain.ErrConflict)
	}
	return nil
}
