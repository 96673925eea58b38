package repository

import (
	"context"

	"flowtrack/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type estimateRepository struct {
	db *gorm.DB
}

// NewEstimateRepository creates a new instance of EstimateRepository
func NewEstimateRepository(db *gorm.DB) *estimateRepository {
	return &estimateRepository{db: db}
}

func (r *estimateRepository) Get(ctx context.Context, userID string, templateID uuid.UUID, stepIndex int) (*domain.PersonalEstimate, error) {
	var estimate domain.PersonalEstimate
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND template_id = ? AND step_index = ?", userID, templateID, stepIndex).
		First(&estimate).Error
	if err != nil {
		return nil, translate(err)
	}
	return &estimate, nil
}

// Upsert writes through the (user, template, step) unique key. Estimates
// are advisory, so concurrent writers are last-write-wins.
func (r *estimateRepository) Upsert(ctx context.Context, estimate *domain.PersonalEstimate) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "template_id"}, {Name: "step_index"}},
			DoUpdates: clause.AssignmentColumns([]string{"estimated_seconds", "sample_count", "updated_at"}),
		}).
		Create(estimate).Error
	return translate(err)
}
