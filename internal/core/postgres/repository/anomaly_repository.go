package repository

import (
	"context"

	"flowtrack/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type anomalyRepository struct {
	db *gorm.DB
}

// NewAnomalyRepository creates a new instance of AnomalyRepository
func NewAnomalyRepository(db *gorm.DB) *anomalyRepository {
	return &anomalyRepository{db: db}
}

func (r *anomalyRepository) Create(ctx context.Context, record *domain.AnomalyRecord) error {
	return translate(r.db.WithContext(ctx).Create(record).Error)
}

func (r *anomalyRepository) ListByInstance(ctx context.Context, instanceID uuid.UUID) ([]domain.AnomalyRecord, error) {
	var records []domain.AnomalyRecord
	err := r.db.WithContext(ctx).
		Where("instance_id = ?", instanceID).
		Order("detected_at DESC").
		Find(&records).Error
	return records, translate(err)
}
