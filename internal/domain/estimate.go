package domain

import (
	"time"

	"github.com/google/uuid"
)

// PersonalEstimate is a user's smoothed per-step time estimate, adapted from
// their own completions. Advisory only: concurrent updates are last-write-wins.
type PersonalEstimate struct {
	ID               uuid.UUID `gorm:"type:uuid;primary_key"`
	UserID           string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_personal_estimate_key,priority:1"`
	TemplateID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_personal_estimate_key,priority:2"`
	StepIndex        int       `gorm:"not null;uniqueIndex:idx_personal_estimate_key,priority:3"`
	EstimatedSeconds int       `gorm:"not null"`
	SampleCount      int       `gorm:"default:1"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (PersonalEstimate) TableName() string { return "personal_estimates" }
