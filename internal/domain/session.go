package domain

import (
	"time"

	"github.com/google/uuid"
)

// TimeSession is one contiguous tracked interval of work on a single step,
// net of recorded pauses. Sessions are append-only history; at most one
// session per (instance, step) is active at a time.
type TimeSession struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key"`
	InstanceID uuid.UUID `gorm:"type:uuid;index;not null"`
	StepIndex  int       `gorm:"not null"`

	StartedAt time.Time
	PausedAt  *time.Time
	ResumedAt *time.Time
	EndedAt   *time.Time

	// TotalSeconds is wall time minus paused time, clamped at zero.
	// Set only when the session ends.
	TotalSeconds       int  `gorm:"default:0"`
	PauseCount         int  `gorm:"default:0"`
	TotalPausedSeconds int  `gorm:"default:0"`
	IsActive           bool `gorm:"index;default:true"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (TimeSession) TableName() string { return "time_sessions" }

func NewTimeSession(instanceID uuid.UUID, stepIndex int, startedAt time.Time) *TimeSession {
	return &TimeSession{
		ID:         uuid.New(),
		InstanceID: instanceID,
		StepIndex:  stepIndex,
		StartedAt:  startedAt,
		IsActive:   true,
	}
}

// IsPaused reports whether the session has an open pause interval.
func (s *TimeSession) IsPaused() bool {
	return s.PausedAt != nil
}
