package domain

import (
	"time"

	"github.com/google/uuid"
)

type AnomalyKind string

const (
	// AnomalyPerformanceDegradation fires only for the slow direction, when
	// the duration exceeds baseline mean + 2 stddev.
	AnomalyPerformanceDegradation AnomalyKind = "performance_degradation"
	// AnomalyUnusualExecutionTime fires for |z| >= 2 in either direction.
	AnomalyUnusualExecutionTime AnomalyKind = "unusual_execution_time"
)

type AnomalySeverity string

const (
	SeverityInfo     AnomalySeverity = "info"
	SeverityWarning  AnomalySeverity = "warning"
	SeverityCritical AnomalySeverity = "critical"
)

// AnomalyRecord is additive telemetry written by the anomaly worker.
// Never user-mutated.
type AnomalyRecord struct {
	ID             uuid.UUID       `gorm:"type:uuid;primary_key"`
	InstanceID     uuid.UUID       `gorm:"type:uuid;index;not null"`
	Kind           AnomalyKind     `gorm:"type:varchar(50);not null"`
	Severity       AnomalySeverity `gorm:"type:varchar(20);not null"`
	ZScore         float64
	BaselineMean   float64
	BaselineStddev float64
	CurrentSeconds int
	Description    string `gorm:"type:text"`
	DetectedAt     time.Time

	CreatedAt time.Time
}

func (AnomalyRecord) TableName() string { return "anomaly_records" }
