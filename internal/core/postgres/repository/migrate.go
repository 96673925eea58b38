package repository

import (
	"flowtrack/internal/domain"

	"gorm.io/gorm"
)

// Migrate creates the schema and the partial unique indexes that back the
// concurrency invariants. AutoMigrate cannot express partial indexes, so
// those are raw SQL.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&domain.WorkflowTemplate{},
		&domain.WorkflowInstance{},
		&domain.WorkflowStepResult{},
		&domain.TimeSession{},
		&domain.PersonalEstimate{},
		&domain.AnomalyRecord{},
	); err != nil {
		return err
	}

	// One ACTIVE instance per ticket. Creating a second races in the
	// database, not in application code.
	if err := db.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_one_active_workflow_per_ticket
		 ON workflow_instances (ticket_id) WHERE status = 'ACTIVE'`,
	).Error; err != nil {
		return err
	}

	// One active session per (instance, step).
	return db.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_one_active_session_per_step
		 ON time_sessions (instance_id, step_index) WHERE is_active`,
	).Error
}
