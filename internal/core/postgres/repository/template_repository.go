package repository

import (
	"context"
	"errors"
	"fmt"
	"log"

	"flowtrack/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type templateRepository struct {
	db *gorm.DB
}

// NewTemplateRepository creates a new instance of TemplateRepository
func NewTemplateRepository(db *gorm.DB) *templateRepository {
	return &templateRepository{db: db}
}

func (r *templateRepository) Create(ctx context.Context, template *domain.WorkflowTemplate) error {
	return translate(r.db.WithContext(ctx).Create(template).Error)
}

func (r *templateRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.WorkflowTemplate, error) {
	var template domain.WorkflowTemplate
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&template).Error
	if err != nil {
		return nil, translate(err)
	}
	return &template, nil
}

func (r *templateRepository) GetByName(ctx context.Context, name string) (*domain.WorkflowTemplate, error) {
	var template domain.WorkflowTemplate
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&template).Error
	if err != nil {
		return nil, translate(err)
	}
	return &template, nil
}

func (r *templateRepository) List(ctx context.Context) ([]domain.WorkflowTemplate, error) {
	var templates []domain.WorkflowTemplate
	err := r.db.WithContext(ctx).Order("name").Find(&templates).Error
	return templates, translate(err)
}

func (r *templateRepository) ListByTicketType(ctx context.Context, ticketType string) ([]domain.WorkflowTemplate, error) {
	var templates []domain.WorkflowTemplate
	err := r.db.WithContext(ctx).
		Where("ticket_type = ?", ticketType).
		Order("name").
		Find(&templates).Error
	return templates, translate(err)
}

// SeedDefaults creates the built-in templates if they are missing.
// Idempotent across restarts and across concurrently starting replicas.
func (r *templateRepository) SeedDefaults(ctx context.Context) error {
	for _, tmpl := range defaultTemplates() {
		_, err := r.GetByName(ctx, tmpl.Name)
		if err == nil {
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		if err := r.Create(ctx, tmpl); err != nil {
			// Another replica won the race on the name index.
			if errors.Is(err, domain.ErrConflict) {
				continue
			}
			return fmt.Errorf("seeding template %q: %w", tmpl.Name, err)
		}
		log.Printf("Created default workflow template %q", tmpl.Name)
	}
	return nil
}

func defaultTemplates() []*domain.WorkflowTemplate {
	minutes := func(m int) int { return m * 60 }

	bugFix, _ := domain.NewTemplate(
		"Bug Fix Workflow",
		"Guided workflow for testing bug fixes. Covers reproduction, investigation, fix verification, and regression testing.",
		"bug",
		[]domain.StepDefinition{
			{Name: "Reproduce Bug", Description: "Follow the steps in the ticket to reproduce the bug. Document exact steps, environment, and any variations observed.", EstimatedSeconds: minutes(15)},
			{Name: "Investigate Root Cause", Description: "Analyze logs, code, and related components to identify the root cause. Note any related issues or dependencies.", EstimatedSeconds: minutes(20)},
			{Name: "Test Fix", Description: "Verify the fix resolves the original issue. Test with the same steps used to reproduce, plus variations.", EstimatedSeconds: minutes(30)},
			{Name: "Regression Check", Description: "Ensure the fix doesn't break existing functionality. Run related test cases and check impacted areas.", EstimatedSeconds: minutes(20)},
			{Name: "Document Findings", Description: "Update the ticket with test results, any issues found, and recommendations. Link related test cases.", EstimatedSeconds: minutes(10)},
		},
		true,
	)

	featureTest, _ := domain.NewTemplate(
		"Feature Test Workflow",
		"Comprehensive workflow for testing new features. Includes requirements review, exploratory testing, and edge case coverage.",
		"feature",
		[]domain.StepDefinition{
			{Name: "Review Requirements", Description: "Read the feature requirements, acceptance criteria, and design documents. Identify testable scenarios.", EstimatedSeconds: minutes(15)},
			{Name: "Exploratory Testing", Description: "Explore the feature freely to understand its behavior. Note unexpected behaviors and potential edge cases.", EstimatedSeconds: minutes(45)},
			{Name: "Happy Path Testing", Description: "Test the main user flows with valid inputs. Verify all acceptance criteria are met.", EstimatedSeconds: minutes(30)},
			{Name: "Edge Case Testing", Description: "Test boundary conditions, invalid inputs, error handling, and unusual scenarios.", EstimatedSeconds: minutes(30)},
			{Name: "Document Test Cases", Description: "Record test cases executed, results, and any bugs found. Update test documentation.", EstimatedSeconds: minutes(15)},
		},
		true,
	)

	regression, _ := domain.NewTemplate(
		"Regression Test Workflow",
		"Workflow for regression testing. Guides through environment setup, test execution, failure analysis, and reporting.",
		"regression",
		[]domain.StepDefinition{
			{Name: "Setup Test Environment", Description: "Prepare the test environment with correct version, data, and configurations. Verify environment health.", EstimatedSeconds: minutes(20)},
			{Name: "Run Test Suite", Description: "Execute the regression test suite. Monitor for failures and performance issues.", EstimatedSeconds: minutes(60)},
			{Name: "Analyze Failures", Description: "Investigate any test failures. Determine if failures are bugs, test issues, or environment problems.", EstimatedSeconds: minutes(30)},
			{Name: "Generate Report", Description: "Create a summary report with pass/fail rates, identified issues, and recommendations.", EstimatedSeconds: minutes(15)},
		},
		true,
	)

	return []*domain.WorkflowTemplate{bugFix, featureTest, regression}
}
