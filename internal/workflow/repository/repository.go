// Package repository is the persistence adapter for workflow documents.
package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/flowgrid-go/internal/domain/workflow"
	"github.com/flowgrid-go/pkg/apperr"
	"github.com/flowgrid-go/pkg/database"
)

type WorkflowRepository struct {
	db *database.DB
}

func NewWorkflowRepository(db *database.DB) *WorkflowRepository {
	return &WorkflowRepository{db: db}
}

// Migrate creates or updates the workflows table.
func (r *WorkflowRepository) Migrate() error {
	return r.db.AutoMigrate(&workflow.Workflow{})
}

func (r *WorkflowRepository) CreateWorkflow(ctx context.Context, wf *workflow.Workflow) error {
	if err := r.db.WithContext(ctx).Create(wf).Error; err != nil {
		return apperr.External("failed to create workflow", "repository.WorkflowRepository.CreateWorkflow", err)
	}
	return nil
}

func (r *WorkflowRepository) GetWorkflow(ctx context.Context, workflowID string) (*workflow.Workflow, error) {
	var wf workflow.Workflow
	err := r.db.WithContext(ctx).First(&wf, "id = ?", workflowID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("workflow not found", "repository.WorkflowRepository.GetWorkflow")
		}
		return nil, apperr.External("failed to load workflow", "repository.WorkflowRepository.GetWorkflow", err)
	}
	return &wf, nil
}

func (r *WorkflowRepository) ListWorkflows(ctx context.Context, userID string) ([]workflow.Workflow, error) {
	var wfs []workflow.Workflow
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status <> ?", userID, workflow.StatusDeleted).
		Order("updated_at DESC").
		Find(&wfs).Error
	if err != nil {
		return nil, apperr.External("failed to list workflows", "repository.WorkflowRepository.ListWorkflows", err)
	}
	return wfs, nil
}

func (r *WorkflowRepository) UpdateStatus(ctx context.Context, workflowID string, status workflow.Status) error {
	result := r.db.WithContext(ctx).
		Model(&workflow.Workflow{}).
		Where("id = ?", workflowID).
		Update("status", status)
	if result.Error != nil {
		return apperr.External("failed to update workflow status", "repository.WorkflowRepository.UpdateStatus", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound("workflow not found", "repository.WorkflowRepository.UpdateStatus")
	}
	return nil
}

// UpdateReport overwrites the latest-execution summary.
func (r *WorkflowRepository) UpdateReport(ctx context.Context, workflowID string, report workflow.Report) error {
	result := r.db.WithContext(ctx).
		Model(&workflow.Workflow{}).
		Where("id = ?", workflowID).
		Update("report", &report)
	if result.Error != nil {
		return apperr.External("failed to update workflow report", "repository.WorkflowRepository.UpdateReport", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound("workflow not found", "repository.WorkflowRepository.UpdateReport")
	}
	return nil
}
