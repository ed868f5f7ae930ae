// Package validator holds the admission checks in front of the two state
// transitions the engine performs: taking a workflow live and admitting a
// trigger firing into the queue.
package validator

import (
	"context"
	"fmt"

	"github.com/flowgrid-go/internal/domain/workflow"
	"github.com/flowgrid-go/internal/engine/store"
	"github.com/flowgrid-go/pkg/apperr"
)

// WorkflowReader loads persisted workflow documents.
type WorkflowReader interface {
	GetWorkflow(ctx context.Context, workflowID string) (*workflow.Workflow, error)
}

// ActivateValidator gates the draft/inactive -> live transition.
type ActivateValidator struct {
	repo WorkflowReader
}

func NewActivateValidator(repo WorkflowReader) *ActivateValidator {
	return &ActivateValidator{repo: repo}
}

// Validate loads the workflow and checks ownership and lifecycle state. The
// returned workflow is the document to parse and cache.
func (v *ActivateValidator) Validate(ctx context.Context, workflowID, userID string) (*workflow.Workflow, error) {
	wf, err := v.repo.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, apperr.Push(err, "validator.ActivateValidator.Validate")
	}

	if wf.UserID != userID {
		// not-found rather than forbidden: existence of other users'
		// workflows is not disclosed
		return nil, apperr.NotFound("workflow not found", "validator.ActivateValidator.Validate")
	}

	switch {
	case wf.Status == workflow.StatusDeleted:
		return nil, apperr.NotFound("workflow not found", "validator.ActivateValidator.Validate")
	case wf.Status == workflow.StatusLive:
		return nil, apperr.Validation("workflow is already live", "validator.ActivateValidator.Validate")
	case !wf.Status.CanActivate():
		return nil, apperr.Validation(
			fmt.Sprintf("workflow in status %q cannot be activated", wf.Status),
			"validator.ActivateValidator.Validate")
	}
	return wf, nil
}

// TriggerValidator gates trigger firings: the workflow must still be live and,
// when exclusive execution is on, no other execution may be running.
type TriggerValidator struct {
	workflows  *store.WorkflowStore
	executions *store.ExecutionStore
}

func NewTriggerValidator(workflows *store.WorkflowStore, executions *store.ExecutionStore) *TriggerValidator {
	return &TriggerValidator{workflows: workflows, executions: executions}
}

// Validate returns the active workflow entry when the firing is admissible.
func (v *TriggerValidator) Validate(ctx context.Context, workflowID string) (*workflow.ActiveWorkflow, error) {
	active, err := v.workflows.Get(ctx, workflowID)
	if err != nil {
		return nil, apperr.Push(err, "validator.TriggerValidator.Validate")
	}

	if active.Settings.ExclusiveExecution {
		running, err := v.executions.IsRunning(ctx, workflowID)
		if err != nil {
			return nil, apperr.Push(err, "validator.TriggerValidator.Validate")
		}
		if running {
			return nil, apperr.Validation(
				"another execution of this workflow is still running",
				"validator.TriggerValidator.Validate")
		}
	}
	return active, nil
}
