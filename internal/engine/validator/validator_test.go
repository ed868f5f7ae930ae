package validator

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgrid-go/internal/domain/workflow"
	"github.com/flowgrid-go/internal/engine/store"
	"github.com/flowgrid-go/pkg/apperr"
	"github.com/flowgrid-go/pkg/cache"
)

type stubRepo struct {
	wf  *workflow.Workflow
	err error
}

func (s *stubRepo) GetWorkflow(ctx context.Context, workflowID string) (*workflow.Workflow, error) {
	return s.wf, s.err
}

func TestActivateValidatorHappyPath(t *testing.T) {
	wf := workflow.NewWorkflow("etl", "user-1")
	v := NewActivateValidator(&stubRepo{wf: wf})

	got, err := v.Validate(context.Background(), wf.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, wf.ID, got.ID)
}

func TestActivateValidatorOwnership(t *testing.T) {
	wf := workflow.NewWorkflow("etl", "user-1")
	v := NewActivateValidator(&stubRepo{wf: wf})

	_, err := v.Validate(context.Background(), wf.ID, "intruder")
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestActivateValidatorStatus(t *testing.T) {
	cases := []struct {
		status workflow.Status
		kind   apperr.Kind
	}{
		{workflow.StatusLive, apperr.KindValidation},
		{workflow.StatusDeleted, apperr.KindNotFound},
	}
	for _, tc := range cases {
		wf := workflow.NewWorkflow("etl", "user-1")
		wf.Status = tc.status
		v := NewActivateValidator(&stubRepo{wf: wf})

		_, err := v.Validate(context.Background(), wf.ID, "user-1")
		require.Error(t, err, "status %s", tc.status)
		assert.Equal(t, tc.kind, apperr.KindOf(err), "status %s", tc.status)
	}

	wf := workflow.NewWorkflow("etl", "user-1")
	wf.Status = workflow.StatusInactive
	v := NewActivateValidator(&stubRepo{wf: wf})
	_, err := v.Validate(context.Background(), wf.ID, "user-1")
	assert.NoError(t, err)
}

func TestActivateValidatorRepoErrorPropagates(t *testing.T) {
	v := NewActivateValidator(&stubRepo{
		err: apperr.NotFound("workflow not found", "repo.GetWorkflow"),
	})

	_, err := v.Validate(context.Background(), "wf-x", "user-1")
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.Contains(t, apperr.TraceOf(err), "validator.ActivateValidator.Validate")
}

func newStores(t *testing.T) (*store.WorkflowStore, *store.ExecutionStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := cache.NewRedisCache(client)
	return store.NewWorkflowStore(c), store.NewExecutionStore(c, time.Minute)
}

func TestTriggerValidatorWorkflowNotActive(t *testing.T) {
	workflows, executions := newStores(t)
	v := NewTriggerValidator(workflows, executions)

	_, err := v.Validate(context.Background(), "wf-1")
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestTriggerValidatorExclusive(t *testing.T) {
	workflows, executions := newStores(t)
	ctx := context.Background()

	require.NoError(t, workflows.Set(ctx, &workflow.ActiveWorkflow{
		WorkflowID: "wf-1",
		UserID:     "user-1",
		Settings:   workflow.GeneralSettings{ExclusiveExecution: true},
	}))
	v := NewTriggerValidator(workflows, executions)

	active, err := v.Validate(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", active.UserID)

	require.NoError(t, executions.MarkRunning(ctx, "wf-1", "exec-1"))
	_, err = v.Validate(ctx, "wf-1")
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	require.NoError(t, executions.ClearRunning(ctx, "wf-1"))
	_, err = v.Validate(ctx, "wf-1")
	assert.NoError(t, err)
}

func TestTriggerValidatorNonExclusiveIgnoresRunning(t *testing.T) {
	workflows, executions := newStores(t)
	ctx := context.Background()

	require.NoError(t, workflows.Set(ctx, &workflow.ActiveWorkflow{
		WorkflowID: "wf-1",
		Settings:   workflow.GeneralSettings{ExclusiveExecution: false},
	}))
	require.NoError(t, executions.MarkRunning(ctx, "wf-1", "exec-1"))

	v := NewTriggerValidator(workflows, executions)
	_, err := v.Validate(ctx, "wf-1")
	assert.NoError(t, err)
}
