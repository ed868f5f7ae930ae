package listener

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgrid-go/internal/domain/workflow"
	"github.com/flowgrid-go/pkg/apperr"
	"github.com/flowgrid-go/pkg/logger"
)

func webhookNode(id, path, token string) workflow.Node {
	return workflow.Node{
		ID:   id,
		Type: workflow.NodeTypeWebhookTrigger,
		Config: map[string]interface{}{
			"path":        path,
			"verifyToken": token,
		},
	}
}

func TestRegistryWebhookDelivery(t *testing.T) {
	r := NewRegistry(logger.NewNop())

	var got Event
	err := r.Start(context.Background(), StartParams{
		UserID:     "user-1",
		WorkflowID: "wf-1",
		Triggers:   []workflow.Node{webhookNode("n1", "orders", "secret")},
		Callback: func(ctx context.Context, ev Event) error {
			got = ev
			return nil
		},
	})
	require.NoError(t, err)

	err = r.HandleWebhookEvent(context.Background(), "orders", "req-7",
		map[string]interface{}{"total": 42.0}, "json")
	require.NoError(t, err)

	assert.Equal(t, "wf-1", got.WorkflowID)
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, workflow.TriggerSourceWebhook, got.Details.Source)
	assert.Equal(t, "n1", got.Details.NodeID)
	assert.Equal(t, "req-7", got.Details.RequestID)
	assert.Equal(t, 42.0, got.Data["total"])
}

func TestRegistryWebhookUnknownPath(t *testing.T) {
	r := NewRegistry(logger.NewNop())

	err := r.HandleWebhookEvent(context.Background(), "nowhere", "req-1", nil, "json")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestRegistryWebhookPathConflict(t *testing.T) {
	r := NewRegistry(logger.NewNop())
	noop := func(ctx context.Context, ev Event) error { return nil }

	err := r.Start(context.Background(), StartParams{
		UserID: "user-1", WorkflowID: "wf-1",
		Triggers: []workflow.Node{webhookNode("n1", "shared", "")},
		Callback: noop,
	})
	require.NoError(t, err)

	err = r.Start(context.Background(), StartParams{
		UserID: "user-2", WorkflowID: "wf-2",
		Triggers: []workflow.Node{webhookNode("n1", "shared", "")},
		Callback: noop,
	})
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindExternal))

	// first binding still routes
	err = r.HandleWebhookEvent(context.Background(), "shared", "req-1", nil, "json")
	assert.NoError(t, err)
}

func TestRegistryVerifyWebhook(t *testing.T) {
	r := NewRegistry(logger.NewNop())
	err := r.Start(context.Background(), StartParams{
		UserID: "user-1", WorkflowID: "wf-1",
		Triggers: []workflow.Node{webhookNode("n1", "orders", "secret")},
		Callback: func(ctx context.Context, ev Event) error { return nil },
	})
	require.NoError(t, err)

	challenge, err := r.VerifyWebhook("orders", "subscribe", "secret", "abc123")
	require.NoError(t, err)
	assert.Equal(t, "abc123", challenge)

	_, err = r.VerifyWebhook("orders", "subscribe", "wrong", "abc123")
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	_, err = r.VerifyWebhook("orders", "unsubscribe", "secret", "abc123")
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	_, err = r.VerifyWebhook("missing", "subscribe", "secret", "abc123")
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestRegistryInteractDelivery(t *testing.T) {
	r := NewRegistry(logger.NewNop())

	var got Event
	err := r.Start(context.Background(), StartParams{
		UserID:     "owner-1",
		WorkflowID: "wf-1",
		Triggers: []workflow.Node{{
			ID:   "chat-1",
			Type: workflow.NodeTypeInteractTrigger,
		}},
		Callback: func(ctx context.Context, ev Event) error {
			got = ev
			return nil
		},
	})
	require.NoError(t, err)

	err = r.HandleInteractEvent(context.Background(), "wf-1", "caller-9", "hello")
	require.NoError(t, err)

	assert.Equal(t, workflow.TriggerSourceInteract, got.Details.Source)
	assert.Equal(t, "caller-9", got.UserID)
	assert.Equal(t, "wf-1", got.Details.WorkflowID)
	assert.Equal(t, "hello", got.Data["message"])

	err = r.HandleInteractEvent(context.Background(), "wf-2", "caller-9", "hello")
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestRegistryStartRollbackOnFailure(t *testing.T) {
	r := NewRegistry(logger.NewNop())
	noop := func(ctx context.Context, ev Event) error { return nil }

	// second trigger fails (bad cron), so the webhook must be rolled back
	err := r.Start(context.Background(), StartParams{
		UserID: "user-1", WorkflowID: "wf-1",
		Triggers: []workflow.Node{
			webhookNode("n1", "orders", ""),
			{ID: "n2", Type: workflow.NodeTypeScheduleTrigger,
				Config: map[string]interface{}{"cron": "not a cron"}},
		},
		Callback: noop,
	})
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindExternal))

	err = r.HandleWebhookEvent(context.Background(), "orders", "req-1", nil, "json")
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestRegistryStopIdempotent(t *testing.T) {
	r := NewRegistry(logger.NewNop())
	noop := func(ctx context.Context, ev Event) error { return nil }

	err := r.Start(context.Background(), StartParams{
		UserID: "user-1", WorkflowID: "wf-1",
		Triggers: []workflow.Node{webhookNode("n1", "orders", "")},
		Callback: noop,
	})
	require.NoError(t, err)

	r.Stop("wf-1")
	r.Stop("wf-1") // no-op
	r.Stop("never-started")

	err = r.HandleWebhookEvent(context.Background(), "orders", "req-1", nil, "json")
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestRegistryScheduleMissingCron(t *testing.T) {
	r := NewRegistry(logger.NewNop())

	err := r.Start(context.Background(), StartParams{
		UserID: "user-1", WorkflowID: "wf-1",
		Triggers: []workflow.Node{{ID: "s1", Type: workflow.NodeTypeScheduleTrigger}},
		Callback: func(ctx context.Context, ev Event) error { return nil },
	})
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindExternal))
}
