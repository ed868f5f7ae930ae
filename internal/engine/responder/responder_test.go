package responder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgrid-go/internal/domain/workflow"
	"github.com/flowgrid-go/pkg/logger"
)

type stubChat struct {
	sent []interface{}
	err  error
}

func (s *stubChat) SendToUser(ctx context.Context, userID string, payload interface{}) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, payload)
	return nil
}

func TestWebhookReplyResolved(t *testing.T) {
	pending := NewPendingReplies()
	r := New(pending, &stubChat{}, logger.NewNop())

	ch := pending.Register("req-1")

	err := r.Send(context.Background(),
		workflow.TriggerDetails{Source: workflow.TriggerSourceWebhook, RequestID: "req-1"},
		workflow.NodeResponse{Format: "text", Content: "done"})
	require.NoError(t, err)

	select {
	case resp := <-ch:
		assert.Equal(t, "done", resp.Content)
	case <-time.After(time.Second):
		t.Fatal("reply was not delivered")
	}
}

func TestWebhookReplyGoneIsBenign(t *testing.T) {
	r := New(NewPendingReplies(), &stubChat{}, logger.NewNop())

	err := r.Send(context.Background(),
		workflow.TriggerDetails{Source: workflow.TriggerSourceWebhook, RequestID: "expired"},
		workflow.NodeResponse{Content: "late"})
	assert.NoError(t, err)
}

func TestInteractPush(t *testing.T) {
	chat := &stubChat{}
	r := New(NewPendingReplies(), chat, logger.NewNop())

	err := r.Send(context.Background(),
		workflow.TriggerDetails{Source: workflow.TriggerSourceInteract, UserID: "u-1", WorkflowID: "wf-1"},
		workflow.NodeResponse{Format: "text", Content: "hello"})
	require.NoError(t, err)
	require.Len(t, chat.sent, 1)

	payload := chat.sent[0].(map[string]interface{})
	assert.Equal(t, "wf-1", payload["workflowId"])
	assert.Equal(t, "hello", payload["content"])
}

func TestInteractPushFailureSurfaces(t *testing.T) {
	chat := &stubChat{err: errors.New("socket closed")}
	r := New(NewPendingReplies(), chat, logger.NewNop())

	err := r.Send(context.Background(),
		workflow.TriggerDetails{Source: workflow.TriggerSourceInteract, UserID: "u-1"},
		workflow.NodeResponse{Content: "hello"})
	assert.Error(t, err)
}

func TestScheduleDropsSilently(t *testing.T) {
	r := New(NewPendingReplies(), &stubChat{}, logger.NewNop())

	err := r.Send(context.Background(),
		workflow.TriggerDetails{Source: workflow.TriggerSourceSchedule},
		workflow.NodeResponse{Content: "report"})
	assert.NoError(t, err)
}

func TestPendingReject(t *testing.T) {
	pending := NewPendingReplies()
	pending.Register("req-1")
	pending.Reject("req-1")

	assert.False(t, pending.Resolve("req-1", workflow.NodeResponse{}))
}
