// Package responder returns node output to whatever originated the trigger:
// the pending HTTP exchange for webhook firings, the user's chat channel for
// interact firings.
package responder

import (
	"context"

	"github.com/flowgrid-go/internal/domain/workflow"
	"github.com/flowgrid-go/pkg/apperr"
	"github.com/flowgrid-go/pkg/logger"
	"github.com/flowgrid-go/pkg/metrics"
)

// ChatSender pushes a message to a connected chat user. Implemented by the
// notify hub.
type ChatSender interface {
	SendToUser(ctx context.Context, userID string, payload interface{}) error
}

type Responder struct {
	pending *PendingReplies
	chat    ChatSender
	logger  logger.Logger
}

func New(pending *PendingReplies, chat ChatSender, log logger.Logger) *Responder {
	return &Responder{pending: pending, chat: chat, logger: log}
}

// Send routes one response to the origin channel. Failures are logged, not
// retried, and never roll back recorded execution state.
func (r *Responder) Send(ctx context.Context, details workflow.TriggerDetails, resp workflow.NodeResponse) error {
	switch details.Source {
	case workflow.TriggerSourceWebhook:
		if r.pending.Resolve(details.RequestID, resp) {
			metrics.ResponderSends.WithLabelValues("webhook", "ok").Inc()
			return nil
		}
		// The HTTP exchange already timed out or was never registered.
		// Benign: the caller got a 202 and the result is in the report.
		metrics.ResponderSends.WithLabelValues("webhook", "gone").Inc()
		r.logger.Debug("no pending webhook reply", "requestId", details.RequestID)
		return nil

	case workflow.TriggerSourceInteract:
		if err := r.chat.SendToUser(ctx, details.UserID, map[string]interface{}{
			"workflowId": details.WorkflowID,
			"format":     resp.Format,
			"content":    resp.Content,
		}); err != nil {
			metrics.ResponderSends.WithLabelValues("interact", "error").Inc()
			r.logger.Warn("chat delivery failed", "userId", details.UserID, "error", err)
			return apperr.External("message could not be delivered", "responder.Send", err)
		}
		metrics.ResponderSends.WithLabelValues("interact", "ok").Inc()
		return nil

	case workflow.TriggerSourceSchedule:
		// Scheduled firings have no origin channel to reply to.
		r.logger.Debug("dropping response for scheduled execution", "nodeId", details.NodeID)
		return nil

	default:
		return apperr.Internal("unknown trigger source", "responder.Send", nil)
	}
}
