package listener

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/flowgrid-go/internal/domain/workflow"
	"github.com/flowgrid-go/pkg/apperr"
	"github.com/flowgrid-go/pkg/logger"
	"github.com/flowgrid-go/pkg/metrics"
)

type webhookBinding struct {
	workflowID  string
	nodeID      string
	userID      string
	verifyToken string
	callback    Callback
}

type interactBinding struct {
	workflowID string
	nodeID     string
	userID     string
	callback   Callback
}

type workflowBindings struct {
	webhookPaths []string
	cronEntries  []cron.EntryID
	interact     bool
}

// Registry owns every live subscription, indexed both by inbound key (path,
// workflow) for event routing and by workflow for teardown.
type Registry struct {
	cronScheduler *cron.Cron
	logger        logger.Logger

	mu        sync.RWMutex
	webhooks  map[string]*webhookBinding   // by path
	interacts map[string]*interactBinding  // by workflow id
	workflows map[string]*workflowBindings // by workflow id
}

func NewRegistry(log logger.Logger) *Registry {
	return &Registry{
		cronScheduler: cron.New(cron.WithLocation(time.UTC)),
		logger:        log,
		webhooks:      make(map[string]*webhookBinding),
		interacts:     make(map[string]*interactBinding),
		workflows:     make(map[string]*workflowBindings),
	}
}

// Run starts the scheduler loop.
func (r *Registry) Run() {
	r.cronScheduler.Start()
}

// Shutdown stops the scheduler and waits for in-flight scheduled firings.
func (r *Registry) Shutdown(ctx context.Context) {
	stopped := r.cronScheduler.Stop()
	select {
	case <-stopped.Done():
	case <-ctx.Done():
		r.logger.Warn("timeout waiting for scheduled firings to finish")
	}
}

// Start activates one subscription per trigger node. Startup failures of
// independent trigger nodes do not block each other, but the workflow's
// activation is all-or-nothing: any failure tears down what was started and
// reports the failed listeners.
func (r *Registry) Start(ctx context.Context, params StartParams) error {
	var failures []string

	for _, trigger := range params.Triggers {
		var err error
		switch trigger.Type {
		case workflow.NodeTypeWebhookTrigger:
			err = r.startWebhook(params, trigger)
		case workflow.NodeTypeInteractTrigger:
			err = r.startInteract(params, trigger)
		case workflow.NodeTypeScheduleTrigger:
			err = r.startSchedule(params, trigger)
		default:
			err = fmt.Errorf("node %s is not a trigger type", trigger.ID)
		}

		if err != nil {
			r.logger.Error("listener startup failed",
				"workflowId", params.WorkflowID,
				"nodeId", trigger.ID,
				"type", trigger.Type,
				"error", err)
			failures = append(failures, fmt.Sprintf("%s (%s): %v", trigger.ID, trigger.Type, err))
			continue
		}

		r.logger.Info("listener started",
			"workflowId", params.WorkflowID,
			"nodeId", trigger.ID,
			"type", trigger.Type)
	}

	if len(failures) > 0 {
		r.Stop(params.WorkflowID)
		return apperr.External(
			fmt.Sprintf("failed to start listeners: %v", failures),
			"listener.Registry.Start", nil)
	}
	return nil
}

// Stop tears down every subscription of a workflow. Idempotent: stopping a
// workflow with no active listeners is a no-op.
func (r *Registry) Stop(workflowID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	bindings, ok := r.workflows[workflowID]
	if !ok {
		return
	}

	for _, path := range bindings.webhookPaths {
		delete(r.webhooks, path)
	}
	for _, entry := range bindings.cronEntries {
		r.cronScheduler.Remove(entry)
	}
	if bindings.interact {
		delete(r.interacts, workflowID)
	}
	delete(r.workflows, workflowID)

	r.logger.Info("listeners stopped", "workflowId", workflowID)
}

func (r *Registry) startWebhook(params StartParams, trigger workflow.Node) error {
	path := trigger.ConfigString("path")
	if path == "" {
		path = params.WorkflowID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.webhooks[path]; ok && existing.workflowID != params.WorkflowID {
		return fmt.Errorf("webhook path %q already bound to another workflow", path)
	}

	r.webhooks[path] = &webhookBinding{
		workflowID:  params.WorkflowID,
		nodeID:      trigger.ID,
		userID:      params.UserID,
		verifyToken: trigger.ConfigString("verifyToken"),
		callback:    params.Callback,
	}
	r.bindingsLocked(params.WorkflowID).webhookPaths = append(
		r.bindingsLocked(params.WorkflowID).webhookPaths, path)
	return nil
}

func (r *Registry) startInteract(params StartParams, trigger workflow.Node) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.interacts[params.WorkflowID] = &interactBinding{
		workflowID: params.WorkflowID,
		nodeID:     trigger.ID,
		userID:     params.UserID,
		callback:   params.Callback,
	}
	r.bindingsLocked(params.WorkflowID).interact = true
	return nil
}

func (r *Registry) startSchedule(params StartParams, trigger workflow.Node) error {
	expr := trigger.ConfigString("cron")
	if expr == "" {
		return fmt.Errorf("schedule trigger %s has no cron expression", trigger.ID)
	}

	workflowID := params.WorkflowID
	userID := params.UserID
	nodeID := trigger.ID
	callback := params.Callback

	entryID, err := r.cronScheduler.AddFunc(expr, func() {
		metrics.TriggersFired.WithLabelValues(string(workflow.TriggerSourceSchedule)).Inc()
		ev := Event{
			UserID:     userID,
			WorkflowID: workflowID,
			Data:       scheduleEventData(time.Now()),
			Format:     "json",
			Details: workflow.TriggerDetails{
				Source:     workflow.TriggerSourceSchedule,
				NodeID:     nodeID,
				UserID:     userID,
				WorkflowID: workflowID,
			},
		}
		if err := callback(context.Background(), ev); err != nil {
			r.logger.Warn("scheduled firing rejected",
				"workflowId", workflowID,
				"nodeId", nodeID,
				"error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindingsLocked(workflowID).cronEntries = append(
		r.bindingsLocked(workflowID).cronEntries, entryID)
	return nil
}

// bindingsLocked returns the per-workflow binding record, creating it on
// first use. Callers hold r.mu.
func (r *Registry) bindingsLocked(workflowID string) *workflowBindings {
	bindings, ok := r.workflows[workflowID]
	if !ok {
		bindings = &workflowBindings{}
		r.workflows[workflowID] = bindings
	}
	return bindings
}

// HandleWebhookEvent routes an inbound webhook payload to the workflow bound
// to the path.
func (r *Registry) HandleWebhookEvent(ctx context.Context, path, requestID string, data map[string]interface{}, format string) error {
	r.mu.RLock()
	binding, ok := r.webhooks[path]
	r.mu.RUnlock()

	if !ok {
		return apperr.NotFound("no workflow is listening on this path", "listener.Registry.HandleWebhookEvent")
	}

	metrics.TriggersFired.WithLabelValues(string(workflow.TriggerSourceWebhook)).Inc()
	ev := Event{
		UserID:     binding.userID,
		WorkflowID: binding.workflowID,
		Data:       data,
		Format:     format,
		Details: workflow.TriggerDetails{
			Source:    workflow.TriggerSourceWebhook,
			NodeID:    binding.nodeID,
			UserID:    binding.userID,
			RequestID: requestID,
		},
	}
	return binding.callback(ctx, ev)
}

// HandleInteractEvent routes an inbound chat message to the workflow's
// interact listener.
func (r *Registry) HandleInteractEvent(ctx context.Context, workflowID, userID, message string) error {
	r.mu.RLock()
	binding, ok := r.interacts[workflowID]
	r.mu.RUnlock()

	if !ok {
		return apperr.NotFound("workflow has no interact listener", "listener.Registry.HandleInteractEvent")
	}

	metrics.TriggersFired.WithLabelValues(string(workflow.TriggerSourceInteract)).Inc()
	ev := Event{
		UserID:     userID,
		WorkflowID: workflowID,
		Data:       map[string]interface{}{"message": message},
		Format:     "text",
		Details: workflow.TriggerDetails{
			Source:     workflow.TriggerSourceInteract,
			NodeID:     binding.nodeID,
			UserID:     userID,
			WorkflowID: workflowID,
		},
	}
	return binding.callback(ctx, ev)
}

// VerifyWebhook implements the subscription handshake: the challenge is
// echoed iff the mode is "subscribe" and the token matches the node config.
func (r *Registry) VerifyWebhook(path, mode, token, challenge string) (string, error) {
	r.mu.RLock()
	binding, ok := r.webhooks[path]
	r.mu.RUnlock()

	if !ok {
		return "", apperr.NotFound("no workflow is listening on this path", "listener.Registry.VerifyWebhook")
	}
	if mode != "subscribe" || token != binding.verifyToken {
		return "", apperr.Validation("webhook verification failed", "listener.Registry.VerifyWebhook")
	}
	return challenge, nil
}
