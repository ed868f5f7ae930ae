// Package engine wires the workflow lifecycle together: activation parses
// and caches the graph and starts listeners, trigger firings are validated
// and queued, termination unwinds activation. Graph traversal itself lives
// in the executor package.
package engine

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/flowgrid-go/internal/domain/workflow"
	"github.com/flowgrid-go/internal/engine/dispatcher"
	"github.com/flowgrid-go/internal/engine/graph"
	"github.com/flowgrid-go/internal/engine/listener"
	"github.com/flowgrid-go/internal/engine/responder"
	"github.com/flowgrid-go/internal/engine/store"
	"github.com/flowgrid-go/internal/engine/validator"
	"github.com/flowgrid-go/pkg/apperr"
	"github.com/flowgrid-go/pkg/logger"
	"github.com/flowgrid-go/pkg/metrics"
)

// Repository is the persistence surface the lifecycle needs.
type Repository interface {
	GetWorkflow(ctx context.Context, workflowID string) (*workflow.Workflow, error)
	UpdateStatus(ctx context.Context, workflowID string, status workflow.Status) error
}

// StatusNotifier tells connected chat clients that a workflow they talk to
// changed lifecycle state. Deliveries are best effort.
type StatusNotifier interface {
	UpdateInteractStatus(ctx context.Context, userID, workflowID string, status workflow.Status) error
}

// Service is the engine facade the transport layer calls.
type Service struct {
	repo       Repository
	activation *validator.ActivateValidator
	admission  *validator.TriggerValidator
	workflows  *store.WorkflowStore
	executions *store.ExecutionStore
	listeners  *listener.Registry
	queue      dispatcher.Queue
	responder  *responder.Responder
	notifier   StatusNotifier
	logger     logger.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex // serializes activation per workflow
}

func NewService(
	repo Repository,
	activation *validator.ActivateValidator,
	admission *validator.TriggerValidator,
	workflows *store.WorkflowStore,
	executions *store.ExecutionStore,
	listeners *listener.Registry,
	queue dispatcher.Queue,
	resp *responder.Responder,
	notifier StatusNotifier,
	log logger.Logger,
) *Service {
	return &Service{
		repo:       repo,
		activation: activation,
		admission:  admission,
		workflows:  workflows,
		executions: executions,
		listeners:  listeners,
		queue:      queue,
		responder:  resp,
		notifier:   notifier,
		logger:     log,
		locks:      make(map[string]*sync.Mutex),
	}
}

// Activate takes a workflow live: parse the graph, cache the snapshot, start
// the listeners, flip the persisted status. Concurrent activations of the
// same workflow are rejected, not queued.
func (s *Service) Activate(ctx context.Context, workflowID, userID string) error {
	lock := s.lockFor(workflowID)
	if !lock.TryLock() {
		return apperr.Validation("activation already in progress", "engine.Service.Activate")
	}
	defer lock.Unlock()

	wf, err := s.activation.Validate(ctx, workflowID, userID)
	if err != nil {
		return apperr.Push(err, "engine.Service.Activate")
	}

	parsed, err := graph.Parse(wf.Nodes, wf.Edges)
	if err != nil {
		return apperr.Push(err, "engine.Service.Activate")
	}

	active := &workflow.ActiveWorkflow{
		WorkflowID:  wf.ID,
		UserID:      wf.UserID,
		Connections: parsed.Connections,
		Nodes:       parsed.Nodes,
		Settings:    wf.Settings,
	}
	if err := s.workflows.Set(ctx, active); err != nil {
		return apperr.Push(err, "engine.Service.Activate")
	}

	err = s.listeners.Start(ctx, listener.StartParams{
		UserID:     wf.UserID,
		WorkflowID: wf.ID,
		Triggers:   parsed.Triggers,
		Settings:   wf.Settings,
		Callback:   s.HandleTrigger,
	})
	if err != nil {
		s.rollbackActivation(ctx, wf.ID)
		return apperr.Push(err, "engine.Service.Activate")
	}

	if err := s.repo.UpdateStatus(ctx, wf.ID, workflow.StatusLive); err != nil {
		s.listeners.Stop(wf.ID)
		s.rollbackActivation(ctx, wf.ID)
		return apperr.Push(err, "engine.Service.Activate")
	}

	metrics.ActiveWorkflows.Inc()
	s.notifyStatus(ctx, wf.UserID, wf.ID, workflow.StatusLive)
	s.logger.Info("workflow activated", "workflowId", wf.ID, "userId", wf.UserID,
		"triggers", len(parsed.Triggers), "nodes", len(parsed.Nodes))
	return nil
}

// Terminate unwinds activation. Safe to call on a workflow that is not
// live: listeners and cache deletion are no-ops, the status write converges.
func (s *Service) Terminate(ctx context.Context, workflowID, userID string) error {
	wf, err := s.repo.GetWorkflow(ctx, workflowID)
	if err != nil {
		return apperr.Push(err, "engine.Service.Terminate")
	}
	if wf.UserID != userID || wf.Status == workflow.StatusDeleted {
		return apperr.NotFound("workflow not found", "engine.Service.Terminate")
	}

	wasLive := wf.Status == workflow.StatusLive

	s.listeners.Stop(workflowID)
	if err := s.workflows.Delete(ctx, workflowID); err != nil {
		return apperr.Push(err, "engine.Service.Terminate")
	}
	if err := s.repo.UpdateStatus(ctx, workflowID, workflow.StatusInactive); err != nil {
		return apperr.Push(err, "engine.Service.Terminate")
	}

	if wasLive {
		metrics.ActiveWorkflows.Dec()
	}
	s.notifyStatus(ctx, wf.UserID, workflowID, workflow.StatusInactive)
	s.logger.Info("workflow terminated", "workflowId", workflowID, "userId", userID)
	return nil
}

// HandleTrigger is the listener callback: admit the firing, seed or resume
// the execution entry, enqueue the job. The heavy work happens when a queue
// worker picks the job up.
func (s *Service) HandleTrigger(ctx context.Context, ev listener.Event) error {
	active, err := s.admission.Validate(ctx, ev.WorkflowID)
	if err != nil {
		s.surfaceRejection(ctx, ev, err)
		return apperr.Push(err, "engine.Service.HandleTrigger")
	}

	state, err := s.seedExecution(ctx, active, ev)
	if err != nil {
		return apperr.Push(err, "engine.Service.HandleTrigger")
	}

	job := dispatcher.Job{ExecutionID: state.ExecutionID, WorkflowID: ev.WorkflowID}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		return apperr.Push(err, "engine.Service.HandleTrigger")
	}

	s.logger.Info("trigger admitted",
		"workflowId", ev.WorkflowID,
		"executionId", state.ExecutionID,
		"source", ev.Details.Source)
	return nil
}

// seedExecution creates a fresh execution entry, or resumes the workflow's
// held execution when an interact firing arrives: the new message replaces
// the trigger response, recorded successes survive.
func (s *Service) seedExecution(ctx context.Context, active *workflow.ActiveWorkflow, ev listener.Event) (*workflow.ExecutionState, error) {
	if ev.Details.Source == workflow.TriggerSourceInteract {
		heldID, err := s.executions.HeldExecution(ctx, ev.WorkflowID)
		if err != nil {
			return nil, err
		}
		if heldID != "" {
			state, err := s.executions.Get(ctx, heldID)
			if err == nil {
				state.Trigger = ev.Details
				state.Responses[ev.Details.NodeID] = workflow.NodeResponse{Format: ev.Format, Content: ev.Data}
				if err := s.executions.Set(ctx, state); err != nil {
					return nil, err
				}
				s.logger.Info("resuming held execution",
					"workflowId", ev.WorkflowID, "executionId", heldID)
				return state, nil
			}
			// pointer outlived the entry; fall through to a fresh execution
			s.logger.Debug("held execution expired", "workflowId", ev.WorkflowID, "executionId", heldID)
		}
	}

	state := &workflow.ExecutionState{
		ExecutionID: uuid.New().String(),
		WorkflowID:  ev.WorkflowID,
		UserID:      ev.UserID,
		Trigger:     ev.Details,
		Responses: map[string]workflow.NodeResponse{
			ev.Details.NodeID: {Format: ev.Format, Content: ev.Data},
		},
	}
	if err := s.executions.Set(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}

// surfaceRejection tells an interactive caller why the firing was refused.
// Webhook and schedule rejections are only logged: the HTTP layer reports
// its own error and schedules have no channel.
func (s *Service) surfaceRejection(ctx context.Context, ev listener.Event, cause error) {
	if ev.Details.Source != workflow.TriggerSourceInteract {
		return
	}
	resp := workflow.NodeResponse{Format: "text", Content: apperr.UserMessage(cause)}
	if err := s.responder.Send(ctx, ev.Details, resp); err != nil {
		s.logger.Warn("failed to surface trigger rejection",
			"workflowId", ev.WorkflowID, "error", err)
	}
}

func (s *Service) notifyStatus(ctx context.Context, userID, workflowID string, status workflow.Status) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.UpdateInteractStatus(ctx, userID, workflowID, status); err != nil {
		s.logger.Warn("status notification failed",
			"workflowId", workflowID, "status", status, "error", err)
	}
}

func (s *Service) rollbackActivation(ctx context.Context, workflowID string) {
	if err := s.workflows.Delete(ctx, workflowID); err != nil {
		s.logger.Error("failed to roll back workflow cache", "workflowId", workflowID, "error", err)
	}
}

func (s *Service) lockFor(workflowID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[workflowID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[workflowID] = lock
	}
	return lock
}
