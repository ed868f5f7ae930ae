// Package executor runs one graph execution per dequeued job: breadth-first
// from the fired trigger, admitting merge nodes only once every upstream
// branch has produced output, with a visited-edge guard against cycles.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/flowgrid-go/internal/domain/workflow"
	"github.com/flowgrid-go/internal/engine/dispatcher"
	"github.com/flowgrid-go/internal/engine/graph"
	"github.com/flowgrid-go/internal/engine/nodes"
	"github.com/flowgrid-go/internal/engine/responder"
	"github.com/flowgrid-go/internal/engine/store"
	"github.com/flowgrid-go/pkg/apperr"
	"github.com/flowgrid-go/pkg/logger"
	"github.com/flowgrid-go/pkg/metrics"
)

// Executor consumes jobs from the queue and drives graph traversal.
type Executor struct {
	workflows  *store.WorkflowStore
	executions *store.ExecutionStore
	registry   *nodes.Registry
	responder  *responder.Responder
	reporter   Reporter
	logger     logger.Logger
}

// Reporter is the narrow slice of the workflow repository the executor needs.
type Reporter interface {
	UpdateReport(ctx context.Context, workflowID string, report workflow.Report) error
}

func New(
	workflows *store.WorkflowStore,
	executions *store.ExecutionStore,
	registry *nodes.Registry,
	resp *responder.Responder,
	reporter Reporter,
	log logger.Logger,
) *Executor {
	return &Executor{
		workflows:  workflows,
		executions: executions,
		registry:   registry,
		responder:  resp,
		reporter:   reporter,
		logger:     log,
	}
}

// HandleJob is the queue handler. Infra failures return an error so the
// delivery is retried; domain outcomes, including failed executions, do not.
func (e *Executor) HandleJob(ctx context.Context, job dispatcher.Job) error {
	state, err := e.executions.Get(ctx, job.ExecutionID)
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			// redelivery of an already-finished execution
			e.logger.Debug("skipping job for missing execution", "executionId", job.ExecutionID)
			return nil
		}
		return apperr.Push(err, "executor.Executor.HandleJob")
	}

	active, err := e.workflows.Get(ctx, state.WorkflowID)
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			// workflow was terminated between enqueue and dequeue
			e.logger.Warn("dropping execution of inactive workflow",
				"executionId", job.ExecutionID, "workflowId", state.WorkflowID)
			if delErr := e.executions.Delete(ctx, job.ExecutionID); delErr != nil {
				e.logger.Error("failed to delete orphaned execution", "executionId", job.ExecutionID, "error", delErr)
			}
			return nil
		}
		return apperr.Push(err, "executor.Executor.HandleJob")
	}

	if err := e.executions.MarkRunning(ctx, state.WorkflowID, state.ExecutionID); err != nil {
		e.logger.Warn("failed to mark workflow running", "workflowId", state.WorkflowID, "error", err)
	}
	defer func() {
		if err := e.executions.ClearRunning(context.WithoutCancel(ctx), state.WorkflowID); err != nil {
			e.logger.Warn("failed to clear running flag", "workflowId", state.WorkflowID, "error", err)
		}
	}()

	behaviors, err := e.registry.Resolve(active.Nodes)
	if err != nil {
		return apperr.Push(err, "executor.Executor.HandleJob")
	}

	started := time.Now()
	result := e.traverse(ctx, active, state, behaviors)
	elapsed := time.Since(started)

	metrics.ExecutionsTotal.WithLabelValues(result.status).Inc()
	metrics.ExecutionDuration.Observe(elapsed.Seconds())

	if len(result.responses) > 0 {
		if err := e.executions.Update(ctx, state.ExecutionID, result.responses); err != nil {
			return apperr.Push(err, "executor.Executor.HandleJob")
		}
	}

	// Held executions keep their cache entry and a per-workflow pointer so a
	// later firing resumes them; terminal ones are cleared.
	if result.status == workflow.ExecutionHeld {
		if err := e.executions.MarkHeld(ctx, state.WorkflowID, state.ExecutionID); err != nil {
			e.logger.Error("failed to index held execution", "executionId", state.ExecutionID, "error", err)
		}
	} else {
		if err := e.executions.ClearHeld(ctx, state.WorkflowID); err != nil {
			e.logger.Warn("failed to clear held index", "workflowId", state.WorkflowID, "error", err)
		}
		if err := e.executions.Delete(ctx, state.ExecutionID); err != nil {
			e.logger.Error("failed to delete finished execution", "executionId", state.ExecutionID, "error", err)
		}
	}

	report := workflow.Report{
		ExecutionID:     state.ExecutionID,
		ExecutionTime:   elapsed.Milliseconds(),
		ExecutionStatus: result.status,
	}
	if err := e.reporter.UpdateReport(ctx, state.WorkflowID, report); err != nil {
		e.logger.Error("failed to persist execution report",
			"workflowId", state.WorkflowID, "executionId", state.ExecutionID, "error", err)
	}

	e.logger.Info("execution finished",
		"executionId", state.ExecutionID,
		"workflowId", state.WorkflowID,
		"status", result.status,
		"nodes", len(result.responses),
		"durationMs", elapsed.Milliseconds())
	return nil
}

type traversalResult struct {
	status    string
	responses map[string]workflow.NodeResponse
}

func (e *Executor) traverse(
	ctx context.Context,
	active *workflow.ActiveWorkflow,
	state *workflow.ExecutionState,
	behaviors map[string]nodes.Behavior,
) traversalResult {
	incoming := graph.Incoming(active.Connections)

	// Successful outputs only; held and failed branches leave no record, so
	// a resumed execution re-runs them. Seeded entries are the prior run's
	// successes plus the trigger response.
	responses := make(map[string]workflow.NodeResponse, len(state.Responses))
	succeeded := make(map[string]bool, len(state.Responses))
	for id, resp := range state.Responses {
		responses[id] = resp
		succeeded[id] = true
	}

	newResponses := make(map[string]workflow.NodeResponse)
	visitedEdges := make(map[string]bool)
	executed := make(map[string]bool)
	var held, failed int

	queue := append([]string(nil), active.Connections[state.Trigger.NodeID]...)
	for _, next := range queue {
		visitedEdges[edgeKey(state.Trigger.NodeID, next)] = true
	}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		if executed[id] {
			continue
		}

		// A node the prior run already completed is traversed, not re-run.
		if succeeded[id] {
			executed[id] = true
			for _, next := range active.Connections[id] {
				key := edgeKey(id, next)
				if !visitedEdges[key] {
					visitedEdges[key] = true
					queue = append(queue, next)
				}
			}
			continue
		}

		if !e.admissible(id, incoming[id], succeeded) {
			continue
		}

		node, ok := active.Nodes[id]
		if !ok {
			// Build rejects dangling edges, so this is an invariant break.
			e.logger.Error("edge points at unknown node", "nodeId", id, "workflowId", active.WorkflowID)
			failed++
			continue
		}

		out := e.runNode(ctx, behaviors[id], node, incoming[id], responses, state.ExecutionID)
		resp := workflow.NodeResponse{Format: out.Format, Content: out.Content}
		executed[id] = true

		switch out.Status {
		case nodes.StatusSuccess:
			responses[id] = resp
			newResponses[id] = resp
			succeeded[id] = true
		case nodes.StatusHold:
			held++
		case nodes.StatusFailed:
			failed++
		}

		e.surface(ctx, active, state, node, out, resp)

		if out.Status != nodes.StatusSuccess {
			continue
		}
		for _, next := range active.Connections[id] {
			key := edgeKey(id, next)
			if visitedEdges[key] {
				continue
			}
			visitedEdges[key] = true
			queue = append(queue, next)
		}
	}

	return traversalResult{status: finalStatus(held, failed), responses: newResponses}
}

// admissible reports whether every upstream branch of the node has produced
// a successful output. Trigger in-edges count as satisfied via the seeded
// trigger response.
func (e *Executor) admissible(id string, upstream []string, succeeded map[string]bool) bool {
	for _, src := range upstream {
		if !succeeded[src] {
			return false
		}
	}
	return true
}

func (e *Executor) runNode(
	ctx context.Context,
	behavior nodes.Behavior,
	node workflow.Node,
	upstream []string,
	responses map[string]workflow.NodeResponse,
	executionID string,
) nodes.Output {
	if behavior == nil {
		e.logger.Error("no behavior for node type", "nodeId", node.ID, "type", node.Type)
		return nodes.Failed(fmt.Sprintf("node type %q is not supported", node.Type))
	}

	in := buildInput(node, upstream, responses, executionID)

	timer := time.Now()
	out := behavior.Execute(ctx, in)
	metrics.NodeDuration.WithLabelValues(node.Type).Observe(time.Since(timer).Seconds())
	metrics.NodeExecutions.WithLabelValues(node.Type, string(out.Status)).Inc()

	e.logger.Debug("node executed",
		"executionId", executionID,
		"nodeId", node.ID,
		"type", node.Type,
		"status", out.Status)
	return out
}

// surface decides whether a node's output goes back to the origin channel.
// Responder nodes always reply; holds and failures always reach the user so
// a stalled branch is never silent; intermediate successes only when the
// workflow opts in.
func (e *Executor) surface(
	ctx context.Context,
	active *workflow.ActiveWorkflow,
	state *workflow.ExecutionState,
	node workflow.Node,
	out nodes.Output,
	resp workflow.NodeResponse,
) {
	send := node.Type == workflow.NodeTypeResponder ||
		out.Status != nodes.StatusSuccess ||
		active.Settings.ShowResultFromAllNodes
	if !send {
		return
	}
	if err := e.responder.Send(ctx, state.Trigger, resp); err != nil {
		e.logger.Warn("failed to deliver node output",
			"executionId", state.ExecutionID,
			"nodeId", node.ID,
			"error", err)
	}
}

// buildInput merges upstream outputs into one data map. Map-shaped contents
// contribute their keys directly; scalar contents land under the producing
// node's id.
func buildInput(node workflow.Node, upstream []string, responses map[string]workflow.NodeResponse, executionID string) nodes.Input {
	data := map[string]interface{}{"executionId": executionID}
	format := "json"

	for _, src := range upstream {
		resp, ok := responses[src]
		if !ok {
			continue
		}
		if resp.Format != "" {
			format = resp.Format
		}
		if m, ok := resp.Content.(map[string]interface{}); ok {
			for k, v := range m {
				data[k] = v
			}
			continue
		}
		data[src] = resp.Content
	}

	return nodes.Input{Format: format, Data: data, Config: node.Config}
}

func edgeKey(source, target string) string {
	return source + "->" + target
}

// finalStatus folds node outcomes into the execution status. A single held
// branch makes the whole execution held, even alongside failures, since the
// held branch can still resume.
func finalStatus(held, failed int) string {
	switch {
	case held > 0:
		return workflow.ExecutionHeld
	case failed > 0:
		return workflow.ExecutionFailed
	default:
		return workflow.ExecutionCompleted
	}
}
