// Package dispatcher decouples "a trigger fired" from "the graph is
// executed": firings become queued jobs delivered at-least-once to the
// executor, so a slow graph walk can never stall the trigger source.
package dispatcher

import "context"

// KeyExecuteWorkflow is the job key of graph-execution jobs.
const KeyExecuteWorkflow = "executeWorkflow"

// Job identifies one pending graph execution.
type Job struct {
	ExecutionID string `json:"executionId"`
	WorkflowID  string `json:"workflowId"`
}

// Handler processes a delivered job. Returning an error signals delivery
// failure; redelivery policy belongs to the queue implementation.
type Handler func(ctx context.Context, job Job) error

// Queue is the contract the engine requires from a job broker: asynchronous,
// at-least-once delivery. The executor tolerates redelivery.
type Queue interface {
	// Enqueue adds a job. Must return quickly; it runs on the trigger path.
	Enqueue(ctx context.Context, job Job) error

	// Subscribe starts delivering jobs to the handler until Close.
	Subscribe(handler Handler) error

	// Close stops delivery and releases resources.
	Close() error
}
