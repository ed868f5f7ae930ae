// Package nodes defines the single contract every node kind implements and
// the registry that resolves behaviors from type tags at graph-load time.
//
// Node behaviors are the only place external collaborators (AI execution,
// HTTP targets) are invoked; the executor treats them as opaque. Expected
// partial outcomes, including timeouts, are values carried in Output, never
// errors.
package nodes

import (
	"context"
	"fmt"
	"sync"

	"github.com/flowgrid-go/internal/domain/workflow"
	"github.com/flowgrid-go/pkg/apperr"
)

// Input is what a node behavior receives: the merged upstream data, its
// format tag and the node's own config.
type Input struct {
	Format string
	Data   map[string]interface{}
	Config map[string]interface{}
}

// Status is the outcome tag of one behavior call.
type Status string

const (
	// StatusSuccess records output and continues traversal.
	StatusSuccess Status = "success"

	// StatusHold suspends the branch pending further external input. Not
	// an error.
	StatusHold Status = "hold"

	// StatusFailed stops the branch.
	StatusFailed Status = "failed"
)

// Output is the uniform behavior result.
type Output struct {
	Status  Status
	Format  string
	Content interface{}
}

// Success builds a continuing output.
func Success(format string, content interface{}) Output {
	return Output{Status: StatusSuccess, Format: format, Content: content}
}

// Hold builds a suspended output carrying the message shown to the user when
// the workflow surfaces held branches.
func Hold(message string) Output {
	return Output{Status: StatusHold, Format: "text", Content: message}
}

// Failed builds a stopped output carrying the user-facing failure message.
func Failed(message string) Output {
	return Output{Status: StatusFailed, Format: "text", Content: message}
}

// Behavior executes one node kind.
type Behavior interface {
	Execute(ctx context.Context, in Input) Output
}

// BehaviorFunc adapts a function to Behavior.
type BehaviorFunc func(ctx context.Context, in Input) Output

func (f BehaviorFunc) Execute(ctx context.Context, in Input) Output {
	return f(ctx, in)
}

// Registry maps node type tags to behaviors.
type Registry struct {
	mu        sync.RWMutex
	behaviors map[string]Behavior
}

func NewRegistry() *Registry {
	return &Registry{behaviors: make(map[string]Behavior)}
}

// Register adds a behavior for a node type.
func (r *Registry) Register(nodeType string, behavior Behavior) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.behaviors[nodeType] = behavior
}

// Get returns the behavior for a node type.
func (r *Registry) Get(nodeType string) (Behavior, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	behavior, ok := r.behaviors[nodeType]
	if !ok {
		return nil, apperr.Validation(fmt.Sprintf("unknown node type %q", nodeType), "nodes.Registry.Get")
	}
	return behavior, nil
}

// Resolve binds every node in the map to its behavior once, so the executor
// dispatches through the table instead of re-matching type tags per call.
func (r *Registry) Resolve(nodeMap workflow.NodeMap) (map[string]Behavior, error) {
	bound := make(map[string]Behavior, len(nodeMap))
	for id, node := range nodeMap {
		behavior, err := r.Get(node.Type)
		if err != nil {
			return nil, apperr.Push(err, "nodes.Registry.Resolve")
		}
		bound[id] = behavior
	}
	return bound, nil
}
