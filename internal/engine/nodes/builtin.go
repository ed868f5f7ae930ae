package nodes

import (
	"time"

	"github.com/flowgrid-go/internal/domain/workflow"
	"github.com/flowgrid-go/pkg/logger"
)

// Clients bundles the external collaborators node behaviors invoke.
type Clients struct {
	Agent AgentClient
	Model ModelClient
}

// NewBuiltinRegistry builds a registry with every built-in node kind bound.
func NewBuiltinRegistry(clients Clients, nodeTimeout time.Duration, log logger.Logger) *Registry {
	r := NewRegistry()

	trigger := NewTriggerBehavior()
	r.Register(workflow.NodeTypeWebhookTrigger, trigger)
	r.Register(workflow.NodeTypeInteractTrigger, trigger)
	r.Register(workflow.NodeTypeScheduleTrigger, trigger)

	r.Register(workflow.NodeTypeAgent, NewAgentBehavior(clients.Agent, nodeTimeout, log))
	r.Register(workflow.NodeTypeAIModel, NewModelBehavior(clients.Model, nodeTimeout, log))
	r.Register(workflow.NodeTypeHTTPRequest, NewHTTPRequestBehavior(nodeTimeout, log))
	r.Register(workflow.NodeTypeResponder, NewRespondBehavior())

	return r
}
