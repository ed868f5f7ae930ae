package nodes

import (
	"context"
	"errors"
	"time"

	"github.com/flowgrid-go/pkg/logger"
	"github.com/flowgrid-go/pkg/resilience"
)

// AgentRequest is what the AI execution collaborator receives. ExecutionID is
// included so the collaborator can deduplicate redelivered jobs.
type AgentRequest struct {
	ExecutionID string
	Model       string
	Input       map[string]interface{}
	ToolConfigs map[string]interface{}
	Schema      map[string]interface{}
}

// AgentResult is the collaborator's reply. Data carries the structured
// output, including the defaultData field responders surface.
type AgentResult struct {
	Data   map[string]interface{}
	Format string
}

// AgentClient is the narrow contract to the AI execution service.
type AgentClient interface {
	RunAgent(ctx context.Context, req AgentRequest) (*AgentResult, error)
}

// AgentBehavior invokes the AI execution collaborator. The call is bounded by
// a timeout and protected by a circuit breaker; a deadline maps to a hold,
// since the underlying run may still complete and a later message can resume
// the branch.
type AgentBehavior struct {
	client  AgentClient
	breaker *resilience.CircuitBreaker
	timeout time.Duration
	logger  logger.Logger
}

func NewAgentBehavior(client AgentClient, timeout time.Duration, log logger.Logger) *AgentBehavior {
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &AgentBehavior{
		client:  client,
		breaker: resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("agent")),
		timeout: timeout,
		logger:  log,
	}
}

func (a *AgentBehavior) Execute(ctx context.Context, in Input) Output {
	req := AgentRequest{
		Model: stringConfig(in.Config, "model"),
		Input: in.Data,
	}
	if id, ok := in.Data["executionId"].(string); ok {
		req.ExecutionID = id
	}
	if tools, ok := in.Config["toolConfigs"].(map[string]interface{}); ok {
		req.ToolConfigs = tools
	}
	if schema, ok := in.Config["schema"].(map[string]interface{}); ok {
		req.Schema = schema
	}

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	result, err := a.breaker.Execute(func() (interface{}, error) {
		return a.client.RunAgent(callCtx, req)
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			a.logger.Warn("agent call timed out, holding branch", "model", req.Model)
			return Hold("The agent is still working on your request. Send another message to continue.")
		}
		a.logger.Error("agent call failed", "model", req.Model, "error", err)
		return Failed("The agent could not process your request.")
	}

	agentResult := result.(*AgentResult)
	format := agentResult.Format
	if format == "" {
		format = "json"
	}
	return Success(format, agentResult.Data)
}

func stringConfig(config map[string]interface{}, key string) string {
	if v, ok := config[key].(string); ok {
		return v
	}
	return ""
}
