package nodes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/flowgrid-go/pkg/logger"
)

// CompletionRequest is a single model invocation without agent tooling.
type CompletionRequest struct {
	Model  string
	Prompt string
	Input  map[string]interface{}
}

// ModelClient is the contract to the plain model-inference collaborator.
type ModelClient interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// ModelBehavior runs a bare model completion over the upstream data.
type ModelBehavior struct {
	client  ModelClient
	timeout time.Duration
	logger  logger.Logger
}

func NewModelBehavior(client ModelClient, timeout time.Duration, log logger.Logger) *ModelBehavior {
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &ModelBehavior{client: client, timeout: timeout, logger: log}
}

func (m *ModelBehavior) Execute(ctx context.Context, in Input) Output {
	req := CompletionRequest{
		Model:  stringConfig(in.Config, "model"),
		Prompt: stringConfig(in.Config, "prompt"),
		Input:  in.Data,
	}

	callCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	content, err := m.client.Complete(callCtx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			m.logger.Warn("model call timed out, holding branch", "model", req.Model)
			return Hold("The model is still generating a response.")
		}
		m.logger.Error("model call failed", "model", req.Model, "error", err)
		return Failed(fmt.Sprintf("Model %s could not generate a response.", req.Model))
	}

	return Success("text", content)
}
