// Package aiclient is the HTTP adapter to the AI execution service backing
// agent and model nodes.
package aiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/flowgrid-go/internal/engine/nodes"
)

const maxResponseBytes = 4 << 20 // 4MB

// Client implements nodes.AgentClient and nodes.ModelClient against the AI
// execution service's REST API.
type Client struct {
	baseURL string
	hc      *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 90 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		hc:      &http.Client{Timeout: timeout},
	}
}

type agentResponse struct {
	Data   map[string]interface{} `json:"data"`
	Format string                 `json:"format"`
}

func (c *Client) RunAgent(ctx context.Context, req nodes.AgentRequest) (*nodes.AgentResult, error) {
	body := map[string]interface{}{
		"executionId": req.ExecutionID,
		"model":       req.Model,
		"input":       req.Input,
		"toolConfigs": req.ToolConfigs,
		"schema":      req.Schema,
	}

	var out agentResponse
	if err := c.post(ctx, "/v1/agent/run", body, &out); err != nil {
		return nil, fmt.Errorf("agent run failed: %w", err)
	}
	return &nodes.AgentResult{Data: out.Data, Format: out.Format}, nil
}

type completionResponse struct {
	Content string `json:"content"`
}

func (c *Client) Complete(ctx context.Context, req nodes.CompletionRequest) (string, error) {
	body := map[string]interface{}{
		"model":  req.Model,
		"prompt": req.Prompt,
		"input":  req.Input,
	}

	var out completionResponse
	if err := c.post(ctx, "/v1/model/complete", body, &out); err != nil {
		return "", fmt.Errorf("model completion failed: %w", err)
	}
	return out.Content, nil
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("ai service returned %d: %s", resp.StatusCode, truncate(data, 256))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
