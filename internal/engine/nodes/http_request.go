package nodes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/flowgrid-go/pkg/logger"
)

// HTTPRequestBehavior calls an external HTTP target described by the node
// config: url, method, headers and an optional JSON body template filled
// from the upstream data.
type HTTPRequestBehavior struct {
	client *http.Client
	logger logger.Logger
}

func NewHTTPRequestBehavior(timeout time.Duration, log logger.Logger) *HTTPRequestBehavior {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &HTTPRequestBehavior{
		client: &http.Client{Timeout: timeout},
		logger: log,
	}
}

func (h *HTTPRequestBehavior) Execute(ctx context.Context, in Input) Output {
	url := stringConfig(in.Config, "url")
	if url == "" {
		return Failed("http-request node has no url configured")
	}

	method := strings.ToUpper(stringConfig(in.Config, "method"))
	if method == "" {
		method = http.MethodPost
	}

	var body io.Reader
	if method != http.MethodGet {
		payload := in.Data
		if override, ok := in.Config["body"].(map[string]interface{}); ok {
			payload = override
		}
		data, err := json.Marshal(payload)
		if err != nil {
			return Failed("http-request body could not be encoded")
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return Failed("http-request could not be built")
	}
	req.Header.Set("Content-Type", "application/json")
	if headers, ok := in.Config["headers"].(map[string]interface{}); ok {
		for k, v := range headers {
			if s, ok := v.(string); ok {
				req.Header.Set(k, s)
			}
		}
	}

	resp, err := h.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Hold("The external service has not answered yet.")
		}
		h.logger.Error("http-request failed", "url", url, "error", err)
		return Failed("The external service could not be reached.")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Failed("The external service reply could not be read.")
	}

	var decoded interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		decoded = string(raw)
	}

	if resp.StatusCode >= 400 {
		h.logger.Warn("http-request returned error status", "url", url, "status", resp.StatusCode)
		return Failed("The external service rejected the request.")
	}

	return Success("json", map[string]interface{}{
		"status": resp.StatusCode,
		"body":   decoded,
	})
}
