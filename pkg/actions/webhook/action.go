// Package webhook implements the outbound webhook action.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukex/deskflow/pkg/actions"
	"github.com/dukex/deskflow/pkg/models"
	"github.com/dukex/deskflow/pkg/protocol"
)

const (
	defaultTimeout  = 30 * time.Second
	maxResponseBody = 1 << 20
)

// ActionFactory builds webhook actions sharing one HTTP client.
type ActionFactory struct {
	client *http.Client
}

// NewActionFactory creates the factory. A zero timeout means 30s.
func NewActionFactory(timeout time.Duration) *ActionFactory {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &ActionFactory{client: &http.Client{Timeout: timeout}}
}

// NewActionFactoryWithClient is used when the caller owns the transport.
func NewActionFactoryWithClient(client *http.Client) *ActionFactory {
	return &ActionFactory{client: client}
}

func (f *ActionFactory) ID() string {
	return "webhook"
}

func (f *ActionFactory) Create(_ context.Context, config map[string]any) (protocol.Action, error) {
	url := models.FormatID(config["url"])
	if url == "" {
		return nil, actions.Missing("url")
	}

	method := strings.ToUpper(models.FormatID(config["method"]))
	if method == "" {
		method = http.MethodPost
	}

	headers := make(map[string]string)

	if headersMap, ok := config["headers"].(map[string]any); ok {
		for k, v := range headersMap {
			headers[k] = models.FormatID(v)
		}
	}

	data, hasData := config["data"]

	return &Action{
		URL:     url,
		Method:  method,
		Headers: headers,
		data:    data,
		hasData: hasData,
		client:  f.client,
	}, nil
}

// Action posts the execution descriptor to an external URL.
type Action struct {
	URL     string
	Method  string
	Headers map[string]string

	data    any
	hasData bool
	client  *http.Client
}

// Payload is the JSON document sent to the webhook.
type Payload struct {
	Workflow    string         `json:"workflow"`
	ExecutionID string         `json:"executionId"`
	Target      map[string]any `json:"target"`
	Data        any            `json:"data"`
}

func (a *Action) Execute(ctx context.Context, execCtx *models.ExecutionContext, logger *slog.Logger) (map[string]any, error) {
	if execCtx.TestMode {
		return map[string]any{"webhookSent": false, "url": a.URL, "method": a.Method}, nil
	}

	body, err := json.Marshal(a.payload(execCtx))
	if err != nil {
		return nil, fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, a.Method, a.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build webhook request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	for k, v := range a.Headers {
		req.Header.Set(k, v)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("webhook request failed: %w", err)
	}

	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			logger.ErrorContext(ctx, "failed to close response body", "error", closeErr)
		}
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read webhook response: %w", err)
	}

	logger.InfoContext(ctx, "Webhook delivered", "url", a.URL, "method", a.Method, "status_code", resp.StatusCode)

	return map[string]any{
		"webhookSent": true,
		"statusCode":  resp.StatusCode,
		"body":        string(raw),
	}, nil
}

func (a *Action) payload(execCtx *models.ExecutionContext) Payload {
	payload := Payload{Target: execCtx.Target.Descriptor(), Data: a.data}

	if !a.hasData {
		payload.Data = execCtx.Variables
	}

	if execCtx.Workflow != nil {
		payload.Workflow = execCtx.Workflow.Name
	}

	if execCtx.Execution != nil {
		payload.ExecutionID = execCtx.Execution.ID
	}

	return payload
}
