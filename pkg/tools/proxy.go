package tools

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

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/bturcanu/ingestbridge/pkg/metrics"
)

// ExecutePath is the backend route that runs a tool action.
const ExecutePath = "/api/v1/agent/mcp/execute"

const maxResponseBytes = 4 << 20

// Executor runs a tool action for a user. The remote Proxy and the backend
// stubs served by Handler both implement it.
type Executor interface {
	Execute(ctx context.Context, userID, action string, params json.RawMessage) Result
}

// ExecRequest is the body posted to the backend.
type ExecRequest struct {
	UserID string          `json:"user_id"`
	Action string          `json:"action"`
	Params json.RawMessage `json:"params"`
}

// ExecResponse is the body a backend answers with on HTTP 200.
type ExecResponse struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Proxy forwards executions to a single remote backend.
type Proxy struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
}

func NewProxy(baseURL string, tokens TokenSource, logger *slog.Logger) *Proxy {
	return &Proxy{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
		tracer: otel.Tracer("github.com/bturcanu/ingestbridge/pkg/tools"),
	}
}

// SetTimeout overrides the default HTTP client timeout for backend calls.
func (p *Proxy) SetTimeout(d time.Duration) {
	p.httpClient.Timeout = d
}

func (p *Proxy) SetMetrics(m *metrics.Metrics) {
	p.metrics = m
}

// Execute posts the action to the backend and maps the outcome:
//
//	200 + success      -> result value ({} when absent)
//	200 + !success     -> {"error": <backend error>, "tool": action}
//	non-200            -> {"error": "Tool execution failed with status N", "details": body}
//	transport failure  -> {"error": <err>, "tool": action}
func (p *Proxy) Execute(ctx context.Context, userID, action string, params json.RawMessage) Result {
	ctx, span := p.tracer.Start(ctx, "tools.Execute", trace.WithAttributes(attribute.String("tool", action)))
	defer span.End()

	res, outcome := p.execute(ctx, userID, action, params)
	if res.Err != nil {
		span.SetStatus(codes.Error, res.Err.Error())
		p.logger.ErrorContext(ctx, "tool execution failed", "tool", action, "outcome", outcome, "error", res.Err.Error())
	}
	p.metrics.ToolExecution(ctx, action, outcome)
	return res
}

func (p *Proxy) execute(ctx context.Context, userID, action string, params json.RawMessage) (Result, string) {
	if len(params) == 0 {
		params = emptyObject
	}
	body, err := json.Marshal(ExecRequest{UserID: userID, Action: action, Params: params})
	if err != nil {
		return Fail(err.Error(), action), "transport_error"
	}

	token, err := p.tokens.Token(ctx, userID)
	if err != nil {
		return Fail(err.Error(), action), "transport_error"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+ExecutePath, bytes.NewReader(body))
	if err != nil {
		return Fail(err.Error(), action), "transport_error"
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return Fail(err.Error(), action), "transport_error"
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Fail(fmt.Sprintf("read response: %v", err), action), "transport_error"
	}

	if resp.StatusCode != http.StatusOK {
		return Result{Err: &ExecError{
			Message: fmt.Sprintf("Tool execution failed with status %d", resp.StatusCode),
			Details: string(respBody),
		}}, "http_error"
	}

	var out ExecResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return Fail(fmt.Sprintf("decode response: %v", err), action), "transport_error"
	}
	if !out.Success {
		msg := out.Error
		if msg == "" {
			msg = "Tool execution failed"
		}
		return Fail(msg, action), "failed"
	}
	return OK(out.Result), "success"
}
