// Package adapter provides clients for external services.
package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/finance-coach/internal/circuitbreaker"
	"github.com/finance-coach/internal/config"
	apperrors "github.com/finance-coach/internal/errors"
	"github.com/finance-coach/internal/logging"
)

const providerName = "ai-gateway"

// maxErrorBody bounds how much of an error response is kept for logs
const maxErrorBody = 2048

// ErrNotConfigured is returned when no API key is set
var ErrNotConfigured = errors.New("AI gateway is not configured")

// ToolSchema forces the model to answer through a single function call
// whose arguments match Parameters (a JSON schema).
type ToolSchema struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// CompletionRequest is one system/user exchange
type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	Tool         *ToolSchema
	Temperature  *float64
}

// CompletionResponse carries either free text or the forced tool's arguments
type CompletionResponse struct {
	Model         string
	Content       string
	ToolArguments json.RawMessage
}

// Completer is implemented by CompletionClient
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// CompletionClient calls an OpenAI-compatible chat completion endpoint
type CompletionClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
}

// NewCompletionClient creates a client. Rate limit and quota responses do
// not count against the breaker.
func NewCompletionClient(cfg config.AIConfig) *CompletionClient {
	breakerCfg := circuitbreaker.DefaultConfig(providerName)
	breakerCfg.IsFailure = countsAsOutage

	return &CompletionClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    circuitbreaker.NewCircuitBreaker(breakerCfg),
	}
}

// Breaker exposes the circuit breaker for health reporting
func (c *CompletionClient) Breaker() *circuitbreaker.CircuitBreaker {
	return c.breaker
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatTool struct {
	Type     string     `json:"type"`
	Function ToolSchema `json:"function"`
}

type chatToolChoice struct {
	Type     string `json:"type"`
	Function struct {
		Name string `json:"name"`
	} `json:"function"`
}

type chatRequest struct {
	Model       string          `json:"model"`
	Messages    []chatMessage   `json:"messages"`
	Tools       []chatTool      `json:"tools,omitempty"`
	ToolChoice  *chatToolChoice `json:"tool_choice,omitempty"`
	Temperature *float64        `json:"temperature,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends the request. HTTP 429 and 402 come back as AI_RATE_LIMITED
// and AI_QUOTA_EXHAUSTED errors and are never retried.
func (c *CompletionClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if c.apiKey == "" {
		return nil, apperrors.NewProviderError(providerName, ErrNotConfigured)
	}

	var resp *CompletionResponse
	err := c.breaker.Execute(ctx, func() error {
		var callErr error
		resp, callErr = c.do(ctx, req)
		return callErr
	})
	if err != nil {
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
			return nil, apperrors.NewProviderError(providerName, err)
		}
		return nil, err
	}
	return resp, nil
}

func (c *CompletionClient) do(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	body := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: req.UserPrompt},
		},
		Temperature: req.Temperature,
	}
	if req.Tool != nil {
		body.Tools = []chatTool{{Type: "function", Function: *req.Tool}}
		choice := &chatToolChoice{Type: "function"}
		choice.Function.Name = req.Tool.Name
		body.ToolChoice = choice
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to encode completion request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, apperrors.NewInternalError("failed to create completion request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, apperrors.NewProviderError(providerName, err)
	}
	defer httpResp.Body.Close()

	logging.FromContext(ctx).WithFields(map[string]interface{}{
		"provider": providerName,
		"status":   httpResp.StatusCode,
		"duration": time.Since(start).String(),
	}).Debug("Completion request finished")

	switch {
	case httpResp.StatusCode == http.StatusTooManyRequests:
		return nil, apperrors.NewAIRateLimitError()
	case httpResp.StatusCode == http.StatusPaymentRequired:
		return nil, apperrors.NewAIQuotaError()
	case httpResp.StatusCode < 200 || httpResp.StatusCode >= 300:
		snippet, _ := io.ReadAll(io.LimitReader(httpResp.Body, maxErrorBody))
		return nil, apperrors.NewProviderError(providerName,
			fmt.Errorf("status=%d, body=%s", httpResp.StatusCode, strings.TrimSpace(string(snippet))))
	}

	var decoded chatResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&decoded); err != nil {
		return nil, apperrors.NewProviderError(providerName, fmt.Errorf("failed to decode response: %w", err))
	}
	if len(decoded.Choices) == 0 {
		return nil, apperrors.NewProviderError(providerName, errors.New("response has no choices"))
	}

	msg := decoded.Choices[0].Message
	out := &CompletionResponse{Model: decoded.Model, Content: msg.Content}
	if req.Tool != nil {
		if len(msg.ToolCalls) == 0 {
			return nil, apperrors.NewProviderError(providerName, fmt.Errorf("model did not call tool %s", req.Tool.Name))
		}
		args := msg.ToolCalls[0].Function.Arguments
		if !json.Valid([]byte(args)) {
			return nil, apperrors.NewProviderError(providerName, errors.New("tool arguments are not valid JSON"))
		}
		out.ToolArguments = json.RawMessage(args)
	}
	return out, nil
}

// countsAsOutage excludes caller-visible quota states from breaker accounting
func countsAsOutage(err error) bool {
	if err == nil {
		return false
	}
	var catErr *apperrors.CategorizedError
	if errors.As(err, &catErr) {
		return catErr.Code == "PROVIDER_ERROR"
	}
	return !errors.Is(err, context.Canceled)
}
