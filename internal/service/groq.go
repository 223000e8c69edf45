package service

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

	"propmatch/internal/config"
)

// GroqClient handles Groq API interactions (OpenAI-compatible endpoint)
type GroqClient struct {
	config     *config.GroqConfig
	httpClient *http.Client
}

// NewGroqClient creates a new Groq client
func NewGroqClient(cfg *config.GroqConfig) *GroqClient {
	return &GroqClient{
		config: cfg,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
	}
}

// IsEnabled returns whether the client is configured and ready
func (c *GroqClient) IsEnabled() bool {
	return c.config.Enabled
}

// Model returns the configured chat model
func (c *GroqClient) Model() string {
	return c.config.Model
}

// ChatCompletionRequest represents a chat completion request
type ChatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Tools       []Tool        `json:"tools,omitempty"`
	ToolChoice  string        `json:"tool_choice,omitempty"` // "auto" when tools are set
}

// ChatMessage represents a single message in the conversation
type ChatMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"` // set on role "tool" messages
}

// Tool describes a function the model may call
type Tool struct {
	Type     string       `json:"type"` // always "function"
	Function ToolFunction `json:"function"`
}

// ToolFunction describes the callable function
type ToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// ToolCall is a function invocation requested by the model
type ToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

// ChatCompletionResponse represents the API response
type ChatCompletionResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int         `json:"index"`
		Message      ChatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// APIError is a structured error returned by the chat completion endpoint.
// StatusCode and Code come from the provider; Message is the raw error text.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

// Error returns the error message.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("API request failed with status %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("API request failed with status %d: %s", e.StatusCode, e.Message)
}

// RateLimited reports whether this error is a quota or rate-limit failure.
func (e *APIError) RateLimited() bool {
	if e.StatusCode == http.StatusTooManyRequests {
		return true
	}
	switch e.Code {
	case "rate_limit_exceeded", "insufficient_quota", "resource_exhausted":
		return true
	}
	return false
}

// rateLimitMarkers are substrings that indicate rate limiting in opaque
// error text. Substring matching is a fallback for providers that return
// no structured code; the status-code check above is authoritative.
var rateLimitMarkers = []string{"429", "rate", "resource_exhausted"}

// IsRateLimited classifies an error as a rate-limit failure. Structured
// *APIError classification is preferred; otherwise the error text is
// scanned for known markers.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.RateLimited()
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range rateLimitMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// errorBody is the OpenAI-compatible error envelope
type errorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// ChatCompletion performs a chat completion request
func (c *GroqClient) ChatCompletion(ctx context.Context, req ChatCompletionRequest) (*ChatCompletionResponse, error) {
	if !c.config.Enabled {
		return nil, fmt.Errorf("Groq API is not enabled (missing API key)")
	}

	// Use configured defaults if not specified
	if req.Model == "" {
		req.Model = c.config.Model
	}
	if req.Temperature == 0 && c.config.Temperature > 0 {
		req.Temperature = c.config.Temperature
	}
	if req.MaxTokens == 0 && c.config.MaxTokens > 0 {
		req.MaxTokens = c.config.MaxTokens
	}

	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/chat/completions", c.config.APIBase)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.config.APIKey))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: string(body)}
		var eb errorBody
		if json.Unmarshal(body, &eb) == nil && eb.Error.Message != "" {
			apiErr.Message = eb.Error.Message
			apiErr.Code = eb.Error.Code
			if apiErr.Code == "" {
				apiErr.Code = eb.Error.Type
			}
		}
		return nil, apiErr
	}

	var result ChatCompletionResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return &result, nil
}
