package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"propmatch/internal/dataset"
	"propmatch/internal/model"
	"propmatch/internal/utils"
)

// ChatClient is the interface to the chat-completion backend
type ChatClient interface {
	ChatCompletion(ctx context.Context, req ChatCompletionRequest) (*ChatCompletionResponse, error)
	Model() string
	IsEnabled() bool
}

// Ensure GroqClient implements ChatClient
var _ ChatClient = (*GroqClient)(nil)

// DataStore executes read-only queries over the loaded dataset
type DataStore interface {
	Schema() model.SchemaResponse
	Head(n int) string
	Query(ctx context.Context, query string) (string, error)
	RowCount() int
}

// Ensure dataset.Store implements DataStore
var _ DataStore = (*dataset.Store)(nil)

// AgentEventFunc receives progress events during an agent run.
// It may be nil when the caller does not want progress updates.
type AgentEventFunc func(event string, data any) error

// Agent answers a free-text instruction against the dataset
type Agent interface {
	Run(ctx context.Context, instruction string, onEvent AgentEventFunc) (string, error)
}

// TableAgent drives the model through a bounded tool-calling loop:
// the model inspects the table schema from the system prompt, issues
// run_sql calls, and returns a free-text answer.
type TableAgent struct {
	client        ChatClient
	store         DataStore
	headRows      int
	maxIterations int
}

// Ensure TableAgent implements Agent
var _ Agent = (*TableAgent)(nil)

// NewTableAgent creates an agent over the given chat client and dataset store
func NewTableAgent(client ChatClient, store DataStore, headRows, maxIterations int) *TableAgent {
	if headRows <= 0 {
		headRows = 2
	}
	if maxIterations <= 0 {
		maxIterations = 20
	}
	return &TableAgent{
		client:        client,
		store:         store,
		headRows:      headRows,
		maxIterations: maxIterations,
	}
}

const toolRunSQL = "run_sql"

// sqlToolArgs are the arguments of a run_sql tool call
type sqlToolArgs struct {
	Query string `json:"query"`
}

func (a *TableAgent) tools() []Tool {
	return []Tool{
		{
			Type: "function",
			Function: ToolFunction{
				Name:        toolRunSQL,
				Description: "Execute a read-only SQL SELECT query against the listings table and return the matching rows as text.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"query": map[string]any{
							"type":        "string",
							"description": "A single SQLite SELECT statement. Always filter and use LIMIT.",
						},
					},
					"required": []string{"query"},
				},
			},
		},
	}
}

// systemPrompt describes the table so the model can query it
func (a *TableAgent) systemPrompt() string {
	schema := a.store.Schema()

	var cols strings.Builder
	for _, c := range schema.Columns {
		fmt.Fprintf(&cols, "  %s (%s)\n", c.Name, c.Type)
	}

	return fmt.Sprintf(
		"You are working with a SQLite table called `%s` with %d rows and %d columns.\n"+
			"IMPORTANT: The table is large. Never select the entire table. "+
			"Always use WHERE filters and LIMIT to keep results small.\n"+
			"Columns:\n%s"+
			"Sample rows:\n%s\n"+
			"Use the %s tool to query the table. "+
			"When you have enough information to answer, return the final answer immediately.",
		dataset.TableName, schema.Rows, len(schema.Columns), cols.String(), a.store.Head(a.headRows), toolRunSQL,
	)
}

// Run executes the tool-calling loop until the model produces a final
// answer or the iteration bound is hit.
func (a *TableAgent) Run(ctx context.Context, instruction string, onEvent AgentEventFunc) (string, error) {
	if !a.client.IsEnabled() {
		return "", fmt.Errorf("chat client is not enabled (missing API key)")
	}

	messages := []ChatMessage{
		{Role: "system", Content: a.systemPrompt()},
		{Role: "user", Content: instruction},
	}

	for iter := 0; iter < a.maxIterations; iter++ {
		resp, err := a.client.ChatCompletion(ctx, ChatCompletionRequest{
			Model:      a.client.Model(),
			Messages:   messages,
			Tools:      a.tools(),
			ToolChoice: "auto",
		})
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("no response from model")
		}

		msg := resp.Choices[0].Message
		if len(msg.ToolCalls) == 0 {
			answer := strings.TrimSpace(msg.Content)
			if answer == "" {
				return "", fmt.Errorf("model returned an empty answer")
			}
			return answer, nil
		}

		messages = append(messages, msg)
		for _, call := range msg.ToolCalls {
			result := a.executeToolCall(ctx, call, onEvent)
			messages = append(messages, ChatMessage{
				Role:       "tool",
				Content:    result,
				ToolCallID: call.ID,
			})
		}
	}

	return "", fmt.Errorf("agent stopped after %d iterations without a final answer", a.maxIterations)
}

// executeToolCall runs one tool call. Execution errors are returned as the
// tool result text so the model can correct itself on the next turn.
func (a *TableAgent) executeToolCall(ctx context.Context, call ToolCall, onEvent AgentEventFunc) string {
	if call.Function.Name != toolRunSQL {
		return fmt.Sprintf("error: unknown tool %q", call.Function.Name)
	}

	var args sqlToolArgs
	if err := utils.ParseAIJSON(call.Function.Arguments, &args); err != nil || args.Query == "" {
		return "error: tool arguments must be a JSON object with a \"query\" string"
	}

	if onEvent != nil {
		if err := onEvent("tool", map[string]any{"query": args.Query}); err != nil {
			log.Printf("Warning: agent event callback failed: %v", err)
		}
	}

	result, err := a.store.Query(ctx, args.Query)
	if err != nil {
		return fmt.Sprintf("error: %v", err)
	}
	return result
}
