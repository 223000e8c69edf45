package service

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"propmatch/internal/model"
)

// scriptedClient returns canned responses in order.
type scriptedClient struct {
	responses []*ChatCompletionResponse
	requests  []ChatCompletionRequest
}

func (c *scriptedClient) ChatCompletion(ctx context.Context, req ChatCompletionRequest) (*ChatCompletionResponse, error) {
	c.requests = append(c.requests, req)
	if len(c.requests) > len(c.responses) {
		return nil, fmt.Errorf("no scripted response for request %d", len(c.requests))
	}
	return c.responses[len(c.requests)-1], nil
}

func (c *scriptedClient) Model() string   { return "test-model" }
func (c *scriptedClient) IsEnabled() bool { return true }

// fakeStore records queries and returns a fixed result.
type fakeStore struct {
	queries []string
	result  string
	err     error
}

func (s *fakeStore) Schema() model.SchemaResponse {
	return model.SchemaResponse{
		Rows: 3,
		Columns: []model.Column{
			{Name: "ref_no", Type: "TEXT"},
			{Name: "bedrooms", Type: "INTEGER"},
			{Name: "price", Type: "REAL"},
		},
	}
}

func (s *fakeStore) Head(n int) string { return "ref_no | bedrooms | price\nR1 | 3 | 1200000\n" }
func (s *fakeStore) RowCount() int     { return 3 }

func (s *fakeStore) Query(ctx context.Context, query string) (string, error) {
	s.queries = append(s.queries, query)
	return s.result, s.err
}

func textResponse(content string) *ChatCompletionResponse {
	resp := &ChatCompletionResponse{}
	resp.Choices = append(resp.Choices, struct {
		Index        int         `json:"index"`
		Message      ChatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	}{Message: ChatMessage{Role: "assistant", Content: content}, FinishReason: "stop"})
	return resp
}

func toolResponse(id, arguments string) *ChatCompletionResponse {
	call := ToolCall{ID: id, Type: "function"}
	call.Function.Name = toolRunSQL
	call.Function.Arguments = arguments

	resp := &ChatCompletionResponse{}
	resp.Choices = append(resp.Choices, struct {
		Index        int         `json:"index"`
		Message      ChatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	}{Message: ChatMessage{Role: "assistant", ToolCalls: []ToolCall{call}}, FinishReason: "tool_calls"})
	return resp
}

func TestTableAgent_DirectAnswer(t *testing.T) {
	client := &scriptedClient{responses: []*ChatCompletionResponse{textResponse("no matching properties")}}
	store := &fakeStore{}
	agent := NewTableAgent(client, store, 2, 5)

	answer, err := agent.Run(context.Background(), "find me a castle", nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if answer != "no matching properties" {
		t.Errorf("Unexpected answer: %q", answer)
	}
	if len(store.queries) != 0 {
		t.Errorf("Expected no tool calls, got %d", len(store.queries))
	}

	// The system prompt must describe the table
	sys := client.requests[0].Messages[0]
	if sys.Role != "system" || !strings.Contains(sys.Content, "3 rows") || !strings.Contains(sys.Content, "bedrooms") {
		t.Errorf("System prompt missing table description: %q", sys.Content)
	}
}

func TestTableAgent_ToolLoop(t *testing.T) {
	client := &scriptedClient{responses: []*ChatCompletionResponse{
		toolResponse("call_1", `{"query": "SELECT * FROM listings WHERE bedrooms = 3 LIMIT 5"}`),
		textResponse("Ref R1, 3BR, $1.2M — fits"),
	}}
	store := &fakeStore{result: "ref_no | bedrooms | price\nR1 | 3 | 1200000\n"}
	agent := NewTableAgent(client, store, 2, 5)

	var events []string
	answer, err := agent.Run(context.Background(), "3 bed please", func(event string, data any) error {
		events = append(events, event)
		return nil
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if answer != "Ref R1, 3BR, $1.2M — fits" {
		t.Errorf("Unexpected answer: %q", answer)
	}
	if len(store.queries) != 1 || !strings.Contains(store.queries[0], "bedrooms = 3") {
		t.Errorf("Unexpected tool queries: %v", store.queries)
	}
	if len(events) != 1 || events[0] != "tool" {
		t.Errorf("Expected one tool event, got %v", events)
	}

	// The second request must carry the tool result back to the model
	second := client.requests[1].Messages
	last := second[len(second)-1]
	if last.Role != "tool" || last.ToolCallID != "call_1" || !strings.Contains(last.Content, "R1") {
		t.Errorf("Tool result not fed back: %+v", last)
	}
}

func TestTableAgent_QueryErrorFedBack(t *testing.T) {
	client := &scriptedClient{responses: []*ChatCompletionResponse{
		toolResponse("call_1", `{"query": "DROP TABLE listings"}`),
		textResponse("sorry, could not query"),
	}}
	store := &fakeStore{err: fmt.Errorf("only SELECT queries are allowed")}
	agent := NewTableAgent(client, store, 2, 5)

	if _, err := agent.Run(context.Background(), "q", nil); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	second := client.requests[1].Messages
	last := second[len(second)-1]
	if !strings.Contains(last.Content, "error:") {
		t.Errorf("Query error should be returned as tool output, got: %q", last.Content)
	}
}

func TestTableAgent_IterationBound(t *testing.T) {
	// The model keeps asking for tool calls forever
	loop := toolResponse("call_x", `{"query": "SELECT 1"}`)
	client := &scriptedClient{responses: []*ChatCompletionResponse{loop, loop, loop}}
	store := &fakeStore{result: "1\n"}
	agent := NewTableAgent(client, store, 2, 3)

	_, err := agent.Run(context.Background(), "q", nil)
	if err == nil {
		t.Fatal("Expected error when iteration bound is hit")
	}
	if !strings.Contains(err.Error(), "3 iterations") {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestTableAgent_MalformedToolArguments(t *testing.T) {
	client := &scriptedClient{responses: []*ChatCompletionResponse{
		toolResponse("call_1", `not json at all`),
		textResponse("done"),
	}}
	store := &fakeStore{}
	agent := NewTableAgent(client, store, 2, 5)

	if _, err := agent.Run(context.Background(), "q", nil); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(store.queries) != 0 {
		t.Errorf("Malformed arguments must not reach the store, got %v", store.queries)
	}
}
