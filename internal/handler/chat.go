package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"propmatch/internal/model"
	"propmatch/internal/service"

	"github.com/gin-gonic/gin"
)

// Searcher is the session interface the handlers depend on
type Searcher interface {
	Search(ctx context.Context, query string, onEvent service.AgentEventFunc) (*model.ChatResponse, error)
	History() []model.Turn
	Stats() model.CacheStats
	AddFeedback(fb model.Feedback)
}

// Ensure Matchmaker implements Searcher
var _ Searcher = (*service.Matchmaker)(nil)

// ChatHandler handles chat-related HTTP requests
type ChatHandler struct {
	session Searcher
	schema  model.SchemaResponse
}

// NewChatHandler creates a new chat handler
func NewChatHandler(session Searcher, schema model.SchemaResponse) *ChatHandler {
	return &ChatHandler{
		session: session,
		schema:  schema,
	}
}

// Chat handles POST /api/v1/chat
func (h *ChatHandler) Chat(c *gin.Context) {
	var req model.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	response, err := h.session.Search(c.Request.Context(), req.Query, nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Search failed: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, response)
}

// ChatStream handles POST /api/v1/chat/stream - SSE streaming chat
func (h *ChatHandler) ChatStream(c *gin.Context) {
	var req model.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	// Set SSE headers
	c.Header("Content-Type", "text/event-stream; charset=utf-8")
	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Streaming not supported"})
		return
	}

	sendSSE(c, "start", map[string]any{"query": req.Query})
	flusher.Flush()

	response, err := h.session.Search(c.Request.Context(), req.Query, func(event string, data any) error {
		sendSSE(c, event, data)
		flusher.Flush()
		return nil
	})

	if err != nil {
		sendSSE(c, "error", map[string]any{"error": err.Error()})
		flusher.Flush()
		return
	}

	sendSSE(c, "answer", response)
	flusher.Flush()

	sendSSE(c, "done", nil)
	flusher.Flush()
}

// sendSSE sends a Server-Sent Event
func sendSSE(c *gin.Context, event string, data any) {
	if data != nil {
		jsonData, err := json.Marshal(data)
		if err != nil {
			fmt.Fprintf(c.Writer, "event: error\ndata: {\"error\": \"JSON marshal failed\"}\n\n")
			return
		}
		fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event, string(jsonData))
	} else {
		fmt.Fprintf(c.Writer, "event: %s\ndata: {}\n\n", event)
	}
}

// History handles GET /api/v1/chat/history
func (h *ChatHandler) History(c *gin.Context) {
	turns := h.session.History()
	c.JSON(http.StatusOK, model.HistoryResponse{
		Turns: turns,
		Total: len(turns),
	})
}

// Schema handles GET /api/v1/dataset/schema
func (h *ChatHandler) Schema(c *gin.Context) {
	c.JSON(http.StatusOK, h.schema)
}

// CacheStats handles GET /api/v1/cache/stats
func (h *ChatHandler) CacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.session.Stats())
}
