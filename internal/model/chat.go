package model

import "time"

// ChatRequest represents a single natural-language property query
type ChatRequest struct {
	Query string `json:"query" binding:"required"`
}

// ChatResponse represents the answer to a chat query
type ChatResponse struct {
	Answer string `json:"answer"`
	Cached bool   `json:"cached"`
	Took   int64  `json:"took_ms"` // Response time in milliseconds
}

// Turn is a single entry in the session transcript
type Turn struct {
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Cached    bool      `json:"cached,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// HistoryResponse represents the session transcript
type HistoryResponse struct {
	Turns []Turn `json:"turns"`
	Total int    `json:"total"`
}

// CacheStats reports query cache performance counters
type CacheStats struct {
	Entries   int   `json:"entries"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
}

// FeedbackRequest represents user feedback on an answer
type FeedbackRequest struct {
	Query  string `json:"query" binding:"required"`
	Rating string `json:"rating" binding:"required"` // helpful, unhelpful
	Note   string `json:"note,omitempty"`
}

// FeedbackResponse represents feedback response
type FeedbackResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// Feedback is a stored feedback entry
type Feedback struct {
	Query     string    `json:"query"`
	Rating    string    `json:"rating"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
