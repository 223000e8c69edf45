package handler

import (
	"net/http"
	"time"

	"propmatch/internal/model"

	"github.com/gin-gonic/gin"
)

// FeedbackHandler handles feedback-related HTTP requests
type FeedbackHandler struct {
	session Searcher
}

// NewFeedbackHandler creates a new feedback handler
func NewFeedbackHandler(session Searcher) *FeedbackHandler {
	return &FeedbackHandler{
		session: session,
	}
}

// Submit handles POST /api/v1/feedback
func (h *FeedbackHandler) Submit(c *gin.Context) {
	var req model.FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	// Validate rating
	validRatings := map[string]bool{
		"helpful":   true,
		"unhelpful": true,
	}

	if !validRatings[req.Rating] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid rating. Must be one of: helpful, unhelpful"})
		return
	}

	h.session.AddFeedback(model.Feedback{
		Query:     req.Query,
		Rating:    req.Rating,
		Note:      req.Note,
		CreatedAt: time.Now(),
	})

	response := model.FeedbackResponse{
		Success: true,
		Message: "Feedback logged successfully",
	}

	c.JSON(http.StatusOK, response)
}
