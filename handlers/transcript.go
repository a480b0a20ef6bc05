package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"wavscribe/metrics"
	"wavscribe/services"

	"github.com/gin-gonic/gin"
)

// TranscriptHandler handles the transcript text box
type TranscriptHandler struct {
	page    services.Page
	metrics *metrics.Metrics
}

// NewTranscriptHandler creates a new transcript handler
func NewTranscriptHandler(page services.Page, m *metrics.Metrics) *TranscriptHandler {
	return &TranscriptHandler{
		page:    page,
		metrics: m,
	}
}

// TranscriptRequest replaces the transcript text
type TranscriptRequest struct {
	Text *string `json:"text"`
}

// GetTranscript returns the current text and whether it can be copied
func (h *TranscriptHandler) GetTranscript(c *gin.Context) {
	t := h.page.Transcript()
	c.JSON(http.StatusOK, gin.H{
		"text":    t.Text(),
		"canCopy": t.CanCopy(),
	})
}

// UpdateTranscript stores text edited by the user
func (h *TranscriptHandler) UpdateTranscript(c *gin.Context) {
	var req TranscriptRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Text == nil {
		details := "text is required"
		if err != nil {
			details = err.Error()
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid transcript format",
			"details": details,
		})
		return
	}

	t := h.page.Transcript()
	t.Set(*req.Text)
	c.JSON(http.StatusOK, gin.H{
		"text":    t.Text(),
		"canCopy": t.CanCopy(),
	})
}

// CopyTranscript places the transcript on the host clipboard. Copy is
// disabled while the text is empty.
func (h *TranscriptHandler) CopyTranscript(c *gin.Context) {
	t := h.page.Transcript()
	if err := t.Copy(c.Request.Context()); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, services.ErrNothingToCopy) {
			status = http.StatusConflict
		} else {
			slog.Error("clipboard write failed", "error", err)
		}
		c.JSON(status, gin.H{
			"error":   services.UserMessage(err),
			"details": err.Error(),
		})
		return
	}

	method := t.CopyMethod()
	h.metrics.ObserveCopy(method)
	c.JSON(http.StatusOK, gin.H{
		"message": "Copied to clipboard",
		"method":  method,
	})
}
