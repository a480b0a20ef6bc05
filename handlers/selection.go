package handlers

import (
	"net/http"

	"wavscribe/services"
	"wavscribe/types"

	"github.com/gin-gonic/gin"
)

// SelectionHandler handles file selection endpoints
type SelectionHandler struct {
	page services.Page
}

// NewSelectionHandler creates a new selection handler
func NewSelectionHandler(page services.Page) *SelectionHandler {
	return &SelectionHandler{page: page}
}

// SelectRequest lists the files picked by the user. A missing files field
// means nothing was chosen.
type SelectRequest struct {
	Files []types.FileRef `json:"files"`
}

// GetSelection returns the current file and preview
func (h *SelectionHandler) GetSelection(c *gin.Context) {
	file, preview := h.page.Selection()
	c.JSON(http.StatusOK, gin.H{
		"file":    file,
		"preview": preview,
	})
}

// SelectFiles runs the selection gate over the picked files
func (h *SelectionHandler) SelectFiles(c *gin.Context) {
	var req SelectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid selection format",
			"details": err.Error(),
		})
		return
	}

	file, err := h.page.SelectFiles(req.Files)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   services.UserMessage(err),
			"details": err.Error(),
		})
		return
	}

	_, preview := h.page.Selection()
	c.JSON(http.StatusOK, gin.H{
		"file":    file,
		"preview": preview,
	})
}

// ClearSelection drops the selected file and releases its preview
func (h *SelectionHandler) ClearSelection(c *gin.Context) {
	cleared := h.page.ClearFile()
	c.JSON(http.StatusOK, gin.H{
		"cleared": cleared,
	})
}
