package handlers

import (
	"net/http"

	"wavscribe/services"
	"wavscribe/web"

	"github.com/gin-gonic/gin"
)

// PageHandler serves the upload page and its state
type PageHandler struct {
	page services.Page
}

// NewPageHandler creates a new page handler
func NewPageHandler(page services.Page) *PageHandler {
	return &PageHandler{page: page}
}

// Index serves the single page UI
func (h *PageHandler) Index(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", web.IndexHTML)
}

// GetState returns a snapshot of the page state
func (h *PageHandler) GetState(c *gin.Context) {
	c.JSON(http.StatusOK, h.page.Snapshot())
}
