package handlers

import (
	"net/http"
	"time"

	"wavscribe/config"

	"github.com/gin-gonic/gin"
)

// Version is reported by the health endpoint
var Version = "dev"

// HealthHandler handles health check endpoints
type HealthHandler struct {
	service string
}

// NewHealthHandler creates a new health handler reporting service as its name
func NewHealthHandler(service string) *HealthHandler {
	return &HealthHandler{service: service}
}

// HealthCheck returns the health status of the service
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   h.service,
		"version":   Version,
		"timestamp": time.Now().Unix(),
	})
}

// APIStatus returns the status of the API
func (h *HealthHandler) APIStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":         "wavscribe API is running",
		"upload_endpoint": config.GetUploadEndpoint(),
	})
}
