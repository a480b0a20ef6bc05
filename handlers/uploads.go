package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"wavscribe/services"
	"wavscribe/types"
	"wavscribe/websocket"

	"github.com/gin-gonic/gin"
)

// UploadHandler handles upload endpoints
type UploadHandler struct {
	page services.Page
	hub  websocket.Hub
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(page services.Page, hub websocket.Hub) *UploadHandler {
	return &UploadHandler{
		page: page,
		hub:  hub,
	}
}

// StartUpload uploads the selected file in the background
func (h *UploadHandler) StartUpload(c *gin.Context) {
	record, err := h.page.StartUpload()
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, services.ErrNoFileSelected) {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{
			"error":   services.UserMessage(err),
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message": "Upload started",
		"upload":  record,
	})
}

// GetAllUploads returns all uploads
func (h *UploadHandler) GetAllUploads(c *gin.Context) {
	uploads := h.page.GetAllUploads()
	c.JSON(http.StatusOK, gin.H{
		"uploads": uploads,
		"count":   len(uploads),
	})
}

// GetUpload returns a specific upload by ID
func (h *UploadHandler) GetUpload(c *gin.Context) {
	upload, exists := h.page.GetUpload(c.Param("uploadId"))
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "upload not found",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"upload": upload,
	})
}

// HandleWebSocketConnection streams progress of one upload
func (h *UploadHandler) HandleWebSocketConnection(c *gin.Context) {
	uploadID := c.Param("uploadId")
	upload, exists := h.page.GetUpload(uploadID)
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "upload not found",
		})
		return
	}

	client, ok := h.upgrade(c, uploadID)
	if !ok {
		return
	}

	// An in-flight upload is announced with its current state. The terminal
	// message of a settled upload is replayed by the hub on registration.
	if !upload.Done() {
		client.Send(snapshotMessage(upload))
	}
	h.hub.RegisterClient(client)
	client.StartPumps()
}

// HandleWebSocketAllConnection streams progress of every upload
func (h *UploadHandler) HandleWebSocketAllConnection(c *gin.Context) {
	client, ok := h.upgrade(c, websocket.AllUploads)
	if !ok {
		return
	}
	h.hub.RegisterClient(client)
	client.StartPumps()
}

func (h *UploadHandler) upgrade(c *gin.Context, uploadID string) (*websocket.Client, bool) {
	upgrader := websocket.GetUpgrader()
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "upload", uploadID, "error", err)
		return nil, false
	}
	return websocket.NewClient(h.hub, conn, uploadID), true
}

func snapshotMessage(r *types.UploadRecord) types.ProgressMessage {
	return types.ProgressMessage{
		UploadID:       r.ID,
		Type:           types.MessageTypeProgress,
		Progress:       r.Progress,
		RemainingMs:    r.RemainingMs,
		RemainingKnown: r.RemainingKnown,
		Status:         string(r.Status),
		FileName:       r.FileName,
		Timestamp:      time.Now(),
	}
}
