package handlers

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"

	"wavscribe/services"

	"github.com/gin-gonic/gin"
)

// PreviewHandler serves preview references of the selected file
type PreviewHandler struct {
	page services.Page
}

// NewPreviewHandler creates a new preview handler
func NewPreviewHandler(page services.Page) *PreviewHandler {
	return &PreviewHandler{page: page}
}

// StreamPreview streams the file behind a live preview reference with
// support for range requests
func (h *PreviewHandler) StreamPreview(c *gin.Context) {
	file, ok := h.page.ResolvePreview(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"error": services.ErrPreviewNotFound.Error(),
		})
		return
	}

	f, err := os.Open(file.Path)
	if err != nil {
		if os.IsNotExist(err) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "file not found",
				"name":  file.Name,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "failed to open file",
			"details": err.Error(),
		})
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "file access error",
			"details": err.Error(),
		})
		return
	}

	c.Header("Content-Type", file.Type)
	c.Header("Accept-Ranges", "bytes")
	c.Header("Cache-Control", "no-store")

	if rangeHeader := c.GetHeader("Range"); rangeHeader != "" {
		h.handleRangeRequest(c, f, info.Size(), rangeHeader)
		return
	}

	c.Header("Content-Length", strconv.FormatInt(info.Size(), 10))
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, f); err != nil {
		slog.Warn("error streaming preview", "file", file.Name, "error", err)
	}
}

// handleRangeRequest serves a single "bytes=start-end" range
func (h *PreviewHandler) handleRangeRequest(c *gin.Context, f *os.File, fileSize int64, rangeHeader string) {
	start, end, ok := parseRange(rangeHeader, fileSize)
	if !ok {
		c.Header("Content-Range", fmt.Sprintf("bytes */%d", fileSize))
		c.Status(http.StatusRequestedRangeNotSatisfiable)
		return
	}

	if _, err := f.Seek(start, io.SeekStart); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to seek file",
		})
		return
	}

	contentLength := end - start + 1
	c.Header("Content-Length", strconv.FormatInt(contentLength, 10))
	c.Header("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, fileSize))
	c.Status(http.StatusPartialContent)

	if _, err := io.CopyN(c.Writer, f, contentLength); err != nil {
		slog.Warn("error streaming preview range", "start", start, "end", end, "error", err)
	}
}

// parseRange parses "bytes=0-1023", "bytes=1024-" and "bytes=-500"
func parseRange(header string, size int64) (start, end int64, ok bool) {
	if !strings.HasPrefix(header, "bytes=") {
		return 0, 0, false
	}
	spec := strings.TrimPrefix(header, "bytes=")
	if strings.Contains(spec, ",") {
		return 0, 0, false
	}

	first, last, found := strings.Cut(spec, "-")
	if !found {
		return 0, 0, false
	}

	var err error
	switch {
	case first == "" && last == "":
		return 0, 0, false
	case first == "":
		// suffix range: the last N bytes
		n, err := strconv.ParseInt(last, 10, 64)
		if err != nil || n <= 0 {
			return 0, 0, false
		}
		if n > size {
			n = size
		}
		start, end = size-n, size-1
	default:
		start, err = strconv.ParseInt(first, 10, 64)
		if err != nil || start < 0 {
			return 0, 0, false
		}
		end = size - 1
		if last != "" {
			end, err = strconv.ParseInt(last, 10, 64)
			if err != nil || end < start {
				return 0, 0, false
			}
		}
	}

	if start >= size {
		return 0, 0, false
	}
	if end >= size {
		end = size - 1
	}
	return start, end, true
}
