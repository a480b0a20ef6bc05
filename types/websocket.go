package types

import "time"

// Progress message types
const (
	MessageTypeProgress = "progress"
	MessageTypeComplete = "complete"
	MessageTypeError    = "error"
)

// ProgressMessage represents a WebSocket progress update message
type ProgressMessage struct {
	UploadID       string    `json:"uploadId"`
	Type           string    `json:"type"`     // "progress", "complete", "error"
	Progress       float64   `json:"progress"` // 0-100 percentage
	Loaded         int64     `json:"loaded"`
	Total          int64     `json:"total"`
	RemainingMs    int64     `json:"remainingMs"`
	RemainingKnown bool      `json:"remainingKnown"`
	Status         string    `json:"status"`
	FileName       string    `json:"fileName"`
	Speed          string    `json:"speed"` // upload speed like "2.1 MB/s"
	URLs           []string  `json:"urls,omitempty"`
	Message        string    `json:"message,omitempty"` // status or error messages
	Timestamp      time.Time `json:"timestamp"`
}
