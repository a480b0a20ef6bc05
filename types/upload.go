package types

import "time"

// UploadStatus represents the current status of an upload
type UploadStatus string

const (
	UploadStatusPending   UploadStatus = "pending"
	UploadStatusUploading UploadStatus = "uploading"
	UploadStatusCompleted UploadStatus = "completed"
	UploadStatusFailed    UploadStatus = "failed"
)

// ProgressState is the latest progress published for an upload
type ProgressState struct {
	UploadID       string  `json:"uploadId"`
	Percentage     float64 `json:"percentage"`
	RemainingMs    int64   `json:"remainingMs"`
	RemainingKnown bool    `json:"remainingKnown"`
}

// UploadRecord represents one upload started from the page
type UploadRecord struct {
	ID             string       `json:"id"`
	FileName       string       `json:"fileName"`
	Size           int64        `json:"size"`
	Status         UploadStatus `json:"status"`
	Progress       float64      `json:"progress"`
	RemainingMs    int64        `json:"remainingMs"`
	RemainingKnown bool         `json:"remainingKnown"`
	URLs           []string     `json:"urls,omitempty"`
	Error          string       `json:"error,omitempty"`
	CreatedAt      time.Time    `json:"createdAt"`
	StartedAt      *time.Time   `json:"startedAt,omitempty"`
	CompletedAt    *time.Time   `json:"completedAt,omitempty"`
}

// Done reports whether the upload reached a terminal status
func (r *UploadRecord) Done() bool {
	return r.Status == UploadStatusCompleted || r.Status == UploadStatusFailed
}
