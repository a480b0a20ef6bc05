package services

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"wavscribe/clipboard"
	"wavscribe/metrics"
	"wavscribe/progress"
	"wavscribe/types"
	"wavscribe/websocket"

	"github.com/google/uuid"
)

// Page interface defines the events of the upload page
type Page interface {
	SelectFiles(files []types.FileRef) (*types.SelectedFile, error)
	ClearFile() bool
	Selection() (*types.SelectedFile, *types.Preview)
	StartUpload() (*types.UploadRecord, error)
	GetUpload(id string) (*types.UploadRecord, bool)
	GetAllUploads() []*types.UploadRecord
	Transcript() *Transcript
	ResolvePreview(id string) (types.SelectedFile, bool)
	Snapshot() types.PageSnapshot
}

// PageConfig holds the collaborators of a Page
type PageConfig struct {
	Files      FileService
	Previews   PreviewRegistry
	Transcript *Transcript

	// NewUploader is called once per upload so endpoint changes apply to
	// the next upload.
	NewUploader func() Uploader

	Hub     websocket.Hub
	Metrics *metrics.Metrics
}

// page holds the mutable state of one upload page: the selected file, its
// preview reference, the transcript and the latest progress.
type page struct {
	ctx context.Context
	cfg PageConfig

	mu        sync.RWMutex
	selection *types.SelectedFile
	preview   *types.Preview
	progress  *types.ProgressState
	uploads   map[string]*types.UploadRecord
}

// NewPage creates a page. Uploads run until they settle or ctx is done.
func NewPage(ctx context.Context, cfg PageConfig) Page {
	if cfg.Files == nil {
		cfg.Files = NewFileService()
	}
	if cfg.Previews == nil {
		cfg.Previews = NewPreviewRegistry()
	}
	if cfg.Transcript == nil {
		cfg.Transcript = NewTranscript(clipboard.New(os.Stdout))
	}
	return &page{
		ctx:     ctx,
		cfg:     cfg,
		uploads: make(map[string]*types.UploadRecord),
	}
}

// SelectFiles runs the selection gate. On rejection the current selection is
// left untouched; on acceptance the previous preview is revoked before a new
// one is created.
func (p *page) SelectFiles(files []types.FileRef) (*types.SelectedFile, error) {
	file, err := SelectFiles(p.cfg.Files, files)
	if err != nil {
		p.cfg.Metrics.ObserveSelection(selectionResult(err))
		slog.Info("file selection rejected", "error", err)
		return nil, err
	}
	p.cfg.Metrics.ObserveSelection("accepted")

	p.mu.Lock()
	defer p.mu.Unlock()

	p.releasePreview()
	preview := p.cfg.Previews.Create(*file)
	p.selection = file
	p.preview = &preview

	slog.Info("file selected", "file", file.Name, "type", file.Type, "size", file.Size)
	return copyFile(file), nil
}

// ClearFile drops the selection and releases its preview. It reports false
// when there was nothing to clear.
func (p *page) ClearFile() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.selection == nil && p.preview == nil {
		return false
	}
	p.releasePreview()
	p.selection = nil
	return true
}

// releasePreview revokes the current preview reference. Callers hold p.mu.
func (p *page) releasePreview() {
	if p.preview == nil {
		return
	}
	p.cfg.Previews.Revoke(p.preview.ID)
	p.preview = nil
}

func (p *page) Selection() (*types.SelectedFile, *types.Preview) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var preview *types.Preview
	if p.preview != nil {
		pv := *p.preview
		preview = &pv
	}
	return copyFile(p.selection), preview
}

// ResolvePreview returns the file behind a live preview reference
func (p *page) ResolvePreview(id string) (types.SelectedFile, bool) {
	return p.cfg.Previews.Resolve(id)
}

// StartUpload uploads the selected file in the background and returns the
// new upload record. Nothing stops a second upload while one is in flight.
func (p *page) StartUpload() (*types.UploadRecord, error) {
	p.mu.Lock()
	if p.selection == nil {
		p.mu.Unlock()
		return nil, ErrNoFileSelected
	}
	file := *p.selection

	record := &types.UploadRecord{
		ID:        uuid.New().String(),
		FileName:  file.Name,
		Size:      file.Size,
		Status:    types.UploadStatusPending,
		CreatedAt: time.Now(),
	}
	p.uploads[record.ID] = record
	snapshot := copyRecord(record)
	p.mu.Unlock()

	go p.runUpload(record.ID, file)
	return snapshot, nil
}

func (p *page) runUpload(id string, file types.SelectedFile) {
	started := time.Now()
	p.update(id, func(r *types.UploadRecord) {
		r.Status = types.UploadStatusUploading
		r.StartedAt = &started
	})
	p.cfg.Metrics.UploadStarted()
	slog.Info("upload started", "upload", id, "file", file.Name)

	var sent int64
	obs := ObserverFuncs{
		Progress: func(est progress.Estimate) {
			sent = est.Loaded
			p.publishProgress(id, file, est)
		},
		Success: func(result *Result) {
			p.finishUpload(id, file, result, nil)
		},
		Failure: func(err error) {
			p.finishUpload(id, file, nil, err)
		},
	}

	_, err := p.cfg.NewUploader().Upload(p.ctx, file, obs)
	p.cfg.Metrics.UploadFinished(err == nil, sent, time.Since(started))
}

func (p *page) publishProgress(id string, file types.SelectedFile, est progress.Estimate) {
	remainingMs := est.Remaining.Milliseconds()

	p.mu.Lock()
	if r, ok := p.uploads[id]; ok {
		r.Progress = est.Percentage
		r.RemainingMs = remainingMs
		r.RemainingKnown = est.RemainingKnown
	}
	p.progress = &types.ProgressState{
		UploadID:       id,
		Percentage:     est.Percentage,
		RemainingMs:    remainingMs,
		RemainingKnown: est.RemainingKnown,
	}
	p.mu.Unlock()

	if p.cfg.Hub != nil {
		p.cfg.Hub.Broadcast(types.ProgressMessage{
			UploadID:       id,
			Type:           types.MessageTypeProgress,
			Progress:       est.Percentage,
			Loaded:         est.Loaded,
			Total:          est.Total,
			RemainingMs:    remainingMs,
			RemainingKnown: est.RemainingKnown,
			Status:         string(types.UploadStatusUploading),
			FileName:       file.Name,
			Speed:          progress.FormatRate(est),
		})
	}
}

// finishUpload publishes the terminal message and then settles the record,
// so a settled record implies every notification went out.
func (p *page) finishUpload(id string, file types.SelectedFile, result *Result, err error) {
	msg := types.ProgressMessage{
		UploadID: id,
		FileName: file.Name,
	}
	if r, ok := p.GetUpload(id); ok {
		msg.Progress = r.Progress
		msg.RemainingMs = r.RemainingMs
		msg.RemainingKnown = r.RemainingKnown
	}

	if err != nil {
		msg.Type = types.MessageTypeError
		msg.Status = string(types.UploadStatusFailed)
		msg.Message = UserMessage(err)
		if IsCanceled(err) {
			slog.Info("upload canceled", "upload", id, "file", file.Name)
		} else {
			slog.Error("upload failed", "upload", id, "file", file.Name, "error", err)
		}
	} else {
		if result.Text != "" {
			p.cfg.Transcript.Set(result.Text)
		}
		msg.Type = types.MessageTypeComplete
		msg.Status = string(types.UploadStatusCompleted)
		msg.URLs = result.URLs
		msg.Message = "File was uploaded successfully"
		slog.Info("upload completed", "upload", id, "file", file.Name, "urls", result.URLs)
	}

	if p.cfg.Hub != nil {
		p.cfg.Hub.Broadcast(msg)
	}

	completed := time.Now()
	p.update(id, func(r *types.UploadRecord) {
		r.CompletedAt = &completed
		if err != nil {
			r.Status = types.UploadStatusFailed
			r.Error = msg.Message
			return
		}
		r.Status = types.UploadStatusCompleted
		r.URLs = result.URLs
	})
}

func (p *page) update(id string, fn func(r *types.UploadRecord)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if r, ok := p.uploads[id]; ok {
		fn(r)
	}
}

// GetUpload retrieves an upload by ID
func (p *page) GetUpload(id string) (*types.UploadRecord, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	r, ok := p.uploads[id]
	if !ok {
		return nil, false
	}
	return copyRecord(r), true
}

// GetAllUploads returns all uploads, oldest first
func (p *page) GetAllUploads() []*types.UploadRecord {
	p.mu.RLock()
	defer p.mu.RUnlock()

	records := make([]*types.UploadRecord, 0, len(p.uploads))
	for _, r := range p.uploads {
		records = append(records, copyRecord(r))
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	return records
}

func (p *page) Transcript() *Transcript {
	return p.cfg.Transcript
}

// Snapshot returns the current page state
func (p *page) Snapshot() types.PageSnapshot {
	file, preview := p.Selection()

	p.mu.RLock()
	var state *types.ProgressState
	if p.progress != nil {
		ps := *p.progress
		state = &ps
	}
	p.mu.RUnlock()

	return types.PageSnapshot{
		File:     file,
		Preview:  preview,
		Text:     p.cfg.Transcript.Text(),
		CanCopy:  p.cfg.Transcript.CanCopy(),
		Progress: state,
	}
}

func selectionResult(err error) string {
	switch {
	case errors.Is(err, ErrNoFileChosen):
		return "no_file"
	case errors.Is(err, ErrEmptyFileList):
		return "empty_list"
	case errors.Is(err, ErrInvalidFileType):
		return "invalid_type"
	default:
		return "error"
	}
}

func copyFile(f *types.SelectedFile) *types.SelectedFile {
	if f == nil {
		return nil
	}
	c := *f
	if f.Metadata != nil {
		m := *f.Metadata
		c.Metadata = &m
	}
	return &c
}

func copyRecord(r *types.UploadRecord) *types.UploadRecord {
	c := *r
	c.URLs = append([]string(nil), r.URLs...)
	return &c
}
