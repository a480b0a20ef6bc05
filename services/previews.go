package services

import (
	"sync"

	"wavscribe/types"

	"github.com/google/uuid"
)

// PreviewPathPrefix is the URL prefix preview references are served under
const PreviewPathPrefix = "/api/previews/"

// PreviewRegistry hands out revocable references to selected files so the
// page can play them back before upload.
type PreviewRegistry interface {
	Create(file types.SelectedFile) types.Preview
	Revoke(id string) bool
	Resolve(id string) (types.SelectedFile, bool)
	Len() int
}

type previewRegistry struct {
	mu      sync.RWMutex
	entries map[string]types.SelectedFile
}

// NewPreviewRegistry creates an empty preview registry
func NewPreviewRegistry() PreviewRegistry {
	return &previewRegistry{
		entries: make(map[string]types.SelectedFile),
	}
}

// Create registers file and returns a fresh reference to it
func (r *previewRegistry) Create(file types.SelectedFile) types.Preview {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := uuid.New().String()
	r.entries[id] = file
	return types.Preview{ID: id, URL: PreviewPathPrefix + id}
}

// Revoke releases a reference. It reports whether the reference was live.
func (r *previewRegistry) Revoke(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[id]; !ok {
		return false
	}
	delete(r.entries, id)
	return true
}

// Resolve returns the file behind a live reference
func (r *previewRegistry) Resolve(id string) (types.SelectedFile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	file, ok := r.entries[id]
	return file, ok
}

// Len returns the number of live references
func (r *previewRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
