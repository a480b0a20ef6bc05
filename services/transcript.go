package services

import (
	"context"
	"sync"

	"wavscribe/clipboard"
)

// Transcript holds the latest transcript text, editable by the user and
// copyable to the clipboard.
type Transcript struct {
	mu   sync.RWMutex
	text string
	clip clipboard.Writer
}

// NewTranscript creates an empty transcript copying through clip
func NewTranscript(clip clipboard.Writer) *Transcript {
	return &Transcript{clip: clip}
}

// Text returns the current transcript text
func (t *Transcript) Text() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.text
}

// Set replaces the transcript text
func (t *Transcript) Set(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.text = text
}

// CanCopy reports whether there is any text to copy
func (t *Transcript) CanCopy() bool {
	return t.Text() != ""
}

// Copy places the current text on the clipboard. It returns
// ErrNothingToCopy without touching the clipboard when the text is empty.
func (t *Transcript) Copy(ctx context.Context) error {
	text := t.Text()
	if text == "" {
		return ErrNothingToCopy
	}
	return t.clip.WriteText(ctx, text)
}

// CopyMethod names the clipboard path a copy takes, if known
func (t *Transcript) CopyMethod() string {
	if c, ok := t.clip.(*clipboard.Copier); ok {
		return c.Method()
	}
	return "clipboard"
}
