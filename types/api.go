package types

// FileRef is a file the user picked, before it passes the selection gate
type FileRef struct {
	Path string `json:"path"`
	Type string `json:"type,omitempty"` // declared media type; sniffed from content when empty
}

// SelectedFile represents an audio file that passed the selection gate
type SelectedFile struct {
	Name     string         `json:"name"`
	Path     string         `json:"path"`
	Size     int64          `json:"size"`
	Type     string         `json:"type"`
	Metadata *AudioMetadata `json:"metadata,omitempty"`
}

// AudioMetadata represents metadata for an audio file
type AudioMetadata struct {
	Title       string `json:"title,omitempty"`
	Artist      string `json:"artist,omitempty"`
	Album       string `json:"album,omitempty"`
	TrackNumber int    `json:"trackNumber,omitempty"`
}

// Preview is a revocable local reference to the selected file
type Preview struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// PageSnapshot is the current state of the upload page
type PageSnapshot struct {
	File     *SelectedFile  `json:"file"`
	Preview  *Preview       `json:"preview"`
	Text     string         `json:"text"`
	CanCopy  bool           `json:"canCopy"`
	Progress *ProgressState `json:"progress,omitempty"`
}
