package services

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"wavscribe/types"

	"github.com/dhowden/tag"
	"github.com/gabriel-vasile/mimetype"
)

// AcceptedTypePrefix is the media type prefix a file must declare to be selected
const AcceptedTypePrefix = "audio/wav"

// FileService interface defines methods for inspecting local audio files
type FileService interface {
	Inspect(ref types.FileRef) (*types.SelectedFile, error)
	DetectContentType(filePath string) (string, error)
	ExtractAudioMetadata(filePath string) *types.AudioMetadata
}

// fileService implements the FileService interface
type fileService struct{}

// NewFileService creates a new file service
func NewFileService() FileService {
	return &fileService{}
}

// Inspect stats the referenced file and resolves its declared type. The
// caller's declared type wins; otherwise the type is sniffed from content.
func (fs *fileService) Inspect(ref types.FileRef) (*types.SelectedFile, error) {
	if strings.TrimSpace(ref.Path) == "" {
		return nil, fmt.Errorf("empty path not allowed")
	}

	info, err := os.Stat(ref.Path)
	if err != nil {
		return nil, fmt.Errorf("inspect %s: %w", ref.Path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("inspect %s: path is a directory, not a file", ref.Path)
	}

	declared := strings.TrimSpace(ref.Type)
	if declared == "" {
		declared, err = fs.DetectContentType(ref.Path)
		if err != nil {
			return nil, err
		}
	}

	absPath, err := filepath.Abs(ref.Path)
	if err != nil {
		absPath = ref.Path
	}

	return &types.SelectedFile{
		Name: info.Name(),
		Path: absPath,
		Size: info.Size(),
		Type: declared,
	}, nil
}

// DetectContentType sniffs the MIME type of a file from its content
func (fs *fileService) DetectContentType(filePath string) (string, error) {
	mtype, err := mimetype.DetectFile(filePath)
	if err != nil {
		return "", fmt.Errorf("detect type of %s: %w", filePath, err)
	}
	return mtype.String(), nil
}

// ExtractAudioMetadata extracts metadata from an audio file with fallback logic
func (fs *fileService) ExtractAudioMetadata(filePath string) *types.AudioMetadata {
	file, err := os.Open(filePath)
	if err != nil {
		slog.Warn("could not open audio file", "path", filePath, "error", err)
		return fs.extractMetadataFromPath(filePath)
	}
	defer file.Close()

	// RIFF/WAVE carries no tags dhowden/tag understands, so plain WAV files
	// end up on the path fallback.
	meta, err := tag.ReadFrom(file)
	if err != nil {
		slog.Debug("no audio tags, using file name", "path", filePath, "error", err)
		return fs.extractMetadataFromPath(filePath)
	}

	metadata := &types.AudioMetadata{
		Title:  meta.Title(),
		Artist: meta.Artist(),
		Album:  meta.Album(),
	}
	metadata.TrackNumber, _ = meta.Track()

	if metadata.Title == "" || metadata.Artist == "" || metadata.Album == "" {
		fallback := fs.extractMetadataFromPath(filePath)
		if metadata.Title == "" {
			metadata.Title = fallback.Title
		}
		if metadata.Artist == "" {
			metadata.Artist = fallback.Artist
		}
		if metadata.Album == "" {
			metadata.Album = fallback.Album
		}
	}

	return metadata
}

var trackPrefix = regexp.MustCompile(`^(\d+)[\.\-\s]+(.+)`)

// extractMetadataFromPath derives a title (and track number) from the file
// name, and artist/album from the two parent directories when present.
func (fs *fileService) extractMetadataFromPath(filePath string) *types.AudioMetadata {
	metadata := &types.AudioMetadata{}

	parts := strings.Split(filepath.ToSlash(filepath.Clean(filePath)), "/")
	if len(parts) >= 3 {
		metadata.Artist = parts[len(parts)-3]
	}
	if len(parts) >= 2 {
		metadata.Album = parts[len(parts)-2]
	}

	filename := filepath.Base(filePath)
	title := strings.TrimSuffix(filename, filepath.Ext(filename))

	// "01 - Interview", "1. Interview"
	if matches := trackPrefix.FindStringSubmatch(title); len(matches) > 2 {
		title = matches[2]
		if trackNum, err := strconv.Atoi(matches[1]); err == nil {
			metadata.TrackNumber = trackNum
		}
	}

	metadata.Title = title
	return metadata
}
