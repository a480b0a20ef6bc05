package services

import (
	"fmt"
	"strings"

	"wavscribe/types"
)

// SelectFiles runs the selection gate over the files the user picked and
// returns the first one if it declares an accepted type. A nil list means
// nothing was chosen; an empty list means the picker returned no files.
func SelectFiles(fs FileService, files []types.FileRef) (*types.SelectedFile, error) {
	if files == nil {
		return nil, ErrNoFileChosen
	}
	if len(files) == 0 {
		return nil, ErrEmptyFileList
	}

	file, err := fs.Inspect(files[0])
	if err != nil {
		return nil, err
	}
	if err := ValidateAudioType(file.Type); err != nil {
		return nil, err
	}

	file.Metadata = fs.ExtractAudioMetadata(file.Path)
	return file, nil
}

// ValidateAudioType accepts only media types starting with audio/wav
func ValidateAudioType(declared string) error {
	if !strings.HasPrefix(declared, AcceptedTypePrefix) {
		return fmt.Errorf("%w: %q", ErrInvalidFileType, declared)
	}
	return nil
}
