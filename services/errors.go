package services

import (
	"errors"
	"fmt"
	"io/fs"
)

// GenericFailureMessage is shown when a failure carries no message from the
// upload endpoint.
const GenericFailureMessage = "Sorry! something went wrong."

var (
	ErrNoFileChosen    = errors.New("no file was chosen")
	ErrEmptyFileList   = errors.New("files list is empty")
	ErrInvalidFileType = errors.New("invalid file type")
	ErrNoFileSelected  = errors.New("no file selected")
	ErrNothingToCopy   = errors.New("transcript is empty")
	ErrPreviewNotFound = errors.New("preview not found")
)

// EndpointError is returned when the upload endpoint answers with a non-2xx
// status. Message holds the endpoint's own error text, if any.
type EndpointError struct {
	StatusCode int
	Message    string
}

func (e *EndpointError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("upload endpoint returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("upload endpoint returned %d", e.StatusCode)
}

// UserMessage returns the text shown to the user for err
func UserMessage(err error) string {
	var endpointErr *EndpointError

	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoFileChosen):
		return "No file was chosen"
	case errors.Is(err, ErrEmptyFileList):
		return "Files list is empty"
	case errors.Is(err, ErrInvalidFileType):
		return "Please select a valid audio file."
	case errors.Is(err, ErrNoFileSelected):
		return "Please select a file to upload."
	case errors.Is(err, ErrNothingToCopy):
		return "There is no text to copy."
	case errors.Is(err, fs.ErrNotExist):
		return "The selected file does not exist."
	case errors.As(err, &endpointErr) && endpointErr.Message != "":
		return endpointErr.Message
	default:
		return GenericFailureMessage
	}
}
