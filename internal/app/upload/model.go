package upload

import "errors"

var (
	ErrStorageUnavailable = errors.New("object storage is not configured")
	ErrUnsupportedType    = errors.New("only jpeg, png, gif and webp images are accepted")
	ErrFileTooLarge       = errors.New("file is too large")
	ErrEmptyFile          = errors.New("file is empty")
)

type UploadedFileResponse struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType"`
	ObjectName  string `json:"objectName"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
