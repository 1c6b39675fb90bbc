package upload

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"

	"echoflow/internal/providers/minio"

	"go.uber.org/zap"
)

// Storage is the subset of the object store the upload service needs.
type Storage interface {
	Upload(ctx context.Context, reader io.Reader, objectName, contentType string, size int64) (*minio.UploadedFile, error)
	DeleteFile(ctx context.Context, objectName string) error
	ObjectNameFromURL(fileURL string) (string, bool)
	MaxSize() int64
}

type Service interface {
	UploadImage(ctx context.Context, file *multipart.FileHeader, prefix string) (*UploadedFileResponse, error)
	// Remove deletes an object previously returned by UploadImage. URLs that
	// point elsewhere are ignored.
	Remove(ctx context.Context, fileURL string)
}

type service struct {
	storage Storage
	logger  *zap.SugaredLogger
}

// NewService accepts a nil storage; every upload then fails with
// ErrStorageUnavailable.
func NewService(storage Storage, logger *zap.Logger) Service {
	return &service{
		storage: storage,
		logger:  logger.Sugar(),
	}
}

func (s *service) UploadImage(ctx context.Context, file *multipart.FileHeader, prefix string) (*UploadedFileResponse, error) {
	if s.storage == nil {
		return nil, ErrStorageUnavailable
	}
	if file.Size <= 0 {
		return nil, ErrEmptyFile
	}
	if file.Size > s.storage.MaxSize() {
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrFileTooLarge, s.storage.MaxSize())
	}

	contentType := minio.DetectContentType(filepath.Ext(file.Filename))
	if contentType == "application/octet-stream" {
		return nil, ErrUnsupportedType
	}

	src, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer src.Close()

	result, err := s.storage.Upload(ctx, src, minio.GenerateObjectName(prefix, file.Filename), contentType, file.Size)
	if err != nil {
		s.logger.Errorw("Failed to upload file", "filename", file.Filename, "error", err)
		return nil, err
	}

	return &UploadedFileResponse{
		Name:        file.Filename,
		URL:         result.URL,
		Size:        result.Size,
		ContentType: result.ContentType,
		ObjectName:  result.ObjectName,
	}, nil
}

func (s *service) Remove(ctx context.Context, fileURL string) {
	if s.storage == nil || fileURL == "" {
		return
	}
	objectName, ok := s.storage.ObjectNameFromURL(fileURL)
	if !ok {
		return
	}
	if err := s.storage.DeleteFile(ctx, objectName); err != nil {
		s.logger.Warnw("Failed to delete old object", "object_name", objectName, "error", err)
	}
}
