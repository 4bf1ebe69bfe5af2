package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrDisabled is returned when no bucket is configured.
var ErrDisabled = errors.New("object storage is not configured")

type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified *time.Time
}

// UploadOptions conveys upload destination metadata.
type UploadOptions struct {
	// Folder groups objects under the configured key prefix, e.g. "reports".
	Folder      string
	FileName    string
	ContentType string
}

// Service stores report and analysis PDFs in remote object storage.
type Service interface {
	UploadObject(ctx context.Context, body io.Reader, opts UploadOptions) (string, error)
	ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error)
	DeleteObject(ctx context.Context, key string) error
	GetObjectURL(ctx context.Context, key string, expires time.Duration) (string, error)
}
