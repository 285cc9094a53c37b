package storage

import (
	"context"
	"io"
	"time"
)

// ObjectStorage is the blob store for uploaded media, covers, narrations and voice samples.
type ObjectStorage interface {
	// EnsureBucket creates the bucket when the backend allows it.
	EnsureBucket(ctx context.Context) error

	// Upload writes size bytes from reader under key.
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// Download opens the object stored under key. The caller closes it.
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// GetURL returns the public URL of key.
	GetURL(key string) string

	// PresignUpload returns a URL the client can PUT the object to directly.
	PresignUpload(ctx context.Context, key, contentType string, ttl time.Duration) (string, error)

	Delete(ctx context.Context, key string) error

	Exists(ctx context.Context, key string) (bool, error)
}
