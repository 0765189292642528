package storage

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/filevault/backend/internal/config"
)

// Blob locates a stored object. Path is the key used for later deletion.
type Blob struct {
	URL    string
	Path   string
	BlobID string
}

// BlobStore is the blob service behind file uploads. Delete of an absent
// object must succeed.
type BlobStore interface {
	Put(ctx context.Context, objectPath string, reader io.Reader, size int64, contentType string) (*Blob, error)
	Delete(ctx context.Context, objectPath string) error
	EnsureBucket(ctx context.Context) error
}

func New(ctx context.Context, cfg *config.Config) (BlobStore, error) {
	switch cfg.Storage.Driver {
	case "minio":
		return NewMinIOClient(cfg.MinIO)
	case "s3":
		return NewS3Client(ctx, cfg.S3)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func blobFor(url, objectPath string) *Blob {
	return &Blob{URL: url, Path: objectPath, BlobID: path.Base(objectPath)}
}
