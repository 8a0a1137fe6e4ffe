package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/aquanet/apiserver/config"
)

// ObjectStorage defines common object operations across backends.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Bucket() string
}

// Backend names accepted in STORAGE_BACKEND.
const (
	BackendMinio = "minio"
	BackendGCS   = "gcs"
)

var (
	// ErrDisabled is returned by Open when no backend is configured.
	ErrDisabled = errors.New("object storage disabled")

	ErrObjectNotFound = errors.New("object not found")
)

// Open builds the backend selected by cfg.Backend and makes sure its bucket
// exists.
func Open(ctx context.Context, cfg config.StorageConfig) (ObjectStorage, error) {
	const op = "storage.Open"

	var (
		backend ObjectStorage
		err     error
	)
	switch cfg.Backend {
	case "":
		return nil, ErrDisabled
	case BackendMinio:
		backend, err = NewMinioClient(cfg.Minio)
	case BackendGCS:
		backend, err = NewGCSClient(ctx, cfg.GCS)
	default:
		return nil, fmt.Errorf("%s: unknown backend %q", op, cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := backend.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("%s: ensure bucket %s: %w", op, backend.Bucket(), err)
	}
	return backend, nil
}

// ObjectKey returns a fresh key under prefix keeping the upload's extension,
// e.g. "complaints/12/3f2a...c1.jpg".
func ObjectKey(prefix, filename string) string {
	ext := strings.ToLower(path.Ext(path.Base(strings.ReplaceAll(filename, "\\", "/"))))
	return path.Join(prefix, uuid.NewString()+ext)
}
