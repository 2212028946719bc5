package storage

import (
	"context"
	"errors"
)

// ErrObjectNotFound is returned by GetObject and StatObject when the
// object does not exist. Implementations map their backend-specific
// missing-object errors to it.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStorage defines minimal object storage operations required by the
// submission registry. It is intentionally small so we can swap local-disk
// and MinIO/S3 implementations without touching business logic.
type ObjectStorage interface {
	// PutObject stores an object under bucket/key, replacing any existing one.
	PutObject(ctx context.Context, bucket, objectKey string, data []byte, contentType string) error

	// GetObject reads the full object content.
	GetObject(ctx context.Context, bucket, objectKey string) ([]byte, error)

	// StatObject returns size for an object, or an error if it does not exist.
	StatObject(ctx context.Context, bucket, objectKey string) (ObjectStat, error)

	// RemoveObject deletes an object. Removing a missing object is not an error.
	RemoveObject(ctx context.Context, bucket, objectKey string) error
}

// ObjectStat contains object metadata used for validation.
type ObjectStat struct {
	SizeBytes   int64
	ContentType string
}
