// Package registry owns submission identity and durable persistence:
// monotonic ids, the metadata index, archived source code and terminal
// results.
package registry

import (
	"context"

	"arbiter/internal/judge/model"
)

// Paths locates a submission's objects in durable storage. Submissions
// are grouped into fixed-size buckets so no single directory grows
// without bound.
type Paths struct {
	BucketDir string
	SubDir    string
}

// Registry is the durable side of the judge core.
type Registry interface {
	// NextSubmissionID allocates a new globally monotonic submission id.
	NextSubmissionID(ctx context.Context) (string, error)

	// SubmissionPaths computes the storage location for a submission id.
	SubmissionPaths(id string) Paths

	// SaveMeta records the submission metadata in the index and in
	// durable storage.
	SaveMeta(ctx context.Context, meta model.SubmissionMeta) error

	// LoadMeta reads the metadata record written on admission. Returns a
	// SubmissionNotFound error when the submission was never admitted.
	LoadMeta(ctx context.Context, id string) (model.SubmissionMeta, error)

	// SaveSource archives submission source code, compressed.
	SaveSource(ctx context.Context, id string, code []byte) error

	// LoadSource restores archived source code.
	LoadSource(ctx context.Context, id string) ([]byte, error)

	// SaveResult persists a terminal judge result.
	SaveResult(ctx context.Context, res model.JudgeResult) error

	// LoadResult reads a terminal judge result. Returns a
	// SubmissionNotFound error when none has been persisted.
	LoadResult(ctx context.Context, id string) (model.JudgeResult, error)

	Close() error
}
