// Package catalog exposes the problem store to the judge core. Problem
// descriptors and test data are read-only from the core's point of view.
package catalog

import (
	"context"

	"arbiter/internal/judge/model"
)

// Catalog provides problem descriptors, test data and verifier sources.
type Catalog interface {
	// LoadProblem reads the descriptor for a problem. Per-case limits in
	// the returned descriptor are already resolved against the problem
	// defaults.
	LoadProblem(ctx context.Context, problemID string) (model.Problem, error)

	// ReadTestFile reads a test data file by its descriptor reference.
	ReadTestFile(ctx context.Context, problemID, ref string) ([]byte, error)

	// ReadVerifierSource reads the checker or interactor source by its
	// descriptor reference.
	ReadVerifierSource(ctx context.Context, problemID, ref string) ([]byte, error)

	// VerifierBinary returns the local path of a precompiled verifier
	// binary if the catalog ships one, and whether it exists.
	VerifierBinary(ctx context.Context, problemID string, kind model.VerifierKind) (string, bool)
}
