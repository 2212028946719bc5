// Package contextkey defines the context value keys shared between the HTTP
// middleware and the logger.
package contextkey

const (
	// TraceID carries the per-request trace identifier.
	TraceID = "trace_id"

	// SubmissionID carries the submission being judged.
	SubmissionID = "submission_id"
)
