// Package sandbox is the judge core's only gateway to the external
// execution service. The core never touches process primitives itself;
// compilation and execution happen behind this client.
package sandbox

import "context"

// Limits bounds one sandboxed process.
type Limits struct {
	CPUTimeMs  int64
	WallTimeMs int64
	MemoryMB   int64
	StackMB    int64
	Procs      int
}

// PrepareRequest asks the service to compile (or stage, for interpreted
// languages) contestant or verifier code for later execution.
type PrepareRequest struct {
	Language  string
	EntryFile string
	Code      []byte
}

// RunSpec is a prepared, reusable program: the command to run plus the
// cached file ids it needs staged into the working directory.
type RunSpec struct {
	Args  []string
	Env   []string
	Files map[string]string
}

// ExecSpec describes one process execution.
type ExecSpec struct {
	Spec      RunSpec
	ExtraArgs []string
	Stdin     []byte
	CopyIn    map[string][]byte
	Limits    Limits

	// Collection bounds in bytes; zero means the service default.
	StdoutLimit int64
	StderrLimit int64
}

// ExecResult is the outcome of one process execution.
type ExecResult struct {
	Status   Status
	ExitCode int
	Signal   int
	TimeMs   int64
	MemoryKB int64
	Stdout   []byte
	Stderr   []byte
}

// PipeMap wires file descriptor OutFd of the process at OutIndex into
// file descriptor InFd of the process at InIndex.
type PipeMap struct {
	OutIndex int
	OutFd    int
	InIndex  int
	InFd     int
}

// Client is the execution service contract.
type Client interface {
	// PrepareProgram compiles or stages code and returns a reusable run
	// spec. A compile failure returns *PrepareFailure.
	PrepareProgram(ctx context.Context, req PrepareRequest) (RunSpec, error)

	// RunOne executes a single process to completion.
	RunOne(ctx context.Context, spec ExecSpec) (ExecResult, error)

	// RunPair executes two processes concurrently with the given pipe
	// wiring and waits for both.
	RunPair(ctx context.Context, specs [2]ExecSpec, pipes []PipeMap) ([2]ExecResult, error)

	// CopyInBin uploads a prebuilt binary from the local filesystem into
	// the service file cache and returns its file id.
	CopyInBin(ctx context.Context, path string) (string, error)

	// DeleteFile drops a cached file. Deleting an unknown id is not an
	// error.
	DeleteFile(ctx context.Context, fileID string) error
}

// PrepareFailure reports a compilation rejection, as opposed to a
// transport or service fault.
type PrepareFailure struct {
	Message string
	Log     string
}

func (e *PrepareFailure) Error() string {
	if e.Log != "" {
		return e.Message + ": " + e.Log
	}
	return e.Message
}
