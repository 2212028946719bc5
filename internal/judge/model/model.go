// Package model defines the data model shared across the judge core.
package model

// SubmissionStatus represents the lifecycle state of a submission.
type SubmissionStatus string

const (
	StatusQueued  SubmissionStatus = "queued"
	StatusRunning SubmissionStatus = "running"
	StatusDone    SubmissionStatus = "done"
	StatusError   SubmissionStatus = "error"
)

// Terminal reports whether the status is final. Terminal results are
// immutable once written.
func (s SubmissionStatus) Terminal() bool {
	return s == StatusDone || s == StatusError
}

// JudgingMode selects how a problem verifies contestant output.
type JudgingMode string

const (
	ModeStandard    JudgingMode = "standard"
	ModeInteractive JudgingMode = "interactive"
)

// VerifierKind distinguishes the two verification program flavors.
type VerifierKind string

const (
	VerifierChecker    VerifierKind = "checker"
	VerifierInteractor VerifierKind = "interactor"
)

// SubmissionMeta is the durable metadata record written on admission.
type SubmissionMeta struct {
	SubmissionID string `json:"submission_id"`
	ProblemID    string `json:"problem_id"`
	Language     string `json:"language"`
	CreatedAt    int64  `json:"created_at"`
}

// ResourceLimit bounds one sandboxed process.
type ResourceLimit struct {
	TimeLimitMs   int64 `json:"timeLimitMs" yaml:"timeLimitMs"`
	MemoryLimitMB int64 `json:"memoryLimitMB" yaml:"memoryLimitMB"`
	StackLimitMB  int64 `json:"stackLimitMB" yaml:"stackLimitMB"`
	ProcLimit     int   `json:"procLimit" yaml:"procLimit"`
}

// TestCase describes one test case input and expected answer.
// Limits are fully resolved against the problem defaults at load time.
type TestCase struct {
	InputRef  string        `json:"input"`
	AnswerRef string        `json:"answer"`
	Limits    ResourceLimit `json:"limits"`
}

// Problem is the read-only descriptor loaded once per judging run.
// Cases are evaluated strictly in declared order.
type Problem struct {
	ID            string        `json:"id"`
	Mode          JudgingMode   `json:"mode"`
	Cases         []TestCase    `json:"cases"`
	CheckerRef    string        `json:"checker"`
	InteractorRef string        `json:"interactor"`
	Limits        ResourceLimit `json:"limits"`
	EntryFile     string        `json:"entryFile"`
}

// VerifierRef returns the verifier source reference matching the judging mode.
func (p Problem) VerifierRef() string {
	if p.Mode == ModeInteractive {
		return p.InteractorRef
	}
	return p.CheckerRef
}

// VerifierKind returns the verifier flavor matching the judging mode.
func (p Problem) VerifierKind() VerifierKind {
	if p.Mode == ModeInteractive {
		return VerifierInteractor
	}
	return VerifierChecker
}

// MergeLimits overlays per-case overrides on the problem defaults.
// Zero fields in override fall back to defaults.
func MergeLimits(override, defaults ResourceLimit) ResourceLimit {
	merged := defaults
	if override.TimeLimitMs > 0 {
		merged.TimeLimitMs = override.TimeLimitMs
	}
	if override.MemoryLimitMB > 0 {
		merged.MemoryLimitMB = override.MemoryLimitMB
	}
	if override.StackLimitMB > 0 {
		merged.StackLimitMB = override.StackLimitMB
	}
	if override.ProcLimit > 0 {
		merged.ProcLimit = override.ProcLimit
	}
	return merged
}

// Case status display names shared by both judging modes.
const (
	CaseStatusCorrect     = "Correct"
	CaseStatusWrongAnswer = "Wrong Answer"
)

// CaseOutcome is the immutable per-(submission, case) result.
// Ratio is the score ratio in [0,1]; 1.0 is full credit.
type CaseOutcome struct {
	OK       bool    `json:"ok"`
	Status   string  `json:"status"`
	TimeMs   int64   `json:"time_ms"`
	MemoryKB int64   `json:"memory_kb"`
	Ratio    float64 `json:"ratio"`
	Message  string  `json:"message,omitempty"`
}

// JudgeResult is the terminal record for one submission.
// Written exactly once; subsequent reads are idempotent.
type JudgeResult struct {
	SubmissionID string           `json:"submission_id"`
	Status       SubmissionStatus `json:"status"`
	Passed       bool             `json:"passed"`
	Score        int              `json:"score"`
	Cases        []CaseOutcome    `json:"cases"`
	Error        string           `json:"error,omitempty"`
	FinishedAt   int64            `json:"finished_at"`
}

// ResultView is what getResult returns: the current lifecycle status plus
// the terminal result once one exists.
type ResultView struct {
	SubmissionID string           `json:"submission_id"`
	Status       SubmissionStatus `json:"status"`
	Result       *JudgeResult     `json:"result,omitempty"`
}
