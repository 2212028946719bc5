package errors

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: System & Common errors
// 13000-13999: Submission & Judge errors
// 17000-17999: Catalog & Registry errors
const (
	// ========== System & Common Errors (10000-10999) ==========

	// Success
	Success ErrorCode = 10000

	// Generic errors (10000-10099)
	InternalServerError ErrorCode = 10001
	InvalidParams       ErrorCode = 10002
	NotFound            ErrorCode = 10003
	TooManyRequests     ErrorCode = 10006
	ServiceUnavailable  ErrorCode = 10007
	Timeout             ErrorCode = 10008

	// Cache errors (10200-10299)
	CacheError ErrorCode = 10200

	// Storage errors (10400-10499)
	StorageError ErrorCode = 10400

	// Validation errors (10300-10399)
	ValidationFailed ErrorCode = 10300

	// ========== Submission & Judge Errors (13000-13999) ==========

	// Submission (13000-13099)
	SubmissionNotFound   ErrorCode = 13000
	CodeTooLarge         ErrorCode = 13002
	LanguageNotSupported ErrorCode = 13003

	// Judge (13100-13199)
	JudgeQueueFull       ErrorCode = 13100
	JudgeSystemError     ErrorCode = 13101
	SandboxError         ErrorCode = 13102
	VerifierCompileError ErrorCode = 13103
	UnsupportedJudgeMode ErrorCode = 13104

	// ========== Catalog & Registry Errors (17000-17999) ==========

	ProblemNotFound  ErrorCode = 17000
	TestDataError    ErrorCode = 17001
	RegistryError    ErrorCode = 17100
	ResultNotPersist ErrorCode = 17101
)

// errorMessages maps error codes to their default English messages
var errorMessages = map[ErrorCode]string{
	Success:             "Success",
	InternalServerError: "Internal server error",
	InvalidParams:       "Invalid parameters",
	NotFound:            "Resource not found",
	TooManyRequests:     "Too many requests, please try again later",
	ServiceUnavailable:  "Service temporarily unavailable",
	Timeout:             "Request timeout",

	CacheError:   "Cache operation failed",
	StorageError: "Storage operation failed",

	ValidationFailed: "Validation failed",

	SubmissionNotFound:   "Submission not found",
	CodeTooLarge:         "Code is too large",
	LanguageNotSupported: "Programming language not supported",

	JudgeQueueFull:       "Judge queue is full, please try again later",
	JudgeSystemError:     "Judge system error",
	SandboxError:         "Sandbox execution failed",
	VerifierCompileError: "Checker/interactor compilation failed",
	UnsupportedJudgeMode: "Unsupported judging mode",

	ProblemNotFound:  "Problem not found",
	TestDataError:    "Test data is missing or unreadable",
	RegistryError:    "Submission registry operation failed",
	ResultNotPersist: "Judge result was not persisted",
}

// Message returns the default message for the error code
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// HTTPStatus returns the recommended HTTP status code for the error code
func (c ErrorCode) HTTPStatus() int {
	switch {
	case c == Success:
		return 200
	case c == NotFound, c == SubmissionNotFound, c == ProblemNotFound:
		return 404
	case c == TooManyRequests, c == JudgeQueueFull:
		return 429
	case c == ServiceUnavailable:
		return 503
	case c == InvalidParams, c == ValidationFailed, c == CodeTooLarge, c == LanguageNotSupported:
		return 400
	default:
		return 500
	}
}
